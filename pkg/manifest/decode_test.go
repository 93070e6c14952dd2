package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clienterrors "github.com/novelcore/kubecore-object-client/pkg/errors"
)

const multiDocument = `
apiVersion: v1
kind: Service
metadata:
  name: web
spec:
  ports:
  - port: 80
    targetPort: http
---
---
kind: ConfigMap
metadata:
  name: settings
data:
  mode: fast
---
apiVersion: v1
kind: List
items:
- apiVersion: v1
  kind: Secret
  metadata:
    name: token
- kind: ServiceAccount
  metadata:
    name: runner
`

func TestDecode(t *testing.T) {
	manifests, err := Decode(strings.NewReader(multiDocument))
	require.NoError(t, err)
	require.Len(t, manifests, 4)

	var kinds []string
	for _, m := range manifests {
		kinds = append(kinds, m.GetKind())
	}
	assert.Equal(t, []string{"Service", "ConfigMap", "Secret", "ServiceAccount"}, kinds)

	assert.Empty(t, manifests[1].GetAPIVersion(), "apiVersion is left for inference")

	ports := manifests[0].Object["spec"].(map[string]interface{})["ports"].([]interface{})
	assert.Equal(t, int64(80), ports[0].(map[string]interface{})["port"])
}

func TestDecodeJSON(t *testing.T) {
	manifests, err := Decode(strings.NewReader(`{"apiVersion":"v1","kind":"Namespace","metadata":{"name":"team-a"}}`))
	require.NoError(t, err)
	require.Len(t, manifests, 1)
	assert.Equal(t, "team-a", manifests[0].GetName())
}

func TestDecodeFailures(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "missing kind", input: "apiVersion: v1\nmetadata:\n  name: x\n"},
		{name: "list item without kind", input: "kind: List\nitems:\n- metadata:\n    name: x\n"},
		{name: "not an object", input: "- a\n- b\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Equal(t, clienterrors.ErrorCodeInvalidInput, clienterrors.GetErrorCode(err))
		})
	}
}

func TestDecodeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifests.yaml")
	require.NoError(t, os.WriteFile(path, []byte(multiDocument), 0o600))

	manifests, err := DecodeFile(path)
	require.NoError(t, err)
	assert.Len(t, manifests, 4)

	_, err = DecodeFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
