// Package manifest reads resource manifests from YAML or JSON streams.
package manifest

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	utiljson "k8s.io/apimachinery/pkg/util/json"
	"k8s.io/apimachinery/pkg/util/yaml"

	clienterrors "github.com/novelcore/kubecore-object-client/pkg/errors"
)

const bufferSize = 4096

// Decode reads every document of a multi-document YAML or JSON stream. Empty
// documents are skipped and List documents contribute their items. Integral
// numbers decode as int64.
func Decode(r io.Reader) ([]*unstructured.Unstructured, error) {
	decoder := yaml.NewYAMLOrJSONDecoder(bufio.NewReader(r), bufferSize)

	var out []*unstructured.Unstructured
	for doc := 0; ; doc++ {
		var raw runtime.RawExtension
		if err := decoder.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, invalid("cannot decode manifest", doc).WithCause(err)
		}

		data := bytes.TrimSpace(raw.Raw)
		if len(data) == 0 || bytes.Equal(data, []byte("null")) {
			continue
		}

		var content map[string]interface{}
		if err := utiljson.Unmarshal(data, &content); err != nil {
			return nil, invalid("manifest is not an object", doc).WithCause(err)
		}
		if len(content) == 0 {
			continue
		}

		u := &unstructured.Unstructured{Object: content}
		if u.IsList() {
			items, err := expand(u, doc)
			if err != nil {
				return nil, err
			}
			out = append(out, items...)
			continue
		}

		if u.GetKind() == "" {
			return nil, invalid("manifest has no kind", doc)
		}
		out = append(out, u)
	}
}

func expand(list *unstructured.Unstructured, doc int) ([]*unstructured.Unstructured, error) {
	var items []*unstructured.Unstructured
	err := list.EachListItem(func(o runtime.Object) error {
		item, ok := o.(*unstructured.Unstructured)
		if !ok || item.GetKind() == "" {
			return invalid("list item has no kind", doc).WithContext("item", strconv.Itoa(len(items)))
		}
		items = append(items, item)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func invalid(message string, doc int) *clienterrors.ClientError {
	return clienterrors.InvalidInput(message).WithContext("document", strconv.Itoa(doc))
}

// DecodeFile reads the manifests stored at path
func DecodeFile(path string) ([]*unstructured.Unstructured, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open %s", path)
	}
	defer f.Close()

	return Decode(f)
}
