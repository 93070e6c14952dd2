package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

func TestClientErrorMessage(t *testing.T) {
	err := NotFound(ResourceRef{Kind: "Service", APIVersion: "v1", Name: "web", Namespace: "default"}).
		WithCause(fmt.Errorf("boom"))

	assert.Equal(t, "resource Service (v1) default/web: NOT_FOUND: not found: cause: boom", err.Error())
}

func TestWrapKeepsCode(t *testing.T) {
	base := UnsupportedKind("Widget")
	wrapped := Wrap(base, "cannot create")

	assert.Equal(t, ErrorCodeUnsupportedKind, GetErrorCode(wrapped))
	assert.True(t, IsErrorCode(wrapped, ErrorCodeUnsupportedKind))
	assert.ErrorIs(t, wrapped, base)
}

func TestWrapForeignError(t *testing.T) {
	wrapped := Wrapf(fmt.Errorf("dial tcp"), "cannot list %s", "pods")

	assert.Equal(t, "cannot list pods: dial tcp", wrapped.Error())
	assert.Equal(t, ErrorCodeInternalError, GetErrorCode(wrapped))
	assert.Nil(t, Wrap(nil, "ignored"))
}

func TestIsNotFound(t *testing.T) {
	gr := schema.GroupResource{Resource: "services"}

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "local code", err: NotFound(ResourceRef{Kind: "Service"}), want: true},
		{name: "api server", err: apierrors.NewNotFound(gr, "web"), want: true},
		{name: "wrapped api server", err: Wrap(apierrors.NewNotFound(gr, "web"), "read"), want: true},
		{name: "already exists", err: apierrors.NewAlreadyExists(gr, "web"), want: false},
		{name: "other code", err: UnsupportedOperation("Service", "patch"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsNotFound(tt.err))
		})
	}
}

func TestIsAlreadyExists(t *testing.T) {
	gr := schema.GroupResource{Resource: "services"}

	assert.True(t, IsAlreadyExists(apierrors.NewAlreadyExists(gr, "web")))
	assert.False(t, IsAlreadyExists(apierrors.NewNotFound(gr, "web")))
	assert.False(t, IsAlreadyExists(nil))
}
