package errors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
)

// ErrorCode represents the type of error that occurred
type ErrorCode string

const (
	// Resource errors
	ErrorCodeNotFound             ErrorCode = "NOT_FOUND"
	ErrorCodeUnsupportedKind      ErrorCode = "UNSUPPORTED_KIND"
	ErrorCodeUnsupportedOperation ErrorCode = "UNSUPPORTED_OPERATION"

	// Materialization errors
	ErrorCodeUnknownAttribute  ErrorCode = "UNKNOWN_ATTRIBUTE"
	ErrorCodeUnknownType       ErrorCode = "UNKNOWN_TYPE"
	ErrorCodeMalformedTypeName ErrorCode = "MALFORMED_TYPE_NAME"

	// Input validation errors
	ErrorCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// System errors
	ErrorCodeKubernetesClient ErrorCode = "KUBERNETES_CLIENT_ERROR"
	ErrorCodeInternalError    ErrorCode = "INTERNAL_ERROR"
)

// ClientError is an error carrying a code and optional resource context
type ClientError struct {
	Code        ErrorCode         `json:"code"`
	Message     string            `json:"message"`
	ResourceRef *ResourceRef      `json:"resourceRef,omitempty"`
	Context     map[string]string `json:"context,omitempty"`
	Cause       error             `json:"-"`
}

// ResourceRef identifies a specific resource
type ResourceRef struct {
	Kind       string `json:"kind"`
	APIVersion string `json:"apiVersion,omitempty"`
	Name       string `json:"name,omitempty"`
	Namespace  string `json:"namespace,omitempty"`
}

func (r ResourceRef) String() string {
	var b strings.Builder
	b.WriteString(r.Kind)
	if r.APIVersion != "" {
		b.WriteString(" (" + r.APIVersion + ")")
	}
	if r.Name != "" {
		b.WriteString(" ")
		if r.Namespace != "" {
			b.WriteString(r.Namespace + "/")
		}
		b.WriteString(r.Name)
	}
	return b.String()
}

// Error implements the error interface
func (e *ClientError) Error() string {
	var parts []string

	if e.ResourceRef != nil {
		parts = append(parts, "resource "+e.ResourceRef.String())
	}

	parts = append(parts, string(e.Code))
	parts = append(parts, e.Message)

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %s", e.Cause.Error()))
	}

	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause
func (e *ClientError) Unwrap() error {
	return e.Cause
}

// New creates a new ClientError
func New(code ErrorCode, message string) *ClientError {
	return &ClientError{
		Code:    code,
		Message: message,
		Context: make(map[string]string),
	}
}

// Wrap annotates err with message. A ClientError keeps its code.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	var ce *ClientError
	if errors.As(err, &ce) {
		return &ClientError{
			Code:        ce.Code,
			Message:     message,
			ResourceRef: ce.ResourceRef,
			Context:     make(map[string]string),
			Cause:       err,
		}
	}

	return errors.Wrap(err, message)
}

// Wrapf creates a wrapped error with formatting
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WithResource adds resource context to an error
func (e *ClientError) WithResource(ref ResourceRef) *ClientError {
	e.ResourceRef = &ref
	return e
}

// WithContext adds additional context
func (e *ClientError) WithContext(key, value string) *ClientError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// WithCause records the underlying error
func (e *ClientError) WithCause(err error) *ClientError {
	e.Cause = err
	return e
}

// IsErrorCode checks if any error in the chain has a specific error code
func IsErrorCode(err error, code ErrorCode) bool {
	for err != nil {
		if ce, ok := err.(*ClientError); ok && ce.Code == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// GetErrorCode extracts the outermost error code from an error
func GetErrorCode(err error) ErrorCode {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ErrorCodeInternalError
}

// IsNotFound reports whether err signals an absent resource, kind or apiVersion,
// either locally or from the API server.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	return IsErrorCode(err, ErrorCodeNotFound) || apierrors.IsNotFound(err)
}

// IsAlreadyExists reports whether the API server rejected a create because the
// resource is already present.
func IsAlreadyExists(err error) bool {
	return err != nil && apierrors.IsAlreadyExists(err)
}

// NotFound creates a not found error
func NotFound(ref ResourceRef) *ClientError {
	return New(ErrorCodeNotFound, "not found").WithResource(ref)
}

// UnsupportedKind creates an error for a kind no registered type or client serves
func UnsupportedKind(kind string) *ClientError {
	return New(ErrorCodeUnsupportedKind, "kind is not supported").WithResource(ResourceRef{Kind: kind})
}

// UnsupportedOperation creates an error for a verb no client exposes for a kind
func UnsupportedOperation(kind, verb string) *ClientError {
	return New(ErrorCodeUnsupportedOperation, fmt.Sprintf("no client supports %q", verb)).
		WithResource(ResourceRef{Kind: kind}).
		WithContext("verb", verb)
}

// UnknownAttribute creates an error for an attribute a type does not declare
func UnknownAttribute(typeName, attribute string) *ClientError {
	return New(ErrorCodeUnknownAttribute, fmt.Sprintf("type %s has no attribute %q", typeName, attribute)).
		WithContext("type", typeName).
		WithContext("attribute", attribute)
}

// UnknownType creates an error for a nominal type without a descriptor
func UnknownType(typeName string) *ClientError {
	return New(ErrorCodeUnknownType, fmt.Sprintf("no descriptor for type %s", typeName)).
		WithContext("type", typeName)
}

// MalformedTypeName creates an error for an unparsable array or map type name
func MalformedTypeName(typeName string) *ClientError {
	return New(ErrorCodeMalformedTypeName, fmt.Sprintf("cannot parse type name %q", typeName)).
		WithContext("type", typeName)
}

// InvalidInput creates a validation error
func InvalidInput(message string) *ClientError {
	return New(ErrorCodeInvalidInput, message)
}

// KubernetesClient creates a Kubernetes client error
func KubernetesClient(message string) *ClientError {
	return New(ErrorCodeKubernetesClient, message)
}
