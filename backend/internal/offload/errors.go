package offload

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration reports an invalid registry or engine setup.
	ErrConfiguration = errors.New("invalid offload configuration")
	// ErrStoreWrite reports a failed blob store Put during offload.
	ErrStoreWrite = errors.New("blob store write failed")
	// ErrStoreRead reports a failed blob store Get during rehydration.
	ErrStoreRead = errors.New("blob store read failed")
	// ErrEncode reports a field value that cannot be encoded.
	ErrEncode = errors.New("field encode failed")
	// ErrDecode reports a stored blob that cannot be decoded.
	ErrDecode = errors.New("field decode failed")
)

// FieldError is the error returned when a single field fails an offload or
// rehydrate batch.
//
// errors.Is matches both Kind and the underlying cause.
type FieldError struct {
	Field string
	Kind  error // One of ErrStoreWrite, ErrStoreRead, ErrEncode, ErrDecode.
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%v for field %q: %v", e.Kind, e.Field, e.Err)
}

func (e *FieldError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}
