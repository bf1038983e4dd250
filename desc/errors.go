package desc

import (
	"errors"
	"fmt"
)

// ErrNotFound is matched (via errors.Is) by every *NotFoundError returned
// from the lookup methods of a Pool.
var ErrNotFound = errors.New("descriptor not found")

// NotFoundError is returned when a pool has no element with the requested
// fully-qualified name.
type NotFoundError struct {
	// What is the kind of element that was requested, such as "message"
	// or "service".
	What string
	// Name is the fully-qualified name that was requested.
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.What, e.Name)
}

// Is returns true when target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// SchemaDecodeError is returned when a serialized descriptor set cannot be
// decoded, or when its files cannot be linked into a consistent schema.
type SchemaDecodeError struct {
	// File is the name of the file that failed to link. It is empty when
	// the bytes themselves could not be decoded.
	File string
	Err  error
}

func (e *SchemaDecodeError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("failed to decode descriptor set: %v", e.Err)
	}
	return fmt.Sprintf("failed to link %q: %v", e.File, e.Err)
}

func (e *SchemaDecodeError) Unwrap() error {
	return e.Err
}
