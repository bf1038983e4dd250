package dynamic

import (
	"errors"
	"fmt"
)

var (
	// ErrFieldNotFound is matched (via errors.Is) by every *FieldNotFoundError.
	ErrFieldNotFound = errors.New("field not found")
	// ErrTypeMismatch is matched (via errors.Is) by every *TypeMismatchError.
	ErrTypeMismatch = errors.New("value does not match field type")
	// ErrCycle is returned when storing a value would make a message
	// contain itself.
	ErrCycle = errors.New("value contains the message it would be stored in")
)

// FieldNotFoundError is returned when a field name or number is not
// declared by a message, or when a field descriptor belongs to a different
// message.
type FieldNotFoundError struct {
	Message string
	// Field is the requested name, or the requested number formatted as a
	// decimal string.
	Field string
}

func (e *FieldNotFoundError) Error() string {
	return fmt.Sprintf("message %s has no field %s", e.Message, e.Field)
}

func (e *FieldNotFoundError) Is(target error) bool {
	return target == ErrFieldNotFound
}

// TypeMismatchError is returned when a value cannot be assigned to a field
// because its kind does not match the field's declared type.
type TypeMismatchError struct {
	Field string
	// Expected describes what the field accepts, such as "int32" or
	// "message foo.Bar".
	Expected string
	// Actual describes the value that was supplied.
	Actual string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("field %s requires %s; got %s", e.Field, e.Expected, e.Actual)
}

func (e *TypeMismatchError) Is(target error) bool {
	return target == ErrTypeMismatch
}

// WireDecodeError is returned when bytes are not a valid wire encoding of
// the requested message type.
type WireDecodeError struct {
	// Offset is the position in the input where the problem was detected.
	Offset int
	Err    error
}

func (e *WireDecodeError) Error() string {
	return fmt.Sprintf("failed to decode message at offset %d: %v", e.Offset, e.Err)
}

func (e *WireDecodeError) Unwrap() error {
	return e.Err
}

// TextParseError is returned when text format input is malformed or does
// not match the message type.
type TextParseError struct {
	Err error
}

func (e *TextParseError) Error() string {
	return fmt.Sprintf("failed to parse text format: %v", e.Err)
}

func (e *TextParseError) Unwrap() error {
	return e.Err
}

// JSONParseError is returned when JSON input is malformed or does not
// match the message type.
type JSONParseError struct {
	Err error
}

func (e *JSONParseError) Error() string {
	return fmt.Sprintf("failed to parse JSON: %v", e.Err)
}

func (e *JSONParseError) Unwrap() error {
	return e.Err
}
