package target

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes target-list construction and lookup errors.
type ErrorCode string

const (
	// ErrCodeEmptyList indicates construction from zero descriptors.
	ErrCodeEmptyList ErrorCode = "EMPTY_TARGET_LIST"

	// ErrCodeDuplicateName indicates two descriptors share a name.
	ErrCodeDuplicateName ErrorCode = "DUPLICATE_TARGET_NAME"

	// ErrCodeMalformed indicates a descriptor missing required fields.
	ErrCodeMalformed ErrorCode = "MALFORMED_DESCRIPTOR"

	// ErrCodeNotFound indicates a lookup for a name not in the list.
	ErrCodeNotFound ErrorCode = "TARGET_NOT_FOUND"
)

// Error is a build-graph construction or lookup defect. Construction
// errors are always fatal to the runtime.
type Error struct {
	Code    ErrorCode
	Message string
	Target  string // offending target name, when known
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("%s: %s (target=%s)", e.Code, e.Message, e.Target)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsNotFound reports whether err is a target lookup miss.
// Uses errors.As to handle wrapped errors.
func IsNotFound(err error) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Code == ErrCodeNotFound
	}
	return false
}
