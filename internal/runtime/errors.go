package runtime

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes catastrophic runtime failures.
type ErrorCode string

const (
	// ErrCodeConstruction indicates the runtime could not be built from
	// its configuration.
	ErrCodeConstruction ErrorCode = "CONSTRUCTION"

	// ErrCodeDataLoad indicates the impact analysis data file exists
	// but could not be loaded consistently.
	ErrCodeDataLoad ErrorCode = "DATA_LOAD"

	// ErrCodeMissingCoverage indicates a passing instrumented test run
	// produced no coverage artifact.
	ErrCodeMissingCoverage ErrorCode = "MISSING_COVERAGE"

	// ErrCodeCoveragePersist indicates the updated coverage index could
	// not be written to the data file.
	ErrCodeCoveragePersist ErrorCode = "COVERAGE_PERSIST"
)

// Error is a catastrophic runtime failure: construction defects,
// integrity aborts and persistence failures under an abort policy.
type Error struct {
	Code    ErrorCode
	Message string
	Target  string // offending test target, when known
	Err     error  // underlying cause, when any
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Target != "" {
		msg = fmt.Sprintf("%s (target=%s)", msg, e.Target)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// IsMissingCoverage reports whether err is a missing-coverage defect.
// Uses errors.As to handle wrapped errors.
func IsMissingCoverage(err error) bool {
	var re *Error
	if errors.As(err, &re) {
		return re.Code == ErrCodeMissingCoverage
	}
	return false
}
