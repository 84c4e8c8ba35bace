package dependency

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes change-list resolution and coverage defects.
type ErrorCode string

const (
	// ErrCodeOrphanedSource indicates a deleted source still covered by
	// tests while no build target references it.
	ErrCodeOrphanedSource ErrorCode = "ORPHANED_SOURCE"

	// ErrCodeUnknownTestTarget indicates coverage data naming a test
	// target absent from the build graph.
	ErrCodeUnknownTestTarget ErrorCode = "UNKNOWN_TEST_TARGET"
)

// Error is a change-list resolution or coverage consistency defect.
// Whether it aborts the sequence is decided by the caller's integrity
// failure policy.
type Error struct {
	Code    ErrorCode
	Message string
	Path    string // offending source path, when known
	Target  string // offending test target name, when known
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Path != "" && e.Target != "":
		return fmt.Sprintf("%s: %s (path=%s, target=%s)", e.Code, e.Message, e.Path, e.Target)
	case e.Path != "":
		return fmt.Sprintf("%s: %s (path=%s)", e.Code, e.Message, e.Path)
	case e.Target != "":
		return fmt.Sprintf("%s: %s (target=%s)", e.Code, e.Message, e.Target)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// IsOrphanedSource reports whether err is an orphaned-source defect.
// Uses errors.As to handle wrapped errors.
func IsOrphanedSource(err error) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == ErrCodeOrphanedSource
	}
	return false
}
