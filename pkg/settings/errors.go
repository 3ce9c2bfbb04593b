package settings

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrLoadDegraded         = errors.New("settings document unavailable, using an empty document")
	ErrSaveFailed           = errors.New("failed to save settings")
	ErrDeferredCommitFailed = errors.New("deferred change commit failed")
	ErrUnknownField         = errors.New("unknown settings field")
	ErrInvalidValue         = errors.New("invalid settings value")
	ErrUnknownModule        = errors.New("unknown deferred module")
)

// ModuleFailure is one deferred change that failed to commit.
type ModuleFailure struct {
	Module string
	Err    error
}

// CommitError aggregates deferred commit failures of a save whose canonical
// document was persisted.
type CommitError struct {
	Failures []ModuleFailure
}

func (e *CommitError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Module, f.Err))
	}
	return fmt.Sprintf("settings saved, but %d deferred change(s) failed: %s",
		len(e.Failures), strings.Join(parts, "; "))
}

func (e *CommitError) Is(target error) bool {
	return target == ErrDeferredCommitFailed
}

// Modules returns the names of the failed sub-modules.
func (e *CommitError) Modules() []string {
	names := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		names = append(names, f.Module)
	}
	return names
}
