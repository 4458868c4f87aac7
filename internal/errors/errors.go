// Package errors defines the structured error taxonomy for the pipeline.
// Each stage failure carries a Kind so the orchestrator can report which
// stage failed and whether the run can continue.
package errors

import (
	"errors"
	"fmt"
)

// Kind categorizes pipeline failures.
type Kind string

const (
	// KindSeparation: the separation tool failed or produced no stems. Fatal.
	KindSeparation Kind = "SeparationFailed"
	// KindRender: the external renderer failed for a stem. Fatal, because
	// compositing requires all four strips.
	KindRender Kind = "RenderFailed"
	// KindMetadata: probing failed; header fields degrade to placeholders.
	// Never fatal.
	KindMetadata Kind = "MetadataUnavailable"
	// KindCacheCorrupt: a cached artifact is unreadable. Treated as a miss.
	KindCacheCorrupt Kind = "CacheCorrupt"
	// KindComposition: strip geometry mismatch at compose time. Fatal, and
	// indicates an upstream bug rather than a transient condition.
	KindComposition Kind = "CompositionFailed"
)

// StageError is the base error for a pipeline stage failure.
type StageError struct {
	Kind    Kind
	Stage   string
	Message string
	Cause   error
}

func (e *StageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s: %v", e.Kind, e.Stage, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Stage, e.Message)
}

func (e *StageError) Unwrap() error { return e.Cause }

// New creates a StageError.
func New(kind Kind, stage, message string, cause error) *StageError {
	return &StageError{Kind: kind, Stage: stage, Message: message, Cause: cause}
}

// ExecError is a collaborator subprocess failure with its diagnostics.
type ExecError struct {
	StageError
	Args     []string
	ExitCode int
	Stderr   string
}

// NewExecError wraps a failed external tool invocation.
func NewExecError(kind Kind, stage string, args []string, exitCode int, stderr string, cause error) *ExecError {
	return &ExecError{
		StageError: StageError{Kind: kind, Stage: stage, Message: "external tool failed", Cause: cause},
		Args:       args,
		ExitCode:   exitCode,
		Stderr:     stderr,
	}
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("[%s] %s: exit=%d stderr=%q: %v",
		e.Kind, e.Stage, e.ExitCode, truncate(e.Stderr, 200), e.Cause)
}

// KindOf extracts the Kind from any error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind
	}
	var ee *ExecError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return ""
}

// IsFatal reports whether the pipeline must abort on err. Metadata and cache
// failures are recoverable; everything else is not.
func IsFatal(err error) bool {
	switch KindOf(err) {
	case KindMetadata, KindCacheCorrupt:
		return false
	case "":
		return true
	}
	return true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
