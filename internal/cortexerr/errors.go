// Package cortexerr defines the closed set of error kinds CortexOS
// components raise, and the propagation helpers the engine uses to
// attach stage/task context without losing the original cause.
package cortexerr

import (
	"errors"
	"fmt"
)

// Kind is the closed set of error categories the pipeline can raise.
type Kind int

const (
	Config Kind = iota
	ProviderTransient
	ProviderPermanent
	Budget
	Tool
	Memory
	Quality
	AgentIterationLimit
	AgentInvalidResponse
	MergeConflict
	MergeOther
	Cancelled
	Timeout
	Internal
)

func (k Kind) String() string {
	switch k {
	case Config:
		return "Config"
	case ProviderTransient:
		return "Provider.transient"
	case ProviderPermanent:
		return "Provider.permanent"
	case Budget:
		return "Budget"
	case Tool:
		return "Tool"
	case Memory:
		return "Memory"
	case Quality:
		return "Quality"
	case AgentIterationLimit:
		return "Agent.iteration-limit"
	case AgentInvalidResponse:
		return "Agent.invalid-response"
	case MergeConflict:
		return "Merge.conflict"
	case MergeOther:
		return "Merge.other"
	case Cancelled:
		return "Cancelled"
	case Timeout:
		return "Timeout"
	default:
		return "Internal"
	}
}

// Error is a CortexOS domain error: a kind, a stage/task locator, and
// the wrapped underlying cause (if any).
type Error struct {
	K     Kind
	Stage string
	Task  string
	Msg   string
	Err   error
}

func New(k Kind, stage, msg string) *Error {
	return &Error{K: k, Stage: stage, Msg: msg}
}

func Wrap(k Kind, stage string, err error) *Error {
	return &Error{K: k, Stage: stage, Msg: err.Error(), Err: err}
}

func (e *Error) Error() string {
	if e.Task != "" {
		return fmt.Sprintf("%s[%s/%s]: %s", e.K, e.Stage, e.Task, e.Msg)
	}
	return fmt.Sprintf("%s[%s]: %s", e.K, e.Stage, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Kind() Kind { return e.K }

// WithTask returns a copy of e annotated with the failing task id.
func (e *Error) WithTask(taskID string) *Error {
	cp := *e
	cp.Task = taskID
	return &cp
}

// KindOf extracts the Kind of err if it is (or wraps) a *Error.
func KindOf(err error) (Kind, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.K, true
	}
	return Internal, false
}

// IsBudget reports whether err is a Budget-kind error.
func IsBudget(err error) bool {
	k, ok := KindOf(err)
	return ok && k == Budget
}

// IsCancelled reports whether err is a Cancelled-kind error.
func IsCancelled(err error) bool {
	k, ok := KindOf(err)
	return ok && k == Cancelled
}
