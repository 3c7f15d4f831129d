// Package flow defines Flag, the control-flow sentinel passed between type
// casters, the argument runner and the command handler.
//
// A Flag is never a legitimate argument value. Casters return Fail to reject
// a phrase with diagnostic data; the runner returns Cancel, Retry or Continue
// to stop parsing early.
package flow

import (
	"fmt"

	"botframe/pkg/platform"
)

// Type is the kind of control flow a Flag signals.
type Type string

const (
	TypeCancel   Type = "cancel"
	TypeRetry    Type = "retry"
	TypeFail     Type = "fail"
	TypeContinue Type = "continue"
)

// Well-known reasons attached to cancel and fail flags.
const (
	ReasonCancel    = "cancel"
	ReasonTimeout   = "timeout"
	ReasonEnded     = "ended"
	ReasonOtherwise = "otherwise"
	ReasonInPrompt  = "inPrompt"
	ReasonClosed    = "closed"
	ReasonRemoved   = "removed"
)

// Flag is a tagged control-flow value.
type Flag struct {
	Type   Type
	Reason string

	// Value carries failure data for TypeFail.
	Value any

	// Message is the message to re-handle for TypeRetry.
	Message platform.Message

	// Command, Ignore and Rest describe a TypeContinue hand-off.
	Command string
	Ignore  bool
	Rest    string
}

// Cancel stops the command without a reason.
func Cancel() *Flag {
	return &Flag{Type: TypeCancel}
}

// CancelWith stops the command with a reason.
func CancelWith(reason string) *Flag {
	return &Flag{Type: TypeCancel, Reason: reason}
}

// Retry re-dispatches msg as a new command invocation.
func Retry(msg platform.Message) *Flag {
	return &Flag{Type: TypeRetry, Message: msg}
}

// Fail marks a cast as failed, carrying value for diagnostics.
func Fail(value any) *Flag {
	return &Flag{Type: TypeFail, Value: value}
}

// FailWith is Fail with a reason.
func FailWith(reason string, value any) *Flag {
	return &Flag{Type: TypeFail, Reason: reason, Value: value}
}

// Continue hands the rest of the input to another command. With ignore set,
// the target skips post inhibitors, cooldowns and locks.
func Continue(command string, ignore bool, rest string) *Flag {
	return &Flag{Type: TypeContinue, Command: command, Ignore: ignore, Rest: rest}
}

// As unwraps v into a Flag.
func As(v any) (*Flag, bool) {
	f, ok := v.(*Flag)
	return f, ok && f != nil
}

// Is reports whether v is a Flag of type t.
func Is(v any, t Type) bool {
	f, ok := As(v)
	return ok && f.Type == t
}

func (f *Flag) String() string {
	switch f.Type {
	case TypeContinue:
		return fmt.Sprintf("continue(%s)", f.Command)
	case TypeFail, TypeCancel:
		if f.Reason != "" {
			return fmt.Sprintf("%s(%s)", f.Type, f.Reason)
		}
	}
	return string(f.Type)
}
