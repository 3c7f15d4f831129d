// Package arguments turns command input into typed argument values.
//
// A schema is either a static list of Spec values or a Generator that yields
// specs one at a time. Runner.Run tokenizes the input, resolves every spec
// (casting, defaults, prompts) and returns either the argument map or a
// control-flow flag.
package arguments

import (
	"context"
	"fmt"
	"time"

	"botframe/pkg/flow"
	"botframe/pkg/platform"
	"botframe/pkg/types"
)

// Match selects which part of the input a spec consumes.
type Match string

const (
	// MatchPhrase takes the next unconsumed phrase.
	MatchPhrase Match = "phrase"
	// MatchFlag is true when one of the flag words is present.
	MatchFlag Match = "flag"
	// MatchOption takes the value following an option flag word.
	MatchOption Match = "option"
	// MatchRest joins the remaining phrases.
	MatchRest Match = "rest"
	// MatchSeparate casts each remaining phrase on its own.
	MatchSeparate Match = "separate"
	// MatchText joins every phrase, ignoring flags.
	MatchText Match = "text"
	// MatchContent is the raw input including flags.
	MatchContent Match = "content"
	// MatchRestContent is the raw input from the current position.
	MatchRestContent Match = "restContent"
	// MatchNone consumes nothing; only defaults and prompts apply.
	MatchNone Match = "none"
)

func (m Match) valid() bool {
	switch m {
	case MatchPhrase, MatchFlag, MatchOption, MatchRest, MatchSeparate,
		MatchText, MatchContent, MatchRestContent, MatchNone:
		return true
	}
	return false
}

// Unordered lets a phrase spec take any unconsumed phrase whose cast
// succeeds. Candidates are Indices when set, otherwise every phrase from
// Start on. The first phrase that casts wins; there is no backtracking.
type Unordered struct {
	Start   int
	Indices []int
}

// AnyOrder matches against every phrase.
func AnyOrder() *Unordered {
	return &Unordered{}
}

// Failure describes a failed cast handed to DefaultFunc.
type Failure struct {
	Phrase string
	// Value is nil or the caster's fail flag.
	Value any
}

// DefaultFunc computes a default when the cast failed.
type DefaultFunc func(ctx context.Context, msg platform.Message, failure Failure) (any, error)

// PromptData is passed to prompt and otherwise texts.
type PromptData struct {
	// RetryCount starts at 1; it starts at 2 when the command input already
	// held an invalid phrase.
	RetryCount int
	Infinite   bool
	// Message is the latest input message.
	Message platform.Message
	Phrase  string
	Failure any
}

// Text produces a user-facing text. An empty string sends nothing.
type Text func(ctx context.Context, msg platform.Message, data PromptData) (string, error)

// Say returns a constant Text.
func Say(s string) Text {
	return func(context.Context, platform.Message, PromptData) (string, error) {
		return s, nil
	}
}

// Sayf returns a Text formatted with the failed phrase.
func Sayf(format string) Text {
	return func(_ context.Context, _ platform.Message, data PromptData) (string, error) {
		return fmt.Sprintf(format, data.Phrase), nil
	}
}

// PromptOptions configures the prompt loop. Nil or zero fields inherit from
// the command's ArgumentDefaults, then from the handler defaults.
type PromptOptions struct {
	Start   Text
	Retry   Text
	Timeout Text
	Ended   Text
	Cancel  Text

	Retries    *int
	Time       time.Duration
	CancelWord string
	StopWord   string
	Optional   *bool
	Infinite   *bool
	// Limit caps infinite prompts; 0 is unlimited.
	Limit    int
	Breakout *bool
}

// Int returns a pointer to n.
func Int(n int) *int { return &n }

// Bool returns a pointer to b.
func Bool(b bool) *bool { return &b }

// DefaultPromptOptions returns the built-in prompt defaults.
func DefaultPromptOptions() PromptOptions {
	return PromptOptions{
		Retry:      Say("That is not valid input, please try again."),
		Timeout:    Say("Time ran out, command has been cancelled."),
		Ended:      Say("Too many retries, command has been cancelled."),
		Cancel:     Say("Command has been cancelled."),
		Retries:    Int(1),
		Time:       30 * time.Second,
		CancelWord: "cancel",
		StopWord:   "stop",
		Optional:   Bool(false),
		Infinite:   Bool(false),
		Breakout:   Bool(true),
	}
}

// Merge returns p with the set fields of over applied on top.
func (p PromptOptions) Merge(over *PromptOptions) PromptOptions {
	if over == nil {
		return p
	}
	if over.Start != nil {
		p.Start = over.Start
	}
	if over.Retry != nil {
		p.Retry = over.Retry
	}
	if over.Timeout != nil {
		p.Timeout = over.Timeout
	}
	if over.Ended != nil {
		p.Ended = over.Ended
	}
	if over.Cancel != nil {
		p.Cancel = over.Cancel
	}
	if over.Retries != nil {
		p.Retries = over.Retries
	}
	if over.Time > 0 {
		p.Time = over.Time
	}
	if over.CancelWord != "" {
		p.CancelWord = over.CancelWord
	}
	if over.StopWord != "" {
		p.StopWord = over.StopWord
	}
	if over.Optional != nil {
		p.Optional = over.Optional
	}
	if over.Infinite != nil {
		p.Infinite = over.Infinite
	}
	if over.Limit > 0 {
		p.Limit = over.Limit
	}
	if over.Breakout != nil {
		p.Breakout = over.Breakout
	}
	return p
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

// Spec declares one argument.
type Spec struct {
	ID    string
	Match Match
	// Type defaults to "string".
	Type types.Type

	Default     any
	DefaultFunc DefaultFunc

	// Flag holds the flag words for MatchFlag and MatchOption.
	Flag []string
	// MultipleFlags counts flags, or collects every option value.
	MultipleFlags bool

	// Index pins the phrase (or All node for content modes) to read from.
	Index *int
	// Limit caps how many phrases rest, separate, text and content read.
	Limit int

	Unordered *Unordered
	Prompt    *PromptOptions
	// Otherwise is sent instead of prompting when the cast fails; the
	// command is then cancelled.
	Otherwise Text

	Description string
}

func (s Spec) hasDefault() bool {
	return s.Default != nil || s.DefaultFunc != nil
}

// Args is the resolved argument map.
type Args map[string]any

// Has reports whether id was resolved to a non-nil value.
func (a Args) Has(id string) bool {
	return a[id] != nil
}

// String returns a[id] as a string.
func (a Args) String(id string) string {
	s, _ := a[id].(string)
	return s
}

// Int returns a[id] as an int.
func (a Args) Int(id string) int {
	switch v := a[id].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

// Bool returns a[id] as a bool.
func (a Args) Bool(id string) bool {
	b, _ := a[id].(bool)
	return b
}

// Result is either Args or a Flag, never both.
type Result struct {
	Args Args
	Flag *flow.Flag
}

// SchemaError reports an invalid argument spec.
type SchemaError struct {
	Arg    string
	Reason string
	Err    error
}

func (e *SchemaError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("argument %q: %s: %v", e.Arg, e.Reason, e.Err)
	}
	return fmt.Sprintf("argument %q: %s", e.Arg, e.Reason)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}
