package arguments

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"botframe/pkg/flow"
	"botframe/pkg/logger"
	"botframe/pkg/phrases"
	"botframe/pkg/platform"
	"botframe/pkg/prompt"
	"botframe/pkg/types"
)

// Runner resolves schemas against input.
type Runner struct {
	log     *logger.Logger
	prompts *prompt.Hub

	mu       sync.RWMutex
	defaults PromptOptions
	isCmd    func(ctx context.Context, msg platform.Message) bool
}

// NewRunner creates a runner. Prompts open sessions on hub.
func NewRunner(log *logger.Logger, hub *prompt.Hub, defaults PromptOptions) *Runner {
	return &Runner{
		log:      log.Named("arguments"),
		prompts:  hub,
		defaults: DefaultPromptOptions().Merge(&defaults),
	}
}

// SetDefaults replaces the handler-level prompt defaults.
func (r *Runner) SetDefaults(defaults PromptOptions) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaults = DefaultPromptOptions().Merge(&defaults)
}

// SetBreakout sets the check used by prompt breakout: a reply for which
// isCommand returns true ends the prompt with a retry flag.
func (r *Runner) SetBreakout(isCommand func(ctx context.Context, msg platform.Message) bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.isCmd = isCommand
}

func (r *Runner) promptOptions(schema *Schema, arg *argument) PromptOptions {
	r.mu.RLock()
	base := r.defaults
	r.mu.RUnlock()
	return base.Merge(schema.opts.Defaults).Merge(arg.Prompt)
}

func (r *Runner) looksLikeCommand(ctx context.Context, msg platform.Message) bool {
	r.mu.RLock()
	fn := r.isCmd
	r.mu.RUnlock()
	return fn != nil && fn(ctx, msg)
}

// state tracks phrase consumption during one parse.
type state struct {
	parsed      *phrases.Parsed
	used        map[int]bool
	phraseIndex int
}

func (s *state) normalize() {
	for s.used[s.phraseIndex] {
		s.phraseIndex++
	}
}

func (s *state) current() int {
	s.normalize()
	return s.phraseIndex
}

func (s *state) consume(i int) {
	s.used[i] = true
	s.normalize()
}

// allIndex maps the current phrase to its position in parsed.All.
func (s *state) allIndex() int {
	i := s.current()
	if i < len(s.parsed.Phrases) {
		return s.parsed.Phrases[i].Pos
	}
	return len(s.parsed.All)
}

// Run parses content against schema.
func (r *Runner) Run(ctx context.Context, msg platform.Message, content string, schema *Schema) (Result, error) {
	parsed := phrases.Parse(content, schema.parseOptions())
	st := &state{parsed: parsed, used: make(map[int]bool)}
	stepper := schema.stepper(msg, parsed)

	var prev any
	for {
		step, err := stepper.Next(ctx, prev)
		if err != nil {
			return Result{}, err
		}
		if step.Flag != nil {
			return r.flagResult(step.Flag, st), nil
		}
		if step.Done {
			if step.Args == nil {
				step.Args = Args{}
			}
			return Result{Args: step.Args}, nil
		}

		arg := step.arg
		if arg == nil {
			if step.Spec == nil {
				return Result{}, fmt.Errorf("generator yielded an empty step")
			}
			if arg, err = compileSpec(schema.reg, *step.Spec); err != nil {
				return Result{}, err
			}
		}

		value, err := r.runOne(ctx, msg, st, schema, arg)
		if err != nil {
			return Result{}, err
		}
		if f, ok := flow.As(value); ok {
			r.log.Debug("Argument parse stopped",
				zap.String("argument", arg.ID),
				zap.String("flag", f.String()))
			return r.flagResult(f, st), nil
		}
		prev = value
	}
}

func (r *Runner) flagResult(f *flow.Flag, st *state) Result {
	if f.Type == flow.TypeContinue && f.Rest == "" {
		f.Rest = strings.TrimSpace(st.parsed.RawFrom(st.allIndex()))
	}
	return Result{Flag: f}
}

func (r *Runner) runOne(ctx context.Context, msg platform.Message, st *state, schema *Schema, arg *argument) (any, error) {
	switch arg.Match {
	case MatchFlag:
		return r.runFlag(st, arg), nil
	case MatchOption:
		return r.runOption(ctx, msg, st, schema, arg)
	case MatchRest:
		return r.runRest(ctx, msg, st, schema, arg)
	case MatchSeparate:
		return r.runSeparate(ctx, msg, st, schema, arg)
	case MatchText:
		return r.runText(ctx, msg, st, schema, arg)
	case MatchContent:
		return r.runContent(ctx, msg, st, schema, arg)
	case MatchRestContent:
		return r.runRestContent(ctx, msg, st, schema, arg)
	case MatchNone:
		return r.process(ctx, msg, schema, arg, "")
	default:
		return r.runPhrase(ctx, msg, st, schema, arg)
	}
}

func (r *Runner) runPhrase(ctx context.Context, msg platform.Message, st *state, schema *Schema, arg *argument) (any, error) {
	if arg.Unordered != nil {
		return r.runUnordered(ctx, msg, st, schema, arg)
	}

	list := st.parsed.Phrases
	var i int
	if arg.Index != nil {
		i = *arg.Index
	} else {
		i = st.current()
		st.consume(i)
	}

	phrase := ""
	if i < len(list) {
		phrase = list[i].Value
	}
	return r.process(ctx, msg, schema, arg, phrase)
}

func (r *Runner) runUnordered(ctx context.Context, msg platform.Message, st *state, schema *Schema, arg *argument) (any, error) {
	list := st.parsed.Phrases

	indices := arg.Unordered.Indices
	if indices == nil {
		for i := arg.Unordered.Start; i < len(list); i++ {
			indices = append(indices, i)
		}
	}

	for _, i := range indices {
		if i < 0 || i >= len(list) || st.used[i] {
			continue
		}
		// Plain cast: no prompts while probing.
		res, err := arg.cast(ctx, msg, list[i].Value)
		if err != nil {
			return nil, fmt.Errorf("casting argument %s: %w", arg.ID, err)
		}
		if !types.IsFailure(res) {
			st.consume(i)
			return res, nil
		}
	}

	return r.process(ctx, msg, schema, arg, "")
}

// selectPhrases picks phrases for rest and separate, marking them consumed
// when no explicit index is set.
func (r *Runner) selectPhrases(st *state, arg *argument) []phrases.Node {
	all := st.parsed.Phrases
	var start int
	if arg.Index != nil {
		start = *arg.Index
	} else {
		start = st.current()
	}

	var out []phrases.Node
	for i := start; i < len(all); i++ {
		if arg.Limit > 0 && len(out) >= arg.Limit {
			break
		}
		if arg.Index == nil {
			if st.used[i] {
				continue
			}
			st.used[i] = true
		}
		out = append(out, all[i])
	}
	st.normalize()
	return out
}

func joinRaw(nodes []phrases.Node) string {
	var b strings.Builder
	for _, n := range nodes {
		b.WriteString(n.Raw)
	}
	return strings.TrimSpace(b.String())
}

func (r *Runner) runRest(ctx context.Context, msg platform.Message, st *state, schema *Schema, arg *argument) (any, error) {
	return r.process(ctx, msg, schema, arg, joinRaw(r.selectPhrases(st, arg)))
}

func (r *Runner) runSeparate(ctx context.Context, msg platform.Message, st *state, schema *Schema, arg *argument) (any, error) {
	selected := r.selectPhrases(st, arg)
	if len(selected) == 0 {
		return r.process(ctx, msg, schema, arg, "")
	}

	values := make([]any, 0, len(selected))
	for _, p := range selected {
		v, err := r.process(ctx, msg, schema, arg, p.Value)
		if err != nil {
			return nil, err
		}
		if _, ok := flow.As(v); ok {
			return v, nil
		}
		values = append(values, v)
	}
	return values, nil
}

func (r *Runner) runText(ctx context.Context, msg platform.Message, st *state, schema *Schema, arg *argument) (any, error) {
	start := 0
	if arg.Index != nil {
		start = *arg.Index
	}
	return r.process(ctx, msg, schema, arg, joinRaw(window(st.parsed.Phrases, start, arg.Limit)))
}

func (r *Runner) runContent(ctx context.Context, msg platform.Message, st *state, schema *Schema, arg *argument) (any, error) {
	start := 0
	if arg.Index != nil {
		start = *arg.Index
	}
	return r.process(ctx, msg, schema, arg, joinRaw(window(st.parsed.All, start, arg.Limit)))
}

func (r *Runner) runRestContent(ctx context.Context, msg platform.Message, st *state, schema *Schema, arg *argument) (any, error) {
	var start int
	if arg.Index != nil {
		start = *arg.Index
	} else {
		start = st.allIndex()
	}

	nodes := window(st.parsed.All, start, arg.Limit)
	if arg.Index == nil && len(nodes) > 0 {
		last := nodes[len(nodes)-1].Pos
		for i, p := range st.parsed.Phrases {
			if p.Pos >= start && p.Pos <= last {
				st.used[i] = true
			}
		}
		st.normalize()
	}
	return r.process(ctx, msg, schema, arg, joinRaw(nodes))
}

func window(nodes []phrases.Node, start, limit int) []phrases.Node {
	if start >= len(nodes) {
		return nil
	}
	nodes = nodes[start:]
	if limit > 0 && limit < len(nodes) {
		nodes = nodes[:limit]
	}
	return nodes
}

func (r *Runner) runFlag(st *state, arg *argument) any {
	if arg.MultipleFlags {
		return st.parsed.CountFlag(arg.Flag...)
	}
	found := st.parsed.HasFlag(arg.Flag...)
	// A true default inverts the flag.
	if b, ok := arg.Default.(bool); ok && b {
		return !found
	}
	return found
}

func (r *Runner) runOption(ctx context.Context, msg platform.Message, st *state, schema *Schema, arg *argument) (any, error) {
	if arg.MultipleFlags {
		values := st.parsed.Options(arg.Flag...)
		if arg.Limit > 0 && len(values) > arg.Limit {
			values = values[:arg.Limit]
		}
		out := make([]any, 0, len(values))
		for _, value := range values {
			v, err := r.process(ctx, msg, schema, arg, value)
			if err != nil {
				return nil, err
			}
			if _, ok := flow.As(v); ok {
				return v, nil
			}
			out = append(out, v)
		}
		return out, nil
	}

	value, _ := st.parsed.Option(arg.Flag...)
	return r.process(ctx, msg, schema, arg, value)
}
