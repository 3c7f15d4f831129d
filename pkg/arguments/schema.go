package arguments

import (
	"context"
	"fmt"

	"botframe/pkg/flow"
	"botframe/pkg/phrases"
	"botframe/pkg/platform"
	"botframe/pkg/types"
)

// argument is a Spec with its caster resolved.
type argument struct {
	Spec
	cast types.Func
}

func compileSpec(reg *types.Registry, spec Spec) (*argument, error) {
	if spec.ID == "" {
		return nil, &SchemaError{Arg: spec.ID, Reason: "missing id"}
	}
	if spec.Match == "" {
		spec.Match = MatchPhrase
	}
	if !spec.Match.valid() {
		return nil, &SchemaError{Arg: spec.ID, Reason: fmt.Sprintf("unknown match %q", spec.Match)}
	}

	flagMode := spec.Match == MatchFlag || spec.Match == MatchOption
	if flagMode && len(spec.Flag) == 0 {
		return nil, &SchemaError{Arg: spec.ID, Reason: fmt.Sprintf("match %s requires flag words", spec.Match)}
	}
	if !flagMode && len(spec.Flag) > 0 {
		return nil, &SchemaError{Arg: spec.ID, Reason: fmt.Sprintf("match %s does not take flag words", spec.Match)}
	}
	if spec.Unordered != nil && spec.Match != MatchPhrase {
		return nil, &SchemaError{Arg: spec.ID, Reason: "unordered requires phrase match"}
	}
	if spec.Limit < 0 {
		return nil, &SchemaError{Arg: spec.ID, Reason: "negative limit"}
	}
	if spec.Index != nil && *spec.Index < 0 {
		return nil, &SchemaError{Arg: spec.ID, Reason: "negative index"}
	}

	arg := &argument{Spec: spec}
	if spec.Match != MatchFlag {
		fn, err := reg.Resolve(spec.Type)
		if err != nil {
			return nil, &SchemaError{Arg: spec.ID, Reason: "invalid type", Err: err}
		}
		arg.cast = fn
	}
	return arg, nil
}

// Step is one instruction from a Stepper.
type Step struct {
	// Spec is the next argument to resolve.
	Spec *Spec
	// Flag stops parsing immediately.
	Flag *flow.Flag
	// Args is the final value once Done.
	Args Args
	Done bool

	arg *argument
}

// Yield asks the runner to resolve spec.
func Yield(spec Spec) Step {
	return Step{Spec: &spec}
}

// Stop ends parsing with f.
func Stop(f *flow.Flag) Step {
	return Step{Flag: f}
}

// Return ends parsing with args.
func Return(args Args) Step {
	return Step{Args: args, Done: true}
}

// Stepper is a running generator. Next receives the value resolved for the
// previously yielded spec (nil on the first call).
type Stepper interface {
	Next(ctx context.Context, prev any) (Step, error)
}

// StepperFunc adapts a function to Stepper.
type StepperFunc func(ctx context.Context, prev any) (Step, error)

// Next calls f.
func (f StepperFunc) Next(ctx context.Context, prev any) (Step, error) {
	return f(ctx, prev)
}

// Generator starts a Stepper for one parse.
type Generator func(msg platform.Message, parsed *phrases.Parsed) Stepper

// StepFunc is one stage of Steps. It sees the values resolved so far and
// returns the spec to resolve next, nil to skip the stage, or a flag.
type StepFunc func(ctx context.Context, msg platform.Message, parsed *phrases.Parsed, args Args) (*Spec, *flow.Flag)

// Steps builds a Generator that runs each stage in order and returns the
// collected args.
func Steps(stages ...StepFunc) Generator {
	return func(msg platform.Message, parsed *phrases.Parsed) Stepper {
		args := Args{}
		i := 0
		var pending string

		return StepperFunc(func(ctx context.Context, prev any) (Step, error) {
			if pending != "" {
				args[pending] = prev
				pending = ""
			}
			for i < len(stages) {
				stage := stages[i]
				i++
				spec, f := stage(ctx, msg, parsed, args)
				if f != nil {
					return Stop(f), nil
				}
				if spec != nil {
					pending = spec.ID
					return Yield(*spec), nil
				}
			}
			return Return(args), nil
		})
	}
}

// SchemaOptions configure tokenization for a schema.
type SchemaOptions struct {
	Quoted    bool
	Separator string
	// FlagWords and OptionFlagWords add to the words declared by specs.
	// Generator schemas must list every word they use here.
	FlagWords       []string
	OptionFlagWords []string
	// Defaults are command-level prompt defaults.
	Defaults *PromptOptions
}

// Schema is a compiled argument definition.
type Schema struct {
	reg  *types.Registry
	args []*argument
	gen  Generator
	opts SchemaOptions
}

// Compile validates specs and resolves their types. Unordered specs are
// moved after every ordered spec, keeping their relative order.
func Compile(reg *types.Registry, specs []Spec, opts SchemaOptions) (*Schema, error) {
	opts.FlagWords = append([]string(nil), opts.FlagWords...)
	opts.OptionFlagWords = append([]string(nil), opts.OptionFlagWords...)

	seen := make(map[string]bool, len(specs))
	var ordered, unordered []*argument

	for _, spec := range specs {
		arg, err := compileSpec(reg, spec)
		if err != nil {
			return nil, err
		}
		if seen[arg.ID] {
			return nil, &SchemaError{Arg: arg.ID, Reason: "duplicate id"}
		}
		seen[arg.ID] = true

		switch arg.Match {
		case MatchFlag:
			opts.FlagWords = append(opts.FlagWords, arg.Flag...)
		case MatchOption:
			opts.OptionFlagWords = append(opts.OptionFlagWords, arg.Flag...)
		}

		if arg.Unordered != nil {
			unordered = append(unordered, arg)
		} else {
			ordered = append(ordered, arg)
		}
	}

	return &Schema{
		reg:  reg,
		args: append(ordered, unordered...),
		opts: opts,
	}, nil
}

// CompileGenerator wraps a generator. Yielded specs are validated when they
// are yielded.
func CompileGenerator(reg *types.Registry, gen Generator, opts SchemaOptions) *Schema {
	return &Schema{reg: reg, gen: gen, opts: opts}
}

// Specs returns the compiled static specs in run order.
func (s *Schema) Specs() []Spec {
	out := make([]Spec, 0, len(s.args))
	for _, a := range s.args {
		out = append(out, a.Spec)
	}
	return out
}

// IsGenerator reports whether the schema is generator based.
func (s *Schema) IsGenerator() bool {
	return s.gen != nil
}

func (s *Schema) parseOptions() phrases.Options {
	return phrases.Options{
		FlagWords:       s.opts.FlagWords,
		OptionFlagWords: s.opts.OptionFlagWords,
		Quoted:          s.opts.Quoted,
		Separator:       s.opts.Separator,
	}
}

func (s *Schema) stepper(msg platform.Message, parsed *phrases.Parsed) Stepper {
	if s.gen != nil {
		return s.gen(msg, parsed)
	}
	return &staticStepper{args: s.args, out: Args{}}
}

type staticStepper struct {
	args []*argument
	i    int
	out  Args
	last *argument
}

func (s *staticStepper) Next(_ context.Context, prev any) (Step, error) {
	if s.last != nil {
		s.out[s.last.ID] = prev
	}
	if s.i >= len(s.args) {
		return Return(s.out), nil
	}
	s.last = s.args[s.i]
	s.i++
	return Step{arg: s.last}, nil
}
