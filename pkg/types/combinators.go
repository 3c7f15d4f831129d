package types

import (
	"context"
	"fmt"
	"math/big"
	"reflect"
	"regexp"
	"strings"

	"botframe/pkg/flow"
	"botframe/pkg/platform"
)

// Choices matches one of the literals case-insensitively and returns the
// literal as declared.
type Choices []string

// Resolve implements Type.
func (c Choices) Resolve(*Registry) (Func, error) {
	choices := append(Choices(nil), c...)
	return func(_ context.Context, _ platform.Message, phrase string) (any, error) {
		for _, choice := range choices {
			if strings.EqualFold(choice, phrase) {
				return choice, nil
			}
		}
		return nil, nil
	}, nil
}

// Synonyms matches any entry of a row and returns the row's first entry.
type Synonyms [][]string

// Resolve implements Type.
func (s Synonyms) Resolve(*Registry) (Func, error) {
	rows := make([][]string, 0, len(s))
	for _, row := range s {
		if len(row) > 0 {
			rows = append(rows, append([]string(nil), row...))
		}
	}
	return func(_ context.Context, _ platform.Message, phrase string) (any, error) {
		for _, row := range rows {
			for _, entry := range row {
				if strings.EqualFold(entry, phrase) {
					return row[0], nil
				}
			}
		}
		return nil, nil
	}, nil
}

// Match is the result of a Pattern type.
type Match struct {
	// Match is the first match with its submatches.
	Match []string
	// Matches holds every match.
	Matches [][]string
}

type patternType struct {
	re *regexp.Regexp
}

// Pattern matches phrases against re.
func Pattern(re *regexp.Regexp) Type {
	return patternType{re: re}
}

func (p patternType) Resolve(*Registry) (Func, error) {
	return func(_ context.Context, _ platform.Message, phrase string) (any, error) {
		m := p.re.FindStringSubmatch(phrase)
		if m == nil {
			return nil, nil
		}
		return Match{Match: m, Matches: p.re.FindAllStringSubmatch(phrase, -1)}, nil
	}, nil
}

func resolveAll(r *Registry, ts []Type) ([]Func, error) {
	fns := make([]Func, 0, len(ts))
	for _, t := range ts {
		fn, err := r.Resolve(t)
		if err != nil {
			return nil, err
		}
		fns = append(fns, fn)
	}
	return fns, nil
}

type unionType struct {
	types []Type
}

// Union tries each type in order. The first success wins; when all fail the
// result is the last explicit fail flag, or nil.
func Union(ts ...Type) Type {
	return unionType{types: ts}
}

func (u unionType) Resolve(r *Registry) (Func, error) {
	fns, err := resolveAll(r, u.types)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, msg platform.Message, phrase string) (any, error) {
		var failure any
		for _, fn := range fns {
			res, err := fn(ctx, msg, phrase)
			if err != nil {
				return nil, err
			}
			if !IsFailure(res) {
				return res, nil
			}
			if res != nil {
				failure = res
			}
		}
		return failure, nil
	}, nil
}

type productType struct {
	types []Type
}

// Product requires every type to match the same phrase and returns the
// results as []any.
func Product(ts ...Type) Type {
	return productType{types: ts}
}

// Intersection is an alias of Product.
func Intersection(ts ...Type) Type {
	return Product(ts...)
}

func (p productType) Resolve(r *Registry) (Func, error) {
	fns, err := resolveAll(r, p.types)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, msg platform.Message, phrase string) (any, error) {
		results := make([]any, 0, len(fns))
		for _, fn := range fns {
			res, err := fn(ctx, msg, phrase)
			if err != nil {
				return nil, err
			}
			if IsFailure(res) {
				return res, nil
			}
			results = append(results, res)
		}
		return results, nil
	}, nil
}

type composeType struct {
	types       []Type
	keepFailure bool
}

// Compose pipes the phrase through each type; each step receives the
// previous result, stringified with fmt.Sprint when it is not a string, so
// structured values such as users reach the next step as text. Pipe passes
// values through unchanged. The chain stops at the first failure.
func Compose(ts ...Type) Type {
	return composeType{types: ts}
}

// ComposeWithFailure is Compose that returns the failing step's flag as is.
func ComposeWithFailure(ts ...Type) Type {
	return composeType{types: ts, keepFailure: true}
}

func (c composeType) Resolve(r *Registry) (Func, error) {
	fns, err := resolveAll(r, c.types)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, msg platform.Message, phrase string) (any, error) {
		var acc any = phrase
		for _, fn := range fns {
			in, ok := acc.(string)
			if !ok {
				in = fmt.Sprint(acc)
			}
			res, err := fn(ctx, msg, in)
			if err != nil {
				return nil, err
			}
			if IsFailure(res) {
				if c.keepFailure {
					return res, nil
				}
				return nil, nil
			}
			acc = res
		}
		return acc, nil
	}, nil
}

// ValueFunc transforms the value produced by an earlier caster. It follows
// the caster contract: nil or a fail flag rejects.
type ValueFunc func(ctx context.Context, msg platform.Message, value any) (any, error)

type pipeType struct {
	first Type
	steps []ValueFunc
}

// Pipe casts the phrase with t and hands the resolved value, not its
// string form, to each step in order. Use it instead of Compose when a
// step needs the typed result, such as a resolved user.
func Pipe(t Type, steps ...ValueFunc) Type {
	return pipeType{first: t, steps: steps}
}

func (p pipeType) Resolve(r *Registry) (Func, error) {
	fn, err := r.Resolve(p.first)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, msg platform.Message, phrase string) (any, error) {
		acc, err := fn(ctx, msg, phrase)
		if err != nil || acc == nil || IsFailure(acc) {
			return acc, err
		}
		for _, step := range p.steps {
			if acc, err = step(ctx, msg, acc); err != nil {
				return nil, err
			}
			if acc == nil || IsFailure(acc) {
				return acc, nil
			}
		}
		return acc, nil
	}, nil
}

type rangeType struct {
	inner     Type
	min, max  float64
	inclusive bool
}

// Range casts with t and rejects values outside [min, max]. Numbers,
// including *big.Int, are compared by value; strings, slices and maps by
// length.
func Range(t Type, min, max float64) Type {
	return rangeType{inner: t, min: min, max: max, inclusive: true}
}

// RangeExclusive is Range with the upper bound excluded.
func RangeExclusive(t Type, min, max float64) Type {
	return rangeType{inner: t, min: min, max: max}
}

func (rt rangeType) Resolve(r *Registry) (Func, error) {
	fn, err := r.Resolve(rt.inner)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, msg platform.Message, phrase string) (any, error) {
		res, err := fn(ctx, msg, phrase)
		if err != nil || IsFailure(res) {
			return res, err
		}
		lo, ok := compareBound(res, rt.min)
		if !ok {
			return res, nil
		}
		if lo < 0 {
			return nil, nil
		}
		hi, _ := compareBound(res, rt.max)
		if rt.inclusive && hi > 0 || !rt.inclusive && hi >= 0 {
			return nil, nil
		}
		return res, nil
	}, nil
}

// compareBound compares the measure of v with bound. Big integers are
// compared exactly.
func compareBound(v any, bound float64) (int, bool) {
	if n, ok := v.(*big.Int); ok {
		if n == nil {
			return 0, false
		}
		return new(big.Float).SetInt(n).Cmp(big.NewFloat(bound)), true
	}
	m, ok := measure(v)
	if !ok {
		return 0, false
	}
	switch {
	case m < bound:
		return -1, true
	case m > bound:
		return 1, true
	}
	return 0, true
}

func measure(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	case reflect.String:
		return float64(len([]rune(rv.String()))), true
	case reflect.Slice, reflect.Array, reflect.Map:
		return float64(rv.Len()), true
	}
	return 0, false
}

type validateType struct {
	inner Type
	pred  func(ctx context.Context, msg platform.Message, phrase string, value any) bool
}

// Validate keeps successful casts that satisfy pred.
func Validate(t Type, pred func(ctx context.Context, msg platform.Message, phrase string, value any) bool) Type {
	return validateType{inner: t, pred: pred}
}

func (v validateType) Resolve(r *Registry) (Func, error) {
	fn, err := r.Resolve(v.inner)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, msg platform.Message, phrase string) (any, error) {
		res, err := fn(ctx, msg, phrase)
		if err != nil || IsFailure(res) {
			return res, err
		}
		if !v.pred(ctx, msg, phrase, res) {
			return nil, nil
		}
		return res, nil
	}, nil
}

// Tagged is the value produced by Tagged, TaggedUnion and WithInput.
type Tagged struct {
	Tag   any
	Input string
	Value any
}

type taggedType struct {
	inner     Type
	tag       any
	withInput bool
}

// TaggedWith labels the result of t. A success becomes Tagged{Tag, Input,
// Value}; a failure becomes a fail flag carrying the same Tagged value.
func TaggedWith(t Type, tag any) Type {
	return taggedType{inner: t, tag: tag}
}

// WithInput wraps successes and failures with the original phrase.
func WithInput(t Type) Type {
	return taggedType{inner: t, withInput: true}
}

func (tt taggedType) Resolve(r *Registry) (Func, error) {
	fn, err := r.Resolve(tt.inner)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, msg platform.Message, phrase string) (any, error) {
		res, err := fn(ctx, msg, phrase)
		if err != nil {
			return nil, err
		}
		value := res
		if f, ok := flow.As(res); ok {
			value = f.Value
		}
		tagged := Tagged{Tag: tt.tag, Input: phrase, Value: value}
		if IsFailure(res) {
			return flow.Fail(tagged), nil
		}
		return tagged, nil
	}, nil
}

// TaggedUnion is Union over each type tagged with itself, so the caller can
// tell which member matched. Name members are tagged with their Name.
func TaggedUnion(ts ...Type) Type {
	members := make([]Type, 0, len(ts))
	for _, t := range ts {
		members = append(members, TaggedWith(t, t))
	}
	return Union(members...)
}
