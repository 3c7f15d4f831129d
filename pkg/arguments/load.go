package arguments

import (
	"fmt"
	"io"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"botframe/pkg/types"
)

// schemaFile is the YAML form of a schema:
//
//	quoted: true
//	separator: ""
//	args:
//	  - id: amount
//	    type: integer
//	    range: {min: 1, max: 100}
//	    prompt:
//	      start: How many?
//	      retries: 2
type schemaFile struct {
	Quoted    *bool      `yaml:"quoted"`
	Separator string     `yaml:"separator"`
	Args      []specFile `yaml:"args"`
}

type specFile struct {
	ID            string      `yaml:"id"`
	Match         string      `yaml:"match"`
	Type          string      `yaml:"type"`
	Choices       []string    `yaml:"choices"`
	Pattern       string      `yaml:"pattern"`
	Union         []string    `yaml:"union"`
	Range         *rangeFile  `yaml:"range"`
	Default       any         `yaml:"default"`
	Flag          []string    `yaml:"flag"`
	MultipleFlags bool        `yaml:"multiple_flags"`
	Index         *int        `yaml:"index"`
	Limit         int         `yaml:"limit"`
	Unordered     yaml.Node   `yaml:"unordered"`
	Prompt        *promptFile `yaml:"prompt"`
	Otherwise     string      `yaml:"otherwise"`
	Description   string      `yaml:"description"`
}

type rangeFile struct {
	Min       float64 `yaml:"min"`
	Max       float64 `yaml:"max"`
	Exclusive bool    `yaml:"exclusive"`
}

type promptFile struct {
	Start      string `yaml:"start"`
	Retry      string `yaml:"retry"`
	Timeout    string `yaml:"timeout"`
	Ended      string `yaml:"ended"`
	Cancel     string `yaml:"cancel"`
	Retries    *int   `yaml:"retries"`
	Time       string `yaml:"time"`
	CancelWord string `yaml:"cancel_word"`
	StopWord   string `yaml:"stop_word"`
	Optional   *bool  `yaml:"optional"`
	Infinite   *bool  `yaml:"infinite"`
	Limit      int    `yaml:"limit"`
	Breakout   *bool  `yaml:"breakout"`
}

// LoadSchema reads a YAML schema definition.
func LoadSchema(r io.Reader) ([]Spec, SchemaOptions, error) {
	var file schemaFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil && err != io.EOF {
		return nil, SchemaOptions{}, fmt.Errorf("decoding schema: %w", err)
	}

	opts := SchemaOptions{Quoted: true, Separator: file.Separator}
	if file.Quoted != nil {
		opts.Quoted = *file.Quoted
	}

	specs := make([]Spec, 0, len(file.Args))
	for _, sf := range file.Args {
		spec, err := sf.toSpec()
		if err != nil {
			return nil, SchemaOptions{}, err
		}
		specs = append(specs, spec)
	}
	return specs, opts, nil
}

func (sf specFile) toSpec() (Spec, error) {
	spec := Spec{
		ID:            sf.ID,
		Match:         Match(sf.Match),
		Default:       sf.Default,
		Flag:          sf.Flag,
		MultipleFlags: sf.MultipleFlags,
		Index:         sf.Index,
		Limit:         sf.Limit,
		Description:   sf.Description,
	}

	switch {
	case len(sf.Choices) > 0:
		spec.Type = types.Choices(sf.Choices)
	case sf.Pattern != "":
		re, err := regexp.Compile(sf.Pattern)
		if err != nil {
			return Spec{}, &SchemaError{Arg: sf.ID, Reason: "invalid pattern", Err: err}
		}
		spec.Type = types.Pattern(re)
	case len(sf.Union) > 0:
		members := make([]types.Type, 0, len(sf.Union))
		for _, name := range sf.Union {
			members = append(members, types.Name(name))
		}
		spec.Type = types.Union(members...)
	case sf.Type != "":
		spec.Type = types.Name(sf.Type)
	}

	if sf.Range != nil {
		inner := spec.Type
		if inner == nil {
			inner = types.Name("string")
		}
		if sf.Range.Exclusive {
			spec.Type = types.RangeExclusive(inner, sf.Range.Min, sf.Range.Max)
		} else {
			spec.Type = types.Range(inner, sf.Range.Min, sf.Range.Max)
		}
	}

	unordered, err := decodeUnordered(sf.ID, sf.Unordered)
	if err != nil {
		return Spec{}, err
	}
	spec.Unordered = unordered

	if sf.Otherwise != "" {
		spec.Otherwise = Say(sf.Otherwise)
	}

	if sf.Prompt != nil {
		p, err := sf.Prompt.toOptions(sf.ID)
		if err != nil {
			return Spec{}, err
		}
		spec.Prompt = p
	}
	return spec, nil
}

// decodeUnordered accepts true, a start index, or a list of indices.
func decodeUnordered(id string, node yaml.Node) (*Unordered, error) {
	if node.Kind == 0 {
		return nil, nil
	}

	var flag bool
	if err := node.Decode(&flag); err == nil {
		if flag {
			return AnyOrder(), nil
		}
		return nil, nil
	}
	var start int
	if err := node.Decode(&start); err == nil {
		return &Unordered{Start: start}, nil
	}
	var indices []int
	if err := node.Decode(&indices); err == nil {
		return &Unordered{Indices: indices}, nil
	}
	return nil, &SchemaError{Arg: id, Reason: "unordered must be a bool, an index or a list of indices"}
}

func (pf promptFile) toOptions(id string) (*PromptOptions, error) {
	p := &PromptOptions{
		Retries:    pf.Retries,
		CancelWord: pf.CancelWord,
		StopWord:   pf.StopWord,
		Optional:   pf.Optional,
		Infinite:   pf.Infinite,
		Limit:      pf.Limit,
		Breakout:   pf.Breakout,
	}
	texts := []struct {
		src string
		dst *Text
	}{
		{pf.Start, &p.Start},
		{pf.Retry, &p.Retry},
		{pf.Timeout, &p.Timeout},
		{pf.Ended, &p.Ended},
		{pf.Cancel, &p.Cancel},
	}
	for _, t := range texts {
		if t.src != "" {
			*t.dst = Say(t.src)
		}
	}
	if pf.Time != "" {
		d, err := time.ParseDuration(pf.Time)
		if err != nil {
			return nil, &SchemaError{Arg: id, Reason: "invalid prompt time", Err: err}
		}
		p.Time = d
	}
	return p, nil
}
