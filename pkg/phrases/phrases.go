// Package phrases splits command input into phrases, flags and option flags.
//
// Phrases are whitespace delimited unless quoted with "..." or “...”, or,
// when a separator is configured, delimited by that separator instead.
// Flag and option words are matched as whole tokens, case-insensitively,
// anywhere outside quotes.
package phrases

import "strings"

// Kind is the node kind.
type Kind int

const (
	KindPhrase Kind = iota
	KindFlag
	KindOptionFlag
)

// Node is one parsed element. Raw keeps surrounding whitespace and quotes.
type Node struct {
	Kind Kind
	// Key is the configured flag word for flags and option flags.
	Key   string
	Value string
	Raw   string
	// Pos is the node's index in Parsed.All.
	Pos int
}

// Options controls tokenization.
type Options struct {
	FlagWords       []string
	OptionFlagWords []string
	Quoted          bool
	Separator       string
}

// Parsed is the result of Parse.
type Parsed struct {
	All         []Node
	Phrases     []Node
	Flags       []Node
	OptionFlags []Node
}

// Parse tokenizes content.
func Parse(content string, opts Options) *Parsed {
	p := &parser{
		tokens:    newTokenizer(content, opts).tokenize(),
		separated: opts.Separator != "",
		out:       &Parsed{},
	}
	p.parse()
	return p.out
}

// HasFlag reports whether any of the flag words occurred.
func (p *Parsed) HasFlag(names ...string) bool {
	return p.CountFlag(names...) > 0
}

// CountFlag counts occurrences of the flag words.
func (p *Parsed) CountFlag(names ...string) int {
	n := 0
	for _, f := range p.Flags {
		if matchesAny(f.Key, names) {
			n++
		}
	}
	return n
}

// Option returns the value of the first matching option flag.
func (p *Parsed) Option(names ...string) (string, bool) {
	for _, f := range p.OptionFlags {
		if matchesAny(f.Key, names) {
			return f.Value, true
		}
	}
	return "", false
}

// Options returns the values of every matching option flag, in input order.
func (p *Parsed) Options(names ...string) []string {
	var values []string
	for _, f := range p.OptionFlags {
		if matchesAny(f.Key, names) {
			values = append(values, f.Value)
		}
	}
	return values
}

// RawFrom joins the raw text of All[pos:].
func (p *Parsed) RawFrom(pos int) string {
	if pos < 0 {
		pos = 0
	}
	var b strings.Builder
	for i := pos; i < len(p.All); i++ {
		b.WriteString(p.All[i].Raw)
	}
	return b.String()
}

func matchesAny(key string, names []string) bool {
	for _, n := range names {
		if strings.EqualFold(key, n) {
			return true
		}
	}
	return false
}

type parser struct {
	tokens    []token
	pos       int
	separated bool
	out       *Parsed
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) check(kinds ...tokenKind) bool {
	k := p.peek().kind
	for _, want := range kinds {
		if k == want {
			return true
		}
	}
	return false
}

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) parse() {
	for !p.check(tokEOF) {
		p.runArgument()
	}
}

func (p *parser) add(n Node) {
	n.Pos = len(p.out.All)
	p.out.All = append(p.out.All, n)
	switch n.Kind {
	case KindPhrase:
		p.out.Phrases = append(p.out.Phrases, n)
	case KindFlag:
		p.out.Flags = append(p.out.Flags, n)
	case KindOptionFlag:
		p.out.OptionFlags = append(p.out.OptionFlags, n)
	}
}

func (p *parser) runArgument() {
	leading := ""
	if p.check(tokWS) {
		leading = p.next().value
	}

	if p.check(tokEOF) {
		if n := len(p.out.All); n > 0 {
			p.out.All[n-1].Raw += leading
		}
		return
	}

	var node Node
	if p.check(tokFlag, tokOption) {
		node = p.parseFlag()
	} else {
		var ok bool
		node, ok = p.parsePhrase()
		if !ok {
			// Stray token: keep it in All so raw text is preserved.
			node = Node{Kind: KindPhrase, Value: p.next().value}
			node.Raw = node.Value
		}
	}
	node.Raw = leading + node.Raw

	if !p.separated && p.check(tokWS) {
		node.Raw += p.next().value
	}

	if p.separated && node.Kind == KindPhrase && node.Value == "" {
		if n := len(p.out.All); n > 0 {
			p.out.All[n-1].Raw += node.Raw
		}
		return
	}
	p.add(node)
}

func (p *parser) parseFlag() Node {
	tok := p.next()
	if tok.kind == tokFlag {
		return Node{Kind: KindFlag, Key: tok.key, Value: tok.value, Raw: tok.value}
	}

	node := Node{Kind: KindOptionFlag, Key: tok.key, Raw: tok.value}
	ws := ""
	if !tok.glued && p.check(tokWS) {
		ws = p.next().value
	}
	if phrase, ok := p.parsePhrase(); ok {
		node.Value = phrase.Value
		node.Raw += ws + phrase.Raw
	} else {
		node.Raw += ws
	}
	return node
}

func (p *parser) parsePhrase() (Node, bool) {
	if p.separated {
		return p.parseSeparated()
	}

	switch {
	case p.check(tokQuote):
		return p.parseQuoted(tokQuote), true
	case p.check(tokOpenQuote):
		return p.parseQuoted(tokEndQuote), true
	case p.check(tokWord):
		w := p.next().value
		return Node{Kind: KindPhrase, Value: w, Raw: w}, true
	}
	return Node{}, false
}

func (p *parser) parseQuoted(closer tokenKind) Node {
	open := p.next()
	var value strings.Builder
	raw := open.value

	for p.check(tokWord, tokWS) {
		tok := p.next()
		value.WriteString(tok.value)
		raw += tok.value
	}
	if p.check(closer) {
		raw += p.next().value
	}
	return Node{Kind: KindPhrase, Value: value.String(), Raw: raw}
}

func (p *parser) parseSeparated() (Node, bool) {
	if !p.check(tokWord, tokWS, tokSeparator) {
		return Node{}, false
	}

	var value strings.Builder
	raw := ""
	for p.check(tokWord, tokWS) {
		tok := p.next()
		value.WriteString(tok.value)
		raw += tok.value
	}
	if p.check(tokSeparator) {
		raw += p.next().value
	}
	return Node{Kind: KindPhrase, Value: strings.TrimSpace(value.String()), Raw: raw}, true
}
