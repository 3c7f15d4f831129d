package phrases

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokWord tokenKind = iota
	tokWS
	tokQuote
	tokOpenQuote
	tokEndQuote
	tokFlag
	tokOption
	tokSeparator
	tokEOF
)

const (
	quote      = `"`
	openQuote  = "“"
	closeQuote = "”"
)

type token struct {
	kind  tokenKind
	value string
	// key is the configured flag word for tokFlag and tokOption.
	key string
	// glued is set on option tokens whose value follows without whitespace.
	glued bool
}

type flagWord struct {
	word   string
	option bool
}

// quote states
const (
	stateNone = iota
	stateQuote
	stateSmartQuote
)

type tokenizer struct {
	content   string
	pos       int
	state     int
	quoted    bool
	separator string
	words     []flagWord
	tokens    []token
}

func newTokenizer(content string, opts Options) *tokenizer {
	words := make([]flagWord, 0, len(opts.FlagWords)+len(opts.OptionFlagWords))
	for _, w := range opts.FlagWords {
		if w != "" {
			words = append(words, flagWord{word: w})
		}
	}
	for _, w := range opts.OptionFlagWords {
		if w != "" {
			words = append(words, flagWord{word: w, option: true})
		}
	}
	// Longest first so "--all" wins over "--a".
	sort.SliceStable(words, func(i, j int) bool {
		return len(words[i].word) > len(words[j].word)
	})

	return &tokenizer{
		content:   content,
		quoted:    opts.Quoted && opts.Separator == "",
		separator: opts.Separator,
		words:     words,
	}
}

func (t *tokenizer) tokenize() []token {
	for t.pos < len(t.content) {
		t.runOne()
	}
	t.tokens = append(t.tokens, token{kind: tokEOF})
	return t.tokens
}

func (t *tokenizer) emit(kind tokenKind, n int) token {
	tok := token{kind: kind, value: t.content[t.pos : t.pos+n]}
	t.tokens = append(t.tokens, tok)
	t.pos += n
	return tok
}

func (t *tokenizer) runOne() {
	rest := t.content[t.pos:]

	if n := whitespaceLen(rest); n > 0 {
		t.emit(tokWS, n)
		return
	}

	if t.state == stateNone && t.runFlag(rest) {
		return
	}

	if t.quoted && t.runQuote(rest) {
		return
	}

	if t.separator != "" && strings.HasPrefix(rest, t.separator) {
		t.emit(tokSeparator, len(t.separator))
		return
	}

	t.emit(tokWord, t.wordLen(rest))
}

func (t *tokenizer) runFlag(rest string) bool {
	for _, fw := range t.words {
		n := len(fw.word)
		if len(rest) < n || !strings.EqualFold(rest[:n], fw.word) {
			continue
		}
		after := rest[n:]

		if !fw.option {
			if t.atBoundary(after) {
				t.tokens = append(t.tokens, token{kind: tokFlag, value: rest[:n], key: fw.word})
				t.pos += n
				return true
			}
			continue
		}

		glued := false
		switch {
		case t.atBoundary(after):
		case endsInPunct(fw.word):
			glued = true
		case after[0] == '=':
			n++
			glued = true
		default:
			continue
		}
		t.tokens = append(t.tokens, token{kind: tokOption, value: rest[:n], key: fw.word, glued: glued})
		t.pos += n
		return true
	}
	return false
}

func (t *tokenizer) atBoundary(after string) bool {
	if after == "" {
		return true
	}
	if t.separator != "" && strings.HasPrefix(after, t.separator) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(after)
	return unicode.IsSpace(r)
}

func (t *tokenizer) runQuote(rest string) bool {
	switch t.state {
	case stateNone:
		// Unterminated quotes are plain characters.
		if strings.HasPrefix(rest, quote) && strings.Contains(rest[len(quote):], quote) {
			t.emit(tokQuote, len(quote))
			t.state = stateQuote
			return true
		}
		if strings.HasPrefix(rest, openQuote) && strings.Contains(rest[len(openQuote):], closeQuote) {
			t.emit(tokOpenQuote, len(openQuote))
			t.state = stateSmartQuote
			return true
		}
	case stateQuote:
		if strings.HasPrefix(rest, quote) {
			t.emit(tokQuote, len(quote))
			t.state = stateNone
			return true
		}
	case stateSmartQuote:
		if strings.HasPrefix(rest, closeQuote) {
			t.emit(tokEndQuote, len(closeQuote))
			t.state = stateNone
			return true
		}
	}
	return false
}

func (t *tokenizer) wordLen(rest string) int {
	for i, r := range rest {
		if unicode.IsSpace(r) {
			return atLeastOne(rest, i)
		}
		if t.separator != "" && strings.HasPrefix(rest[i:], t.separator) {
			return atLeastOne(rest, i)
		}
		switch t.state {
		case stateQuote:
			if strings.HasPrefix(rest[i:], quote) {
				return atLeastOne(rest, i)
			}
		case stateSmartQuote:
			if strings.HasPrefix(rest[i:], closeQuote) {
				return atLeastOne(rest, i)
			}
		}
	}
	return len(rest)
}

func atLeastOne(rest string, n int) int {
	if n > 0 {
		return n
	}
	_, size := utf8.DecodeRuneInString(rest)
	return size
}

func whitespaceLen(s string) int {
	for i, r := range s {
		if !unicode.IsSpace(r) {
			return i
		}
	}
	return len(s)
}

func endsInPunct(word string) bool {
	r, _ := utf8.DecodeLastRuneInString(word)
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
