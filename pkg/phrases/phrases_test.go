package phrases

import (
	"reflect"
	"testing"
)

func values(nodes []Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Value)
	}
	return out
}

func TestParsePhrases(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{"plain", "a b  c", []string{"a", "b", "c"}},
		{"quoted", `say "hello world" now`, []string{"say", "hello world", "now"}},
		{"smart quotes", "“hello there” friend", []string{"hello there", "friend"}},
		{"unterminated quote", `"hello world`, []string{`"hello`, "world"}},
		{"unterminated smart quote", "“hello world", []string{"“hello", "world"}},
		{"empty quotes", `a "" b`, []string{"a", "", "b"}},
		{"leading whitespace", "   x", []string{"x"}},
		{"empty", "", []string{}},
	}

	for _, tt := range tests {
		got := values(Parse(tt.content, Options{Quoted: true}).Phrases)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s: got %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestParseUnquoted(t *testing.T) {
	got := values(Parse(`"a b"`, Options{}).Phrases)
	want := []string{`"a`, `b"`}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestParseFlags(t *testing.T) {
	parsed := Parse("ban --SILENT bob --silentish", Options{
		Quoted:    true,
		FlagWords: []string{"--silent"},
	})

	if got := values(parsed.Phrases); !reflect.DeepEqual(got, []string{"ban", "bob", "--silentish"}) {
		t.Fatalf("phrases = %q", got)
	}
	if !parsed.HasFlag("--silent") {
		t.Fatalf("expected --silent to be found case-insensitively")
	}
	if parsed.CountFlag("--silent") != 1 {
		t.Fatalf("flag words must match whole tokens")
	}
	if len(parsed.All) != 4 {
		t.Fatalf("flags stay in All, got %d nodes", len(parsed.All))
	}
}

func TestParseFlagsIgnoredInsideQuotes(t *testing.T) {
	parsed := Parse(`"--silent please"`, Options{Quoted: true, FlagWords: []string{"--silent"}})
	if parsed.HasFlag("--silent") {
		t.Fatalf("quoted flag word must stay a phrase")
	}
	if got := values(parsed.Phrases); !reflect.DeepEqual(got, []string{"--silent please"}) {
		t.Fatalf("phrases = %q", got)
	}
}

func TestParseOptionFlags(t *testing.T) {
	opts := Options{Quoted: true, OptionFlagWords: []string{"--limit", "reason:"}}

	tests := []struct {
		content string
		value   string
		phrases []string
	}{
		{"list --limit 5 all", "5", []string{"list", "all"}},
		{"list --limit=5 all", "5", []string{"list", "all"}},
		{`kick reason:"too loud" bob`, "too loud", []string{"kick", "bob"}},
		{"list --limit", "", []string{"list"}},
	}

	for _, tt := range tests {
		parsed := Parse(tt.content, opts)
		got, ok := parsed.Option("--limit", "reason:")
		if !ok || got != tt.value {
			t.Errorf("%q: option = %q (%v), want %q", tt.content, got, ok, tt.value)
		}
		if p := values(parsed.Phrases); !reflect.DeepEqual(p, tt.phrases) {
			t.Errorf("%q: phrases = %q, want %q", tt.content, p, tt.phrases)
		}
	}
}

func TestParseMultipleOptions(t *testing.T) {
	parsed := Parse("tag --add a --add b --ADD c", Options{OptionFlagWords: []string{"--add"}})
	if got := parsed.Options("--add"); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("options = %q", got)
	}
}

func TestParseSeparator(t *testing.T) {
	parsed := Parse("red apple, green pear ,, blue", Options{Separator: ",", Quoted: true})
	want := []string{"red apple", "green pear", "blue"}
	if got := values(parsed.Phrases); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRawFromPreservesInput(t *testing.T) {
	content := `say  "hello world" --loud  now `
	parsed := Parse(content, Options{Quoted: true, FlagWords: []string{"--loud"}})

	if got := parsed.RawFrom(0); got != content {
		t.Fatalf("RawFrom(0) = %q, want %q", got, content)
	}
	second := parsed.Phrases[1]
	if got := parsed.RawFrom(second.Pos); got != `"hello world" --loud  now ` {
		t.Fatalf("RawFrom(%d) = %q", second.Pos, got)
	}
}
