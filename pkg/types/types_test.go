package types

import (
	"context"
	"errors"
	"math/big"
	"reflect"
	"regexp"
	"testing"
	"time"

	"botframe/pkg/flow"
	"botframe/pkg/platform"
	"botframe/pkg/platform/platformtest"
)

func cast(t *testing.T, r *Registry, typ Type, phrase string) any {
	t.Helper()
	res, err := r.Cast(context.Background(), typ, platformtest.NewMessage(phrase), phrase)
	if err != nil {
		t.Fatalf("cast %q: %v", phrase, err)
	}
	return res
}

func TestRegistryReturnsSameFuncUntilReplaced(t *testing.T) {
	r := NewRegistry()
	fn := Func(func(context.Context, platform.Message, string) (any, error) { return "a", nil })
	r.Add("custom", fn)

	first, err := Name("custom").Resolve(r)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	second, _ := r.Get("custom")
	if reflect.ValueOf(first).Pointer() != reflect.ValueOf(fn).Pointer() ||
		reflect.ValueOf(second).Pointer() != reflect.ValueOf(fn).Pointer() {
		t.Fatalf("expected the registered func to be returned unchanged")
	}

	replacement := Func(func(context.Context, platform.Message, string) (any, error) { return "b", nil })
	r.Add("custom", replacement)
	third, _ := r.Get("custom")
	if reflect.ValueOf(third).Pointer() != reflect.ValueOf(replacement).Pointer() {
		t.Fatalf("expected replacement after re-registration")
	}
}

func TestUnknownTypeFailsAtResolve(t *testing.T) {
	r := NewRegistry()
	_, err := Union(Name("integer"), Name("nope")).Resolve(r)

	var unknown *UnknownTypeError
	if !errors.As(err, &unknown) || unknown.Name != "nope" {
		t.Fatalf("expected UnknownTypeError for nope, got %v", err)
	}
}

func TestUnionFirstSuccessWins(t *testing.T) {
	r := NewRegistry()
	a := Func(func(context.Context, platform.Message, string) (any, error) { return "from-a", nil })
	b := Func(func(context.Context, platform.Message, string) (any, error) { return "from-b", nil })

	for _, phrase := range []string{"x", "42", "anything at all"} {
		if got := cast(t, r, Union(a, b), phrase); got != "from-a" {
			t.Fatalf("union(%q) = %v, want from-a", phrase, got)
		}
	}

	if got := cast(t, r, Union(Name("integer"), Name("string")), "7"); got != 7 {
		t.Fatalf("union integer|string = %v", got)
	}
	if got := cast(t, r, Union(Name("integer"), Name("string")), "seven"); got != "seven" {
		t.Fatalf("union fallthrough = %v", got)
	}
}

func TestUnionKeepsLastExplicitFailure(t *testing.T) {
	r := NewRegistry()
	failing := Func(func(context.Context, platform.Message, string) (any, error) { return flow.Fail("bad"), nil })

	got := cast(t, r, Union(failing, Name("integer")), "x")
	f, ok := flow.As(got)
	if !ok || f.Type != flow.TypeFail || f.Value != "bad" {
		t.Fatalf("expected fail flag, got %v", got)
	}

	if got := cast(t, r, Union(Name("integer"), Name("number")), "x"); got != nil {
		t.Fatalf("expected nil when every member returns nil, got %v", got)
	}
}

func TestRangeBounds(t *testing.T) {
	r := NewRegistry()
	typ := Range(Name("integer"), 1, 10)

	tests := []struct {
		phrase string
		want   any
	}{
		{"0", nil},
		{"1", 1},
		{"10", 10},
		{"11", nil},
	}
	for _, tt := range tests {
		if got := cast(t, r, typ, tt.phrase); got != tt.want {
			t.Errorf("range(%q) = %v, want %v", tt.phrase, got, tt.want)
		}
	}

	if got := cast(t, r, RangeExclusive(Name("integer"), 1, 10), "10"); got != nil {
		t.Errorf("exclusive upper bound should reject 10, got %v", got)
	}
	if got := cast(t, r, Range(Name("string"), 0, 3), "abcd"); got != nil {
		t.Errorf("strings are measured by length, got %v", got)
	}

	bigRange := Range(Name("bigint"), 1, 10)
	for _, phrase := range []string{"0", "11", "123456789012345678901234567890"} {
		if got := cast(t, r, bigRange, phrase); got != nil {
			t.Errorf("bigint range(%q) = %v, want nil", phrase, got)
		}
	}
	got, ok := cast(t, r, bigRange, "5").(*big.Int)
	if !ok || got.Int64() != 5 {
		t.Errorf("bigint range(5) = %v", got)
	}
}

func TestIntegerParsesWholePhrase(t *testing.T) {
	r := NewRegistry()
	if got := cast(t, r, Name("integer"), "42 ignored"); got != nil {
		t.Fatalf("expected failure for trailing text, got %v", got)
	}
	if got := cast(t, r, Name("integer"), " 42 "); got != 42 {
		t.Fatalf("expected 42, got %v", got)
	}
}

func TestScalars(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		name   string
		phrase string
		want   any
	}{
		{"number", "2.5", 2.5},
		{"number", "NaN", nil},
		{"lowercase", "HeLLo", "hello"},
		{"uppercase", "hi", "HI"},
		{"boolean", "Yes", true},
		{"boolean", "off", false},
		{"boolean", "maybe", nil},
		{"emojint", "4⃣2⃣", 42},
		{"duration", "90s", 90 * time.Second},
		{"duration", "1d2h", 26 * time.Hour},
		{"duration", "soon", nil},
		{"color", "#ff0000", 0xff0000},
		{"color", "red", nil},
		{"string", "", nil},
	}
	for _, tt := range tests {
		if got := cast(t, r, Name(tt.name), tt.phrase); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s(%q) = %#v, want %#v", tt.name, tt.phrase, got, tt.want)
		}
	}

	if got, ok := cast(t, r, Name("bigint"), "123456789012345678901234567890").(*big.Int); !ok || got.String() != "123456789012345678901234567890" {
		t.Errorf("bigint = %v", got)
	}
	if got := cast(t, r, Name("url"), "<https://example.com/a>"); got == nil {
		t.Errorf("expected url to parse")
	}
	if got, ok := cast(t, r, Name("date"), "2024-03-01").(time.Time); !ok || got.Month() != time.March {
		t.Errorf("date = %v", got)
	}
}

func TestChoicesAndSynonyms(t *testing.T) {
	r := NewRegistry()

	if got := cast(t, r, Choices{"Red", "Blue"}, "blue"); got != "Blue" {
		t.Fatalf("choices = %v", got)
	}
	if got := cast(t, r, Choices{"1", "2"}, "3"); got != nil {
		t.Fatalf("choices mismatch = %v", got)
	}

	syn := Synonyms{{"image", "img", "picture"}, {"video", "vid"}}
	if got := cast(t, r, syn, "IMG"); got != "image" {
		t.Fatalf("synonyms = %v", got)
	}
}

func TestPattern(t *testing.T) {
	r := NewRegistry()
	got, ok := cast(t, r, Pattern(regexp.MustCompile(`(\d+)x(\d+)`)), "3x4 and 5x6").(Match)
	if !ok {
		t.Fatalf("expected Match")
	}
	if got.Match[1] != "3" || len(got.Matches) != 2 {
		t.Fatalf("unexpected match %+v", got)
	}
}

func TestComposeAndProduct(t *testing.T) {
	r := NewRegistry()

	if got := cast(t, r, Compose(Name("lowercase"), Choices{"yes", "no"}), "YES"); got != "yes" {
		t.Fatalf("compose = %v", got)
	}
	if got := cast(t, r, Compose(Name("integer"), Range(Name("integer"), 0, 5)), "9"); got != nil {
		t.Fatalf("compose should stop at failure, got %v", got)
	}

	failing := Func(func(context.Context, platform.Message, string) (any, error) { return flow.Fail("why"), nil })
	if got := cast(t, r, ComposeWithFailure(Name("string"), failing), "x"); !flow.Is(got, flow.TypeFail) {
		t.Fatalf("compose with failure = %v", got)
	}

	got := cast(t, r, Product(Name("integer"), Name("number")), "3")
	if !reflect.DeepEqual(got, []any{3, 3.0}) {
		t.Fatalf("product = %#v", got)
	}
	if got := cast(t, r, Product(Name("integer"), Name("number")), "3.5"); got != nil {
		t.Fatalf("product requires all, got %v", got)
	}
}

func TestPipePassesTypedValues(t *testing.T) {
	r := NewRegistry()

	minutes := func(ctx context.Context, msg platform.Message, v any) (any, error) {
		d, ok := v.(time.Duration)
		if !ok {
			return nil, nil
		}
		return d.Minutes(), nil
	}
	if got := cast(t, r, Pipe(Name("duration"), minutes), "90m"); got != 90.0 {
		t.Fatalf("pipe = %#v", got)
	}

	odd := func(ctx context.Context, msg platform.Message, v any) (any, error) {
		if v.(int)%2 == 0 {
			return flow.Fail(v), nil
		}
		return v, nil
	}
	if got := cast(t, r, Pipe(Name("integer"), odd), "3"); got != 3 {
		t.Fatalf("pipe odd = %v", got)
	}
	if got := cast(t, r, Pipe(Name("integer"), odd), "4"); !flow.Is(got, flow.TypeFail) {
		t.Fatalf("pipe should keep the step failure, got %v", got)
	}
	if got := cast(t, r, Pipe(Name("integer"), odd), "x"); got != nil {
		t.Fatalf("pipe should not run steps after a failed cast, got %v", got)
	}
}

func TestTaggedAndValidate(t *testing.T) {
	r := NewRegistry()

	got := cast(t, r, TaggedWith(Name("integer"), "count"), "5")
	if tagged, ok := got.(Tagged); !ok || tagged.Tag != "count" || tagged.Value != 5 || tagged.Input != "5" {
		t.Fatalf("tagged success = %#v", got)
	}

	got = cast(t, r, TaggedWith(Name("integer"), "count"), "x")
	f, ok := flow.As(got)
	if !ok || f.Type != flow.TypeFail {
		t.Fatalf("tagged failure should be a fail flag, got %#v", got)
	}
	if tagged := f.Value.(Tagged); tagged.Tag != "count" || tagged.Input != "x" {
		t.Fatalf("tagged failure payload = %#v", tagged)
	}

	got = cast(t, r, TaggedUnion(Name("integer"), Name("string")), "hi")
	if tagged, ok := got.(Tagged); !ok || tagged.Tag != Name("string") {
		t.Fatalf("tagged union = %#v", got)
	}

	even := Validate(Name("integer"), func(_ context.Context, _ platform.Message, _ string, v any) bool {
		return v.(int)%2 == 0
	})
	if got := cast(t, r, even, "3"); got != nil {
		t.Fatalf("validate = %v", got)
	}
	if got := cast(t, r, even, "4"); got != 4 {
		t.Fatalf("validate = %v", got)
	}
}

func TestCasterErrorsPropagate(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("boom")
	broken := Func(func(context.Context, platform.Message, string) (any, error) { return nil, boom })

	_, err := r.Cast(context.Background(), Union(broken, Name("string")), platformtest.NewMessage("x"), "x")
	if !errors.Is(err, boom) {
		t.Fatalf("expected caster error to propagate, got %v", err)
	}
}

func TestResolvables(t *testing.T) {
	r := NewRegistry()
	alice := platform.User{ID: "100", Username: "alice"}
	bob := platform.User{ID: "200", Username: "bobby", Discriminator: "0042"}
	client := &platformtest.Client{
		UserList: []platform.User{alice, bob},
		MemberList: map[string][]platform.Member{
			"g1": {{User: alice, GuildID: "g1", Nick: "Al"}, {User: bob, GuildID: "g1"}},
		},
		ChannelList: map[string][]platform.Channel{
			"g1": {
				{ID: "10", Name: "general", GuildID: "g1", Kind: platform.ChannelText},
				{ID: "11", Name: "lounge", GuildID: "g1", Kind: platform.ChannelVoice},
			},
		},
		RoleList:  map[string][]platform.Role{"g1": {{ID: "5", Name: "Mods", GuildID: "g1"}}},
		GuildList: []platform.Guild{{ID: "g1", Name: "Home"}},
	}

	run := func(name, phrase string) any {
		msg := platformtest.NewMessage(phrase)
		msg.Dir = client
		res, err := r.Cast(context.Background(), Name(name), msg, phrase)
		if err != nil {
			t.Fatalf("%s(%q): %v", name, phrase, err)
		}
		return res
	}

	tests := []struct {
		name, phrase string
		want         any
	}{
		{"user", "<@!200>", bob},
		{"user", "bobby#0042", bob},
		{"user", "ali", alice},
		{"userMention", "<@100>", alice},
		{"member", "al", client.MemberList["g1"][0]},
		{"relevant", "200", bob},
		{"channel", "#general", client.ChannelList["g1"][0]},
		{"channelMention", "<#11>", client.ChannelList["g1"][1]},
		{"voiceChannel", "general", nil},
		{"role", "<@&5>", client.RoleList["g1"][0]},
		{"guild", "home", client.GuildList[0]},
		{"emojiMention", "<a:party:77>", platform.Emoji{ID: "77", Name: "party", Animated: true}},
		{"user", "nobody", nil},
	}
	for _, tt := range tests {
		if got := run(tt.name, tt.phrase); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s(%q) = %#v, want %#v", tt.name, tt.phrase, got, tt.want)
		}
	}

	if got := run("users", "b"); !reflect.DeepEqual(got, []platform.User{bob}) {
		t.Errorf("users = %#v", got)
	}

	noClient := platformtest.NewMessage("alice")
	if got, _ := r.Cast(context.Background(), Name("user"), noClient, "alice"); got != nil {
		t.Errorf("expected nil without a client, got %v", got)
	}
}

type lookup map[string]string

func (l lookup) FindCommand(alias string) (any, bool) {
	id, ok := l[alias]
	return id, ok
}

func (l lookup) CommandByID(id string) (any, bool) {
	for _, v := range l {
		if v == id {
			return v, true
		}
	}
	return nil, false
}

func TestCommandTypes(t *testing.T) {
	r := NewRegistry()
	if got := cast(t, r, Name("commandAlias"), "h"); got != nil {
		t.Fatalf("expected nil without lookup, got %v", got)
	}

	r.SetCommands(lookup{"h": "help", "help": "help"})
	if got := cast(t, r, Name("commandAlias"), "h"); got != "help" {
		t.Fatalf("commandAlias = %v", got)
	}
	if got := cast(t, r, Name("command"), "help"); got != "help" {
		t.Fatalf("command = %v", got)
	}
}
