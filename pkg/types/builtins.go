package types

import (
	"context"
	"math"
	"math/big"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"

	"botframe/pkg/platform"
)

func (r *Registry) addBuiltins() {
	scalars := map[string]func(string) any{
		"string":    castString,
		"lowercase": func(p string) any { return nonEmpty(strings.ToLower(p)) },
		"uppercase": func(p string) any { return nonEmpty(strings.ToUpper(p)) },
		"charCodes": castCharCodes,
		"number":    castNumber,
		"integer":   castInteger,
		"bigint":    castBigInt,
		"emojint":   castEmojint,
		"boolean":   castBoolean,
		"url":       castURL,
		"date":      castDate,
		"duration":  castDuration,
		"color":     castColor,
	}
	for name, fn := range scalars {
		r.funcs[name] = scalar(fn)
	}

	r.addResolvables()
}

func scalar(fn func(string) any) Func {
	return func(_ context.Context, _ platform.Message, phrase string) (any, error) {
		if phrase == "" {
			return nil, nil
		}
		return fn(phrase), nil
	}
}

func nonEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func castString(p string) any {
	return nonEmpty(p)
}

func castCharCodes(p string) any {
	codes := make([]int, 0, len(p))
	for _, r := range p {
		codes = append(codes, int(r))
	}
	return codes
}

// Numeric casters parse the whole trimmed phrase; trailing text is a failure.
func castNumber(p string) any {
	p = strings.TrimSpace(p)
	f, err := strconv.ParseFloat(p, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}

func castInteger(p string) any {
	n, err := strconv.Atoi(strings.TrimSpace(p))
	if err != nil {
		return nil
	}
	return n
}

func castBigInt(p string) any {
	n, ok := new(big.Int).SetString(strings.TrimSpace(p), 10)
	if !ok {
		return nil
	}
	return n
}

var emojiDigits = strings.NewReplacer(
	"0⃣", "0", "1⃣", "1", "2⃣", "2", "3⃣", "3", "4⃣", "4",
	"5⃣", "5", "6⃣", "6", "7⃣", "7", "8⃣", "8", "9⃣", "9", "🔟", "10",
	"0️⃣", "0", "1️⃣", "1", "2️⃣", "2", "3️⃣", "3", "4️⃣", "4",
	"5️⃣", "5", "6️⃣", "6", "7️⃣", "7", "8️⃣", "8", "9️⃣", "9",
)

func castEmojint(p string) any {
	return castInteger(emojiDigits.Replace(p))
}

func castBoolean(p string) any {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case "true", "yes", "y", "on", "1", "enable", "enabled":
		return true
	case "false", "no", "n", "off", "0", "disable", "disabled":
		return false
	}
	return nil
}

func castURL(p string) any {
	p = strings.TrimSpace(p)
	if strings.HasPrefix(p, "<") && strings.HasSuffix(p, ">") {
		p = p[1 : len(p)-1]
	}
	u, err := url.Parse(p)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil
	}
	return u
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
	"Jan 2 2006",
	"January 2 2006",
	"2 Jan 2006",
}

func castDate(p string) any {
	p = strings.TrimSpace(p)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, p); err == nil {
			return t
		}
	}
	return nil
}

// castDuration accepts Go durations plus d (day) and w (week) units.
func castDuration(p string) any {
	p = strings.TrimSpace(p)
	if d, err := time.ParseDuration(p); err == nil {
		return d
	}

	var total time.Duration
	rest := p
	for rest != "" {
		i := 0
		for i < len(rest) && (unicode.IsDigit(rune(rest[i])) || rest[i] == '.') {
			i++
		}
		if i == 0 || i == len(rest) {
			return nil
		}
		n, err := strconv.ParseFloat(rest[:i], 64)
		if err != nil {
			return nil
		}
		j := i
		for j < len(rest) && unicode.IsLetter(rune(rest[j])) {
			j++
		}
		unit, ok := durationUnits[rest[i:j]]
		if !ok {
			return nil
		}
		total += time.Duration(n * float64(unit))
		rest = rest[j:]
	}
	return total
}

var durationUnits = map[string]time.Duration{
	"ms": time.Millisecond,
	"s":  time.Second,
	"m":  time.Minute,
	"h":  time.Hour,
	"d":  24 * time.Hour,
	"w":  7 * 24 * time.Hour,
}

func castColor(p string) any {
	p = strings.TrimSpace(p)
	p = strings.TrimPrefix(p, "#")
	if len(p) > 2 && strings.EqualFold(p[:2], "0x") {
		p = p[2:]
	}
	if len(p) != 6 {
		return nil
	}
	n, err := strconv.ParseUint(p, 16, 32)
	if err != nil {
		return nil
	}
	return int(n)
}
