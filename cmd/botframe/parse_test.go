package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

const diceSchema = `
args:
  - id: count
    type: integer
    default: 1
  - id: unit
    choices: [d4, d6, d20]
  - id: loud
    match: flag
    flag: ["--loud"]
`

func writeSchema(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schema.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write schema: %v", err)
	}
	return path
}

func TestParseText(t *testing.T) {
	path := writeSchema(t, diceSchema)

	out, err := parseText(context.Background(), path, "3 d6 --loud")
	if err != nil {
		t.Fatalf("parseText: %v", err)
	}

	var report parseReport
	if err := yaml.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if report.Args["count"] != 3 || report.Args["unit"] != "d6" || report.Args["loud"] != true {
		t.Fatalf("unexpected args %#v", report.Args)
	}
	if report.Flag != "" {
		t.Fatalf("unexpected flag %q", report.Flag)
	}
}

func TestParseTextDefaults(t *testing.T) {
	path := writeSchema(t, diceSchema)

	out, err := parseText(context.Background(), path, "d20")
	if err != nil {
		t.Fatalf("parseText: %v", err)
	}
	if !strings.Contains(out, "count: 1") || !strings.Contains(out, "loud: false") {
		t.Fatalf("expected defaults in output, got:\n%s", out)
	}
}

func TestParseTextBadSchema(t *testing.T) {
	path := writeSchema(t, "args:\n  - id: x\n    type: nope\n")
	if _, err := parseText(context.Background(), path, "anything"); err == nil {
		t.Fatalf("expected an error for an unknown type")
	}
	if _, err := parseText(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"), "x"); err == nil {
		t.Fatalf("expected an error for a missing file")
	}
}
