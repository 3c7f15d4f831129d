package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"botframe/pkg/arguments"
	"botframe/pkg/logger"
	"botframe/pkg/platform"
	"botframe/pkg/prompt"
	"botframe/pkg/types"
)

var schemaFile string

var parseCmd = &cobra.Command{
	Use:   "parse [text]",
	Short: "Parse text against an argument schema file",
	Long: `Parse text against an argument schema written in YAML and print the
resolved arguments. Prompts time out immediately, so missing arguments fall
back to their defaults or cancel the parse.

Examples:
  botframe parse --schema roll.yaml "2d6 --loud"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := parseText(cmd.Context(), schemaFile, args[0])
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

func init() {
	parseCmd.Flags().StringVarP(&schemaFile, "schema", "s", "", "argument schema file (YAML)")
	_ = parseCmd.MarkFlagRequired("schema")
}

// parseText runs text through the schema in path and renders the result
// as YAML.
func parseText(ctx context.Context, path, text string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening schema: %w", err)
	}
	defer f.Close()

	specs, opts, err := arguments.LoadSchema(f)
	if err != nil {
		return "", err
	}
	schema, err := arguments.Compile(types.NewRegistry(), specs, opts)
	if err != nil {
		return "", err
	}

	hub := prompt.NewHub()
	defer hub.Close()
	runner := arguments.NewRunner(logger.NewNop(), hub, arguments.PromptOptions{
		Retries: arguments.Int(0),
		Time:    time.Millisecond,
	})

	if ctx == nil {
		ctx = context.Background()
	}
	msg := &dryRunMessage{content: text}
	res, err := runner.Run(ctx, msg, text, schema)
	if err != nil {
		return "", err
	}

	report := parseReport{Args: make(map[string]any, len(res.Args))}
	for id, v := range res.Args {
		report.Args[id] = displayValue(v)
	}
	if res.Flag != nil {
		report.Flag = res.Flag.String()
	}
	report.Replies = msg.replies

	data, err := yaml.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("encoding result: %w", err)
	}
	return string(data), nil
}

type parseReport struct {
	Args    map[string]any `yaml:"args"`
	Flag    string         `yaml:"flag,omitempty"`
	Replies []string       `yaml:"replies,omitempty"`
}

func displayValue(v any) any {
	switch val := v.(type) {
	case nil, string, bool, int, int64, float64:
		return val
	case []string:
		return val
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = displayValue(item)
		}
		return out
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(map[string]any, len(val))
		for _, k := range keys {
			out[k] = displayValue(val[k])
		}
		return out
	default:
		return fmt.Sprintf("%v", val)
	}
}

// dryRunMessage is a detached message that records what the runner says.
type dryRunMessage struct {
	content string
	replies []string
}

func (m *dryRunMessage) ID() string              { return "dry-run" }
func (m *dryRunMessage) Platform() string        { return "dry-run" }
func (m *dryRunMessage) Author() platform.User   { return platform.User{ID: "dry-run", Username: "dry-run"} }
func (m *dryRunMessage) ChannelID() string       { return "dry-run" }
func (m *dryRunMessage) GuildID() string         { return "" }
func (m *dryRunMessage) Content() string         { return m.content }
func (m *dryRunMessage) CreatedAt() time.Time    { return time.Time{} }
func (m *dryRunMessage) Edited() bool            { return false }
func (m *dryRunMessage) Client() platform.Client { return nil }

func (m *dryRunMessage) Send(ctx context.Context, text string) error {
	m.replies = append(m.replies, strings.TrimSpace(text))
	return nil
}

func (m *dryRunMessage) Reply(ctx context.Context, text string) error {
	return m.Send(ctx, text)
}
