// Package console provides a local readline platform for trying commands
// from a terminal.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chzyer/readline"
	"go.uber.org/zap"

	"botframe/pkg/config"
	"botframe/pkg/logger"
	"botframe/pkg/platform"
)

const channelID = "console"

// lineReader is satisfied by *readline.Instance.
type lineReader interface {
	Readline() (string, error)
	Close() error
}

// Adapter implements platform.Adapter on stdin/stdout.
type Adapter struct {
	log     *logger.Logger
	config  config.ConsoleConfig
	handler platform.Handler

	mu     sync.Mutex
	reader lineReader
	out    io.Writer
	seq    atomic.Int64
	wg     sync.WaitGroup

	done     chan struct{}
	doneOnce sync.Once
	ctx      context.Context
	cancel   context.CancelFunc
}

// New creates a console adapter delivering lines to handler.
func New(log *logger.Logger, cfg config.ConsoleConfig, handler platform.Handler) *Adapter {
	if cfg.UserID == "" {
		cfg.UserID = "console"
	}
	if cfg.Username == "" {
		cfg.Username = "you"
	}
	if cfg.Prompt == "" {
		cfg.Prompt = "> "
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Adapter{
		log:     log.Named("console"),
		config:  cfg,
		handler: handler,
		done:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// ID returns the adapter identifier.
func (a *Adapter) ID() string {
	return "console"
}

// Name returns the platform name.
func (a *Adapter) Name() string {
	return "Console"
}

// IsEnabled returns whether the adapter is enabled.
func (a *Adapter) IsEnabled() bool {
	return a.config.Enabled
}

// Done is closed when the user leaves the console.
func (a *Adapter) Done() <-chan struct{} {
	return a.done
}

// Start reads lines until EOF, interrupt, "exit" or Stop.
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.reader == nil {
		a.reader, a.out = a.openTerminal()
	}
	reader := a.reader
	a.mu.Unlock()
	defer a.finish()

	a.println("botframe console. Type commands with your prefix, \"exit\" to quit.")

	for {
		if ctx.Err() != nil || a.ctx.Err() != nil {
			return nil
		}
		line, err := reader.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				return nil
			}
			if a.ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("reading console input: %w", err)
		}

		input := strings.TrimSpace(line)
		switch input {
		case "":
			continue
		case "exit", "quit":
			return nil
		}
		a.dispatch(input)
	}
}

// Stop ends the read loop and waits for running handlers.
func (a *Adapter) Stop(ctx context.Context) error {
	a.cancel()
	a.mu.Lock()
	if a.reader != nil {
		_ = a.reader.Close()
	}
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	return nil
}

func (a *Adapter) finish() {
	a.doneOnce.Do(func() { close(a.done) })
}

func (a *Adapter) openTerminal() (lineReader, io.Writer) {
	history := a.config.HistoryFile
	if history != "" {
		history = config.ExpandPath(history)
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          a.config.Prompt,
		HistoryFile:     history,
		HistoryLimit:    200,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		a.log.Warn("Readline not available, using simple mode", zap.Error(err))
		return &simpleReader{scanner: bufio.NewScanner(os.Stdin)}, os.Stdout
	}
	return rl, rl.Stdout()
}

// dispatch handles one line on its own goroutine so prompt replies typed
// while a command waits are delivered.
func (a *Adapter) dispatch(text string) {
	msg := &Message{
		id:      strconv.FormatInt(a.seq.Add(1), 10),
		text:    text,
		at:      time.Now(),
		adapter: a,
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.handler.Handle(a.ctx, msg); err != nil {
			a.println("error: " + err.Error())
			a.log.Debug("Failed to handle console message", zap.Error(err))
		}
	}()
}

func (a *Adapter) println(text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.out == nil {
		return
	}
	fmt.Fprintln(a.out, text)
}

// Self returns the bot account.
func (a *Adapter) Self() platform.User {
	return platform.User{ID: "botframe", Username: "botframe", Bot: true}
}

// MentionPrefixes returns "@botframe".
func (a *Adapter) MentionPrefixes() []string {
	return []string{"@botframe"}
}

func (a *Adapter) user() platform.User {
	return platform.User{ID: a.config.UserID, Username: a.config.Username}
}

// Users returns the console user and the bot.
func (a *Adapter) Users(context.Context, platform.Message) ([]platform.User, error) {
	return []platform.User{a.user(), a.Self()}, nil
}

// Members returns nothing; the console has no guilds.
func (a *Adapter) Members(context.Context, string) ([]platform.Member, error) {
	return nil, nil
}

// Channels returns nothing; the console has no guilds.
func (a *Adapter) Channels(context.Context, string) ([]platform.Channel, error) {
	return nil, nil
}

// Roles returns nothing; the console has no guilds.
func (a *Adapter) Roles(context.Context, string) ([]platform.Role, error) {
	return nil, nil
}

// Guilds returns nothing; the console has no guilds.
func (a *Adapter) Guilds(context.Context) ([]platform.Guild, error) {
	return nil, nil
}

type simpleReader struct {
	scanner *bufio.Scanner
}

func (r *simpleReader) Readline() (string, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.scanner.Text(), nil
}

func (r *simpleReader) Close() error { return nil }
