package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"botframe/pkg/commands"
	"botframe/pkg/config"
	"botframe/pkg/logger"
	"botframe/pkg/platform"
	"botframe/pkg/platform/console"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Try commands from a local terminal",
	Long: `Start a local REPL that feeds each line to the command handler as a
direct message. Replies and prompts are printed to the terminal.

Examples:
  botframe console
  > !help
  > !ping`,
	Run: runConsole,
}

func runConsole(cmd *cobra.Command, args []string) {
	var adapter *console.Adapter
	app := fx.New(
		appModules(),
		fx.Invoke(func(log *logger.Logger, cfg *config.Config, m *platform.Manager, h *commands.Handler) error {
			cc := cfg.Console
			cc.Enabled = true
			adapter = console.New(log, cc, h)
			return m.Register(adapter)
		}),
		fx.NopLogger,
	)

	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting console: %v\n", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-adapter.Done():
	case <-sigCh:
	}
	fmt.Println("Goodbye!")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil {
		fmt.Fprintf(os.Stderr, "Error stopping console: %v\n", err)
	}
}
