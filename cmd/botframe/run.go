package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"botframe/pkg/logger"
	"botframe/pkg/platform"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bot on the configured platforms",
	Long: `Run the bot in the foreground on every platform enabled in the config
file (discord, telegram). Stops on Ctrl+C or SIGTERM.

When started by a service manager, this runs under the service runner.`,
	Run: func(cmd *cobra.Command, args []string) {
		if runningAsService() {
			if err := RunService(); err != nil {
				fmt.Fprintf(os.Stderr, "Error running service: %v\n", err)
				os.Exit(1)
			}
			return
		}
		newGatewayApp().Run()
	},
}

// newGatewayApp builds the app serving the network platforms.
func newGatewayApp(extra ...fx.Option) *fx.App {
	return fx.New(
		appModules(),
		fx.Invoke(registerGateways),
		fx.Invoke(func(lc fx.Lifecycle, log *logger.Logger, m *platform.Manager) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					log.Info("botframe started", zap.Strings("platforms", m.IDs()))
					return nil
				},
			})
		}),
		fx.NopLogger,
		fx.Options(extra...),
	)
}

func runningAsService() bool {
	return os.Getenv("INVOCATION_ID") != "" || // systemd
		os.Getenv("_") == "/bin/launchd" || // launchd
		os.Getenv("SERVICE_NAME") != "" // Windows service
}
