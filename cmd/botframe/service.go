package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"botframe/pkg/config"
)

// program implements service.Interface around the gateway app.
type program struct {
	app    *fx.App
	logger service.Logger
}

// Start implements service.Interface.
func (p *program) Start(s service.Service) error {
	if p.logger != nil {
		_ = p.logger.Info("Starting botframe service")
	}

	p.app = newGatewayApp()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return p.app.Start(ctx)
}

// Stop implements service.Interface.
func (p *program) Stop(s service.Service) error {
	if p.logger != nil {
		_ = p.logger.Info("Stopping botframe service")
	}
	if p.app == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := p.app.Stop(ctx); err != nil {
		if p.logger != nil {
			_ = p.logger.Errorf("Error stopping service: %v", err)
		}
		return err
	}
	return nil
}

// ServiceConfig returns the service definition. The config path is passed
// through so the service reads the same file as the installing user.
func ServiceConfig() *service.Config {
	args := []string{"run"}
	path := configPath
	if path == "" {
		path = os.Getenv(config.ConfigPathEnv)
	}
	if path != "" {
		args = append([]string{"-c", path}, args...)
	}

	return &service.Config{
		Name:        "botframe",
		DisplayName: "botframe",
		Description: "botframe chat command dispatcher",
		Arguments:   args,
	}
}

func newService() (service.Service, *program, error) {
	prg := &program{}
	s, err := service.New(prg, ServiceConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("creating service: %w", err)
	}
	return s, prg, nil
}

// RunService runs under the system service manager.
func RunService() error {
	s, prg, err := newService()
	if err != nil {
		return err
	}
	logger, err := s.Logger(nil)
	if err != nil {
		return fmt.Errorf("creating service logger: %w", err)
	}
	prg.logger = logger

	if err := s.Run(); err != nil {
		_ = logger.Error(err)
		return err
	}
	return nil
}

// controlService runs one of the service.ControlAction verbs.
func controlService(action string) error {
	s, _, err := newService()
	if err != nil {
		return err
	}
	if err := service.Control(s, action); err != nil {
		return fmt.Errorf("%s service: %w", action, err)
	}
	return nil
}

// serviceStatus reports the service state.
func serviceStatus() (string, error) {
	s, _, err := newService()
	if err != nil {
		return "", err
	}
	status, err := s.Status()
	if err != nil {
		return "", fmt.Errorf("getting service status: %w", err)
	}

	switch status {
	case service.StatusRunning:
		return "Running", nil
	case service.StatusStopped:
		return "Stopped", nil
	default:
		return "Unknown", nil
	}
}

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Manage botframe as a system service",
	Long: `Install and control botframe as a system service:
- Linux: systemd
- macOS: launchd
- Windows: Windows Service Manager

Requires administrator/root privileges.`,
}

func init() {
	for _, action := range service.ControlAction {
		serviceCmd.AddCommand(&cobra.Command{
			Use:   action,
			Short: fmt.Sprintf("%s the botframe service", action),
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				if err := controlService(action); err != nil {
					fmt.Fprintf(os.Stderr, "Error: %v\n", err)
					fmt.Fprintln(os.Stderr, "\nNote: managing system services requires administrator privileges.")
					os.Exit(1)
				}
				fmt.Printf("Service %s: ok\n", action)
			},
		})
	}

	serviceCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Check the botframe service status",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			status, err := serviceStatus()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("Service Status: %s\n", status)
		},
	})
}
