// Command cartographerd runs the cartographer daemon in the foreground. It is
// what service managers launch; the cartographer CLI's start command runs
// the same daemon detached.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"cartographer/internal/config"
	"cartographer/internal/daemonrun"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newCommand().ExecuteContext(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
		cancel()
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var (
		configPath  string
		address     string
		logLevel    string
		development bool
	)
	cmd := &cobra.Command{
		Use:           "cartographerd",
		Short:         "Cartographer extraction daemon",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath, address)
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    logLevel,
				Development: development,
			})
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Configuration file path")
	cmd.Flags().StringVar(&address, "address", "", "Override paths.api_bind")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level")
	cmd.Flags().BoolVar(&development, "dev", false, "Human-friendly development logging")
	return cmd
}

// loadConfig reads and validates the configuration, applying the bind
// override when one is given.
func loadConfig(path, address string) (*config.Config, error) {
	cfg, _, _, err := config.Load(strings.TrimSpace(path))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if address = strings.TrimSpace(address); address != "" {
		cfg.Paths.APIBind = address
	}
	return cfg, nil
}
