package main

import (
	"context"
	"fmt"
	"os"

	"github.com/samibismar/calmclinic.health-sub001/internal/config"
	"github.com/samibismar/calmclinic.health-sub001/internal/logger"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "calmclinic",
		Short:         "Multi-tenant clinic assistant backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newPromptCmd())
	cmd.AddCommand(newAskCmd())
	cmd.AddCommand(newTokenCmd())
	return cmd
}

// setup loads configuration, initializes logging and wires the app.
func setup(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(cfg.LogLevel, cfg.LogFormat); err != nil {
		return nil, err
	}
	return newApp(ctx, cfg)
}
