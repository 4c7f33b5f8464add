package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pagewatch/internal/app"
	"pagewatch/internal/config"
)

const shutdownTimeout = 15 * time.Second

// NewRootCmd creates the root command, which runs the watchdog until SIGINT/SIGTERM.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pagewatch",
		Short: "Watch one web page for a marker change and alert a chat",
		Long: `pagewatch loads a page in a headless browser on a schedule, reads the first
element carrying the marker attribute and alerts a Telegram chat when its value
is no longer the expected sentinel or the element disappears.

Settings come from defaults, an optional JSON/YAML config file, a .env file and
the process environment, in increasing order of precedence.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          runDaemon,
	}

	cmd.PersistentFlags().String("config", "", "path to a JSON or YAML config file (watched for changes)")
	cmd.PersistentFlags().String("env-file", config.DefaultEnvFile, "dotenv file loaded before reading the environment")

	cmd.AddCommand(NewCheckCmd())
	return cmd
}

func optionsFromFlags(cmd *cobra.Command) (app.Options, error) {
	cfgPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return app.Options{}, err
	}
	envFile, err := cmd.Flags().GetString("env-file")
	if err != nil {
		return app.Options{}, err
	}
	return app.Options{
		ConfigPath:      cfgPath,
		EnvFile:         envFile,
		EnvFileRequired: cmd.Flags().Changed("env-file"),
		LogOutput:       cmd.OutOrStdout(),
	}, nil
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	opts, err := optionsFromFlags(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, opts)
	if err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		return err
	}

	reason := app.StopSignal
	select {
	case <-ctx.Done():
	case <-a.Done():
		reason = app.StopFatalError
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()
	_ = a.Stop(stopCtx, reason)
	return a.Err()
}
