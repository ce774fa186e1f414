package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type rootFlags struct {
	config string
	overrides
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:   "gadgetctl",
		Short: "Talk to a Garuda Core broker as a gadget",
		Long: `gadgetctl connects to a Garuda Core broker, activates itself as a
gadget and runs one protocol exchange.

Settings come from an optional config file (json, yaml or toml) and are
overridden by flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.config, "config", "f", "", "config file")
	pf.StringVar(&flags.addr, "addr", "", "broker address: host:port, ws://host:port/ or unix:///path")
	pf.StringVar(&flags.transport, "transport", "", "tcp, ws or unix")
	pf.StringVar(&flags.name, "name", "", "gadget name")
	pf.StringVar(&flags.id, "id", "", "gadget id, a random uuid when empty")
	pf.StringVar(&flags.level, "log-level", "", "log level")
	pf.IntVar(&flags.metricsPort, "metrics-port", 0, "serve prometheus metrics on this port")
	pf.DurationVar(&flags.timeout, "timeout", 0, "how long to wait for the broker")

	load := func() (*Config, error) {
		return loadConfig(flags.config, flags.overrides)
	}

	rootCmd.AddCommand(
		listenCmd(load),
		listCmd(load),
		sendCmd(load),
		notifyCmd(load),
		versionCmd(),
	)

	return rootCmd
}

type loader func() (*Config, error)

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func success(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

func info(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", fmt.Sprintf(format, args...))
}

func warn(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), "\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}
