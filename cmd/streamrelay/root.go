package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/drblury/streamrelay"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type options struct {
	configFile string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "streamrelay",
		Short: "Relay an event stream to WebSocket clients",
		Long: `streamrelay consumes key=value quote events from an upstream stream
(Event Hubs, Kafka, NATS, RabbitMQ, SNS/SQS or HTTP), normalizes them to a
fixed schema and broadcasts every record as JSON to the WebSocket clients
connected to the stream path.

Without a subcommand it runs serve.`,
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "YAML config file (environment variables STREAMRELAY_* override it)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error (overrides the config)")

	root.AddCommand(newServeCmd(opts), newVersionCmd())
	return root
}

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Consume the upstream stream and serve subscribers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "streamrelay", version)
		},
	}
}

func runServe(ctx context.Context, out io.Writer, opts *options) error {
	cfg, err := streamrelay.LoadConfig(opts.configFile)
	if err != nil {
		return err
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}

	logger := streamrelay.NewSlogServiceLogger(streamrelay.NewJSONLogger(out, cfg.LogLevel, "streamrelay"))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := streamrelay.TryNewService(cfg, logger, ctx, streamrelay.ServiceDependencies{})
	if err != nil {
		logger.Error("Failed to create relay service", err, nil)
		return err
	}
	return svc.Start(ctx)
}
