package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cartograph/cartograph/internal/config"
	"github.com/cartograph/cartograph/internal/snapshot"
)

// ProduceOptions holds flags for the produce command.
type ProduceOptions struct {
	*RootOptions
	Sequence int64
	OutPath  string
}

// ProduceReport is the command's output payload.
type ProduceReport struct {
	Services  int    `json:"services"`
	Checksum  string `json:"checksum"`
	MessageID string `json:"message_id,omitempty"`
	OutPath   string `json:"out_path,omitempty"`
}

// NewProduceCommand creates the produce command: snapshot the registry and
// publish the result to the dispatch channel.
func NewProduceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProduceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "produce",
		Short: "Snapshot the registry and publish it",
		Long: `Build one complete snapshot of the configured registry namespace and
publish it to the queue.

The snapshot is all-or-nothing: any listing failure aborts the run rather
than publishing a partial view, since the consumer would sweep whatever
the partial view missed. With --out the payload is written to a file
instead of published.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProduce(opts, cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.Sequence, "sequence", 0, "snapshot sequence number (0 disables the stale guard)")
	cmd.Flags().StringVar(&opts.OutPath, "out", "", "write the payload to a file instead of publishing")

	return cmd
}

func runProduce(opts *ProduceOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "configuration invalid", err)
	}
	logger := buildLogger(cfg, opts.Verbose)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	reader, err := buildRegistry(ctx, cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "registry reader", err)
	}

	logger.Info("building snapshot", "namespace_id", cfg.Registry.NamespaceID, "sequence", opts.Sequence)
	snap, err := snapshot.Build(ctx, reader, opts.Sequence)
	if err != nil {
		return WrapExitError(ExitFailure, "snapshot build failed", err)
	}

	payload, err := snapshot.Encode(snap)
	if err != nil {
		return WrapExitError(ExitFailure, "snapshot encode failed", err)
	}
	checksum, err := snapshot.Checksum(snap)
	if err != nil {
		return WrapExitError(ExitFailure, "snapshot checksum failed", err)
	}

	report := ProduceReport{Services: len(snap.Services), Checksum: checksum}

	if opts.OutPath != "" {
		if err := os.WriteFile(opts.OutPath, payload, 0o644); err != nil {
			return WrapExitError(ExitCommandError, "write payload", err)
		}
		report.OutPath = opts.OutPath
	} else {
		publisher, err := buildQueue(ctx, cfg)
		if err != nil {
			return WrapExitError(ExitCommandError, "dispatch channel", err)
		}
		messageID, err := publisher.Publish(ctx, payload)
		if err != nil {
			return WrapExitError(ExitFailure, "publish failed", err)
		}
		report.MessageID = messageID
		logger.Info("snapshot published",
			"message_id", messageID, "services", report.Services, "checksum", checksum)
	}

	if formatter.Format == "json" {
		return formatter.Success(report)
	}
	if report.OutPath != "" {
		fmt.Fprintf(formatter.Writer, "wrote %d service(s) to %s (checksum %s)\n",
			report.Services, report.OutPath, report.Checksum)
	} else {
		fmt.Fprintf(formatter.Writer, "published %d service(s) as message %s (checksum %s)\n",
			report.Services, report.MessageID, report.Checksum)
	}
	return nil
}
