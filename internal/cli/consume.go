package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cartograph/cartograph/internal/config"
	"github.com/cartograph/cartograph/internal/lock"
	"github.com/cartograph/cartograph/internal/reconcile"
	"github.com/cartograph/cartograph/internal/worker"
)

// NewConsumeCommand creates the consume command: the long-running worker
// that receives snapshots from the queue and reconciles the graph.
func NewConsumeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "consume",
		Short: "Run the reconciliation worker",
		Long: `Run the consumer loop: receive snapshots from the queue, apply each one
to the graph under the distributed lock, and acknowledge or leave the
message according to the outcome. Stops on SIGINT/SIGTERM.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsume(rootOpts, cmd)
		},
	}
	return cmd
}

func runConsume(opts *RootOptions, cmd *cobra.Command) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "configuration invalid", err)
	}
	logger := buildLogger(cfg, opts.Verbose)

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	consumer, err := buildQueue(ctx, cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "dispatch channel", err)
	}

	store, err := buildGraphStore(ctx, cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "graph store", err)
	}
	defer func() {
		if closeErr := store.Close(context.Background()); closeErr != nil {
			logger.Error("closing graph store", "error", closeErr)
		}
	}()

	lockStore, cleanup, err := buildLockStore(ctx, cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "lock store", err)
	}
	defer func() {
		if closeErr := cleanup(); closeErr != nil {
			logger.Error("closing lock store", "error", closeErr)
		}
	}()

	engineOpts := []reconcile.Option{
		reconcile.WithLease(cfg.Lock.Lease),
		reconcile.WithLogger(logger),
	}
	if cfg.Lock.Watermark {
		engineOpts = append(engineOpts,
			reconcile.WithWatermark(reconcile.NewWatermark(lockStore, cfg.Lock.WatermarkKey)))
	}
	engine := reconcile.New(lock.New(lockStore, cfg.Lock.Key), store, engineOpts...)
	w := worker.New(consumer, engine, worker.WithLogger(logger))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	logger.Info("consumer starting",
		"queue_url", cfg.Queue.URL,
		"lock_key", cfg.Lock.Key,
		"lease", cfg.Lock.Lease)
	fmt.Fprintln(cmd.OutOrStdout(), "Consumer started. Press Ctrl-C to stop.")

	if err := w.Run(ctx); err != nil {
		return WrapExitError(ExitFailure, "worker error", err)
	}
	logger.Info("consumer stopped")
	return nil
}
