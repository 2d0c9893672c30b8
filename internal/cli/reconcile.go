package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cartograph/cartograph/internal/config"
	"github.com/cartograph/cartograph/internal/graph"
	"github.com/cartograph/cartograph/internal/lock"
	"github.com/cartograph/cartograph/internal/reconcile"
	"github.com/cartograph/cartograph/internal/snapshot"
)

// ReconcileOptions holds flags for the reconcile command.
type ReconcileOptions struct {
	*RootOptions
	SnapshotID string
	DryRun     bool
}

// ReconcileReport is the command's output payload.
type ReconcileReport struct {
	Outcome    string   `json:"outcome"`
	SnapshotID string   `json:"snapshot_id"`
	Services   int      `json:"services"`
	Instances  int      `json:"instances"`
	Edges      int      `json:"edges"`
	Operations []string `json:"operations,omitempty"` // dry-run only
}

// NewReconcileCommand creates the reconcile command: a one-shot apply of a
// payload file, bypassing the dispatch channel. Meant for operations and
// debugging; the steady-state path is the consume worker.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReconcileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reconcile <payload.json>",
		Short: "Apply one snapshot payload to the graph",
		Long: `Apply a serialized snapshot directly, without going through the queue.

The pass still runs under the distributed lock and still sweeps: the graph
afterwards reflects exactly the given payload. With --dry-run the pass
runs against an in-memory graph and prints the operations it would issue.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.SnapshotID, "snapshot-id", "", "snapshot tag (default: new UUIDv7)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "apply to an in-memory graph and print operations")

	return cmd
}

func runReconcile(opts *ReconcileOptions, path string, cmd *cobra.Command) error {
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

	data, err := os.ReadFile(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot read payload", err)
	}
	snap, err := snapshot.Decode(data)
	if err != nil {
		_ = formatter.Error("E_SCHEMA", err.Error(), nil)
		return NewExitError(ExitFailure, "payload failed validation")
	}

	snapshotID := opts.SnapshotID
	if snapshotID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return WrapExitError(ExitFailure, "generate snapshot id", err)
		}
		snapshotID = id.String()
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var store graph.Store
	var memory *graph.Memory
	if opts.DryRun {
		memory = graph.NewMemory()
		store = memory
	} else {
		neo, err := buildGraphStore(ctx, cfg)
		if err != nil {
			return WrapExitError(ExitCommandError, "graph store", err)
		}
		defer func() {
			if closeErr := neo.Close(ctx); closeErr != nil {
				logger.Error("closing graph store", "error", closeErr)
			}
		}()
		store = neo
	}

	var lockStore lock.Store
	if opts.DryRun {
		lockStore = lock.NewMemoryStore()
	} else {
		ls, cleanup, err := buildLockStore(ctx, cfg)
		if err != nil {
			return WrapExitError(ExitCommandError, "lock store", err)
		}
		defer func() {
			if closeErr := cleanup(); closeErr != nil {
				logger.Error("closing lock store", "error", closeErr)
			}
		}()
		lockStore = ls
	}

	engineOpts := []reconcile.Option{
		reconcile.WithLease(cfg.Lock.Lease),
		reconcile.WithLogger(logger),
	}
	if cfg.Lock.Watermark {
		engineOpts = append(engineOpts,
			reconcile.WithWatermark(reconcile.NewWatermark(lockStore, cfg.Lock.WatermarkKey)))
	}
	engine := reconcile.New(lock.New(lockStore, cfg.Lock.Key), store, engineOpts...)

	result, err := engine.Reconcile(ctx, snapshotID, snap)
	report := ReconcileReport{
		Outcome:    string(result.Outcome),
		SnapshotID: result.SnapshotID,
		Services:   result.Services,
		Instances:  result.Instances,
		Edges:      result.Edges,
	}
	if memory != nil {
		report.Operations = memory.OpLog()
	}

	if err != nil {
		_ = formatter.Error("E_RECONCILE", err.Error(), report)
		return WrapExitError(ExitFailure, "reconciliation failed", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(report)
	}
	fmt.Fprintf(formatter.Writer, "%s: %d service(s), %d instance(s), %d edge(s) [snapshot %s]\n",
		report.Outcome, report.Services, report.Instances, report.Edges, report.SnapshotID)
	for _, op := range report.Operations {
		fmt.Fprintf(formatter.Writer, "  %s\n", op)
	}
	return nil
}
