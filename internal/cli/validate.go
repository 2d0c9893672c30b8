package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cartograph/cartograph/internal/snapshot"
)

// ValidationResult holds the outcome of a payload check.
type ValidationResult struct {
	Valid    bool   `json:"valid"`
	Services int    `json:"services,omitempty"`
	Checksum string `json:"checksum,omitempty"`
	Error    string `json:"error,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <payload.json>",
		Short: "Check a snapshot payload against the schema",
		Long: `Validate a serialized snapshot payload without touching the graph.

Runs the same schema validation and normalization the consumer applies to
every delivery, and prints the canonical checksum on success.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		_ = formatter.Error("E_READ", err.Error(), nil)
		return WrapExitError(ExitCommandError, "cannot read payload", err)
	}
	formatter.VerboseLog("read %d bytes from %s", len(data), path)

	snap, err := snapshot.Decode(data)
	if err != nil {
		var schemaErr *snapshot.SchemaError
		code := "E_DECODE"
		if errors.As(err, &schemaErr) {
			code = "E_SCHEMA"
		}
		if formatter.Format == "json" {
			_ = formatter.Error(code, err.Error(), ValidationResult{Valid: false, Error: err.Error()})
		} else {
			fmt.Fprintln(formatter.Writer, "✗ Payload invalid")
			fmt.Fprintf(formatter.Writer, "  %s\n", err)
		}
		return NewExitError(ExitFailure, "payload failed validation")
	}

	checksum, err := snapshot.Checksum(snap)
	if err != nil {
		return WrapExitError(ExitFailure, "checksum failed", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{
			Valid:    true,
			Services: len(snap.Services),
			Checksum: checksum,
		})
	}
	fmt.Fprintf(formatter.Writer, "✓ Payload valid: %d service(s), checksum %s\n",
		len(snap.Services), checksum)
	return nil
}
