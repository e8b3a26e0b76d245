package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/trailmark/trailmark/internal/integrity"
)

// AuditResult summarizes a full-database sweep, grouped by label.
type AuditResult struct {
	Total    int            `json:"total"`
	ByLabel  map[string]int `json:"byLabel"`
	Flagged  []ReportView   `json:"flagged,omitempty"`
}

// NewAuditCommand creates the audit command.
func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Sweep every stored record and summarize integrity labels",
		Long: `Audit the whole database.

Every record is verified against the ledger with bounded fan-out. The
output groups records by label and lists only the flagged ones; verify
prints per-record detail instead.

Exits 1 if any record is flagged.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(rootOpts, cmd)
		},
	}

	return cmd
}

func runAudit(opts *RootOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	app, err := opts.BuildApp(cmd.Context(), opts)
	if err != nil {
		return err
	}
	defer app.Close()

	reports, err := app.Pipeline.VerifyAll(cmd.Context())
	if err != nil {
		return reportError(formatter, err)
	}

	result := AuditResult{
		Total:   len(reports),
		ByLabel: make(map[string]int),
	}
	for _, rep := range reports {
		result.ByLabel[string(rep.Label)]++
		if rep.Label != integrity.Valid {
			result.Flagged = append(result.Flagged, reportViewOf(rep))
		}
	}

	if err := formatter.SuccessText(auditText(result), result); err != nil {
		return err
	}
	if len(result.Flagged) > 0 {
		return NewExitError(ExitFailure,
			fmt.Sprintf("%d of %d records flagged", len(result.Flagged), result.Total))
	}
	return nil
}

func auditText(result AuditResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d records audited\n", result.Total)
	for _, label := range []string{"valid", "tampered", "not_on_chain", "unknown"} {
		if n, ok := result.ByLabel[label]; ok {
			fmt.Fprintf(&b, "  %-13s %d\n", label, n)
		}
	}
	for _, rep := range result.Flagged {
		fmt.Fprintf(&b, "  %s %s: %s\n", rep.Kind, rep.ID, rep.Label)
	}
	return strings.TrimRight(b.String(), "\n")
}
