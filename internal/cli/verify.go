package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/trailmark/trailmark/internal/integrity"
)

// VerifyResult holds verification results for output.
type VerifyResult struct {
	Total   int            `json:"total"`
	Valid   int            `json:"valid"`
	Flagged int            `json:"flagged"`
	Reports []ReportView   `json:"reports"`
}

// ReportView is the JSON shape of one verification report.
type ReportView struct {
	Kind          string `json:"kind"`
	ID            string `json:"id"`
	Label         string `json:"label"`
	StoredVerdict string `json:"storedVerdict"`
	LedgerVerdict string `json:"ledgerVerdict"`
	Recomputed    string `json:"recomputedDigest,omitempty"`
	Stored        string `json:"storedDigest,omitempty"`
	Ledger        string `json:"ledgerDigest,omitempty"`
	Error         string `json:"error,omitempty"`
}

func reportViewOf(rep integrity.Report) ReportView {
	v := ReportView{
		Kind:          string(rep.Kind),
		ID:            rep.ID,
		Label:         string(rep.Label),
		StoredVerdict: string(rep.StoredVerdict),
		LedgerVerdict: string(rep.LedgerVerdict),
		Recomputed:    string(rep.RecomputedDigest),
		Stored:        string(rep.StoredDigest),
		Ledger:        string(rep.LedgerDigest),
	}
	if rep.Err != nil {
		v.Error = rep.Err.Error()
	}
	return v
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "verify [kind] [id]",
		Short: "Reconcile stored records against the ledger",
		Long: `Verify record integrity.

With a kind and id, verifies one record. With only a kind, sweeps every
record of that kind. With --all, sweeps the whole database. Each record's
digest is recomputed from its stored fields and compared against the
database column and the anchored ledger copy.

Exits 1 if any record is flagged.`,
		Args:          cobra.MaximumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(rootOpts, cmd, args, all)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "verify every record of every kind")

	return cmd
}

func runVerify(opts *RootOptions, cmd *cobra.Command, args []string, all bool) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if !all && len(args) == 0 {
		return NewExitError(ExitCommandError, "specify a kind, a kind and id, or --all")
	}
	if all && len(args) > 0 {
		return NewExitError(ExitCommandError, "--all takes no arguments")
	}

	app, err := opts.BuildApp(cmd.Context(), opts)
	if err != nil {
		return err
	}
	defer app.Close()

	var reports []integrity.Report
	switch {
	case all:
		reports, err = app.Pipeline.VerifyAll(cmd.Context())
	case len(args) == 2:
		kind, kerr := parseKind(args[0])
		if kerr != nil {
			return kerr
		}
		var rep integrity.Report
		rep, err = app.Pipeline.Verify(cmd.Context(), kind, args[1])
		reports = []integrity.Report{rep}
	default:
		kind, kerr := parseKind(args[0])
		if kerr != nil {
			return kerr
		}
		reports, err = app.Pipeline.VerifyKind(cmd.Context(), kind)
	}
	if err != nil {
		return reportError(formatter, err)
	}

	result := VerifyResult{Total: len(reports)}
	for _, rep := range reports {
		result.Reports = append(result.Reports, reportViewOf(rep))
		if rep.Label == integrity.Valid {
			result.Valid++
		} else {
			result.Flagged++
		}
	}

	if err := formatter.SuccessText(verifyText(result), result); err != nil {
		return err
	}
	if result.Flagged > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d records flagged", result.Flagged, result.Total))
	}
	return nil
}

func verifyText(result VerifyResult) string {
	var b strings.Builder
	for _, rep := range result.Reports {
		fmt.Fprintf(&b, "%-12s %-36s  %s", rep.Kind, rep.ID, rep.Label)
		if rep.Error != "" {
			fmt.Fprintf(&b, "  (%s)", rep.Error)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "%d records: %d valid, %d flagged", result.Total, result.Valid, result.Flagged)
	return b.String()
}
