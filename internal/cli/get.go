package cli

import (
	"github.com/spf13/cobra"
)

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	var skipVerify bool

	cmd := &cobra.Command{
		Use:   "get <kind> <id>",
		Short: "Read a record, gated on an integrity check",
		Long: `Read a stored record.

By default the record is verified against the ledger first and the read
fails if it is anything other than valid. --no-verify skips the gate and
returns the row as stored.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(rootOpts, cmd, args[0], args[1], skipVerify)
		},
	}

	cmd.Flags().BoolVar(&skipVerify, "no-verify", false, "skip the integrity gate")

	return cmd
}

func runGet(opts *RootOptions, cmd *cobra.Command, kindArg, idArg string, skipVerify bool) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	kind, err := parseKind(kindArg)
	if err != nil {
		return err
	}
	if _, err := parseID(idArg); err != nil {
		return err
	}

	app, err := opts.BuildApp(cmd.Context(), opts)
	if err != nil {
		return err
	}
	defer app.Close()

	if !skipVerify {
		if _, err := app.Pipeline.EnsureIntegrity(cmd.Context(), kind, idArg); err != nil {
			return reportError(formatter, err)
		}
		formatter.VerboseLog("integrity check passed for %s %s", kind, idArg)
	}

	rec, err := app.Store.Get(cmd.Context(), kind, idArg)
	if err != nil {
		return reportError(formatter, err)
	}

	view := viewOf(rec)
	return formatter.SuccessText(view.text(), view)
}
