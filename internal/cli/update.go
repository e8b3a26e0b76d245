package cli

import (
	"github.com/spf13/cobra"
)

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	var inputPath string
	var actor string

	cmd := &cobra.Command{
		Use:   "update <kind> <id>",
		Short: "Mutate an existing record and re-anchor its digest",
		Long: `Update an existing record.

Fields present in the input replace the stored values; omitted fields
carry over unchanged. The new digest is anchored on the ledger before
the row is rewritten, with the same fail-closed confirmation check as
create.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(rootOpts, cmd, args[0], args[1], inputPath, actor)
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "-", "JSON mutation file (- for stdin)")
	cmd.Flags().StringVar(&actor, "actor", "cli", "audit identity recorded on the row")

	return cmd
}

func runUpdate(opts *RootOptions, cmd *cobra.Command, kindArg, idArg, inputPath, actor string) error {
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
	id, err := parseID(idArg)
	if err != nil {
		return err
	}

	raw, err := LoadInput(inputPath, cmd.InOrStdin())
	if err != nil {
		return err
	}

	app, err := opts.BuildApp(cmd.Context(), opts)
	if err != nil {
		return err
	}
	defer app.Close()

	formatter.VerboseLog("updating %s %s", kind, id)

	rec, err := app.Pipeline.Update(cmd.Context(), kind, id, raw, actor)
	if err != nil {
		return reportError(formatter, err)
	}

	view := viewOf(rec)
	return formatter.SuccessText(view.text(), view)
}
