package cli

import (
	"github.com/spf13/cobra"
)

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var inputPath string
	var actor string

	cmd := &cobra.Command{
		Use:   "create <kind> <id>",
		Short: "Normalize, anchor, and persist a new record",
		Long: `Create a new record of the given kind.

The input payload is normalized field by field, its digest is anchored
on the kind's ledger contract, the canonical payload is backed up
best-effort, and the record is persisted. If the ledger confirms a
digest other than the computed one, nothing is persisted.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(rootOpts, cmd, args[0], args[1], inputPath, actor)
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "-", "JSON payload file (- for stdin)")
	cmd.Flags().StringVar(&actor, "actor", "cli", "audit identity recorded on the row")

	return cmd
}

func runCreate(opts *RootOptions, cmd *cobra.Command, kindArg, idArg, inputPath, actor string) error {
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

	formatter.VerboseLog("creating %s %s", kind, id)

	rec, err := app.Pipeline.Create(cmd.Context(), kind, id, raw, actor)
	if err != nil {
		return reportError(formatter, err)
	}

	view := viewOf(rec)
	return formatter.SuccessText(view.text(), view)
}
