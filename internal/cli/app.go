package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/trailmark/trailmark/internal/backup"
	"github.com/trailmark/trailmark/internal/config"
	"github.com/trailmark/trailmark/internal/entity"
	"github.com/trailmark/trailmark/internal/ledger"
	"github.com/trailmark/trailmark/internal/protocol"
	"github.com/trailmark/trailmark/internal/store"
)

// App bundles the wired collaborators a command needs.
type App struct {
	Pipeline *protocol.Pipeline
	Store    *store.Store

	closers []func()
}

// Close releases every held resource.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// newApp wires the pipeline from the configuration file. Tests bypass
// this through RootOptions.BuildApp.
func newApp(ctx context.Context, opts *RootOptions) (*App, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load configuration", err)
	}

	logLevel := slog.LevelWarn
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	evmCfg, err := cfg.EVMConfig()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "resolve ledger credentials", err)
	}

	lc, err := ledger.DialEVM(ctx, evmCfg, log)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "connect to ledger", err)
	}

	app := &App{closers: []func(){lc.Close}}

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		app.Close()
		return nil, WrapExitError(ExitCommandError, "open database", err)
	}
	app.Store = st
	app.closers = append(app.closers, func() { st.Close() })

	var bc *backup.Client
	if cfg.Backup.Root != "" {
		cas, err := backup.NewFSStore(cfg.Backup.Root)
		if err != nil {
			app.Close()
			return nil, WrapExitError(ExitCommandError, "open backup store", err)
		}
		bc = backup.NewClient(cas, nil, log)
	}

	mappings, err := entity.Mappings()
	if err != nil {
		app.Close()
		return nil, WrapExitError(ExitCommandError, "load entity mappings", err)
	}

	app.Pipeline = protocol.New(mappings, lc, bc, st, protocol.Options{
		VerifyConcurrency: cfg.Verify.Concurrency,
		Log:               log,
	})
	return app, nil
}
