package bootstrap

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	sessioninadapter "devtrack/internal/modules/session/adapter/in"
	sessionoutadapter "devtrack/internal/modules/session/adapter/out"
	sessionout "devtrack/internal/modules/session/port/out"
	sessionservice "devtrack/internal/modules/session/service"
	sessionusecase "devtrack/internal/modules/session/usecase"
	"devtrack/internal/platform/clock"
	"devtrack/internal/platform/config"
	"devtrack/internal/platform/id"
	"devtrack/internal/platform/logger"
	"devtrack/internal/platform/tx"
	"devtrack/internal/ui/timer"
	"devtrack/internal/web"
)

type Options struct {
	// Console mirrors logs to stderr; the CLI keeps it off so command
	// output stays clean.
	Console bool
	Pretty  bool
}

type App struct {
	Config      config.Config
	Log         *logger.Logger
	SessionCLI  sessioninadapter.CLIHandler
	SessionHTTP sessioninadapter.HTTPHandler

	projector *sessionoutadapter.SQLiteSessionProjector
}

func New(cfg config.Config, opts Options) (*App, error) {
	log, err := logger.New(logger.Config{
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
		Console: opts.Console,
		Pretty:  opts.Pretty,
	})
	if err != nil {
		return nil, fmt.Errorf("new logger: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		_ = log.Close()
		return nil, err
	}

	clk := clock.SystemClock{}
	ids := id.NanoID{}
	txm := tx.NewFileLockManager(cfg.LockPath(), cfg.LockTimeout)
	store := sessionoutadapter.NewFileDocumentStore(cfg.DataFile, log.Component("store"))

	app := &App{Config: cfg, Log: log}

	// The projection is an optional read model; the JSON file stays
	// authoritative when SQLite cannot be opened.
	var projector sessionout.SessionProjector
	if cfg.DBPath != "" {
		p, err := sessionoutadapter.NewSQLiteSessionProjector(cfg.DBPath, loc)
		if err != nil {
			log.Warn().Err(err).Str("db", cfg.DBPath).Msg("session projection disabled")
		} else {
			app.projector = p
			projector = p
		}
	}

	query := sessionservice.NewQueryService(clk, loc, store, log.Component("query"))
	mutation := sessionservice.NewMutationService(clk, ids, txm, store, projector, log.Component("mutation"))
	sessionUC := sessionusecase.NewInteractor(
		clk,
		txm,
		store,
		query,
		mutation,
		projector,
		sessionoutadapter.NewMarkdownJournalWriter(loc),
	)

	app.SessionCLI = sessioninadapter.NewCLIHandler(sessionUC)
	app.SessionHTTP = sessioninadapter.NewHTTPHandler(sessionUC)
	return app, nil
}

// Close releases the projection database and the log file.
func (a *App) Close() error {
	var errs []error
	if a.projector != nil {
		errs = append(errs, a.projector.Close())
	}
	errs = append(errs, a.Log.Close())
	return errors.Join(errs...)
}

// Serve runs the web UI on addr until ctx is cancelled.
func Serve(ctx context.Context, app *App, addr string) error {
	if addr == "" {
		addr = app.Config.Addr
	}
	server, err := web.NewServer(web.Config{
		Addr:     addr,
		DataFile: app.Config.DataFile,
		Routes:   app.SessionHTTP,
		Logger:   app.Log.Component("web"),
	})
	if err != nil {
		return fmt.Errorf("new web server: %w", err)
	}
	return server.Run(ctx)
}

func RunTUI(app *App) error {
	program := tea.NewProgram(timer.NewModel(app.SessionCLI), tea.WithAltScreen())
	_, err := program.Run()
	return err
}
