package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"devtrack/internal/bootstrap"
	sessiondto "devtrack/internal/modules/session/dto"
	"devtrack/internal/platform/config"
	apperrors "devtrack/internal/platform/errors"
	"devtrack/internal/ui/theme"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, theme.Error.Render("✗ "+err.Error()))
		os.Exit(1)
	}
}

type rootOptions struct {
	dataFile   string
	configFile string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "track",
		Short:         "Track development time against a daily goal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.dataFile, "data", "", "data file (default $HOME/.devtrack/data.json)")
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default $HOME/.devtrack/config.yaml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug|info|warn|error")

	root.AddCommand(newStartCmd(opts))
	root.AddCommand(newStopCmd(opts))
	root.AddCommand(newStatusCmd(opts))
	root.AddCommand(newReportCmd(opts))
	root.AddCommand(newConfigCmd(opts))
	root.AddCommand(newReindexCmd(opts))
	root.AddCommand(newExportCmd(opts))
	root.AddCommand(newTimerCmd(opts))
	root.AddCommand(newServeCmd(opts))
	return root
}

func loadConfig(opts *rootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return config.Config{}, err
	}
	if strings.TrimSpace(opts.dataFile) != "" {
		if cfg, err = cfg.WithDataFile(opts.dataFile); err != nil {
			return config.Config{}, err
		}
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	return cfg, nil
}

func loadApp(opts *rootOptions, bopts bootstrap.Options) (*bootstrap.App, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	return bootstrap.New(cfg, bopts)
}

// withApp runs fn against a freshly wired app and releases it afterwards.
func withApp(opts *rootOptions, fn func(app *bootstrap.App) error) error {
	app, err := loadApp(opts, bootstrap.Options{})
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()
	return fn(app)
}

func newStartCmd(opts *rootOptions) *cobra.Command {
	var project string
	cmd := &cobra.Command{
		Use:   "start [project]",
		Short: "Start a new work session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				project = args[0]
			}
			p := newPrinter(cmd.OutOrStdout())
			return withApp(opts, func(app *bootstrap.App) error {
				out, err := app.SessionCLI.Start(cmd.Context(), project)
				var active *sessiondto.ActiveSessionError
				if errors.As(err, &active) {
					p.Warn("There is already an active session running.")
					if !active.StartedAt.IsZero() {
						p.Muted("Started at: %s", active.StartedAt.Format(humanLayout))
					}
					if active.Session.Project != "" {
						p.Muted("Project: %s", active.Session.Project)
					}
					return nil
				}
				if err != nil {
					return fmt.Errorf("start session: %w", err)
				}
				p.Success("Session started successfully!")
				p.Muted("Started at: %s", out.StartedAt.Format(humanLayout))
				if out.Session.Project != "" {
					p.Muted("Project: %s", out.Session.Project)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "project name for this session")
	return cmd
}

func newStopCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the active session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := newPrinter(cmd.OutOrStdout())
			return withApp(opts, func(app *bootstrap.App) error {
				out, err := app.SessionCLI.Stop(cmd.Context())
				if errors.Is(err, apperrors.ErrNoActiveSession) {
					p.Muted(`Use "track start" to begin a new session.`)
					return err
				}
				if err != nil {
					return fmt.Errorf("stop session: %w", err)
				}
				p.Success("Session stopped successfully!")
				p.Muted("Started: %s", out.StartedAt.Format(humanLayout))
				p.Muted("Ended: %s", out.EndedAt.Format(humanLayout))
				p.Muted("Duration: %s (%d minutes)", hoursMinutes(out.Minutes), out.Minutes)
				if out.Session.Project != "" {
					p.Muted("Project: %s", out.Session.Project)
				}
				return nil
			})
		},
	}
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the active session and today's progress",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := newPrinter(cmd.OutOrStdout())
			return withApp(opts, func(app *bootstrap.App) error {
				status, err := app.SessionCLI.Status(cmd.Context())
				if err != nil {
					return fmt.Errorf("get status: %w", err)
				}
				printStatus(p, status)
				return nil
			})
		},
	}
}

func printStatus(p printer, status sessiondto.StatusOutput) {
	label := "Today's Total"
	if status.Active {
		elapsed := status.ElapsedSeconds
		p.Info("Current Session:")
		p.Muted("Started: %s", status.StartedAt.Format(humanLayout))
		p.Muted("Elapsed: %dh %dm %ds", elapsed/3600, elapsed/60%60, elapsed%60)
		if status.Session.Project != "" {
			p.Muted("Project: %s", status.Session.Project)
		}
		label = "Today's Progress"
	} else {
		p.Warn("No active session.")
	}
	p.Info("%s: %s / %gh (%.0f%%)", label, hoursMinutes(status.TodayMinutes), status.DailyGoal, status.Progress)
	if status.GoalAchieved {
		p.Success("Daily goal achieved!")
		return
	}
	p.Muted("Remaining: %s to reach goal", hoursMinutes(status.RemainingMinutes))
}

func newReportCmd(opts *rootOptions) *cobra.Command {
	var today, byProject bool
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show time tracking reports",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := newPrinter(cmd.OutOrStdout())
			return withApp(opts, func(app *bootstrap.App) error {
				if byProject {
					out, err := app.SessionCLI.ProjectReport(cmd.Context())
					if err != nil {
						return fmt.Errorf("generate report: %w", err)
					}
					printProjectReport(p, out)
					return nil
				}
				out, err := app.SessionCLI.Report(cmd.Context(), today)
				if err != nil {
					return fmt.Errorf("generate report: %w", err)
				}
				printReport(p, out)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&today, "today", "t", false, "show today's sessions")
	cmd.Flags().BoolVar(&byProject, "by-project", false, "total time per project")
	cmd.MarkFlagsMutuallyExclusive("today", "by-project")
	return cmd
}

func printReport(p printer, out sessiondto.ReportOutput) {
	totalMinutes := int(out.TotalSeconds / 60)
	if !out.Today {
		p.Info("Time Tracking Summary:")
		p.Muted("Total sessions: %d", out.Count)
		p.Muted("Total time: %s", hoursMinutes(totalMinutes))
		return
	}
	p.Info("Today's Sessions:")
	if len(out.Lines) == 0 {
		p.Muted("No sessions today.")
	}
	for _, line := range out.Lines {
		p.Muted("  • %s - %s (%s)", line.StartedAt.Format("15:04"), line.EndedAt.Format("15:04"), hoursMinutesSeconds(line.Seconds))
		if line.Project != "" {
			p.Muted("    Project: %s", line.Project)
		}
		if line.Notes != "" {
			p.Muted("    Notes: %s", line.Notes)
		}
	}
	p.Info("Total today: %s / %gh", hoursMinutes(totalMinutes), out.DailyGoal)
}

func printProjectReport(p printer, out sessiondto.ProjectReportOutput) {
	p.Info("Time by Project:")
	if len(out.Projects) == 0 {
		p.Muted("No completed sessions.")
		return
	}
	for _, project := range out.Projects {
		p.Muted("  %-24s %8s  (%d sessions)", project.Project, hoursMinutes(int(project.TotalSeconds/60)), project.Sessions)
	}
}

func newConfigCmd(opts *rootOptions) *cobra.Command {
	var get, set string
	var list bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration stored in the data file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !list && get == "" && set == "" {
				return cmd.Help()
			}
			p := newPrinter(cmd.OutOrStdout())
			return withApp(opts, func(app *bootstrap.App) error {
				switch {
				case list:
					entries, err := app.SessionCLI.ConfigList(cmd.Context())
					if err != nil {
						return fmt.Errorf("manage configuration: %w", err)
					}
					p.Info("Configuration:")
					if len(entries) == 0 {
						p.Muted("No configuration set.")
					}
					for _, e := range entries {
						p.Muted("  %s: %s", e.Key, e.Value)
					}
				case get != "":
					entry, err := app.SessionCLI.ConfigGet(cmd.Context(), get)
					if errors.Is(err, apperrors.ErrNotFound) {
						p.Warn("Configuration key %q not found.", get)
						return nil
					}
					if err != nil {
						return fmt.Errorf("manage configuration: %w", err)
					}
					p.Info("%s: %s", entry.Key, entry.Value)
				default:
					entry, err := app.SessionCLI.ConfigSet(cmd.Context(), set)
					if err != nil {
						return fmt.Errorf("manage configuration: %w", err)
					}
					p.Success("Configuration updated: %s = %s", entry.Key, entry.Value)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&get, "get", "g", "", "get a configuration value")
	cmd.Flags().StringVarP(&set, "set", "s", "", "set a configuration value (key=value)")
	cmd.Flags().BoolVarP(&list, "list", "l", false, "list all configuration values")
	cmd.MarkFlagsMutuallyExclusive("get", "set", "list")
	return cmd
}

func newReindexCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the SQLite session projection from the data file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := newPrinter(cmd.OutOrStdout())
			return withApp(opts, func(app *bootstrap.App) error {
				out, err := app.SessionCLI.Reindex(cmd.Context())
				if err != nil {
					return fmt.Errorf("reindex: %w", err)
				}
				p.Success("Reindexed %d sessions", out.Sessions)
				return nil
			})
		},
	}
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "export --dir <path>",
		Short: "Write one Markdown journal note per tracked day",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(dir) == "" {
				return fmt.Errorf("--dir is required")
			}
			p := newPrinter(cmd.OutOrStdout())
			return withApp(opts, func(app *bootstrap.App) error {
				out, err := app.SessionCLI.Export(cmd.Context(), dir)
				if err != nil {
					return fmt.Errorf("export: %w", err)
				}
				p.Success("Exported %d daily notes to %s", len(out.Paths), dir)
				for _, path := range out.Paths {
					p.Muted("  %s", path)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "journal directory (e.g. an Obsidian vault folder)")
	return cmd
}

func newTimerCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "timer",
		Short: "Run the terminal timer",
		RunE: func(_ *cobra.Command, _ []string) error {
			return withApp(opts, bootstrap.RunTUI)
		},
	}
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the web timer and JSON API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loadApp(opts, bootstrap.Options{Console: true, Pretty: true})
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if addr == "" {
				addr = app.Config.Addr
			}
			newPrinter(cmd.OutOrStdout()).Info("Dev Tracker running on http://%s", addr)
			return bootstrap.Serve(ctx, app, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, 127.0.0.1:3000)")
	return cmd
}
