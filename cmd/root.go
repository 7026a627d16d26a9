package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ZacxDev/fetchooni/config"
	"github.com/ZacxDev/fetchooni/fetch"
	"github.com/ZacxDev/fetchooni/fs"
	"github.com/ZacxDev/fetchooni/logger"
	"github.com/ZacxDev/fetchooni/manifest"
	"github.com/ZacxDev/fetchooni/runner"
	"github.com/ZacxDev/fetchooni/ui"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	tea "github.com/charmbracelet/bubbletea"
)

var (
	configPath   string
	chdir        string
	logLevel     string
	force        bool
	useUI        bool
	fetchTimeout time.Duration

	rootCmd = &cobra.Command{
		Use:   "fetchooni [target]",
		Short: "Fetch, extract and build third-party source archives from a declared target graph",
		Long: `fetchooni resolves a small DAG of filesystem targets declared in a
Starlark file. Leaf targets download archives, intermediate targets
unpack them, and command targets drive the native build. A target whose
artifact already exists and is newer than its prerequisites is left
alone, so re-running after a successful build does nothing.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if level, ok := logger.ParseLogLevel(logLevel); ok {
				logger.SetLevel(level)
			} else if logLevel != "" {
				return errors.Errorf("unknown log level %q", logLevel)
			}
			if chdir != "" {
				if err := os.Chdir(chdir); err != nil {
					return errors.Wrapf(err, "failed to change directory to %s", chdir)
				}
			}
			return nil
		},
		RunE: func(_ *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			tr, pipeline, err := buildRunner()
			if err != nil {
				return err
			}
			tr.SetForce(force)
			if fetchTimeout > 0 {
				tr.SetFetcher(fetch.NewClient().WithTimeout(fetchTimeout))
			}

			name := pipeline.Default
			if len(args) == 1 {
				name = args[0]
			}
			if name == "" {
				return errors.New("no target named and config declares no default")
			}

			if useUI {
				return runWithUI(ctx, tr, name)
			}
			return tr.Ensure(ctx, name)
		},
	}
)

// Execute runs the fetchooni CLI and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultFilename, "path to Starlark target definition")
	rootCmd.PersistentFlags().StringVarP(&chdir, "chdir", "C", "", "change to this directory before doing anything")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.Flags().BoolVar(&force, "force", false, "run every action regardless of freshness")
	rootCmd.Flags().BoolVar(&useUI, "ui", false, "show an interactive status view instead of plain logs")
	rootCmd.Flags().DurationVar(&fetchTimeout, "fetch-timeout", 0, "per-download timeout (0 means none)")
}

func buildRunner() (*runner.TaskRunner, *config.Pipeline, error) {
	pipeline, err := config.ParseStarlarkConfig(configPath)
	if err != nil {
		return nil, nil, err
	}

	filesystem := fs.RealFileSystem{}
	m := manifest.NewManager(filesystem, manifest.DefaultFilename)
	if err := m.Load(); err != nil {
		return nil, nil, err
	}

	tr := runner.NewTaskRunner(m, filesystem)
	for _, t := range pipeline.Targets {
		tr.AddTarget(t)
	}

	return tr, pipeline, nil
}

func runWithUI(ctx context.Context, tr *runner.TaskRunner, name string) error {
	// The view owns the terminal; command output goes to the status
	// manager only and zap is silenced for the duration.
	previous := logger.Logger()
	logger.SetLogger(zap.NewNop().Sugar())
	defer logger.SetLogger(previous)

	tr.SetLogSink(nil)

	names := make([]string, 0, len(tr.Targets))
	for n := range tr.Targets {
		names = append(names, n)
	}

	model := ui.NewModel(names, tr.StatusManager())
	p := tea.NewProgram(model)

	go func() {
		err := tr.Ensure(ctx, name)
		p.Send(ui.FinishedMsg{Err: err})
	}()

	finalModel, err := p.Run()
	if err != nil {
		return errors.Wrap(err, "failed to run status view")
	}

	return finalModel.(*ui.Model).Err()
}
