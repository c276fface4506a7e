package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ShayCichocki/orlo-deployer/internal/config"
	"github.com/ShayCichocki/orlo-deployer/internal/deployer"
	"github.com/ShayCichocki/orlo-deployer/internal/exec"
	"github.com/ShayCichocki/orlo-deployer/internal/install"
	"github.com/ShayCichocki/orlo-deployer/internal/logging"
	"github.com/ShayCichocki/orlo-deployer/internal/manifest"
	"github.com/ShayCichocki/orlo-deployer/internal/orlo"
	"github.com/ShayCichocki/orlo-deployer/internal/state"
	"github.com/ShayCichocki/orlo-deployer/pkg/models"
)

// rootOptions holds flags that are not part of the layered config.
type rootOptions struct {
	configFile string
	manifest   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "orlo-deployer [name=version ...]",
		Short: "Install packages and report the deployment to Orlo",
		Long: `orlo-deployer installs a list of packages and reports each step to an
Orlo orchestrator.

With ORLO_RELEASE (or --release) set, it attaches to that release and
deploys the packages already registered on it, ignoring any given on the
command line. Otherwise it creates a new release for the name=version
packages given as arguments or in a --manifest file.

Without ORLO_URL (or --url) no orchestrator calls are made: every package
is still installed locally.

The install step is simulated by default. Set --install-command to run a
real command, e.g. "apt-get install -y {{.Name}}={{.Version}}".`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeploy(cmd, opts, args)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "Config file (replaces user and project config)")
	flags.String("url", "", "Orchestrator base URL (ORLO_URL)")
	flags.Duration("timeout", 0, "Per-request orchestrator timeout (ORLO_TIMEOUT)")
	flags.String("release", "", "Attach to an existing release id (ORLO_RELEASE)")
	flags.String("user", "", "User performing the release (ORLO_USER)")
	flags.String("team", "", "Team responsible for the release (ORLO_TEAM)")
	flags.String("platforms", "", "Comma-separated platforms (ORLO_PLATFORMS)")
	flags.String("references", "", "Comma-separated references (ORLO_REFERENCES)")
	flags.String("note", "", "Note attached to a created release (ORLO_NOTE)")
	flags.Bool("rollback", false, "Mark packages as a rollback (ORLO_ROLLBACK)")
	flags.String("install-command", "", "Install command template (ORLO_INSTALL_COMMAND)")
	flags.Duration("install-delay", 0, "Simulated install duration (ORLO_INSTALL_DELAY)")
	flags.String("install-dir", "", "Working directory of the install command (ORLO_INSTALL_DIR)")
	flags.Bool("report-results", false, "Post install output to the orchestrator (ORLO_REPORT_RESULTS)")
	flags.String("journal", "", "SQLite run journal path, empty disables (ORLO_JOURNAL)")
	flags.String("log-level", "", "Log level: debug, info, warn, error (ORLO_LOG_LEVEL)")
	flags.String("log-file", "", "Also write JSON debug logs to this file (ORLO_LOG_FILE)")

	cmd.Flags().StringVar(&opts.manifest, "manifest", "", "YAML manifest of packages to deploy")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newConfigCmd(opts))
	cmd.AddCommand(newHistoryCmd(opts))

	return cmd
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads the layered configuration with cmd's flags on top.
func loadConfig(cmd *cobra.Command, opts *rootOptions) (*config.Config, error) {
	return config.Load(config.Options{File: opts.configFile, Flags: cmd.Flags()})
}

func runDeploy(cmd *cobra.Command, opts *rootOptions, args []string) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	log, cleanup, err := logging.New(logging.Config{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		return err
	}
	defer cleanup()

	local, m, err := manifest.Resolve(args, opts.manifest)
	if err != nil {
		return err
	}

	console := deployer.NewConsole(cmd.OutOrStdout())
	console.Banner(Version())

	var journal *deployer.Recorder
	if cfg.Journal.Path != "" {
		db, err := openJournal(cfg.Journal.Path)
		if err != nil {
			log.Warnw("journal unavailable, continuing without it", "path", cfg.Journal.Path, "error", err)
		} else {
			defer db.Close()
			journal = deployer.NewRecorder(db, log)
		}
	}

	installer, err := newInstaller(cfg, console)
	if err != nil {
		return err
	}

	hc, err := newClient(cfg, console, journal, log)
	if err != nil {
		return err
	}
	var (
		client       orlo.Client
		orchestrator string
	)
	if hc != nil {
		client = hc
		orchestrator = hc.BaseURL()
	}

	reporter, err := deployer.New(deployer.Config{
		Client:          client,
		Installer:       installer,
		Console:         console,
		Journal:         journal,
		Logger:          log,
		Release:         releaseOptions(cfg, m),
		OrchestratorURL: orchestrator,
	})
	if err != nil {
		return err
	}

	_, err = reporter.Run(cmd.Context(), local)
	return err
}

// newClient returns nil when no orchestrator is configured.
func newClient(cfg *config.Config, console *deployer.Console, journal *deployer.Recorder, log *zap.SugaredLogger) (*orlo.HTTPClient, error) {
	if cfg.Standalone() {
		return nil, nil
	}
	observers := []orlo.Observer{console.Observe}
	if journal != nil {
		observers = append(observers, journal.Observe)
	}
	return orlo.NewClient(orlo.Config{
		BaseURL:   cfg.Orchestrator.URL,
		Username:  cfg.Orchestrator.Username,
		Password:  cfg.Orchestrator.Password,
		Token:     cfg.Orchestrator.Token,
		Timeout:   cfg.Orchestrator.Timeout,
		Observers: observers,
	}, log)
}

func newInstaller(cfg *config.Config, console *deployer.Console) (install.Installer, error) {
	if cfg.Install.Command == "" {
		return install.NewSimulated(console.Writer(), cfg.Install.Delay), nil
	}
	return install.NewCommand(cfg.Install.Command, &exec.ExecRunner{Dir: cfg.Install.Dir}, console.Writer())
}

// releaseOptions merges the manifest's note and metadata under the
// configured ones.
func releaseOptions(cfg *config.Config, m *manifest.Manifest) deployer.ReleaseOptions {
	note := cfg.Release.Note
	if note == "" {
		note = m.Note
	}

	var metadata map[string]string
	if len(m.Metadata) > 0 || len(cfg.Release.Metadata) > 0 {
		metadata = make(map[string]string, len(m.Metadata)+len(cfg.Release.Metadata))
		for k, v := range m.Metadata {
			metadata[k] = v
		}
		for k, v := range cfg.Release.Metadata {
			metadata[k] = v
		}
	}

	return deployer.ReleaseOptions{
		ID:            models.ID(cfg.Release.ID),
		User:          cfg.Release.User,
		Team:          cfg.Release.Team,
		Platforms:     cfg.Release.Platforms,
		References:    cfg.Release.References,
		Note:          note,
		Metadata:      metadata,
		Rollback:      cfg.Release.Rollback,
		ReportResults: cfg.Install.ReportResults,
	}
}

// openJournal opens and migrates the run journal.
func openJournal(path string) (*state.DB, error) {
	db, err := state.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return db, nil
}
