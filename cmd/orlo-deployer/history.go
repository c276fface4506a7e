package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/orlo-deployer/internal/state"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	failedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
)

type historyOptions struct {
	run   string
	limit int
	purge time.Duration
}

func newHistoryCmd(root *rootOptions) *cobra.Command {
	opts := &historyOptions{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded deployment runs",
		Long: `List the runs recorded in the run journal, newest first.

With --run, show the orchestrator calls of a single run instead.
With --purge, delete runs older than the given age first.

The journal is read from --journal (ORLO_JOURNAL), falling back to
$XDG_DATA_HOME/orlo-deployer/journal.db.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, root, opts)
		},
	}

	cmd.Flags().StringVar(&opts.run, "run", "", "Show the calls of one run")
	cmd.Flags().IntVar(&opts.limit, "limit", 20, "Maximum number of runs to list (0 for all)")
	cmd.Flags().DurationVar(&opts.purge, "purge", 0, "Delete runs older than this age, e.g. 720h")

	return cmd
}

func runHistory(cmd *cobra.Command, root *rootOptions, opts *historyOptions) error {
	cfg, err := loadConfig(cmd, root)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	path := cfg.Journal.Path
	if path == "" {
		path = state.DefaultPath()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}

	db, err := openJournal(path)
	if err != nil {
		return err
	}
	defer db.Close()

	if opts.purge > 0 {
		n, err := db.PurgeOldRuns(opts.purge)
		if err != nil {
			return fmt.Errorf("purge runs: %w", err)
		}
		fmt.Fprintf(out, "Purged %d run(s) older than %s\n", n, opts.purge)
	}

	if opts.run != "" {
		return displayRun(out, db, opts.run)
	}
	return displayRuns(out, db, opts.limit)
}

func displayRuns(out io.Writer, db *state.DB, limit int) error {
	runs, err := db.ListRuns(limit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}

	fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("%-36s  %-19s  %-10s  %-10s  %-8s  %s",
		"RUN", "STARTED", "MODE", "RELEASE", "PACKAGES", "STATUS")))
	for _, r := range runs {
		release := r.ReleaseID
		if release == "" {
			release = "-"
		}
		fmt.Fprintf(out, "%-36s  %-19s  %-10s  %-10s  %-8d  %s\n",
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Mode,
			release,
			r.Packages,
			renderStatus(r.Status),
		)
	}
	return nil
}

func displayRun(out io.Writer, db *state.DB, id string) error {
	run, err := db.GetRun(id)
	if err != nil {
		return fmt.Errorf("get run: %w", err)
	}
	if run == nil {
		return fmt.Errorf("run %s not found", id)
	}

	fmt.Fprintf(out, "Run:      %s\n", run.ID)
	fmt.Fprintf(out, "Mode:     %s\n", run.Mode)
	if run.OrchestratorURL != "" {
		fmt.Fprintf(out, "URL:      %s\n", run.OrchestratorURL)
	}
	if run.ReleaseID != "" {
		fmt.Fprintf(out, "Release:  %s\n", run.ReleaseID)
	}
	fmt.Fprintf(out, "Rollback: %t\n", run.Rollback)
	fmt.Fprintf(out, "Status:   %s\n", renderStatus(run.Status))
	fmt.Fprintf(out, "Duration: %s\n", run.Duration().Round(time.Millisecond))
	if run.Error != "" {
		fmt.Fprintf(out, "Error:    %s\n", run.Error)
	}

	events, err := db.ListEvents(run.ID)
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}
	if len(events) == 0 {
		return nil
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("%-6s  %-48s  %-6s  %s", "METHOD", "PATH", "STATUS", "DURATION")))
	for _, e := range events {
		status := fmt.Sprintf("%d", e.StatusCode)
		if e.StatusCode == 0 {
			status = "-"
		}
		line := fmt.Sprintf("%-6s  %-48s  %-6s  %s", e.Method, e.Path, status, e.Duration.Round(time.Millisecond))
		if e.Error != "" {
			line += "  " + failedStyle.Render(e.Error)
		}
		fmt.Fprintln(out, line)
	}
	return nil
}

func renderStatus(s state.RunStatus) string {
	switch s {
	case state.RunSucceeded:
		return okStyle.Render(string(s))
	case state.RunFailed:
		return failedStyle.Render(string(s))
	default:
		return string(s)
	}
}
