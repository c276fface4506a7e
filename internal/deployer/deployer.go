// Package deployer reports a deployment to the Orlo orchestrator while
// running the local install action for each package.
//
// A run resolves a Mode, deploys each package in order and finishes the
// release. Any failed orchestrator call aborts the run; nothing is retried.
package deployer

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ShayCichocki/orlo-deployer/internal/install"
	"github.com/ShayCichocki/orlo-deployer/internal/logging"
	"github.com/ShayCichocki/orlo-deployer/internal/orlo"
	"github.com/ShayCichocki/orlo-deployer/pkg/models"
)

// ReleaseOptions describe the release to attach to or create.
type ReleaseOptions struct {
	// ID attaches to an existing release; empty creates one.
	ID         models.ID
	User       string
	Team       string
	Platforms  []string
	References []string
	Note       string
	Metadata   map[string]string
	// Rollback is sent with every registered package.
	Rollback bool
	// ReportResults posts install output to the orchestrator before stop.
	ReportResults bool
}

// Config wires a Reporter.
type Config struct {
	// Client is nil when no orchestrator is configured.
	Client    orlo.Client
	Installer install.Installer
	Console   *Console
	Journal   *Recorder
	Logger    *zap.SugaredLogger
	Release   ReleaseOptions
	// OrchestratorURL is recorded in the journal only.
	OrchestratorURL string
}

// Reporter is the deployment reporter.
type Reporter struct {
	client    orlo.Client
	installer install.Installer
	console   *Console
	journal   *Recorder
	log       *zap.SugaredLogger
	opts      ReleaseOptions
	url       string
}

// Result summarises a run.
type Result struct {
	Mode Mode
	// Deployed counts the deployables whose install completed.
	Deployed int
}

// New returns a Reporter. An installer is required.
func New(cfg Config) (*Reporter, error) {
	if cfg.Installer == nil {
		return nil, errors.New("deployer: installer is required")
	}
	if cfg.Console == nil {
		cfg.Console = NewConsole(nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}
	return &Reporter{
		client:    cfg.Client,
		installer: cfg.Installer,
		console:   cfg.Console,
		journal:   cfg.Journal,
		log:       cfg.Logger.Named("deployer"),
		opts:      cfg.Release,
		url:       cfg.OrchestratorURL,
	}, nil
}

// Run resolves the release, deploys every deployable in order and
// finishes the release. local is the package list given on the command
// line or in a manifest; it is ignored when attaching to a release.
func (r *Reporter) Run(ctx context.Context, local []models.Deployable) (*Result, error) {
	r.journal.Begin(r.url, r.opts.Rollback)

	res := &Result{}
	err := r.run(ctx, local, res)
	r.journal.End(res.Mode, res.Deployed, err)
	return res, err
}

func (r *Reporter) run(ctx context.Context, local []models.Deployable, res *Result) error {
	mode, deployables, err := r.Resolve(ctx, local)
	if err != nil {
		return err
	}
	res.Mode = mode

	for _, d := range deployables {
		if err := r.Deploy(ctx, mode, d); err != nil {
			return err
		}
		res.Deployed++
	}

	return r.Finish(ctx, mode)
}

// Resolve picks the run's mode and the deployables to process.
func (r *Reporter) Resolve(ctx context.Context, local []models.Deployable) (Mode, []models.Deployable, error) {
	if r.client == nil {
		r.log.Infow("no orchestrator configured, running standalone", "packages", len(local))
		return Standalone{}, local, nil
	}

	if !r.opts.ID.Empty() {
		release, err := r.client.GetRelease(ctx, r.opts.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("fetch release %s: %w", r.opts.ID, err)
		}
		if len(local) > 0 {
			r.log.Warnw("attaching to an existing release, ignoring local packages",
				"release", release.ID, "ignored", len(local))
		}
		r.console.ReleaseID(release.ID)
		r.log.Infow("attached to release", "release", release.ID, "packages", len(release.Packages))
		return Tracked{Release: release}, release.Deployables(), nil
	}

	release, err := r.client.CreateRelease(ctx, orlo.CreateReleaseRequest{
		User:       r.opts.User,
		Team:       r.opts.Team,
		Platforms:  nonNil(r.opts.Platforms),
		References: nonNil(r.opts.References),
		Note:       r.opts.Note,
		Metadata:   r.opts.Metadata,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create release: %w", err)
	}
	if release == nil || release.ID.Empty() {
		r.log.Warn("orchestrator returned no release, continuing standalone")
		return Standalone{}, local, nil
	}
	r.console.ReleaseID(release.ID)
	r.log.Infow("created release", "release", release.ID, "packages", len(local))
	return Tracked{Release: release}, local, nil
}

// Deploy processes one deployable: register, start, install, stop.
// A failed install is stopped with success=false and returned as an
// *install.Error.
func (r *Reporter) Deploy(ctx context.Context, mode Mode, d models.Deployable) error {
	switch m := mode.(type) {
	case Standalone:
		r.console.Installing(d)
		result, err := r.install(ctx, d)
		if err != nil {
			return err
		}
		if !result.Success {
			return &install.Error{Deployable: d, Output: result.Output}
		}
		return nil

	case Tracked:
		rid := m.Release.ID
		pid, err := r.client.AddPackage(ctx, rid, orlo.AddPackageRequest{
			Name:     d.Name,
			Version:  d.Version,
			Rollback: r.opts.Rollback,
		})
		if err != nil {
			return fmt.Errorf("register %s: %w", d, err)
		}

		r.console.Installing(d)

		if err := r.client.StartPackage(ctx, rid, pid); err != nil {
			return fmt.Errorf("start %s: %w", d, err)
		}

		result, err := r.install(ctx, d)
		if err != nil {
			return err
		}

		if r.opts.ReportResults && result.Output != "" {
			if err := r.client.PackageResults(ctx, rid, pid, result.Output); err != nil {
				return fmt.Errorf("report results for %s: %w", d, err)
			}
		}

		if err := r.client.StopPackage(ctx, rid, pid, result.Success); err != nil {
			return fmt.Errorf("stop %s: %w", d, err)
		}
		if !result.Success {
			return &install.Error{Deployable: d, Output: result.Output}
		}
		return nil

	default:
		return fmt.Errorf("deployer: unknown mode %T", mode)
	}
}

// Finish stops the release of a tracked run and prints the final line.
func (r *Reporter) Finish(ctx context.Context, mode Mode) error {
	switch m := mode.(type) {
	case Standalone:
	case Tracked:
		if err := r.client.StopRelease(ctx, m.Release.ID); err != nil {
			return fmt.Errorf("stop release %s: %w", m.Release.ID, err)
		}
		r.log.Infow("release finished", "release", m.Release.ID)
	default:
		return fmt.Errorf("deployer: unknown mode %T", mode)
	}
	r.console.Finished()
	return nil
}

func (r *Reporter) install(ctx context.Context, d models.Deployable) (install.Result, error) {
	r.log.Debugw("installing", "package", d.Name, "version", d.Version, "rollback", r.opts.Rollback)
	result, err := r.installer.Install(ctx, d, r.opts.Rollback)
	if err != nil {
		return result, fmt.Errorf("install %s: %w", d, err)
	}
	if !result.Success {
		r.log.Warnw("install failed", "package", d.Name, "version", d.Version)
	}
	return result, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
