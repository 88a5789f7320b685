package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/schaermu/claspsync/internal/clasp"
	"github.com/schaermu/claspsync/internal/config"
	"github.com/schaermu/claspsync/internal/stage"
)

// DeployResult holds the output of the version and deploy steps
type DeployResult struct {
	VersionOutput string
	DeployOutput  string
}

// Engine sequences clasp invocations and file staging
type Engine struct {
	cfg    *config.Config
	runner clasp.Runner
	stager *stage.Stager
	logger *slog.Logger
	dryRun bool
}

// NewEngine creates a new publish engine
func NewEngine(cfg *config.Config, runner clasp.Runner, stager *stage.Stager, logger *slog.Logger, dryRun bool) *Engine {
	return &Engine{
		cfg:    cfg,
		runner: runner,
		stager: stager,
		logger: logger,
		dryRun: dryRun,
	}
}

// Push pushes the files already present in the project root
func (e *Engine) Push(ctx context.Context) (string, error) {
	e.logger.Info("pushing code to Google Apps Script")

	out, err := e.run(ctx, clasp.VerbPush)
	if err != nil {
		e.logger.Error("error pushing code", "error", err)
		return out, fmt.Errorf("push failed: %w", err)
	}

	e.logger.Info("code pushed successfully")
	return out, nil
}

// PushStaged copies the source directory into the project root, pushes, and
// removes the copies again. Under the on-success cleanup policy the copies
// stay in place when the push fails; the manifest keeps track of them.
func (e *Engine) PushStaged(ctx context.Context) (string, error) {
	e.logger.Info("pushing code to Google Apps Script", "source_dir", e.cfg.SourceDir())

	if e.dryRun {
		return "", e.logStagePlan()
	}

	set, err := e.stager.Stage()
	if err != nil {
		e.logger.Error("error staging files", "error", err)
		return "", fmt.Errorf("push failed: %w", err)
	}

	out, pushErr := e.runner.Run(ctx, clasp.VerbPush)
	if pushErr != nil {
		e.logger.Error("error pushing code", "error", pushErr)
		if e.cfg.Push.Cleanup != config.CleanupAlways {
			e.logger.Warn("staged copies left in project root",
				"count", len(set.Copied()),
				"hint", "run with --clean to remove them")
			return out, fmt.Errorf("push failed: %w", pushErr)
		}
		if _, cleanErr := e.stager.Cleanup(set); cleanErr != nil {
			return out, fmt.Errorf("push failed: %w", errors.Join(pushErr, cleanErr))
		}
		return out, fmt.Errorf("push failed: %w", pushErr)
	}
	e.logger.Info("code pushed successfully")

	removed, err := e.stager.Cleanup(set)
	if err != nil {
		e.logger.Error("error cleaning up staged files", "error", err)
		return out, fmt.Errorf("cleanup after push failed: %w", err)
	}
	e.logger.Debug("cleanup complete", "removed", len(removed))

	return out, nil
}

// Pull pulls the remote project into the root and moves the script files into
// the source directory
func (e *Engine) Pull(ctx context.Context) (string, error) {
	e.logger.Info("pulling code from Google Apps Script")

	out, err := e.run(ctx, clasp.VerbPull)
	if err != nil {
		e.logger.Error("error pulling code", "error", err)
		return out, fmt.Errorf("pull failed: %w", err)
	}

	if e.dryRun {
		return out, e.logRelocationPlan()
	}

	set, err := e.stager.Relocate()
	if err != nil {
		e.logger.Error("error organizing pulled files", "error", err)
		return out, fmt.Errorf("pull failed: %w", err)
	}

	e.logger.Info("code pulled and organized successfully", "moved", len(set.Files))
	return out, nil
}

// Deploy creates a new version and then deploys it
func (e *Engine) Deploy(ctx context.Context) (*DeployResult, error) {
	e.logger.Info("deploying project")

	result := &DeployResult{}

	out, err := e.run(ctx, clasp.VerbVersion, "-d", e.cfg.Deploy.VersionDescription)
	if err != nil {
		e.logger.Error("error creating version", "error", err)
		return result, fmt.Errorf("deploy failed: %w", err)
	}
	result.VersionOutput = out
	e.logger.Info("version created successfully")

	out, err = e.run(ctx, clasp.VerbDeploy, "-d", e.cfg.Deploy.Description, "-i", e.cfg.Deploy.DeploymentID)
	if err != nil {
		e.logger.Error("error deploying project", "error", err)
		return result, fmt.Errorf("deploy failed: %w", err)
	}
	result.DeployOutput = out
	e.logger.Info("project deployed successfully")

	return result, nil
}

// Full pushes and then deploys
func (e *Engine) Full(ctx context.Context) (*DeployResult, error) {
	if _, err := e.Push(ctx); err != nil {
		return nil, err
	}
	return e.Deploy(ctx)
}

// Clean removes staged copies recorded by a push that did not clean up
func (e *Engine) Clean() ([]string, error) {
	m, err := e.stager.LoadManifest()
	if err != nil {
		return nil, fmt.Errorf("clean failed: %w", err)
	}
	if m == nil {
		e.logger.Info("nothing to clean, no staged files recorded")
		return nil, nil
	}

	// Entries listed but never copied may name the user's own root files
	copied := &stage.StagedSet{Files: m.Set.Copied()}

	if e.dryRun {
		for _, f := range copied.Files {
			e.logger.Info("[dry-run] would remove", "file", f.DestPath)
		}
		return nil, nil
	}

	removed, err := e.stager.Cleanup(copied)
	if err != nil {
		return removed, fmt.Errorf("clean failed: %w", err)
	}
	e.logger.Info("removed leftover staged files", "count", len(removed), "staged_at", m.StagedAt)
	return removed, nil
}

// run invokes clasp unless in dry-run mode
func (e *Engine) run(ctx context.Context, verb clasp.Verb, args ...string) (string, error) {
	if e.dryRun {
		e.logger.Info("[dry-run] would run clasp", "verb", string(verb), "args", strings.Join(args, " "))
		return "", nil
	}
	return e.runner.Run(ctx, verb, args...)
}

// logStagePlan logs the copy and push steps without executing them
func (e *Engine) logStagePlan() error {
	set, err := e.stager.Plan()
	if err != nil {
		return fmt.Errorf("push failed: %w", err)
	}
	for _, f := range set.Files {
		if f.IsDir {
			continue
		}
		e.logger.Info("[dry-run] would stage", "source", f.SourcePath, "dest", f.DestPath)
	}
	e.logger.Info("[dry-run] would run clasp", "verb", string(clasp.VerbPush))
	e.logger.Info("dry-run complete, no changes applied")
	return nil
}

// logRelocationPlan logs which root files a pull would move
func (e *Engine) logRelocationPlan() error {
	set, err := e.stager.PlanRelocation()
	if err != nil {
		return fmt.Errorf("pull failed: %w", err)
	}
	for _, f := range set.Files {
		e.logger.Info("[dry-run] would move", "source", f.FromPath, "dest", f.ToPath)
	}
	e.logger.Info("dry-run complete, no changes applied")
	return nil
}
