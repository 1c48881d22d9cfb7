// Package gitsync maintains a disposable local working copy of a remote
// skill repository: shallow clone, incremental fetch with head comparison,
// and hard reset to the remote head when upstream moved. The working copy
// is not a user workspace; local modifications are discarded on update.
package gitsync

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/skillmesh/skillmesh/pkg/logger"
	skilltypes "github.com/skillmesh/skillmesh/pkg/types/skills"
)

const (
	defaultBranch       = "main"
	defaultCloneTimeout = 5 * time.Minute
	defaultFetchTimeout = 2 * time.Minute
)

// Result reports the outcome of an initialize or sync cycle
type Result struct {
	Success       bool
	Updated       bool
	SkillsChanged bool
	Message       string
}

// Controller manages the working copy. A single mutex gates every mutation
// path, manual calls and the auto-sync loop alike, so at most one fetch or
// reset runs against the working copy at a time.
type Controller struct {
	repoURL string
	branch  string
	workDir string

	cloneTimeout time.Duration
	fetchTimeout time.Duration

	gate sync.Mutex
}

// Option configures a Controller
type Option func(*Controller)

// WithBranch sets the branch to track (default "main")
func WithBranch(branch string) Option {
	return func(c *Controller) {
		if branch != "" {
			c.branch = branch
		}
	}
}

// WithTimeouts overrides the clone and fetch timeouts. The clone timeout
// should stay longer than the fetch timeout: an initial clone moves the
// whole tree, a fetch only the delta.
func WithTimeouts(clone, fetch time.Duration) Option {
	return func(c *Controller) {
		if clone > 0 {
			c.cloneTimeout = clone
		}
		if fetch > 0 {
			c.fetchTimeout = fetch
		}
	}
}

// New creates a sync controller for the given remote and working copy path
func New(repoURL, workDir string, opts ...Option) *Controller {
	c := &Controller{
		repoURL:      repoURL,
		branch:       defaultBranch,
		workDir:      workDir,
		cloneTimeout: defaultCloneTimeout,
		fetchTimeout: defaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WorkDir returns the path of the local working copy
func (c *Controller) WorkDir() string {
	return c.workDir
}

// Initialize ensures the working copy exists: clones when absent, otherwise
// delegates to Sync. A fresh clone always reports SkillsChanged.
func (c *Controller) Initialize(ctx context.Context) (Result, error) {
	c.gate.Lock()
	defer c.gate.Unlock()

	if c.cloned() {
		return c.syncLocked(ctx)
	}
	return c.cloneLocked(ctx)
}

// Sync fetches the tracked branch and hard-resets the working copy when the
// remote head moved. An unchanged head is a cheap no-op.
func (c *Controller) Sync(ctx context.Context) (Result, error) {
	c.gate.Lock()
	defer c.gate.Unlock()

	if !c.cloned() {
		return c.cloneLocked(ctx)
	}
	return c.syncLocked(ctx)
}

// StartAutoSync runs Sync on a fixed period until ctx is cancelled. Ticks
// arriving while a cycle (scheduled or manual) is still running are skipped
// entirely, never queued. onUpdate runs after each successful cycle that
// changed the working copy; its failures are logged, not propagated.
func (c *Controller) StartAutoSync(ctx context.Context, interval time.Duration, onUpdate func(context.Context) error) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.autoSyncCycle(ctx, onUpdate)
			}
		}
	}()
}

func (c *Controller) autoSyncCycle(ctx context.Context, onUpdate func(context.Context) error) {
	if !c.gate.TryLock() {
		logger.G(ctx).Debug("sync cycle still running, skipping tick")
		return
	}
	defer c.gate.Unlock()

	log := logger.G(ctx).WithField("cycle", uuid.NewString())

	var result Result
	var err error
	if c.cloned() {
		result, err = c.syncLocked(ctx)
	} else {
		result, err = c.cloneLocked(ctx)
	}
	if err != nil {
		log.WithError(err).Warn("scheduled sync failed, keeping last-known-good working copy")
		return
	}

	if !result.Updated || onUpdate == nil {
		return
	}

	if err := onUpdate(ctx); err != nil {
		log.WithError(err).Error("sync update callback failed")
	}
}

// cloned reports whether the working copy exists
func (c *Controller) cloned() bool {
	info, err := os.Stat(filepath.Join(c.workDir, ".git"))
	return err == nil && info.IsDir()
}

// cloneLocked performs the shallow single-branch clone. Callers hold the gate.
func (c *Controller) cloneLocked(ctx context.Context) (Result, error) {
	log := logger.G(ctx).WithField("repo", c.repoURL).WithField("branch", c.branch)
	log.Info("cloning skill repository")

	if err := os.MkdirAll(filepath.Dir(c.workDir), 0o755); err != nil {
		return failure(err, "failed to create working copy parent directory")
	}

	cloneCtx, cancel := context.WithTimeout(ctx, c.cloneTimeout)
	defer cancel()

	_, err := runGit(cloneCtx, "", "clone", "--depth", "1",
		"--branch", c.branch, "--single-branch", c.repoURL, c.workDir)
	if err != nil {
		return failure(err, "clone failed")
	}

	log.Info("clone complete")
	return Result{Success: true, Updated: true, SkillsChanged: true, Message: "repository cloned"}, nil
}

// syncLocked fetches the tracked branch at shallow depth and compares
// heads; on divergence the working copy is hard-reset to the remote head.
// Callers hold the gate.
func (c *Controller) syncLocked(ctx context.Context) (Result, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	if _, err := runGit(fetchCtx, c.workDir, "fetch", "--depth", "1", "origin", c.branch); err != nil {
		return failure(err, "fetch failed")
	}

	localHead, err := runGit(fetchCtx, c.workDir, "rev-parse", "HEAD")
	if err != nil {
		return failure(err, "failed to resolve local head")
	}
	remoteHead, err := runGit(fetchCtx, c.workDir, "rev-parse", "FETCH_HEAD")
	if err != nil {
		return failure(err, "failed to resolve remote head")
	}

	if localHead == remoteHead {
		return Result{Success: true, Message: "already up to date"}, nil
	}

	logger.G(ctx).WithField("from", localHead).WithField("to", remoteHead).
		Info("remote head moved, resetting working copy")

	if _, err := runGit(fetchCtx, c.workDir, "reset", "--hard", "FETCH_HEAD"); err != nil {
		return failure(err, "hard reset failed")
	}

	return Result{Success: true, Updated: true, SkillsChanged: true, Message: "working copy updated"}, nil
}

// runGit executes one git command, optionally inside dir, returning its
// trimmed stdout
func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	if dir != "" {
		args = append([]string{"-C", dir}, args...)
	}

	cmd := exec.CommandContext(ctx, "git", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", errors.Wrapf(err, "git %s: %s", strings.Join(args, " "), strings.TrimSpace(string(output)))
	}
	return strings.TrimSpace(string(output)), nil
}

func failure(cause error, message string) (Result, error) {
	return Result{Success: false, Message: message},
		skilltypes.WrapError(skilltypes.ErrRepository, cause, "%s", message)
}
