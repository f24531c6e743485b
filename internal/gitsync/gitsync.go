// Package gitsync publishes the rendered site and ledger by committing and
// pushing the output repository. Synchronization runs after the ledger is
// already committed locally, so a sync failure loses nothing; the next run
// picks the changes up again.
package gitsync

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"podtext/internal/logging"
)

// runnerFunc executes one git invocation in dir and returns combined output.
type runnerFunc func(ctx context.Context, dir string, args ...string) (string, error)

func execRunner(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	return strings.TrimSpace(string(output)), err
}

// Syncer commits and pushes the output repository.
type Syncer struct {
	repoDir string
	push    bool
	logger  *slog.Logger
	runner  runnerFunc
}

// Option customizes a Syncer.
type Option func(*Syncer)

// WithRunner overrides how git commands are executed (useful for tests).
func WithRunner(runner runnerFunc) Option {
	return func(s *Syncer) {
		if runner != nil {
			s.runner = runner
		}
	}
}

// WithPush controls whether a push follows a successful commit.
func WithPush(push bool) Option {
	return func(s *Syncer) {
		s.push = push
	}
}

// New builds a syncer rooted at repoDir.
func New(repoDir string, logger *slog.Logger, opts ...Option) *Syncer {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Syncer{
		repoDir: repoDir,
		push:    true,
		logger:  logging.WithComponent(logger, "gitsync"),
		runner:  execRunner,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync stages everything, commits with the given message, and pushes when
// enabled. A clean tree is a no-op. Commit failures are returned; a push
// failure is logged and swallowed because the local commit already holds the
// changes.
func (s *Syncer) Sync(ctx context.Context, message string) error {
	status, err := s.runner(ctx, s.repoDir, "status", "--porcelain")
	if err != nil {
		return fmt.Errorf("git status: %w: %s", err, status)
	}
	if strings.TrimSpace(status) == "" {
		s.logger.Debug("working tree clean, nothing to sync")
		return nil
	}

	if output, err := s.runner(ctx, s.repoDir, "add", "-A"); err != nil {
		return fmt.Errorf("git add: %w: %s", err, output)
	}
	if output, err := s.runner(ctx, s.repoDir, "commit", "-m", message); err != nil {
		return fmt.Errorf("git commit: %w: %s", err, output)
	}
	s.logger.Info("changes committed", logging.String("message", message))

	if !s.push {
		return nil
	}
	if output, err := s.runner(ctx, s.repoDir, "push"); err != nil {
		s.logger.Warn("push failed, changes remain committed locally",
			logging.Error(err),
			logging.String("output", output),
		)
		return nil
	}
	s.logger.Info("changes pushed")
	return nil
}
