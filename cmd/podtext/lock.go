package main

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"

	"podtext/internal/config"
)

// acquireLock guards ledger-mutating commands against concurrent runs. The
// lock lives in the log directory so all commands agree on its location.
func acquireLock(cfg *config.Config) (*flock.Flock, error) {
	lockPath := filepath.Join(cfg.Paths.LogDir, "podtext.lock")
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", lockPath, err)
	}
	if !locked {
		return nil, fmt.Errorf("another podtext instance is already running (lock held at %s)", lockPath)
	}
	return lock, nil
}
