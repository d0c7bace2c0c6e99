package cmd

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/hlsget/hlsget/internal/config"
	"github.com/hlsget/hlsget/internal/utils"
)

var instanceLock *flock.Flock

// AcquireLock claims the single-instance lock. Returns false when
// another hlsget process already holds it.
func AcquireLock() (bool, error) {
	dir := config.GetDataDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, err
	}
	lockPath := filepath.Join(dir, "hlsget.lock")
	instanceLock = flock.New(lockPath)
	locked, err := instanceLock.TryLock()
	if err != nil {
		return false, err
	}
	return locked, nil
}

// ReleaseLock releases the single-instance lock on shutdown.
func ReleaseLock() {
	if instanceLock == nil {
		return
	}
	if err := instanceLock.Unlock(); err != nil {
		utils.Debug("failed to release instance lock: %v", err)
	}
}
