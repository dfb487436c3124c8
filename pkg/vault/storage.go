package vault

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
)

// File permissions and disk thresholds.
const (
	FileMode = 0600 // Owner read/write only
	DirMode  = 0700 // Owner read/write/execute only

	MinDiskSpaceBytes  = 10 * 1024 * 1024 // 10 MB minimum free space
	DiskWarningPercent = 90               // Warn when disk is 90% full
)

// DiskSpaceInfo contains disk usage information
type DiskSpaceInfo struct {
	Total     uint64 `json:"total"`     // Total disk space in bytes
	Free      uint64 `json:"free"`      // Free disk space in bytes
	Available uint64 `json:"available"` // Available to non-root users
	UsedPct   int    `json:"used_pct"`  // Percentage of disk used
}

func usedPercent(total, free uint64) int {
	if total == 0 {
		return 0
	}
	return int(100 * (total - free) / total)
}

// ReadArtifact reads a vault file. A missing file is ErrVaultNotFound.
func ReadArtifact(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrVaultNotFound
		}
		return nil, fmt.Errorf("vault: failed to read vault file: %w", err)
	}
	return data, nil
}

// WriteArtifact replaces the vault file at path with data. The write goes
// through a temporary file in the same directory and a rename, so readers see
// either the old or the new vault, never a partial one.
func WriteArtifact(path string, data []byte, logger *log.Logger) error {
	if logger == nil {
		logger = log.Default()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, DirMode); err != nil {
		return fmt.Errorf("vault: failed to create vault directory: %w", err)
	}
	if err := checkDiskSpaceForWrite(dir, len(data), logger); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("vault: failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("vault: failed to write vault file: %w", err)
	}
	if err := tmp.Chmod(FileMode); err != nil {
		tmp.Close()
		return fmt.Errorf("vault: failed to set vault file permissions: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("vault: failed to sync vault file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("vault: failed to close vault file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("vault: failed to replace vault file: %w", err)
	}
	return nil
}

// CheckDiskSpace returns disk space information for the directory holding
// path, falling back to its parent when it does not exist yet.
func CheckDiskSpace(path string) (*DiskSpaceInfo, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		path = filepath.Dir(path)
	}
	return diskSpace(path)
}

// checkDiskSpaceForWrite refuses writes when free space is below
// MinDiskSpaceBytes or twice the payload. A failing check only warns.
func checkDiskSpaceForWrite(dir string, dataSize int, logger *log.Logger) error {
	info, err := CheckDiskSpace(dir)
	if err != nil {
		logger.Warn("failed to check disk space", "err", err)
		return nil
	}

	required := uint64(MinDiskSpaceBytes)
	if uint64(dataSize*2) > required {
		required = uint64(dataSize * 2)
	}

	if info.Available < required {
		return fmt.Errorf("%w: only %d MB available, need at least %d MB",
			ErrInsufficientDisk,
			info.Available/(1024*1024),
			required/(1024*1024))
	}

	if info.UsedPct >= DiskWarningPercent {
		logger.Warn("disk is almost full, consider freeing space", "used_pct", info.UsedPct)
	}
	return nil
}
