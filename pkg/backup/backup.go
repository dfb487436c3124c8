// Package backup copies a vault to another artifact and merges a vault
// artifact back into an open vault.
//
// A backup is a regular vault artifact: it opens with the master password
// in force when it was taken and can be used directly with --vault.
package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/forest6511/coffre/pkg/throttle"
	"github.com/forest6511/coffre/pkg/vault"
)

// ConflictMode specifies how to handle id conflicts during restore.
type ConflictMode int

const (
	// ConflictError returns an error if an id already exists.
	ConflictError ConflictMode = iota
	// ConflictSkip skips existing ids and only adds new entries.
	ConflictSkip
	// ConflictOverwrite replaces existing entries with the backed up ones.
	ConflictOverwrite
)

// ParseConflictMode maps the --on-conflict flag value to a ConflictMode.
func ParseConflictMode(s string) (ConflictMode, error) {
	switch strings.ToLower(s) {
	case "", "error":
		return ConflictError, nil
	case "skip":
		return ConflictSkip, nil
	case "overwrite":
		return ConflictOverwrite, nil
	default:
		return ConflictError, fmt.Errorf("invalid conflict mode %q (use error, skip or overwrite)", s)
	}
}

// BackupOptions configures the backup operation.
type BackupOptions struct {
	// Output is the destination file. Empty means DefaultBackupPath.
	Output string
	// Force replaces an existing file at Output.
	Force bool
	// Now overrides time.Now for the default file name.
	Now func() time.Time
}

// RestoreOptions configures the restore operation.
type RestoreOptions struct {
	// OnConflict specifies how to handle existing ids.
	OnConflict ConflictMode
	// DryRun previews restore without making changes.
	DryRun bool
}

// RestoreResult contains the result of a restore operation.
type RestoreResult struct {
	// Added is the number of entries absent from the vault.
	Added int
	// Replaced is the number of existing entries overwritten.
	Replaced int
	// Skipped is the number of entries left out because of conflicts.
	Skipped int
	// DryRun indicates this was a dry run.
	DryRun bool
}

// VerifyResult contains the result of a verify operation.
type VerifyResult struct {
	// Valid indicates the artifact opened with the given password.
	Valid bool
	// EntryCount is the number of entries in the backup.
	EntryCount int
	// Size is the artifact size in bytes.
	Size int64
	// ModTime is the artifact modification time.
	ModTime time.Time
	// Error is set if verification failed.
	Error string
}

// DefaultBackupPath names a backup next to the vault file, stamped with now.
func DefaultBackupPath(vaultPath string, now time.Time) string {
	base := strings.TrimSuffix(filepath.Base(vaultPath), filepath.Ext(vaultPath))
	name := fmt.Sprintf("%s-backup-%s%s", base, now.Format("20060102-150405"), filepath.Ext(vaultPath))
	return filepath.Join(filepath.Dir(vaultPath), name)
}

// Backup writes the open vault to a new artifact and returns its path.
func Backup(v *vault.Vault, opts BackupOptions) (string, error) {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	path := opts.Output
	if path == "" {
		path = DefaultBackupPath(v.Path(), now())
	}

	if samePath(path, v.Path()) {
		return "", ErrSamePath
	}
	if err := v.Export(path, opts.Force); err != nil {
		return "", fmt.Errorf("failed to write backup: %w", err)
	}
	return path, nil
}

// Verify checks that the artifact at path opens with password. The decode
// goes through the attempt throttle of v; no session is needed. While the
// throttle is locked the *throttle.LockedError is returned as an error.
func Verify(ctx context.Context, v *vault.Vault, path, password string) (*VerifyResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return &VerifyResult{Valid: false, Error: err.Error()}, nil
	}

	plain, err := v.OpenArtifact(ctx, path, password)
	if errors.Is(err, throttle.ErrThrottleLocked) {
		return nil, err
	}
	if err != nil {
		return &VerifyResult{Valid: false, Size: info.Size(), ModTime: info.ModTime(), Error: err.Error()}, nil
	}

	return &VerifyResult{
		Valid:      true,
		EntryCount: len(plain.Entries),
		Size:       info.Size(),
		ModTime:    info.ModTime(),
	}, nil
}

// Restore merges the entries of the artifact at path into the open vault v.
// Entries are matched by id; new ones are appended in backup order. The
// decode is throttled like an unlock.
func Restore(ctx context.Context, v *vault.Vault, path, password string, opts RestoreOptions) (*RestoreResult, error) {
	plain, err := v.OpenArtifact(ctx, path, password)
	if err != nil {
		return nil, err
	}
	current, err := v.Entries()
	if err != nil {
		return nil, err
	}

	merged, result, err := merge(current, plain.Entries, opts.OnConflict)
	if err != nil {
		return nil, err
	}
	if opts.DryRun {
		result.DryRun = true
		return result, nil
	}
	if result.Added == 0 && result.Replaced == 0 {
		return result, nil
	}
	if err := v.ReplaceEntries(merged); err != nil {
		return nil, fmt.Errorf("failed to restore: %w", err)
	}
	return result, nil
}

// merge applies incoming to current according to mode.
func merge(current, incoming []vault.Entry, mode ConflictMode) ([]vault.Entry, *RestoreResult, error) {
	index := make(map[string]int, len(current))
	for i := range current {
		index[current[i].ID] = i
	}

	result := &RestoreResult{}
	merged := append([]vault.Entry(nil), current...)
	for _, e := range incoming {
		i, exists := index[e.ID]
		if !exists || e.ID == "" {
			if e.ID != "" {
				index[e.ID] = len(merged)
			}
			merged = append(merged, e)
			result.Added++
			continue
		}
		switch mode {
		case ConflictSkip:
			result.Skipped++
		case ConflictOverwrite:
			merged[i] = e
			result.Replaced++
		default:
			return nil, nil, fmt.Errorf("%w: %q", ErrConflict, e.Name)
		}
	}
	return merged, result, nil
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return absA == absB
}
