package backup

import "errors"

// Backup/Restore errors
var (
	// ErrConflict indicates an entry id already exists during restore.
	ErrConflict = errors.New("restore conflict: entry already exists")

	// ErrSamePath indicates a backup would overwrite the vault itself.
	ErrSamePath = errors.New("backup path is the vault file itself")
)
