// Package vault stores an ordered collection of secret entries as one
// password-protected artifact: PBKDF2-SHA256 key derivation and AES-256-GCM.
package vault

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/forest6511/coffre/pkg/crypto"
	"github.com/forest6511/coffre/pkg/throttle"
)

// Vault manages one vault file and the session opened on it.
type Vault struct {
	path     string
	password crypto.Secret // Master password (held in memory when unlocked)
	entries  []Entry       // Decrypted entries, nil when locked
	mu       sync.RWMutex
	throttle *throttle.Throttle
	logger   *log.Logger
	now      func() time.Time
}

// Option configures a Vault.
type Option func(*Vault)

// WithThrottle sets the attempt throttle consulted by Unlock. Without it an
// in-memory throttle is used, which forgets failures when the process exits.
func WithThrottle(t *throttle.Throttle) Option {
	return func(v *Vault) { v.throttle = t }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(v *Vault) { v.logger = l }
}

// WithClock overrides time.Now for entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(v *Vault) { v.now = now }
}

// New creates a new Vault management object for the vault file at path.
func New(path string, opts ...Option) *Vault {
	v := &Vault{
		path:   path,
		logger: log.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.throttle == nil {
		v.throttle = throttle.New(throttle.NewMemoryStore(throttle.State{}),
			throttle.WithLogger(v.logger), throttle.WithClock(v.now))
	}
	return v
}

// Path returns the vault file path.
func (v *Vault) Path() string {
	return v.path
}

// Exists reports whether the vault file is present.
func (v *Vault) Exists() bool {
	_, err := os.Stat(v.path)
	return err == nil
}

// Throttle returns the attempt throttle guarding Unlock.
func (v *Vault) Throttle() *throttle.Throttle {
	return v.throttle
}

// Create writes a new empty vault protected by password and opens a session
// on it. An existing file is never overwritten.
func (v *Vault) Create(ctx context.Context, password string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if password == "" {
		return ErrEmptyPassword
	}
	if v.Exists() {
		return ErrVaultAlreadyExists
	}

	artifact, err := NewEmpty(password)
	if err != nil {
		return err
	}
	if err := WriteArtifact(v.path, artifact, v.logger); err != nil {
		return err
	}

	v.open(password, []Entry{})
	v.throttle.RecordSuccess(ctx)
	v.logger.Debug("vault created", "path", v.path)
	return nil
}

// Unlock decodes the vault with password and opens a session.
//
// While the throttle is locked no decoding happens and a
// *throttle.LockedError is returned. A wrong password or a damaged file counts
// as a failed attempt and returns ErrAuthentication, or a
// *throttle.LockedError when that failure reached the limit. A missing file is
// ErrVaultNotFound and is not counted.
func (v *Vault) Unlock(ctx context.Context, password string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	plain, err := v.decodeFile(ctx, v.path, password)
	if err != nil {
		return err
	}

	v.open(password, plain.Entries)
	v.checkAndWarnPermissions()
	return nil
}

// OpenArtifact decodes the vault artifact at path, such as a backup, without
// opening a session on it. The attempt is throttled and counted exactly like
// Unlock, whichever file is targeted.
func (v *Vault) OpenArtifact(ctx context.Context, path, password string) (*Plaintext, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.decodeFile(ctx, path, password)
}

// decodeFile runs one decode attempt under the throttle.
func (v *Vault) decodeFile(ctx context.Context, path, password string) (*Plaintext, error) {
	if err := v.throttle.Check(ctx); err != nil {
		return nil, err
	}

	artifact, err := ReadArtifact(path)
	if err != nil {
		return nil, err
	}

	plain, err := Decode(artifact, password)
	if err != nil {
		if !errors.Is(err, ErrAuthentication) && !errors.Is(err, ErrIntegrity) {
			return nil, err
		}
		state := v.throttle.RecordFailure(ctx)
		if err := v.throttle.Check(ctx); err != nil {
			return nil, err
		}
		v.logger.Debug("decode failed", "path", path, "attempts", state.Attempts)
		return nil, ErrAuthentication
	}

	v.throttle.RecordSuccess(ctx)
	return plain, nil
}

// Lock closes the session, wiping the retained password and dropping entries.
func (v *Vault) Lock() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.password.Zero()
	for i := range v.entries {
		v.entries[i].Secret = ""
	}
	v.entries = nil
}

// IsLocked returns whether no session is open.
func (v *Vault) IsLocked() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.entries == nil
}

// Entries returns a copy of all entries in insertion order.
func (v *Vault) Entries() ([]Entry, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.entries == nil {
		return nil, ErrVaultLocked
	}
	out := make([]Entry, len(v.entries))
	for i := range v.entries {
		out[i] = cloneEntry(&v.entries[i])
	}
	return out, nil
}

// Get returns a copy of the entry with the given id.
func (v *Vault) Get(id string) (*Entry, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.entries == nil {
		return nil, ErrVaultLocked
	}
	i := v.indexOf(id)
	if i < 0 {
		return nil, ErrEntryNotFound
	}
	e := cloneEntry(&v.entries[i])
	return &e, nil
}

// Add validates in, appends a new entry and saves the vault.
func (v *Vault) Add(in EntryInput) (*Entry, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.entries == nil {
		return nil, ErrVaultLocked
	}
	e, err := NewEntry(in, v.now())
	if err != nil {
		return nil, err
	}

	next := append(v.snapshot(), *e)
	if err := v.save(next); err != nil {
		return nil, err
	}
	out := cloneEntry(e)
	return &out, nil
}

// Update replaces the editable fields of entry id and saves the vault.
func (v *Vault) Update(id string, in EntryInput) (*Entry, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.entries == nil {
		return nil, ErrVaultLocked
	}
	i := v.indexOf(id)
	if i < 0 {
		return nil, ErrEntryNotFound
	}

	next := v.snapshot()
	if err := next[i].Apply(in, v.now()); err != nil {
		return nil, err
	}
	if err := v.save(next); err != nil {
		return nil, err
	}
	out := cloneEntry(&next[i])
	return &out, nil
}

// Delete removes entry id and saves the vault.
func (v *Vault) Delete(id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.entries == nil {
		return ErrVaultLocked
	}
	i := v.indexOf(id)
	if i < 0 {
		return ErrEntryNotFound
	}

	next := v.snapshot()
	next = append(next[:i], next[i+1:]...)
	return v.save(next)
}

// ChangePassword re-encodes the vault under a new master password.
func (v *Vault) ChangePassword(password string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.entries == nil {
		return ErrVaultLocked
	}
	if password == "" {
		return ErrEmptyPassword
	}

	artifact, err := Encode(&Plaintext{Entries: v.entries}, password)
	if err != nil {
		return err
	}
	if err := WriteArtifact(v.path, artifact, v.logger); err != nil {
		return err
	}
	v.password.Zero()
	v.password = crypto.NewSecret(password)
	return nil
}

// Export writes the open session to path as a vault artifact under the
// current master password. An existing file is only replaced when overwrite
// is set.
func (v *Vault) Export(path string, overwrite bool) error {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.entries == nil {
		return ErrVaultLocked
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrVaultAlreadyExists, path)
		}
	}

	artifact, err := Encode(&Plaintext{Entries: v.entries}, v.password.Reveal())
	if err != nil {
		return err
	}
	return WriteArtifact(path, artifact, v.logger)
}

// ReplaceEntries validates entries and saves them as the whole content of
// the vault in one write. IDs and timestamps are kept; entries without an id
// get a fresh one.
func (v *Vault) ReplaceEntries(entries []Entry) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.entries == nil {
		return ErrVaultLocked
	}

	now := v.now().UTC()
	next := make([]Entry, 0, len(entries))
	for i := range entries {
		e := cloneEntry(&entries[i])
		in := InputFrom(&e).Normalize()
		if err := in.Validate(); err != nil {
			return fmt.Errorf("entry %q: %w", e.Name, err)
		}
		updated := e.UpdatedAt
		e.assign(in, updated)
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		if e.UpdatedAt.IsZero() {
			e.UpdatedAt = e.CreatedAt
		}
		next = append(next, e)
	}
	return v.save(next)
}

func (v *Vault) open(password string, entries []Entry) {
	v.password.Zero()
	v.password = crypto.NewSecret(password)
	v.entries = entries
}

// save encodes entries and writes them out. The in-memory state only changes
// once the write succeeded.
func (v *Vault) save(entries []Entry) error {
	artifact, err := Encode(&Plaintext{Entries: entries}, v.password.Reveal())
	if err != nil {
		return err
	}
	if err := WriteArtifact(v.path, artifact, v.logger); err != nil {
		return fmt.Errorf("vault: failed to save: %w", err)
	}
	v.entries = entries
	return nil
}

func (v *Vault) snapshot() []Entry {
	out := make([]Entry, len(v.entries))
	for i := range v.entries {
		out[i] = cloneEntry(&v.entries[i])
	}
	return out
}

func (v *Vault) indexOf(id string) int {
	for i := range v.entries {
		if v.entries[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneEntry(e *Entry) Entry {
	out := *e
	out.Tags = append([]string(nil), e.Tags...)
	return out
}

// checkAndWarnPermissions warns when the vault file is readable by others.
// Advisory only.
func (v *Vault) checkAndWarnPermissions() {
	info, err := os.Stat(v.path)
	if err != nil {
		return
	}
	if perm := info.Mode().Perm(); perm&0077 != 0 {
		v.logger.Warn("vault file has insecure permissions",
			"path", v.path, "perm", fmt.Sprintf("%04o", perm), "expected", "0600")
	}
}
