// Package audit keeps a local activity log with an HMAC chain for tamper
// detection. Events carry no secret material: entries are referenced by an
// HMAC of their id.
package audit

import (
	"bufio"
	"bytes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"

	"github.com/forest6511/coffre/pkg/vault"
)

// MinAuditDiskSpace is the free space required before appending an event.
const MinAuditDiskSpace = 1024 * 1024

const (
	keyFileName   = "audit.key"
	metaFileName  = "audit.meta"
	logFileSuffix = ".jsonl"
	keyInfo       = "coffre-audit-log-v1"
	genesis       = "genesis"
)

// Operation types for audit logging
const (
	OpVaultInit         = "vault.init"
	OpVaultUnlock       = "vault.unlock"
	OpVaultUnlockFailed = "vault.unlock_failed"
	OpPasswordChange    = "vault.password_change"
	OpEntryAdd          = "entry.add"
	OpEntryUpdate       = "entry.update"
	OpEntryDelete       = "entry.delete"
	OpEntryReveal       = "entry.reveal"
	OpBackup            = "vault.backup"
	OpRestore           = "vault.restore"
	OpImport            = "vault.import"
)

// Result indicates the outcome of an operation
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultDenied  = "denied"
)

// ErrChainBroken reports a log that failed Verify.
var ErrChainBroken = errors.New("audit: log chain verification failed")

// Event represents a single audit log record.
type Event struct {
	Version   int               `json:"v"`
	ID        string            `json:"id"`
	Timestamp string            `json:"ts"` // RFC 3339 nanosecond precision
	Operation string            `json:"op"`
	Entry     string            `json:"entry,omitempty"` // HMAC of the entry id
	Result    string            `json:"result"`
	Session   string            `json:"session"`
	Context   map[string]string `json:"ctx,omitempty"`
	Chain     Chain             `json:"chain"`
}

// Time parses the event timestamp.
func (e *Event) Time() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, e.Timestamp)
}

// Chain links an event to its predecessor.
type Chain struct {
	Sequence int64  `json:"seq"`
	PrevHash string `json:"prev"`
	HMAC     string `json:"hmac"`
}

// chainState is persisted so appends do not need to reread the log.
type chainState struct {
	Sequence int64  `json:"seq"`
	PrevHash string `json:"prev"`
}

// Logger appends events to monthly JSONL files under one directory.
type Logger struct {
	dir       string
	hmacKey   []byte
	mu        sync.Mutex
	sequence  int64
	prevHash  string
	sessionID string
	now       func() time.Time
}

// Option configures a Logger.
type Option func(*Logger)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) { l.now = now }
}

// Open prepares the log in dir, creating the directory and its random key on
// first use. The HMAC key is derived from that key with HKDF-SHA256.
func Open(dir string, opts ...Option) (*Logger, error) {
	l := &Logger{
		dir:       dir,
		prevHash:  genesis,
		sessionID: uuid.NewString(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}

	if err := os.MkdirAll(dir, vault.DirMode); err != nil {
		return nil, fmt.Errorf("audit: failed to create directory: %w", err)
	}
	secret, err := loadOrCreateKey(filepath.Join(dir, keyFileName))
	if err != nil {
		return nil, err
	}
	l.hmacKey = make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(keyInfo)), l.hmacKey); err != nil {
		return nil, fmt.Errorf("audit: failed to derive HMAC key: %w", err)
	}

	// A missing or unreadable state file restarts the chain; Verify reports it.
	_ = l.loadChainState()
	return l, nil
}

func loadOrCreateKey(path string) ([]byte, error) {
	key, err := os.ReadFile(path)
	if err == nil && len(key) == 32 {
		return key, nil
	}
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("audit: failed to read key: %w", err)
	}
	if err == nil {
		return nil, fmt.Errorf("audit: key file %s is damaged", path)
	}

	key = make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("audit: failed to generate key: %w", err)
	}
	if err := os.WriteFile(path, key, vault.FileMode); err != nil {
		return nil, fmt.Errorf("audit: failed to write key: %w", err)
	}
	return key, nil
}

// Dir returns the log directory.
func (l *Logger) Dir() string {
	return l.dir
}

// Log records an event. entryID may be empty.
func (l *Logger) Log(op, result, entryID string, ctx map[string]string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if info, err := vault.CheckDiskSpace(l.dir); err == nil && info.Available < MinAuditDiskSpace {
		return fmt.Errorf("audit: insufficient disk space: only %d bytes available, need at least %d",
			info.Available, MinAuditDiskSpace)
	}

	now := l.now().UTC()
	event := Event{
		Version:   1,
		ID:        newEventID(),
		Timestamp: now.Format(time.RFC3339Nano),
		Operation: op,
		Result:    result,
		Session:   l.sessionID,
		Context:   ctx,
	}
	if entryID != "" {
		event.Entry = l.mac([]byte(entryID))
	}

	event.Chain.Sequence = l.sequence + 1
	event.Chain.PrevHash = l.prevHash
	event.Chain.HMAC = l.mac(recordData(&event))

	if err := l.writeEvent(&event, now); err != nil {
		return err
	}
	l.sequence = event.Chain.Sequence
	l.prevHash = event.Chain.HMAC
	return l.saveChainState()
}

// LogSuccess is a convenience method for successful operations
func (l *Logger) LogSuccess(op, entryID string) error {
	return l.Log(op, ResultSuccess, entryID, nil)
}

// LogError is a convenience method for failed operations
func (l *Logger) LogError(op, entryID string, err error) error {
	return l.Log(op, ResultError, entryID, map[string]string{"error": err.Error()})
}

// LogDenied is a convenience method for refused operations
func (l *Logger) LogDenied(op, reason string) error {
	return l.Log(op, ResultDenied, "", map[string]string{"reason": reason})
}

// EntryRef returns the value stored in Event.Entry for entryID, so callers
// can find the events of one entry.
func (l *Logger) EntryRef(entryID string) string {
	return l.mac([]byte(entryID))
}

func (l *Logger) mac(data []byte) string {
	m := hmac.New(sha256.New, l.hmacKey)
	m.Write(data)
	return hex.EncodeToString(m.Sum(nil))
}

// recordData serializes every significant field for the chain HMAC.
func recordData(e *Event) []byte {
	keys := make([]string, 0, len(e.Context))
	for k := range e.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var ctx strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&ctx, "%s=%s|", k, e.Context[k])
	}

	return []byte(fmt.Sprintf("%d|%s|%s|%s|%s|%s|%s|%s|%d|%s",
		e.Version, e.ID, e.Timestamp, e.Operation, e.Entry, e.Result, e.Session,
		ctx.String(), e.Chain.Sequence, e.Chain.PrevHash))
}

func newEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// writeEvent appends an event to the log file of its month.
func (l *Logger) writeEvent(event *Event, now time.Time) error {
	path := filepath.Join(l.dir, now.Format("2006-01")+logFileSuffix)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, vault.FileMode)
	if err != nil {
		return fmt.Errorf("audit: failed to open log file: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("audit: failed to marshal event: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("audit: failed to write event: %w", err)
	}
	return nil
}

func (l *Logger) loadChainState() error {
	data, err := os.ReadFile(filepath.Join(l.dir, metaFileName))
	if err != nil {
		return err
	}
	var state chainState
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}
	l.sequence = state.Sequence
	l.prevHash = state.PrevHash
	return nil
}

func (l *Logger) saveChainState() error {
	data, err := json.Marshal(chainState{Sequence: l.sequence, PrevHash: l.prevHash})
	if err != nil {
		return fmt.Errorf("audit: failed to marshal chain state: %w", err)
	}
	if err := os.WriteFile(filepath.Join(l.dir, metaFileName), data, vault.FileMode); err != nil {
		return fmt.Errorf("audit: failed to save chain state: %w", err)
	}
	return nil
}

// VerifyResult contains the results of chain verification
type VerifyResult struct {
	Valid        bool     `json:"valid"`
	RecordsTotal int      `json:"records_total"`
	Errors       []string `json:"errors,omitempty"`
}

// Verify checks sequence numbers, links and HMACs of the whole log.
func (l *Logger) Verify() (*VerifyResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	events, err := l.readAll()
	if err != nil {
		return nil, err
	}

	result := &VerifyResult{Valid: true}
	expectedPrev := genesis
	var expectedSeq int64 = 1
	fail := func(format string, args ...any) {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf(format, args...))
	}

	for i := range events {
		e := &events[i]
		result.RecordsTotal++
		if e.Chain.Sequence != expectedSeq {
			fail("sequence gap at record %s: expected %d, got %d", e.ID, expectedSeq, e.Chain.Sequence)
		}
		if e.Chain.PrevHash != expectedPrev {
			fail("chain broken at record %s", e.ID)
		}
		if !hmac.Equal([]byte(e.Chain.HMAC), []byte(l.mac(recordData(e)))) {
			fail("HMAC mismatch at record %s: possible tampering", e.ID)
		}
		expectedPrev = e.Chain.HMAC
		expectedSeq = e.Chain.Sequence + 1
	}
	return result, nil
}

// ListEvents returns the most recent events, oldest first.
// limit: maximum number of events to return (0 = all)
// since: only return events after this time (zero = no filter)
func (l *Logger) ListEvents(limit int, since time.Time) ([]Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	events, err := l.readAll()
	if err != nil {
		return nil, err
	}

	filtered := events
	if !since.IsZero() {
		filtered = filtered[:0:0]
		for i := range events {
			ts, err := events[i].Time()
			if err != nil {
				continue
			}
			if ts.After(since) {
				filtered = append(filtered, events[i])
			}
		}
	}
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}
	return filtered, nil
}

// Prune removes the monthly files whose events are all older than cutoff.
// It returns the number of events removed. Pruning restarts verification at
// the first kept record, so Verify reports a broken link there.
func (l *Logger) Prune(cutoff time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	files, err := l.logFiles()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, file := range files {
		month, err := time.Parse("2006-01", strings.TrimSuffix(filepath.Base(file), logFileSuffix))
		if err != nil || !month.AddDate(0, 1, 0).Before(cutoff) {
			continue
		}
		events, err := readLogFile(file)
		if err != nil {
			return removed, err
		}
		if err := os.Remove(file); err != nil {
			return removed, fmt.Errorf("audit: failed to remove %s: %w", file, err)
		}
		removed += len(events)
	}
	return removed, nil
}

// logFiles lists the monthly files in chronological order.
func (l *Logger) logFiles() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(l.dir, "*"+logFileSuffix))
	if err != nil {
		return nil, fmt.Errorf("audit: failed to list log files: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

func (l *Logger) readAll() ([]Event, error) {
	files, err := l.logFiles()
	if err != nil {
		return nil, err
	}
	var all []Event
	for _, file := range files {
		events, err := readLogFile(file)
		if err != nil {
			return nil, fmt.Errorf("audit: failed to read %s: %w", file, err)
		}
		all = append(all, events...)
	}
	return all, nil
}

func readLogFile(path string) ([]Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var events []Event
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			return nil, fmt.Errorf("failed to parse line: %w", err)
		}
		events = append(events, event)
	}
	return events, scanner.Err()
}
