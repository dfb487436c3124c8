package throttle

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "throttle.json")
	store := NewFileStore(path)
	ctx := context.Background()

	state, err := store.Load(ctx)
	if err != nil || state != (State{}) {
		t.Fatalf("Load() on missing file = (%+v, %v), want zero state", state, err)
	}

	want := State{Attempts: 3, LockUntil: 1760000000000}
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != want {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("Stat() error = %v", err)
		}
		if perm := info.Mode().Perm(); perm != FileMode {
			t.Errorf("file mode = %04o, want %04o", perm, FileMode)
		}
	}
}

func TestFileStoreWireFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "throttle.json")
	store := NewFileStore(path)

	if err := store.Save(context.Background(), State{Attempts: 2, LockUntil: 0}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != `{"attempts":2,"lockUntil":0}` {
		t.Errorf("file contents = %s", data)
	}
}

func TestFileStoreCorruptFile(t *testing.T) {
	for _, contents := range []string{"", "not json", `{"attempts":"three"}`, "[1,2,3]"} {
		path := filepath.Join(t.TempDir(), "throttle.json")
		if err := os.WriteFile(path, []byte(contents), 0600); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}

		state, err := NewFileStore(path).Load(context.Background())
		if err != nil {
			t.Errorf("Load(%q) error = %v, want nil", contents, err)
		}
		if state != (State{}) {
			t.Errorf("Load(%q) = %+v, want zero state", contents, state)
		}
	}
}

func TestFileStoreMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "throttle.json")
	if err := os.WriteFile(path, []byte(`{"attempts":4}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	state, err := NewFileStore(path).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if state != (State{Attempts: 4}) {
		t.Errorf("Load() = %+v, want {4 0}", state)
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "coffre.db")

	store, err := OpenSQLiteStore(ctx, path)
	if err != nil {
		t.Fatalf("OpenSQLiteStore() error = %v", err)
	}

	state, err := store.Load(ctx)
	if err != nil || state != (State{}) {
		t.Fatalf("Load() on empty db = (%+v, %v), want zero state", state, err)
	}

	for _, want := range []State{{Attempts: 1}, {Attempts: 0, LockUntil: 1760000300000}, {}} {
		if err := store.Save(ctx, want); err != nil {
			t.Fatalf("Save(%+v) error = %v", want, err)
		}
		got, err := store.Load(ctx)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got != want {
			t.Errorf("Load() = %+v, want %+v", got, want)
		}
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// State survives reopening.
	reopened, err := OpenSQLiteStore(ctx, path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()
	if err := reopened.Save(ctx, State{Attempts: 2}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if got, _ := reopened.Load(ctx); got != (State{Attempts: 2}) {
		t.Errorf("Load() after reopen = %+v", got)
	}
}

func TestSQLiteStoreMalformedValue(t *testing.T) {
	ctx := context.Background()
	store, err := OpenSQLiteStore(ctx, filepath.Join(t.TempDir(), "coffre.db"))
	if err != nil {
		t.Fatalf("OpenSQLiteStore() error = %v", err)
	}
	defer store.Close()

	if _, err := store.db.ExecContext(ctx, "INSERT INTO settings (key, value) VALUES (?, ?)", StateKey, "{broken"); err != nil {
		t.Fatalf("insert error = %v", err)
	}
	state, err := store.Load(ctx)
	if err != nil || state != (State{}) {
		t.Errorf("Load() = (%+v, %v), want zero state", state, err)
	}
}

func TestThrottleWithFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "throttle.json")
	ctx := context.Background()

	first, clock := newTestThrottle(t, NewFileStore(path))
	for i := 0; i < MaxAttempts; i++ {
		first.RecordFailure(ctx)
	}

	// A new process sees the same lock.
	second := New(NewFileStore(path), WithClock(clock.Now), WithLogger(first.logger))
	if ok, minutes := second.MayAttempt(ctx); ok || minutes != 5 {
		t.Errorf("MayAttempt() = (%v, %d), want (false, 5)", ok, minutes)
	}
}
