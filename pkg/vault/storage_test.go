package vault

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/charmbracelet/log"
)

func TestWriteReadArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "coffre.vault")
	data := []byte("artifact bytes")

	if err := WriteArtifact(path, data, log.New(io.Discard)); err != nil {
		t.Fatalf("WriteArtifact failed: %v", err)
	}

	got, err := ReadArtifact(path)
	if err != nil {
		t.Fatalf("ReadArtifact failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("expected %q, got %q", data, got)
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat: %v", err)
		}
		if perm := info.Mode().Perm(); perm != FileMode {
			t.Errorf("expected file mode %04o, got %04o", FileMode, perm)
		}
		dirInfo, err := os.Stat(filepath.Dir(path))
		if err != nil {
			t.Fatalf("stat dir: %v", err)
		}
		if perm := dirInfo.Mode().Perm(); perm != DirMode {
			t.Errorf("expected dir mode %04o, got %04o", DirMode, perm)
		}
	}
}

func TestWriteArtifactReplaces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "coffre.vault")
	logger := log.New(io.Discard)

	if err := WriteArtifact(path, []byte("first"), logger); err != nil {
		t.Fatalf("WriteArtifact failed: %v", err)
	}
	if err := WriteArtifact(path, []byte("second"), logger); err != nil {
		t.Fatalf("WriteArtifact failed: %v", err)
	}

	got, err := ReadArtifact(path)
	if err != nil {
		t.Fatalf("ReadArtifact failed: %v", err)
	}
	if string(got) != "second" {
		t.Errorf("expected second, got %q", got)
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(files) != 1 {
		t.Errorf("expected only the vault file, found %d entries", len(files))
	}
}

func TestReadArtifactMissing(t *testing.T) {
	_, err := ReadArtifact(filepath.Join(t.TempDir(), "missing.vault"))
	if !errors.Is(err, ErrVaultNotFound) {
		t.Errorf("expected ErrVaultNotFound, got %v", err)
	}
}

func TestCheckDiskSpace(t *testing.T) {
	switch runtime.GOOS {
	case "linux", "darwin", "freebsd", "openbsd", "netbsd", "dragonfly", "windows":
	default:
		t.Skip("disk space check not supported on this platform")
	}

	info, err := CheckDiskSpace(filepath.Join(t.TempDir(), "not-yet-created"))
	if err != nil {
		t.Fatalf("CheckDiskSpace failed: %v", err)
	}
	if info.Total == 0 {
		t.Error("expected non-zero total space")
	}
	if info.Available > info.Total {
		t.Errorf("available %d exceeds total %d", info.Available, info.Total)
	}
	if info.UsedPct < 0 || info.UsedPct > 100 {
		t.Errorf("used percentage out of range: %d", info.UsedPct)
	}
}

func TestUsedPercent(t *testing.T) {
	tests := []struct {
		total, free uint64
		want        int
	}{
		{0, 0, 0},
		{100, 100, 0},
		{100, 10, 90},
		{100, 0, 100},
	}
	for _, tt := range tests {
		if got := usedPercent(tt.total, tt.free); got != tt.want {
			t.Errorf("usedPercent(%d, %d) = %d, want %d", tt.total, tt.free, got, tt.want)
		}
	}
}
