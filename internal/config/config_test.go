package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

// isolate points HOME and the user config dir at a temp dir and moves into
// an empty working directory, so no real coffre.yaml is picked up.
func isolate(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmp, "config"))
	t.Setenv("AppData", filepath.Join(tmp, "config"))
	t.Setenv("USERPROFILE", tmp)
	t.Chdir(tmp)
	return tmp
}

func newCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("vault", "", "")
	cmd.Flags().String("state-dir", "", "")
	cmd.Flags().String("log-level", "", "")
	return cmd
}

func TestLoadConfig_Defaults(t *testing.T) {
	home := isolate(t)

	c, err := LoadConfig(newCommand(), "")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if want := filepath.Join(home, ".coffre", "coffre.vault"); c.VaultPath != want {
		t.Errorf("expected vault path %s, got %s", want, c.VaultPath)
	}
	if c.ThrottleStore != StoreFile {
		t.Errorf("expected file store, got %s", c.ThrottleStore)
	}
	if c.LogLevel != "warn" {
		t.Errorf("expected warn, got %s", c.LogLevel)
	}
	if !c.AuditLog {
		t.Error("expected the activity log to be on by default")
	}
	if want := filepath.Join(home, ".coffre", "audit"); c.AuditLogDir() != want {
		t.Errorf("expected audit dir %s, got %s", want, c.AuditLogDir())
	}
}

func TestLoadConfig_AuditLogFromEnv(t *testing.T) {
	isolate(t)
	t.Setenv("COFFRE_AUDIT_LOG", "false")

	c, err := LoadConfig(newCommand(), "")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if c.AuditLog {
		t.Error("expected COFFRE_AUDIT_LOG=false to disable the activity log")
	}
}

func TestLoadConfig_ReadsExplicitFile(t *testing.T) {
	tmp := isolate(t)
	yaml := "vault_path: /srv/vault.bin\nthrottle_store: sqlite\nlog_level: debug\n"
	file := filepath.Join(tmp, "cfg.yaml")
	if err := os.WriteFile(file, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	c, err := LoadConfig(newCommand(), file)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if c.VaultPath != "/srv/vault.bin" || c.ThrottleStore != StoreSQLite || c.LogLevel != "debug" {
		t.Errorf("unexpected config %+v", c)
	}
	if c.ThrottleStatePath() != filepath.Join(c.StateDir, "state.db") {
		t.Errorf("unexpected state path %s", c.ThrottleStatePath())
	}
}

func TestLoadConfig_ExplicitFileMissing(t *testing.T) {
	tmp := isolate(t)
	if _, err := LoadConfig(newCommand(), filepath.Join(tmp, "missing.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestLoadConfig_BrokenConfig_ReturnsParseError(t *testing.T) {
	tmp := isolate(t)
	// YAML forbids the 0x01 control character
	yaml := "log_level: info\n" + string([]byte{0x01}) + "\n"
	file := filepath.Join(tmp, "broken.yaml")
	if err := os.WriteFile(file, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write broken file: %v", err)
	}

	if _, err := LoadConfig(newCommand(), file); err == nil {
		t.Fatal("expected parse error for broken yaml, got nil")
	}
}

func TestLoadConfig_Precedence(t *testing.T) {
	tmp := isolate(t)
	if err := os.WriteFile(filepath.Join(tmp, "coffre.yaml"),
		[]byte("vault_path: /from/file\nlog_level: info\nthrottle_store: memory\n"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	t.Setenv("COFFRE_LOG_LEVEL", "error")

	cmd := newCommand()
	if err := cmd.Flags().Set("vault", "/from/flag"); err != nil {
		t.Fatalf("set flag: %v", err)
	}

	c, err := LoadConfig(cmd, "")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if c.VaultPath != "/from/flag" {
		t.Errorf("flag should win, got %s", c.VaultPath)
	}
	if c.LogLevel != "error" {
		t.Errorf("env should beat file, got %s", c.LogLevel)
	}
	if c.ThrottleStore != StoreMemory {
		t.Errorf("file should beat default, got %s", c.ThrottleStore)
	}
	if c.ThrottleStatePath() != "" {
		t.Errorf("memory store has no state path, got %s", c.ThrottleStatePath())
	}
}

func TestLoadConfig_ExpandsHome(t *testing.T) {
	home := isolate(t)
	t.Setenv("COFFRE_VAULT_PATH", "~/vaults/main.vault")

	c, err := LoadConfig(nil, "")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if want := filepath.Join(home, "vaults", "main.vault"); c.VaultPath != want {
		t.Errorf("expected %s, got %s", want, c.VaultPath)
	}
}

func TestValidate(t *testing.T) {
	base := Config{VaultPath: "/v", StateDir: "/s", ThrottleStore: StoreFile, LogLevel: "info"}

	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"bad store", func(c *Config) { c.ThrottleStore = "redis" }, "throttle_store"},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"empty vault path", func(c *Config) { c.VaultPath = "" }, "vault_path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.modify(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestWriteConfigFile(t *testing.T) {
	tmp := isolate(t)
	path := filepath.Join(tmp, "out", "coffre.yaml")
	c := Config{VaultPath: "/v", StateDir: "/s", ThrottleStore: StoreSQLite, LogLevel: "info"}

	if err := WriteConfigFile(&c, path, false); err != nil {
		t.Fatalf("WriteConfigFile failed: %v", err)
	}
	if err := WriteConfigFile(&c, path, false); err == nil {
		t.Error("expected error when file exists without overwrite")
	}
	if err := WriteConfigFile(&c, path, true); err != nil {
		t.Errorf("overwrite failed: %v", err)
	}

	got, err := LoadConfig(nil, path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if got != c {
		t.Errorf("round trip mismatch: want %+v, got %+v", c, got)
	}
}
