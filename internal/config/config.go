// Package config loads coffre settings from defaults, coffre.yaml, COFFRE_*
// environment variables and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	clog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Throttle store backends.
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

const (
	configName = "coffre"
	envPrefix  = "coffre"
	dataDir    = ".coffre"
)

// Config holds the user-adjustable settings. The cryptographic parameters and
// throttle limits are fixed and deliberately absent.
type Config struct {
	VaultPath     string `mapstructure:"vault_path" yaml:"vault_path"`
	StateDir      string `mapstructure:"state_dir" yaml:"state_dir"`
	ThrottleStore string `mapstructure:"throttle_store" yaml:"throttle_store"`
	LogLevel      string `mapstructure:"log_level" yaml:"log_level"`
	AuditLog      bool   `mapstructure:"audit_log" yaml:"audit_log"`
}

// FlagKeys maps persistent flag names to config keys.
var FlagKeys = map[string]string{
	"vault":     "vault_path",
	"state-dir": "state_dir",
	"log-level": "log_level",
}

// Defaults returns the built-in settings: everything lives under ~/.coffre.
func Defaults() (map[string]any, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}
	base := filepath.Join(home, dataDir)
	return map[string]any{
		"vault_path":     filepath.Join(base, "coffre.vault"),
		"state_dir":      base,
		"throttle_store": StoreFile,
		"log_level":      "warn",
		"audit_log":      true,
	}, nil
}

// GetConfigPath returns the full path of the user configuration file.
func GetConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("could not get user config directory: %w", err)
	}
	return filepath.Join(configDir, "coffre", configName+".yaml"), nil
}

// LoadConfig resolves the configuration for cmd. When configFile is non-empty
// it is read instead of searching the standard locations, and it must exist.
func LoadConfig(cmd *cobra.Command, configFile string) (Config, error) {
	var c Config
	v := viper.New()

	// 1. Set defaults
	defaults, err := Defaults()
	if err != nil {
		return c, err
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	// 2. Config file: explicit path, else user config dir, else current dir
	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		if userConfigPath, err := GetConfigPath(); err == nil {
			v.AddConfigPath(filepath.Dir(userConfigPath))
		}
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		// It's okay if the file is not found, but other errors are fatal.
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return c, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// 3. Environment variables (COFFRE_VAULT_PATH, ...)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// 4. Flags
	if cmd != nil {
		for flag, key := range FlagKeys {
			if f := cmd.Flags().Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return c, err
				}
			}
		}
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("failed to parse config: %w", err)
	}
	c.VaultPath = expandHome(c.VaultPath)
	c.StateDir = expandHome(c.StateDir)

	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch c.ThrottleStore {
	case StoreFile, StoreSQLite, StoreMemory:
	default:
		return fmt.Errorf("invalid throttle_store %q (use %s, %s or %s)",
			c.ThrottleStore, StoreFile, StoreSQLite, StoreMemory)
	}
	if _, err := clog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	if c.VaultPath == "" {
		return errors.New("vault_path cannot be empty")
	}
	return nil
}

// AuditLogDir returns the directory holding the activity log.
func (c *Config) AuditLogDir() string {
	return filepath.Join(c.StateDir, "audit")
}

// ThrottleStatePath returns the file holding the throttle record for the
// configured backend. The memory backend has none.
func (c *Config) ThrottleStatePath() string {
	switch c.ThrottleStore {
	case StoreFile:
		return filepath.Join(c.StateDir, "throttle.json")
	case StoreSQLite:
		return filepath.Join(c.StateDir, "state.db")
	default:
		return ""
	}
}

// WriteConfigFile writes c to path as YAML. An existing file is only replaced
// when overwrite is set.
func WriteConfigFile(c *Config, path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %s already exists", path)
		}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	// Create directory if it doesn't exist
	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("could not create config directory %s: %w", configDir, err)
	}

	return os.WriteFile(path, data, 0600)
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
