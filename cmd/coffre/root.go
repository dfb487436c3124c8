package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/forest6511/coffre/internal/config"
	"github.com/forest6511/coffre/internal/logging"
	"github.com/forest6511/coffre/pkg/audit"
	"github.com/forest6511/coffre/pkg/throttle"
	"github.com/forest6511/coffre/pkg/vault"
)

// passwordEnv lets scripts supply the master password. It is cleared from the
// environment once read.
const passwordEnv = "COFFRE_PASSWORD"

// skipVaultAnnotation marks commands that never touch the vault.
const skipVaultAnnotation = "coffre/skip-vault"

var (
	cfg        config.Config
	configFile string
	v          *vault.Vault

	// closeStore releases the throttle store opened for the current command.
	closeStore = func() error { return nil }

	// activity is the activity log, opened on first use.
	activity *audit.Logger

	stdin  *bufio.Reader = bufio.NewReader(os.Stdin)
	stdout io.Writer     = os.Stdout
)

var rootCmd = &cobra.Command{
	Use:           "coffre",
	Short:         "coffre keeps your passwords in one encrypted file",
	Long:          `A local password vault protected by a single master password.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	// PersistentPreRunE runs before the root command and all subcommands.
	// This loads the configuration and initializes the Vault object.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadConfig(cmd, configFile)
		if err != nil {
			return err
		}
		if err := logging.SetLevel(cfg.LogLevel); err != nil {
			return err
		}
		logging.Debugf("config loaded: vault=%s throttle_store=%s", cfg.VaultPath, cfg.ThrottleStore)
		if cmd.Annotations[skipVaultAnnotation] == "true" {
			return nil
		}

		store, closer, err := openThrottleStore(cmd.Context(), &cfg)
		if err != nil {
			return err
		}
		closeStore = closer

		th := throttle.New(store, throttle.WithLogger(logging.L))
		v = vault.New(cfg.VaultPath, vault.WithThrottle(th), vault.WithLogger(logging.L))
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if v != nil {
			v.Lock()
		}
		if err := closeStore(); err != nil {
			logging.Errorf("failed to close throttle store: %v", err)
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default: user config dir, then ./coffre.yaml)")
	rootCmd.PersistentFlags().String("vault", "", "Vault file path (default ~/.coffre/coffre.vault)")
	rootCmd.PersistentFlags().String("state-dir", "", "Directory holding the attempt throttle state")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
}

// Execute runs the root command and reports errors on stderr.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", userMessage(err))
	}
	return err
}

// openThrottleStore opens the configured backend for the attempt throttle.
func openThrottleStore(ctx context.Context, c *config.Config) (throttle.Store, func() error, error) {
	noop := func() error { return nil }
	switch c.ThrottleStore {
	case config.StoreMemory:
		return throttle.NewMemoryStore(throttle.State{}), noop, nil
	case config.StoreSQLite:
		if err := os.MkdirAll(c.StateDir, vault.DirMode); err != nil {
			return nil, nil, fmt.Errorf("failed to create state directory: %w", err)
		}
		store, err := throttle.OpenSQLiteStore(ctx, c.ThrottleStatePath())
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return throttle.NewFileStore(c.ThrottleStatePath()), noop, nil
	}
}

// userMessage turns unlock failures into the fixed messages users see.
func userMessage(err error) string {
	var locked *throttle.LockedError
	switch {
	case errors.As(err, &locked):
		return locked.Error()
	case errors.Is(err, vault.ErrAuthentication), errors.Is(err, vault.ErrIntegrity):
		return vault.ErrAuthentication.Error()
	case errors.Is(err, vault.ErrVaultNotFound):
		return fmt.Sprintf("no vault at %s (run 'coffre init' first)", cfg.VaultPath)
	default:
		return err.Error()
	}
}

// ensureUnlocked ensures the vault is unlocked.
// If locked, prompts for password and attempts to unlock.
func ensureUnlocked(ctx context.Context) error {
	if !v.IsLocked() {
		return nil
	}

	// Refuse before prompting while the throttle is locked.
	if err := v.Throttle().Check(ctx); err != nil {
		recordEvent(audit.OpVaultUnlock, "", err)
		return err
	}
	if !v.Exists() {
		return vault.ErrVaultNotFound
	}

	password, err := readMasterPassword("Enter master password: ")
	if err != nil {
		return err
	}
	err = v.Unlock(ctx, password)
	switch {
	case err == nil:
		logging.Debugf("vault unlocked: %s", v.Path())
		recordEvent(audit.OpVaultUnlock, "", nil)
	case errors.Is(err, vault.ErrVaultNotFound):
	default:
		recordEvent(audit.OpVaultUnlockFailed, "", err)
	}
	return err
}

// openActivity opens the activity log unless it is disabled. It returns nil
// when there is no log to write to.
func openActivity() *audit.Logger {
	if activity != nil || !cfg.AuditLog {
		return activity
	}
	l, err := audit.Open(cfg.AuditLogDir())
	if err != nil {
		logging.Warnf("activity log unavailable: %v", err)
		return nil
	}
	activity = l
	return activity
}

// recordEvent appends op to the activity log. Failures only warn: the log
// never blocks vault operations.
func recordEvent(op, entryID string, opErr error) {
	l := openActivity()
	if l == nil {
		return
	}
	var locked *throttle.LockedError
	var err error
	switch {
	case opErr == nil:
		err = l.LogSuccess(op, entryID)
	case errors.As(opErr, &locked):
		err = l.LogDenied(op, locked.Error())
	default:
		err = l.LogError(op, entryID, opErr)
	}
	if err != nil {
		logging.Warnf("failed to write activity log: %v", err)
	}
}

// readMasterPassword takes the password from COFFRE_PASSWORD when set,
// otherwise prompts without echo.
func readMasterPassword(prompt string) (string, error) {
	if pw, ok := passwordFromEnv(); ok {
		return pw, nil
	}
	return readPassword(prompt)
}

func passwordFromEnv() (string, bool) {
	pw, ok := os.LookupEnv(passwordEnv)
	if ok {
		_ = os.Unsetenv(passwordEnv)
	}
	return pw, ok
}

// readPassword prompts on stderr and reads a line without echo.
func readPassword(prompt string) (string, error) {
	fd := int(syscall.Stdin)
	if !term.IsTerminal(fd) {
		return readLine(prompt)
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(b), nil
}

// readLine prompts on stderr and reads a single line from stdin, trimming
// the trailing newline.
func readLine(prompt string) (string, error) {
	if prompt != "" {
		fmt.Fprint(os.Stderr, prompt)
	}
	line, err := stdin.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		if err == io.EOF {
			return "", errors.New("unexpected end of input")
		}
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	value := strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(value, "\r"), nil
}

// confirm asks a yes/no question; anything but y/yes is no.
func confirm(prompt string) (bool, error) {
	answer, err := readLine(prompt + " [y/N]: ")
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes", nil
}
