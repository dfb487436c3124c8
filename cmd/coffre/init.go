package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forest6511/coffre/pkg/audit"
	"github.com/forest6511/coffre/pkg/security"
)

func init() {
	rootCmd.AddCommand(initCmd)
}

// initCmd creates a new empty vault
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Creates a new empty vault",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if v.Exists() {
			return fmt.Errorf("a vault already exists at %s", v.Path())
		}

		fmt.Fprintln(stdout, "Creating new vault...")

		// 1. Prompt for master password, twice
		password1, err := newMasterPassword("Enter master password: ", "Confirm master password: ")
		if err != nil {
			return err
		}

		// 2. Assess strength; only an empty password is refused
		result := security.ValidateMasterPassword(password1)
		if !result.Valid {
			return fmt.Errorf("password validation failed: %s", result.Warnings[0])
		}
		fmt.Fprintf(stdout, "Password strength: %s\n", result.Strength)
		for _, warning := range result.Warnings {
			fmt.Fprintln(stdout, styleWarning.Render("Warning: "+warning))
		}

		// 3. Write the vault
		if err := v.Create(cmd.Context(), password1); err != nil {
			return fmt.Errorf("failed to create vault: %w", err)
		}
		recordEvent(audit.OpVaultInit, "", nil)

		fmt.Fprintf(stdout, "Vault created at %s\n", v.Path())
		fmt.Fprintln(stdout, "There is no way to recover a forgotten master password.")
		return nil
	},
}

// newMasterPassword reads a new master password, asking twice when prompting.
func newMasterPassword(prompt, confirmPrompt string) (string, error) {
	if pw, ok := passwordFromEnv(); ok {
		return pw, nil
	}
	password1, err := readPassword(prompt)
	if err != nil {
		return "", err
	}
	password2, err := readPassword(confirmPrompt)
	if err != nil {
		return "", err
	}
	if password1 != password2 {
		return "", errors.New("passwords do not match")
	}
	return password1, nil
}
