package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forest6511/coffre/pkg/audit"
	"github.com/forest6511/coffre/pkg/security"
)

// passwordCmd is the parent command for password operations.
var passwordCmd = &cobra.Command{
	Use:   "password",
	Short: "Master password operations",
}

// passwordChangeCmd changes the master password.
var passwordChangeCmd = &cobra.Command{
	Use:   "change",
	Short: "Change the master password",
	Long: `Change the master password by re-encrypting the whole vault.

The current password is asked first. The vault file is replaced atomically:
either the new file is in place or the old one is left untouched.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(cmd.Context()); err != nil {
			return err
		}

		newPassword, err := newMasterPassword("Enter new password: ", "Confirm new password: ")
		if err != nil {
			return err
		}

		validation := security.ValidateMasterPassword(newPassword)
		if !validation.Valid {
			return fmt.Errorf("password validation failed: %s", validation.Warnings[0])
		}
		fmt.Fprintf(stdout, "New password strength: %s\n", validation.Strength)
		for _, warning := range validation.Warnings {
			fmt.Fprintln(stdout, styleWarning.Render("Warning: "+warning))
		}

		if err := v.ChangePassword(newPassword); err != nil {
			recordEvent(audit.OpPasswordChange, "", err)
			return fmt.Errorf("failed to change password: %w", err)
		}
		recordEvent(audit.OpPasswordChange, "", nil)

		fmt.Fprintln(stdout, "Password changed successfully!")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(passwordCmd)
	passwordCmd.AddCommand(passwordChangeCmd)
}
