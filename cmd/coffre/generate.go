package main

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"
)

// Character set constants
const (
	charsetLowercase = "abcdefghijklmnopqrstuvwxyz"
	charsetUppercase = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	charsetDigits    = "0123456789"
	charsetSymbols   = "!@#$%^&*()_+-=[]{}|;:,.<>?"
	charsetAmbiguous = "0O1lI|"

	minPasswordLength     = 8
	maxPasswordLength     = 256
	defaultPasswordLength = 24
	defaultPasswordCount  = 1
	maxPasswordCount      = 100
	maxExcludeLength      = 256
)

// generateOptions holds the generate command flags.
type generateOptions struct {
	length        int
	count         int
	noSymbols     bool
	noNumbers     bool
	noUppercase   bool
	noLowercase   bool
	noAmbiguous   bool
	exclude       string
	copyClipboard bool
}

var genOpts = generateOptions{length: defaultPasswordLength, count: defaultPasswordCount}

func init() {
	rootCmd.AddCommand(generateCmd)

	f := generateCmd.Flags()
	f.IntVarP(&genOpts.length, "length", "l", defaultPasswordLength, "Password length (8-256)")
	f.IntVarP(&genOpts.count, "count", "n", defaultPasswordCount, "Number of passwords to generate (1-100)")
	f.BoolVar(&genOpts.noSymbols, "no-symbols", false, "Exclude symbols")
	f.BoolVar(&genOpts.noNumbers, "no-numbers", false, "Exclude numbers")
	f.BoolVar(&genOpts.noUppercase, "no-uppercase", false, "Exclude uppercase letters")
	f.BoolVar(&genOpts.noLowercase, "no-lowercase", false, "Exclude lowercase letters")
	f.BoolVar(&genOpts.noAmbiguous, "no-ambiguous", false, "Exclude look-alike characters ("+charsetAmbiguous+")")
	f.StringVar(&genOpts.exclude, "exclude", "", "Characters to exclude")
	f.BoolVarP(&genOpts.copyClipboard, "copy", "c", false, "Copy first password to clipboard (accessible to all processes)")
}

var generateCmd = &cobra.Command{
	Use:         "generate",
	Short:       "Generate secure random passwords",
	Annotations: map[string]string{skipVaultAnnotation: "true"},
	Long: `Generate cryptographically secure random passwords. The vault is not opened.

Examples:
  # Generate a 24-character password (default)
  coffre generate

  # Generate a 32-character password without symbols
  coffre generate -l 32 --no-symbols

  # Generate 5 passwords without look-alike characters
  coffre generate -n 5 --no-ambiguous

  # Generate and copy to clipboard
  coffre generate -c`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := genOpts.validate(); err != nil {
			return err
		}
		charset, err := genOpts.charset()
		if err != nil {
			return err
		}

		passwords := make([]string, genOpts.count)
		for i := range passwords {
			if passwords[i], err = generatePassword(charset, genOpts.length); err != nil {
				return fmt.Errorf("failed to generate password: %w", err)
			}
			fmt.Fprintln(stdout, passwords[i])
		}

		if genOpts.copyClipboard {
			if err := clipboard.WriteAll(passwords[0]); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to copy to clipboard: %v\n", err)
			} else {
				fmt.Fprintln(os.Stderr, "Password copied to clipboard")
			}
		}
		return nil
	},
}

// validate checks flag ranges.
func (o *generateOptions) validate() error {
	if o.length < minPasswordLength {
		return fmt.Errorf("password length must be at least %d characters", minPasswordLength)
	}
	if o.length > maxPasswordLength {
		return fmt.Errorf("password length must be at most %d characters", maxPasswordLength)
	}
	if o.count < 1 {
		return fmt.Errorf("count must be at least 1")
	}
	if o.count > maxPasswordCount {
		return fmt.Errorf("count must be at most %d", maxPasswordCount)
	}
	if len(o.exclude) > maxExcludeLength {
		return fmt.Errorf("exclude string must be at most %d characters", maxExcludeLength)
	}
	return nil
}

// charset builds the character set selected by the flags.
func (o *generateOptions) charset() (string, error) {
	var b strings.Builder
	if !o.noLowercase {
		b.WriteString(charsetLowercase)
	}
	if !o.noUppercase {
		b.WriteString(charsetUppercase)
	}
	if !o.noNumbers {
		b.WriteString(charsetDigits)
	}
	if !o.noSymbols {
		b.WriteString(charsetSymbols)
	}

	exclude := o.exclude
	if o.noAmbiguous {
		exclude += charsetAmbiguous
	}
	result := removeChars(b.String(), exclude)
	if result == "" {
		return "", fmt.Errorf("character set is empty: adjust flags to include at least one character type")
	}
	return result, nil
}

// removeChars removes specified characters from a string
func removeChars(s, chars string) string {
	if chars == "" {
		return s
	}
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(chars, r) {
			return -1
		}
		return r
	}, s)
}

// generatePassword generates a cryptographically secure random password
// drawn uniformly from charset.
func generatePassword(charset string, length int) (string, error) {
	charsetLen := big.NewInt(int64(len(charset)))
	password := make([]byte, length)

	for i := range password {
		idx, err := rand.Int(rand.Reader, charsetLen)
		if err != nil {
			return "", fmt.Errorf("failed to generate random number: %w", err)
		}
		password[i] = charset[idx.Int64()]
	}

	return string(password), nil
}
