// Package security provides security analysis and scoring for vault entries.
package security

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

// PasswordStrength represents the strength level of a password.
type PasswordStrength int

const (
	// PasswordWeak indicates an insecure password (less than 8 characters).
	PasswordWeak PasswordStrength = iota
	// PasswordFair indicates a minimally acceptable password.
	PasswordFair
	// PasswordGood indicates a good password.
	PasswordGood
	// PasswordStrong indicates a strong password.
	PasswordStrong
)

// Master password length rules.
const (
	MinMasterPasswordLength = 8
	MaxMasterPasswordLength = 128
)

// String returns a human-readable representation of the password strength.
func (s PasswordStrength) String() string {
	switch s {
	case PasswordWeak:
		return "Weak"
	case PasswordFair:
		return "Fair"
	case PasswordGood:
		return "Good"
	case PasswordStrong:
		return "Strong"
	default:
		return "Unknown"
	}
}

// Points returns the score points for this strength level.
// Used in StrengthScore calculation: Weak=0, Fair=8, Good=17, Strong=25.
func (s PasswordStrength) Points() int {
	switch s {
	case PasswordWeak:
		return 0
	case PasswordFair:
		return 8
	case PasswordGood:
		return 17
	case PasswordStrong:
		return 25
	default:
		return 0
	}
}

// CalculatePasswordStrength evaluates a human-chosen password.
// Length is the primary factor per NIST SP 800-63B, which discourages
// composition rules. Length counts characters, not bytes.
func CalculatePasswordStrength(value string) PasswordStrength {
	length := utf8.RuneCountInString(value)

	switch {
	case length >= 20:
		return PasswordStrong
	case length >= 14:
		return PasswordGood
	case length >= 8:
		return PasswordFair
	default:
		return PasswordWeak
	}
}

// PasswordValidationResult contains the result of password validation
type PasswordValidationResult struct {
	Valid    bool             // Whether the password can be used at all
	Strength PasswordStrength // Estimated strength
	Warnings []string         // Suggestions for improvement (not errors)
}

// ValidateMasterPassword assesses a new master password. Only an empty
// password is rejected; everything else produces warnings the caller may show
// before proceeding.
func ValidateMasterPassword(password string) *PasswordValidationResult {
	result := &PasswordValidationResult{
		Valid:    true,
		Strength: CalculatePasswordStrength(password),
	}

	if password == "" {
		result.Valid = false
		result.Warnings = append(result.Warnings, "Password cannot be empty")
		return result
	}

	length := utf8.RuneCountInString(password)
	if length < MinMasterPasswordLength {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Passwords shorter than %d characters are easy to guess", MinMasterPasswordLength))
	}
	if length > MaxMasterPasswordLength {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Passwords longer than %d characters are hard to type reliably", MaxMasterPasswordLength))
	}

	var hasUpper, hasLower, hasDigit, hasOther bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasOther = true
		}
	}
	complexity := 0
	for _, ok := range []bool{hasUpper, hasLower, hasDigit, hasOther} {
		if ok {
			complexity++
		}
	}

	if complexity < 2 && length < 20 {
		result.Warnings = append(result.Warnings,
			"Consider using a mix of uppercase, lowercase, numbers, and symbols")
	}
	if length >= MinMasterPasswordLength && length < 12 {
		result.Warnings = append(result.Warnings,
			"Longer passwords (12+ characters) are more secure")
	}

	return result
}
