package crypto

import (
	"encoding/json"
	"fmt"
	"io"
)

const redacted = "[SECRET]"

// Secret holds sensitive material such as the master password. Formatting
// and marshaling are redacted so it cannot leak through logs.
type Secret []byte

// NewSecret copies s into a Secret.
func NewSecret(s string) Secret {
	return Secret([]byte(s))
}

// String redacts the secret for fmt.Print* convenience.
func (s Secret) String() string { return redacted }

// Format implements fmt.Formatter so that %v, %#v, %q and friends are redacted.
func (s Secret) Format(f fmt.State, _ rune) {
	_, _ = io.WriteString(f, redacted)
}

// MarshalJSON redacts secrets in JSON marshaling.
func (s Secret) MarshalJSON() ([]byte, error) { return json.Marshal(redacted) }

// MarshalText redacts secrets for text encoding.
func (s Secret) MarshalText() ([]byte, error) { return []byte(redacted), nil }

// Reveal returns the secret as a string. The returned string cannot be wiped.
func (s Secret) Reveal() string { return string(s) }

// Empty reports whether the secret holds no bytes.
func (s Secret) Empty() bool { return len(s) == 0 }

// Zero overwrites the underlying bytes and releases the slice.
func (s *Secret) Zero() {
	if s == nil || *s == nil {
		return
	}
	SecureWipe(*s)
	*s = nil
}
