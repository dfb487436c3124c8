package vault

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// Entry validation limits.
const (
	MaxNameLength   = 256
	MaxNotesSize    = 10 * 1024 // 10 KB
	MaxURLLength    = 2048      // RFC 3986 practical limit
	MaxTagCount     = 10
	MaxTagLength    = 64
	MinTagLength    = 1
	timestampLayout = "2006-01-02T15:04:05.000Z07:00"
)

// Categories lists the categories offered when creating an entry. Any other
// non-empty category is accepted as well.
var Categories = []string{
	"Maison",
	"Banque / Finance",
	"Énergie",
	"Assurance",
	"Citoyen",
	"Comptes mails",
	"Utiles",
}

// Entry is one secret record.
type Entry struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Login     string    `json:"login"`
	Secret    string    `json:"secret"`
	Category  string    `json:"category"`
	URL       string    `json:"url"`
	Notes     string    `json:"notes"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MarshalJSON stores timestamps as UTC with exactly three fractional
// digits, e.g. 2025-01-01T12:00:00.000Z.
func (e Entry) MarshalJSON() ([]byte, error) {
	type fields Entry
	return json.Marshal(struct {
		fields
		CreatedAt string `json:"createdAt"`
		UpdatedAt string `json:"updatedAt"`
	}{fields(e), FormatTimestamp(e.CreatedAt), FormatTimestamp(e.UpdatedAt)})
}

// HasTag reports whether the entry carries tag.
func (e *Entry) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// EntryInput holds the user-editable fields of an entry.
type EntryInput struct {
	Name     string
	Login    string
	Secret   string
	Category string
	URL      string
	Notes    string
	Tags     []string
}

// InputFrom returns the editable fields of e, for partial edits.
func InputFrom(e *Entry) EntryInput {
	return EntryInput{
		Name:     e.Name,
		Login:    e.Login,
		Secret:   e.Secret,
		Category: e.Category,
		URL:      e.URL,
		Notes:    e.Notes,
		Tags:     append([]string(nil), e.Tags...),
	}
}

// Normalize trims single-line fields, applies Unicode NFC and turns tags into
// an ordered set. Notes are kept verbatim.
func (in EntryInput) Normalize() EntryInput {
	out := EntryInput{
		Name:     normalizeField(in.Name),
		Login:    normalizeField(in.Login),
		Secret:   strings.TrimSpace(in.Secret),
		Category: normalizeField(in.Category),
		URL:      strings.TrimSpace(in.URL),
		Notes:    in.Notes,
		Tags:     []string{},
	}

	seen := make(map[string]bool, len(in.Tags))
	for _, tag := range in.Tags {
		tag = normalizeField(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out.Tags = append(out.Tags, tag)
	}
	return out
}

func normalizeField(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// Validate checks the required fields and size limits. Call it on a
// normalized input.
func (in EntryInput) Validate() error {
	if in.Name == "" {
		return ErrNameRequired
	}
	if len(in.Name) > MaxNameLength {
		return fmt.Errorf("%w: %d bytes exceeds maximum of %d bytes",
			ErrNameTooLong, len(in.Name), MaxNameLength)
	}
	if in.Secret == "" {
		return ErrSecretRequired
	}
	if in.Category == "" {
		return ErrCategoryRequired
	}

	if len(in.Notes) > MaxNotesSize {
		return fmt.Errorf("%w: %d bytes exceeds maximum of %d bytes",
			ErrNotesTooLarge, len(in.Notes), MaxNotesSize)
	}

	if in.URL != "" {
		if len(in.URL) > MaxURLLength {
			return fmt.Errorf("%w: %d characters exceeds maximum of %d",
				ErrURLTooLong, len(in.URL), MaxURLLength)
		}
		parsedURL, err := url.Parse(in.URL)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrURLInvalid, err)
		}
		// Only http and https: the URL ends up behind a clickable link.
		if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
			return fmt.Errorf("%w: only http and https schemes are allowed", ErrURLInvalid)
		}
		if parsedURL.Host == "" {
			return fmt.Errorf("%w: URL must have a host", ErrURLInvalid)
		}
	}

	if len(in.Tags) > MaxTagCount {
		return fmt.Errorf("%w: %d tags exceeds maximum of %d",
			ErrTooManyTags, len(in.Tags), MaxTagCount)
	}
	for _, tag := range in.Tags {
		if n := len([]rune(tag)); n < MinTagLength || n > MaxTagLength {
			return fmt.Errorf("%w: tag '%s' must be %d-%d characters",
				ErrTagInvalid, tag, MinTagLength, MaxTagLength)
		}
	}

	return nil
}

// NewEntry builds a fresh entry from in with a random id and both timestamps
// set to now.
func NewEntry(in EntryInput, now time.Time) (*Entry, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now = now.UTC().Truncate(time.Millisecond)
	e := &Entry{
		ID:        uuid.NewString(),
		CreatedAt: now,
	}
	e.assign(in, now)
	return e, nil
}

// Apply replaces the editable fields with in and refreshes UpdatedAt. ID and
// CreatedAt never change. On a validation error e is left untouched.
func (e *Entry) Apply(in EntryInput, now time.Time) error {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return err
	}
	e.assign(in, now.UTC().Truncate(time.Millisecond))
	return nil
}

func (e *Entry) assign(in EntryInput, now time.Time) {
	e.Name = in.Name
	e.Login = in.Login
	e.Secret = in.Secret
	e.Category = in.Category
	e.URL = in.URL
	e.Notes = in.Notes
	e.Tags = in.Tags
	e.UpdatedAt = now
}

// FormatTimestamp renders t the way entries store it.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}
