package importer

import (
	"fmt"
	"strings"
)

// OnePasswordParser parses 1Password CSV export files:
// Title,Website,Username,Password,OTPAuth,Favorite,Archived,Tags,Notes
type OnePasswordParser struct{}

const (
	op1ColTitle    = "Title"
	op1ColWebsite  = "Website"
	op1ColUsername = "Username"
	op1ColPassword = "Password"
	op1ColOTPAuth  = "OTPAuth"
	op1ColArchived = "Archived"
	op1ColTags     = "Tags"
	op1ColNotes    = "Notes"
)

// Source returns the source type for this parser.
func (p *OnePasswordParser) Source() Source {
	return Source1Password
}

// Parse parses 1Password CSV data. Rows without a password but with notes
// are secure notes and store the notes as the secret.
func (p *OnePasswordParser) Parse(data []byte, opts ParseOptions) (*ImportResult, error) {
	result := newResult()
	counter := 1

	err := readCSV(data, false, op1ColTitle, result, func(row csvRow) {
		d := &draft{
			name:   row.get(op1ColTitle),
			login:  row.get(op1ColUsername),
			secret: row.get(op1ColPassword),
			url:    row.get(op1ColWebsite),
		}
		notes := row.get(op1ColNotes)
		if d.secret == "" {
			d.secret = notes
			notes = ""
		}
		d.addNote("", notes)

		for _, t := range strings.Split(row.get(op1ColTags), ",") {
			if t = strings.TrimSpace(t); t != "" {
				d.tags = append(d.tags, t)
			}
		}
		if strings.EqualFold(row.get(op1ColArchived), "true") {
			d.tags = append(d.tags, "archived")
		}
		if row.get(op1ColOTPAuth) != "" {
			d.drop("TOTP seed")
		}

		result.add(d, opts, &counter, fmt.Sprintf("row %d", row.num))
	})
	if err != nil {
		return nil, err
	}

	DeduplicateNames(result.Entries, opts.ExistingNames)
	return result, nil
}
