package importer

import (
	"fmt"
	"html"
)

// LastPassParser parses LastPass CSV export files:
// url,username,password,totp,extra,name,grouping,fav
type LastPassParser struct{}

const (
	lpColURL      = "url"
	lpColUsername = "username"
	lpColPassword = "password"
	lpColTOTP     = "totp"
	lpColExtra    = "extra"
	lpColName     = "name"
	lpColGrouping = "grouping"

	// lpSecureNoteURL marks secure notes in LastPass exports.
	lpSecureNoteURL = "http://sn"
)

// Source returns the source type for this parser.
func (p *LastPassParser) Source() Source {
	return SourceLastPass
}

// Parse parses LastPass CSV data. Secure notes become entries whose secret is
// the note text.
func (p *LastPassParser) Parse(data []byte, opts ParseOptions) (*ImportResult, error) {
	result := newResult()
	counter := 1

	err := readCSV(data, true, lpColName, result, func(row csvRow) {
		// LastPass HTML-escapes text fields in its exports.
		get := func(col string) string { return html.UnescapeString(row.get(col)) }

		d := &draft{
			name:     get(lpColName),
			login:    get(lpColUsername),
			secret:   get(lpColPassword),
			category: get(lpColGrouping),
			url:      get(lpColURL),
		}
		extra := get(lpColExtra)

		if d.url == lpSecureNoteURL {
			d.url = ""
			if d.secret == "" {
				d.secret = extra
				extra = ""
			}
		}
		d.addNote("", extra)
		if get(lpColTOTP) != "" {
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
