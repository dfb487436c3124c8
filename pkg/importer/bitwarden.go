package importer

import (
	"encoding/json"
	"fmt"
	"strings"
)

// BitwardenParser parses Bitwarden JSON export files (item types 1-4).
type BitwardenParser struct{}

// Bitwarden item types.
const (
	bitwardenTypeLogin      = 1
	bitwardenTypeSecureNote = 2
	bitwardenTypeCard       = 3
	bitwardenTypeIdentity   = 4
)

// Bitwarden custom field types.
const (
	bitwardenFieldText    = 0
	bitwardenFieldHidden  = 1
	bitwardenFieldBoolean = 2
)

type bitwardenExport struct {
	Encrypted bool              `json:"encrypted"`
	Items     []bitwardenItem   `json:"items"`
	Folders   []bitwardenFolder `json:"folders"`
}

type bitwardenFolder struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type bitwardenItem struct {
	Type     int                    `json:"type"`
	Name     string                 `json:"name"`
	Notes    string                 `json:"notes"`
	FolderID *string                `json:"folderId"`
	Login    *bitwardenLogin        `json:"login"`
	Card     *bitwardenCard         `json:"card"`
	Fields   []bitwardenCustomField `json:"fields"`
}

type bitwardenLogin struct {
	URIs     []bitwardenURI `json:"uris"`
	Username string         `json:"username"`
	Password string         `json:"password"`
	TOTP     string         `json:"totp"`
}

type bitwardenURI struct {
	URI string `json:"uri"`
}

type bitwardenCard struct {
	CardholderName string `json:"cardholderName"`
	Number         string `json:"number"`
	ExpMonth       string `json:"expMonth"`
	ExpYear        string `json:"expYear"`
	Code           string `json:"code"`
	Brand          string `json:"brand"`
}

type bitwardenCustomField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Type  int    `json:"type"`
}

// Source returns the source type for this parser.
func (p *BitwardenParser) Source() Source {
	return SourceBitwarden
}

// Parse parses an unencrypted Bitwarden JSON export. Folders become
// categories.
func (p *BitwardenParser) Parse(data []byte, opts ParseOptions) (*ImportResult, error) {
	var export bitwardenExport
	if err := json.Unmarshal(stripBOM(data), &export); err != nil {
		return nil, fmt.Errorf("failed to parse Bitwarden JSON: %w", err)
	}
	if export.Encrypted {
		return nil, fmt.Errorf("encrypted Bitwarden exports are not supported, export as unencrypted JSON")
	}

	folders := make(map[string]string, len(export.Folders))
	for _, f := range export.Folders {
		folders[f.ID] = f.Name
	}

	result := newResult()
	counter := 1
	for i := range export.Items {
		item := &export.Items[i]
		where := fmt.Sprintf("item %d (%s)", i+1, item.Name)

		d, ok := p.draftItem(item)
		if !ok {
			reason := fmt.Sprintf("unsupported item type: %d", item.Type)
			if item.Type == bitwardenTypeIdentity {
				reason = "identity items are not supported"
			}
			result.Skipped = append(result.Skipped, SkippedItem{OriginalName: item.Name, Reason: reason})
			continue
		}
		if item.FolderID != nil {
			d.category = folders[*item.FolderID]
		}
		p.addCustomFields(d, item.Fields)

		result.add(d, opts, &counter, where)
	}

	DeduplicateNames(result.Entries, opts.ExistingNames)
	return result, nil
}

// draftItem maps the typed part of an item. Identities have no secret an
// entry could hold and are not supported.
func (p *BitwardenParser) draftItem(item *bitwardenItem) (*draft, bool) {
	d := &draft{name: item.Name}

	switch item.Type {
	case bitwardenTypeLogin:
		d.addNote("", item.Notes)
		if item.Login == nil {
			return d, true
		}
		d.login = item.Login.Username
		d.secret = item.Login.Password
		for i, u := range item.Login.URIs {
			if i == 0 {
				d.url = strings.TrimSpace(u.URI)
				continue
			}
			d.addNote("URL", strings.TrimSpace(u.URI))
		}
		if item.Login.TOTP != "" {
			d.drop("TOTP seed")
		}
	case bitwardenTypeSecureNote:
		d.secret = item.Notes
	case bitwardenTypeCard:
		d.addNote("", item.Notes)
		if item.Card == nil {
			return d, true
		}
		c := item.Card
		d.secret = c.Number
		d.login = c.CardholderName
		d.addNote("Brand", c.Brand)
		if c.ExpMonth != "" || c.ExpYear != "" {
			d.addNote("Expires", strings.Trim(c.ExpMonth+"/"+c.ExpYear, "/"))
		}
		if c.Code != "" {
			d.drop("card security code")
		}
	default:
		return nil, false
	}
	return d, true
}

// addCustomFields appends visible custom fields to the notes.
func (p *BitwardenParser) addCustomFields(d *draft, fields []bitwardenCustomField) {
	for _, cf := range fields {
		switch cf.Type {
		case bitwardenFieldText, bitwardenFieldBoolean:
			label := strings.TrimSpace(cf.Name)
			if label == "" {
				label = "Field"
			}
			d.addNote(label, cf.Value)
		case bitwardenFieldHidden:
			if cf.Value != "" {
				d.drop(fmt.Sprintf("hidden field %q", cf.Name))
			}
		}
	}
}
