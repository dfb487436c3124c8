package importer

import (
	"strings"
	"testing"
)

func TestBitwardenParser_Source(t *testing.T) {
	p := &BitwardenParser{}
	if p.Source() != SourceBitwarden {
		t.Errorf("Source() = %q, want %q", p.Source(), SourceBitwarden)
	}
}

func TestBitwardenParser_ParseLogin(t *testing.T) {
	jsonData := `{
		"folders": [{"id": "f1", "name": "Comptes mails"}],
		"items": [{
			"type": 1,
			"name": "Proton",
			"notes": "backup codes in drawer",
			"folderId": "f1",
			"login": {
				"uris": [{"uri": "https://proton.me"}, {"uri": "https://account.proton.me"}],
				"username": "me@proton.me",
				"password": "hunter2",
				"totp": "JBSWY3DPEHPK3PXP"
			}
		}]
	}`

	p := &BitwardenParser{}
	result, err := p.Parse([]byte(jsonData), ParseOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(result.Entries))
	}

	in := result.Entries[0].Input
	if in.Name != "Proton" || in.Login != "me@proton.me" || in.Secret != "hunter2" {
		t.Errorf("unexpected fields: %+v", in)
	}
	if in.Category != "Comptes mails" {
		t.Errorf("Category = %q, want folder name", in.Category)
	}
	if in.URL != "https://proton.me" {
		t.Errorf("URL = %q", in.URL)
	}
	if in.Notes != "backup codes in drawer\nURL: https://account.proton.me" {
		t.Errorf("Notes = %q", in.Notes)
	}
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], "TOTP") {
		t.Errorf("expected a TOTP warning, got %v", result.Warnings)
	}
}

func TestBitwardenParser_ParseSecureNote(t *testing.T) {
	jsonData := `{"items": [{"type": 2, "name": "Alarm", "notes": "code 4321", "secureNote": {"type": 0}}]}`

	p := &BitwardenParser{}
	result, err := p.Parse([]byte(jsonData), ParseOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(result.Entries))
	}
	if got := result.Entries[0].Input.Secret; got != "code 4321" {
		t.Errorf("Secret = %q", got)
	}
}

func TestBitwardenParser_ParseCard(t *testing.T) {
	jsonData := `{"items": [{
		"type": 3,
		"name": "Visa",
		"card": {
			"cardholderName": "Jane Doe",
			"number": "4111111111111111",
			"expMonth": "12",
			"expYear": "2030",
			"code": "123",
			"brand": "Visa"
		}
	}]}`

	p := &BitwardenParser{}
	result, err := p.Parse([]byte(jsonData), ParseOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(result.Entries))
	}

	in := result.Entries[0].Input
	if in.Secret != "4111111111111111" || in.Login != "Jane Doe" {
		t.Errorf("unexpected fields: %+v", in)
	}
	if in.Notes != "Brand: Visa\nExpires: 12/2030" {
		t.Errorf("Notes = %q", in.Notes)
	}
	if strings.Contains(in.Notes, "123") {
		t.Error("card security code must not reach the notes")
	}
	if len(result.Warnings) != 1 {
		t.Errorf("expected 1 warning, got %v", result.Warnings)
	}
}

func TestBitwardenParser_ParseIdentity(t *testing.T) {
	jsonData := `{"items": [{"type": 4, "name": "Me", "identity": {"firstName": "Jane"}}]}`

	p := &BitwardenParser{}
	result, err := p.Parse([]byte(jsonData), ParseOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Entries) != 0 {
		t.Errorf("got %d entries, want 0", len(result.Entries))
	}
	if len(result.Skipped) != 1 || !strings.Contains(result.Skipped[0].Reason, "identity") {
		t.Errorf("expected identity to be skipped, got %v", result.Skipped)
	}
}

func TestBitwardenParser_CustomFields(t *testing.T) {
	jsonData := `{"items": [{
		"type": 1,
		"name": "Bank",
		"login": {"username": "u", "password": "p"},
		"fields": [
			{"name": "Client number", "value": "998877", "type": 0},
			{"name": "PIN", "value": "0000", "type": 1},
			{"name": "Pro", "value": "true", "type": 2}
		]
	}]}`

	p := &BitwardenParser{}
	result, err := p.Parse([]byte(jsonData), ParseOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(result.Entries))
	}

	notes := result.Entries[0].Input.Notes
	if notes != "Client number: 998877\nPro: true" {
		t.Errorf("Notes = %q", notes)
	}
	if strings.Contains(notes, "0000") {
		t.Error("hidden field must not reach the notes")
	}
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], "PIN") {
		t.Errorf("expected a hidden field warning, got %v", result.Warnings)
	}
}

func TestBitwardenParser_UnsupportedType(t *testing.T) {
	jsonData := `{"items": [{"type": 99, "name": "Future"}]}`

	p := &BitwardenParser{}
	result, err := p.Parse([]byte(jsonData), ParseOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Skipped) != 1 {
		t.Errorf("got %d skipped, want 1", len(result.Skipped))
	}
}

func TestBitwardenParser_InvalidJSON(t *testing.T) {
	p := &BitwardenParser{}
	if _, err := p.Parse([]byte("{not json"), ParseOptions{}); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestBitwardenParser_Encrypted(t *testing.T) {
	p := &BitwardenParser{}
	if _, err := p.Parse([]byte(`{"encrypted": true, "items": []}`), ParseOptions{}); err == nil {
		t.Error("expected error for encrypted export")
	}
}

func TestBitwardenParser_EmptyItems(t *testing.T) {
	p := &BitwardenParser{}
	result, err := p.Parse([]byte(`{"items": []}`), ParseOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Entries) != 0 || len(result.Skipped) != 0 {
		t.Errorf("expected empty result, got %+v", result)
	}
}

func TestBitwardenParser_UnknownFolder(t *testing.T) {
	jsonData := `{"folders": [], "items": [{"type": 1, "name": "A", "folderId": "gone", "login": {"password": "p"}}]}`

	p := &BitwardenParser{}
	result, err := p.Parse([]byte(jsonData), ParseOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(result.Entries))
	}
	if got := result.Entries[0].Input.Category; got != DefaultCategory {
		t.Errorf("Category = %q, want %q", got, DefaultCategory)
	}
}
