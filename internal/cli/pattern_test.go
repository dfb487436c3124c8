package cli

import (
	"errors"
	"strings"
	"testing"

	"github.com/forest6511/coffre/pkg/vault"
)

func testEntries() []vault.Entry {
	return []vault.Entry{
		{ID: "a1b2c3d4-0001", Name: "Gmail perso"},
		{ID: "a1b2c3d4-0002", Name: "Gmail pro"},
		{ID: "f9e8d7c6-0003", Name: "EDF"},
		{ID: "0badcafe-0004", Name: "Banque"},
		{ID: "0badcafe-0005", Name: "banque"},
	}
}

func names(entries []vault.Entry) string {
	var s []string
	for _, e := range entries {
		s = append(s, e.Name)
	}
	return strings.Join(s, ",")
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		ref     string
		want    string
		wantErr error
	}{
		{name: "exact id", ref: "f9e8d7c6-0003", want: "EDF"},
		{name: "name case-insensitive", ref: "edf", want: "EDF"},
		{name: "unique id prefix", ref: "f9e8", want: "EDF"},
		{name: "ambiguous id prefix", ref: "a1b2c3", wantErr: ErrAmbiguous},
		{name: "prefix too short", ref: "f9e", wantErr: ErrNoMatch},
		{name: "ambiguous name", ref: "BANQUE", wantErr: ErrAmbiguous},
		{name: "glob", ref: "gmail*", want: "Gmail perso,Gmail pro"},
		{name: "glob question mark", ref: "Gmail pr?", want: "Gmail pro"},
		{name: "glob no match", ref: "zzz*", wantErr: ErrNoMatch},
		{name: "not found", ref: "nothing", wantErr: ErrNoMatch},
		{name: "empty", ref: "  ", wantErr: ErrNoMatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.ref, testEntries())
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if names(got) != tt.want {
				t.Errorf("expected %q, got %q", tt.want, names(got))
			}
		})
	}
}

func TestResolveInvalidPattern(t *testing.T) {
	if _, err := Resolve("[", testEntries()); err == nil {
		t.Error("expected error for invalid pattern")
	}
}

func TestResolveOne(t *testing.T) {
	e, err := ResolveOne("edf", testEntries())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.ID != "f9e8d7c6-0003" {
		t.Errorf("unexpected entry %+v", e)
	}

	if _, err := ResolveOne("gmail*", testEntries()); !errors.Is(err, ErrAmbiguous) {
		t.Errorf("expected ErrAmbiguous, got %v", err)
	}
}

func TestResolveAll(t *testing.T) {
	got, err := ResolveAll([]string{"gmail*", "Gmail pro", "edf"}, testEntries())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if names(got) != "Gmail perso,Gmail pro,EDF" {
		t.Errorf("unexpected result %q", names(got))
	}

	if _, err := ResolveAll([]string{"edf", "missing"}, testEntries()); !errors.Is(err, ErrNoMatch) {
		t.Errorf("expected ErrNoMatch, got %v", err)
	}
}

func TestShortID(t *testing.T) {
	if got := ShortID("a1b2c3d4-0001"); got != "a1b2c3d4" {
		t.Errorf("unexpected short id %q", got)
	}
	if got := ShortID("abc"); got != "abc" {
		t.Errorf("unexpected short id %q", got)
	}
}
