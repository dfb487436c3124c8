package vault

import (
	"strings"
	"testing"
	"time"
)

func queryFixture() []Entry {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return []Entry{
		{ID: "1", Name: "zeta bank", Login: "z", Category: "Banque / Finance", Tags: []string{"perso"},
			CreatedAt: base.Add(2 * time.Hour), UpdatedAt: base.Add(5 * time.Hour)},
		{ID: "2", Name: "Alpha mail", Login: "alice@example.com", Category: "Comptes mails",
			CreatedAt: base, UpdatedAt: base.Add(9 * time.Hour)},
		{ID: "3", Name: "EDF", Category: "Énergie", URL: "https://edf.fr", Notes: "Compteur Linky",
			Tags: []string{"maison", "perso"}, CreatedAt: base.Add(time.Hour), UpdatedAt: base.Add(time.Hour)},
	}
}

func ids(entries []Entry) string {
	var s []string
	for _, e := range entries {
		s = append(s, e.ID)
	}
	return strings.Join(s, ",")
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		want  string
	}{
		{"empty query", Query{}, "1,2,3"},
		{"name case-insensitive", Query{Text: "ALPHA"}, "2"},
		{"login", Query{Text: "alice@"}, "2"},
		{"notes", Query{Text: "linky"}, "3"},
		{"url", Query{Text: "edf.fr"}, "3"},
		{"category", Query{Category: "Énergie"}, "3"},
		{"tag", Query{Tag: "perso"}, "1,3"},
		{"tag and text", Query{Tag: "perso", Text: "bank"}, "1"},
		{"no match", Query{Text: "nothing"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ids(Filter(queryFixture(), tt.query)); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestSort(t *testing.T) {
	tests := []struct {
		by   SortBy
		want string
	}{
		{SortNone, "1,2,3"},
		{SortName, "2,3,1"},
		{SortCategory, "1,2,3"},
		{SortCreatedAt, "2,3,1"},
		{SortUpdatedAt, "3,1,2"},
	}

	for _, tt := range tests {
		t.Run(string(tt.by), func(t *testing.T) {
			entries := queryFixture()
			Sort(entries, tt.by)
			if got := ids(entries); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestParseSortBy(t *testing.T) {
	for _, s := range []string{"", "name", "category", "createdAt", "updatedAt"} {
		if _, err := ParseSortBy(s); err != nil {
			t.Errorf("ParseSortBy(%q): unexpected error %v", s, err)
		}
	}
	if _, err := ParseSortBy("size"); err == nil {
		t.Error("expected error for unknown sort order")
	}
}

func TestTags(t *testing.T) {
	if got := strings.Join(Tags(queryFixture()), ","); got != "maison,perso" {
		t.Errorf("unexpected tags %q", got)
	}
	if got := Tags(nil); len(got) != 0 {
		t.Errorf("expected no tags, got %v", got)
	}
}
