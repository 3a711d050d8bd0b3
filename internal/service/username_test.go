package service

import (
	"slices"
	"testing"
)

func TestSanitizeUsername(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"wine_lover", "wine_lover"},
		{"WINE_LOVER", "wine_lover"},
		{"Wine Lover!", "winelover"},
		{"__pat__", "pat"},
		{".-pat-.", "pat"},
		{"a..b", "a_b"},
		{"a._-b", "a_b"},
		{"a-b.c_d", "a-b.c_d"},
		{"Ünïcødé", "ncd"},
		{"!!!", "user"},
		{"", "user"},
		{"---", "user"},
	}

	for _, tt := range tests {
		if got := SanitizeUsername(tt.in); got != tt.want {
			t.Errorf("SanitizeUsername(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeUsername_Idempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{"wine_lover", "WINE LOVER", "a..b--c", "..x..", "Ünïcødé", "", "user", "a_-_b", "x.y-z"}
	for _, in := range inputs {
		once := SanitizeUsername(in)
		if twice := SanitizeUsername(once); twice != once {
			t.Errorf("not idempotent for %q: %q then %q", in, once, twice)
		}
		if once == "" {
			t.Errorf("empty result for %q", in)
		}
	}
}

func TestSyntheticEmail(t *testing.T) {
	t.Parallel()

	if got := SyntheticEmail("Wine Lover", "sipmate.local"); got != "winelover@sipmate.local" {
		t.Errorf("unexpected synthetic email %q", got)
	}
}

func TestLoginCandidates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		stored   string
		username string
		want     []string
	}{
		{
			name:     "stored first then derived",
			stored:   "pat@example.com",
			username: "Pat.Smith!",
			want:     []string{"pat@example.com", "pat.smith@sipmate.local", "pat.smith!@sipmate.local"},
		},
		{
			name:     "duplicates dropped",
			stored:   "wine_lover@sipmate.local",
			username: "WINE_LOVER",
			want:     []string{"wine_lover@sipmate.local"},
		},
		{
			name:     "blank stored email skipped",
			stored:   "  ",
			username: "pat",
			want:     []string{"pat@sipmate.local"},
		},
	}

	for _, tt := range tests {
		got := LoginCandidates(tt.stored, tt.username, "sipmate.local")
		if !slices.Equal(got, tt.want) {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
		}
	}
}
