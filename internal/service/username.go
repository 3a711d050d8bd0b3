package service

import (
	"regexp"
	"strings"
)

// fallbackUsername is what an input with no usable characters sanitizes to
const fallbackUsername = "user"

var (
	usernameDisallowed = regexp.MustCompile(`[^a-z0-9._-]`)
	usernameEdgeSeps   = regexp.MustCompile(`^[._-]+|[._-]+$`)
	usernameSepRuns    = regexp.MustCompile(`[._-]{2,}`)
)

// SanitizeUsername reduces a username to the characters allowed in the local
// part of a synthetic email: lowercase letters, digits, '.', '_' and '-'.
// Separators are trimmed from both ends and runs of them collapse to '_'.
// The result is never empty and sanitizing it again returns it unchanged.
func SanitizeUsername(raw string) string {
	s := strings.ToLower(raw)
	s = usernameDisallowed.ReplaceAllString(s, "")
	s = usernameEdgeSeps.ReplaceAllString(s, "")
	s = usernameSepRuns.ReplaceAllString(s, "_")
	if s == "" {
		return fallbackUsername
	}
	return s
}

// SyntheticEmail derives the sign-in email for a username
func SyntheticEmail(username, domain string) string {
	return SanitizeUsername(username) + "@" + domain
}

// LoginCandidates lists the emails to try for a username, in order: the
// email stored on the profile, the synthetic email, then the raw lowercased
// username at the domain. Blanks and duplicates are dropped.
func LoginCandidates(storedEmail, username, domain string) []string {
	candidates := make([]string, 0, 3)
	seen := make(map[string]bool, 3)
	add := func(email string) {
		key := normalizeEmail(email)
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		candidates = append(candidates, strings.TrimSpace(email))
	}

	add(storedEmail)
	add(SyntheticEmail(username, domain))
	if raw := strings.ToLower(strings.TrimSpace(username)); raw != "" {
		add(raw + "@" + domain)
	}
	return candidates
}
