// Package namematch links a user profile to reservations on which the user
// appears as a traveler, by comparing names.
//
// This is a best-effort heuristic, not an identity check. Namesakes with the
// same surname and a similar given name will be matched (false positive),
// and transliterations or reordered compound surnames will be missed (false
// negative). Callers must treat a match as "probably this person".
package namematch

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize strips diacritics, upper-cases, and collapses whitespace:
// "  Andrés   Gamberg" -> "ANDRES GAMBERG".
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(strings.ToUpper(out)), " ")
}

// Name is a parsed traveler name.
type Name struct {
	Surname    string
	GivenNames []string
}

// Parse splits a reservation passenger name. The airline form
// "SURNAME/GIVEN NAMES" is split on the slash; anything else is read as
// "SURNAME GIVEN NAMES" with the first token as the surname.
func Parse(raw string) Name {
	if surname, given, ok := strings.Cut(raw, "/"); ok {
		return Name{Surname: Normalize(surname), GivenNames: strings.Fields(Normalize(given))}
	}
	tokens := strings.Fields(Normalize(raw))
	if len(tokens) == 0 {
		return Name{}
	}
	return Name{Surname: tokens[0], GivenNames: tokens[1:]}
}

// Profile is the traveler identity configured by a user.
type Profile struct {
	Surname    string
	GivenNames string
}

// Configured reports whether the profile has enough to match on.
func (p Profile) Configured() bool {
	return Normalize(p.Surname) != ""
}

// Matches reports whether a reservation passenger name plausibly refers to
// the profile. The surname must match exactly after normalization. When the
// profile has given names, at least one of them must be a substring of, or
// contain, one of the passenger's given names ("ANDRES" matches
// "ANDRES GUILLERMO", "GUILLE" matches "GUILLERMO").
func (p Profile) Matches(passengerName string) bool {
	surname := Normalize(p.Surname)
	if surname == "" {
		return false
	}
	n := Parse(passengerName)
	if n.Surname != surname {
		return false
	}
	given := strings.Fields(Normalize(p.GivenNames))
	if len(given) == 0 {
		return true
	}
	for _, want := range given {
		for _, have := range n.GivenNames {
			if strings.Contains(have, want) || strings.Contains(want, have) {
				return true
			}
		}
	}
	return false
}

// Index renders passenger names into a single normalized string suitable
// for a coarse LIKE prefilter in storage; Matches makes the real decision.
func Index(names []string) string {
	parts := make([]string, 0, len(names))
	for _, n := range names {
		if s := Normalize(strings.ReplaceAll(n, "/", " ")); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "|")
}
