// Package namekey canonicalizes free-text organization names into
// comparison-ready keys and derives stable surrogate identifiers.
package namekey

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// legalSuffixes are entity-type tokens stripped from the end of a
// normalized name. Dotted variants collapse to these once punctuation is
// removed (e.g. "S.A." -> "sa", "L.L.C." -> "llc").
var legalSuffixes = map[string]struct{}{
	"inc": {}, "incorporated": {},
	"llc": {}, "llp": {}, "lp": {},
	"ltd": {}, "limited": {},
	"corp": {}, "corporation": {},
	"company": {}, "co": {},
	"plc": {}, "gmbh": {}, "sa": {},
	"pte": {}, "pty": {},
}

// Normalize reduces a raw organization name to a comparable key:
// lower-cased, "&" expanded to "and", punctuation stripped, trailing
// legal-entity suffixes removed as whole tokens, whitespace collapsed.
// Deterministic and idempotent.
func Normalize(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "&", " and ")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}

	tokens := strings.Fields(b.String())
	for len(tokens) > 1 {
		if _, ok := legalSuffixes[tokens[len(tokens)-1]]; !ok {
			break
		}
		tokens = tokens[:len(tokens)-1]
	}
	return strings.Join(tokens, " ")
}

// DeriveID produces a stable content-addressed identifier from a name's
// normalized key, usable as a surrogate account key.
func DeriveID(name string) string {
	sum := sha256.Sum256([]byte(Normalize(name)))
	return hex.EncodeToString(sum[:])[:16]
}

// freeMailDomains are consumer mail hosts that carry no company signal.
var freeMailDomains = map[string]struct{}{
	"gmail.com":      {},
	"yahoo.com":      {},
	"hotmail.com":    {},
	"outlook.com":    {},
	"icloud.com":     {},
	"aol.com":        {},
	"protonmail.com": {},
	"live.com":       {},
	"msn.com":        {},
}

var titleCaser = cases.Title(language.English)

// FromEmail infers a company display name from an email address domain:
// "jane@acme.com" -> "Acme". Returns "" when the domain is free-mail,
// malformed, or the second-level label is shorter than two characters.
// This is the fallback account-name source for providers that do not
// surface an explicit account field.
func FromEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	domain := strings.ToLower(strings.TrimSpace(email[at+1:]))
	if _, free := freeMailDomains[domain]; free {
		return ""
	}
	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return ""
	}
	label := labels[len(labels)-2]
	if len(label) < 2 {
		return ""
	}
	return titleCaser.String(label)
}
