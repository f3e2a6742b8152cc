// Package contact finds a sponsorship contact for a company: LLM
// first, live scrape of the company site as fallback. Both paths are
// best effort under short timeouts; a missing contact is reported, not
// an error.
package contact

import (
	"regexp"
	"strings"
)

// Loose regex for finding candidates in page text; ValidEmail applies
// the strict anchored check afterwards.
var emailRegex = regexp.MustCompile(`\b[a-zA-Z0-9][a-zA-Z0-9._%+-]*@[a-zA-Z0-9][a-zA-Z0-9.-]*\.[a-zA-Z]{2,}\b`)

var strictEmailRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._%+-]*@[a-zA-Z0-9][a-zA-Z0-9.-]*\.[a-zA-Z]{2,}$`)

// Placeholder vocabulary that marks an address as fake.
var junkDomainWords = []string{
	"example", "test", "sample", "domain", "email", "yourcompany",
	"company.com", "sentry", "wixpress", "placeholder",
}

// Prefixes that make an address worth keeping even on a third-party
// domain (agencies often handle sponsorships).
var businessEmailPrefixes = []string{
	"partner", "partners", "partnership", "partnerships",
	"press", "pr", "media", "marketing", "advertising", "ads",
	"sponsor", "sponsors", "sponsorship", "sponsorships",
	"contact", "hello", "info", "business", "sales", "team",
}

// CleanEmail strips punctuation and common suffix garbage captured by
// the loose regex. Returns "" when nothing usable remains.
func CleanEmail(raw string) string {
	e := strings.TrimSpace(strings.ToLower(raw))
	e = strings.Trim(e, ".,;:!?()<>[]\"'")

	// Image and file extensions glued on by minified HTML.
	for _, suffix := range []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".css", ".js"} {
		e = strings.TrimSuffix(e, suffix)
	}

	if !ValidEmail(e) {
		return ""
	}
	return e
}

// ValidEmail applies the strict checks: anchored syntax, sane length,
// no whitespace, no placeholder vocabulary, real-looking domain part.
func ValidEmail(email string) bool {
	if len(email) < 5 || len(email) > 100 {
		return false
	}
	if strings.ContainsAny(email, " \t\n") {
		return false
	}
	if !strictEmailRegex.MatchString(email) {
		return false
	}

	at := strings.Index(email, "@")
	domainPart := email[at+1:]
	if len(domainPart) < 4 {
		return false
	}
	for _, word := range junkDomainWords {
		if strings.Contains(domainPart, word) {
			return false
		}
	}
	return true
}

// KeepEmail reports whether a scraped address belongs in the candidate
// set: it must match the sponsor domain or carry a business prefix.
func KeepEmail(email, apex string) bool {
	at := strings.Index(email, "@")
	if at < 0 {
		return false
	}
	if strings.HasSuffix(email[at+1:], apex) {
		return true
	}
	prefix := email[:at]
	for _, p := range businessEmailPrefixes {
		if strings.HasPrefix(prefix, p) {
			return true
		}
	}
	return false
}

// Priority ranks an address for sponsorship outreach. Higher wins.
// Partnership inboxes beat press, press beats generic contact, and a
// domain-matching address gets a bonus.
func Priority(email, apex string) int {
	at := strings.Index(email, "@")
	if at < 0 {
		return 0
	}
	prefix := strings.ToLower(email[:at])

	score := 50
	switch {
	case strings.HasPrefix(prefix, "partner"):
		score = 100
	case prefix == "press" || prefix == "pr" || prefix == "media":
		score = 90
	case prefix == "contact" || prefix == "hello" || prefix == "info":
		score = 80
	case prefix == "support" || prefix == "help":
		score = 70
	case prefix == "business" || prefix == "marketing" || prefix == "advertising" || strings.HasPrefix(prefix, "sponsor"):
		score = 60
	}

	if strings.HasSuffix(email[at+1:], apex) {
		score += 10
	}
	return score
}

// ClassifyType buckets an address by prefix for the contact record.
func ClassifyType(email string) string {
	at := strings.Index(email, "@")
	if at < 0 {
		return "not_found"
	}
	prefix := strings.ToLower(email[:at])

	switch {
	case strings.HasPrefix(prefix, "partner"),
		prefix == "press", prefix == "pr", prefix == "media",
		prefix == "marketing", prefix == "advertising", prefix == "business",
		strings.HasPrefix(prefix, "sponsor"):
		return "business_email"
	case strings.Contains(prefix, ".") && len(prefix) > 3:
		// john.smith@ style addresses belong to people.
		return "named_person"
	default:
		return "generic_email"
	}
}
