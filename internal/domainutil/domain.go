// Package domainutil normalizes URLs and hostnames down to registrable
// apex domains so that links, denylists, and stored sponsor records all
// compare on the same key.
package domainutil

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Apex returns the registrable domain (eTLD+1) for a hostname or URL,
// lowercased. "www.getacme.io/pricing" and "https://getacme.io" both
// map to "getacme.io".
func Apex(raw string) (string, error) {
	host, err := Host(raw)
	if err != nil {
		return "", err
	}

	apex, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		// Hosts like "localhost" or bare TLDs have no eTLD+1; fall
		// back to the host itself so callers still get a stable key.
		if strings.Contains(host, ".") {
			return "", fmt.Errorf("failed to derive apex for %q: %w", host, err)
		}
		return host, nil
	}
	return apex, nil
}

// Host extracts the lowercased hostname from a URL or bare domain,
// stripping scheme, port, path, and a leading "www.".
func Host(raw string) (string, error) {
	s := strings.TrimSpace(strings.ToLower(raw))
	if s == "" {
		return "", fmt.Errorf("empty domain")
	}

	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return "", fmt.Errorf("failed to parse URL %q: %w", raw, err)
		}
		s = u.Hostname()
	} else {
		// Bare domains may still carry a path or port.
		if i := strings.IndexAny(s, "/?#"); i >= 0 {
			s = s[:i]
		}
		if i := strings.LastIndex(s, ":"); i >= 0 && !strings.Contains(s, "]") {
			s = s[:i]
		}
	}

	s = strings.TrimPrefix(s, "www.")
	if s == "" {
		return "", fmt.Errorf("no host in %q", raw)
	}
	return s, nil
}

// SameApex reports whether two URLs or hostnames share a registrable
// domain. Unparseable inputs never match.
func SameApex(a, b string) bool {
	aa, err := Apex(a)
	if err != nil {
		return false
	}
	bb, err := Apex(b)
	if err != nil {
		return false
	}
	return aa == bb
}

// Label returns the leftmost label of the apex, capitalized, for use as
// a fallback display name ("getacme.io" -> "Getacme").
func Label(apex string) string {
	label, _, _ := strings.Cut(apex, ".")
	if label == "" {
		return apex
	}
	return strings.ToUpper(label[:1]) + label[1:]
}
