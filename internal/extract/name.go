package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sponsorscan/sponsorscan/internal/domainutil"
)

const (
	contextWindow = 300 // chars each side of the link
	nameWindow    = 100 // chars before the link searched for a name
)

// Context returns the text surrounding the first occurrence of link,
// up to contextWindow chars on each side. Empty when the link does not
// appear in the text.
func Context(text, link string) string {
	idx := strings.Index(text, link)
	if idx < 0 {
		// HTML hrefs often do not appear verbatim in visible text;
		// fall back to matching on the host. The match is found in the
		// original string, not a lowered copy, because lowering can
		// change byte offsets in non-ASCII bodies.
		if host, err := domainutil.Host(link); err == nil {
			re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(host))
			if err == nil {
				if loc := re.FindStringIndex(text); loc != nil {
					idx = loc[0]
				}
			}
		}
		if idx < 0 {
			return ""
		}
	}
	start := idx - contextWindow
	if start < 0 {
		start = 0
	}
	for start > 0 && !utf8.RuneStart(text[start]) {
		start--
	}
	end := idx + len(link) + contextWindow
	if end > len(text) {
		end = len(text)
	}
	for end < len(text) && !utf8.RuneStart(text[end]) {
		end++
	}
	return text[start:end]
}

// Name extraction pattern ladder, most explicit first. Each pattern's
// first group is the candidate name.
var namePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:sponsored by|brought to you by|presented by|partnered with)[:\s]+([A-Z][\w&.'\-]*(?:\s+[A-Z&][\w&.'\-]*){0,3})`),
	regexp.MustCompile(`(?i)partner[:\s]+([A-Z][\w&.'\-]*(?:\s+[A-Z&][\w&.'\-]*){0,3})`),
	regexp.MustCompile(`([A-Z][\w&.'\-]*(?:\s+[A-Z&][\w&.'\-]*){0,2})\s+(?:is|offers|provides|helps|makes|creates|builds)\b`),
	regexp.MustCompile(`([A-Z][\w&.'\-]*(?:\s+[A-Z&][\w&.'\-]*){0,2})\s+(?:sponsors|partners|presents)\b`),
	regexp.MustCompile(`([A-Z][\w&.'\-]*(?:\s+[A-Z&][\w&.'\-]*){0,2})\s*[-:]?\s+(?:Try|Start|Learn|Visit|Sign up)\b`),
}

// Vocabulary that marks a candidate as editorial rather than a company.
var contentVocab = []string{
	"blog", "news", "article", "post", "story", "journal", "times",
	"daily", "weekly", "magazine", "media", "today", "hustle",
	"information", "engineering", "research", "verse", "marketer",
	"newsletter", "upside", "donut", "valley",
}

var ctaWords = []string{
	"try", "get", "click", "start", "learn", "visit", "sign",
	"join", "download", "subscribe", "check", "read", "see", "use",
	"shop", "buy", "claim", "grab", "book",
}

var genericTrailers = []string{"here", "more", "now", "today"}

// Name extracts the sponsor name from the context preceding the link.
// It is a pure function of its inputs. The last nameWindow chars before
// the link are searched with the pattern ladder; the apex label is the
// fallback.
func Name(context, link string) string {
	window := context
	if idx := strings.Index(context, link); idx >= 0 {
		start := idx - nameWindow
		if start < 0 {
			start = 0
		}
		window = context[start:idx]
	} else if len(window) > nameWindow {
		window = window[len(window)-nameWindow:]
	}

	for _, re := range namePatterns {
		if m := re.FindStringSubmatch(window); len(m) > 1 {
			candidate := strings.TrimSpace(strings.Trim(m[1], ".,;:"))
			if ValidName(candidate) {
				return candidate
			}
		}
	}

	apex, err := domainutil.Apex(link)
	if err != nil {
		return ""
	}
	return domainutil.Label(apex)
}

var digitsOnlyRe = regexp.MustCompile(`^[\d\s.,%$]+$`)
var letterRe = regexp.MustCompile(`[a-zA-Z]`)

// ValidName filters out CTA fragments, editorial phrases, and other
// things that are clearly not a company name.
func ValidName(name string) bool {
	name = strings.TrimSpace(name)
	if len(name) < 3 || len(name) > 100 {
		return false
	}
	if digitsOnlyRe.MatchString(name) || !letterRe.MatchString(name) {
		return false
	}
	if strings.ContainsAny(name, "[]{}()<>") {
		return false
	}
	if strings.Contains(name, "?") {
		return false
	}
	if strings.Contains(name, "→") || strings.Contains(name, "->") || strings.Contains(name, ">>") {
		return false
	}

	words := strings.Fields(name)
	if len(words) > 6 {
		return false
	}

	first := strings.ToLower(words[0])
	for _, cta := range ctaWords {
		if first == cta {
			return false
		}
	}

	last := strings.ToLower(words[len(words)-1])
	for _, g := range genericTrailers {
		if last == g {
			return false
		}
	}

	lower := strings.ToLower(name)
	for _, word := range contentVocab {
		for _, w := range strings.Fields(lower) {
			if w == word {
				return false
			}
		}
	}

	return true
}
