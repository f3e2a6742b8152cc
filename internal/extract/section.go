// Package extract pulls sponsor sections, links, and evidence out of
// newsletter emails.
package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sponsorscan/sponsorscan/internal/config"
	"github.com/sponsorscan/sponsorscan/internal/mailbox"
)

// SponsorMarkers are the phrases that signal paid placement. Matching
// is case-insensitive.
var SponsorMarkers = []string{
	"sponsored by", "brought to you by", "presented by",
	"in partnership with", "paid partnership", "partner content",
	"sponsored content", "sponsored post", "sponsored message",
	"this issue is sponsored", "today's sponsor", "today's edition is brought",
	"our sponsor", "our partner", "our partners",
	"thanks to our sponsor", "thank you to our sponsor",
	"a message from", "a word from our sponsor", "message from our sponsor",
	"together with", "in collaboration with",
	"advertisement", "advertorial", "paid promotion", "paid placement",
	"promoted by", "promo code", "discount code", "exclusive offer",
	"special offer", "partner spotlight", "sponsor spotlight",
	"supported by", "made possible by", "powered by",
	"affiliate link", "affiliate partner",
	"sponsored", "#ad", "#sponsored", "#partner",
	"check out our sponsor", "visit our sponsor", "support our sponsors",
	"this email is sponsored", "this newsletter is sponsored",
	"want to sponsor", "sponsor this newsletter", "advertise with us",
	"interested in sponsoring", "become a sponsor",
	"partner offer", "partner message", "partner post",
	"deal of the day", "limited time offer", "use code",
	"try it free", "start your free trial", "claim your discount",
	"upgrade today", "learn more about our sponsor",
}

// Section is one sponsor-bearing block of an email.
type Section struct {
	Text       string
	Source     string // "html" or "text"
	MarkerHits int
	Links      []string
}

var (
	// Heading text that introduces a sponsor block in HTML newsletters.
	sponsorHeadingRe = regexp.MustCompile(`(?i)\b(sponsor|sponsored|partner|brought to you)\b`)

	// Class or id fragments used by newsletter templates for ad slots.
	sponsorAttrRe = regexp.MustCompile(`(?i)(sponsor|partner|promoted|advert|\bad\b|\bads\b)`)

	// Horizontal rules used to delimit sections in plain-text bodies.
	ruleLineRe = regexp.MustCompile(`(?m)^\s*(?:-{3,}|={3,}|#{3,}|\*{3,}|_{3,})\s*$`)

	urlRegex = regexp.MustCompile(`https?://[^\s<>"{}|\\^` + "`" + `\[\]']+`)
)

// Extractor finds sponsor sections in emails. Behavior is governed by
// the analysis thresholds and does not change after construction.
type Extractor struct {
	minIndicators     int
	minSectionMarkers int
}

func New(cfg config.AnalysisConfig) *Extractor {
	return &Extractor{
		minIndicators:     cfg.MinSponsorIndicators,
		minSectionMarkers: cfg.MinSectionMarkers,
	}
}

// IndicatorCount counts sponsor marker occurrences across subject and
// both bodies. Repeated markers count once each occurrence.
func IndicatorCount(email *mailbox.Email) int {
	content := strings.ToLower(email.Subject + "\n" + email.Body + "\n" + stripHTML(email.HTMLBody))
	count := 0
	for _, marker := range SponsorMarkers {
		count += strings.Count(content, marker)
	}
	return count
}

// HasSponsorIndicators is the cheap pre-screen before full extraction.
func (e *Extractor) HasSponsorIndicators(email *mailbox.Email) bool {
	return IndicatorCount(email) >= e.minIndicators
}

// Sections returns the sponsor-bearing blocks of the email, HTML
// structure first, plain-text splitting as fallback.
func (e *Extractor) Sections(email *mailbox.Email) []Section {
	var sections []Section

	if email.HTMLBody != "" {
		sections = e.htmlSections(email.HTMLBody)
	}
	if len(sections) == 0 && email.Body != "" {
		sections = e.textSections(email.Body)
	}
	// HTML-only emails with no structured sponsor blocks still get the
	// text pass over the stripped body.
	if len(sections) == 0 && email.HTMLBody != "" {
		sections = e.textSections(stripHTML(email.HTMLBody))
	}

	return sections
}

func (e *Extractor) htmlSections(html string) []Section {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var sections []Section
	seen := make(map[string]bool)

	add := func(sel *goquery.Selection) {
		text := normalizeSpace(sel.Text())
		if len(text) < 20 || seen[text] {
			return
		}
		hits := markerHits(text)
		if hits < e.minSectionMarkers {
			return
		}
		seen[text] = true
		sections = append(sections, Section{
			Text:       text,
			Source:     "html",
			MarkerHits: hits,
			Links:      sectionLinks(sel, text),
		})
	}

	// Containers that templates tag as ad slots.
	doc.Find("div,td,table,section,aside").Each(func(i int, s *goquery.Selection) {
		class, _ := s.Attr("class")
		id, _ := s.Attr("id")
		if sponsorAttrRe.MatchString(class + " " + id) {
			add(s)
		}
	})

	// Headings announcing the sponsor; capture the block that follows.
	doc.Find("h1,h2,h3,h4,strong,b").Each(func(i int, s *goquery.Selection) {
		if !sponsorHeadingRe.MatchString(s.Text()) {
			return
		}
		next := s.Parent()
		if next != nil && next.Length() > 0 {
			add(next)
		}
	})

	return sections
}

func (e *Extractor) textSections(body string) []Section {
	var sections []Section

	for _, chunk := range ruleLineRe.Split(body, -1) {
		text := normalizeSpace(chunk)
		if len(text) < 20 {
			continue
		}
		hits := markerHits(text)
		if hits < e.minSectionMarkers {
			continue
		}
		sections = append(sections, Section{
			Text:       text,
			Source:     "text",
			MarkerHits: hits,
			Links:      Links(text),
		})
	}

	return sections
}

// Links extracts cleaned http(s) URLs from text, deduplicated in order
// of first appearance.
func Links(text string) []string {
	var links []string
	seen := make(map[string]bool)
	for _, raw := range urlRegex.FindAllString(text, -1) {
		u := CleanURL(raw)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		links = append(links, u)
	}
	return links
}

// sectionLinks reads hrefs from the selection first, then falls back to
// URLs embedded in the visible text.
func sectionLinks(sel *goquery.Selection, text string) []string {
	var links []string
	seen := make(map[string]bool)
	sel.Find("a[href]").Each(func(i int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		u := CleanURL(href)
		if u == "" || seen[u] {
			return
		}
		seen[u] = true
		links = append(links, u)
	})
	for _, u := range Links(text) {
		if !seen[u] {
			seen[u] = true
			links = append(links, u)
		}
	}
	return links
}

// CleanURL normalizes and validates a URL candidate. Returns "" when
// the candidate is not a usable http(s) URL.
func CleanURL(rawURL string) string {
	rawURL = strings.TrimRight(rawURL, ".,;:!?)'\"")

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ""
	}
	if parsed.Host == "" {
		return ""
	}
	return parsed.String()
}

var sentenceSplitRe = regexp.MustCompile(`[.!?\n]+`)

// Evidence collects up to three marker-bearing sentences from the
// sections, joined with " | ", for the review UI.
func Evidence(sections []Section) string {
	var picked []string
	for _, sec := range sections {
		for _, sentence := range sentenceSplitRe.Split(sec.Text, -1) {
			s := normalizeSpace(sentence)
			if s == "" || markerHits(s) == 0 {
				continue
			}
			if len(s) > 200 {
				s = s[:200]
			}
			picked = append(picked, s)
			if len(picked) == 3 {
				return strings.Join(picked, " | ")
			}
		}
	}
	return strings.Join(picked, " | ")
}

func markerHits(text string) int {
	lower := strings.ToLower(text)
	hits := 0
	for _, marker := range SponsorMarkers {
		hits += strings.Count(lower, marker)
	}
	return hits
}

var spaceRe = regexp.MustCompile(`\s+`)

func normalizeSpace(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

var tagRe = regexp.MustCompile(`<[^>]+>`)

func stripHTML(html string) string {
	if html == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return tagRe.ReplaceAllString(html, " ")
	}
	return doc.Text()
}
