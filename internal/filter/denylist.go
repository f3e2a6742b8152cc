package filter

import (
	"regexp"
	"strings"
)

// Domains that are never sponsors: social platforms, ad/CDN
// infrastructure, big news outlets, and newsletter platforms whose
// links are plumbing rather than placements.
var excludedDomains = map[string]bool{
	// Social
	"facebook.com": true, "twitter.com": true, "x.com": true,
	"instagram.com": true, "linkedin.com": true, "youtube.com": true,
	"tiktok.com": true, "reddit.com": true, "threads.net": true,
	"pinterest.com": true, "snapchat.com": true,

	// News and content outlets
	"nytimes.com": true, "wsj.com": true, "washingtonpost.com": true,
	"theguardian.com": true, "bbc.com": true, "cnn.com": true,
	"bloomberg.com": true, "reuters.com": true, "forbes.com": true,
	"techcrunch.com": true, "theverge.com": true, "wired.com": true,
	"medium.com": true, "substack.com": true,

	// Newsletter and email infrastructure
	"beehiiv.com": true, "mailchimp.com": true, "convertkit.com": true,
	"sendgrid.net": true, "mailerlite.com": true, "buttondown.email": true,
	"list-manage.com": true, "cmail19.com": true, "cmail20.com": true,

	// URL shorteners and CDNs
	"bit.ly": true, "tinyurl.com": true, "t.co": true, "lnkd.in": true,
	"cloudfront.net": true, "akamaized.net": true, "cloudflare.com": true,
	"googleusercontent.com": true, "gstatic.com": true,

	// Trackers and analytics
	"doubleclick.net": true, "googletagmanager.com": true,
	"google-analytics.com": true, "segment.com": true, "amplitude.com": true,
}

// URL fragments that mark mailbox plumbing rather than sponsor links.
var unwantedURLPatterns = []string{
	"unsubscribe", "opt-out", "optout", "preferences",
	"manage-subscription", "manage_subscription", "email-settings",
	"cdn.", "analytics", "tracking", "pixel", "beacon",
	"mailto:", "view-in-browser", "view_in_browser", "webview",
}

// Editorial vocabulary; two or more hits in a domain brand it content.
var contentDomainVocab = []string{
	"blog", "news", "article", "post", "story", "journal", "times",
	"daily", "weekly", "magazine", "media", "today", "hustle",
	"information", "engineering", "research", "verse", "marketer",
	"newsletter", "upside", "donut", "valley",
}

var contentTLDs = []string{".news", ".blog", ".media"}

var contentPathRe = regexp.MustCompile(`(?i)/(?:blog|news|article|articles|post|posts|story|stories|category|tag|archive)/|/20\d\d/|/(?:january|february|march|april|may|june|july|august|september|october|november|december)/`)

// Publications that show up in sponsor sections as cross-promotions,
// not sponsors.
var knownContentDomains = map[string]bool{
	"morningbrew.com": true, "thehustle.co": true, "axios.com": true,
	"theskimm.com": true, "tldr.tech": true, "bensbites.co": true,
	"dense-discovery.com": true, "stratechery.com": true,
}

// IsExcludedDomain checks the hard denylist by apex.
func IsExcludedDomain(apex string) bool {
	return excludedDomains[strings.ToLower(apex)]
}

func hasUnwantedPattern(url string) bool {
	lower := strings.ToLower(url)
	for _, p := range unwantedURLPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// isContentSite detects editorial destinations that are not companies.
func isContentSite(url, apex string) bool {
	if knownContentDomains[apex] {
		return true
	}

	if countContentVocab(apex) >= 2 {
		return true
	}

	// Content TLDs with a single label, e.g. "theinformation.news".
	for _, tld := range contentTLDs {
		if strings.HasSuffix(apex, tld) && strings.Count(apex, ".") == 1 {
			return true
		}
	}

	return contentPathRe.MatchString(url)
}

func countContentVocab(s string) int {
	lower := strings.ToLower(s)
	count := 0
	for _, w := range contentDomainVocab {
		if strings.Contains(lower, w) {
			count++
		}
	}
	return count
}

// clearlyContent is the stricter variant used by the legitimacy check:
// a known content domain or two vocabulary hits across domain and name.
func clearlyContent(apex, name string) bool {
	if knownContentDomains[apex] {
		return true
	}
	return countContentVocab(apex+" "+name) >= 2
}

// Mega-companies that appear in newsletters as subject matter, not as
// sponsors of them.
var nonSponsorCompanies = []string{
	"google", "apple", "microsoft", "amazon", "meta", "facebook",
	"netflix", "tesla", "nvidia", "openai", "anthropic", "spacex",
}

func isNonSponsorCompany(apex, name string) bool {
	domainLabel := apex
	if i := strings.Index(apex, "."); i > 0 {
		domainLabel = apex[:i]
	}
	lowerName := strings.ToLower(name)
	for _, company := range nonSponsorCompanies {
		if domainLabel == company || lowerName == company {
			return true
		}
	}
	return false
}

// SaaS companies that sponsor newsletters often enough to be trusted
// on sight.
var knownSponsors = map[string]bool{
	"notion": true, "linear": true, "vercel": true, "retool": true,
	"superhuman": true, "brilliant": true, "masterworks": true,
	"athletic greens": true, "ag1": true, "incogni": true, "hubspot": true,
	"monday.com": true, "clickup": true, "grammarly": true,
	"shortform": true, "morning consult": true, "sentry": true,
	"datadog": true, "postman": true, "railway": true, "supabase": true,
	"planetscale": true, "neon": true, "tailscale": true, "1password": true,
	"nordvpn": true, "expressvpn": true, "hims": true,
}

var businessWords = []string{
	"app", "tech", "labs", "software", "tools", "cloud", "data",
	"platform", "solutions", "systems", "digital", "studio", "hq",
	"ai", "api", "dev", "get", "use", "try", "io",
}

var businessPathRe = regexp.MustCompile(`(?i)/(?:contact|about|partnership|partnerships|partners|advertise|media-kit|press|business|enterprise|pricing)(?:/|$)`)

// LooksLegitimate applies the final sanity check: a known sponsor name
// passes outright; otherwise the destination must not be clearly
// editorial and must show some business signal (a business word in the
// domain or name, a business URL path, or a bare root URL).
func LooksLegitimate(url, apex, name string) bool {
	if knownSponsors[strings.ToLower(name)] || knownSponsors[apex] {
		return true
	}

	if clearlyContent(apex, name) {
		return false
	}

	combined := strings.ToLower(apex + " " + name)
	for _, w := range businessWords {
		if strings.Contains(combined, w) {
			return true
		}
	}

	if businessPathRe.MatchString(url) {
		return true
	}

	return isRootURL(url)
}

// isRootURL reports whether the URL points at the site root, with at
// most a query string (tracking params are common on sponsor links).
func isRootURL(url string) bool {
	rest := url
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		rest = rest[:i]
	}
	slash := strings.Index(rest, "/")
	return slash < 0 || slash == len(rest)-1
}
