// Package filter decides whether a link found in a sponsor section is
// worth recording. Checks run in a fixed order; the first one that
// fires rejects the link with a reason code that feeds cycle telemetry.
package filter

import (
	"strings"

	"github.com/sponsorscan/sponsorscan/internal/domainutil"
	"github.com/sponsorscan/sponsorscan/internal/extract"
)

// Reason codes for rejected links.
const (
	ReasonDenylist            = "denylist"
	ReasonSelfReference       = "self_reference"
	ReasonSelfPromotion       = "self_promotion"
	ReasonInsufficientContext = "insufficient_context"
	ReasonInvalidName         = "invalid_name"
	ReasonNonSponsorCompany   = "non_sponsor_company"
	ReasonNotLegitimate       = "not_legitimate"
	ReasonDeniedDomain        = "denied_domain"
)

// Candidate is a link under evaluation together with everything the
// checks need to judge it.
type Candidate struct {
	URL              string
	Apex             string // registrable domain of URL
	Context          string // text window around the link
	Name             string // extracted sponsor name
	NewsletterDomain string // apex of the sending newsletter
}

// Result is the verdict for one candidate.
type Result struct {
	Accepted bool
	Reason   string // reason code when rejected, "" when accepted
	Check    string // name of the check that fired
}

type check struct {
	name string
	fn   func(*Pipeline, *Candidate) (rejected bool, reason string)
}

// Pipeline holds the configured deny data and runs the ordered checks.
// It is immutable after construction.
type Pipeline struct {
	selfDomains map[string]bool // operator's own apexes, lowercased
	checks      []check
}

func New(selfDomains []string) *Pipeline {
	self := make(map[string]bool, len(selfDomains))
	for _, d := range selfDomains {
		if apex, err := domainutil.Apex(d); err == nil {
			self[apex] = true
		}
	}

	p := &Pipeline{selfDomains: self}
	p.checks = []check{
		{ReasonDenylist, (*Pipeline).checkDenylist},
		{ReasonSelfReference, (*Pipeline).checkSelfReference},
		{ReasonSelfPromotion, (*Pipeline).checkSelfPromotion},
		{ReasonInsufficientContext, (*Pipeline).checkContext},
		{ReasonInvalidName, (*Pipeline).checkName},
		{ReasonNonSponsorCompany, (*Pipeline).checkNonSponsorCompany},
		{ReasonNotLegitimate, (*Pipeline).checkLegitimacy},
	}
	return p
}

// Evaluate runs the checks in order and returns the first rejection,
// or an accepting result when every check passes.
func (p *Pipeline) Evaluate(c *Candidate) Result {
	for _, chk := range p.checks {
		if rejected, reason := chk.fn(p, c); rejected {
			return Result{Accepted: false, Reason: reason, Check: chk.name}
		}
	}
	return Result{Accepted: true}
}

func (p *Pipeline) checkDenylist(c *Candidate) (bool, string) {
	if IsExcludedDomain(c.Apex) || hasUnwantedPattern(c.URL) || isContentSite(c.URL, c.Apex) {
		return true, ReasonDenylist
	}
	return false, ""
}

func (p *Pipeline) checkSelfReference(c *Candidate) (bool, string) {
	if c.NewsletterDomain != "" && c.Apex == c.NewsletterDomain {
		return true, ReasonSelfReference
	}
	return false, ""
}

func (p *Pipeline) checkSelfPromotion(c *Candidate) (bool, string) {
	if p.selfDomains[c.Apex] {
		return true, ReasonSelfPromotion
	}
	return false, ""
}

func (p *Pipeline) checkContext(c *Candidate) (bool, string) {
	if !SufficientContext(c.Context) {
		return true, ReasonInsufficientContext
	}
	return false, ""
}

func (p *Pipeline) checkName(c *Candidate) (bool, string) {
	if !extract.ValidName(c.Name) {
		return true, ReasonInvalidName
	}
	return false, ""
}

func (p *Pipeline) checkNonSponsorCompany(c *Candidate) (bool, string) {
	if isNonSponsorCompany(c.Apex, c.Name) {
		return true, ReasonNonSponsorCompany
	}
	return false, ""
}

func (p *Pipeline) checkLegitimacy(c *Candidate) (bool, string) {
	if !LooksLegitimate(c.URL, c.Apex, c.Name) {
		return true, ReasonNotLegitimate
	}
	return false, ""
}

// Context keyword groups. Strong keywords accept the link on their own;
// otherwise a sponsor keyword or a business CTA term is required, and
// editorial indicators reject outright.
var (
	strongContextKeywords = []string{
		"sponsored by", "brought to you by", "presented by",
		"paid partnership", "partner content", "advertisement",
	}
	sponsorKeywords = []string{"sponsor", "partner", "paid"}
	businessTerms   = []string{
		"try", "get", "start", "learn", "visit", "discount", "code",
		"offer", "sign up", "free", "demo", "pricing",
	}
	contentIndicators = []string{
		"read more", "full story", "continue reading", "read the full",
		"view article", "original article",
	}
)

// SufficientContext reports whether the text around a link reads like
// a paid placement rather than an editorial mention.
func SufficientContext(context string) bool {
	if strings.TrimSpace(context) == "" {
		return false
	}
	lower := strings.ToLower(context)

	for _, ind := range contentIndicators {
		if strings.Contains(lower, ind) {
			return false
		}
	}
	for _, kw := range strongContextKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}

	hasSponsorWord := false
	for _, kw := range sponsorKeywords {
		if strings.Contains(lower, kw) {
			hasSponsorWord = true
			break
		}
	}
	hasBusinessTerm := false
	for _, term := range businessTerms {
		if strings.Contains(lower, term) {
			hasBusinessTerm = true
			break
		}
	}
	return hasSponsorWord || hasBusinessTerm
}
