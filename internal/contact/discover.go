package contact

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/sponsorscan/sponsorscan/internal/config"
	"github.com/sponsorscan/sponsorscan/internal/llm"
)

// Contact is the discovery outcome for one sponsor.
type Contact struct {
	Email      string
	PersonName string
	Title      string
	Type       string // named_person, business_email, generic_email, not_found
	Confidence float64
	Method     string // "llm", "scrape", or "" when nothing was found
	Status     string // complete, needs_review, pending
	Reasoning  string
}

// Title keywords that mark someone as the right person for
// sponsorship conversations.
var titleKeywords = []string{
	"marketing", "partnership", "growth", "brand", "business",
	"sponsorship", "director", "manager", "lead", "head",
	"vp", "vice president",
}

// Discoverer runs LLM-first contact discovery with a scrape fallback.
// A nil LLM client skips straight to scraping.
type Discoverer struct {
	llm      *llm.Client
	http     *http.Client
	maxLinks int
}

func NewDiscoverer(llmClient *llm.Client, cfg config.AnalysisConfig) *Discoverer {
	return &Discoverer{
		llm:      llmClient,
		http:     &http.Client{Timeout: time.Duration(cfg.ScrapeTimeoutSec) * time.Second},
		maxLinks: cfg.MaxContactLinks,
	}
}

// Discover finds a sponsorship contact for the company at apex.
// Failures on either path degrade to the next one; a fully empty
// result has Type not_found and Status pending.
func (d *Discoverer) Discover(ctx context.Context, company, apex string) Contact {
	if d.llm != nil {
		if c, ok := d.fromLLM(ctx, company, apex); ok {
			return c
		}
	}

	if c, ok := d.fromScrape(ctx, apex); ok {
		return c
	}

	return Contact{Type: "not_found", Status: "pending"}
}

// fromLLM validates and grades the model's answer. An address that
// does not mention the sponsor domain is discarded outright.
func (d *Discoverer) fromLLM(ctx context.Context, company, apex string) (Contact, bool) {
	result, err := d.llm.FindContact(ctx, company, apex)
	if err != nil {
		log.Printf("LLM contact lookup failed for %s: %v", apex, err)
		return Contact{}, false
	}
	if result.ContactType == "not_found" {
		return Contact{}, false
	}

	email := strings.ToLower(strings.TrimSpace(result.Email))
	if !ValidEmail(email) || !strings.Contains(email, apex) {
		log.Printf("LLM contact for %s rejected: unusable address %q", apex, result.Email)
		return Contact{}, false
	}

	contactType := result.ContactType
	confidence := result.Confidence

	// A named person needs an actual name.
	if contactType == "named_person" && len(strings.Fields(result.Name)) < 2 {
		contactType = "business_email"
		if confidence > 0.7 {
			confidence = 0.7
		}
	}

	if contactType == "named_person" && !titleLooksRelevant(result.Title) {
		confidence -= 0.1
		if confidence < 0.6 {
			confidence = 0.6
		}
	}

	c := Contact{
		Email:      email,
		PersonName: result.Name,
		Title:      result.Title,
		Type:       contactType,
		Confidence: confidence,
		Method:     "llm",
		Reasoning:  result.Reasoning,
	}

	switch {
	case contactType == "named_person" && confidence >= 0.85:
		c.Status = "complete"
	case contactType == "business_email" && confidence >= 0.6:
		c.Status = "complete"
	case contactType == "generic_email" && confidence >= 0.4:
		c.Status = "needs_review"
	default:
		return Contact{}, false
	}
	return c, true
}

func (d *Discoverer) fromScrape(ctx context.Context, apex string) (Contact, bool) {
	emails := d.scrapeSite(ctx, apex)
	if len(emails) == 0 {
		return Contact{}, false
	}

	email := bestEmail(emails, apex)
	contactType := ClassifyType(email)

	c := Contact{
		Email:      email,
		Type:       contactType,
		Confidence: 0.8,
		Method:     "scrape",
		Status:     "complete",
	}
	if contactType == "generic_email" {
		c.Confidence = 0.6
		c.Status = "needs_review"
	}
	return c, true
}

func titleLooksRelevant(title string) bool {
	lower := strings.ToLower(title)
	for _, kw := range titleKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
