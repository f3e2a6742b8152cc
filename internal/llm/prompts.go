package llm

import (
	"context"
	"fmt"
	"strings"
)

// ContactResult is the decoded contact-discovery response. Enum and
// range validation happens here; domain-specific downgrades are the
// caller's business.
type ContactResult struct {
	ContactType string  `json:"contact_type"` // named_person, business_email, generic_email, not_found
	Name        string  `json:"name"`
	Title       string  `json:"title"`
	Email       string  `json:"email"`
	Confidence  float64 `json:"confidence"`
	Source      string  `json:"source"`
	Reasoning   string  `json:"reasoning"`
}

var validContactTypes = map[string]bool{
	"named_person":   true,
	"business_email": true,
	"generic_email":  true,
	"not_found":      true,
}

const contactSystem = "You research business contact information. Respond with a single JSON object and nothing else."

// FindContact asks for the best sponsorship contact at a company.
func (c *Client) FindContact(ctx context.Context, company, domain string) (*ContactResult, error) {
	prompt := fmt.Sprintf(`Find the best contact for newsletter sponsorship outreach at %s (domain: %s).
Prefer partnership or marketing people over generic inboxes.
Respond with JSON:
{"contact_type": "named_person|business_email|generic_email|not_found",
 "name": "", "title": "", "email": "", "confidence": 0.0,
 "source": "", "reasoning": ""}`, company, domain)

	var result ContactResult
	if err := c.completeJSON(ctx, contactSystem, prompt, &result); err != nil {
		return nil, err
	}

	result.ContactType = strings.ToLower(strings.TrimSpace(result.ContactType))
	if !validContactTypes[result.ContactType] {
		return nil, fmt.Errorf("invalid contact_type %q", result.ContactType)
	}
	if result.Confidence < 0 || result.Confidence > 1 {
		return nil, fmt.Errorf("confidence %f out of range", result.Confidence)
	}
	if result.ContactType != "not_found" && result.Email == "" {
		return nil, fmt.Errorf("contact_type %q without email", result.ContactType)
	}
	return &result, nil
}

// AudienceResult is the decoded audience estimate.
type AudienceResult struct {
	Subscribers int     `json:"subscribers"`
	Confidence  float64 `json:"confidence"`
	Reasoning   string  `json:"reasoning"`
}

const audienceSystem = "You estimate newsletter audience sizes. Respond with a single JSON object and nothing else."

// EstimateAudience asks for a subscriber estimate for a newsletter
// given a sample of its content.
func (c *Client) EstimateAudience(ctx context.Context, newsletter, sample string) (*AudienceResult, error) {
	if len(sample) > 2000 {
		sample = sample[:2000]
	}
	prompt := fmt.Sprintf(`Estimate the subscriber count of the newsletter %q from this excerpt:

%s

Respond with JSON: {"subscribers": 0, "confidence": 0.0, "reasoning": ""}`, newsletter, sample)

	var result AudienceResult
	if err := c.completeJSON(ctx, audienceSystem, prompt, &result); err != nil {
		return nil, err
	}
	if result.Subscribers < 0 {
		return nil, fmt.Errorf("negative subscriber estimate %d", result.Subscribers)
	}
	if result.Confidence < 0 || result.Confidence > 1 {
		return nil, fmt.Errorf("confidence %f out of range", result.Confidence)
	}
	return &result, nil
}

type tagsResult struct {
	Tags []string `json:"tags"`
}

const tagsSystem = "You classify companies into content categories. Respond with a single JSON object and nothing else."

// PickTags asks for up to three tags drawn from the allowed
// vocabulary. Tags outside the vocabulary are dropped; an empty result
// is an error so the caller falls back to keyword scoring.
func (c *Client) PickTags(ctx context.Context, company, context string, allowed []string) ([]string, error) {
	prompt := fmt.Sprintf(`Pick up to 3 tags for the company %q from this list only:
%s

Context: %s

Respond with JSON: {"tags": []}`, company, strings.Join(allowed, ", "), context)

	var result tagsResult
	if err := c.completeJSON(ctx, tagsSystem, prompt, &result); err != nil {
		return nil, err
	}

	allowedSet := make(map[string]bool, len(allowed))
	for _, t := range allowed {
		allowedSet[strings.ToLower(t)] = true
	}
	var tags []string
	for _, t := range result.Tags {
		t = strings.TrimSpace(t)
		if allowedSet[strings.ToLower(t)] {
			tags = append(tags, t)
		}
		if len(tags) == 3 {
			break
		}
	}
	if len(tags) == 0 {
		return nil, fmt.Errorf("no valid tags in completion")
	}
	return tags, nil
}
