// Package tags assigns content categories to sponsors: the LLM picks
// from the fixed vocabulary when available, keyword scoring is the
// fallback, "Other" is the floor.
package tags

import (
	"context"
	"log"
	"sort"
	"strings"

	"github.com/sponsorscan/sponsorscan/internal/llm"
)

const maxTags = 3

// Vocabulary is the fixed tag set. The stored record never contains a
// tag outside this list.
var Vocabulary = []string{
	"AI", "Analytics", "Business", "Consumer", "Crypto", "Design",
	"Developer Tools", "Ecommerce", "Education", "Entertainment",
	"Finance", "Fitness", "Food", "Gaming", "Health", "HR", "Legal",
	"Marketing", "Media", "Newsletter Tools", "Productivity",
	"Real Estate", "Sales", "Security", "SaaS", "Travel", "Wellness",
	"Affiliate", "Other",
}

var tagKeywords = map[string][]string{
	"AI":              {"ai", "artificial intelligence", "machine learning", "llm", "gpt", "model"},
	"Analytics":       {"analytics", "dashboard", "metrics", "data", "insight", "tracking"},
	"Business":        {"business", "enterprise", "b2b", "operations", "workflow"},
	"Consumer":        {"consumer", "shopping", "lifestyle", "app"},
	"Crypto":          {"crypto", "bitcoin", "ethereum", "blockchain", "web3", "defi"},
	"Design":          {"design", "figma", "ui", "ux", "prototype", "creative"},
	"Developer Tools": {"developer", "api", "sdk", "code", "deploy", "infrastructure", "database", "devops"},
	"Ecommerce":       {"ecommerce", "e-commerce", "store", "checkout", "shopify", "merchant"},
	"Education":       {"course", "learn", "education", "training", "bootcamp", "tutorial"},
	"Entertainment":   {"entertainment", "streaming", "music", "video", "podcast"},
	"Finance":         {"finance", "investing", "banking", "payment", "money", "wealth", "stock"},
	"Fitness":         {"fitness", "workout", "gym", "exercise", "training plan"},
	"Food":            {"food", "meal", "recipe", "snack", "coffee", "nutrition"},
	"Gaming":          {"game", "gaming", "esports"},
	"Health":          {"health", "medical", "doctor", "therapy", "sleep", "supplement"},
	"HR":              {"hiring", "recruiting", "hr", "payroll", "talent", "employee"},
	"Legal":           {"legal", "law", "compliance", "contract", "privacy"},
	"Marketing":       {"marketing", "seo", "advertising", "campaign", "brand", "email marketing"},
	"Media":           {"media", "publishing", "journalism", "content"},
	"Newsletter Tools": {"newsletter platform", "email platform", "grow your newsletter", "sponsorship marketplace"},
	"Productivity":    {"productivity", "notes", "calendar", "task", "project management", "workspace"},
	"Real Estate":     {"real estate", "property", "mortgage", "rent"},
	"Sales":           {"sales", "crm", "outreach", "pipeline", "leads"},
	"Security":        {"security", "vpn", "password", "privacy protection", "encryption", "identity theft"},
	"SaaS":            {"saas", "software", "platform", "tool", "subscription"},
	"Travel":          {"travel", "flight", "hotel", "trip", "vacation"},
	"Wellness":        {"wellness", "meditation", "mindfulness", "mental health"},
}

// Assigner picks tags for a sponsor. A nil LLM client always uses
// keyword scoring.
type Assigner struct {
	llm *llm.Client
}

func New(llmClient *llm.Client) *Assigner {
	return &Assigner{llm: llmClient}
}

// Assign returns 1 to 3 vocabulary tags for the sponsor, based on the
// name and surrounding context.
func (a *Assigner) Assign(ctx context.Context, name, context_ string) []string {
	if a.llm != nil {
		picked, err := a.llm.PickTags(ctx, name, context_, Vocabulary)
		if err != nil {
			log.Printf("LLM tag assignment failed for %s: %v", name, err)
		} else if len(picked) > 0 {
			return picked
		}
	}
	return KeywordTags(name + " " + context_)
}

// KeywordTags scores every tag's keyword list against the text and
// returns the top scorers, "Other" when nothing matches.
func KeywordTags(text string) []string {
	lower := strings.ToLower(text)

	type scored struct {
		tag   string
		score int
	}
	var hits []scored
	for tag, keywords := range tagKeywords {
		score := 0
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, scored{tag, score})
		}
	}

	if len(hits) == 0 {
		return []string{"Other"}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].tag < hits[j].tag // stable order for equal scores
	})

	n := len(hits)
	if n > maxTags {
		n = maxTags
	}
	tags := make([]string, n)
	for i := 0; i < n; i++ {
		tags[i] = hits[i].tag
	}
	return tags
}

// ForAffiliate guarantees the Affiliate tag is present, still capped.
func ForAffiliate(tags []string) []string {
	for _, t := range tags {
		if t == "Affiliate" {
			return tags
		}
	}
	out := append([]string{"Affiliate"}, tags...)
	if len(out) > maxTags {
		out = out[:maxTags]
	}
	return out
}
