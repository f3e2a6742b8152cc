// Package audience estimates newsletter subscriber counts from the
// sources in priority order: cached repository data, explicit mentions
// in the email, an LLM estimate, and finally heuristic buckets.
package audience

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/sponsorscan/sponsorscan/internal/llm"
)

// Estimate is a subscriber count with its provenance.
type Estimate struct {
	Subscribers int
	Source      string // cached, explicit, llm, heuristic
	Reasoning   string
}

// CachedLookup returns the best stored audience figure for a
// newsletter, 0 when none exists.
type CachedLookup func(ctx context.Context, newsletter string) (int, error)

const minExplicit = 1000 // mentions below this are promo copy, not counts

const llmMinConfidence = 0.8

var explicitRe = regexp.MustCompile(`(?i)(\d{1,3}(?:,\d{3})*|\d+)\+?\s*(?:subscribers?|readers?|members?|people|audience)`)

// Estimator resolves audience sizes. The LLM client may be nil.
type Estimator struct {
	llm    *llm.Client
	lookup CachedLookup
}

func New(llmClient *llm.Client, lookup CachedLookup) *Estimator {
	return &Estimator{llm: llmClient, lookup: lookup}
}

// Estimate runs the source ladder. It always returns a positive count;
// the heuristic bucket is the floor.
func (e *Estimator) Estimate(ctx context.Context, newsletter, content string) Estimate {
	if e.lookup != nil {
		cached, err := e.lookup(ctx, newsletter)
		if err != nil {
			log.Printf("Audience cache lookup failed for %s: %v", newsletter, err)
		} else if cached > 0 {
			return Estimate{
				Subscribers: cached,
				Source:      "cached",
				Reasoning:   fmt.Sprintf("previously recorded audience of %d", cached),
			}
		}
	}

	if n, ok := ExplicitMention(content); ok {
		return Estimate{
			Subscribers: n,
			Source:      "explicit",
			Reasoning:   fmt.Sprintf("email states an audience of %d", n),
		}
	}

	if e.llm != nil {
		result, err := e.llm.EstimateAudience(ctx, newsletter, content)
		if err != nil {
			log.Printf("LLM audience estimate failed for %s: %v", newsletter, err)
		} else if result.Confidence >= llmMinConfidence && result.Subscribers > 0 {
			return Estimate{
				Subscribers: result.Subscribers,
				Source:      "llm",
				Reasoning:   result.Reasoning,
			}
		}
	}

	return HeuristicBucket(content)
}

// ExplicitMention finds a stated audience figure in the content.
// Figures under minExplicit are ignored; marketing copy loves small
// fake numbers ("join 50 founders").
func ExplicitMention(content string) (int, bool) {
	best := 0
	for _, m := range explicitRe.FindAllStringSubmatch(content, -1) {
		raw := strings.ReplaceAll(m[1], ",", "")
		n, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}
		if n >= minExplicit && n > best {
			best = n
		}
	}
	return best, best > 0
}

// Vocabulary buckets for the heuristic fallback, checked top down.
var (
	scaleWords  = []string{"thousands of", "millions of", "100,000", "100k", "half a million"}
	socialProof = []string{"fastest growing", "fastest-growing", "growing community", "trusted by", "join the thousands"}
	community   = []string{"community", "audience", "our readers", "subscribers"}
)

// HeuristicBucket is the deterministic floor of the ladder: bucket the
// newsletter by its own vocabulary.
func HeuristicBucket(content string) Estimate {
	lower := strings.ToLower(content)

	for _, w := range scaleWords {
		if strings.Contains(lower, w) {
			return Estimate{
				Subscribers: 50000,
				Source:      "heuristic",
				Reasoning:   fmt.Sprintf("scale language (%q) suggests a large list", w),
			}
		}
	}
	for _, w := range socialProof {
		if strings.Contains(lower, w) {
			return Estimate{
				Subscribers: 25000,
				Source:      "heuristic",
				Reasoning:   fmt.Sprintf("social proof language (%q) suggests an established list", w),
			}
		}
	}
	for _, w := range community {
		if strings.Contains(lower, w) {
			return Estimate{
				Subscribers: 10000,
				Source:      "heuristic",
				Reasoning:   fmt.Sprintf("community language (%q) suggests a modest list", w),
			}
		}
	}
	return Estimate{
		Subscribers: 5000,
		Source:      "heuristic",
		Reasoning:   "no audience signals; default small-list estimate",
	}
}
