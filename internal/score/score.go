// Package score turns extraction evidence into a confidence value and
// a review status.
package score

import (
	"strings"

	"github.com/sponsorscan/sponsorscan/internal/config"
)

// Status of an analyzed email or sponsor candidate.
type Status string

const (
	StatusAccepted    Status = "accepted"
	StatusNeedsReview Status = "needs_review"
	StatusRejected    Status = "rejected"
)

// Evidence are the observable counts the scorer weighs. All fields are
// non-negative.
type Evidence struct {
	MarkerCount   int // explicit sponsorship phrases
	LinkCount     int // links found in sponsor sections
	TrackingCount int // links carrying campaign/affiliate params
	SectionCount  int // distinct sponsor sections
}

// Scorer applies configured thresholds and bucket weights. Immutable
// after construction. A zero weights struct falls back to the
// defaults so a hand-built config still scores.
type Scorer struct {
	accept  float64
	review  float64
	weights config.ScoreWeights
}

func New(cfg config.AnalysisConfig) *Scorer {
	w := cfg.Weights
	if w == (config.ScoreWeights{}) {
		w = config.DefaultScoreWeights()
	}
	return &Scorer{accept: cfg.AcceptThreshold, review: cfg.ReviewThreshold, weights: w}
}

// Confidence is a pure function of the evidence: each bucket is
// weighted and capped, the sum clamped to 1.0. Monotonic in every
// count. The practical maximum is 1.0 but real emails top out around
// 0.85.
func (s *Scorer) Confidence(ev Evidence) float64 {
	w := s.weights
	c := bucket(ev.MarkerCount, w.Marker, w.MarkerMax) +
		bucket(ev.LinkCount, w.Link, w.LinkMax) +
		bucket(ev.TrackingCount, w.Tracking, w.TrackingMax) +
		bucket(ev.SectionCount, w.Section, w.SectionMax)
	if c > 1.0 {
		c = 1.0
	}
	return c
}

func bucket(count int, weight, limit float64) float64 {
	if count < 0 {
		count = 0
	}
	v := float64(count) * weight
	if v > limit {
		return limit
	}
	return v
}

// Status maps a confidence value onto the review outcome.
func (s *Scorer) Status(confidence float64) Status {
	switch {
	case confidence >= s.accept:
		return StatusAccepted
	case confidence >= s.review:
		return StatusNeedsReview
	default:
		return StatusRejected
	}
}

// Score combines Confidence and Status in one call.
func (s *Scorer) Score(ev Evidence) (float64, Status) {
	c := s.Confidence(ev)
	return c, s.Status(c)
}

// Campaign and affiliate URL parameters that indicate a tracked,
// paid placement.
var trackingParams = []string{
	"utm_source", "utm_campaign", "utm_medium",
	"ref=", "aff_id=", "affiliate", "partner=", "sponsor=",
}

// CountTracking reports how many of the links carry tracking params.
func CountTracking(links []string) int {
	count := 0
	for _, link := range links {
		lower := strings.ToLower(link)
		for _, p := range trackingParams {
			if strings.Contains(lower, p) {
				count++
				break
			}
		}
	}
	return count
}
