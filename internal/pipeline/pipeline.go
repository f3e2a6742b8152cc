// Package pipeline runs one scan cycle: read unseen newsletter emails,
// detect sponsor placements, and record them. Processing is strictly
// sequential; an email is marked read only after its analysis is done,
// and a failure on one item never aborts the cycle.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/sponsorscan/sponsorscan/internal/affiliate"
	"github.com/sponsorscan/sponsorscan/internal/audience"
	"github.com/sponsorscan/sponsorscan/internal/config"
	"github.com/sponsorscan/sponsorscan/internal/contact"
	"github.com/sponsorscan/sponsorscan/internal/domainutil"
	"github.com/sponsorscan/sponsorscan/internal/extract"
	"github.com/sponsorscan/sponsorscan/internal/filter"
	"github.com/sponsorscan/sponsorscan/internal/history"
	"github.com/sponsorscan/sponsorscan/internal/mailbox"
	"github.com/sponsorscan/sponsorscan/internal/score"
	"github.com/sponsorscan/sponsorscan/internal/store"
	"github.com/sponsorscan/sponsorscan/internal/tags"
)

// Collaborator interfaces. The concrete types in mailbox, store,
// contact, audience, and tags satisfy them; tests substitute fakes.
type (
	Mailbox interface {
		Connect(ctx context.Context) error
		FetchUnread(ctx context.Context, limit int) ([]mailbox.Email, error)
		MarkRead(uid uint32) error
		Close() error
	}

	SponsorStore interface {
		FindByDomain(ctx context.Context, rootDomain string) (*store.Sponsor, error)
		Upsert(ctx context.Context, s *store.Sponsor) (store.Outcome, error)
		FindPending(ctx context.Context, limit int) ([]store.Sponsor, error)
		UpdateContact(ctx context.Context, rootDomain string, set bson.M) error
		MaxAudienceForNewsletter(ctx context.Context, newsletter string) (int, error)
	}

	AffiliateStore interface {
		Upsert(ctx context.Context, a *store.Affiliate) (store.Outcome, error)
	}

	DenyList interface {
		IsDenied(ctx context.Context, rootDomain string) (bool, error)
	}

	ContactFinder interface {
		Discover(ctx context.Context, company, apex string) contact.Contact
	}

	AudienceEstimator interface {
		Estimate(ctx context.Context, newsletter, content string) audience.Estimate
	}

	TagAssigner interface {
		Assign(ctx context.Context, name, context string) []string
	}

	Recorder interface {
		Add(record *history.Record) error
	}
)

// Email-level rejection reasons. Link-level reasons come from the
// filter package.
const (
	reasonNoIndicators  = "no_indicators"
	reasonNoSections    = "no_sections"
	reasonLowConfidence = "low_confidence"
)

// Result is the cycle outcome contract.
type Result struct {
	EmailsProcessed  int            `json:"emailsProcessed"`
	NewSponsorsAdded int            `json:"newSponsorsAdded"`
	NeedReview       int            `json:"needReview"`
	Complete         int            `json:"complete"`
	DurationSeconds  float64        `json:"durationSeconds"`
	RejectionStats   map[string]int `json:"rejectionStats"`
	Error            string         `json:"error,omitempty"`
}

// Orchestrator wires the stages together. All dependencies are
// injected and checked at construction; nothing touches the mailbox
// before construction succeeds.
type Orchestrator struct {
	cfg       config.AnalysisConfig
	mailbox   Mailbox
	extractor *extract.Extractor
	filters   *filter.Pipeline
	scorer    *score.Scorer
	sponsors  SponsorStore
	affs      AffiliateStore
	denied    DenyList
	contacts  ContactFinder
	audience  AudienceEstimator
	tagger    TagAssigner
	recorder  Recorder // optional
}

type Deps struct {
	Mailbox   Mailbox
	Sponsors  SponsorStore
	Affs      AffiliateStore
	Denied    DenyList
	Contacts  ContactFinder
	Audience  AudienceEstimator
	Tagger    TagAssigner
	Recorder  Recorder
	SelfOwned []string // operator's own domains
}

func New(cfg config.AnalysisConfig, deps Deps) (*Orchestrator, error) {
	switch {
	case deps.Mailbox == nil:
		return nil, fmt.Errorf("pipeline: mailbox is required")
	case deps.Sponsors == nil:
		return nil, fmt.Errorf("pipeline: sponsor store is required")
	case deps.Affs == nil:
		return nil, fmt.Errorf("pipeline: affiliate store is required")
	case deps.Denied == nil:
		return nil, fmt.Errorf("pipeline: denied domain list is required")
	case deps.Contacts == nil:
		return nil, fmt.Errorf("pipeline: contact finder is required")
	case deps.Audience == nil:
		return nil, fmt.Errorf("pipeline: audience estimator is required")
	case deps.Tagger == nil:
		return nil, fmt.Errorf("pipeline: tag assigner is required")
	}
	if cfg.MaxEmailsPerRun <= 0 {
		return nil, fmt.Errorf("pipeline: max emails per run must be positive")
	}

	return &Orchestrator{
		cfg:       cfg,
		mailbox:   deps.Mailbox,
		extractor: extract.New(cfg),
		filters:   filter.New(deps.SelfOwned),
		scorer:    score.New(cfg),
		sponsors:  deps.Sponsors,
		affs:      deps.Affs,
		denied:    deps.Denied,
		contacts:  deps.Contacts,
		audience:  deps.Audience,
		tagger:    deps.Tagger,
		recorder:  deps.Recorder,
	}, nil
}

// RunCycle processes one bounded batch of unread emails.
func (o *Orchestrator) RunCycle(ctx context.Context) *Result {
	start := time.Now()
	result := &Result{RejectionStats: make(map[string]int)}

	defer func() {
		result.DurationSeconds = time.Since(start).Seconds()
		o.record(start, result)
	}()

	if err := o.mailbox.Connect(ctx); err != nil {
		result.Error = fmt.Sprintf("failed to connect to mailbox: %v", err)
		return result
	}
	defer o.mailbox.Close()

	emails, err := o.mailbox.FetchUnread(ctx, o.cfg.MaxEmailsPerRun)
	if err != nil {
		result.Error = fmt.Sprintf("failed to fetch emails: %v", err)
		return result
	}

	log.Printf("Processing %d emails", len(emails))

	for i := range emails {
		email := &emails[i]
		o.processEmail(ctx, email, result)
		result.EmailsProcessed++

		// Mark read last so a crash mid-email leaves it for the next
		// cycle.
		if err := o.mailbox.MarkRead(email.UID); err != nil {
			log.Printf("Warning: failed to mark email %d read: %v", email.UID, err)
		}
	}

	log.Printf("Cycle done: %d emails, %d new sponsors, %d for review in %.1fs",
		result.EmailsProcessed, result.NewSponsorsAdded, result.NeedReview, time.Since(start).Seconds())
	return result
}

func (o *Orchestrator) record(start time.Time, result *Result) {
	if o.recorder == nil {
		return
	}
	err := o.recorder.Add(&history.Record{
		StartedAt:        start,
		DurationSeconds:  result.DurationSeconds,
		EmailsProcessed:  result.EmailsProcessed,
		NewSponsorsAdded: result.NewSponsorsAdded,
		NeedReview:       result.NeedReview,
		Complete:         result.Complete,
		Rejections:       result.RejectionStats,
		Error:            result.Error,
	})
	if err != nil {
		log.Printf("Warning: failed to record cycle: %v", err)
	}
}

func (o *Orchestrator) processEmail(ctx context.Context, email *mailbox.Email, result *Result) {
	if !o.extractor.HasSponsorIndicators(email) {
		result.RejectionStats[reasonNoIndicators]++
		return
	}

	newsletter := extract.NewsletterName(email)
	newsletterDomain := ""
	if email.FromDomain != "" {
		if apex, err := domainutil.Apex(email.FromDomain); err == nil {
			newsletterDomain = apex
		}
	}

	sections := o.extractor.Sections(email)
	if len(sections) == 0 {
		result.RejectionStats[reasonNoSections]++
		return
	}

	totalLinks := 0
	tracking := 0
	for _, sec := range sections {
		totalLinks += len(sec.Links)
		tracking += score.CountTracking(sec.Links)
	}

	confidence, status := o.scorer.Score(score.Evidence{
		MarkerCount:   extract.IndicatorCount(email),
		LinkCount:     totalLinks,
		TrackingCount: tracking,
		SectionCount:  len(sections),
	})
	if status == score.StatusRejected {
		result.RejectionStats[reasonLowConfidence]++
		return
	}

	evidence := extract.Evidence(sections)
	emailStatus := status

	seen := make(map[string]bool)
	for _, sec := range sections {
		for _, link := range sec.Links {
			if seen[link] {
				continue
			}
			seen[link] = true
			o.processLink(ctx, linkItem{
				link:             link,
				section:          sec,
				newsletter:       newsletter,
				newsletterDomain: newsletterDomain,
				confidence:       confidence,
				status:           emailStatus,
				evidence:         evidence,
				receivedAt:       email.ReceivedAt,
			}, result)
		}
	}
}

type linkItem struct {
	link             string
	section          extract.Section
	newsletter       string
	newsletterDomain string
	confidence       float64
	status           score.Status
	evidence         string
	receivedAt       time.Time
}

func (o *Orchestrator) processLink(ctx context.Context, item linkItem, result *Result) {
	apex, err := domainutil.Apex(item.link)
	if err != nil {
		// Unusable URL, skip the item.
		return
	}

	linkContext := extract.Context(item.section.Text, item.link)
	name := extract.Name(linkContext, item.link)

	verdict := o.filters.Evaluate(&filter.Candidate{
		URL:              item.link,
		Apex:             apex,
		Context:          linkContext,
		Name:             name,
		NewsletterDomain: item.newsletterDomain,
	})
	if !verdict.Accepted {
		result.RejectionStats[verdict.Reason]++
		return
	}

	// Operator denylist. A lookup failure means no data, not denied.
	denied, err := o.denied.IsDenied(ctx, apex)
	if err != nil {
		log.Printf("Warning: denied domain check failed for %s: %v", apex, err)
	} else if denied {
		result.RejectionStats[filter.ReasonDeniedDomain]++
		return
	}

	if affiliate.InContext(linkContext) || affiliate.IsAffiliateURL(item.link) {
		o.saveAffiliate(ctx, item, apex, name, linkContext, result)
		return
	}

	o.saveSponsor(ctx, item, apex, name, linkContext, result)
}

func (o *Orchestrator) saveAffiliate(ctx context.Context, item linkItem, apex, name, linkContext string, result *Result) {
	if dest, resolved := affiliate.ResolveDestination(item.link); resolved {
		apex = dest
		name = domainutil.Label(dest)
	}

	est := o.audience.Estimate(ctx, item.newsletter, item.section.Text)

	record := &store.Affiliate{
		AffiliateName: name,
		AffiliateLink: item.link,
		RootDomain:    apex,
		Tags:          tags.ForAffiliate(o.tagger.Assign(ctx, name, linkContext)),
		AffiliatedNewsletters: []store.AffiliateAssociation{{
			NewsletterName:    item.newsletter,
			EstimatedAudience: est.Subscribers,
			DateAffiliated:    time.Now().UTC(),
		}},
	}

	outcome, err := o.affs.Upsert(ctx, record)
	if err != nil {
		log.Printf("Warning: failed to save affiliate %s: %v", apex, err)
		return
	}
	if outcome == store.OutcomeCreated {
		log.Printf("New affiliate: %s (%s) via %s", name, apex, item.newsletter)
	}
}

func (o *Orchestrator) saveSponsor(ctx context.Context, item linkItem, apex, name, linkContext string, result *Result) {
	existing, err := o.sponsors.FindByDomain(ctx, apex)
	if err != nil {
		log.Printf("Warning: sponsor lookup failed for %s: %v", apex, err)
		return
	}

	est := o.audience.Estimate(ctx, item.newsletter, item.section.Text)
	if est.Subscribers <= 0 {
		// The estimator guarantees a positive floor; anything else is
		// a bug upstream and the record would be useless.
		return
	}

	assoc := store.NewsletterAssociation{
		NewsletterName:    item.newsletter,
		EstimatedAudience: est.Subscribers,
		DateSponsored:     item.receivedAt,
	}

	// Contact discovery is skipped when the stored record already has
	// an address; its outcome then just adds the association.
	var found contact.Contact
	if existing == nil || existing.SponsorEmail == "" {
		found = o.contacts.Discover(ctx, name, apex)
	} else {
		found = contact.Contact{
			Email:  existing.SponsorEmail,
			Type:   existing.ContactType,
			Status: "complete",
		}
	}
	assoc.EmailAddress = found.Email

	confidence := item.confidence
	analysis := analysisStatus(item.status, found)
	if found.Email != "" && confidence < 0.8 && analysis == store.AnalysisComplete {
		confidence = 0.8
	}

	sponsor := &store.Sponsor{
		SponsorName:          name,
		SponsorLink:          item.link,
		RootDomain:           apex,
		Tags:                 o.tagger.Assign(ctx, name, linkContext),
		NewslettersSponsored: []store.NewsletterAssociation{assoc},
		SponsorEmail:         found.Email,
		ContactPersonName:    found.PersonName,
		ContactPersonTitle:   found.Title,
		ContactType:          found.Type,
		Confidence:           confidence,
		AnalysisStatus:       analysis,
		Evidence:             item.evidence,
		EstimatedSubscribers: est.Subscribers,
	}
	if found.Email != "" {
		sponsor.ContactMethod = store.ContactMethodEmail
	}

	outcome, err := o.sponsors.Upsert(ctx, sponsor)
	if err != nil {
		log.Printf("Warning: failed to save sponsor %s: %v", apex, err)
		return
	}

	switch outcome {
	case store.OutcomeCreated:
		result.NewSponsorsAdded++
		log.Printf("New sponsor: %s (%s) via %s [%s]", name, apex, item.newsletter, analysis)
	case store.OutcomeAssociated:
		log.Printf("Sponsor %s now associated with %s", apex, item.newsletter)
	}
	if outcome != store.OutcomeUnchanged {
		switch analysis {
		case store.AnalysisComplete:
			result.Complete++
		case store.AnalysisManualReview:
			result.NeedReview++
		}
	}
}

// ReanalyzePending retries contact discovery for stored sponsors that
// never got an address. Returns how many records gained a contact.
func (o *Orchestrator) ReanalyzePending(ctx context.Context, limit int) (int, error) {
	pending, err := o.sponsors.FindPending(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to load pending sponsors: %w", err)
	}

	updated := 0
	for i := range pending {
		s := &pending[i]
		if s.SponsorEmail != "" {
			continue
		}

		found := o.contacts.Discover(ctx, s.SponsorName, s.RootDomain)
		if found.Email == "" {
			// Still nothing; touch lastAnalyzed so the record rotates
			// to the back of the queue.
			if err := o.sponsors.UpdateContact(ctx, s.RootDomain, bson.M{}); err != nil {
				log.Printf("Warning: failed to touch %s: %v", s.RootDomain, err)
			}
			continue
		}

		analysis := store.AnalysisComplete
		if found.Status == "needs_review" {
			analysis = store.AnalysisManualReview
		}
		set := bson.M{
			"sponsorEmail":   found.Email,
			"contactMethod":  store.ContactMethodEmail,
			"contactType":    found.Type,
			"analysisStatus": analysis,
		}
		if found.PersonName != "" {
			set["contactPersonName"] = found.PersonName
		}
		if found.Title != "" {
			set["contactPersonTitle"] = found.Title
		}
		if err := o.sponsors.UpdateContact(ctx, s.RootDomain, set); err != nil {
			log.Printf("Warning: failed to update contact for %s: %v", s.RootDomain, err)
			continue
		}
		updated++
		log.Printf("Contact found for pending sponsor %s: %s", s.RootDomain, found.Email)
	}
	return updated, nil
}

// analysisStatus combines the email-level score status with the
// contact outcome. A missing contact keeps the record pending rather
// than rejecting it.
func analysisStatus(emailStatus score.Status, found contact.Contact) string {
	if found.Email == "" {
		return store.AnalysisPending
	}
	if emailStatus == score.StatusNeedsReview || found.Status == "needs_review" {
		return store.AnalysisManualReview
	}
	return store.AnalysisComplete
}
