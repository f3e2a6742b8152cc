package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/sponsorscan/sponsorscan/internal/audience"
	"github.com/sponsorscan/sponsorscan/internal/config"
	"github.com/sponsorscan/sponsorscan/internal/contact"
	"github.com/sponsorscan/sponsorscan/internal/mailbox"
	"github.com/sponsorscan/sponsorscan/internal/store"
)

// --- fakes ---

type fakeMailbox struct {
	emails     []mailbox.Email
	connectErr error
	marked     []uint32
}

func (f *fakeMailbox) Connect(ctx context.Context) error { return f.connectErr }
func (f *fakeMailbox) Close() error                      { return nil }
func (f *fakeMailbox) FetchUnread(ctx context.Context, limit int) ([]mailbox.Email, error) {
	if limit < len(f.emails) {
		return f.emails[:limit], nil
	}
	return f.emails, nil
}
func (f *fakeMailbox) MarkRead(uid uint32) error {
	f.marked = append(f.marked, uid)
	return nil
}

type fakeSponsors struct {
	records map[string]*store.Sponsor
}

func newFakeSponsors() *fakeSponsors {
	return &fakeSponsors{records: make(map[string]*store.Sponsor)}
}

func (f *fakeSponsors) FindByDomain(ctx context.Context, rootDomain string) (*store.Sponsor, error) {
	return f.records[rootDomain], nil
}

func (f *fakeSponsors) Upsert(ctx context.Context, s *store.Sponsor) (store.Outcome, error) {
	existing, ok := f.records[s.RootDomain]
	if !ok {
		cp := *s
		f.records[s.RootDomain] = &cp
		return store.OutcomeCreated, nil
	}
	existing.Tags = store.MergeTags(existing.Tags, s.Tags)
	if existing.SponsorEmail == "" && s.SponsorEmail != "" {
		existing.SponsorEmail = s.SponsorEmail
		existing.ContactMethod = s.ContactMethod
		existing.ContactType = s.ContactType
		if existing.AnalysisStatus == store.AnalysisPending && s.AnalysisStatus != "" {
			existing.AnalysisStatus = s.AnalysisStatus
		}
	}
	assoc := s.NewslettersSponsored[len(s.NewslettersSponsored)-1]
	if store.HasAssociation(existing, assoc.NewsletterName) {
		return store.OutcomeUnchanged, nil
	}
	existing.NewslettersSponsored = append(existing.NewslettersSponsored, assoc)
	return store.OutcomeAssociated, nil
}

func (f *fakeSponsors) FindPending(ctx context.Context, limit int) ([]store.Sponsor, error) {
	var out []store.Sponsor
	for _, s := range f.records {
		if s.AnalysisStatus == store.AnalysisPending {
			out = append(out, *s)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeSponsors) UpdateContact(ctx context.Context, rootDomain string, set bson.M) error {
	s, ok := f.records[rootDomain]
	if !ok {
		return fmt.Errorf("no sponsor %s", rootDomain)
	}
	if v, ok := set["sponsorEmail"].(string); ok {
		s.SponsorEmail = v
	}
	if v, ok := set["analysisStatus"].(string); ok {
		s.AnalysisStatus = v
	}
	return nil
}

func (f *fakeSponsors) MaxAudienceForNewsletter(ctx context.Context, newsletter string) (int, error) {
	return 0, nil
}

type fakeAffiliates struct {
	records map[string]*store.Affiliate
}

func (f *fakeAffiliates) Upsert(ctx context.Context, a *store.Affiliate) (store.Outcome, error) {
	if f.records == nil {
		f.records = make(map[string]*store.Affiliate)
	}
	if _, ok := f.records[a.RootDomain]; ok {
		return store.OutcomeUnchanged, nil
	}
	f.records[a.RootDomain] = a
	return store.OutcomeCreated, nil
}

type fakeDenied struct{ domains map[string]bool }

func (f *fakeDenied) IsDenied(ctx context.Context, rootDomain string) (bool, error) {
	return f.domains[rootDomain], nil
}

type fakeContacts struct{ result contact.Contact }

func (f *fakeContacts) Discover(ctx context.Context, company, apex string) contact.Contact {
	return f.result
}

type fakeAudience struct{ subscribers int }

func (f *fakeAudience) Estimate(ctx context.Context, newsletter, content string) audience.Estimate {
	return audience.Estimate{Subscribers: f.subscribers, Source: "explicit", Reasoning: "test"}
}

type fakeTagger struct{}

func (f *fakeTagger) Assign(ctx context.Context, name, context string) []string {
	return []string{"SaaS"}
}

// --- helpers ---

func testConfig() config.AnalysisConfig {
	return config.AnalysisConfig{
		MaxEmailsPerRun:      30,
		MinSponsorIndicators: 2,
		MinSectionMarkers:    1,
		AcceptThreshold:      0.8,
		ReviewThreshold:      0.3,
		ScrapeTimeoutSec:     5,
		MaxContactLinks:      3,
	}
}

func sponsoredEmail(uid uint32, newsletter, body string) mailbox.Email {
	return mailbox.Email{
		UID:        uid,
		From:       "hello@dailybrew.com",
		FromName:   newsletter,
		FromDomain: "dailybrew.com",
		Subject:    "Your morning digest, brought to you by Acme",
		Body:       body,
		ReceivedAt: time.Date(2026, 8, 20, 8, 0, 0, 0, time.UTC),
	}
}

const sponsorBody = "Top stories of the day.\n" +
	"---\n" +
	"SPONSORED BY Acme Analytics https://getacme.io/?utm_source=brew - " +
	"try it free today. Sponsored content. Use code BREW for a discount.\n" +
	"---\n" +
	"That's all for today.\n"

func newTestOrchestrator(t *testing.T, mb *fakeMailbox, sp *fakeSponsors, dn *fakeDenied) *Orchestrator {
	t.Helper()
	o, err := New(testConfig(), Deps{
		Mailbox:  mb,
		Sponsors: sp,
		Affs:     &fakeAffiliates{},
		Denied:   dn,
		Contacts: &fakeContacts{result: contact.Contact{
			Email:  "partnerships@getacme.io",
			Type:   "business_email",
			Status: "complete",
			Method: "scrape",
		}},
		Audience: &fakeAudience{subscribers: 45000},
		Tagger:   &fakeTagger{},
	})
	if err != nil {
		t.Fatalf("failed to build orchestrator: %v", err)
	}
	return o
}

// --- tests ---

func TestRunCycleAddsSponsor(t *testing.T) {
	mb := &fakeMailbox{emails: []mailbox.Email{sponsoredEmail(1, "The Daily Brew", sponsorBody)}}
	sp := newFakeSponsors()
	o := newTestOrchestrator(t, mb, sp, &fakeDenied{})

	result := o.RunCycle(context.Background())

	if result.Error != "" {
		t.Fatalf("unexpected error: %s", result.Error)
	}
	if result.EmailsProcessed != 1 {
		t.Errorf("emailsProcessed = %d, want 1", result.EmailsProcessed)
	}
	if result.NewSponsorsAdded != 1 {
		t.Fatalf("newSponsorsAdded = %d, want 1 (rejections: %v)", result.NewSponsorsAdded, result.RejectionStats)
	}

	s := sp.records["getacme.io"]
	if s == nil {
		t.Fatal("sponsor not stored under getacme.io")
	}
	if s.SponsorName != "Acme Analytics" {
		t.Errorf("sponsorName = %q, want Acme Analytics", s.SponsorName)
	}
	if s.SponsorEmail != "partnerships@getacme.io" {
		t.Errorf("sponsorEmail = %q", s.SponsorEmail)
	}
	if len(s.NewslettersSponsored) != 1 {
		t.Fatalf("associations = %d, want 1", len(s.NewslettersSponsored))
	}
	assoc := s.NewslettersSponsored[0]
	if assoc.NewsletterName != "The Daily Brew" {
		t.Errorf("newsletterName = %q", assoc.NewsletterName)
	}
	if assoc.EstimatedAudience != 45000 {
		t.Errorf("estimatedAudience = %d, want 45000", assoc.EstimatedAudience)
	}
	if len(mb.marked) != 1 || mb.marked[0] != 1 {
		t.Errorf("marked = %v, want [1]", mb.marked)
	}
}

// The same email processed twice must not duplicate anything.
func TestRunCycleIdempotent(t *testing.T) {
	sp := newFakeSponsors()
	for i := 0; i < 2; i++ {
		mb := &fakeMailbox{emails: []mailbox.Email{sponsoredEmail(uint32(i+1), "The Daily Brew", sponsorBody)}}
		o := newTestOrchestrator(t, mb, sp, &fakeDenied{})
		o.RunCycle(context.Background())
	}

	s := sp.records["getacme.io"]
	if s == nil {
		t.Fatal("sponsor not stored")
	}
	if len(s.NewslettersSponsored) != 1 {
		t.Errorf("associations = %d, want 1 after reprocessing", len(s.NewslettersSponsored))
	}
}

func TestRunCycleSecondNewsletterAssociates(t *testing.T) {
	sp := newFakeSponsors()

	mb := &fakeMailbox{emails: []mailbox.Email{sponsoredEmail(1, "The Daily Brew", sponsorBody)}}
	newTestOrchestrator(t, mb, sp, &fakeDenied{}).RunCycle(context.Background())

	second := sponsoredEmail(2, "Ops Weekly", sponsorBody)
	second.From = "team@opsweekly.io"
	second.FromDomain = "opsweekly.io"
	mb = &fakeMailbox{emails: []mailbox.Email{second}}
	result := newTestOrchestrator(t, mb, sp, &fakeDenied{}).RunCycle(context.Background())

	if result.NewSponsorsAdded != 0 {
		t.Errorf("newSponsorsAdded = %d, want 0 for existing domain", result.NewSponsorsAdded)
	}
	s := sp.records["getacme.io"]
	if len(s.NewslettersSponsored) != 2 {
		t.Fatalf("associations = %d, want 2", len(s.NewslettersSponsored))
	}
	if s.NewslettersSponsored[1].NewsletterName != "Ops Weekly" {
		t.Errorf("second association = %q", s.NewslettersSponsored[1].NewsletterName)
	}
}

// Reprocessing by the same newsletter must still fill in a contact the
// stored record lacks.
func TestRunCycleEnrichesExistingAssociation(t *testing.T) {
	sp := newFakeSponsors()
	sp.records["getacme.io"] = &store.Sponsor{
		SponsorName:    "Acme Analytics",
		RootDomain:     "getacme.io",
		AnalysisStatus: store.AnalysisPending,
		NewslettersSponsored: []store.NewsletterAssociation{
			{NewsletterName: "The Daily Brew", EstimatedAudience: 45000},
		},
	}

	mb := &fakeMailbox{emails: []mailbox.Email{sponsoredEmail(1, "The Daily Brew", sponsorBody)}}
	result := newTestOrchestrator(t, mb, sp, &fakeDenied{}).RunCycle(context.Background())

	if result.NewSponsorsAdded != 0 {
		t.Errorf("newSponsorsAdded = %d, want 0", result.NewSponsorsAdded)
	}
	s := sp.records["getacme.io"]
	if len(s.NewslettersSponsored) != 1 {
		t.Fatalf("associations = %d, want 1", len(s.NewslettersSponsored))
	}
	if s.SponsorEmail != "partnerships@getacme.io" {
		t.Errorf("sponsorEmail = %q, want discovered contact merged in", s.SponsorEmail)
	}
	if s.AnalysisStatus == store.AnalysisPending {
		t.Errorf("analysisStatus = %q, must leave pending after gaining a contact", s.AnalysisStatus)
	}
}

func TestRunCycleSelfReferenceRejected(t *testing.T) {
	body := "Read us daily.\n---\n" +
		"SPONSORED BY Daily Brew https://dailybrew.com/premium - sponsored content, use code SAVE.\n---\n"
	mb := &fakeMailbox{emails: []mailbox.Email{sponsoredEmail(1, "The Daily Brew", body)}}
	sp := newFakeSponsors()

	result := newTestOrchestrator(t, mb, sp, &fakeDenied{}).RunCycle(context.Background())

	if result.NewSponsorsAdded != 0 {
		t.Errorf("newSponsorsAdded = %d, want 0", result.NewSponsorsAdded)
	}
	if result.RejectionStats["self_reference"] != 1 {
		t.Errorf("rejectionStats = %v, want self_reference counted", result.RejectionStats)
	}
	if len(mb.marked) != 1 {
		t.Errorf("rejected email must still be marked read, marked = %v", mb.marked)
	}
}

func TestRunCycleDeniedDomain(t *testing.T) {
	mb := &fakeMailbox{emails: []mailbox.Email{sponsoredEmail(1, "The Daily Brew", sponsorBody)}}
	sp := newFakeSponsors()
	dn := &fakeDenied{domains: map[string]bool{"getacme.io": true}}

	result := newTestOrchestrator(t, mb, sp, dn).RunCycle(context.Background())

	if result.NewSponsorsAdded != 0 {
		t.Errorf("newSponsorsAdded = %d, want 0", result.NewSponsorsAdded)
	}
	if result.RejectionStats["denied_domain"] != 1 {
		t.Errorf("rejectionStats = %v, want denied_domain counted", result.RejectionStats)
	}
}

func TestRunCycleNoIndicators(t *testing.T) {
	email := sponsoredEmail(7, "The Daily Brew", "Just articles today. Nothing else.")
	email.Subject = "Morning digest"
	mb := &fakeMailbox{emails: []mailbox.Email{email}}
	sp := newFakeSponsors()

	result := newTestOrchestrator(t, mb, sp, &fakeDenied{}).RunCycle(context.Background())

	if result.NewSponsorsAdded != 0 || len(sp.records) != 0 {
		t.Errorf("expected nothing stored, got %v", sp.records)
	}
	if result.RejectionStats["no_indicators"] != 1 {
		t.Errorf("rejectionStats = %v, want no_indicators counted", result.RejectionStats)
	}
	if len(mb.marked) != 1 || mb.marked[0] != 7 {
		t.Errorf("non-sponsor email must still be marked read, marked = %v", mb.marked)
	}
}

// An email with sponsor markers but too little evidence overall is
// tallied, not silently dropped.
func TestRunCycleLowConfidenceCounted(t *testing.T) {
	email := sponsoredEmail(3, "The Daily Brew",
		"Quick notes for the week ahead.\n---\nTogether with Acme, use code SAVE at checkout.\n---\n")
	email.Subject = "Morning digest"
	mb := &fakeMailbox{emails: []mailbox.Email{email}}
	sp := newFakeSponsors()

	result := newTestOrchestrator(t, mb, sp, &fakeDenied{}).RunCycle(context.Background())

	if len(sp.records) != 0 {
		t.Errorf("expected nothing stored, got %v", sp.records)
	}
	if result.RejectionStats["low_confidence"] != 1 {
		t.Errorf("rejectionStats = %v, want low_confidence counted", result.RejectionStats)
	}
}

func TestRunCycleConnectFailure(t *testing.T) {
	mb := &fakeMailbox{connectErr: fmt.Errorf("dial tcp: connection refused")}
	sp := newFakeSponsors()

	result := newTestOrchestrator(t, mb, sp, &fakeDenied{}).RunCycle(context.Background())

	if result.Error == "" {
		t.Error("expected error in result")
	}
	if result.EmailsProcessed != 0 {
		t.Errorf("emailsProcessed = %d, want 0", result.EmailsProcessed)
	}
}

func TestNewValidatesDeps(t *testing.T) {
	_, err := New(testConfig(), Deps{})
	if err == nil {
		t.Fatal("expected construction error with missing deps")
	}

	deps := Deps{
		Mailbox:  &fakeMailbox{},
		Sponsors: newFakeSponsors(),
		Affs:     &fakeAffiliates{},
		Denied:   &fakeDenied{},
		Contacts: &fakeContacts{},
		Audience: &fakeAudience{subscribers: 1},
		Tagger:   &fakeTagger{},
	}
	if _, err := New(config.AnalysisConfig{}, deps); err == nil {
		t.Fatal("expected construction error with zero batch size")
	}
	if _, err := New(testConfig(), deps); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunCycleAffiliateGoesToAffiliates(t *testing.T) {
	body := "Deals.\n---\n" +
		"Our partner Acme has an affiliate program - earn a commission on every sale " +
		"https://getacme.io/?ref=dailybrew sponsored content.\n---\n"
	mb := &fakeMailbox{emails: []mailbox.Email{sponsoredEmail(1, "The Daily Brew", body)}}
	sp := newFakeSponsors()
	affs := &fakeAffiliates{}

	o, err := New(testConfig(), Deps{
		Mailbox:  mb,
		Sponsors: sp,
		Affs:     affs,
		Denied:   &fakeDenied{},
		Contacts: &fakeContacts{},
		Audience: &fakeAudience{subscribers: 10000},
		Tagger:   &fakeTagger{},
	})
	if err != nil {
		t.Fatal(err)
	}
	o.RunCycle(context.Background())

	if len(sp.records) != 0 {
		t.Errorf("affiliate stored as sponsor: %v", sp.records)
	}
	if affs.records["getacme.io"] == nil {
		t.Fatal("affiliate not stored")
	}
	tags := affs.records["getacme.io"].Tags
	hasAffiliate := false
	for _, tag := range tags {
		if tag == "Affiliate" {
			hasAffiliate = true
		}
	}
	if !hasAffiliate {
		t.Errorf("tags = %v, want Affiliate present", tags)
	}
}

func TestReanalyzePending(t *testing.T) {
	sp := newFakeSponsors()
	sp.records["getacme.io"] = &store.Sponsor{
		SponsorName:    "Acme",
		RootDomain:     "getacme.io",
		AnalysisStatus: store.AnalysisPending,
	}

	o := newTestOrchestrator(t, &fakeMailbox{}, sp, &fakeDenied{})
	updated, err := o.ReanalyzePending(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if updated != 1 {
		t.Fatalf("updated = %d, want 1", updated)
	}
	s := sp.records["getacme.io"]
	if s.SponsorEmail != "partnerships@getacme.io" {
		t.Errorf("sponsorEmail = %q", s.SponsorEmail)
	}
	if s.AnalysisStatus != store.AnalysisComplete {
		t.Errorf("analysisStatus = %q, want complete", s.AnalysisStatus)
	}
}
