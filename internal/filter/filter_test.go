package filter

import "testing"

func testCandidate() *Candidate {
	return &Candidate{
		URL:              "https://getacme.io/?utm_source=newsletter",
		Apex:             "getacme.io",
		Context:          "SPONSORED BY Acme Analytics - try it free today",
		Name:             "Acme Analytics",
		NewsletterDomain: "dailybrew.com",
	}
}

func TestEvaluateOrder(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*Candidate)
		wantAccept bool
		wantReason string
	}{
		{
			name:       "clean candidate accepted",
			mutate:     func(c *Candidate) {},
			wantAccept: true,
		},
		{
			name: "excluded domain",
			mutate: func(c *Candidate) {
				c.URL = "https://twitter.com/acme"
				c.Apex = "twitter.com"
			},
			wantReason: ReasonDenylist,
		},
		{
			name: "unsubscribe link",
			mutate: func(c *Candidate) {
				c.URL = "https://getacme.io/unsubscribe?id=1"
			},
			wantReason: ReasonDenylist,
		},
		{
			name: "self reference",
			mutate: func(c *Candidate) {
				c.URL = "https://dailybrew.com/archive"
				c.Apex = "dailybrew.com"
			},
			wantReason: ReasonSelfReference,
		},
		{
			name: "self promotion",
			mutate: func(c *Candidate) {
				c.URL = "https://brewshop.com/merch"
				c.Apex = "brewshop.com"
			},
			wantReason: ReasonSelfPromotion,
		},
		{
			name: "editorial context",
			mutate: func(c *Candidate) {
				c.Context = "Read more about the outage in our full story coverage"
			},
			wantReason: ReasonInsufficientContext,
		},
		{
			name: "empty context",
			mutate: func(c *Candidate) {
				c.Context = ""
			},
			wantReason: ReasonInsufficientContext,
		},
		{
			name: "invalid name",
			mutate: func(c *Candidate) {
				c.Name = "Click here"
			},
			wantReason: ReasonInvalidName,
		},
		{
			name: "mega company",
			mutate: func(c *Candidate) {
				c.URL = "https://google.com/search"
				c.Apex = "google.com"
				c.Name = "Google"
			},
			wantReason: ReasonNonSponsorCompany,
		},
		{
			name: "denylist beats self reference",
			mutate: func(c *Candidate) {
				c.URL = "https://facebook.com/dailybrew"
				c.Apex = "facebook.com"
				c.NewsletterDomain = "facebook.com"
			},
			wantReason: ReasonDenylist,
		},
	}

	p := New([]string{"brewshop.com"})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testCandidate()
			tt.mutate(c)
			got := p.Evaluate(c)
			if got.Accepted != tt.wantAccept {
				t.Fatalf("accepted = %v, want %v (reason %q)", got.Accepted, tt.wantAccept, got.Reason)
			}
			if !tt.wantAccept && got.Reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", got.Reason, tt.wantReason)
			}
		})
	}
}

func TestSufficientContext(t *testing.T) {
	tests := []struct {
		name    string
		context string
		want    bool
	}{
		{"strong keyword alone", "brought to you by Acme", true},
		{"sponsor word with cta", "our sponsor Acme - visit the site", true},
		{"business term only", "sign up for a free demo", true},
		{"content indicator rejects", "continue reading the sponsor interview", false},
		{"empty", "   ", false},
		{"neutral text", "an interesting company we noticed", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SufficientContext(tt.context); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLooksLegitimate(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		apex    string
		sponsor string
		want    bool
	}{
		{"known sponsor by name", "https://notion.so/enter", "notion.so", "Notion", true},
		{"bare root url", "https://acmeanalytics.com", "acmeanalytics.com", "Acme", true},
		{"business path", "https://acmeanalytics.com/pricing", "acmeanalytics.com", "Acme", true},
		{"content site rejected", "https://dailynewsblog.com/post/1", "dailynewsblog.com", "Daily Blog", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LooksLegitimate(tt.url, tt.apex, tt.sponsor); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsContentSite(t *testing.T) {
	tests := []struct {
		name string
		url  string
		apex string
		want bool
	}{
		{"two vocab words in domain", "https://dailynews.com", "dailynews.com", true},
		{"content tld single label", "https://theinformation.news", "theinformation.news", true},
		{"blog path", "https://acme.com/blog/launch", "acme.com", true},
		{"year path", "https://acme.com/2025/01/launch", "acme.com", true},
		{"known content domain", "https://morningbrew.com", "morningbrew.com", true},
		{"plain company site", "https://getacme.io", "getacme.io", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isContentSite(tt.url, tt.apex); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
