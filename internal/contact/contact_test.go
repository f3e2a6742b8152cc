package contact

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func TestValidEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		want  bool
	}{
		{"plain business address", "partnerships@getacme.io", true},
		{"person address", "john.smith@getacme.io", true},
		{"too short", "a@b.c", false},
		{"whitespace", "foo bar@getacme.io", false},
		{"placeholder domain", "hello@example.com", false},
		{"test domain", "info@test.io", false},
		{"short domain part", "x@a.b", false},
		{"double dots tolerated by loose regex but rejected", "hi@@getacme.io", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidEmail(tt.email); got != tt.want {
				t.Errorf("ValidEmail(%q) = %v, want %v", tt.email, got, tt.want)
			}
		})
	}
}

func TestCleanEmail(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"trailing punctuation", "hello@getacme.io.", "hello@getacme.io"},
		{"uppercase normalized", "Hello@GetAcme.IO", "hello@getacme.io"},
		{"glued image extension", "hello@getacme.io.png", "hello@getacme.io"},
		{"unusable becomes empty", "not-an-email", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanEmail(tt.input); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKeepEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		apex  string
		want  bool
	}{
		{"domain match", "anything@getacme.io", "getacme.io", true},
		{"subdomain match", "hi@mail.getacme.io", "getacme.io", true},
		{"business prefix on other domain", "partnerships@agency.co", "getacme.io", true},
		{"random address on other domain", "bob@gmail.com", "getacme.io", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KeepEmail(tt.email, tt.apex); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPriority(t *testing.T) {
	apex := "getacme.io"
	tests := []struct {
		name  string
		email string
		want  int
	}{
		{"partnerships with domain bonus", "partnerships@getacme.io", 110},
		{"partner prefix off-domain", "partner@agency.co", 100},
		{"press with bonus", "press@getacme.io", 100},
		{"info with bonus", "info@getacme.io", 90},
		{"support with bonus", "support@getacme.io", 80},
		{"marketing with bonus", "marketing@getacme.io", 70},
		{"other with bonus", "random@getacme.io", 60},
		{"other off-domain", "random@elsewhere.com", 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Priority(tt.email, apex); got != tt.want {
				t.Errorf("Priority(%q) = %d, want %d", tt.email, got, tt.want)
			}
		})
	}
}

// The partnerships inbox must always beat a generic info inbox on the
// same domain.
func TestBestEmailPrefersPartnerships(t *testing.T) {
	emails := []string{"info@getacme.io", "partnerships@getacme.io", "support@getacme.io"}
	if got := bestEmail(emails, "getacme.io"); got != "partnerships@getacme.io" {
		t.Errorf("got %q, want partnerships@getacme.io", got)
	}
}

func TestClassifyType(t *testing.T) {
	tests := []struct {
		name  string
		email string
		want  string
	}{
		{"partnership inbox", "partnerships@getacme.io", "business_email"},
		{"press inbox", "press@getacme.io", "business_email"},
		{"person address", "jane.doe@getacme.io", "named_person"},
		{"hello inbox", "hello@getacme.io", "generic_email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyType(tt.email); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPageEmails(t *testing.T) {
	html := `<html><body>
		<a href="mailto:partnerships@getacme.io?subject=hi">Partner with us</a>
		<p>Reach us at hello@getacme.io or bob@gmail.com</p>
		<p>Broken: hello@example.com</p>
	</body></html>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatal(err)
	}

	emails := pageEmails(doc, "getacme.io")
	want := map[string]bool{"partnerships@getacme.io": true, "hello@getacme.io": true}
	if len(emails) != len(want) {
		t.Fatalf("got %v, want exactly %v", emails, want)
	}
	for _, e := range emails {
		if !want[e] {
			t.Errorf("unexpected email %q", e)
		}
	}
}

func TestContactLinks(t *testing.T) {
	html := `<html><body>
		<a href="/contact">Contact</a>
		<a href="/about/">About</a>
		<a href="https://getacme.io/team">Team</a>
		<a href="https://twitter.com/contact">External</a>
		<a href="/pricing">Pricing</a>
	</body></html>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatal(err)
	}

	links := contactLinks(doc, "https://getacme.io")
	if len(links) != 3 {
		t.Fatalf("got %v, want 3 links", links)
	}
	for _, l := range links {
		if strings.Contains(l, "twitter.com") || strings.Contains(l, "pricing") {
			t.Errorf("unexpected link %q", l)
		}
	}
}
