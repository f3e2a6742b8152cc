package extract

import (
	"regexp"
	"strings"

	"github.com/sponsorscan/sponsorscan/internal/mailbox"
)

// Subject shapes that carry the publication name, e.g.
// "Tech Brew Weekly: issue 42".
var newsletterSubjectPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^([A-Z][\w'&. ]{2,40}?\s+Newsletter)\b`),
	regexp.MustCompile(`(?i)^([A-Z][\w'&. ]{2,40}?\s+(?:Weekly|Daily|Digest|Update|Roundup))\b`),
	regexp.MustCompile(`(?i)^(?:the\s+)?([A-Z][\w'&. ]{2,40}?)\s*[:|—-]\s`),
}

// NewsletterName identifies the sending publication. Sender display
// name wins; subject patterns are the fallback, then the local part of
// the sender address.
func NewsletterName(email *mailbox.Email) string {
	if name := strings.TrimSpace(email.FromName); name != "" {
		return name
	}

	subject := strings.TrimSpace(email.Subject)
	for _, re := range newsletterSubjectPatterns {
		if m := re.FindStringSubmatch(subject); len(m) > 1 {
			return strings.TrimSpace(m[1])
		}
	}

	if at := strings.Index(email.From, "@"); at > 0 {
		return email.From[:at]
	}
	return email.From
}
