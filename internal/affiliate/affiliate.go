// Package affiliate spots affiliate placements so they land in their
// own namespace instead of the sponsor collection.
package affiliate

import (
	"net/url"
	"strings"

	"github.com/sponsorscan/sponsorscan/internal/domainutil"
)

// Context phrases that mark a placement as affiliate rather than flat
// sponsorship.
var indicators = []string{
	"affiliate link", "affiliate program", "affiliate partner",
	"referral link", "referral program", "referral code",
	"ref code", "commission", "earn per referral", "earn a commission",
	"revenue share", "rev share", "earn money by sharing",
	"get paid to share", "refer a friend", "refer friends",
	"partner program", "earn up to", "per signup", "per sale",
	"cashback", "kickback", "use my link", "using our link",
	"we may earn", "we earn a", "at no extra cost to you",
	"this is an affiliate",
}

// Redirect services whose links always wrap an affiliate offer.
var redirectPlatforms = []string{
	"go2cloud.org", "shareasale.com", "cj.com", "impact.com",
	"partnerstack.com", "refersion.com", "rewardful.com", "lemonsqueezy.com",
}

// URL shapes that carry affiliate attribution.
var urlShapes = []string{"/aff_c", "/ref/", "?aff_id=", "&aff_id=", "?ref=", "&ref=", "?via=", "&via="}

// Query params redirectors use for the real destination.
var destParams = []string{"url", "u", "dest", "destination", "r", "target"}

// InContext reports whether the surrounding text reads like an
// affiliate pitch.
func InContext(context string) bool {
	lower := strings.ToLower(context)
	for _, ind := range indicators {
		if strings.Contains(lower, ind) {
			return true
		}
	}
	return false
}

// IsAffiliateURL reports whether the link itself carries affiliate
// attribution or goes through a known redirect platform.
func IsAffiliateURL(link string) bool {
	lower := strings.ToLower(link)
	for _, platform := range redirectPlatforms {
		if strings.Contains(lower, platform) {
			return true
		}
	}
	for _, shape := range urlShapes {
		if strings.Contains(lower, shape) {
			return true
		}
	}
	return false
}

// ResolveDestination tries to unwrap a redirect link to the real
// offer's apex domain. Returns the original link's apex when the
// destination cannot be recovered.
func ResolveDestination(link string) (string, bool) {
	parsed, err := url.Parse(link)
	if err != nil {
		return "", false
	}

	for _, param := range destParams {
		if target := parsed.Query().Get(param); target != "" {
			if apex, err := domainutil.Apex(target); err == nil {
				return apex, true
			}
		}
	}

	apex, err := domainutil.Apex(link)
	if err != nil {
		return "", false
	}
	return apex, false
}
