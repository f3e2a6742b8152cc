package store

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

const (
	maxTagsOnRecord = 10
	maxTagsAtCreate = 3
)

// HasAssociation reports whether the sponsor already records the
// newsletter, compared case-insensitively.
func HasAssociation(s *Sponsor, newsletter string) bool {
	want := strings.ToLower(strings.TrimSpace(newsletter))
	for _, a := range s.NewslettersSponsored {
		if strings.ToLower(strings.TrimSpace(a.NewsletterName)) == want {
			return true
		}
	}
	return false
}

// MergeTags unions incoming tags into the existing list, preserving
// existing order, deduplicating case-insensitively, capped at
// maxTagsOnRecord. Existing tags are never dropped by a merge.
func MergeTags(existing, incoming []string) []string {
	merged := make([]string, 0, len(existing)+len(incoming))
	seen := make(map[string]bool)

	for _, t := range existing {
		key := strings.ToLower(strings.TrimSpace(t))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		merged = append(merged, t)
	}
	for _, t := range incoming {
		if len(merged) >= maxTagsOnRecord {
			break
		}
		key := strings.ToLower(strings.TrimSpace(t))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		merged = append(merged, t)
	}

	if len(merged) > maxTagsOnRecord {
		merged = merged[:maxTagsOnRecord]
	}
	return merged
}

// applyCreateDefaults normalizes a record at first insert: tags capped
// at maxTagsAtCreate, enum fields defaulted.
func applyCreateDefaults(s *Sponsor) {
	if len(s.Tags) > maxTagsAtCreate {
		s.Tags = s.Tags[:maxTagsAtCreate]
	}
	if s.AnalysisStatus == "" {
		s.AnalysisStatus = AnalysisPending
	}
	if s.DiscoveryMethod == "" {
		s.DiscoveryMethod = "email_scraper"
	}
	if s.Status == "" {
		s.Status = "pending"
	}
	if s.ContactMethod == "" {
		s.ContactMethod = ContactMethodNone
	}
}

// contactEnrichment returns the $set fields for contact data the
// existing record lacks. Contact details are enrich-only: an upsert
// never overwrites a known contact.
func contactEnrichment(existing, incoming *Sponsor) bson.M {
	set := bson.M{}
	if existing.SponsorEmail == "" && incoming.SponsorEmail != "" {
		set["sponsorEmail"] = incoming.SponsorEmail
		set["contactMethod"] = ContactMethodEmail
	}
	if existing.BusinessContact == "" && incoming.BusinessContact != "" {
		set["businessContact"] = incoming.BusinessContact
	}
	if existing.ContactPersonName == "" && incoming.ContactPersonName != "" {
		set["contactPersonName"] = incoming.ContactPersonName
	}
	if existing.ContactPersonTitle == "" && incoming.ContactPersonTitle != "" {
		set["contactPersonTitle"] = incoming.ContactPersonTitle
	}
	if existing.ContactType == "" && incoming.ContactType != "" {
		set["contactType"] = incoming.ContactType
	}
	// Gaining an email takes the record out of the pending queue.
	if _, gained := set["sponsorEmail"]; gained &&
		existing.AnalysisStatus == AnalysisPending && incoming.AnalysisStatus != "" {
		set["analysisStatus"] = incoming.AnalysisStatus
	}
	return set
}
