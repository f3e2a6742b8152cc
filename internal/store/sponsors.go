package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const sponsorCollection = "sponsornews"

// Contact method and analysis status values stored on a sponsor.
const (
	ContactMethodEmail = "email"
	ContactMethodNone  = "none"

	AnalysisPending      = "pending"
	AnalysisComplete     = "complete"
	AnalysisManualReview = "manual_review"
	AnalysisRejected     = "rejected"
)

// NewsletterAssociation records one newsletter a sponsor has appeared
// in. A sponsor carries at most one association per newsletter name.
type NewsletterAssociation struct {
	NewsletterName    string    `bson:"newsletterName"`
	EstimatedAudience int       `bson:"estimatedAudience"`
	ContentTags       []string  `bson:"contentTags,omitempty"`
	DateSponsored     time.Time `bson:"dateSponsored"`
	EmailAddress      string    `bson:"emailAddress,omitempty"`
}

// Sponsor is the stored record, keyed by root domain.
type Sponsor struct {
	ID                   primitive.ObjectID      `bson:"_id,omitempty"`
	SponsorName          string                  `bson:"sponsorName"`
	SponsorLink          string                  `bson:"sponsorLink"`
	RootDomain           string                  `bson:"rootDomain"`
	Tags                 []string                `bson:"tags,omitempty"`
	NewslettersSponsored []NewsletterAssociation `bson:"newslettersSponsored,omitempty"`
	SponsorEmail         string                  `bson:"sponsorEmail,omitempty"`
	BusinessContact      string                  `bson:"businessContact,omitempty"`
	ContactMethod        string                  `bson:"contactMethod"`
	ContactPersonName    string                  `bson:"contactPersonName,omitempty"`
	ContactPersonTitle   string                  `bson:"contactPersonTitle,omitempty"`
	ContactType          string                  `bson:"contactType,omitempty"`
	Confidence           float64                 `bson:"confidence"`
	AnalysisStatus       string                  `bson:"analysisStatus"`
	DiscoveryMethod      string                  `bson:"discoveryMethod"`
	Status               string                  `bson:"status"`
	Evidence             string                  `bson:"evidence,omitempty"`
	EstimatedSubscribers int                     `bson:"estimatedSubscribers,omitempty"`
	DateAdded            time.Time               `bson:"dateAdded"`
	LastAnalyzed         time.Time               `bson:"lastAnalyzed"`
}

// Outcome of an upsert.
type Outcome string

const (
	OutcomeCreated    Outcome = "created"    // new sponsor record
	OutcomeAssociated Outcome = "associated" // existing sponsor, new newsletter
	OutcomeUnchanged  Outcome = "unchanged"  // association already present
)

// Sponsors is the sponsor repository.
type Sponsors struct {
	collection *mongo.Collection
}

func (r *Sponsors) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "rootDomain", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "analysisStatus", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "newslettersSponsored.newsletterName", Value: 1}},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create sponsor indexes: %w", err)
	}
	return nil
}

// FindByDomain returns the sponsor for a root domain, nil when absent.
func (r *Sponsors) FindByDomain(ctx context.Context, rootDomain string) (*Sponsor, error) {
	var s Sponsor
	err := r.collection.FindOne(ctx, bson.M{"rootDomain": rootDomain}).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find sponsor %s: %w", rootDomain, err)
	}
	return &s, nil
}

// Upsert applies the merge rules: a new domain inserts the record as
// given (tags already capped at creation); an existing domain gains
// the newsletter association unless it already has one. Contact fields
// are enriched only when absent and tags merged as a capped set union
// regardless of whether the association is new, so a re-discovery by
// an already-associated newsletter still fills in a missing contact.
// Idempotent per (domain, newsletter).
func (r *Sponsors) Upsert(ctx context.Context, incoming *Sponsor) (Outcome, error) {
	now := time.Now().UTC()

	existing, err := r.FindByDomain(ctx, incoming.RootDomain)
	if err != nil {
		return "", err
	}

	if existing == nil {
		incoming.DateAdded = now
		incoming.LastAnalyzed = now
		applyCreateDefaults(incoming)
		if _, err := r.collection.InsertOne(ctx, incoming); err != nil {
			return "", fmt.Errorf("failed to insert sponsor %s: %w", incoming.RootDomain, err)
		}
		return OutcomeCreated, nil
	}

	set := bson.M{
		"lastAnalyzed": now,
		"tags":         MergeTags(existing.Tags, incoming.Tags),
	}
	for k, v := range contactEnrichment(existing, incoming) {
		set[k] = v
	}

	assoc := latestAssociation(incoming)
	if assoc == nil || HasAssociation(existing, assoc.NewsletterName) {
		_, err := r.collection.UpdateByID(ctx, existing.ID, bson.M{"$set": set})
		if err != nil {
			return "", fmt.Errorf("failed to update sponsor %s: %w", incoming.RootDomain, err)
		}
		return OutcomeUnchanged, nil
	}

	_, err = r.collection.UpdateByID(ctx, existing.ID, bson.M{
		"$push": bson.M{"newslettersSponsored": assoc},
		"$set":  set,
	})
	if err != nil {
		return "", fmt.Errorf("failed to associate sponsor %s: %w", incoming.RootDomain, err)
	}
	return OutcomeAssociated, nil
}

// FindPending returns sponsors awaiting contact discovery, oldest
// first, for re-analysis.
func (r *Sponsors) FindPending(ctx context.Context, limit int) ([]Sponsor, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "lastAnalyzed", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{"analysisStatus": AnalysisPending}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending sponsors: %w", err)
	}
	defer cursor.Close(ctx)

	var sponsors []Sponsor
	if err := cursor.All(ctx, &sponsors); err != nil {
		return nil, fmt.Errorf("failed to decode pending sponsors: %w", err)
	}
	return sponsors, nil
}

// UpdateContact writes discovered contact details onto an existing
// record.
func (r *Sponsors) UpdateContact(ctx context.Context, rootDomain string, set bson.M) error {
	set["lastAnalyzed"] = time.Now().UTC()
	_, err := r.collection.UpdateOne(ctx, bson.M{"rootDomain": rootDomain}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update contact for %s: %w", rootDomain, err)
	}
	return nil
}

// MaxAudienceForNewsletter returns the largest stored audience figure
// for a newsletter across record generations (older records used
// different field names).
func (r *Sponsors) MaxAudienceForNewsletter(ctx context.Context, newsletter string) (int, error) {
	cursor, err := r.collection.Find(ctx, bson.M{
		"$or": bson.A{
			bson.M{"newsletterSponsored": newsletter},
			bson.M{"sourceNewsletter": newsletter},
			bson.M{"newslettersSponsored.newsletterName": newsletter},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to query audience for %s: %w", newsletter, err)
	}
	defer cursor.Close(ctx)

	best := 0
	for cursor.Next(ctx) {
		var s Sponsor
		if err := cursor.Decode(&s); err != nil {
			continue
		}
		if s.EstimatedSubscribers > best {
			best = s.EstimatedSubscribers
		}
		for _, a := range s.NewslettersSponsored {
			if a.NewsletterName == newsletter && a.EstimatedAudience > best {
				best = a.EstimatedAudience
			}
		}
	}
	return best, cursor.Err()
}

// Stats are the repository counters exposed by the API.
type Stats struct {
	Total        int64 `json:"total"`
	Pending      int64 `json:"pending"`
	Complete     int64 `json:"complete"`
	ManualReview int64 `json:"manualReview"`
}

func (r *Sponsors) Stats(ctx context.Context) (*Stats, error) {
	var stats Stats
	var err error

	if stats.Total, err = r.collection.CountDocuments(ctx, bson.M{}); err != nil {
		return nil, fmt.Errorf("failed to count sponsors: %w", err)
	}
	if stats.Pending, err = r.collection.CountDocuments(ctx, bson.M{"analysisStatus": AnalysisPending}); err != nil {
		return nil, err
	}
	if stats.Complete, err = r.collection.CountDocuments(ctx, bson.M{"analysisStatus": AnalysisComplete}); err != nil {
		return nil, err
	}
	if stats.ManualReview, err = r.collection.CountDocuments(ctx, bson.M{"analysisStatus": AnalysisManualReview}); err != nil {
		return nil, err
	}
	return &stats, nil
}

func latestAssociation(s *Sponsor) *NewsletterAssociation {
	if len(s.NewslettersSponsored) == 0 {
		return nil
	}
	return &s.NewslettersSponsored[len(s.NewslettersSponsored)-1]
}
