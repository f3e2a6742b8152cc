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

const affiliateCollection = "affiliates"

// AffiliateAssociation mirrors NewsletterAssociation for the affiliate
// namespace.
type AffiliateAssociation struct {
	NewsletterName    string    `bson:"newsletterName"`
	EstimatedAudience int       `bson:"estimatedAudience"`
	ContentTags       []string  `bson:"contentTags,omitempty"`
	DateAffiliated    time.Time `bson:"dateAffiliated"`
}

// Affiliate is a company promoted through affiliate links. Kept apart
// from sponsors so outreach lists stay clean.
type Affiliate struct {
	ID                    primitive.ObjectID     `bson:"_id,omitempty"`
	AffiliateName         string                 `bson:"affiliateName"`
	AffiliateLink         string                 `bson:"affiliateLink"`
	RootDomain            string                 `bson:"rootDomain"`
	Tags                  []string               `bson:"tags,omitempty"`
	AffiliatedNewsletters []AffiliateAssociation `bson:"affiliatedNewsletters,omitempty"`
	CommissionInfo        string                 `bson:"commissionInfo,omitempty"`
	Status                string                 `bson:"status"`
	DateAdded             time.Time              `bson:"dateAdded"`
}

type Affiliates struct {
	collection *mongo.Collection
}

func (r *Affiliates) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "rootDomain", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create affiliate index: %w", err)
	}
	return nil
}

// Upsert follows the sponsor rules in the affiliate namespace: one
// record per domain, one association per newsletter.
func (r *Affiliates) Upsert(ctx context.Context, incoming *Affiliate) (Outcome, error) {
	now := time.Now().UTC()

	var existing Affiliate
	err := r.collection.FindOne(ctx, bson.M{"rootDomain": incoming.RootDomain}).Decode(&existing)
	if errors.Is(err, mongo.ErrNoDocuments) {
		incoming.DateAdded = now
		if incoming.Status == "" {
			incoming.Status = "pending"
		}
		if len(incoming.Tags) > maxTagsAtCreate {
			incoming.Tags = incoming.Tags[:maxTagsAtCreate]
		}
		if _, err := r.collection.InsertOne(ctx, incoming); err != nil {
			return "", fmt.Errorf("failed to insert affiliate %s: %w", incoming.RootDomain, err)
		}
		return OutcomeCreated, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to find affiliate %s: %w", incoming.RootDomain, err)
	}

	if len(incoming.AffiliatedNewsletters) == 0 {
		return OutcomeUnchanged, nil
	}
	assoc := incoming.AffiliatedNewsletters[len(incoming.AffiliatedNewsletters)-1]
	for _, a := range existing.AffiliatedNewsletters {
		if a.NewsletterName == assoc.NewsletterName {
			return OutcomeUnchanged, nil
		}
	}

	_, err = r.collection.UpdateByID(ctx, existing.ID, bson.M{
		"$push": bson.M{"affiliatedNewsletters": assoc},
		"$set":  bson.M{"tags": MergeTags(existing.Tags, incoming.Tags)},
	})
	if err != nil {
		return "", fmt.Errorf("failed to associate affiliate %s: %w", incoming.RootDomain, err)
	}
	return OutcomeAssociated, nil
}
