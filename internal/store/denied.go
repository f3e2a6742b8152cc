package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const deniedCollection = "denieddomains"

// DeniedDomain is an operator-managed block entry. The pipeline only
// reads this collection; entries are added out of band.
type DeniedDomain struct {
	RootDomain string    `bson:"rootDomain"`
	Reason     string    `bson:"reason,omitempty"`
	AddedBy    string    `bson:"addedBy,omitempty"`
	DateAdded  time.Time `bson:"dateAdded"`
}

type DeniedDomains struct {
	collection *mongo.Collection
}

func (r *DeniedDomains) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "rootDomain", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create denied domain index: %w", err)
	}
	return nil
}

// IsDenied checks the denylist by lowercased root domain.
func (r *DeniedDomains) IsDenied(ctx context.Context, rootDomain string) (bool, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{
		"rootDomain": strings.ToLower(rootDomain),
	})
	if err != nil {
		return false, fmt.Errorf("failed to check denied domain %s: %w", rootDomain, err)
	}
	return count > 0, nil
}
