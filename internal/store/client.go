// Package store persists sponsors, affiliates, and denied domains in
// MongoDB. The upsert semantics are the contract: one record per root
// domain, one association per newsletter.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/sponsorscan/sponsorscan/internal/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const connectTimeout = 10 * time.Second

// Client owns the Mongo connection and hands out repositories.
type Client struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewClient connects, pings, and ensures indexes. A failure here is a
// configuration problem and aborts startup.
func NewClient(ctx context.Context, cfg config.MongoConfig) (*Client, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(20).
		SetMinPoolSize(2).
		SetMaxConnIdleTime(30 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	c := &Client{client: client, db: client.Database(cfg.Database)}
	if err := c.Sponsors().EnsureIndexes(ctx); err != nil {
		return nil, err
	}
	if err := c.Affiliates().EnsureIndexes(ctx); err != nil {
		return nil, err
	}
	if err := c.DeniedDomains().EnsureIndexes(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

func (c *Client) Sponsors() *Sponsors {
	return &Sponsors{collection: c.db.Collection(sponsorCollection)}
}

func (c *Client) Affiliates() *Affiliates {
	return &Affiliates{collection: c.db.Collection(affiliateCollection)}
}

func (c *Client) DeniedDomains() *DeniedDomains {
	return &DeniedDomains{collection: c.db.Collection(deniedCollection)}
}
