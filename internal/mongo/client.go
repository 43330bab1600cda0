package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type Client struct {
	DB *mongo.Database
	c  *mongo.Client
}

// NewClient connects and pings the server, retrying the ping with exponential
// backoff until connectTimeout elapses.
func NewClient(ctx context.Context, uri, db string, connectTimeout time.Duration) (*Client, error) {
	cl, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	err = backoff.Retry(func() error {
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return cl.Ping(pctx, readpref.Primary())
	}, backoff.WithContext(backoff.NewExponentialBackOff(backoff.WithMaxElapsedTime(connectTimeout)), ctx))
	if err != nil {
		_ = cl.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping %s: %w", uri, err)
	}
	return &Client{DB: cl.Database(db), c: cl}, nil

}
func (c *Client) Close(ctx context.Context) { _ = c.c.Disconnect(ctx) }
