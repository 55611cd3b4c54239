package database

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Config holds document-store connection settings.
type Config struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// ConfigFromEnv reads Mongo config from environment variables. The URI
// defaults to a local instance; credentialed URIs must always come from the
// environment.
func ConfigFromEnv() Config {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}
	db := os.Getenv("MONGODB_DATABASE")
	if db == "" {
		db = "agristack"
	}
	return Config{URI: uri, Database: db, Timeout: 5 * time.Second}
}

// Connect opens a client and verifies connectivity with a ping.
func Connect(cfg Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}
