package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Storage owns the client connection shared by the repositories.
type Storage struct {
	client   *mongo.Client
	database *mongo.Database
}

// Config carries the connection settings.
type Config struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// New connects and pings the deployment before returning.
func New(cfg Config) (*Storage, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &Storage{client: client, database: client.Database(cfg.Database)}, nil
}

// Close disconnects the underlying client.
func (s *Storage) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Database exposes the selected database for repository construction.
func (s *Storage) Database() *mongo.Database {
	return s.database
}

// StartSession opens a client session for transactional work.
func (s *Storage) StartSession() (mongo.Session, error) {
	return s.client.StartSession()
}

// CreateIndexes sets up the order lookup and throttling indexes.
func (s *Storage) CreateIndexes(ctx context.Context) error {
	orders := s.database.Collection(collectionOrders)
	_, err := orders.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "code", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "pickup_at", Value: 1}, {Key: "status", Value: 1}},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create order indexes: %w", err)
	}

	audits := s.database.Collection(collectionAuditLogs)
	_, err = audits.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "order_id", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create audit indexes: %w", err)
	}

	return nil
}
