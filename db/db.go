// Package db provides the MongoDB storage layer for the Snip backend:
// the product catalog, the persisted payment gateway settings, the product
// assets and the purchase ledger.
package db

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoStorage uses an external MongoDB service for storing products,
// gateway settings, download assets and fulfilled purchases.
type MongoStorage struct {
	client   *mongo.Client
	keysLock sync.RWMutex

	products  *mongo.Collection
	settings  *mongo.Collection
	purchases *mongo.Collection
	assets    *mongo.Collection
}

// New connects to MongoDB and initializes the collections and indexes.
func New(url, database string) (*MongoStorage, error) {
	ms := &MongoStorage{}
	if url == "" {
		return nil, fmt.Errorf("mongo URL is not defined")
	}
	if database == "" {
		return nil, fmt.Errorf("mongo database is not defined")
	}
	log.Info().Str("url", url).Str("database", database).Msg("connecting to mongodb")
	// preparing connection
	opts := options.Client()
	opts.ApplyURI(url)
	opts.SetMaxConnecting(200)
	timeout := time.Second * 10
	opts.ConnectTimeout = &timeout
	// create a new client with the connection options
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to mongodb: %w", err)
	}
	// check if the connection is successful
	ctx, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("cannot connect to mongodb: %w", err)
	}
	// init the collections
	ms.client = client
	ms.initCollections(database)
	// if reset flag is enabled, drop the database documents and recreate
	// indexes, else just create indexes
	if reset := os.Getenv("SNIP_MONGO_RESET_DB"); reset != "" {
		if err := ms.Reset(); err != nil {
			return nil, err
		}
	} else if err := ms.createIndexes(); err != nil {
		return nil, err
	}
	return ms, nil
}

// Close disconnects the MongoDB client.
func (ms *MongoStorage) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ms.client.Disconnect(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to disconnect mongodb client")
	}
}

// Reset drops all collections and recreates the indexes.
func (ms *MongoStorage) Reset() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, col := range []*mongo.Collection{ms.products, ms.settings, ms.purchases, ms.assets} {
		if err := col.Drop(ctx); err != nil {
			return err
		}
	}
	return ms.createIndexes()
}

func (ms *MongoStorage) initCollections(database string) {
	db := ms.client.Database(database)
	ms.products = db.Collection("products")
	ms.settings = db.Collection("settings")
	ms.purchases = db.Collection("purchases")
	ms.assets = db.Collection("assets")
}

func (ms *MongoStorage) createIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// purchases are keyed by checkout session id (_id), which is unique by
	// construction; index payer email for lookups
	_, err := ms.purchases.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "payerEmail", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("cannot create purchases index: %w", err)
	}
	return nil
}
