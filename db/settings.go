package db

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// The settings collection holds a single gateway configuration document.
const gatewaySettingsKey = "gateway"

// SetGatewaySettings stores the payment gateway configuration.
func (ms *MongoStorage) SetGatewaySettings(settings *GatewaySettings) error {
	if settings == nil {
		return ErrInvalidData
	}
	ms.keysLock.Lock()
	defer ms.keysLock.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	doc := bson.M{"_id": gatewaySettingsKey, "settings": settings}
	opts := options.Replace().SetUpsert(true)
	_, err := ms.settings.ReplaceOne(ctx, bson.M{"_id": gatewaySettingsKey}, doc, opts)
	return err
}

// GatewaySettings returns the stored gateway configuration. If none has
// been saved yet it returns an empty settings struct, which keeps the card
// checkout path inert until the site owner fills in the keys.
func (ms *MongoStorage) GatewaySettings() (*GatewaySettings, error) {
	ms.keysLock.RLock()
	defer ms.keysLock.RUnlock()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var doc struct {
		Settings GatewaySettings `bson:"settings"`
	}
	if err := ms.settings.FindOne(ctx, bson.M{"_id": gatewaySettingsKey}).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return &GatewaySettings{}, nil
		}
		return nil, err
	}
	return &doc.Settings, nil
}
