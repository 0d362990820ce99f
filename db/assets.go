package db

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SetAsset stores a download file.
func (ms *MongoStorage) SetAsset(asset *Asset) error {
	if asset == nil || asset.ID == "" || len(asset.Data) == 0 {
		return ErrInvalidData
	}
	ms.keysLock.Lock()
	defer ms.keysLock.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if asset.CreatedAt.IsZero() {
		asset.CreatedAt = time.Now()
	}
	opts := options.Replace().SetUpsert(true)
	_, err := ms.assets.ReplaceOne(ctx, bson.M{"_id": asset.ID}, asset, opts)
	return err
}

// Asset returns the stored download file with the given id, or ErrNotFound.
func (ms *MongoStorage) Asset(assetID string) (*Asset, error) {
	ms.keysLock.RLock()
	defer ms.keysLock.RUnlock()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	asset := &Asset{}
	if err := ms.assets.FindOne(ctx, bson.M{"_id": assetID}).Decode(asset); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return asset, nil
}
