package db

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SetProduct creates or replaces the product with the given ID.
func (ms *MongoStorage) SetProduct(product *Product) error {
	if product == nil || product.ID == 0 {
		return ErrInvalidData
	}
	ms.keysLock.Lock()
	defer ms.keysLock.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if product.Created.IsZero() {
		product.Created = time.Now()
	}
	opts := options.Replace().SetUpsert(true)
	_, err := ms.products.ReplaceOne(ctx, bson.M{"_id": product.ID}, product, opts)
	return err
}

// Product returns the product with the given ID, or ErrNotFound.
func (ms *MongoStorage) Product(productID uint64) (*Product, error) {
	ms.keysLock.RLock()
	defer ms.keysLock.RUnlock()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	product := &Product{}
	if err := ms.products.FindOne(ctx, bson.M{"_id": productID}).Decode(product); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return product, nil
}

// Products returns the whole catalog.
func (ms *MongoStorage) Products() ([]*Product, error) {
	ms.keysLock.RLock()
	defer ms.keysLock.RUnlock()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	cursor, err := ms.products.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = cursor.Close(ctx) }()
	var products []*Product
	if err := cursor.All(ctx, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// DelProduct removes the product with the given ID.
func (ms *MongoStorage) DelProduct(productID uint64) error {
	ms.keysLock.Lock()
	defer ms.keysLock.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := ms.products.DeleteOne(ctx, bson.M{"_id": productID})
	return err
}
