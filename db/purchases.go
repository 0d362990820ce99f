package db

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// ClaimPurchase atomically records a purchase keyed by its checkout session
// id. It returns false when the session was already claimed, which is how
// redelivered webhook events are kept from fulfilling twice: the insert
// either wins or hits the duplicate key, there is no read-then-write window.
func (ms *MongoStorage) ClaimPurchase(purchase *Purchase) (bool, error) {
	if purchase == nil || purchase.SessionID == "" {
		return false, ErrInvalidData
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if purchase.CreatedAt.IsZero() {
		purchase.CreatedAt = time.Now()
	}
	if _, err := ms.purchases.InsertOne(ctx, purchase); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ReleasePurchase removes a claimed purchase so a later redelivery can retry
// fulfillment. Used when the fulfillment step fails after the claim.
func (ms *MongoStorage) ReleasePurchase(sessionID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := ms.purchases.DeleteOne(ctx, bson.M{"_id": sessionID})
	return err
}

// Purchase returns the recorded purchase for a checkout session id.
func (ms *MongoStorage) Purchase(sessionID string) (*Purchase, error) {
	ms.keysLock.RLock()
	defer ms.keysLock.RUnlock()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	purchase := &Purchase{}
	if err := ms.purchases.FindOne(ctx, bson.M{"_id": sessionID}).Decode(purchase); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return purchase, nil
}

// PurchasesByEmail returns all purchases made by the given payer.
func (ms *MongoStorage) PurchasesByEmail(email string) ([]*Purchase, error) {
	ms.keysLock.RLock()
	defer ms.keysLock.RUnlock()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	cursor, err := ms.purchases.Find(ctx, bson.M{"payerEmail": email})
	if err != nil {
		return nil, err
	}
	defer func() { _ = cursor.Close(ctx) }()
	var purchases []*Purchase
	if err := cursor.All(ctx, &purchases); err != nil {
		return nil, err
	}
	return purchases, nil
}
