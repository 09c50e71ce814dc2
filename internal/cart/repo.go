package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotFound is returned when the user has no cart document.
var ErrNotFound = errors.New("cart not found")

type collection interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

// Repository reads and clears shared carts stored in MongoDB.
type Repository struct {
	coll collection
	now  func() time.Time
}

// NewRepository binds the repository to the carts collection.
func NewRepository(coll collection) *Repository {
	return &Repository{coll: coll, now: time.Now}
}

// Load returns the user's cart or ErrNotFound.
func (r *Repository) Load(ctx context.Context, userID string) (*Cart, error) {
	var cart Cart
	if err := r.coll.FindOne(ctx, bson.M{"user_id": userID}).Decode(&cart); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	return &cart, nil
}

// Clear empties the user's cart. Clearing a missing cart is a no-op.
func (r *Repository) Clear(ctx context.Context, userID string) error {
	update := bson.M{
		"$set": bson.M{
			"items":      bson.A{},
			"updated_at": r.now(),
		},
	}
	if _, err := r.coll.UpdateOne(ctx, bson.M{"user_id": userID}, update); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

// SetOpen toggles the cart's visibility flag, creating the document if needed.
func (r *Repository) SetOpen(ctx context.Context, userID string, open bool) error {
	now := r.now()
	update := bson.M{
		"$set": bson.M{
			"open":       open,
			"updated_at": now,
		},
		"$setOnInsert": bson.M{
			"user_id":    userID,
			"items":      bson.A{},
			"created_at": now,
		},
	}
	if _, err := r.coll.UpdateOne(ctx, bson.M{"user_id": userID}, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("failed to update cart visibility: %w", err)
	}
	return nil
}
