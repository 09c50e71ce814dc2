package checkout

import (
	"context"
	"time"

	"github.com/angelmondragon/topupstore-backend/internal/cart"
	"github.com/angelmondragon/topupstore-backend/internal/orders"
	"github.com/angelmondragon/topupstore-backend/internal/users"
	"github.com/angelmondragon/topupstore-backend/pkg/enums"
)

// UserDirectory resolves the authenticated user's account.
type UserDirectory interface {
	CurrentUser(ctx context.Context, userID string) (*users.Account, error)
}

// ProfileWriter stores a confirmed delivery contact for reuse in later checkouts.
type ProfileWriter interface {
	SaveDeliveryContact(ctx context.Context, userID string, method enums.DeliveryMethod, value string) error
}

// OrderCreator creates one remote order record and returns its id.
type OrderCreator interface {
	Create(ctx context.Context, rec orders.Record) (string, error)
}

// SharedCart is the user's multi-item cart.
type SharedCart interface {
	Load(ctx context.Context, userID string) (*cart.Cart, error)
	Clear(ctx context.Context, userID string) error
	SetOpen(ctx context.Context, userID string, open bool) error
}

// DraftStore persists abandoned sessions. Take removes the draft as it reads it
// and returns (nil, nil) when there is none.
type DraftStore interface {
	Take(ctx context.Context, userID string) (*Session, error)
	Save(ctx context.Context, sess *Session) error
}

// SessionStore holds the active session per user.
type SessionStore interface {
	Get(ctx context.Context, userID string) (*Session, error)
	Put(ctx context.Context, sess *Session) error
	Delete(ctx context.Context, userID string) error
	AcquireSubmitLock(ctx context.Context, userID string) (bool, error)
	ReleaseSubmitLock(ctx context.Context, userID string) error
}

// PlacedOrder is one successfully created order record.
type PlacedOrder struct {
	OrderID string
	Record  orders.Record
}

// OrderNotifier announces placed orders to fulfillment.
type OrderNotifier interface {
	NotifyPlaced(ctx context.Context, placed []PlacedOrder) error
}

// Recorder receives submission metrics.
type Recorder interface {
	ObserveRecordCreation(ok bool)
	ObserveSubmit(outcome string, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveRecordCreation(bool) {}

func (nopRecorder) ObserveSubmit(string, time.Duration) {}
