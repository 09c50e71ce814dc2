package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/topupstore-backend/internal/cart"
	"github.com/angelmondragon/topupstore-backend/pkg/logger"
	pkgmongo "github.com/angelmondragon/topupstore-backend/pkg/mongo"
)

// Payload is the basket handed over by a product page or the cart page.
type Payload struct {
	LineItems          []LineItem   `json:"line_items"`
	GameContext        *GameContext `json:"game_context,omitempty"`
	OriginIsSharedCart bool         `json:"origin_is_shared_cart"`
}

// ResolveInput carries the optional navigation payload for one resolution.
type ResolveInput struct {
	UserID  string
	Payload *Payload
}

type source struct {
	name    string
	resolve func(ctx context.Context, userID string) (*Session, bool)
}

// Resolver picks the basket for a new checkout: navigation payload, then a saved
// draft, then the shared cart. Sources are never merged.
type Resolver struct {
	drafts DraftStore
	cart   SharedCart
	logg   *logger.Logger
	grace  time.Duration
	poll   time.Duration
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewResolver builds a resolver that keeps polling the draft and cart sources for
// up to grace before reporting that there is no basket.
func NewResolver(drafts DraftStore, sharedCart SharedCart, logg *logger.Logger, grace, poll time.Duration) (*Resolver, error) {
	if drafts == nil {
		return nil, fmt.Errorf("draft store required")
	}
	if sharedCart == nil {
		return nil, fmt.Errorf("shared cart required")
	}
	if poll <= 0 {
		return nil, fmt.Errorf("poll interval must be positive")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Resolver{
		drafts: drafts,
		cart:   sharedCart,
		logg:   logg,
		grace:  grace,
		poll:   poll,
		now:    time.Now,
		sleep:  sleepContext,
	}, nil
}

// Resolve never fails: source errors are logged and the next source is tried.
func (r *Resolver) Resolve(ctx context.Context, in ResolveInput) (*Session, bool) {
	if in.Payload != nil {
		return r.fromPayload(in.UserID, in.Payload), true
	}

	sources := []source{
		{name: "draft", resolve: r.fromDraft},
		{name: "cart", resolve: r.fromCart},
	}
	deadline := r.now().Add(r.grace)
	for {
		for _, src := range sources {
			if sess, ok := src.resolve(ctx, in.UserID); ok {
				r.logg.Debug(r.logg.WithField(ctx, "source", src.name), "checkout basket resolved")
				return sess, true
			}
		}
		if !r.now().Before(deadline) {
			return nil, false
		}
		if err := r.sleep(ctx, r.poll); err != nil {
			return nil, false
		}
	}
}

func (r *Resolver) fromPayload(userID string, p *Payload) *Session {
	items := append([]LineItem(nil), p.LineItems...)
	var game *GameContext
	if p.GameContext != nil {
		g := *p.GameContext
		game = &g
	}
	return newSession(userID, items, game, p.OriginIsSharedCart, r.now())
}

func (r *Resolver) fromDraft(ctx context.Context, userID string) (*Session, bool) {
	draft, err := r.drafts.Take(ctx, userID)
	if err != nil {
		r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "checkout draft unusable, falling back")
		return nil, false
	}
	if draft == nil {
		return nil, false
	}
	if len(draft.LineItems) == 0 || draft.UserID != userID {
		r.logg.Warn(r.logg.WithFields(ctx, map[string]any{
			"draft_id":    draft.ID,
			"draft_owner": draft.UserID,
			"line_items":  len(draft.LineItems),
		}), "checkout draft discarded, falling back")
		return nil, false
	}
	draft.Submitting = false
	draft.SubmittingSince = time.Time{}
	draft.Terminal = nil
	return draft, true
}

func (r *Resolver) fromCart(ctx context.Context, userID string) (*Session, bool) {
	c, err := r.cart.Load(ctx, userID)
	if err != nil {
		if !errors.Is(err, cart.ErrNotFound) {
			r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "shared cart unavailable, falling back")
		}
		return nil, false
	}
	if c.IsEmpty() {
		return nil, false
	}

	items := make([]LineItem, 0, len(c.Items))
	for i, entry := range c.Items {
		price, err := pkgmongo.DecimalFromBSON(entry.UnitPrice)
		if err != nil || price.IsNegative() || entry.Quantity < 1 || !entry.ProductType.IsValid() {
			r.logg.Warn(r.logg.WithField(ctx, "cart_index", i), "skipping malformed cart entry")
			continue
		}
		items = append(items, LineItem{
			Label:        entry.Label,
			UnitPrice:    price,
			Quantity:     entry.Quantity,
			ProductName:  entry.ProductName,
			ProductImage: entry.ProductImage,
			ProductType:  entry.ProductType,
		})
	}
	if len(items) == 0 {
		return nil, false
	}
	return newSession(userID, items, gameContextFromCart(c.Items), true, r.now()), true
}

// gameContextFromCart picks the entry with the most identity fields populated.
// Ties keep the earliest entry.
func gameContextFromCart(entries []cart.Item) *GameContext {
	var best *GameContext
	bestScore := 0
	for _, entry := range entries {
		candidate := GameContext{
			PlayerID:      entry.PlayerID,
			ZoneID:        entry.ZoneID,
			AccountHandle: entry.AccountHandle,
		}
		if score := candidate.Completeness(); score > bestScore {
			best = &candidate
			bestScore = score
		}
	}
	return best
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
