package checkout

import (
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/topupstore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/topupstore-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineItem is one purchasable selection in the basket. Quantity is always >= 1.
type LineItem struct {
	Label        string            `json:"label"`
	UnitPrice    decimal.Decimal   `json:"unit_price"`
	Quantity     int               `json:"quantity"`
	ProductName  string            `json:"product_name"`
	ProductImage string            `json:"product_image,omitempty"`
	ProductType  enums.ProductType `json:"product_type"`
}

// GameContext identifies the game account that every item of the basket is delivered to.
type GameContext struct {
	PlayerID      string `json:"player_id,omitempty"`
	ZoneID        string `json:"zone_id,omitempty"`
	AccountHandle string `json:"account_handle,omitempty"`
}

// Completeness counts the populated identity fields.
func (g GameContext) Completeness() int {
	n := 0
	for _, field := range []string{g.PlayerID, g.ZoneID, g.AccountHandle} {
		if strings.TrimSpace(field) != "" {
			n++
		}
	}
	return n
}

// RetryForm keeps what the buyer entered before a failed submission. Payment
// proof fields are intentionally absent and must be entered again.
type RetryForm struct {
	PaymentChannel enums.PaymentChannel `json:"payment_channel"`
}

// TerminalState records the last terminal outcome of the session.
type TerminalState struct {
	Outcome     enums.CheckoutOutcome `json:"outcome"`
	OrderID     string                `json:"order_id,omitempty"`
	FailedCount int                   `json:"failed_count"`
	FailedItems []LineItem            `json:"failed_items,omitempty"`
}

// Session is one checkout attempt owned by a single user.
type Session struct {
	ID                 string         `json:"id"`
	UserID             string         `json:"user_id"`
	LineItems          []LineItem     `json:"line_items"`
	Delivery           DeliveryState  `json:"delivery"`
	GameContext        *GameContext   `json:"game_context,omitempty"`
	OriginIsSharedCart bool           `json:"origin_is_shared_cart"`
	Submitting         bool           `json:"submitting"`
	SubmittingSince    time.Time      `json:"submitting_since"`
	Terminal           *TerminalState `json:"terminal,omitempty"`
	RetryForm          *RetryForm     `json:"retry_form,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
}

func newSession(userID string, items []LineItem, game *GameContext, fromCart bool, now time.Time) *Session {
	return &Session{
		ID:                 uuid.NewString(),
		UserID:             userID,
		LineItems:          items,
		Delivery:           Unselected(),
		GameContext:        game,
		OriginIsSharedCart: fromCart,
		CreatedAt:          now.UTC(),
	}
}

// Total recomputes the basket total from the current line items.
func (s *Session) Total() decimal.Decimal {
	return Total(s.LineItems)
}

// Complete reports whether the basket can be submitted at all.
func (s *Session) Complete() bool {
	return len(s.LineItems) > 0
}

// SetQuantity replaces the quantity of one line. A quantity of zero removes the line.
func (s *Session) SetQuantity(index, quantity int) (decimal.Decimal, error) {
	if err := s.checkIndex(index); err != nil {
		return decimal.Zero, err
	}
	if quantity < 0 {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
	}
	if quantity == 0 {
		return s.Remove(index)
	}
	s.LineItems[index].Quantity = quantity
	return s.Total(), nil
}

// Increment adds one unit to the line.
func (s *Session) Increment(index int) (decimal.Decimal, error) {
	if err := s.checkIndex(index); err != nil {
		return decimal.Zero, err
	}
	return s.SetQuantity(index, s.LineItems[index].Quantity+1)
}

// Decrement removes one unit from the line, dropping the line when it reaches zero.
func (s *Session) Decrement(index int) (decimal.Decimal, error) {
	if err := s.checkIndex(index); err != nil {
		return decimal.Zero, err
	}
	return s.SetQuantity(index, s.LineItems[index].Quantity-1)
}

// Remove drops the line entirely.
func (s *Session) Remove(index int) (decimal.Decimal, error) {
	if err := s.checkIndex(index); err != nil {
		return decimal.Zero, err
	}
	s.LineItems = append(s.LineItems[:index:index], s.LineItems[index+1:]...)
	return s.Total(), nil
}

func (s *Session) checkIndex(index int) error {
	if index < 0 || index >= len(s.LineItems) {
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("line item %d not found", index))
	}
	return nil
}

// stalledSubmission reports a Submitting flag that outlived the submit lock,
// left behind when the terminal state was never written.
func (s *Session) stalledSubmission(now time.Time) bool {
	return s.Submitting && now.Sub(s.SubmittingSince) >= submitLockTTL
}

// ensureEditable rejects changes while orders are being created or after a terminal outcome.
func (s *Session) ensureEditable() error {
	if s.Submitting {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "checkout is being submitted")
	}
	if s.Terminal != nil {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "checkout already finished").WithDetails(map[string]any{
			"outcome": s.Terminal.Outcome,
		})
	}
	return nil
}

func validateLineItems(items []LineItem) error {
	if len(items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one line item is required")
	}
	for i, item := range items {
		switch {
		case item.Quantity < 1:
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("line item %d: quantity must be at least 1", i))
		case item.UnitPrice.IsNegative():
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("line item %d: unit price must not be negative", i))
		case strings.TrimSpace(item.ProductName) == "":
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("line item %d: product name is required", i))
		case !item.ProductType.IsValid():
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("line item %d: invalid product type %q", i, item.ProductType))
		}
	}
	return nil
}
