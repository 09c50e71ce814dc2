package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/angelmondragon/topupstore-backend/internal/checkout"
	"github.com/angelmondragon/topupstore-backend/internal/orders"
	"github.com/angelmondragon/topupstore-backend/pkg/enums"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

type stubResult struct {
	id  string
	err error
}

func (r stubResult) Get(context.Context) (string, error) {
	return r.id, r.err
}

type stubPublisher struct {
	messages []*gcppubsub.Message
	failFor  map[string]error
}

func (p *stubPublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	p.messages = append(p.messages, msg)
	if err := p.failFor[msg.Attributes["order_id"]]; err != nil {
		return stubResult{err: err}
	}
	return stubResult{id: "msg-" + msg.Attributes["order_id"]}
}

func placedOrder(id, label string) checkout.PlacedOrder {
	return checkout.PlacedOrder{
		OrderID: id,
		Record: orders.Record{
			UserID:         "user-1",
			CheckoutID:     "chk-1",
			ProductName:    "Diamonds",
			ProductType:    enums.ProductTypeGameCredit,
			ItemLabel:      label,
			Quantity:       2,
			UnitPrice:      decimal.NewFromInt(100),
			TotalAmount:    decimal.NewFromInt(200),
			Delivery:       orders.DeliveryPayload{Method: enums.DeliveryMethodEmail, ContactEmail: "buyer@example.com", PlayerID: "p1"},
			PaymentChannel: enums.PaymentChannelQRIS,
			Status:         enums.OrderStatusPending,
			CreatedAt:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		},
	}
}

func TestNotifyPlacedPublishesEnvelopePerOrder(t *testing.T) {
	pub := &stubPublisher{}
	n := newNotifier(pub, nil)
	n.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 1, 0, time.UTC) }

	if err := n.NotifyPlaced(context.Background(), []checkout.PlacedOrder{placedOrder("o1", "100 gems"), placedOrder("o2", "500 gems")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pub.messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(pub.messages))
	}

	msg := pub.messages[0]
	if msg.Attributes["event_type"] != EventOrderPlaced || msg.Attributes["order_id"] != "o1" || msg.Attributes["checkout_id"] != "chk-1" {
		t.Fatalf("unexpected attributes: %v", msg.Attributes)
	}
	if msg.Attributes["event_id"] == "" || msg.Attributes["event_id"] == pub.messages[1].Attributes["event_id"] {
		t.Fatalf("expected unique event ids")
	}

	var env Envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.Version != envelopeVersion || env.EventID != msg.Attributes["event_id"] {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	var data OrderPlaced
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if data.OrderID != "o1" || data.ItemLabel != "100 gems" || !data.TotalAmount.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("unexpected payload: %+v", data)
	}
	if data.Delivery.PlayerID != "p1" || data.PaymentChannel != enums.PaymentChannelQRIS {
		t.Fatalf("delivery details not carried: %+v", data)
	}
}

func TestNotifyPlacedCombinesFailures(t *testing.T) {
	pub := &stubPublisher{failFor: map[string]error{"o1": errors.New("unavailable"), "o3": errors.New("deadline")}}
	n := newNotifier(pub, nil)

	err := n.NotifyPlaced(context.Background(), []checkout.PlacedOrder{placedOrder("o1", "a"), placedOrder("o2", "b"), placedOrder("o3", "c")})
	if err == nil {
		t.Fatalf("expected error")
	}
	if got := len(multierr.Errors(err)); got != 2 {
		t.Fatalf("expected 2 combined errors, got %d", got)
	}
	if len(pub.messages) != 3 {
		t.Fatalf("every order must still be published, got %d", len(pub.messages))
	}
}

func TestNotifyPlacedNothingToDo(t *testing.T) {
	pub := &stubPublisher{}
	n := newNotifier(pub, nil)

	if err := n.NotifyPlaced(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pub.messages) != 0 {
		t.Fatalf("expected no messages")
	}
}

func TestNewNotifierRequiresPublisher(t *testing.T) {
	if _, err := NewNotifier(nil, nil); err == nil {
		t.Fatalf("expected error")
	}
}
