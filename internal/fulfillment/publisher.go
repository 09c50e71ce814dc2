package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/angelmondragon/topupstore-backend/internal/checkout"
	"github.com/angelmondragon/topupstore-backend/internal/orders"
	"github.com/angelmondragon/topupstore-backend/pkg/enums"
	"github.com/angelmondragon/topupstore-backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

const (
	// EventOrderPlaced is the event_type attribute of every published message.
	EventOrderPlaced = "order_placed"

	envelopeVersion       = 1
	defaultPublishTimeout = 10 * time.Second
)

// Envelope wraps every event payload published for fulfillment.
type Envelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data"`
}

// OrderPlaced is the payload of one created order record.
type OrderPlaced struct {
	OrderID        string                 `json:"orderId"`
	CheckoutID     string                 `json:"checkoutId"`
	UserID         string                 `json:"userId"`
	ProductName    string                 `json:"productName"`
	ProductType    enums.ProductType      `json:"productType"`
	ItemLabel      string                 `json:"itemLabel"`
	Quantity       int                    `json:"quantity"`
	UnitPrice      decimal.Decimal        `json:"unitPrice"`
	TotalAmount    decimal.Decimal        `json:"totalAmount"`
	Delivery       orders.DeliveryPayload `json:"delivery"`
	PaymentChannel enums.PaymentChannel   `json:"paymentChannel"`
	Status         enums.OrderStatus      `json:"status"`
	CreatedAt      time.Time              `json:"createdAt"`
}

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// Notifier publishes order-placed events for the fulfillment backend.
type Notifier struct {
	pub     publisher
	logg    *logger.Logger
	timeout time.Duration
	now     func() time.Time
}

// NewNotifier wraps a Pub/Sub publisher handle.
func NewNotifier(p *gcppubsub.Publisher, logg *logger.Logger) (*Notifier, error) {
	if p == nil {
		return nil, errors.New("pubsub publisher required")
	}
	return newNotifier(&gcpPublisher{Publisher: p}, logg), nil
}

func newNotifier(p publisher, logg *logger.Logger) *Notifier {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Notifier{pub: p, logg: logg, timeout: defaultPublishTimeout, now: time.Now}
}

// NotifyPlaced publishes one message per placed order and waits for every
// publish to settle. Errors are combined.
func (n *Notifier) NotifyPlaced(ctx context.Context, placed []checkout.PlacedOrder) error {
	if len(placed) == 0 {
		return nil
	}
	publishCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	results := make([]publishResult, len(placed))
	var errs error
	for i, p := range placed {
		msg, err := n.message(p)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		results[i] = n.pub.Publish(publishCtx, msg)
	}

	for i, res := range results {
		if res == nil {
			continue
		}
		serverID, err := res.Get(publishCtx)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("publish order %s: %w", placed[i].OrderID, err))
			continue
		}
		n.logg.Debug(n.logg.WithFields(ctx, map[string]any{
			"order_id":   placed[i].OrderID,
			"message_id": serverID,
		}), "order placed event published")
	}
	return errs
}

func (n *Notifier) message(p checkout.PlacedOrder) (*gcppubsub.Message, error) {
	rec := p.Record
	data, err := json.Marshal(OrderPlaced{
		OrderID:        p.OrderID,
		CheckoutID:     rec.CheckoutID,
		UserID:         rec.UserID,
		ProductName:    rec.ProductName,
		ProductType:    rec.ProductType,
		ItemLabel:      rec.ItemLabel,
		Quantity:       rec.Quantity,
		UnitPrice:      rec.UnitPrice,
		TotalAmount:    rec.TotalAmount,
		Delivery:       rec.Delivery,
		PaymentChannel: rec.PaymentChannel,
		Status:         rec.Status,
		CreatedAt:      rec.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("encode order %s: %w", p.OrderID, err)
	}

	occurred := n.now().UTC()
	envelope := Envelope{
		Version:    envelopeVersion,
		EventID:    uuid.NewString(),
		OccurredAt: occurred,
		Data:       data,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("encode envelope for order %s: %w", p.OrderID, err)
	}

	return &gcppubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"event_id":    envelope.EventID,
			"event_type":  EventOrderPlaced,
			"order_id":    p.OrderID,
			"checkout_id": rec.CheckoutID,
			"created_at":  occurred.Format(time.RFC3339Nano),
		},
	}, nil
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return &gcpPublishResult{PublishResult: p.Publisher.Publish(ctx, msg)}
}

type gcpPublishResult struct {
	*gcppubsub.PublishResult
}

func (r *gcpPublishResult) Get(ctx context.Context) (string, error) {
	if r == nil || r.PublishResult == nil {
		return "", errors.New("publish result is nil")
	}
	return r.PublishResult.Get(ctx)
}
