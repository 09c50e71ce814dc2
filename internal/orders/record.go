package orders

import (
	"time"

	"github.com/angelmondragon/topupstore-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

// DeliveryPayload tells fulfillment where to send the goods and which game
// account to credit.
type DeliveryPayload struct {
	Method        enums.DeliveryMethod `json:"method"`
	ContactEmail  string               `json:"contact_email,omitempty"`
	ContactHandle string               `json:"contact_handle,omitempty"`
	PlayerID      string               `json:"player_id,omitempty"`
	ZoneID        string               `json:"zone_id,omitempty"`
	AccountHandle string               `json:"account_handle,omitempty"`
}

// Record is one remote order, created per checkout line item.
type Record struct {
	UserID              string
	CheckoutID          string
	ProductName         string
	ProductType         enums.ProductType
	ProductImage        string
	ItemLabel           string
	Quantity            int
	UnitPrice           decimal.Decimal
	TotalAmount         decimal.Decimal
	Delivery            DeliveryPayload
	PaymentChannel      enums.PaymentChannel
	PayerAccountRef     string
	PayerTransactionRef string
	Status              enums.OrderStatus
	CreatedAt           time.Time
}
