package cart

import (
	"time"

	"github.com/angelmondragon/topupstore-backend/pkg/enums"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Item is one entry of the shared cart. Game identity fields are optional and
// only meaningful for game credit products.
type Item struct {
	Label         string               `bson:"label"`
	ProductName   string               `bson:"product_name"`
	ProductImage  string               `bson:"product_image,omitempty"`
	ProductType   enums.ProductType    `bson:"product_type"`
	UnitPrice     primitive.Decimal128 `bson:"unit_price"`
	Quantity      int                  `bson:"quantity"`
	PlayerID      string               `bson:"player_id,omitempty"`
	ZoneID        string               `bson:"zone_id,omitempty"`
	AccountHandle string               `bson:"account_handle,omitempty"`
	AddedAt       time.Time            `bson:"added_at"`
}

// Cart is the user's shared cart document.
type Cart struct {
	UserID    string    `bson:"user_id"`
	Open      bool      `bson:"open"`
	Items     []Item    `bson:"items"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// IsEmpty reports whether the cart holds no items.
func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}
