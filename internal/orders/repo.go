package orders

import (
	"context"
	"fmt"
	"time"

	pkgmongo "github.com/angelmondragon/topupstore-backend/pkg/mongo"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type collection interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
}

type deliveryDocument struct {
	Method        string `bson:"method"`
	ContactEmail  string `bson:"contact_email,omitempty"`
	ContactHandle string `bson:"contact_handle,omitempty"`
	PlayerID      string `bson:"player_id,omitempty"`
	ZoneID        string `bson:"zone_id,omitempty"`
	AccountHandle string `bson:"account_handle,omitempty"`
}

type orderDocument struct {
	ID                  primitive.ObjectID   `bson:"_id"`
	UserID              string               `bson:"user_id"`
	CheckoutID          string               `bson:"checkout_id"`
	ProductName         string               `bson:"product_name"`
	ProductType         string               `bson:"product_type"`
	ProductImage        string               `bson:"product_image,omitempty"`
	ItemLabel           string               `bson:"item_label"`
	Quantity            int                  `bson:"quantity"`
	UnitPrice           primitive.Decimal128 `bson:"unit_price"`
	TotalAmount         primitive.Decimal128 `bson:"total_amount"`
	Delivery            deliveryDocument     `bson:"delivery"`
	PaymentChannel      string               `bson:"payment_channel"`
	PayerAccountRef     string               `bson:"payer_account_ref"`
	PayerTransactionRef string               `bson:"payer_transaction_ref"`
	Status              string               `bson:"status"`
	CreatedAt           time.Time            `bson:"created_at"`
}

// Repository writes order records to the remote document store.
type Repository struct {
	coll collection
	now  func() time.Time
}

// NewRepository binds the repository to the orders collection.
func NewRepository(coll collection) *Repository {
	return &Repository{coll: coll, now: time.Now}
}

// Create inserts one order record and returns its id. Records are never updated here.
func (r *Repository) Create(ctx context.Context, rec Record) (string, error) {
	doc, err := r.toDocument(rec)
	if err != nil {
		return "", err
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("failed to insert order: %w", err)
	}
	return doc.ID.Hex(), nil
}

func (r *Repository) toDocument(rec Record) (orderDocument, error) {
	unit, err := pkgmongo.DecimalToBSON(rec.UnitPrice)
	if err != nil {
		return orderDocument{}, err
	}
	total, err := pkgmongo.DecimalToBSON(rec.TotalAmount)
	if err != nil {
		return orderDocument{}, err
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now()
	}
	return orderDocument{
		ID:           primitive.NewObjectID(),
		UserID:       rec.UserID,
		CheckoutID:   rec.CheckoutID,
		ProductName:  rec.ProductName,
		ProductType:  rec.ProductType.String(),
		ProductImage: rec.ProductImage,
		ItemLabel:    rec.ItemLabel,
		Quantity:     rec.Quantity,
		UnitPrice:    unit,
		TotalAmount:  total,
		Delivery: deliveryDocument{
			Method:        rec.Delivery.Method.String(),
			ContactEmail:  rec.Delivery.ContactEmail,
			ContactHandle: rec.Delivery.ContactHandle,
			PlayerID:      rec.Delivery.PlayerID,
			ZoneID:        rec.Delivery.ZoneID,
			AccountHandle: rec.Delivery.AccountHandle,
		},
		PaymentChannel:      rec.PaymentChannel.String(),
		PayerAccountRef:     rec.PayerAccountRef,
		PayerTransactionRef: rec.PayerTransactionRef,
		Status:              rec.Status.String(),
		CreatedAt:           createdAt,
	}, nil
}
