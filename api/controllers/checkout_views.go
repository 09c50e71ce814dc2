package controllers

import (
	"context"
	"fmt"
	"time"

	checkoutsvc "github.com/angelmondragon/topupstore-backend/internal/checkout"
	"github.com/angelmondragon/topupstore-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

type lineItemView struct {
	Index        int               `json:"index"`
	Label        string            `json:"label"`
	ProductName  string            `json:"product_name"`
	ProductImage string            `json:"product_image,omitempty"`
	ProductType  enums.ProductType `json:"product_type"`
	UnitPrice    decimal.Decimal   `json:"unit_price"`
	Quantity     int               `json:"quantity"`
	LineTotal    decimal.Decimal   `json:"line_total"`
}

type deliveryView struct {
	Phase   enums.DeliveryPhase  `json:"phase"`
	Method  enums.DeliveryMethod `json:"method,omitempty"`
	Contact string               `json:"contact,omitempty"`
}

type terminalView struct {
	Outcome     enums.CheckoutOutcome `json:"outcome"`
	OrderID     string                `json:"order_id,omitempty"`
	FailedCount int                   `json:"failed_count"`
	FailedItems []failedItemView      `json:"failed_items,omitempty"`
}

type failedItemView struct {
	Label       string `json:"label"`
	ProductName string `json:"product_name"`
}

type sessionView struct {
	ID                 string                   `json:"id"`
	Items              []lineItemView           `json:"items"`
	Total              decimal.Decimal          `json:"total"`
	Delivery           deliveryView             `json:"delivery"`
	Game               *checkoutsvc.GameContext `json:"game,omitempty"`
	OriginIsSharedCart bool                     `json:"origin_is_shared_cart"`
	Complete           bool                     `json:"complete"`
	Submitting         bool                     `json:"submitting"`
	Terminal           *terminalView            `json:"terminal,omitempty"`
	RetryForm          *checkoutsvc.RetryForm   `json:"retry_form,omitempty"`
	CreatedAt          time.Time                `json:"created_at"`
}

func newSessionView(sess *checkoutsvc.Session) sessionView {
	view := sessionView{
		ID:    sess.ID,
		Items: make([]lineItemView, 0, len(sess.LineItems)),
		Total: sess.Total(),
		Delivery: deliveryView{
			Phase:   sess.Delivery.Phase(),
			Method:  sess.Delivery.Method(),
			Contact: sess.Delivery.Contact(),
		},
		Game:               sess.GameContext,
		OriginIsSharedCart: sess.OriginIsSharedCart,
		Complete:           sess.Complete(),
		Submitting:         sess.Submitting,
		RetryForm:          sess.RetryForm,
		CreatedAt:          sess.CreatedAt,
	}
	for i, item := range sess.LineItems {
		view.Items = append(view.Items, lineItemView{
			Index:        i,
			Label:        item.Label,
			ProductName:  item.ProductName,
			ProductImage: item.ProductImage,
			ProductType:  item.ProductType,
			UnitPrice:    item.UnitPrice,
			Quantity:     item.Quantity,
			LineTotal:    checkoutsvc.LineTotal(item),
		})
	}
	if t := sess.Terminal; t != nil {
		view.Terminal = &terminalView{
			Outcome:     t.Outcome,
			OrderID:     t.OrderID,
			FailedCount: t.FailedCount,
			FailedItems: failedItems(t.FailedItems),
		}
	}
	return view
}

func failedItems(items []checkoutsvc.LineItem) []failedItemView {
	if len(items) == 0 {
		return nil
	}
	out := make([]failedItemView, 0, len(items))
	for _, item := range items {
		out = append(out, failedItemView{Label: item.Label, ProductName: item.ProductName})
	}
	return out
}

type submitView struct {
	Outcome     enums.CheckoutOutcome `json:"outcome"`
	OrderID     string                `json:"order_id,omitempty"`
	FailedCount int                   `json:"failed_count"`
	FailedItems []failedItemView      `json:"failed_items,omitempty"`
	CartCleared bool                  `json:"cart_cleared"`
	Notice      string                `json:"notice,omitempty"`
	Session     *sessionView          `json:"session,omitempty"`
}

func newSubmitView(res checkoutsvc.SubmitResult, notice string) submitView {
	view := submitView{
		Outcome:     res.Outcome.Kind,
		OrderID:     res.Outcome.OrderID,
		FailedCount: res.Outcome.Failed,
		FailedItems: failedItems(res.Outcome.FailedItems),
		CartCleared: res.CartCleared,
		Notice:      notice,
	}
	if res.Session != nil {
		sv := newSessionView(res.Session)
		view.Session = &sv
	}
	return view
}

type confirmView struct {
	Session      sessionView `json:"session"`
	ProfileSaved bool        `json:"profile_saved"`
}

// noticeReporter turns the terminal callback into the message shown to the buyer.
type noticeReporter struct {
	notice string
}

func (n *noticeReporter) OnSuccess(_ context.Context, orderID string) {
	n.notice = fmt.Sprintf("Order %s placed", orderID)
}

func (n *noticeReporter) OnPartial(_ context.Context, orderID string, failed int) {
	n.notice = fmt.Sprintf("Order %s placed; %d item(s) could not be ordered", orderID, failed)
}

func (n *noticeReporter) OnFailure(context.Context) {
	n.notice = "Your order could not be placed. Please try again."
}

func (n *noticeReporter) OnRetry(context.Context) {
	n.notice = "Re-enter your payment details to submit again."
}
