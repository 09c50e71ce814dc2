package checkout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/topupstore-backend/internal/orders"
	checkoutrules "github.com/angelmondragon/topupstore-backend/pkg/checkout"
	"github.com/angelmondragon/topupstore-backend/pkg/enums"
	"github.com/angelmondragon/topupstore-backend/pkg/logger"
	"go.uber.org/multierr"
)

// SubmitInput is the payment information asserted by the buyer.
type SubmitInput struct {
	PaymentChannel      enums.PaymentChannel
	PayerAccountRef     string
	PayerTransactionRef string
}

// ItemResult is the settled creation call of one line item.
type ItemResult struct {
	Index   int
	Item    LineItem
	Record  orders.Record
	OrderID string
	Err     error
}

// Outcome is the aggregate of one submission.
type Outcome struct {
	Kind        enums.CheckoutOutcome
	OrderID     string
	Failed      int
	FailedItems []LineItem
	Results     []ItemResult
	// Err is the validation error of a rejected submission, or every creation error combined.
	Err error
}

// Placed returns the successfully created orders in line order.
func (o Outcome) Placed() []PlacedOrder {
	var placed []PlacedOrder
	for _, res := range o.Results {
		if res.Err == nil {
			placed = append(placed, PlacedOrder{OrderID: res.OrderID, Record: res.Record})
		}
	}
	return placed
}

// Orchestrator creates one order record per line item and classifies the result.
type Orchestrator struct {
	orders  OrderCreator
	metrics Recorder
	logg    *logger.Logger
	now     func() time.Time
}

// NewOrchestrator builds the submission orchestrator. metrics may be nil.
func NewOrchestrator(creator OrderCreator, metrics Recorder, logg *logger.Logger) (*Orchestrator, error) {
	if creator == nil {
		return nil, fmt.Errorf("order creator required")
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Orchestrator{orders: creator, metrics: metrics, logg: logg, now: time.Now}, nil
}

// Precheck validates every submission precondition without touching the order store.
func (o *Orchestrator) Precheck(sess *Session, in SubmitInput) error {
	return checkoutrules.ValidateSubmission(checkoutrules.SubmissionInput{
		LineItemCount:       len(sess.LineItems),
		DeliveryConfirmed:   sess.Delivery.Confirmed(),
		PaymentChannel:      in.PaymentChannel,
		PayerAccountRef:     in.PayerAccountRef,
		PayerTransactionRef: in.PayerTransactionRef,
	})
}

// Submit fans out one creation call per line item and waits for all of them.
// onFirstSuccess, when set, is invoked once with the first order id to settle
// successfully. Creation calls ignore ctx cancellation and have no timeout.
func (o *Orchestrator) Submit(ctx context.Context, sess *Session, in SubmitInput, onFirstSuccess func(orderID string)) Outcome {
	if err := o.Precheck(sess, in); err != nil {
		return Outcome{Kind: enums.CheckoutOutcomeRejected, Err: err}
	}

	started := o.now()
	snapshot := append([]LineItem(nil), sess.LineItems...)
	info, _ := sess.Delivery.Info()
	writeCtx := context.WithoutCancel(ctx)

	results := make([]ItemResult, len(snapshot))
	var (
		wg    sync.WaitGroup
		first sync.Once
	)
	for i, item := range snapshot {
		rec := o.buildRecord(sess, item, info, in)
		results[i] = ItemResult{Index: i, Item: item, Record: rec}

		wg.Add(1)
		go func(res *ItemResult) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					res.OrderID = ""
					res.Err = fmt.Errorf("order creation panicked: %v", r)
				}
			}()

			id, err := o.orders.Create(writeCtx, res.Record)
			if err != nil {
				res.Err = err
				return
			}
			res.OrderID = id
			if onFirstSuccess != nil {
				first.Do(func() { onFirstSuccess(id) })
			}
		}(&results[i])
	}
	wg.Wait()

	for _, res := range results {
		o.metrics.ObserveRecordCreation(res.Err == nil)
		if res.Err != nil {
			o.logg.Warn(o.logg.WithFields(ctx, map[string]any{
				"line_index": res.Index,
				"item_label": res.Item.Label,
				"error":      res.Err.Error(),
			}), "order record creation failed")
		}
	}

	outcome := Classify(results)
	o.metrics.ObserveSubmit(outcome.Kind.String(), o.now().Sub(started))
	return outcome
}

func (o *Orchestrator) buildRecord(sess *Session, item LineItem, info DeliveryInfo, in SubmitInput) orders.Record {
	payload := orders.DeliveryPayload{
		Method:        info.Method,
		ContactEmail:  info.ContactEmail,
		ContactHandle: info.ContactHandle,
	}
	if sess.GameContext != nil {
		payload.PlayerID = sess.GameContext.PlayerID
		payload.ZoneID = sess.GameContext.ZoneID
		payload.AccountHandle = sess.GameContext.AccountHandle
	}
	return orders.Record{
		UserID:              sess.UserID,
		CheckoutID:          sess.ID,
		ProductName:         item.ProductName,
		ProductType:         item.ProductType,
		ProductImage:        item.ProductImage,
		ItemLabel:           item.Label,
		Quantity:            item.Quantity,
		UnitPrice:           item.UnitPrice,
		TotalAmount:         LineTotal(item),
		Delivery:            payload,
		PaymentChannel:      in.PaymentChannel,
		PayerAccountRef:     in.PayerAccountRef,
		PayerTransactionRef: in.PayerTransactionRef,
		Status:              enums.OrderStatusPending,
		CreatedAt:           o.now().UTC(),
	}
}

// Classify reduces settled results: no success is Failure, no failure is Success,
// anything in between is PartialSuccess. The reported order id is the first
// success in line order.
func Classify(results []ItemResult) Outcome {
	out := Outcome{Results: results}
	succeeded := 0
	for _, res := range results {
		if res.Err != nil {
			out.Failed++
			out.FailedItems = append(out.FailedItems, res.Item)
			out.Err = multierr.Append(out.Err, fmt.Errorf("line %d (%s): %w", res.Index, res.Item.Label, res.Err))
			continue
		}
		if succeeded == 0 {
			out.OrderID = res.OrderID
		}
		succeeded++
	}

	switch {
	case succeeded == 0:
		out.Kind = enums.CheckoutOutcomeFailure
	case out.Failed == 0:
		out.Kind = enums.CheckoutOutcomeSuccess
	default:
		out.Kind = enums.CheckoutOutcomePartialSuccess
	}
	return out
}
