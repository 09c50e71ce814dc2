package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/angelmondragon/topupstore-backend/internal/orders"
	checkoutrules "github.com/angelmondragon/topupstore-backend/pkg/checkout"
	"github.com/angelmondragon/topupstore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/topupstore-backend/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

func newTestOrchestrator(t *testing.T, creator OrderCreator, rec Recorder) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(creator, rec, nil)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	return o
}

func TestSubmitTwoLineBasketBuildsRecords(t *testing.T) {
	creator := &stubCreator{}
	o := newTestOrchestrator(t, creator, nil)
	sess := confirmedSession(t, item("a", "100", 2), item("b", "50", 1))
	sess.GameContext = &GameContext{PlayerID: "p1", ZoneID: "z1"}

	if !sess.Total().Equal(decimal.NewFromInt(250)) {
		t.Fatalf("expected total 250, got %s", sess.Total())
	}
	out := o.Submit(context.Background(), sess, validInput(), nil)

	if out.Kind != enums.CheckoutOutcomeSuccess {
		t.Fatalf("expected success, got %s (%v)", out.Kind, out.Err)
	}
	if out.OrderID != "order-a" {
		t.Fatalf("expected first line's order id, got %q", out.OrderID)
	}
	if creator.callCount() != 2 {
		t.Fatalf("expected 2 creation calls, got %d", creator.callCount())
	}
	byLabel := map[string]decimal.Decimal{}
	for _, rec := range creator.calls {
		byLabel[rec.ItemLabel] = rec.TotalAmount
		if rec.Delivery.ContactEmail != "buyer@example.com" || rec.Delivery.PlayerID != "p1" || rec.Delivery.ZoneID != "z1" {
			t.Fatalf("unexpected delivery payload: %+v", rec.Delivery)
		}
		if rec.Status != enums.OrderStatusPending || rec.CheckoutID != sess.ID || rec.UserID != "user-1" {
			t.Fatalf("unexpected record: %+v", rec)
		}
		if rec.PayerTransactionRef != "TX-1" || rec.PaymentChannel != enums.PaymentChannelBankTransfer {
			t.Fatalf("payment fields not carried: %+v", rec)
		}
	}
	if !byLabel["a"].Equal(decimal.NewFromInt(200)) || !byLabel["b"].Equal(decimal.NewFromInt(50)) {
		t.Fatalf("unexpected line totals: %v", byLabel)
	}
}

func TestSubmitClassifiesEverySplit(t *testing.T) {
	for n := 1; n <= 4; n++ {
		for k := 0; k <= n; k++ {
			t.Run(fmt.Sprintf("%d_of_%d", k, n), func(t *testing.T) {
				creator := &stubCreator{fail: map[string]bool{}}
				items := make([]LineItem, n)
				for i := range items {
					label := fmt.Sprintf("l%d", i)
					items[i] = item(label, "10", 1)
					if i >= k {
						creator.fail[label] = true
					}
				}
				rec := &stubRecorder{}
				o := newTestOrchestrator(t, creator, rec)

				out := o.Submit(context.Background(), confirmedSession(t, items...), validInput(), nil)

				want := enums.CheckoutOutcomePartialSuccess
				switch k {
				case 0:
					want = enums.CheckoutOutcomeFailure
				case n:
					want = enums.CheckoutOutcomeSuccess
				}
				if out.Kind != want {
					t.Fatalf("expected %s, got %s", want, out.Kind)
				}
				if out.Failed != n-k || len(out.FailedItems) != n-k {
					t.Fatalf("expected %d failures, got %d", n-k, out.Failed)
				}
				if k > 0 && out.OrderID != "order-l0" {
					t.Fatalf("expected first success id, got %q", out.OrderID)
				}
				if k == 0 && out.OrderID != "" {
					t.Fatalf("failure must not carry an order id")
				}
				if got := len(multierr.Errors(out.Err)); got != n-k {
					t.Fatalf("expected %d combined errors, got %d", n-k, got)
				}
				if creator.callCount() != n {
					t.Fatalf("settle-all must call every line, got %d", creator.callCount())
				}
				if rec.created != k || rec.failed != n-k || len(rec.outcomes) != 1 || rec.outcomes[0] != want.String() {
					t.Fatalf("unexpected metrics: %+v", rec)
				}
			})
		}
	}
}

func TestSubmitPartialReportsFirstSuccessInLineOrder(t *testing.T) {
	creator := &stubCreator{fail: map[string]bool{"a": true}}
	o := newTestOrchestrator(t, creator, nil)

	out := o.Submit(context.Background(), confirmedSession(t, item("a", "1", 1), item("b", "1", 1), item("c", "1", 1)), validInput(), nil)

	if out.Kind != enums.CheckoutOutcomePartialSuccess || out.OrderID != "order-b" || out.Failed != 1 {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if out.FailedItems[0].Label != "a" {
		t.Fatalf("expected failed item a, got %+v", out.FailedItems)
	}
	placed := out.Placed()
	if len(placed) != 2 || placed[0].OrderID != "order-b" || placed[1].OrderID != "order-c" {
		t.Fatalf("unexpected placed orders: %+v", placed)
	}
}

func TestSubmitRejectsWithoutCallingStore(t *testing.T) {
	cases := []struct {
		name   string
		sess   func() *Session
		in     SubmitInput
		fields []string
	}{
		{
			name:   "empty basket",
			sess:   func() *Session { return confirmedSession(t) },
			in:     validInput(),
			fields: []string{"line_items"},
		},
		{
			name: "unconfirmed delivery",
			sess: func() *Session {
				sess := confirmedSession(t, item("a", "1", 1))
				sess.Delivery = Unselected()
				return sess
			},
			in:     validInput(),
			fields: []string{"delivery"},
		},
		{
			name:   "missing payment proof",
			sess:   func() *Session { return confirmedSession(t, item("a", "1", 1)) },
			in:     SubmitInput{PaymentChannel: "cash"},
			fields: []string{"payment_channel", "payer_account_ref", "payer_transaction_ref"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			creator := &stubCreator{}
			rec := &stubRecorder{}
			o := newTestOrchestrator(t, creator, rec)

			out := o.Submit(context.Background(), tc.sess(), tc.in, nil)

			if out.Kind != enums.CheckoutOutcomeRejected {
				t.Fatalf("expected rejected, got %s", out.Kind)
			}
			if creator.callCount() != 0 || len(rec.outcomes) != 0 {
				t.Fatalf("rejected submission must not call the store or record metrics")
			}
			if !pkgerrors.IsCode(out.Err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", out.Err)
			}
			details, _ := pkgerrors.As(out.Err).Details().(map[string]any)
			violations, _ := details["violations"].([]checkoutrules.FieldViolation)
			if len(violations) != len(tc.fields) {
				t.Fatalf("expected violations for %v, got %+v", tc.fields, violations)
			}
			for i, field := range tc.fields {
				if violations[i].Field != field {
					t.Fatalf("expected violation %d on %s, got %s", i, field, violations[i].Field)
				}
			}
		})
	}
}

func TestSubmitFirstSuccessHookFiresOnce(t *testing.T) {
	creator := &stubCreator{fail: map[string]bool{"c": true}}
	o := newTestOrchestrator(t, creator, nil)
	var calls int32
	var got atomic.Value

	out := o.Submit(context.Background(), confirmedSession(t, item("a", "1", 1), item("b", "1", 1), item("c", "1", 1)), validInput(), func(orderID string) {
		atomic.AddInt32(&calls, 1)
		got.Store(orderID)
	})

	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("expected hook to fire once, got %d", n)
	}
	if id, _ := got.Load().(string); id != "order-a" && id != "order-b" {
		t.Fatalf("hook received unexpected id %q", id)
	}
	if out.Kind != enums.CheckoutOutcomePartialSuccess {
		t.Fatalf("expected partial success, got %s", out.Kind)
	}
}

func TestSubmitHookNotCalledOnTotalFailure(t *testing.T) {
	creator := &stubCreator{fail: map[string]bool{"a": true}}
	o := newTestOrchestrator(t, creator, nil)
	called := false

	out := o.Submit(context.Background(), confirmedSession(t, item("a", "1", 1)), validInput(), func(string) { called = true })

	if called || out.Kind != enums.CheckoutOutcomeFailure {
		t.Fatalf("unexpected hook call or outcome %s", out.Kind)
	}
}

func TestSubmitRecoversPanickingCreation(t *testing.T) {
	creator := &stubCreator{panicOn: map[string]bool{"b": true}}
	o := newTestOrchestrator(t, creator, nil)

	out := o.Submit(context.Background(), confirmedSession(t, item("a", "1", 1), item("b", "1", 1)), validInput(), nil)

	if out.Kind != enums.CheckoutOutcomePartialSuccess || out.Failed != 1 {
		t.Fatalf("expected panic to count as one failure, got %+v", out)
	}
	if out.Results[1].Err == nil || out.Results[1].OrderID != "" {
		t.Fatalf("panicking line must be a failure, got %+v", out.Results[1])
	}
}

func TestSubmitIgnoresCallerCancellation(t *testing.T) {
	var seen []error
	creator := creatorFunc(func(ctx context.Context) (string, error) {
		seen = append(seen, ctx.Err())
		return "order-1", nil
	})
	o := newTestOrchestrator(t, creator, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := o.Submit(ctx, confirmedSession(t, item("a", "1", 1)), validInput(), nil)

	if out.Kind != enums.CheckoutOutcomeSuccess {
		t.Fatalf("expected success, got %s", out.Kind)
	}
	if len(seen) != 1 || seen[0] != nil {
		t.Fatalf("creation must run with a detached context, saw %v", seen)
	}
}

func TestSubmitUsesBasketSnapshot(t *testing.T) {
	creator := &stubCreator{}
	o := newTestOrchestrator(t, creator, nil)
	sess := confirmedSession(t, item("a", "1", 1))

	out := o.Submit(context.Background(), sess, validInput(), nil)
	sess.LineItems[0].Quantity = 99

	if out.Results[0].Item.Quantity != 1 || out.Results[0].Record.Quantity != 1 {
		t.Fatalf("results must not alias the live basket")
	}
}

func TestClassifyEmptyIsFailure(t *testing.T) {
	if out := Classify(nil); out.Kind != enums.CheckoutOutcomeFailure {
		t.Fatalf("expected failure for no results, got %s", out.Kind)
	}
}

func TestClassifyWrapsLineErrors(t *testing.T) {
	sentinel := errors.New("duplicate key")
	out := Classify([]ItemResult{
		{Index: 0, Item: item("a", "1", 1), OrderID: "o1"},
		{Index: 1, Item: item("b", "1", 1), Err: sentinel},
	})
	if !errors.Is(out.Err, sentinel) {
		t.Fatalf("expected combined error to wrap the line error, got %v", out.Err)
	}
}

func TestNewOrchestratorRequiresCreator(t *testing.T) {
	if _, err := NewOrchestrator(nil, nil, nil); err == nil {
		t.Fatalf("expected error")
	}
}

type creatorFunc func(ctx context.Context) (string, error)

func (f creatorFunc) Create(ctx context.Context, _ orders.Record) (string, error) {
	return f(ctx)
}
