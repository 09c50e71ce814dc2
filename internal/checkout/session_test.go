package checkout

import (
	"testing"
	"time"

	"github.com/angelmondragon/topupstore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/topupstore-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

func TestTotalSumsLineTotals(t *testing.T) {
	items := []LineItem{item("a", "100", 2), item("b", "50", 1)}
	if got := Total(items); !got.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("expected 250, got %s", got)
	}
	if got := LineTotal(items[0]); !got.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("expected line total 200, got %s", got)
	}
	if got := Total(nil); !got.IsZero() {
		t.Fatalf("expected zero total for empty basket, got %s", got)
	}
}

func TestTotalKeepsFractionalPrecision(t *testing.T) {
	items := []LineItem{item("a", "0.10", 3), item("b", "0.20", 1)}
	if got := Total(items); !got.Equal(decimal.RequireFromString("0.50")) {
		t.Fatalf("expected 0.50, got %s", got)
	}
}

func TestTotalStaysConsistentAcrossEdits(t *testing.T) {
	sess := newSession("user-1", []LineItem{item("a", "100", 2), item("b", "50", 1), item("c", "5", 4)}, nil, false, time.Now())

	steps := []func() (decimal.Decimal, error){
		func() (decimal.Decimal, error) { return sess.Increment(1) },
		func() (decimal.Decimal, error) { return sess.Decrement(0) },
		func() (decimal.Decimal, error) { return sess.SetQuantity(2, 10) },
		func() (decimal.Decimal, error) { return sess.Remove(0) },
	}
	for i, step := range steps {
		got, err := step()
		if err != nil {
			t.Fatalf("step %d: unexpected error: %v", i, err)
		}
		want := decimal.Zero
		for _, li := range sess.LineItems {
			want = want.Add(li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity))))
		}
		if !got.Equal(want) || !sess.Total().Equal(want) {
			t.Fatalf("step %d: expected total %s, got %s", i, want, got)
		}
	}
	if len(sess.LineItems) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(sess.LineItems))
	}
}

func TestSetQuantityZeroRemovesLine(t *testing.T) {
	sess := newSession("user-1", []LineItem{item("a", "10", 1), item("b", "20", 1)}, nil, false, time.Now())

	total, err := sess.SetQuantity(0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sess.LineItems) != 1 || sess.LineItems[0].Label != "b" {
		t.Fatalf("expected only line b to remain, got %+v", sess.LineItems)
	}
	if !total.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("expected total 20, got %s", total)
	}
}

func TestDecrementToZeroRemovesLine(t *testing.T) {
	sess := newSession("user-1", []LineItem{item("a", "10", 1)}, nil, false, time.Now())

	if _, err := sess.Decrement(0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sess.LineItems) != 0 {
		t.Fatalf("expected empty basket, got %d lines", len(sess.LineItems))
	}
	if sess.Complete() {
		t.Fatalf("empty basket must not be complete")
	}
}

func TestSetQuantityRejectsNegativeAndUnknownIndex(t *testing.T) {
	sess := newSession("user-1", []LineItem{item("a", "10", 1)}, nil, false, time.Now())

	if _, err := sess.SetQuantity(0, -1); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := sess.Increment(3); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
	if _, err := sess.Remove(-1); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
	if sess.LineItems[0].Quantity != 1 {
		t.Fatalf("rejected edits must not change the basket")
	}
}

func TestEnsureEditable(t *testing.T) {
	sess := newSession("user-1", []LineItem{item("a", "10", 1)}, nil, false, time.Now())
	if err := sess.ensureEditable(); err != nil {
		t.Fatalf("fresh session should be editable: %v", err)
	}

	sess.Submitting = true
	if err := sess.ensureEditable(); !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict while submitting, got %v", err)
	}

	sess.Submitting = false
	sess.Terminal = &TerminalState{Outcome: enums.CheckoutOutcomeSuccess}
	if err := sess.ensureEditable(); !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict after terminal outcome, got %v", err)
	}
}

func TestValidateLineItems(t *testing.T) {
	cases := []struct {
		name  string
		items []LineItem
		ok    bool
	}{
		{name: "empty", items: nil},
		{name: "zero quantity", items: []LineItem{item("a", "1", 0)}},
		{name: "negative price", items: []LineItem{item("a", "-1", 1)}},
		{name: "missing product", items: []LineItem{{Label: "a", UnitPrice: decimal.NewFromInt(1), Quantity: 1, ProductType: enums.ProductTypeGiftCard}}},
		{name: "bad type", items: []LineItem{{Label: "a", UnitPrice: decimal.NewFromInt(1), Quantity: 1, ProductName: "x", ProductType: "weird"}}},
		{name: "valid", items: []LineItem{item("a", "0", 1)}, ok: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateLineItems(tc.items)
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestGameContextCompleteness(t *testing.T) {
	if got := (GameContext{}).Completeness(); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if got := (GameContext{PlayerID: "p", ZoneID: " ", AccountHandle: "h"}).Completeness(); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
}

func TestStalledSubmission(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sess := newSession("user-1", []LineItem{item("a", "10", 1)}, nil, false, now)
	if sess.stalledSubmission(now) {
		t.Fatalf("idle session is not a stalled submission")
	}

	sess.Submitting = true
	sess.SubmittingSince = now.Add(-time.Minute)
	if sess.stalledSubmission(now) {
		t.Fatalf("submission inside the lock window is still live")
	}
	if !sess.stalledSubmission(now.Add(submitLockTTL)) {
		t.Fatalf("submission older than the lock must be reported as stalled")
	}

	sess.SubmittingSince = time.Time{}
	if !sess.stalledSubmission(now) {
		t.Fatalf("a flag without a start time is stalled")
	}
}
