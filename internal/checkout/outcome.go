package checkout

import (
	"context"
	"time"

	"github.com/angelmondragon/topupstore-backend/pkg/enums"
	"github.com/angelmondragon/topupstore-backend/pkg/logger"
)

// Reporter receives exactly one terminal callback per submission, plus OnRetry
// when the buyer goes back to the form after a failure.
type Reporter interface {
	OnSuccess(ctx context.Context, orderID string)
	OnPartial(ctx context.Context, orderID string, failed int)
	OnFailure(ctx context.Context)
	OnRetry(ctx context.Context)
}

// Report dispatches the terminal callback matching the outcome. Rejected
// submissions are not terminal and report nothing.
func Report(ctx context.Context, r Reporter, o Outcome) {
	if r == nil {
		return
	}
	switch o.Kind {
	case enums.CheckoutOutcomeSuccess:
		r.OnSuccess(ctx, o.OrderID)
	case enums.CheckoutOutcomePartialSuccess:
		r.OnPartial(ctx, o.OrderID, o.Failed)
	case enums.CheckoutOutcomeFailure:
		r.OnFailure(ctx)
	}
}

// Reporters fans every callback out to each reporter in order.
type Reporters []Reporter

func (rs Reporters) OnSuccess(ctx context.Context, orderID string) {
	for _, r := range rs {
		r.OnSuccess(ctx, orderID)
	}
}

func (rs Reporters) OnPartial(ctx context.Context, orderID string, failed int) {
	for _, r := range rs {
		r.OnPartial(ctx, orderID, failed)
	}
}

func (rs Reporters) OnFailure(ctx context.Context) {
	for _, r := range rs {
		r.OnFailure(ctx)
	}
}

func (rs Reporters) OnRetry(ctx context.Context) {
	for _, r := range rs {
		r.OnRetry(ctx)
	}
}

// LogReporter writes terminal outcomes to the structured log.
type LogReporter struct {
	Logg *logger.Logger
}

func (l LogReporter) OnSuccess(ctx context.Context, orderID string) {
	l.Logg.Info(l.Logg.WithField(ctx, "order_id", orderID), "checkout succeeded")
}

func (l LogReporter) OnPartial(ctx context.Context, orderID string, failed int) {
	l.Logg.Warn(l.Logg.WithFields(ctx, map[string]any{"order_id": orderID, "failed": failed}), "checkout partially succeeded")
}

func (l LogReporter) OnFailure(ctx context.Context) {
	l.Logg.Warn(ctx, "checkout failed, no orders created")
}

func (l LogReporter) OnRetry(ctx context.Context) {
	l.Logg.Info(ctx, "checkout reopened for retry")
}

// shouldClearCart holds only for cart-originated sessions that placed at least one order.
func shouldClearCart(sess *Session, o Outcome) bool {
	return sess.OriginIsSharedCart && o.Kind.Placed()
}

// applyOutcome moves the session into its terminal state. A failure keeps the
// delivery confirmation and payment channel but drops the payment proof.
func applyOutcome(sess *Session, o Outcome, in SubmitInput) {
	sess.Submitting = false
	sess.SubmittingSince = time.Time{}
	sess.Terminal = &TerminalState{
		Outcome:     o.Kind,
		OrderID:     o.OrderID,
		FailedCount: o.Failed,
		FailedItems: o.FailedItems,
	}
	if o.Kind == enums.CheckoutOutcomeFailure {
		sess.RetryForm = &RetryForm{PaymentChannel: in.PaymentChannel}
		return
	}
	sess.RetryForm = nil
}
