package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/topupstore-backend/api/middleware"
	"github.com/angelmondragon/topupstore-backend/api/responses"
	"github.com/angelmondragon/topupstore-backend/api/validators"
	checkoutsvc "github.com/angelmondragon/topupstore-backend/internal/checkout"
	"github.com/angelmondragon/topupstore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/topupstore-backend/pkg/errors"
	"github.com/angelmondragon/topupstore-backend/pkg/logger"
)

type startCheckoutRequest struct {
	Payload *checkoutsvc.Payload `json:"payload,omitempty"`
}

type quantityRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

type gameRequest struct {
	PlayerID      string `json:"player_id" validate:"max=64"`
	ZoneID        string `json:"zone_id" validate:"max=32"`
	AccountHandle string `json:"account_handle" validate:"max=64"`
}

type deliveryMethodRequest struct {
	Method enums.DeliveryMethod `json:"method" validate:"required,delivery_method"`
}

type contactRequest struct {
	Contact string `json:"contact" validate:"max=254"`
}

type submitRequest struct {
	PaymentChannel      enums.PaymentChannel `json:"payment_channel"`
	PayerAccountRef     string               `json:"payer_account_ref"`
	PayerTransactionRef string               `json:"payer_transaction_ref"`
}

type cartVisibilityRequest struct {
	Open *bool `json:"open" validate:"required"`
}

// CheckoutStart resolves the basket for a new checkout. The body is optional;
// without a payload the saved draft or the shared cart is used.
func CheckoutStart(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !serviceReady(w, r, svc, logg) {
			return
		}
		var req startCheckoutRequest
		if _, err := validators.DecodeOptionalJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sess, err := svc.Start(r.Context(), middleware.UserIDFromContext(r.Context()), req.Payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newSessionView(sess))
	}
}

func CheckoutGet(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !serviceReady(w, r, svc, logg) {
			return
		}
		sess, err := svc.Get(r.Context(), middleware.UserIDFromContext(r.Context()))
		writeSession(w, r, logg, sess, err)
	}
}

// CheckoutSetQuantity replaces the quantity of one line. Zero removes the line.
func CheckoutSetQuantity(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !serviceReady(w, r, svc, logg) {
			return
		}
		index, err := validators.ParseIndexParam(r, "index")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req quantityRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sess, err := svc.SetQuantity(r.Context(), middleware.UserIDFromContext(r.Context()), index, *req.Quantity)
		writeSession(w, r, logg, sess, err)
	}
}

func CheckoutIncrement(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return indexedMutation(svc, logg, func(ctx context.Context, userID string, index int) (*checkoutsvc.Session, error) {
		return svc.Increment(ctx, userID, index)
	})
}

func CheckoutDecrement(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return indexedMutation(svc, logg, func(ctx context.Context, userID string, index int) (*checkoutsvc.Session, error) {
		return svc.Decrement(ctx, userID, index)
	})
}

func CheckoutRemoveItem(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return indexedMutation(svc, logg, func(ctx context.Context, userID string, index int) (*checkoutsvc.Session, error) {
		return svc.RemoveItem(ctx, userID, index)
	})
}

func CheckoutUpdateGame(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !serviceReady(w, r, svc, logg) {
			return
		}
		var req gameRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sess, err := svc.UpdateGame(r.Context(), middleware.UserIDFromContext(r.Context()), checkoutsvc.GameContext{
			PlayerID:      validators.SanitizeString(req.PlayerID, 64),
			ZoneID:        validators.SanitizeString(req.ZoneID, 32),
			AccountHandle: validators.SanitizeString(req.AccountHandle, 64),
		})
		writeSession(w, r, logg, sess, err)
	}
}

func CheckoutChooseDelivery(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !serviceReady(w, r, svc, logg) {
			return
		}
		var req deliveryMethodRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sess, err := svc.ChooseDelivery(r.Context(), middleware.UserIDFromContext(r.Context()), req.Method)
		writeSession(w, r, logg, sess, err)
	}
}

func CheckoutEditContact(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !serviceReady(w, r, svc, logg) {
			return
		}
		var req contactRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sess, err := svc.EditContact(r.Context(), middleware.UserIDFromContext(r.Context()), req.Contact)
		writeSession(w, r, logg, sess, err)
	}
}

// CheckoutConfirmDelivery confirms the contact. profile_saved reports whether the
// contact was also stored as the buyer's default.
func CheckoutConfirmDelivery(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !serviceReady(w, r, svc, logg) {
			return
		}
		var req contactRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		res, err := svc.ConfirmDelivery(r.Context(), middleware.UserIDFromContext(r.Context()), req.Contact)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, confirmView{Session: newSessionView(res.Session), ProfileSaved: res.ProfileSaved})
	}
}

func CheckoutResetDelivery(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !serviceReady(w, r, svc, logg) {
			return
		}
		sess, err := svc.ResetDelivery(r.Context(), middleware.UserIDFromContext(r.Context()))
		writeSession(w, r, logg, sess, err)
	}
}

// CheckoutSubmit places one order per line item. A failed submission is still
// answered with 200 and outcome "failure"; the session keeps a retry form.
func CheckoutSubmit(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !serviceReady(w, r, svc, logg) {
			return
		}
		var req submitRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		notices := &noticeReporter{}
		res, err := svc.Submit(r.Context(), middleware.UserIDFromContext(r.Context()), checkoutsvc.SubmitInput{
			PaymentChannel:      req.PaymentChannel,
			PayerAccountRef:     req.PayerAccountRef,
			PayerTransactionRef: req.PayerTransactionRef,
		}, notices)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status := http.StatusOK
		if res.Outcome.Kind.Placed() {
			status = http.StatusCreated
		}
		responses.WriteSuccessStatus(w, status, newSubmitView(res, notices.notice))
	}
}

func CheckoutRetry(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !serviceReady(w, r, svc, logg) {
			return
		}
		sess, err := svc.Retry(r.Context(), middleware.UserIDFromContext(r.Context()), nil)
		writeSession(w, r, logg, sess, err)
	}
}

// CheckoutAbandon leaves the checkout and keeps the basket as a draft.
func CheckoutAbandon(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !serviceReady(w, r, svc, logg) {
			return
		}
		if err := svc.Abandon(r.Context(), middleware.UserIDFromContext(r.Context())); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

// CheckoutDismiss discards the session without saving a draft.
func CheckoutDismiss(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !serviceReady(w, r, svc, logg) {
			return
		}
		if err := svc.Dismiss(r.Context(), middleware.UserIDFromContext(r.Context())); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

func CartVisibility(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !serviceReady(w, r, svc, logg) {
			return
		}
		var req cartVisibilityRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.SetCartOpen(r.Context(), middleware.UserIDFromContext(r.Context()), *req.Open); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"open": *req.Open})
	}
}

func indexedMutation(svc checkoutsvc.Service, logg *logger.Logger, apply func(ctx context.Context, userID string, index int) (*checkoutsvc.Session, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !serviceReady(w, r, svc, logg) {
			return
		}
		index, err := validators.ParseIndexParam(r, "index")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sess, err := apply(r.Context(), middleware.UserIDFromContext(r.Context()), index)
		writeSession(w, r, logg, sess, err)
	}
}

func serviceReady(w http.ResponseWriter, r *http.Request, svc checkoutsvc.Service, logg *logger.Logger) bool {
	if svc == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
		return false
	}
	return true
}

func writeSession(w http.ResponseWriter, r *http.Request, logg *logger.Logger, sess *checkoutsvc.Session, err error) {
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	responses.WriteSuccess(w, newSessionView(sess))
}
