package checkout

import (
	"context"
	"strings"
	"time"

	"github.com/angelmondragon/topupstore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/topupstore-backend/pkg/errors"
	"github.com/angelmondragon/topupstore-backend/pkg/logger"
)

// ServiceParams groups dependencies for the checkout service.
type ServiceParams struct {
	Sessions     SessionStore
	Drafts       DraftStore
	Cart         SharedCart
	Users        UserDirectory
	Profiles     ProfileWriter
	Resolver     *Resolver
	Orchestrator *Orchestrator
	Notifier     OrderNotifier
	Logger       *logger.Logger
}

// Service exposes the checkout flow of the authenticated buyer.
type Service interface {
	Start(ctx context.Context, userID string, payload *Payload) (*Session, error)
	Get(ctx context.Context, userID string) (*Session, error)
	SetQuantity(ctx context.Context, userID string, index, quantity int) (*Session, error)
	Increment(ctx context.Context, userID string, index int) (*Session, error)
	Decrement(ctx context.Context, userID string, index int) (*Session, error)
	RemoveItem(ctx context.Context, userID string, index int) (*Session, error)
	UpdateGame(ctx context.Context, userID string, game GameContext) (*Session, error)
	ChooseDelivery(ctx context.Context, userID string, method enums.DeliveryMethod) (*Session, error)
	EditContact(ctx context.Context, userID, value string) (*Session, error)
	ConfirmDelivery(ctx context.Context, userID, value string) (ConfirmResult, error)
	ResetDelivery(ctx context.Context, userID string) (*Session, error)
	Submit(ctx context.Context, userID string, in SubmitInput, reporter Reporter) (SubmitResult, error)
	Retry(ctx context.Context, userID string, reporter Reporter) (*Session, error)
	Abandon(ctx context.Context, userID string) error
	Dismiss(ctx context.Context, userID string) error
	SetCartOpen(ctx context.Context, userID string, open bool) error
}

// ConfirmResult reports whether the confirmed contact was also stored on the profile.
type ConfirmResult struct {
	Session      *Session
	ProfileSaved bool
}

// SubmitResult is the terminal view of one submission.
type SubmitResult struct {
	Outcome     Outcome
	Session     *Session
	CartCleared bool
}

type service struct {
	sessions     SessionStore
	drafts       DraftStore
	cart         SharedCart
	users        UserDirectory
	profiles     ProfileWriter
	resolver     *Resolver
	orchestrator *Orchestrator
	notifier     OrderNotifier
	logg         *logger.Logger
	now          func() time.Time
}

// terminalWriteAttempts bounds how often Submit tries to store the outcome
// before dropping the session.
const terminalWriteAttempts = 2

var errSubmitting = pkgerrors.New(pkgerrors.CodeStateConflict, "checkout is being submitted")

// NewService builds the checkout service. Notifier and Logger are optional.
func NewService(params ServiceParams) (Service, error) {
	if params.Sessions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session store is required")
	}
	if params.Drafts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "draft store is required")
	}
	if params.Cart == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shared cart is required")
	}
	if params.Users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user directory is required")
	}
	if params.Profiles == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "profile writer is required")
	}
	if params.Resolver == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "resolver is required")
	}
	if params.Orchestrator == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "orchestrator is required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		sessions:     params.Sessions,
		drafts:       params.Drafts,
		cart:         params.Cart,
		users:        params.Users,
		profiles:     params.Profiles,
		resolver:     params.Resolver,
		orchestrator: params.Orchestrator,
		notifier:     params.Notifier,
		logg:         logg,
		now:          time.Now,
	}, nil
}

// Start resolves the basket and stores it as the user's active session,
// replacing any session that is not mid-submission.
func (s *service) Start(ctx context.Context, userID string, payload *Payload) (*Session, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if payload != nil {
		if err := validateLineItems(payload.LineItems); err != nil {
			return nil, err
		}
	}
	existing, err := s.sessions.Get(ctx, userID)
	if err != nil && !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		return nil, err
	}
	if existing != nil && s.submitInFlight(existing) {
		return nil, errSubmitting
	}

	sess, ok := s.resolver.Resolve(ctx, ResolveInput{UserID: userID, Payload: payload})
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no checkout basket available")
	}
	if err := s.sessions.Put(ctx, sess); err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(s.logg.WithCheckoutID(ctx, sess.ID), map[string]any{
		"line_items": len(sess.LineItems),
		"from_cart":  sess.OriginIsSharedCart,
	}), "checkout session started")
	return sess, nil
}

func (s *service) Get(ctx context.Context, userID string) (*Session, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	return s.sessions.Get(ctx, userID)
}

func (s *service) SetQuantity(ctx context.Context, userID string, index, quantity int) (*Session, error) {
	return s.mutate(ctx, userID, func(sess *Session) error {
		_, err := sess.SetQuantity(index, quantity)
		return err
	})
}

func (s *service) Increment(ctx context.Context, userID string, index int) (*Session, error) {
	return s.mutate(ctx, userID, func(sess *Session) error {
		_, err := sess.Increment(index)
		return err
	})
}

func (s *service) Decrement(ctx context.Context, userID string, index int) (*Session, error) {
	return s.mutate(ctx, userID, func(sess *Session) error {
		_, err := sess.Decrement(index)
		return err
	})
}

func (s *service) RemoveItem(ctx context.Context, userID string, index int) (*Session, error) {
	return s.mutate(ctx, userID, func(sess *Session) error {
		_, err := sess.Remove(index)
		return err
	})
}

// UpdateGame replaces the game account the basket is delivered to.
func (s *service) UpdateGame(ctx context.Context, userID string, game GameContext) (*Session, error) {
	return s.mutate(ctx, userID, func(sess *Session) error {
		game.PlayerID = strings.TrimSpace(game.PlayerID)
		game.ZoneID = strings.TrimSpace(game.ZoneID)
		game.AccountHandle = strings.TrimSpace(game.AccountHandle)
		if game.Completeness() == 0 {
			sess.GameContext = nil
			return nil
		}
		sess.GameContext = &game
		return nil
	})
}

// ChooseDelivery enters Selecting with the profile's contact for method prefilled.
// A failing profile lookup leaves the contact empty.
func (s *service) ChooseDelivery(ctx context.Context, userID string, method enums.DeliveryMethod) (*Session, error) {
	return s.mutate(ctx, userID, func(sess *Session) error {
		defaultContact := ""
		if method.IsValid() {
			account, err := s.users.CurrentUser(ctx, userID)
			if err != nil {
				s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "profile lookup failed, no default contact")
			} else if account != nil {
				defaultContact = account.DefaultContact(method)
			}
		}
		next, err := sess.Delivery.Choose(method, defaultContact)
		if err != nil {
			return err
		}
		sess.Delivery = next
		return nil
	})
}

func (s *service) EditContact(ctx context.Context, userID, value string) (*Session, error) {
	return s.mutate(ctx, userID, func(sess *Session) error {
		next, err := sess.Delivery.Edit(value)
		if err != nil {
			return err
		}
		sess.Delivery = next
		return nil
	})
}

// ConfirmDelivery confirms the contact and stores it on the profile. A failed
// profile write is logged and does not undo the confirmation.
func (s *service) ConfirmDelivery(ctx context.Context, userID, value string) (ConfirmResult, error) {
	sess, err := s.mutate(ctx, userID, func(sess *Session) error {
		next, err := sess.Delivery.Confirm(value)
		if err != nil {
			return err
		}
		sess.Delivery = next
		return nil
	})
	if err != nil {
		return ConfirmResult{}, err
	}

	result := ConfirmResult{Session: sess, ProfileSaved: true}
	if err := s.profiles.SaveDeliveryContact(ctx, userID, sess.Delivery.Method(), sess.Delivery.Contact()); err != nil {
		result.ProfileSaved = false
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "saving delivery contact to profile failed")
	}
	return result, nil
}

func (s *service) ResetDelivery(ctx context.Context, userID string) (*Session, error) {
	return s.mutate(ctx, userID, func(sess *Session) error {
		next, err := sess.Delivery.Reset()
		if err != nil {
			return err
		}
		sess.Delivery = next
		return nil
	})
}

// Submit creates one order per line item and moves the session to its terminal
// state. Validation failures are returned as errors and leave the session untouched.
func (s *service) Submit(ctx context.Context, userID string, in SubmitInput, reporter Reporter) (SubmitResult, error) {
	if err := requireUser(userID); err != nil {
		return SubmitResult{}, err
	}
	locked, err := s.sessions.AcquireSubmitLock(ctx, userID)
	if err != nil {
		return SubmitResult{}, err
	}
	if !locked {
		return SubmitResult{}, pkgerrors.New(pkgerrors.CodeConflict, "a submission is already in progress")
	}
	defer func() {
		if err := s.sessions.ReleaseSubmitLock(context.WithoutCancel(ctx), userID); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "releasing submit lock failed")
		}
	}()

	sess, err := s.sessions.Get(ctx, userID)
	if err != nil {
		return SubmitResult{}, err
	}
	ctx = s.logg.WithCheckoutID(ctx, sess.ID)
	if err := s.ensureEditable(sess); err != nil {
		return SubmitResult{}, err
	}
	if err := s.orchestrator.Precheck(sess, in); err != nil {
		return SubmitResult{}, err
	}

	sess.Submitting = true
	sess.SubmittingSince = s.now().UTC()
	if err := s.sessions.Put(ctx, sess); err != nil {
		return SubmitResult{}, err
	}

	outcome := s.orchestrator.Submit(ctx, sess, in, func(orderID string) {
		s.logg.Info(s.logg.WithField(ctx, "order_id", orderID), "first order record created")
	})

	// Everything below runs after orders exist and must not be cut short by the caller.
	ctx = context.WithoutCancel(ctx)
	result := SubmitResult{Outcome: outcome, Session: sess}
	if shouldClearCart(sess, outcome) {
		if err := s.cart.Clear(ctx, userID); err != nil {
			s.logg.Error(ctx, "clearing shared cart failed", err)
		} else {
			result.CartCleared = true
		}
	}

	applyOutcome(sess, outcome, in)
	s.storeTerminal(ctx, sess)

	if s.notifier != nil {
		if placed := outcome.Placed(); len(placed) > 0 {
			if err := s.notifier.NotifyPlaced(ctx, placed); err != nil {
				s.logg.Error(ctx, "publishing placed orders failed", err)
			}
		}
	}

	reporters := Reporters{LogReporter{Logg: s.logg}}
	if reporter != nil {
		reporters = append(reporters, reporter)
	}
	Report(ctx, reporters, outcome)
	return result, nil
}

// Retry reopens a failed session for another submission.
func (s *service) Retry(ctx context.Context, userID string, reporter Reporter) (*Session, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	sess, err := s.sessions.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sess.Terminal == nil || sess.Terminal.Outcome != enums.CheckoutOutcomeFailure {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only a failed checkout can be retried")
	}
	sess.Terminal = nil
	if err := s.sessions.Put(ctx, sess); err != nil {
		return nil, err
	}
	Reporters{LogReporter{Logg: s.logg}}.OnRetry(ctx)
	if reporter != nil {
		reporter.OnRetry(ctx)
	}
	return sess, nil
}

// Abandon persists the active session as a draft. Finished sessions are only discarded.
func (s *service) Abandon(ctx context.Context, userID string) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	sess, err := s.sessions.Get(ctx, userID)
	if err != nil {
		return err
	}
	if s.submitInFlight(sess) {
		return errSubmitting
	}
	// A stalled submission may already have placed orders, so it is never kept as a draft.
	if !sess.Submitting && sess.Terminal == nil && len(sess.LineItems) > 0 {
		if err := s.drafts.Save(ctx, sess); err != nil {
			return err
		}
	}
	return s.sessions.Delete(ctx, userID)
}

// Dismiss discards the active session without keeping a draft.
func (s *service) Dismiss(ctx context.Context, userID string) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	sess, err := s.sessions.Get(ctx, userID)
	if err != nil {
		return err
	}
	if s.submitInFlight(sess) {
		return errSubmitting
	}
	return s.sessions.Delete(ctx, userID)
}

func (s *service) SetCartOpen(ctx context.Context, userID string, open bool) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	if err := s.cart.SetOpen(ctx, userID, open); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart visibility")
	}
	return nil
}

func (s *service) mutate(ctx context.Context, userID string, apply func(*Session) error) (*Session, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	sess, err := s.sessions.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureEditable(sess); err != nil {
		return nil, err
	}
	if err := apply(sess); err != nil {
		return nil, err
	}
	if err := s.sessions.Put(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// storeTerminal writes the outcome. When every attempt fails the session is
// deleted so the buyer is not held in Submitting until the session expires.
func (s *service) storeTerminal(ctx context.Context, sess *Session) {
	var err error
	for attempt := 0; attempt < terminalWriteAttempts; attempt++ {
		if err = s.sessions.Put(ctx, sess); err == nil {
			return
		}
	}
	s.logg.Error(ctx, "storing terminal checkout state failed, dropping session", err)
	if err := s.sessions.Delete(ctx, sess.UserID); err != nil {
		s.logg.Error(ctx, "dropping unfinished checkout session failed", err)
	}
}

// submitInFlight is true while a submission may still be creating orders.
func (s *service) submitInFlight(sess *Session) bool {
	return sess.Submitting && !sess.stalledSubmission(s.now())
}

func (s *service) ensureEditable(sess *Session) error {
	if sess.stalledSubmission(s.now()) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "previous submission did not complete, start a new checkout")
	}
	return sess.ensureEditable()
}

func requireUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user id is required")
	}
	return nil
}
