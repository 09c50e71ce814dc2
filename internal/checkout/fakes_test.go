package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/topupstore-backend/internal/cart"
	"github.com/angelmondragon/topupstore-backend/internal/orders"
	"github.com/angelmondragon/topupstore-backend/internal/users"
	"github.com/angelmondragon/topupstore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/topupstore-backend/pkg/errors"
	pkgredis "github.com/angelmondragon/topupstore-backend/pkg/redis"
	"github.com/shopspring/decimal"
)

func item(label string, price string, qty int) LineItem {
	return LineItem{
		Label:       label,
		UnitPrice:   decimal.RequireFromString(price),
		Quantity:    qty,
		ProductName: "Product " + label,
		ProductType: enums.ProductTypeGameCredit,
	}
}

func confirmedSession(t interface{ Fatalf(string, ...any) }, items ...LineItem) *Session {
	sess := newSession("user-1", items, nil, false, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	selecting, err := sess.Delivery.Choose(enums.DeliveryMethodEmail, "")
	if err != nil {
		t.Fatalf("choose: %v", err)
	}
	confirmed, err := selecting.Confirm("buyer@example.com")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	sess.Delivery = confirmed
	return sess
}

func validInput() SubmitInput {
	return SubmitInput{
		PaymentChannel:      enums.PaymentChannelBankTransfer,
		PayerAccountRef:     "ACC-1",
		PayerTransactionRef: "TX-1",
	}
}

// stubCreator fails the labels listed in fail and records every call.
type stubCreator struct {
	mu      sync.Mutex
	fail    map[string]bool
	panicOn map[string]bool
	calls   []orders.Record
	seq     int
}

func (s *stubCreator) Create(_ context.Context, rec orders.Record) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, rec)
	s.seq++
	id := fmt.Sprintf("order-%s", rec.ItemLabel)
	s.mu.Unlock()
	if s.panicOn[rec.ItemLabel] {
		panic("boom")
	}
	if s.fail[rec.ItemLabel] {
		return "", errors.New("remote store rejected " + rec.ItemLabel)
	}
	return id, nil
}

func (s *stubCreator) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type stubRecorder struct {
	mu       sync.Mutex
	created  int
	failed   int
	outcomes []string
}

func (r *stubRecorder) ObserveRecordCreation(ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ok {
		r.created++
		return
	}
	r.failed++
}

func (r *stubRecorder) ObserveSubmit(outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

type stubDrafts struct {
	drafts  map[string]*Session
	takeErr error
	taken   int
	saved   []*Session
}

func newStubDrafts() *stubDrafts {
	return &stubDrafts{drafts: map[string]*Session{}}
}

func (d *stubDrafts) Take(_ context.Context, userID string) (*Session, error) {
	d.taken++
	if d.takeErr != nil {
		return nil, d.takeErr
	}
	sess, ok := d.drafts[userID]
	if !ok {
		return nil, nil
	}
	delete(d.drafts, userID)
	return sess, nil
}

func (d *stubDrafts) Save(_ context.Context, sess *Session) error {
	d.saved = append(d.saved, sess)
	d.drafts[sess.UserID] = sess
	return nil
}

type stubCart struct {
	carts    map[string]*cart.Cart
	loadErr  error
	clearErr error
	loads    int
	cleared  []string
	open     map[string]bool
}

func newStubCart() *stubCart {
	return &stubCart{carts: map[string]*cart.Cart{}, open: map[string]bool{}}
}

func (c *stubCart) Load(_ context.Context, userID string) (*cart.Cart, error) {
	c.loads++
	if c.loadErr != nil {
		return nil, c.loadErr
	}
	found, ok := c.carts[userID]
	if !ok {
		return nil, cart.ErrNotFound
	}
	return found, nil
}

func (c *stubCart) Clear(_ context.Context, userID string) error {
	if c.clearErr != nil {
		return c.clearErr
	}
	c.cleared = append(c.cleared, userID)
	if found, ok := c.carts[userID]; ok {
		found.Items = nil
	}
	return nil
}

func (c *stubCart) SetOpen(_ context.Context, userID string, open bool) error {
	c.open[userID] = open
	return nil
}

type stubSessions struct {
	mu       sync.Mutex
	sessions map[string][]byte
	locked   map[string]bool
	puts     int
	// failTerminal rejects every write of a session that carries an outcome.
	failTerminal bool
}

func newStubSessions() *stubSessions {
	return &stubSessions{sessions: map[string][]byte{}, locked: map[string]bool{}}
}

func (s *stubSessions) Get(_ context.Context, userID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.sessions[userID]
	if !ok {
		return nil, notFound()
	}
	return decodeSession(raw)
}

func (s *stubSessions) Put(_ context.Context, sess *Session) error {
	if s.failTerminal && sess.Terminal != nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "redis unavailable")
	}
	raw, err := encodeSession(sess)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.UserID] = raw
	s.puts++
	return nil
}

func (s *stubSessions) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
	return nil
}

func (s *stubSessions) AcquireSubmitLock(_ context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locked[userID] {
		return false, nil
	}
	s.locked[userID] = true
	return true, nil
}

func (s *stubSessions) ReleaseSubmitLock(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locked, userID)
	return nil
}

type stubUsers struct {
	account *users.Account
	err     error
}

func (u stubUsers) CurrentUser(context.Context, string) (*users.Account, error) {
	return u.account, u.err
}

type stubProfiles struct {
	err   error
	saved []string
}

func (p *stubProfiles) SaveDeliveryContact(_ context.Context, _ string, method enums.DeliveryMethod, value string) error {
	if p.err != nil {
		return p.err
	}
	p.saved = append(p.saved, string(method)+":"+value)
	return nil
}

type stubNotifier struct {
	placed []PlacedOrder
	err    error
}

func (n *stubNotifier) NotifyPlaced(_ context.Context, placed []PlacedOrder) error {
	n.placed = append(n.placed, placed...)
	return n.err
}

type captureReporter struct {
	events []string
}

func (c *captureReporter) OnSuccess(_ context.Context, orderID string) {
	c.events = append(c.events, "success:"+orderID)
}

func (c *captureReporter) OnPartial(_ context.Context, orderID string, failed int) {
	c.events = append(c.events, fmt.Sprintf("partial:%s:%d", orderID, failed))
}

func (c *captureReporter) OnFailure(context.Context) {
	c.events = append(c.events, "failure")
}

func (c *captureReporter) OnRetry(context.Context) {
	c.events = append(c.events, "retry")
}

// memoryKV mimics the subset of the Redis client used by the stores.
type memoryKV struct {
	values map[string]string
	ttls   map[string]time.Duration
	err    error
}

func newMemoryKV() *memoryKV {
	return &memoryKV{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryKV) Get(_ context.Context, key string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	v, ok := m.values[key]
	if !ok {
		return "", pkgredis.ErrNotFound
	}
	return v, nil
}

func (m *memoryKV) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	if m.err != nil {
		return m.err
	}
	m.values[key] = fmt.Sprint(value)
	m.ttls[key] = ttl
	return nil
}

func (m *memoryKV) Take(ctx context.Context, key string) (string, error) {
	v, err := m.Get(ctx, key)
	if err != nil {
		return "", err
	}
	delete(m.values, key)
	return v, nil
}

func (m *memoryKV) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = fmt.Sprint(value)
	m.ttls[key] = ttl
	return true, nil
}

func (m *memoryKV) Del(_ context.Context, keys ...string) error {
	if m.err != nil {
		return m.err
	}
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func (m *memoryKV) CheckoutSessionKey(userID string) string { return "session:" + userID }

func (m *memoryKV) CheckoutDraftKey(userID string) string { return "draft:" + userID }

func (m *memoryKV) CheckoutLockKey(userID string) string { return "lock:" + userID }

func notFound() error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "no active checkout")
}

func encodeSession(sess *Session) ([]byte, error) {
	return json.Marshal(sess)
}

func decodeSession(raw []byte) (*Session, error) {
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}
