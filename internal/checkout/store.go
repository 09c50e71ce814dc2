package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pkgerrors "github.com/angelmondragon/topupstore-backend/pkg/errors"
	pkgredis "github.com/angelmondragon/topupstore-backend/pkg/redis"
)

const submitLockTTL = 2 * time.Minute

// ErrCorruptDraft marks a stored draft that could not be decoded. The draft is
// already gone when this is returned.
var ErrCorruptDraft = errors.New("corrupt checkout draft")

type keyValueStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Take(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	CheckoutSessionKey(userID string) string
	CheckoutDraftKey(userID string) string
	CheckoutLockKey(userID string) string
}

// RedisSessionStore keeps the active session of each user in Redis.
type RedisSessionStore struct {
	kv  keyValueStore
	ttl time.Duration
}

// NewRedisSessionStore builds a session store whose entries expire after ttl.
func NewRedisSessionStore(kv keyValueStore, ttl time.Duration) (*RedisSessionStore, error) {
	if kv == nil {
		return nil, fmt.Errorf("redis store required")
	}
	return &RedisSessionStore{kv: kv, ttl: ttl}, nil
}

func (s *RedisSessionStore) Get(ctx context.Context, userID string) (*Session, error) {
	raw, err := s.kv.Get(ctx, s.kv.CheckoutSessionKey(userID))
	if err != nil {
		if pkgredis.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active checkout")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load checkout session")
	}
	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode checkout session")
	}
	return &sess, nil
}

func (s *RedisSessionStore) Put(ctx context.Context, sess *Session) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode checkout session")
	}
	if err := s.kv.Set(ctx, s.kv.CheckoutSessionKey(sess.UserID), string(payload), s.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store checkout session")
	}
	return nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, userID string) error {
	if err := s.kv.Del(ctx, s.kv.CheckoutSessionKey(userID)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete checkout session")
	}
	return nil
}

func (s *RedisSessionStore) AcquireSubmitLock(ctx context.Context, userID string) (bool, error) {
	ok, err := s.kv.SetNX(ctx, s.kv.CheckoutLockKey(userID), "1", submitLockTTL)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire submit lock")
	}
	return ok, nil
}

func (s *RedisSessionStore) ReleaseSubmitLock(ctx context.Context, userID string) error {
	if err := s.kv.Del(ctx, s.kv.CheckoutLockKey(userID)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release submit lock")
	}
	return nil
}

// RedisDraftStore persists abandoned sessions for at-most-once restoration.
type RedisDraftStore struct {
	kv  keyValueStore
	ttl time.Duration
}

// NewRedisDraftStore builds a draft store whose entries expire after ttl.
func NewRedisDraftStore(kv keyValueStore, ttl time.Duration) (*RedisDraftStore, error) {
	if kv == nil {
		return nil, fmt.Errorf("redis store required")
	}
	return &RedisDraftStore{kv: kv, ttl: ttl}, nil
}

// Take reads and deletes the draft in one step.
func (s *RedisDraftStore) Take(ctx context.Context, userID string) (*Session, error) {
	raw, err := s.kv.Take(ctx, s.kv.CheckoutDraftKey(userID))
	if err != nil {
		if pkgredis.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("take checkout draft: %w", err)
	}
	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptDraft, err)
	}
	return &sess, nil
}

func (s *RedisDraftStore) Save(ctx context.Context, sess *Session) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode checkout draft")
	}
	if err := s.kv.Set(ctx, s.kv.CheckoutDraftKey(sess.UserID), string(payload), s.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store checkout draft")
	}
	return nil
}
