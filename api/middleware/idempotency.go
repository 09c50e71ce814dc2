package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/topupstore-backend/api/responses"
	pkgerrors "github.com/angelmondragon/topupstore-backend/pkg/errors"
	"github.com/angelmondragon/topupstore-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/topupstore-backend/pkg/redis"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"

	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour
	pendingIdempotencyTTL  = 5 * time.Minute
)

// Only the order-placing endpoints are guarded. Keys are "METHOD path".
var idempotentRoutes = map[string]time.Duration{
	http.MethodPost + " /api/v1/checkout/session/submit": criticalIdempotencyTTL,
	http.MethodPost + " /api/v1/checkout/session/retry":  defaultIdempotencyTTL,
}

func routeTTL(method, path string) (time.Duration, bool) {
	if path == "" {
		return 0, false
	}
	ttl, ok := idempotentRoutes[method+" "+path]
	return ttl, ok
}

// idempotencyRecord is either a pending claim or a completed response.
type idempotencyRecord struct {
	Pending     bool   `json:"pending,omitempty"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
	RequestHash string `json:"request_hash"`
}

var errStillProcessing = pkgerrors.New(pkgerrors.CodeConflict, "request with this idempotency key is still processing")

// Idempotency makes order placement safe to retry. The first request with a
// given Idempotency-Key claims it; duplicates arriving while it runs get 409,
// later ones receive the stored response. 5xx responses release the key.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, guarded := routeTTL(r.Method, strings.TrimSuffix(r.URL.Path, "/"))
			if !guarded || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if clientKey == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, idempotencyHeader+" header required"))
				return
			}
			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			sum := sha256.Sum256(body)
			requestHash := hex.EncodeToString(sum[:])
			key := store.IdempotencyKey(UserIDFromContext(ctx)+"|"+r.Method+"|"+r.URL.Path, clientKey)

			stored, err := claimKey(ctx, store, key, requestHash)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			if stored != nil {
				replay(w, *stored)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			storeResponse(context.WithoutCancel(ctx), store, logg, key, ttl, requestHash, capture)
		})
	}
}

// claimKey returns (nil, nil) when the caller now owns key, or the completed
// record that should be replayed instead of running the handler.
func claimKey(ctx context.Context, store pkgredis.IdempotencyStore, key, requestHash string) (*idempotencyRecord, error) {
	stored, err := store.Get(ctx, key)
	switch {
	case err == nil && stored != "":
		var record idempotencyRecord
		if err := json.Unmarshal([]byte(stored), &record); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record")
		}
		if record.RequestHash != requestHash {
			return nil, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body")
		}
		if record.Pending {
			return nil, errStillProcessing
		}
		return &record, nil
	case err != nil && !pkgredis.IsNotFound(err):
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency")
	}

	pending, _ := json.Marshal(idempotencyRecord{Pending: true, RequestHash: requestHash})
	claimed, err := store.SetNX(ctx, key, string(pending), pendingIdempotencyTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key")
	}
	if !claimed {
		return nil, errStillProcessing
	}
	return nil, nil
}

// storeResponse overwrites the pending claim in place, so no duplicate can
// slip in between. Only server errors give the key back.
func storeResponse(ctx context.Context, store pkgredis.IdempotencyStore, logg *logger.Logger, key string, ttl time.Duration, requestHash string, capture *responseCapture) {
	status := capture.statusCode()
	if status >= http.StatusInternalServerError {
		releaseKey(ctx, store, logg, key)
		return
	}
	payload, err := json.Marshal(idempotencyRecord{
		Status:      status,
		ContentType: capture.Header().Get("Content-Type"),
		Body:        capture.body.Bytes(),
		RequestHash: requestHash,
	})
	if err != nil {
		logError(ctx, logg, "marshal idempotency record", err)
		releaseKey(ctx, store, logg, key)
		return
	}
	if err := store.Set(ctx, key, string(payload), ttl); err != nil {
		logError(ctx, logg, "persist idempotency record", err)
	}
}

func releaseKey(ctx context.Context, store pkgredis.IdempotencyStore, logg *logger.Logger, key string) {
	if err := store.Del(ctx, key); err != nil {
		logError(ctx, logg, "release idempotency key", err)
	}
}

func replay(w http.ResponseWriter, record idempotencyRecord) {
	if record.ContentType != "" {
		w.Header().Set("Content-Type", record.ContentType)
	}
	w.Header().Set(replayedHeader, "true")
	w.WriteHeader(record.Status)
	_, _ = w.Write(record.Body)
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *responseCapture) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseCapture) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseCapture) statusCode() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

func logError(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg != nil && err != nil {
		logg.Error(ctx, msg, err)
	}
}
