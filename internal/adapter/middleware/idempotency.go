package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

const (
	HeaderRequestID = "Ax-Request-Id"
	HeaderRequestAt = "Ax-Request-At"
	// HeaderAccountID names the caller account that scopes an idempotency key.
	HeaderAccountID = "Ax-Account-Id"
	// HeaderReplayed is set on responses served from the idempotency store.
	HeaderReplayed = "Ax-Idempotent-Replay"
)

const (
	// lock held while the handler runs; a crashed handler frees the key after this
	provisionalLockTTL = 60 * time.Second
	maxClockSkew       = 10 * time.Minute
	storeTimeout       = 2 * time.Second
)

type idempEntry struct {
	InProgress  bool      `json:"in_progress"`
	Code        int       `json:"code"`
	ContentType string    `json:"content_type,omitempty"`
	Body        []byte    `json:"body"`
	BodySHA256  string    `json:"body_sha256"`
	RequestID   string    `json:"request_id"`
	RequestAtMS int64     `json:"request_at_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

func (e idempEntry) replayable() bool {
	return !e.InProgress && e.Code != 0 && len(e.Body) > 0
}

type respRecorder struct {
	w    http.ResponseWriter
	buf  bytes.Buffer
	code int
}

func (r *respRecorder) Header() http.Header { return r.w.Header() }
func (r *respRecorder) Write(b []byte) (int, error) {
	r.buf.Write(b)
	return r.w.Write(b)
}
func (r *respRecorder) WriteHeader(statusCode int) { r.code = statusCode; r.w.WriteHeader(statusCode) }

// idempHeaders are the caller-supplied fields that identify one logical request.
type idempHeaders struct {
	requestID string
	requestAt time.Time
	account   string
}

func readIdempHeaders(h http.Header, now time.Time) (idempHeaders, error) {
	var out idempHeaders

	out.requestID = strings.TrimSpace(h.Get(HeaderRequestID))
	if out.requestID == "" {
		return out, errors.New("missing " + HeaderRequestID)
	}
	if !validReqID(out.requestID) {
		return out, errors.New("invalid " + HeaderRequestID + " format")
	}

	at, err := parseAxRequestAt(h.Get(HeaderRequestAt))
	if err != nil {
		return out, err
	}
	if at.Before(now.Add(-maxClockSkew)) || at.After(now.Add(maxClockSkew)) {
		return out, errors.New(HeaderRequestAt + " too skewed")
	}
	out.requestAt = at

	out.account = strings.TrimSpace(h.Get(HeaderAccountID))
	if out.account == "" {
		return out, errors.New("missing " + HeaderAccountID)
	}
	if !reAccount.MatchString(out.account) {
		return out, errors.New("invalid " + HeaderAccountID)
	}
	return out, nil
}

// IdempotencyMiddleware makes loan and deposit POSTs safe to retry. The key
// is method + route + Ax-Account-Id + Ax-Request-Id. Ax-Request-At must be
// epoch (s or ms) or RFC3339 with a zone.
//
// A retry with the same body replays the stored response; a retry with a
// different body, or one racing an in-flight request, gets 409. 5xx
// responses are dropped from the store so the retry runs for real.
func IdempotencyMiddleware(rdb redis.Cmdable, ttl time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			switch req.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				return next(c)
			}

			hdr, err := readIdempHeaders(req.Header, nowUTC())
			if err != nil {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
			}

			var body []byte
			if req.Body != nil {
				body, _ = io.ReadAll(req.Body)
			}
			req.Body = io.NopCloser(bytes.NewReader(body))
			bhash := bodyHash(body)

			key := buildKey(req.Method, c.Path(), hdr.account, hdr.requestID)
			ctx, cancel := context.WithTimeout(req.Context(), storeTimeout)
			defer cancel()

			entry := idempEntry{
				InProgress:  true,
				BodySHA256:  bhash,
				RequestID:   hdr.requestID,
				RequestAtMS: hdr.requestAt.UnixMilli(),
				CreatedAt:   nowUTC(),
			}
			locked, err := provisionalSet(ctx, rdb, key, entry)
			if err != nil {
				slog.ErrorContext(ctx, "idempotency lock failed", "key", key, "err", err)
				return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "idempotency store unavailable"})
			}
			if !locked {
				return answerDuplicate(ctx, c, rdb, key, bhash)
			}

			rec := &respRecorder{w: c.Response().Writer, code: http.StatusOK}
			c.Response().Writer = rec
			if err := next(c); err != nil {
				c.Error(err)
			}

			// the request context may be done by now
			done, cancelDone := context.WithTimeout(context.WithoutCancel(req.Context()), storeTimeout)
			defer cancelDone()

			if rec.code >= http.StatusInternalServerError {
				if err := rdb.Del(done, key).Err(); err != nil {
					slog.Warn("idempotency lock release failed", "key", key, "err", err)
				}
				return nil
			}
			entry.InProgress = false
			entry.Code = rec.code
			entry.ContentType = rec.Header().Get(echo.HeaderContentType)
			entry.Body = rec.buf.Bytes()
			entry.CreatedAt = nowUTC()
			if err := saveFinal(done, rdb, key, entry, ttl); err != nil {
				slog.Warn("idempotency entry save failed", "key", key, "err", err)
			}
			return nil
		}
	}
}

func answerDuplicate(ctx context.Context, c echo.Context, rdb redis.Cmdable, key, bhash string) error {
	cur, err := loadEntry(ctx, rdb, key)
	if err != nil {
		slog.WarnContext(ctx, "idempotency entry load failed", "key", key, "err", err)
	}
	if cur.BodySHA256 != "" && cur.BodySHA256 != bhash {
		return c.JSON(http.StatusConflict, map[string]string{"error": HeaderRequestID + " reused with different body"})
	}
	if !cur.replayable() {
		return c.JSON(http.StatusConflict, map[string]string{"error": "request is already in progress"})
	}
	ct := cur.ContentType
	if ct == "" {
		ct = echo.MIMEApplicationJSON
	}
	c.Response().Header().Set(HeaderReplayed, "true")
	return c.Blob(cur.Code, ct, cur.Body)
}
