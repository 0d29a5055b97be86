package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/identity-core/internal/domain"
	"github.com/viralforge/identity-core/internal/ports"
	"golang.org/x/time/rate"
)

type ctxKey string

const (
	ctxKeyRequestID ctxKey = "request_id"
	ctxKeyTokenRaw  ctxKey = "token_raw"
	ctxKeyClaims    ctxKey = "auth_claims"
)

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", reqID)
		ctx := context.WithValue(r.Context(), ctxKeyRequestID, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				httpLogger().ErrorContext(r.Context(), "panic recovered",
					"operation", "http_panic_recovery",
					"outcome", "failure",
					"request_id", requestIDFromContext(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
					"panic", rec,
				)
				writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	bytes      int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *statusRecorder) Write(payload []byte) (int, error) {
	if r.statusCode == 0 {
		r.statusCode = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(payload)
	r.bytes += n
	return n, err
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(recorder, r)

		statusCode := recorder.statusCode
		if statusCode == 0 {
			statusCode = http.StatusOK
		}
		outcome := "success"
		if statusCode >= 400 {
			outcome = "failure"
		}

		fields := []any{
			"operation", "http_request",
			"outcome", outcome,
			"method", r.Method,
			"path", r.URL.Path,
			"status_code", statusCode,
			"bytes", recorder.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", requestIDFromContext(r.Context()),
		}
		switch {
		case statusCode >= 500:
			httpLogger().ErrorContext(r.Context(), "http request completed", fields...)
		case statusCode >= 400:
			httpLogger().WarnContext(r.Context(), "http request completed", fields...)
		default:
			httpLogger().InfoContext(r.Context(), "http request completed", fields...)
		}
	})
}

// ipRateLimiter throttles credential endpoints per client IP. Limiters are
// pruned after an idle period so the map stays bounded.
type ipRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiterEntry
	limit    rate.Limit
	burst    int
}

type ipLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const ipLimiterIdleTTL = 10 * time.Minute

func newIPRateLimiter(perSecond float64, burst int) *ipRateLimiter {
	return &ipRateLimiter{
		limiters: make(map[string]*ipLimiterEntry),
		limit:    rate.Limit(perSecond),
		burst:    burst,
	}
}

func (l *ipRateLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	entry, ok := l.limiters[ip]
	if !ok {
		entry = &ipLimiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[ip] = entry
	}
	entry.lastSeen = now

	if len(l.limiters) > 1024 {
		for key, e := range l.limiters {
			if now.Sub(e.lastSeen) > ipLimiterIdleTTL {
				delete(l.limiters, key)
			}
		}
	}
	return entry.limiter.Allow()
}

func (l *ipRateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(readIP(r)) {
			writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestIDFromContext(ctx context.Context) string {
	v := ctx.Value(ctxKeyRequestID)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func bearerTokenFromHeader(header string) (string, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", errors.New("missing bearer token")
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

// mapDomainError translates service errors to HTTP outcomes. Typed errors
// contribute detail fields (remaining attempts, retry hints) and, for
// rate-limit style responses, a Retry-After header.
func mapDomainError(w http.ResponseWriter, err error) (int, string, string, map[string]any) {
	var invalidCreds *domain.InvalidCredentialsError
	if errors.As(err, &invalidCreds) {
		return http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password",
			map[string]any{"remaining_attempts": invalidCreds.RemainingAttempts}
	}
	var locked *domain.AccountLockedError
	if errors.As(err, &locked) {
		w.Header().Set("Retry-After", strconv.Itoa(locked.RemainingSeconds))
		return http.StatusTooManyRequests, "ACCOUNT_LOCKED", "account temporarily locked",
			map[string]any{
				"locked_until":      locked.LockedUntil.UTC().Format(time.RFC3339),
				"remaining_seconds": locked.RemainingSeconds,
			}
	}
	var inactive *domain.AccountInactiveError
	if errors.As(err, &inactive) {
		return http.StatusForbidden, "ACCOUNT_INACTIVE", inactive.Reason,
			map[string]any{"account_status": string(inactive.Status)}
	}
	var invalidCode *domain.MFAInvalidCodeError
	if errors.As(err, &invalidCode) {
		return http.StatusUnauthorized, "MFA_CODE_INVALID", "verification code invalid",
			map[string]any{"remaining_attempts": invalidCode.RemainingAttempts}
	}
	var retryAfter *domain.RetryAfterError
	if errors.As(err, &retryAfter) {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter.RetryAfterSeconds))
		code, msg := "SMS_RATE_LIMITED", "sms send budget exceeded"
		if errors.Is(retryAfter.Kind, domain.ErrSMSCooldownActive) {
			code, msg = "SMS_COOLDOWN_ACTIVE", "sms resend cooldown active"
		}
		return http.StatusTooManyRequests, code, msg,
			map[string]any{"retry_after_seconds": retryAfter.RetryAfterSeconds}
	}

	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED", "invalid or missing credentials", nil
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password", nil
	case errors.Is(err, domain.ErrAccountLocked):
		return http.StatusTooManyRequests, "ACCOUNT_LOCKED", "account temporarily locked", nil
	case errors.Is(err, domain.ErrMFAInvalidToken):
		return http.StatusUnauthorized, "MFA_CHALLENGE_INVALID", "challenge token invalid", nil
	case errors.Is(err, domain.ErrMFAExpired):
		return http.StatusUnauthorized, "MFA_CHALLENGE_EXPIRED", "challenge expired; sign in again", nil
	case errors.Is(err, domain.ErrMFACodeAlreadyUsed):
		return http.StatusUnauthorized, "MFA_CODE_ALREADY_USED", "verification code already used", nil
	case errors.Is(err, domain.ErrSMSNotConfigured), errors.Is(err, domain.ErrSMSSendFailed):
		return http.StatusServiceUnavailable, "SMS_UNAVAILABLE", "sms delivery unavailable", nil
	case errors.Is(err, domain.ErrDeviceTrustNotFound):
		return http.StatusNotFound, "DEVICE_TRUST_NOT_FOUND", "device trust not found", nil
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound, "SESSION_NOT_FOUND", "session not found", nil
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, "RATE_LIMITED", "too many requests", nil
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "CONFLICT", err.Error(), nil
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "resource not found", nil
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error", nil
	}
}

func claimsFromContext(ctx context.Context) (ports.AuthClaims, bool) {
	v := ctx.Value(ctxKeyClaims)
	claims, ok := v.(ports.AuthClaims)
	return claims, ok
}
