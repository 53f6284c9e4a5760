package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gatherlyapp/gatherly-server/internal/http/response"
	"github.com/gatherlyapp/gatherly-server/internal/ratelimit"
)

// EnvelopeVersion is the wire version of the response envelope. Bump only on
// breaking envelope changes; clients check this field before parsing.
const EnvelopeVersion = 1

// Envelope is the uniform response wrapper produced by EnvelopeTransformer.
type Envelope struct {
	V       int    `json:"v"`
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty"`
}

// EnvelopeTransformer wraps every huma response body in the envelope.
// 2xx bodies become {v, success: true, data}; APIError bodies become
// {v, success: false, error, code, message, details}.
func EnvelopeTransformer(_ huma.Context, status string, v any) (any, error) {
	if apiErr, ok := v.(*APIError); ok {
		return &Envelope{
			V:       EnvelopeVersion,
			Success: false,
			Error:   apiErr.Message,
			Code:    apiErr.Code,
			Message: apiErr.Message,
			Details: apiErr.Details,
		}, nil
	}

	// Other huma.StatusError implementations (schema validation, etc.)
	// normally never reach here once RegisterErrorHandler is installed, but
	// wrap them the same way if one slips through.
	if statusErr, ok := v.(huma.StatusError); ok {
		return &Envelope{
			V:       EnvelopeVersion,
			Success: false,
			Error:   statusErr.Error(),
			Code:    statusToCode(statusErr.GetStatus()),
			Message: statusErr.Error(),
		}, nil
	}

	success := strings.HasPrefix(status, "2")
	return &Envelope{
		V:       EnvelopeVersion,
		Success: success,
		Data:    v,
	}, nil
}

// ctxKey is the type for context keys to avoid collisions.
type ctxKey string

const (
	clientIPKey  ctxKey = "clientIP"
	userAgentKey ctxKey = "userAgent"
)

// ClientIP returns the client IP stored by clientInfoMiddleware.
// Returns empty string if the middleware did not run.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey).(string); ok {
		return ip
	}
	return ""
}

// RequestUserAgent returns the User-Agent stored by clientInfoMiddleware.
func RequestUserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(userAgentKey).(string); ok {
		return ua
	}
	return ""
}

// clientInfoMiddleware stores the client IP and User-Agent in the request
// context so huma handlers (which never see *http.Request) can reach them.
func clientInfoMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), clientIPKey, getClientIP(r))
		ctx = context.WithValue(ctx, userAgentKey, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RateLimitMiddleware creates a middleware that rate limits requests by IP.
// Returns 429 Too Many Requests when limit is exceeded. Health probes are
// exempt so orchestrators never get throttled.
func RateLimitMiddleware(limiter *ratelimit.KeyedRateLimiter, logger interface{ Warn(msg string, args ...any) }) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			key := getClientIP(r)
			if !limiter.Allow(key) {
				logger.Warn("Rate limit exceeded",
					"ip", key,
					"path", r.URL.Path,
				)
				response.TooManyRequests(w, "Too many requests. Please try again later.", nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// getClientIP extracts the client IP from the request.
// Checks X-Forwarded-For and X-Real-IP headers before falling back to RemoteAddr.
func getClientIP(r *http.Request) string {
	// X-Forwarded-For may contain multiple IPs, first is the client.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	// Fall back to RemoteAddr (strip port).
	ip := r.RemoteAddr
	if i := strings.LastIndexByte(ip, ':'); i >= 0 {
		return ip[:i]
	}
	return ip
}
