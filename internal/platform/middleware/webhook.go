package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"

	dErrors "dunning/pkg/domain-errors"
	"dunning/pkg/platform/httputil"
	"dunning/pkg/requestcontext"
)

const (
	// HeaderWebhookSecret carries the shared secret as configured at the provider.
	HeaderWebhookSecret = "X-Webhook-Secret"
	// HeaderVapiSecret is the header Vapi sends the server secret in.
	HeaderVapiSecret = "X-Vapi-Secret"
	// HeaderWebhookSignature carries hex HMAC-SHA256 of the raw body.
	HeaderWebhookSignature = "X-Webhook-Signature"
)

// RequireWebhookSecret authenticates provider webhooks by shared secret or body HMAC.
// An empty secret disables the check.
func RequireWebhookSecret(secret string, logger *slog.Logger, onReject func(r *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, httputil.MaxBodyBytes))
			if err != nil {
				httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "unreadable body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			if validWebhook(r, body, secret) {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			logger.WarnContext(ctx, "webhook rejected - bad secret",
				"request_id", requestcontext.RequestID(ctx),
				"client_ip", requestcontext.ClientIP(ctx),
			)
			if onReject != nil {
				onReject(r)
			}
			httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid webhook credentials"))
		})
	}
}

func validWebhook(r *http.Request, body []byte, secret string) bool {
	for _, h := range []string{HeaderWebhookSecret, HeaderVapiSecret} {
		if v := r.Header.Get(h); v != "" {
			return subtle.ConstantTimeCompare([]byte(v), []byte(secret)) == 1
		}
	}
	sig := r.Header.Get(HeaderWebhookSignature)
	if sig == "" {
		return false
	}
	given, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	return hmac.Equal(given, Sign(body, secret))
}

// Sign returns HMAC-SHA256(body) under secret.
func Sign(body []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}
