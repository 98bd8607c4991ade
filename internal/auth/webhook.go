package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// WebhookSecretHeader carries the shared secret configured on the network
// server webhook.
const WebhookSecretHeader = "X-Webhook-Secret"

// WebhookAuthMiddleware validates the static webhook secret header.
type WebhookAuthMiddleware struct {
	Secret []byte
}

// NewWebhookAuthMiddleware constructs webhook auth middleware.
func NewWebhookAuthMiddleware(secret []byte) *WebhookAuthMiddleware {
	return &WebhookAuthMiddleware{Secret: secret}
}

// Wrap rejects requests whose secret header does not match.
func (m *WebhookAuthMiddleware) Wrap(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(m.Secret) == 0 {
			http.Error(w, "webhook auth not configured", http.StatusUnauthorized)
			return
		}
		provided := strings.TrimSpace(r.Header.Get(WebhookSecretHeader))
		if provided == "" {
			http.Error(w, "missing webhook secret", http.StatusUnauthorized)
			return
		}
		if subtle.ConstantTimeCompare([]byte(provided), m.Secret) != 1 {
			http.Error(w, "invalid webhook secret", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
