package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware_NoToken(t *testing.T) {
	secret := []byte("test-secret")
	mw := NewMiddleware(secret, NewDefaultPolicy(nil, nil))
	handler := mw.Wrap(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/downlinks", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestAuthMiddleware_RolesByRoute(t *testing.T) {
	secret := []byte("test-secret")
	mw := NewMiddleware(secret, NewDefaultPolicy([]string{"/healthz"}, []string{"/ingest/"}))
	handler := mw.Wrap(okHandler())

	cases := []struct {
		name   string
		role   string
		method string
		path   string
		want   int
	}{
		{name: "viewer lists downlinks", role: "viewer", method: http.MethodGet, path: "/api/v1/downlinks", want: http.StatusOK},
		{name: "viewer cannot request change", role: "viewer", method: http.MethodPost, path: "/api/v1/downlinks", want: http.StatusForbidden},
		{name: "operator requests change", role: "operator", method: http.MethodPost, path: "/api/v1/downlinks", want: http.StatusOK},
		{name: "viewer reads sweeper descriptor", role: "viewer", method: http.MethodGet, path: "/api/v1/sweeper/change-timeouts", want: http.StatusOK},
		{name: "operator cannot run sweeper", role: "operator", method: http.MethodPost, path: "/api/v1/sweeper/change-timeouts", want: http.StatusForbidden},
		{name: "admin runs sweeper", role: "admin", method: http.MethodPost, path: "/api/v1/sweeper/change-timeouts", want: http.StatusOK},
		{name: "viewer reads health", role: "viewer", method: http.MethodGet, path: "/api/v1/pipeline-health", want: http.StatusOK},
		{name: "viewer cannot export", role: "viewer", method: http.MethodGet, path: "/api/v1/pipeline-health/export.pdf", want: http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			req.Header.Set("Authorization", "Bearer "+mustToken(t, secret, tc.role))
			resp := httptest.NewRecorder()
			handler.ServeHTTP(resp, req)
			if resp.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, resp.Code)
			}
		})
	}
}

func TestAuthMiddleware_ExemptPaths(t *testing.T) {
	mw := NewMiddleware([]byte("test-secret"), NewDefaultPolicy([]string{"/healthz"}, []string{"/ingest/"}))
	handler := mw.Wrap(okHandler())
	for _, path := range []string{"/healthz", "/ingest/ttn/uplink"} {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, path, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, resp.Code)
		}
	}
}

func TestAuthMiddleware_WrongSecret(t *testing.T) {
	mw := NewMiddleware([]byte("test-secret"), NewDefaultPolicy(nil, nil))
	handler := mw.Wrap(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/downlinks", nil)
	req.Header.Set("Authorization", "Bearer "+mustToken(t, []byte("other"), "admin"))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestWebhookAuthMiddleware(t *testing.T) {
	mw := NewWebhookAuthMiddleware([]byte("hook-secret"))
	handler := mw.Wrap(okHandler())

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing", want: http.StatusUnauthorized},
		{name: "wrong", header: "nope", want: http.StatusUnauthorized},
		{name: "match", header: "hook-secret", want: http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/ingest/ttn/uplink", nil)
			if tc.header != "" {
				req.Header.Set(WebhookSecretHeader, tc.header)
			}
			resp := httptest.NewRecorder()
			handler.ServeHTTP(resp, req)
			if resp.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, resp.Code)
			}
		})
	}
}

func TestWebhookAuthMiddleware_Unconfigured(t *testing.T) {
	handler := NewWebhookAuthMiddleware(nil).Wrap(okHandler())
	req := httptest.NewRequest(http.MethodPost, "/ingest/ttn/uplink", nil)
	req.Header.Set(WebhookSecretHeader, "anything")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func mustToken(t *testing.T, secret []byte, role string) string {
	t.Helper()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
