package audit

import (
	"net"
	"net/http"
	"net/netip"
	"strings"

	"frostguard/internal/auth"
)

// FromRequest fills actor, role and client details on entry from an
// authenticated request. Fields already set are kept.
func FromRequest(r *http.Request, entry Entry) Entry {
	if r == nil {
		return entry
	}
	if entry.Actor == "" {
		entry.Actor = auth.SubjectFromContext(r.Context())
	}
	if entry.Role == "" {
		entry.Role = string(auth.RoleFromContext(r.Context()))
	}
	if entry.IP == "" {
		entry.IP = ClientIP(r)
	}
	if entry.UserAgent == "" {
		entry.UserAgent = r.UserAgent()
	}
	return entry
}

// ClientIP returns the first parseable address from X-Forwarded-For, then
// X-Real-IP, then the connection's remote address.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	for _, candidate := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		if addr, err := netip.ParseAddr(strings.TrimSpace(candidate)); err == nil {
			return addr.String()
		}
	}
	if addr, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return addr.String()
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
