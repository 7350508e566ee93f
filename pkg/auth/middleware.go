package auth

import (
	"net/http"

	"github.com/laa-dces/mock-drc/pkg/httputil"
	"github.com/laa-dces/mock-drc/pkg/identity"
)

// Middleware wraps next with authentication. The principal, with whatever
// identities were established, is attached to the request context on every
// path the policy lets through, so handlers like /who-am-i can echo it even
// in disabled mode.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, failures := a.Authenticate(r)

		switch a.mode {
		case ModeAll:
			// Both schemes must have produced an identity.
			if !principal.Has(identity.MethodBearer) || !principal.Has(identity.MethodCertificate) {
				a.reject(w, r, failures)
				return
			}
		case ModeAny:
			if len(principal.Identities) == 0 {
				a.reject(w, r, failures)
				return
			}
		}

		next.ServeHTTP(w, r.WithContext(identity.WithPrincipal(r.Context(), principal)))
	})
}

func (a *Authenticator) reject(w http.ResponseWriter, r *http.Request, failures []error) {
	for _, err := range failures {
		a.log.Warn("authentication failed",
			"path", r.URL.Path,
			"remote", r.RemoteAddr,
			"error", err)
	}
	w.Header().Set("WWW-Authenticate", "Bearer")
	httputil.WriteUnauthorized(w, "unauthorized", "authentication required")
}
