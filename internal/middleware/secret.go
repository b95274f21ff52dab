package middleware

import (
	"crypto/subtle"
	"net/http"
)

// SecretHeader is the header carrying the shared secret on
// service-to-service and cron-triggered endpoints.
const SecretHeader = "x-cron-secret"

// RequireSecret guards an endpoint with a shared secret header. The
// comparison is constant-time. An unconfigured secret rejects every
// request rather than accepting every request.
func RequireSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(SecretHeader)
			if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				unauthorized(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
