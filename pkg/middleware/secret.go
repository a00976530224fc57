package middleware

import (
	"crypto/subtle"
	"net/http"

	apperrors "github.com/utafrali/mercadolocal/pkg/errors"
	"github.com/utafrali/mercadolocal/pkg/httputil"
)

// AdminSecretHeader carries the shared secret for privileged user management.
const AdminSecretHeader = "X-Admin-Secret"

// RequireSharedSecret rejects requests whose AdminSecretHeader does not match
// secret. An empty secret disables the endpoints entirely.
func RequireSharedSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(AdminSecretHeader)
			if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				httputil.WriteError(w, r, apperrors.Forbidden("privileged operation not allowed"), nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
