package gateway

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/taskhive/platform/internal/identity"
)

// Authenticate verifies the Authorization header once, at the edge. Inbound
// x-user-id / x-user-role headers are always stripped first so a caller can
// never smuggle an identity past the gateway. A valid bearer token gets its
// claims injected as trusted headers; a missing or invalid token forwards
// the request anonymously and leaves authorization to the downstream
// service.
func Authenticate(secret []byte, log *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity.ClearHeaders(r.Header)

			token := bearerToken(r.Header.Get("Authorization"))
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := identity.Verify(token, secret)
			if err != nil {
				log.Warn("token verification failed",
					zap.String("path", r.URL.Path),
					zap.Error(err),
				)
				next.ServeHTTP(w, r)
				return
			}

			principal := identity.Principal{UserID: claims.UserID, Role: claims.Role}
			principal.SetHeaders(r.Header)
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}
