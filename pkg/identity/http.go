package identity

import (
	"net/http"

	"tattoo-app/pkg/apperr"
)

// HTTPMiddleware is the net/http flavour of AuthMiddleware, used by the
// gorilla/mux services. With roles given it also enforces them.
func HTTPMiddleware(v Validator, roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r.Header.Get("Authorization"))
			if token == "" {
				apperr.WriteHTTP(w, apperr.New(apperr.ErrUnauthorized, "missing bearer token"))
				return
			}
			caller, err := v.Validate(r.Context(), token)
			if err != nil {
				apperr.WriteHTTP(w, err)
				return
			}
			if len(roles) > 0 && !hasRole(caller, roles) {
				apperr.WriteHTTP(w, apperr.New(apperr.ErrUnauthorized, "not authorized"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
		})
	}
}

func hasRole(c Caller, roles []Role) bool {
	for _, r := range roles {
		if c.Role == r {
			return true
		}
	}
	return false
}
