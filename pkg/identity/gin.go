package identity

import (
	"github.com/gin-gonic/gin"

	"tattoo-app/pkg/apperr"
)

const callerKey = "caller"

type options struct {
	queryToken bool
}

type Option func(*options)

// AllowQueryToken lets the middleware fall back to ?token= when no
// Authorization header is sent. EventSource cannot set headers.
func AllowQueryToken() Option {
	return func(o *options) { o.queryToken = true }
}

func tokenFrom(c *gin.Context, o options) string {
	if token := BearerToken(c.GetHeader("Authorization")); token != "" {
		return token
	}
	if o.queryToken {
		return c.Query("token")
	}
	return ""
}

// AuthMiddleware validates the bearer token and stores the Caller on the
// gin context and on the request context.
func AuthMiddleware(v Validator, opts ...Option) gin.HandlerFunc {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return func(c *gin.Context) {
		token := tokenFrom(c, o)
		if token == "" {
			apperr.Respond(c, apperr.New(apperr.ErrUnauthorized, "missing bearer token"))
			return
		}
		caller, err := v.Validate(c.Request.Context(), token)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.Set(callerKey, caller)
		c.Set("user_id", caller.ID)
		c.Set("role", string(caller.Role))
		c.Request = c.Request.WithContext(WithCaller(c.Request.Context(), caller))
		c.Next()
	}
}

// RequireRoles rejects callers whose role is not listed.
func RequireRoles(roles ...Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := CallerFrom(c)
		if !ok {
			apperr.Respond(c, apperr.New(apperr.ErrUnauthorized, "not authenticated"))
			return
		}
		for _, r := range roles {
			if caller.Role == r {
				c.Next()
				return
			}
		}
		apperr.Respond(c, apperr.New(apperr.ErrUnauthorized, "not authorized"))
	}
}

func CallerFrom(c *gin.Context) (Caller, bool) {
	v, ok := c.Get(callerKey)
	if !ok {
		return Caller{}, false
	}
	caller, ok := v.(Caller)
	return caller, ok
}
