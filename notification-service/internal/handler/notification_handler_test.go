package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"tattoo-app/notification-service/internal/services"
	"tattoo-app/pkg/apperr"
	"tattoo-app/pkg/identity"
)

type stubValidator struct{}

func (stubValidator) Validate(_ context.Context, token string) (identity.Caller, error) {
	if token == "good" {
		return identity.Caller{ID: "client-1", Role: identity.RoleClient}, nil
	}
	return identity.Caller{}, apperr.New(apperr.ErrUnauthorized, "invalid token")
}

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewNotificationHandler(services.NewNotificationService(nil))
	r := gin.New()
	api := r.Group("/api/notifications", identity.AuthMiddleware(stubValidator{}))
	api.GET("", h.GetNotifications)
	api.PUT("/:id/read", h.MarkAsRead)
	return r
}

func TestNotificationHandler_RequestErrors(t *testing.T) {
	r := newRouter()
	tests := []struct {
		name   string
		method string
		path   string
		token  string
		status int
		code   string
	}{
		{"no token", http.MethodGet, "/api/notifications", "", http.StatusUnauthorized, "Unauthorized"},
		{"bad token", http.MethodGet, "/api/notifications", "bad", http.StatusUnauthorized, "Unauthorized"},
		{"bad limit", http.MethodGet, "/api/notifications?limit=ten", "good", http.StatusBadRequest, "InvalidInput"},
		{"bad offset", http.MethodGet, "/api/notifications?offset=-x", "good", http.StatusBadRequest, "InvalidInput"},
		{"negative offset", http.MethodGet, "/api/notifications?offset=-1", "good", http.StatusBadRequest, "InvalidInput"},
		{"malformed id", http.MethodPut, "/api/notifications/zzz/read", "good", http.StatusNotFound, "NotFound"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			if !strings.Contains(w.Body.String(), `"code":"`+tt.code+`"`) {
				t.Errorf("body = %s, want code %s", w.Body.String(), tt.code)
			}
		})
	}
}
