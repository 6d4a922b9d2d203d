package setup

import (
	"github.com/gin-gonic/gin"

	"tattoo-app/api-gateway/internal/config"
	"tattoo-app/api-gateway/internal/proxy"
)

type route struct {
	path        string
	target      string
	stripPrefix string
	addPrefix   string
}

func routes(cfg *config.Config) []route {
	return []route{
		{"/auth", cfg.AuthURL, "/api/auth", "/auth"},
		{"/designs", cfg.CatalogURL, "/api/designs", "/api/designs"},
		{"/appointments", cfg.AppointmentURL, "/api/appointments", "/api/appointments"},
		{"/payments", cfg.AppointmentURL, "/api/payments", "/api/payments"},
		{"/chat", cfg.ChatURL, "/api/chat", "/api/chat"},
		{"/media", cfg.MediaURL, "/api/media", "/api/media"},
		{"/images", cfg.MediaURL, "/api/images", "/api/images"},
		{"/notifications", cfg.NotificationURL, "/api/notifications", "/api/notifications"},
	}
}

// ConfigureServiceProxies mounts every upstream under router. Tokens are
// checked by the services themselves, the gateway only routes.
func ConfigureServiceProxies(router *gin.RouterGroup, cfg *config.Config) {
	for _, service := range routes(cfg) {
		handler := proxy.CreateProxy(service.target, service.stripPrefix, service.addPrefix)
		router.Any(service.path, handler)
		router.Any(service.path+"/*proxyPath", handler)
	}
}
