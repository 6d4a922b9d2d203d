package proxy

import (
	"encoding/json"
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

// CreateProxy forwards the request to targetHost, replacing stripPrefix in
// the path with addPrefix. Responses are flushed immediately so SSE streams
// pass through unbuffered.
func CreateProxy(targetHost, stripPrefix, addPrefix string) gin.HandlerFunc {
	target, err := url.Parse(targetHost)
	if err != nil || target.Host == "" {
		log.Fatalf("[GATEWAY] Invalid upstream %q: %v", targetHost, err)
	}
	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.FlushInterval = -1
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Printf("[GATEWAY] %s %s -> %s: %v", r.Method, r.URL.Path, targetHost, err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]string{"error": "upstream unavailable", "code": "BadGateway"})
	}

	return func(c *gin.Context) {
		c.Request.URL.Path = rewritePath(c.Request.URL.Path, stripPrefix, addPrefix)
		c.Request.URL.RawPath = ""

		c.Request.Header.Set("X-Forwarded-Host", c.Request.Host)
		c.Request.Header.Del("X-Forwarded-For")

		proxy.ServeHTTP(c.Writer, c.Request)
	}
}

func rewritePath(originalPath, stripPrefix, addPrefix string) string {
	path := strings.TrimPrefix(originalPath, stripPrefix)

	// Добавляем addPrefix, сохраняя оригинальное окончание пути
	switch {
	case strings.HasSuffix(addPrefix, "/") && strings.HasPrefix(path, "/"):
		return addPrefix + strings.TrimPrefix(path, "/")
	case !strings.HasSuffix(addPrefix, "/") && !strings.HasPrefix(path, "/") && path != "":
		return addPrefix + "/" + path
	default:
		return addPrefix + path
	}
}
