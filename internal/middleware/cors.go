package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/davincilab-soft/kity-chatgpt-navigator/internal/config"
)

const (
	allowedHeaders = "Content-Type, Authorization"
	allowedMethods = "GET,POST,OPTIONS"
)

// CORS enforces the extension-centric origin policy: requests without an
// Origin pass, the configured extension origin and any chrome-extension://
// origin are always allowed, anything else must be in the allow list.
func CORS(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		if c.Request.Method == http.MethodOptions {
			applyHeaders(c, cfg, origin)
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		if origin != "" && !originAllowed(origin, cfg) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Origin not allowed"})
			return
		}

		applyHeaders(c, cfg, origin)
		c.Next()
	}
}

func applyHeaders(c *gin.Context, cfg config.Config, origin string) {
	header := c.Writer.Header()
	if originAllowed(origin, cfg) {
		if origin != "" {
			header.Set("Access-Control-Allow-Origin", origin)
		} else {
			header.Set("Access-Control-Allow-Origin", "*")
		}
		header.Set("Vary", "Origin")
	}
	header.Set("Access-Control-Allow-Headers", allowedHeaders)
	header.Set("Access-Control-Allow-Methods", allowedMethods)
}

func originAllowed(origin string, cfg config.Config) bool {
	if origin == "" {
		return true
	}
	if origin == cfg.ExtensionOrigin {
		return true
	}
	if strings.HasPrefix(origin, "chrome-extension://") {
		return true
	}
	for _, candidate := range cfg.AllowedOrigins {
		if candidate == origin {
			return true
		}
	}
	return false
}
