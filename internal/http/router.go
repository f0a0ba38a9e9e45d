package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/davincilab-soft/kity-chatgpt-navigator/internal/config"
	"github.com/davincilab-soft/kity-chatgpt-navigator/internal/http/handler"
	httpmiddleware "github.com/davincilab-soft/kity-chatgpt-navigator/internal/http/middleware"
	"github.com/davincilab-soft/kity-chatgpt-navigator/internal/middleware"
)

// NewRouter wires Gin routes and middleware.
func NewRouter(cfg config.Config, userHandler *handler.UserHandler, authMiddleware *httpmiddleware.Auth) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(nil))
	r.Use(middleware.CORS(cfg))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	r.POST("/users", userHandler.Upsert)
	r.GET("/users", userHandler.List)
	r.GET("/me", authMiddleware.RequireUser, userHandler.Me)

	donations := r.Group("/donations")
	{
		donations.GET("/link", userHandler.DonationLink)
		donations.POST("/checkout", userHandler.DonationCheckout)
	}

	r.GET("/health", userHandler.Health)

	return r
}
