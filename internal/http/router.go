package http

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/msiSibs/urlShortener/internal/core"
	"github.com/msiSibs/urlShortener/internal/http/middleware"
)

type Options struct {
	Logger      zerolog.Logger
	CORSOrigins []string
}

// NewRouter sets up all routes and middleware.
func NewRouter(svc *core.Service, opts Options) *gin.Engine {
	r := gin.New()
	// Treat all upstreams as untrusted (removes the warning).
	if err := r.SetTrustedProxies(nil); err != nil {
		opts.Logger.Warn().Err(err).Msg("SetTrustedProxies")
	}

	r.Use(middleware.Logger(opts.Logger))
	r.Use(middleware.Recover(opts.Logger))
	r.Use(middleware.CORS(opts.CORSOrigins))

	h := NewHandlers(svc, opts.Logger)

	// Health
	r.GET("/health", h.Health)

	// Optional tiny UI (inline HTML)
	RegisterStatic(r)

	// API
	api := r.Group("/api")
	api.POST("/shorten", h.Shorten)
	api.GET("/info/:code", h.Info)
	api.GET("/stats", h.Stats)
	api.POST("/cleanup", h.Cleanup)
	api.GET("/labels/:label", h.Label)

	// Redirect
	r.GET("/:code", h.Redirect)

	return r
}
