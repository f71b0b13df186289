package middleware

import (
	"net/http"

	"github.com/rs/cors"

	"github.com/OpenNSW/formengine/internal/config"
)

// CORS returns a middleware that applies the configured cross-origin policy.
// Preflight requests are answered directly and never reach the wrapped handler.
func CORS(cfg *config.CORSConfig) func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   cfg.AllowedMethods,
		AllowedHeaders:   cfg.AllowedHeaders,
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	}).Handler
}
