package httpmiddleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORSConfig configures cross-origin access to the API.
type CORSConfig struct {
	// AllowOrigins of nil or containing "*" allows every origin.
	AllowOrigins     []string
	AllowHeaders     []string
	ExposeHeaders    []string
	AllowCredentials bool
	// MaxAge is the preflight cache lifetime in seconds.
	MaxAge int
}

// CORS answers preflight requests and sets the allow headers on actual ones.
func CORS(cfg CORSConfig) Middleware {
	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   cfg.AllowHeaders,
		ExposedHeaders:   cfg.ExposeHeaders,
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	}).Handler
}
