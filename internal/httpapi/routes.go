// Package httpapi is the HTTP boundary around the dispatch core:
// "for completeness only", kept minimal enough to exercise the core end to
// end over the wire. It is not itself a spec component.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/llmgate/llmgate/internal/catalog"
	"github.com/llmgate/llmgate/internal/dispatch"
	"github.com/llmgate/llmgate/internal/metrics"
	"github.com/llmgate/llmgate/internal/metricslog"
)

// Dependencies wires the dispatch core's pieces into the HTTP boundary.
type Dependencies struct {
	Registry   *catalog.Registry
	Dispatcher *dispatch.Dispatcher
	MetricsLog *metricslog.Manager
	Prom       *metrics.Registry

	// AdminTokenHash guards /get_stats and /health with a bcrypt-compared
	// bearer token (spec_full DOMAIN STACK: golang.org/x/crypto bcrypt).
	// Empty means no auth is configured.
	AdminTokenHash []byte
}

// maxRequestBodySize bounds POST bodies (10 MB).
const maxRequestBodySize = 10 << 20

func bodySizeLimit(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost || r.Method == http.MethodPut {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// MountRoutes wires the HTTP surface onto r.
func MountRoutes(r chi.Router, d Dependencies) {
	r.Use(bodySizeLimit(maxRequestBodySize))

	r.Post("/chat/{provider}/{name}", ChatHandler(d))
	r.Post("/list_models", ListModelsHandler(d))
	r.Get("/list_providers", ListProvidersHandler(d))
	r.Get("/model_info", ModelInfoHandler(d))

	r.Group(func(r chi.Router) {
		if len(d.AdminTokenHash) > 0 {
			r.Use(adminAuthMiddleware(d.AdminTokenHash))
		}
		r.Post("/get_stats", GetStatsHandler(d))
		r.Get("/health", HealthHandler(d))
	})

	if d.Prom != nil {
		r.Handle("/metrics", d.Prom.Handler())
	}
}
