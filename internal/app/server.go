package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/llmgate/llmgate/internal/catalog"
	"github.com/llmgate/llmgate/internal/dispatch"
	"github.com/llmgate/llmgate/internal/httpapi"
	"github.com/llmgate/llmgate/internal/logging"
	"github.com/llmgate/llmgate/internal/metrics"
	"github.com/llmgate/llmgate/internal/metricslog"
	"github.com/llmgate/llmgate/internal/tracing"

	_ "github.com/llmgate/llmgate/internal/providers/aws"
	_ "github.com/llmgate/llmgate/internal/providers/azure"
	_ "github.com/llmgate/llmgate/internal/providers/google"
	_ "github.com/llmgate/llmgate/internal/providers/mock"
	_ "github.com/llmgate/llmgate/internal/providers/openai"
	_ "github.com/llmgate/llmgate/internal/providers/openrouter"
	_ "github.com/llmgate/llmgate/internal/providers/together"
)

// Server wires the dispatch core to the completeness-only HTTP
// boundary. It owns nothing business-specific itself — that all
// lives in internal/catalog, internal/dispatch and internal/metricslog —
// its job is construction, middleware, and graceful shutdown.
type Server struct {
	cfg Config

	r *chi.Mux

	logger       *slog.Logger
	registry     *catalog.Registry
	dispatcher   *dispatch.Dispatcher
	metricsLog   *metricslog.Manager
	prom         *metrics.Registry
	otelShutdown func(context.Context) error // nil when OTel disabled

	httpServer *http.Server // set via SetHTTPServer; used by Close() to drain in-flight requests
}

func NewServer(cfg Config) (*Server, error) {
	logger := logging.Setup(cfg.LogLevel)

	otelShutdown, err := tracing.Setup(tracing.Config{
		Enabled:     cfg.OTelEnabled,
		Endpoint:    cfg.OTelEndpoint,
		ServiceName: cfg.OTelServiceName,
	})
	if err != nil {
		return nil, fmt.Errorf("otel setup: %w", err)
	}
	if cfg.OTelEnabled {
		logger.Info("opentelemetry tracing enabled",
			slog.String("endpoint", cfg.OTelEndpoint),
			slog.String("service", cfg.OTelServiceName),
		)
	}

	registry, err := catalog.LoadFile(cfg.CatalogFile)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	models := registry.ListModels("")
	providers := registry.ListProviders()
	if len(providers) == 0 {
		logger.Warn("NO PROVIDERS CONFIGURED — the catalog file declares no providers")
	}
	if len(models) == 0 {
		logger.Warn("NO MODELS CONFIGURED — chat requests will fail until models are added to the catalog")
	} else {
		logger.Info("catalog loaded", slog.Int("providers", len(providers)), slog.Int("models", len(models)))
	}

	metricsLog := metricslog.New(metricslog.Config{
		BaseDir:            cfg.MetricsDir,
		MaxLogLength:       cfg.MetricsMaxLogLength,
		MaxLogArchiveFiles: cfg.MetricsMaxArchiveFiles,
	})
	dispatcher := dispatch.New(registry, metricsLog)
	prom := metrics.New()

	adminToken := cfg.AdminToken
	var adminTokenHash []byte
	if adminToken == "" {
		generated, hash, err := httpapi.GenerateAdminToken()
		if err != nil {
			return nil, fmt.Errorf("generate admin token: %w", err)
		}
		adminToken = generated
		adminTokenHash = hash
		logger.Warn("LLMGATE_ADMIN_TOKEN not set — auto-generated an admin token and wrote it to the metrics directory")
	} else {
		adminTokenHash, err = httpapi.HashAdminToken(adminToken)
		if err != nil {
			return nil, fmt.Errorf("hash admin token: %w", err)
		}
	}
	writeAdminTokenFile(cfg.MetricsDir, adminToken, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	if cfg.OTelEnabled {
		r.Use(tracing.Middleware())
	}
	corsOrigins := cfg.CORSOrigins
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
		logger.Warn("LLMGATE_CORS_ORIGINS not set — CORS allows all origins")
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	httpapi.MountRoutes(r, httpapi.Dependencies{
		Registry:       registry,
		Dispatcher:     dispatcher,
		MetricsLog:     metricsLog,
		Prom:           prom,
		AdminTokenHash: adminTokenHash,
	})

	return &Server{
		cfg:          cfg,
		r:            r,
		logger:       logger,
		registry:     registry,
		dispatcher:   dispatcher,
		metricsLog:   metricsLog,
		prom:         prom,
		otelShutdown: otelShutdown,
	}, nil
}

func (s *Server) Router() http.Handler { return s.r }

// SetHTTPServer registers the HTTP server so that Close() can drain in-flight
// requests via http.Server.Shutdown before releasing other resources.
func (s *Server) SetHTTPServer(srv *http.Server) {
	s.httpServer = srv
}

// Reload applies hot-reloadable configuration at runtime without restarting
// the process. The dispatch core's retry policy and catalog are immutable
// for the life of a Server, so the log level is all that's left to reload.
func (s *Server) Reload(cfg Config) {
	logging.SetLevel(cfg.LogLevel)
	s.cfg = cfg
	s.logger.Info("configuration reloaded", slog.String("log_level", cfg.LogLevel))
}

func (s *Server) Close() error {
	if s.httpServer != nil {
		drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(drainCtx); err != nil {
			s.logger.Warn("HTTP drain error", slog.String("error", err.Error()))
		}
	}
	if s.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.otelShutdown(ctx); err != nil {
			s.logger.Warn("otel shutdown error", slog.String("error", err.Error()))
		}
	}
	return nil
}

// writeAdminTokenFile persists the plaintext admin token inside the metrics
// directory (as .admin-token) so an operator (or a deployment script) can retrieve it after
// startup; only the bcrypt hash is ever held in the running process.
func writeAdminTokenFile(metricsDir, token string, logger *slog.Logger) {
	if metricsDir == "" {
		return
	}
	if err := os.MkdirAll(metricsDir, 0o700); err != nil {
		logger.Warn("failed to create metrics directory for admin token file", slog.String("error", err.Error()))
		return
	}
	path := filepath.Join(metricsDir, ".admin-token")
	if err := os.WriteFile(path, []byte(token+"\n"), 0o600); err != nil {
		logger.Warn("failed to write admin token file", slog.String("error", err.Error()))
	}
}
