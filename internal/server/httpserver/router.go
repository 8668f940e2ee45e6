package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/yndnr/apanic-go/internal/core/apanic"
	"github.com/yndnr/apanic-go/internal/server/httpserver/handler"
	"github.com/yndnr/apanic-go/internal/telemetry/metric"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	Engine *apanic.Engine
	Logger *slog.Logger

	// Metrics, when set, serves /metrics and records request metrics.
	Metrics *metric.Registry

	// AuthToken guards the mutating routes when non-empty.
	AuthToken string

	EnableTrigger bool
	AllowCrash    bool

	// GlobalRateLimit is the per-IP rate limit in requests/second.
	// Zero disables it.
	GlobalRateLimit int

	// EnableAccessLog logs every request.
	EnableAccessLog bool
}

// DefaultRouterConfig returns default router configuration.
func DefaultRouterConfig() *RouterConfig {
	return &RouterConfig{
		GlobalRateLimit: 100,
		EnableAccessLog: true,
	}
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(cfg *RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	h := handler.New(handler.Config{
		Engine:        cfg.Engine,
		Logger:        log,
		EnableTrigger: cfg.EnableTrigger,
		AllowCrash:    cfg.AllowCrash,
	})

	// Order: RequestID -> Recover -> Metrics -> RateLimit -> AccessLog -> [Auth] -> Handler
	common := []Middleware{RequestID(), Recover(log)}
	if cfg.Metrics != nil {
		common = append(common, Metrics(cfg.Metrics))
	}
	if cfg.GlobalRateLimit > 0 {
		common = append(common, RateLimit(cfg.GlobalRateLimit))
	}
	if cfg.EnableAccessLog {
		common = append(common, AccessLog(log))
	}

	public := Chain(h, common...)
	guarded := Chain(h, append(common, BearerAuth(cfg.AuthToken))...)

	mux := http.NewServeMux()

	mux.Handle("GET /health", public)
	mux.Handle("GET /ready", public)
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", Chain(cfg.Metrics.Handler(), RequestID(), Recover(log)))
	}

	mux.Handle("GET /apanic/status", public)
	mux.Handle("GET /apanic/{segment}", public)
	mux.Handle("GET /memdump/status", public)

	mux.Handle("POST /apanic/{segment}", guarded)
	if cfg.EnableTrigger {
		mux.Handle("POST /debug/trigger", guarded)
	}
	if cfg.AllowCrash {
		mux.Handle("POST /debug/crash", guarded)
	}

	return mux
}
