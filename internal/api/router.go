package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jeancarlo3213/ferrefactura/internal/common"
	"github.com/jeancarlo3213/ferrefactura/internal/health"
	"github.com/jeancarlo3213/ferrefactura/internal/obs"
	"github.com/jeancarlo3213/ferrefactura/internal/ratelimit"
	"github.com/jeancarlo3213/ferrefactura/internal/security"
	"github.com/jeancarlo3213/ferrefactura/internal/session"
)

// RouterConfig bundles everything the HTTP router needs.
type RouterConfig struct {
	Handler         *Handler
	Health          health.Handler
	Logger          zerolog.Logger
	Metrics         *obs.HTTPMetrics
	Redis           *redis.Client
	CORSOrigins     []string
	IdempotencyTTL  time.Duration
	LoginRateLimit  int
	LoginRateWindow time.Duration
	MaxBodyBytes    int64
}

// NewRouter assembles the chi router with the full middleware stack.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(obs.RoutePatternMiddleware)
	r.Use(obs.TracingMiddleware)
	r.Use(obs.RequestLogger{Logger: cfg.Logger}.Middleware)
	r.Use(obs.HTTPObs{Metrics: cfg.Metrics}.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(security.Headers{Enable: true}.Middleware)
	r.Use(security.BodyLimit{Max: cfg.MaxBodyBytes}.Middleware)
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "Accept", "X-Request-ID", "Idempotency-Key"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/health/live", cfg.Health.Live)
	r.Get("/health/ready", cfg.Health.Ready)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	loginLimiter := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: cfg.Redis, Prefix: "ratelimit:login:"},
		Config: ratelimit.Config{
			Key:    func(req *http.Request) string { return common.ClientIP(req) },
			Window: cfg.LoginRateWindow,
			Max:    cfg.LoginRateLimit,
		},
		OnError: func(err error) {
			cfg.Logger.Warn().Err(err).Msg("rate_limiter_degraded")
		},
	}
	idem := common.Idem{R: cfg.Redis, TTL: cfg.IdempotencyTTL}

	r.Route("/api/v1", func(r chi.Router) {
		r.With(loginLimiter.Middleware).Post("/login", cfg.Handler.Login)

		r.Group(func(r chi.Router) {
			r.Use(session.Middleware)

			r.Get("/products", cfg.Handler.ListProducts)

			r.Get("/debt-records", cfg.Handler.ListDebtRecords)
			r.Post("/debt-records/{recordId}/payments", cfg.Handler.RegisterPayment)

			r.Route("/drafts", func(r chi.Router) {
				r.Post("/", cfg.Handler.CreateDraft)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", cfg.Handler.GetDraft)
					r.Patch("/", cfg.Handler.UpdateDraft)
					r.Post("/lines", cfg.Handler.AddLine)
					r.Patch("/lines/{productId}", cfg.Handler.UpdateLine)
					r.Delete("/lines/{productId}", cfg.Handler.RemoveLine)
					r.With(idem.Middleware).Post("/submit", cfg.Handler.Submit)
					r.Post("/debt", cfg.Handler.RecordDebt)
				})
			})
		})
	})

	return r
}
