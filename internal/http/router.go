// Package httpapi assembles the chi router: shared middleware, the
// voice-agent tool routes behind the webhook secret, the operator routes
// behind bearer tokens, and the health and metrics endpoints.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dunning/internal/platform/metrics"
	"dunning/internal/platform/middleware"
	"dunning/internal/platform/ratelimit"
	"dunning/pkg/platform/httputil"
	authmw "dunning/pkg/platform/middleware/auth"
	"dunning/pkg/platform/middleware/metadata"
	"dunning/pkg/platform/middleware/requesttime"
	"dunning/pkg/requestcontext"
)

// Registrar mounts a handler's routes.
type Registrar interface {
	Register(r chi.Router)
}

// RegistrarFunc adapts a plain function, e.g. a method value for a second
// route set on the same handler.
type RegistrarFunc func(r chi.Router)

func (f RegistrarFunc) Register(r chi.Router) { f(r) }

// Options configures the router.
type Options struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	RequestTimeout time.Duration

	// WebhookSecret guards the tool and webhook routes. Empty disables the check.
	WebhookSecret     string
	OnWebhookRejected func(r *http.Request)
	// ToolLimit throttles tool routes per client IP. Nil disables it.
	ToolLimit *ratelimit.Store

	// Validator guards operator routes. Nil leaves them unmounted.
	Validator authmw.JWTValidator

	// Ready reports whether backing stores answer.
	Ready func(ctx context.Context) error
}

// Routes groups the handlers by who calls them.
type Routes struct {
	// Tools are called by the voice agent and the provider webhook.
	Tools []Registrar
	// Operator routes require an operator token.
	Operator []Registrar
}

func NewRouter(opts Options, routes Routes) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger, opts.Metrics))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", readyHandler(opts.Ready, logger))
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(opts.RequestTimeout))
		r.Use(ratelimit.PerClient(opts.ToolLimit, logger))
		r.Use(middleware.RequireWebhookSecret(opts.WebhookSecret, logger, opts.OnWebhookRejected))
		for _, reg := range routes.Tools {
			reg.Register(r)
		}
	})

	if opts.Validator == nil {
		if len(routes.Operator) > 0 {
			logger.Warn("no JWT signing key configured, operator routes are disabled")
		}
		return r
	}
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(opts.RequestTimeout))
		r.Use(authmw.RequireAuth(opts.Validator, logger))
		for _, reg := range routes.Operator {
			reg.Register(r)
		}
	})
	return r
}

func readyHandler(ready func(ctx context.Context) error, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ready == nil {
			httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := ready(ctx); err != nil {
			logger.WarnContext(ctx, "readiness check failed",
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
