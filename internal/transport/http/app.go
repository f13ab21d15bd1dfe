// Package http wires the purchase pipeline's HTTP surface: the purchase
// endpoint, the fault-injection control endpoints, the admin catalog
// CRUD surface, and the Prometheus /metrics endpoint.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ecomarket/purchase-pipeline/internal/catalog"
	"github.com/ecomarket/purchase-pipeline/internal/dispatcher"
	"github.com/ecomarket/purchase-pipeline/internal/health"
	"github.com/ecomarket/purchase-pipeline/internal/metrics"
)

// App owns the HTTP server and the components its handlers need.
type App struct {
	cfg        Config
	log        *slog.Logger
	httpServer *http.Server
	metrics    *metrics.HTTP
	handler    *handler
}

// Config is the subset of server configuration the HTTP layer needs.
type Config struct {
	ServiceName string
	HTTPAddr    string
}

func NewApp(cfg Config, log *slog.Logger, m *metrics.HTTP, purchaseMetrics *metrics.Purchase, dispatch *dispatcher.Dispatcher, registry *health.Registry, inventory *catalog.Store) *App {
	return &App{
		cfg:     cfg,
		log:     log,
		metrics: m,
		handler: newHandler(log, purchaseMetrics, dispatch, registry, inventory),
	}
}

// Start builds the mux, wraps it with metrics and CORS middleware, and
// blocks serving HTTP until the listener fails or is shut down.
func (a *App) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	a.handler.registerRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	handler := a.corsMiddleware(a.metricsMiddleware(mux))

	a.httpServer = &http.Server{
		Addr:    a.cfg.HTTPAddr,
		Handler: handler,
	}

	a.log.Info("starting http server", slog.String("addr", a.cfg.HTTPAddr))
	err := a.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully drains in-flight requests.
func (a *App) Shutdown(ctx context.Context) error {
	if a.httpServer == nil {
		return nil
	}
	a.log.Info("shutting down http server")
	return a.httpServer.Shutdown(ctx)
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (a *App) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		recorder := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(recorder, r)

		duration := time.Since(start)
		status := strconv.Itoa(recorder.statusCode)
		a.metrics.RecordHTTPRequest(r.Method, r.URL.Path, status, duration)
	})
}

func (a *App) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
