// Package http expone el servidor de operaciones: liveness, readiness de
// los pools primary/replica y métricas Prometheus.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/mapping/internal/http/middlewares"
	"github.com/dropDatabas3/mapping/internal/observability/logger"
	"github.com/dropDatabas3/mapping/internal/store/routing"
)

// Pinger verifica un pool (implementado por *store.PoolSet).
type Pinger interface {
	Ping(ctx context.Context, tag routing.Tag) error
}

// Deps dependencias del router de ops.
type Deps struct {
	Pools        Pinger
	Gatherer     prometheus.Gatherer // nil = prometheus.DefaultGatherer
	ReadyTimeout time.Duration       // default 2s
	Version      string
}

// NewRouter arma las rutas de ops.
func NewRouter(d Deps) http.Handler {
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}
	if d.ReadyTimeout <= 0 {
		d.ReadyTimeout = 2 * time.Second
	}

	r := chi.NewRouter()
	// WithMetrics va dentro del router para ver el patrón de ruta de chi.
	r.Use(WithMetrics)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": d.Version})
	})
	r.Get("/readyz", readyHandler(d))
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, http.StatusNotFound, "not_found", "route not found")
	})
	return middlewares.Chain(r,
		middlewares.WithRequestID(),
		middlewares.WithLogging(),
		middlewares.WithRecover(),
	)
}

type readyResponse struct {
	Status string            `json:"status"`
	Pools  map[string]string `json:"pools"`
}

// readyHandler hace ping a primary y replica en paralelo. No hay fallback:
// si la replica no responde el servicio no está listo.
func readyHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.Pools == nil {
			WriteError(w, http.StatusServiceUnavailable, "not_ready", "storage not configured")
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), d.ReadyTimeout)
		defer cancel()

		tags := []routing.Tag{routing.Primary, routing.Replica}
		results := make([]error, len(tags))
		g, gctx := errgroup.WithContext(ctx)
		for i, tag := range tags {
			i, tag := i, tag
			g.Go(func() error {
				results[i] = d.Pools.Ping(gctx, tag)
				return results[i]
			})
		}
		err := g.Wait()

		resp := readyResponse{Status: "ready", Pools: make(map[string]string, len(tags))}
		for i, tag := range tags {
			switch {
			case results[i] == nil && err == nil:
				resp.Pools[tag.String()] = "ok"
			case results[i] == nil:
				// cancelado por la falla del otro pool
				resp.Pools[tag.String()] = "unknown"
			default:
				resp.Pools[tag.String()] = results[i].Error()
			}
		}
		if err != nil {
			resp.Status = "not_ready"
			logger.From(r.Context()).Warn("readiness check failed", logger.Err(err))
			WriteJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

// Server envuelve http.Server con shutdown ordenado.
type Server struct {
	srv *http.Server
}

func NewServer(addr string, handler http.Handler) *Server {
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

// Start bloquea sirviendo hasta Shutdown.
func (s *Server) Start() error {
	logger.L().Info("ops server listening", logger.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown espera los requests en vuelo hasta que ctx expire.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
