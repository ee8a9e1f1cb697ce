package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dropDatabas3/mapping/internal/store"
	"github.com/dropDatabas3/mapping/internal/store/routing"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ops_http_requests_total",
		Help: "Requests al servidor de ops",
	}, []string{"method", "route", "status"})

	httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ops_http_request_duration_seconds",
		Help:    "Latencia de los requests al servidor de ops",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// PoolStatser expone estadísticas de pools (implementado por *store.PoolSet).
type PoolStatser interface {
	Stats() store.PoolStats
}

// RegisterMetrics registra las métricas HTTP y, si pools no es nil, el
// collector de pools. Tolera registros repetidos.
func RegisterMetrics(reg prometheus.Registerer, pools PoolStatser) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	collectors := []prometheus.Collector{httpRequestsTotal, httpRequestDuration}
	if pools != nil {
		collectors = append(collectors, newPoolCollector(pools))
	}
	for _, c := range collectors {
		if err := registerCollector(reg, c); err != nil {
			return err
		}
	}
	return nil
}

// WithMetrics instrumenta requests con contador y latencia por ruta chi.
func WithMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		method := strings.ToUpper(r.Method)
		httpRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(rec.status)).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (s *statusWriter) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// registerCollector registra el collector ignorando duplicados.
func registerCollector(reg prometheus.Registerer, collector prometheus.Collector) error {
	if err := reg.Register(collector); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return nil
		}
		return err
	}
	return nil
}

// poolCollector expone gauges por pool (primary/replica).
type poolCollector struct {
	pools PoolStatser

	activeDesc   *prometheus.Desc
	acquiredDesc *prometheus.Desc
	idleDesc     *prometheus.Desc
	totalDesc    *prometheus.Desc
	maxDesc      *prometheus.Desc
}

func newPoolCollector(pools PoolStatser) *poolCollector {
	labels := []string{"pool", "driver"}
	return &poolCollector{
		pools:        pools,
		activeDesc:   prometheus.NewDesc("storage_pools_open", "Pools físicos abiertos", nil, nil),
		acquiredDesc: prometheus.NewDesc("storage_pool_acquired_conns", "Conexiones adquiridas por pool", labels, nil),
		idleDesc:     prometheus.NewDesc("storage_pool_idle_conns", "Conexiones inactivas por pool", labels, nil),
		totalDesc:    prometheus.NewDesc("storage_pool_total_conns", "Conexiones totales por pool", labels, nil),
		maxDesc:      prometheus.NewDesc("storage_pool_max_conns", "Máximo de conexiones configurado por pool", labels, nil),
	}
}

func (c *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.activeDesc
	ch <- c.acquiredDesc
	ch <- c.idleDesc
	ch <- c.totalDesc
	ch <- c.maxDesc
}

func (c *poolCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.pools.Stats()
	ch <- prometheus.MustNewConstMetric(c.activeDesc, prometheus.GaugeValue, float64(stats.TotalActive))
	for _, tag := range []routing.Tag{routing.Primary, routing.Replica} {
		s, ok := stats.Pools[tag]
		if !ok {
			continue
		}
		pool, driver := tag.String(), s.Conn.Driver
		ch <- prometheus.MustNewConstMetric(c.acquiredDesc, prometheus.GaugeValue, float64(s.Conn.AcquiredConns), pool, driver)
		ch <- prometheus.MustNewConstMetric(c.idleDesc, prometheus.GaugeValue, float64(s.Conn.IdleConns), pool, driver)
		ch <- prometheus.MustNewConstMetric(c.totalDesc, prometheus.GaugeValue, float64(s.Conn.TotalConns), pool, driver)
		ch <- prometheus.MustNewConstMetric(c.maxDesc, prometheus.GaugeValue, float64(s.Conn.MaxConns), pool, driver)
	}
}
