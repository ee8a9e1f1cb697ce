package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Métricas de purga y de unidades de trabajo. Viven en un paquete propio
// para evitar ciclos entre store, purge y http.

var (
	PurgeRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "purge_runs_total",
		Help: "Corridas del purgador por resultado",
	}, []string{"result"}) // result: completed|canceled|failed

	PurgeAccountsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "purge_accounts_total",
		Help: "Cuentas procesadas por el purgador por resultado",
	}, []string{"outcome"}) // outcome: purged|failed|blob_failed|already_purged|not_eligible

	PurgeRowsDeletedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "purge_rows_deleted_total",
		Help: "Filas eliminadas por el purgador por entidad",
	}, []string{"entity"})

	PurgeBlobDeletesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "purge_blob_deletes_total",
		Help: "Borrados de blobs externos por resultado",
	}, []string{"result"}) // result: deleted|not_found|failed

	PurgeRunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "purge_run_duration_seconds",
		Help:    "Duración de una corrida del purgador",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900, 3600},
	})

	ScheduledRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_runs_total",
		Help: "Disparos del scheduler por job y resultado",
	}, []string{"job", "result"}) // result: ok|failed|skipped

	UnitsOfWorkTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storage_units_of_work_total",
		Help: "Unidades de trabajo ejecutadas por pool y resultado",
	}, []string{"pool", "outcome"}) // outcome: commit|rollback|unavailable|misuse
)

// Register registra las métricas en el registry dado (o el default si es nil).
// Tolera registros repetidos.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{
		PurgeRunsTotal,
		PurgeAccountsTotal,
		PurgeRowsDeletedTotal,
		PurgeBlobDeletesTotal,
		PurgeRunDuration,
		ScheduledRunsTotal,
		UnitsOfWorkTotal,
	} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
