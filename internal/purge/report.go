package purge

import (
	"time"

	"github.com/google/uuid"
)

// Report resume una corrida.
type Report struct {
	RunID    uuid.UUID
	Cutoff   time.Time
	Started  time.Time
	Finished time.Time

	Eligible     int
	Purged       int
	Failed       int
	RowsDeleted  int64
	BlobsDeleted int

	Accounts []AccountResult
}

// Duration retorna la duración de la corrida.
func (r *Report) Duration() time.Duration { return r.Finished.Sub(r.Started) }

func (r *Report) add(res AccountResult) {
	r.Eligible++
	switch res.Outcome {
	case OutcomePurged:
		r.Purged++
	case OutcomeFailed, OutcomeBlobFailed:
		r.Failed++
	}
	r.RowsDeleted += res.RowsDeleted
	r.BlobsDeleted += res.BlobsDeleted
	r.Accounts = append(r.Accounts, res)
}

// AccountResult es el resultado de purgar una cuenta.
type AccountResult struct {
	AccountID int64
	Outcome   Outcome
	// State es el último estado alcanzado (Purged o Failed en cuentas procesadas).
	State State
	// FailedStep es el paso que falló cuando State == Failed.
	FailedStep State

	RowsDeleted  int64
	Rows         map[string]int64
	BlobsDeleted int
	BlobsMissing int

	// Err es un *StepError, o la unión (errors.Join) de *BlobError.
	Err      error
	Duration time.Duration
}
