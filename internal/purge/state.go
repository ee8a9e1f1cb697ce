package purge

// State es el estado de la purga de una cuenta.
type State uint8

const (
	Eligible State = iota
	PurgingContent
	PurgingRelations
	PurgingBlobs
	Purged
	Failed
)

func (s State) String() string {
	switch s {
	case Eligible:
		return "eligible"
	case PurgingContent:
		return "purging_content"
	case PurgingRelations:
		return "purging_relations"
	case PurgingBlobs:
		return "purging_blobs"
	case Purged:
		return "purged"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome es el resultado de una cuenta en una corrida.
type Outcome string

const (
	OutcomePurged        Outcome = "purged"
	OutcomeFailed        Outcome = "failed"
	OutcomeBlobFailed    Outcome = "blob_failed"
	OutcomeAlreadyPurged Outcome = "already_purged"
	OutcomeNotEligible   Outcome = "not_eligible"
)

// Entidades para el conteo de filas eliminadas.
const (
	entityNote      = "note"
	entityNoteImage = "note_image"
	entityComment   = "comment"
	entityReaction  = "reaction"
	entityReport    = "report"
	entityBlock     = "block"
	entityAccount   = "account"
)
