package importer

// Phase indicates the current stage of an import run.
type Phase string

const (
	PhaseValidating Phase = "validating"
	PhasePreparing  Phase = "preparing"
	PhaseApplying   Phase = "applying"
	PhaseFinalizing Phase = "finalizing"
	PhaseComplete   Phase = "complete"
	PhaseFailed     Phase = "failed"
)

// Progress is a snapshot of a running import.
type Progress struct {
	RunID string `json:"run_id"`
	Phase Phase  `json:"phase"`

	// Rows is the number of data rows read so far.
	Rows int `json:"rows"`
	// Products is the number of products with pending changes.
	Products int `json:"products"`
	// Applied is the number of products written so far.
	Applied int `json:"applied"`
	// Percent is file read progress while preparing and write progress
	// while applying. 0 when the file size is unknown.
	Percent int `json:"percent"`
}

// ProgressFunc receives progress updates. It is called synchronously from
// the import goroutine and must not block.
type ProgressFunc func(Progress)
