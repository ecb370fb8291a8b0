package linkage

import (
	"time"

	"github.com/google/uuid"
)

// ImportBatch is the single-slot rollback point: ids written by the latest commit.
type ImportBatch struct {
	RunID       uuid.UUID `json:"run_id"`
	FileName    string    `json:"file_name"`
	DocumentIDs []int64   `json:"document_ids"`
	MetaIDs     []int64   `json:"meta_ids"`
	CreatedAt   time.Time `json:"created_at"`

	seen map[[2]int64]struct{}
}

func (b ImportBatch) Empty() bool { return len(b.DocumentIDs) == 0 && len(b.MetaIDs) == 0 }

// TrackDocument and TrackMeta record an id once, keeping first-seen order.
func (b *ImportBatch) TrackDocument(id int64) {
	if b.seen == nil {
		b.seen = map[[2]int64]struct{}{}
	}
	if _, ok := b.seen[[2]int64{0, id}]; ok {
		return
	}
	b.seen[[2]int64{0, id}] = struct{}{}
	b.DocumentIDs = append(b.DocumentIDs, id)
}

func (b *ImportBatch) TrackMeta(id int64) {
	if b.seen == nil {
		b.seen = map[[2]int64]struct{}{}
	}
	if _, ok := b.seen[[2]int64{1, id}]; ok {
		return
	}
	b.seen[[2]int64{1, id}] = struct{}{}
	b.MetaIDs = append(b.MetaIDs, id)
}

type RunMode string

const (
	ModeDryRun RunMode = "dry_run"
	ModeImport RunMode = "import"
)

type RunStatus string

const (
	RunCompleted           RunStatus = "completed"
	RunCompletedWithErrors RunStatus = "completed_with_errors"
	RunFailed              RunStatus = "failed"
)

// ImportLog is append-only.
type ImportLog struct {
	ID          int64     `json:"id"`
	RunID       uuid.UUID `json:"run_id"`
	CreatedAt   time.Time `json:"created_at"`
	Operator    string    `json:"operator"`
	FileName    string    `json:"file_name"`
	Mode        RunMode   `json:"mode"`
	TotalRows   int       `json:"total_rows"`
	SuccessRows int       `json:"success_rows"`
	ErrorRows   int       `json:"error_rows"`
	Status      RunStatus `json:"status"`
}
