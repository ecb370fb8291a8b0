package persistence

import (
	"context"

	gerrors "github.com/go-faster/errors"

	"github.com/iota-uz/asptt-sync/modules/asptt/domain/linkage"
	"github.com/iota-uz/asptt-sync/pkg/composables"
)

type BatchRepository struct{}

func NewBatchRepository() linkage.BatchRepository {
	return &BatchRepository{}
}

func (r *BatchRepository) Save(ctx context.Context, b linkage.ImportBatch) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	docs, meta := b.DocumentIDs, b.MetaIDs
	if docs == nil {
		docs = []int64{}
	}
	if meta == nil {
		meta = []int64{}
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO asptt_import_batch (slot, run_id, file_name, document_ids, meta_ids, created_at)
		VALUES (1, $1, $2, $3, $4, $5)
		ON CONFLICT (slot) DO UPDATE SET
			run_id       = EXCLUDED.run_id,
			file_name    = EXCLUDED.file_name,
			document_ids = EXCLUDED.document_ids,
			meta_ids     = EXCLUDED.meta_ids,
			created_at   = EXCLUDED.created_at
	`, b.RunID, b.FileName, docs, meta, b.CreatedAt); err != nil {
		return gerrors.Wrap(err, "save import batch")
	}
	return nil
}

func (r *BatchRepository) Load(ctx context.Context) (linkage.ImportBatch, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return linkage.ImportBatch{}, err
	}
	var b linkage.ImportBatch
	if err := tx.QueryRow(ctx, `
		SELECT run_id, file_name, document_ids, meta_ids, created_at FROM asptt_import_batch WHERE slot = 1
	`).Scan(&b.RunID, &b.FileName, &b.DocumentIDs, &b.MetaIDs, &b.CreatedAt); err != nil {
		return linkage.ImportBatch{}, notFound(err, "load import batch")
	}
	return b, nil
}

func (r *BatchRepository) Clear(ctx context.Context) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM asptt_import_batch`); err != nil {
		return gerrors.Wrap(err, "clear import batch")
	}
	return nil
}

type ImportLogRepository struct{}

func NewImportLogRepository() linkage.ImportLogRepository {
	return &ImportLogRepository{}
}

func (r *ImportLogRepository) Insert(ctx context.Context, l linkage.ImportLog) (linkage.ImportLog, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return linkage.ImportLog{}, err
	}
	if err := tx.QueryRow(ctx, `
		INSERT INTO asptt_import_logs (run_id, created_at, operator, file_name, mode, total_rows, success_rows, error_rows, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, l.RunID, l.CreatedAt, l.Operator, l.FileName, string(l.Mode), l.TotalRows, l.SuccessRows, l.ErrorRows, string(l.Status)).Scan(&l.ID); err != nil {
		return linkage.ImportLog{}, gerrors.Wrap(err, "insert import log")
	}
	return l, nil
}

func (r *ImportLogRepository) ListRecent(ctx context.Context, limit int) ([]linkage.ImportLog, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
		SELECT id, run_id, created_at, operator, file_name, mode, total_rows, success_rows, error_rows, status
		FROM asptt_import_logs
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, gerrors.Wrap(err, "list import logs")
	}
	defer rows.Close()

	var out []linkage.ImportLog
	for rows.Next() {
		var (
			l            linkage.ImportLog
			mode, status string
		)
		if err := rows.Scan(&l.ID, &l.RunID, &l.CreatedAt, &l.Operator, &l.FileName, &mode, &l.TotalRows, &l.SuccessRows, &l.ErrorRows, &status); err != nil {
			return nil, gerrors.Wrap(err, "scan import log")
		}
		l.Mode, l.Status = linkage.RunMode(mode), linkage.RunStatus(status)
		out = append(out, l)
	}
	return out, rows.Err()
}

// Transactor opens transactions on the pool in ctx.
type Transactor struct{}

func NewTransactor() linkage.Transactor {
	return Transactor{}
}

func (Transactor) InTx(ctx context.Context, fn func(context.Context) error) error {
	return composables.InTx(ctx, fn)
}
