package services

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/asptt-sync/modules/asptt/domain/linkage"
	"github.com/iota-uz/asptt-sync/pkg/composables"
)

type RollbackResult struct {
	RunID            uuid.UUID `json:"run_id"`
	FileName         string    `json:"file_name"`
	DocumentsDeleted int64     `json:"documents_deleted"`
	MetaDeleted      int64     `json:"meta_deleted"`
}

// Rollback deletes exactly the ids recorded by the most recent commit and
// clears the slot. It runs in one transaction: either every recorded id goes
// or none does.
func (s *ImportService) Rollback(ctx context.Context, settings Settings) (res RollbackResult, err error) {
	ctx, span := startSpan(ctx, "asptt.rollback")
	defer func() { endSpan(span, err) }()

	if !settings.RollbackEnabled {
		return RollbackResult{}, newServiceError(http.StatusForbidden, CodeRollbackDisabled, "import rollback is disabled", nil)
	}
	batch, err := s.repos.Batches.Load(ctx)
	if errors.Is(err, linkage.ErrNotFound) || (err == nil && batch.Empty()) {
		return RollbackResult{}, newServiceError(http.StatusConflict, CodeNoBatch, "no import to roll back", err)
	}
	if err != nil {
		return RollbackResult{}, mapStorageError(err)
	}

	res = RollbackResult{RunID: batch.RunID, FileName: batch.FileName}
	err = s.repos.Tx.InTx(ctx, func(txCtx context.Context) error {
		n, err := s.repos.Meta.DeleteByIDs(txCtx, batch.MetaIDs)
		if err != nil {
			return err
		}
		res.MetaDeleted = n
		if n, err = s.repos.Documents.DeleteByIDs(txCtx, batch.DocumentIDs); err != nil {
			return err
		}
		res.DocumentsDeleted = n
		return s.repos.Batches.Clear(txCtx)
	})
	if err != nil {
		logWithFields(ctx, logrus.ErrorLevel, "asptt.rollback.failed", logrus.Fields{"run_id": batch.RunID.String(), "error": err.Error()})
		return RollbackResult{}, mapStorageError(err)
	}

	operator := composables.UseOperator(ctx)
	logWithFields(ctx, logrus.InfoLevel, "asptt.rollback.finished", logrus.Fields{
		"run_id":            batch.RunID.String(),
		"file":              batch.FileName,
		"operator":          operator,
		"documents_deleted": res.DocumentsDeleted,
		"meta_deleted":      res.MetaDeleted,
	})
	if s.publisher != nil {
		s.publisher.Publish(&ImportRolledBack{
			RunID:            batch.RunID,
			Operator:         operator,
			DocumentsDeleted: res.DocumentsDeleted,
			MetaDeleted:      res.MetaDeleted,
		})
	}
	return res, nil
}
