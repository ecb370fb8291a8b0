package services

import (
	"context"

	"github.com/iota-uz/asptt-sync/modules/asptt/domain/linkage"
)

const (
	DefaultLogLimit = 20
	MaxLogLimit     = 200
)

// ListImportLogs returns the most recent runs, newest first.
func (s *ImportService) ListImportLogs(ctx context.Context, limit int) ([]linkage.ImportLog, error) {
	if limit <= 0 {
		limit = DefaultLogLimit
	}
	if limit > MaxLogLimit {
		limit = MaxLogLimit
	}
	logs, err := s.repos.ImportLogs.ListRecent(ctx, limit)
	if err != nil {
		return nil, mapStorageError(err)
	}
	return logs, nil
}
