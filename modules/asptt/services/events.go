package services

import (
	"github.com/google/uuid"

	"github.com/iota-uz/asptt-sync/modules/asptt/domain/linkage"
	"github.com/iota-uz/asptt-sync/modules/asptt/domain/review"
)

type ImportCommitted struct {
	RunID    uuid.UUID
	FileName string
	Operator string
	Mode     linkage.RunMode
	Summary  CommitSummary
}

type ImportRolledBack struct {
	RunID            uuid.UUID
	Operator         string
	DocumentsDeleted int64
	MetaDeleted      int64
}

type ReviewTransitioned struct {
	DocumentID int64
	LicenseeID int64
	Action     string
	From       review.Status
	To         review.Status
	Operator   string
}

type AliasLearned struct {
	Alias    linkage.ClubAlias
	Created  bool
	Origin   string // "operator", "commit" or "relink"
	Operator string
}
