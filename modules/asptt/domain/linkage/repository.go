package linkage

import (
	"context"
	"time"
)

type ClubRepository interface {
	List(ctx context.Context) ([]Club, error)
	GetByID(ctx context.Context, id int64) (Club, error)
}

type LicenseeRepository interface {
	ListByClubAndBirthdate(ctx context.Context, clubID int64, birthdate time.Time) ([]Licensee, error)
	GetByID(ctx context.Context, id int64) (Licensee, error)
}

type AliasRepository interface {
	List(ctx context.Context) ([]ClubAlias, error)
	// Insert is first-writer-wins on alias_normalized; created is false when
	// the alias already existed, in which case the stored row is returned.
	Insert(ctx context.Context, alias ClubAlias) (stored ClubAlias, created bool, err error)
}

type DocumentRepository interface {
	// Upsert is keyed on (source, source_licence_number).
	Upsert(ctx context.Context, doc Document) (UpsertResult, error)
	GetByID(ctx context.Context, id int64) (Document, error)
	UpdateLicensee(ctx context.Context, id, licenseeID int64) error
	Delete(ctx context.Context, id int64) error
	DeleteByIDs(ctx context.Context, ids []int64) (int64, error)
	CountByLicensee(ctx context.Context, licenseeID int64, source string) (int, error)
}

type MetaRepository interface {
	List(ctx context.Context, licenseeID int64, source string) ([]MetaEntry, error)
	// Put upserts on (licensee_id, source, meta_key) and returns the row id.
	Put(ctx context.Context, licenseeID int64, source, key, value string) (int64, error)
	DeleteByIDs(ctx context.Context, ids []int64) (int64, error)
	DeleteForLicensee(ctx context.Context, licenseeID int64, source string) (int64, error)
}

type BatchRepository interface {
	// Save replaces the slot.
	Save(ctx context.Context, batch ImportBatch) error
	Load(ctx context.Context) (ImportBatch, error)
	Clear(ctx context.Context) error
}

type ImportLogRepository interface {
	Insert(ctx context.Context, log ImportLog) (ImportLog, error)
	ListRecent(ctx context.Context, limit int) ([]ImportLog, error)
}

// Transactor runs fn inside one storage transaction carried by ctx.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
