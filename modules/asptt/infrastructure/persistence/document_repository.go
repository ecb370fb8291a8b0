package persistence

import (
	"context"
	"errors"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/asptt-sync/modules/asptt/domain/linkage"
	"github.com/iota-uz/asptt-sync/pkg/composables"
)

type DocumentRepository struct{}

func NewDocumentRepository() linkage.DocumentRepository {
	return &DocumentRepository{}
}

const documentColumns = `id, licensee_id, source, source_licence_number, attachment_id, club_note,
	source_created_at, season_end_year, last_name, first_name, birthdate, sex, imported_at, updated_at`

// upsertDocumentSQL only touches the row when a value differs, so a repeated
// import leaves updated_at alone. An unchanged row returns nothing.
const upsertDocumentSQL = `
	INSERT INTO licensee_documents (
		licensee_id, source, source_licence_number, club_note, source_created_at,
		season_end_year, last_name, first_name, birthdate, sex
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (source, source_licence_number) DO UPDATE SET
		licensee_id       = EXCLUDED.licensee_id,
		club_note         = EXCLUDED.club_note,
		source_created_at = EXCLUDED.source_created_at,
		season_end_year   = EXCLUDED.season_end_year,
		last_name         = EXCLUDED.last_name,
		first_name        = EXCLUDED.first_name,
		birthdate         = EXCLUDED.birthdate,
		sex               = EXCLUDED.sex,
		updated_at        = now()
	WHERE (licensee_documents.licensee_id, licensee_documents.club_note, licensee_documents.source_created_at,
	       licensee_documents.season_end_year, licensee_documents.last_name, licensee_documents.first_name,
	       licensee_documents.birthdate, licensee_documents.sex)
	      IS DISTINCT FROM
	      (EXCLUDED.licensee_id, EXCLUDED.club_note, EXCLUDED.source_created_at,
	       EXCLUDED.season_end_year, EXCLUDED.last_name, EXCLUDED.first_name,
	       EXCLUDED.birthdate, EXCLUDED.sex)
	RETURNING id, (xmax = 0) AS inserted
`

func (r *DocumentRepository) Upsert(ctx context.Context, doc linkage.Document) (linkage.UpsertResult, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return linkage.UpsertResult{}, err
	}
	var res linkage.UpsertResult
	err = tx.QueryRow(ctx, upsertDocumentSQL,
		doc.LicenseeID,
		doc.Source,
		doc.SourceLicenceNumber,
		doc.ClubNote,
		doc.SourceCreatedAt,
		doc.SeasonEndYear,
		doc.LastName,
		doc.FirstName,
		doc.Birthdate,
		doc.Sex,
	).Scan(&res.ID, &res.Inserted)
	if err == nil {
		return res, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return linkage.UpsertResult{}, gerrors.Wrapf(err, "upsert document %s", doc.SourceLicenceNumber)
	}
	if err := tx.QueryRow(ctx, `
		SELECT id FROM licensee_documents WHERE source = $1 AND source_licence_number = $2
	`, doc.Source, doc.SourceLicenceNumber).Scan(&res.ID); err != nil {
		return linkage.UpsertResult{}, notFound(err, "load unchanged document")
	}
	return res, nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id int64) (linkage.Document, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return linkage.Document{}, err
	}
	var d linkage.Document
	err = tx.QueryRow(ctx, `SELECT `+documentColumns+` FROM licensee_documents WHERE id = $1`, id).Scan(
		&d.ID,
		&d.LicenseeID,
		&d.Source,
		&d.SourceLicenceNumber,
		&d.AttachmentID,
		&d.ClubNote,
		&d.SourceCreatedAt,
		&d.SeasonEndYear,
		&d.LastName,
		&d.FirstName,
		&d.Birthdate,
		&d.Sex,
		&d.ImportedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return linkage.Document{}, notFound(err, "get document")
	}
	return d, nil
}

func (r *DocumentRepository) UpdateLicensee(ctx context.Context, id, licenseeID int64) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `
		UPDATE licensee_documents SET licensee_id = $2, updated_at = $3 WHERE id = $1
	`, id, licenseeID, time.Now().UTC())
	if err != nil {
		return gerrors.Wrap(err, "update document licensee")
	}
	if tag.RowsAffected() == 0 {
		return linkage.ErrNotFound
	}
	return nil
}

func (r *DocumentRepository) Delete(ctx context.Context, id int64) error {
	n, err := r.DeleteByIDs(ctx, []int64{id})
	if err != nil {
		return err
	}
	if n == 0 {
		return linkage.ErrNotFound
	}
	return nil
}

func (r *DocumentRepository) DeleteByIDs(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	tag, err := tx.Exec(ctx, `DELETE FROM licensee_documents WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, gerrors.Wrap(err, "delete documents")
	}
	return tag.RowsAffected(), nil
}

func (r *DocumentRepository) CountByLicensee(ctx context.Context, licenseeID int64, source string) (int, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	var n int
	if err := tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM licensee_documents WHERE licensee_id = $1 AND source = $2
	`, licenseeID, source).Scan(&n); err != nil {
		return 0, gerrors.Wrap(err, "count documents")
	}
	return n, nil
}
