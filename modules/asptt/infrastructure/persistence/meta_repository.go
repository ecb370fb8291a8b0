package persistence

import (
	"context"

	gerrors "github.com/go-faster/errors"

	"github.com/iota-uz/asptt-sync/modules/asptt/domain/linkage"
	"github.com/iota-uz/asptt-sync/pkg/composables"
)

type MetaRepository struct{}

func NewMetaRepository() linkage.MetaRepository {
	return &MetaRepository{}
}

func (r *MetaRepository) List(ctx context.Context, licenseeID int64, source string) ([]linkage.MetaEntry, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
		SELECT id, licensee_id, source, meta_key, meta_value
		FROM licensee_document_meta
		WHERE licensee_id = $1 AND source = $2
		ORDER BY id
	`, licenseeID, source)
	if err != nil {
		return nil, gerrors.Wrap(err, "list meta")
	}
	defer rows.Close()

	var out []linkage.MetaEntry
	for rows.Next() {
		var e linkage.MetaEntry
		if err := rows.Scan(&e.ID, &e.LicenseeID, &e.Source, &e.Key, &e.Value); err != nil {
			return nil, gerrors.Wrap(err, "scan meta")
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *MetaRepository) Put(ctx context.Context, licenseeID int64, source, key, value string) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	var id int64
	if err := tx.QueryRow(ctx, `
		INSERT INTO licensee_document_meta (licensee_id, source, meta_key, meta_value)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (licensee_id, source, meta_key) DO UPDATE SET meta_value = EXCLUDED.meta_value
		RETURNING id
	`, licenseeID, source, key, value).Scan(&id); err != nil {
		return 0, gerrors.Wrapf(err, "put meta %s", key)
	}
	return id, nil
}

func (r *MetaRepository) DeleteByIDs(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	tag, err := tx.Exec(ctx, `DELETE FROM licensee_document_meta WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, gerrors.Wrap(err, "delete meta")
	}
	return tag.RowsAffected(), nil
}

func (r *MetaRepository) DeleteForLicensee(ctx context.Context, licenseeID int64, source string) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	tag, err := tx.Exec(ctx, `
		DELETE FROM licensee_document_meta WHERE licensee_id = $1 AND source = $2
	`, licenseeID, source)
	if err != nil {
		return 0, gerrors.Wrap(err, "delete licensee meta")
	}
	return tag.RowsAffected(), nil
}
