package persistence

import (
	"context"
	"errors"

	gerrors "github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/asptt-sync/modules/asptt/domain/linkage"
	"github.com/iota-uz/asptt-sync/pkg/composables"
)

type AliasRepository struct{}

func NewAliasRepository() linkage.AliasRepository {
	return &AliasRepository{}
}

func (r *AliasRepository) List(ctx context.Context) ([]linkage.ClubAlias, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
		SELECT id, club_id, alias_text, alias_normalized, created_at
		FROM club_aliases
		ORDER BY id
	`)
	if err != nil {
		return nil, gerrors.Wrap(err, "list aliases")
	}
	defer rows.Close()

	var out []linkage.ClubAlias
	for rows.Next() {
		var a linkage.ClubAlias
		if err := rows.Scan(&a.ID, &a.ClubID, &a.AliasText, &a.AliasNormalized, &a.CreatedAt); err != nil {
			return nil, gerrors.Wrap(err, "scan alias")
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *AliasRepository) Insert(ctx context.Context, alias linkage.ClubAlias) (linkage.ClubAlias, bool, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return linkage.ClubAlias{}, false, err
	}
	stored := alias
	err = tx.QueryRow(ctx, `
		INSERT INTO club_aliases (club_id, alias_text, alias_normalized)
		VALUES ($1, $2, $3)
		ON CONFLICT (alias_normalized) DO NOTHING
		RETURNING id, created_at
	`, alias.ClubID, alias.AliasText, alias.AliasNormalized).Scan(&stored.ID, &stored.CreatedAt)
	if err == nil {
		return stored, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return linkage.ClubAlias{}, false, gerrors.Wrap(err, "insert alias")
	}

	// Lost to an earlier writer: hand back theirs.
	var existing linkage.ClubAlias
	if err := tx.QueryRow(ctx, `
		SELECT id, club_id, alias_text, alias_normalized, created_at
		FROM club_aliases
		WHERE alias_normalized = $1
	`, alias.AliasNormalized).Scan(&existing.ID, &existing.ClubID, &existing.AliasText, &existing.AliasNormalized, &existing.CreatedAt); err != nil {
		return linkage.ClubAlias{}, false, notFound(err, "load existing alias")
	}
	return existing, false, nil
}
