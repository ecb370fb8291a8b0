// Package persistence stores ASPTT linkage state in Postgres through pgx.
// Every repository runs on the transaction in ctx, or the pool when none.
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

type ClubRepository struct{}

func NewClubRepository() linkage.ClubRepository {
	return &ClubRepository{}
}

func (r *ClubRepository) List(ctx context.Context) ([]linkage.Club, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `SELECT id, name FROM clubs ORDER BY id`)
	if err != nil {
		return nil, gerrors.Wrap(err, "list clubs")
	}
	defer rows.Close()

	var out []linkage.Club
	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, gerrors.Wrap(err, "scan club")
		}
		out = append(out, linkage.NewClub(id, name))
	}
	return out, rows.Err()
}

func (r *ClubRepository) GetByID(ctx context.Context, id int64) (linkage.Club, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return linkage.Club{}, err
	}
	var name string
	if err := tx.QueryRow(ctx, `SELECT name FROM clubs WHERE id = $1`, id).Scan(&name); err != nil {
		return linkage.Club{}, notFound(err, "get club")
	}
	return linkage.NewClub(id, name), nil
}

type LicenseeRepository struct{}

func NewLicenseeRepository() linkage.LicenseeRepository {
	return &LicenseeRepository{}
}

const licenseeColumns = `id, club_id, last_name, first_name, birthdate, sex`

func (r *LicenseeRepository) ListByClubAndBirthdate(ctx context.Context, clubID int64, birthdate time.Time) ([]linkage.Licensee, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
		SELECT `+licenseeColumns+`
		FROM licensees
		WHERE club_id = $1 AND birthdate = $2
		ORDER BY id
	`, clubID, birthdate)
	if err != nil {
		return nil, gerrors.Wrap(err, "list licensees")
	}
	defer rows.Close()

	var out []linkage.Licensee
	for rows.Next() {
		l, err := scanLicensee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *LicenseeRepository) GetByID(ctx context.Context, id int64) (linkage.Licensee, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return linkage.Licensee{}, err
	}
	l, err := scanLicensee(tx.QueryRow(ctx, `SELECT `+licenseeColumns+` FROM licensees WHERE id = $1`, id))
	if err != nil {
		return linkage.Licensee{}, notFound(err, "get licensee")
	}
	return l, nil
}

func scanLicensee(row pgx.Row) (linkage.Licensee, error) {
	var (
		id, clubID  int64
		last, first string
		birthdate   time.Time
		sex         string
	)
	if err := row.Scan(&id, &clubID, &last, &first, &birthdate, &sex); err != nil {
		return linkage.Licensee{}, err
	}
	return linkage.HydrateLicensee(id, clubID, last, first, birthdate, sex), nil
}

// notFound maps pgx.ErrNoRows to linkage.ErrNotFound and wraps anything else.
func notFound(err error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return linkage.ErrNotFound
	}
	return gerrors.Wrap(err, op)
}
