package persistence

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/asptt-sync/modules/asptt/domain/linkage"
	"github.com/iota-uz/asptt-sync/modules/asptt/domain/normalize"
	"github.com/iota-uz/asptt-sync/pkg/composables"
	"github.com/iota-uz/asptt-sync/pkg/configuration"
)

func TestRepositories_Postgres(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool := newAspttTestDB(t, ctx, os.Getenv("CI") != "")
	ctx = composables.WithPool(ctx, pool)

	_, err := pool.Exec(ctx, `INSERT INTO clubs (id, name) VALUES (1, 'AS Ville'), (3, 'Club Trois')`)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `
		INSERT INTO licensees (id, club_id, last_name, first_name, birthdate, sex)
		VALUES (101, 1, 'Martin', 'Jean', '2005-02-01', 'M'), (102, 3, 'MARTIN', 'JEAN', '2005-02-01', 'M')
	`)
	require.NoError(t, err)

	t.Run("licensees by club and birthdate", func(t *testing.T) {
		got, err := NewLicenseeRepository().ListByClubAndBirthdate(ctx, 1, normalize.MustDate("2005-02-01"))
		require.NoError(t, err)
		require.Len(t, got, 1)
		require.Equal(t, int64(101), got[0].ID())
	})

	t.Run("document upsert is idempotent", func(t *testing.T) {
		docs := NewDocumentRepository()
		birth := normalize.MustDate("2005-02-01")
		doc := linkage.Document{
			LicenseeID:          101,
			Source:              linkage.Source,
			SourceLicenceNumber: "A1001",
			ClubNote:            "AS VILLE",
			SeasonEndYear:       2025,
			LastName:            "MARTIN",
			FirstName:           "Jean",
			Birthdate:           &birth,
			Sex:                 "M",
		}
		first, err := docs.Upsert(ctx, doc)
		require.NoError(t, err)
		require.True(t, first.Inserted)
		stored, err := docs.GetByID(ctx, first.ID)
		require.NoError(t, err)

		second, err := docs.Upsert(ctx, doc)
		require.NoError(t, err)
		require.Equal(t, linkage.UpsertResult{ID: first.ID}, second)
		again, err := docs.GetByID(ctx, first.ID)
		require.NoError(t, err)
		require.Equal(t, stored.UpdatedAt, again.UpdatedAt, "unchanged rows keep updated_at")

		doc.SeasonEndYear = 2026
		third, err := docs.Upsert(ctx, doc)
		require.NoError(t, err)
		require.Equal(t, first.ID, third.ID)
		require.False(t, third.Inserted)

		n, err := docs.CountByLicensee(ctx, 101, linkage.Source)
		require.NoError(t, err)
		require.Equal(t, 1, n)
	})

	t.Run("meta put is keyed per licensee", func(t *testing.T) {
		meta := NewMetaRepository()
		id1, err := meta.Put(ctx, 101, linkage.Source, linkage.MetaReviewStatus, "pending")
		require.NoError(t, err)
		id2, err := meta.Put(ctx, 101, linkage.Source, linkage.MetaReviewStatus, "approved")
		require.NoError(t, err)
		require.Equal(t, id1, id2)

		entries, err := meta.List(ctx, 101, linkage.Source)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		require.Equal(t, "approved", entries[0].Value)
	})

	t.Run("alias first writer wins", func(t *testing.T) {
		aliases := NewAliasRepository()
		a, _ := linkage.NewClubAlias(1, "Ville FC")
		_, created, err := aliases.Insert(ctx, a)
		require.NoError(t, err)
		require.True(t, created)

		b, _ := linkage.NewClubAlias(3, "ville-fc")
		stored, created, err := aliases.Insert(ctx, b)
		require.NoError(t, err)
		require.False(t, created)
		require.Equal(t, int64(1), stored.ClubID)
	})

	t.Run("batch slot and rollback in one transaction", func(t *testing.T) {
		batches := NewBatchRepository()
		_, err := batches.Load(ctx)
		require.ErrorIs(t, err, linkage.ErrNotFound)

		doc, err := NewDocumentRepository().Upsert(ctx, linkage.Document{
			LicenseeID: 102, Source: linkage.Source, SourceLicenceNumber: "A3001", SeasonEndYear: 2025,
		})
		require.NoError(t, err)
		metaID, err := NewMetaRepository().Put(ctx, 102, linkage.Source, linkage.MetaLinkMode, "auto")
		require.NoError(t, err)

		b := linkage.ImportBatch{RunID: uuid.New(), FileName: "f.csv", CreatedAt: time.Now().UTC()}
		b.TrackDocument(doc.ID)
		b.TrackMeta(metaID)
		require.NoError(t, batches.Save(ctx, b))
		require.NoError(t, batches.Save(ctx, b), "save replaces the slot")

		loaded, err := batches.Load(ctx)
		require.NoError(t, err)
		require.Equal(t, b.RunID, loaded.RunID)
		require.Equal(t, []int64{doc.ID}, loaded.DocumentIDs)

		err = NewTransactor().InTx(ctx, func(txCtx context.Context) error {
			if _, err := NewMetaRepository().DeleteByIDs(txCtx, loaded.MetaIDs); err != nil {
				return err
			}
			if _, err := NewDocumentRepository().DeleteByIDs(txCtx, loaded.DocumentIDs); err != nil {
				return err
			}
			return batches.Clear(txCtx)
		})
		require.NoError(t, err)
		_, err = NewDocumentRepository().GetByID(ctx, doc.ID)
		require.ErrorIs(t, err, linkage.ErrNotFound)
	})

	t.Run("import logs newest first", func(t *testing.T) {
		logs := NewImportLogRepository()
		for i, mode := range []linkage.RunMode{linkage.ModeDryRun, linkage.ModeImport} {
			_, err := logs.Insert(ctx, linkage.ImportLog{
				RunID:     uuid.New(),
				CreatedAt: time.Date(2025, 1, 1+i, 0, 0, 0, 0, time.UTC),
				Operator:  "alice",
				FileName:  "f.csv",
				Mode:      mode,
				Status:    linkage.RunCompleted,
			})
			require.NoError(t, err)
		}
		recent, err := logs.ListRecent(ctx, 1)
		require.NoError(t, err)
		require.Len(t, recent, 1)
		require.Equal(t, linkage.ModeImport, recent[0].Mode)
	})
}

func newAspttTestDB(tb testing.TB, ctx context.Context, isCI bool) *pgxpool.Pool {
	tb.Helper()

	conf, err := configuration.Parse()
	require.NoError(tb, err)
	db := conf.Database

	adminDSN := "postgres://" + db.User + ":" + db.Password + "@" + db.Host + ":" + db.Port + "/postgres?sslmode=disable"
	adminConn, err := pgx.Connect(ctx, adminDSN)
	if err != nil {
		if isCI {
			require.NoError(tb, err)
		}
		tb.Skip("postgres is not reachable; skipping integration test")
	}
	tb.Cleanup(func() { _ = adminConn.Close(context.Background()) })

	dbName := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return '_'
	}, "asptt_"+strings.ToLower(tb.Name()))

	_, _ = adminConn.Exec(ctx, "DROP DATABASE IF EXISTS "+dbName)
	if _, err := adminConn.Exec(ctx, "CREATE DATABASE "+dbName); err != nil {
		if isCI {
			require.NoError(tb, err)
		}
		tb.Skip("failed to create test database; skipping integration test")
	}

	pool, err := pgxpool.New(ctx, "postgres://"+db.User+":"+db.Password+"@"+db.Host+":"+db.Port+"/"+dbName+"?sslmode=disable")
	require.NoError(tb, err)
	tb.Cleanup(func() {
		pool.Close()
		_, _ = adminConn.Exec(context.Background(), "DROP DATABASE IF EXISTS "+dbName)
	})

	raw, err := os.ReadFile(filepath.Join("..", "..", "..", "..", "migrations", "asptt", "00001_asptt_baseline.sql"))
	require.NoError(tb, err)
	_, err = pool.Exec(ctx, extractGooseUp(string(raw)), pgx.QueryExecModeSimpleProtocol)
	require.NoError(tb, err)
	return pool
}

func extractGooseUp(raw string) string {
	const up = "-- +goose Up"
	const down = "-- +goose Down"
	if start := strings.Index(raw, up); start >= 0 {
		raw = raw[start+len(up):]
	}
	if end := strings.Index(raw, down); end >= 0 {
		raw = raw[:end]
	}
	return raw
}
