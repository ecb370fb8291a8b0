package previewstate

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/asptt-sync/modules/asptt/domain/reconcile"
	"github.com/iota-uz/asptt-sync/modules/asptt/domain/row"
)

func sampleParams() reconcile.Params {
	return reconcile.Params{
		Mapping:        row.Mapping{"Nom": row.ColumnLastName, "Note": row.ColumnClubNote},
		ForceClubID:    7,
		SeasonOverride: 2025,
		PreviewRows:    20,
	}
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	s := NewRedisStore(client, time.Hour)

	_, err := s.Load(ctx, "h1")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Save(ctx, "h1", sampleParams()))
	got, err := s.Load(ctx, "h1")
	require.NoError(t, err)
	require.Equal(t, sampleParams(), got)
	require.Equal(t, time.Hour, mr.TTL("asptt:preview:v1:{h1}"))

	mr.FastForward(2 * time.Hour)
	_, err = s.Load(ctx, "h1")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Save(ctx, "h2", sampleParams()))
	require.NoError(t, s.Delete(ctx, "h2"))
	_, err = s.Load(ctx, "h2")
	require.ErrorIs(t, err, ErrNotFound)
}

type dirSidecars string

func (d dirSidecars) SidecarPath(handle, kind string) (string, error) {
	return filepath.Join(string(d), handle+"."+kind+".json"), nil
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	s := NewFileStore(dirSidecars(t.TempDir()))

	_, err := s.Load(ctx, "h1")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Save(ctx, "h1", sampleParams()))
	got, err := s.Load(ctx, "h1")
	require.NoError(t, err)
	require.Equal(t, sampleParams(), got)

	require.NoError(t, s.Delete(ctx, "h1"))
	require.NoError(t, s.Delete(ctx, "h1"), "delete is idempotent")
	_, err = s.Load(ctx, "h1")
	require.ErrorIs(t, err, ErrNotFound)
}
