package staging

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, max int64) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), max)
	require.NoError(t, err)
	return s
}

func TestStageOpenDiscard(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, 1024)

	up, err := s.Stage(ctx, "../../export.CSV", strings.NewReader("Nom;Prénom\nMartin;Jean\n"))
	require.NoError(t, err)
	require.Equal(t, "export.CSV", up.FileName)
	require.NotEmpty(t, up.Handle)

	rc, info, err := s.Open(ctx, up.Handle)
	require.NoError(t, err)
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Equal(t, "Nom;Prénom\nMartin;Jean\n", string(b))
	require.Equal(t, up.FileName, info.FileName)

	require.NoError(t, s.Discard(ctx, up.Handle))
	_, _, err = s.Open(ctx, up.Handle)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStage_Rejects(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, 16)

	_, err := s.Stage(ctx, "export.pdf", strings.NewReader("a,b\n"))
	require.ErrorIs(t, err, ErrFileType)

	_, err = s.Stage(ctx, "export.csv", strings.NewReader(strings.Repeat("x", 17)))
	require.ErrorIs(t, err, ErrTooLarge)

	png := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}
	_, err = s.Stage(ctx, "export.csv", bytes.NewReader(png))
	require.ErrorIs(t, err, ErrFileType)

	entries, err := os.ReadDir(s.Root())
	require.NoError(t, err)
	require.Empty(t, entries, "rejected uploads leave nothing behind")
}

func TestResolve_Guards(t *testing.T) {
	s := newStore(t, 1024)

	_, err := s.Resolve("../etc/passwd")
	require.ErrorIs(t, err, ErrInvalidHandle)

	_, err = s.Resolve(uuid.NewString())
	require.ErrorIs(t, err, ErrNotFound)

	outside := filepath.Join(t.TempDir(), "outside.csv")
	require.NoError(t, os.WriteFile(outside, []byte("a,b\n"), 0o600))
	handle := uuid.NewString()
	require.NoError(t, os.Symlink(outside, filepath.Join(s.Root(), handle+".csv")))
	_, err = s.Resolve(handle)
	require.ErrorIs(t, err, ErrOutsideRoot)
}
