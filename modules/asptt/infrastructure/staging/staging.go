// Package staging keeps uploaded exports under one storage root until they are
// committed or discarded.
package staging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/iota-uz/asptt-sync/pkg/constants"
)

var (
	ErrNotFound      = errors.New("staged file not found")
	ErrOutsideRoot   = errors.New("staged file outside storage root")
	ErrTooLarge      = errors.New("file exceeds upload size limit")
	ErrFileType      = errors.New("file is not delimited text")
	ErrInvalidHandle = errors.New("invalid staged file handle")
)

var allowedExtensions = map[string]struct{}{".csv": {}, ".txt": {}}

type Upload struct {
	Handle   string    `json:"handle"`
	FileName string    `json:"file_name"`
	Size     int64     `json:"size"`
	MIME     string    `json:"mime"`
	StagedAt time.Time `json:"staged_at"`
}

type Store struct {
	root    string
	maxSize int64
	now     func() time.Time
}

func NewStore(root string, maxSize int64) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("staging root is required")
	}
	if maxSize <= 0 {
		return nil, fmt.Errorf("max upload size must be positive")
	}
	if err := os.MkdirAll(root, constants.DirPermissions); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", root, err)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, err
	}
	return &Store{root: resolved, maxSize: maxSize, now: time.Now}, nil
}

func (s *Store) Root() string { return s.root }

// Stage copies src under the root. Oversized or non-text files leave nothing behind.
func (s *Store) Stage(ctx context.Context, fileName string, src io.Reader) (Upload, error) {
	name := filepath.Base(strings.TrimSpace(fileName))
	if _, ok := allowedExtensions[strings.ToLower(filepath.Ext(name))]; !ok {
		return Upload{}, fmt.Errorf("%w: extension %q", ErrFileType, filepath.Ext(name))
	}

	tmp, err := os.CreateTemp(s.root, ".upload-*")
	if err != nil {
		return Upload{}, err
	}
	keep := false
	defer func() {
		_ = tmp.Close()
		if !keep {
			_ = os.Remove(tmp.Name())
		}
	}()

	n, err := io.Copy(tmp, io.LimitReader(src, s.maxSize+1))
	if err != nil {
		return Upload{}, fmt.Errorf("copy upload: %w", err)
	}
	if n > s.maxSize {
		return Upload{}, fmt.Errorf("%w: limit %d bytes", ErrTooLarge, s.maxSize)
	}
	if n == 0 {
		return Upload{}, fmt.Errorf("%w: empty file", ErrFileType)
	}
	if err := ctx.Err(); err != nil {
		return Upload{}, err
	}

	mt, err := mimetype.DetectFile(tmp.Name())
	if err != nil {
		return Upload{}, err
	}
	if !isText(mt) {
		return Upload{}, fmt.Errorf("%w: detected %s", ErrFileType, mt.String())
	}

	up := Upload{
		Handle:   uuid.NewString(),
		FileName: name,
		Size:     n,
		MIME:     mt.String(),
		StagedAt: s.now().UTC(),
	}
	if err := tmp.Close(); err != nil {
		return Upload{}, err
	}
	if err := os.Rename(tmp.Name(), s.dataPath(up.Handle)); err != nil {
		return Upload{}, err
	}
	keep = true
	if err := s.writeInfo(up); err != nil {
		_ = os.Remove(s.dataPath(up.Handle))
		return Upload{}, err
	}
	return up, nil
}

// Open re-validates the staged path on every call: the file may have been
// cleaned up since the previous request.
func (s *Store) Open(ctx context.Context, handle string) (io.ReadCloser, Upload, error) {
	path, err := s.Resolve(handle)
	if err != nil {
		return nil, Upload{}, err
	}
	up, err := s.readInfo(handle)
	if err != nil {
		return nil, Upload{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, Upload{}, ErrNotFound
		}
		return nil, Upload{}, err
	}
	return f, up, nil
}

func (s *Store) Info(ctx context.Context, handle string) (Upload, error) {
	if _, err := s.Resolve(handle); err != nil {
		return Upload{}, err
	}
	return s.readInfo(handle)
}

// Discard removes the staged file and its sidecars.
func (s *Store) Discard(ctx context.Context, handle string) error {
	path, err := s.Resolve(handle)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return err
	}
	matches, err := filepath.Glob(filepath.Join(s.root, handle+".*.json"))
	if err != nil {
		return err
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

// Resolve maps a handle to its path and checks it still exists inside the root.
func (s *Store) Resolve(handle string) (string, error) {
	if _, err := uuid.Parse(handle); err != nil {
		return "", ErrInvalidHandle
	}
	path := s.dataPath(handle)
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", err
	}
	if err := s.within(resolved); err != nil {
		return "", err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", ErrNotFound
	}
	return resolved, nil
}

// SidecarPath is where other stores keep per-upload state next to the file.
func (s *Store) SidecarPath(handle, kind string) (string, error) {
	if _, err := uuid.Parse(handle); err != nil {
		return "", ErrInvalidHandle
	}
	return filepath.Join(s.root, handle+"."+kind+".json"), nil
}

func (s *Store) within(path string) error {
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return ErrOutsideRoot
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return ErrOutsideRoot
	}
	return nil
}

func (s *Store) dataPath(handle string) string {
	return filepath.Join(s.root, handle+".csv")
}

func (s *Store) writeInfo(up Upload) error {
	path, err := s.SidecarPath(up.Handle, "upload")
	if err != nil {
		return err
	}
	b, err := json.Marshal(up)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, constants.FilePermissions)
}

func (s *Store) readInfo(handle string) (Upload, error) {
	path, err := s.SidecarPath(handle, "upload")
	if err != nil {
		return Upload{}, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Upload{Handle: handle, FileName: handle + ".csv"}, nil
		}
		return Upload{}, err
	}
	var up Upload
	if err := json.Unmarshal(b, &up); err != nil {
		return Upload{}, fmt.Errorf("decode upload info: %w", err)
	}
	return up, nil
}

func isText(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}
