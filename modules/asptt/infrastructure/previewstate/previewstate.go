// Package previewstate persists the operator's preview parameters per staged file.
package previewstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iota-uz/asptt-sync/modules/asptt/domain/reconcile"
	"github.com/iota-uz/asptt-sync/pkg/constants"
)

var ErrNotFound = errors.New("preview state not found")

type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{redis: client, prefix: "asptt:preview:v1", ttl: ttl}
}

func (s *RedisStore) Save(ctx context.Context, handle string, params reconcile.Params) error {
	b, err := json.Marshal(params)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, s.key(handle), b, s.ttl).Err()
}

func (s *RedisStore) Load(ctx context.Context, handle string) (reconcile.Params, error) {
	result, err := s.redis.Get(ctx, s.key(handle)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return reconcile.Params{}, ErrNotFound
		}
		return reconcile.Params{}, err
	}
	var params reconcile.Params
	if err := json.Unmarshal([]byte(result), &params); err != nil {
		return reconcile.Params{}, fmt.Errorf("decode preview state: %w", err)
	}
	return params, nil
}

func (s *RedisStore) Delete(ctx context.Context, handle string) error {
	return s.redis.Del(ctx, s.key(handle)).Err()
}

func (s *RedisStore) key(handle string) string {
	return fmt.Sprintf("%s:{%s}", s.prefix, handle)
}

// Sidecars resolves a per-upload file next to the staged export.
type Sidecars interface {
	SidecarPath(handle, kind string) (string, error)
}

// FileStore keeps the state as a JSON file beside the staged upload, so
// discarding the upload removes it too.
type FileStore struct {
	paths Sidecars
}

func NewFileStore(paths Sidecars) *FileStore {
	return &FileStore{paths: paths}
}

func (s *FileStore) Save(ctx context.Context, handle string, params reconcile.Params) error {
	path, err := s.paths.SidecarPath(handle, "state")
	if err != nil {
		return err
	}
	b, err := json.Marshal(params)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, constants.FilePermissions); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *FileStore) Load(ctx context.Context, handle string) (reconcile.Params, error) {
	path, err := s.paths.SidecarPath(handle, "state")
	if err != nil {
		return reconcile.Params{}, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return reconcile.Params{}, ErrNotFound
		}
		return reconcile.Params{}, err
	}
	var params reconcile.Params
	if err := json.Unmarshal(b, &params); err != nil {
		return reconcile.Params{}, fmt.Errorf("decode preview state: %w", err)
	}
	return params, nil
}

func (s *FileStore) Delete(ctx context.Context, handle string) error {
	path, err := s.paths.SidecarPath(handle, "state")
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
