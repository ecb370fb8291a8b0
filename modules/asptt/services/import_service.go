package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/asptt-sync/modules/asptt/domain/linkage"
	"github.com/iota-uz/asptt-sync/modules/asptt/domain/reconcile"
	"github.com/iota-uz/asptt-sync/modules/asptt/domain/row"
	"github.com/iota-uz/asptt-sync/modules/asptt/infrastructure/csvfile"
	"github.com/iota-uz/asptt-sync/modules/asptt/infrastructure/previewstate"
	"github.com/iota-uz/asptt-sync/modules/asptt/infrastructure/staging"
	"github.com/iota-uz/asptt-sync/pkg/eventbus"
)

// Staging is upload intake under the storage root.
type Staging interface {
	Stage(ctx context.Context, fileName string, src io.Reader) (staging.Upload, error)
	Open(ctx context.Context, handle string) (io.ReadCloser, staging.Upload, error)
	Discard(ctx context.Context, handle string) error
}

// PreviewStates keeps Params per staged file between requests.
type PreviewStates interface {
	Save(ctx context.Context, handle string, params reconcile.Params) error
	Load(ctx context.Context, handle string) (reconcile.Params, error)
	Delete(ctx context.Context, handle string) error
}

type Repositories struct {
	Clubs      linkage.ClubRepository
	Licensees  linkage.LicenseeRepository
	Aliases    linkage.AliasRepository
	Documents  linkage.DocumentRepository
	Meta       linkage.MetaRepository
	Batches    linkage.BatchRepository
	ImportLogs linkage.ImportLogRepository
	Tx         linkage.Transactor
}

type ImportService struct {
	repos     Repositories
	staging   Staging
	states    PreviewStates
	publisher eventbus.EventBus
	now       func() time.Time
}

func NewImportService(repos Repositories, stage Staging, states PreviewStates, publisher eventbus.EventBus) *ImportService {
	return &ImportService{repos: repos, staging: stage, states: states, publisher: publisher, now: time.Now}
}

type StageResult struct {
	Upload  staging.Upload `json:"upload"`
	Header  []string       `json:"header"`
	Mapping row.Mapping    `json:"mapping"`
}

// Stage accepts an upload, parses its header and stores a suggested mapping as
// the initial preview state. A file without a readable header is discarded.
func (s *ImportService) Stage(ctx context.Context, fileName string, src io.Reader) (StageResult, error) {
	up, err := s.staging.Stage(ctx, fileName, src)
	if err != nil {
		return StageResult{}, mapFileError(err)
	}
	opened, err := s.open(ctx, up.Handle)
	if err != nil {
		_ = s.staging.Discard(ctx, up.Handle)
		return StageResult{}, err
	}
	header := opened.reader.Header()
	_ = opened.Close()

	params := reconcile.Params{Mapping: row.SuggestMapping(header)}
	if err := s.states.Save(ctx, up.Handle, params); err != nil {
		_ = s.staging.Discard(ctx, up.Handle)
		return StageResult{}, mapStorageError(err)
	}
	logWithFields(ctx, logrus.InfoLevel, "asptt.upload.staged", logrus.Fields{
		"handle":  up.Handle,
		"file":    up.FileName,
		"size":    up.Size,
		"columns": len(header),
	})
	return StageResult{Upload: up, Header: header, Mapping: params.Mapping}, nil
}

// Params returns the stored preview state, or a suggestion when none exists.
func (s *ImportService) Params(ctx context.Context, handle string) (reconcile.Params, error) {
	params, err := s.states.Load(ctx, handle)
	if err == nil {
		return params, nil
	}
	if !errors.Is(err, previewstate.ErrNotFound) {
		return reconcile.Params{}, mapStorageError(err)
	}
	opened, err := s.open(ctx, handle)
	if err != nil {
		return reconcile.Params{}, err
	}
	defer func() { _ = opened.Close() }()
	return reconcile.Params{Mapping: row.SuggestMapping(opened.reader.Header())}, nil
}

// SaveParams validates params against the staged header before storing them.
func (s *ImportService) SaveParams(ctx context.Context, handle string, params reconcile.Params) error {
	if err := validateParams(params); err != nil {
		return err
	}
	opened, err := s.open(ctx, handle)
	if err != nil {
		return err
	}
	header := opened.reader.Header()
	_ = opened.Close()
	if err := params.Mapping.Validate(header); err != nil {
		return invalidParams("%v", err)
	}
	if err := s.states.Save(ctx, handle, params); err != nil {
		return mapStorageError(err)
	}
	return nil
}

// Discard cancels an in-progress preview: the staged file and its state go away.
func (s *ImportService) Discard(ctx context.Context, handle string) error {
	if err := s.staging.Discard(ctx, handle); err != nil {
		return mapFileError(err)
	}
	if err := s.states.Delete(ctx, handle); err != nil {
		return mapStorageError(err)
	}
	logWithFields(ctx, logrus.InfoLevel, "asptt.upload.discarded", logrus.Fields{"handle": handle})
	return nil
}

type openedFile struct {
	upload staging.Upload
	reader *csvfile.Reader
	closer io.Closer
}

func (o *openedFile) Close() error { return o.closer.Close() }

func (s *ImportService) open(ctx context.Context, handle string) (*openedFile, error) {
	rc, up, err := s.staging.Open(ctx, handle)
	if err != nil {
		return nil, mapFileError(err)
	}
	reader, err := csvfile.NewReader(rc)
	if err != nil {
		_ = rc.Close()
		return nil, mapFileError(err)
	}
	return &openedFile{upload: up, reader: reader, closer: rc}, nil
}

// prepare opens the file and builds the per-run pipeline.
func (s *ImportService) prepare(ctx context.Context, handle string, params reconcile.Params, settings Settings) (*openedFile, *row.Decoder, *pipeline, error) {
	if err := settings.Validate(); err != nil {
		return nil, nil, nil, err
	}
	if err := validateParams(params); err != nil {
		return nil, nil, nil, err
	}
	opened, err := s.open(ctx, handle)
	if err != nil {
		return nil, nil, nil, err
	}
	header := opened.reader.Header()
	if err := params.Mapping.Validate(header); err != nil {
		_ = opened.Close()
		return nil, nil, nil, invalidParams("%v", err)
	}
	clubs, err := LoadClubResolver(ctx, s.repos.Clubs, s.repos.Aliases)
	if err != nil {
		_ = opened.Close()
		return nil, nil, nil, mapStorageError(err)
	}
	for _, id := range []int64{params.ForceClubID, pinnedClub(params)} {
		if id != 0 && !clubs.Known(id) {
			_ = opened.Close()
			return nil, nil, nil, newServiceError(http.StatusUnprocessableEntity, CodeInvalidParams, "unknown club", nil)
		}
	}
	p := &pipeline{
		clubs:    clubs,
		matcher:  NewPersonMatcher(s.repos.Licensees),
		params:   params,
		settings: settings,
	}
	return opened, row.NewDecoder(header, params.Mapping), p, nil
}

func pinnedClub(p reconcile.Params) int64 {
	if p.PinnedApply {
		return p.PinnedClubID
	}
	return 0
}

// each decodes and resolves rows until fn returns false or the file ends.
// A storage failure while resolving one row is handed to fn with the partial
// result; a read failure ends the walk.
func each(ctx context.Context, opened *openedFile, dec *row.Decoder, p *pipeline, fn func(reconcile.RowResult, error) (bool, error)) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, rec, err := opened.reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return mapFileError(err)
		}
		if blankRecord(rec) {
			continue
		}
		res, rowErr := p.resolve(ctx, dec.Decode(line, rec))
		more, err := fn(res, rowErr)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
}

func blankRecord(rec []string) bool {
	for _, c := range rec {
		for _, r := range c {
			if r != ' ' && r != '\t' {
				return false
			}
		}
	}
	return true
}
