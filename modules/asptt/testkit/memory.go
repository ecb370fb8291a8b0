// Package testkit holds an in-memory implementation of every linkage
// repository, for service and controller tests.
package testkit

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/iota-uz/asptt-sync/modules/asptt/domain/linkage"
)

var ErrInjected = errors.New("connection reset")

type metaKey struct {
	licenseeID int64
	source     string
	key        string
}

// Store backs the repositories with maps guarded by one mutex.
type Store struct {
	mu sync.Mutex

	clubs     map[int64]linkage.Club
	licensees []linkage.Licensee
	aliases   []linkage.ClubAlias

	docs      map[int64]linkage.Document
	docByKey  map[string]int64
	nextDocID int64

	meta       map[metaKey]linkage.MetaEntry
	nextMetaID int64

	batch *linkage.ImportBatch
	logs  []linkage.ImportLog

	failUpsert   map[string]bool
	failLicensee error

	Now func() time.Time
}

func NewStore() *Store {
	return &Store{
		clubs:      map[int64]linkage.Club{},
		docs:       map[int64]linkage.Document{},
		docByKey:   map[string]int64{},
		meta:       map[metaKey]linkage.MetaEntry{},
		failUpsert: map[string]bool{},
		Now:        func() time.Time { return time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC) },
	}
}

func (m *Store) AddClub(id int64, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clubs[id] = linkage.NewClub(id, name)
}

// AddLicensee takes the birthdate as YYYY-MM-DD.
func (m *Store) AddLicensee(id, clubID int64, last, first, birth, sex string) {
	b, _ := time.Parse("2006-01-02", birth)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.licensees = append(m.licensees, linkage.HydrateLicensee(id, clubID, last, first, b, sex))
}

func (m *Store) AddAlias(clubID int64, text string) linkage.ClubAlias {
	a, _ := linkage.NewClubAlias(clubID, text)
	stored, _, _ := aliases{m}.Insert(context.Background(), a)
	return stored
}

// FailUpsert makes document upserts for licence fail until cleared.
func (m *Store) FailUpsert(licence string, fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if fail {
		m.failUpsert[licence] = true
		return
	}
	delete(m.failUpsert, licence)
}

// FailLicensees makes every licensee lookup return err; nil clears it.
func (m *Store) FailLicensees(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failLicensee = err
}

func (m *Store) Clubs() linkage.ClubRepository { return clubs{m} }
func (m *Store) Licensees() linkage.LicenseeRepository { return licensees{m} }
func (m *Store) Aliases() linkage.AliasRepository { return aliases{m} }
func (m *Store) Documents() linkage.DocumentRepository { return documents{m} }
func (m *Store) Meta() linkage.MetaRepository { return metas{m} }
func (m *Store) Batches() linkage.BatchRepository { return batches{m} }
func (m *Store) ImportLogs() linkage.ImportLogRepository { return importLogs{m} }
func (m *Store) Transactor() linkage.Transactor { return transactor{} }

func (m *Store) DocCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs)
}

func (m *Store) MetaCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.meta)
}

func (m *Store) MetaFor(licenseeID int64) linkage.Meta {
	entries, _ := metas{m}.List(context.Background(), licenseeID, linkage.Source)
	return linkage.ParseMeta(entries)
}

func (m *Store) DocByLicence(licence string) (linkage.Document, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.docByKey[linkage.Source+"|"+licence]
	if !ok {
		return linkage.Document{}, false
	}
	return m.docs[id], true
}

func (m *Store) AliasList() []linkage.ClubAlias {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]linkage.ClubAlias(nil), m.aliases...)
}

func (m *Store) Batch() *linkage.ImportBatch {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.batch == nil {
		return nil
	}
	b := *m.batch
	return &b
}

func (m *Store) Logs() []linkage.ImportLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]linkage.ImportLog(nil), m.logs...)
}

// SnapshotDocs copies every stored document keyed by id.
func (m *Store) SnapshotDocs() map[int64]linkage.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int64]linkage.Document, len(m.docs))
	for k, v := range m.docs {
		out[k] = v
	}
	return out
}

// SnapshotMeta copies every stored meta entry keyed by row id.
func (m *Store) SnapshotMeta() map[int64]linkage.MetaEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int64]linkage.MetaEntry, len(m.meta))
	for _, v := range m.meta {
		out[v.ID] = v
	}
	return out
}

type clubs struct{ m *Store }

func (r clubs) List(ctx context.Context) ([]linkage.Club, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := make([]linkage.Club, 0, len(r.m.clubs))
	for _, c := range r.m.clubs {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out, nil
}

func (r clubs) GetByID(ctx context.Context, id int64) (linkage.Club, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c, ok := r.m.clubs[id]
	if !ok {
		return linkage.Club{}, linkage.ErrNotFound
	}
	return c, nil
}

type licensees struct{ m *Store }

func (r licensees) ListByClubAndBirthdate(ctx context.Context, clubID int64, birthdate time.Time) ([]linkage.Licensee, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.failLicensee != nil {
		return nil, r.m.failLicensee
	}
	var out []linkage.Licensee
	for _, l := range r.m.licensees {
		if l.ClubID() == clubID && l.Birthdate().Equal(birthdate) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r licensees) GetByID(ctx context.Context, id int64) (linkage.Licensee, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, l := range r.m.licensees {
		if l.ID() == id {
			return l, nil
		}
	}
	return linkage.Licensee{}, linkage.ErrNotFound
}

type aliases struct{ m *Store }

func (r aliases) List(ctx context.Context) ([]linkage.ClubAlias, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return append([]linkage.ClubAlias(nil), r.m.aliases...), nil
}

func (r aliases) Insert(ctx context.Context, a linkage.ClubAlias) (linkage.ClubAlias, bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, existing := range r.m.aliases {
		if existing.AliasNormalized == a.AliasNormalized {
			return existing, false, nil
		}
	}
	a.ID = int64(len(r.m.aliases) + 1)
	a.CreatedAt = r.m.Now()
	r.m.aliases = append(r.m.aliases, a)
	return a, true, nil
}

type documents struct{ m *Store }

// Upsert leaves UpdatedAt alone when nothing but bookkeeping differs.
func (r documents) Upsert(ctx context.Context, doc linkage.Document) (linkage.UpsertResult, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.failUpsert[doc.SourceLicenceNumber] {
		return linkage.UpsertResult{}, ErrInjected
	}
	key := doc.Source + "|" + doc.SourceLicenceNumber
	if id, ok := r.m.docByKey[key]; ok {
		stored := r.m.docs[id]
		candidate := doc
		candidate.ID, candidate.AttachmentID = stored.ID, stored.AttachmentID
		candidate.ImportedAt, candidate.UpdatedAt = stored.ImportedAt, stored.UpdatedAt
		if !reflect.DeepEqual(candidate, stored) {
			candidate.UpdatedAt = r.m.Now()
			r.m.docs[id] = candidate
		}
		return linkage.UpsertResult{ID: id}, nil
	}
	r.m.nextDocID++
	doc.ID = r.m.nextDocID
	doc.ImportedAt = r.m.Now()
	doc.UpdatedAt = doc.ImportedAt
	r.m.docs[doc.ID] = doc
	r.m.docByKey[key] = doc.ID
	return linkage.UpsertResult{ID: doc.ID, Inserted: true}, nil
}

func (r documents) GetByID(ctx context.Context, id int64) (linkage.Document, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	d, ok := r.m.docs[id]
	if !ok {
		return linkage.Document{}, linkage.ErrNotFound
	}
	return d, nil
}

func (r documents) UpdateLicensee(ctx context.Context, id, licenseeID int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	d, ok := r.m.docs[id]
	if !ok {
		return linkage.ErrNotFound
	}
	d.LicenseeID = licenseeID
	d.UpdatedAt = r.m.Now()
	r.m.docs[id] = d
	return nil
}

func (r documents) Delete(ctx context.Context, id int64) error {
	n, err := r.DeleteByIDs(ctx, []int64{id})
	if err == nil && n == 0 {
		return linkage.ErrNotFound
	}
	return err
}

func (r documents) DeleteByIDs(ctx context.Context, ids []int64) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for _, id := range ids {
		d, ok := r.m.docs[id]
		if !ok {
			continue
		}
		delete(r.m.docs, id)
		delete(r.m.docByKey, d.Source+"|"+d.SourceLicenceNumber)
		n++
	}
	return n, nil
}

func (r documents) CountByLicensee(ctx context.Context, licenseeID int64, source string) (int, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	n := 0
	for _, d := range r.m.docs {
		if d.LicenseeID == licenseeID && d.Source == source {
			n++
		}
	}
	return n, nil
}

type metas struct{ m *Store }

func (r metas) List(ctx context.Context, licenseeID int64, source string) ([]linkage.MetaEntry, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []linkage.MetaEntry
	for k, e := range r.m.meta {
		if k.licenseeID == licenseeID && k.source == source {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r metas) Put(ctx context.Context, licenseeID int64, source, key, value string) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	k := metaKey{licenseeID: licenseeID, source: source, key: key}
	if e, ok := r.m.meta[k]; ok {
		e.Value = value
		r.m.meta[k] = e
		return e.ID, nil
	}
	r.m.nextMetaID++
	r.m.meta[k] = linkage.MetaEntry{ID: r.m.nextMetaID, LicenseeID: licenseeID, Source: source, Key: key, Value: value}
	return r.m.nextMetaID, nil
}

func (r metas) DeleteByIDs(ctx context.Context, ids []int64) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	want := map[int64]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var n int64
	for k, e := range r.m.meta {
		if want[e.ID] {
			delete(r.m.meta, k)
			n++
		}
	}
	return n, nil
}

func (r metas) DeleteForLicensee(ctx context.Context, licenseeID int64, source string) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for k := range r.m.meta {
		if k.licenseeID == licenseeID && k.source == source {
			delete(r.m.meta, k)
			n++
		}
	}
	return n, nil
}

type batches struct{ m *Store }

func (r batches) Save(ctx context.Context, b linkage.ImportBatch) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.batch = &b
	return nil
}

func (r batches) Load(ctx context.Context) (linkage.ImportBatch, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.batch == nil {
		return linkage.ImportBatch{}, linkage.ErrNotFound
	}
	return *r.m.batch, nil
}

func (r batches) Clear(ctx context.Context) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.batch = nil
	return nil
}

type importLogs struct{ m *Store }

func (r importLogs) Insert(ctx context.Context, l linkage.ImportLog) (linkage.ImportLog, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	l.ID = int64(len(r.m.logs) + 1)
	r.m.logs = append(r.m.logs, l)
	return l, nil
}

func (r importLogs) ListRecent(ctx context.Context, limit int) ([]linkage.ImportLog, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := make([]linkage.ImportLog, 0, limit)
	for i := len(r.m.logs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.m.logs[i])
	}
	return out, nil
}

type transactor struct{}

func (transactor) InTx(ctx context.Context, fn func(context.Context) error) error { return fn(ctx) }
