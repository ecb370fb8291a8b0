package services

import (
	"context"
	"sort"

	"github.com/iota-uz/asptt-sync/modules/asptt/domain/linkage"
	"github.com/iota-uz/asptt-sync/modules/asptt/domain/normalize"
	"github.com/iota-uz/asptt-sync/modules/asptt/domain/reconcile"
)

// ClubResolver is a snapshot of clubs and aliases taken once per run, so the
// outcome of a row never depends on rows before it.
type ClubResolver struct {
	byName  map[string]int64
	byAlias map[string]int64
	known   map[int64]struct{}
}

func NewClubResolver(clubs []linkage.Club, aliases []linkage.ClubAlias) *ClubResolver {
	sorted := append([]linkage.Club(nil), clubs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID() < sorted[j].ID() })

	r := &ClubResolver{
		byName:  make(map[string]int64, len(sorted)),
		byAlias: make(map[string]int64, len(aliases)),
		known:   make(map[int64]struct{}, len(sorted)),
	}
	for _, c := range sorted {
		r.known[c.ID()] = struct{}{}
		n := c.NormalizedName()
		if n == "" {
			continue
		}
		// lowest id wins on homonyms
		if _, taken := r.byName[n]; !taken {
			r.byName[n] = c.ID()
		}
	}
	for _, a := range aliases {
		if _, taken := r.byAlias[a.AliasNormalized]; !taken {
			r.byAlias[a.AliasNormalized] = a.ClubID
		}
	}
	return r
}

func LoadClubResolver(ctx context.Context, clubs linkage.ClubRepository, aliases linkage.AliasRepository) (*ClubResolver, error) {
	cs, err := clubs.List(ctx)
	if err != nil {
		return nil, err
	}
	as, err := aliases.List(ctx)
	if err != nil {
		return nil, err
	}
	return NewClubResolver(cs, as), nil
}

// Resolve applies, in order: pinned club, forced club, exact name, alias.
func (r *ClubResolver) Resolve(hint string, p reconcile.Params) (int64, reconcile.ClubResolution) {
	if p.PinnedApply && p.PinnedClubID > 0 {
		return p.PinnedClubID, reconcile.ClubManual
	}
	if p.ForceClubID > 0 {
		return p.ForceClubID, reconcile.ClubManual
	}
	n := normalize.Name(hint)
	if n == "" {
		return 0, reconcile.ClubNone
	}
	if id, ok := r.byName[n]; ok {
		return id, reconcile.ClubExact
	}
	if id, ok := r.byAlias[n]; ok {
		return id, reconcile.ClubAlias
	}
	return 0, reconcile.ClubNone
}

func (r *ClubResolver) Known(id int64) bool {
	_, ok := r.known[id]
	return ok
}

// Learn makes an alias visible to later resolutions built from this snapshot.
func (r *ClubResolver) Learn(a linkage.ClubAlias) {
	if _, taken := r.byAlias[a.AliasNormalized]; !taken {
		r.byAlias[a.AliasNormalized] = a.ClubID
	}
}
