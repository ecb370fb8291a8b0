package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/iota-uz/asptt-sync/modules/asptt/domain/linkage"
	"github.com/iota-uz/asptt-sync/modules/asptt/domain/normalize"
	"github.com/iota-uz/asptt-sync/modules/asptt/domain/reconcile"
	"github.com/iota-uz/asptt-sync/modules/asptt/domain/row"
)

// Match is the Person Matcher outcome within one club.
type Match struct {
	LicenseeID int64
	Resolution reconcile.PersonResolution
	Score      int
	Candidates []int64
}

func (m Match) Found() bool { return m.LicenseeID != 0 }

type matchKey struct {
	clubID    int64
	birthdate string
}

// PersonMatcher caches licensees per (club, birthdate) for the lifetime of one run.
type PersonMatcher struct {
	licensees linkage.LicenseeRepository
	cache     map[matchKey][]linkage.Licensee
}

func NewPersonMatcher(licensees linkage.LicenseeRepository) *PersonMatcher {
	return &PersonMatcher{licensees: licensees, cache: map[matchKey][]linkage.Licensee{}}
}

// Match filters by birthdate, then exact normalized names, then breaks a tie
// on sex. sex is the raw cell text; an empty cell never breaks a tie.
func (m *PersonMatcher) Match(ctx context.Context, clubID int64, last, first string, birthdate time.Time, sex string) (Match, error) {
	pool, err := m.candidates(ctx, clubID, birthdate)
	if err != nil {
		return Match{}, err
	}
	last, first = normalize.Name(last), normalize.Name(first)

	var same []linkage.Licensee
	for _, l := range pool {
		if normalize.Name(l.LastName()) == last && normalize.Name(l.FirstName()) == first {
			same = append(same, l)
		}
	}
	sort.Slice(same, func(i, j int) bool { return same[i].ID() < same[j].ID() })

	switch len(same) {
	case 0:
		return Match{Resolution: reconcile.PersonNone, Score: reconcile.ScoreLicenceNotFound}, nil
	case 1:
		return Match{LicenseeID: same[0].ID(), Resolution: reconcile.PersonExact, Score: reconcile.ScoreExact}, nil
	}

	ids := make([]int64, len(same))
	for i, l := range same {
		ids[i] = l.ID()
	}
	if sex = strings.TrimSpace(sex); sex != "" {
		var survivors []linkage.Licensee
		for _, l := range same {
			if sameSex(l.Sex(), sex) {
				survivors = append(survivors, l)
			}
		}
		if len(survivors) == 1 {
			return Match{LicenseeID: survivors[0].ID(), Resolution: reconcile.PersonFuzzy, Score: reconcile.ScoreTieBroken, Candidates: ids}, nil
		}
	}
	return Match{Resolution: reconcile.PersonNone, Score: reconcile.ScoreAmbiguous, Candidates: ids}, nil
}

// sameSex compares both sides through row.ParseSex, so "Homme" equals "M".
// Values it does not recognize fall back to case-insensitive equality.
func sameSex(stored, cell string) bool {
	a, b := row.ParseSex(stored), row.ParseSex(cell)
	if a.Known() && b.Known() {
		return a == b
	}
	return strings.EqualFold(strings.TrimSpace(stored), strings.TrimSpace(cell))
}

// Pick resolves an ambiguous match with an operator-supplied licensee id.
func (m Match) Pick(hint int64) (Match, bool) {
	if hint == 0 {
		return m, false
	}
	if m.LicenseeID == hint {
		return m, true
	}
	for _, id := range m.Candidates {
		if id == hint {
			return Match{LicenseeID: id, Resolution: reconcile.PersonManual, Score: reconcile.ScoreManual, Candidates: m.Candidates}, true
		}
	}
	return m, false
}

func (m *PersonMatcher) candidates(ctx context.Context, clubID int64, birthdate time.Time) ([]linkage.Licensee, error) {
	key := matchKey{clubID: clubID, birthdate: birthdate.Format("2006-01-02")}
	if cached, ok := m.cache[key]; ok {
		return cached, nil
	}
	list, err := m.licensees.ListByClubAndBirthdate(ctx, clubID, birthdate)
	if err != nil {
		return nil, err
	}
	m.cache[key] = list
	return list, nil
}
