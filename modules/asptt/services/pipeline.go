package services

import (
	"context"
	"fmt"

	"github.com/iota-uz/asptt-sync/modules/asptt/domain/reconcile"
	"github.com/iota-uz/asptt-sync/modules/asptt/domain/row"
)

// pipeline is the resolution shared by preview and commit:
// Row Validator, Club Resolver, Person Matcher.
type pipeline struct {
	clubs    *ClubResolver
	matcher  *PersonMatcher
	params   reconcile.Params
	settings Settings
}

func (p *pipeline) resolve(ctx context.Context, r row.Row) (reconcile.RowResult, error) {
	res := reconcile.RowResult{
		Line:             r.Line,
		Row:              r,
		LinkMode:         reconcile.LinkNone,
		ClubResolution:   reconcile.ClubNone,
		PersonResolution: reconcile.PersonNone,
		ConfidenceScore:  reconcile.ScoreNone,
	}

	v := ValidateRow(r, p.params.SeasonOverride, p.settings.DefaultSeasonEndYear)
	res.SeasonEndYear = v.SeasonEndYear
	res.LicenceNumber = v.LicenceNumber
	if !v.Birthdate.IsZero() {
		res.Birthdate = v.Birthdate.Format("2006-01-02")
	}
	if !v.OK() {
		res.Status = v.Status
		res.Detail = v.Detail
		return res, nil
	}

	clubID, kind := p.clubs.Resolve(r.ClubNote.String(), p.params)
	res.ClubID = clubID
	res.ClubResolution = kind
	if clubID == 0 {
		res.Status = reconcile.StatusClubNotFound
		return res, nil
	}

	m, err := p.matcher.Match(ctx, clubID, r.LastName.String(), r.FirstName.String(), v.Birthdate, r.Sex.String())
	if err != nil {
		return res, fmt.Errorf("match line %d: %w", r.Line, err)
	}
	res.ConfidenceScore = m.Score
	res.PersonResolution = m.Resolution
	res.Candidates = m.Candidates
	switch {
	case m.Found():
		res.Status = reconcile.StatusLinked
		res.LicenseeID = m.LicenseeID
		res.LinkMode = reconcile.LinkAuto
	case len(m.Candidates) > 1:
		res.Status = reconcile.StatusNeedsReview
		res.Detail = fmt.Sprintf("%d candidates", len(m.Candidates))
	default:
		res.Status = reconcile.StatusLicenceNotFound
	}
	return res, nil
}
