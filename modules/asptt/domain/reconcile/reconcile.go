// Package reconcile holds the vocabulary shared by preview and commit.
package reconcile

import "github.com/iota-uz/asptt-sync/modules/asptt/domain/row"

type Status string

const (
	StatusLinked          Status = "linked"
	StatusClubNotFound    Status = "club_not_found"
	StatusNeedsReview     Status = "needs_review"
	StatusLicenceNotFound Status = "licence_not_found"
	StatusInvalidNumber   Status = "invalid_asptt_number"
	StatusInvalidSeason   Status = "invalid_season"
	StatusInvalidBirth    Status = "invalid_birthdate"
)

var Statuses = []Status{
	StatusLinked,
	StatusClubNotFound,
	StatusNeedsReview,
	StatusLicenceNotFound,
	StatusInvalidNumber,
	StatusInvalidSeason,
	StatusInvalidBirth,
}

func (s Status) IsError() bool { return s != StatusLinked }

type ClubResolution string

const (
	ClubExact  ClubResolution = "exact"
	ClubAlias  ClubResolution = "alias"
	ClubManual ClubResolution = "manual"
	ClubNone   ClubResolution = "none"
)

type PersonResolution string

const (
	PersonExact  PersonResolution = "exact"
	PersonFuzzy  PersonResolution = "fuzzy"
	PersonManual PersonResolution = "manual"
	PersonNone   PersonResolution = "none"
)

type LinkMode string

const (
	LinkAuto   LinkMode = "auto"
	LinkManual LinkMode = "manual"
	LinkNone   LinkMode = "none"
)

// Confidence bands. Ordering is the contract: auto-approval compares against it.
const (
	ScoreExact           = 100
	ScoreManual          = 100
	ScoreTieBroken       = 80
	ScoreAmbiguous       = 40
	ScoreLicenceNotFound = 10
	ScoreNone            = 0
)

// RowResult is the outcome of one row through validation, club and person resolution.
type RowResult struct {
	Line             int              `json:"line"`
	Status           Status           `json:"status"`
	Detail           string           `json:"detail,omitempty"`
	LicenceNumber    string           `json:"licence_number,omitempty"`
	SeasonEndYear    int              `json:"season_end_year,omitempty"`
	Birthdate        string           `json:"birthdate,omitempty"`
	ClubID           int64            `json:"club_id"`
	LicenseeID       int64            `json:"licensee_id,omitempty"`
	ConfidenceScore  int              `json:"confidence_score"`
	LinkMode         LinkMode         `json:"link_mode"`
	ClubResolution   ClubResolution   `json:"club_resolution"`
	PersonResolution PersonResolution `json:"person_resolution"`
	// Candidates are the licensees of the club an operator chooses among
	// when the row needs review.
	Candidates []int64 `json:"club_suggestions,omitempty"`

	Row row.Row `json:"-"`
}

func (r RowResult) Linked() bool { return r.Status == StatusLinked && r.LicenseeID != 0 }

// Counters aggregate a set of row results.
type Counters struct {
	Total          int            `json:"total"`
	ClubsLinked    int            `json:"clubs_linked"`
	LicencesLinked int            `json:"licences_linked"`
	ByStatus       map[Status]int `json:"by_status"`
}

func NewCounters() Counters {
	by := make(map[Status]int, len(Statuses))
	for _, s := range Statuses {
		by[s] = 0
	}
	return Counters{ByStatus: by}
}

func (c *Counters) Add(r RowResult) {
	c.Total++
	if r.ClubID != 0 {
		c.ClubsLinked++
	}
	if r.Linked() {
		c.LicencesLinked++
	}
	c.ByStatus[r.Status]++
}

func (c Counters) Errors() int { return c.Total - c.LicencesLinked }

// LinkRatio is licences_linked / total * 100, rounded half up.
func (c Counters) LinkRatio() int {
	if c.Total == 0 {
		return 0
	}
	return (c.LicencesLinked*200 + c.Total) / (c.Total * 2)
}
