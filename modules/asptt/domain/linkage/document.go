package linkage

import (
	"strconv"
	"time"

	"github.com/iota-uz/asptt-sync/modules/asptt/domain/reconcile"
	"github.com/iota-uz/asptt-sync/modules/asptt/domain/review"
)

// Document joins one external licence number to one licensee.
type Document struct {
	ID                  int64      `json:"id"`
	LicenseeID          int64      `json:"licensee_id"`
	Source              string     `json:"source"`
	SourceLicenceNumber string     `json:"source_licence_number"`
	AttachmentID        *int64     `json:"attachment_id,omitempty"`
	ClubNote            string     `json:"club_note"`
	SourceCreatedAt     *time.Time `json:"source_created_at,omitempty"`
	SeasonEndYear       int        `json:"season_end_year"`

	// Person attributes as read from the row; manual re-link matches on them.
	LastName  string     `json:"last_name"`
	FirstName string     `json:"first_name"`
	Birthdate *time.Time `json:"birthdate,omitempty"`
	Sex       string     `json:"sex"`

	ImportedAt time.Time `json:"imported_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type UpsertResult struct {
	ID       int64
	Inserted bool
}

// Meta keys stored per (licensee, source).
const (
	MetaConfidenceScore  = "confidence_score"
	MetaLinkMode         = "link_mode"
	MetaReviewStatus     = "review_status"
	MetaPrevReviewStatus = "prev_review_status"
	MetaClubResolution   = "club_resolution"
	MetaPersonResolution = "person_resolution"
)

type MetaEntry struct {
	ID         int64
	LicenseeID int64
	Source     string
	Key        string
	Value      string
}

// Meta is the typed view over one licensee's meta entries.
type Meta struct {
	Confidence       int
	LinkMode         reconcile.LinkMode
	Review           review.State
	ClubResolution   reconcile.ClubResolution
	PersonResolution reconcile.PersonResolution
}

// ParseMeta reads stored entries; absent keys take their zero meaning.
func ParseMeta(entries []MetaEntry) Meta {
	values := make(map[string]string, len(entries))
	for _, e := range entries {
		values[e.Key] = e.Value
	}
	score, err := strconv.Atoi(values[MetaConfidenceScore])
	if err != nil || score < 0 || score > 100 {
		score = 0
	}
	lm := reconcile.LinkMode(values[MetaLinkMode])
	if lm == "" {
		lm = reconcile.LinkNone
	}
	cr := reconcile.ClubResolution(values[MetaClubResolution])
	if cr == "" {
		cr = reconcile.ClubNone
	}
	pr := reconcile.PersonResolution(values[MetaPersonResolution])
	if pr == "" {
		pr = reconcile.PersonNone
	}
	return Meta{
		Confidence:       score,
		LinkMode:         lm,
		Review:           review.Parse(values[MetaReviewStatus], values[MetaPrevReviewStatus]),
		ClubResolution:   cr,
		PersonResolution: pr,
	}
}

// Values flattens Meta into key/value pairs in a stable order. The restore
// point is written as "" when the state is not trashed.
func (m Meta) Values() [][2]string {
	return [][2]string{
		{MetaConfidenceScore, strconv.Itoa(m.Confidence)},
		{MetaLinkMode, string(m.LinkMode)},
		{MetaReviewStatus, string(m.Review.Status())},
		{MetaPrevReviewStatus, string(m.Review.Previous())},
		{MetaClubResolution, string(m.ClubResolution)},
		{MetaPersonResolution, string(m.PersonResolution)},
	}
}

// ReviewValues is the subset touched by a review transition.
func (m Meta) ReviewValues() [][2]string {
	return [][2]string{
		{MetaLinkMode, string(m.LinkMode)},
		{MetaReviewStatus, string(m.Review.Status())},
		{MetaPrevReviewStatus, string(m.Review.Previous())},
	}
}
