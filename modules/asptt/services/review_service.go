package services

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/asptt-sync/modules/asptt/domain/linkage"
	"github.com/iota-uz/asptt-sync/modules/asptt/domain/reconcile"
	"github.com/iota-uz/asptt-sync/modules/asptt/domain/review"
	"github.com/iota-uz/asptt-sync/pkg/composables"
	"github.com/iota-uz/asptt-sync/pkg/eventbus"
)

// ReviewService applies operator decisions to committed documents. Every
// action is last-writer-wins on the licensee's meta rows.
type ReviewService struct {
	repos     Repositories
	publisher eventbus.EventBus
}

func NewReviewService(repos Repositories, publisher eventbus.EventBus) *ReviewService {
	return &ReviewService{repos: repos, publisher: publisher}
}

type TransitionResult struct {
	DocumentID int64              `json:"document_id"`
	LicenseeID int64              `json:"licensee_id"`
	From       review.Status      `json:"from"`
	To         review.Status      `json:"to"`
	Previous   review.Status      `json:"prev_review_status,omitempty"`
	LinkMode   reconcile.LinkMode `json:"link_mode"`
}

// Transition applies one review action to one document.
func (s *ReviewService) Transition(ctx context.Context, documentID int64, action review.Action) (res TransitionResult, err error) {
	if !action.Valid() {
		return TransitionResult{}, invalidParams("unknown review action %q", action)
	}
	defer func() { recordReviewTransition(string(action), err) }()

	doc, err := s.repos.Documents.GetByID(ctx, documentID)
	if err != nil {
		return TransitionResult{}, mapStorageError(err)
	}
	entries, err := s.repos.Meta.List(ctx, doc.LicenseeID, linkage.Source)
	if err != nil {
		return TransitionResult{}, mapStorageError(err)
	}
	meta := linkage.ParseMeta(entries)
	from := meta.Review.Status()

	next, err := meta.Review.Apply(action)
	if err != nil {
		logWithFields(ctx, logrus.WarnLevel, "asptt.review.transition_failed", logrus.Fields{
			"document_id": documentID,
			"action":      string(action),
			"from":        string(from),
		})
		return TransitionResult{}, mapStorageError(err)
	}
	meta.Review = next
	if action == review.ActionApprove {
		meta.LinkMode = reconcile.LinkManual
	}
	for _, kv := range meta.ReviewValues() {
		if _, err := s.repos.Meta.Put(ctx, doc.LicenseeID, linkage.Source, kv[0], kv[1]); err != nil {
			return TransitionResult{}, mapStorageError(err)
		}
	}

	res = TransitionResult{
		DocumentID: doc.ID,
		LicenseeID: doc.LicenseeID,
		From:       from,
		To:         next.Status(),
		Previous:   next.Previous(),
		LinkMode:   meta.LinkMode,
	}
	s.transitioned(ctx, doc, string(action), from, res.To)
	return res, nil
}

type BulkResult struct {
	Updated int              `json:"updated"`
	Failed  int              `json:"failed"`
	Errors  map[int64]string `json:"errors,omitempty"`
}

// Bulk applies action to each id independently; one failure does not stop
// the rest. Permanent delete is not available in bulk.
func (s *ReviewService) Bulk(ctx context.Context, ids []int64, action review.Action) (BulkResult, error) {
	if !action.Valid() {
		return BulkResult{}, invalidParams("unknown review action %q", action)
	}
	if len(ids) == 0 {
		return BulkResult{}, invalidParams("no document ids given")
	}
	uniq := append([]int64(nil), ids...)
	sort.Slice(uniq, func(i, j int) bool { return uniq[i] < uniq[j] })

	res := BulkResult{Errors: map[int64]string{}}
	var last int64
	for i, id := range uniq {
		if i > 0 && id == last {
			continue
		}
		last = id
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if _, err := s.Transition(ctx, id, action); err != nil {
			res.Failed++
			res.Errors[id] = ErrorCode(err)
			continue
		}
		res.Updated++
	}
	if len(res.Errors) == 0 {
		res.Errors = nil
	}
	logWithFields(ctx, logrus.InfoLevel, "asptt.review.bulk", logrus.Fields{
		"action":   string(action),
		"updated":  res.Updated,
		"failed":   res.Failed,
		"operator": composables.UseOperator(ctx),
	})
	return res, nil
}

type DeleteResult struct {
	DocumentID  int64 `json:"document_id"`
	LicenseeID  int64 `json:"licensee_id"`
	MetaDeleted int64 `json:"meta_deleted"`
}

// Delete removes the document permanently. The licensee's meta goes with it
// once no other document of the source links that licensee.
func (s *ReviewService) Delete(ctx context.Context, documentID int64, confirm bool) (DeleteResult, error) {
	if !confirm {
		return DeleteResult{}, newServiceError(http.StatusPreconditionRequired, CodeConfirmationRequired, "permanent delete requires confirmation", nil)
	}
	doc, err := s.repos.Documents.GetByID(ctx, documentID)
	if err != nil {
		return DeleteResult{}, mapStorageError(err)
	}
	res := DeleteResult{DocumentID: doc.ID, LicenseeID: doc.LicenseeID}
	err = s.repos.Tx.InTx(ctx, func(txCtx context.Context) error {
		if err := s.repos.Documents.Delete(txCtx, doc.ID); err != nil {
			return err
		}
		n, err := s.dropOrphanMeta(txCtx, doc.LicenseeID)
		res.MetaDeleted = n
		return err
	})
	if err != nil {
		return DeleteResult{}, mapStorageError(err)
	}
	logWithFields(ctx, logrus.InfoLevel, "asptt.review.deleted", logrus.Fields{
		"document_id":  doc.ID,
		"licensee_id":  doc.LicenseeID,
		"meta_deleted": res.MetaDeleted,
		"operator":     composables.UseOperator(ctx),
	})
	recordReviewTransition("delete", nil)
	return res, nil
}

type RelinkRequest struct {
	ClubID       int64 `json:"club_id" validate:"required,gt=0"`
	LicenseeHint int64 `json:"licensee_id_hint,omitempty" validate:"gte=0"`
	SaveAlias    bool  `json:"save_alias,omitempty"`
}

type RelinkResult struct {
	DocumentID         int64                      `json:"document_id"`
	LicenseeID         int64                      `json:"licensee_id"`
	PreviousLicenseeID int64                      `json:"previous_licensee_id"`
	ConfidenceScore    int                        `json:"confidence_score"`
	PersonResolution   reconcile.PersonResolution `json:"person_resolution"`
	Alias              *AliasResult               `json:"alias,omitempty"`
}

// SetClub re-runs person matching against clubID using the document's stored
// person attributes. Without a match nothing changes. On success the link
// becomes manual and goes back to pending review.
func (s *ReviewService) SetClub(ctx context.Context, documentID int64, req RelinkRequest) (res RelinkResult, err error) {
	ctx, span := startSpan(ctx, "asptt.relink")
	defer func() { endSpan(span, err) }()
	defer func() { recordReviewTransition("relink", err) }()

	if err := validateParams(req); err != nil {
		return RelinkResult{}, err
	}
	doc, err := s.repos.Documents.GetByID(ctx, documentID)
	if err != nil {
		return RelinkResult{}, mapStorageError(err)
	}
	if _, err := s.repos.Clubs.GetByID(ctx, req.ClubID); err != nil {
		return RelinkResult{}, mapStorageError(err)
	}
	if doc.Birthdate == nil {
		return RelinkResult{}, s.noMatch(ctx, doc, req.ClubID, "document has no birthdate")
	}

	m, err := NewPersonMatcher(s.repos.Licensees).Match(ctx, req.ClubID, doc.LastName, doc.FirstName, *doc.Birthdate, doc.Sex)
	if err != nil {
		return RelinkResult{}, mapStorageError(err)
	}
	if picked, ok := m.Pick(req.LicenseeHint); ok {
		m = picked
	}
	if !m.Found() {
		return RelinkResult{}, s.noMatch(ctx, doc, req.ClubID, fmt.Sprintf("%d candidates", len(m.Candidates)))
	}

	oldLicensee := doc.LicenseeID
	meta := linkage.Meta{
		Confidence:       m.Score,
		LinkMode:         reconcile.LinkManual,
		Review:           review.Pending(),
		ClubResolution:   reconcile.ClubManual,
		PersonResolution: m.Resolution,
	}
	err = s.repos.Tx.InTx(ctx, func(txCtx context.Context) error {
		if err := s.repos.Documents.UpdateLicensee(txCtx, doc.ID, m.LicenseeID); err != nil {
			return err
		}
		for _, kv := range meta.Values() {
			if _, err := s.repos.Meta.Put(txCtx, m.LicenseeID, linkage.Source, kv[0], kv[1]); err != nil {
				return err
			}
		}
		if oldLicensee != m.LicenseeID {
			_, err := s.dropOrphanMeta(txCtx, oldLicensee)
			return err
		}
		return nil
	})
	if err != nil {
		return RelinkResult{}, mapStorageError(err)
	}

	res = RelinkResult{
		DocumentID:         doc.ID,
		LicenseeID:         m.LicenseeID,
		PreviousLicenseeID: oldLicensee,
		ConfidenceScore:    m.Score,
		PersonResolution:   m.Resolution,
	}
	logWithFields(ctx, logrus.InfoLevel, "asptt.review.relinked", logrus.Fields{
		"document_id": doc.ID,
		"club_id":     req.ClubID,
		"licensee_id": m.LicenseeID,
		"previous":    oldLicensee,
		"resolution":  string(m.Resolution),
		"operator":    composables.UseOperator(ctx),
	})
	doc.LicenseeID = m.LicenseeID
	s.transitioned(ctx, doc, "relink", "", review.StatusPending)

	if req.SaveAlias {
		w := aliasWriter{clubs: s.repos.Clubs, aliases: s.repos.Aliases, publisher: s.publisher}
		alias, err := w.save(ctx, req.ClubID, doc.ClubNote, "relink")
		if err != nil {
			// the relink itself is committed
			logWithFields(ctx, logrus.WarnLevel, "asptt.alias.save_failed", logrus.Fields{"club_id": req.ClubID, "alias": doc.ClubNote, "error": err.Error()})
		} else {
			res.Alias = &alias
		}
	}
	return res, nil
}

func (s *ReviewService) noMatch(ctx context.Context, doc linkage.Document, clubID int64, detail string) error {
	logWithFields(ctx, logrus.WarnLevel, "asptt.review.relink_no_match", logrus.Fields{
		"document_id": doc.ID,
		"club_id":     clubID,
		"detail":      detail,
	})
	return newServiceError(http.StatusUnprocessableEntity, CodeRelinkNoMatch, "no licensee matches in the chosen club: "+detail, nil)
}

func (s *ReviewService) dropOrphanMeta(ctx context.Context, licenseeID int64) (int64, error) {
	n, err := s.repos.Documents.CountByLicensee(ctx, licenseeID, linkage.Source)
	if err != nil || n > 0 {
		return 0, err
	}
	return s.repos.Meta.DeleteForLicensee(ctx, licenseeID, linkage.Source)
}

func (s *ReviewService) transitioned(ctx context.Context, doc linkage.Document, action string, from, to review.Status) {
	operator := composables.UseOperator(ctx)
	logWithFields(ctx, logrus.InfoLevel, "asptt.review.transition", logrus.Fields{
		"document_id": doc.ID,
		"licensee_id": doc.LicenseeID,
		"action":      action,
		"from":        string(from),
		"to":          string(to),
		"operator":    operator,
	})
	if s.publisher != nil {
		s.publisher.Publish(&ReviewTransitioned{
			DocumentID: doc.ID,
			LicenseeID: doc.LicenseeID,
			Action:     action,
			From:       from,
			To:         to,
			Operator:   operator,
		})
	}
}
