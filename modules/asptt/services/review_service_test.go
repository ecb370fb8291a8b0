package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/asptt-sync/modules/asptt/domain/linkage"
	"github.com/iota-uz/asptt-sync/modules/asptt/domain/reconcile"
	"github.com/iota-uz/asptt-sync/modules/asptt/domain/review"
)

// committed commits mixedFile as pending and returns the document of JEAN MARTIN.
func committed(t *testing.T) (*fixture, linkage.Document) {
	t.Helper()
	f := newFixture(t)
	f.settings.AutoApproveThreshold = 100
	handle, params := f.stage(t, mixedFile)
	f.commit(t, handle, params)
	doc, ok := f.store.DocByLicence("A1001")
	require.True(t, ok)
	return f, doc
}

func TestTransition_ApproveForcesManualLink(t *testing.T) {
	f, doc := committed(t)
	require.Equal(t, reconcile.LinkAuto, f.store.MetaFor(101).LinkMode)

	res, err := f.reviews.Transition(f.ctx, doc.ID, review.ActionApprove)
	require.NoError(t, err)
	assert.Equal(t, review.StatusPending, res.From)
	assert.Equal(t, review.StatusApproved, res.To)

	meta := f.store.MetaFor(101)
	assert.Equal(t, review.StatusApproved, meta.Review.Status())
	assert.Equal(t, reconcile.LinkManual, meta.LinkMode)
	assert.Equal(t, 100, meta.Confidence, "review leaves scores alone")
}

func TestTransition_TrashRestoreRoundTrip(t *testing.T) {
	for _, start := range []review.Action{"", review.ActionApprove, review.ActionReject} {
		t.Run(string(start), func(t *testing.T) {
			f, doc := committed(t)
			if start != "" {
				_, err := f.reviews.Transition(f.ctx, doc.ID, start)
				require.NoError(t, err)
			}
			before := f.store.MetaFor(101).Review.Status()

			res, err := f.reviews.Transition(f.ctx, doc.ID, review.ActionTrash)
			require.NoError(t, err)
			assert.Equal(t, review.StatusTrash, res.To)
			assert.Equal(t, before, res.Previous)
			_, ok := f.store.DocByLicence("A1001")
			require.True(t, ok, "trash is a soft delete")

			res, err = f.reviews.Transition(f.ctx, doc.ID, review.ActionRestore)
			require.NoError(t, err)
			assert.Equal(t, before, res.To)
			assert.Equal(t, before, f.store.MetaFor(101).Review.Status())
		})
	}
}

func TestTransition_RejectsInvalidMoves(t *testing.T) {
	f, doc := committed(t)

	_, err := f.reviews.Transition(f.ctx, doc.ID, review.ActionRestore)
	requireCode(t, err, CodeInvalidTransition)

	_, err = f.reviews.Transition(f.ctx, doc.ID, review.ActionApprove)
	require.NoError(t, err)
	_, err = f.reviews.Transition(f.ctx, doc.ID, review.ActionApprove)
	require.NoError(t, err, "same-state approve is idempotent")
	_, err = f.reviews.Transition(f.ctx, doc.ID, review.ActionReject)
	requireCode(t, err, CodeInvalidTransition)

	_, err = f.reviews.Transition(f.ctx, doc.ID, review.Action("publish"))
	requireCode(t, err, CodeInvalidParams)
	_, err = f.reviews.Transition(f.ctx, 9999, review.ActionApprove)
	requireCode(t, err, CodeNotFound)
	assert.True(t, f.hasLog("asptt.review.transition_failed"))
}

func TestTransition_RestoreDefaultsToPending(t *testing.T) {
	f, doc := committed(t)
	ctx := f.ctx
	_, err := f.store.repos().Meta.Put(ctx, 101, linkage.Source, linkage.MetaReviewStatus, "trash")
	require.NoError(t, err)
	_, err = f.store.repos().Meta.Put(ctx, 101, linkage.Source, linkage.MetaPrevReviewStatus, "bogus")
	require.NoError(t, err)

	res, err := f.reviews.Transition(ctx, doc.ID, review.ActionRestore)
	require.NoError(t, err)
	assert.Equal(t, review.StatusPending, res.To)
}

func TestBulk_ReportsPerID(t *testing.T) {
	f, doc := committed(t)
	other, _ := f.store.DocByLicence("A1003")

	res, err := f.reviews.Bulk(f.ctx, []int64{doc.ID, other.ID, doc.ID, 9999}, review.ActionApprove)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Updated)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, map[int64]string{9999: CodeNotFound}, res.Errors)

	_, err = f.reviews.Bulk(f.ctx, nil, review.ActionApprove)
	requireCode(t, err, CodeInvalidParams)
}

func TestDelete_RequiresConfirmation(t *testing.T) {
	f, doc := committed(t)

	_, err := f.reviews.Delete(f.ctx, doc.ID, false)
	requireCode(t, err, CodeConfirmationRequired)
	require.Equal(t, 3, f.store.DocCount())

	res, err := f.reviews.Delete(f.ctx, doc.ID, true)
	require.NoError(t, err)
	assert.Equal(t, int64(6), res.MetaDeleted)
	assert.Equal(t, 2, f.store.DocCount())
	assert.Equal(t, 12, f.store.MetaCount())

	_, err = f.reviews.Delete(f.ctx, doc.ID, true)
	requireCode(t, err, CodeNotFound)
}

func TestDelete_KeepsMetaSharedWithAnotherDocument(t *testing.T) {
	f := newFixture(t)
	handle, params := f.stage(t, header+"\nMARTIN;Jean;01/02/2005;A1001;AS VILLE;M\nMARTIN;Jean;01/02/2005;A1009;AS VILLE;M\n")
	f.commit(t, handle, params)
	doc, _ := f.store.DocByLicence("A1001")

	res, err := f.reviews.Delete(f.ctx, doc.ID, true)
	require.NoError(t, err)
	assert.Zero(t, res.MetaDeleted)
	assert.Equal(t, 6, f.store.MetaCount())
}

func TestSetClub_RelinksAndResetsReview(t *testing.T) {
	f, doc := committed(t)
	_, err := f.reviews.Transition(f.ctx, doc.ID, review.ActionApprove)
	require.NoError(t, err)

	res, err := f.reviews.SetClub(f.ctx, doc.ID, RelinkRequest{ClubID: 3, SaveAlias: true})
	require.NoError(t, err)
	assert.Equal(t, int64(102), res.LicenseeID)
	assert.Equal(t, int64(101), res.PreviousLicenseeID)
	assert.Equal(t, reconcile.PersonExact, res.PersonResolution)
	require.NotNil(t, res.Alias)
	assert.True(t, res.Alias.Created)
	assert.Equal(t, int64(3), res.Alias.Alias.ClubID, "club note learned for the chosen club")

	stored, _ := f.store.DocByLicence("A1001")
	assert.Equal(t, int64(102), stored.LicenseeID)

	meta := f.store.MetaFor(102)
	assert.Equal(t, review.StatusPending, meta.Review.Status())
	assert.Equal(t, reconcile.LinkManual, meta.LinkMode)
	assert.Equal(t, reconcile.ClubManual, meta.ClubResolution)
	entries, _ := f.store.repos().Meta.List(f.ctx, 101, linkage.Source)
	assert.Empty(t, entries, "the old licensee is no longer linked")
}

func TestSetClub_NoMatchChangesNothing(t *testing.T) {
	f, doc := committed(t)
	before := f.store.SnapshotMeta()

	_, err := f.reviews.SetClub(f.ctx, doc.ID, RelinkRequest{ClubID: 7})
	requireCode(t, err, CodeRelinkNoMatch)
	stored, _ := f.store.DocByLicence("A1001")
	assert.Equal(t, int64(101), stored.LicenseeID)
	assert.Equal(t, before, f.store.SnapshotMeta())

	_, err = f.reviews.SetClub(f.ctx, doc.ID, RelinkRequest{ClubID: 404})
	requireCode(t, err, CodeNotFound)
	_, err = f.reviews.SetClub(f.ctx, doc.ID, RelinkRequest{})
	requireCode(t, err, CodeInvalidParams)
}

func TestSetClub_HintPicksAmongCandidates(t *testing.T) {
	f := newFixture(t)
	handle, params := f.stage(t, header+"\nDUPONT;Marie;04/03/2006;A1002;Nowhere FC;\n")
	params.ForceClubID = 1
	f.commit(t, handle, params)
	require.Zero(t, f.store.DocCount(), "no Marie Dupont in club 1")

	f.store.AddLicensee(301, 1, "Dupont", "Marie", "2006-03-04", "F")
	f.commit(t, handle, params)
	doc, ok := f.store.DocByLicence("A1002")
	require.True(t, ok)

	_, err := f.reviews.SetClub(f.ctx, doc.ID, RelinkRequest{ClubID: 2})
	requireCode(t, err, CodeRelinkNoMatch)

	res, err := f.reviews.SetClub(f.ctx, doc.ID, RelinkRequest{ClubID: 2, LicenseeHint: 202})
	require.NoError(t, err)
	assert.Equal(t, int64(202), res.LicenseeID)
	assert.Equal(t, reconcile.PersonManual, res.PersonResolution)
	assert.Equal(t, reconcile.ScoreManual, res.ConfidenceScore)
}
