package linkage

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iota-uz/asptt-sync/modules/asptt/domain/reconcile"
	"github.com/iota-uz/asptt-sync/modules/asptt/domain/review"
)

func TestParseMeta_Defaults(t *testing.T) {
	m := ParseMeta(nil)
	require.Equal(t, 0, m.Confidence)
	require.Equal(t, reconcile.LinkNone, m.LinkMode)
	require.Equal(t, review.Pending(), m.Review)
	require.Equal(t, reconcile.ClubNone, m.ClubResolution)
	require.Equal(t, reconcile.PersonNone, m.PersonResolution)
}

func TestMeta_ValuesRoundTrip(t *testing.T) {
	m := Meta{
		Confidence:       80,
		LinkMode:         reconcile.LinkAuto,
		Review:           review.Trashed(review.Approved()),
		ClubResolution:   reconcile.ClubAlias,
		PersonResolution: reconcile.PersonFuzzy,
	}
	var entries []MetaEntry
	for _, kv := range m.Values() {
		entries = append(entries, MetaEntry{Key: kv[0], Value: kv[1]})
	}
	require.Equal(t, m, ParseMeta(entries))
}

func TestParseMeta_OutOfRangeScore(t *testing.T) {
	m := ParseMeta([]MetaEntry{{Key: MetaConfidenceScore, Value: "250"}})
	require.Equal(t, 0, m.Confidence)
}

func TestNewClubAlias(t *testing.T) {
	a, ok := NewClubAlias(7, "  asville x ")
	require.True(t, ok)
	require.Equal(t, "ASVILLE X", a.AliasNormalized)
	require.Equal(t, "asville x", a.AliasText)

	_, ok = NewClubAlias(7, " -- ")
	require.False(t, ok)
	_, ok = NewClubAlias(0, "AS VILLE")
	require.False(t, ok)
}

func TestImportBatch_Track(t *testing.T) {
	var b ImportBatch
	require.True(t, b.Empty())
	b.TrackDocument(3)
	b.TrackDocument(3)
	b.TrackMeta(9)
	require.Equal(t, []int64{3}, b.DocumentIDs)
	require.Equal(t, []int64{9}, b.MetaIDs)
}
