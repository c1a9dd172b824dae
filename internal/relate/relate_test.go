package relate

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"blogpipe/internal/domain/config"
	"blogpipe/internal/domain/content"
	"blogpipe/internal/store"
)

var day0 = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func mk(id string, daysFromDay0 int, tags ...string) content.Document {
	return content.Document{
		ID:   id,
		Meta: content.Metadata{Title: id, Date: day0.AddDate(0, 0, daysFromDay0), Tags: tags},
	}
}

func ids(scored []content.Scored) []string {
	out := make([]string, 0, len(scored))
	for _, s := range scored {
		out = append(out, s.Doc.ID)
	}
	return out
}

func TestRank_TagsOutweighProximity(t *testing.T) {
	snap := store.NewSnapshot([]content.Document{
		mk("src", 0, "go", "web"),
		mk("shares-two", 1, "go", "web"),
		mk("same-day", 0),
	}, nil)

	got := New(snap, DefaultWeights()).Rank("src", 2)

	require.Equal(t, []string{"shares-two", "same-day"}, ids(got))
	require.Greater(t, got[0].Score, got[1].Score)
}

func TestRank_LengthIsMinOfKAndOthers(t *testing.T) {
	snap := store.NewSnapshot([]content.Document{mk("post-1", 0), mk("post-2", 3)}, nil)
	r := New(snap, DefaultWeights())

	got := r.Rank("post-1", 3)
	require.Equal(t, []string{"post-2"}, ids(got))

	require.Empty(t, r.Rank("post-1", 0))
	require.Empty(t, r.Rank("post-1", -1))
	require.Empty(t, r.Rank("unknown", 3))
}

func TestRank_PadsWithZeroScores(t *testing.T) {
	undated := content.Document{ID: "undated", Meta: content.Metadata{Title: "u"}}
	snap := store.NewSnapshot([]content.Document{
		{ID: "src", Meta: content.Metadata{Tags: []string{"go"}}},
		undated,
		{ID: "also-undated", Meta: content.Metadata{}},
		{ID: "tagged", Meta: content.Metadata{Tags: []string{"go"}}},
	}, nil)

	got := New(snap, DefaultWeights()).Rank("src", 3)

	require.Equal(t, []string{"tagged", "also-undated", "undated"}, ids(got))
	require.Zero(t, got[1].Score)
	require.Zero(t, got[2].Score)
}

func TestRank_TieBreak(t *testing.T) {
	// no tags, no source date: every score is 0
	snap := store.NewSnapshot([]content.Document{
		{ID: "src"},
		mk("b-old", -10),
		mk("a-new", 5),
		mk("c-new", 5),
	}, nil)

	got := New(snap, DefaultWeights()).Rank("src", 10)
	require.Equal(t, []string{"a-new", "c-new", "b-old"}, ids(got))
}

func TestRank_Properties(t *testing.T) {
	var docs []content.Document
	tags := []string{"go", "rust", "web", "db"}
	for i := 0; i < 12; i++ {
		docs = append(docs, mk(fmt.Sprintf("p%02d", i), i*3%7, tags[i%4], tags[(i+1)%4]))
	}
	snap := store.NewSnapshot(docs, nil)
	r := New(snap, DefaultWeights())

	for _, d := range docs {
		for k := 0; k <= 14; k++ {
			got := r.Rank(d.ID, k)
			require.Len(t, got, min(k, len(docs)-1))
			for _, s := range got {
				require.NotEqual(t, d.ID, s.Doc.ID)
			}
			require.Equal(t, got, r.Rank(d.ID, k), "deterministic")
		}
	}
}

func TestScore_ProximityDecays(t *testing.T) {
	r := New(nil, DefaultWeights())
	src := content.Metadata{Date: day0}

	same := r.Score(src, content.Metadata{Date: day0})
	near := r.Score(src, content.Metadata{Date: day0.AddDate(0, 0, 1)})
	far := r.Score(src, content.Metadata{Date: day0.AddDate(1, 0, 0)})
	before := r.Score(src, content.Metadata{Date: day0.AddDate(0, 0, -1)})

	require.InDelta(t, 0.5, same, 1e-9)
	require.Greater(t, same, near)
	require.Greater(t, near, far)
	require.InDelta(t, near, before, 1e-9)
	require.Zero(t, r.Score(src, content.Metadata{}))
}

func TestWeights_Validate(t *testing.T) {
	require.NoError(t, DefaultWeights().Validate())
	require.Equal(t, DefaultWeights(), WeightsFrom(config.Default().Relate))
	require.Error(t, Weights{Tag: 1, Proximity: 1, ProximityScale: time.Hour}.Validate())
	require.Error(t, Weights{Tag: 1, Proximity: -1, ProximityScale: time.Hour}.Validate())
	require.Error(t, Weights{Tag: 2, Proximity: 1}.Validate())
}
