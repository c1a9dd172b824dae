package navigate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"blogpipe/internal/domain/content"
	"blogpipe/internal/store"
)

func doc(id string, date time.Time) content.Document {
	return content.Document{ID: id, Meta: content.Metadata{Title: id, Date: date}}
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestOrder_DateThenID(t *testing.T) {
	docs := []content.Document{
		doc("c", day(2)),
		doc("undated", time.Time{}),
		doc("b", day(2)),
		doc("a", day(3)),
		doc("z", day(1)),
	}
	got := Order(docs)

	var ids []string
	for _, d := range got {
		ids = append(ids, d.ID)
	}
	require.Equal(t, []string{"undated", "z", "b", "c", "a"}, ids)
	require.Equal(t, "c", docs[0].ID, "input untouched")
}

func TestNeighbors(t *testing.T) {
	snap := store.NewSnapshot([]content.Document{
		doc("first", day(1)),
		doc("middle", day(2)),
		doc("last", day(3)),
	}, nil)
	n := New(snap)

	nav := n.Neighbors("middle")
	require.Equal(t, "first", nav.Previous.ID)
	require.Equal(t, "last", nav.Next.ID)

	nav = n.Neighbors("first")
	require.Nil(t, nav.Previous)
	require.Equal(t, "middle", nav.Next.ID)

	nav = n.Neighbors("last")
	require.Equal(t, "middle", nav.Previous.ID)
	require.Nil(t, nav.Next)

	require.Equal(t, content.Navigation{}, n.Neighbors("unknown-id"))
}

func TestNeighbors_SingleAndEmpty(t *testing.T) {
	n := New(store.NewSnapshot([]content.Document{doc("only", day(1))}, nil))
	require.Equal(t, content.Navigation{}, n.Neighbors("only"))

	empty := New(nil)
	require.Equal(t, content.Navigation{}, empty.Neighbors("x"))
	_, total, ok := empty.Position("x")
	require.False(t, ok)
	require.Zero(t, total)
}

func TestNeighbors_DatesAreMonotonic(t *testing.T) {
	var docs []content.Document
	for i, id := range []string{"e", "d", "c", "b", "a", "f", "g"} {
		docs = append(docs, doc(id, day(1+i%3)))
	}
	n := New(store.NewSnapshot(docs, nil))

	for _, d := range docs {
		nav := n.Neighbors(d.ID)
		if nav.Previous != nil {
			require.False(t, nav.Previous.Meta.Date.After(d.Meta.Date))
		}
		if nav.Next != nil {
			require.False(t, nav.Next.Meta.Date.Before(d.Meta.Date))
		}
	}
}

func TestPosition(t *testing.T) {
	n := New(store.NewSnapshot([]content.Document{doc("a", day(2)), doc("b", day(1))}, nil))

	i, total, ok := n.Position("a")
	require.True(t, ok)
	require.Equal(t, 1, i)
	require.Equal(t, 2, total)
	require.Len(t, n.Documents(), 2)
}
