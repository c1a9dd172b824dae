// Package relate ranks the documents most related to a given one.
package relate

import (
	"fmt"
	"sort"
	"time"

	"blogpipe/internal/domain/config"
	"blogpipe/internal/domain/content"
	"blogpipe/internal/store"
)

// Weights of the two scoring signals. Tag overlap is primary: Tag must be
// greater than Proximity so one shared tag outranks any closeness in time.
type Weights struct {
	Tag            float64
	Proximity      float64
	ProximityScale time.Duration
}

func DefaultWeights() Weights {
	return Weights{
		Tag:            1,
		Proximity:      0.5,
		ProximityScale: 30 * 24 * time.Hour,
	}
}

// WeightsFrom takes the weights from the relate section of the config.
func WeightsFrom(c config.RelateConfig) Weights {
	return Weights{
		Tag:            c.TagWeight,
		Proximity:      c.ProximityWeight,
		ProximityScale: c.ProximityScale,
	}
}

func (w Weights) Validate() error {
	if w.Proximity < 0 {
		return fmt.Errorf("relate: proximity weight %v is negative", w.Proximity)
	}
	if w.Tag <= w.Proximity {
		return fmt.Errorf("relate: tag weight %v must exceed proximity weight %v", w.Tag, w.Proximity)
	}
	if w.ProximityScale <= 0 {
		return fmt.Errorf("relate: proximity scale must be positive")
	}
	return nil
}

type Ranker struct {
	docs store.Reader
	w    Weights
}

func New(docs store.Reader, w Weights) *Ranker {
	if w.ProximityScale <= 0 {
		w.ProximityScale = DefaultWeights().ProximityScale
	}
	return &Ranker{docs: docs, w: w}
}

// Score is Tag*sharedTags + Proximity/(1 + |Δt|/ProximityScale). The
// proximity term is 0 when either publish date is unknown.
func (r *Ranker) Score(src, cand content.Metadata) float64 {
	score := r.w.Tag * float64(content.SameTags(src.Tags, cand.Tags))
	if src.HasDate() && cand.HasDate() {
		d := src.Date.Sub(cand.Date)
		if d < 0 {
			d = -d
		}
		score += r.w.Proximity / (1 + float64(d)/float64(r.w.ProximityScale))
	}
	return score
}

// Rank returns up to k documents ordered by score descending, then publish
// date descending, then identifier ascending. The source is never included
// and zero-score documents fill the list when fewer candidates score, so the
// length is min(k, total-1). An unknown source or k <= 0 yields nothing.
func (r *Ranker) Rank(sourceID string, k int) []content.Scored {
	if k <= 0 {
		return nil
	}
	src, ok := r.docs.Get(sourceID)
	if !ok {
		return nil
	}

	all := r.docs.All()
	out := make([]content.Scored, 0, len(all))
	for _, d := range all {
		if d.ID == src.ID {
			continue
		}
		out = append(out, content.Scored{Doc: d, Score: r.Score(src.Meta, d.Meta)})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Doc.Meta.Date.Equal(b.Doc.Meta.Date) {
			return a.Doc.Meta.Date.After(b.Doc.Meta.Date)
		}
		return a.Doc.ID < b.Doc.ID
	})

	if len(out) > k {
		out = out[:k]
	}
	return out
}
