package index

import (
	"encoding/json"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"blogpipe/internal/domain/content"
)

type record struct {
	ID     string           `json:"id"`
	Meta   content.Metadata `json:"meta"`
	Source content.BodyRef  `json:"source"`
}

type RebuildOptions struct {
	IncludeDraft bool
	// Aliases is alias -> id, already checked for collisions.
	Aliases map[string]string
	Now     time.Time
}

// Rebuild replaces the catalog with docs. Page fingerprints are kept so the
// next build can skip unchanged pages.
func (s *Store) Rebuild(docs []content.Document, opt RebuildOptions) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		_ = tx.DeleteBucket(bMeta)
		_ = tx.DeleteBucket(bAlias)
		_ = tx.DeleteBucket(bIdxDate)
		_ = tx.DeleteBucket(bIdxTag)

		metaB, err := tx.CreateBucket(bMeta)
		if err != nil {
			return err
		}
		aliasB, err := tx.CreateBucket(bAlias)
		if err != nil {
			return err
		}
		idxDateB, err := tx.CreateBucket(bIdxDate)
		if err != nil {
			return err
		}
		idxTagB, err := tx.CreateBucket(bIdxTag)
		if err != nil {
			return err
		}
		infoB, err := tx.CreateBucketIfNotExists(bInfo)
		if err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bPages); err != nil {
			return err
		}

		for _, d := range docs {
			if d.Meta.Draft && !opt.IncludeDraft {
				continue
			}
			id := strings.TrimSpace(d.ID)
			if id == "" || metaB.Get([]byte(id)) != nil {
				continue
			}
			rb, err := json.Marshal(record{ID: id, Meta: d.Meta, Source: d.Source})
			if err != nil {
				return err
			}
			if err := metaB.Put([]byte(id), rb); err != nil {
				return err
			}

			dKey := makeDateKey(d.Meta.Date, id)
			if err := idxDateB.Put(dKey, []byte{1}); err != nil {
				return err
			}
			for _, tag := range d.Meta.Tags {
				if tag == "" {
					continue
				}
				sb, err := idxTagB.CreateBucketIfNotExists([]byte(tag))
				if err != nil {
					return err
				}
				if err := sb.Put(dKey, []byte{1}); err != nil {
					return err
				}
			}
		}

		for alias, id := range opt.Aliases {
			if metaB.Get([]byte(id)) == nil {
				continue
			}
			if err := aliasB.Put([]byte(alias), []byte(id)); err != nil {
				return err
			}
		}

		now := opt.Now
		if now.IsZero() {
			now = time.Now()
		}
		return infoB.Put(kBuiltAt, []byte(now.UTC().Format(time.RFC3339Nano)))
	})
}
