package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"blogpipe/internal/domain/content"
	domainerr "blogpipe/internal/domain/errors"
)

type ListOptions struct {
	Page int
	Size int
}

func (r record) document() content.Document {
	return content.Document{ID: r.ID, Meta: r.Meta, Source: r.Source}
}

// Get returns the catalog entry for id. The body is not stored, so the
// document is never Loaded.
func (s *Store) Get(id string) (content.Document, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return content.Document{}, domainerr.ErrNotFound
	}
	var r record
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bMeta)
		if b == nil {
			return domainerr.ErrNotFound
		}
		v := b.Get([]byte(id))
		if v == nil {
			return domainerr.ErrNotFound
		}
		return json.Unmarshal(v, &r)
	})
	if err != nil {
		return content.Document{}, fmt.Errorf("index: %s: %w", id, err)
	}
	return r.document(), nil
}

// Lookup is Get for an identifier or an alias recorded at the last Rebuild.
func (s *Store) Lookup(idOrAlias string) (content.Document, error) {
	doc, err := s.Get(idOrAlias)
	if err == nil || !errors.Is(err, domainerr.ErrNotFound) {
		return doc, err
	}
	var target string
	_ = s.db.View(func(tx *bolt.Tx) error {
		if b := tx.Bucket(bAlias); b != nil {
			target = string(b.Get([]byte(strings.TrimSpace(idOrAlias))))
		}
		return nil
	})
	if target == "" {
		return content.Document{}, err
	}
	return s.Get(target)
}

// Documents returns every catalog entry in source path order, ready for
// store.NewSnapshot.
func (s *Store) Documents() ([]content.Document, error) {
	var out []content.Document
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bMeta)
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			var r record
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			out = append(out, r.document())
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("index: documents: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source.SourcePath < out[j].Source.SourcePath })
	return out, nil
}

func (s *Store) Aliases() (map[string]string, error) {
	out := map[string]string{}
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bAlias)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			out[string(k)] = string(v)
			return nil
		})
	})
	return out, err
}

// BuiltAt is the time of the last Rebuild, zero if there was none.
func (s *Store) BuiltAt() (time.Time, error) {
	var t time.Time
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bInfo)
		if b == nil {
			return nil
		}
		v := b.Get(kBuiltAt)
		if v == nil {
			return nil
		}
		var err error
		t, err = time.Parse(time.RFC3339Nano, string(v))
		return err
	})
	return t, err
}

func normalizePaging(page, size int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 10
	}
	if size > 100 {
		size = 100
	}
	return page, size
}

// List pages through the catalog newest first.
func (s *Store) List(opt ListOptions) ([]content.Document, error) {
	var out []content.Document
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		out, err = page(tx.Bucket(bIdxDate), tx.Bucket(bMeta), opt)
		return err
	})
	return out, err
}

func (s *Store) ListByTag(tag string, opt ListOptions) ([]content.Document, error) {
	tag = content.NormalizeTag(tag)
	if tag == "" {
		return nil, nil
	}
	var out []content.Document
	err := s.db.View(func(tx *bolt.Tx) error {
		parent := tx.Bucket(bIdxTag)
		if parent == nil {
			return nil
		}
		var err error
		out, err = page(parent.Bucket([]byte(tag)), tx.Bucket(bMeta), opt)
		return err
	})
	return out, err
}

func page(idx, metaB *bolt.Bucket, opt ListOptions) ([]content.Document, error) {
	if idx == nil || metaB == nil {
		return nil, nil
	}
	opt.Page, opt.Size = normalizePaging(opt.Page, opt.Size)
	skip := (opt.Page - 1) * opt.Size

	var out []content.Document
	cur := idx.Cursor()
	for k, _ := cur.First(); k != nil; k, _ = cur.Next() {
		id := idFromDateKey(k)
		if id == "" {
			continue
		}
		v := metaB.Get([]byte(id))
		if v == nil {
			continue
		}
		if skip > 0 {
			skip--
			continue
		}
		var r record
		if err := json.Unmarshal(v, &r); err != nil {
			return nil, fmt.Errorf("index: decode %s: %w", id, err)
		}
		out = append(out, r.document())
		if len(out) >= opt.Size {
			break
		}
	}
	return out, nil
}
