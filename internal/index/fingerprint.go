package index

import (
	"encoding/json"

	bolt "go.etcd.io/bbolt"

	"blogpipe/internal/domain/build"
)

// Fingerprint returns the stored fingerprint of the page at outPath.
func (s *Store) Fingerprint(outPath string) (build.Fingerprint, bool, error) {
	var fp build.Fingerprint
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bPages)
		if b == nil {
			return nil
		}
		v := b.Get([]byte(outPath))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &fp)
	})
	return fp, found, err
}

func (s *Store) PutFingerprint(outPath string, fp build.Fingerprint) error {
	v, err := json.Marshal(fp)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bPages)
		if err != nil {
			return err
		}
		return b.Put([]byte(outPath), v)
	})
}

// PrunePages drops fingerprints of pages no longer produced and returns
// their paths.
func (s *Store) PrunePages(keep map[string]bool) ([]string, error) {
	var removed []string
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bPages)
		if b == nil {
			return nil
		}
		var stale [][]byte
		if err := b.ForEach(func(k, _ []byte) error {
			if !keep[string(k)] {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		}); err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
			removed = append(removed, string(k))
		}
		return nil
	})
	return removed, err
}
