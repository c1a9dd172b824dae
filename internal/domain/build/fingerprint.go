package build

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint identifies one rendered page. A page whose RenderHash matches
// the catalog entry from the previous build is not rewritten.
type Fingerprint struct {
	ContentHash string
	ThemeHash   string
	ConfigHash  string
	// ContextHash covers what the page shows about other documents:
	// related list, neighbours and link resolution.
	ContextHash string
	RenderHash  string
}

func (f *Fingerprint) ComputeRenderHash() {
	h := sha256.New()
	h.Write([]byte(f.ContentHash))
	h.Write([]byte(f.ThemeHash))
	h.Write([]byte(f.ConfigHash))
	h.Write([]byte(f.ContextHash))
	f.RenderHash = hex.EncodeToString(h.Sum(nil))
}

// HashStrings hashes parts with a separator so ("ab","c") != ("a","bc").
func HashStrings(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
