package index

import (
	"encoding/binary"
	"time"
)

// key = invSeconds(8) + 0x00 + id. Newer dates sort first; equal dates sort
// by id. The unknown (zero) date sorts last.
func makeDateKey(t time.Time, id string) []byte {
	// flip the sign bit so negative seconds order below positive ones
	ordered := uint64(t.Unix()) ^ (1 << 63)

	buf := make([]byte, 8, 8+1+len(id))
	binary.BigEndian.PutUint64(buf, ^ordered)
	buf = append(buf, 0x00)
	buf = append(buf, id...)
	return buf
}

func idFromDateKey(k []byte) string {
	if len(k) < 8+2 || k[8] != 0x00 {
		return ""
	}
	return string(k[9:])
}
