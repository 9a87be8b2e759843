package archive

import "crypto/sha256"

// RecordID computes a stable content hash over the given parts. Used as
// the archive tables' primary key so replaying the same MRT dump twice
// is idempotent at the database layer, not just at the pipeline layer.
func RecordID(parts ...[]byte) []byte {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	sum := h.Sum(nil)
	return sum[:]
}
