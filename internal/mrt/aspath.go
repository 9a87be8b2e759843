package mrt

import (
	"encoding/binary"
	"fmt"
)

// inflateASPath expands a 2-byte-AS AS_PATH attribute into 4-byte-AS
// form. Segment layout on both sides is {seg_type u8, seg_len u8, then
// seg_len ASNs}; only the ASN width changes. A first pass validates
// every segment fits within data before any allocation, mirroring
// mrt_aspath_inflate's two-pass shape.
func inflateASPath(data []byte) ([]byte, error) {
	outLen := 0
	for off := 0; off < len(data); {
		if off+2 > len(data) {
			return nil, fmt.Errorf("mrt: as_path segment header truncated")
		}
		segLen := int(data[off+1])
		segSize := 2 + 2*segLen
		if off+segSize > len(data) {
			return nil, fmt.Errorf("mrt: as_path segment overruns attribute")
		}
		outLen += 2 + 4*segLen
		off += segSize
	}

	out := make([]byte, outLen)
	oi, off := 0, 0
	for off < len(data) {
		segType := data[off]
		segLen := int(data[off+1])
		out[oi] = segType
		out[oi+1] = byte(segLen)
		oi += 2
		off += 2
		for i := 0; i < segLen; i++ {
			asn := binary.BigEndian.Uint16(data[off : off+2])
			binary.BigEndian.PutUint32(out[oi:oi+4], uint32(asn))
			oi += 4
			off += 2
		}
	}
	return out, nil
}
