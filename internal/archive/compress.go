package archive

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

var zstdEncoder *zstd.Encoder

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil)
	if err != nil {
		panic(fmt.Sprintf("archive: zstd encoder init: %v", err))
	}
}

// compressRaw zstd-compresses raw MRT message bytes before they're
// stored. It is applied to BGP4MP_MESSAGE payloads only; RIB rows do not
// archive opaque attribute bytes at all.
func compressRaw(b []byte) []byte {
	return zstdEncoder.EncodeAll(b, nil)
}
