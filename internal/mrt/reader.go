package mrt

import (
	"encoding/binary"
	"fmt"
	"io"
)

// RecordHeaderSize is the fixed on-wire size of an MRT record header.
const RecordHeaderSize = 12

// RecordHeader is the 12-byte header preceding every MRT record.
type RecordHeader struct {
	Timestamp uint32
	Type      uint16
	Subtype   uint16
	Length    uint32
}

// ReadRecord reads one length-prefixed MRT record from r: a fixed
// 12-byte header, then Length payload bytes. It returns io.EOF when r is
// exhausted cleanly at a record boundary, and a non-nil, non-EOF error
// for any other failure, including a header or payload truncated
// mid-record.
func ReadRecord(r io.Reader) (RecordHeader, []byte, error) {
	var hbuf [RecordHeaderSize]byte
	n, err := io.ReadFull(r, hbuf[:])
	if err != nil {
		if n == 0 && err == io.EOF {
			return RecordHeader{}, nil, io.EOF
		}
		return RecordHeader{}, nil, fmt.Errorf("mrt: reading record header: %w", err)
	}

	hdr := RecordHeader{
		Timestamp: binary.BigEndian.Uint32(hbuf[0:4]),
		Type:      binary.BigEndian.Uint16(hbuf[4:6]),
		Subtype:   binary.BigEndian.Uint16(hbuf[6:8]),
		Length:    binary.BigEndian.Uint32(hbuf[8:12]),
	}

	payload := make([]byte, hdr.Length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return RecordHeader{}, nil, fmt.Errorf("mrt: truncated record payload (declared %d bytes): %w", hdr.Length, err)
	}

	return hdr, payload, nil
}
