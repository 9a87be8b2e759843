package mrt

import (
	"encoding/binary"
	"fmt"
)

// decodeTableDumpV1 decodes a legacy TABLE_DUMP record (type 12).
// Subtype selects the address family: 1 = IPv4, 2 = IPv6. It always
// produces a single-entry RIB record, and mutates the caller-owned
// synthetic peer table's sole entry in place.
func decodeTableDumpV1(hdr RecordHeader, data []byte, peer *PeerTable) (*RIBRecord, error) {
	var fam AddrFamily
	switch hdr.Subtype {
	case SubTableDumpAFIIPv4:
		fam = FamilyINET
	case SubTableDumpAFIIPv6:
		fam = FamilyINET6
	default:
		return nil, fmt.Errorf("mrt: unknown AFI %d in table dump", hdr.Subtype)
	}

	if len(data) < 4 {
		return nil, fmt.Errorf("mrt: table_dump record too short")
	}
	off := 2 // view, ignored
	seqnum := binary.BigEndian.Uint16(data[off : off+2])
	off += 2

	addr, n, err := ExtractAddr(data[off:], fam)
	if err != nil {
		return nil, fmt.Errorf("mrt: table_dump prefix addr: %w", err)
	}
	off += n

	if len(data[off:]) < 1+1+4 {
		return nil, fmt.Errorf("mrt: table_dump record truncated before prefixlen/status/originated")
	}
	prefixLen := data[off]
	off += 2 // prefixlen + status
	originated := binary.BigEndian.Uint32(data[off : off+4])
	off += 4

	peerAddr, n, err := ExtractAddr(data[off:], fam)
	if err != nil {
		return nil, fmt.Errorf("mrt: table_dump peer addr: %w", err)
	}
	off += n

	if len(data[off:]) < 2+2 {
		return nil, fmt.Errorf("mrt: table_dump record truncated before peer_as/attr_len")
	}
	peerAS := binary.BigEndian.Uint16(data[off : off+2])
	off += 2
	attrLen := int(binary.BigEndian.Uint16(data[off : off+2]))
	off += 2

	if len(data[off:]) < attrLen {
		return nil, fmt.Errorf("mrt: table_dump attr_len %d exceeds remaining %d", attrLen, len(data[off:]))
	}

	entry := RIBEntry{Originated: originated}
	if err := decodeAttributes(&entry, data[off:off+attrLen], fam, false); err != nil {
		return nil, fmt.Errorf("mrt: table_dump attrs: %w", err)
	}

	peer.Peers[0] = PeerEntry{Addr: peerAddr, ASNum: uint32(peerAS)}

	return &RIBRecord{
		SeqNum:  uint32(seqnum),
		Prefix:  Prefix{Addr: addr, PrefixLen: prefixLen},
		Entries: []RIBEntry{entry},
	}, nil
}
