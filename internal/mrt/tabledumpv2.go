package mrt

import (
	"encoding/binary"
	"fmt"

	"github.com/route-beacon/mrtarchive/internal/nlri"
)

// decodePeerIndex decodes a TABLE_DUMP_V2 PEER_INDEX_TABLE record. It
// replaces whatever peer table a prior PEER_INDEX_TABLE record
// established; the dispatcher is responsible for that replacement.
func decodePeerIndex(data []byte) (*PeerTable, error) {
	if len(data) < 4+2 {
		return nil, fmt.Errorf("mrt: peer_index_table too short")
	}
	off := 0
	collectorID := binary.BigEndian.Uint32(data[off : off+4])
	off += 4
	viewLen := int(binary.BigEndian.Uint16(data[off : off+2]))
	off += 2
	if len(data[off:]) < viewLen {
		return nil, fmt.Errorf("mrt: peer_index_table view_len %d exceeds remaining data", viewLen)
	}
	view := string(data[off : off+viewLen])
	off += viewLen

	if len(data[off:]) < 2 {
		return nil, fmt.Errorf("mrt: peer_index_table truncated before peer_count")
	}
	peerCount := int(binary.BigEndian.Uint16(data[off : off+2]))
	off += 2

	peers := make([]PeerEntry, peerCount)
	for i := 0; i < peerCount; i++ {
		if len(data[off:]) < 1+4 {
			return nil, fmt.Errorf("mrt: peer_index_table entry %d truncated", i)
		}
		typeFlags := data[off]
		off++
		bgpID := binary.BigEndian.Uint32(data[off : off+4])
		off += 4

		fam := FamilyINET
		if typeFlags&0x02 != 0 { // I bit: ipv6 peer address
			fam = FamilyINET6
		}
		addr, n, err := ExtractAddr(data[off:], fam)
		if err != nil {
			return nil, fmt.Errorf("mrt: peer_index_table entry %d addr: %w", i, err)
		}
		off += n

		var asnum uint32
		if typeFlags&0x01 != 0 { // A bit: four-byte AS number
			if len(data[off:]) < 4 {
				return nil, fmt.Errorf("mrt: peer_index_table entry %d asnum truncated", i)
			}
			asnum = binary.BigEndian.Uint32(data[off : off+4])
			off += 4
		} else {
			if len(data[off:]) < 2 {
				return nil, fmt.Errorf("mrt: peer_index_table entry %d asnum truncated", i)
			}
			asnum = uint32(binary.BigEndian.Uint16(data[off : off+2]))
			off += 2
		}
		peers[i] = PeerEntry{BGPID: bgpID, Addr: addr, ASNum: asnum}
	}

	return &PeerTable{CollectorBGPID: collectorID, View: view, Peers: peers}, nil
}

// decodeRIBv2 decodes a TABLE_DUMP_V2 RIB record (any of the
// RIB_IPV4/IPV6_UNICAST/MULTICAST, RIB_GENERIC, and their ADDPATH
// variants). AS_PATH attributes within it are always 4-byte-AS encoded.
func decodeRIBv2(hdr RecordHeader, data []byte) (*RIBRecord, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("mrt: rib record too short for seqnum")
	}
	seqnum := binary.BigEndian.Uint32(data[:4])
	off := 4

	addPath := false
	var fam AddrFamily
	var prefixAddr Addr
	var prefixLen uint8

	switch hdr.Subtype {
	case subRIBIPv4UnicastAddPath, subRIBIPv4MulticastAddPath:
		addPath = true
		fallthrough
	case subRIBIPv4Unicast, subRIBIPv4Multicast:
		fam = FamilyINET
		b4, bl, n, err := nlri.Prefix(data[off:])
		if err != nil {
			return nil, fmt.Errorf("mrt: rib prefix: %w", err)
		}
		prefixAddr, prefixLen, off = AddrFromV4(b4), bl, off+n

	case subRIBIPv6UnicastAddPath, subRIBIPv6MulticastAddPath:
		addPath = true
		fallthrough
	case subRIBIPv6Unicast, subRIBIPv6Multicast:
		fam = FamilyINET6
		b6, bl, n, err := nlri.Prefix6(data[off:])
		if err != nil {
			return nil, fmt.Errorf("mrt: rib prefix: %w", err)
		}
		prefixAddr, prefixLen, off = AddrFromV6(b6), bl, off+n

	case subRIBGenericAddPath:
		// RFC 8050 prescribes a distinct layout for generic add-path RIB
		// entries, but no known encoder follows it; this decodes it the
		// same way as the other ADDPATH subtypes.
		addPath = true
		fallthrough
	case subRIBGeneric:
		if len(data[off:]) < 3 {
			return nil, fmt.Errorf("mrt: rib_generic truncated before afi/safi")
		}
		afi := binary.BigEndian.Uint16(data[off : off+2])
		safi := int(data[off+2])
		off += 3
		var ok bool
		fam, ok = ResolveFamily(afi, safi)
		if !ok {
			return nil, fmt.Errorf("mrt: rib_generic unknown afi/safi %d/%d", afi, safi)
		}
		switch fam {
		case FamilyINET:
			b4, bl, n, err := nlri.Prefix(data[off:])
			if err != nil {
				return nil, fmt.Errorf("mrt: rib_generic prefix: %w", err)
			}
			prefixAddr, prefixLen, off = AddrFromV4(b4), bl, off+n
		case FamilyINET6:
			b6, bl, n, err := nlri.Prefix6(data[off:])
			if err != nil {
				return nil, fmt.Errorf("mrt: rib_generic prefix: %w", err)
			}
			prefixAddr, prefixLen, off = AddrFromV6(b6), bl, off+n
		case FamilyVPNIPv4:
			b4, bl, n, err := nlri.VPN4(data[off:])
			if err != nil {
				return nil, fmt.Errorf("mrt: rib_generic vpn prefix: %w", err)
			}
			prefixAddr, prefixLen, off = AddrFromVPN4(b4), bl, off+n
		case FamilyVPNIPv6:
			b6, bl, n, err := nlri.VPN6(data[off:])
			if err != nil {
				return nil, fmt.Errorf("mrt: rib_generic vpn prefix: %w", err)
			}
			prefixAddr, prefixLen, off = AddrFromVPN6(b6), bl, off+n
		}

	default:
		return nil, fmt.Errorf("mrt: unknown table_dump_v2 subtype %d", hdr.Subtype)
	}

	if len(data[off:]) < 2 {
		return nil, fmt.Errorf("mrt: rib record truncated before entry_count")
	}
	entryCount := int(binary.BigEndian.Uint16(data[off : off+2]))
	off += 2

	entries := make([]RIBEntry, entryCount)
	for i := 0; i < entryCount; i++ {
		if len(data[off:]) < 2+4 {
			return nil, fmt.Errorf("mrt: rib entry %d truncated before peer_idx/originated", i)
		}
		peerIdx := binary.BigEndian.Uint16(data[off : off+2])
		off += 2
		originated := binary.BigEndian.Uint32(data[off : off+4])
		off += 4

		var pathID uint32
		if addPath {
			if len(data[off:]) < 4 {
				return nil, fmt.Errorf("mrt: rib entry %d truncated before path_id", i)
			}
			pathID = binary.BigEndian.Uint32(data[off : off+4])
			off += 4
		}

		if len(data[off:]) < 2 {
			return nil, fmt.Errorf("mrt: rib entry %d truncated before attr_len", i)
		}
		attrLen := int(binary.BigEndian.Uint16(data[off : off+2]))
		off += 2

		if len(data[off:]) < attrLen {
			return nil, fmt.Errorf("mrt: rib entry %d attr_len %d exceeds remaining data", i, attrLen)
		}

		entry := RIBEntry{PeerIdx: peerIdx, Originated: originated, PathID: pathID}
		if err := decodeAttributes(&entry, data[off:off+attrLen], fam, true); err != nil {
			return nil, fmt.Errorf("mrt: rib entry %d attrs: %w", i, err)
		}
		off += attrLen

		entries[i] = entry
	}

	return &RIBRecord{
		SeqNum:  seqnum,
		Prefix:  Prefix{Addr: prefixAddr, PrefixLen: prefixLen},
		AddPath: addPath,
		Entries: entries,
	}, nil
}
