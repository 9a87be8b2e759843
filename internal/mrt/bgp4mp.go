package mrt

import (
	"encoding/binary"
	"fmt"

	"github.com/route-beacon/mrtarchive/internal/nlri"
)

// bgp4mpTail reads the ifindex/afi/src/dst portion common to every
// BGP4MP state and message subtype and resolves the address family from
// afi. safi is always absent on these records (spec.md §4.2: safi == -1).
func bgp4mpTail(data []byte) (fam AddrFamily, src, dst Addr, rest []byte, err error) {
	if len(data) < 4 {
		return 0, Addr{}, Addr{}, nil, fmt.Errorf("mrt: bgp4mp tail truncated before ifindex/afi")
	}
	afi := binary.BigEndian.Uint16(data[2:4])
	data = data[4:]

	var ok bool
	fam, ok = ResolveFamily(afi, -1)
	if !ok {
		return 0, Addr{}, Addr{}, nil, fmt.Errorf("mrt: bgp4mp unknown afi %d", afi)
	}

	src, n, err := ExtractAddr(data, fam)
	if err != nil {
		return 0, Addr{}, Addr{}, nil, fmt.Errorf("mrt: bgp4mp src addr: %w", err)
	}
	data = data[n:]

	dst, n, err = ExtractAddr(data, fam)
	if err != nil {
		return 0, Addr{}, Addr{}, nil, fmt.Errorf("mrt: bgp4mp dst addr: %w", err)
	}
	data = data[n:]

	return fam, src, dst, data, nil
}

// splitET strips the BGP4MP_ET microsecond field, if et is true, and
// returns the nanosecond component of the record timestamp alongside the
// remaining payload.
func splitET(data []byte, et bool) (nsec uint32, rest []byte, err error) {
	if !et {
		return 0, data, nil
	}
	if len(data) < 4 {
		return 0, nil, fmt.Errorf("mrt: bgp4mp_et record truncated before microsecond field")
	}
	usec := binary.BigEndian.Uint32(data[:4])
	return usec * 1000, data[4:], nil
}

// decodeState decodes a BGP4MP/BGP4MP_ET state-change record (subtype
// BGP4MP_STATE_CHANGE or BGP4MP_STATE_CHANGE_AS4).
func decodeState(hdr RecordHeader, data []byte, et bool) (*StateChangeEvent, error) {
	nsec, data, err := splitET(data, et)
	if err != nil {
		return nil, err
	}

	var srcAS, dstAS uint32
	switch hdr.Subtype {
	case subBGP4MPStateChange:
		if len(data) < 4 {
			return nil, fmt.Errorf("mrt: state_change record too short for as2 header")
		}
		srcAS = uint32(binary.BigEndian.Uint16(data[0:2]))
		dstAS = uint32(binary.BigEndian.Uint16(data[2:4]))
		data = data[4:]
	case subBGP4MPStateChangeAS4:
		if len(data) < 8 {
			return nil, fmt.Errorf("mrt: state_change record too short for as4 header")
		}
		srcAS = binary.BigEndian.Uint32(data[0:4])
		dstAS = binary.BigEndian.Uint32(data[4:8])
		data = data[8:]
	default:
		return nil, fmt.Errorf("mrt: unknown bgp4mp state subtype %d", hdr.Subtype)
	}

	_, src, dst, data, err := bgp4mpTail(data)
	if err != nil {
		return nil, err
	}

	if len(data) < 4 {
		return nil, fmt.Errorf("mrt: state_change record truncated before old/new state")
	}
	oldState := binary.BigEndian.Uint16(data[0:2])
	newState := binary.BigEndian.Uint16(data[2:4])

	return &StateChangeEvent{
		Time:     TimeVal{Sec: hdr.Timestamp, Nsec: nsec},
		SrcAS:    srcAS,
		DstAS:    dstAS,
		Src:      src,
		Dst:      dst,
		OldState: oldState,
		NewState: newState,
	}, nil
}

// decodeMessage decodes a BGP4MP/BGP4MP_ET captured-message record (any
// of the MESSAGE, MESSAGE_AS4, *_LOCAL and *_ADDPATH subtypes). The BGP
// PDU itself is copied verbatim; this package does not parse it.
func decodeMessage(hdr RecordHeader, data []byte, et bool) (*MessageEvent, error) {
	nsec, data, err := splitET(data, et)
	if err != nil {
		return nil, err
	}

	var srcAS, dstAS uint32
	addPath := false
	switch hdr.Subtype {
	case subBGP4MPMessageAddPath, subBGP4MPMessageLocalAddPath:
		addPath = true
		fallthrough
	case subBGP4MPMessage, subBGP4MPMessageLocal:
		if len(data) < 4 {
			return nil, fmt.Errorf("mrt: message record too short for as2 header")
		}
		srcAS = uint32(binary.BigEndian.Uint16(data[0:2]))
		dstAS = uint32(binary.BigEndian.Uint16(data[2:4]))
		data = data[4:]

	case subBGP4MPMessageAS4AddPath, subBGP4MPMessageAS4LocalAddPath:
		addPath = true
		fallthrough
	case subBGP4MPMessageAS4, subBGP4MPMessageAS4Local:
		if len(data) < 8 {
			return nil, fmt.Errorf("mrt: message record too short for as4 header")
		}
		srcAS = binary.BigEndian.Uint32(data[0:4])
		dstAS = binary.BigEndian.Uint32(data[4:8])
		data = data[8:]

	default:
		return nil, fmt.Errorf("mrt: unknown bgp4mp message subtype %d", hdr.Subtype)
	}

	_, src, dst, data, err := bgp4mpTail(data)
	if err != nil {
		return nil, err
	}

	return &MessageEvent{
		Time:    TimeVal{Sec: hdr.Timestamp, Nsec: nsec},
		SrcAS:   srcAS,
		DstAS:   dstAS,
		Src:     src,
		Dst:     dst,
		AddPath: addPath,
		Msg:     append([]byte(nil), data...),
	}, nil
}

// decodeEntry decodes a legacy BGP4MP_ENTRY record: a TABLE_DUMP-v1-like
// single-entry RIB snapshot wrapped in a BGP4MP envelope, with an
// explicit AFI/SAFI/next-hop-length trio instead of table-dump's
// subtype-selected family. AS_PATH within it is always 2-byte-AS
// encoded, matching the vintage of this deprecated record type.
func decodeEntry(hdr RecordHeader, data []byte, et bool, peer *PeerTable) (*RIBRecord, error) {
	_, data, err := splitET(data, et)
	if err != nil {
		return nil, err
	}

	if len(data) < 2+2+2+2 {
		return nil, fmt.Errorf("mrt: bgp4mp_entry record too short for as/ifindex/afi header")
	}
	// source AS ignored; dest AS becomes the peer's AS number.
	peerAS := binary.BigEndian.Uint16(data[2:4])
	afi := binary.BigEndian.Uint16(data[6:8])
	data = data[8:]

	peerFam, ok := ResolveFamily(afi, -1)
	if !ok {
		return nil, fmt.Errorf("mrt: bgp4mp_entry unknown afi %d", afi)
	}

	srcSize := fixedSize(peerFam)
	if len(data) < srcSize {
		return nil, fmt.Errorf("mrt: bgp4mp_entry truncated before source ip")
	}
	data = data[srcSize:] // source IP, ignored

	peerAddr, n, err := ExtractAddr(data, peerFam)
	if err != nil {
		return nil, fmt.Errorf("mrt: bgp4mp_entry dest (peer) addr: %w", err)
	}
	data = data[n:]

	if len(data) < 2+2+4 {
		return nil, fmt.Errorf("mrt: bgp4mp_entry truncated before view/status/originated")
	}
	data = data[4:] // view + status, ignored
	originated := binary.BigEndian.Uint32(data[0:4])
	data = data[4:]

	if len(data) < 2+1+1 {
		return nil, fmt.Errorf("mrt: bgp4mp_entry truncated before afi/safi/nhlen")
	}
	prefixAFI := binary.BigEndian.Uint16(data[0:2])
	prefixSAFI := int(data[2])
	nhLen := int(data[3])
	data = data[4:]

	fam, ok := ResolveFamily(prefixAFI, prefixSAFI)
	if !ok {
		return nil, fmt.Errorf("mrt: bgp4mp_entry unknown prefix afi/safi %d/%d", prefixAFI, prefixSAFI)
	}

	// The next hop is decoded at fixedSize(fam), but the cursor advances
	// by the wire-declared nhLen, matching mrt_parse_dump_mp exactly.
	nextHop, _, err := ExtractAddr(data, fam)
	if err != nil {
		return nil, fmt.Errorf("mrt: bgp4mp_entry next hop: %w", err)
	}
	if len(data) < nhLen {
		return nil, fmt.Errorf("mrt: bgp4mp_entry nhlen %d exceeds remaining data", nhLen)
	}
	data = data[nhLen:]

	var prefixAddr Addr
	var prefixLen uint8
	switch fam {
	case FamilyINET:
		b4, bl, consumed, err := nlri.Prefix(data)
		if err != nil {
			return nil, fmt.Errorf("mrt: bgp4mp_entry prefix: %w", err)
		}
		prefixAddr, prefixLen, data = AddrFromV4(b4), bl, data[consumed:]
	case FamilyINET6:
		b6, bl, consumed, err := nlri.Prefix6(data)
		if err != nil {
			return nil, fmt.Errorf("mrt: bgp4mp_entry prefix: %w", err)
		}
		prefixAddr, prefixLen, data = AddrFromV6(b6), bl, data[consumed:]
	case FamilyVPNIPv4:
		b4, bl, consumed, err := nlri.VPN4(data)
		if err != nil {
			return nil, fmt.Errorf("mrt: bgp4mp_entry vpn prefix: %w", err)
		}
		prefixAddr, prefixLen, data = AddrFromVPN4(b4), bl, data[consumed:]
	case FamilyVPNIPv6:
		b6, bl, consumed, err := nlri.VPN6(data)
		if err != nil {
			return nil, fmt.Errorf("mrt: bgp4mp_entry vpn prefix: %w", err)
		}
		prefixAddr, prefixLen, data = AddrFromVPN6(b6), bl, data[consumed:]
	default:
		return nil, fmt.Errorf("mrt: bgp4mp_entry unsupported prefix family %s", fam)
	}

	if len(data) < 2 {
		return nil, fmt.Errorf("mrt: bgp4mp_entry truncated before attr_len")
	}
	attrLen := int(binary.BigEndian.Uint16(data[0:2]))
	data = data[2:]
	if len(data) < attrLen {
		return nil, fmt.Errorf("mrt: bgp4mp_entry attr_len %d exceeds remaining data", attrLen)
	}

	entry := RIBEntry{Originated: originated, NextHop: nextHop}
	if err := decodeAttributes(&entry, data[:attrLen], fam, false); err != nil {
		return nil, fmt.Errorf("mrt: bgp4mp_entry attrs: %w", err)
	}

	peer.Peers[0] = PeerEntry{Addr: peerAddr, ASNum: uint32(peerAS)}

	return &RIBRecord{
		Prefix:  Prefix{Addr: prefixAddr, PrefixLen: prefixLen},
		Entries: []RIBEntry{entry},
	}, nil
}
