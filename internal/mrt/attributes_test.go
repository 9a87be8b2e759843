package mrt

import (
	"encoding/binary"
	"testing"
)

func buildAttr(flags, typ byte, value []byte) []byte {
	if len(value) > 255 {
		out := make([]byte, 4+len(value))
		out[0] = flags | attrFlagExtLen
		out[1] = typ
		binary.BigEndian.PutUint16(out[2:4], uint16(len(value)))
		copy(out[4:], value)
		return out
	}
	out := make([]byte, 3+len(value))
	out[0] = flags
	out[1] = typ
	out[2] = byte(len(value))
	copy(out[3:], value)
	return out
}

func TestDecodeAttributes_OriginMedLocalPref(t *testing.T) {
	var blob []byte
	blob = append(blob, buildAttr(0x40, attrOrigin, []byte{0})...)
	medBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(medBytes, 42)
	blob = append(blob, buildAttr(0x80, attrMED, medBytes)...)
	lpBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(lpBytes, 100)
	blob = append(blob, buildAttr(0x40, attrLocalPref, lpBytes)...)

	var re RIBEntry
	if err := decodeAttributes(&re, blob, FamilyINET, true); err != nil {
		t.Fatalf("decodeAttributes: %v", err)
	}
	if re.Origin != 0 {
		t.Fatalf("Origin = %d, want 0", re.Origin)
	}
	if re.MED != 42 {
		t.Fatalf("MED = %d, want 42", re.MED)
	}
	if re.LocalPref != 100 {
		t.Fatalf("LocalPref = %d, want 100", re.LocalPref)
	}
}

func TestDecodeAttributes_ASPathAs4(t *testing.T) {
	path := buildASPath4(2, []uint32{64500, 64501})
	blob := buildAttr(0x40, attrASPath, path)

	var re RIBEntry
	if err := decodeAttributes(&re, blob, FamilyINET, true); err != nil {
		t.Fatalf("decodeAttributes: %v", err)
	}
	if string(re.ASPath) != string(path) {
		t.Fatalf("ASPath = %x, want %x", re.ASPath, path)
	}
}

func TestDecodeAttributes_ASPathLegacyInflates(t *testing.T) {
	path := buildASPath2(2, []uint16{64500, 64501})
	blob := buildAttr(0x40, attrASPath, path)

	var re RIBEntry
	if err := decodeAttributes(&re, blob, FamilyINET, false); err != nil {
		t.Fatalf("decodeAttributes: %v", err)
	}
	want := buildASPath4(2, []uint32{64500, 64501})
	if string(re.ASPath) != string(want) {
		t.Fatalf("ASPath = %x, want %x", re.ASPath, want)
	}
}

func TestDecodeAttributes_AS4PathReplacesLegacyASPath(t *testing.T) {
	path2 := buildASPath2(2, []uint16{100})
	as4path := buildASPath4(2, []uint32{4200000000})
	blob := append(buildAttr(0x40, attrASPath, path2), buildAttr(0xC0, attrAS4Path, as4path)...)

	var re RIBEntry
	if err := decodeAttributes(&re, blob, FamilyINET, false); err != nil {
		t.Fatalf("decodeAttributes: %v", err)
	}
	if string(re.ASPath) != string(as4path) {
		t.Fatalf("ASPath = %x, want AS4_PATH bytes %x", re.ASPath, as4path)
	}
}

func TestDecodeAttributes_AS4PathOpaqueWhenAlreadyAS4(t *testing.T) {
	as4path := buildASPath4(2, []uint32{4200000000})
	blob := buildAttr(0xC0, attrAS4Path, as4path)

	var re RIBEntry
	if err := decodeAttributes(&re, blob, FamilyINET, true); err != nil {
		t.Fatalf("decodeAttributes: %v", err)
	}
	if re.ASPath != nil {
		t.Fatalf("ASPath = %x, want untouched (nil)", re.ASPath)
	}
	if len(re.Attrs) != 1 {
		t.Fatalf("Attrs = %v, want one opaque AS4_PATH", re.Attrs)
	}
}

func TestDecodeAttributes_NextHopOnlyForINET(t *testing.T) {
	blob := buildAttr(0x40, attrNextHop, []byte{192, 0, 2, 1})

	var re RIBEntry
	if err := decodeAttributes(&re, blob, FamilyINET6, true); err != nil {
		t.Fatalf("decodeAttributes: %v", err)
	}
	if re.NextHop.Family != FamilyUnspec {
		t.Fatalf("NextHop = %+v, want untouched for non-INET family", re.NextHop)
	}
}

func TestDecodeAttributes_OpaquePreservesRawBytes(t *testing.T) {
	value := []byte{0xAA, 0xBB, 0xCC}
	blob := buildAttr(0xC0, 99, value)

	var re RIBEntry
	if err := decodeAttributes(&re, blob, FamilyINET, true); err != nil {
		t.Fatalf("decodeAttributes: %v", err)
	}
	if len(re.Attrs) != 1 {
		t.Fatalf("Attrs = %v, want 1 opaque attribute", re.Attrs)
	}
	if string(re.Attrs[0].Raw) != string(blob) {
		t.Fatalf("Attrs[0].Raw = %x, want %x (header included)", re.Attrs[0].Raw, blob)
	}
}

func TestDecodeAttributes_JustUnderCapSucceeds(t *testing.T) {
	var blob []byte
	for i := 0; i < maxAttrs-1; i++ {
		blob = append(blob, buildAttr(0xC0, 99, []byte{byte(i)})...)
	}
	var re RIBEntry
	if err := decodeAttributes(&re, blob, FamilyINET, true); err != nil {
		t.Fatalf("decodeAttributes: %v", err)
	}
	if len(re.Attrs) != maxAttrs-1 {
		t.Fatalf("Attrs count = %d, want %d", len(re.Attrs), maxAttrs-1)
	}
}

func TestDecodeAttributes_TooManyAttributesFails(t *testing.T) {
	var blob []byte
	for i := 0; i < maxAttrs; i++ {
		blob = append(blob, buildAttr(0xC0, 99, []byte{byte(i)})...)
	}
	var re RIBEntry
	if err := decodeAttributes(&re, blob, FamilyINET, true); err == nil {
		t.Fatal("expected error once attribute count would reach maxAttrs")
	}
}

func TestDecodeAttributes_OriginWrongLengthFails(t *testing.T) {
	blob := buildAttr(0x40, attrOrigin, []byte{0, 1})
	var re RIBEntry
	if err := decodeAttributes(&re, blob, FamilyINET, true); err == nil {
		t.Fatal("expected error for origin length != 1")
	}
}

func TestDecodeAttributes_TruncatedHeaderFails(t *testing.T) {
	blob := []byte{0x40, attrMED}
	var re RIBEntry
	if err := decodeAttributes(&re, blob, FamilyINET, true); err == nil {
		t.Fatal("expected error for truncated attribute header")
	}
}

// buildMPReachRFC builds the RFC 6396 abbreviated MP_REACH_NLRI form
// MRT table dumps use: just { nexthop_len, nexthop_bytes }, nothing
// else -- the leading length byte equals attr_len-1 exactly because
// there is no reserved byte or NLRI tail to account for.
func buildMPReachRFC(nexthop []byte) []byte {
	body := append([]byte{byte(len(nexthop))}, nexthop...)
	return buildAttr(0x80, attrMPReachNLRI, body)
}

// buildMPReachLegacy builds the legacy full form: afi(2) safi(1) nhlen
// nexthop reserved nlri.
func buildMPReachLegacy(afi uint16, safi byte, nexthop []byte, nlri []byte) []byte {
	var afiBytes [2]byte
	binary.BigEndian.PutUint16(afiBytes[:], afi)
	body := append(afiBytes[:], safi)
	body = append(body, byte(len(nexthop)))
	body = append(body, nexthop...)
	body = append(body, 0x00)
	body = append(body, nlri...)
	return buildAttr(0x80, attrMPReachNLRI, body)
}

func TestDecodeAttributes_MPReachAmbiguity(t *testing.T) {
	nh := make([]byte, 16)
	for i := range nh {
		nh[i] = byte(0x20 + i)
	}
	nlri := []byte{64, 0x20, 0x01, 0x0d, 0xb8, 0, 0, 0, 0} // arbitrary trailing NLRI bytes

	rfcBlob := buildMPReachRFC(nh)
	legacyBlob := buildMPReachLegacy(2, 1, nh, nlri)

	var reRFC, reLegacy RIBEntry
	if err := decodeAttributes(&reRFC, rfcBlob, FamilyINET6, true); err != nil {
		t.Fatalf("decodeAttributes (rfc form): %v", err)
	}
	if err := decodeAttributes(&reLegacy, legacyBlob, FamilyINET6, true); err != nil {
		t.Fatalf("decodeAttributes (legacy form): %v", err)
	}

	if reRFC.NextHop != reLegacy.NextHop {
		t.Fatalf("next hops differ: rfc=%v legacy=%v", reRFC.NextHop, reLegacy.NextHop)
	}
	want := AddrFromV6([16]byte(nh))
	if reRFC.NextHop != want {
		t.Fatalf("rfc form next hop = %v, want %v", reRFC.NextHop, want)
	}
}

func TestDecodeAttributes_MPReachVPN(t *testing.T) {
	rd := make([]byte, 8)
	nh4 := []byte{198, 51, 100, 1}
	nexthop := append(append([]byte{}, rd...), nh4...)
	body := append([]byte{byte(len(nexthop))}, nexthop...)
	blob := buildAttr(0x80, attrMPReachNLRI, body)

	var re RIBEntry
	if err := decodeAttributes(&re, blob, FamilyVPNIPv4, true); err != nil {
		t.Fatalf("decodeAttributes: %v", err)
	}
	want := AddrFromVPN4([4]byte{198, 51, 100, 1})
	if re.NextHop != want {
		t.Fatalf("NextHop = %v, want %v", re.NextHop, want)
	}
}
