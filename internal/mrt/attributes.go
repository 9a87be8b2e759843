package mrt

import (
	"encoding/binary"
	"fmt"
)

// decodeAttributes walks a BGP path-attribute TLV blob and populates re.
// fam is the record's resolved address family (used only to decide
// whether NEXT_HOP / MP_REACH_NLRI apply); as4 selects whether AS_PATH
// is already 4-byte-AS encoded on the wire (true for TABLE_DUMP_V2,
// false for TABLE_DUMP v1 and BGP4MP_ENTRY).
func decodeAttributes(re *RIBEntry, data []byte, fam AddrFamily, as4 bool) error {
	for len(data) > 0 {
		if len(data) < 3 {
			return fmt.Errorf("mrt: attribute header truncated")
		}
		flags := data[0]
		typ := data[1]
		hdrLen := 3
		var attrLen int
		if flags&attrFlagExtLen != 0 {
			if len(data) < 4 {
				return fmt.Errorf("mrt: extended attribute header truncated")
			}
			attrLen = int(binary.BigEndian.Uint16(data[2:4]))
			hdrLen = 4
		} else {
			attrLen = int(data[2])
		}
		if hdrLen+attrLen > len(data) {
			return fmt.Errorf("mrt: attribute type %d declares length %d beyond available %d", typ, attrLen, len(data)-hdrLen)
		}
		whole := data[:hdrLen+attrLen]
		body := data[hdrLen : hdrLen+attrLen]

		switch typ {
		case attrOrigin:
			if attrLen != 1 {
				return fmt.Errorf("mrt: origin attribute length %d != 1", attrLen)
			}
			re.Origin = body[0]

		case attrASPath:
			if as4 {
				re.ASPath = append([]byte(nil), body...)
			} else {
				inflated, err := inflateASPath(body)
				if err != nil {
					return fmt.Errorf("mrt: as_path: %w", err)
				}
				re.ASPath = inflated
			}

		case attrNextHop:
			if attrLen != 4 {
				return fmt.Errorf("mrt: next_hop attribute length %d != 4", attrLen)
			}
			if fam == FamilyINET {
				var b [4]byte
				copy(b[:], body)
				re.NextHop = AddrFromV4(b)
			}

		case attrMED:
			if attrLen != 4 {
				return fmt.Errorf("mrt: med attribute length %d != 4", attrLen)
			}
			re.MED = binary.BigEndian.Uint32(body)

		case attrLocalPref:
			if attrLen != 4 {
				return fmt.Errorf("mrt: local_pref attribute length %d != 4", attrLen)
			}
			re.LocalPref = binary.BigEndian.Uint32(body)

		case attrMPReachNLRI:
			if err := decodeMPReachNextHop(re, body, fam); err != nil {
				return fmt.Errorf("mrt: mp_reach_nlri: %w", err)
			}

		case attrAS4Path:
			if !as4 {
				re.ASPath = append([]byte(nil), body...)
				break
			}
			if err := appendOpaque(re, whole); err != nil {
				return err
			}

		default:
			if err := appendOpaque(re, whole); err != nil {
				return err
			}
		}

		data = data[hdrLen+attrLen:]
	}
	return nil
}

func appendOpaque(re *RIBEntry, whole []byte) error {
	if len(re.Attrs)+1 >= maxAttrs {
		return fmt.Errorf("mrt: too many attributes")
	}
	re.Attrs = append(re.Attrs, Attribute{Raw: append([]byte(nil), whole...)})
	return nil
}

// decodeMPReachNextHop extracts only the next-hop address out of an
// MP_REACH_NLRI attribute; the NLRI portion that follows it is not
// inspected here (RIB/update NLRI is already conveyed by the enclosing
// record). The leading byte disambiguates the RFC 6396 abbreviated form
// (length byte == attr_len-1) from the legacy full form, which carries
// a 3-byte AFI/SAFI prefix real-world encoders actually emit.
func decodeMPReachNextHop(re *RIBEntry, body []byte, fam AddrFamily) error {
	if len(body) < 1 {
		return fmt.Errorf("empty attribute")
	}
	if int(body[0]) != len(body)-1 {
		if len(body) < 3 {
			return fmt.Errorf("legacy form truncated before afi/safi")
		}
		body = body[3:]
	}
	if len(body) < 1 {
		return fmt.Errorf("truncated before next-hop length")
	}

	switch fam {
	case FamilyINET6:
		if len(body) < 1+16 {
			return fmt.Errorf("next hop too short for inet6: %d", len(body))
		}
		var b [16]byte
		copy(b[:], body[1:17])
		re.NextHop = AddrFromV6(b)
	case FamilyVPNIPv4:
		if len(body) < 1+8+4 {
			return fmt.Errorf("next hop too short for vpn-ipv4: %d", len(body))
		}
		var b [4]byte
		copy(b[:], body[1+8:1+8+4])
		re.NextHop = AddrFromVPN4(b)
	case FamilyVPNIPv6:
		if len(body) < 1+8+16 {
			return fmt.Errorf("next hop too short for vpn-ipv6: %d", len(body))
		}
		var b [16]byte
		copy(b[:], body[1+8:1+8+16])
		re.NextHop = AddrFromVPN6(b)
	default:
		// INET and unresolved families: MP_REACH_NLRI carries no usable
		// next hop here; re.NextHop is left untouched.
	}
	return nil
}
