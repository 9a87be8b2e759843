package mrt

import (
	"fmt"
	"net"
)

// Addr is a fixed-size tagged address. It carries both a v4 and a v6
// array so the zero value is always valid; only the bytes matching
// Family are meaningful.
type Addr struct {
	Family AddrFamily
	v4     [4]byte
	v6     [16]byte
}

// AddrFromV4 builds an Addr with Family == FamilyINET.
func AddrFromV4(b [4]byte) Addr { return Addr{Family: FamilyINET, v4: b} }

// AddrFromV6 builds an Addr with Family == FamilyINET6.
func AddrFromV6(b [16]byte) Addr { return Addr{Family: FamilyINET6, v6: b} }

// AddrFromVPN4 builds an Addr with Family == FamilyVPNIPv4. b is the
// IPv4 prefix bytes only; the route-distinguisher/label-stack that
// preceded them on the wire is not part of Addr (spec.md §9 Open
// Question).
func AddrFromVPN4(b [4]byte) Addr { return Addr{Family: FamilyVPNIPv4, v4: b} }

// AddrFromVPN6 builds an Addr with Family == FamilyVPNIPv6, analogous
// to AddrFromVPN4.
func AddrFromVPN6(b [16]byte) Addr { return Addr{Family: FamilyVPNIPv6, v6: b} }

// IP returns a as a net.IP, or nil if a carries no address.
func (a Addr) IP() net.IP {
	switch a.Family {
	case FamilyINET, FamilyVPNIPv4:
		out := make(net.IP, 4)
		copy(out, a.v4[:])
		return out
	case FamilyINET6, FamilyVPNIPv6:
		out := make(net.IP, 16)
		copy(out, a.v6[:])
		return out
	default:
		return nil
	}
}

func (a Addr) String() string {
	if ip := a.IP(); ip != nil {
		return ip.String()
	}
	return "<unspec>"
}

// ResolveFamily maps an (afi, safi) pair to this package's internal
// family tag, per RFC 6396's MRT AFI/SAFI conventions. safi == -1 means
// "no SAFI byte available on the wire" (BGP4MP state/message records
// carry only an AFI).
func ResolveFamily(afi uint16, safi int) (AddrFamily, bool) {
	switch afi {
	case 1: // IPv4
		switch safi {
		case -1, 1, 2:
			return FamilyINET, true
		case 128:
			return FamilyVPNIPv4, true
		}
	case 2: // IPv6
		switch safi {
		case -1, 1, 2:
			return FamilyINET6, true
		case 128:
			return FamilyVPNIPv6, true
		}
	}
	return FamilyUnspec, false
}

// fixedSize is the number of wire bytes ExtractAddr consumes for fam,
// including the VPN route-distinguisher/label-stack prefix for VPN
// families.
func fixedSize(fam AddrFamily) int {
	switch fam {
	case FamilyINET:
		return 4
	case FamilyINET6:
		return 16
	case FamilyVPNIPv4:
		return 8 + 4
	case FamilyVPNIPv6:
		return 8 + 16
	default:
		return 0
	}
}

// ExtractAddr copies a fixed-size address out of the front of buf for
// the given family, discarding the 8-byte VPN route-distinguisher/
// label-stack prefix for VPN families (not preserved anywhere; this
// matches mrt_extract_addr's own "labelstack and rd missing"
// limitation). It returns the number of bytes consumed.
func ExtractAddr(buf []byte, fam AddrFamily) (Addr, int, error) {
	need := fixedSize(fam)
	if need == 0 {
		return Addr{}, 0, fmt.Errorf("mrt: unsupported address family %s", fam)
	}
	if len(buf) < need {
		return Addr{}, 0, fmt.Errorf("mrt: short buffer for %s address: need %d, have %d", fam, need, len(buf))
	}
	switch fam {
	case FamilyINET:
		var b [4]byte
		copy(b[:], buf[:4])
		return AddrFromV4(b), 4, nil
	case FamilyINET6:
		var b [16]byte
		copy(b[:], buf[:16])
		return AddrFromV6(b), 16, nil
	case FamilyVPNIPv4:
		var b [4]byte
		copy(b[:], buf[8:12])
		return AddrFromVPN4(b), 12, nil
	case FamilyVPNIPv6:
		var b [16]byte
		copy(b[:], buf[8:24])
		return AddrFromVPN6(b), 24, nil
	default:
		return Addr{}, 0, fmt.Errorf("mrt: unsupported address family %s", fam)
	}
}
