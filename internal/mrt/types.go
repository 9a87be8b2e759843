package mrt

// AddrFamily is this package's internal address-family tag. spec.md
// models addresses as a single tagged union; we keep the tag as its own
// type rather than an AFI/SAFI pair so record decoders never have to
// re-derive it.
type AddrFamily uint8

const (
	FamilyUnspec AddrFamily = iota
	FamilyINET
	FamilyINET6
	FamilyVPNIPv4
	FamilyVPNIPv6
)

func (f AddrFamily) String() string {
	switch f {
	case FamilyINET:
		return "inet"
	case FamilyINET6:
		return "inet6"
	case FamilyVPNIPv4:
		return "vpn-ipv4"
	case FamilyVPNIPv6:
		return "vpn-ipv6"
	default:
		return "unspec"
	}
}

// Prefix pairs an address with a bit length. Only the first PrefixLen
// bits of Addr are meaningful.
type Prefix struct {
	Addr      Addr
	PrefixLen uint8
}

// PeerEntry is one row of a TABLE_DUMP_V2 peer-index table, or the sole
// entry of the synthetic single-peer table substituted for legacy
// TABLE_DUMP / BGP4MP_ENTRY records.
type PeerEntry struct {
	BGPID uint32
	Addr  Addr
	ASNum uint32
}

// PeerTable scopes RIBEntry.PeerIdx. It is owned by the dispatcher and
// handed to sinks read-only; callers must not retain it past the
// callback that received it unless they copy it.
type PeerTable struct {
	CollectorBGPID uint32
	View           string
	Peers          []PeerEntry
}

// Attribute is an opaque path attribute: its on-wire flags/type/length
// header plus value, byte-exact, for any attribute type this package
// does not decode structurally.
type Attribute struct {
	Raw []byte
}

// RIBEntry is a single peer's view of one prefix in a RIB snapshot.
type RIBEntry struct {
	PeerIdx    uint16
	Originated uint32
	PathID     uint32
	Origin     uint8
	ASPath     []byte // always 4-byte-AS segments, regardless of wire encoding
	NextHop    Addr
	MED        uint32
	LocalPref  uint32
	Attrs      []Attribute
}

// RIBRecord is one decoded RIB snapshot record for a single prefix.
type RIBRecord struct {
	SeqNum  uint32
	Prefix  Prefix
	AddPath bool
	Entries []RIBEntry
}

// TimeVal is a seconds+nanoseconds timestamp. Nsec is populated only for
// BGP4MP_ET records; it is always zero otherwise.
type TimeVal struct {
	Sec  uint32
	Nsec uint32
}

// StateChangeEvent is a decoded BGP finite-state-machine transition.
type StateChangeEvent struct {
	Time     TimeVal
	SrcAS    uint32
	DstAS    uint32
	Src      Addr
	Dst      Addr
	OldState uint16
	NewState uint16
}

// MessageEvent is a captured BGP protocol message. Msg is the raw,
// unparsed BGP PDU; this package does not look inside it.
type MessageEvent struct {
	Time    TimeVal
	SrcAS   uint32
	DstAS   uint32
	Src     Addr
	Dst     Addr
	AddPath bool
	Msg     []byte
}
