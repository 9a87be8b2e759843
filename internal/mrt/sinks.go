package mrt

import "fmt"

// Sinks holds the three optional callbacks a caller of Parse may supply,
// plus the opaque context value passed through to each. Any of the three
// may be nil; Parse simply skips invoking a nil sink for an event it
// would otherwise have reached.
//
// A sink is handed a read-only view of the decoded event and, for Dump,
// the peer table currently in scope. It must not retain either past the
// call: Parse reuses and discards their backing allocations once the
// sink returns.
type Sinks struct {
	// Dump is invoked for every decoded RIB snapshot record (TABLE_DUMP,
	// TABLE_DUMP_V2 RIB, and BGP4MP_ENTRY). peer is the peer-index table
	// currently in scope -- a synthetic single-entry table for legacy
	// records, or the most recently seen PEER_INDEX_TABLE for v2 RIB
	// records (nil if a v2 RIB record arrives before any PEER_INDEX_TABLE
	// has been seen; the RIB record is still emitted).
	Dump func(rec *RIBRecord, peer *PeerTable, ctx any)

	// State is invoked for every decoded BGP4MP state-change record.
	State func(ev *StateChangeEvent, ctx any)

	// Message is invoked for every decoded BGP4MP message record.
	Message func(ev *MessageEvent, ctx any)

	// Context is the opaque value passed unchanged to every sink call.
	Context any

	// Notice, if non-nil, receives one message for every unknown/
	// deprecated type-subtype pair skipped and every record dropped by a
	// decode failure (spec's "verbose-mode notice"). Parse never fails
	// the whole stream for either reason; Notice is purely diagnostic.
	Notice func(msg string)
}

func (s Sinks) notice(format string, args ...any) {
	if s.Notice == nil {
		return
	}
	s.Notice(fmt.Sprintf(format, args...))
}
