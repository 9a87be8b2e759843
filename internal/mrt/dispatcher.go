package mrt

import (
	"errors"
	"io"
)

// peerContext tracks the two independent notions of "current peer
// table" spec.md §4.6 describes: the TABLE_DUMP_V2 index (indexed,
// replaced wholesale by each PEER_INDEX_TABLE record) and a synthetic
// single-entry substitute (synthetic, created lazily on the first
// legacy TABLE_DUMP/BGP4MP_ENTRY record and mutated in place by every
// subsequent one). The two never interact: legacy records always use
// synthetic even once indexed has been populated.
type peerContext struct {
	indexed   *PeerTable
	synthetic *PeerTable
}

func (pc *peerContext) legacyTable() *PeerTable {
	if pc.synthetic == nil {
		pc.synthetic = &PeerTable{Peers: make([]PeerEntry, 1)}
	}
	return pc.synthetic
}

// Parse drives the byte reader over r, decoding MRT records in file
// order and invoking sinks for every event that decodes successfully.
// A record that fails to decode is dropped (and reported through
// sinks.Notice, if set); the stream continues from the next record
// header. Parse returns nil at a clean end-of-stream, and a non-nil
// error only when the underlying reader fails outside a record
// boundary (truncation mid-record, or any other I/O error) -- per
// spec.md §7, such errors are fatal to the whole decode loop.
func Parse(r io.Reader, sinks Sinks) error {
	var pc peerContext

	for {
		hdr, payload, err := ReadRecord(r)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		dispatchRecord(hdr, payload, &pc, sinks)
	}
}

func dispatchRecord(hdr RecordHeader, payload []byte, pc *peerContext, sinks Sinks) {
	switch hdr.Type {
	case TypeTableDump:
		peer := pc.legacyTable()
		rec, err := decodeTableDumpV1(hdr, payload, peer)
		if err != nil {
			sinks.notice("mrt: dropping table_dump record: %v", err)
			return
		}
		if sinks.Dump != nil {
			sinks.Dump(rec, peer, sinks.Context)
		}

	case TypeTableDumpV2:
		switch hdr.Subtype {
		case SubPeerIndexTable:
			table, err := decodePeerIndex(payload)
			if err != nil {
				sinks.notice("mrt: dropping peer_index_table record: %v", err)
				return
			}
			pc.indexed = table

		default:
			rec, err := decodeRIBv2(hdr, payload)
			if err != nil {
				sinks.notice("mrt: dropping table_dump_v2 rib record: %v", err)
				return
			}
			if sinks.Dump != nil {
				sinks.Dump(rec, pc.indexed, sinks.Context)
			}
		}

	case TypeBGP4MP, TypeBGP4MPET:
		et := hdr.Type == TypeBGP4MPET
		switch hdr.Subtype {
		case subBGP4MPStateChange, subBGP4MPStateChangeAS4:
			ev, err := decodeState(hdr, payload, et)
			if err != nil {
				sinks.notice("mrt: dropping bgp4mp state_change record: %v", err)
				return
			}
			if sinks.State != nil {
				sinks.State(ev, sinks.Context)
			}

		case subBGP4MPEntry:
			peer := pc.legacyTable()
			rec, err := decodeEntry(hdr, payload, et, peer)
			if err != nil {
				sinks.notice("mrt: dropping bgp4mp_entry record: %v", err)
				return
			}
			if sinks.Dump != nil {
				sinks.Dump(rec, peer, sinks.Context)
			}

		case subBGP4MPMessage, subBGP4MPMessageAS4,
			subBGP4MPMessageLocal, subBGP4MPMessageAS4Local,
			subBGP4MPMessageAddPath, subBGP4MPMessageAS4AddPath,
			subBGP4MPMessageLocalAddPath, subBGP4MPMessageAS4LocalAddPath:
			ev, err := decodeMessage(hdr, payload, et)
			if err != nil {
				sinks.notice("mrt: dropping bgp4mp message record: %v", err)
				return
			}
			if sinks.Message != nil {
				sinks.Message(ev, sinks.Context)
			}

		default:
			sinks.notice("mrt: skipping unknown bgp4mp subtype %d", hdr.Subtype)
		}

	default:
		sinks.notice("mrt: skipping unknown/deprecated record type %d subtype %d", hdr.Type, hdr.Subtype)
	}
}
