package archive

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/route-beacon/mrtarchive/internal/mrt"
)

// RIBRow is one archived peer's view of one prefix from a TABLE_DUMP or
// TABLE_DUMP_V2 RIB record.
type RIBRow struct {
	RecordID     []byte
	SourceFile   string
	SeqNum       uint32
	Prefix       string
	PeerAddr     string
	PeerAS       uint32
	Origin       uint8
	ASPath       []byte
	NextHop      string
	MED          uint32
	LocalPref    uint32
	OriginatedAt time.Time
}

// StateRow is one archived BGP4MP_STATE_CHANGE event.
type StateRow struct {
	RecordID   []byte
	SourceFile string
	EventTime  time.Time
	SrcAS      uint32
	DstAS      uint32
	SrcAddr    string
	DstAddr    string
	OldState   uint16
	NewState   uint16
}

// MessageRow is one archived BGP4MP_MESSAGE event.
type MessageRow struct {
	RecordID   []byte
	SourceFile string
	EventTime  time.Time
	SrcAS      uint32
	DstAS      uint32
	SrcAddr    string
	DstAddr    string
	AddPath    bool
	Raw        []byte
	Compressed bool
}

func timeVal(t mrt.TimeVal) time.Time {
	return time.Unix(int64(t.Sec), int64(t.Nsec)).UTC()
}

// BuildRIBRows converts one decoded RIB record into one archive row per
// entry, resolving each entry's PeerIdx against peer. peer is nil when a
// TABLE_DUMP_V2 RIB record arrives before any PEER_INDEX_TABLE; the
// rows then carry an empty peer address and a zero peer AS.
func BuildRIBRows(sourceFile string, rec *mrt.RIBRecord, peer *mrt.PeerTable) ([]RIBRow, error) {
	prefixStr := fmt.Sprintf("%s/%d", rec.Prefix.Addr.String(), rec.Prefix.PrefixLen)

	rows := make([]RIBRow, 0, len(rec.Entries))
	for _, e := range rec.Entries {
		var peerAddr string
		var peerAS uint32
		if peer != nil && int(e.PeerIdx) < len(peer.Peers) {
			p := peer.Peers[e.PeerIdx]
			peerAddr = p.Addr.String()
			peerAS = p.ASNum
		}

		var pathIDBytes [4]byte
		binary.BigEndian.PutUint32(pathIDBytes[:], e.PathID)
		id := RecordID(
			[]byte(sourceFile),
			[]byte(prefixStr),
			[]byte(peerAddr),
			pathIDBytes[:],
		)

		rows = append(rows, RIBRow{
			RecordID:     id,
			SourceFile:   sourceFile,
			SeqNum:       rec.SeqNum,
			Prefix:       prefixStr,
			PeerAddr:     peerAddr,
			PeerAS:       peerAS,
			Origin:       e.Origin,
			ASPath:       e.ASPath,
			NextHop:      e.NextHop.String(),
			MED:          e.MED,
			LocalPref:    e.LocalPref,
			OriginatedAt: time.Unix(int64(e.Originated), 0).UTC(),
		})
	}
	return rows, nil
}

func BuildStateRow(sourceFile string, ev *mrt.StateChangeEvent) StateRow {
	t := timeVal(ev.Time)
	return StateRow{
		RecordID: RecordID(
			[]byte(sourceFile),
			[]byte(t.Format(time.RFC3339Nano)),
			[]byte(ev.Src.String()),
			[]byte(ev.Dst.String()),
		),
		SourceFile: sourceFile,
		EventTime:  t,
		SrcAS:      ev.SrcAS,
		DstAS:      ev.DstAS,
		SrcAddr:    ev.Src.String(),
		DstAddr:    ev.Dst.String(),
		OldState:   ev.OldState,
		NewState:   ev.NewState,
	}
}

func BuildMessageRow(sourceFile string, ev *mrt.MessageEvent, compress bool) MessageRow {
	t := timeVal(ev.Time)
	raw := ev.Msg
	if compress {
		raw = compressRaw(ev.Msg)
	}
	return MessageRow{
		RecordID: RecordID(
			[]byte(sourceFile),
			[]byte(t.Format(time.RFC3339Nano)),
			[]byte(ev.Src.String()),
			[]byte(ev.Dst.String()),
			ev.Msg,
		),
		SourceFile: sourceFile,
		EventTime:  t,
		SrcAS:      ev.SrcAS,
		DstAS:      ev.DstAS,
		SrcAddr:    ev.Src.String(),
		DstAddr:    ev.Dst.String(),
		AddPath:    ev.AddPath,
		Raw:        raw,
		Compressed: compress,
	}
}
