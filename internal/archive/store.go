package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/route-beacon/mrtarchive/internal/metrics"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const insertRIBSQL = `
	INSERT INTO mrt_rib_entries (record_id, source_file, seq_num, prefix, peer_addr, peer_as,
		origin, as_path, next_hop, med, local_pref, originated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (record_id) DO NOTHING`

const insertStateSQL = `
	INSERT INTO mrt_state_changes (record_id, source_file, event_time, src_as, dst_as,
		src_addr, dst_addr, old_state, new_state)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (record_id) DO NOTHING`

const insertMessageSQL = `
	INSERT INTO mrt_messages (record_id, source_file, event_time, src_as, dst_as,
		src_addr, dst_addr, add_path, raw_msg, raw_compressed)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (record_id) DO NOTHING`

// FlushRIB inserts a batch of RIB rows, skipping rows already archived
// (same record_id). Returns the number of rows actually inserted.
func (s *Store) FlushRIB(ctx context.Context, rows []RIBRow) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	start := time.Now()

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(insertRIBSQL,
			r.RecordID, r.SourceFile, r.SeqNum, r.Prefix, r.PeerAddr, r.PeerAS,
			r.Origin, nilIfEmptyBytes(r.ASPath), nilIfEmptyString(r.NextHop), r.MED, r.LocalPref, r.OriginatedAt,
		)
	}
	n, err := s.sendBatch(ctx, "mrt_rib_entries", batch, len(rows))
	metrics.DBWriteDuration.WithLabelValues("mrt_rib_entries", "insert").Observe(time.Since(start).Seconds())
	return n, err
}

func (s *Store) FlushState(ctx context.Context, rows []StateRow) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	start := time.Now()

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(insertStateSQL,
			r.RecordID, r.SourceFile, r.EventTime, r.SrcAS, r.DstAS,
			r.SrcAddr, r.DstAddr, r.OldState, r.NewState,
		)
	}
	n, err := s.sendBatch(ctx, "mrt_state_changes", batch, len(rows))
	metrics.DBWriteDuration.WithLabelValues("mrt_state_changes", "insert").Observe(time.Since(start).Seconds())
	return n, err
}

func (s *Store) FlushMessages(ctx context.Context, rows []MessageRow) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	start := time.Now()

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(insertMessageSQL,
			r.RecordID, r.SourceFile, r.EventTime, r.SrcAS, r.DstAS,
			r.SrcAddr, r.DstAddr, r.AddPath, r.Raw, r.Compressed,
		)
	}
	n, err := s.sendBatch(ctx, "mrt_messages", batch, len(rows))
	metrics.DBWriteDuration.WithLabelValues("mrt_messages", "insert").Observe(time.Since(start).Seconds())
	return n, err
}

func (s *Store) sendBatch(ctx context.Context, table string, batch *pgx.Batch, want int) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	results := tx.SendBatch(ctx, batch)
	var inserted int64
	for i := 0; i < want; i++ {
		tag, err := results.Exec()
		if err != nil {
			results.Close()
			return 0, fmt.Errorf("insert %s[%d]: %w", table, i, err)
		}
		affected := tag.RowsAffected()
		inserted += affected
		if affected == 0 {
			metrics.DedupConflictsTotal.WithLabelValues(table).Inc()
		}
	}
	if err := results.Close(); err != nil {
		return 0, fmt.Errorf("closing batch results: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}

	metrics.DBRowsAffectedTotal.WithLabelValues(table, "insert").Add(float64(inserted))
	return inserted, nil
}

func nilIfEmptyBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

func nilIfEmptyString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
