package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	RecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mrtarchiver_records_total",
			Help: "Total MRT records dispatched, by type and subtype.",
		},
		[]string{"type", "subtype"},
	)

	DecodeErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mrtarchiver_decode_errors_total",
			Help: "Record decode failures by stage and reason; the dispatcher drops these and continues.",
		},
		[]string{"stage", "reason"},
	)

	DBWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mrtarchiver_db_write_duration_seconds",
			Help:    "DB write latency.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		},
		[]string{"table", "op"},
	)

	DBRowsAffectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mrtarchiver_db_rows_affected_total",
			Help: "DB rows written.",
		},
		[]string{"table", "op"},
	)

	DedupConflictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mrtarchiver_dedup_conflicts_total",
			Help: "Archive writes skipped by ON CONFLICT DO NOTHING (record already archived).",
		},
		[]string{"table"},
	)

	BatchSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mrtarchiver_batch_size",
			Help:    "Batch sizes flushed to the archive store.",
			Buckets: []float64{1, 10, 50, 100, 250, 500, 1000, 2000, 5000},
		},
		[]string{"table"},
	)

	LastRecordTimestamp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mrtarchiver_last_record_timestamp_seconds",
			Help: "MRT record timestamp of the most recently archived record, by input file.",
		},
		[]string{"file"},
	)

	ForwardMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mrtarchiver_forward_messages_total",
			Help: "BGP4MP messages republished to Kafka.",
		},
		[]string{"topic", "result"},
	)
)

var registerOnce sync.Once

func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RecordsTotal,
			DecodeErrorsTotal,
			DBWriteDuration,
			DBRowsAffectedTotal,
			DedupConflictsTotal,
			BatchSize,
			LastRecordTimestamp,
			ForwardMessagesTotal,
		)
	})
}
