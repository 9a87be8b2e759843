package forward

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	"github.com/route-beacon/mrtarchive/internal/metrics"
	"github.com/route-beacon/mrtarchive/internal/mrt"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl"
	"go.uber.org/zap"
)

// Envelope is the JSON payload published to the forward topic for each
// archived BGP4MP_MESSAGE event.
type Envelope struct {
	SourceFile string    `json:"source_file"`
	Time       time.Time `json:"time"`
	SrcAS      uint32    `json:"src_as"`
	DstAS      uint32    `json:"dst_as"`
	SrcAddr    string    `json:"src_addr"`
	DstAddr    string    `json:"dst_addr"`
	AddPath    bool      `json:"add_path"`
	Msg        []byte    `json:"msg"`
}

// Producer republishes decoded BGP4MP_MESSAGE events to Kafka for
// downstream consumers that want a live feed rather than the archive
// tables. It is best-effort: a forward failure is logged and counted,
// never fatal to the archive pipeline.
type Producer struct {
	client *kgo.Client
	topic  string
	logger *zap.Logger
}

func NewProducer(brokers []string, clientID, topic string, tlsCfg *tls.Config, saslMech sasl.Mechanism, logger *zap.Logger) (*Producer, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(clientID),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.Lz4Compression()),
	}
	if tlsCfg != nil {
		opts = append(opts, kgo.DialTLSConfig(tlsCfg))
	}
	if saslMech != nil {
		opts = append(opts, kgo.SASL(saslMech))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("forward: new kafka client: %w", err)
	}
	return &Producer{client: client, topic: topic, logger: logger}, nil
}

// Send publishes one decoded message event. It does not block on the
// broker ack; delivery errors surface only through the metrics counter
// and a log line from the produce callback.
func (p *Producer) Send(ctx context.Context, sourceFile string, ev *mrt.MessageEvent) {
	env := Envelope{
		SourceFile: sourceFile,
		Time:       time.Unix(int64(ev.Time.Sec), int64(ev.Time.Nsec)).UTC(),
		SrcAS:      ev.SrcAS,
		DstAS:      ev.DstAS,
		SrcAddr:    ev.Src.String(),
		DstAddr:    ev.Dst.String(),
		AddPath:    ev.AddPath,
		Msg:        ev.Msg,
	}

	value, err := json.Marshal(env)
	if err != nil {
		p.logger.Error("forward: marshal envelope failed", zap.Error(err))
		metrics.ForwardMessagesTotal.WithLabelValues(p.topic, "marshal_error").Inc()
		return
	}

	rec := &kgo.Record{Topic: p.topic, Key: []byte(env.SrcAddr), Value: value}
	p.client.Produce(ctx, rec, func(_ *kgo.Record, err error) {
		if err != nil {
			p.logger.Error("forward: produce failed", zap.Error(err), zap.String("topic", p.topic))
			metrics.ForwardMessagesTotal.WithLabelValues(p.topic, "error").Inc()
			return
		}
		metrics.ForwardMessagesTotal.WithLabelValues(p.topic, "ok").Inc()
	})
}

// Flush blocks until all produced records have been acknowledged or ctx
// expires. Called during graceful shutdown.
func (p *Producer) Flush(ctx context.Context) error {
	return p.client.Flush(ctx)
}

func (p *Producer) Close() {
	p.client.Close()
}
