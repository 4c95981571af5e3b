package kafka

import (
	"errors"
	"fmt"
	"sync"

	"github.com/IBM/sarama"

	"modelwrap/internal/frame"
	"modelwrap/internal/logging"
	"modelwrap/sink"
)

type Config struct {
	Brokers  []string `koanf:"brokers"`
	Topic    string   `koanf:"topic"`
	Acks     int16    `koanf:"required_acks"` // 0,1,-1
	Version  string   `koanf:"version"`
	ClientID string   `koanf:"client_id"`
}

type driver struct {
	cfg Config
	p   sarama.AsyncProducer
	ack sink.EmitFn

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New returns an unconfigured Kafka sink.
func New() sink.Adapter { return &driver{} }

func (d *driver) Configure(c any) error {
	cfg, ok := c.(Config)
	if !ok {
		return fmt.Errorf("kafka-sink: want Config, got %T", c)
	}
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return errors.New("kafka-sink: brokers and topic are required")
	}
	d.cfg = cfg

	sc := sarama.NewConfig()
	sc.Producer.RequiredAcks = sarama.RequiredAcks(cfg.Acks)
	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true
	if cfg.ClientID != "" {
		sc.ClientID = cfg.ClientID
	}
	if cfg.Version != "" {
		ver, err := sarama.ParseKafkaVersion(cfg.Version)
		if err != nil {
			return fmt.Errorf("kafka-sink: %w", err)
		}
		sc.Version = ver
	}
	p, err := sarama.NewAsyncProducer(cfg.Brokers, sc)
	if err != nil {
		return fmt.Errorf("kafka-sink: producer: %w", err)
	}
	d.start(p)
	return nil
}

// start takes ownership of p and drains its result channels. The producer
// config must have Return.Successes and Return.Errors set.
func (d *driver) start(p sarama.AsyncProducer) {
	d.p = p
	d.wg.Add(2)
	go func() {
		defer d.wg.Done()
		for m := range p.Successes() {
			if cp, ok := m.Metadata.(*frame.Checkpoint); ok && cp != nil && d.ack != nil {
				d.ack(cp)
			}
		}
	}()
	go func() {
		defer d.wg.Done()
		for pe := range p.Errors() {
			cp, _ := pe.Msg.Metadata.(*frame.Checkpoint)
			logging.L().Error("kafka-sink: produce failed", "topic", pe.Msg.Topic, "checkpoint", cp.String(), "err", pe.Err)
		}
	}()
}

func (d *driver) Push(f *frame.Frame) error {
	if d.p == nil {
		return errors.New("kafka-sink: not configured")
	}
	msg := &sarama.ProducerMessage{
		Topic:    d.cfg.Topic,
		Value:    sarama.ByteEncoder(f.Value),
		Metadata: f.Checkpoint,
	}
	if len(f.Key) > 0 {
		msg.Key = sarama.ByteEncoder(f.Key)
	}
	for k, v := range f.Headers {
		msg.Headers = append(msg.Headers, sarama.RecordHeader{Key: []byte(k), Value: v})
	}
	if !f.Timestamp.IsZero() {
		msg.Timestamp = f.Timestamp
	}
	d.p.Input() <- msg
	return nil
}

/* ────────── sink.AckAware ────────── */
func (d *driver) BindAck(fn sink.EmitFn) { d.ack = fn }

func (d *driver) Close() error {
	d.closeOnce.Do(func() {
		if d.p == nil {
			return
		}
		d.p.AsyncClose()
		d.wg.Wait()
	})
	return nil
}

func init() { sink.Register("kafka", New) }
