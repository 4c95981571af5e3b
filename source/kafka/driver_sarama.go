package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/IBM/sarama"

	"modelwrap/internal/frame"
	"modelwrap/internal/logging"
)

type recordID struct {
	topic     string
	partition int32
	offset    int64
}

type SaramaDriver struct {
	cfg   Config
	mode  CommitMode
	cl    sarama.Client
	group sarama.ConsumerGroup
	bp    *Controller
	cp    *Tracker

	mu      sync.Mutex
	pending map[recordID]func()

	ackCh chan recordID
}

func (d *SaramaDriver) Configure(config Config) error {
	d.cfg, d.mode = config, config.CommitMode
	d.pending = make(map[recordID]func())

	d.bp = NewController(config.BackPressure.Capacity, config.BackPressure.Capacity/10, config.BackPressure.CheckInt)
	d.cp = NewTracker(config.BackPressure.Capacity, config.Checkpoint.CommitInt)

	d.ackCh = make(chan recordID, int(config.BackPressure.Capacity))

	ver, err := sarama.ParseKafkaVersion(config.Version)
	if err != nil {
		return fmt.Errorf("kafka: %w", err)
	}
	sc := sarama.NewConfig()
	sc.Version = ver
	sc.Consumer.Return.Errors = true
	if config.TLSEn {
		sc.Net.TLS.Enable = true
	}
	if config.SASLUser != "" {
		sc.Net.SASL.Enable = true
		sc.Net.SASL.User, sc.Net.SASL.Password = config.SASLUser, config.SASLPass
	}
	switch config.StartFrom {
	case "oldest":
		sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	default:
		sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	}

	if d.cl, err = sarama.NewClient(config.Brokers, sc); err != nil {
		return fmt.Errorf("kafka: client: %w", err)
	}
	if d.group, err = sarama.NewConsumerGroupFromClient(config.GroupID, d.cl); err != nil {
		return fmt.Errorf("kafka: consumer group %s: %w", config.GroupID, err)
	}
	return nil
}

func (d *SaramaDriver) Run(ctx context.Context, emit EmitFunc) error {
	handler := &groupHandler{driver: d, emit: emit}
	go func() {
		for err := range d.group.Errors() {
			logging.L().Warn("sarama-driver: consumer error", "err", err)
		}
	}()

	for {
		if err := d.group.Consume(ctx, d.cfg.Topics, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (d *SaramaDriver) Close() error {
	var errs []error
	if d.group != nil {
		errs = append(errs, d.group.Close())
	}
	if d.cl != nil && !d.cl.Closed() {
		errs = append(errs, d.cl.Close())
	}
	if d.bp != nil {
		d.bp.Close()
	}
	return errors.Join(errs...)
}

type groupHandler struct {
	driver *SaramaDriver
	emit   EmitFunc
}

func (*groupHandler) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *groupHandler) Cleanup(_ sarama.ConsumerGroupSession) error {
	h.driver.mu.Lock()
	defer h.driver.mu.Unlock()

	dropped := len(h.driver.pending)
	h.driver.pending = make(map[recordID]func())
	h.driver.cp.Reset()
	if dropped > 0 {
		h.driver.bp.Release(int64(dropped))
		logging.L().Info("sarama-driver: rebalance cleared pending acks", "count", dropped)
	}
	return nil
}

func (h *groupHandler) ConsumeClaim(
	sess sarama.ConsumerGroupSession,
	claim sarama.ConsumerGroupClaim,
) error {
	for {
		if !h.driver.bp.TryAcquire(1) {
			select {
			case rec := <-h.driver.ackCh:
				h.driver.resolveAck(rec)
				continue
			case <-sess.Context().Done():
				return sess.Context().Err()
			}
		}

		select {
		case <-sess.Context().Done():
			h.driver.bp.Release(1)
			return sess.Context().Err()

		case rec := <-h.driver.ackCh:
			h.driver.bp.Release(1)
			h.driver.resolveAck(rec)
			continue

		case msg, ok := <-claim.Messages():
			if !ok {
				h.driver.bp.Release(1)
				return nil
			}

			cp := frame.Checkpoint{Topic: msg.Topic, Partition: msg.Partition, Offset: msg.Offset}
			resolve, err := h.driver.cp.Track(sess.Context(), cp)
			if err != nil {
				h.driver.bp.Release(1)
				return err
			}
			commit := func() { markResolved(sess, cp, resolve()) }

			rec := recordID{msg.Topic, msg.Partition, msg.Offset}
			if h.driver.mode == CommitE2E {
				// registered before emit: a sink may ack synchronously
				h.driver.mu.Lock()
				h.driver.pending[rec] = commit
				h.driver.mu.Unlock()
			}

			f := &frame.Frame{
				Key:        msg.Key,
				Value:      msg.Value,
				Headers:    toHeaderMap(msg.Headers),
				Timestamp:  msg.Timestamp,
				Checkpoint: &cp,
			}
			if err := h.emit(f); err != nil {
				h.driver.mu.Lock()
				delete(h.driver.pending, rec)
				h.driver.mu.Unlock()

				h.driver.bp.Release(1)
				return err
			}

			if h.driver.mode == CommitAuto {
				commit()
				h.driver.bp.Release(1)
			}
		}
	}
}

// markResolved marks the partition up to the longest resolved prefix, so an
// early ack never commits past an unacked record.
func markResolved(sess sarama.ConsumerGroupSession, cp frame.Checkpoint, r Resolution) {
	if r.Advanced {
		sess.MarkOffset(cp.Topic, cp.Partition, r.Next, "")
	}
	if r.CommitDue {
		sess.Commit()
	}
}

// resolveAck runs the commit callback registered for rec and frees its
// backpressure token.
func (d *SaramaDriver) resolveAck(rec recordID) {
	d.mu.Lock()
	cb, ok := d.pending[rec]
	if ok {
		delete(d.pending, rec)
	}
	d.mu.Unlock()
	if !ok {
		return
	}
	cb()
	d.bp.Release(1)
	logging.L().Debug("kafka ack released", "topic", rec.topic, "partition", rec.partition, "offset", rec.offset)
}

func (d *SaramaDriver) OnAck(ack *frame.Ack) {
	if ack == nil || ack.Checkpoint == nil {
		return
	}
	k := ack.Checkpoint
	rec := recordID{k.Topic, k.Partition, k.Offset}

	select {
	case d.ackCh <- rec:
	default:

		select {
		case <-d.ackCh:
		default:
		}
		select {
		case d.ackCh <- rec:
		default:

			logging.L().Warn("sarama-driver: ack channel full; dropping ack", "topic", rec.topic, "partition", rec.partition, "offset", rec.offset)
		}
	}
}

func toHeaderMap(src []*sarama.RecordHeader) map[string][]byte {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string][]byte, len(src))
	for _, h := range src {
		out[string(h.Key)] = h.Value
	}
	return out
}
