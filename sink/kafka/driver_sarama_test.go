package kafka

import (
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"

	"modelwrap/internal/frame"
)

func TestDriver_AcksOnProducerSuccess(t *testing.T) {
	sc := mocks.NewTestConfig()
	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true
	mp := mocks.NewAsyncProducer(t, sc)
	mp.ExpectInputAndSucceed()

	acked := make(chan *frame.Checkpoint, 1)
	d := &driver{cfg: Config{Topic: "out"}}
	d.BindAck(func(cp *frame.Checkpoint) { acked <- cp })
	d.start(mp)

	cp := &frame.Checkpoint{Topic: "in", Partition: 3, Offset: 7}
	if err := d.Push(&frame.Frame{Key: []byte("k"), Value: []byte("v"), Checkpoint: cp}); err != nil {
		t.Fatalf("push: %v", err)
	}

	select {
	case got := <-acked:
		if got != cp {
			t.Fatalf("acked %v, want %v", got, cp)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no ack after producer success")
	}
	if err := d.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestDriver_NoAckOnProducerError(t *testing.T) {
	sc := mocks.NewTestConfig()
	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true
	mp := mocks.NewAsyncProducer(t, sc)
	mp.ExpectInputAndFail(sarama.ErrOutOfBrokers)

	acked := make(chan *frame.Checkpoint, 1)
	d := &driver{cfg: Config{Topic: "out"}}
	d.BindAck(func(cp *frame.Checkpoint) { acked <- cp })
	d.start(mp)

	_ = d.Push(&frame.Frame{Value: []byte("v"), Checkpoint: &frame.Checkpoint{Topic: "in"}})
	if err := d.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	select {
	case got := <-acked:
		t.Fatalf("unexpected ack %v", got)
	default:
	}
}

func TestDriver_ConfigureRejects(t *testing.T) {
	d := &driver{}
	if err := d.Configure("nope"); err == nil {
		t.Fatal("want error for wrong config type")
	}
	if err := d.Configure(Config{Topic: "x"}); err == nil {
		t.Fatal("want error without brokers")
	}
	if err := d.Push(&frame.Frame{}); err == nil {
		t.Fatal("want error pushing to an unconfigured sink")
	}
}
