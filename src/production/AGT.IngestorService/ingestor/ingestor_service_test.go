package agtingestor

import (
	"context"
	"sync"
	"testing"
	"time"

	config "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Config"
	"gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.IngestorService/client"
	logger "gitlab.com/agrisense1/agt.telemetry_server/src/production/AGT.Logger"
)

type fakePusher struct {
	mu      sync.Mutex
	batches [][]map[string]interface{}
	pushed  chan int
}

func newFakePusher() *fakePusher {
	return &fakePusher{pushed: make(chan int, 16)}
}

func (f *fakePusher) PushTelemetry(_ context.Context, payloads []map[string]interface{}) (*client.TelemetryBatchResponse, error) {
	f.mu.Lock()
	copied := make([]map[string]interface{}, len(payloads))
	copy(copied, payloads)
	f.batches = append(f.batches, copied)
	f.mu.Unlock()
	f.pushed <- len(copied)
	return &client.TelemetryBatchResponse{Accepted: len(copied)}, nil
}

func (f *fakePusher) batchSizes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	sizes := make([]int, len(f.batches))
	for i, b := range f.batches {
		sizes[i] = len(b)
	}
	return sizes
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 1 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 0 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

func newTestIngestor(t *testing.T, batchSize int, batchWindow time.Duration) (*Ingestor, *fakePusher) {
	t.Helper()

	cfg := &config.IngestorConfig{
		BatchSize:   batchSize,
		BatchWindow: batchWindow,
	}
	log := logger.NewLogger(&config.LoggingConfig{Level: "error", Format: "text", Output: "stderr"})

	pusher := newFakePusher()
	return New(cfg, pusher, log), pusher
}

func waitForPush(t *testing.T, pusher *fakePusher) int {
	t.Helper()
	select {
	case n := <-pusher.pushed:
		return n
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a batch push")
		return 0
	}
}

func TestBatchWriterFlushesOnSize(t *testing.T) {
	ing, pusher := newTestIngestor(t, 2, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ing.batchWriter(ctx)
	}()

	for n := 0; n < 3; n++ {
		ing.msgCh <- envelope{Payload: map[string]interface{}{"seq": n}, ReceivedAt: time.Now()}
	}

	if got := waitForPush(t, pusher); got != 2 {
		t.Fatalf("first flush size = %d, want 2", got)
	}

	close(ing.done)
	<-writerDone

	sizes := pusher.batchSizes()
	if len(sizes) != 2 || sizes[1] != 1 {
		t.Fatalf("batch sizes = %v, want [2 1]", sizes)
	}
}

func TestBatchWriterFlushesOnWindow(t *testing.T) {
	ing, pusher := newTestIngestor(t, 100, 30*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ing.batchWriter(ctx)
	}()

	ing.msgCh <- envelope{Payload: map[string]interface{}{"mac_address": "aa:bb"}, ReceivedAt: time.Now()}

	if got := waitForPush(t, pusher); got != 1 {
		t.Fatalf("window flush size = %d, want 1", got)
	}

	close(ing.done)
	<-writerDone
}

func TestBatchWriterFlushesRemainderOnShutdown(t *testing.T) {
	ing, pusher := newTestIngestor(t, 100, time.Hour)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ing.batchWriter(context.Background())
	}()

	ing.msgCh <- envelope{Payload: map[string]interface{}{"seq": 1}, ReceivedAt: time.Now()}
	ing.msgCh <- envelope{Payload: map[string]interface{}{"seq": 2}, ReceivedAt: time.Now()}
	close(ing.done)
	<-writerDone

	if got := waitForPush(t, pusher); got != 2 {
		t.Fatalf("shutdown flush size = %d, want 2", got)
	}
}

func TestOnMessageAfterStopDoesNotPanic(t *testing.T) {
	ing, _ := newTestIngestor(t, 100, time.Hour)

	ing.wg.Add(1)
	go func() {
		defer ing.wg.Done()
		ing.batchWriter(context.Background())
	}()

	ing.Stop()

	// A handler the broker quiesce missed must not hit a closed channel.
	ing.onMessage(nil, &fakeMessage{
		topic:   "telemetry/24:6f:28:a4:cf:10",
		payload: []byte(`{"temperature": 21.5}`),
	})
}

func TestOnMessageBackfillsAddressFromTopic(t *testing.T) {
	ing, _ := newTestIngestor(t, 10, time.Hour)

	ing.onMessage(nil, &fakeMessage{
		topic:   "telemetry/24:6f:28:a4:cf:10",
		payload: []byte(`{"temperature": 21.5}`),
	})

	env := <-ing.msgCh
	if got := env.Payload["mac_address"]; got != "24:6f:28:a4:cf:10" {
		t.Fatalf("mac_address = %v, want topic segment", got)
	}
}

func TestOnMessageKeepsPayloadAddress(t *testing.T) {
	ing, _ := newTestIngestor(t, 10, time.Hour)

	ing.onMessage(nil, &fakeMessage{
		topic:   "telemetry/ff:ff:ff:ff:ff:ff",
		payload: []byte(`{"mac_address": "24:6f:28:a4:cf:10", "temperature": 21.5}`),
	})

	env := <-ing.msgCh
	if got := env.Payload["mac_address"]; got != "24:6f:28:a4:cf:10" {
		t.Fatalf("mac_address = %v, want payload value kept", got)
	}
}

func TestOnMessageDropsNonJSON(t *testing.T) {
	ing, _ := newTestIngestor(t, 10, time.Hour)

	ing.onMessage(nil, &fakeMessage{
		topic:   "telemetry/24:6f:28:a4:cf:10",
		payload: []byte("not json"),
	})

	select {
	case env := <-ing.msgCh:
		t.Fatalf("non-JSON message was queued: %v", env)
	default:
	}
}

func TestMacFromTopic(t *testing.T) {
	cases := map[string]string{
		"telemetry/24:6f:28:a4:cf:10":       "24:6f:28:a4:cf:10",
		"telemetry/24:6f:28:a4:cf:10/state": "24:6f:28:a4:cf:10",
		"telemetry/":                        "",
		"telemetry":                         "",
	}
	for topic, want := range cases {
		if got := macFromTopic(topic); got != want {
			t.Errorf("macFromTopic(%q) = %q, want %q", topic, got, want)
		}
	}
}
