package events

import (
	"bytes"
	"context"
	"log"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestPublish_DeliversToSubscriber(t *testing.T) {
	m := NewManager(true)
	defer m.Shutdown()

	received := make(chan Event, 1)
	m.Subscribe(EventOffersIngested, func(ctx context.Context, e Event) error {
		received <- e
		return nil
	})

	m.PublishOffersIngested(context.Background(), "user-1", map[string]int{"amex": 2, "chase": 1}, 3)

	select {
	case e := <-received:
		data, ok := e.Data.(OffersIngestedData)
		if !ok {
			t.Fatalf("event data has type %T, want OffersIngestedData", e.Data)
		}
		if data.UserID != "user-1" || data.Count != 3 {
			t.Errorf("got user=%s count=%d, want user-1 count=3", data.UserID, data.Count)
		}
		if data.Sources["amex"] != 2 || data.Sources["chase"] != 1 {
			t.Errorf("got sources %v, want amex=2 chase=1", data.Sources)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event delivery")
	}
}

func TestPublish_DisabledManagerDropsEvents(t *testing.T) {
	m := NewManager(false)

	m.Subscribe(EventOffersReaped, func(ctx context.Context, e Event) error {
		t.Error("handler invoked on a disabled manager")
		return nil
	})

	m.PublishOffersReaped(context.Background(), "user-1", "1234", 5)
	time.Sleep(50 * time.Millisecond)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestPublish_LogsHandlerError(t *testing.T) {
	var buf syncBuffer
	orig := log.Writer()
	log.SetOutput(&buf)
	defer log.SetOutput(orig)

	m := NewManager(true)
	defer m.Shutdown()

	m.Subscribe(EventOffersPurged, func(ctx context.Context, e Event) error {
		return context.DeadlineExceeded
	})

	m.PublishOffersPurged(context.Background(), "user-1", "amex", 4)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(buf.String(), "event handler error") {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("handler error not logged, log output: %q", buf.String())
}
