package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestDispatcherPreservesPublishOrder(t *testing.T) {
	d := NewDispatcher(64)

	var mu sync.Mutex
	var seen []int64
	d.Subscribe(EventMessageCreated, func(ctx context.Context, event Event) error {
		payload := event.Payload.(MessageCreatedPayload)
		mu.Lock()
		seen = append(seen, payload.Seq)
		mu.Unlock()
		return nil
	})

	for i := int64(1); i <= 20; i++ {
		d.Publish(Event{
			Type:           EventMessageCreated,
			ConversationID: "conv-1",
			Payload:        MessageCreatedPayload{Seq: i},
		})
	}
	d.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 20 {
		t.Fatalf("expected 20 events, got %d", len(seen))
	}
	for i, seq := range seen {
		if seq != int64(i+1) {
			t.Fatalf("event %d out of order: got seq %d", i, seq)
		}
	}
}

func TestDispatcherSubscriberErrorDoesNotStopDelivery(t *testing.T) {
	d := NewDispatcher(8)

	failing := errors.New("delivery failed")
	d.Subscribe(EventConversationRead, func(ctx context.Context, event Event) error {
		return failing
	})

	delivered := make(chan struct{}, 1)
	d.Subscribe(EventConversationRead, func(ctx context.Context, event Event) error {
		delivered <- struct{}{}
		return nil
	})

	d.Publish(Event{Type: EventConversationRead, ConversationID: "conv-1"})

	select {
	case <-delivered:
	case <-time.After(time.Second):
		t.Fatal("second subscriber never received the event")
	}
	d.Close()
}

func TestDispatcherPublishAfterFullBufferDoesNotBlock(t *testing.T) {
	d := NewDispatcher(1)

	block := make(chan struct{})
	d.Subscribe(EventMessageCreated, func(ctx context.Context, event Event) error {
		<-block
		return nil
	})

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			d.Publish(Event{Type: EventMessageCreated, ConversationID: "conv-1"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a saturated queue")
	}
	close(block)
	d.Close()
}
