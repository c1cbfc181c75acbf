package websocket

import (
	"testing"
	"time"

	"clienthub-backend/internal/model"
	"clienthub-backend/internal/notify"
)

func TestRoomNotifierRelaysReadEvents(t *testing.T) {
	type delivery struct {
		roomID  string
		payload interface{}
	}
	deliveries := make(chan delivery, 4)

	notifier := &RoomNotifier{publish: func(roomID string, payload interface{}) error {
		deliveries <- delivery{roomID: roomID, payload: payload}
		return nil
	}}

	dispatcher := notify.NewDispatcher(8)
	defer dispatcher.Close()
	notifier.Register(dispatcher)

	dispatcher.Publish(notify.Event{
		ID:             "evt-1",
		Type:           notify.EventConversationRead,
		TenantID:       "tenant-1",
		ConversationID: "conv-1",
		Timestamp:      time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC),
		Payload: notify.ConversationReadPayload{
			ActorKind:      model.ActorKindClient,
			ActorID:        "client-1",
			ReadThroughSeq: 3,
			ReadAt:         "2026-03-01T15:00:00Z",
		},
	})

	rooms := make(map[string]bool)
	for i := 0; i < 2; i++ {
		select {
		case d := <-deliveries:
			rooms[d.roomID] = true

			body, ok := d.payload.(map[string]interface{})
			if !ok {
				t.Fatalf("unexpected payload type %T", d.payload)
			}
			if body["type"] != string(notify.EventConversationRead) {
				t.Fatalf("unexpected payload type field: %v", body["type"])
			}
			read, ok := body["read"].(notify.ConversationReadPayload)
			if !ok {
				t.Fatalf("unexpected read payload %T", body["read"])
			}
			if read.ActorID != "client-1" || read.ReadThroughSeq != 3 {
				t.Fatalf("unexpected read payload: %+v", read)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for relayed read event")
		}
	}

	if !rooms["conv-1"] {
		t.Fatal("conversation room did not receive the read event")
	}
	if !rooms[TenantNotificationRoom("tenant-1")] {
		t.Fatal("tenant notification room did not receive the read event")
	}
}

func TestRoomNotifierIgnoresOtherEventTypes(t *testing.T) {
	deliveries := make(chan string, 4)

	notifier := &RoomNotifier{publish: func(roomID string, payload interface{}) error {
		deliveries <- roomID
		return nil
	}}

	dispatcher := notify.NewDispatcher(8)
	notifier.Register(dispatcher)

	dispatcher.Publish(notify.Event{
		ID:             "evt-2",
		Type:           notify.EventMessageCreated,
		TenantID:       "tenant-1",
		ConversationID: "conv-1",
		Timestamp:      time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC),
	})
	dispatcher.Close()

	select {
	case roomID := <-deliveries:
		t.Fatalf("unexpected relay to room %s", roomID)
	default:
	}
}
