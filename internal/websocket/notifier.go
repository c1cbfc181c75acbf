package websocket

import (
	"context"
	"fmt"
	"time"

	"clienthub-backend/internal/notify"
)

// TenantNotificationRoom is the room every team console session of a tenant
// listens on for cross-conversation updates.
func TenantNotificationRoom(tenantID string) string {
	if tenantID == "" {
		return ""
	}
	return fmt.Sprintf("tenant:%s:notifications", tenantID)
}

// RoomNotifier relays read-cursor events from the dispatcher into the
// conversation room and the tenant notification room. Handlers broadcast
// their own writes, but cursor moves also happen off the request path (the
// mark-read scheduler), so the relay hangs off the dispatcher instead.
type RoomNotifier struct {
	publish func(roomID string, payload interface{}) error
}

func NewRoomNotifier() *RoomNotifier {
	return &RoomNotifier{publish: Publish}
}

func (n *RoomNotifier) Register(dispatcher notify.Dispatcher) {
	dispatcher.Subscribe(notify.EventConversationRead, n.relayRead)
}

func (n *RoomNotifier) relayRead(_ context.Context, event notify.Event) error {
	payload := map[string]interface{}{
		"type":           string(event.Type),
		"conversationId": event.ConversationID,
		"read":           event.Payload,
		"broadcastedAt":  event.Timestamp.UTC().Format(time.RFC3339),
	}

	if err := n.publish(event.ConversationID, payload); err != nil {
		return fmt.Errorf("relay read event %s: %w", event.ID, err)
	}
	if room := TenantNotificationRoom(event.TenantID); room != "" {
		if err := n.publish(room, payload); err != nil {
			return fmt.Errorf("relay read event %s: %w", event.ID, err)
		}
	}
	return nil
}
