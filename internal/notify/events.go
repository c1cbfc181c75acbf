package notify

import (
	"time"

	"clienthub-backend/internal/model"
)

type EventType string

const (
	EventMessageCreated     EventType = "message.created"
	EventConversationRead   EventType = "conversation.read"
	EventStatusChanged      EventType = "conversation.status"
	EventParticipantAdded   EventType = "participant.added"
	EventParticipantRemoved EventType = "participant.removed"
)

// Event is the envelope published on every conversation-scoped change.
// Events for the same conversation are delivered to subscribers in publish
// order; no ordering is promised across conversations.
type Event struct {
	ID             string      `json:"id"`
	Type           EventType   `json:"type"`
	TenantID       string      `json:"tenantId"`
	ConversationID string      `json:"conversationId"`
	Timestamp      time.Time   `json:"timestamp"`
	Payload        interface{} `json:"payload"`
}

type MessageCreatedPayload struct {
	MessageID  string          `json:"messageId"`
	Seq        int64           `json:"seq"`
	SenderKind model.ActorKind `json:"senderKind"`
	SenderID   string          `json:"senderId,omitempty"`
	Body       string          `json:"body"`
	CreatedAt  string          `json:"createdAt"`
}

type ConversationReadPayload struct {
	ActorKind      model.ActorKind `json:"actorKind"`
	ActorID        string          `json:"actorId"`
	ReadThroughSeq int64           `json:"readThroughSeq"`
	ReadAt         string          `json:"readAt"`
}

type StatusChangedPayload struct {
	OldStatus model.ConversationStatus `json:"oldStatus"`
	NewStatus model.ConversationStatus `json:"newStatus"`
}

type ParticipantPayload struct {
	ActorKind   model.ActorKind `json:"actorKind"`
	ActorID     string          `json:"actorId"`
	DisplayName string          `json:"displayName,omitempty"`
}
