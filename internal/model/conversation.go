package model

import "fmt"

type ConversationType string

const (
	// ConversationTypeClient is a thread between the team and exactly one client.
	ConversationTypeClient ConversationType = "client"
	// ConversationTypeTeam is internal to the team and never visible to clients.
	ConversationTypeTeam ConversationType = "team"
	// ConversationTypeClientNote is a team-only thread attached to a client record.
	ConversationTypeClientNote ConversationType = "client_note"
)

func (t ConversationType) Valid() bool {
	switch t {
	case ConversationTypeClient, ConversationTypeTeam, ConversationTypeClientNote:
		return true
	}
	return false
}

// ClientVisible reports whether client actors may ever see this thread type.
func (t ConversationType) ClientVisible() bool {
	return t == ConversationTypeClient
}

type ConversationStatus string

const (
	ConversationStatusActive   ConversationStatus = "active"
	ConversationStatusClosed   ConversationStatus = "closed"
	ConversationStatusArchived ConversationStatus = "archived"
)

func (s ConversationStatus) Valid() bool {
	switch s {
	case ConversationStatusActive, ConversationStatusClosed, ConversationStatusArchived:
		return true
	}
	return false
}

// statusTransitions holds the allowed lifecycle edges. Closed and archived
// conversations can only be brought back to active, never converted into
// each other.
var statusTransitions = map[ConversationStatus][]ConversationStatus{
	ConversationStatusActive:   {ConversationStatusClosed, ConversationStatusArchived},
	ConversationStatusClosed:   {ConversationStatusActive},
	ConversationStatusArchived: {ConversationStatusActive},
}

func CanTransitionStatus(from, to ConversationStatus) bool {
	for _, allowed := range statusTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

type ActorKind string

const (
	ActorKindTeamMember ActorKind = "team_member"
	ActorKindClient     ActorKind = "client"
	ActorKindSystem     ActorKind = "system"
)

func ConversationPK(tenantID, conversationID string) string {
	return fmt.Sprintf("%s#%s", tenantID, conversationID)
}

func ParticipantPK(conversationID string, kind ActorKind, actorID string) string {
	return fmt.Sprintf("%s#%s#%s", conversationID, kind, actorID)
}

// MessagePK zero-pads the sequence so lexicographic key order matches
// numeric sequence order.
func MessagePK(conversationID string, seq int64) string {
	return fmt.Sprintf("%s#%012d", conversationID, seq)
}

func ClientPK(tenantID, clientID string) string {
	return fmt.Sprintf("%s#%s", tenantID, clientID)
}

type ConversationItem struct {
	PK             string             `dynamodbav:"pk"`
	ConversationID string             `dynamodbav:"conversationId"`
	TenantID       string             `dynamodbav:"tenantId"`
	Type           ConversationType   `dynamodbav:"type"`
	Subject        string             `dynamodbav:"subject,omitempty"`
	ClientID       string             `dynamodbav:"clientId,omitempty"`
	Status         ConversationStatus `dynamodbav:"status"`
	// LastSeq is the highest message sequence assigned so far. It is only
	// ever moved by an atomic ADD, which makes it the per-conversation
	// serialization point for concurrent senders.
	LastSeq       int64  `dynamodbav:"lastSeq"`
	CreatedAt     string `dynamodbav:"createdAt"`
	UpdatedAt     string `dynamodbav:"updatedAt"`
	LastMessageAt string `dynamodbav:"lastMessageAt"`
}

// ParticipantItem is a (conversation, actor) membership row. Rows are never
// physically deleted; removal flips Active so historical read-state survives.
type ParticipantItem struct {
	PK             string    `dynamodbav:"pk"`
	TenantID       string    `dynamodbav:"tenantId"`
	ConversationID string    `dynamodbav:"conversationId"`
	ActorKind      ActorKind `dynamodbav:"actorKind"`
	ActorID        string    `dynamodbav:"actorId"`
	DisplayName    string    `dynamodbav:"displayName,omitempty"`
	Active         bool      `dynamodbav:"active"`
	// LastReadSeq/LastReadAt form the read watermark: everything at or below
	// LastReadSeq counts as seen. Zero/empty means the participant has read
	// nothing yet. Advances are monotonic.
	LastReadSeq int64  `dynamodbav:"lastReadSeq"`
	LastReadAt  string `dynamodbav:"lastReadAt,omitempty"`
	JoinedAt    string `dynamodbav:"joinedAt"`
}

type MessageItem struct {
	PK             string    `dynamodbav:"pk"`
	TenantID       string    `dynamodbav:"tenantId"`
	ConversationID string    `dynamodbav:"conversationId"`
	MessageID      string    `dynamodbav:"messageId"`
	Seq            int64     `dynamodbav:"seq"`
	SenderKind     ActorKind `dynamodbav:"senderKind"`
	SenderID       string    `dynamodbav:"senderId,omitempty"`
	Body           string    `dynamodbav:"body"`
	AttachmentID   string    `dynamodbav:"attachmentId,omitempty"`
	Deleted        bool      `dynamodbav:"deleted"`
	CreatedAt      string    `dynamodbav:"createdAt"`
}
