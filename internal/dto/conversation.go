package dto

type ConversationMetadata struct {
	ConversationID string `json:"conversationId"`
	Type           string `json:"type"`
	Subject        string `json:"subject,omitempty"`
	ClientID       string `json:"clientId,omitempty"`
	Status         string `json:"status"`
	LastSeq        int64  `json:"lastSeq"`
	CreatedAt      string `json:"createdAt"`
	UpdatedAt      string `json:"updatedAt"`
	LastMessageAt  string `json:"lastMessageAt"`
}

type ParticipantResponse struct {
	ActorKind   string `json:"actorKind"`
	ActorID     string `json:"actorId"`
	DisplayName string `json:"displayName,omitempty"`
	Active      bool   `json:"active"`
	LastReadSeq int64  `json:"lastReadSeq"`
	LastReadAt  string `json:"lastReadAt,omitempty"`
	JoinedAt    string `json:"joinedAt"`
}

type MessageResponse struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
	Seq            int64  `json:"seq"`
	SenderKind     string `json:"senderKind"`
	SenderID       string `json:"senderId,omitempty"`
	Body           string `json:"body"`
	Deleted        bool   `json:"deleted,omitempty"`
	CreatedAt      string `json:"createdAt"`
}

type ParticipantPayload struct {
	Kind        string `json:"kind"`
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
}

type CreateConversationRequest struct {
	Type           string               `json:"type"`
	Subject        string               `json:"subject,omitempty"`
	ClientID       string               `json:"clientId,omitempty"`
	Participants   []ParticipantPayload `json:"participants,omitempty"`
	InitialMessage string               `json:"initialMessage,omitempty"`
}

type CreateConversationResponse struct {
	Conversation ConversationMetadata  `json:"conversation"`
	Participants []ParticipantResponse `json:"participants"`
	Message      *MessageResponse      `json:"message,omitempty"`
	PortalToken  string                `json:"portalToken,omitempty"`
}

type PostMessageRequest struct {
	Body string `json:"body"`
}

type PostMessageResponse struct {
	Message MessageResponse `json:"message"`
}

type PostPortalMessageRequest struct {
	Body        string `json:"body"`
	PortalToken string `json:"portalToken"`
}

type AddParticipantRequest struct {
	Participant ParticipantPayload `json:"participant"`
}

type RemoveParticipantRequest struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

type TransitionStatusRequest struct {
	Status string `json:"status"`
}

type ConversationResponse struct {
	Conversation ConversationMetadata `json:"conversation"`
}

type ListConversationsResponse struct {
	Conversations []ConversationMetadata `json:"conversations"`
}

type ListMessagesResponse struct {
	Messages []MessageResponse `json:"messages"`
	// NextAfterSeq is passed back as the afterSeq query parameter to fetch the
	// following page; zero means this page was the last.
	NextAfterSeq int64 `json:"nextAfterSeq,omitempty"`
}

type ListParticipantsResponse struct {
	Participants []ParticipantResponse `json:"participants"`
}
