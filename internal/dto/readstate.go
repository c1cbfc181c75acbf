package dto

type MarkReadRequest struct {
	ThroughSeq  int64  `json:"throughSeq"`
	PortalToken string `json:"portalToken,omitempty"`
}

type MarkReadResponse struct {
	Moved          bool   `json:"moved"`
	ReadThroughSeq int64  `json:"readThroughSeq"`
	ReadAt         string `json:"readAt,omitempty"`
}

// ScheduleReadRequest arms the dwell timer: the cursor advances only if the
// conversation stays in view for the server-side delay.
type ScheduleReadRequest struct {
	ThroughSeq  int64  `json:"throughSeq"`
	PortalToken string `json:"portalToken,omitempty"`
}

type CancelReadRequest struct {
	PortalToken string `json:"portalToken,omitempty"`
}

type UnreadCountResponse struct {
	ConversationID string `json:"conversationId"`
	Unread         int64  `json:"unread"`
}

type UnreadEntryResponse struct {
	ConversationID string `json:"conversationId"`
	LastReadSeq    int64  `json:"lastReadSeq"`
	Unread         int64  `json:"unread"`
}

type UnreadCountsResponse struct {
	Entries []UnreadEntryResponse `json:"entries"`
}
