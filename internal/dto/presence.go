package dto

type PresenceHeartbeatRequest struct {
	Room    string `json:"room"`
	ActorID string `json:"actorId"`
}

type PresenceEntryResponse struct {
	ActorID     string `json:"actorId"`
	DisplayName string `json:"displayName,omitempty"`
	IsClient    bool   `json:"isClient"`
	LastSeen    string `json:"lastSeen"`
}

type PresenceListResponse struct {
	Room   string                  `json:"room"`
	Online []PresenceEntryResponse `json:"online"`
}
