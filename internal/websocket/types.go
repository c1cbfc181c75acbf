package websocket

type Room struct {
	Id      string               `json:"id"`
	Clients map[string]*WSClient `json:"clients"`
}

type WSMessage struct {
	Content   string `json:"content"`
	RoomID    string `json:"roomId"`
	Timestamp int64  `json:"timestamp"`
}

type JoinRoomReq struct {
	RoomID      string `json:"roomId"`
	ActorID     string `json:"actorId"`
	DisplayName string `json:"displayName"`
	IsClient    bool   `json:"isClient"`
}

type RoomRes struct {
	ID string `json:"id"`
}
