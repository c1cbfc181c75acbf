package websocket

// Hub owns the room registry and serialises registration, unregistration and
// broadcast delivery on a single goroutine.
type Hub struct {
	Rooms      map[string]*Room
	Register   chan *WSClient
	Unregister chan *WSClient
	Broadcast  chan *WSMessage
}

func NewHub() *Hub {
	return &Hub{
		Rooms:      make(map[string]*Room),
		Register:   make(chan *WSClient),
		Unregister: make(chan *WSClient),
		Broadcast:  make(chan *WSMessage),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.add(client)
		case client := <-h.Unregister:
			h.remove(client)
		case message := <-h.Broadcast:
			h.deliver(message)
		}
	}
}

// add attaches a client to its room. Rooms are created by the HTTP join path
// before the client registers, so an unknown room means the join raced a
// restart and the registration is dropped.
func (h *Hub) add(client *WSClient) {
	room, ok := h.Rooms[client.RoomID]
	if !ok {
		return
	}
	room.Clients[client.ID] = client
	incConnections()
}

func (h *Hub) remove(client *WSClient) {
	room, ok := h.Rooms[client.RoomID]
	if !ok {
		return
	}
	if _, ok := room.Clients[client.ID]; ok {
		delete(room.Clients, client.ID)
		close(client.Message)
		decConnections()
	}
}

// deliver fans a message out to every client in the room. A client whose send
// buffer is full is disconnected rather than allowed to stall the hub.
func (h *Hub) deliver(message *WSMessage) {
	room, ok := h.Rooms[message.RoomID]
	if !ok {
		return
	}

	delivered := 0
	for id, client := range room.Clients {
		select {
		case client.Message <- message:
			delivered++
		default:
			close(client.Message)
			delete(room.Clients, id)
			decConnections()
		}
	}

	if delivered > 0 {
		addDelivered(delivered)
	}
}
