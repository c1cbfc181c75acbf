package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"clienthub-backend/internal/env"
	"clienthub-backend/internal/presence"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
)

var (
	upgrader    websocket.Upgrader
	redisClient *redis.Client
)

func init() {
	upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
	redisClient = redis.NewClient(&redis.Options{
		Addr:     env.Get(env.ChatRedisURL),
		Password: env.Get(env.ChatRedisPass),
		DB:       0,
	})
}

type Handler struct {
	hub         *Hub
	redisClient *redis.Client
	tracker     *presence.Tracker
}

func NewHandler(h *Hub, tracker *presence.Tracker) *Handler {
	return &Handler{
		hub:         h,
		redisClient: redisClient,
		tracker:     tracker,
	}
}

// subscribeToRoomChannel bridges the Redis channel for a room into the hub,
// so an event published on any server instance reaches every connected
// session regardless of which instance holds the socket.
func (h *Handler) subscribeToRoomChannel(roomID string) {
	if _, exists := h.hub.Rooms[roomID]; !exists {
		log.Printf("websocket: room %s not found for subscription", roomID)
		return
	}

	subscriber := h.redisClient.Subscribe(context.Background(), roomID)
	defer subscriber.Close()

	ch := subscriber.Channel()
	for msg := range ch {
		h.hub.Broadcast <- &WSMessage{
			Content:   msg.Payload,
			RoomID:    roomID,
			Timestamp: time.Now().Unix(),
		}
	}
	log.Printf("websocket: unsubscribed from channel %s", roomID)
}

func (h *Handler) CreateRoom(id string) {
	if _, exists := h.hub.Rooms[id]; exists {
		return
	}

	room := &Room{
		Id:      id,
		Clients: make(map[string]*WSClient),
	}

	h.hub.Rooms[id] = room
	setRooms(len(h.hub.Rooms))

	go h.subscribeToRoomChannel(id)
}

func (h *Handler) JoinRoom(w http.ResponseWriter, r *http.Request, req JoinRoomReq) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	cl := &WSClient{
		Conn:    conn,
		Message: make(chan *WSMessage, 10),
		ID:      req.ActorID,
		RoomID:  req.RoomID,
		done:    make(chan struct{}),
	}

	if h.tracker != nil {
		h.tracker.Join(req.RoomID, req.ActorID, req.DisplayName, req.IsClient)
		cl.onActivity = func() {
			h.tracker.Heartbeat(req.RoomID, req.ActorID)
		}
		cl.onClose = func() {
			h.tracker.Leave(req.RoomID, req.ActorID)
		}
	}

	h.hub.Register <- cl

	go cl.keepAlive()
	go cl.writeMessage()
	go cl.readMessage(h.hub)
}

func (h *Handler) GetRooms(w http.ResponseWriter, r *http.Request) {
	rooms := make([]RoomRes, 0)

	for _, room := range h.hub.Rooms {
		rooms = append(rooms, RoomRes{
			ID: room.Id,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(rooms)
}

// NotifyRoom publishes a payload to the room's Redis channel. Local and
// remote hub instances pick it up via their subscriptions.
func (h *Handler) NotifyRoom(roomID string, payload interface{}) {
	messageJSON, err := json.Marshal(payload)
	if err != nil {
		log.Printf("websocket: marshal notification for room %s: %v", roomID, err)
		return
	}

	if err := h.redisClient.Publish(context.Background(), roomID, string(messageJSON)).Err(); err != nil {
		log.Printf("websocket: publish notification to room %s: %v", roomID, err)
	}
}

func (h *Handler) SubscribeToRedisChannels() {
	for _, room := range h.hub.Rooms {
		go h.subscribeToRoomChannel(room.Id)
	}
}
