package main

import (
	"clienthub-backend/internal/api"
	"clienthub-backend/internal/api/router"
	"clienthub-backend/internal/database"
	"clienthub-backend/internal/notify"
	"clienthub-backend/internal/presence"
	"clienthub-backend/internal/queue"
	"clienthub-backend/internal/websocket"
	"context"
	"log"
)

func main() {
	queueManager := queue.NewRequestQueueManager(10, 10)
	db, err := database.NewDatabase()
	if err != nil {
		log.Fatalf("db init failed: %v", err)
	}

	dispatcher := notify.NewDispatcher(256)
	defer dispatcher.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracker := presence.NewTracker()
	go tracker.Run(ctx, presence.DefaultSweepInterval)

	hub := websocket.NewHub()
	go hub.Run()
	handler := websocket.NewHandler(hub, tracker)

	server := api.NewAPIServer(
		":83",
		queueManager,
		db,
		handler,
		dispatcher,
		tracker,
		router.UtilsRoutes("/api/ws/v1"),
		router.ConversationWebsocketRoutes("/api/ws/v1"),
		router.PresenceRoutes("/api/ws/v1"),
	)

	handler.SubscribeToRedisChannels()

	server.Run()
}
