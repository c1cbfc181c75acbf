package main

import (
	"clienthub-backend/internal/api"
	"clienthub-backend/internal/api/router"
	"clienthub-backend/internal/database"
	"clienthub-backend/internal/env"
	"clienthub-backend/internal/notify"
	"clienthub-backend/internal/queue"
	"clienthub-backend/internal/websocket"
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

	if webhookURL := env.Get(env.WebhookURL); webhookURL != "" {
		notify.NewWebhookNotifier(webhookURL).Register(dispatcher)
	}
	websocket.NewRoomNotifier().Register(dispatcher)

	server := api.NewAPIServer(
		":82",
		queueManager,
		db,
		nil,
		dispatcher,
		nil,
		router.UtilsRoutes("/api/portal/v1"),
		router.ConversationPortalRoutes("/api/portal/v1"),
	)

	server.Run()
}
