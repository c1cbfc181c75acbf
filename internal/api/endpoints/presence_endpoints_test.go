package endpoints

import (
	"clienthub-backend/internal/api"
	"clienthub-backend/internal/dto"
	"clienthub-backend/internal/presence"
	"clienthub-backend/internal/queue"
	"net/http"
	"testing"
	"time"
)

func setupPresenceHandler(t *testing.T, tracker *presence.Tracker) http.Handler {
	t.Helper()

	queueManager := queue.NewRequestQueueManager(10, 1)
	server := api.NewAPIServer(":0", queueManager, nil, nil, nil, tracker)

	presenceEndpoints := NewPresenceEndpoints(tracker, "/api/ws/v1/presence/rooms/")

	mux := http.NewServeMux()
	mux.HandleFunc("/api/ws/v1/presence/heartbeat", server.MakeHTTPHandleFunc(presenceEndpoints.Heartbeat))
	mux.HandleFunc("/api/ws/v1/presence/rooms/", server.MakeHTTPHandleFunc(presenceEndpoints.Room))

	t.Cleanup(queueManager.Shutdown)

	return mux
}

func TestPresenceRosterReflectsRoomJoins(t *testing.T) {
	tracker := presence.NewTrackerWithClock(45*time.Second, fixedTime)
	handler := setupPresenceHandler(t, tracker)

	// A heartbeat for an actor that never joined a room must not invent a
	// roster entry.
	doJSONRequest[ApiMessageResponse](t, handler, http.MethodPost, "/api/ws/v1/presence/heartbeat", dto.PresenceHeartbeatRequest{
		Room:    "conv-1",
		ActorID: "member-1",
	}, nil, http.StatusOK)

	empty := doJSONRequest[dto.PresenceListResponse](t, handler, http.MethodGet, "/api/ws/v1/presence/rooms/conv-1", nil, nil, http.StatusOK)
	if len(empty.Online) != 0 {
		t.Fatalf("expected empty roster before any join, got %+v", empty.Online)
	}

	// The websocket join path feeds the same tracker the roster reads from.
	tracker.Join("conv-1", "member-1", "Ann Agent", false)
	tracker.Join("conv-1", "client-1", "Pat Client", true)

	roster := doJSONRequest[dto.PresenceListResponse](t, handler, http.MethodGet, "/api/ws/v1/presence/rooms/conv-1", nil, nil, http.StatusOK)
	if len(roster.Online) != 2 {
		t.Fatalf("expected two online actors, got %+v", roster.Online)
	}

	byActor := make(map[string]dto.PresenceEntryResponse, len(roster.Online))
	for _, entry := range roster.Online {
		byActor[entry.ActorID] = entry
	}
	if entry, ok := byActor["member-1"]; !ok || entry.IsClient {
		t.Fatalf("unexpected member entry: %+v", byActor)
	}
	if entry, ok := byActor["client-1"]; !ok || !entry.IsClient {
		t.Fatalf("unexpected client entry: %+v", byActor)
	}

	doJSONRequest[ApiMessageResponse](t, handler, http.MethodPost, "/api/ws/v1/presence/heartbeat", dto.PresenceHeartbeatRequest{
		Room:    "conv-1",
		ActorID: "member-1",
	}, nil, http.StatusOK)

	refreshed := doJSONRequest[dto.PresenceListResponse](t, handler, http.MethodGet, "/api/ws/v1/presence/rooms/conv-1", nil, nil, http.StatusOK)
	if len(refreshed.Online) != 2 {
		t.Fatalf("heartbeat must not change the roster size, got %+v", refreshed.Online)
	}
}
