package endpoints

import (
	"clienthub-backend/internal/dto"
	"clienthub-backend/internal/presence"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type PresenceEndpoints interface {
	Heartbeat(http.ResponseWriter, *http.Request) error
	Room(http.ResponseWriter, *http.Request) error
}

type presenceEndpoints struct {
	tracker    *presence.Tracker
	roomPrefix string
}

func NewPresenceEndpoints(tracker *presence.Tracker, roomPrefix string) PresenceEndpoints {
	return &presenceEndpoints{
		tracker:    tracker,
		roomPrefix: roomPrefix,
	}
}

func (h *presenceEndpoints) Heartbeat(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost: h.handleHeartbeat,
	})
}

func (h *presenceEndpoints) Room(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet: h.handleListOnline,
	})
}

func (h *presenceEndpoints) handleHeartbeat(w http.ResponseWriter, r *http.Request) error {
	if h.tracker == nil {
		return presenceUnavailable()
	}

	var req dto.PresenceHeartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request payload",
			ErrorLog:   fmt.Errorf("decode heartbeat request: %w", err),
		}
	}

	room := strings.TrimSpace(req.Room)
	actorID := strings.TrimSpace(req.ActorID)
	if room == "" || actorID == "" {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Room and actorId are required",
			ErrorLog:   fmt.Errorf("heartbeat missing room or actor"),
		}
	}

	h.tracker.Heartbeat(room, actorID)

	return WriteJSON(w, http.StatusOK, ApiMessageResponse{Message: "OK"})
}

func (h *presenceEndpoints) handleListOnline(w http.ResponseWriter, r *http.Request) error {
	if h.tracker == nil {
		return presenceUnavailable()
	}

	room := strings.Trim(strings.TrimPrefix(r.URL.Path, h.roomPrefix), "/")
	if room == "" || strings.Contains(room, "/") {
		return &HTTPError{
			StatusCode: http.StatusNotFound,
			Message:    "Room not found",
			ErrorLog:   fmt.Errorf("invalid presence room path: %s", r.URL.Path),
		}
	}

	entries := h.tracker.ListOnline(room)
	resp := dto.PresenceListResponse{
		Room:   room,
		Online: make([]dto.PresenceEntryResponse, len(entries)),
	}
	for i, entry := range entries {
		resp.Online[i] = dto.PresenceEntryResponse{
			ActorID:     entry.ActorID,
			DisplayName: entry.DisplayName,
			IsClient:    entry.IsClient,
			LastSeen:    entry.LastSeen.UTC().Format(time.RFC3339),
		}
	}

	return WriteJSON(w, http.StatusOK, resp)
}

func presenceUnavailable() error {
	return &HTTPError{
		StatusCode: http.StatusServiceUnavailable,
		Message:    "Presence not available",
		ErrorLog:   fmt.Errorf("presence tracker not configured"),
	}
}
