package endpoints

import (
	"clienthub-backend/internal/dto"
	"clienthub-backend/internal/model"
	"clienthub-backend/internal/notify"
	conversationservice "clienthub-backend/internal/service/conversation"
	"clienthub-backend/internal/websocket"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type ConversationEndpoints interface {
	PortalConversations(http.ResponseWriter, *http.Request) error
	PortalConversation(http.ResponseWriter, *http.Request) error
	Conversations(http.ResponseWriter, *http.Request) error
	Conversation(http.ResponseWriter, *http.Request) error
	Websocket(http.ResponseWriter, *http.Request) error
	NotificationsWebsocket(http.ResponseWriter, *http.Request) error
}

type ConversationPaths struct {
	PortalConversationsPath  string
	PortalConversationPrefix string
	TenantConversationsPath  string
	TenantConversationPrefix string
	WebsocketPrefix          string
	TenantNotificationPath   string
}

type conversationEndpoints struct {
	service *conversationservice.Service
	handler *websocket.Handler
	paths   ConversationPaths
}

func NewConversationEndpoints(service *conversationservice.Service, handler *websocket.Handler, prefix string) ConversationEndpoints {
	base := strings.TrimRight(prefix, "/")
	return NewConversationEndpointsWithPaths(service, handler, ConversationPaths{
		PortalConversationsPath:  base + "/portal/conversations",
		PortalConversationPrefix: base + "/portal/conversations/",
		TenantConversationsPath:  base + "/conversations",
		TenantConversationPrefix: base + "/conversations/",
		WebsocketPrefix:          base + "/ws/conversations/",
		TenantNotificationPath:   base + "/ws/notifications",
	})
}

func NewConversationEndpointsWithPaths(service *conversationservice.Service, handler *websocket.Handler, paths ConversationPaths) ConversationEndpoints {
	return &conversationEndpoints{
		service: service,
		handler: handler,
		paths:   paths,
	}
}

func (h *conversationEndpoints) PortalConversations(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet: h.handlePortalListConversations,
	})
}

func (h *conversationEndpoints) PortalConversation(w http.ResponseWriter, r *http.Request) error {
	_, action, err := h.extractConversationAction(r.URL.Path, h.paths.PortalConversationPrefix)
	if err != nil {
		return err
	}

	switch {
	case len(action) == 0:
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodGet: h.handlePortalGetConversation,
		})
	case len(action) == 1 && action[0] == "messages":
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodGet:  h.handlePortalListMessages,
			http.MethodPost: h.handlePortalPostMessage,
		})
	default:
		return notFoundError(fmt.Errorf("invalid portal conversation path: %s", r.URL.Path))
	}
}

func (h *conversationEndpoints) Conversations(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet:  h.handleListConversations,
		http.MethodPost: h.handleCreateConversation,
	})
}

func (h *conversationEndpoints) Conversation(w http.ResponseWriter, r *http.Request) error {
	_, action, err := h.extractConversationAction(r.URL.Path, h.paths.TenantConversationPrefix)
	if err != nil {
		return err
	}

	switch {
	case len(action) == 0:
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodGet: h.handleGetConversation,
		})
	case len(action) == 1 && action[0] == "messages":
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodGet:  h.handleListMessages,
			http.MethodPost: h.handlePostMessage,
		})
	case len(action) == 2 && action[0] == "messages":
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodDelete: h.handleDeleteMessage,
		})
	case len(action) == 1 && action[0] == "participants":
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodGet:    h.handleListParticipants,
			http.MethodPost:   h.handleAddParticipant,
			http.MethodDelete: h.handleRemoveParticipant,
		})
	case len(action) == 1 && action[0] == "status":
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodPost: h.handleTransitionStatus,
		})
	default:
		return notFoundError(fmt.Errorf("invalid conversation path: %s", r.URL.Path))
	}
}

func (h *conversationEndpoints) Websocket(w http.ResponseWriter, r *http.Request) error {
	convID, err := h.extractFromPath(r.URL.Path, h.paths.WebsocketPrefix)
	if err != nil {
		return err
	}
	convID = strings.Trim(convID, "/")
	if convID == "" {
		return notFoundError(fmt.Errorf("websocket conversation id missing"))
	}

	if h.handler == nil {
		return &HTTPError{
			StatusCode: http.StatusServiceUnavailable,
			Message:    "Websocket not available",
			ErrorLog:   fmt.Errorf("websocket handler missing"),
		}
	}

	role := r.URL.Query().Get("role")
	switch role {
	case "client":
		token := r.URL.Query().Get("token")
		access, err := h.service.ValidatePortalAccess(token)
		if err != nil {
			return h.serviceError(err)
		}
		actor := conversationservice.ActorFromPortalAccess(access)
		if _, err := h.service.GetConversation(r.Context(), actor, convID); err != nil {
			return h.serviceError(err)
		}
		h.ensureRoom(convID)
		h.handler.JoinRoom(w, r, websocket.JoinRoomReq{
			RoomID:   convID,
			ActorID:  access.ClientID,
			IsClient: true,
		})
		return nil

	case "member", "agent", "team":
		identity, err := h.websocketIdentity(r)
		if err != nil {
			return err
		}
		actor := conversationservice.ActorFromIdentity(identity)
		if _, err := h.service.GetConversation(r.Context(), actor, convID); err != nil {
			return h.serviceError(err)
		}
		h.ensureRoom(convID)
		h.handler.JoinRoom(w, r, websocket.JoinRoomReq{
			RoomID:  convID,
			ActorID: identity.MemberID,
		})
		return nil

	default:
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Missing or invalid role parameter",
			ErrorLog:   fmt.Errorf("websocket role invalid: %s", role),
		}
	}
}

func (h *conversationEndpoints) NotificationsWebsocket(w http.ResponseWriter, r *http.Request) error {
	if strings.TrimSpace(h.paths.TenantNotificationPath) == "" {
		return notFoundError(fmt.Errorf("notification websocket path not configured"))
	}

	if h.handler == nil {
		return &HTTPError{
			StatusCode: http.StatusServiceUnavailable,
			Message:    "Websocket not available",
			ErrorLog:   fmt.Errorf("notification websocket handler missing"),
		}
	}

	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		return &HTTPError{
			StatusCode: http.StatusUnauthorized,
			Message:    "Missing token",
			ErrorLog:   fmt.Errorf("notification websocket missing token"),
		}
	}

	identity, err := h.service.IdentityFromToken(token)
	if err != nil {
		return h.serviceError(err)
	}

	roomID := tenantNotificationRoomID(identity.TenantID)
	if roomID == "" {
		return &HTTPError{
			StatusCode: http.StatusInternalServerError,
			Message:    "Unable to resolve notification room",
			ErrorLog:   fmt.Errorf("notification websocket invalid tenant room"),
		}
	}

	h.ensureRoom(roomID)
	h.handler.JoinRoom(w, r, websocket.JoinRoomReq{
		RoomID:  roomID,
		ActorID: identity.MemberID,
	})
	return nil
}

func (h *conversationEndpoints) handleListConversations(w http.ResponseWriter, r *http.Request) error {
	actor, err := h.teamActor(r)
	if err != nil {
		return err
	}

	result, err := h.service.ListConversations(r.Context(), actor, 50)
	if err != nil {
		return h.serviceError(err)
	}

	resp := dto.ListConversationsResponse{Conversations: make([]dto.ConversationMetadata, len(result.Conversations))}
	for i, conv := range result.Conversations {
		resp.Conversations[i] = toConversationMetadata(conv)
	}

	return WriteJSON(w, http.StatusOK, resp)
}

func (h *conversationEndpoints) handleCreateConversation(w http.ResponseWriter, r *http.Request) error {
	actor, err := h.teamActor(r)
	if err != nil {
		return err
	}

	var req dto.CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request payload",
			ErrorLog:   fmt.Errorf("decode create conversation request: %w", err),
		}
	}

	participants := make([]conversationservice.ParticipantParams, len(req.Participants))
	for i, p := range req.Participants {
		participants[i] = conversationservice.ParticipantParams{
			Kind:        model.ActorKind(p.Kind),
			ID:          strings.TrimSpace(p.ID),
			DisplayName: strings.TrimSpace(p.DisplayName),
		}
	}

	result, err := h.service.CreateConversation(r.Context(), actor, conversationservice.CreateConversationParams{
		Type:           model.ConversationType(req.Type),
		Subject:        strings.TrimSpace(req.Subject),
		ClientID:       strings.TrimSpace(req.ClientID),
		Participants:   participants,
		InitialMessage: req.InitialMessage,
	})
	if err != nil {
		return h.serviceError(err)
	}

	h.ensureRoom(result.Conversation.ConversationID)
	if result.Message != nil {
		h.broadcastMessage(result.Conversation, *result.Message)
	}

	resp := dto.CreateConversationResponse{
		Conversation: toConversationMetadata(result.Conversation),
		Participants: toParticipantResponses(result.Participants),
		PortalToken:  result.PortalToken,
	}
	if result.Message != nil {
		msg := toMessageResponse(*result.Message)
		resp.Message = &msg
	}

	return WriteJSON(w, http.StatusCreated, resp)
}

func (h *conversationEndpoints) handleGetConversation(w http.ResponseWriter, r *http.Request) error {
	convID, _, err := h.extractConversationAction(r.URL.Path, h.paths.TenantConversationPrefix)
	if err != nil {
		return err
	}

	actor, err := h.teamActor(r)
	if err != nil {
		return err
	}

	conversation, err := h.service.GetConversation(r.Context(), actor, convID)
	if err != nil {
		return h.serviceError(err)
	}

	return WriteJSON(w, http.StatusOK, dto.ConversationResponse{
		Conversation: toConversationMetadata(conversation),
	})
}

func (h *conversationEndpoints) handleListMessages(w http.ResponseWriter, r *http.Request) error {
	convID, _, err := h.extractConversationAction(r.URL.Path, h.paths.TenantConversationPrefix)
	if err != nil {
		return err
	}

	actor, err := h.teamActor(r)
	if err != nil {
		return err
	}

	afterSeq, limit, pageErr := parseMessagePage(r)
	if pageErr != nil {
		return pageErr
	}

	result, err := h.service.ListMessages(r.Context(), actor, convID, afterSeq, limit)
	if err != nil {
		return h.serviceError(err)
	}

	return WriteJSON(w, http.StatusOK, toListMessagesResponse(result))
}

func (h *conversationEndpoints) handlePostMessage(w http.ResponseWriter, r *http.Request) error {
	convID, _, err := h.extractConversationAction(r.URL.Path, h.paths.TenantConversationPrefix)
	if err != nil {
		return err
	}

	actor, err := h.teamActor(r)
	if err != nil {
		return err
	}

	var req dto.PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request payload",
			ErrorLog:   fmt.Errorf("decode message request: %w", err),
		}
	}

	result, err := h.service.AppendMessage(r.Context(), actor, convID, req.Body)
	if err != nil {
		return h.serviceError(err)
	}

	h.broadcastMessage(result.Conversation, result.Message)

	return WriteJSON(w, http.StatusCreated, dto.PostMessageResponse{
		Message: toMessageResponse(result.Message),
	})
}

func (h *conversationEndpoints) handleDeleteMessage(w http.ResponseWriter, r *http.Request) error {
	convID, action, err := h.extractConversationAction(r.URL.Path, h.paths.TenantConversationPrefix)
	if err != nil {
		return err
	}

	seq, parseErr := strconv.ParseInt(action[1], 10, 64)
	if parseErr != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid message sequence",
			ErrorLog:   fmt.Errorf("parse message seq %q: %w", action[1], parseErr),
		}
	}

	actor, err := h.teamActor(r)
	if err != nil {
		return err
	}

	if err := h.service.DeleteMessage(r.Context(), actor, convID, seq); err != nil {
		return h.serviceError(err)
	}

	return WriteJSON(w, http.StatusOK, ApiMessageResponse{Message: "Message deleted"})
}

func (h *conversationEndpoints) handleListParticipants(w http.ResponseWriter, r *http.Request) error {
	convID, _, err := h.extractConversationAction(r.URL.Path, h.paths.TenantConversationPrefix)
	if err != nil {
		return err
	}

	actor, err := h.teamActor(r)
	if err != nil {
		return err
	}

	participants, err := h.service.ListParticipants(r.Context(), actor, convID)
	if err != nil {
		return h.serviceError(err)
	}

	return WriteJSON(w, http.StatusOK, dto.ListParticipantsResponse{
		Participants: toParticipantResponses(participants),
	})
}

func (h *conversationEndpoints) handleAddParticipant(w http.ResponseWriter, r *http.Request) error {
	convID, _, err := h.extractConversationAction(r.URL.Path, h.paths.TenantConversationPrefix)
	if err != nil {
		return err
	}

	actor, err := h.teamActor(r)
	if err != nil {
		return err
	}

	var req dto.AddParticipantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request payload",
			ErrorLog:   fmt.Errorf("decode add participant request: %w", err),
		}
	}

	participant, err := h.service.AddParticipant(r.Context(), actor, convID, conversationservice.ParticipantParams{
		Kind:        model.ActorKind(req.Participant.Kind),
		ID:          strings.TrimSpace(req.Participant.ID),
		DisplayName: strings.TrimSpace(req.Participant.DisplayName),
	})
	if err != nil {
		return h.serviceError(err)
	}

	h.broadcastParticipant(notify.EventParticipantAdded, actor.TenantID, convID, participant)

	return WriteJSON(w, http.StatusCreated, toParticipantResponse(participant))
}

func (h *conversationEndpoints) handleRemoveParticipant(w http.ResponseWriter, r *http.Request) error {
	convID, _, err := h.extractConversationAction(r.URL.Path, h.paths.TenantConversationPrefix)
	if err != nil {
		return err
	}

	actor, err := h.teamActor(r)
	if err != nil {
		return err
	}

	var req dto.RemoveParticipantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request payload",
			ErrorLog:   fmt.Errorf("decode remove participant request: %w", err),
		}
	}

	if err := h.service.RemoveParticipant(r.Context(), actor, convID, model.ActorKind(req.Kind), strings.TrimSpace(req.ID)); err != nil {
		return h.serviceError(err)
	}

	h.broadcastParticipant(notify.EventParticipantRemoved, actor.TenantID, convID, model.ParticipantItem{
		ConversationID: convID,
		ActorKind:      model.ActorKind(req.Kind),
		ActorID:        strings.TrimSpace(req.ID),
	})

	return WriteJSON(w, http.StatusOK, ApiMessageResponse{Message: "Participant removed"})
}

func (h *conversationEndpoints) handleTransitionStatus(w http.ResponseWriter, r *http.Request) error {
	convID, _, err := h.extractConversationAction(r.URL.Path, h.paths.TenantConversationPrefix)
	if err != nil {
		return err
	}

	actor, err := h.teamActor(r)
	if err != nil {
		return err
	}

	var req dto.TransitionStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request payload",
			ErrorLog:   fmt.Errorf("decode status request: %w", err),
		}
	}

	conversation, err := h.service.TransitionStatus(r.Context(), actor, convID, model.ConversationStatus(req.Status))
	if err != nil {
		return h.serviceError(err)
	}

	payload := map[string]interface{}{
		"type":          string(notify.EventStatusChanged),
		"conversation":  toConversationMetadata(conversation),
		"broadcastedAt": time.Now().UTC().Format(time.RFC3339),
	}
	h.notifyRoom(conversation.ConversationID, payload)
	h.notifyTenant(conversation.TenantID, payload)

	return WriteJSON(w, http.StatusOK, dto.ConversationResponse{
		Conversation: toConversationMetadata(conversation),
	})
}

func (h *conversationEndpoints) handlePortalListConversations(w http.ResponseWriter, r *http.Request) error {
	actor, err := h.portalActor(r, "")
	if err != nil {
		return err
	}

	result, err := h.service.ListConversations(r.Context(), actor, 50)
	if err != nil {
		return h.serviceError(err)
	}

	resp := dto.ListConversationsResponse{Conversations: make([]dto.ConversationMetadata, len(result.Conversations))}
	for i, conv := range result.Conversations {
		resp.Conversations[i] = toConversationMetadata(conv)
	}

	return WriteJSON(w, http.StatusOK, resp)
}

func (h *conversationEndpoints) handlePortalGetConversation(w http.ResponseWriter, r *http.Request) error {
	convID, _, err := h.extractConversationAction(r.URL.Path, h.paths.PortalConversationPrefix)
	if err != nil {
		return err
	}

	actor, err := h.portalActor(r, "")
	if err != nil {
		return err
	}

	conversation, err := h.service.GetConversation(r.Context(), actor, convID)
	if err != nil {
		return h.serviceError(err)
	}

	return WriteJSON(w, http.StatusOK, dto.ConversationResponse{
		Conversation: toConversationMetadata(conversation),
	})
}

func (h *conversationEndpoints) handlePortalListMessages(w http.ResponseWriter, r *http.Request) error {
	convID, _, err := h.extractConversationAction(r.URL.Path, h.paths.PortalConversationPrefix)
	if err != nil {
		return err
	}

	actor, err := h.portalActor(r, "")
	if err != nil {
		return err
	}

	afterSeq, limit, pageErr := parseMessagePage(r)
	if pageErr != nil {
		return pageErr
	}

	result, err := h.service.ListMessages(r.Context(), actor, convID, afterSeq, limit)
	if err != nil {
		return h.serviceError(err)
	}

	return WriteJSON(w, http.StatusOK, toListMessagesResponse(result))
}

func (h *conversationEndpoints) handlePortalPostMessage(w http.ResponseWriter, r *http.Request) error {
	convID, _, err := h.extractConversationAction(r.URL.Path, h.paths.PortalConversationPrefix)
	if err != nil {
		return err
	}

	var req dto.PostPortalMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request payload",
			ErrorLog:   fmt.Errorf("decode portal message request: %w", err),
		}
	}

	actor, err := h.portalActor(r, req.PortalToken)
	if err != nil {
		return err
	}

	result, err := h.service.AppendMessage(r.Context(), actor, convID, req.Body)
	if err != nil {
		return h.serviceError(err)
	}

	h.broadcastMessage(result.Conversation, result.Message)

	return WriteJSON(w, http.StatusCreated, dto.PostMessageResponse{
		Message: toMessageResponse(result.Message),
	})
}

func (h *conversationEndpoints) teamActor(r *http.Request) (conversationservice.Actor, error) {
	identity, err := h.service.IdentityFromAuthorizationHeader(r.Header.Get("Authorization"))
	if err != nil {
		return conversationservice.Actor{}, h.serviceError(err)
	}
	return conversationservice.ActorFromIdentity(identity), nil
}

// portalActor resolves the client actor from the portal token, read from the
// request body token, the portalToken query parameter, or the X-Portal-Token
// header in that order.
func (h *conversationEndpoints) portalActor(r *http.Request, bodyToken string) (conversationservice.Actor, error) {
	token := strings.TrimSpace(bodyToken)
	if token == "" {
		token = strings.TrimSpace(r.URL.Query().Get("portalToken"))
	}
	if token == "" {
		token = strings.TrimSpace(r.Header.Get("X-Portal-Token"))
	}

	access, err := h.service.ValidatePortalAccess(token)
	if err != nil {
		return conversationservice.Actor{}, h.serviceError(err)
	}
	return conversationservice.ActorFromPortalAccess(access), nil
}

func (h *conversationEndpoints) websocketIdentity(r *http.Request) (conversationservice.Identity, error) {
	token := ExtractTokenFromHeaders(r)
	if token == "" {
		token = r.URL.Query().Get("token")
	}

	identity, err := h.service.IdentityFromToken(token)
	if err != nil {
		return conversationservice.Identity{}, h.serviceError(err)
	}
	return identity, nil
}

func parseMessagePage(r *http.Request) (int64, int, error) {
	var afterSeq int64
	if raw := strings.TrimSpace(r.URL.Query().Get("afterSeq")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			return 0, 0, &HTTPError{
				StatusCode: http.StatusBadRequest,
				Message:    "Invalid afterSeq parameter",
				ErrorLog:   fmt.Errorf("parse afterSeq %q: %v", raw, err),
			}
		}
		afterSeq = parsed
	}

	var limit int
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return 0, 0, &HTTPError{
				StatusCode: http.StatusBadRequest,
				Message:    "Invalid limit parameter",
				ErrorLog:   fmt.Errorf("parse limit %q: %v", raw, err),
			}
		}
		limit = parsed
	}

	return afterSeq, limit, nil
}

// extractConversationAction splits a conversation sub-path into the
// conversation id and the remaining action segments.
func (h *conversationEndpoints) extractConversationAction(path, prefix string) (string, []string, error) {
	if prefix == "" {
		return "", nil, notFoundError(fmt.Errorf("conversation route not configured"))
	}
	trimmed := strings.TrimPrefix(path, prefix)
	if trimmed == path {
		return "", nil, notFoundError(fmt.Errorf("conversation path mismatch: %s", path))
	}
	parts := strings.Split(strings.Trim(trimmed, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		return "", nil, notFoundError(fmt.Errorf("conversation id missing: %s", path))
	}
	return parts[0], parts[1:], nil
}

func (h *conversationEndpoints) extractFromPath(path, prefix string) (string, error) {
	if prefix == "" {
		return "", notFoundError(fmt.Errorf("websocket not configured"))
	}
	trimmed := strings.TrimPrefix(path, prefix)
	if trimmed == path {
		return "", notFoundError(fmt.Errorf("path mismatch: %s", path))
	}
	return trimmed, nil
}

func (h *conversationEndpoints) ensureRoom(conversationID string) {
	if conversationID == "" || h.handler == nil {
		return
	}
	h.handler.CreateRoom(conversationID)
}

func (h *conversationEndpoints) broadcastMessage(conversation model.ConversationItem, message model.MessageItem) {
	payload := map[string]interface{}{
		"type":          string(notify.EventMessageCreated),
		"conversation":  toConversationMetadata(conversation),
		"message":       toMessageResponse(message),
		"broadcastedAt": time.Now().UTC().Format(time.RFC3339),
	}

	h.notifyRoom(conversation.ConversationID, payload)
	h.notifyTenant(conversation.TenantID, payload)
}

func (h *conversationEndpoints) broadcastParticipant(eventType notify.EventType, tenantID, conversationID string, participant model.ParticipantItem) {
	payload := map[string]interface{}{
		"type":           string(eventType),
		"conversationId": conversationID,
		"participant":    toParticipantResponse(participant),
		"broadcastedAt":  time.Now().UTC().Format(time.RFC3339),
	}

	h.notifyRoom(conversationID, payload)
	h.notifyTenant(tenantID, payload)
}

func (h *conversationEndpoints) notifyTenant(tenantID string, payload interface{}) {
	roomID := tenantNotificationRoomID(tenantID)
	h.notifyRoom(roomID, payload)
}

func (h *conversationEndpoints) notifyRoom(roomID string, payload interface{}) {
	if roomID == "" {
		return
	}

	if err := websocket.Publish(roomID, payload); err != nil {
		fmt.Printf("failed to publish websocket payload for room %s: %v\n", roomID, err)
	}

	if h.handler != nil {
		h.handler.NotifyRoom(roomID, payload)
	}
}

func (h *conversationEndpoints) serviceError(err error) error {
	if err == nil {
		return nil
	}

	svcErr, ok := err.(*conversationservice.Error)
	if !ok {
		return &HTTPError{
			StatusCode: http.StatusInternalServerError,
			Message:    "Internal server error",
			ErrorLog:   fmt.Errorf("conversation service: %w", err),
		}
	}

	var logErr error
	if svcErr.Err != nil {
		logErr = fmt.Errorf("%s: %w", svcErr.Message, svcErr.Err)
	} else {
		logErr = svcErr
	}

	switch svcErr.Code {
	case conversationservice.ErrorCodeValidation:
		return &HTTPError{StatusCode: http.StatusBadRequest, Message: svcErr.Message, ErrorLog: logErr}
	case conversationservice.ErrorCodeUnauthorized:
		return &HTTPError{StatusCode: http.StatusUnauthorized, Message: svcErr.Message, ErrorLog: logErr}
	case conversationservice.ErrorCodeForbidden:
		return &HTTPError{StatusCode: http.StatusForbidden, Message: svcErr.Message, ErrorLog: logErr}
	case conversationservice.ErrorCodeNotFound:
		return &HTTPError{StatusCode: http.StatusNotFound, Message: svcErr.Message, ErrorLog: logErr}
	case conversationservice.ErrorCodeConversationClosed, conversationservice.ErrorCodeInvalidTransition:
		return &HTTPError{StatusCode: http.StatusConflict, Message: svcErr.Message, ErrorLog: logErr}
	default:
		return &HTTPError{StatusCode: http.StatusInternalServerError, Message: "Internal server error", ErrorLog: logErr}
	}
}

func notFoundError(logErr error) error {
	return &HTTPError{
		StatusCode: http.StatusNotFound,
		Message:    "Conversation not found",
		ErrorLog:   logErr,
	}
}

func toConversationMetadata(item model.ConversationItem) dto.ConversationMetadata {
	return dto.ConversationMetadata{
		ConversationID: item.ConversationID,
		Type:           string(item.Type),
		Subject:        item.Subject,
		ClientID:       item.ClientID,
		Status:         string(item.Status),
		LastSeq:        item.LastSeq,
		CreatedAt:      item.CreatedAt,
		UpdatedAt:      item.UpdatedAt,
		LastMessageAt:  item.LastMessageAt,
	}
}

// toMessageResponse redacts the body of deleted messages but keeps the row
// itself so sequence numbers stay dense for paginating clients.
func toMessageResponse(item model.MessageItem) dto.MessageResponse {
	body := item.Body
	if item.Deleted {
		body = ""
	}
	return dto.MessageResponse{
		MessageID:      item.MessageID,
		ConversationID: item.ConversationID,
		Seq:            item.Seq,
		SenderKind:     string(item.SenderKind),
		SenderID:       item.SenderID,
		Body:           body,
		Deleted:        item.Deleted,
		CreatedAt:      item.CreatedAt,
	}
}

func toListMessagesResponse(result conversationservice.ListMessagesResult) dto.ListMessagesResponse {
	resp := dto.ListMessagesResponse{
		Messages:     make([]dto.MessageResponse, len(result.Messages)),
		NextAfterSeq: result.NextAfterSeq,
	}
	for i, msg := range result.Messages {
		resp.Messages[i] = toMessageResponse(msg)
	}
	return resp
}

func toParticipantResponse(item model.ParticipantItem) dto.ParticipantResponse {
	return dto.ParticipantResponse{
		ActorKind:   string(item.ActorKind),
		ActorID:     item.ActorID,
		DisplayName: item.DisplayName,
		Active:      item.Active,
		LastReadSeq: item.LastReadSeq,
		LastReadAt:  item.LastReadAt,
		JoinedAt:    item.JoinedAt,
	}
}

func toParticipantResponses(items []model.ParticipantItem) []dto.ParticipantResponse {
	out := make([]dto.ParticipantResponse, len(items))
	for i, item := range items {
		out[i] = toParticipantResponse(item)
	}
	return out
}

func tenantNotificationRoomID(tenantID string) string {
	return websocket.TenantNotificationRoom(strings.TrimSpace(tenantID))
}
