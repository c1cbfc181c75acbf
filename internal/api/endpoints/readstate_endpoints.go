package endpoints

import (
	"clienthub-backend/internal/dto"
	conversationservice "clienthub-backend/internal/service/conversation"
	readstatesvc "clienthub-backend/internal/service/readstate"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

type ReadStateEndpoints interface {
	ConversationRead(http.ResponseWriter, *http.Request) error
	PortalConversationRead(http.ResponseWriter, *http.Request) error
	Unread(http.ResponseWriter, *http.Request) error
	PortalUnread(http.ResponseWriter, *http.Request) error
	Stop()
}

type ReadStatePaths struct {
	TenantConversationPrefix string
	PortalConversationPrefix string
	TenantUnreadPath         string
	PortalUnreadPath         string
}

type readStateEndpoints struct {
	service   *readstatesvc.Service
	auth      *conversationservice.Service
	scheduler *readstatesvc.Scheduler
	paths     ReadStatePaths
}

// NewReadStateEndpoints wires the read-state service behind HTTP. The
// conversation service is only used here to resolve identities, both JWT and
// portal token.
func NewReadStateEndpoints(service *readstatesvc.Service, auth *conversationservice.Service, paths ReadStatePaths) ReadStateEndpoints {
	return &readStateEndpoints{
		service:   service,
		auth:      auth,
		scheduler: readstatesvc.NewScheduler(service, readstatesvc.DefaultMarkReadDelay),
		paths:     paths,
	}
}

func (h *readStateEndpoints) Stop() {
	h.scheduler.Stop()
}

func (h *readStateEndpoints) ConversationRead(w http.ResponseWriter, r *http.Request) error {
	return h.dispatchConversationRead(w, r, h.paths.TenantConversationPrefix, h.teamActor)
}

func (h *readStateEndpoints) PortalConversationRead(w http.ResponseWriter, r *http.Request) error {
	return h.dispatchConversationRead(w, r, h.paths.PortalConversationPrefix, h.portalActor)
}

func (h *readStateEndpoints) Unread(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet: func(w http.ResponseWriter, r *http.Request) error {
			return h.handleUnreadCounts(w, r, h.teamActor)
		},
	})
}

func (h *readStateEndpoints) PortalUnread(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet: func(w http.ResponseWriter, r *http.Request) error {
			return h.handleUnreadCounts(w, r, h.portalActor)
		},
	})
}

type readActorResolver func(r *http.Request, bodyToken string) (readstatesvc.Actor, error)

func (h *readStateEndpoints) dispatchConversationRead(w http.ResponseWriter, r *http.Request, prefix string, resolve readActorResolver) error {
	convID, action, err := extractReadPath(r.URL.Path, prefix)
	if err != nil {
		return err
	}

	switch {
	case len(action) == 1 && action[0] == "read":
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodPost: func(w http.ResponseWriter, r *http.Request) error {
				return h.handleMarkRead(w, r, convID, resolve)
			},
		})
	case len(action) == 2 && action[0] == "read" && action[1] == "schedule":
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodPost: func(w http.ResponseWriter, r *http.Request) error {
				return h.handleScheduleRead(w, r, convID, resolve)
			},
		})
	case len(action) == 2 && action[0] == "read" && action[1] == "cancel":
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodPost: func(w http.ResponseWriter, r *http.Request) error {
				return h.handleCancelRead(w, r, convID, resolve)
			},
		})
	case len(action) == 1 && action[0] == "unread":
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodGet: func(w http.ResponseWriter, r *http.Request) error {
				return h.handleUnreadCount(w, r, convID, resolve)
			},
		})
	default:
		return &HTTPError{
			StatusCode: http.StatusNotFound,
			Message:    "Not found",
			ErrorLog:   fmt.Errorf("invalid read-state path: %s", r.URL.Path),
		}
	}
}

func (h *readStateEndpoints) handleMarkRead(w http.ResponseWriter, r *http.Request, convID string, resolve readActorResolver) error {
	var req dto.MarkReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request payload",
			ErrorLog:   fmt.Errorf("decode mark read request: %w", err),
		}
	}

	actor, err := resolve(r, req.PortalToken)
	if err != nil {
		return err
	}

	result, err := h.service.MarkRead(r.Context(), actor, convID, req.ThroughSeq)
	if err != nil {
		return h.serviceError(err)
	}

	return WriteJSON(w, http.StatusOK, dto.MarkReadResponse{
		Moved:          result.Moved,
		ReadThroughSeq: result.ReadThroughSeq,
		ReadAt:         result.ReadAt,
	})
}

func (h *readStateEndpoints) handleScheduleRead(w http.ResponseWriter, r *http.Request, convID string, resolve readActorResolver) error {
	var req dto.ScheduleReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request payload",
			ErrorLog:   fmt.Errorf("decode schedule read request: %w", err),
		}
	}

	actor, err := resolve(r, req.PortalToken)
	if err != nil {
		return err
	}

	h.scheduler.Schedule(actor, convID, req.ThroughSeq)

	return WriteJSON(w, http.StatusAccepted, ApiMessageResponse{Message: "Read scheduled"})
}

func (h *readStateEndpoints) handleCancelRead(w http.ResponseWriter, r *http.Request, convID string, resolve readActorResolver) error {
	var req dto.CancelReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request payload",
			ErrorLog:   fmt.Errorf("decode cancel read request: %w", err),
		}
	}

	actor, err := resolve(r, req.PortalToken)
	if err != nil {
		return err
	}

	h.scheduler.Cancel(actor, convID)

	return WriteJSON(w, http.StatusOK, ApiMessageResponse{Message: "Read canceled"})
}

func (h *readStateEndpoints) handleUnreadCount(w http.ResponseWriter, r *http.Request, convID string, resolve readActorResolver) error {
	actor, err := resolve(r, "")
	if err != nil {
		return err
	}

	unread, err := h.service.UnreadCount(r.Context(), actor, convID)
	if err != nil {
		return h.serviceError(err)
	}

	return WriteJSON(w, http.StatusOK, dto.UnreadCountResponse{
		ConversationID: convID,
		Unread:         unread,
	})
}

func (h *readStateEndpoints) handleUnreadCounts(w http.ResponseWriter, r *http.Request, resolve readActorResolver) error {
	actor, err := resolve(r, "")
	if err != nil {
		return err
	}

	entries, err := h.service.UnreadCounts(r.Context(), actor)
	if err != nil {
		return h.serviceError(err)
	}

	resp := dto.UnreadCountsResponse{Entries: make([]dto.UnreadEntryResponse, len(entries))}
	for i, entry := range entries {
		resp.Entries[i] = dto.UnreadEntryResponse{
			ConversationID: entry.ConversationID,
			LastReadSeq:    entry.LastReadSeq,
			Unread:         entry.Unread,
		}
	}

	return WriteJSON(w, http.StatusOK, resp)
}

func (h *readStateEndpoints) teamActor(r *http.Request, _ string) (readstatesvc.Actor, error) {
	identity, err := h.auth.IdentityFromAuthorizationHeader(r.Header.Get("Authorization"))
	if err != nil {
		return readstatesvc.Actor{}, h.authError(err)
	}
	actor := conversationservice.ActorFromIdentity(identity)
	return readstatesvc.Actor{
		Kind:     actor.Kind,
		ID:       actor.ID,
		TenantID: actor.TenantID,
	}, nil
}

func (h *readStateEndpoints) portalActor(r *http.Request, bodyToken string) (readstatesvc.Actor, error) {
	token := strings.TrimSpace(bodyToken)
	if token == "" {
		token = strings.TrimSpace(r.URL.Query().Get("portalToken"))
	}
	if token == "" {
		token = strings.TrimSpace(r.Header.Get("X-Portal-Token"))
	}

	access, err := h.auth.ValidatePortalAccess(token)
	if err != nil {
		return readstatesvc.Actor{}, h.authError(err)
	}
	actor := conversationservice.ActorFromPortalAccess(access)
	return readstatesvc.Actor{
		Kind:     actor.Kind,
		ID:       actor.ID,
		TenantID: actor.TenantID,
	}, nil
}

// authError maps identity failures coming out of the conversation service.
func (h *readStateEndpoints) authError(err error) error {
	svcErr, ok := err.(*conversationservice.Error)
	if !ok {
		return &HTTPError{
			StatusCode: http.StatusInternalServerError,
			Message:    "Internal server error",
			ErrorLog:   fmt.Errorf("read-state auth: %w", err),
		}
	}

	status := http.StatusUnauthorized
	if svcErr.Code == conversationservice.ErrorCodeForbidden {
		status = http.StatusForbidden
	}

	return &HTTPError{
		StatusCode: status,
		Message:    svcErr.Message,
		ErrorLog:   svcErr,
	}
}

func (h *readStateEndpoints) serviceError(err error) error {
	if err == nil {
		return nil
	}

	svcErr, ok := err.(*readstatesvc.Error)
	if !ok {
		return &HTTPError{
			StatusCode: http.StatusInternalServerError,
			Message:    "Internal server error",
			ErrorLog:   fmt.Errorf("read-state service: %w", err),
		}
	}

	var logErr error
	if svcErr.Err != nil {
		logErr = fmt.Errorf("%s: %w", svcErr.Message, svcErr.Err)
	} else {
		logErr = svcErr
	}

	switch svcErr.Code {
	case readstatesvc.ErrorCodeValidation:
		return &HTTPError{StatusCode: http.StatusBadRequest, Message: svcErr.Message, ErrorLog: logErr}
	case readstatesvc.ErrorCodeUnauthorized:
		return &HTTPError{StatusCode: http.StatusUnauthorized, Message: svcErr.Message, ErrorLog: logErr}
	case readstatesvc.ErrorCodeForbidden:
		return &HTTPError{StatusCode: http.StatusForbidden, Message: svcErr.Message, ErrorLog: logErr}
	case readstatesvc.ErrorCodeNotFound:
		return &HTTPError{StatusCode: http.StatusNotFound, Message: svcErr.Message, ErrorLog: logErr}
	default:
		return &HTTPError{StatusCode: http.StatusInternalServerError, Message: "Internal server error", ErrorLog: logErr}
	}
}

func extractReadPath(path, prefix string) (string, []string, error) {
	if prefix == "" {
		return "", nil, &HTTPError{
			StatusCode: http.StatusNotFound,
			Message:    "Not found",
			ErrorLog:   fmt.Errorf("read-state route not configured"),
		}
	}
	trimmed := strings.TrimPrefix(path, prefix)
	if trimmed == path {
		return "", nil, &HTTPError{
			StatusCode: http.StatusNotFound,
			Message:    "Not found",
			ErrorLog:   fmt.Errorf("read-state path mismatch: %s", path),
		}
	}
	parts := strings.Split(strings.Trim(trimmed, "/"), "/")
	if len(parts) < 2 || parts[0] == "" {
		return "", nil, &HTTPError{
			StatusCode: http.StatusNotFound,
			Message:    "Not found",
			ErrorLog:   fmt.Errorf("invalid read-state path: %s", path),
		}
	}
	return parts[0], parts[1:], nil
}
