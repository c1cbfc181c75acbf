package conversation

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"clienthub-backend/internal/database"
	"clienthub-backend/internal/env"
	internaljwt "clienthub-backend/internal/jwt"
	"clienthub-backend/internal/model"
	"clienthub-backend/internal/notify"

	"github.com/google/uuid"
)

type ErrorCode string

const (
	ErrorCodeValidation         ErrorCode = "validation_error"
	ErrorCodeUnauthorized       ErrorCode = "unauthorized"
	ErrorCodeForbidden          ErrorCode = "forbidden"
	ErrorCodeNotFound           ErrorCode = "not_found"
	ErrorCodeConversationClosed ErrorCode = "conversation_closed"
	ErrorCodeInvalidTransition  ErrorCode = "invalid_transition"
	ErrorCodeInternal           ErrorCode = "internal_error"
)

type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Actor is the caller on whose behalf an operation runs. The identity itself
// comes from the session layer; membership and tenant checks are re-done here
// on every call.
type Actor struct {
	Kind        model.ActorKind
	ID          string
	TenantID    string
	DisplayName string
}

type Identity struct {
	MemberID string
	TenantID string
	Email    string
}

type ParticipantParams struct {
	Kind        model.ActorKind
	ID          string
	DisplayName string
}

type CreateConversationParams struct {
	Type           model.ConversationType
	Subject        string
	ClientID       string
	Participants   []ParticipantParams
	InitialMessage string
}

type ConversationResult struct {
	Conversation model.ConversationItem
	Participants []model.ParticipantItem
	Message      *model.MessageItem
	PortalToken  string
}

type MessageResult struct {
	Conversation model.ConversationItem
	Message      model.MessageItem
}

type ListConversationsResult struct {
	Conversations []model.ConversationItem
}

type ListMessagesResult struct {
	Conversation model.ConversationItem
	Messages     []model.MessageItem
	// NextAfterSeq is the cursor for the following page; zero when this page
	// is the last one.
	NextAfterSeq int64
}

type PortalAccess struct {
	TenantID string
	ClientID string
}

type Service struct {
	repo       Repository
	dispatcher notify.Dispatcher
	now        func() time.Time
}

var (
	portalTokenSecret = []byte(env.MustGet(env.PortalSecretKey))
	portalTokenTTL    = 7 * 24 * time.Hour
)

type portalTokenClaims struct {
	TenantID  string `json:"tenantId"`
	ClientID  string `json:"clientId"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

func SetPortalTokenSecret(secret []byte) {
	if len(secret) == 0 {
		return
	}
	portalTokenSecret = make([]byte, len(secret))
	copy(portalTokenSecret, secret)
}

func SetPortalTokenTTL(ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	portalTokenTTL = ttl
}

func New(db *database.Database, dispatcher notify.Dispatcher) *Service {
	return &Service{
		repo:       NewDynamoRepository(db),
		dispatcher: dispatcher,
		now:        time.Now,
	}
}

func NewWithRepository(repo Repository, dispatcher notify.Dispatcher, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:       repo,
		dispatcher: dispatcher,
		now:        now,
	}
}

func (s *Service) CreateConversation(ctx context.Context, actor Actor, params CreateConversationParams) (ConversationResult, error) {
	if actor.ID == "" || actor.TenantID == "" {
		return ConversationResult{}, newError(ErrorCodeUnauthorized, "invalid actor identity", nil)
	}
	if !params.Type.Valid() {
		return ConversationResult{}, newError(ErrorCodeValidation, "unknown conversation type", nil)
	}
	if actor.Kind == model.ActorKindClient && params.Type != model.ConversationTypeClient {
		return ConversationResult{}, newError(ErrorCodeForbidden, "clients may only start client conversations", nil)
	}

	if _, err := s.repo.GetTenant(ctx, actor.TenantID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ConversationResult{}, newError(ErrorCodeNotFound, "tenant not found", err)
		}
		return ConversationResult{}, newError(ErrorCodeInternal, "failed to load tenant", err)
	}

	participants := normalizeParticipants(actor, params.Participants)
	if err := validateParticipantSet(params.Type, params.ClientID, participants); err != nil {
		return ConversationResult{}, err
	}

	now := s.now().UTC()
	nowStr := now.Format(time.RFC3339)
	conversationID := uuid.NewString()

	messageBody := strings.TrimSpace(params.InitialMessage)
	initialSeq := int64(0)
	if messageBody != "" {
		initialSeq = 1
	}

	conversation := model.ConversationItem{
		PK:             model.ConversationPK(actor.TenantID, conversationID),
		ConversationID: conversationID,
		TenantID:       actor.TenantID,
		Type:           params.Type,
		Subject:        strings.TrimSpace(params.Subject),
		ClientID:       strings.TrimSpace(params.ClientID),
		Status:         model.ConversationStatusActive,
		LastSeq:        0,
		CreatedAt:      nowStr,
		UpdatedAt:      nowStr,
		LastMessageAt:  nowStr,
	}

	if err := s.repo.CreateConversation(ctx, conversation); err != nil {
		return ConversationResult{}, newError(ErrorCodeInternal, "failed to create conversation", err)
	}

	rows := make([]model.ParticipantItem, 0, len(participants))
	var portalClientID string
	for _, p := range participants {
		row := model.ParticipantItem{
			PK:             model.ParticipantPK(conversationID, p.Kind, p.ID),
			TenantID:       actor.TenantID,
			ConversationID: conversationID,
			ActorKind:      p.Kind,
			ActorID:        p.ID,
			DisplayName:    p.DisplayName,
			Active:         true,
			JoinedAt:       nowStr,
		}
		// The sender has implicitly read their own opening message; everyone
		// else starts with an empty watermark.
		if p.Kind == actor.Kind && p.ID == actor.ID {
			row.LastReadSeq = initialSeq
			row.LastReadAt = nowStr
		}
		if p.Kind == model.ActorKindClient {
			portalClientID = p.ID
		}
		if err := s.repo.PutParticipant(ctx, row); err != nil {
			return ConversationResult{}, newError(ErrorCodeInternal, "failed to add participant", err)
		}
		rows = append(rows, row)
	}

	result := ConversationResult{
		Conversation: conversation,
		Participants: rows,
	}

	if messageBody != "" {
		seq, err := s.repo.NextMessageSeq(ctx, actor.TenantID, conversationID)
		if err != nil {
			return ConversationResult{}, newError(ErrorCodeInternal, "failed to assign message sequence", err)
		}
		message := model.MessageItem{
			PK:             model.MessagePK(conversationID, seq),
			TenantID:       actor.TenantID,
			ConversationID: conversationID,
			MessageID:      uuid.NewString(),
			Seq:            seq,
			SenderKind:     actor.Kind,
			SenderID:       actor.ID,
			Body:           messageBody,
			CreatedAt:      nowStr,
		}
		if err := s.repo.CreateMessage(ctx, message); err != nil {
			return ConversationResult{}, newError(ErrorCodeInternal, "failed to store message", err)
		}
		result.Conversation.LastSeq = seq
		result.Message = &message
		s.publishMessageCreated(result.Conversation, message)
	}

	if portalClientID != "" {
		token, err := s.IssuePortalToken(ctx, actor.TenantID, portalClientID)
		if err != nil {
			return ConversationResult{}, err
		}
		result.PortalToken = token
	}

	return result, nil
}

func (s *Service) AddParticipant(ctx context.Context, actor Actor, conversationID string, params ParticipantParams) (model.ParticipantItem, error) {
	if actor.Kind != model.ActorKindTeamMember {
		return model.ParticipantItem{}, newError(ErrorCodeForbidden, "only team members may manage participants", nil)
	}
	if params.ID == "" || !validParticipantKind(params.Kind) {
		return model.ParticipantItem{}, newError(ErrorCodeValidation, "participant kind and id are required", nil)
	}

	conversation, err := s.authorizeConversation(ctx, actor, conversationID)
	if err != nil {
		return model.ParticipantItem{}, err
	}

	if params.Kind == model.ActorKindClient && !conversation.Type.ClientVisible() {
		return model.ParticipantItem{}, newError(ErrorCodeValidation, "clients cannot join team conversations", nil)
	}

	now := s.now().UTC().Format(time.RFC3339)

	existing, err := s.repo.GetParticipant(ctx, conversationID, params.Kind, params.ID)
	switch {
	case err == nil:
		if existing.Active {
			// Re-adding an active participant is a no-op.
			return existing, nil
		}
		// Reactivation keeps the historical read watermark.
		existing.Active = true
		if err := s.repo.PutParticipant(ctx, existing); err != nil {
			return model.ParticipantItem{}, newError(ErrorCodeInternal, "failed to reactivate participant", err)
		}
		s.publishParticipantEvent(notify.EventParticipantAdded, conversation, existing)
		return existing, nil
	case errors.Is(err, ErrNotFound):
		if params.Kind == model.ActorKindClient {
			if err := s.ensureSingleClient(ctx, conversation, params.ID); err != nil {
				return model.ParticipantItem{}, err
			}
		}
		row := model.ParticipantItem{
			PK:             model.ParticipantPK(conversationID, params.Kind, params.ID),
			TenantID:       conversation.TenantID,
			ConversationID: conversationID,
			ActorKind:      params.Kind,
			ActorID:        params.ID,
			DisplayName:    params.DisplayName,
			Active:         true,
			JoinedAt:       now,
		}
		if err := s.repo.PutParticipant(ctx, row); err != nil {
			return model.ParticipantItem{}, newError(ErrorCodeInternal, "failed to add participant", err)
		}
		s.publishParticipantEvent(notify.EventParticipantAdded, conversation, row)
		return row, nil
	default:
		return model.ParticipantItem{}, newError(ErrorCodeInternal, "failed to look up participant", err)
	}
}

func (s *Service) RemoveParticipant(ctx context.Context, actor Actor, conversationID string, kind model.ActorKind, actorID string) error {
	if actor.Kind != model.ActorKindTeamMember {
		return newError(ErrorCodeForbidden, "only team members may manage participants", nil)
	}

	conversation, err := s.authorizeConversation(ctx, actor, conversationID)
	if err != nil {
		return err
	}

	participant, err := s.repo.GetParticipant(ctx, conversationID, kind, actorID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return newError(ErrorCodeNotFound, "participant not found", err)
		}
		return newError(ErrorCodeInternal, "failed to look up participant", err)
	}
	if !participant.Active {
		return nil
	}

	// Soft removal: the row and its read watermark stay behind.
	participant.Active = false
	if err := s.repo.PutParticipant(ctx, participant); err != nil {
		return newError(ErrorCodeInternal, "failed to remove participant", err)
	}
	s.publishParticipantEvent(notify.EventParticipantRemoved, conversation, participant)
	return nil
}

func (s *Service) TransitionStatus(ctx context.Context, actor Actor, conversationID string, newStatus model.ConversationStatus) (model.ConversationItem, error) {
	if actor.Kind != model.ActorKindTeamMember {
		return model.ConversationItem{}, newError(ErrorCodeForbidden, "only team members may change conversation status", nil)
	}
	if !newStatus.Valid() {
		return model.ConversationItem{}, newError(ErrorCodeValidation, "unknown conversation status", nil)
	}

	conversation, err := s.authorizeConversation(ctx, actor, conversationID)
	if err != nil {
		return model.ConversationItem{}, err
	}

	if !model.CanTransitionStatus(conversation.Status, newStatus) {
		return model.ConversationItem{}, newError(
			ErrorCodeInvalidTransition,
			fmt.Sprintf("cannot transition conversation from %s to %s", conversation.Status, newStatus),
			nil,
		)
	}

	now := s.now().UTC().Format(time.RFC3339)
	if err := s.repo.UpdateConversationStatus(ctx, conversation.TenantID, conversationID, newStatus, now); err != nil {
		return model.ConversationItem{}, newError(ErrorCodeInternal, "failed to update conversation status", err)
	}

	oldStatus := conversation.Status
	conversation.Status = newStatus
	conversation.UpdatedAt = now

	s.publish(notify.Event{
		ID:             uuid.NewString(),
		Type:           notify.EventStatusChanged,
		TenantID:       conversation.TenantID,
		ConversationID: conversationID,
		Timestamp:      s.now().UTC(),
		Payload: notify.StatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: newStatus,
		},
	})

	return conversation, nil
}

func (s *Service) AppendMessage(ctx context.Context, actor Actor, conversationID, body string) (MessageResult, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return MessageResult{}, newError(ErrorCodeValidation, "message body is required", nil)
	}

	conversation, err := s.authorizeConversation(ctx, actor, conversationID)
	if err != nil {
		return MessageResult{}, err
	}

	if conversation.Status != model.ConversationStatusActive {
		return MessageResult{}, newError(
			ErrorCodeConversationClosed,
			fmt.Sprintf("conversation is %s and does not accept new messages", conversation.Status),
			nil,
		)
	}

	now := s.now().UTC()
	nowStr := now.Format(time.RFC3339)

	// The atomic counter on the conversation row serializes concurrent
	// senders; no client-side counter is ever trusted.
	seq, err := s.repo.NextMessageSeq(ctx, conversation.TenantID, conversationID)
	if err != nil {
		return MessageResult{}, newError(ErrorCodeInternal, "failed to assign message sequence", err)
	}

	message := model.MessageItem{
		PK:             model.MessagePK(conversationID, seq),
		TenantID:       conversation.TenantID,
		ConversationID: conversationID,
		MessageID:      uuid.NewString(),
		Seq:            seq,
		SenderKind:     actor.Kind,
		SenderID:       actor.ID,
		Body:           body,
		CreatedAt:      nowStr,
	}

	if err := s.repo.CreateMessage(ctx, message); err != nil {
		return MessageResult{}, newError(ErrorCodeInternal, "failed to store message", err)
	}

	if err := s.repo.UpdateConversationActivity(ctx, conversation.TenantID, conversationID, nowStr, nowStr); err != nil {
		return MessageResult{}, newError(ErrorCodeInternal, "failed to update conversation", err)
	}

	if actor.Kind == model.ActorKindClient {
		s.touchClient(ctx, conversation.TenantID, actor, nowStr)
	}

	conversation.LastSeq = seq
	conversation.UpdatedAt = nowStr
	conversation.LastMessageAt = nowStr

	s.publishMessageCreated(conversation, message)

	return MessageResult{
		Conversation: conversation,
		Message:      message,
	}, nil
}

func (s *Service) DeleteMessage(ctx context.Context, actor Actor, conversationID string, seq int64) error {
	if _, err := s.authorizeConversation(ctx, actor, conversationID); err != nil {
		return err
	}

	message, err := s.repo.GetMessage(ctx, conversationID, seq)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return newError(ErrorCodeNotFound, "message not found", err)
		}
		return newError(ErrorCodeInternal, "failed to load message", err)
	}

	isSender := message.SenderKind == actor.Kind && message.SenderID == actor.ID
	if !isSender && actor.Kind != model.ActorKindTeamMember {
		return newError(ErrorCodeForbidden, "only the sender or a team member may delete a message", nil)
	}

	if message.Deleted {
		return nil
	}

	// Visibility flag only: the row and its sequence stay, so read cursors
	// and unread math never shift.
	if err := s.repo.MarkMessageDeleted(ctx, conversationID, seq); err != nil {
		return newError(ErrorCodeInternal, "failed to delete message", err)
	}
	return nil
}

// ListMessages pages in ascending sequence order. The cursor is the last
// sequence of the previous page, so concurrent appends never skip or repeat
// rows mid-pagination.
func (s *Service) ListMessages(ctx context.Context, actor Actor, conversationID string, afterSeq int64, limit int) (ListMessagesResult, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	if afterSeq < 0 {
		afterSeq = 0
	}

	conversation, err := s.authorizeConversation(ctx, actor, conversationID)
	if err != nil {
		return ListMessagesResult{}, err
	}

	messages, err := s.repo.ListMessagesAfter(ctx, conversation.TenantID, conversationID, afterSeq, limit+1)
	if err != nil {
		return ListMessagesResult{}, newError(ErrorCodeInternal, "failed to list messages", err)
	}

	var nextAfterSeq int64
	if len(messages) > limit {
		messages = messages[:limit]
		nextAfterSeq = messages[len(messages)-1].Seq
	}

	return ListMessagesResult{
		Conversation: conversation,
		Messages:     messages,
		NextAfterSeq: nextAfterSeq,
	}, nil
}

func (s *Service) ListConversations(ctx context.Context, actor Actor, limit int) (ListConversationsResult, error) {
	if actor.ID == "" || actor.TenantID == "" {
		return ListConversationsResult{}, newError(ErrorCodeUnauthorized, "invalid actor identity", nil)
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	switch actor.Kind {
	case model.ActorKindTeamMember:
		if _, err := s.repo.GetTeamMember(ctx, actor.TenantID, actor.ID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return ListConversationsResult{}, newError(ErrorCodeUnauthorized, "team member not found", err)
			}
			return ListConversationsResult{}, newError(ErrorCodeInternal, "failed to verify team member", err)
		}
		conversations, err := s.repo.ListConversations(ctx, actor.TenantID, limit)
		if err != nil {
			return ListConversationsResult{}, newError(ErrorCodeInternal, "failed to list conversations", err)
		}
		return ListConversationsResult{Conversations: conversations}, nil

	case model.ActorKindClient:
		memberships, err := s.repo.ListParticipantsByActor(ctx, actor.TenantID, model.ActorKindClient, actor.ID)
		if err != nil {
			return ListConversationsResult{}, newError(ErrorCodeInternal, "failed to list memberships", err)
		}
		conversations := make([]model.ConversationItem, 0, len(memberships))
		for _, membership := range memberships {
			if !membership.Active {
				continue
			}
			conversation, err := s.repo.GetConversation(ctx, actor.TenantID, membership.ConversationID)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					continue
				}
				return ListConversationsResult{}, newError(ErrorCodeInternal, "failed to load conversation", err)
			}
			if !conversation.Type.ClientVisible() {
				continue
			}
			conversations = append(conversations, conversation)
			if len(conversations) >= limit {
				break
			}
		}
		return ListConversationsResult{Conversations: conversations}, nil

	default:
		return ListConversationsResult{}, newError(ErrorCodeForbidden, "unsupported actor kind", nil)
	}
}

// GetConversation returns the conversation metadata after the usual access
// checks for the acting party.
func (s *Service) GetConversation(ctx context.Context, actor Actor, conversationID string) (model.ConversationItem, error) {
	return s.authorizeConversation(ctx, actor, conversationID)
}

func (s *Service) ListParticipants(ctx context.Context, actor Actor, conversationID string) ([]model.ParticipantItem, error) {
	if _, err := s.authorizeConversation(ctx, actor, conversationID); err != nil {
		return nil, err
	}
	participants, err := s.repo.ListParticipants(ctx, conversationID)
	if err != nil {
		return nil, newError(ErrorCodeInternal, "failed to list participants", err)
	}
	return participants, nil
}

// authorizeConversation loads the conversation and enforces the access rules:
// team members reach any conversation in their tenant, clients only client
// conversations they actively belong to. Every path is tenant-scoped.
func (s *Service) authorizeConversation(ctx context.Context, actor Actor, conversationID string) (model.ConversationItem, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return model.ConversationItem{}, newError(ErrorCodeValidation, "conversationId is required", nil)
	}
	if actor.ID == "" || actor.TenantID == "" {
		return model.ConversationItem{}, newError(ErrorCodeUnauthorized, "invalid actor identity", nil)
	}

	conversation, err := s.repo.GetConversation(ctx, actor.TenantID, conversationID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.ConversationItem{}, newError(ErrorCodeNotFound, "conversation not found", err)
		}
		return model.ConversationItem{}, newError(ErrorCodeInternal, "failed to fetch conversation", err)
	}

	switch actor.Kind {
	case model.ActorKindTeamMember:
		if _, err := s.repo.GetTeamMember(ctx, actor.TenantID, actor.ID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return model.ConversationItem{}, newError(ErrorCodeUnauthorized, "team member not found", err)
			}
			return model.ConversationItem{}, newError(ErrorCodeInternal, "failed to verify team member", err)
		}
		return conversation, nil

	case model.ActorKindClient:
		if !conversation.Type.ClientVisible() {
			return model.ConversationItem{}, newError(ErrorCodeForbidden, "conversation is not accessible to clients", nil)
		}
		participant, err := s.repo.GetParticipant(ctx, conversationID, model.ActorKindClient, actor.ID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return model.ConversationItem{}, newError(ErrorCodeForbidden, "client is not a participant", err)
			}
			return model.ConversationItem{}, newError(ErrorCodeInternal, "failed to verify participant", err)
		}
		if !participant.Active {
			return model.ConversationItem{}, newError(ErrorCodeForbidden, "client is no longer a participant", nil)
		}
		return conversation, nil

	default:
		return model.ConversationItem{}, newError(ErrorCodeForbidden, "unsupported actor kind", nil)
	}
}

func (s *Service) ensureSingleClient(ctx context.Context, conversation model.ConversationItem, clientID string) error {
	participants, err := s.repo.ListParticipants(ctx, conversation.ConversationID)
	if err != nil {
		return newError(ErrorCodeInternal, "failed to list participants", err)
	}
	for _, p := range participants {
		if p.ActorKind == model.ActorKindClient && p.Active && p.ActorID != clientID {
			return newError(ErrorCodeValidation, "client conversations have exactly one client participant", nil)
		}
	}
	return nil
}

func (s *Service) touchClient(ctx context.Context, tenantID string, actor Actor, nowStr string) {
	client, err := s.repo.GetClient(ctx, tenantID, actor.ID)
	if errors.Is(err, ErrNotFound) {
		client = model.ClientItem{
			PK:        model.ClientPK(tenantID, actor.ID),
			TenantID:  tenantID,
			ClientID:  actor.ID,
			Name:      actor.DisplayName,
			CreatedAt: nowStr,
		}
	} else if err != nil {
		return
	}
	client.LastSeenAt = nowStr
	_ = s.repo.PutClient(ctx, client)
}

func (s *Service) publishMessageCreated(conversation model.ConversationItem, message model.MessageItem) {
	s.publish(notify.Event{
		ID:             uuid.NewString(),
		Type:           notify.EventMessageCreated,
		TenantID:       conversation.TenantID,
		ConversationID: conversation.ConversationID,
		Timestamp:      s.now().UTC(),
		Payload: notify.MessageCreatedPayload{
			MessageID:  message.MessageID,
			Seq:        message.Seq,
			SenderKind: message.SenderKind,
			SenderID:   message.SenderID,
			Body:       message.Body,
			CreatedAt:  message.CreatedAt,
		},
	})
}

func (s *Service) publishParticipantEvent(eventType notify.EventType, conversation model.ConversationItem, participant model.ParticipantItem) {
	s.publish(notify.Event{
		ID:             uuid.NewString(),
		Type:           eventType,
		TenantID:       conversation.TenantID,
		ConversationID: conversation.ConversationID,
		Timestamp:      s.now().UTC(),
		Payload: notify.ParticipantPayload{
			ActorKind:   participant.ActorKind,
			ActorID:     participant.ActorID,
			DisplayName: participant.DisplayName,
		},
	})
}

func (s *Service) publish(event notify.Event) {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.Publish(event)
}

// IssuePortalToken signs a portal token for a client of the tenant.
func (s *Service) IssuePortalToken(ctx context.Context, tenantID, clientID string) (string, error) {
	now := s.now().UTC()
	token, err := signPortalToken(portalTokenClaims{
		TenantID:  tenantID,
		ClientID:  clientID,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(portalTokenTTL).Unix(),
	})
	if err != nil {
		return "", newError(ErrorCodeInternal, "failed to issue portal token", err)
	}
	return token, nil
}

func (s *Service) ValidatePortalAccess(token string) (PortalAccess, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return PortalAccess{}, newError(ErrorCodeUnauthorized, "portal token required", nil)
	}

	claims, err := verifyPortalToken(token, s.now)
	if err != nil {
		return PortalAccess{}, newError(ErrorCodeUnauthorized, "invalid portal token", err)
	}

	return PortalAccess{
		TenantID: claims.TenantID,
		ClientID: claims.ClientID,
	}, nil
}

// ActorFromPortalAccess builds the client actor for portal calls.
func ActorFromPortalAccess(access PortalAccess) Actor {
	return Actor{
		Kind:     model.ActorKindClient,
		ID:       access.ClientID,
		TenantID: access.TenantID,
	}
}

func ActorFromIdentity(identity Identity) Actor {
	return Actor{
		Kind:     model.ActorKindTeamMember,
		ID:       identity.MemberID,
		TenantID: identity.TenantID,
	}
}

func (s *Service) IdentityFromAuthorizationHeader(header string) (Identity, error) {
	authHeader := strings.TrimSpace(header)
	if authHeader == "" {
		return Identity{}, newError(ErrorCodeUnauthorized, "missing authorization header", nil)
	}

	if !strings.HasPrefix(authHeader, "Bearer ") {
		return Identity{}, newError(ErrorCodeUnauthorized, "invalid authorization header format", nil)
	}

	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	return s.identityFromToken(token)
}

func (s *Service) IdentityFromToken(token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, newError(ErrorCodeUnauthorized, "empty token", nil)
	}
	return s.identityFromToken(token)
}

func (s *Service) identityFromToken(token string) (Identity, error) {
	claims, err := internaljwt.ParseToken(token, internaljwt.RoleTeamMember)
	if err != nil {
		return Identity{}, newError(ErrorCodeUnauthorized, "invalid token", err)
	}

	memberID, _ := claims["id"].(string)
	email, _ := claims["email"].(string)
	tenantID, _ := claims["tenantId"].(string)

	if memberID == "" || tenantID == "" {
		return Identity{}, newError(ErrorCodeUnauthorized, "token missing identifiers", nil)
	}

	return Identity{
		MemberID: memberID,
		TenantID: tenantID,
		Email:    email,
	}, nil
}

func signPortalToken(claims portalTokenClaims) (string, error) {
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}

	mac := hmac.New(sha256.New, portalTokenSecret)
	if _, err := mac.Write(payload); err != nil {
		return "", err
	}
	signature := mac.Sum(nil)

	payloadPart := base64.RawURLEncoding.EncodeToString(payload)
	sigPart := base64.RawURLEncoding.EncodeToString(signature)

	return fmt.Sprintf("%s.%s", payloadPart, sigPart), nil
}

func verifyPortalToken(token string, now func() time.Time) (portalTokenClaims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return portalTokenClaims{}, errors.New("invalid token format")
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return portalTokenClaims{}, fmt.Errorf("decode payload: %w", err)
	}

	sig, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return portalTokenClaims{}, fmt.Errorf("decode signature: %w", err)
	}

	mac := hmac.New(sha256.New, portalTokenSecret)
	if _, err := mac.Write(payload); err != nil {
		return portalTokenClaims{}, fmt.Errorf("sign payload: %w", err)
	}

	if !hmac.Equal(sig, mac.Sum(nil)) {
		return portalTokenClaims{}, errors.New("signature mismatch")
	}

	var claims portalTokenClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return portalTokenClaims{}, fmt.Errorf("unmarshal claims: %w", err)
	}

	nowTime := now().UTC()
	if claims.ExpiresAt != 0 && nowTime.Unix() > claims.ExpiresAt {
		return portalTokenClaims{}, errors.New("token expired")
	}

	return claims, nil
}

// normalizeParticipants de-duplicates the requested set and guarantees the
// creating actor is part of it.
func normalizeParticipants(actor Actor, requested []ParticipantParams) []ParticipantParams {
	seen := make(map[string]bool)
	out := make([]ParticipantParams, 0, len(requested)+1)

	add := func(p ParticipantParams) {
		if p.ID == "" || !validParticipantKind(p.Kind) {
			return
		}
		key := string(p.Kind) + "#" + p.ID
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, p)
	}

	add(ParticipantParams{Kind: actor.Kind, ID: actor.ID, DisplayName: actor.DisplayName})
	for _, p := range requested {
		add(p)
	}
	return out
}

func validParticipantKind(kind model.ActorKind) bool {
	return kind == model.ActorKindTeamMember || kind == model.ActorKindClient
}

func validateParticipantSet(convType model.ConversationType, clientID string, participants []ParticipantParams) error {
	clients := 0
	for _, p := range participants {
		if p.Kind == model.ActorKindClient {
			clients++
		}
	}

	switch convType {
	case model.ConversationTypeClient:
		if clients != 1 {
			return newError(ErrorCodeValidation, "client conversations require exactly one client participant", nil)
		}
	case model.ConversationTypeTeam:
		if clients != 0 {
			return newError(ErrorCodeValidation, "team conversations cannot include clients", nil)
		}
	case model.ConversationTypeClientNote:
		if clients != 0 {
			return newError(ErrorCodeValidation, "client notes are team-only threads", nil)
		}
		if strings.TrimSpace(clientID) == "" {
			return newError(ErrorCodeValidation, "client notes must reference a client", nil)
		}
	}
	return nil
}
