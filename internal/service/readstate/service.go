package readstate

import (
	"context"
	"errors"
	"time"

	"clienthub-backend/internal/database"
	"clienthub-backend/internal/model"
	"clienthub-backend/internal/notify"

	"github.com/google/uuid"
)

type ErrorCode string

const (
	ErrorCodeValidation   ErrorCode = "validation_error"
	ErrorCodeUnauthorized ErrorCode = "unauthorized"
	ErrorCodeForbidden    ErrorCode = "forbidden"
	ErrorCodeNotFound     ErrorCode = "not_found"
	ErrorCodeInternal     ErrorCode = "internal_error"
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

// Actor is the participant whose cursor is being read or moved. A cursor
// belongs to exactly one (conversation, actor) pair and only that actor may
// advance it.
type Actor struct {
	Kind     model.ActorKind
	ID       string
	TenantID string
}

type MarkReadResult struct {
	// Moved is false when the call was a no-op: the watermark was already at
	// or past the requested sequence.
	Moved          bool
	ReadThroughSeq int64
	ReadAt         string
}

type UnreadEntry struct {
	ConversationID string
	LastReadSeq    int64
	Unread         int64
}

type Service struct {
	repo       Repository
	dispatcher notify.Dispatcher
	now        func() time.Time
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

// MarkRead advances the actor's read watermark to throughSeq. Advances are
// monotonic: marking an older sequence, or repeating the same one, is an
// idempotent no-op. The target is clamped to the conversation's last assigned
// sequence so a stale client cannot mark messages that do not exist yet.
func (s *Service) MarkRead(ctx context.Context, actor Actor, conversationID string, throughSeq int64) (MarkReadResult, error) {
	if actor.ID == "" || actor.TenantID == "" {
		return MarkReadResult{}, newError(ErrorCodeUnauthorized, "invalid actor identity", nil)
	}
	if throughSeq < 0 {
		return MarkReadResult{}, newError(ErrorCodeValidation, "sequence must not be negative", nil)
	}

	conversation, err := s.repo.GetConversation(ctx, actor.TenantID, conversationID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return MarkReadResult{}, newError(ErrorCodeNotFound, "conversation not found", err)
		}
		return MarkReadResult{}, newError(ErrorCodeInternal, "failed to fetch conversation", err)
	}

	participant, err := s.participantFor(ctx, actor, conversationID)
	if err != nil {
		return MarkReadResult{}, err
	}

	if throughSeq > conversation.LastSeq {
		throughSeq = conversation.LastSeq
	}

	if throughSeq <= participant.LastReadSeq {
		return MarkReadResult{
			Moved:          false,
			ReadThroughSeq: participant.LastReadSeq,
			ReadAt:         participant.LastReadAt,
		}, nil
	}

	readAt := s.now().UTC().Format(time.RFC3339)
	moved, err := s.repo.AdvanceReadCursor(ctx, conversationID, actor.Kind, actor.ID, throughSeq, readAt)
	if err != nil {
		return MarkReadResult{}, newError(ErrorCodeInternal, "failed to advance read cursor", err)
	}
	if !moved {
		// A concurrent caller advanced past us; report the no-op.
		current, err := s.participantFor(ctx, actor, conversationID)
		if err != nil {
			return MarkReadResult{}, err
		}
		return MarkReadResult{
			Moved:          false,
			ReadThroughSeq: current.LastReadSeq,
			ReadAt:         current.LastReadAt,
		}, nil
	}

	s.publishRead(conversation, actor, throughSeq, readAt)

	return MarkReadResult{
		Moved:          true,
		ReadThroughSeq: throughSeq,
		ReadAt:         readAt,
	}, nil
}

// UnreadCount counts the messages above the actor's watermark, skipping the
// actor's own messages and soft-deleted ones.
func (s *Service) UnreadCount(ctx context.Context, actor Actor, conversationID string) (int64, error) {
	if actor.ID == "" || actor.TenantID == "" {
		return 0, newError(ErrorCodeUnauthorized, "invalid actor identity", nil)
	}

	if _, err := s.repo.GetConversation(ctx, actor.TenantID, conversationID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, newError(ErrorCodeNotFound, "conversation not found", err)
		}
		return 0, newError(ErrorCodeInternal, "failed to fetch conversation", err)
	}

	participant, err := s.participantFor(ctx, actor, conversationID)
	if err != nil {
		return 0, err
	}

	count, err := s.repo.CountUnread(ctx, actor.TenantID, conversationID, participant.LastReadSeq, actor.Kind, actor.ID)
	if err != nil {
		return 0, newError(ErrorCodeInternal, "failed to count unread messages", err)
	}
	return count, nil
}

// UnreadCounts returns per-conversation unread totals across every
// conversation the actor actively belongs to.
func (s *Service) UnreadCounts(ctx context.Context, actor Actor) ([]UnreadEntry, error) {
	if actor.ID == "" || actor.TenantID == "" {
		return nil, newError(ErrorCodeUnauthorized, "invalid actor identity", nil)
	}

	memberships, err := s.repo.ListParticipantsByActor(ctx, actor.TenantID, actor.Kind, actor.ID)
	if err != nil {
		return nil, newError(ErrorCodeInternal, "failed to list memberships", err)
	}

	entries := make([]UnreadEntry, 0, len(memberships))
	for _, membership := range memberships {
		if !membership.Active {
			continue
		}
		count, err := s.repo.CountUnread(ctx, actor.TenantID, membership.ConversationID, membership.LastReadSeq, actor.Kind, actor.ID)
		if err != nil {
			return nil, newError(ErrorCodeInternal, "failed to count unread messages", err)
		}
		entries = append(entries, UnreadEntry{
			ConversationID: membership.ConversationID,
			LastReadSeq:    membership.LastReadSeq,
			Unread:         count,
		})
	}
	return entries, nil
}

func (s *Service) participantFor(ctx context.Context, actor Actor, conversationID string) (model.ParticipantItem, error) {
	participant, err := s.repo.GetParticipant(ctx, conversationID, actor.Kind, actor.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.ParticipantItem{}, newError(ErrorCodeForbidden, "actor is not a participant", err)
		}
		return model.ParticipantItem{}, newError(ErrorCodeInternal, "failed to fetch participant", err)
	}
	if !participant.Active {
		return model.ParticipantItem{}, newError(ErrorCodeForbidden, "actor is no longer a participant", nil)
	}
	return participant, nil
}

func (s *Service) publishRead(conversation model.ConversationItem, actor Actor, throughSeq int64, readAt string) {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.Publish(notify.Event{
		ID:             uuid.NewString(),
		Type:           notify.EventConversationRead,
		TenantID:       conversation.TenantID,
		ConversationID: conversation.ConversationID,
		Timestamp:      s.now().UTC(),
		Payload: notify.ConversationReadPayload{
			ActorKind:      actor.Kind,
			ActorID:        actor.ID,
			ReadThroughSeq: throughSeq,
			ReadAt:         readAt,
		},
	})
}
