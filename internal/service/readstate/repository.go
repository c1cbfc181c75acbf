package readstate

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"clienthub-backend/internal/database"
	"clienthub-backend/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var ErrNotFound = errors.New("readstate repository: not found")

type Repository interface {
	GetConversation(ctx context.Context, tenantID, conversationID string) (model.ConversationItem, error)
	GetParticipant(ctx context.Context, conversationID string, kind model.ActorKind, actorID string) (model.ParticipantItem, error)
	ListParticipantsByActor(ctx context.Context, tenantID string, kind model.ActorKind, actorID string) ([]model.ParticipantItem, error)
	// AdvanceReadCursor moves the watermark forward iff throughSeq is ahead of
	// the stored value. Returns false when a concurrent advance already got
	// there; that is a normal outcome, not an error.
	AdvanceReadCursor(ctx context.Context, conversationID string, kind model.ActorKind, actorID string, throughSeq int64, readAt string) (bool, error)
	CountUnread(ctx context.Context, tenantID, conversationID string, afterSeq int64, selfKind model.ActorKind, selfID string) (int64, error)
}

type DynamoRepository struct {
	db *database.Database
}

func NewDynamoRepository(db *database.Database) Repository {
	return &DynamoRepository{db: db}
}

func (r *DynamoRepository) GetConversation(ctx context.Context, tenantID, conversationID string) (model.ConversationItem, error) {
	var conversation model.ConversationItem
	err := r.db.Client.GetItem(
		ctx,
		model.ConversationsTable,
		map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: model.ConversationPK(tenantID, conversationID)},
		},
		&conversation,
	)
	if err != nil {
		if isNotFound(err) {
			return model.ConversationItem{}, ErrNotFound
		}
		return model.ConversationItem{}, err
	}
	return conversation, nil
}

func (r *DynamoRepository) GetParticipant(ctx context.Context, conversationID string, kind model.ActorKind, actorID string) (model.ParticipantItem, error) {
	var participant model.ParticipantItem
	err := r.db.Client.GetItem(
		ctx,
		model.ParticipantsTable,
		map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: model.ParticipantPK(conversationID, kind, actorID)},
		},
		&participant,
	)
	if err != nil {
		if isNotFound(err) {
			return model.ParticipantItem{}, ErrNotFound
		}
		return model.ParticipantItem{}, err
	}
	return participant, nil
}

func (r *DynamoRepository) ListParticipantsByActor(ctx context.Context, tenantID string, kind model.ActorKind, actorID string) ([]model.ParticipantItem, error) {
	items, err := r.db.Client.QueryItems(
		ctx,
		model.ParticipantsTable,
		aws.String("byActor"),
		"actorId = :actorId",
		map[string]types.AttributeValue{
			":actorId": &types.AttributeValueMemberS{Value: actorID},
		},
		nil,
		nil,
	)
	if err != nil && !isIndexNotFound(err) {
		return nil, err
	}

	if (err != nil && isIndexNotFound(err)) || items == nil {
		items, err = r.db.Client.ScanItems(
			ctx,
			model.ParticipantsTable,
			"actorId = :actorId",
			map[string]types.AttributeValue{
				":actorId": &types.AttributeValueMemberS{Value: actorID},
			},
			nil,
		)
		if err != nil {
			return nil, err
		}
	}

	participants := make([]model.ParticipantItem, 0, len(items))
	for _, item := range items {
		var participant model.ParticipantItem
		if err := attributevalue.UnmarshalMap(item, &participant); err != nil {
			return nil, err
		}
		if participant.TenantID != tenantID || participant.ActorKind != kind {
			continue
		}
		participants = append(participants, participant)
	}

	return participants, nil
}

func (r *DynamoRepository) AdvanceReadCursor(ctx context.Context, conversationID string, kind model.ActorKind, actorID string, throughSeq int64, readAt string) (bool, error) {
	err := r.db.Client.UpdateItemConditional(
		ctx,
		model.ParticipantsTable,
		map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: model.ParticipantPK(conversationID, kind, actorID)},
		},
		"SET #lastReadSeq = :seq, #lastReadAt = :readAt",
		"attribute_not_exists(#lastReadSeq) OR #lastReadSeq < :seq",
		map[string]types.AttributeValue{
			":seq":    &types.AttributeValueMemberN{Value: strconv.FormatInt(throughSeq, 10)},
			":readAt": &types.AttributeValueMemberS{Value: readAt},
		},
		map[string]string{
			"#lastReadSeq": "lastReadSeq",
			"#lastReadAt":  "lastReadAt",
		},
		nil,
	)
	if errors.Is(err, database.ErrConditionFailed) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *DynamoRepository) CountUnread(ctx context.Context, tenantID, conversationID string, afterSeq int64, selfKind model.ActorKind, selfID string) (int64, error) {
	scanForward := true
	items, err := r.db.Client.QueryItems(
		ctx,
		model.MessagesTable,
		aws.String("byConversation"),
		"conversationId = :conversationId AND seq > :afterSeq",
		map[string]types.AttributeValue{
			":conversationId": &types.AttributeValueMemberS{Value: conversationID},
			":afterSeq":       &types.AttributeValueMemberN{Value: strconv.FormatInt(afterSeq, 10)},
		},
		nil,
		&scanForward,
	)
	if err != nil && !isIndexNotFound(err) {
		return 0, err
	}

	if (err != nil && isIndexNotFound(err)) || items == nil {
		items, err = r.db.Client.ScanItems(
			ctx,
			model.MessagesTable,
			"conversationId = :conversationId AND seq > :afterSeq",
			map[string]types.AttributeValue{
				":conversationId": &types.AttributeValueMemberS{Value: conversationID},
				":afterSeq":       &types.AttributeValueMemberN{Value: strconv.FormatInt(afterSeq, 10)},
			},
			nil,
		)
		if err != nil {
			return 0, err
		}
	}

	var count int64
	for _, item := range items {
		var message model.MessageItem
		if err := attributevalue.UnmarshalMap(item, &message); err != nil {
			return 0, err
		}
		if message.TenantID != "" && message.TenantID != tenantID {
			continue
		}
		if message.Seq <= afterSeq {
			continue
		}
		if message.Deleted {
			continue
		}
		if message.SenderKind == selfKind && message.SenderID == selfID {
			continue
		}
		count++
	}

	return count, nil
}

func isNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "item not found")
}

func isIndexNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "index") && strings.Contains(msg, "not") && strings.Contains(msg, "found")
}
