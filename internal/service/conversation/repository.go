package conversation

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"

	"clienthub-backend/internal/database"
	"clienthub-backend/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var ErrNotFound = errors.New("conversation repository: not found")

type Repository interface {
	GetTenant(ctx context.Context, tenantID string) (model.TenantItem, error)
	GetTeamMember(ctx context.Context, tenantID, memberID string) (model.TeamMemberItem, error)
	GetClient(ctx context.Context, tenantID, clientID string) (model.ClientItem, error)
	PutClient(ctx context.Context, client model.ClientItem) error
	CreateConversation(ctx context.Context, conversation model.ConversationItem) error
	GetConversation(ctx context.Context, tenantID, conversationID string) (model.ConversationItem, error)
	ListConversations(ctx context.Context, tenantID string, limit int) ([]model.ConversationItem, error)
	UpdateConversationStatus(ctx context.Context, tenantID, conversationID string, status model.ConversationStatus, updatedAt string) error
	UpdateConversationActivity(ctx context.Context, tenantID, conversationID, updatedAt, lastMessageAt string) error
	NextMessageSeq(ctx context.Context, tenantID, conversationID string) (int64, error)
	PutParticipant(ctx context.Context, participant model.ParticipantItem) error
	GetParticipant(ctx context.Context, conversationID string, kind model.ActorKind, actorID string) (model.ParticipantItem, error)
	ListParticipants(ctx context.Context, conversationID string) ([]model.ParticipantItem, error)
	ListParticipantsByActor(ctx context.Context, tenantID string, kind model.ActorKind, actorID string) ([]model.ParticipantItem, error)
	CreateMessage(ctx context.Context, message model.MessageItem) error
	GetMessage(ctx context.Context, conversationID string, seq int64) (model.MessageItem, error)
	MarkMessageDeleted(ctx context.Context, conversationID string, seq int64) error
	ListMessagesAfter(ctx context.Context, tenantID, conversationID string, afterSeq int64, limit int) ([]model.MessageItem, error)
}

type DynamoRepository struct {
	db *database.Database
}

func NewDynamoRepository(db *database.Database) Repository {
	return &DynamoRepository{db: db}
}

func (r *DynamoRepository) GetTenant(ctx context.Context, tenantID string) (model.TenantItem, error) {
	var tenant model.TenantItem
	err := r.db.Client.GetItem(
		ctx,
		model.TenantsTable,
		map[string]types.AttributeValue{
			"tenantId": &types.AttributeValueMemberS{Value: tenantID},
		},
		&tenant,
	)
	if err != nil {
		if isNotFound(err) {
			return model.TenantItem{}, ErrNotFound
		}
		return model.TenantItem{}, err
	}
	return tenant, nil
}

func (r *DynamoRepository) GetTeamMember(ctx context.Context, tenantID, memberID string) (model.TeamMemberItem, error) {
	var member model.TeamMemberItem
	err := r.db.Client.GetItem(
		ctx,
		model.TeamMembersTable,
		map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: model.TenantScopedPK(tenantID, memberID)},
		},
		&member,
	)
	if err != nil {
		if isNotFound(err) {
			return model.TeamMemberItem{}, ErrNotFound
		}
		return model.TeamMemberItem{}, err
	}
	return member, nil
}

func (r *DynamoRepository) GetClient(ctx context.Context, tenantID, clientID string) (model.ClientItem, error) {
	var client model.ClientItem
	err := r.db.Client.GetItem(
		ctx,
		model.ClientsTable,
		map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: model.ClientPK(tenantID, clientID)},
		},
		&client,
	)
	if err != nil {
		if isNotFound(err) {
			return model.ClientItem{}, ErrNotFound
		}
		return model.ClientItem{}, err
	}
	return client, nil
}

func (r *DynamoRepository) PutClient(ctx context.Context, client model.ClientItem) error {
	return r.db.Client.PutItem(ctx, model.ClientsTable, client)
}

func (r *DynamoRepository) CreateConversation(ctx context.Context, conversation model.ConversationItem) error {
	return r.db.Client.PutItem(ctx, model.ConversationsTable, conversation)
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

func (r *DynamoRepository) ListConversations(ctx context.Context, tenantID string, limit int) ([]model.ConversationItem, error) {
	scanForward := false
	items, err := r.db.Client.QueryItems(
		ctx,
		model.ConversationsTable,
		aws.String("byTenant"),
		"tenantId = :tenantId",
		map[string]types.AttributeValue{
			":tenantId": &types.AttributeValueMemberS{Value: tenantID},
		},
		nil,
		&scanForward,
	)
	if err != nil && !isIndexNotFound(err) {
		return nil, err
	}

	if (err != nil && isIndexNotFound(err)) || items == nil {
		items, err = r.db.Client.ScanItems(
			ctx,
			model.ConversationsTable,
			"tenantId = :tenantId",
			map[string]types.AttributeValue{
				":tenantId": &types.AttributeValueMemberS{Value: tenantID},
			},
			nil,
		)
		if err != nil {
			return nil, err
		}
	}

	conversations := make([]model.ConversationItem, 0, len(items))
	for _, item := range items {
		var conversation model.ConversationItem
		if err := attributevalue.UnmarshalMap(item, &conversation); err != nil {
			return nil, err
		}
		conversations = append(conversations, conversation)
	}

	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].LastMessageAt > conversations[j].LastMessageAt
	})

	if limit > 0 && len(conversations) > limit {
		conversations = conversations[:limit]
	}

	return conversations, nil
}

func (r *DynamoRepository) UpdateConversationStatus(ctx context.Context, tenantID, conversationID string, status model.ConversationStatus, updatedAt string) error {
	return r.db.Client.UpdateItem(
		ctx,
		model.ConversationsTable,
		map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: model.ConversationPK(tenantID, conversationID)},
		},
		"SET #status = :status, #updatedAt = :updatedAt",
		map[string]types.AttributeValue{
			":status":    &types.AttributeValueMemberS{Value: string(status)},
			":updatedAt": &types.AttributeValueMemberS{Value: updatedAt},
		},
		map[string]string{
			"#status":    "status",
			"#updatedAt": "updatedAt",
		},
		nil,
	)
}

func (r *DynamoRepository) UpdateConversationActivity(ctx context.Context, tenantID, conversationID, updatedAt, lastMessageAt string) error {
	return r.db.Client.UpdateItem(
		ctx,
		model.ConversationsTable,
		map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: model.ConversationPK(tenantID, conversationID)},
		},
		"SET #updatedAt = :updatedAt, #lastMessageAt = :lastMessageAt",
		map[string]types.AttributeValue{
			":updatedAt":     &types.AttributeValueMemberS{Value: updatedAt},
			":lastMessageAt": &types.AttributeValueMemberS{Value: lastMessageAt},
		},
		map[string]string{
			"#updatedAt":     "updatedAt",
			"#lastMessageAt": "lastMessageAt",
		},
		nil,
	)
}

// NextMessageSeq hands out the next sequence for a conversation via an atomic
// ADD on the conversation row. Two concurrent senders can never observe the
// same value.
func (r *DynamoRepository) NextMessageSeq(ctx context.Context, tenantID, conversationID string) (int64, error) {
	return r.db.Client.AddCounter(
		ctx,
		model.ConversationsTable,
		map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: model.ConversationPK(tenantID, conversationID)},
		},
		"lastSeq",
		1,
	)
}

func (r *DynamoRepository) PutParticipant(ctx context.Context, participant model.ParticipantItem) error {
	return r.db.Client.PutItem(ctx, model.ParticipantsTable, participant)
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

func (r *DynamoRepository) ListParticipants(ctx context.Context, conversationID string) ([]model.ParticipantItem, error) {
	items, err := r.db.Client.QueryItems(
		ctx,
		model.ParticipantsTable,
		aws.String("byConversation"),
		"conversationId = :conversationId",
		map[string]types.AttributeValue{
			":conversationId": &types.AttributeValueMemberS{Value: conversationID},
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
			"conversationId = :conversationId",
			map[string]types.AttributeValue{
				":conversationId": &types.AttributeValueMemberS{Value: conversationID},
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
		participants = append(participants, participant)
	}

	sort.Slice(participants, func(i, j int) bool {
		return participants[i].JoinedAt < participants[j].JoinedAt
	})

	return participants, nil
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

func (r *DynamoRepository) CreateMessage(ctx context.Context, message model.MessageItem) error {
	return r.db.Client.PutItem(ctx, model.MessagesTable, message)
}

func (r *DynamoRepository) GetMessage(ctx context.Context, conversationID string, seq int64) (model.MessageItem, error) {
	var message model.MessageItem
	err := r.db.Client.GetItem(
		ctx,
		model.MessagesTable,
		map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: model.MessagePK(conversationID, seq)},
		},
		&message,
	)
	if err != nil {
		if isNotFound(err) {
			return model.MessageItem{}, ErrNotFound
		}
		return model.MessageItem{}, err
	}
	return message, nil
}

func (r *DynamoRepository) MarkMessageDeleted(ctx context.Context, conversationID string, seq int64) error {
	return r.db.Client.UpdateItem(
		ctx,
		model.MessagesTable,
		map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: model.MessagePK(conversationID, seq)},
		},
		"SET #deleted = :deleted",
		map[string]types.AttributeValue{
			":deleted": &types.AttributeValueMemberBOOL{Value: true},
		},
		map[string]string{
			"#deleted": "deleted",
		},
		nil,
	)
}

func (r *DynamoRepository) ListMessagesAfter(ctx context.Context, tenantID, conversationID string, afterSeq int64, limit int) ([]model.MessageItem, error) {
	scanForward := true
	items, err := r.db.Client.QueryItems(
		ctx,
		model.MessagesTable,
		aws.String("byConversation"),
		"conversationId = :conversationId AND seq > :afterSeq",
		map[string]types.AttributeValue{
			":conversationId": &types.AttributeValueMemberS{Value: conversationID},
			":afterSeq":       numberAttr(afterSeq),
		},
		nil,
		&scanForward,
	)
	if err != nil && !isIndexNotFound(err) {
		return nil, err
	}

	if (err != nil && isIndexNotFound(err)) || items == nil {
		items, err = r.db.Client.ScanItems(
			ctx,
			model.MessagesTable,
			"conversationId = :conversationId AND seq > :afterSeq",
			map[string]types.AttributeValue{
				":conversationId": &types.AttributeValueMemberS{Value: conversationID},
				":afterSeq":       numberAttr(afterSeq),
			},
			nil,
		)
		if err != nil {
			return nil, err
		}
	}

	messages := make([]model.MessageItem, 0, len(items))
	for _, item := range items {
		var message model.MessageItem
		if err := attributevalue.UnmarshalMap(item, &message); err != nil {
			return nil, err
		}
		if message.TenantID != "" && message.TenantID != tenantID {
			continue
		}
		if message.Seq <= afterSeq {
			continue
		}
		messages = append(messages, message)
	}

	sort.Slice(messages, func(i, j int) bool {
		return messages[i].Seq < messages[j].Seq
	})

	if limit > 0 && len(messages) > limit {
		messages = messages[:limit]
	}

	return messages, nil
}

func numberAttr(value int64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(value, 10)}
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
