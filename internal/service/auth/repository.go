package auth

import (
	"context"
	"errors"
	"strings"

	"clienthub-backend/internal/database"
	"clienthub-backend/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var ErrNotFound = errors.New("auth repository: not found")

type Repository interface {
	CreateTenant(ctx context.Context, tenant model.TenantItem) error
	GetTenant(ctx context.Context, tenantID string) (model.TenantItem, error)
	CreateTeamMember(ctx context.Context, member model.TeamMemberItem) error
	GetTeamMember(ctx context.Context, tenantID, memberID string) (model.TeamMemberItem, error)
	ListTeamMembersByEmail(ctx context.Context, email string) ([]model.TeamMemberItem, error)
}

type DynamoRepository struct {
	db *database.Database
}

func NewDynamoRepository(db *database.Database) Repository {
	return &DynamoRepository{db: db}
}

func (r *DynamoRepository) CreateTenant(ctx context.Context, tenant model.TenantItem) error {
	return r.db.Client.PutItem(ctx, model.TenantsTable, tenant)
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
		if isNotFoundError(err) {
			return model.TenantItem{}, ErrNotFound
		}
		return model.TenantItem{}, err
	}

	return tenant, nil
}

func (r *DynamoRepository) CreateTeamMember(ctx context.Context, member model.TeamMemberItem) error {
	return r.db.Client.PutItem(ctx, model.TeamMembersTable, member)
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
		if isNotFoundError(err) {
			return model.TeamMemberItem{}, ErrNotFound
		}
		return model.TeamMemberItem{}, err
	}

	return member, nil
}

func (r *DynamoRepository) ListTeamMembersByEmail(ctx context.Context, email string) ([]model.TeamMemberItem, error) {
	items, err := r.db.Client.QueryItems(
		ctx,
		model.TeamMembersTable,
		aws.String("byEmail"),
		"email = :email",
		map[string]types.AttributeValue{
			":email": &types.AttributeValueMemberS{Value: email},
		},
		nil,
		nil,
	)
	if err != nil {
		return nil, err
	}

	members := make([]model.TeamMemberItem, 0, len(items))
	for _, item := range items {
		var member model.TeamMemberItem
		if err := attributevalue.UnmarshalMap(item, &member); err != nil {
			return nil, err
		}
		members = append(members, member)
	}

	return members, nil
}

func isNotFoundError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "item not found")
}
