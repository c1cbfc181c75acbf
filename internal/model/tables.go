package model

import "fmt"

const (
	TenantsTable       = "Tenants"
	TeamMembersTable   = "TeamMembers"
	ClientsTable       = "Clients"
	ConversationsTable = "Conversations"
	ParticipantsTable  = "Participants"
	MessagesTable      = "Messages"
)

type TenantItem struct {
	TenantID string `dynamodbav:"tenantId"`
	Name     string `dynamodbav:"name"`
	Plan     string `dynamodbav:"plan"`
	Created  string `dynamodbav:"createdAt"`
}

type TeamMemberItem struct {
	PK           string `dynamodbav:"pk"`
	TenantID     string `dynamodbav:"tenantId"`
	MemberID     string `dynamodbav:"memberId"`
	Email        string `dynamodbav:"email"`
	Name         string `dynamodbav:"name"`
	Role         string `dynamodbav:"role"`
	Status       string `dynamodbav:"status"`
	PasswordHash string `dynamodbav:"passwordHash"`
	CreatedAt    string `dynamodbav:"createdAt"`
}

type ClientItem struct {
	PK         string `dynamodbav:"pk"`
	TenantID   string `dynamodbav:"tenantId"`
	ClientID   string `dynamodbav:"clientId"`
	Name       string `dynamodbav:"name,omitempty"`
	Email      string `dynamodbav:"email,omitempty"`
	CreatedAt  string `dynamodbav:"createdAt"`
	LastSeenAt string `dynamodbav:"lastSeenAt"`
}

func TenantScopedPK(tenantID, entityID string) string {
	return fmt.Sprintf("%s#%s", tenantID, entityID)
}
