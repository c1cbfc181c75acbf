package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	internaljwt "clienthub-backend/internal/jwt"
	"clienthub-backend/internal/model"
)

type memoryRepository struct {
	mu      sync.Mutex
	tenants map[string]model.TenantItem
	members map[string]model.TeamMemberItem
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		tenants: make(map[string]model.TenantItem),
		members: make(map[string]model.TeamMemberItem),
	}
}

func (m *memoryRepository) CreateTenant(ctx context.Context, tenant model.TenantItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenants[tenant.TenantID] = tenant
	return nil
}

func (m *memoryRepository) GetTenant(ctx context.Context, tenantID string) (model.TenantItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tenant, ok := m.tenants[tenantID]
	if !ok {
		return model.TenantItem{}, ErrNotFound
	}
	return tenant, nil
}

func (m *memoryRepository) CreateTeamMember(ctx context.Context, member model.TeamMemberItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members[member.PK] = member
	return nil
}

func (m *memoryRepository) GetTeamMember(ctx context.Context, tenantID, memberID string) (model.TeamMemberItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	member, ok := m.members[model.TenantScopedPK(tenantID, memberID)]
	if !ok {
		return model.TeamMemberItem{}, ErrNotFound
	}
	return member, nil
}

func (m *memoryRepository) ListTeamMembersByEmail(ctx context.Context, email string) ([]model.TeamMemberItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	members := make([]model.TeamMemberItem, 0)
	for _, member := range m.members {
		if member.Email == email {
			members = append(members, member)
		}
	}
	return members, nil
}

func useStubTokens(t *testing.T) {
	t.Helper()
	SetTokenIssuer(func(user internaljwt.User, role internaljwt.Role, validUntil int64) (internaljwt.TokenResponse, error) {
		return internaljwt.TokenResponse{
			AccessToken:  "access-" + user.Id,
			RefreshToken: "refresh-" + user.Id,
		}, nil
	})
	t.Cleanup(func() {
		SetTokenIssuer(nil)
	})
}

func newTestService(repo Repository) *Service {
	now := time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC)
	return NewWithRepository(repo, func() time.Time { return now })
}

func TestRegisterBootstrapsTenantAndOwner(t *testing.T) {
	repo := newMemoryRepository()
	svc := newTestService(repo)
	useStubTokens(t)

	result, err := svc.Register(context.Background(), RegisterParams{
		TenantName: "Acme Studio",
		OwnerName:  "Ann",
		OwnerEmail: "ann@example.com",
		Password:   "secret123",
	})
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}

	if result.Tenant.Name != "Acme Studio" {
		t.Fatalf("unexpected tenant name %s", result.Tenant.Name)
	}
	if result.Member.Role != RoleOwner || result.Member.Status != "active" {
		t.Fatalf("unexpected owner member %+v", result.Member)
	}
	if result.Tokens.AccessToken == "" {
		t.Fatal("expected access token")
	}
	if result.Member.PasswordHash == "secret123" {
		t.Fatal("password must be hashed")
	}
}

func TestRegisterRejectsMissingFields(t *testing.T) {
	repo := newMemoryRepository()
	svc := newTestService(repo)
	useStubTokens(t)

	_, err := svc.Register(context.Background(), RegisterParams{
		TenantName: "Acme",
		OwnerEmail: "ann@example.com",
	})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if svcErr := err.(*Error); svcErr.Code != ErrorCodeValidation {
		t.Fatalf("expected validation_error, got %s", svcErr.Code)
	}
}

func TestLoginWithValidCredentials(t *testing.T) {
	repo := newMemoryRepository()
	svc := newTestService(repo)
	useStubTokens(t)

	registered, err := svc.Register(context.Background(), RegisterParams{
		TenantName: "Acme",
		OwnerName:  "Ann",
		OwnerEmail: "ann@example.com",
		Password:   "secret123",
	})
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}

	result, err := svc.Login(context.Background(), LoginParams{
		Email:    "Ann@Example.com",
		Password: "secret123",
	})
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if result.Member.MemberID != registered.Member.MemberID {
		t.Fatal("logged in as the wrong member")
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	repo := newMemoryRepository()
	svc := newTestService(repo)
	useStubTokens(t)

	if _, err := svc.Register(context.Background(), RegisterParams{
		TenantName: "Acme",
		OwnerName:  "Ann",
		OwnerEmail: "ann@example.com",
		Password:   "secret123",
	}); err != nil {
		t.Fatalf("Register error: %v", err)
	}

	_, err := svc.Login(context.Background(), LoginParams{
		Email:    "ann@example.com",
		Password: "wrong",
	})
	if err == nil {
		t.Fatal("expected error for wrong password")
	}
	if svcErr := err.(*Error); svcErr.Code != ErrorCodeUnauthorized {
		t.Fatalf("expected unauthorized, got %s", svcErr.Code)
	}
}

func TestInviteRequiresOwner(t *testing.T) {
	repo := newMemoryRepository()
	svc := newTestService(repo)
	useStubTokens(t)

	registered, err := svc.Register(context.Background(), RegisterParams{
		TenantName: "Acme",
		OwnerName:  "Ann",
		OwnerEmail: "ann@example.com",
		Password:   "secret123",
	})
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	owner := Identity{
		MemberID: registered.Member.MemberID,
		TenantID: registered.Tenant.TenantID,
		Email:    registered.Member.Email,
	}

	invited, err := svc.Invite(context.Background(), owner, InviteParams{
		Name:     "Bo",
		Email:    "bo@example.com",
		Password: "secret456",
	})
	if err != nil {
		t.Fatalf("Invite error: %v", err)
	}
	if invited.Role != RoleMember || invited.TenantID != registered.Tenant.TenantID {
		t.Fatalf("unexpected invited member %+v", invited)
	}

	// The plain member may not invite.
	_, err = svc.Invite(context.Background(), Identity{
		MemberID: invited.MemberID,
		TenantID: invited.TenantID,
		Email:    invited.Email,
	}, InviteParams{
		Name:     "Cy",
		Email:    "cy@example.com",
		Password: "secret789",
	})
	if err == nil {
		t.Fatal("expected error for non-owner invite")
	}
	if svcErr := err.(*Error); svcErr.Code != ErrorCodeForbidden {
		t.Fatalf("expected forbidden, got %s", svcErr.Code)
	}
}

func TestMeReturnsProfile(t *testing.T) {
	repo := newMemoryRepository()
	svc := newTestService(repo)
	useStubTokens(t)

	registered, err := svc.Register(context.Background(), RegisterParams{
		TenantName: "Acme",
		OwnerName:  "Ann",
		OwnerEmail: "ann@example.com",
		Password:   "secret123",
	})
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}

	profile, err := svc.Me(context.Background(), Identity{
		MemberID: registered.Member.MemberID,
		TenantID: registered.Tenant.TenantID,
	})
	if err != nil {
		t.Fatalf("Me error: %v", err)
	}
	if profile.Member.Email != "ann@example.com" || profile.Tenant.TenantID != registered.Tenant.TenantID {
		t.Fatalf("unexpected profile %+v", profile)
	}
}
