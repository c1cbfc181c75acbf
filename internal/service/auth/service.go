package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"clienthub-backend/internal/database"
	internaljwt "clienthub-backend/internal/jwt"
	"clienthub-backend/internal/model"

	"github.com/google/uuid"
)

const (
	defaultPlan = "starter"

	RoleOwner  = "owner"
	RoleMember = "member"
)

type Service struct {
	repo Repository
	now  func() time.Time
}

var createTokenWithRefresh = internaljwt.CreateTokenWithRefresh

// SetTokenIssuer swaps the token factory; tests use it to avoid Redis.
func SetTokenIssuer(issuer func(internaljwt.User, internaljwt.Role, int64) (internaljwt.TokenResponse, error)) {
	if issuer == nil {
		createTokenWithRefresh = internaljwt.CreateTokenWithRefresh
		return
	}
	createTokenWithRefresh = issuer
}

func New(db *database.Database) *Service {
	return &Service{
		repo: NewDynamoRepository(db),
		now:  time.Now,
	}
}

func NewWithRepository(repo Repository, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}

	return &Service{
		repo: repo,
		now:  now,
	}
}

// Register bootstraps a tenant together with its owning team member.
func (s *Service) Register(ctx context.Context, params RegisterParams) (AuthResult, error) {
	email := normalizeEmail(params.OwnerEmail)
	password := strings.TrimSpace(params.Password)
	name := strings.TrimSpace(params.OwnerName)
	tenantName := strings.TrimSpace(params.TenantName)

	if email == "" || password == "" || name == "" || tenantName == "" {
		return AuthResult{}, newError(ErrorCodeValidation, "missing required fields", nil)
	}

	now := s.now().UTC().Format(time.RFC3339)
	tenantID := uuid.NewString()
	memberID := uuid.NewString()

	tenant := model.TenantItem{
		TenantID: tenantID,
		Name:     tenantName,
		Plan:     defaultPlan,
		Created:  now,
	}

	if err := s.repo.CreateTenant(ctx, tenant); err != nil {
		return AuthResult{}, newError(ErrorCodeInternal, "failed to create tenant", err)
	}

	jwtUser, err := internaljwt.NewUser(internaljwt.RegisterUser{
		Email:    email,
		Password: password,
	})
	if err != nil {
		return AuthResult{}, newError(ErrorCodeInternal, "failed to prepare credentials", err)
	}

	jwtUser.Id = memberID
	jwtUser.TenantID = tenantID

	member := model.TeamMemberItem{
		PK:           model.TenantScopedPK(tenantID, memberID),
		TenantID:     tenantID,
		MemberID:     memberID,
		Email:        email,
		Name:         name,
		Role:         RoleOwner,
		Status:       "active",
		PasswordHash: jwtUser.PasswordHash,
		CreatedAt:    now,
	}

	if err := s.repo.CreateTeamMember(ctx, member); err != nil {
		return AuthResult{}, newError(ErrorCodeInternal, "failed to save team member", err)
	}

	tokens, err := createTokenWithRefresh(jwtUser, internaljwt.RoleTeamMember, 0)
	if err != nil {
		return AuthResult{}, newError(ErrorCodeInternal, "failed to issue tokens", err)
	}

	return AuthResult{
		Member: member,
		Tenant: tenant,
		Tokens: tokens,
	}, nil
}

func (s *Service) Login(ctx context.Context, params LoginParams) (AuthResult, error) {
	email := normalizeEmail(params.Email)
	password := strings.TrimSpace(params.Password)
	tenantID := strings.TrimSpace(params.TenantID)

	if email == "" || password == "" {
		return AuthResult{}, newError(ErrorCodeValidation, "missing required fields", nil)
	}

	members, err := s.repo.ListTeamMembersByEmail(ctx, email)
	if err != nil {
		return AuthResult{}, newError(ErrorCodeInternal, "failed to fetch team member", err)
	}

	match, ok := selectMember(members, tenantID, password)
	if !ok {
		return AuthResult{}, newError(ErrorCodeUnauthorized, "invalid credentials", nil)
	}

	tenant, err := s.repo.GetTenant(ctx, match.TenantID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return AuthResult{}, newError(ErrorCodeUnauthorized, "invalid credentials", err)
		}
		return AuthResult{}, newError(ErrorCodeInternal, "failed to fetch tenant", err)
	}

	jwtUser := internaljwt.User{
		Id:           match.MemberID,
		TenantID:     match.TenantID,
		Email:        match.Email,
		PasswordHash: match.PasswordHash,
	}

	tokens, err := createTokenWithRefresh(jwtUser, internaljwt.RoleTeamMember, 0)
	if err != nil {
		return AuthResult{}, newError(ErrorCodeInternal, "failed to issue tokens", err)
	}

	return AuthResult{
		Member: match,
		Tenant: tenant,
		Tokens: tokens,
	}, nil
}

// Invite provisions another team member in the caller's tenant. Only owners
// may invite.
func (s *Service) Invite(ctx context.Context, identity Identity, params InviteParams) (model.TeamMemberItem, error) {
	caller, err := s.activeMember(ctx, identity)
	if err != nil {
		return model.TeamMemberItem{}, err
	}
	if caller.Role != RoleOwner {
		return model.TeamMemberItem{}, newError(ErrorCodeForbidden, "only owners may invite team members", nil)
	}

	email := normalizeEmail(params.Email)
	password := strings.TrimSpace(params.Password)
	name := strings.TrimSpace(params.Name)
	if email == "" || password == "" || name == "" {
		return model.TeamMemberItem{}, newError(ErrorCodeValidation, "missing required fields", nil)
	}

	role := strings.TrimSpace(params.Role)
	if role == "" {
		role = RoleMember
	}
	if role != RoleOwner && role != RoleMember {
		return model.TeamMemberItem{}, newError(ErrorCodeValidation, "unknown role", nil)
	}

	existing, err := s.repo.ListTeamMembersByEmail(ctx, email)
	if err != nil {
		return model.TeamMemberItem{}, newError(ErrorCodeInternal, "failed to check existing members", err)
	}
	for _, member := range existing {
		if member.TenantID == caller.TenantID {
			return model.TeamMemberItem{}, newError(ErrorCodeValidation, "email already registered in this workspace", nil)
		}
	}

	jwtUser, err := internaljwt.NewUser(internaljwt.RegisterUser{
		Email:    email,
		Password: password,
	})
	if err != nil {
		return model.TeamMemberItem{}, newError(ErrorCodeInternal, "failed to prepare credentials", err)
	}

	now := s.now().UTC().Format(time.RFC3339)
	memberID := uuid.NewString()

	member := model.TeamMemberItem{
		PK:           model.TenantScopedPK(caller.TenantID, memberID),
		TenantID:     caller.TenantID,
		MemberID:     memberID,
		Email:        email,
		Name:         name,
		Role:         role,
		Status:       "active",
		PasswordHash: jwtUser.PasswordHash,
		CreatedAt:    now,
	}

	if err := s.repo.CreateTeamMember(ctx, member); err != nil {
		return model.TeamMemberItem{}, newError(ErrorCodeInternal, "failed to save team member", err)
	}

	return member, nil
}

func (s *Service) Me(ctx context.Context, identity Identity) (ProfileResult, error) {
	member, err := s.activeMember(ctx, identity)
	if err != nil {
		return ProfileResult{}, err
	}

	tenant, err := s.repo.GetTenant(ctx, member.TenantID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ProfileResult{}, newError(ErrorCodeNotFound, "tenant not found", err)
		}
		return ProfileResult{}, newError(ErrorCodeInternal, "failed to fetch tenant", err)
	}

	return ProfileResult{
		Member: member,
		Tenant: tenant,
	}, nil
}

// Refresh exchanges a valid refresh token for a new access token.
func (s *Service) Refresh(refreshToken string) (string, error) {
	token, err := internaljwt.RefreshToken(refreshToken, internaljwt.RoleTeamMember)
	if err != nil {
		return "", newError(ErrorCodeUnauthorized, "invalid refresh token", err)
	}
	return token, nil
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

func (s *Service) identityFromToken(token string) (Identity, error) {
	if token == "" {
		return Identity{}, newError(ErrorCodeUnauthorized, "empty token", nil)
	}

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

func (s *Service) activeMember(ctx context.Context, identity Identity) (model.TeamMemberItem, error) {
	memberID := strings.TrimSpace(identity.MemberID)
	tenantID := strings.TrimSpace(identity.TenantID)

	if memberID == "" || tenantID == "" {
		return model.TeamMemberItem{}, newError(ErrorCodeUnauthorized, "invalid identity", nil)
	}

	member, err := s.repo.GetTeamMember(ctx, tenantID, memberID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.TeamMemberItem{}, newError(ErrorCodeUnauthorized, "team member not found", err)
		}
		return model.TeamMemberItem{}, newError(ErrorCodeInternal, "failed to fetch team member", err)
	}
	if member.Status != "active" {
		return model.TeamMemberItem{}, newError(ErrorCodeUnauthorized, "team member is not active", nil)
	}

	return member, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func selectMember(members []model.TeamMemberItem, tenantID, password string) (model.TeamMemberItem, bool) {
	matches := make([]model.TeamMemberItem, 0, len(members))
	for _, member := range members {
		if member.Status != "active" {
			continue
		}
		if tenantID != "" && member.TenantID != tenantID {
			continue
		}
		if !internaljwt.ValidatePassword(member.PasswordHash, password) {
			continue
		}
		matches = append(matches, member)
	}

	if len(matches) == 0 {
		return model.TeamMemberItem{}, false
	}

	for _, match := range matches {
		if match.Role == RoleOwner {
			return match, true
		}
	}
	return matches[0], true
}
