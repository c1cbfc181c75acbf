package endpoints

import (
	"bytes"
	"clienthub-backend/internal/api"
	"clienthub-backend/internal/api/middleware"
	"clienthub-backend/internal/dto"
	internaljwt "clienthub-backend/internal/jwt"
	"clienthub-backend/internal/model"
	"clienthub-backend/internal/queue"
	authsvc "clienthub-backend/internal/service/auth"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type testRepository struct {
	mu      sync.Mutex
	tenants map[string]model.TenantItem
	members map[string]model.TeamMemberItem
}

func newTestRepository() *testRepository {
	return &testRepository{
		tenants: make(map[string]model.TenantItem),
		members: make(map[string]model.TeamMemberItem),
	}
}

func (m *testRepository) CreateTenant(ctx context.Context, tenant model.TenantItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenants[tenant.TenantID] = tenant
	return nil
}

func (m *testRepository) GetTenant(ctx context.Context, tenantID string) (model.TenantItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tenant, ok := m.tenants[tenantID]
	if !ok {
		return model.TenantItem{}, authsvc.ErrNotFound
	}
	return tenant, nil
}

func (m *testRepository) CreateTeamMember(ctx context.Context, member model.TeamMemberItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members[member.PK] = member
	return nil
}

func (m *testRepository) GetTeamMember(ctx context.Context, tenantID, memberID string) (model.TeamMemberItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	member, ok := m.members[model.TenantScopedPK(tenantID, memberID)]
	if !ok {
		return model.TeamMemberItem{}, authsvc.ErrNotFound
	}
	return member, nil
}

func (m *testRepository) ListTeamMembersByEmail(ctx context.Context, email string) ([]model.TeamMemberItem, error) {
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

func fixedTime() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func setupAuthJWT(t *testing.T) {
	t.Helper()
	useTestJWTSecret(t)
	authsvc.SetTokenIssuer(func(user internaljwt.User, role internaljwt.Role, validUntil int64) (internaljwt.TokenResponse, error) {
		token, err := internaljwt.CreateToken(user, role, validUntil)
		if err != nil {
			return internaljwt.TokenResponse{}, err
		}
		return internaljwt.TokenResponse{
			AccessToken: token,
		}, nil
	})
	t.Cleanup(func() {
		authsvc.SetTokenIssuer(nil)
	})
}

func setupAuthHandler(t *testing.T, svc *authsvc.Service) http.Handler {
	t.Helper()

	authEndpoints := &authEndpoints{service: svc}

	queueManager := queue.NewRequestQueueManager(10, 1)
	server := api.NewAPIServer(":0", queueManager, nil, nil, nil, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/register", server.MakeHTTPHandleFunc(authEndpoints.Register))
	mux.HandleFunc("/api/auth/login", server.MakeHTTPHandleFunc(authEndpoints.Login))
	mux.HandleFunc("/api/auth/me", server.MakeHTTPHandleFunc(authEndpoints.Me, middleware.ValidateTeamMemberJWT))
	mux.HandleFunc("/api/auth/invite", server.MakeHTTPHandleFunc(authEndpoints.Invite, middleware.ValidateTeamMemberJWT))

	t.Cleanup(queueManager.Shutdown)

	return mux
}

func doJSONRequest[T any](t *testing.T, handler http.Handler, method, target string, body interface{}, headers map[string]string, expectedStatus int) T {
	t.Helper()

	var payload io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		payload = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, target, payload)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != expectedStatus {
		t.Fatalf("expected status %d, got %d: %s", expectedStatus, rec.Code, rec.Body.String())
	}

	var result T
	if expectedStatus != http.StatusNoContent {
		if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}

	return result
}

func TestAuthEndpointsEndToEnd(t *testing.T) {
	setupAuthJWT(t)
	repo := newTestRepository()
	service := authsvc.NewWithRepository(repo, fixedTime)

	handler := setupAuthHandler(t, service)

	registerPayload := dto.RegisterRequest{
		TenantName: "Acme Studio",
		Name:       "Jane Owner",
		Email:      "owner@example.com",
		Password:   "Sup3rS3cret!",
	}

	registerResp := doJSONRequest[dto.AuthResponse](t, handler, http.MethodPost, "/api/auth/register", registerPayload, nil, http.StatusCreated)

	if registerResp.Tenant.Plan != "starter" {
		t.Fatalf("expected plan starter, got %s", registerResp.Tenant.Plan)
	}
	if registerResp.Member.Role != "owner" {
		t.Fatalf("expected owner role, got %s", registerResp.Member.Role)
	}

	loginPayload := dto.LoginRequest{
		TenantID: registerResp.Tenant.TenantID,
		Email:    "owner@example.com",
		Password: "Sup3rS3cret!",
	}

	loginResp := doJSONRequest[dto.AuthResponse](t, handler, http.MethodPost, "/api/auth/login", loginPayload, nil, http.StatusOK)

	if loginResp.AccessToken == "" {
		t.Fatal("expected access token in login response")
	}

	meHeaders := map[string]string{
		"Authorization": "Bearer " + loginResp.AccessToken,
	}

	meResp := doJSONRequest[dto.MeResponse](t, handler, http.MethodGet, "/api/auth/me", nil, meHeaders, http.StatusOK)

	if meResp.Member.Email != "owner@example.com" {
		t.Fatalf("unexpected member email %s", meResp.Member.Email)
	}
	if meResp.Tenant.TenantID != registerResp.Tenant.TenantID {
		t.Fatalf("expected tenant %s, got %s", registerResp.Tenant.TenantID, meResp.Tenant.TenantID)
	}
}

func TestAuthInviteFlow(t *testing.T) {
	setupAuthJWT(t)
	repo := newTestRepository()
	service := authsvc.NewWithRepository(repo, fixedTime)

	handler := setupAuthHandler(t, service)

	registerResp := doJSONRequest[dto.AuthResponse](t, handler, http.MethodPost, "/api/auth/register", dto.RegisterRequest{
		TenantName: "Acme Studio",
		Name:       "Jane Owner",
		Email:      "owner@example.com",
		Password:   "Sup3rS3cret!",
	}, nil, http.StatusCreated)

	ownerHeaders := map[string]string{
		"Authorization": "Bearer " + registerResp.AccessToken,
	}

	invited := doJSONRequest[dto.TeamMemberResponse](t, handler, http.MethodPost, "/api/auth/invite", dto.InviteRequest{
		Name:     "Bo Member",
		Email:    "bo@example.com",
		Password: "An0therS3cret!",
	}, ownerHeaders, http.StatusCreated)

	if invited.Role != "member" || invited.TenantID != registerResp.Tenant.TenantID {
		t.Fatalf("unexpected invited member %+v", invited)
	}

	memberLogin := doJSONRequest[dto.AuthResponse](t, handler, http.MethodPost, "/api/auth/login", dto.LoginRequest{
		TenantID: registerResp.Tenant.TenantID,
		Email:    "bo@example.com",
		Password: "An0therS3cret!",
	}, nil, http.StatusOK)

	memberHeaders := map[string]string{
		"Authorization": "Bearer " + memberLogin.AccessToken,
	}

	// Plain members may not invite.
	doJSONRequest[map[string]string](t, handler, http.MethodPost, "/api/auth/invite", dto.InviteRequest{
		Name:     "Cy Third",
		Email:    "cy@example.com",
		Password: "YetAn0ther!",
	}, memberHeaders, http.StatusForbidden)
}
