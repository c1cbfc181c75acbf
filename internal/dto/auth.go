package dto

type RegisterRequest struct {
	TenantName string `json:"tenantName"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

type LoginRequest struct {
	TenantID string `json:"tenantId,omitempty"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type InviteRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type RefreshResponse struct {
	AccessToken string `json:"accessToken"`
}

type TenantResponse struct {
	TenantID  string `json:"tenantId"`
	Name      string `json:"name"`
	Plan      string `json:"plan"`
	CreatedAt string `json:"createdAt"`
}

type TeamMemberResponse struct {
	MemberID  string `json:"memberId"`
	TenantID  string `json:"tenantId"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt"`
}

type AuthResponse struct {
	AccessToken  string             `json:"accessToken"`
	RefreshToken string             `json:"refreshToken,omitempty"`
	Member       TeamMemberResponse `json:"member"`
	Tenant       TenantResponse     `json:"tenant"`
}

type MeResponse struct {
	Member TeamMemberResponse `json:"member"`
	Tenant TenantResponse     `json:"tenant"`
}
