package auth

import (
	internaljwt "clienthub-backend/internal/jwt"
	"clienthub-backend/internal/model"
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

type RegisterParams struct {
	TenantName string
	OwnerName  string
	OwnerEmail string
	Password   string
}

type LoginParams struct {
	TenantID string
	Email    string
	Password string
}

type InviteParams struct {
	Name     string
	Email    string
	Password string
	Role     string
}

type Identity struct {
	MemberID string
	TenantID string
	Email    string
}

type AuthResult struct {
	Member model.TeamMemberItem
	Tenant model.TenantItem
	Tokens internaljwt.TokenResponse
}

type ProfileResult struct {
	Member model.TeamMemberItem
	Tenant model.TenantItem
}
