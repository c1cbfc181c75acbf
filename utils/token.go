package utils

import "github.com/google/uuid"

// CreateToken returns an opaque random token used as the refresh-token value.
func CreateToken() string {
	return uuid.NewString() + uuid.NewString()
}
