package jwt

import "golang.org/x/crypto/bcrypt"

const passwordHashCost = 10

// NewUser hashes the supplied password and returns the credential shape
// stored for a team member.
func NewUser(user RegisterUser) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(user.Password), passwordHashCost)
	if err != nil {
		return User{}, err
	}

	return User{
		Email:        user.Email,
		PasswordHash: string(hash),
	}, nil
}

func ValidatePassword(hashedPassword, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
}
