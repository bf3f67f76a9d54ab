package auth

import "github.com/golang-jwt/jwt/v5"

// Authenticator validates access tokens issued by the identity service.
type Authenticator interface {
	GenerateToken(userID int64, role string) (string, error)
	ValidateAccessToken(token string) (*jwt.Token, error)
}
