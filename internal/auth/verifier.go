package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"helpdesk-service/internal/models"
)

var ErrInvalidToken = errors.New("invalid token")

// Verifier turns a bearer credential into an authenticated principal. Token
// issuance lives in the auth service; this side only verifies the signature
// and trusts the embedded claims.
type Verifier interface {
	Verify(token string) (models.Principal, error)
}

// JWTVerifier validates HS256 tokens issued by the auth service.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier constructs a verifier for the shared signing secret.
func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

// Verify parses the token and extracts the (user_id, role, username) claims.
func (v *JWTVerifier) Verify(token string) (models.Principal, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return models.Principal{}, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return models.Principal{}, ErrInvalidToken
	}

	userID, ok := claims["user_id"].(float64)
	if !ok || userID == 0 {
		return models.Principal{}, ErrInvalidToken
	}
	role, ok := claims["role"].(string)
	if !ok || !models.Role(role).Valid() {
		return models.Principal{}, ErrInvalidToken
	}
	username, _ := claims["username"].(string)

	return models.Principal{
		UserID:   int(userID),
		Role:     models.Role(role),
		Username: username,
	}, nil
}
