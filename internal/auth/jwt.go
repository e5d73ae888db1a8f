package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims represents the claims in our JWT token
type JWTClaims struct {
	AgentID string `json:"agent_id"`
	Role    string `json:"role"` // "agent"
	jwt.RegisteredClaims
}

var jwtSecret []byte

// Configure sets the signing secret. Must be called once at startup before
// any token is issued or validated.
func Configure(secret string) {
	jwtSecret = []byte(secret)
}

// GenerateAgentToken generates a JWT token for agent authentication
func GenerateAgentToken(agentID string) (string, error) {
	claims := &JWTClaims{
		AgentID: agentID,
		Role:    "agent",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

// ValidateToken validates a JWT token and returns the claims
func ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrInvalidKey
}
