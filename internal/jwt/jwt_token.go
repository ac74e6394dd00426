package jwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
)

const DefaultTTL = 15 * time.Minute

func roleChar(role Role) string {
	switch role {
	case RoleAdmin:
		return "a"
	}
	return ""
}

// CreateToken signs a token for subject. validUntil is a unix timestamp; zero
// means DefaultTTL from now.
func CreateToken(subject string, role Role, validUntil int64) (TokenResponse, error) {
	secret, ok := secretFor(role)
	if !ok {
		return TokenResponse{}, fmt.Errorf("no secret configured for role")
	}

	if validUntil == 0 {
		validUntil = time.Now().Add(DefaultTTL).Unix()
	}

	claims := jwt.MapClaims{
		"sub": subject,
		"exp": validUntil,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return TokenResponse{}, err
	}

	return TokenResponse{
		AccessToken: tokenString + roleChar(role),
		ExpiresAt:   validUntil,
	}, nil
}

// ParseToken validates tokenString for role, including its trailing role
// character, and returns its claims.
func ParseToken(tokenString string, role Role) (jwt.MapClaims, error) {
	if len(tokenString) == 0 {
		return nil, fmt.Errorf("token string is empty")
	}

	char := roleChar(role)
	if tokenString[len(tokenString)-len(char):] != char {
		return nil, fmt.Errorf("invalid role character in token")
	}
	tokenString = tokenString[:len(tokenString)-len(char)]

	secret, ok := secretFor(role)
	if !ok {
		return nil, fmt.Errorf("no secret configured for role")
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("unauthorized: %v", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is not valid - unauthorized")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("claims of unauthorized type")
	}
	return claims, nil
}
