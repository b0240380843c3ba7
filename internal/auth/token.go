package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims identify the ATM session a token was issued for.
type Claims struct {
	SessionID  uuid.UUID
	CustomerID uuid.UUID
}

type tokenClaims struct {
	jwt.RegisteredClaims
	SessionID  string `json:"session_id"`
	CustomerID string `json:"customer_id"`
}

func GenerateSessionToken(sessionID, customerID uuid.UUID, secret string, expiry time.Duration) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		SessionID:  sessionID.String(),
		CustomerID: customerID.String(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("GenerateSessionToken: %w", err)
	}
	return signed, nil
}

func ValidateSessionToken(tokenString string, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &tokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("ValidateSessionToken: %w", err)
	}

	tc, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("ValidateSessionToken: invalid token claims")
	}

	sessionID, err := uuid.Parse(tc.SessionID)
	if err != nil {
		return nil, fmt.Errorf("ValidateSessionToken: invalid session_id in token: %w", err)
	}
	customerID, err := uuid.Parse(tc.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("ValidateSessionToken: invalid customer_id in token: %w", err)
	}

	return &Claims{
		SessionID:  sessionID,
		CustomerID: customerID,
	}, nil
}
