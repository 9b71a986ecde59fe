package tokens

import (
	"github.com/golang-jwt/jwt/v5"
)

type TokenType string

const (
	TypeAccess  TokenType = "access"
	TypeRefresh TokenType = "refresh"
)

type Claims struct {
	UserID    uint      `json:"uid"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	SessionID string    `json:"sid,omitempty"`
	Type      TokenType `json:"typ"`
	jwt.RegisteredClaims
}
