package models

import "github.com/golang-jwt/jwt/v5"

// SessionClaims are the JWT claims carried by a Gatehouse session token.
type SessionClaims struct {
	UserID   string   `json:"uid"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
	Remember bool     `json:"remember"`
	jwt.RegisteredClaims
}
