// Package auth verifies bearer tokens issued by the identity service.
package auth

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kaiju-coding/codejudge/pkg/apperr"
)

// Role is the role of an authenticated user
type Role string

// Roles known to the platform
const (
	RoleAdmin     Role = "admin"
	RoleEducator  Role = "educator"
	RoleStudent   Role = "student"
	RoleModerator Role = "moderator"
)

// Valid reports whether the role is known
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleEducator, RoleStudent, RoleModerator:
		return true
	}
	return false
}

// Principal is the verified identity of a caller
type Principal struct {
	Subject string
	Role    Role
}

// Verifier verifies a token and returns its principal
type Verifier interface {
	Verify(token string) (Principal, error)
}

// Authentication error messages
const (
	MsgMissingHeader = "Missing authorization header"
	MsgInvalidFormat = "Invalid authorization format"
	MsgTokenExpired  = "Token has expired"
	MsgInvalidToken  = "Invalid token"
)

// Claims is the payload of a token
type Claims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

var _ Verifier = &JWTVerifier{}

// JWTVerifier verifies HS256 signed tokens
type JWTVerifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewJWTVerifier creates a verifier with the shared secret
func NewJWTVerifier(secret []byte) *JWTVerifier {
	return &JWTVerifier{
		secret: secret,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
		),
	}
}

// Verify implements Verifier
func (v *JWTVerifier) Verify(token string) (Principal, error) {
	var c Claims
	_, err := v.parser.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Principal{}, apperr.Authentication(MsgTokenExpired)
		}
		return Principal{}, &apperr.Error{Kind: apperr.KindAuthentication, Message: MsgInvalidToken, Err: err}
	}
	if c.Subject == "" || !c.Role.Valid() {
		return Principal{}, apperr.Authentication(MsgInvalidToken)
	}
	return Principal{Subject: c.Subject, Role: c.Role}, nil
}

// ParseBearer extracts the token of an Authorization header
func ParseBearer(header string) (string, error) {
	if header == "" {
		return "", apperr.Authentication(MsgMissingHeader)
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", apperr.Authentication(MsgInvalidFormat)
	}
	return strings.TrimSpace(token), nil
}
