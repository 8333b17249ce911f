package claims

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	jwt "github.com/dgrijalva/jwt-go"
)

type contextKey string

const (
	TokenContextKey     contextKey = "token"
	PrincipalContextKey contextKey = "principal"
)

type Role string

const (
	RoleUser       Role = "user"
	RoleResearcher Role = "researcher"
	RoleAdmin      Role = "admin"
)

var ErrMalformedToken = errors.New("malformed token")

// Claims mirrors the payload the upstream signs at /auth/login.
type Claims struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
	jwt.StandardClaims
}

// Principal is what page handlers get to see about the caller. It never carries the token.
type Principal struct {
	User string
	Role Role
}

// RoleFromToken reads the role claim from the payload segment without checking the signature.
// A payload without a role yields RoleUser.
func RoleFromToken(token string) (Role, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return RoleUser, ErrMalformedToken
	}

	payload, err := jwt.DecodeSegment(parts[1])
	if err != nil {
		return RoleUser, fmt.Errorf("decode payload: %w", err)
	}

	var body struct {
		Role Role `json:"role"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return RoleUser, fmt.Errorf("unmarshal payload: %w", err)
	}

	if body.Role == "" {
		return RoleUser, nil
	}
	return body.Role, nil
}

// Verify checks the HS256 signature and the standard time claims of token.
func Verify(token string, secret []byte) (*Claims, error) {
	c := &Claims{}

	hashSecretGetter := func(t *jwt.Token) (interface{}, error) {
		method, ok := t.Method.(*jwt.SigningMethodHMAC)
		if !ok || method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	}

	parsed, err := jwt.ParseWithClaims(token, c, hashSecretGetter)
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("token is not valid")
	}
	return c, nil
}

// TokenFrom returns the verified upstream token attached by the API guard.
func TokenFrom(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(TokenContextKey).(string)
	return token, ok && token != ""
}

func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(PrincipalContextKey).(Principal)
	return p, ok
}

func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, TokenContextKey, token)
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, PrincipalContextKey, p)
}
