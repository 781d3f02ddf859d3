package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nickyhof/ShopQL/core"
)

var (
	errAuthRequired      = errors.New("authentication required: send AUTH JWT <token>")
	errAuthNotConfigured = errors.New("authentication not configured")
)

// AuthConfig configures server authentication. Only HMAC-signed JWTs are
// accepted.
type AuthConfig struct {
	Enabled   bool
	JWTSecret string

	// Issuer and Audience, when set, must match the token's iss and aud.
	Issuer   string
	Audience string

	// Role, when set, must equal the token's RoleClaim. Storefront admin
	// tokens carry "admin".
	Role string

	// Claim names, defaulting to "name", "email" and "role".
	NameClaim  string
	EmailClaim string
	RoleClaim  string
}

// session is what a valid token grants: who is asking, and until when.
type session struct {
	identity  core.Identity
	expiresAt time.Time // zero when the token has no exp
}

// ConnectionState tracks per-connection authentication state.
type ConnectionState struct {
	session       session
	authenticated bool
}

func (cs *ConnectionState) IsAuthenticated() bool {
	return cs.authenticated
}

// Identity returns the connection's identity, or nil if not authenticated.
func (cs *ConnectionState) Identity() *core.Identity {
	if !cs.authenticated {
		return nil
	}
	identity := cs.session.identity
	return &identity
}

func (cs *ConnectionState) expired(now time.Time) bool {
	expiry := cs.session.expiresAt
	return cs.authenticated && !expiry.IsZero() && now.After(expiry)
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func (cfg *AuthConfig) parser() *jwt.Parser {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	return jwt.NewParser(opts...)
}

// validate verifies a token's signature and registered claims, then checks
// the role and pulls out the identity.
func (cfg *AuthConfig) validate(raw string) (session, error) {
	if cfg == nil || cfg.JWTSecret == "" {
		return session{}, errAuthNotConfigured
	}

	claims := jwt.MapClaims{}
	_, err := cfg.parser().ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil {
		return session{}, fmt.Errorf("invalid token: %w", err)
	}

	if cfg.Role != "" {
		if role, _ := claims[orDefault(cfg.RoleClaim, "role")].(string); role != cfg.Role {
			return session{}, fmt.Errorf("insufficient role: expected %s", cfg.Role)
		}
	}

	nameClaim, emailClaim := orDefault(cfg.NameClaim, "name"), orDefault(cfg.EmailClaim, "email")
	name, _ := claims[nameClaim].(string)
	email, _ := claims[emailClaim].(string)
	if name == "" && email == "" {
		return session{}, fmt.Errorf("token missing identity claims (%s or %s)", nameClaim, emailClaim)
	}

	s := session{identity: core.Identity{Name: name, Email: email}}
	if exp, _ := claims.GetExpirationTime(); exp != nil {
		s.expiresAt = exp.Time
	}
	return s, nil
}

// parseAuthCommand splits "AUTH <type> <credentials>". JWT is the only
// supported type.
func parseAuthCommand(line string) (authType, token string, err error) {
	fields := strings.Fields(line)
	switch {
	case len(fields) == 0 || !strings.EqualFold(fields[0], "AUTH"):
		return "", "", errors.New("not an AUTH command")
	case len(fields) < 3:
		return "", "", errors.New("invalid AUTH command: expected AUTH <type> <credentials>")
	}

	authType = strings.ToUpper(fields[1])
	if authType != "JWT" {
		return "", "", fmt.Errorf("unsupported auth type: %s", authType)
	}
	return authType, fields[2], nil
}

func isAuthCommand(line string) bool {
	return len(line) > 5 && strings.EqualFold(line[:5], "AUTH ")
}

// handleAuth answers an AUTH line, authenticating the connection on
// success. A failed attempt leaves the previous state untouched.
func (s *Server) handleAuth(line string, state *ConnectionState) Response {
	failure := func(err error) Response {
		return Response{Success: false, Type: "auth", Error: err.Error()}
	}

	_, token, err := parseAuthCommand(line)
	if err != nil {
		return failure(err)
	}
	granted, err := s.authConfig.validate(token)
	if err != nil {
		return failure(err)
	}

	*state = ConnectionState{session: granted, authenticated: true}

	result := AuthResponse{Authenticated: true, Identity: granted.identity.String()}
	if !granted.expiresAt.IsZero() {
		result.ExpiresIn = int(time.Until(granted.expiresAt).Seconds())
	}
	data, err := json.Marshal(result)
	if err != nil {
		return failure(err)
	}
	return Response{Success: true, Type: "auth", Result: data}
}
