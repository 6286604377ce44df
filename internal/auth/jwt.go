package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTVerifier is the default Verifier, built on an injected key function
// (the transport layer owns JWKS fetching and hands the resolved keys in).
type JWTVerifier struct {
	// Keys resolves the verification key for a token header.
	Keys jwt.Keyfunc
	// Issuer and Audience are matched exactly when non-empty.
	Issuer   string
	Audience string
	// Leeway loosens exp/nbf checks for clock drift.
	Leeway time.Duration
	// Revoked, when set, is consulted with the token's jti.
	Revoked func(jti string) bool
	Now     func() time.Time
}

type bashxClaims struct {
	Scope       string       `json:"scope,omitempty"`
	ScopeList   []string     `json:"scopes,omitempty"`
	Permissions *Permissions `json:"bashx:permissions,omitempty"`
	jwt.RegisteredClaims
}

// Verify parses and validates the token, mapping every failure to its
// specific ErrorKind.
func (v *JWTVerifier) Verify(_ context.Context, token string) (*Claims, error) {
	if strings.TrimSpace(token) == "" {
		return nil, &VerifyError{Kind: ErrMissingToken, Err: errors.New("no token supplied")}
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"RS256", "ES256", "HS256"})}
	if v.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(v.Leeway))
	}
	if v.Now != nil {
		opts = append(opts, jwt.WithTimeFunc(v.Now))
	}

	var claims bashxClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, v.Keys, opts...)
	if err != nil {
		return nil, &VerifyError{Kind: classifyJWTError(err), Err: err}
	}
	if !parsed.Valid {
		return nil, &VerifyError{Kind: ErrInvalidToken, Err: errors.New("token failed validation")}
	}
	if v.Issuer != "" && claims.Issuer != v.Issuer {
		return nil, &VerifyError{Kind: ErrInvalidIssuer, Err: fmt.Errorf("issuer %q not accepted", claims.Issuer)}
	}
	if v.Audience != "" && !hasAudience(claims.Audience, v.Audience) {
		return nil, &VerifyError{Kind: ErrInvalidAudience, Err: fmt.Errorf("audience %v not accepted", claims.Audience)}
	}
	if v.Revoked != nil && claims.ID != "" && v.Revoked(claims.ID) {
		return nil, &VerifyError{Kind: ErrTokenRevoked, Err: fmt.Errorf("token %s revoked", claims.ID)}
	}

	out := &Claims{
		Subject:     claims.Subject,
		Issuer:      claims.Issuer,
		Audience:    []string(claims.Audience),
		JTI:         claims.ID,
		Permissions: claims.Permissions,
		Scopes:      claims.ScopeList,
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	if len(out.Scopes) == 0 && claims.Scope != "" {
		out.Scopes = strings.Fields(claims.Scope)
	}
	return out, nil
}

func classifyJWTError(err error) ErrorKind {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrInvalidToken
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return ErrInvalidIssuer
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return ErrInvalidAudience
	default:
		return ErrVerificationFailed
	}
}

func hasAudience(aud []string, want string) bool {
	for _, a := range aud {
		if a == want {
			return true
		}
	}
	return false
}
