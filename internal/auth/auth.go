// Package auth derives the per-request authorization context from a bearer
// token and caches it. Verification itself is pluggable: the dispatcher
// only consumes Context values, so hosts can swap the JWT adapter for
// whatever their edge runtime verifies with.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Scopes understood by the scope gate.
const (
	ScopeExec  = "bash:exec"
	ScopeAdmin = "bash:admin"
)

// ErrorKind is the specific authentication failure, surfaced on the
// context rather than as a Go error so blocked results can carry it.
type ErrorKind string

const (
	ErrNone               ErrorKind = ""
	ErrMissingToken       ErrorKind = "missing_token"
	ErrInvalidSignature   ErrorKind = "invalid_signature"
	ErrTokenExpired       ErrorKind = "token_expired"
	ErrInvalidIssuer      ErrorKind = "invalid_issuer"
	ErrInvalidAudience    ErrorKind = "invalid_audience"
	ErrTokenRevoked       ErrorKind = "token_revoked"
	ErrVerificationFailed ErrorKind = "verification_failed"
	ErrInvalidToken       ErrorKind = "invalid_token"
)

// Permissions is the effective permission set for one request.
type Permissions struct {
	Exec            bool     `json:"exec"`
	Admin           bool     `json:"admin"`
	AllowedCommands []string `json:"allowedCommands,omitempty"`
	BlockedCommands []string `json:"blockedCommands,omitempty"`
	AllowedPaths    []string `json:"allowedPaths,omitempty"`
}

// Context is the derived authorization context.
type Context struct {
	Authenticated bool        `json:"authenticated"`
	UserID        string      `json:"userId,omitempty"`
	Permissions   Permissions `json:"permissions"`
	Scopes        []string    `json:"scopes,omitempty"`
	ErrKind       ErrorKind   `json:"error,omitempty"`
}

// HasScope reports whether the context carries a scope.
func (c *Context) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Claims is the verified token payload the adapter hands back.
type Claims struct {
	Subject   string
	Issuer    string
	Audience  []string
	ExpiresAt time.Time
	Scopes    []string
	JTI       string
	// Permissions carries the bashx:permissions claim verbatim when the
	// token embeds one; nil means infer from scopes.
	Permissions *Permissions
}

// Verifier validates a raw token and returns its claims.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

// VerifyError pairs a Go error with its ErrorKind for the result surface.
type VerifyError struct {
	Kind ErrorKind
	Err  error
}

func (e *VerifyError) Error() string { return string(e.Kind) + ": " + e.Err.Error() }
func (e *VerifyError) Unwrap() error { return e.Err }

// KindOf extracts the ErrorKind from a verification error.
func KindOf(err error) ErrorKind {
	var ve *VerifyError
	if errors.As(err, &ve) {
		return ve.Kind
	}
	return ErrVerificationFailed
}

// FromClaims maps verified claims to a Context. A bashx:permissions claim
// wins; otherwise exec/admin are inferred from the scope set.
func FromClaims(c *Claims) *Context {
	out := &Context{
		Authenticated: true,
		UserID:        c.Subject,
		Scopes:        c.Scopes,
	}
	if c.Permissions != nil {
		out.Permissions = *c.Permissions
		return out
	}
	for _, s := range c.Scopes {
		switch s {
		case ScopeExec:
			out.Permissions.Exec = true
		case ScopeAdmin:
			out.Permissions.Admin = true
			out.Permissions.Exec = true
		}
	}
	return out
}

// Anonymous returns the unauthenticated context for a given failure kind.
func Anonymous(kind ErrorKind) *Context {
	return &Context{Authenticated: false, ErrKind: kind}
}

// ExtractToken pulls the bearer token from an Authorization header value,
// falling back to a cookie value when configured.
func ExtractToken(authorization, cookie string) string {
	if strings.HasPrefix(authorization, "Bearer ") {
		return strings.TrimSpace(authorization[len("Bearer "):])
	}
	if strings.HasPrefix(authorization, "bearer ") {
		return strings.TrimSpace(authorization[len("bearer "):])
	}
	return cookie
}
