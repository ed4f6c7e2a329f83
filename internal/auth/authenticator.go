package auth

import (
	"fmt"
	"strings"
)

// Verifier turns a bearer token into an identity.
type Verifier interface {
	Verify(token string) (Identity, error)
}

// Authenticator tries its verifiers in order; the first that accepts the
// token wins.
type Authenticator struct {
	verifiers []Verifier
}

// NewAuthenticator returns an authenticator over the given verifiers.
// Nil entries are dropped.
func NewAuthenticator(verifiers ...Verifier) *Authenticator {
	a := &Authenticator{}
	for _, v := range verifiers {
		if v != nil {
			a.verifiers = append(a.verifiers, v)
		}
	}
	return a
}

// Configured reports whether any verifier is available.
func (a *Authenticator) Configured() bool {
	return a != nil && len(a.verifiers) > 0
}

// Authenticate resolves the identity behind token.
func (a *Authenticator) Authenticate(token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrNoCredentials
	}
	if !a.Configured() {
		return Identity{}, ErrNotConfigured
	}

	var lastErr error
	for _, v := range a.verifiers {
		id, err := v.Verify(token)
		if err == nil {
			if id.UserID == "" {
				lastErr = fmt.Errorf("token carries no subject")
				continue
			}
			return id, nil
		}
		lastErr = err
	}
	return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, lastErr)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrNoCredentials
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
		return "", fmt.Errorf("invalid authorization header format")
	}
	return token, nil
}
