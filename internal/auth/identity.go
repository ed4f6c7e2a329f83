package auth

import "errors"

// Source names the mechanism that established an identity.
type Source string

const (
	SourceOIDC    Source = "oidc"
	SourceLegacy  Source = "legacy"
	SourceGateway Source = "gateway"
)

// Headers ForwardAuth copies onto requests it lets through.
const (
	HeaderUserID    = "X-User-Id"
	HeaderUserEmail = "X-User-Email"
	HeaderUserName  = "X-User-Name"
)

var (
	ErrNoCredentials   = errors.New("missing credentials")
	ErrInvalidToken    = errors.New("invalid or expired token")
	ErrNotConfigured   = errors.New("authentication not configured")
	ErrMissingIdentity = errors.New("missing user identity headers")
)

// Identity is the authenticated requester. UserID is the owner key jobs are
// stored and authorized under.
type Identity struct {
	UserID string
	Email  string
	Name   string
	Source Source
}

// ForwardHeaders returns the X-User-* headers describing the identity.
// Empty attributes are left out.
func (id Identity) ForwardHeaders() map[string]string {
	h := map[string]string{HeaderUserID: id.UserID}
	if id.Email != "" {
		h[HeaderUserEmail] = id.Email
	}
	if id.Name != "" {
		h[HeaderUserName] = id.Name
	}
	return h
}

// FromForwardHeaders rebuilds an identity a gateway forwarded with
// ForwardHeaders.
func FromForwardHeaders(get func(key string) string) (Identity, error) {
	userID := get(HeaderUserID)
	if userID == "" {
		return Identity{}, ErrMissingIdentity
	}
	return Identity{
		UserID: userID,
		Email:  get(HeaderUserEmail),
		Name:   get(HeaderUserName),
		Source: SourceGateway,
	}, nil
}
