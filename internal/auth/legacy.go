package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LegacyIssuer is the iss claim of HMAC tokens minted by this service.
const LegacyIssuer = "songgen-api"

type legacyClaims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// LegacyVerifier accepts HS256 tokens signed with a shared secret. It is
// meant for development and for callers that predate the OIDC provider.
type LegacyVerifier struct {
	secret []byte
}

func NewLegacyVerifier(secret string) *LegacyVerifier {
	return &LegacyVerifier{secret: []byte(secret)}
}

func (v *LegacyVerifier) Verify(token string) (Identity, error) {
	if len(v.secret) == 0 {
		return Identity{}, ErrNotConfigured
	}
	claims := &legacyClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Identity{}, fmt.Errorf("legacy token: %w", err)
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	return Identity{UserID: userID, Email: claims.Email, Source: SourceLegacy}, nil
}

// Issue mints a token for userID. A zero ttl yields a token without
// expiry; a negative one an already expired token.
func (v *LegacyVerifier) Issue(userID, email string, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("user id is required")
	}
	claims := legacyClaims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   LegacyIssuer,
			Subject:  userID,
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}
	if ttl != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
