package authentication

import (
	"errors"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
	authcontext "github.com/nasermirzaei89/agora/authentication/context"
)

// Claims are the identity provider claims the platform relies on.
type Claims struct {
	jwt.RegisteredClaims

	Name string           `json:"name,omitempty"`
	Role authcontext.Role `json:"role,omitempty"`
}

type TokenVerifier interface {
	Verify(token string) (claims *Claims, err error)
}

var ErrInvalidToken = errors.New("invalid token")

// JWTVerifier validates bearer tokens either against the identity provider
// JWKS endpoint or against a shared HMAC secret.
type JWTVerifier struct {
	keyFunc jwt.Keyfunc
	methods []string
	jwks    *keyfunc.JWKS
}

var _ TokenVerifier = (*JWTVerifier)(nil)

func NewHMACVerifier(secret []byte) (*JWTVerifier, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("hmac secret must not be empty")
	}

	return &JWTVerifier{
		keyFunc: func(*jwt.Token) (any, error) { return secret, nil },
		methods: []string{jwt.SigningMethodHS256.Alg()},
	}, nil
}

func NewJWKSVerifier(jwksURL string, refreshInterval time.Duration) (*JWTVerifier, error) {
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		RefreshInterval:   refreshInterval,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get jwks from %q: %w", jwksURL, err)
	}

	return &JWTVerifier{
		keyFunc: jwks.Keyfunc,
		methods: []string{jwt.SigningMethodRS256.Alg(), jwt.SigningMethodES256.Alg()},
		jwks:    jwks,
	}, nil
}

func (v *JWTVerifier) Verify(token string) (*Claims, error) {
	var claims Claims

	parsed, err := jwt.ParseWithClaims(token, &claims, v.keyFunc, jwt.WithValidMethods(v.methods))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	if !claims.Role.IsValid() {
		return nil, &InvalidRoleError{Role: claims.Role}
	}

	return &claims, nil
}

// Close stops the background JWKS refresh, if any.
func (v *JWTVerifier) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}
