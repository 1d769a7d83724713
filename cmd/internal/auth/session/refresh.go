package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RefreshClaims are the claims carried by a refresh token: which session it
// belongs to and which generation it was minted for.
type RefreshClaims struct {
	SessionID  string `json:"sid"`
	Generation int64  `json:"gen"`
	jwt.RegisteredClaims
}

// RefreshTokenManager issues and verifies rotation credentials.
type RefreshTokenManager interface {
	Issue(sessionID string, generation int64, now, exp time.Time) (string, error)
	Verify(token string, now time.Time) (RefreshClaims, error)
}

type hs256RefreshManager struct {
	issuer    string
	clockSkew time.Duration
	secret    []byte
}

// NewHS256RefreshManager builds a RefreshTokenManager over HS256 JWTs.
// The secret is a key class of its own: leaking it must not allow forging
// access tokens, and vice versa.
func NewHS256RefreshManager(cfg Config) (RefreshTokenManager, error) {
	if len(cfg.RefreshSecret) < 32 {
		return nil, ErrConfig
	}

	return &hs256RefreshManager{
		issuer:    cfg.Issuer,
		clockSkew: cfg.ClockSkew,
		secret:    []byte(cfg.RefreshSecret),
	}, nil
}

func (m *hs256RefreshManager) Issue(sessionID string, generation int64, now, exp time.Time) (string, error) {
	claims := RefreshClaims{
		SessionID:  sessionID,
		Generation: generation,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

func (m *hs256RefreshManager) Verify(token string, now time.Time) (RefreshClaims, error) {
	var claims RefreshClaims

	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(m.clockSkew),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return RefreshClaims{}, ErrTokenExpired
		}
		return RefreshClaims{}, ErrInvalidToken
	}

	if !parsed.Valid || claims.SessionID == "" || claims.Generation < 1 {
		return RefreshClaims{}, ErrInvalidToken
	}

	return claims, nil
}
