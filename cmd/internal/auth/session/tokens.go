package session

import (
	"time"

	paseto "aidanwoods.dev/go-paseto"
)

// AccessClaims is the identity envelope attached to authenticated requests
// and handed to downstream collaborators. They never see raw tokens or the
// store, only this.
type AccessClaims struct {
	UserID        int64
	Login         string
	SessionID     string
	UpstreamToken string
	IssuedAt      time.Time
	ExpiresAt     time.Time
	Issuer        string
}

// AccessTokenManager issues and verifies short-lived access tokens.
type AccessTokenManager interface {
	Issue(ident Identity, sessionID, upstreamToken string, now time.Time) (token string, exp time.Time, err error)
	Verify(token string, now time.Time) (AccessClaims, error)
}

type pasetoV4LocalManager struct {
	issuer    string
	ttl       time.Duration
	clockSkew time.Duration

	key paseto.V4SymmetricKey
}

// NewPasetoV4LocalManager builds an AccessTokenManager based on PASETO
// v4.local.
//
// Claims are encrypted, not merely signed: the upstream GitHub token rides
// inside the access token without ever being readable to the bearer, which
// is what lets request authentication skip the store entirely.
func NewPasetoV4LocalManager(cfg Config) (AccessTokenManager, error) {
	key, err := paseto.V4SymmetricKeyFromHex(cfg.AccessKeyHex)
	if err != nil {
		return nil, ErrConfig
	}

	return &pasetoV4LocalManager{
		issuer:    cfg.Issuer,
		ttl:       cfg.AccessTokenTTL,
		clockSkew: cfg.ClockSkew,
		key:       key,
	}, nil
}

func (m *pasetoV4LocalManager) Issue(ident Identity, sessionID, upstreamToken string, now time.Time) (string, time.Time, error) {
	exp := now.Add(m.ttl)

	tok := paseto.NewToken()
	tok.SetIssuer(m.issuer)
	tok.SetIssuedAt(now)
	tok.SetNotBefore(now) // Access tokens valid immediately.
	tok.SetExpiration(exp)

	// Minimal, explicit claims.
	_ = tok.Set("uid", ident.UserID)
	_ = tok.Set("login", ident.Login)
	_ = tok.Set("sid", sessionID)
	_ = tok.Set("ght", upstreamToken)

	return tok.V4Encrypt(m.key, nil), exp, nil
}

func (m *pasetoV4LocalManager) Verify(token string, now time.Time) (AccessClaims, error) {
	// Expiry is checked by hand below so that an expired-but-authentic
	// token reports ErrTokenExpired rather than a generic parse failure.
	p := paseto.NewParserWithoutExpiryCheck()
	p.AddRule(paseto.IssuedBy(m.issuer))

	parsed, err := p.ParseV4Local(m.key, token, nil)
	if err != nil {
		return AccessClaims{}, ErrInvalidToken
	}

	exp, err := parsed.GetExpiration()
	if err != nil {
		return AccessClaims{}, ErrInvalidToken
	}
	iat, _ := parsed.GetIssuedAt()
	iss, _ := parsed.GetIssuer()

	// Clock-skew tolerance: validate slightly in the future so "nbf" does
	// not fail across minor clock differences, which also makes expiry
	// checks slightly stricter.
	validNow := now.Add(m.clockSkew)
	if !exp.After(validNow) {
		return AccessClaims{}, ErrTokenExpired
	}
	if nbf, err := parsed.GetNotBefore(); err != nil || nbf.After(validNow) {
		return AccessClaims{}, ErrInvalidToken
	}

	var uid int64
	if err := parsed.Get("uid", &uid); err != nil || uid == 0 {
		return AccessClaims{}, ErrInvalidToken
	}
	login, err := parsed.GetString("login")
	if err != nil || login == "" {
		return AccessClaims{}, ErrInvalidToken
	}
	sid, err := parsed.GetString("sid")
	if err != nil || sid == "" {
		return AccessClaims{}, ErrInvalidToken
	}
	ght, err := parsed.GetString("ght")
	if err != nil || ght == "" {
		return AccessClaims{}, ErrInvalidToken
	}

	return AccessClaims{
		UserID:        uid,
		Login:         login,
		SessionID:     sid,
		UpstreamToken: ght,
		IssuedAt:      iat,
		ExpiresAt:     exp,
		Issuer:        iss,
	}, nil
}
