package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionCookie is the cookie the identity provider's frontend SDK stores the
// session token in.
const SessionCookie = "__session"

var (
	ErrNoToken      = errors.New("auth: no session token")
	ErrInvalidToken = errors.New("auth: invalid session token")
)

// Verifier validates session tokens issued by the identity provider (RS256,
// verified with its PEM public key) or by SignJWT (HS256, shared secret).
type Verifier struct {
	rsaKey *rsa.PublicKey
	secret []byte
	leeway time.Duration
}

// NewVerifier builds a verifier from whichever keys are configured. At least
// one of pemKey and secret is required.
func NewVerifier(pemKey, secret string) (*Verifier, error) {
	v := &Verifier{leeway: 5 * time.Second}
	if strings.TrimSpace(pemKey) != "" {
		// env files often carry the PEM with escaped newlines
		pemKey = strings.ReplaceAll(pemKey, `\n`, "\n")
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pemKey))
		if err != nil {
			return nil, fmt.Errorf("parse jwt public key: %w", err)
		}
		v.rsaKey = key
	}
	if secret != "" {
		v.secret = []byte(secret)
	}
	if v.rsaKey == nil && v.secret == nil {
		return nil, errors.New("auth: CLERK_JWT_KEY or JWT_SECRET is required")
	}
	return v, nil
}

func (v *Verifier) keyFunc(t *jwt.Token) (any, error) {
	switch t.Method.(type) {
	case *jwt.SigningMethodRSA:
		if v.rsaKey == nil {
			return nil, errors.New("rsa key not configured")
		}
		return v.rsaKey, nil
	case *jwt.SigningMethodHMAC:
		if v.secret == nil {
			return nil, errors.New("hmac secret not configured")
		}
		return v.secret, nil
	default:
		return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
	}
}

// Verify checks the signature and time claims and returns the subject,
// which is the identity provider's user id.
func (v *Verifier) Verify(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, v.keyFunc,
		jwt.WithValidMethods([]string{"RS256", "RS384", "RS512", "HS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	)
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims.Subject, nil
}

// TokenFromRequest reads the bearer token, falling back to the session cookie.
func TokenFromRequest(r *http.Request) (string, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") && strings.TrimSpace(token) != "" {
			return strings.TrimSpace(token), nil
		}
	}
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value, nil
	}
	return "", ErrNoToken
}

// SignJWT issues an HS256 session token for subject; used by local tooling
// and tests in place of the identity provider.
func SignJWT(subject string, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
