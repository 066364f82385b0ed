package relay

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"SignalRelay/internal/domain/models"
)

const tokenIssuer = "signalrelay"

// Tokens issues and verifies the bearer tokens trading clients present
// when opening a relay channel. The subject is the subscriber id.
type Tokens struct {
	secret []byte
	ttl    time.Duration
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl}
}

func (t *Tokens) Issue(subscriberID int64, now time.Time) (string, error) {
	if len(t.secret) == 0 {
		return "", fmt.Errorf("%w: relay token secret not configured", models.ErrPrecondition)
	}
	claims := jwt.RegisteredClaims{
		Issuer:   tokenIssuer,
		Subject:  strconv.FormatInt(subscriberID, 10),
		IssuedAt: jwt.NewNumericDate(now),
	}
	if t.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(t.ttl))
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign relay token: %w", err)
	}
	return s, nil
}

// Verify returns the subscriber id a valid token was issued to.
func (t *Tokens) Verify(token string) (int64, error) {
	if len(t.secret) == 0 || token == "" {
		return 0, models.ErrAuthentication
	}
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil || !parsed.Valid {
		return 0, errors.Join(models.ErrAuthentication, err)
	}
	if claims.Issuer != tokenIssuer {
		return 0, models.ErrAuthentication
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, models.ErrAuthentication
	}
	return id, nil
}
