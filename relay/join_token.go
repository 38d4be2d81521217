package relay

import (
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-session-host/internal/errors"
)

const allocationClaim = "alloc"

// tokenSigner signs and verifies join tokens with HMAC-SHA256.
type tokenSigner struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

func (s *tokenSigner) sign(allocationID string) (string, error) {
	now := s.now()
	claims := jwtlib.MapClaims{
		allocationClaim: allocationID,
		"iat":           now.Unix(),
		"exp":           now.Add(s.expiry).Unix(),
		"jti":           uuid.New().String(),
	}
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign join token: %w", err)
	}
	return signed, nil
}

func (s *tokenSigner) verify(token string) (string, error) {
	parsed, err := jwtlib.Parse(token, func(t *jwtlib.Token) (any, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwtlib.WithTimeFunc(s.now), jwtlib.WithExpirationRequired())
	if err != nil {
		if apperrors.Is(err, jwtlib.ErrTokenExpired) {
			return "", apperrors.Wrapf(apperrors.ErrTokenExpired, "join token")
		}
		return "", apperrors.Wrapf(apperrors.ErrInvalidToken, "join token: %v", err)
	}

	claims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return "", apperrors.Wrapf(apperrors.ErrInvalidToken, "join token claims")
	}
	allocationID, _ := claims[allocationClaim].(string)
	if allocationID == "" {
		return "", apperrors.Wrapf(apperrors.ErrInvalidToken, "join token has no allocation")
	}
	return allocationID, nil
}
