package jwtx

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed  = errors.New("jwtx: malformed token")
	ErrInvalidSig = errors.New("jwtx: invalid signature")
	ErrExpired    = errors.New("jwtx: token expired")
	ErrNotYet     = errors.New("jwtx: token not yet valid")
	ErrIssuer     = errors.New("jwtx: issuer mismatch")
	ErrKind       = errors.New("jwtx: token kind mismatch")
)

// Signer mints HS256 tokens of a single kind with a fixed TTL.
type Signer struct {
	Secret []byte
	Kind   string
	Issuer string
	TTL    time.Duration
}

// Sign issues a token for subject at the given instant. Pure function of
// its inputs plus the secret, so tests can pin time.
func (s Signer) Sign(subject, username string, now time.Time) (string, error) {
	claims := NewClaims(subject, username, s.Kind, s.Issuer, s.TTL, now)
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
}

// Verifier validates HS256 tokens of a single kind.
type Verifier struct {
	Secret []byte
	Kind   string
	Issuer string
}

// Verify checks signature, expiry, issuer, and kind, returning the claims
// when everything holds. Expiry is reported as ErrExpired so callers can
// distinguish "refresh me" from "reject me".
func (v Verifier) Verify(token string) (Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSig
		}
		return v.Secret, nil
	})
	if err != nil {
		return Claims{}, mapJWTError(err)
	}

	if v.Issuer != "" && claims.Issuer != v.Issuer {
		return Claims{}, ErrIssuer
	}
	if claims.Kind != v.Kind {
		return Claims{}, ErrKind
	}
	return claims, nil
}

// DecodeUnverified extracts claims without checking the signature. Used to
// read the expiry of a token being blacklisted; never use it to authenticate.
func DecodeUnverified(token string) (Claims, error) {
	var claims Claims
	_, _, err := jwt.NewParser().ParseUnverified(token, &claims)
	if err != nil {
		return Claims{}, ErrMalformed
	}
	return claims, nil
}

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return ErrNotYet
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrInvalidSig
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	default:
		return ErrMalformed
	}
}
