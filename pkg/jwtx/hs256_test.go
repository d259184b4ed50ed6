package jwtx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var (
	accessSecret  = []byte("test-access-secret")
	refreshSecret = []byte("test-refresh-secret")
)

func TestSignAndVerify(t *testing.T) {
	t.Parallel()

	signer := Signer{Secret: accessSecret, Kind: KindAccess, Issuer: "vtype", TTL: 15 * time.Minute}
	verifier := Verifier{Secret: accessSecret, Kind: KindAccess, Issuer: "vtype"}

	now := time.Now()
	token, err := signer.Sign("user-1", "alice", now)
	require.NoError(t, err)

	claims, err := verifier.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)
	require.Equal(t, "alice", claims.Username)
	require.Equal(t, KindAccess, claims.Kind)
	require.WithinDuration(t, now.Add(15*time.Minute), claims.Expiry(), 2*time.Second)
}

func TestVerifyExpired(t *testing.T) {
	t.Parallel()

	signer := Signer{Secret: accessSecret, Kind: KindAccess, Issuer: "vtype", TTL: time.Minute}
	verifier := Verifier{Secret: accessSecret, Kind: KindAccess, Issuer: "vtype"}

	token, err := signer.Sign("user-1", "alice", time.Now().Add(-time.Hour))
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	require.ErrorIs(t, err, ErrExpired)
}

func TestVerifyKindMismatch(t *testing.T) {
	t.Parallel()

	signer := Signer{Secret: accessSecret, Kind: KindRefresh, Issuer: "vtype", TTL: time.Hour}
	verifier := Verifier{Secret: accessSecret, Kind: KindAccess, Issuer: "vtype"}

	token, err := signer.Sign("user-1", "", time.Now())
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	require.ErrorIs(t, err, ErrKind)
}

func TestVerifyWrongSecret(t *testing.T) {
	t.Parallel()

	signer := Signer{Secret: accessSecret, Kind: KindAccess, Issuer: "vtype", TTL: time.Hour}
	verifier := Verifier{Secret: refreshSecret, Kind: KindAccess, Issuer: "vtype"}

	token, err := signer.Sign("user-1", "", time.Now())
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	require.ErrorIs(t, err, ErrInvalidSig)
}

func TestVerifyIssuerMismatch(t *testing.T) {
	t.Parallel()

	signer := Signer{Secret: accessSecret, Kind: KindAccess, Issuer: "someone-else", TTL: time.Hour}
	verifier := Verifier{Secret: accessSecret, Kind: KindAccess, Issuer: "vtype"}

	token, err := signer.Sign("user-1", "", time.Now())
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	require.ErrorIs(t, err, ErrIssuer)
}

func TestVerifyGarbage(t *testing.T) {
	t.Parallel()

	verifier := Verifier{Secret: accessSecret, Kind: KindAccess, Issuer: "vtype"}
	_, err := verifier.Verify("not-a-jwt")
	require.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeUnverified(t *testing.T) {
	t.Parallel()

	signer := Signer{Secret: accessSecret, Kind: KindAccess, Issuer: "vtype", TTL: time.Hour}
	token, err := signer.Sign("user-1", "alice", time.Now())
	require.NoError(t, err)

	// Decoding must work even without knowing the secret.
	claims, err := DecodeUnverified(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)
	require.Greater(t, claims.Remaining(time.Now()), 50*time.Minute)

	_, err = DecodeUnverified("garbage")
	require.ErrorIs(t, err, ErrMalformed)
}
