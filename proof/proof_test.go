package proof

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eduverify/credtrust/identity"
	"github.com/eduverify/credtrust/storage/model"
	"github.com/eduverify/credtrust/verification"
)

func testResult(trustworthy bool) *verification.Result {
	fields := identity.Fields{
		StudentName:     "Ada Lovelace",
		Degree:          "BSc CS",
		InstitutionName: "MIT",
		IssueDate:       "2024-05-01",
	}
	return &verification.Result{
		CertificateID: "EDU-1-ABCDEFGHI",
		Found:         true,
		Trustworthy:   trustworthy,
		HashValid:     true,
		Certificate: &model.Certificate{
			CertificateID:     "EDU-1-ABCDEFGHI",
			Fields:            fields,
			CertificateHash:   identity.Hash(fields),
			AIConfidenceScore: 96,
			VerificationCount: 3,
			Status:            model.StatusActive,
		},
		Reputation: &verification.Reputation{
			InstitutionName: "MIT",
			Score:           58,
			Tier:            verification.TierRegistered,
		},
		VerifiedAt: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestFromResult(t *testing.T) {
	now := time.Now()
	p, err := FromResult(testResult(true), "hr@example.com", now)
	require.NoError(t, err)
	require.Equal(t, StatusVerified, p.Status)
	require.Equal(t, "MIT", p.Institution)
	require.Equal(t, 58, p.InstitutionReputation)
	require.Equal(t, int64(3), p.VerificationCount)
	require.Equal(t, now.Unix(), p.IssuedAt)

	p, err = FromResult(testResult(false), "", now)
	require.NoError(t, err)
	require.Equal(t, StatusNotTrustworthy, p.Status)

	_, err = FromResult(&verification.Result{CertificateID: "EDU-X"}, "", now)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSignAndVerify(t *testing.T) {
	key, err := GenerateKeyPEM()
	require.NoError(t, err)
	signer, err := NewSigner("https://credtrust.example.org", key)
	require.NoError(t, err)
	require.NotEmpty(t, signer.KeyID())

	p, err := FromResult(testResult(true), "hr@example.com", time.Now())
	require.NoError(t, err)
	signed, err := signer.Sign(*p)
	require.NoError(t, err)

	got, err := signer.Verify(signed)
	require.NoError(t, err)
	require.Equal(t, "https://credtrust.example.org", got.Issuer)
	require.Equal(t, p.CertificateHash, got.CertificateHash)
	require.Equal(t, StatusVerified, got.Status)

	tampered := append([]byte(nil), signed...)
	tampered[len(tampered)-5] ^= 0x01
	_, err = signer.Verify(tampered)
	require.Error(t, err)

	other, err := GenerateKeyPEM()
	require.NoError(t, err)
	otherSigner, err := NewSigner("", other)
	require.NoError(t, err)
	_, err = otherSigner.Verify(signed)
	require.Error(t, err)
}

func TestJWKS(t *testing.T) {
	key, err := GenerateKeyPEM()
	require.NoError(t, err)
	signer, err := NewSigner("", key)
	require.NoError(t, err)
	set, err := signer.JWKS()
	require.NoError(t, err)
	require.Equal(t, 1, set.Len())

	data, err := json.Marshal(set)
	require.NoError(t, err)
	var raw struct {
		Keys []map[string]any `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw.Keys, 1)
	require.Equal(t, signer.KeyID(), raw.Keys[0]["kid"])
	require.Equal(t, "EC", raw.Keys[0]["kty"])
	require.NotContains(t, raw.Keys[0], "d")
}

func TestLoadOrGenerate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "proof.pem")
	_, err := LoadOrGenerate("", path, false)
	require.Error(t, err)

	first, err := LoadOrGenerate("", path, true)
	require.NoError(t, err)
	second, err := LoadOrGenerate("", path, false)
	require.NoError(t, err)
	require.Equal(t, first.KeyID(), second.KeyID())
}
