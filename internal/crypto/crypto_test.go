package crypto

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Well-known development key (hardhat account #0).
const (
	devKey     = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	devAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func TestNewSignerDerivesAddress(t *testing.T) {
	s, err := NewSigner(devKey, 137)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(devAddress), s.Address())

	_, err = NewSigner("not-hex", 137)
	assert.Error(t, err)
}

func TestAttestationRoundTrip(t *testing.T) {
	s, err := NewSigner(devKey, 137)
	require.NoError(t, err)

	a := Attestation{
		LeagueID:   1,
		MarketID:   common.HexToHash("0xabc"),
		Outcome:    true,
		ReportHash: HashReport([]byte(`{"league_id":1}`)),
	}
	sig, err := s.SignAttestation(a)
	require.NoError(t, err)
	assert.Len(t, sig, 2+65*2)

	require.NoError(t, VerifyAttestation(a, sig, s.Address(), 137))

	tampered := a
	tampered.Outcome = false
	assert.ErrorIs(t, VerifyAttestation(tampered, sig, s.Address(), 137), ErrBadSignature)

	assert.ErrorIs(t, VerifyAttestation(a, sig, s.Address(), 1), ErrBadSignature)
	assert.Error(t, VerifyAttestation(a, "0x1234", s.Address(), 137))
}

func TestEncryptedKeyFile(t *testing.T) {
	blob, err := EncryptKey(devKey, "hunter2")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "operator.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	key, err := LoadKey(KeyConfig{EncryptedKeyPath: path, KeyPassword: "hunter2"})
	require.NoError(t, err)
	assert.Equal(t, devKey[2:], key)

	_, err = LoadKey(KeyConfig{EncryptedKeyPath: path, KeyPassword: "wrong"})
	assert.Error(t, err)

	s, err := LoadSigner(KeyConfig{EncryptedKeyPath: path, KeyPassword: "hunter2"}, 137)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(devAddress), s.Address())
}

func TestLoadKeyPrecedence(t *testing.T) {
	key, err := LoadKey(KeyConfig{RawPrivateKey: devKey, EncryptedKeyPath: "/does/not/exist"})
	require.NoError(t, err)
	assert.Equal(t, devKey[2:], key)

	_, err = LoadKey(KeyConfig{})
	assert.Error(t, err)
	assert.False(t, KeyConfig{}.Configured())

	_, err = EncryptKey("abcd", "pw")
	assert.Error(t, err)
	_, err = EncryptKey(devKey, "")
	assert.Error(t, err)
}
