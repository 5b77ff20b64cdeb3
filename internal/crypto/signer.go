package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Domain parameters of resolution report attestations.
const (
	DomainName    = "PredictionLeague"
	DomainVersion = "1"
)

var (
	// EIP712Domain(string name,string version,uint256 chainId)
	eip712DomainTypeHash = ethcrypto.Keccak256(
		[]byte("EIP712Domain(string name,string version,uint256 chainId)"),
	)

	// ResolutionReport(uint256 leagueId,bytes32 marketId,bool outcome,bytes32 reportHash)
	reportTypeHash = ethcrypto.Keccak256(
		[]byte("ResolutionReport(uint256 leagueId,bytes32 marketId,bool outcome,bytes32 reportHash)"),
	)
)

// ErrBadSignature is returned when an attestation does not verify.
var ErrBadSignature = errors.New("crypto: signature does not match signer")

// Attestation identifies the report being signed. ReportHash is the
// keccak256 of the report body.
type Attestation struct {
	LeagueID   uint64
	MarketID   common.Hash
	Outcome    bool
	ReportHash common.Hash
}

// Signer signs resolution report attestations with the operator key. Its
// address is the operator account used for privileged ledger writes.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	chainID    int64
	domainSep  []byte
}

// NewSigner creates a Signer from a hex-encoded secp256k1 private key and
// the chain id bound into the EIP-712 domain.
func NewSigner(privateKeyHex string, chainID int64) (*Signer, error) {
	pk, err := ethcrypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: invalid private key: %w", err)
	}
	return &Signer{
		privateKey: pk,
		address:    ethcrypto.PubkeyToAddress(pk.PublicKey),
		chainID:    chainID,
		domainSep:  domainSeparator(chainID),
	}, nil
}

// Address returns the address derived from the private key.
func (s *Signer) Address() common.Address {
	return s.address
}

// ChainID returns the chain id bound into the signing domain.
func (s *Signer) ChainID() int64 {
	return s.chainID
}

// HashReport returns the keccak256 of a report body.
func HashReport(body []byte) common.Hash {
	return common.BytesToHash(ethcrypto.Keccak256(body))
}

// SignAttestation signs a as EIP-712 typed data and returns the 65-byte
// signature hex-encoded with a 0x prefix and v in {27,28}.
func (s *Signer) SignAttestation(a Attestation) (string, error) {
	sig, err := ethcrypto.Sign(attestationDigest(s.domainSep, a), s.privateKey)
	if err != nil {
		return "", fmt.Errorf("crypto/signer: signing: %w", err)
	}
	if sig[64] < 27 {
		sig[64] += 27
	}
	return "0x" + hex.EncodeToString(sig), nil
}

// VerifyAttestation checks that sigHex over a was produced by want on
// chainID.
func VerifyAttestation(a Attestation, sigHex string, want common.Address, chainID int64) error {
	sig, err := hex.DecodeString(strings.TrimPrefix(sigHex, "0x"))
	if err != nil {
		return fmt.Errorf("crypto/signer: decode signature: %w", err)
	}
	if len(sig) != 65 {
		return fmt.Errorf("crypto/signer: signature must be 65 bytes, got %d", len(sig))
	}
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	pub, err := ethcrypto.SigToPub(attestationDigest(domainSeparator(chainID), a), sig)
	if err != nil {
		return fmt.Errorf("crypto/signer: recover key: %w", err)
	}
	if got := ethcrypto.PubkeyToAddress(*pub); got != want {
		return fmt.Errorf("%w: recovered %s, want %s", ErrBadSignature, got.Hex(), want.Hex())
	}
	return nil
}

// domainSeparator returns keccak256(abi.encode(typeHash, nameHash, versionHash, chainId)).
func domainSeparator(chainID int64) []byte {
	return ethcrypto.Keccak256(
		concatBytes(
			eip712DomainTypeHash,
			ethcrypto.Keccak256([]byte(DomainName)),
			ethcrypto.Keccak256([]byte(DomainVersion)),
			bigIntTo32Bytes(big.NewInt(chainID)),
		),
	)
}

// attestationDigest computes keccak256("\x19\x01" || domainSeparator || structHash).
func attestationDigest(domainSep []byte, a Attestation) []byte {
	outcome := big.NewInt(0)
	if a.Outcome {
		outcome = big.NewInt(1)
	}
	structHash := ethcrypto.Keccak256(
		concatBytes(
			reportTypeHash,
			bigIntTo32Bytes(new(big.Int).SetUint64(a.LeagueID)),
			a.MarketID.Bytes(),
			bigIntTo32Bytes(outcome),
			a.ReportHash.Bytes(),
		),
	)
	return ethcrypto.Keccak256(concatBytes([]byte{0x19, 0x01}, domainSep, structHash))
}

// bigIntTo32Bytes returns a 32-byte big-endian representation of n.
func bigIntTo32Bytes(n *big.Int) []byte {
	return common.LeftPadBytes(n.Bytes(), 32)
}

func concatBytes(slices ...[]byte) []byte {
	total := 0
	for _, s := range slices {
		total += len(s)
	}
	buf := make([]byte, 0, total)
	for _, s := range slices {
		buf = append(buf, s...)
	}
	return buf
}
