package domain

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Account identifies a participant or operator by its 20-byte address.
type Account = common.Address

// MarketID is the 32-byte identifier of an external market. Polymarket
// condition ids are used as-is.
type MarketID = common.Hash

// ParseAccount parses a 0x-prefixed hex address.
func ParseAccount(s string) (Account, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return Account{}, fmt.Errorf("%w: invalid account address %q", ErrValidation, s)
	}
	return common.HexToAddress(s), nil
}

// ParseAccounts parses a comma-separated list of addresses, keeping order and
// duplicates. Empty items are ignored.
func ParseAccounts(list string) ([]Account, error) {
	var out []Account
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		acct, err := ParseAccount(item)
		if err != nil {
			return nil, err
		}
		out = append(out, acct)
	}
	return out, nil
}

// ParseMarketID accepts either a 0x-prefixed 32-byte hex id (66 characters)
// or a short label of at most 31 bytes, which is right-padded with zero bytes.
// Shorter 0x-prefixed input such as "0xdeadbeef" is a label.
func ParseMarketID(s string) (MarketID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return MarketID{}, fmt.Errorf("%w: empty market id", ErrValidation)
	}
	if len(s) == 2+2*common.HashLength && (strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X")) {
		raw, err := hexutil.Decode("0x" + s[2:])
		if err != nil {
			return MarketID{}, fmt.Errorf("%w: market id %q: %v", ErrValidation, s, err)
		}
		return common.BytesToHash(raw), nil
	}
	return MarketIDFromLabel(s)
}

// MarketIDFromLabel encodes label the way a bytes32 string literal is encoded.
func MarketIDFromLabel(label string) (MarketID, error) {
	if len(label) > common.HashLength-1 {
		return MarketID{}, fmt.Errorf("%w: market label %q longer than %d bytes",
			ErrValidation, label, common.HashLength-1)
	}
	var id MarketID
	copy(id[:], label)
	return id, nil
}

// FormatMarketID renders label-encoded ids as their label and everything else
// as hex.
func FormatMarketID(id MarketID) string {
	trimmed := bytes.TrimRight(id[:], "\x00")
	if len(trimmed) == 0 || len(trimmed) == common.HashLength {
		return id.Hex()
	}
	for _, c := range trimmed {
		if c > unicode.MaxASCII || !unicode.IsPrint(rune(c)) {
			return id.Hex()
		}
	}
	return string(trimmed)
}
