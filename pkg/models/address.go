package models

import (
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var ErrInvalidAddress = errors.New("invalid chain address")

// NormalizeAddress validates a hex chain address and returns its EIP-55
// checksummed form.
func NormalizeAddress(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !common.IsHexAddress(raw) {
		return "", ErrInvalidAddress
	}
	return common.HexToAddress(raw).Hex(), nil
}

// SameAddress compares two hex addresses ignoring case and checksum form.
func SameAddress(a, b string) bool {
	if !common.IsHexAddress(a) || !common.IsHexAddress(b) {
		return false
	}
	return common.HexToAddress(a) == common.HexToAddress(b)
}

// FormatUnits renders a base-unit integer string as a decimal string with the
// given number of fractional digits, trimming trailing zeros. Mirrors the
// display convention for fixed-decimals assets ("10500000", 6 -> "10.5").
func FormatUnits(baseUnits string, decimals int) (string, error) {
	baseUnits = strings.TrimSpace(baseUnits)
	v, ok := new(big.Int).SetString(baseUnits, 10)
	if !ok || v.Sign() < 0 {
		return "", errors.New("invalid base-unit amount")
	}
	if decimals <= 0 {
		return v.String(), nil
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, frac := new(big.Int).QuoRem(v, scale, new(big.Int))
	fracStr := strings.TrimRight(leftPad(frac.String(), decimals), "0")
	if fracStr == "" {
		return whole.String(), nil
	}
	return whole.String() + "." + fracStr, nil
}

func leftPad(s string, width int) string {
	for len(s) < width {
		s = "0" + s
	}
	return s
}
