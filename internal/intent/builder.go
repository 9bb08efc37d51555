// Package intent turns a validated transfer request into an encoded on-chain
// call plus the cross-chain order accounting that goes with it. Construction
// is pure: no signing, no submission, safe to retry.
package intent

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"crosspay/go-backend/pkg/models"
)

var (
	ErrInvalidAmount    = errors.New("invalid transfer amount")
	ErrInvalidRecipient = errors.New("invalid recipient address")
)

// amountPattern accepts digits with at most one decimal point. Empty strings
// and a lone "." pass the pattern and are rejected separately.
var amountPattern = regexp.MustCompile(`^\d*\.?\d*$`)

// maxAmountBits bounds the scaled order amount to a uint256 word.
const maxAmountBits = 256

// Asset describes the fixed-decimals fungible token a transfer moves.
type Asset struct {
	Contract string
	Decimals int
	ChainID  int64
}

// USDCOptimism is the default asset: USDC on Optimism, 6 decimals.
func USDCOptimism() Asset {
	return Asset{
		Contract: "0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85",
		Decimals: 6,
		ChainID:  10,
	}
}

// ScaleAmount converts a decimal amount string into base units at the given
// precision. Fractional digits beyond the precision are truncated.
func ScaleAmount(amount string, decimals int) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" || amount == "." {
		return nil, fmt.Errorf("%w: amount is empty", ErrInvalidAmount)
	}
	if !amountPattern.MatchString(amount) {
		return nil, fmt.Errorf("%w: %q is not a decimal string", ErrInvalidAmount, amount)
	}

	whole, frac, _ := strings.Cut(amount, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > decimals {
		frac = frac[:decimals]
	}
	for len(frac) < decimals {
		frac += "0"
	}

	scaled, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not numeric", ErrInvalidAmount, amount)
	}
	if scaled.BitLen() > maxAmountBits {
		return nil, fmt.Errorf("%w: scaled amount overflows", ErrInvalidAmount)
	}
	return scaled, nil
}

// Build validates the request and produces a single-use transaction intent:
// an ERC-20 transfer call against the asset contract, an exact-amount-out
// order for the scaled amount, and no accompanying native-asset value.
func Build(req models.TransferRequest, asset Asset, destinationChainID int64) (models.TransactionIntent, error) {
	scaled, err := ScaleAmount(req.Amount, asset.Decimals)
	if err != nil {
		return models.TransactionIntent{}, err
	}
	recipient := strings.TrimSpace(req.Recipient)
	if !common.IsHexAddress(recipient) {
		return models.TransactionIntent{}, fmt.Errorf("%w: %q", ErrInvalidRecipient, recipient)
	}

	return models.TransactionIntent{
		EncodedCall:        EncodeTransfer(common.HexToAddress(recipient), scaled),
		TargetContract:     asset.Contract,
		NativeValue:        0,
		OrderAmount:        scaled.String(),
		OrderType:          models.OrderAmountOut,
		DestinationChainID: destinationChainID,
	}, nil
}
