package intent

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

const transferSignature = "transfer(address,uint256)"

var transferSelector = sync.OnceValue(func() []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(transferSignature))
	return h.Sum(nil)[:4]
})

// EncodeTransfer ABI-encodes an ERC-20 transfer(address,uint256) call:
// 4-byte Keccak selector followed by two 32-byte words.
func EncodeTransfer(recipient common.Address, amount *big.Int) []byte {
	call := make([]byte, 0, 4+2*32)
	call = append(call, transferSelector()...)
	call = append(call, common.LeftPadBytes(recipient.Bytes(), 32)...)
	call = append(call, common.LeftPadBytes(amount.Bytes(), 32)...)
	return call
}
