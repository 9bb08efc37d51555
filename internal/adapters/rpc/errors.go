package rpc

import (
	"errors"

	"crosspay/go-backend/internal/app"
	"crosspay/go-backend/internal/intent"
)

// JSON-RPC error codes. Codes above -32100 follow the reserved
// implementation-defined server range.
const (
	codeNotAuthenticated  = -32040
	codeSessionTornDown   = -32041
	codeNoPrimaryWallet   = -32042
	codeNoSmartAccount    = -32043
	codeNoBalance         = -32044
	codeIdentityNotLinked = -32045
	codeLastIdentity      = -32046
	codeInvalidAmount     = -32047
	codeInvalidRecipient  = -32048
	codeProvisioning      = -32050
	codeBuildRejected     = -32051
	codeSigningRejected   = -32052
	codeSubmissionFailed  = -32053
	codeUnknownOutcome    = -32054
	codeInternal          = -32099
)

var errInvalidParams = errors.New("invalid params")

func rpcInvalidParams() *rpcError {
	return &rpcError{Code: -32602, Message: "invalid params"}
}

func mapServiceError(err error) *rpcError {
	for _, m := range serviceErrorCodes {
		if errors.Is(err, m.sentinel) {
			return &rpcError{Code: m.code, Message: err.Error()}
		}
	}
	return &rpcError{Code: codeInternal, Message: err.Error()}
}

// Ordered so the most specific sentinels win when an error chain
// carries more than one.
var serviceErrorCodes = []struct {
	sentinel error
	code     int
}{
	{intent.ErrInvalidAmount, codeInvalidAmount},
	{intent.ErrInvalidRecipient, codeInvalidRecipient},
	{app.ErrUnknownOutcome, codeUnknownOutcome},
	{app.ErrSubmissionRejected, codeSubmissionFailed},
	{app.ErrSigningRejected, codeSigningRejected},
	{app.ErrBuildRejected, codeBuildRejected},
	{app.ErrProvisioningFailed, codeProvisioning},
	{app.ErrLastLinkedIdentity, codeLastIdentity},
	{app.ErrIdentityNotLinked, codeIdentityNotLinked},
	{app.ErrNoSmartAccount, codeNoSmartAccount},
	{app.ErrNoPrimaryWallet, codeNoPrimaryWallet},
	{app.ErrSessionTornDown, codeSessionTornDown},
	{app.ErrNotAuthenticated, codeNotAuthenticated},
}
