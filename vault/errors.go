package vault

import (
	"errors"

	"github.com/defistate/vault-ledger-go/balance"
	"github.com/defistate/vault-ledger-go/internalbalance"
	"github.com/defistate/vault-ledger-go/poolregistry"
	"github.com/defistate/vault-ledger-go/pooltokens"
	"github.com/defistate/vault-ledger-go/store"
	"github.com/defistate/vault-ledger-go/wordcodec"
)

var (
	// ErrWrongSpecialization is returned by operations that only apply to one
	// kind of pool, such as pair lookups on a non two-token pool.
	ErrWrongSpecialization = errors.New("operation not supported for pool specialization")
	ErrUnknownManageOp     = errors.New("unknown pool balance op kind")
)

// Reason codes reported with failed operations.
const (
	ReasonOutOfBounds             = "OUT_OF_BOUNDS"
	ReasonTotalOverflow           = "TOTAL_OVERFLOW"
	ReasonBlockNumberOverflow     = "BLOCK_NUMBER_OVERFLOW"
	ReasonInsufficientCash        = "INSUFFICIENT_CASH"
	ReasonInsufficientManaged     = "INSUFFICIENT_MANAGED"
	ReasonInsufficientBalance     = "INSUFFICIENT_BALANCE"
	ReasonInternalBalanceOverflow = "INTERNAL_BALANCE_OVERFLOW"
	ReasonTokenNotRegistered      = "TOKEN_NOT_REGISTERED"
	ReasonTokenAlreadyRegistered  = "TOKEN_ALREADY_REGISTERED"
	ReasonNonzeroBalance          = "NONZERO_BALANCE"
	ReasonZeroAddressToken        = "ZERO_ADDRESS_TOKEN"
	ReasonTokensLengthMismatch    = "TOKENS_LENGTH_MISMATCH"
	ReasonTokensMismatch          = "TOKENS_MISMATCH"
	ReasonInvalidAmount           = "INVALID_AMOUNT"
	ReasonPoolNotRegistered       = "POOL_NOT_REGISTERED"
	ReasonPoolHasTokens           = "POOL_HAS_TOKENS"
	ReasonInvalidPool             = "INVALID_POOL"
	ReasonWrongSpecialization     = "WRONG_SPECIALIZATION"
	ReasonReadOnly                = "READ_ONLY"
	ReasonStorage                 = "STORAGE"
	ReasonUnknown                 = "UNKNOWN"
)

// reasons is checked in order; the first match wins.
var reasons = []struct {
	err    error
	reason string
}{
	{balance.ErrTotalOverflow, ReasonTotalOverflow},
	{balance.ErrBlockNumberOverflow, ReasonBlockNumberOverflow},
	{balance.ErrInsufficientCash, ReasonInsufficientCash},
	{balance.ErrInsufficientManaged, ReasonInsufficientManaged},
	{internalbalance.ErrInsufficientBalance, ReasonInsufficientBalance},
	{internalbalance.ErrOverflow, ReasonInternalBalanceOverflow},
	{wordcodec.ErrOutOfBounds, ReasonOutOfBounds},
	{pooltokens.ErrTokenNotRegistered, ReasonTokenNotRegistered},
	{pooltokens.ErrTokenAlreadyRegistered, ReasonTokenAlreadyRegistered},
	{pooltokens.ErrTokensAlreadySet, ReasonTokenAlreadyRegistered},
	{pooltokens.ErrNonzeroBalance, ReasonNonzeroBalance},
	{pooltokens.ErrZeroAddressToken, ReasonZeroAddressToken},
	{pooltokens.ErrTokensLengthMismatch, ReasonTokensLengthMismatch},
	{pooltokens.ErrNilAmount, ReasonInvalidAmount},
	{pooltokens.ErrTwoTokenCount, ReasonTokensMismatch},
	{pooltokens.ErrTokensMismatch, ReasonTokensMismatch},
	{pooltokens.ErrIdenticalTokens, ReasonTokensMismatch},
	{poolregistry.ErrPoolNotRegistered, ReasonPoolNotRegistered},
	{poolregistry.ErrPoolHasTokens, ReasonPoolHasTokens},
	{poolregistry.ErrZeroAddressPool, ReasonInvalidPool},
	{poolregistry.ErrInvalidSpecialization, ReasonInvalidPool},
	{poolregistry.ErrNonceOverflow, ReasonInvalidPool},
	{ErrWrongSpecialization, ReasonWrongSpecialization},
	{ErrUnknownManageOp, ReasonUnknown},
	{balance.ErrUnknownOp, ReasonUnknown},
	{store.ErrReadOnly, ReasonReadOnly},
}

// ReasonOf classifies err into a stable reason code.
func ReasonOf(err error) string {
	if err == nil {
		return ""
	}
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return ReasonUnknown
}
