package vault

import (
	"github.com/defistate/vault-ledger-go/internalbalance"
	"github.com/defistate/vault-ledger-go/pooltokens"
	"github.com/defistate/vault-ledger-go/store"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

func internalBalanceKey(user, token common.Address) common.Hash {
	return store.Key("vault.internal", user[:], token[:])
}

// checkInternal validates the token and amount of an internal balance call.
func checkInternal(token common.Address, amount *uint256.Int) error {
	if token == (common.Address{}) {
		return pooltokens.ErrZeroAddressToken
	}
	if amount == nil {
		return pooltokens.ErrNilAmount
	}
	return nil
}

func (v *Vault) GetInternalBalance(user, token common.Address) (internalbalance.InternalBalance, error) {
	if token == (common.Address{}) {
		return internalbalance.InternalBalance{}, pooltokens.ErrZeroAddressToken
	}
	v.mu.RLock()
	defer v.mu.RUnlock()

	w, err := v.store.Get(internalBalanceKey(user, token))
	if err != nil {
		return internalbalance.InternalBalance{}, err
	}
	return internalbalance.FromWord(w), nil
}

// DepositToInternalBalance credits user's custodial balance of token. With
// track set the credit may be withdrawn untaxed later in the same block.
func (v *Vault) DepositToInternalBalance(user, token common.Address, amount *uint256.Int, track bool) error {
	if err := checkInternal(token, amount); err != nil {
		return err
	}
	return v.write("depositInternal", func(j *store.Journal, blockNumber uint64) error {
		key := internalBalanceKey(user, token)
		w, err := j.Get(key)
		if err != nil {
			return err
		}
		updated, err := internalbalance.FromWord(w).Increase(amount, track, blockNumber)
		if err != nil {
			return err
		}
		j.Set(key, updated.Word())
		return nil
	})
}

// WithdrawFromInternalBalance debits user's custodial balance of token and
// returns the taxable part of the debit and the amount actually debited.
func (v *Vault) WithdrawFromInternalBalance(user, token common.Address, amount *uint256.Int, capped, useExempt bool) (taxable, decreased *uint256.Int, err error) {
	if err := checkInternal(token, amount); err != nil {
		return nil, nil, err
	}
	err = v.write("withdrawInternal", func(j *store.Journal, blockNumber uint64) error {
		key := internalBalanceKey(user, token)
		w, err := j.Get(key)
		if err != nil {
			return err
		}
		var updated internalbalance.InternalBalance
		updated, taxable, decreased, err = internalbalance.FromWord(w).Decrease(amount, capped, useExempt, blockNumber)
		if err != nil {
			return err
		}
		j.Set(key, updated.Word())
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return taxable, decreased, nil
}
