// Package pooltokens tracks which tokens each pool holds and the pool's
// balance of each. How the registration index and balance words are laid out
// in storage depends on the pool's specialization; see Layout.
package pooltokens

import (
	"errors"
	"fmt"

	"github.com/defistate/vault-ledger-go/balance"
	"github.com/defistate/vault-ledger-go/store"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	ErrTokenNotRegistered     = errors.New("token not registered")
	ErrTokenAlreadyRegistered = errors.New("token already registered")
	ErrNonzeroBalance         = errors.New("token balance is not zero")
	ErrZeroAddressToken       = errors.New("token address is zero")
	ErrTokensLengthMismatch   = errors.New("tokens and amounts length mismatch")
	ErrNilAmount              = errors.New("amount is nil")
	// two-token pools
	ErrTwoTokenCount    = errors.New("two-token pools take exactly two tokens")
	ErrTokensAlreadySet = errors.New("pool tokens already set")
	ErrTokensMismatch   = errors.New("tokens do not match the pool's pair")
)

// Layout stores the token index and balances of pools of one specialization.
// Implementations may assume the Registry has already validated token
// identities; they enforce only the rules tied to their own storage shape.
type Layout interface {
	Register(rw store.ReadWriter, pool common.Hash, tokens []common.Address) error
	// Unregister removes tokens and clears their balance words. Balances are
	// known to be zero.
	Unregister(rw store.ReadWriter, pool common.Hash, tokens []common.Address) error
	Tokens(r store.Reader, pool common.Hash) ([]common.Address, error)
	IsRegistered(r store.Reader, pool common.Hash, token common.Address) (bool, error)
	// Balance fails with ErrTokenNotRegistered if token is not registered.
	Balance(r store.Reader, pool common.Hash, token common.Address) (balance.Balance, error)
	SetBalance(rw store.ReadWriter, pool common.Hash, token common.Address, b balance.Balance) error
}

// PositionalLayout is implemented by layouts that can read a balance by the
// token's position in Tokens without looking the token up again. Balances
// uses it when available.
type PositionalLayout interface {
	Layout
	BalanceAt(r store.Reader, pool common.Hash, i uint64) (balance.Balance, error)
}

// Registry implements registration and balance updates once for every Layout.
type Registry struct {
	layout Layout
}

func NewRegistry(layout Layout) *Registry {
	return &Registry{layout: layout}
}

func (r *Registry) Layout() Layout {
	return r.layout
}

// RegisterTokens registers tokens to pool with zero balances.
func (r *Registry) RegisterTokens(rw store.ReadWriter, pool common.Hash, tokens []common.Address) error {
	seen := make(map[common.Address]struct{}, len(tokens))
	for _, token := range tokens {
		if token == (common.Address{}) {
			return ErrZeroAddressToken
		}
		if _, dup := seen[token]; dup {
			return fmt.Errorf("%w: %s", ErrTokenAlreadyRegistered, token)
		}
		seen[token] = struct{}{}
	}
	return r.layout.Register(rw, pool, tokens)
}

// UnregisterTokens removes tokens from pool. Every token must be registered
// and hold a zero total.
func (r *Registry) UnregisterTokens(rw store.ReadWriter, pool common.Hash, tokens []common.Address) error {
	for _, token := range tokens {
		b, err := r.layout.Balance(rw, pool, token)
		if err != nil {
			return err
		}
		if !b.Total().IsZero() {
			return fmt.Errorf("%w: %s has %s", ErrNonzeroBalance, token, b.Total().Dec())
		}
	}
	return r.layout.Unregister(rw, pool, tokens)
}

func (r *Registry) Tokens(rd store.Reader, pool common.Hash) ([]common.Address, error) {
	return r.layout.Tokens(rd, pool)
}

func (r *Registry) IsRegistered(rd store.Reader, pool common.Hash, token common.Address) (bool, error) {
	return r.layout.IsRegistered(rd, pool, token)
}

func (r *Registry) Balance(rd store.Reader, pool common.Hash, token common.Address) (balance.Balance, error) {
	return r.layout.Balance(rd, pool, token)
}

// Balances returns every token of pool with its balance, in Tokens order.
func (r *Registry) Balances(rd store.Reader, pool common.Hash) ([]common.Address, []balance.Balance, error) {
	tokens, err := r.layout.Tokens(rd, pool)
	if err != nil {
		return nil, nil, err
	}
	balances := make([]balance.Balance, len(tokens))
	positional, ok := r.layout.(PositionalLayout)
	for i, token := range tokens {
		if ok {
			balances[i], err = positional.BalanceAt(rd, pool, uint64(i))
		} else {
			balances[i], err = r.layout.Balance(rd, pool, token)
		}
		if err != nil {
			return nil, nil, err
		}
	}
	return tokens, balances, nil
}

// Update applies op to the balance of token in pool and stores the result.
// It is the only path by which a pool balance changes.
func (r *Registry) Update(rw store.ReadWriter, pool common.Hash, token common.Address, op balance.Op, amount *uint256.Int, blockNumber uint64) (balance.Balance, error) {
	if amount == nil {
		return balance.Balance{}, fmt.Errorf("%s %s: %w", op, token, ErrNilAmount)
	}
	current, err := r.layout.Balance(rw, pool, token)
	if err != nil {
		return balance.Balance{}, err
	}
	updated, err := op.Apply(current, amount, blockNumber)
	if err != nil {
		return balance.Balance{}, fmt.Errorf("%s %s: %w", op, token, err)
	}
	if err := r.layout.SetBalance(rw, pool, token, updated); err != nil {
		return balance.Balance{}, err
	}
	return updated, nil
}

// UpdateMany applies op to each token with the matching amount, stopping at
// the first failure. Callers discard rw on failure.
func (r *Registry) UpdateMany(rw store.ReadWriter, pool common.Hash, tokens []common.Address, op balance.Op, amounts []*uint256.Int, blockNumber uint64) error {
	if len(tokens) != len(amounts) {
		return fmt.Errorf("%w: %d tokens, %d amounts", ErrTokensLengthMismatch, len(tokens), len(amounts))
	}
	for i, token := range tokens {
		if _, err := r.Update(rw, pool, token, op, amounts[i], blockNumber); err != nil {
			return err
		}
	}
	return nil
}

func wordTokens(words []common.Hash) []common.Address {
	out := make([]common.Address, len(words))
	for i, w := range words {
		out[i] = store.WordAddress(w)
	}
	return out
}
