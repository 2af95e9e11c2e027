package pooltokens

import (
	"fmt"

	"github.com/defistate/vault-ledger-go/balance"
	"github.com/defistate/vault-ledger-go/store"
	"github.com/ethereum/go-ethereum/common"
)

// MinimalSwapInfoLayout keeps one balance word per (pool, token), addressed
// directly by token, plus a membership set used for registration checks and
// reporting.
type MinimalSwapInfoLayout struct {
	tokens    store.Set
	namespace string
}

func NewMinimalSwapInfoLayout() *MinimalSwapInfoLayout {
	return &MinimalSwapInfoLayout{
		tokens:    store.Set{Namespace: "vault.minimal.tokens"},
		namespace: "vault.minimal.balance",
	}
}

func (l *MinimalSwapInfoLayout) balanceKey(pool common.Hash, token common.Address) common.Hash {
	return store.Key(l.namespace, pool[:], token[:])
}

func (l *MinimalSwapInfoLayout) Register(rw store.ReadWriter, pool common.Hash, tokens []common.Address) error {
	for _, token := range tokens {
		_, added, err := l.tokens.Add(rw, pool, store.AddressWord(token))
		if err != nil {
			return err
		}
		if !added {
			return fmt.Errorf("%w: %s", ErrTokenAlreadyRegistered, token)
		}
	}
	return nil
}

func (l *MinimalSwapInfoLayout) Unregister(rw store.ReadWriter, pool common.Hash, tokens []common.Address) error {
	for _, token := range tokens {
		_, _, ok, err := l.tokens.Remove(rw, pool, store.AddressWord(token))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrTokenNotRegistered, token)
		}
		rw.Set(l.balanceKey(pool, token), common.Hash{})
	}
	return nil
}

func (l *MinimalSwapInfoLayout) Tokens(r store.Reader, pool common.Hash) ([]common.Address, error) {
	words, err := l.tokens.Members(r, pool)
	if err != nil {
		return nil, err
	}
	return wordTokens(words), nil
}

func (l *MinimalSwapInfoLayout) IsRegistered(r store.Reader, pool common.Hash, token common.Address) (bool, error) {
	return l.tokens.Contains(r, pool, store.AddressWord(token))
}

// Balance reads the word directly and consults the membership set only when
// the word is zero, since a non-zero word implies registration.
func (l *MinimalSwapInfoLayout) Balance(r store.Reader, pool common.Hash, token common.Address) (balance.Balance, error) {
	w, err := r.Get(l.balanceKey(pool, token))
	if err != nil {
		return balance.Balance{}, err
	}
	b := balance.FromWord(w)
	if b.IsZero() {
		ok, err := l.IsRegistered(r, pool, token)
		if err != nil {
			return balance.Balance{}, err
		}
		if !ok {
			return balance.Balance{}, fmt.Errorf("%w: %s", ErrTokenNotRegistered, token)
		}
	}
	return b, nil
}

func (l *MinimalSwapInfoLayout) SetBalance(rw store.ReadWriter, pool common.Hash, token common.Address, b balance.Balance) error {
	ok, err := l.IsRegistered(rw, pool, token)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrTokenNotRegistered, token)
	}
	rw.Set(l.balanceKey(pool, token), b.Word())
	return nil
}
