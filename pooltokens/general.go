package pooltokens

import (
	"fmt"

	"github.com/defistate/vault-ledger-go/balance"
	"github.com/defistate/vault-ledger-go/store"
	"github.com/ethereum/go-ethereum/common"
)

// GeneralLayout keeps an enumerable map from token to balance. Balance words
// sit in slots parallel to the token positions, so reading every balance of
// a pool walks positions 0..n-1 without hashing tokens.
type GeneralLayout struct {
	tokens    store.Set
	namespace string
}

var _ PositionalLayout = (*GeneralLayout)(nil)

func NewGeneralLayout() *GeneralLayout {
	return &GeneralLayout{
		tokens:    store.Set{Namespace: "vault.general.tokens"},
		namespace: "vault.general.balance",
	}
}

func (l *GeneralLayout) balanceKey(pool common.Hash, i uint64) common.Hash {
	return store.Key(l.namespace, pool[:], store.Uint64Bytes(i))
}

func (l *GeneralLayout) Register(rw store.ReadWriter, pool common.Hash, tokens []common.Address) error {
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

func (l *GeneralLayout) Unregister(rw store.ReadWriter, pool common.Hash, tokens []common.Address) error {
	for _, token := range tokens {
		removed, moved, ok, err := l.tokens.Remove(rw, pool, store.AddressWord(token))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrTokenNotRegistered, token)
		}
		if removed != moved {
			w, err := rw.Get(l.balanceKey(pool, moved))
			if err != nil {
				return err
			}
			rw.Set(l.balanceKey(pool, removed), w)
		}
		rw.Set(l.balanceKey(pool, moved), common.Hash{})
	}
	return nil
}

func (l *GeneralLayout) Tokens(r store.Reader, pool common.Hash) ([]common.Address, error) {
	words, err := l.tokens.Members(r, pool)
	if err != nil {
		return nil, err
	}
	return wordTokens(words), nil
}

func (l *GeneralLayout) IsRegistered(r store.Reader, pool common.Hash, token common.Address) (bool, error) {
	return l.tokens.Contains(r, pool, store.AddressWord(token))
}

func (l *GeneralLayout) index(r store.Reader, pool common.Hash, token common.Address) (uint64, error) {
	i, ok, err := l.tokens.IndexOf(r, pool, store.AddressWord(token))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrTokenNotRegistered, token)
	}
	return i, nil
}

func (l *GeneralLayout) Balance(r store.Reader, pool common.Hash, token common.Address) (balance.Balance, error) {
	i, err := l.index(r, pool, token)
	if err != nil {
		return balance.Balance{}, err
	}
	w, err := r.Get(l.balanceKey(pool, i))
	if err != nil {
		return balance.Balance{}, err
	}
	return balance.FromWord(w), nil
}

// BalanceAt returns the balance at position i, as ordered by Tokens.
func (l *GeneralLayout) BalanceAt(r store.Reader, pool common.Hash, i uint64) (balance.Balance, error) {
	w, err := r.Get(l.balanceKey(pool, i))
	if err != nil {
		return balance.Balance{}, err
	}
	return balance.FromWord(w), nil
}

func (l *GeneralLayout) SetBalance(rw store.ReadWriter, pool common.Hash, token common.Address, b balance.Balance) error {
	i, err := l.index(rw, pool, token)
	if err != nil {
		return err
	}
	rw.Set(l.balanceKey(pool, i), b.Word())
	return nil
}
