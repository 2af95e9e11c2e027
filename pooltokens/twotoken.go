package pooltokens

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/defistate/vault-ledger-go/balance"
	"github.com/defistate/vault-ledger-go/store"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrIdenticalTokens is returned by pair lookups given the same token twice.
var ErrIdenticalTokens = errors.New("identical tokens")

// TwoTokenLayout stores exactly two tokens per pool, sorted so that A < B.
// Both balances live in two shared words, cash (with the block number) and
// managed, keyed by the hash of the sorted pair. Cash-only updates touch a
// single word.
type TwoTokenLayout struct {
	namespace string
}

func NewTwoTokenLayout() *TwoTokenLayout {
	return &TwoTokenLayout{namespace: "vault.twotoken"}
}

// SortTokens orders x and y by their bytes.
func SortTokens(x, y common.Address) (a, b common.Address) {
	if bytes.Compare(x[:], y[:]) < 0 {
		return x, y
	}
	return y, x
}

// PairHash identifies a sorted token pair.
func PairHash(a, b common.Address) common.Hash {
	return crypto.Keccak256Hash(a[:], b[:])
}

func (l *TwoTokenLayout) tokenAKey(pool common.Hash) common.Hash {
	return store.Key(l.namespace+".tokenA", pool[:])
}

func (l *TwoTokenLayout) tokenBKey(pool common.Hash) common.Hash {
	return store.Key(l.namespace+".tokenB", pool[:])
}

func (l *TwoTokenLayout) cashKey(pool, pair common.Hash) common.Hash {
	return store.Key(l.namespace+".cash", pool[:], pair[:])
}

func (l *TwoTokenLayout) managedKey(pool, pair common.Hash) common.Hash {
	return store.Key(l.namespace+".managed", pool[:], pair[:])
}

// Pair returns the pool's sorted tokens; ok is false when none are registered.
func (l *TwoTokenLayout) Pair(r store.Reader, pool common.Hash) (a, b common.Address, ok bool, err error) {
	wa, err := r.Get(l.tokenAKey(pool))
	if err != nil {
		return common.Address{}, common.Address{}, false, err
	}
	if wa == (common.Hash{}) {
		return common.Address{}, common.Address{}, false, nil
	}
	wb, err := r.Get(l.tokenBKey(pool))
	if err != nil {
		return common.Address{}, common.Address{}, false, err
	}
	return store.WordAddress(wa), store.WordAddress(wb), true, nil
}

func (l *TwoTokenLayout) Register(rw store.ReadWriter, pool common.Hash, tokens []common.Address) error {
	if len(tokens) != 2 {
		return fmt.Errorf("%w: got %d", ErrTwoTokenCount, len(tokens))
	}
	if tokens[0] == tokens[1] {
		return fmt.Errorf("%w: %s", ErrTokenAlreadyRegistered, tokens[0])
	}
	_, _, ok, err := l.Pair(rw, pool)
	if err != nil {
		return err
	}
	if ok {
		return ErrTokensAlreadySet
	}

	a, b := SortTokens(tokens[0], tokens[1])
	rw.Set(l.tokenAKey(pool), store.AddressWord(a))
	rw.Set(l.tokenBKey(pool), store.AddressWord(b))
	return nil
}

// Unregister removes both tokens at once; tokens must be exactly the pool's pair.
func (l *TwoTokenLayout) Unregister(rw store.ReadWriter, pool common.Hash, tokens []common.Address) error {
	if len(tokens) != 2 {
		return fmt.Errorf("%w: got %d", ErrTwoTokenCount, len(tokens))
	}
	a, b, ok, err := l.Pair(rw, pool)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrTokenNotRegistered, tokens[0])
	}
	if x, y := SortTokens(tokens[0], tokens[1]); x != a || y != b {
		return ErrTokensMismatch
	}

	pair := PairHash(a, b)
	rw.Set(l.cashKey(pool, pair), common.Hash{})
	rw.Set(l.managedKey(pool, pair), common.Hash{})
	rw.Set(l.tokenAKey(pool), common.Hash{})
	rw.Set(l.tokenBKey(pool), common.Hash{})
	return nil
}

func (l *TwoTokenLayout) Tokens(r store.Reader, pool common.Hash) ([]common.Address, error) {
	a, b, ok, err := l.Pair(r, pool)
	if err != nil || !ok {
		return nil, err
	}
	return []common.Address{a, b}, nil
}

func (l *TwoTokenLayout) IsRegistered(r store.Reader, pool common.Hash, token common.Address) (bool, error) {
	a, b, ok, err := l.Pair(r, pool)
	if err != nil || !ok {
		return false, err
	}
	return token == a || token == b, nil
}

func (l *TwoTokenLayout) shared(r store.Reader, pool, pair common.Hash) (balance.SharedCash, balance.SharedManaged, error) {
	cw, err := r.Get(l.cashKey(pool, pair))
	if err != nil {
		return balance.SharedCash{}, balance.SharedManaged{}, err
	}
	mw, err := r.Get(l.managedKey(pool, pair))
	if err != nil {
		return balance.SharedCash{}, balance.SharedManaged{}, err
	}
	return balance.SharedCashFromWord(cw), balance.SharedManagedFromWord(mw), nil
}

// balances decodes both balances of the registered pair.
func (l *TwoTokenLayout) balances(r store.Reader, pool common.Hash) (a, b common.Address, ba, bb balance.Balance, err error) {
	a, b, ok, err := l.Pair(r, pool)
	if err != nil {
		return
	}
	if !ok {
		err = ErrTokenNotRegistered
		return
	}
	cash, managed, err := l.shared(r, pool, PairHash(a, b))
	if err != nil {
		return
	}
	if ba, err = balance.FromSharedToBalanceA(cash, managed); err != nil {
		return
	}
	bb, err = balance.FromSharedToBalanceB(cash, managed)
	return
}

func (l *TwoTokenLayout) Balance(r store.Reader, pool common.Hash, token common.Address) (balance.Balance, error) {
	a, b, ba, bb, err := l.balances(r, pool)
	switch {
	case errors.Is(err, ErrTokenNotRegistered):
		return balance.Balance{}, fmt.Errorf("%w: %s", ErrTokenNotRegistered, token)
	case err != nil:
		return balance.Balance{}, err
	case token == a:
		return ba, nil
	case token == b:
		return bb, nil
	default:
		return balance.Balance{}, fmt.Errorf("%w: %s", ErrTokenNotRegistered, token)
	}
}

// SetBalance rewrites the shared cash word and, only if it changed, the
// shared managed word.
func (l *TwoTokenLayout) SetBalance(rw store.ReadWriter, pool common.Hash, token common.Address, nb balance.Balance) error {
	a, b, ba, bb, err := l.balances(rw, pool)
	if errors.Is(err, ErrTokenNotRegistered) {
		return fmt.Errorf("%w: %s", ErrTokenNotRegistered, token)
	}
	if err != nil {
		return err
	}
	switch token {
	case a:
		ba = nb
	case b:
		bb = nb
	default:
		return fmt.Errorf("%w: %s", ErrTokenNotRegistered, token)
	}

	pair := PairHash(a, b)
	_, oldManaged, err := l.shared(rw, pool, pair)
	if err != nil {
		return err
	}
	rw.Set(l.cashKey(pool, pair), balance.ToSharedCash(ba, bb).Word())
	if managed := balance.ToSharedManaged(ba, bb); managed != oldManaged {
		rw.Set(l.managedKey(pool, pair), managed.Word())
	}
	return nil
}

// PairBalances returns the balances of x and y, in that order, reading the
// shared words keyed by the pair hash. Only when both words are zero does it
// consult the registered pair, to tell an unregistered pair from a
// registered one with empty balances.
func (l *TwoTokenLayout) PairBalances(r store.Reader, pool common.Hash, x, y common.Address) (bx, by balance.Balance, err error) {
	if x == y {
		return balance.Balance{}, balance.Balance{}, fmt.Errorf("%w: %s", ErrIdenticalTokens, x)
	}
	a, b := SortTokens(x, y)
	cash, managed, err := l.shared(r, pool, PairHash(a, b))
	if err != nil {
		return balance.Balance{}, balance.Balance{}, err
	}
	if cash.IsZero() && managed.IsZero() {
		ra, rb, ok, err := l.Pair(r, pool)
		if err != nil {
			return balance.Balance{}, balance.Balance{}, err
		}
		if !ok || ra != a || rb != b {
			return balance.Balance{}, balance.Balance{}, fmt.Errorf("%w: pair %s/%s", ErrTokenNotRegistered, x, y)
		}
	}

	ba, err := balance.FromSharedToBalanceA(cash, managed)
	if err != nil {
		return balance.Balance{}, balance.Balance{}, err
	}
	bb, err := balance.FromSharedToBalanceB(cash, managed)
	if err != nil {
		return balance.Balance{}, balance.Balance{}, err
	}
	if x == a {
		return ba, bb, nil
	}
	return bb, ba, nil
}
