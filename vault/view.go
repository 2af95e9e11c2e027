package vault

import (
	"bytes"
	"slices"

	"github.com/defistate/vault-ledger-go/poolregistry"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// TokenBalance is the decoded balance of one pool token.
type TokenBalance struct {
	Token           common.Address `json:"token"`
	Cash            *uint256.Int   `json:"cash"`
	Managed         *uint256.Int   `json:"managed"`
	LastChangeBlock uint64         `json:"lastChangeBlock"`
}

func (b TokenBalance) equal(o TokenBalance) bool {
	return b.Token == o.Token &&
		b.Cash.Eq(o.Cash) &&
		b.Managed.Eq(o.Managed) &&
		b.LastChangeBlock == o.LastChangeBlock
}

// PoolView is a pool with the balances of all of its tokens.
type PoolView struct {
	Pool   poolregistry.Pool `json:"pool"`
	Tokens []TokenBalance    `json:"tokens"`
}

func (p PoolView) equal(o PoolView) bool {
	return p.Pool == o.Pool && slices.EqualFunc(p.Tokens, o.Tokens, TokenBalance.equal)
}

// deepCopyPoolView creates a PoolView with its own memory for the token balances.
func deepCopyPoolView(p PoolView) PoolView {
	out := PoolView{Pool: p.Pool, Tokens: make([]TokenBalance, len(p.Tokens))}
	for i, t := range p.Tokens {
		out.Tokens[i] = TokenBalance{
			Token:           t.Token,
			Cash:            new(uint256.Int).Set(t.Cash),
			Managed:         new(uint256.Int).Set(t.Managed),
			LastChangeBlock: t.LastChangeBlock,
		}
	}
	return out
}

// Snapshot is the state of every pool, ordered by pool ID.
type Snapshot struct {
	Pools []PoolView `json:"pools"`
}

// Registry returns the pool identities in the snapshot.
func (s *Snapshot) Registry() poolregistry.PoolRegistry {
	reg := poolregistry.PoolRegistry{Pools: make([]poolregistry.Pool, len(s.Pools))}
	for i, p := range s.Pools {
		reg.Pools[i] = p.Pool
	}
	return reg
}

func (s *Snapshot) clone() *Snapshot {
	out := &Snapshot{Pools: make([]PoolView, len(s.Pools))}
	for i, p := range s.Pools {
		out.Pools[i] = deepCopyPoolView(p)
	}
	return out
}

func sortPoolViews(views []PoolView) {
	slices.SortFunc(views, func(a, b PoolView) int {
		return bytes.Compare(a.Pool.ID[:], b.Pool.ID[:])
	})
}

// View returns the current state of one pool.
func (v *Vault) View(pool common.Hash) (PoolView, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.view(pool)
}

// view must be called with v.mu held.
func (v *Vault) view(pool common.Hash) (PoolView, error) {
	p, err := v.pools.Pool(v.store, pool)
	if err != nil {
		return PoolView{}, err
	}
	tokens, balances, err := v.tokens[p.Specialization].Balances(v.store, pool)
	if err != nil {
		return PoolView{}, err
	}
	out := PoolView{Pool: p, Tokens: make([]TokenBalance, len(tokens))}
	for i, token := range tokens {
		out.Tokens[i] = TokenBalance{
			Token:           token,
			Cash:            balances[i].Cash(),
			Managed:         balances[i].Managed(),
			LastChangeBlock: balances[i].LastChangeBlock(),
		}
	}
	return out, nil
}

// Snapshot returns a deep copy of the state of every pool. The snapshot is
// cached until the next successful write.
func (v *Vault) Snapshot() (*Snapshot, error) {
	if cached := v.cachedSnapshot.Load(); cached != nil {
		return cached.clone(), nil
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	reg, err := v.pools.Pools(v.store)
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{Pools: make([]PoolView, len(reg.Pools))}
	for i, p := range reg.Pools {
		if snap.Pools[i], err = v.view(p.ID); err != nil {
			return nil, err
		}
	}
	sortPoolViews(snap.Pools)

	// writes hold the exclusive lock, so nothing has invalidated the cache
	// since the reads above
	v.cachedSnapshot.Store(snap)
	return snap.clone(), nil
}
