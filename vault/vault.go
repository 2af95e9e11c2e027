package vault

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/defistate/vault-ledger-go/balance"
	"github.com/defistate/vault-ledger-go/poolregistry"
	"github.com/defistate/vault-ledger-go/pooltokens"
	"github.com/defistate/vault-ledger-go/store"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds the vault's dependencies.
type Config struct {
	Store    store.Store
	Blocks   BlockSource
	Logger   Logger
	Registry prometheus.Registerer
}

func (c *Config) validate() error {
	if c.Store == nil {
		return errors.New("config: Store cannot be nil")
	}
	if c.Blocks == nil {
		return errors.New("config: Blocks cannot be nil")
	}
	if c.Logger == nil {
		return errors.New("config: Logger cannot be nil")
	}
	if c.Registry == nil {
		return errors.New("config: Registry cannot be nil")
	}
	return nil
}

// Vault is the pool balance ledger. Every state-changing call runs under an
// exclusive lock against a journal over the store and is committed as one
// batch only if the whole call succeeds. Read calls share the lock.
type Vault struct {
	mu      sync.RWMutex
	store   store.Store
	blocks  BlockSource
	logger  Logger
	metrics *Metrics

	pools    *poolregistry.Registry
	tokens   map[poolregistry.Specialization]*pooltokens.Registry
	twoToken *pooltokens.TwoTokenLayout

	cachedSnapshot atomic.Pointer[Snapshot]
}

// NewVault constructs a vault from cfg, returning an error if cfg is invalid.
func NewVault(cfg *Config) (*Vault, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	twoToken := pooltokens.NewTwoTokenLayout()
	return &Vault{
		store:   cfg.Store,
		blocks:  cfg.Blocks,
		logger:  cfg.Logger,
		metrics: NewMetrics(cfg.Registry),
		pools:   poolregistry.NewRegistry(),
		tokens: map[poolregistry.Specialization]*pooltokens.Registry{
			poolregistry.General:         pooltokens.NewRegistry(pooltokens.NewGeneralLayout()),
			poolregistry.MinimalSwapInfo: pooltokens.NewRegistry(pooltokens.NewMinimalSwapInfoLayout()),
			poolregistry.TwoToken:        pooltokens.NewRegistry(twoToken),
		},
		twoToken: twoToken,
	}, nil
}

// write runs fn against a fresh journal and commits its writes if fn succeeds.
// fn receives the current block number.
func (v *Vault) write(op string, fn func(j *store.Journal, blockNumber uint64) error) error {
	timer := prometheus.NewTimer(v.metrics.duration.WithLabelValues(op))
	defer timer.ObserveDuration()
	v.metrics.operations.WithLabelValues(op).Inc()

	v.mu.Lock()
	defer v.mu.Unlock()

	j := store.NewJournal(v.store)
	if err := fn(j, v.blocks.BlockNumber()); err != nil {
		reason := ReasonOf(err)
		v.metrics.failures.WithLabelValues(op, reason).Inc()
		v.logger.Debug("operation reverted", "op", op, "reason", reason, "error", err)
		return err
	}
	if err := v.store.Commit(j.Writes()); err != nil {
		v.metrics.failures.WithLabelValues(op, ReasonOf(err)).Inc()
		v.logger.Error("failed to commit operation", "op", op, "error", err)
		return fmt.Errorf("commit %s: %w", op, err)
	}
	v.cachedSnapshot.Store(nil)
	return nil
}

// registryFor returns the token registry for a registered pool.
func (v *Vault) registryFor(r store.Reader, pool common.Hash) (*pooltokens.Registry, error) {
	p, err := v.pools.Pool(r, pool)
	if err != nil {
		return nil, err
	}
	return v.tokens[p.Specialization], nil
}

// --- Pools and tokens ---

// RegisterPool registers the pool at address and returns its new identity.
func (v *Vault) RegisterPool(address common.Address, specialization poolregistry.Specialization) (poolregistry.Pool, error) {
	var pool poolregistry.Pool
	err := v.write("registerPool", func(j *store.Journal, _ uint64) error {
		var err error
		pool, err = v.pools.RegisterPool(j, address, specialization)
		return err
	})
	if err != nil {
		return poolregistry.Pool{}, err
	}
	v.logger.Info("Pool registered", "pool", pool.ID, "address", address, "specialization", specialization)
	return pool, nil
}

// DeregisterPool removes a pool that has no registered tokens.
func (v *Vault) DeregisterPool(pool common.Hash) error {
	err := v.write("deregisterPool", func(j *store.Journal, _ uint64) error {
		reg, err := v.registryFor(j, pool)
		if err != nil {
			return err
		}
		tokens, err := reg.Tokens(j, pool)
		if err != nil {
			return err
		}
		if len(tokens) > 0 {
			return fmt.Errorf("%w: %d tokens", poolregistry.ErrPoolHasTokens, len(tokens))
		}
		return v.pools.DeregisterPool(j, pool)
	})
	if err == nil {
		v.logger.Info("Pool deregistered", "pool", pool)
	}
	return err
}

func (v *Vault) RegisterTokens(pool common.Hash, tokens []common.Address) error {
	err := v.write("registerTokens", func(j *store.Journal, _ uint64) error {
		reg, err := v.registryFor(j, pool)
		if err != nil {
			return err
		}
		return reg.RegisterTokens(j, pool, tokens)
	})
	if err == nil {
		v.logger.Info("Tokens registered", "pool", pool, "tokens", tokens)
	}
	return err
}

// UnregisterTokens removes tokens from pool. Each must have a zero total.
func (v *Vault) UnregisterTokens(pool common.Hash, tokens []common.Address) error {
	err := v.write("unregisterTokens", func(j *store.Journal, _ uint64) error {
		reg, err := v.registryFor(j, pool)
		if err != nil {
			return err
		}
		return reg.UnregisterTokens(j, pool, tokens)
	})
	if err == nil {
		v.logger.Info("Tokens unregistered", "pool", pool, "tokens", tokens)
	}
	return err
}

// --- Reads ---

// Pools returns every registered pool.
func (v *Vault) Pools() (poolregistry.PoolRegistry, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.pools.Pools(v.store)
}

// GetPoolTokens returns the pool's tokens, the total of each, and the most
// recent block in which any of them changed.
func (v *Vault) GetPoolTokens(pool common.Hash) ([]common.Address, []*uint256.Int, uint64, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	reg, err := v.registryFor(v.store, pool)
	if err != nil {
		return nil, nil, 0, err
	}
	tokens, balances, err := reg.Balances(v.store, pool)
	if err != nil {
		return nil, nil, 0, err
	}
	return tokens, balance.Totals(balances), balance.MaxLastChangeBlock(balances), nil
}

// GetPoolTokenInfo returns the decoded balance of one token.
func (v *Vault) GetPoolTokenInfo(pool common.Hash, token common.Address) (cash, managed *uint256.Int, lastChangeBlock uint64, err error) {
	b, err := v.GetPoolBalance(pool, token)
	if err != nil {
		return nil, nil, 0, err
	}
	return b.Cash(), b.Managed(), b.LastChangeBlock(), nil
}

// GetPoolBalance returns the encoded balance of one token.
func (v *Vault) GetPoolBalance(pool common.Hash, token common.Address) (balance.Balance, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	reg, err := v.registryFor(v.store, pool)
	if err != nil {
		return balance.Balance{}, err
	}
	return reg.Balance(v.store, pool, token)
}

func (v *Vault) IsTokenRegistered(pool common.Hash, token common.Address) (bool, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	reg, err := v.registryFor(v.store, pool)
	if err != nil {
		return false, err
	}
	return reg.IsRegistered(v.store, pool, token)
}

// IsManaged reports whether part of the token's balance is held by the pool's asset manager.
func (v *Vault) IsManaged(pool common.Hash, token common.Address) (bool, error) {
	b, err := v.GetPoolBalance(pool, token)
	if err != nil {
		return false, err
	}
	return b.IsManaged(), nil
}

// GetPairBalances returns the balances of x and y in a two-token pool, in
// the order given.
func (v *Vault) GetPairBalances(pool common.Hash, x, y common.Address) (balance.Balance, balance.Balance, error) {
	if s := poolregistry.SpecializationOf(pool); s != poolregistry.TwoToken {
		return balance.Balance{}, balance.Balance{}, fmt.Errorf("%w: %s", ErrWrongSpecialization, s)
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	if _, err := v.pools.Pool(v.store, pool); err != nil {
		return balance.Balance{}, balance.Balance{}, err
	}
	return v.twoToken.PairBalances(v.store, pool, x, y)
}

// --- Balance updates ---

// UpdateBalance applies op to one token's balance and returns the result.
func (v *Vault) UpdateBalance(pool common.Hash, token common.Address, op balance.Op, amount *uint256.Int) (balance.Balance, error) {
	var updated balance.Balance
	err := v.write(op.String(), func(j *store.Journal, blockNumber uint64) error {
		reg, err := v.registryFor(j, pool)
		if err != nil {
			return err
		}
		updated, err = reg.Update(j, pool, token, op, amount, blockNumber)
		return err
	})
	if err != nil {
		return balance.Balance{}, err
	}
	return updated, nil
}

func (v *Vault) updateMany(pool common.Hash, tokens []common.Address, op balance.Op, amounts []*uint256.Int) error {
	return v.write(op.String(), func(j *store.Journal, blockNumber uint64) error {
		reg, err := v.registryFor(j, pool)
		if err != nil {
			return err
		}
		return reg.UpdateMany(j, pool, tokens, op, amounts, blockNumber)
	})
}

// IncreaseCash adds amounts[i] to the cash of tokens[i]. Nothing is applied
// unless every increase succeeds.
func (v *Vault) IncreaseCash(pool common.Hash, tokens []common.Address, amounts []*uint256.Int) error {
	return v.updateMany(pool, tokens, balance.OpIncreaseCash, amounts)
}

// DecreaseCash subtracts amounts[i] from the cash of tokens[i]. Nothing is
// applied unless every decrease succeeds.
func (v *Vault) DecreaseCash(pool common.Hash, tokens []common.Address, amounts []*uint256.Int) error {
	return v.updateMany(pool, tokens, balance.OpDecreaseCash, amounts)
}

func (v *Vault) CashToManaged(pool common.Hash, token common.Address, amount *uint256.Int) error {
	_, err := v.UpdateBalance(pool, token, balance.OpCashToManaged, amount)
	return err
}

func (v *Vault) ManagedToCash(pool common.Hash, token common.Address, amount *uint256.Int) error {
	_, err := v.UpdateBalance(pool, token, balance.OpManagedToCash, amount)
	return err
}

// SetManaged overwrites the managed amount with the value reported by the asset manager.
func (v *Vault) SetManaged(pool common.Hash, token common.Address, managed *uint256.Int) error {
	_, err := v.UpdateBalance(pool, token, balance.OpSetManaged, managed)
	return err
}

// PoolBalanceOpKind is an asset manager action.
type PoolBalanceOpKind uint8

const (
	// Withdraw moves cash to the manager.
	Withdraw PoolBalanceOpKind = iota
	// Deposit returns managed funds to cash.
	Deposit
	// Update reports the manager's current holdings.
	Update
)

func (k PoolBalanceOpKind) op() (balance.Op, error) {
	switch k {
	case Withdraw:
		return balance.OpCashToManaged, nil
	case Deposit:
		return balance.OpManagedToCash, nil
	case Update:
		return balance.OpSetManaged, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnknownManageOp, uint8(k))
	}
}

// PoolBalanceOp is one asset manager action on one pool token.
type PoolBalanceOp struct {
	Kind   PoolBalanceOpKind
	Pool   common.Hash
	Token  common.Address
	Amount *uint256.Int
}

// ManagePoolBalance applies ops in order. Nothing is applied unless every op succeeds.
func (v *Vault) ManagePoolBalance(ops []PoolBalanceOp) error {
	return v.write("managePoolBalance", func(j *store.Journal, blockNumber uint64) error {
		for i, o := range ops {
			op, err := o.Kind.op()
			if err != nil {
				return fmt.Errorf("op %d: %w", i, err)
			}
			reg, err := v.registryFor(j, o.Pool)
			if err != nil {
				return fmt.Errorf("op %d: %w", i, err)
			}
			if _, err := reg.Update(j, o.Pool, o.Token, op, o.Amount, blockNumber); err != nil {
				return fmt.Errorf("op %d: %w", i, err)
			}
		}
		return nil
	})
}
