package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/defistate/vault-ledger-go/poolregistry"
	"github.com/defistate/vault-ledger-go/vault"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	errUnknownOp      = errors.New("unknown op")
	errUnknownPool    = errors.New("unknown pool reference")
	errBlockRegressed = errors.New("block number cannot go backwards")
)

// Op is one step of a replay script. Pools registered by the script are
// referred to by Name; any other pool reference is parsed as a hex pool ID.
type Op struct {
	Op             string                      `json:"op"`
	Name           string                      `json:"name,omitempty"`
	Pool           string                      `json:"pool,omitempty"`
	Address        common.Address              `json:"address,omitempty"`
	Specialization poolregistry.Specialization `json:"specialization,omitempty"`
	User           common.Address              `json:"user,omitempty"`
	Token          common.Address              `json:"token,omitempty"`
	Tokens         []common.Address            `json:"tokens,omitempty"`
	Amount         *uint256.Int                `json:"amount,omitempty"`
	Amounts        []*uint256.Int              `json:"amounts,omitempty"`
	Track          bool                        `json:"track,omitempty"`
	Capped         bool                        `json:"capped,omitempty"`
	UseExempt      bool                        `json:"useExempt,omitempty"`
	Block          uint64                      `json:"block,omitempty"`
}

// DecodeOps reads a JSON array of ops.
func DecodeOps(r io.Reader) ([]Op, error) {
	var ops []Op
	if err := json.NewDecoder(r).Decode(&ops); err != nil {
		return nil, fmt.Errorf("decode ops: %w", err)
	}
	return ops, nil
}

// replayer applies ops to a vault.
type replayer struct {
	vault  *vault.Vault
	blocks *vault.BlockCounter
	logger *slog.Logger
	pools  map[string]common.Hash
}

func newReplayer(v *vault.Vault, blocks *vault.BlockCounter, logger *slog.Logger) *replayer {
	return &replayer{
		vault:  v,
		blocks: blocks,
		logger: logger,
		pools:  make(map[string]common.Hash),
	}
}

func (r *replayer) pool(ref string) (common.Hash, error) {
	if id, ok := r.pools[ref]; ok {
		return id, nil
	}
	var id common.Hash
	if err := id.UnmarshalText([]byte(ref)); err != nil {
		return common.Hash{}, fmt.Errorf("%w: %q", errUnknownPool, ref)
	}
	return id, nil
}

// run applies every op, logging failures and carrying on. It returns the
// number of ops that failed.
func (r *replayer) run(ops []Op) int {
	failed := 0
	for i, op := range ops {
		if err := r.apply(op); err != nil {
			failed++
			r.logger.Warn("Op failed", "index", i, "op", op.Op, "reason", vault.ReasonOf(err), "error", err)
		}
	}
	return failed
}

func (r *replayer) apply(op Op) error {
	switch op.Op {
	case "registerPool":
		p, err := r.vault.RegisterPool(op.Address, op.Specialization)
		if err != nil {
			return err
		}
		if op.Name != "" {
			r.pools[op.Name] = p.ID
		}
		return nil
	case "setBlock":
		if !r.blocks.Set(op.Block) {
			return fmt.Errorf("%w: at %d, got %d", errBlockRegressed, r.blocks.BlockNumber(), op.Block)
		}
		return nil
	case "depositInternal":
		return r.vault.DepositToInternalBalance(op.User, op.Token, amountOrZero(op.Amount), op.Track)
	case "withdrawInternal":
		taxable, decreased, err := r.vault.WithdrawFromInternalBalance(op.User, op.Token, amountOrZero(op.Amount), op.Capped, op.UseExempt)
		if err != nil {
			return err
		}
		r.logger.Info("Internal balance withdrawn", "user", op.User, "token", op.Token, "decreased", decreased.Dec(), "taxable", taxable.Dec())
		return nil
	case "deregisterPool", "registerTokens", "unregisterTokens",
		"increaseCash", "decreaseCash", "cashToManaged", "managedToCash", "setManaged":
		pool, err := r.pool(op.Pool)
		if err != nil {
			return err
		}
		return r.applyToPool(pool, op)
	default:
		return fmt.Errorf("%w: %q", errUnknownOp, op.Op)
	}
}

func (r *replayer) applyToPool(pool common.Hash, op Op) error {
	switch op.Op {
	case "deregisterPool":
		return r.vault.DeregisterPool(pool)
	case "registerTokens":
		return r.vault.RegisterTokens(pool, op.Tokens)
	case "unregisterTokens":
		return r.vault.UnregisterTokens(pool, op.Tokens)
	case "increaseCash":
		return r.vault.IncreaseCash(pool, op.Tokens, amountsOrZero(op.Amounts))
	case "decreaseCash":
		return r.vault.DecreaseCash(pool, op.Tokens, amountsOrZero(op.Amounts))
	case "cashToManaged":
		return r.vault.CashToManaged(pool, op.Token, amountOrZero(op.Amount))
	case "managedToCash":
		return r.vault.ManagedToCash(pool, op.Token, amountOrZero(op.Amount))
	default:
		return r.vault.SetManaged(pool, op.Token, amountOrZero(op.Amount))
	}
}

func amountOrZero(a *uint256.Int) *uint256.Int {
	if a == nil {
		return new(uint256.Int)
	}
	return a
}

// amountsOrZero reads null entries of a script's amounts as zero.
func amountsOrZero(as []*uint256.Int) []*uint256.Int {
	out := make([]*uint256.Int, len(as))
	for i, a := range as {
		out[i] = amountOrZero(a)
	}
	return out
}
