package balance

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

// ErrUnknownOp is returned by Apply for an Op outside the declared set.
var ErrUnknownOp = errors.New("unknown balance op")

// Op names one of the balance mutators so a single update path can apply any of them.
type Op uint8

const (
	OpIncreaseCash Op = iota
	OpDecreaseCash
	OpCashToManaged
	OpManagedToCash
	OpSetManaged
)

var opNames = [...]string{
	OpIncreaseCash:  "increaseCash",
	OpDecreaseCash:  "decreaseCash",
	OpCashToManaged: "cashToManaged",
	OpManagedToCash: "managedToCash",
	OpSetManaged:    "setManaged",
}

func (op Op) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return fmt.Sprintf("Op(%d)", uint8(op))
}

// Apply runs the mutator named by op against b. blockNumber is only used by
// the mutators that stamp the last change block.
func (op Op) Apply(b Balance, amount *uint256.Int, blockNumber uint64) (Balance, error) {
	switch op {
	case OpIncreaseCash:
		return b.IncreaseCash(amount, blockNumber)
	case OpDecreaseCash:
		return b.DecreaseCash(amount, blockNumber)
	case OpCashToManaged:
		return b.CashToManaged(amount)
	case OpManagedToCash:
		return b.ManagedToCash(amount)
	case OpSetManaged:
		return b.SetManaged(amount, blockNumber)
	default:
		return Balance{}, fmt.Errorf("%w: %d", ErrUnknownOp, uint8(op))
	}
}
