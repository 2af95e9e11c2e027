package balance

import (
	"errors"
	"fmt"
	"math"

	"github.com/defistate/vault-ledger-go/wordcodec"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Word layout of a solo balance, low to high.
const (
	AmountBits = 112
	BlockBits  = 32

	cashOffset    = 0
	managedOffset = AmountBits
	blockOffset   = 2 * AmountBits
)

var (
	// ErrTotalOverflow is returned when cash + managed would not fit in 112 bits.
	ErrTotalOverflow = errors.New("balance total overflow")
	// ErrBlockNumberOverflow is returned when a block number does not fit in 32 bits.
	ErrBlockNumberOverflow = errors.New("block number overflow")
	// ErrInsufficientCash is returned when a decrease exceeds the cash balance.
	ErrInsufficientCash = errors.New("insufficient cash")
	// ErrInsufficientManaged is returned when a decrease exceeds the managed balance.
	ErrInsufficientManaged = errors.New("insufficient managed")
)

// maxTotal is the largest value cash + managed may reach.
var maxTotal = wordcodec.Mask(AmountBits)

// Balance is the solo encoding of a pool's balance for one token: cash in bits
// 0-111, managed in bits 112-223 and the last change block in bits 224-255.
// The zero Balance means "no balance".
type Balance struct {
	word uint256.Int
}

// FromWord decodes a stored word. It performs no validation: words are only
// ever produced by Pack, which checks the total.
func FromWord(w common.Hash) Balance {
	var b Balance
	b.word.SetBytes32(w[:])
	return b
}

// Word returns the 32-byte storage representation of b.
func (b Balance) Word() common.Hash {
	return common.Hash(b.word.Bytes32())
}

// Pack builds a balance word. It fails with ErrBlockNumberOverflow if
// blockNumber >= 2^32 and with ErrTotalOverflow if cash + managed >= 2^112.
func Pack(cash, managed *uint256.Int, blockNumber uint64) (Balance, error) {
	if blockNumber > math.MaxUint32 {
		return Balance{}, fmt.Errorf("%w: %d", ErrBlockNumberOverflow, blockNumber)
	}
	total, overflow := new(uint256.Int).AddOverflow(cash, managed)
	if overflow || total.Gt(maxTotal) {
		return Balance{}, fmt.Errorf("%w: cash %s + managed %s", ErrTotalOverflow, cash.Dec(), managed.Dec())
	}

	word, err := wordcodec.InsertUint(new(uint256.Int), cash, cashOffset, AmountBits)
	if err != nil {
		return Balance{}, err
	}
	if word, err = wordcodec.InsertUint(word, managed, managedOffset, AmountBits); err != nil {
		return Balance{}, err
	}
	if word, err = wordcodec.InsertUint64(word, blockNumber, blockOffset, BlockBits); err != nil {
		return Balance{}, err
	}
	return Balance{word: *word}, nil
}

// Cash returns the amount held by the Vault.
func (b Balance) Cash() *uint256.Int {
	return wordcodec.ExtractUint(&b.word, cashOffset, AmountBits)
}

// Managed returns the amount withdrawn by the pool's asset manager.
func (b Balance) Managed() *uint256.Int {
	return wordcodec.ExtractUint(&b.word, managedOffset, AmountBits)
}

// Total returns cash + managed. It cannot overflow for words built by Pack.
func (b Balance) Total() *uint256.Int {
	total := b.Cash()
	return total.Add(total, b.Managed())
}

// LastChangeBlock returns the block in which cash or the managed amount was last set.
func (b Balance) LastChangeBlock() uint64 {
	return wordcodec.ExtractUint64(&b.word, blockOffset, BlockBits)
}

// IsZero reports whether b is the all-zero word. It does not decode the fields.
func (b Balance) IsZero() bool {
	return b.word.IsZero()
}

// IsNotZero is the negation of IsZero.
func (b Balance) IsNotZero() bool {
	return !b.word.IsZero()
}

// IsManaged reports whether part of the balance is held by the asset manager.
func (b Balance) IsManaged() bool {
	return !b.Managed().IsZero()
}

func (b Balance) String() string {
	return fmt.Sprintf("cash=%s managed=%s block=%d", b.Cash().Dec(), b.Managed().Dec(), b.LastChangeBlock())
}

// IncreaseCash adds amount to cash and stamps blockNumber.
func (b Balance) IncreaseCash(amount *uint256.Int, blockNumber uint64) (Balance, error) {
	cash, overflow := new(uint256.Int).AddOverflow(b.Cash(), amount)
	if overflow {
		return Balance{}, fmt.Errorf("%w: cash %s + %s", ErrTotalOverflow, b.Cash().Dec(), amount.Dec())
	}
	return Pack(cash, b.Managed(), blockNumber)
}

// DecreaseCash subtracts amount from cash and stamps blockNumber.
func (b Balance) DecreaseCash(amount *uint256.Int, blockNumber uint64) (Balance, error) {
	cash := b.Cash()
	if amount.Gt(cash) {
		return Balance{}, fmt.Errorf("%w: have %s, need %s", ErrInsufficientCash, cash.Dec(), amount.Dec())
	}
	return Pack(cash.Sub(cash, amount), b.Managed(), blockNumber)
}

// CashToManaged moves amount from cash to managed. The total and the last
// change block are unchanged.
func (b Balance) CashToManaged(amount *uint256.Int) (Balance, error) {
	cash := b.Cash()
	if amount.Gt(cash) {
		return Balance{}, fmt.Errorf("%w: have %s, need %s", ErrInsufficientCash, cash.Dec(), amount.Dec())
	}
	managed := b.Managed()
	return Pack(cash.Sub(cash, amount), managed.Add(managed, amount), b.LastChangeBlock())
}

// ManagedToCash moves amount from managed back to cash. The total and the last
// change block are unchanged.
func (b Balance) ManagedToCash(amount *uint256.Int) (Balance, error) {
	managed := b.Managed()
	if amount.Gt(managed) {
		return Balance{}, fmt.Errorf("%w: have %s, need %s", ErrInsufficientManaged, managed.Dec(), amount.Dec())
	}
	cash := b.Cash()
	return Pack(cash.Add(cash, amount), managed.Sub(managed, amount), b.LastChangeBlock())
}

// SetManaged overwrites the managed amount with the value reported by the
// asset manager and stamps blockNumber. The new total is still validated.
func (b Balance) SetManaged(managed *uint256.Int, blockNumber uint64) (Balance, error) {
	return Pack(b.Cash(), managed, blockNumber)
}

// Totals returns the total of each balance.
func Totals(balances []Balance) []*uint256.Int {
	totals := make([]*uint256.Int, len(balances))
	for i, b := range balances {
		totals[i] = b.Total()
	}
	return totals
}

// MaxLastChangeBlock returns the most recent last change block among balances.
func MaxLastChangeBlock(balances []Balance) uint64 {
	var last uint64
	for _, b := range balances {
		if block := b.LastChangeBlock(); block > last {
			last = block
		}
	}
	return last
}
