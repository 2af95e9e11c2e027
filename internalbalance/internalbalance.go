package internalbalance

import (
	"errors"
	"fmt"

	"github.com/defistate/vault-ledger-go/wordcodec"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Word layout, low to high: actual (112 bits), exempt (112 bits), block number (32 bits).
const (
	AmountBits = 112
	BlockBits  = 32

	actualOffset = 0
	exemptOffset = AmountBits
	blockOffset  = 2 * AmountBits
)

var (
	// ErrInsufficientBalance is returned by an uncapped decrease larger than the balance.
	ErrInsufficientBalance = errors.New("insufficient internal balance")
	// ErrOverflow is returned when a field does not fit in its width.
	ErrOverflow = errors.New("internal balance overflow")
)

// InternalBalance is a user's custodial balance for one token. Besides the
// actual amount it tracks how much was credited in the current block, which
// can be withdrawn again in that same block without being taxed.
type InternalBalance struct {
	word uint256.Int
}

func FromWord(w common.Hash) InternalBalance {
	var b InternalBalance
	b.word.SetBytes32(w[:])
	return b
}

func (b InternalBalance) Word() common.Hash {
	return common.Hash(b.word.Bytes32())
}

// Pack builds an internal balance word. Unlike pool balances, actual and
// exempt are bounded independently; their sum is not constrained.
func Pack(actual, exempt *uint256.Int, blockNumber uint64) (InternalBalance, error) {
	word, err := wordcodec.InsertUint(new(uint256.Int), actual, actualOffset, AmountBits)
	if err != nil {
		return InternalBalance{}, fmt.Errorf("%w: actual: %w", ErrOverflow, err)
	}
	if word, err = wordcodec.InsertUint(word, exempt, exemptOffset, AmountBits); err != nil {
		return InternalBalance{}, fmt.Errorf("%w: exempt: %w", ErrOverflow, err)
	}
	if word, err = wordcodec.InsertUint64(word, blockNumber, blockOffset, BlockBits); err != nil {
		return InternalBalance{}, fmt.Errorf("%w: block number: %w", ErrOverflow, err)
	}
	return InternalBalance{word: *word}, nil
}

// Actual returns the custodial balance.
func (b InternalBalance) Actual() *uint256.Int {
	return wordcodec.ExtractUint(&b.word, actualOffset, AmountBits)
}

// Exempt returns the amount credited during BlockNumber that may be withdrawn untaxed.
func (b InternalBalance) Exempt() *uint256.Int {
	return wordcodec.ExtractUint(&b.word, exemptOffset, AmountBits)
}

func (b InternalBalance) BlockNumber() uint64 {
	return wordcodec.ExtractUint64(&b.word, blockOffset, BlockBits)
}

func (b InternalBalance) IsZero() bool {
	return b.word.IsZero()
}

// Increase credits amount. When track is set the credit also counts towards
// this block's exemption; a credit in a new block replaces the exemption
// rather than adding to it.
func (b InternalBalance) Increase(amount *uint256.Int, track bool, currentBlock uint64) (InternalBalance, error) {
	actual, overflow := new(uint256.Int).AddOverflow(b.Actual(), amount)
	if overflow {
		return InternalBalance{}, fmt.Errorf("%w: actual %s + %s", ErrOverflow, b.Actual().Dec(), amount.Dec())
	}

	exempt, block := b.Exempt(), b.BlockNumber()
	if track {
		if block == currentBlock {
			if _, overflow := exempt.AddOverflow(exempt, amount); overflow {
				return InternalBalance{}, fmt.Errorf("%w: exempt %s + %s", ErrOverflow, b.Exempt().Dec(), amount.Dec())
			}
		} else {
			exempt = new(uint256.Int).Set(amount)
			block = currentBlock
		}
	}
	return Pack(actual, exempt, block)
}

// Decrease debits amount and reports how much of the debit is taxable and
// how much was actually debited. With capped set the debit is clamped to the
// balance instead of failing. The exemption only applies within the block it
// was earned in; in any other block it is discarded.
func (b InternalBalance) Decrease(amount *uint256.Int, capped, useExempt bool, currentBlock uint64) (out InternalBalance, taxable, decreased *uint256.Int, err error) {
	actual := b.Actual()
	decreased = new(uint256.Int).Set(amount)
	if amount.Gt(actual) {
		if !capped {
			return InternalBalance{}, nil, nil, fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, actual.Dec(), amount.Dec())
		}
		decreased.Set(actual)
	}
	actual.Sub(actual, decreased)

	exempt, block := new(uint256.Int), uint64(0)
	taxable = new(uint256.Int).Set(decreased)
	if b.BlockNumber() == currentBlock {
		exempt, block = b.Exempt(), currentBlock
		if useExempt {
			used := decreased
			if exempt.Lt(used) {
				used = exempt
			}
			taxable.Sub(taxable, used)
			exempt = new(uint256.Int).Sub(exempt, used)
		}
	}

	out, err = Pack(actual, exempt, block)
	if err != nil {
		return InternalBalance{}, nil, nil, err
	}
	return out, taxable, decreased, nil
}
