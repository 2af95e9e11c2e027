package balance

import (
	"github.com/defistate/vault-ledger-go/wordcodec"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Shared layout: token A's component in bits 0-111, token B's in bits 112-223.
// Only the cash word carries a block number (bits 224-255); both tokens of a
// pair always change together so one stamp serves both.
const (
	sharedAOffset = 0
	sharedBOffset = AmountBits
)

// SharedCash holds the cash of both tokens of a two-token pool.
type SharedCash struct {
	word uint256.Int
}

// SharedManaged holds the managed amounts of both tokens of a two-token pool.
type SharedManaged struct {
	word uint256.Int
}

func SharedCashFromWord(w common.Hash) SharedCash {
	var s SharedCash
	s.word.SetBytes32(w[:])
	return s
}

func (s SharedCash) Word() common.Hash { return common.Hash(s.word.Bytes32()) }

func (s SharedCash) IsZero() bool { return s.word.IsZero() }

func (s SharedCash) LastChangeBlock() uint64 {
	return wordcodec.ExtractUint64(&s.word, blockOffset, BlockBits)
}

func SharedManagedFromWord(w common.Hash) SharedManaged {
	var s SharedManaged
	s.word.SetBytes32(w[:])
	return s
}

func (s SharedManaged) Word() common.Hash { return common.Hash(s.word.Bytes32()) }

func (s SharedManaged) IsZero() bool { return s.word.IsZero() }

// mustInsert is used where the value was extracted from a field of the same
// width, so it always fits.
func mustInsert(word, value *uint256.Int, offset, bitLength uint) *uint256.Int {
	out, err := wordcodec.InsertUint(word, value, offset, bitLength)
	if err != nil {
		panic(err)
	}
	return out
}

// ToSharedCash packs the cash of a and b into one word, stamped with the more
// recent of their last change blocks.
func ToSharedCash(a, b Balance) SharedCash {
	block := a.LastChangeBlock()
	if other := b.LastChangeBlock(); other > block {
		block = other
	}
	word := mustInsert(new(uint256.Int), a.Cash(), sharedAOffset, AmountBits)
	word = mustInsert(word, b.Cash(), sharedBOffset, AmountBits)
	word = mustInsert(word, uint256.NewInt(block), blockOffset, BlockBits)
	return SharedCash{word: *word}
}

// ToSharedManaged packs the managed amounts of a and b into one word.
func ToSharedManaged(a, b Balance) SharedManaged {
	word := mustInsert(new(uint256.Int), a.Managed(), sharedAOffset, AmountBits)
	word = mustInsert(word, b.Managed(), sharedBOffset, AmountBits)
	return SharedManaged{word: *word}
}

// FromSharedToBalanceA rebuilds token A's solo balance, tagged with the shared block number.
func FromSharedToBalanceA(cash SharedCash, managed SharedManaged) (Balance, error) {
	return Pack(
		wordcodec.ExtractUint(&cash.word, sharedAOffset, AmountBits),
		wordcodec.ExtractUint(&managed.word, sharedAOffset, AmountBits),
		cash.LastChangeBlock(),
	)
}

// FromSharedToBalanceB rebuilds token B's solo balance, tagged with the shared block number.
func FromSharedToBalanceB(cash SharedCash, managed SharedManaged) (Balance, error) {
	return Pack(
		wordcodec.ExtractUint(&cash.word, sharedBOffset, AmountBits),
		wordcodec.ExtractUint(&managed.word, sharedBOffset, AmountBits),
		cash.LastChangeBlock(),
	)
}
