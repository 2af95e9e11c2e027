package wordcodec

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

// WordBits is the width of a storage word.
const WordBits = 256

// ErrOutOfBounds is returned when a value does not fit in the width declared for its field.
var ErrOutOfBounds = errors.New("value out of bounds")

var one = uint256.NewInt(1)

// Mask returns a word with the low bitLength bits set.
func Mask(bitLength uint) *uint256.Int {
	if bitLength >= WordBits {
		return new(uint256.Int).SetAllOne()
	}
	mask := new(uint256.Int).Lsh(one, bitLength)
	return mask.Sub(mask, one)
}

// checkField panics if the field [offset, offset+bitLength) does not fit in a word.
// A bad field layout is a programmer error, not a runtime condition.
func checkField(offset, bitLength uint) {
	if bitLength == 0 || offset+bitLength > WordBits {
		panic(fmt.Sprintf("wordcodec: field [%d, %d) does not fit in a %d-bit word", offset, offset+bitLength, WordBits))
	}
}

// InsertUint returns a new word equal to word with bits [offset, offset+bitLength)
// replaced by value. It fails with ErrOutOfBounds if value >= 2^bitLength.
func InsertUint(word, value *uint256.Int, offset, bitLength uint) (*uint256.Int, error) {
	checkField(offset, bitLength)
	if value.BitLen() > int(bitLength) {
		return nil, fmt.Errorf("%w: %s does not fit in %d bits", ErrOutOfBounds, value.Dec(), bitLength)
	}

	clearMask := new(uint256.Int).Lsh(Mask(bitLength), offset)
	clearMask.Not(clearMask)

	out := new(uint256.Int).And(word, clearMask)
	shifted := new(uint256.Int).Lsh(value, offset)
	return out.Or(out, shifted), nil
}

// ExtractUint returns the unsigned integer stored in bits [offset, offset+bitLength) of word.
func ExtractUint(word *uint256.Int, offset, bitLength uint) *uint256.Int {
	checkField(offset, bitLength)
	out := new(uint256.Int).Rsh(word, offset)
	return out.And(out, Mask(bitLength))
}

// InsertUint64 is InsertUint for fields whose value is held in a uint64.
func InsertUint64(word *uint256.Int, value uint64, offset, bitLength uint) (*uint256.Int, error) {
	return InsertUint(word, uint256.NewInt(value), offset, bitLength)
}

// ExtractUint64 is ExtractUint for fields at most 64 bits wide.
func ExtractUint64(word *uint256.Int, offset, bitLength uint) uint64 {
	if bitLength > 64 {
		panic(fmt.Sprintf("wordcodec: %d-bit field does not fit in a uint64", bitLength))
	}
	return ExtractUint(word, offset, bitLength).Uint64()
}
