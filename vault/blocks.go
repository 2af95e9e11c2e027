package vault

import "sync/atomic"

// BlockSource supplies the current block number. It must never decrease.
type BlockSource interface {
	BlockNumber() uint64
}

// BlockCounter is a BlockSource driven by the caller.
type BlockCounter struct {
	n atomic.Uint64
}

func NewBlockCounter(start uint64) *BlockCounter {
	c := &BlockCounter{}
	c.n.Store(start)
	return c
}

func (c *BlockCounter) BlockNumber() uint64 {
	return c.n.Load()
}

// Advance moves to the next block and returns it.
func (c *BlockCounter) Advance() uint64 {
	return c.n.Add(1)
}

// Set jumps to block n. It reports false, leaving the counter unchanged, if n
// is behind the current block.
func (c *BlockCounter) Set(n uint64) bool {
	for {
		cur := c.n.Load()
		if n < cur {
			return false
		}
		if c.n.CompareAndSwap(cur, n) {
			return true
		}
	}
}
