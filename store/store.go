// Package store holds the Vault's persistent state as a flat map of 32-byte
// slots to 32-byte words. A zero word and a missing slot are the same thing.
package store

import (
	"encoding/binary"
	"errors"
	"maps"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/zeebo/blake3"
)

// ErrReadOnly is returned by Commit on a store opened read-only.
var ErrReadOnly = errors.New("store is read-only")

// Reader reads slots.
type Reader interface {
	Get(key common.Hash) (common.Hash, error)
}

// ReadWriter buffers writes on top of a Reader.
type ReadWriter interface {
	Reader
	Set(key, value common.Hash)
}

// Store is a durable slot map. Commit applies a set of writes atomically;
// writing the zero word deletes the slot.
type Store interface {
	Reader
	Commit(writes map[common.Hash]common.Hash) error
	Close() error
}

// Key derives a slot key as BLAKE3(namespace || parts...).
func Key(namespace string, parts ...[]byte) common.Hash {
	h := blake3.New()
	h.Write([]byte(namespace))
	for _, p := range parts {
		h.Write(p)
	}

	var key common.Hash
	h.Digest().Read(key[:])
	return key
}

// Uint64Word stores v in the low 8 bytes of a word.
func Uint64Word(v uint64) common.Hash {
	var w common.Hash
	binary.BigEndian.PutUint64(w[common.HashLength-8:], v)
	return w
}

func WordUint64(w common.Hash) uint64 {
	return binary.BigEndian.Uint64(w[common.HashLength-8:])
}

// Uint64Bytes is the big-endian encoding of v, for use as a Key part.
func Uint64Bytes(v uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, v)
}

func AddressWord(a common.Address) common.Hash {
	return common.BytesToHash(a.Bytes())
}

func WordAddress(w common.Hash) common.Address {
	return common.BytesToAddress(w.Bytes())
}

// Journal is a write overlay on a parent Reader. Nothing reaches the parent
// until the caller commits Writes.
type Journal struct {
	parent Reader
	writes map[common.Hash]common.Hash
}

func NewJournal(parent Reader) *Journal {
	return &Journal{
		parent: parent,
		writes: make(map[common.Hash]common.Hash),
	}
}

func (j *Journal) Get(key common.Hash) (common.Hash, error) {
	if v, ok := j.writes[key]; ok {
		return v, nil
	}
	return j.parent.Get(key)
}

func (j *Journal) Set(key, value common.Hash) {
	j.writes[key] = value
}

// Writes returns the buffered writes.
func (j *Journal) Writes() map[common.Hash]common.Hash {
	return j.writes
}

// MemoryStore is a Store backed by a map.
type MemoryStore struct {
	mu    sync.RWMutex
	slots map[common.Hash]common.Hash
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{slots: make(map[common.Hash]common.Hash)}
}

func (m *MemoryStore) Get(key common.Hash) (common.Hash, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.slots[key], nil
}

func (m *MemoryStore) Commit(writes map[common.Hash]common.Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range writes {
		if v == (common.Hash{}) {
			delete(m.slots, k)
			continue
		}
		m.slots[k] = v
	}
	return nil
}

func (m *MemoryStore) Close() error { return nil }

// Len returns the number of non-zero slots.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.slots)
}

// Dump returns a copy of every non-zero slot.
func (m *MemoryStore) Dump() map[common.Hash]common.Hash {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.slots)
}
