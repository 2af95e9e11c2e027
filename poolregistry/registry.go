package poolregistry

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/defistate/vault-ledger-go/store"
	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrPoolNotRegistered     = errors.New("pool not registered")
	ErrZeroAddressPool       = errors.New("pool address is zero")
	ErrInvalidSpecialization = errors.New("invalid pool specialization")
	ErrPoolHasTokens         = errors.New("pool still has registered tokens")
	ErrNonceOverflow         = errors.New("pool nonce overflow")
)

// Specialization selects how a pool's token balances are laid out in storage.
type Specialization uint16

const (
	General Specialization = iota
	MinimalSwapInfo
	TwoToken
)

var specializationNames = [...]string{
	General:         "general",
	MinimalSwapInfo: "minimalSwapInfo",
	TwoToken:        "twoToken",
}

func (s Specialization) IsValid() bool {
	return int(s) < len(specializationNames)
}

func (s Specialization) String() string {
	if s.IsValid() {
		return specializationNames[s]
	}
	return fmt.Sprintf("Specialization(%d)", uint16(s))
}

// ParseSpecialization is the inverse of String.
func ParseSpecialization(name string) (Specialization, error) {
	for i, n := range specializationNames {
		if n == name {
			return Specialization(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidSpecialization, name)
}

func (s Specialization) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSpecialization, uint16(s))
	}
	return []byte(s.String()), nil
}

func (s *Specialization) UnmarshalText(text []byte) error {
	parsed, err := ParseSpecialization(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Pool ID layout: address in bytes 0-19, specialization (uint16) in bytes
// 20-21, nonce (uint80) in bytes 22-31, all big-endian.
const (
	specializationOffset = common.AddressLength
	nonceOffset          = specializationOffset + 2
)

// NewPoolID packs a pool ID.
func NewPoolID(address common.Address, specialization Specialization, nonce uint64) common.Hash {
	var id common.Hash
	copy(id[:specializationOffset], address[:])
	binary.BigEndian.PutUint16(id[specializationOffset:nonceOffset], uint16(specialization))
	// nonce occupies the low 8 of its 10 bytes
	binary.BigEndian.PutUint64(id[common.HashLength-8:], nonce)
	return id
}

func AddressOf(id common.Hash) common.Address {
	return common.BytesToAddress(id[:specializationOffset])
}

func SpecializationOf(id common.Hash) Specialization {
	return Specialization(binary.BigEndian.Uint16(id[specializationOffset:nonceOffset]))
}

func NonceOf(id common.Hash) uint64 {
	return binary.BigEndian.Uint64(id[common.HashLength-8:])
}

// Pool represents the data for a single registered pool.
type Pool struct {
	ID             common.Hash    `json:"id"`
	Address        common.Address `json:"address"`
	Specialization Specialization `json:"specialization"`
}

// PoolRegistry represents the complete state of the registry.
type PoolRegistry struct {
	Pools []Pool `json:"pools"`
}

func poolFromID(id common.Hash) Pool {
	return Pool{ID: id, Address: AddressOf(id), Specialization: SpecializationOf(id)}
}

var (
	pools    = store.Set{Namespace: "vault.pools"}
	nonceKey = store.Key("vault.pools.nonce")
	// pools are members of a single global set
	global = common.Hash{}
)

// Registry assigns pool IDs and tracks which pools exist. It holds no state
// of its own; everything lives in the store passed to each call.
type Registry struct{}

func NewRegistry() *Registry {
	return &Registry{}
}

// RegisterPool assigns a new ID to the pool at address. The same address may
// be registered more than once; each registration gets its own nonce.
func (r *Registry) RegisterPool(rw store.ReadWriter, address common.Address, specialization Specialization) (Pool, error) {
	if address == (common.Address{}) {
		return Pool{}, ErrZeroAddressPool
	}
	if !specialization.IsValid() {
		return Pool{}, fmt.Errorf("%w: %d", ErrInvalidSpecialization, uint16(specialization))
	}

	w, err := rw.Get(nonceKey)
	if err != nil {
		return Pool{}, err
	}
	nonce := store.WordUint64(w)
	if nonce == math.MaxUint64 {
		return Pool{}, ErrNonceOverflow
	}

	id := NewPoolID(address, specialization, nonce)
	if _, _, err := pools.Add(rw, global, id); err != nil {
		return Pool{}, err
	}
	rw.Set(nonceKey, store.Uint64Word(nonce+1))
	return poolFromID(id), nil
}

// DeregisterPool removes the pool. The caller is responsible for checking
// that the pool holds no tokens.
func (r *Registry) DeregisterPool(rw store.ReadWriter, id common.Hash) error {
	_, _, ok, err := pools.Remove(rw, global, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrPoolNotRegistered, id)
	}
	return nil
}

// Pool looks up a registered pool.
func (r *Registry) Pool(rd store.Reader, id common.Hash) (Pool, error) {
	ok, err := pools.Contains(rd, global, id)
	if err != nil {
		return Pool{}, err
	}
	if !ok {
		return Pool{}, fmt.Errorf("%w: %s", ErrPoolNotRegistered, id)
	}
	return poolFromID(id), nil
}

// Pools returns every registered pool.
func (r *Registry) Pools(rd store.Reader) (PoolRegistry, error) {
	ids, err := pools.Members(rd, global)
	if err != nil {
		return PoolRegistry{}, err
	}
	out := PoolRegistry{Pools: make([]Pool, len(ids))}
	for i, id := range ids {
		out.Pools[i] = poolFromID(id)
	}
	return out, nil
}
