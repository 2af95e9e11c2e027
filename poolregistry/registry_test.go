package poolregistry

import (
	"encoding/json"
	"testing"

	"github.com/defistate/vault-ledger-go/store"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolID(t *testing.T) {
	addr := common.HexToAddress("0x1111111111111111111111111111111111111111")
	id := NewPoolID(addr, TwoToken, 7)

	assert.Equal(t, addr, AddressOf(id))
	assert.Equal(t, TwoToken, SpecializationOf(id))
	assert.Equal(t, uint64(7), NonceOf(id))
	assert.Equal(t, byte(0x11), id[19])
	assert.Equal(t, []byte{0, 2}, id[20:22])
	assert.Equal(t, byte(7), id[31])
	assert.NotEqual(t, id, NewPoolID(addr, TwoToken, 8))
}

func TestSpecialization(t *testing.T) {
	for _, s := range []Specialization{General, MinimalSwapInfo, TwoToken} {
		parsed, err := ParseSpecialization(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}
	assert.False(t, Specialization(3).IsValid())
	assert.Equal(t, "Specialization(3)", Specialization(3).String())

	_, err := ParseSpecialization("weighted")
	assert.ErrorIs(t, err, ErrInvalidSpecialization)

	raw, err := json.Marshal(Pool{Specialization: MinimalSwapInfo})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"specialization":"minimalSwapInfo"`)

	var p Pool
	require.NoError(t, json.Unmarshal(raw, &p))
	assert.Equal(t, MinimalSwapInfo, p.Specialization)
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	j := store.NewJournal(store.NewMemoryStore())
	addr := common.HexToAddress("0x1")

	t.Run("Should reject invalid input", func(t *testing.T) {
		_, err := reg.RegisterPool(j, common.Address{}, General)
		assert.ErrorIs(t, err, ErrZeroAddressPool)
		_, err = reg.RegisterPool(j, addr, Specialization(9))
		assert.ErrorIs(t, err, ErrInvalidSpecialization)
	})

	p1, err := reg.RegisterPool(j, addr, General)
	require.NoError(t, err)
	p2, err := reg.RegisterPool(j, addr, TwoToken)
	require.NoError(t, err)

	t.Run("Should assign increasing nonces", func(t *testing.T) {
		assert.Equal(t, uint64(0), NonceOf(p1.ID))
		assert.Equal(t, uint64(1), NonceOf(p2.ID))
		assert.Equal(t, addr, p2.Address)
		assert.Equal(t, TwoToken, p2.Specialization)
	})

	t.Run("Should look up and enumerate pools", func(t *testing.T) {
		got, err := reg.Pool(j, p2.ID)
		require.NoError(t, err)
		assert.Equal(t, p2, got)

		all, err := reg.Pools(j)
		require.NoError(t, err)
		assert.Equal(t, []Pool{p1, p2}, all.Pools)
	})

	t.Run("Should deregister", func(t *testing.T) {
		require.NoError(t, reg.DeregisterPool(j, p1.ID))
		_, err := reg.Pool(j, p1.ID)
		assert.ErrorIs(t, err, ErrPoolNotRegistered)
		assert.ErrorIs(t, reg.DeregisterPool(j, p1.ID), ErrPoolNotRegistered)

		// nonces are not reused
		p3, err := reg.RegisterPool(j, addr, General)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), NonceOf(p3.ID))
	})
}

func TestPoolRegistryDifferPatcher(t *testing.T) {
	pool := func(b byte, s Specialization) Pool {
		return poolFromID(NewPoolID(common.BytesToAddress([]byte{b}), s, uint64(b)))
	}
	p1, p2, p3 := pool(1, General), pool(2, TwoToken), pool(3, MinimalSwapInfo)
	initialState := PoolRegistry{Pools: []Pool{p1, p2}}

	t.Run("Should compute additions and deletions", func(t *testing.T) {
		diff := Differ(initialState, PoolRegistry{Pools: []Pool{p2, p3}})
		assert.Equal(t, []Pool{p3}, diff.PoolAdditions)
		assert.Equal(t, []common.Hash{p1.ID}, diff.PoolDeletions)
		assert.False(t, diff.IsEmpty())
	})

	t.Run("Should handle identical states", func(t *testing.T) {
		assert.True(t, Differ(initialState, initialState).IsEmpty())
	})

	t.Run("Should round trip through Patcher", func(t *testing.T) {
		target := PoolRegistry{Pools: []Pool{p3, p2}}
		patched, err := Patcher(initialState, Differ(initialState, target))
		require.NoError(t, err)
		assert.Equal(t, []Pool{p2, p3}, patched.Pools, "patched pools are ordered by ID")
		assert.Len(t, initialState.Pools, 2, "prevState must not be modified")
	})

	t.Run("Should handle Empty Initial State", func(t *testing.T) {
		patched, err := Patcher(PoolRegistry{}, PoolRegistryDiff{PoolAdditions: []Pool{p1}})
		require.NoError(t, err)
		assert.Equal(t, []Pool{p1}, patched.Pools)
	})
}
