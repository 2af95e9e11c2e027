package pooltokens

import (
	"testing"

	"github.com/defistate/vault-ledger-go/balance"
	"github.com/defistate/vault-ledger-go/store"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	pool   = common.HexToHash("0x01")
	tokenX = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	tokenY = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	tokenZ = common.HexToAddress("0x00000000000000000000000000000000000000cc")
)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

func layouts() map[string]Layout {
	return map[string]Layout{
		"General":         NewGeneralLayout(),
		"MinimalSwapInfo": NewMinimalSwapInfoLayout(),
		"TwoToken":        NewTwoTokenLayout(),
	}
}

func TestRegistrationLifecycle(t *testing.T) {
	for name, layout := range layouts() {
		t.Run(name, func(t *testing.T) {
			reg := NewRegistry(layout)
			j := store.NewJournal(store.NewMemoryStore())
			tokens := []common.Address{tokenX, tokenY}

			require.NoError(t, reg.RegisterTokens(j, pool, tokens))
			got, err := reg.Tokens(j, pool)
			require.NoError(t, err)
			assert.ElementsMatch(t, tokens, got)

			ok, err := reg.IsRegistered(j, pool, tokenX)
			require.NoError(t, err)
			assert.True(t, ok)
			ok, err = reg.IsRegistered(j, pool, tokenZ)
			require.NoError(t, err)
			assert.False(t, ok)

			b, err := reg.Balance(j, pool, tokenX)
			require.NoError(t, err)
			assert.True(t, b.Total().IsZero())
			_, err = reg.Balance(j, pool, tokenZ)
			assert.ErrorIs(t, err, ErrTokenNotRegistered)

			_, err = reg.Update(j, pool, tokenX, balance.OpIncreaseCash, u(10), 3)
			require.NoError(t, err)
			err = reg.UnregisterTokens(j, pool, tokens)
			assert.ErrorIs(t, err, ErrNonzeroBalance)

			_, err = reg.Update(j, pool, tokenX, balance.OpDecreaseCash, u(10), 4)
			require.NoError(t, err)
			b, err = reg.Balance(j, pool, tokenX)
			require.NoError(t, err)
			assert.Equal(t, uint64(4), b.LastChangeBlock(), "zero total may still carry a block stamp")

			require.NoError(t, reg.UnregisterTokens(j, pool, tokens))
			got, err = reg.Tokens(j, pool)
			require.NoError(t, err)
			assert.Empty(t, got)
			_, err = reg.Balance(j, pool, tokenX)
			assert.ErrorIs(t, err, ErrTokenNotRegistered)
			assert.ErrorIs(t, reg.UnregisterTokens(j, pool, tokens), ErrTokenNotRegistered)

			mem := store.NewMemoryStore()
			require.NoError(t, mem.Commit(j.Writes()))
			assert.Zero(t, mem.Len(), "unregistering clears every slot")
		})
	}
}

func TestRegisterTokensValidation(t *testing.T) {
	for name, layout := range layouts() {
		t.Run(name, func(t *testing.T) {
			reg := NewRegistry(layout)
			j := store.NewJournal(store.NewMemoryStore())

			assert.ErrorIs(t, reg.RegisterTokens(j, pool, []common.Address{tokenX, {}}), ErrZeroAddressToken)
			assert.ErrorIs(t, reg.RegisterTokens(j, pool, []common.Address{tokenX, tokenX}), ErrTokenAlreadyRegistered)

			require.NoError(t, reg.RegisterTokens(j, pool, []common.Address{tokenX, tokenY}))
			err := reg.RegisterTokens(j, pool, []common.Address{tokenX, tokenZ})
			assert.Error(t, err)
			if _, ok := layout.(*TwoTokenLayout); ok {
				assert.ErrorIs(t, err, ErrTokensAlreadySet)
			} else {
				assert.ErrorIs(t, err, ErrTokenAlreadyRegistered)
			}
		})
	}
}

func TestUpdateMany(t *testing.T) {
	reg := NewRegistry(NewMinimalSwapInfoLayout())
	j := store.NewJournal(store.NewMemoryStore())
	require.NoError(t, reg.RegisterTokens(j, pool, []common.Address{tokenX, tokenY}))

	err := reg.UpdateMany(j, pool, []common.Address{tokenX}, balance.OpIncreaseCash, []*uint256.Int{u(1), u(2)}, 1)
	assert.ErrorIs(t, err, ErrTokensLengthMismatch)

	require.NoError(t, reg.UpdateMany(j, pool, []common.Address{tokenX, tokenY}, balance.OpIncreaseCash, []*uint256.Int{u(1), u(2)}, 1))

	// fails on the second token; the caller discards the journal
	err = reg.UpdateMany(j, pool, []common.Address{tokenX, tokenY}, balance.OpDecreaseCash, []*uint256.Int{u(1), u(3)}, 2)
	assert.ErrorIs(t, err, balance.ErrInsufficientCash)

	tokens, balances, err := reg.Balances(j, pool)
	require.NoError(t, err)
	require.Len(t, balances, 2)
	for i, token := range tokens {
		if token == tokenY {
			assert.Equal(t, uint64(2), balances[i].Cash().Uint64())
		}
	}
}

func TestNilAmountIsRejected(t *testing.T) {
	for name, layout := range layouts() {
		t.Run(name, func(t *testing.T) {
			reg := NewRegistry(layout)
			j := store.NewJournal(store.NewMemoryStore())
			require.NoError(t, reg.RegisterTokens(j, pool, []common.Address{tokenX, tokenY}))

			_, err := reg.Update(j, pool, tokenX, balance.OpIncreaseCash, nil, 1)
			assert.ErrorIs(t, err, ErrNilAmount)

			err = reg.UpdateMany(j, pool, []common.Address{tokenX, tokenY}, balance.OpIncreaseCash, []*uint256.Int{u(1), nil}, 1)
			assert.ErrorIs(t, err, ErrNilAmount)
		})
	}
}

func TestPositionalLayouts(t *testing.T) {
	_, ok := Layout(NewGeneralLayout()).(PositionalLayout)
	assert.True(t, ok)
	_, ok = Layout(NewMinimalSwapInfoLayout()).(PositionalLayout)
	assert.False(t, ok)

	reg := NewRegistry(NewGeneralLayout())
	j := store.NewJournal(store.NewMemoryStore())
	require.NoError(t, reg.RegisterTokens(j, pool, []common.Address{tokenX, tokenY}))
	require.NoError(t, reg.UpdateMany(j, pool, []common.Address{tokenX, tokenY}, balance.OpIncreaseCash, []*uint256.Int{u(7), u(9)}, 1))

	tokens, balances, err := reg.Balances(j, pool)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{tokenX, tokenY}, tokens)
	assert.Equal(t, uint64(7), balances[0].Cash().Uint64())
	assert.Equal(t, uint64(9), balances[1].Cash().Uint64())
}

func TestGeneralLayoutSwapAndPop(t *testing.T) {
	layout := NewGeneralLayout()
	reg := NewRegistry(layout)
	j := store.NewJournal(store.NewMemoryStore())
	require.NoError(t, reg.RegisterTokens(j, pool, []common.Address{tokenX, tokenY, tokenZ}))
	require.NoError(t, reg.UpdateMany(j, pool, []common.Address{tokenY, tokenZ}, balance.OpIncreaseCash, []*uint256.Int{u(200), u(300)}, 1))

	require.NoError(t, reg.UnregisterTokens(j, pool, []common.Address{tokenX}))

	tokens, balances, err := reg.Balances(j, pool)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{tokenZ, tokenY}, tokens, "last token moves into the vacated position")
	assert.Equal(t, uint64(300), balances[0].Cash().Uint64())
	assert.Equal(t, uint64(200), balances[1].Cash().Uint64())

	b, err := reg.Balance(j, pool, tokenZ)
	require.NoError(t, err)
	assert.Equal(t, uint64(300), b.Cash().Uint64())
}

func TestTwoTokenOrdering(t *testing.T) {
	layout := NewTwoTokenLayout()
	reg := NewRegistry(layout)
	j := store.NewJournal(store.NewMemoryStore())
	poolA, poolB := common.HexToHash("0x0a"), common.HexToHash("0x0b")

	require.NoError(t, reg.RegisterTokens(j, poolA, []common.Address{tokenX, tokenY}))
	require.NoError(t, reg.RegisterTokens(j, poolB, []common.Address{tokenY, tokenX}))

	for _, p := range []common.Hash{poolA, poolB} {
		a, b, ok, err := layout.Pair(j, p)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, tokenY, a, "smaller token is always A")
		assert.Equal(t, tokenX, b)
	}

	assert.ErrorIs(t, reg.RegisterTokens(j, common.HexToHash("0x0c"), []common.Address{tokenX}), ErrTwoTokenCount)
	assert.ErrorIs(t, reg.UnregisterTokens(j, poolA, []common.Address{tokenX}), ErrTwoTokenCount)
}

func TestTwoTokenSharedWords(t *testing.T) {
	layout := NewTwoTokenLayout()
	reg := NewRegistry(layout)
	mem := store.NewMemoryStore()
	j := store.NewJournal(mem)
	require.NoError(t, reg.RegisterTokens(j, pool, []common.Address{tokenX, tokenY}))
	require.NoError(t, mem.Commit(j.Writes()))

	j = store.NewJournal(mem)
	_, err := reg.Update(j, pool, tokenX, balance.OpIncreaseCash, u(500), 7)
	require.NoError(t, err)
	_, err = reg.Update(j, pool, tokenY, balance.OpIncreaseCash, u(80), 7)
	require.NoError(t, err)
	assert.Len(t, j.Writes(), 1, "cash updates touch only the shared cash word")

	_, err = reg.Update(j, pool, tokenX, balance.OpCashToManaged, u(100), 8)
	require.NoError(t, err)
	assert.Len(t, j.Writes(), 2)

	bx, err := reg.Balance(j, pool, tokenX)
	require.NoError(t, err)
	assert.Equal(t, uint64(400), bx.Cash().Uint64())
	assert.Equal(t, uint64(100), bx.Managed().Uint64())
	assert.Equal(t, uint64(7), bx.LastChangeBlock())

	t.Run("PairBalances in caller order", func(t *testing.T) {
		px, py, err := layout.PairBalances(j, pool, tokenX, tokenY)
		require.NoError(t, err)
		assert.Equal(t, uint64(500), px.Total().Uint64())
		assert.Equal(t, uint64(80), py.Total().Uint64())

		py, px, err = layout.PairBalances(j, pool, tokenY, tokenX)
		require.NoError(t, err)
		assert.Equal(t, uint64(500), px.Total().Uint64())
		assert.Equal(t, uint64(80), py.Total().Uint64())
	})

	t.Run("PairBalances rejects unknown and identical pairs", func(t *testing.T) {
		_, _, err := layout.PairBalances(j, pool, tokenX, tokenZ)
		assert.ErrorIs(t, err, ErrTokenNotRegistered)
		_, _, err = layout.PairBalances(j, pool, tokenX, tokenX)
		assert.ErrorIs(t, err, ErrIdenticalTokens)
	})

	t.Run("PairBalances falls back on empty balances", func(t *testing.T) {
		fresh := store.NewJournal(mem)
		px, py, err := layout.PairBalances(fresh, pool, tokenX, tokenY)
		require.NoError(t, err)
		assert.True(t, px.IsZero())
		assert.True(t, py.IsZero())
	})

	t.Run("Unregister requires the exact pair", func(t *testing.T) {
		require.NoError(t, reg.UpdateMany(j, pool,
			[]common.Address{tokenX, tokenX, tokenY},
			balance.OpDecreaseCash, []*uint256.Int{u(0), u(400), u(80)}, 9))
		_, err := reg.Update(j, pool, tokenX, balance.OpSetManaged, u(0), 9)
		require.NoError(t, err)

		assert.ErrorIs(t, reg.UnregisterTokens(j, pool, []common.Address{tokenX, tokenX}), ErrTokensMismatch)
		require.NoError(t, reg.UnregisterTokens(j, pool, []common.Address{tokenY, tokenX}))
		_, _, ok, err := layout.Pair(j, pool)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
