package balance

import (
	"crypto/rand"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

func pow2(n uint) *uint256.Int { return new(uint256.Int).Lsh(u(1), n) }

func mustPack(t *testing.T, cash, managed uint64, block uint64) Balance {
	t.Helper()
	b, err := Pack(u(cash), u(managed), block)
	require.NoError(t, err)
	return b
}

// randomAmount returns a random value below limit.
func randomAmount(t *testing.T, limit *uint256.Int) *uint256.Int {
	t.Helper()
	raw, err := rand.Int(rand.Reader, limit.ToBig())
	require.NoError(t, err)
	return uint256.MustFromBig(raw)
}

func TestPack(t *testing.T) {
	testCases := []struct {
		name    string
		cash    *uint256.Int
		managed *uint256.Int
		block   uint64
		err     error
	}{
		{"Zero", u(0), u(0), 0, nil},
		{"Small values", u(100), u(50), 7, nil},
		{"Max total", new(uint256.Int).Sub(pow2(112), u(1)), u(0), 1 << 31, nil},
		{"Max block", u(1), u(1), 1<<32 - 1, nil},
		{"Total overflow at 2^112", pow2(111), pow2(111), 0, ErrTotalOverflow},
		{"Cash alone too large", pow2(112), u(0), 0, ErrTotalOverflow},
		{"Sum wraps 256 bits", new(uint256.Int).SetAllOne(), u(1), 0, ErrTotalOverflow},
		{"Block overflow", u(1), u(1), 1 << 32, ErrBlockNumberOverflow},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b, err := Pack(tc.cash, tc.managed, tc.block)
			if tc.err != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.True(t, b.Cash().Eq(tc.cash))
			assert.True(t, b.Managed().Eq(tc.managed))
			assert.Equal(t, tc.block, b.LastChangeBlock())
		})
	}
}

func TestWordLayout(t *testing.T) {
	b := mustPack(t, 1, 2, 3)
	w := b.Word()

	// Big-endian word: block number in the top 4 bytes, cash in the low 14.
	assert.Equal(t, byte(3), w[3])
	assert.Equal(t, byte(2), w[17])
	assert.Equal(t, byte(1), w[31])
	assert.Equal(t, b, FromWord(w))
}

func TestZeroSentinel(t *testing.T) {
	assert.True(t, Balance{}.IsZero())
	assert.True(t, mustPack(t, 0, 0, 0).IsZero())

	stamped := mustPack(t, 0, 0, 5)
	assert.True(t, stamped.IsNotZero(), "a block stamp alone makes the word non-zero")
	assert.True(t, stamped.Total().IsZero())
}

func TestMutators(t *testing.T) {
	t.Run("IncreaseCash", func(t *testing.T) {
		b, err := mustPack(t, 100, 10, 1).IncreaseCash(u(50), 9)
		require.NoError(t, err)
		assert.Equal(t, uint64(150), b.Cash().Uint64())
		assert.Equal(t, uint64(10), b.Managed().Uint64())
		assert.Equal(t, uint64(9), b.LastChangeBlock())
	})

	t.Run("IncreaseCash overflow", func(t *testing.T) {
		start, err := Pack(new(uint256.Int).Sub(pow2(112), u(10)), u(5), 0)
		require.NoError(t, err)
		_, err = start.IncreaseCash(u(5), 1)
		assert.ErrorIs(t, err, ErrTotalOverflow)
		_, err = start.IncreaseCash(new(uint256.Int).SetAllOne(), 1)
		assert.ErrorIs(t, err, ErrTotalOverflow)
	})

	t.Run("DecreaseCash", func(t *testing.T) {
		b, err := mustPack(t, 100, 10, 1).DecreaseCash(u(100), 4)
		require.NoError(t, err)
		assert.True(t, b.Cash().IsZero())
		assert.Equal(t, uint64(10), b.Managed().Uint64())
		assert.Equal(t, uint64(4), b.LastChangeBlock())
	})

	t.Run("DecreaseCash insufficient", func(t *testing.T) {
		_, err := mustPack(t, 100, 0, 0).DecreaseCash(u(101), 0)
		assert.ErrorIs(t, err, ErrInsufficientCash)
	})

	t.Run("CashToManaged keeps total and block", func(t *testing.T) {
		b, err := mustPack(t, 100, 0, 3).CashToManaged(u(40))
		require.NoError(t, err)
		assert.Equal(t, uint64(60), b.Cash().Uint64())
		assert.Equal(t, uint64(40), b.Managed().Uint64())
		assert.Equal(t, uint64(100), b.Total().Uint64())
		assert.Equal(t, uint64(3), b.LastChangeBlock())
		assert.True(t, b.IsManaged())
	})

	t.Run("CashToManaged insufficient", func(t *testing.T) {
		_, err := mustPack(t, 10, 100, 0).CashToManaged(u(11))
		assert.ErrorIs(t, err, ErrInsufficientCash)
	})

	t.Run("ManagedToCash insufficient", func(t *testing.T) {
		_, err := mustPack(t, 100, 10, 0).ManagedToCash(u(11))
		assert.ErrorIs(t, err, ErrInsufficientManaged)
	})

	t.Run("SetManaged", func(t *testing.T) {
		b, err := mustPack(t, 100, 10, 0).SetManaged(u(25), 8)
		require.NoError(t, err)
		assert.Equal(t, uint64(25), b.Managed().Uint64())
		assert.Equal(t, uint64(125), b.Total().Uint64())
		assert.Equal(t, uint64(8), b.LastChangeBlock())

		b, err = b.SetManaged(u(0), 9)
		require.NoError(t, err)
		assert.False(t, b.IsManaged())
	})

	t.Run("SetManaged overflow", func(t *testing.T) {
		_, err := mustPack(t, 1, 0, 0).SetManaged(new(uint256.Int).Sub(pow2(112), u(1)), 0)
		assert.ErrorIs(t, err, ErrTotalOverflow)
	})
}

func TestOpApply(t *testing.T) {
	start := mustPack(t, 100, 20, 1)
	testCases := []struct {
		op      Op
		amount  uint64
		cash    uint64
		managed uint64
		block   uint64
	}{
		{OpIncreaseCash, 5, 105, 20, 2},
		{OpDecreaseCash, 5, 95, 20, 2},
		{OpCashToManaged, 5, 95, 25, 1},
		{OpManagedToCash, 5, 105, 15, 1},
		{OpSetManaged, 5, 100, 5, 2},
	}

	for _, tc := range testCases {
		t.Run(tc.op.String(), func(t *testing.T) {
			b, err := tc.op.Apply(start, u(tc.amount), 2)
			require.NoError(t, err)
			assert.Equal(t, tc.cash, b.Cash().Uint64())
			assert.Equal(t, tc.managed, b.Managed().Uint64())
			assert.Equal(t, tc.block, b.LastChangeBlock())
		})
	}

	assert.Equal(t, "Op(42)", Op(42).String())
	_, err := Op(42).Apply(start, u(1), 0)
	assert.ErrorIs(t, err, ErrUnknownOp)
}

func TestTotalsAndMaxBlock(t *testing.T) {
	balances := []Balance{mustPack(t, 1, 2, 10), mustPack(t, 3, 0, 30), mustPack(t, 0, 0, 20)}
	totals := Totals(balances)
	require.Len(t, totals, 3)
	assert.Equal(t, uint64(3), totals[0].Uint64())
	assert.Equal(t, uint64(3), totals[1].Uint64())
	assert.True(t, totals[2].IsZero())
	assert.Equal(t, uint64(30), MaxLastChangeBlock(balances))
	assert.Equal(t, uint64(0), MaxLastChangeBlock(nil))
}

// --- Invariant Tests (Fuzzing) ---

func TestPack_RoundTripInvariant(t *testing.T) {
	limit := pow2(112)
	for i := 0; i < 1000; i++ {
		total := randomAmount(t, limit)
		cash := randomAmount(t, new(uint256.Int).AddUint64(total, 1))
		managed := new(uint256.Int).Sub(total, cash)
		block := randomAmount(t, pow2(32)).Uint64()

		b, err := Pack(cash, managed, block)
		require.NoError(t, err)
		assert.True(t, b.Cash().Eq(cash))
		assert.True(t, b.Managed().Eq(managed))
		assert.True(t, b.Total().Eq(total))
		assert.Equal(t, block, b.LastChangeBlock())
		assert.Equal(t, b, FromWord(b.Word()))
	}
}

func TestMutators_NeverWrapInvariant(t *testing.T) {
	limit := pow2(112)
	for i := 0; i < 1000; i++ {
		total := randomAmount(t, limit)
		cash := randomAmount(t, new(uint256.Int).AddUint64(total, 1))
		b, err := Pack(cash, new(uint256.Int).Sub(total, cash), 1)
		require.NoError(t, err)

		amount := randomAmount(t, new(uint256.Int).Lsh(limit, 1))
		for _, op := range []Op{OpIncreaseCash, OpDecreaseCash, OpCashToManaged, OpManagedToCash, OpSetManaged} {
			out, err := op.Apply(b, amount, 2)
			if err != nil {
				continue
			}
			assert.True(t, out.Total().Lt(limit), "%s produced total %s", op, out.Total().Dec())
		}
	}
}

func TestConservationInvariant(t *testing.T) {
	limit := pow2(112)
	for i := 0; i < 1000; i++ {
		total := randomAmount(t, limit)
		cash := randomAmount(t, new(uint256.Int).AddUint64(total, 1))
		b, err := Pack(cash, new(uint256.Int).Sub(total, cash), 12)
		require.NoError(t, err)

		x := randomAmount(t, new(uint256.Int).AddUint64(cash, 1))
		moved, err := b.CashToManaged(x)
		require.NoError(t, err)
		back, err := moved.ManagedToCash(x)
		require.NoError(t, err)
		assert.Equal(t, b, back)
	}
}

func TestSharedRoundTrip(t *testing.T) {
	a := mustPack(t, 100, 7, 42)
	b := mustPack(t, 300, 0, 42)

	cash := ToSharedCash(a, b)
	managed := ToSharedManaged(a, b)

	gotA, err := FromSharedToBalanceA(cash, managed)
	require.NoError(t, err)
	gotB, err := FromSharedToBalanceB(cash, managed)
	require.NoError(t, err)

	assert.Equal(t, a, gotA)
	assert.Equal(t, b, gotB)
	assert.Equal(t, cash, SharedCashFromWord(cash.Word()))
	assert.Equal(t, managed, SharedManagedFromWord(managed.Word()))
}

func TestSharedCashUsesLatestBlock(t *testing.T) {
	cash := ToSharedCash(mustPack(t, 1, 0, 10), mustPack(t, 2, 0, 20))
	assert.Equal(t, uint64(20), cash.LastChangeBlock())

	a, err := FromSharedToBalanceA(cash, SharedManaged{})
	require.NoError(t, err)
	assert.Equal(t, uint64(20), a.LastChangeBlock())
}

func TestSharedZero(t *testing.T) {
	assert.True(t, ToSharedCash(Balance{}, Balance{}).IsZero())
	assert.True(t, ToSharedManaged(mustPack(t, 5, 0, 1), mustPack(t, 6, 0, 1)).IsZero())
}

func TestSharedRoundTripInvariant(t *testing.T) {
	limit := pow2(112)
	for i := 0; i < 500; i++ {
		block := randomAmount(t, pow2(32)).Uint64()
		balances := make([]Balance, 2)
		for j := range balances {
			total := randomAmount(t, limit)
			cash := randomAmount(t, new(uint256.Int).AddUint64(total, 1))
			b, err := Pack(cash, new(uint256.Int).Sub(total, cash), block)
			require.NoError(t, err)
			balances[j] = b
		}

		cash := ToSharedCash(balances[0], balances[1])
		managed := ToSharedManaged(balances[0], balances[1])
		a, err := FromSharedToBalanceA(cash, managed)
		require.NoError(t, err)
		b, err := FromSharedToBalanceB(cash, managed)
		require.NoError(t, err)
		assert.Equal(t, balances[0], a)
		assert.Equal(t, balances[1], b)
	}
}

func TestString(t *testing.T) {
	assert.Equal(t, "cash=1 managed=2 block=3", mustPack(t, 1, 2, 3).String())
}
