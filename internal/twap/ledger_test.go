package twap

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLedgerDoneBitmap(t *testing.T) {
	l := NewLedger(130)
	require.Equal(t, uint64(130), l.SliceCount())

	for _, i := range []uint64{0, 63, 64, 127, 128, 129} {
		require.False(t, l.Done(i))
		l.MarkDone(i)
		require.True(t, l.Done(i))
	}
	// Neighbors across word boundaries stay clear.
	for _, i := range []uint64{1, 62, 65, 126} {
		require.False(t, l.Done(i))
	}
}

func TestLedgerApply(t *testing.T) {
	l := NewLedger(4)

	l.Apply(big.NewInt(100), big.NewInt(95), big.NewInt(1))
	l.Apply(big.NewInt(50), big.NewInt(48), nil)

	require.Equal(t, big.NewInt(150), l.Filled())
	require.Equal(t, big.NewInt(143), l.Received())
	require.Equal(t, big.NewInt(1), l.Fee())
}

func TestLedgerReturnsCopies(t *testing.T) {
	l := NewLedger(1)
	l.Apply(big.NewInt(10), big.NewInt(9), big.NewInt(1))

	l.Filled().SetInt64(0)
	l.Received().SetInt64(0)
	l.Fee().SetInt64(0)

	require.Equal(t, big.NewInt(10), l.Filled())
	require.Equal(t, big.NewInt(9), l.Received())
	require.Equal(t, big.NewInt(1), l.Fee())
}
