package oracle

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"helixchain/native/assets"
)

func TestPriceInverseRoundsDown(t *testing.T) {
	o := New()
	require.NoError(t, o.SetPrice(assets.AssetID(1), big.NewRat(3, 1)))

	amount, err := o.GetPriceInverse(assets.AssetID(1), big.NewInt(10))
	require.NoError(t, err)
	require.Equal(t, big.NewInt(3), amount)

	value, err := o.Value(assets.AssetID(1), big.NewInt(3))
	require.NoError(t, err)
	require.Equal(t, big.NewInt(9), value)
}

func TestMissingPrice(t *testing.T) {
	o := New()
	_, err := o.GetPriceInverse(assets.AssetID(99), big.NewInt(1))
	require.ErrorIs(t, err, ErrPriceNotFound)

	require.Error(t, o.SetPrice(assets.AssetID(1), big.NewRat(0, 1)))
}

func TestCloneIsIndependent(t *testing.T) {
	o := New()
	require.NoError(t, o.SetPrice(assets.AssetID(1), big.NewRat(2, 1)))

	clone := o.Clone()
	require.NoError(t, clone.SetPrice(assets.AssetID(1), big.NewRat(5, 1)))

	price, err := o.Price(assets.AssetID(1))
	require.NoError(t, err)
	require.Equal(t, 0, price.Cmp(big.NewRat(2, 1)))
}
