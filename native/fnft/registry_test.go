package fnft

import (
	"testing"

	"helixchain/crypto"

	"github.com/stretchr/testify/require"
)

func TestMintBurnLifecycle(t *testing.T) {
	registry := NewRegistry()
	owner := crypto.DeriveModuleAddress("test-owner")

	require.NoError(t, registry.CreateCollection(42, owner))
	require.ErrorIs(t, registry.CreateCollection(42, owner), errCollectionExists)

	instance, err := registry.NextInstanceID(42)
	require.NoError(t, err)
	require.Equal(t, InstanceID(1), instance)

	require.NoError(t, registry.MintInto(42, instance, owner))

	got, ok := registry.Owner(42, instance)
	require.True(t, ok)
	require.True(t, owner.Equal(got))

	next, err := registry.NextInstanceID(42)
	require.NoError(t, err)
	require.Equal(t, InstanceID(2), next)

	require.NoError(t, registry.Burn(42, instance))
	_, ok = registry.Owner(42, instance)
	require.False(t, ok)
	require.ErrorIs(t, registry.Burn(42, instance), ErrInstanceNotFound)

	// Instance ids are never reused after a burn.
	next, err = registry.NextInstanceID(42)
	require.NoError(t, err)
	require.Equal(t, InstanceID(2), next)
}

func TestAssetAccountDeterministic(t *testing.T) {
	registry := NewRegistry()
	a := registry.AssetAccount(42, 1)
	b := registry.AssetAccount(42, 1)
	c := registry.AssetAccount(42, 2)
	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))
}

func TestCloneIsIndependent(t *testing.T) {
	registry := NewRegistry()
	owner := crypto.DeriveModuleAddress("test-owner")
	require.NoError(t, registry.CreateCollection(42, owner))
	require.NoError(t, registry.MintInto(42, 1, owner))

	clone := registry.Clone()
	require.NoError(t, clone.Burn(42, 1))

	_, ok := registry.Owner(42, 1)
	require.True(t, ok)
	_, ok = clone.Owner(42, 1)
	require.False(t, ok)
}
