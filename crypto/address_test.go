package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveModuleAddressIsStable(t *testing.T) {
	a := DeriveModuleAddress("staking")
	b := DeriveModuleAddress("staking")
	require.True(t, a.Equal(b))
	require.False(t, a.Equal(DeriveModuleAddress("loans")))
	require.Len(t, a.Bytes(), 20)
}

func TestDeriveSubAccountVariesWithSeed(t *testing.T) {
	parent := DeriveModuleAddress("staking")
	one := DeriveSubAccount(parent, []byte{0x01})
	two := DeriveSubAccount(parent, []byte{0x02})
	require.False(t, one.Equal(two))
	require.False(t, one.Equal(parent))
}

func TestAddressRoundTrip(t *testing.T) {
	addr := DeriveModuleAddress("treasury")
	decoded, err := DecodeAddress(addr.String())
	require.NoError(t, err)
	require.True(t, addr.Equal(decoded))
	require.Equal(t, HelixPrefix, decoded.Prefix())
}

func TestPrivateKeyRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)

	restored, err := PrivateKeyFromBytes(key.Bytes())
	require.NoError(t, err)
	require.True(t, key.PubKey().Address().Equal(restored.PubKey().Address()))

	addr := key.PubKey().Address()
	require.Equal(t, HelixPrefix, addr.Prefix())
	decoded, err := DecodeAddress(addr.String())
	require.NoError(t, err)
	require.True(t, addr.Equal(decoded))
}

func TestIsZero(t *testing.T) {
	require.True(t, Address{}.IsZero())
	require.True(t, NewAddress(HelixPrefix, make([]byte, 20)).IsZero())
	require.False(t, DeriveModuleAddress("staking").IsZero())
}
