package interfaces

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/params"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	oneEther := big.NewInt(params.Ether)
	halfEther := new(big.Int).Div(oneEther, big.NewInt(2))

	tests := []struct {
		in       string
		expected *big.Int
	}{
		{"1ether", oneEther},
		{"1 ether", oneEther},
		{"0.5ether", halfEther},
		{"10gwei", big.NewInt(10 * params.GWei)},
		{"1000wei", big.NewInt(1000)},
		{"1000", big.NewInt(1000)},
		{"0", big.NewInt(0)},
		{"1000000000000000000000ether", new(big.Int).Mul(oneEther, new(big.Int).Exp(big.NewInt(10), big.NewInt(21), nil))},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			require.NoError(t, err)
			assert.Equal(t, 0, tt.expected.Cmp(got), "expected %s, got %s", tt.expected, got)
		})
	}
}

func TestParseAmount_Invalid(t *testing.T) {
	for _, in := range []string{"", "ether", "-1ether", "0.5wei", "1.2.3", "abc"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseAmount(in)
			assert.ErrorIs(t, err, ErrInvalidAmount)
		})
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "1ether", FormatAmount(big.NewInt(params.Ether)))
	assert.Equal(t, "1500000000gwei", FormatAmount(big.NewInt(1500000000*params.GWei)))
	assert.Equal(t, "1000wei", FormatAmount(big.NewInt(1000)))
	assert.Equal(t, "0wei", FormatAmount(big.NewInt(0)))
	assert.Equal(t, "0wei", FormatAmount(nil))
}

func TestPersonExists(t *testing.T) {
	assert.False(t, Person{}.Exists())
	assert.True(t, Person{Name: "Sammy", Age: 70, Height: 170, IsSenior: true}.Exists())
}

func TestNewIdentityFromHex(t *testing.T) {
	id, err := NewIdentityFromHex("0x00000000000000000000000000000000000000aa")
	require.NoError(t, err)
	assert.Equal(t, byte(0xaa), id[19])

	id, err = NewIdentityFromHex("00000000000000000000000000000000000000bb")
	require.NoError(t, err)
	assert.Equal(t, byte(0xbb), id[19])

	_, err = NewIdentityFromHex("0x1234")
	assert.Error(t, err)
}

func TestNewStateStoreLocation(t *testing.T) {
	loc, err := NewStateStoreLocation("s3://bucket/prefix?region=eu-west-1")
	require.NoError(t, err)
	assert.Equal(t, "s3", loc.Scheme)
	assert.Equal(t, "bucket", loc.Host)
	assert.Equal(t, "eu-west-1", loc.GetParam("region"))

	loc, err = NewStateStoreLocation("ipfs://localhost:5001/?gateway=yes")
	require.NoError(t, err)
	assert.True(t, loc.GetParamBool("gateway"))

	_, err = NewStateStoreLocation("github://owner/repo")
	assert.ErrorIs(t, err, ErrInvalidLocationURI)
}
