package validate

import (
	"strings"
	"testing"

	"bscwallet/pkg/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKey  = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	testAddr = "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"
)

func TestIsValidAddress(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{testAddr, true},
		{strings.ToLower(testAddr), true},
		{"0x" + strings.ToUpper(testAddr[2:]), true},
		{testAddr[2:], false},
		{testAddr[:41], false},
		{testAddr + "0", false},
		{"0xZZ7536E3605D9C16a7a3D7b1898e529396a65c23", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, IsValidAddress(tt.input), "IsValidAddress(%q)", tt.input)
	}
}

func TestParsePrivateKey(t *testing.T) {
	_, err := ParsePrivateKey(testKey)
	assert.NoError(t, err)

	_, err = ParsePrivateKey("0x" + testKey)
	assert.NoError(t, err)

	for _, bad := range []string{"", "0x", testKey[:63], testKey + "00", "zz" + testKey[2:]} {
		_, err := ParsePrivateKey(bad)
		assert.ErrorIs(t, err, errs.ErrInvalidCredential, "ParsePrivateKey(%q)", bad)
	}

	// zero is not a valid secp256k1 scalar
	_, err = ParsePrivateKey(strings.Repeat("0", 64))
	assert.ErrorIs(t, err, errs.ErrInvalidCredential)
	assert.False(t, IsValidPrivateKey(strings.Repeat("0", 64)))
}

func TestAddress(t *testing.T) {
	a, err := Address("  " + strings.ToLower(testAddr) + " ")
	require.NoError(t, err)
	assert.Equal(t, testAddr, a.Hex())

	_, err = Address("0x123")
	assert.ErrorIs(t, err, errs.ErrInvalidCredential)
}

func TestPositiveNumber(t *testing.T) {
	d, err := PositiveNumber("0.5", "Token amount")
	require.NoError(t, err)
	assert.Equal(t, "0.500000000000000000", d.String())

	for _, bad := range []string{"0", "-1", "abc", "", "0.0000000000000000001"} {
		_, err := PositiveNumber(bad, "Token amount")
		assert.ErrorIs(t, err, errs.ErrInvalidAmount, "PositiveNumber(%q)", bad)
	}
}

func TestPositiveInteger(t *testing.T) {
	v, err := PositiveInteger("10", "Number of wallets", 1000)
	require.NoError(t, err)
	assert.Equal(t, 10, v)

	_, err = PositiveInteger("1001", "Number of wallets", 1000)
	assert.ErrorContains(t, err, "must not exceed 1000")

	_, err = PositiveInteger("0", "Number of wallets", 1000)
	assert.ErrorIs(t, err, errs.ErrInvalidAmount)

	_, err = PositiveInteger("1.5", "Number of wallets", 0)
	assert.ErrorContains(t, err, "valid integer")
}

func TestTruncateAddress(t *testing.T) {
	assert.Equal(t, "0x2c75...5c23", TruncateAddress(testAddr, 6, 4))
	assert.Equal(t, "0x12", TruncateAddress("0x12", 6, 4))
	assert.Equal(t, "", FormatTxHash(""))
	assert.Equal(t, "0xabcdef...456789", FormatTxHash("0xabcdef0000000000000000123456789"))
}
