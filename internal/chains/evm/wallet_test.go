package evm

import (
	"strings"
	"testing"

	"custody-service/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	knownSecret  = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	knownAddress = "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"
)

func TestGenerateKeyRoundTrip(t *testing.T) {
	kp, err := GenerateKey()
	require.NoError(t, err)
	require.NoError(t, ValidateAddress(kp.Address))
	assert.True(t, strings.HasPrefix(kp.Secret, "0x"))
	assert.Len(t, kp.Secret, 66)

	imported, err := KeyFromSecret(kp.Secret)
	require.NoError(t, err)
	assert.Equal(t, kp.Address, imported.Address)
}

func TestKeyFromSecretKnownVector(t *testing.T) {
	kp, err := KeyFromSecret(knownSecret)
	require.NoError(t, err)
	assert.Equal(t, knownAddress, kp.Address)

	unprefixed, err := KeyFromSecret(strings.TrimPrefix(knownSecret, "0x"))
	require.NoError(t, err)
	assert.Equal(t, knownAddress, unprefixed.Address)
}

func TestKeyFromSecretRejectsMalformed(t *testing.T) {
	inputs := []string{
		"",
		"0x1234",
		"zz0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318",
		"0x0000000000000000000000000000000000000000000000000000000000000000",
		"0xffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff",
	}
	for _, input := range inputs {
		_, err := KeyFromSecret(input)
		assert.Equal(t, apperr.CodeInvalidSecret, apperr.CodeOf(err), input)
	}
}

func TestValidateAddress(t *testing.T) {
	assert.NoError(t, ValidateAddress(knownAddress))
	assert.NoError(t, ValidateAddress(strings.ToLower(knownAddress)))

	bad := []string{
		"",
		"2c7536E3605D9C16a7a3D7b1898e529396a65c23",
		"0x2c7536E3605D9C16a7a3D7b1898e529396a65c2",
		"0x2c7536E3605D9C16a7a3D7b1898e529396a65cZZ",
		"0x2C7536E3605D9C16a7a3D7b1898e529396a65c23", // broken checksum
	}
	for _, address := range bad {
		assert.Equal(t, apperr.CodeInvalidAddress, apperr.CodeOf(ValidateAddress(address)), address)
	}

	normalized, err := NormalizeAddress(strings.ToLower(knownAddress))
	require.NoError(t, err)
	assert.Equal(t, knownAddress, normalized)
}
