package licensing_test

import (
	"encoding/hex"
	"testing"

	"license-engine/internal/licensing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachineFingerprint(t *testing.T) {
	first, err := licensing.MachineFingerprint()
	require.NoError(t, err)

	// Always a hex SHA-256 digest; raw identifiers must never leak out.
	assert.Len(t, first, 64)
	_, err = hex.DecodeString(first)
	assert.NoError(t, err)

	second, err := licensing.MachineFingerprint()
	require.NoError(t, err)
	assert.Equal(t, first, second, "fingerprint must be stable across calls")
}
