package recovery

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShamirSplitAndCombineRoundTrip(t *testing.T) {
	secret := make([]byte, 32)
	_, err := rand.Read(secret)
	require.NoError(t, err)

	shares, err := ShamirSplit(secret, 5, 3)
	require.NoError(t, err)
	require.Len(t, shares, 5)

	xs := []byte{1, 3, 5}
	picked := [][]byte{shares[0], shares[2], shares[4]}

	got, err := ShamirCombine(xs, picked)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(secret, got))
}

func TestShamirCombineAnyThresholdSubsetAgrees(t *testing.T) {
	secret := []byte("a 32 byte identity secret-value!")
	shares, err := ShamirSplit(secret, 5, 3)
	require.NoError(t, err)

	a, err := ShamirCombine([]byte{1, 2, 3}, [][]byte{shares[0], shares[1], shares[2]})
	require.NoError(t, err)
	b, err := ShamirCombine([]byte{2, 4, 5}, [][]byte{shares[1], shares[3], shares[4]})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, secret, a)
}

func TestShamirSplitRejectsInvalidThreshold(t *testing.T) {
	_, err := ShamirSplit([]byte("x"), 3, 4)
	assert.Error(t, err)

	_, err = ShamirSplit([]byte("x"), 3, 0)
	assert.Error(t, err)
}

func TestShamirBelowThresholdDoesNotReconstructOriginal(t *testing.T) {
	secret := []byte("another-identity-secret-32bytes!")
	shares, err := ShamirSplit(secret, 5, 3)
	require.NoError(t, err)

	got, err := ShamirCombine([]byte{1, 2}, [][]byte{shares[0], shares[1]})
	require.NoError(t, err)
	assert.NotEqual(t, secret, got)
}
