package invite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeJWTRoundTrip(t *testing.T) {
	pub, priv := genInviter(t)
	now := time.Now().Truncate(time.Second)

	inv, err := CreateInvite(CreateOptions{
		InviterPeerID:     "AAAA",
		InviterPublicKey:  pub,
		InviterPrivateKey: priv,
		InviterName:       "alice",
		BootstrapPeers:    []string{"1.2.3.4:7000"},
		Now:               now,
	})
	require.NoError(t, err)

	token, err := EncodeJWT(inv, priv)
	require.NoError(t, err)

	decoded, err := DecodeJWT(token, pub)
	require.NoError(t, err)
	assert.Equal(t, inv.Code, decoded.Code)
	assert.Equal(t, inv.InviterPeerID, decoded.InviterPeerID)
	assert.Equal(t, inv.InviterName, decoded.InviterName)
	assert.Equal(t, inv.BootstrapPeers, decoded.BootstrapPeers)
	assert.True(t, inv.ExpiresAt.Equal(decoded.ExpiresAt))
}

func TestDecodeJWTRejectsWrongSigner(t *testing.T) {
	pub, priv := genInviter(t)
	otherPub, _ := genInviter(t)
	now := time.Now()

	inv, err := CreateInvite(CreateOptions{
		InviterPeerID: "AAAA", InviterPublicKey: pub, InviterPrivateKey: priv, Now: now,
	})
	require.NoError(t, err)

	token, err := EncodeJWT(inv, priv)
	require.NoError(t, err)

	_, err = DecodeJWT(token, otherPub)
	assert.Error(t, err)
}
