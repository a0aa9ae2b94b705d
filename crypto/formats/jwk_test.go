package formats

import (
	"crypto/ecdh"
	"encoding/json"
	"testing"

	meshcrypto "github.com/silentmesh/mesh/crypto"
	"github.com/silentmesh/mesh/crypto/keys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWKExporter(t *testing.T) {
	exporter := NewJWKExporter()

	t.Run("ExportEd25519KeyPair", func(t *testing.T) {
		keyPair, err := keys.GenerateEd25519KeyPair()
		require.NoError(t, err)

		exported, err := exporter.Export(keyPair, meshcrypto.KeyFormatJWK)
		require.NoError(t, err)
		assert.NotEmpty(t, exported)

		var jwk map[string]interface{}
		require.NoError(t, json.Unmarshal(exported, &jwk))

		assert.Equal(t, "OKP", jwk["kty"])
		assert.Equal(t, "Ed25519", jwk["crv"])
		assert.NotEmpty(t, jwk["x"])
		assert.NotEmpty(t, jwk["d"])
		assert.NotEmpty(t, jwk["kid"])
	})

	t.Run("ExportEd25519PublicKey", func(t *testing.T) {
		keyPair, err := keys.GenerateEd25519KeyPair()
		require.NoError(t, err)

		exported, err := exporter.ExportPublic(keyPair, meshcrypto.KeyFormatJWK)
		require.NoError(t, err)
		assert.NotEmpty(t, exported)

		var jwk map[string]interface{}
		require.NoError(t, json.Unmarshal(exported, &jwk))

		assert.Equal(t, "OKP", jwk["kty"])
		assert.Equal(t, "Ed25519", jwk["crv"])
		assert.NotEmpty(t, jwk["x"])
		assert.Empty(t, jwk["d"])
		assert.NotEmpty(t, jwk["kid"])
	})

	t.Run("ExportX25519KeyPair", func(t *testing.T) {
		keyPair, err := keys.GenerateX25519KeyPair()
		require.NoError(t, err)

		exported, err := exporter.Export(keyPair, meshcrypto.KeyFormatJWK)
		require.NoError(t, err)
		assert.NotEmpty(t, exported)

		var jwk map[string]interface{}
		require.NoError(t, json.Unmarshal(exported, &jwk))

		assert.Equal(t, "OKP", jwk["kty"])
		assert.Equal(t, "X25519", jwk["crv"])
		assert.Equal(t, "enc", jwk["use"])
		assert.NotEmpty(t, jwk["x"])
		assert.NotEmpty(t, jwk["d"])
	})

	t.Run("ExportX25519PublicKey", func(t *testing.T) {
		keyPair, err := keys.GenerateX25519KeyPair()
		require.NoError(t, err)

		exported, err := exporter.ExportPublic(keyPair, meshcrypto.KeyFormatJWK)
		require.NoError(t, err)

		var jwk map[string]interface{}
		require.NoError(t, json.Unmarshal(exported, &jwk))

		assert.Equal(t, "X25519", jwk["crv"])
		assert.NotEmpty(t, jwk["x"])
		assert.Empty(t, jwk["d"])
	})
}

func TestJWKImporter(t *testing.T) {
	exporter := NewJWKExporter()
	importer := NewJWKImporter()

	t.Run("ImportEd25519KeyPair", func(t *testing.T) {
		originalKeyPair, err := keys.GenerateEd25519KeyPair()
		require.NoError(t, err)

		exported, err := exporter.Export(originalKeyPair, meshcrypto.KeyFormatJWK)
		require.NoError(t, err)

		importedKeyPair, err := importer.Import(exported, meshcrypto.KeyFormatJWK)
		require.NoError(t, err)
		require.NotNil(t, importedKeyPair)
		assert.Equal(t, meshcrypto.KeyTypeEd25519, importedKeyPair.Type())
		assert.Equal(t, originalKeyPair.ID(), importedKeyPair.ID())

		message := []byte("test message")
		signature, err := importedKeyPair.Sign(message)
		require.NoError(t, err)

		assert.NoError(t, originalKeyPair.Verify(message, signature))
	})

	t.Run("ImportX25519KeyPair", func(t *testing.T) {
		originalKeyPair, err := keys.GenerateX25519KeyPair()
		require.NoError(t, err)

		exported, err := exporter.Export(originalKeyPair, meshcrypto.KeyFormatJWK)
		require.NoError(t, err)

		importedKeyPair, err := importer.Import(exported, meshcrypto.KeyFormatJWK)
		require.NoError(t, err)
		require.NotNil(t, importedKeyPair)
		assert.Equal(t, meshcrypto.KeyTypeX25519, importedKeyPair.Type())

		_, err = importedKeyPair.Sign([]byte("test message"))
		assert.ErrorIs(t, err, meshcrypto.ErrSignNotSupported)
	})

	t.Run("ImportEd25519PublicKey", func(t *testing.T) {
		originalKeyPair, err := keys.GenerateEd25519KeyPair()
		require.NoError(t, err)

		exported, err := exporter.ExportPublic(originalKeyPair, meshcrypto.KeyFormatJWK)
		require.NoError(t, err)

		importedPublicKey, err := importer.ImportPublic(exported, meshcrypto.KeyFormatJWK)
		require.NoError(t, err)
		assert.NotNil(t, importedPublicKey)
	})

	t.Run("ImportX25519PublicKey", func(t *testing.T) {
		originalKeyPair, err := keys.GenerateX25519KeyPair()
		require.NoError(t, err)

		exported, err := exporter.ExportPublic(originalKeyPair, meshcrypto.KeyFormatJWK)
		require.NoError(t, err)

		importedPublicKey, err := importer.ImportPublic(exported, meshcrypto.KeyFormatJWK)
		require.NoError(t, err)
		pub, ok := importedPublicKey.(*ecdh.PublicKey)
		require.True(t, ok)
		assert.Equal(t, ecdh.X25519(), pub.Curve())
	})

	t.Run("ImportInvalidJSON", func(t *testing.T) {
		invalidData := []byte("invalid json")
		_, err := importer.Import(invalidData, meshcrypto.KeyFormatJWK)
		assert.Error(t, err)
	})

	t.Run("ImportMissingKeyType", func(t *testing.T) {
		invalidJWK := []byte(`{"x": "test"}`)
		_, err := importer.Import(invalidJWK, meshcrypto.KeyFormatJWK)
		assert.Error(t, err)
	})
}
