package formats

import (
	"crypto"
	"crypto/ecdh"
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	meshcrypto "github.com/silentmesh/mesh/crypto"
	"github.com/silentmesh/mesh/crypto/keys"
)

const (
	pemBlockPrivateKey = "PRIVATE KEY"
	pemBlockPublicKey  = "PUBLIC KEY"
)

// pemExporter implements KeyExporter for PKCS#8/PKIX PEM format.
type pemExporter struct{}

// NewPEMExporter creates a new PEM exporter.
func NewPEMExporter() meshcrypto.KeyExporter {
	return &pemExporter{}
}

// Export encodes the private key as a PKCS#8 PEM block.
func (e *pemExporter) Export(keyPair meshcrypto.KeyPair, format meshcrypto.KeyFormat) ([]byte, error) {
	if format != meshcrypto.KeyFormatPEM {
		return nil, meshcrypto.ErrInvalidKeyFormat
	}

	der, err := x509.MarshalPKCS8PrivateKey(keyPair.PrivateKey())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}

	block := &pem.Block{Type: pemBlockPrivateKey, Bytes: der}
	return pem.EncodeToMemory(block), nil
}

// ExportPublic encodes the public key as a PKIX PEM block.
func (e *pemExporter) ExportPublic(keyPair meshcrypto.KeyPair, format meshcrypto.KeyFormat) ([]byte, error) {
	if format != meshcrypto.KeyFormatPEM {
		return nil, meshcrypto.ErrInvalidKeyFormat
	}

	der, err := x509.MarshalPKIXPublicKey(keyPair.PublicKey())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal public key: %w", err)
	}

	block := &pem.Block{Type: pemBlockPublicKey, Bytes: der}
	return pem.EncodeToMemory(block), nil
}

// pemImporter implements KeyImporter for PKCS#8/PKIX PEM format.
type pemImporter struct{}

// NewPEMImporter creates a new PEM importer.
func NewPEMImporter() meshcrypto.KeyImporter {
	return &pemImporter{}
}

// Import decodes the first PRIVATE KEY block found in data. Any leading
// comment lines or additional trailing PEM blocks are ignored.
func (i *pemImporter) Import(data []byte, format meshcrypto.KeyFormat) (meshcrypto.KeyPair, error) {
	if format != meshcrypto.KeyFormatPEM {
		return nil, meshcrypto.ErrInvalidKeyFormat
	}

	block, err := decodeFirstBlock(data, pemBlockPrivateKey)
	if err != nil {
		return nil, err
	}

	priv, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	switch key := priv.(type) {
	case ed25519.PrivateKey:
		return keys.NewEd25519KeyPair(key, "")
	case *ecdh.PrivateKey:
		return keys.NewX25519KeyPair(key, "")
	default:
		return nil, fmt.Errorf("%w: unsupported private key type %T", meshcrypto.ErrInvalidKeyType, priv)
	}
}

// ImportPublic decodes the first PUBLIC KEY block found in data.
func (i *pemImporter) ImportPublic(data []byte, format meshcrypto.KeyFormat) (crypto.PublicKey, error) {
	if format != meshcrypto.KeyFormatPEM {
		return nil, meshcrypto.ErrInvalidKeyFormat
	}

	block, err := decodeFirstBlock(data, pemBlockPublicKey)
	if err != nil {
		return nil, err
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return pub, nil
}

// decodeFirstBlock scans data for the first PEM block of the given type,
// skipping any comment lines or blocks of other types that precede it.
func decodeFirstBlock(data []byte, wantType string) (*pem.Block, error) {
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			return nil, errors.New("no PEM block found")
		}
		if block.Type == wantType {
			return block, nil
		}
		if len(rest) == 0 {
			return nil, fmt.Errorf("no %s block found", wantType)
		}
	}
}
