package main

import (
	"fmt"
	"os"

	"github.com/silentmesh/mesh/crypto"
	_ "github.com/silentmesh/mesh/internal/cryptoinit"
	"github.com/spf13/cobra"
)

var keygenOutputFile string

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a new node identity key pair",
	Long: `Generate the Ed25519 key pair that becomes this node's mesh peer
ID (the uppercase hex of the public key). The private key is written as a
PKCS#8 PEM block; keep it secret.`,
	Example: `  meshnode keygen --output node.pem`,
	RunE:    runKeygen,
}

func init() {
	rootCmd.AddCommand(keygenCmd)
	keygenCmd.Flags().StringVarP(&keygenOutputFile, "output", "o", "node.pem", "Output PEM file for the private key")
}

func runKeygen(cmd *cobra.Command, args []string) error {
	mgr := crypto.NewManager()
	kp, err := mgr.GenerateKeyPair(crypto.KeyTypeEd25519)
	if err != nil {
		return fmt.Errorf("failed to generate identity: %w", err)
	}

	pemBytes, err := mgr.ExportKeyPair(kp, crypto.KeyFormatPEM)
	if err != nil {
		return fmt.Errorf("failed to encode private key: %w", err)
	}

	if err := os.WriteFile(keygenOutputFile, pemBytes, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", keygenOutputFile, err)
	}

	fmt.Printf("Identity written to %s\n", keygenOutputFile)
	fmt.Printf("Peer ID: %s\n", kp.ID())
	return nil
}
