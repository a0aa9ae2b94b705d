package main

import (
	"crypto/ed25519"
	"fmt"
	"os"
	"time"

	meshcrypto "github.com/silentmesh/mesh/crypto"
	"github.com/silentmesh/mesh/crypto/formats"
	"github.com/silentmesh/mesh/crypto/keys"
	"github.com/silentmesh/mesh/invite"
	"github.com/spf13/cobra"
)

var inviteCmd = &cobra.Command{
	Use:   "invite",
	Short: "Create or inspect mesh invites",
}

var (
	inviteKeyFile    string
	inviteTTL        time.Duration
	inviterName      string
	inviteBootstraps []string
)

var inviteCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a signed invite and print its compact share code",
	Example: `  meshctl invite create --key node.pem --ttl 168h --bootstrap 1.2.3.4:7000`,
	RunE: runInviteCreate,
}

var inviteDecodeCmd = &cobra.Command{
	Use:   "decode <share-code>",
	Short: "Decode and validate a compact invite share code",
	Args:  cobra.ExactArgs(1),
	RunE:  runInviteDecode,
}

func init() {
	rootCmd.AddCommand(inviteCmd)
	inviteCmd.AddCommand(inviteCreateCmd)
	inviteCmd.AddCommand(inviteDecodeCmd)

	inviteCreateCmd.Flags().StringVarP(&inviteKeyFile, "key", "k", "node.pem", "Path to the inviter's identity PEM file")
	inviteCreateCmd.Flags().DurationVar(&inviteTTL, "ttl", invite.DefaultTTL, "Invite lifetime")
	inviteCreateCmd.Flags().StringVar(&inviterName, "name", "", "Human-readable inviter name carried in the invite")
	inviteCreateCmd.Flags().StringArrayVar(&inviteBootstraps, "bootstrap", nil, "Bootstrap peer address (repeatable)")
}

func runInviteCreate(cmd *cobra.Command, args []string) error {
	priv, pub, err := loadInviterIdentity(inviteKeyFile)
	if err != nil {
		return err
	}

	now := time.Now()
	inv, err := invite.CreateInvite(invite.CreateOptions{
		InviterPeerID:     keys.PeerIDFromEd25519(pub),
		InviterPublicKey:  pub,
		InviterPrivateKey: priv,
		InviterName:       inviterName,
		TTL:               inviteTTL,
		BootstrapPeers:    inviteBootstraps,
		Now:               now,
	})
	if err != nil {
		return fmt.Errorf("failed to create invite: %w", err)
	}

	share := invite.NewSharePayload(inv, nil, now)
	encoded, err := share.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode share payload: %w", err)
	}

	fmt.Printf("Invite code: %s\n", inv.Code)
	fmt.Printf("Expires:     %s\n", inv.ExpiresAt.Format(time.RFC3339))
	fmt.Printf("Share code:  %s\n", encoded)
	return nil
}

func runInviteDecode(cmd *cobra.Command, args []string) error {
	payload, err := invite.DecodeSharePayload(args[0], time.Now())
	if err != nil {
		return fmt.Errorf("invalid share code: %w", err)
	}
	fmt.Printf("Inviter:  %s\n", payload.IP)
	fmt.Printf("Name:     %s\n", payload.IN)
	fmt.Printf("Expires:  %s\n", time.Unix(payload.E, 0).Format(time.RFC3339))
	fmt.Printf("Bootstrap peers: %d\n", len(payload.P))
	return nil
}

func loadInviterIdentity(path string) (ed25519.PrivateKey, ed25519.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s (run 'meshnode keygen' first): %w", path, err)
	}
	kp, err := formats.NewPEMImporter().Import(data, meshcrypto.KeyFormatPEM)
	if err != nil {
		return nil, nil, err
	}
	priv, ok := kp.PrivateKey().(ed25519.PrivateKey)
	if !ok {
		return nil, nil, fmt.Errorf("identity file does not contain an Ed25519 private key")
	}
	return priv, priv.Public().(ed25519.PublicKey), nil
}
