package invite

import (
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// EncodeJWT renders inv as a compact EdDSA-signed JWT, an alternative
// encoding to SharePayload for callers that need standard JWT tooling
// (e.g. a web-based invite landing page) rather than this mesh's own
// checksum-and-base64url encoding.
func EncodeJWT(inv *Invite, priv ed25519.PrivateKey) (string, error) {
	claims := jwt.MapClaims{
		"code":  inv.Code,
		"iss":   inv.InviterPeerID,
		"name":  inv.InviterName,
		"iat":   inv.CreatedAt.Unix(),
		"exp":   inv.ExpiresAt.Unix(),
		"peers": inv.BootstrapPeers,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(priv)
}

// DecodeJWT parses and verifies a token produced by EncodeJWT against the
// inviter's known public key, reconstructing the Invite it carries.
// Redemption/expiry state is not part of the token; callers still run the
// result through a Registry the same as a SharePayload-derived Invite.
func DecodeJWT(tokenString string, pub ed25519.PublicKey) (*Invite, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return pub, nil
	}, jwt.WithValidMethods([]string{"EdDSA"}))
	if err != nil {
		return nil, fmt.Errorf("invalid invite token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid invite token claims")
	}

	code, _ := claims["code"].(string)
	iss, _ := claims["iss"].(string)
	name, _ := claims["name"].(string)
	exp, _ := claims["exp"].(float64)
	iat, _ := claims["iat"].(float64)

	var peers []string
	if raw, ok := claims["peers"].([]interface{}); ok {
		for _, p := range raw {
			if s, ok := p.(string); ok {
				peers = append(peers, s)
			}
		}
	}

	return &Invite{
		Code:             code,
		InviterPeerID:    iss,
		InviterPublicKey: pub,
		InviterName:      name,
		CreatedAt:        time.Unix(int64(iat), 0),
		ExpiresAt:        time.Unix(int64(exp), 0),
		BootstrapPeers:   peers,
	}, nil
}
