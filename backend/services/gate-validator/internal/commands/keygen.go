package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/ticketland/mono-repo/backend/shared/go-verification"
)

// KeygenCommand prints a fresh ed25519 keypair in base58. The private key
// is the 64-byte form TICKET_VERIFIER_PRIV_KEY expects.
func KeygenCommand() *cli.Command {
	return &cli.Command{
		Name:   "keygen",
		Usage:  "Generate a verifier keypair",
		Action: runKeygenCommand,
	}
}

func runKeygenCommand(ctx context.Context, cmd *cli.Command) error {
	pub, priv, err := verification.GenerateKeypair()
	if err != nil {
		return fmt.Errorf("failed to generate keypair: %w", err)
	}
	out, err := json.MarshalIndent(map[string]string{
		"public_key":  verification.EncodePublicKey(pub),
		"private_key": verification.EncodePrivateKey(priv),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	_, err = fmt.Fprintln(cmd.Root().Writer, string(out))
	return err
}
