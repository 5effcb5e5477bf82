package commands

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/ticketland/mono-repo/backend/shared/go-verification"
)

const (
	FormatJSON = "json"
	FormatCBOR = "cbor"
)

// ValidateCommand checks a server-signed attestation against the
// verifier public key.
func ValidateCommand() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "Validate a verification attestation with the server public key",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "server-pubkey",
				Usage:    "Verifier public key (base58)",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "file",
				Usage: "Path to the attestation (reads stdin when omitted)",
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Attestation encoding: json or cbor (raw or base64)",
				Value: FormatJSON,
			},
		},
		Action: runValidateCommand,
	}
}

func runValidateCommand(ctx context.Context, cmd *cli.Command) error {
	serverPub, err := verification.ParsePublicKey(cmd.String("server-pubkey"))
	if err != nil {
		return fmt.Errorf("invalid --server-pubkey: %w", err)
	}

	raw, err := readInput(cmd.String("file"), cmd.Root().Reader)
	if err != nil {
		return err
	}

	resp, err := DecodeAttestation(raw, cmd.String("format"))
	if err != nil {
		return err
	}

	if err := verification.ValidateVerificationResult(resp, serverPub); err != nil {
		return fmt.Errorf("attestation rejected: %w", err)
	}

	out, err := json.MarshalIndent(map[string]any{"valid": true, "attestation": resp}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	_, err = fmt.Fprintln(cmd.Root().Writer, string(out))
	return err
}

// DecodeAttestation parses an attestation in the given format. CBOR input
// may be raw bytes or the base64 text a gate scans from a QR code.
func DecodeAttestation(raw []byte, format string) (verification.VerificationResponse, error) {
	switch format {
	case FormatJSON:
		var resp verification.VerificationResponse
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&resp); err != nil {
			return resp, fmt.Errorf("failed to decode JSON attestation: %w", err)
		}
		return resp, nil
	case FormatCBOR:
		trimmed := bytes.TrimSpace(raw)
		if decoded, err := base64.StdEncoding.DecodeString(string(trimmed)); err == nil {
			raw = decoded
		}
		resp, err := verification.DecodeCompact(raw)
		if err != nil {
			return resp, fmt.Errorf("failed to decode CBOR attestation: %w", err)
		}
		return resp, nil
	default:
		return verification.VerificationResponse{}, fmt.Errorf("unknown --format %q (want json or cbor)", format)
	}
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		return b, nil
	}
	if stdin == nil {
		stdin = os.Stdin
	}
	b, err := io.ReadAll(stdin)
	if err != nil {
		return nil, fmt.Errorf("failed to read stdin: %w", err)
	}
	return b, nil
}
