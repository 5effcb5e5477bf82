package ledger

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"

	"github.com/ticketland/mono-repo/backend/shared/go-verification"
)

// Anchor prefixes every account with sha256("account:<Name>")[:8].
var ticketMetadataDiscriminator = func() []byte {
	sum := sha256.Sum256([]byte("account:TicketMetadata"))
	return sum[:8]
}()

const (
	ticketMetadataOwnerOffset = 8
	ticketMetadataMinLen      = ticketMetadataOwnerOffset + ed25519.PublicKeySize
)

type solanaAccountInfo struct {
	Value *struct {
		Data  []string `json:"data"`
		Owner string   `json:"owner"`
	} `json:"value"`
}

// SolanaLedger reads the owner of a ticket from its on-chain TicketMetadata
// account. The ticket reference is the account address.
type SolanaLedger struct {
	rpc       *RPCClient
	programID string
	log       logrus.FieldLogger
}

// NewSolanaLedger builds a ledger backend. When programID is set, accounts
// not owned by that program are treated as missing.
func NewSolanaLedger(rpc *RPCClient, programID string, log logrus.FieldLogger) *SolanaLedger {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &SolanaLedger{rpc: rpc, programID: programID, log: log}
}

func (l *SolanaLedger) CurrentOwner(ctx context.Context, ticketReference string) (verification.Owner, error) {
	addr, err := base58.Decode(ticketReference)
	if err != nil || len(addr) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: %q is not an account address", verification.ErrLedgerTicketNotFound, ticketReference)
	}

	var info solanaAccountInfo
	err = l.rpc.Call(ctx, "getAccountInfo", &info, ticketReference, map[string]string{
		"encoding":   "base64",
		"commitment": "finalized",
	})
	if err != nil {
		l.log.WithError(err).WithField("account", ticketReference).Error("[SolanaLedger] getAccountInfo failed")
		return nil, err
	}
	if info.Value == nil {
		return nil, verification.ErrLedgerTicketNotFound
	}
	if l.programID != "" && info.Value.Owner != l.programID {
		l.log.WithFields(logrus.Fields{
			"account": ticketReference,
			"program": info.Value.Owner,
		}).Warn("[SolanaLedger] account owned by unexpected program")
		return nil, verification.ErrLedgerTicketNotFound
	}
	if len(info.Value.Data) == 0 {
		return nil, fmt.Errorf("account %s has no data", ticketReference)
	}

	data, err := base64.StdEncoding.DecodeString(info.Value.Data[0])
	if err != nil {
		return nil, fmt.Errorf("decode account %s: %w", ticketReference, err)
	}
	if len(data) < ticketMetadataMinLen || !bytes.Equal(data[:8], ticketMetadataDiscriminator) {
		return nil, fmt.Errorf("%w: account %s is not ticket metadata", verification.ErrLedgerTicketNotFound, ticketReference)
	}

	owner := make([]byte, ed25519.PublicKeySize)
	copy(owner, data[ticketMetadataOwnerOffset:ticketMetadataMinLen])
	return verification.PubkeyOwner(owner), nil
}
