package ledger

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/blake2b"

	"github.com/ticketland/mono-repo/backend/shared/go-verification"
)

// ed25519 signature scheme flag used in Sui address derivation.
const suiEd25519Flag = 0x00

// SuiAddress derives the Sui account address controlled by an ed25519 key.
func SuiAddress(pub ed25519.PublicKey) string {
	buf := make([]byte, 0, 1+len(pub))
	buf = append(buf, suiEd25519Flag)
	buf = append(buf, pub...)
	sum := blake2b.Sum256(buf)
	return "0x" + hex.EncodeToString(sum[:])
}

// NormalizeSuiAddress lowercases and left-pads an address to 32 bytes.
func NormalizeSuiAddress(addr string) string {
	addr = strings.ToLower(strings.TrimPrefix(strings.TrimPrefix(addr, "0x"), "0X"))
	if len(addr) < 64 {
		addr = strings.Repeat("0", 64-len(addr)) + addr
	}
	return "0x" + addr
}

// SuiAddressOwner is a CNT held directly by an account.
type SuiAddressOwner string

func (o SuiAddressOwner) Matches(pub ed25519.PublicKey) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	return NormalizeSuiAddress(string(o)) == SuiAddress(pub)
}

func (o SuiAddressOwner) String() string { return NormalizeSuiAddress(string(o)) }

type suiObjectResponse struct {
	Data *struct {
		ObjectID string          `json:"objectId"`
		Owner    json.RawMessage `json:"owner"`
	} `json:"data"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
}

// SuiLedger reads the owner of a CNT object. The ticket reference is the
// object id.
type SuiLedger struct {
	rpc *RPCClient
	log logrus.FieldLogger
}

func NewSuiLedger(rpc *RPCClient, log logrus.FieldLogger) *SuiLedger {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &SuiLedger{rpc: rpc, log: log}
}

func (l *SuiLedger) CurrentOwner(ctx context.Context, ticketReference string) (verification.Owner, error) {
	var obj suiObjectResponse
	err := l.rpc.Call(ctx, "sui_getObject", &obj, ticketReference, map[string]bool{"showOwner": true})
	if err != nil {
		l.log.WithError(err).WithField("object_id", ticketReference).Error("[SuiLedger] sui_getObject failed")
		return nil, err
	}
	if obj.Error != nil {
		if obj.Error.Code == "notExists" || obj.Error.Code == "deleted" {
			return nil, verification.ErrLedgerTicketNotFound
		}
		return nil, fmt.Errorf("sui_getObject %s: %s", ticketReference, obj.Error.Code)
	}
	if obj.Data == nil {
		return nil, verification.ErrLedgerTicketNotFound
	}

	var owner struct {
		AddressOwner string `json:"AddressOwner"`
	}
	// Shared, immutable and object-owned CNTs have no single holder.
	if err := json.Unmarshal(obj.Data.Owner, &owner); err != nil || owner.AddressOwner == "" {
		l.log.WithField("object_id", ticketReference).Warn("[SuiLedger] object is not address owned")
		return nil, fmt.Errorf("%w: object %s is not address owned", verification.ErrOwnershipMismatch, ticketReference)
	}
	return SuiAddressOwner(owner.AddressOwner), nil
}
