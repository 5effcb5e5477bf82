package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"

	"github.com/ticketland/mono-repo/backend/services/ticket-verification-service/internal/constants"
	"github.com/ticketland/mono-repo/backend/shared/go-repositories"
	"github.com/ticketland/mono-repo/backend/shared/go-utils"
	"github.com/ticketland/mono-repo/backend/shared/go-verification"
)

// solanaTicketStore serves tickets keyed by their metadata account.
type solanaTicketStore struct {
	repo repositories.TicketRepository
	now  func() time.Time
}

func (s *solanaTicketStore) TicketTypeIndex(ctx context.Context, ref string) (uint8, error) {
	t, err := s.repo.GetByTicketMetadata(ctx, ref)
	if err != nil {
		return 0, mapStoreError(err)
	}
	return t.TicketTypeIndex, nil
}

func (s *solanaTicketStore) SetAttended(ctx context.Context, ref string) error {
	return mapStoreError(s.repo.MarkAttended(ctx, ref, s.now().UTC()))
}

// suiTicketStore serves minted CNTs keyed by object address.
type suiTicketStore struct {
	repo repositories.CntRepository
	now  func() time.Time
}

func (s *suiTicketStore) TicketTypeIndex(ctx context.Context, ref string) (uint8, error) {
	c, err := s.repo.GetBySuiAddress(ctx, ref)
	if err != nil {
		return 0, mapStoreError(err)
	}
	return c.TicketTypeIndex, nil
}

func (s *suiTicketStore) SetAttended(ctx context.Context, ref string) error {
	return mapStoreError(s.repo.MarkAttended(ctx, ref, s.now().UTC()))
}

// NewTicketStore returns the projection that matches the ledger backend.
func NewTicketStore(backend string, db repositories.DB) (verification.TicketStore, error) {
	switch backend {
	case constants.LedgerBackendSolana:
		return &solanaTicketStore{repo: repositories.NewTicketRepository(db), now: time.Now}, nil
	case constants.LedgerBackendSui:
		return &suiTicketStore{repo: repositories.NewCntRepository(db), now: time.Now}, nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", backend)
	}
}

func mapStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return verification.ErrTicketNotFound
	case errors.Is(err, utils.ErrAttendanceAlreadyRecorded):
		return verification.ErrAlreadyAttended
	default:
		return err
	}
}
