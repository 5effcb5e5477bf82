// go-repositories/ticket_repository.go

package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"

	"github.com/ticketland/mono-repo/backend/shared/go-models"
	"github.com/ticketland/mono-repo/backend/shared/go-utils"
)

// TicketRepository reads Solana tickets by their on-chain metadata account.
type TicketRepository interface {
	GetByTicketMetadata(ctx context.Context, ticketMetadata string) (*models.Ticket, error)
	UpdateIfVersion(ctx context.Context, t *models.Ticket, expected int64) (pgconn.CommandTag, error)
	UpdateWithRetry(ctx context.Context, ticketMetadata string, mutate func(*models.Ticket) error) error
	MarkAttended(ctx context.Context, ticketMetadata string, at time.Time) error
}

type ticketRepo struct {
	*BaseVersionedRepo[*models.Ticket]
	db DB
}

func NewTicketRepository(db DB) TicketRepository {
	r := &ticketRepo{db: db}
	r.BaseVersionedRepo = NewBaseRepo(db, baseSelectTicket()+" WHERE a.ticket_metadata=$1", r.scanTicket)
	return r
}

func (r *ticketRepo) GetByTicketMetadata(ctx context.Context, ticketMetadata string) (*models.Ticket, error) {
	return r.BaseVersionedRepo.GetByID(ctx, ticketMetadata)
}

func (r *ticketRepo) UpdateIfVersion(ctx context.Context, t *models.Ticket, expected int64) (pgconn.CommandTag, error) {
	return r.db.Exec(ctx, `
        UPDATE tickets SET
            attended=$1,
            attended_at=$2,
            updated_at=NOW(),
            row_version=row_version+1
        WHERE ticket_nft=$3 AND row_version=$4
    `, t.Attended, t.AttendedAt, t.TicketNFT, expected)
}

func (r *ticketRepo) UpdateWithRetry(ctx context.Context, ticketMetadata string, mutate func(*models.Ticket) error) error {
	return r.BaseVersionedRepo.UpdateWithRetry(ctx, ticketMetadata, mutate, r.UpdateIfVersion)
}

// MarkAttended flips attended false -> true. It returns
// utils.ErrAttendanceAlreadyRecorded if the flag is already set and
// pgx.ErrNoRows if there is no such ticket.
func (r *ticketRepo) MarkAttended(ctx context.Context, ticketMetadata string, at time.Time) error {
	return r.UpdateWithRetry(ctx, ticketMetadata, func(t *models.Ticket) error {
		if t.Attended {
			return utils.ErrAttendanceAlreadyRecorded
		}
		t.Attended = true
		t.AttendedAt = &at
		return nil
	})
}

func baseSelectTicket() string {
	return `
        SELECT
            t.ticket_nft, a.ticket_metadata, t.event_id, t.ticket_type_index,
            t.attended, t.attended_at, t.row_version, t.created_at, t.updated_at
        FROM tickets t
        JOIN ticket_onchain_accounts a ON a.ticket_nft = t.ticket_nft
    `
}

func (r *ticketRepo) scanTicket(row pgx.Row) (*models.Ticket, error) {
	var t models.Ticket
	var typeIndex int16
	var attendedAt pgtype.Timestamptz
	err := row.Scan(
		&t.TicketNFT, &t.TicketMetadata, &t.EventID, &typeIndex,
		&t.Attended, &attendedAt, &t.RowVersion, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if attendedAt.Status == pgtype.Present {
		t.AttendedAt = &attendedAt.Time
	}
	if t.TicketTypeIndex, err = toTypeIndex(typeIndex); err != nil {
		return nil, fmt.Errorf("ticket %s: %w", t.TicketNFT, err)
	}
	return &t, nil
}

func toTypeIndex(v int16) (uint8, error) {
	if v < 0 || v > 255 {
		return 0, fmt.Errorf("ticket_type_index %d out of range", v)
	}
	return uint8(v), nil
}
