// go-repositories/cnt_repository.go

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

// CntRepository reads minted Sui tickets by object address. Draft rows are
// invisible to it.
type CntRepository interface {
	GetBySuiAddress(ctx context.Context, addr string) (*models.Cnt, error)
	UpdateIfVersion(ctx context.Context, c *models.Cnt, expected int64) (pgconn.CommandTag, error)
	UpdateWithRetry(ctx context.Context, addr string, mutate func(*models.Cnt) error) error
	MarkAttended(ctx context.Context, addr string, at time.Time) error
}

type cntRepo struct {
	*BaseVersionedRepo[*models.Cnt]
	db DB
}

func NewCntRepository(db DB) CntRepository {
	r := &cntRepo{db: db}
	r.BaseVersionedRepo = NewBaseRepo(db, baseSelectCnt()+" WHERE cnt_sui_address=$1 AND draft=false", r.scanCnt)
	return r
}

func (r *cntRepo) GetBySuiAddress(ctx context.Context, addr string) (*models.Cnt, error) {
	return r.BaseVersionedRepo.GetByID(ctx, addr)
}

func (r *cntRepo) UpdateIfVersion(ctx context.Context, c *models.Cnt, expected int64) (pgconn.CommandTag, error) {
	return r.db.Exec(ctx, `
        UPDATE cnts SET
            attended=$1,
            attended_at=$2,
            updated_at=NOW(),
            row_version=row_version+1
        WHERE cnt_sui_address=$3 AND draft=false AND row_version=$4
    `, c.Attended, c.AttendedAt, c.CntSuiAddress, expected)
}

func (r *cntRepo) UpdateWithRetry(ctx context.Context, addr string, mutate func(*models.Cnt) error) error {
	return r.BaseVersionedRepo.UpdateWithRetry(ctx, addr, mutate, r.UpdateIfVersion)
}

func (r *cntRepo) MarkAttended(ctx context.Context, addr string, at time.Time) error {
	return r.UpdateWithRetry(ctx, addr, func(c *models.Cnt) error {
		if c.Attended {
			return utils.ErrAttendanceAlreadyRecorded
		}
		c.Attended = true
		c.AttendedAt = &at
		return nil
	})
}

func baseSelectCnt() string {
	return `
        SELECT
            cnt_sui_address, event_id, ticket_type_index, draft,
            attended, attended_at, row_version, created_at, updated_at
        FROM cnts
    `
}

func (r *cntRepo) scanCnt(row pgx.Row) (*models.Cnt, error) {
	var c models.Cnt
	var typeIndex int16
	var attendedAt pgtype.Timestamptz
	err := row.Scan(
		&c.CntSuiAddress, &c.EventID, &typeIndex, &c.Draft,
		&c.Attended, &attendedAt, &c.RowVersion, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if attendedAt.Status == pgtype.Present {
		c.AttendedAt = &attendedAt.Time
	}
	if c.TicketTypeIndex, err = toTypeIndex(typeIndex); err != nil {
		return nil, fmt.Errorf("cnt %s: %w", c.CntSuiAddress, err)
	}
	return &c, nil
}
