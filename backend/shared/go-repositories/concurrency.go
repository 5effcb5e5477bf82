package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/sirupsen/logrus"

	"github.com/ticketland/mono-repo/backend/shared/go-utils"
)

// DefaultMaxRetries bounds the optimistic-lock loop. Attendance writes touch
// one row once, so losing more than a few races means something is wrong.
const DefaultMaxRetries = 3

var ErrTooMuchContention = errors.New("too_much_contention")

// VersionedRow is a projection row guarded by row_version. Pointer types
// satisfy comparable, and a nil pointer means the row is missing.
type VersionedRow interface {
	comparable
	GetID() string
	GetRowVersion() int64
	SetRowVersion(int64)
}

type UpdateIfVersionFunc[T VersionedRow] func(
	ctx context.Context,
	row T,
	expectedVersion int64,
) (pgconn.CommandTag, error)

type GetByIDFunc[T VersionedRow] func(
	ctx context.Context,
	id string,
) (T, error)

// WithRetry reads the row, applies mutate, and writes it back only if
// row_version is unchanged, retrying up to maxRetries times. An error from
// mutate ends the loop and is returned as is. Running out of attempts returns
// an error matching both ErrTooMuchContention and utils.ErrRowVersionConflict.
func WithRetry[T VersionedRow](
	ctx context.Context,
	maxRetries int,
	id string,
	getByID GetByIDFunc[T],
	updateIfVersion UpdateIfVersionFunc[T],
	mutate func(T) error,
) error {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	var missing T
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		row, err := getByID(ctx, id)
		if err != nil {
			return err
		}
		if row == missing {
			return pgx.ErrNoRows
		}

		version := row.GetRowVersion()
		if err := mutate(row); err != nil {
			return err
		}

		tag, err := updateIfVersion(ctx, row, version)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 1 {
			row.SetRowVersion(version + 1)
			return nil
		}
		utils.Logger.WithFields(logrus.Fields{
			"id":          id,
			"attempt":     attempt,
			"row_version": version,
		}).Debug("[Repositories] row_version conflict, retrying")
	}
	return fmt.Errorf("%w: %w updating %q after %d attempts",
		ErrTooMuchContention, utils.ErrRowVersionConflict, id, maxRetries)
}
