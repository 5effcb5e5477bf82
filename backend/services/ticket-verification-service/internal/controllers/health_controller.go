package controllers

import (
	"context"
	"net/http"

	"github.com/ticketland/mono-repo/backend/services/ticket-verification-service/internal/constants"
	"github.com/ticketland/mono-repo/backend/services/ticket-verification-service/internal/dtos"
	"github.com/ticketland/mono-repo/backend/shared/go-utils"
)

// Pinger is satisfied by *pgxpool.Pool and the lock caches.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthController struct {
	db    Pinger
	cache Pinger
}

func NewHealthController(db, cache Pinger) *HealthController {
	return &HealthController{db: db, cache: cache}
}

func (c *HealthController) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), constants.HealthCheckTimeout)
	defer cancel()

	if err := c.db.Ping(ctx); err != nil {
		utils.RespondErrorWithCode(w, http.StatusServiceUnavailable, utils.ErrCodeInternal, "Database unreachable", nil, err)
		return
	}
	if err := c.cache.Ping(ctx); err != nil {
		utils.RespondErrorWithCode(w, http.StatusServiceUnavailable, utils.ErrCodeInternal, "Lock service unreachable", nil, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dtos.HealthCheckResponse{Status: "OK"})
}
