package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/Dicklesworthstone/agentmail/internal/store"
)

// ReservationExpiry releases every reservation whose expiry has passed,
// implementing the reservation-expiry cleanup worker described in §5.
type ReservationExpiry struct {
	Store  *store.Store
	Logger *slog.Logger
}

func (w *ReservationExpiry) Name() string { return "reservation_expiry" }

func (w *ReservationExpiry) Run(ctx context.Context) error {
	n, err := w.Store.ExpireReservations(ctx, time.Now().Unix())
	if err != nil {
		return err
	}
	if n > 0 {
		w.Logger.Info("expired reservations", "count", n)
	}
	return nil
}
