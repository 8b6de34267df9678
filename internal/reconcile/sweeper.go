package reconcile

import (
	"context"
	"time"

	"github.com/ariefcatur/beras-storefront/internal/orders"
	"github.com/ariefcatur/beras-storefront/internal/outbox"
	"github.com/ariefcatur/beras-storefront/internal/postgres"
	"github.com/ariefcatur/beras-storefront/internal/redisx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const (
	SweeperSource = "sweeper"
	sweepBatch    = 100
	expiredStatus = "EXPIRED"
)

// Sweeper membatalkan order pending yang pembayarannya sudah kedaluwarsa tapi notifikasinya
// tidak pernah datang, juga order yang tidak pernah dibuatkan pembayaran sama sekali.
type Sweeper struct {
	DB        *pgxpool.Pool
	Orders    *orders.Repo
	Cache     redisx.Cache
	Producer  string
	Interval  time.Duration
	UnpaidTTL time.Duration
	Now       func() time.Time
	OnCancel  func(n int)
}

func (s *Sweeper) Run(ctx context.Context) error {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		n, err := s.SweepOnce(ctx)
		if err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("sweep expired orders")
		} else if n > 0 {
			log.Info().Int("cancelled", n).Msg("expired orders swept")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

// SweepOnce memproses batch sampai habis dan mengembalikan jumlah order yang dibatalkan.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := s.sweepPage(ctx)
		total += n
		if err != nil {
			return total, err
		}
		if n < sweepBatch {
			return total, nil
		}
	}
}

func (s *Sweeper) sweepPage(ctx context.Context) (int, error) {
	now := s.now().UTC()
	ttl := s.UnpaidTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	var cancelled []orders.Order
	err := postgres.WithTx(ctx, s.DB, func(tx pgx.Tx) error {
		stale, err := s.Orders.ListStalePendingForUpdate(ctx, tx, now, now.Add(-ttl), sweepBatch)
		if err != nil {
			return err
		}
		for _, o := range stale {
			next, changed := orders.TryTransition(o.Status, orders.StatusCancelled)
			if !changed {
				continue
			}
			err := s.Orders.ApplyPaymentUpdate(ctx, tx, o.ID, orders.PaymentUpdate{
				Status:        next,
				PaymentStatus: expiredStatus,
				StatusDate:    now,
			})
			if err != nil {
				return err
			}
			err = outbox.Insert(ctx, tx, outbox.Event{
				Topic:    orders.TopicOrderStatus,
				Type:     orders.EventOrderStatusChanged,
				OrderID:  o.ID,
				Producer: s.Producer,
				Payload: orders.OrderStatusChangedPayload{
					OrderID:       o.ID,
					From:          o.Status,
					To:            next,
					Source:        SweeperSource,
					PaymentStatus: expiredStatus,
				},
			})
			if err != nil {
				return err
			}
			cancelled = append(cancelled, o)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, o := range cancelled {
		s.Cache.SetStatus(ctx, o.ID, redisx.StatusEntry{Status: string(orders.StatusCancelled), PaymentStatus: expiredStatus, Owner: o.Owner()})
	}
	if s.OnCancel != nil && len(cancelled) > 0 {
		s.OnCancel(len(cancelled))
	}
	return len(cancelled), nil
}

func (s *Sweeper) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
