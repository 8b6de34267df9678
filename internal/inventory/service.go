package inventory

import (
	"context"
	"encoding/json"

	kafkax "github.com/ariefcatur/beras-storefront/internal/kafka"
	"github.com/ariefcatur/beras-storefront/internal/orders"
	"github.com/ariefcatur/beras-storefront/internal/redisx"
	"github.com/rs/zerolog/log"
	kafkago "github.com/segmentio/kafka-go"
)

const dedupScope = "inventory"

type Restocker interface {
	RestockOrder(ctx context.Context, orderID string) (bool, error)
}

// Service mengembalikan stok order yang dibatalkan (pembayaran expired/gagal, sweeper, admin).
type Service struct {
	Orders    Restocker
	Cache     redisx.Cache
	OnRestock func()
}

// HandleStatusChanged: dipasang sebagai handler consumer topic order.status.
func (s *Service) HandleStatusChanged(ctx context.Context, m kafkago.Message) error {
	// 1) decode envelope; pesan rusak di-skip (commit) supaya tidak memblok partisi
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		log.Warn().Err(err).Int64("offset", m.Offset).Msg("skip malformed event")
		return nil
	}
	if env.EventType != orders.EventOrderStatusChanged {
		return nil
	} // ignore

	p, err := kafkax.UnwrapPayload[orders.OrderStatusChangedPayload](env.Payload)
	if err != nil {
		log.Warn().Err(err).Str("event_id", env.EventID).Msg("skip malformed payload")
		return nil
	}
	if p.To != orders.StatusCancelled {
		return nil
	}

	// 2) dedup via Redis (pakai event_id); guard stock_released_at di DB tetap jadi penjaga utama
	if !s.Cache.FirstSeen(ctx, dedupScope, env.EventID) {
		return nil
	}

	released, err := s.Orders.RestockOrder(ctx, p.OrderID)
	if err != nil {
		s.Cache.Forget(ctx, dedupScope, env.EventID)
		return err
	}
	if released {
		if s.OnRestock != nil {
			s.OnRestock()
		}
		log.Info().Str("order_id", p.OrderID).Str("source", p.Source).Msg("stock released")
	}
	return nil
}
