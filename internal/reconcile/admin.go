package reconcile

import (
	"context"

	"github.com/ariefcatur/beras-storefront/internal/apperr"
	"github.com/ariefcatur/beras-storefront/internal/orders"
	"github.com/ariefcatur/beras-storefront/internal/outbox"
	"github.com/ariefcatur/beras-storefront/internal/postgres"
	"github.com/ariefcatur/beras-storefront/internal/redisx"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

const AdminSource = "admin"

// SetStatusByAdmin: admin boleh set status apa pun yang valid (tidak lewat TryTransition),
// tapi perubahan tetap tercatat sebagai event supaya consumer (restock) ikut jalan.
func (s *Service) SetStatusByAdmin(ctx context.Context, orderID string, target orders.Status, traceID string) (Outcome, error) {
	if !target.Valid() {
		return Outcome{}, apperr.Validation("invalid status %q", target)
	}
	var out Outcome
	var owner, paymentStatus string
	err := postgres.WithTx(ctx, s.DB, func(tx pgx.Tx) error {
		o, err := s.Orders.GetForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		// stok sudah dikembalikan ke gudang; membuka lagi order ini berarti menjual stok dua kali
		if o.Status == orders.StatusCancelled && o.StockReleasedAt != nil && target != orders.StatusCancelled {
			return apperr.Conflict("order %s stock already released, cannot reopen", o.ID)
		}
		out = Outcome{OrderID: o.ID, From: o.Status, Status: target, Changed: o.Status != target}
		owner, paymentStatus = o.Owner(), o.Payment.Status
		if !out.Changed {
			return nil
		}
		if err := s.Orders.SetStatus(ctx, tx, o.ID, target); err != nil {
			return err
		}
		return outbox.Insert(ctx, tx, outbox.Event{
			Topic:    orders.TopicOrderStatus,
			Type:     orders.EventOrderStatusChanged,
			OrderID:  o.ID,
			Producer: s.Producer,
			TraceID:  traceID,
			Payload: orders.OrderStatusChangedPayload{
				OrderID: o.ID,
				From:    o.Status,
				To:      target,
				Source:  AdminSource,
			},
		})
	})
	if err != nil {
		return Outcome{}, err
	}
	s.Cache.SetStatus(ctx, out.OrderID, redisx.StatusEntry{Status: string(out.Status), PaymentStatus: paymentStatus, Owner: owner})
	log.Info().Str("order_id", out.OrderID).Str("from", string(out.From)).Str("to", string(out.Status)).Msg("order status set by admin")
	return out, nil
}
