package reconcile

import (
	"context"
	"time"

	"github.com/ariefcatur/beras-storefront/internal/orders"
	"github.com/ariefcatur/beras-storefront/internal/outbox"
	"github.com/ariefcatur/beras-storefront/internal/payment"
	"github.com/ariefcatur/beras-storefront/internal/postgres"
	"github.com/ariefcatur/beras-storefront/internal/redisx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

type Outcome struct {
	OrderID string        `json:"order_id"`
	From    orders.Status `json:"from"`
	Status  orders.Status `json:"status"`
	Changed bool          `json:"changed"`
}

type Service struct {
	DB       *pgxpool.Pool
	Orders   *orders.Repo
	Cache    redisx.Cache
	Producer string
}

// Decide: status order berikutnya dari status mentah provider. Metadata selalu dicatat,
// status order hanya maju lewat TryTransition.
func Decide(current orders.Status, rawStatus string) (orders.Status, bool) {
	target, definitive := orders.MapProviderStatus(rawStatus)
	if !definitive {
		return current, false
	}
	return orders.TryTransition(current, target)
}

// Apply menerapkan notifikasi provider ke order. Aman diulang: notifikasi yang sama
// menghasilkan state akhir yang sama dan tidak menulis event kedua.
func (s *Service) Apply(ctx context.Context, provider string, n payment.Notification) (Outcome, error) {
	var out Outcome
	var owner string
	err := postgres.WithTx(ctx, s.DB, func(tx pgx.Tx) error {
		o, err := s.Orders.FindByPaymentRefForUpdate(ctx, tx, n.ExternalRef, n.ProviderRef)
		if err != nil {
			return err
		}
		next, changed := Decide(o.Status, n.Status)
		out = Outcome{OrderID: o.ID, From: o.Status, Status: next, Changed: changed}
		owner = o.Owner()

		at := n.At
		if at.IsZero() {
			at = time.Now().UTC()
		}
		err = s.Orders.ApplyPaymentUpdate(ctx, tx, o.ID, orders.PaymentUpdate{
			Status:            next,
			PaymentStatus:     n.Status,
			ProviderReference: n.ProviderRef,
			ChannelLabel:      n.ChannelLabel,
			Code:              n.Code,
			StatusDate:        at,
		})
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		return outbox.Insert(ctx, tx, outbox.Event{
			Topic:    orders.TopicOrderStatus,
			Type:     orders.EventOrderStatusChanged,
			OrderID:  o.ID,
			Producer: s.Producer,
			Payload: orders.OrderStatusChangedPayload{
				OrderID:       o.ID,
				From:          o.Status,
				To:            next,
				Source:        provider,
				PaymentStatus: n.Status,
			},
		})
	})
	if err != nil {
		return Outcome{}, err
	}

	s.Cache.SetStatus(ctx, out.OrderID, redisx.StatusEntry{Status: string(out.Status), PaymentStatus: n.Status, Owner: owner})
	ev := log.Info()
	if !out.Changed {
		ev = log.Debug()
	}
	ev.Str("order_id", out.OrderID).Str("provider", provider).Str("payment_status", n.Status).
		Str("from", string(out.From)).Str("to", string(out.Status)).Msg("payment notification applied")
	return out, nil
}
