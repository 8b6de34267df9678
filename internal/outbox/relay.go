package outbox

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	kafkago "github.com/segmentio/kafka-go"
)

type Store interface {
	FetchPending(ctx context.Context, limit int) ([]Record, error)
	MarkSent(ctx context.Context, ids []int64) error
}

type Publisher interface {
	Publish(ctx context.Context, msgs ...kafkago.Message) error
}

// Relay memindahkan baris outbox ke Kafka. At-least-once: kalau MarkSent gagal,
// batch yang sama akan terkirim ulang, consumer wajib dedup pakai event_id.
type Relay struct {
	Store     Store
	Publisher Publisher
	Interval  time.Duration
	BatchSize int
}

func (r *Relay) Run(ctx context.Context) error {
	interval := r.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		for {
			n, err := r.Flush(ctx)
			if err != nil {
				log.Error().Err(err).Msg("outbox flush")
				break
			}
			if n < r.batch() {
				break
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

func (r *Relay) batch() int {
	if r.BatchSize <= 0 {
		return 100
	}
	return r.BatchSize
}

// Flush mengirim satu batch dan mengembalikan jumlah record yang terkirim.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	recs, err := r.Store.FetchPending(ctx, r.batch())
	if err != nil || len(recs) == 0 {
		return 0, err
	}

	msgs := make([]kafkago.Message, 0, len(recs))
	ids := make([]int64, 0, len(recs))
	for _, rec := range recs {
		msgs = append(msgs, kafkago.Message{
			Topic: rec.Topic,
			Key:   []byte(rec.Key),
			Value: rec.Payload,
			Headers: []kafkago.Header{
				{Key: "x-event-type", Value: []byte(rec.EventType)},
				{Key: "x-event-version", Value: []byte("1")},
				{Key: "x-event-id", Value: []byte(rec.EventID)},
			},
		})
		ids = append(ids, rec.ID)
	}
	if err := r.Publisher.Publish(ctx, msgs...); err != nil {
		return 0, err
	}
	if err := r.Store.MarkSent(ctx, ids); err != nil {
		return 0, err
	}
	log.Debug().Int("count", len(ids)).Msg("outbox relayed")
	return len(ids), nil
}
