package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// Handler harus return nil hanya jika proses sukses & boleh commit offset.
type Handler func(ctx context.Context, m kafka.Message) error

type Consumer struct {
	r       *kafka.Reader
	workers int

	// backoff retry handler yang gagal
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

func NewConsumer(brokers []string, group, topic string, workers int) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, workers: workers, MinBackoff: 200 * time.Millisecond, MaxBackoff: 30 * time.Second}
}

// Start membaca topic sampai ctx selesai. Satu partisi selalu jatuh ke worker
// yang sama, jadi urutan per partisi terjaga dan offset hanya di-commit
// setelah handler sukses.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	jobs := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range jobs {
		jobs[i] = make(chan kafka.Message, 64)
		wg.Add(1)
		go func(id int, in <-chan kafka.Message) {
			defer wg.Done()
			for m := range in {
				if err := handleWithRetry(ctx, h, m, c.MinBackoff, c.MaxBackoff); err != nil {
					// ctx selesai; offset tidak di-commit, pesan dibaca ulang setelah restart
					log.Warn().Err(err).Int("worker", id).Int("partition", m.Partition).Int64("offset", m.Offset).Msg("handler abandoned")
					continue
				}
				if err := c.r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
					log.Error().Err(err).Int64("offset", m.Offset).Msg("commit")
				}
			}
		}(i, jobs[i])
	}
	stop := func() {
		for _, ch := range jobs {
			close(ch)
		}
		wg.Wait()
	}

	// dispatcher loop
	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			stop()
			// kecilkan noise saat shutdown
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case jobs[partitionSlot(m.Partition, c.workers)] <- m:
		case <-ctx.Done():
			stop()
			return nil
		}
	}
}

func partitionSlot(partition, workers int) int {
	if partition < 0 {
		partition = -partition
	}
	return partition % workers
}

// handleWithRetry mengulang h dengan exponential backoff sampai sukses atau
// ctx selesai. Pesan berikutnya di partisi yang sama menunggu.
func handleWithRetry(ctx context.Context, h Handler, m kafka.Message, minWait, maxWait time.Duration) error {
	if minWait <= 0 {
		minWait = 200 * time.Millisecond
	}
	if maxWait < minWait {
		maxWait = minWait
	}
	wait := minWait
	for attempt := 1; ; attempt++ {
		err := h(ctx, m)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn().Err(err).Int("attempt", attempt).Int("partition", m.Partition).Int64("offset", m.Offset).
			Dur("retry_in", wait).Msg("handler error")

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		if wait *= 2; wait > maxWait {
			wait = maxWait
		}
	}
}
