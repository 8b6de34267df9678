package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ariefcatur/beras-storefront/internal/orders"
	"github.com/ariefcatur/beras-storefront/internal/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Record struct {
	ID        int64
	EventID   string
	Topic     string
	Key       string
	EventType string
	Payload   json.RawMessage // envelope lengkap
	CreatedAt time.Time
}

// Event: yang ditulis service ke outbox di dalam tx yang sama dengan perubahan state.
type Event struct {
	Topic     string
	Type      string
	OrderID   string
	Producer  string
	TraceID   string
	Payload   any
	Timestamp time.Time
}

func (e Event) Envelope() (orders.Envelope, error) {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return orders.Envelope{}, fmt.Errorf("marshal payload: %w", err)
	}
	at := e.Timestamp
	if at.IsZero() {
		at = time.Now()
	}
	return orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     e.Type,
		EventVersion:  1,
		OccurredAt:    at.UTC(),
		Producer:      e.Producer,
		TraceID:       e.TraceID,
		CorrelationID: e.OrderID,
		Payload:       payload,
	}, nil
}

func Insert(ctx context.Context, q postgres.DBTX, e Event) error {
	env, err := e.Envelope()
	if err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, `INSERT INTO outbox(event_id, topic, key, event_type, payload) VALUES ($1,$2,$3,$4,$5)`,
		env.EventID, e.Topic, e.OrderID, e.Type, data)
	return err
}

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) FetchPending(ctx context.Context, limit int) ([]Record, error) {
	rows, err := r.DB.Query(ctx, `SELECT id, event_id, topic, key, event_type, payload, created_at
		FROM outbox WHERE sent_at IS NULL ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.Topic, &rec.Key, &rec.EventType, &rec.Payload, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *Repo) MarkSent(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.DB.Exec(ctx, `UPDATE outbox SET sent_at=now() WHERE id = ANY($1)`, ids)
	return err
}
