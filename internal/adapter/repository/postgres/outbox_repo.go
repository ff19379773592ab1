package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ZeelJavia/txnzero/internal/domain"
	"github.com/ZeelJavia/txnzero/internal/router"
	"github.com/ZeelJavia/txnzero/internal/usecase"
)

// OutboxRepo implements usecase.OutboxRepository. Events are staged in
// the same transaction as the ledger writes they describe and drained by
// the relay worker.
type OutboxRepo struct {
	router *router.Router[*pgxpool.Pool]
}

// NewOutboxRepo creates a new OutboxRepo.
func NewOutboxRepo(r *router.Router[*pgxpool.Pool]) *OutboxRepo {
	return &OutboxRepo{router: r}
}

// Create stages a notification event within a transaction.
func (r *OutboxRepo) Create(ctx context.Context, tx usecase.Transaction, event *domain.NotificationEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	q := r.txQuerier(tx)
	_, err = q.Exec(ctx, `
		INSERT INTO outbox_events (id, event_type, target, payload, created_at, published)
		VALUES ($1, $2, $3, $4, $5, false)`,
		event.ID,
		event.Type,
		event.Target,
		payload,
		timeToPgTimestamptz(event.OccurredAt),
	)

	return err
}

// GetUnpublished retrieves staged events oldest first.
func (r *OutboxRepo) GetUnpublished(ctx context.Context, limit int) ([]*domain.NotificationEvent, error) {
	rows, err := r.router.Primary().Query(ctx, `
		SELECT payload FROM outbox_events
		WHERE published = false
		ORDER BY created_at
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*domain.NotificationEvent
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}

		var event domain.NotificationEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, err
		}
		events = append(events, &event)
	}

	return events, rows.Err()
}

// MarkPublished marks an event as delivered to the bus.
func (r *OutboxRepo) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	_, err := r.router.Primary().Exec(ctx, `
		UPDATE outbox_events
		SET published = true, published_at = $2
		WHERE id = $1`,
		id, timeToPgTimestamptz(publishedAt),
	)

	return err
}

// DeletePublished prunes delivered events older than the given time.
func (r *OutboxRepo) DeletePublished(ctx context.Context, before time.Time) error {
	_, err := r.router.Primary().Exec(ctx, `
		DELETE FROM outbox_events
		WHERE published = true AND published_at < $1`,
		timeToPgTimestamptz(before),
	)

	return err
}

func (r *OutboxRepo) txQuerier(tx usecase.Transaction) querier {
	if tx == nil {
		return r.router.Primary()
	}

	return tx.(*Tx).PgxTx()
}
