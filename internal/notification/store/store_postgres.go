package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"propnest/internal/notification/models"
	id "propnest/pkg/domain"
	"propnest/pkg/platform/tx"
)

// PostgresStore writes the outbox table. Append joins the transaction in ctx
// so the event commits with the status change that produced it.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const eventColumns = `id, event_type, audience, property_id, recipient_id, payload, created_at, published_at`

func (s *PostgresStore) Append(ctx context.Context, events ...*models.Event) error {
	query := `
		INSERT INTO notification_outbox (` + eventColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	conn := tx.Conn(ctx, s.db)
	for _, e := range events {
		payload, err := json.Marshal(e.Payload)
		if err != nil {
			return fmt.Errorf("marshal outbox payload: %w", err)
		}
		var recipient uuid.NullUUID
		if !e.RecipientID.IsNil() {
			recipient = uuid.NullUUID{UUID: uuid.UUID(e.RecipientID), Valid: true}
		}
		_, err = conn.ExecContext(ctx, query,
			e.ID, string(e.Type), string(e.Audience), uuid.UUID(e.PropertyID), recipient,
			payload, e.CreatedAt, e.PublishedAt,
		)
		if err != nil {
			return fmt.Errorf("insert outbox entry: %w", err)
		}
	}
	return nil
}

// ListPending locks up to limit unpublished rows, oldest first. Concurrent
// relays skip rows another relay holds, so call it inside a transaction that
// also marks the rows published.
func (s *PostgresStore) ListPending(ctx context.Context, limit int) ([]*models.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM notification_outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`
	rows, err := tx.Conn(ctx, s.db).QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending outbox entries: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *PostgresStore) MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	raw := make([]string, len(ids))
	for i, v := range ids {
		raw[i] = v.String()
	}
	query := `UPDATE notification_outbox SET published_at = $1 WHERE id = ANY($2::uuid[]) AND published_at IS NULL`
	if _, err := tx.Conn(ctx, s.db).ExecContext(ctx, query, at, pq.Array(raw)); err != nil {
		return fmt.Errorf("mark outbox entries published: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByProperty(ctx context.Context, propertyID id.PropertyID) ([]*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM notification_outbox WHERE property_id = $1 ORDER BY created_at, id`
	rows, err := tx.Conn(ctx, s.db).QueryContext(ctx, query, uuid.UUID(propertyID))
	if err != nil {
		return nil, fmt.Errorf("query outbox entries: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]*models.Event, error) {
	var out []*models.Event
	for rows.Next() {
		var (
			e           models.Event
			eventType   string
			audience    string
			propertyID  uuid.UUID
			recipient   uuid.NullUUID
			payload     []byte
			publishedAt sql.NullTime
		)
		if err := rows.Scan(&e.ID, &eventType, &audience, &propertyID, &recipient,
			&payload, &e.CreatedAt, &publishedAt); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		if err := json.Unmarshal(payload, &e.Payload); err != nil {
			return nil, fmt.Errorf("decode outbox payload: %w", err)
		}
		e.Type = models.EventType(eventType)
		e.Audience = models.Audience(audience)
		e.PropertyID = id.PropertyID(propertyID)
		if recipient.Valid {
			e.RecipientID = id.UserID(recipient.UUID)
		}
		if publishedAt.Valid {
			t := publishedAt.Time
			e.PublishedAt = &t
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox entries: %w", err)
	}
	return out, nil
}
