package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/caregrid/caregrid/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct {
	pool *pgxpool.Pool
}

// NewRepoPG creates a Postgres-backed notification repository.
func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if conn := db.ConnFromContext(ctx); conn != nil {
		return conn
	}
	return r.pool
}

const notificationCols = `id, user_id, type, title, message, priority, action_url, data, expires_at, read_at, created_at`

func (r *repoPG) Create(ctx context.Context, n *Notification) error {
	var data []byte
	if n.Data != nil {
		var err error
		data, err = json.Marshal(n.Data)
		if err != nil {
			return fmt.Errorf("encode data: %w", err)
		}
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO user_notifications (id, user_id, type, title, message, priority, action_url, data, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10)`,
		n.ID, n.UserID, n.Type, n.Title, n.Message, n.Priority, n.ActionURL, data, n.ExpiresAt, n.CreatedAt)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Notification, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+notificationCols+` FROM user_notifications WHERE id = $1`, id)
	return scanNotification(row)
}

func (r *repoPG) ListActiveByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, now time.Time, limit, offset int) ([]*Notification, int, error) {
	where := `user_id = $1 AND (expires_at IS NULL OR expires_at > $2)`
	if unreadOnly {
		where += ` AND read_at IS NULL`
	}

	var total int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM user_notifications WHERE `+where, userID, now).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+notificationCols+` FROM user_notifications WHERE `+where+`
		 ORDER BY created_at DESC LIMIT $3 OFFSET $4`, userID, now, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, n)
	}
	return items, total, rows.Err()
}

func (r *repoPG) MarkRead(ctx context.Context, id, userID uuid.UUID, at time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE user_notifications SET read_at = $3
		WHERE id = $1 AND user_id = $2 AND read_at IS NULL`, id, userID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("notification not found or already read")
	}
	return nil
}

func (r *repoPG) MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE user_notifications SET read_at = $2
		WHERE user_id = $1 AND read_at IS NULL`, userID, at)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanNotification(row pgx.Row) (*Notification, error) {
	var (
		n         Notification
		actionURL *string
		data      []byte
	)
	err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.Priority,
		&actionURL, &data, &n.ExpiresAt, &n.ReadAt, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	if actionURL != nil {
		n.ActionURL = *actionURL
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &n.Data); err != nil {
			return nil, fmt.Errorf("decode data: %w", err)
		}
	}
	return &n, nil
}
