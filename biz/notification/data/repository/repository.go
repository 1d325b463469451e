// Package repository stores notifications.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/sohan284/social-media-go/biz/notification/structs"
)

type NotificationRepository interface {
	Create(ctx context.Context, n *structs.Notification) error
	ListByUser(ctx context.Context, userID string, unreadOnly bool, before time.Time, limit int) ([]*structs.Notification, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id, userID string) (bool, error)
	MarkAllRead(ctx context.Context, userID string) error
	Delete(ctx context.Context, id, userID string) (bool, error)
}

type notificationRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) (NotificationRepository, error) {
	if err := InitSchema(context.Background(), db); err != nil {
		return nil, err
	}
	return &notificationRepository{db: db}, nil
}

func InitSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS notifications (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			actor_id TEXT NOT NULL DEFAULT '',
			kind TEXT NOT NULL,
			object_id TEXT NOT NULL DEFAULT '',
			message TEXT NOT NULL,
			read INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications (user_id, read, created_at DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (r *notificationRepository) Create(ctx context.Context, n *structs.Notification) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, actor_id, kind, object_id, message, read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		n.ID,
		n.UserID,
		n.ActorID,
		string(n.Kind),
		n.ObjectID,
		n.Message,
		n.Read,
		n.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID string, unreadOnly bool, before time.Time, limit int) ([]*structs.Notification, error) {
	q := `
		SELECT n.id, n.user_id, n.actor_id, COALESCE(u.username, ''), n.kind,
			n.object_id, n.message, n.read, n.created_at
		FROM notifications n LEFT JOIN users u ON u.id = n.actor_id
		WHERE n.user_id = ? AND n.created_at < ?
	`
	if unreadOnly {
		q += ` AND n.read = 0`
	}
	q += ` ORDER BY n.created_at DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, q, userID, before.UTC().Format(time.RFC3339Nano), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []*structs.Notification
	for rows.Next() {
		var kind, createdAt string
		n := &structs.Notification{}
		if err := rows.Scan(&n.ID, &n.UserID, &n.ActorID, &n.ActorUsername, &kind,
			&n.ObjectID, &n.Message, &n.Read, &createdAt); err != nil {
			return nil, err
		}
		n.Kind = structs.Kind(kind)
		if n.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM notifications WHERE user_id = ? AND read = 0`, userID).Scan(&count)
	return count, err
}

// MarkRead returns false when the notification does not belong to the user.
func (r *notificationRepository) MarkRead(ctx context.Context, id, userID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET read = 1 WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET read = 1 WHERE user_id = ? AND read = 0`, userID)
	return err
}

func (r *notificationRepository) Delete(ctx context.Context, id, userID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
