// Package repository stores chat rooms, members and messages.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/sohan284/social-media-go/biz/chat/structs"
)

type ChatRepository interface {
	CreateRoom(ctx context.Context, room *structs.Room, memberIDs []string) error
	FindRoom(ctx context.Context, id string) (*structs.Room, error)
	FindDirectRoom(ctx context.Context, userA, userB string) (*structs.Room, error)
	ListRoomsForUser(ctx context.Context, userID string, before time.Time, limit int) ([]*structs.Room, error)
	ListMembers(ctx context.Context, roomID string) ([]*structs.Member, error)
	IsMember(ctx context.Context, roomID, userID string) (bool, error)

	AddMessage(ctx context.Context, message *structs.Message) error
	ListMessages(ctx context.Context, roomID string, before time.Time, limit int) ([]*structs.Message, error)
}

type chatRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) (ChatRepository, error) {
	if err := InitSchema(context.Background(), db); err != nil {
		return nil, err
	}
	return &chatRepository{db: db}, nil
}

func InitSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS chat_rooms (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			is_group INTEGER NOT NULL DEFAULT 0,
			creator_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS chat_room_members (
			room_id TEXT NOT NULL REFERENCES chat_rooms(id) ON DELETE CASCADE,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			joined_at TEXT NOT NULL,
			PRIMARY KEY (room_id, user_id)
		);`,
		`CREATE TABLE IF NOT EXISTS chat_messages (
			id TEXT PRIMARY KEY,
			room_id TEXT NOT NULL REFERENCES chat_rooms(id) ON DELETE CASCADE,
			sender_id TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_chat_members_user ON chat_room_members (user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_chat_messages_room ON chat_messages (room_id, created_at DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// CreateRoom inserts the room and its memberships atomically.
func (r *chatRepository) CreateRoom(ctx context.Context, room *structs.Room, memberIDs []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO chat_rooms (id, name, is_group, creator_id, created_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		room.ID,
		room.Name,
		room.IsGroup,
		room.CreatorID,
		room.CreatedAt.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return err
	}

	joinedAt := time.Now().UTC().Format(time.RFC3339Nano)
	for _, userID := range memberIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO chat_room_members (room_id, user_id, joined_at)
			VALUES (?, ?, ?)
		`, room.ID, userID, joinedAt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *chatRepository) FindRoom(ctx context.Context, id string) (*structs.Room, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, is_group, creator_id, created_at FROM chat_rooms WHERE id = ?`, id)
	return scanRoom(row)
}

// FindDirectRoom locates an existing two-person room between the users.
func (r *chatRepository) FindDirectRoom(ctx context.Context, userA, userB string) (*structs.Room, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT r.id, r.name, r.is_group, r.creator_id, r.created_at
		FROM chat_rooms r
		JOIN chat_room_members a ON a.room_id = r.id AND a.user_id = ?
		JOIN chat_room_members b ON b.room_id = r.id AND b.user_id = ?
		WHERE r.is_group = 0
		LIMIT 1
	`, userA, userB)
	return scanRoom(row)
}

func (r *chatRepository) ListRoomsForUser(ctx context.Context, userID string, before time.Time, limit int) ([]*structs.Room, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT r.id, r.name, r.is_group, r.creator_id, r.created_at
		FROM chat_rooms r
		JOIN chat_room_members m ON m.room_id = r.id AND m.user_id = ?
		WHERE r.created_at < ?
		ORDER BY r.created_at DESC LIMIT ?
	`, userID, before.UTC().Format(time.RFC3339Nano), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []*structs.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

func (r *chatRepository) ListMembers(ctx context.Context, roomID string) ([]*structs.Member, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT m.room_id, m.user_id, u.username, m.joined_at
		FROM chat_room_members m JOIN users u ON u.id = m.user_id
		WHERE m.room_id = ?
	`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []*structs.Member
	for rows.Next() {
		var joinedAt string
		member := &structs.Member{}
		if err := rows.Scan(&member.RoomID, &member.UserID, &member.Username, &joinedAt); err != nil {
			return nil, err
		}
		if member.JoinedAt, err = time.Parse(time.RFC3339Nano, joinedAt); err != nil {
			return nil, err
		}
		members = append(members, member)
	}
	return members, rows.Err()
}

func (r *chatRepository) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM chat_room_members WHERE room_id = ? AND user_id = ?`,
		roomID, userID).Scan(&count)
	return count > 0, err
}

func (r *chatRepository) AddMessage(ctx context.Context, message *structs.Message) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO chat_messages (id, room_id, sender_id, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		message.ID,
		message.RoomID,
		message.SenderID,
		message.Content,
		message.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (r *chatRepository) ListMessages(ctx context.Context, roomID string, before time.Time, limit int) ([]*structs.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT m.id, m.room_id, m.sender_id, u.username, m.content, m.created_at
		FROM chat_messages m JOIN users u ON u.id = m.sender_id
		WHERE m.room_id = ? AND m.created_at < ?
		ORDER BY m.created_at DESC LIMIT ?
	`, roomID, before.UTC().Format(time.RFC3339Nano), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*structs.Message
	for rows.Next() {
		var createdAt string
		message := &structs.Message{}
		if err := rows.Scan(&message.ID, &message.RoomID, &message.SenderID,
			&message.SenderUsername, &message.Content, &createdAt); err != nil {
			return nil, err
		}
		if message.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	return messages, rows.Err()
}

func scanRoom(scanner interface{ Scan(dest ...any) error }) (*structs.Room, error) {
	var createdAt string

	room := &structs.Room{}
	if err := scanner.Scan(&room.ID, &room.Name, &room.IsGroup, &room.CreatorID, &createdAt); err != nil {
		return nil, err
	}

	var err error
	if room.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, err
	}
	return room, nil
}
