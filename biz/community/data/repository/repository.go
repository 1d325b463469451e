// Package repository stores communities, memberships and join requests.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/sohan284/social-media-go/biz/community/structs"
)

type CommunityRepository interface {
	Create(ctx context.Context, community *structs.Community, owner *structs.Member) error
	Update(ctx context.Context, community *structs.Community) error
	FindByID(ctx context.Context, id string) (*structs.Community, error)
	FindBySlug(ctx context.Context, slug string) (*structs.Community, error)
	List(ctx context.Context, before time.Time, limit int) ([]*structs.Community, error)
	ListPopular(ctx context.Context, limit int) ([]*structs.Community, error)
	Search(ctx context.Context, query string, before time.Time, limit int) ([]*structs.Community, error)
	ListByMember(ctx context.Context, userID string, before time.Time, limit int) ([]*structs.Community, error)
	SlugTaken(ctx context.Context, slug, excludeID string) (bool, error)
	Delete(ctx context.Context, id string) error

	AddMember(ctx context.Context, member *structs.Member) error
	RemoveMember(ctx context.Context, communityID, userID string) (bool, error)
	FindMember(ctx context.Context, communityID, userID string) (*structs.Member, error)
	ListMembers(ctx context.Context, communityID string, before time.Time, limit int) ([]*structs.Member, error)
	SetMemberRole(ctx context.Context, communityID, userID string, role structs.MemberRole) error

	CreateJoinRequest(ctx context.Context, req *structs.JoinRequest) error
	FindJoinRequest(ctx context.Context, id string) (*structs.JoinRequest, error)
	FindPendingRequest(ctx context.Context, communityID, userID string) (*structs.JoinRequest, error)
	ListJoinRequests(ctx context.Context, communityID string, before time.Time, limit int) ([]*structs.JoinRequest, error)
	ResolveJoinRequest(ctx context.Context, req *structs.JoinRequest, approve bool) error
}

type communityRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) (CommunityRepository, error) {
	if err := InitSchema(context.Background(), db); err != nil {
		return nil, err
	}
	return &communityRepository{db: db}, nil
}

func InitSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS communities (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			slug TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			avatar TEXT NOT NULL DEFAULT '',
			cover_photo TEXT NOT NULL DEFAULT '',
			privacy TEXT NOT NULL DEFAULT 'public',
			creator_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			members_count INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS community_members (
			community_id TEXT NOT NULL REFERENCES communities(id) ON DELETE CASCADE,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			role TEXT NOT NULL DEFAULT 'member',
			joined_at TEXT NOT NULL,
			PRIMARY KEY (community_id, user_id)
		);`,
		`CREATE TABLE IF NOT EXISTS community_join_requests (
			id TEXT PRIMARY KEY,
			community_id TEXT NOT NULL REFERENCES communities(id) ON DELETE CASCADE,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_members_user ON community_members (user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_join_requests_community ON community_join_requests (community_id, status);`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Create inserts the community with its owner membership and an initial
// members count of one, atomically.
func (r *communityRepository) Create(ctx context.Context, community *structs.Community, owner *structs.Member) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO communities (id, name, slug, description, avatar, cover_photo,
			privacy, creator_id, members_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
	`,
		community.ID,
		community.Name,
		community.Slug,
		community.Description,
		community.Avatar,
		community.CoverPhoto,
		string(community.Privacy),
		community.CreatorID,
		community.CreatedAt.UTC().Format(time.RFC3339Nano),
		community.UpdatedAt.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO community_members (community_id, user_id, role, joined_at)
		VALUES (?, ?, ?, ?)
	`,
		owner.CommunityID,
		owner.UserID,
		string(owner.Role),
		owner.JoinedAt.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return err
	}
	community.MembersCount = 1
	return tx.Commit()
}

func (r *communityRepository) Update(ctx context.Context, community *structs.Community) error {
	community.UpdatedAt = time.Now()
	_, err := r.db.ExecContext(ctx, `
		UPDATE communities SET name = ?, slug = ?, description = ?, avatar = ?,
			cover_photo = ?, privacy = ?, updated_at = ?
		WHERE id = ?
	`,
		community.Name,
		community.Slug,
		community.Description,
		community.Avatar,
		community.CoverPhoto,
		string(community.Privacy),
		community.UpdatedAt.UTC().Format(time.RFC3339Nano),
		community.ID,
	)
	return err
}

const communityColumns = `id, name, slug, description, avatar, cover_photo,
	privacy, creator_id, members_count, created_at, updated_at`

func (r *communityRepository) FindByID(ctx context.Context, id string) (*structs.Community, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+communityColumns+` FROM communities WHERE id = ?`, id)
	return scanCommunity(row)
}

func (r *communityRepository) FindBySlug(ctx context.Context, slug string) (*structs.Community, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+communityColumns+` FROM communities WHERE slug = ?`, slug)
	return scanCommunity(row)
}

func (r *communityRepository) List(ctx context.Context, before time.Time, limit int) ([]*structs.Community, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+communityColumns+` FROM communities
		WHERE created_at < ? ORDER BY created_at DESC LIMIT ?
	`, before.UTC().Format(time.RFC3339Nano), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCommunities(rows)
}

func (r *communityRepository) ListPopular(ctx context.Context, limit int) ([]*structs.Community, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+communityColumns+` FROM communities
		ORDER BY members_count DESC, created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCommunities(rows)
}

func (r *communityRepository) Search(ctx context.Context, query string, before time.Time, limit int) ([]*structs.Community, error) {
	like := "%" + query + "%"
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+communityColumns+` FROM communities
		WHERE (name LIKE ? OR description LIKE ?) AND created_at < ?
		ORDER BY created_at DESC LIMIT ?
	`, like, like, before.UTC().Format(time.RFC3339Nano), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCommunities(rows)
}

func (r *communityRepository) ListByMember(ctx context.Context, userID string, before time.Time, limit int) ([]*structs.Community, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.slug, c.description, c.avatar, c.cover_photo,
			c.privacy, c.creator_id, c.members_count, c.created_at, c.updated_at
		FROM communities c
		JOIN community_members m ON m.community_id = c.id AND m.user_id = ?
		WHERE c.created_at < ?
		ORDER BY c.created_at DESC LIMIT ?
	`, userID, before.UTC().Format(time.RFC3339Nano), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCommunities(rows)
}

func (r *communityRepository) SlugTaken(ctx context.Context, slug, excludeID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM communities WHERE slug = ? AND id != ?`, slug, excludeID,
	).Scan(&count)
	return count > 0, err
}

func (r *communityRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM communities WHERE id = ?`, id)
	return err
}

// AddMember inserts the membership and bumps the counter atomically.
func (r *communityRepository) AddMember(ctx context.Context, member *structs.Member) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO community_members (community_id, user_id, role, joined_at)
		VALUES (?, ?, ?, ?)
	`,
		member.CommunityID,
		member.UserID,
		string(member.Role),
		member.JoinedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n > 0 {
		if _, err := tx.ExecContext(ctx,
			`UPDATE communities SET members_count = members_count + 1 WHERE id = ?`,
			member.CommunityID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// RemoveMember deletes the membership and lowers the counter atomically.
// Returns false when the user was not a member.
func (r *communityRepository) RemoveMember(ctx context.Context, communityID, userID string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM community_members WHERE community_id = ? AND user_id = ?`,
		communityID, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, tx.Commit()
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE communities SET members_count = members_count - 1 WHERE id = ? AND members_count > 0`,
		communityID); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

func (r *communityRepository) FindMember(ctx context.Context, communityID, userID string) (*structs.Member, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT m.community_id, m.user_id, u.username, m.role, m.joined_at
		FROM community_members m JOIN users u ON u.id = m.user_id
		WHERE m.community_id = ? AND m.user_id = ?
	`, communityID, userID)
	return scanMember(row)
}

func (r *communityRepository) ListMembers(ctx context.Context, communityID string, before time.Time, limit int) ([]*structs.Member, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT m.community_id, m.user_id, u.username, m.role, m.joined_at
		FROM community_members m JOIN users u ON u.id = m.user_id
		WHERE m.community_id = ? AND m.joined_at < ?
		ORDER BY m.joined_at DESC LIMIT ?
	`, communityID, before.UTC().Format(time.RFC3339Nano), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []*structs.Member
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, member)
	}
	return members, rows.Err()
}

func (r *communityRepository) SetMemberRole(ctx context.Context, communityID, userID string, role structs.MemberRole) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE community_members SET role = ? WHERE community_id = ? AND user_id = ?`,
		string(role), communityID, userID)
	return err
}

func (r *communityRepository) CreateJoinRequest(ctx context.Context, req *structs.JoinRequest) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO community_join_requests (id, community_id, user_id, status, created_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		req.ID,
		req.CommunityID,
		req.UserID,
		string(req.Status),
		req.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (r *communityRepository) FindJoinRequest(ctx context.Context, id string) (*structs.JoinRequest, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT r.id, r.community_id, r.user_id, u.username, r.status, r.created_at
		FROM community_join_requests r JOIN users u ON u.id = r.user_id
		WHERE r.id = ?
	`, id)
	return scanJoinRequest(row)
}

func (r *communityRepository) FindPendingRequest(ctx context.Context, communityID, userID string) (*structs.JoinRequest, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT r.id, r.community_id, r.user_id, u.username, r.status, r.created_at
		FROM community_join_requests r JOIN users u ON u.id = r.user_id
		WHERE r.community_id = ? AND r.user_id = ? AND r.status = 'pending'
	`, communityID, userID)
	return scanJoinRequest(row)
}

func (r *communityRepository) ListJoinRequests(ctx context.Context, communityID string, before time.Time, limit int) ([]*structs.JoinRequest, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT r.id, r.community_id, r.user_id, u.username, r.status, r.created_at
		FROM community_join_requests r JOIN users u ON u.id = r.user_id
		WHERE r.community_id = ? AND r.status = 'pending' AND r.created_at < ?
		ORDER BY r.created_at DESC LIMIT ?
	`, communityID, before.UTC().Format(time.RFC3339Nano), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []*structs.JoinRequest
	for rows.Next() {
		req, err := scanJoinRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// ResolveJoinRequest flips the status and, on approval, adds the member
// and bumps the counter in the same transaction.
func (r *communityRepository) ResolveJoinRequest(ctx context.Context, req *structs.JoinRequest, approve bool) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	status := structs.RequestRejected
	if approve {
		status = structs.RequestApproved
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE community_join_requests SET status = ? WHERE id = ?`,
		string(status), req.ID); err != nil {
		return err
	}

	if approve {
		res, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO community_members (community_id, user_id, role, joined_at)
			VALUES (?, ?, 'member', ?)
		`, req.CommunityID, req.UserID, time.Now().UTC().Format(time.RFC3339Nano))
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n > 0 {
			if _, err := tx.ExecContext(ctx,
				`UPDATE communities SET members_count = members_count + 1 WHERE id = ?`,
				req.CommunityID); err != nil {
				return err
			}
		}
	}

	req.Status = status
	return tx.Commit()
}

func scanCommunity(scanner interface{ Scan(dest ...any) error }) (*structs.Community, error) {
	var privacy, createdAt, updatedAt string

	community := &structs.Community{}
	if err := scanner.Scan(&community.ID, &community.Name, &community.Slug,
		&community.Description, &community.Avatar, &community.CoverPhoto, &privacy,
		&community.CreatorID, &community.MembersCount, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	community.Privacy = structs.Privacy(privacy)
	var err error
	if community.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, err
	}
	if community.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, err
	}
	return community, nil
}

func scanMember(scanner interface{ Scan(dest ...any) error }) (*structs.Member, error) {
	var role, joinedAt string

	member := &structs.Member{}
	if err := scanner.Scan(&member.CommunityID, &member.UserID, &member.Username,
		&role, &joinedAt); err != nil {
		return nil, err
	}

	member.Role = structs.MemberRole(role)
	var err error
	if member.JoinedAt, err = time.Parse(time.RFC3339Nano, joinedAt); err != nil {
		return nil, err
	}
	return member, nil
}

func scanJoinRequest(scanner interface{ Scan(dest ...any) error }) (*structs.JoinRequest, error) {
	var status, createdAt string

	req := &structs.JoinRequest{}
	if err := scanner.Scan(&req.ID, &req.CommunityID, &req.UserID, &req.Username,
		&status, &createdAt); err != nil {
		return nil, err
	}

	req.Status = structs.RequestStatus(status)
	var err error
	if req.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, err
	}
	return req, nil
}

func collectCommunities(rows *sql.Rows) ([]*structs.Community, error) {
	var communities []*structs.Community
	for rows.Next() {
		community, err := scanCommunity(rows)
		if err != nil {
			return nil, err
		}
		communities = append(communities, community)
	}
	return communities, rows.Err()
}
