// Package repository stores posts, reactions, views and follows.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/sohan284/social-media-go/biz/post/structs"
)

type PostRepository interface {
	Create(ctx context.Context, post *structs.Post) error
	Update(ctx context.Context, post *structs.Post) error
	SetStatus(ctx context.Context, id string, status structs.Status) error
	FindByID(ctx context.Context, id string) (*structs.Post, error)
	Delete(ctx context.Context, id string) error
	ListByAuthor(ctx context.Context, authorID string, before time.Time, limit int) ([]*structs.Post, error)
	CountByAuthor(ctx context.Context, authorID string) (int, error)
	CountByAuthorSince(ctx context.Context, authorID string, since time.Time) (int, error)
	ListByStatus(ctx context.Context, status structs.Status, before time.Time, limit int) ([]*structs.Post, error)

	ListFollowedUnseen(ctx context.Context, viewerID string, limit int) ([]*structs.Post, error)
	ListFollowedSeen(ctx context.Context, viewerID string, limit int) ([]*structs.Post, error)
	ListTopEngaged(ctx context.Context, viewerID string, since time.Time, limit int) ([]*structs.Post, error)

	ToggleLike(ctx context.Context, postID, userID string) (bool, error)
	HasLiked(ctx context.Context, postID, userID string) (bool, error)
	AddComment(ctx context.Context, comment *structs.Comment) error
	FindCommentByID(ctx context.Context, id string) (*structs.Comment, error)
	ListComments(ctx context.Context, postID string, before time.Time, limit int) ([]*structs.Comment, error)
	DeleteComment(ctx context.Context, comment *structs.Comment) error
	AddShare(ctx context.Context, share *structs.Share) error
	RecordView(ctx context.Context, postID, userID string) error
}

type FollowRepository interface {
	Toggle(ctx context.Context, followerID, followeeID string) (bool, error)
	IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error)
	ListFollowers(ctx context.Context, userID string, before time.Time, limit int) ([]*structs.FollowUser, error)
	ListFollowing(ctx context.Context, userID string, before time.Time, limit int) ([]*structs.FollowUser, error)
	CountFollowers(ctx context.Context, userID string) (int, error)
	CountFollowing(ctx context.Context, userID string) (int, error)
}

type postRepository struct {
	db *sql.DB
}

type followRepository struct {
	db *sql.DB
}

func NewRepositories(db *sql.DB) (PostRepository, FollowRepository, error) {
	if err := InitSchema(context.Background(), db); err != nil {
		return nil, nil, err
	}
	return &postRepository{db: db}, &followRepository{db: db}, nil
}

func InitSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS posts (
			id TEXT PRIMARY KEY,
			author_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			content TEXT NOT NULL,
			image TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			likes_count INTEGER NOT NULL DEFAULT 0,
			comments_count INTEGER NOT NULL DEFAULT 0,
			shares_count INTEGER NOT NULL DEFAULT 0,
			views_count INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS post_likes (
			post_id TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
			user_id TEXT NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (post_id, user_id)
		);`,
		`CREATE TABLE IF NOT EXISTS post_comments (
			id TEXT PRIMARY KEY,
			post_id TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
			parent_id TEXT NOT NULL DEFAULT '',
			user_id TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS post_shares (
			id TEXT PRIMARY KEY,
			post_id TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
			user_id TEXT NOT NULL,
			caption TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS post_views (
			post_id TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
			user_id TEXT NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (post_id, user_id)
		);`,
		`CREATE TABLE IF NOT EXISTS follows (
			follower_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			followee_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at TEXT NOT NULL,
			PRIMARY KEY (follower_id, followee_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_posts_author ON posts (author_id, created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_posts_status_created ON posts (status, created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_comments_post ON post_comments (post_id, created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_follows_followee ON follows (followee_id);`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (r *postRepository) Create(ctx context.Context, post *structs.Post) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO posts (id, author_id, content, image, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		post.ID,
		post.AuthorID,
		post.Content,
		post.Image,
		string(post.Status),
		post.CreatedAt.UTC().Format(time.RFC3339Nano),
		post.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (r *postRepository) Update(ctx context.Context, post *structs.Post) error {
	post.UpdatedAt = time.Now()
	_, err := r.db.ExecContext(ctx, `
		UPDATE posts SET content = ?, image = ?, status = ?, updated_at = ? WHERE id = ?
	`,
		post.Content,
		post.Image,
		string(post.Status),
		post.UpdatedAt.UTC().Format(time.RFC3339Nano),
		post.ID,
	)
	return err
}

func (r *postRepository) SetStatus(ctx context.Context, id string, status structs.Status) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE posts SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC().Format(time.RFC3339Nano), id)
	return err
}

const postColumns = `p.id, p.author_id, u.username, p.content, p.image, p.status,
	p.likes_count, p.comments_count, p.shares_count, p.views_count, p.created_at, p.updated_at`

const postFrom = ` FROM posts p JOIN users u ON u.id = p.author_id `

func (r *postRepository) FindByID(ctx context.Context, id string) (*structs.Post, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+postColumns+postFrom+`WHERE p.id = ?`, id)
	return scanPost(row)
}

func (r *postRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	return err
}

func (r *postRepository) ListByAuthor(ctx context.Context, authorID string, before time.Time, limit int) ([]*structs.Post, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+postColumns+postFrom+`
		WHERE p.author_id = ? AND p.created_at < ?
		ORDER BY p.created_at DESC LIMIT ?
	`, authorID, before.UTC().Format(time.RFC3339Nano), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPosts(rows)
}

func (r *postRepository) CountByAuthor(ctx context.Context, authorID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM posts WHERE author_id = ?`, authorID).Scan(&count)
	return count, err
}

func (r *postRepository) CountByAuthorSince(ctx context.Context, authorID string, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM posts WHERE author_id = ? AND created_at >= ?`,
		authorID, since.UTC().Format(time.RFC3339Nano)).Scan(&count)
	return count, err
}

func (r *postRepository) ListByStatus(ctx context.Context, status structs.Status, before time.Time, limit int) ([]*structs.Post, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+postColumns+postFrom+`
		WHERE p.status = ? AND p.created_at < ?
		ORDER BY p.created_at DESC LIMIT ?
	`, string(status), before.UTC().Format(time.RFC3339Nano), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPosts(rows)
}

// ListFollowedUnseen returns approved posts from followed authors that the
// viewer has not opened yet, newest first.
func (r *postRepository) ListFollowedUnseen(ctx context.Context, viewerID string, limit int) ([]*structs.Post, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+postColumns+postFrom+`
		JOIN follows f ON f.followee_id = p.author_id AND f.follower_id = ?
		WHERE p.status = 'approved'
		  AND NOT EXISTS (SELECT 1 FROM post_views v WHERE v.post_id = p.id AND v.user_id = ?)
		ORDER BY p.created_at DESC LIMIT ?
	`, viewerID, viewerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPosts(rows)
}

func (r *postRepository) ListFollowedSeen(ctx context.Context, viewerID string, limit int) ([]*structs.Post, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+postColumns+postFrom+`
		JOIN follows f ON f.followee_id = p.author_id AND f.follower_id = ?
		JOIN post_views v ON v.post_id = p.id AND v.user_id = ?
		WHERE p.status = 'approved'
		ORDER BY p.created_at DESC LIMIT ?
	`, viewerID, viewerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPosts(rows)
}

// ListTopEngaged ranks recent approved posts by weighted engagement,
// excluding the viewer's own posts and anything already opened.
func (r *postRepository) ListTopEngaged(ctx context.Context, viewerID string, since time.Time, limit int) ([]*structs.Post, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+postColumns+postFrom+`
		WHERE p.status = 'approved'
		  AND p.created_at >= ?
		  AND p.author_id != ?
		  AND NOT EXISTS (SELECT 1 FROM post_views v WHERE v.post_id = p.id AND v.user_id = ?)
		ORDER BY (p.likes_count + 2 * p.comments_count + 3 * p.shares_count) DESC, p.created_at DESC
		LIMIT ?
	`, since.UTC().Format(time.RFC3339Nano), viewerID, viewerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPosts(rows)
}

// ToggleLike inserts or removes the like and adjusts the counter in the
// same transaction. Returns true when the post ends up liked.
func (r *postRepository) ToggleLike(ctx context.Context, postID, userID string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM post_likes WHERE post_id = ? AND user_id = ?`, postID, userID)
	if err != nil {
		return false, err
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	liked := removed == 0
	if liked {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO post_likes (post_id, user_id, created_at) VALUES (?, ?, ?)`,
			postID, userID, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
			return false, err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE posts SET likes_count = likes_count + 1 WHERE id = ?`, postID); err != nil {
			return false, err
		}
	} else {
		if _, err := tx.ExecContext(ctx,
			`UPDATE posts SET likes_count = likes_count - 1 WHERE id = ? AND likes_count > 0`, postID); err != nil {
			return false, err
		}
	}
	return liked, tx.Commit()
}

func (r *postRepository) HasLiked(ctx context.Context, postID, userID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM post_likes WHERE post_id = ? AND user_id = ?`,
		postID, userID).Scan(&count)
	return count > 0, err
}

func (r *postRepository) AddComment(ctx context.Context, comment *structs.Comment) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO post_comments (id, post_id, parent_id, user_id, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		comment.ID,
		comment.PostID,
		comment.ParentID,
		comment.UserID,
		comment.Content,
		comment.CreatedAt.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE posts SET comments_count = comments_count + 1 WHERE id = ?`, comment.PostID); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *postRepository) FindCommentByID(ctx context.Context, id string) (*structs.Comment, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT c.id, c.post_id, c.parent_id, c.user_id, u.username, c.content, c.created_at
		FROM post_comments c JOIN users u ON u.id = c.user_id
		WHERE c.id = ?
	`, id)
	return scanComment(row)
}

func (r *postRepository) ListComments(ctx context.Context, postID string, before time.Time, limit int) ([]*structs.Comment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.post_id, c.parent_id, c.user_id, u.username, c.content, c.created_at
		FROM post_comments c JOIN users u ON u.id = c.user_id
		WHERE c.post_id = ? AND c.created_at < ?
		ORDER BY c.created_at DESC LIMIT ?
	`, postID, before.UTC().Format(time.RFC3339Nano), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []*structs.Comment
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, comment)
	}
	return comments, rows.Err()
}

func (r *postRepository) DeleteComment(ctx context.Context, comment *structs.Comment) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Replies go with their parent.
	res, err := tx.ExecContext(ctx,
		`DELETE FROM post_comments WHERE id = ? OR parent_id = ?`, comment.ID, comment.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n > 0 {
		if _, err := tx.ExecContext(ctx,
			`UPDATE posts SET comments_count = MAX(comments_count - ?, 0) WHERE id = ?`,
			n, comment.PostID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *postRepository) AddShare(ctx context.Context, share *structs.Share) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO post_shares (id, post_id, user_id, caption, created_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		share.ID,
		share.PostID,
		share.UserID,
		share.Caption,
		share.CreatedAt.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE posts SET shares_count = shares_count + 1 WHERE id = ?`, share.PostID); err != nil {
		return err
	}
	return tx.Commit()
}

// RecordView marks the post seen by the user. Repeat views are no-ops.
func (r *postRepository) RecordView(ctx context.Context, postID, userID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO post_views (post_id, user_id, created_at) VALUES (?, ?, ?)`,
		postID, userID, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n > 0 {
		if _, err := tx.ExecContext(ctx,
			`UPDATE posts SET views_count = views_count + 1 WHERE id = ?`, postID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Toggle follows or unfollows. Returns true when following afterwards.
func (r *followRepository) Toggle(ctx context.Context, followerID, followeeID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM follows WHERE follower_id = ? AND followee_id = ?`, followerID, followeeID)
	if err != nil {
		return false, err
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if removed > 0 {
		return false, nil
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO follows (follower_id, followee_id, created_at) VALUES (?, ?, ?)`,
		followerID, followeeID, time.Now().UTC().Format(time.RFC3339Nano))
	return err == nil, err
}

func (r *followRepository) IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM follows WHERE follower_id = ? AND followee_id = ?`,
		followerID, followeeID).Scan(&count)
	return count > 0, err
}

func (r *followRepository) ListFollowers(ctx context.Context, userID string, before time.Time, limit int) ([]*structs.FollowUser, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT f.follower_id, u.username, f.created_at
		FROM follows f JOIN users u ON u.id = f.follower_id
		WHERE f.followee_id = ? AND f.created_at < ?
		ORDER BY f.created_at DESC LIMIT ?
	`, userID, before.UTC().Format(time.RFC3339Nano), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectFollowUsers(rows)
}

func (r *followRepository) ListFollowing(ctx context.Context, userID string, before time.Time, limit int) ([]*structs.FollowUser, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT f.followee_id, u.username, f.created_at
		FROM follows f JOIN users u ON u.id = f.followee_id
		WHERE f.follower_id = ? AND f.created_at < ?
		ORDER BY f.created_at DESC LIMIT ?
	`, userID, before.UTC().Format(time.RFC3339Nano), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectFollowUsers(rows)
}

func (r *followRepository) CountFollowers(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM follows WHERE followee_id = ?`, userID).Scan(&count)
	return count, err
}

func (r *followRepository) CountFollowing(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM follows WHERE follower_id = ?`, userID).Scan(&count)
	return count, err
}

func scanPost(scanner interface{ Scan(dest ...any) error }) (*structs.Post, error) {
	var status, createdAt, updatedAt string

	post := &structs.Post{}
	if err := scanner.Scan(&post.ID, &post.AuthorID, &post.AuthorUsername, &post.Content,
		&post.Image, &status, &post.LikesCount, &post.CommentsCount, &post.SharesCount,
		&post.ViewsCount, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	post.Status = structs.Status(status)
	var err error
	if post.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, err
	}
	if post.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, err
	}
	return post, nil
}

func scanComment(scanner interface{ Scan(dest ...any) error }) (*structs.Comment, error) {
	var createdAt string

	comment := &structs.Comment{}
	if err := scanner.Scan(&comment.ID, &comment.PostID, &comment.ParentID,
		&comment.UserID, &comment.Username, &comment.Content, &createdAt); err != nil {
		return nil, err
	}

	var err error
	if comment.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, err
	}
	return comment, nil
}

func collectPosts(rows *sql.Rows) ([]*structs.Post, error) {
	var posts []*structs.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

func collectFollowUsers(rows *sql.Rows) ([]*structs.FollowUser, error) {
	var users []*structs.FollowUser
	for rows.Next() {
		var createdAt string
		fu := &structs.FollowUser{}
		if err := rows.Scan(&fu.UserID, &fu.Username, &createdAt); err != nil {
			return nil, err
		}
		var err error
		if fu.FollowedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, err
		}
		users = append(users, fu)
	}
	return users, rows.Err()
}
