// Package repository stores users, profiles and sessions.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/sohan284/social-media-go/core/account/structs"
)

type UserRepository interface {
	Create(ctx context.Context, tx *sql.Tx, user *structs.User) error
	Update(ctx context.Context, user *structs.User) error
	FindByID(ctx context.Context, id string) (*structs.User, error)
	FindByEmail(ctx context.Context, email string) (*structs.User, error)
	FindByUsername(ctx context.Context, username string) (*structs.User, error)
	UsernameTaken(ctx context.Context, username, excludeID string) (bool, error)
	List(ctx context.Context, before time.Time, limit int) ([]*structs.User, error)
	Delete(ctx context.Context, id string) error
}

type ProfileRepository interface {
	Create(ctx context.Context, tx *sql.Tx, profile *structs.Profile) error
	Update(ctx context.Context, profile *structs.Profile) error
	FindByID(ctx context.Context, id string) (*structs.Profile, error)
	FindByUserID(ctx context.Context, userID string) (*structs.Profile, error)
	List(ctx context.Context, before time.Time, limit int) ([]*structs.Profile, error)
	Search(ctx context.Context, query string, before time.Time, limit int) ([]*structs.Profile, error)
	SetSubcategories(ctx context.Context, profileID string, subcategoryIDs []string) error
}

type SessionRepository interface {
	Create(ctx context.Context, session *structs.Session) error
	FindByRefreshToken(ctx context.Context, refreshToken string) (*structs.Session, error)
	DeleteByRefreshToken(ctx context.Context, refreshToken string) error
	DeleteByUserID(ctx context.Context, userID string) error
}

type userRepository struct {
	db *sql.DB
}

type profileRepository struct {
	db *sql.DB
}

type sessionRepository struct {
	db *sql.DB
}

func NewRepositories(db *sql.DB) (UserRepository, ProfileRepository, SessionRepository, error) {
	if err := InitSchema(context.Background(), db); err != nil {
		return nil, nil, nil, err
	}
	return &userRepository{db: db}, &profileRepository{db: db}, &sessionRepository{db: db}, nil
}

func InitSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT 'user',
			email_verified INTEGER NOT NULL DEFAULT 0,
			verification_code TEXT NOT NULL DEFAULT '',
			is_oauth_user INTEGER NOT NULL DEFAULT 0,
			username_set INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS profiles (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
			display_name TEXT NOT NULL DEFAULT '',
			about TEXT NOT NULL DEFAULT '',
			social_link TEXT NOT NULL DEFAULT '',
			avatar TEXT NOT NULL DEFAULT '',
			cover_photo TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS profile_subcategories (
			profile_id TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
			subcategory_id TEXT NOT NULL,
			PRIMARY KEY (profile_id, subcategory_id)
		);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			refresh_token TEXT NOT NULL UNIQUE,
			expires_at TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_profiles_created_at ON profiles (created_at DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (r *userRepository) Create(ctx context.Context, tx *sql.Tx, user *structs.User) error {
	const q = `
		INSERT INTO users (id, username, email, password_hash, role, email_verified,
			verification_code, is_oauth_user, username_set, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	args := []any{
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		user.EmailVerified,
		user.VerificationCode,
		user.IsOAuthUser,
		user.UsernameSet,
		user.CreatedAt.UTC().Format(time.RFC3339Nano),
		user.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, q, args...)
	} else {
		_, err = r.db.ExecContext(ctx, q, args...)
	}
	return err
}

func (r *userRepository) Update(ctx context.Context, user *structs.User) error {
	user.UpdatedAt = time.Now()
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET username = ?, email = ?, password_hash = ?, role = ?,
			email_verified = ?, verification_code = ?, is_oauth_user = ?,
			username_set = ?, updated_at = ?
		WHERE id = ?
	`,
		user.Username,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		user.EmailVerified,
		user.VerificationCode,
		user.IsOAuthUser,
		user.UsernameSet,
		user.UpdatedAt.UTC().Format(time.RFC3339Nano),
		user.ID,
	)
	return err
}

const userColumns = `id, username, email, password_hash, role, email_verified,
	verification_code, is_oauth_user, username_set, created_at, updated_at`

func (r *userRepository) FindByID(ctx context.Context, id string) (*structs.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*structs.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUser(row)
}

func (r *userRepository) FindByUsername(ctx context.Context, username string) (*structs.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	return scanUser(row)
}

func (r *userRepository) UsernameTaken(ctx context.Context, username, excludeID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM users WHERE username = ? AND id != ?`, username, excludeID,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *userRepository) List(ctx context.Context, before time.Time, limit int) ([]*structs.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE created_at < ?
		ORDER BY created_at DESC LIMIT ?
	`, before.UTC().Format(time.RFC3339Nano), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*structs.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	return err
}

func (r *profileRepository) Create(ctx context.Context, tx *sql.Tx, profile *structs.Profile) error {
	const q = `
		INSERT INTO profiles (id, user_id, display_name, about, social_link, avatar,
			cover_photo, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	args := []any{
		profile.ID,
		profile.UserID,
		profile.DisplayName,
		profile.About,
		profile.SocialLink,
		profile.Avatar,
		profile.CoverPhoto,
		profile.CreatedAt.UTC().Format(time.RFC3339Nano),
		profile.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, q, args...)
	} else {
		_, err = r.db.ExecContext(ctx, q, args...)
	}
	return err
}

func (r *profileRepository) Update(ctx context.Context, profile *structs.Profile) error {
	profile.UpdatedAt = time.Now()
	_, err := r.db.ExecContext(ctx, `
		UPDATE profiles SET display_name = ?, about = ?, social_link = ?, avatar = ?,
			cover_photo = ?, updated_at = ?
		WHERE id = ?
	`,
		profile.DisplayName,
		profile.About,
		profile.SocialLink,
		profile.Avatar,
		profile.CoverPhoto,
		profile.UpdatedAt.UTC().Format(time.RFC3339Nano),
		profile.ID,
	)
	return err
}

const profileColumns = `p.id, p.user_id, u.username, p.display_name, p.about,
	p.social_link, p.avatar, p.cover_photo, p.created_at, p.updated_at`

func (r *profileRepository) FindByID(ctx context.Context, id string) (*structs.Profile, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+profileColumns+` FROM profiles p JOIN users u ON u.id = p.user_id
		WHERE p.id = ?
	`, id)
	profile, err := scanProfile(row)
	if err != nil {
		return nil, err
	}
	return r.attachSubcategories(ctx, profile)
}

func (r *profileRepository) FindByUserID(ctx context.Context, userID string) (*structs.Profile, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+profileColumns+` FROM profiles p JOIN users u ON u.id = p.user_id
		WHERE p.user_id = ?
	`, userID)
	profile, err := scanProfile(row)
	if err != nil {
		return nil, err
	}
	return r.attachSubcategories(ctx, profile)
}

func (r *profileRepository) List(ctx context.Context, before time.Time, limit int) ([]*structs.Profile, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+profileColumns+` FROM profiles p JOIN users u ON u.id = p.user_id
		WHERE p.created_at < ?
		ORDER BY p.created_at DESC LIMIT ?
	`, before.UTC().Format(time.RFC3339Nano), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProfiles(rows)
}

func (r *profileRepository) Search(ctx context.Context, query string, before time.Time, limit int) ([]*structs.Profile, error) {
	like := "%" + query + "%"
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+profileColumns+` FROM profiles p JOIN users u ON u.id = p.user_id
		WHERE (u.username LIKE ? OR p.display_name LIKE ?) AND p.created_at < ?
		ORDER BY p.created_at DESC LIMIT ?
	`, like, like, before.UTC().Format(time.RFC3339Nano), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProfiles(rows)
}

func (r *profileRepository) SetSubcategories(ctx context.Context, profileID string, subcategoryIDs []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM profile_subcategories WHERE profile_id = ?`, profileID); err != nil {
		return err
	}
	for _, id := range subcategoryIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO profile_subcategories (profile_id, subcategory_id) VALUES (?, ?)`,
			profileID, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *profileRepository) attachSubcategories(ctx context.Context, profile *structs.Profile) (*structs.Profile, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT subcategory_id FROM profile_subcategories WHERE profile_id = ?`, profile.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	profile.Subcategories = ids
	return profile, nil
}

func (r *sessionRepository) Create(ctx context.Context, session *structs.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, refresh_token, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		session.ID,
		session.UserID,
		session.RefreshToken,
		session.ExpiresAt.UTC().Format(time.RFC3339Nano),
		session.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (r *sessionRepository) FindByRefreshToken(ctx context.Context, refreshToken string) (*structs.Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, refresh_token, expires_at, created_at
		FROM sessions WHERE refresh_token = ?
	`, refreshToken)

	session := &structs.Session{}
	var expiresAt, createdAt string
	if err := row.Scan(&session.ID, &session.UserID, &session.RefreshToken, &expiresAt, &createdAt); err != nil {
		return nil, err
	}
	var err error
	if session.ExpiresAt, err = time.Parse(time.RFC3339Nano, expiresAt); err != nil {
		return nil, err
	}
	if session.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, err
	}
	return session, nil
}

func (r *sessionRepository) DeleteByRefreshToken(ctx context.Context, refreshToken string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE refresh_token = ?`, refreshToken)
	return err
}

func (r *sessionRepository) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID)
	return err
}

func scanUser(scanner interface{ Scan(dest ...any) error }) (*structs.User, error) {
	var role, createdAt, updatedAt string

	user := &structs.User{}
	if err := scanner.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash,
		&role, &user.EmailVerified, &user.VerificationCode, &user.IsOAuthUser,
		&user.UsernameSet, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	user.Role = structs.Role(role)
	var err error
	if user.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, err
	}
	if user.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, err
	}
	return user, nil
}

func scanProfile(scanner interface{ Scan(dest ...any) error }) (*structs.Profile, error) {
	var createdAt, updatedAt string

	profile := &structs.Profile{}
	if err := scanner.Scan(&profile.ID, &profile.UserID, &profile.Username,
		&profile.DisplayName, &profile.About, &profile.SocialLink, &profile.Avatar,
		&profile.CoverPhoto, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if profile.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, err
	}
	if profile.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, err
	}
	return profile, nil
}

func collectProfiles(rows *sql.Rows) ([]*structs.Profile, error) {
	var profiles []*structs.Profile
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return profiles, nil
}
