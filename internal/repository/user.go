package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/weavefeed/accounts/internal/database"
	"github.com/weavefeed/accounts/internal/model"
)

// Common errors for user repository operations.
var (
	ErrUserNotFound   = errors.New("user not found")
	ErrUsernameExists = errors.New("username already exists")
	ErrEmailExists    = errors.New("email already exists")
)

const userColumns = `id, username, email, password_hash, is_verified, is_active, last_login, created_at, updated_at`

func userInsert(user *model.User) database.Insert {
	return database.Insert{
		Table: "users",
		Columns: []string{
			"id", "username", "email", "password_hash",
			"is_verified", "is_active", "last_login", "created_at", "updated_at",
		},
		Values: []any{
			user.ID,
			user.Username,
			user.Email,
			user.PasswordHash,
			user.IsVerified,
			user.IsActive,
			user.LastLogin,
			user.CreatedAt,
			user.UpdatedAt,
		},
		ConflictColumns: []string{"username"},
	}
}

// InsertUserIfAbsent inserts user unless the username is already taken.
// It reports whether the row was written. Any other uniqueness conflict, such
// as a taken email, is returned as *database.ConstraintError.
func (r *Repository) InsertUserIfAbsent(ctx context.Context, user *model.User) (bool, error) {
	inserted, err := database.InsertIfAbsent(ctx, r.q, r.dialect, userInsert(user))
	if err != nil {
		return false, fmt.Errorf("failed to insert user: %w", err)
	}
	return inserted, nil
}

// CreateUser inserts a new user into the database.
func (r *Repository) CreateUser(ctx context.Context, user *model.User) error {
	inserted, err := database.InsertIfAbsent(ctx, r.q, r.dialect, userInsert(user))
	if err != nil {
		var ce *database.ConstraintError
		if errors.As(err, &ce) && ce.Unique() && ce.Involves("email") {
			return ErrEmailExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	if !inserted {
		return ErrUsernameExists
	}
	return nil
}

// GetUserByID retrieves a user by their ID.
func (r *Repository) GetUserByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return r.scanUser(ctx, "get user by ID", query, id)
}

// GetUserByUsername retrieves a user by username.
func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = ?`
	return r.scanUser(ctx, "get user by username", query, username)
}

// GetUserByLogin retrieves a user whose username or email equals login.
func (r *Repository) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = ? OR email = ? LIMIT 1`
	return r.scanUser(ctx, "get user by login", query, login, login)
}

// GetUserIDByUsername returns only the ID of the user with username.
func (r *Repository) GetUserIDByUsername(ctx context.Context, username string) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.queryRow(ctx, `SELECT id FROM users WHERE username = ?`, username).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, ErrUserNotFound
		}
		return uuid.Nil, fmt.Errorf("failed to get user id: %w", database.Classify("get user id", err))
	}
	return id, nil
}

// CountUsersByUsername returns how many users carry username (0 or 1).
func (r *Repository) CountUsersByUsername(ctx context.Context, username string) (int, error) {
	return r.count(ctx, "count users", `SELECT COUNT(*) FROM users WHERE username = ?`, username)
}

// CountUsers returns the total number of users.
func (r *Repository) CountUsers(ctx context.Context) (int, error) {
	return r.count(ctx, "count users", `SELECT COUNT(*) FROM users`)
}

// UsernameOrEmailTaken reports which of username and email are already in use.
func (r *Repository) UsernameOrEmailTaken(ctx context.Context, username, email string) (usernameTaken, emailTaken bool, err error) {
	n, err := r.count(ctx, "check username", `SELECT COUNT(*) FROM users WHERE username = ?`, username)
	if err != nil {
		return false, false, err
	}
	m, err := r.count(ctx, "check email", `SELECT COUNT(*) FROM users WHERE email = ?`, email)
	if err != nil {
		return false, false, err
	}
	return n > 0, m > 0, nil
}

// TouchLastLogin records a successful login at now.
func (r *Repository) TouchLastLogin(ctx context.Context, id uuid.UUID, now time.Time) error {
	now = now.UTC()
	res, err := r.exec(ctx, "update last login",
		`UPDATE users SET last_login = ?, updated_at = ? WHERE id = ?`, now, now, id)
	if err != nil {
		return err
	}
	return requireOne(res, ErrUserNotFound)
}

// UpdatePasswordHash replaces the stored password hash.
func (r *Repository) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string, now time.Time) error {
	res, err := r.exec(ctx, "update password hash",
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`, hash, now.UTC(), id)
	if err != nil {
		return err
	}
	return requireOne(res, ErrUserNotFound)
}

func (r *Repository) scanUser(ctx context.Context, op, query string, args ...any) (*model.User, error) {
	var user model.User
	var passwordHash sql.NullString
	var lastLogin sql.NullTime

	err := r.queryRow(ctx, query, args...).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&passwordHash,
		&user.IsVerified,
		&user.IsActive,
		&lastLogin,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to %s: %w", op, database.Classify(op, err))
	}

	if passwordHash.Valid {
		user.SetPasswordHash(passwordHash.String)
	}
	if lastLogin.Valid {
		t := lastLogin.Time.UTC()
		user.LastLogin = &t
	}
	user.CreatedAt = user.CreatedAt.UTC()
	user.UpdatedAt = user.UpdatedAt.UTC()

	return &user, nil
}

func requireOne(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
