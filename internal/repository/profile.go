package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/weavefeed/accounts/internal/database"
	"github.com/weavefeed/accounts/internal/model"
)

// ErrProfileNotFound is returned when a user has no profile row.
var ErrProfileNotFound = errors.New("profile not found")

func profileInsert(p *model.Profile) database.Insert {
	return database.Insert{
		Table:           "profiles",
		Columns:         []string{"id", "user_id", "display_name", "bio", "created_at", "updated_at"},
		Values:          []any{p.ID, p.UserID, p.DisplayName, p.Bio, p.CreatedAt, p.UpdatedAt},
		ConflictColumns: []string{"user_id"},
	}
}

// InsertProfileIfAbsent inserts p unless its user already has a profile.
func (r *Repository) InsertProfileIfAbsent(ctx context.Context, p *model.Profile) (bool, error) {
	inserted, err := database.InsertIfAbsent(ctx, r.q, r.dialect, profileInsert(p))
	if err != nil {
		return false, fmt.Errorf("failed to insert profile: %w", err)
	}
	return inserted, nil
}

// GetProfileByUserID retrieves the profile belonging to userID.
func (r *Repository) GetProfileByUserID(ctx context.Context, userID uuid.UUID) (*model.Profile, error) {
	query := `
		SELECT id, user_id, display_name, bio, created_at, updated_at
		FROM profiles
		WHERE user_id = ?
	`

	var p model.Profile
	var bio sql.NullString
	err := r.queryRow(ctx, query, userID).Scan(
		&p.ID,
		&p.UserID,
		&p.DisplayName,
		&bio,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", database.Classify("get profile", err))
	}

	if bio.Valid {
		p.Bio = &bio.String
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()

	return &p, nil
}

// CountProfilesByUserID returns how many profiles belong to userID (0 or 1).
func (r *Repository) CountProfilesByUserID(ctx context.Context, userID uuid.UUID) (int, error) {
	return r.count(ctx, "count profiles", `SELECT COUNT(*) FROM profiles WHERE user_id = ?`, userID)
}

// CountProfiles returns the total number of profiles.
func (r *Repository) CountProfiles(ctx context.Context) (int, error) {
	return r.count(ctx, "count profiles", `SELECT COUNT(*) FROM profiles`)
}
