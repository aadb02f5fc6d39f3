package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/weavefeed/accounts/internal/database"
	"github.com/weavefeed/accounts/internal/model"
)

// Errors for external identity links.
var (
	ErrProviderNotFound = errors.New("auth provider not found")
	ErrProviderLinked   = errors.New("provider identity already linked")
)

// InsertAuthProviderIfAbsent links p unless (provider, provider_uid) is
// already linked. It reports whether the row was written.
func (r *Repository) InsertAuthProviderIfAbsent(ctx context.Context, p *model.AuthProvider) (bool, error) {
	inserted, err := database.InsertIfAbsent(ctx, r.q, r.dialect, database.Insert{
		Table: "auth_providers",
		Columns: []string{
			"id", "user_id", "provider", "provider_uid",
			"access_token", "refresh_token", "expires_at", "created_at", "updated_at",
		},
		Values: []any{
			p.ID,
			p.UserID,
			p.Provider,
			p.ProviderUID,
			p.AccessToken,
			p.RefreshToken,
			p.ExpiresAt,
			p.CreatedAt,
			p.UpdatedAt,
		},
		ConflictColumns: []string{"provider", "provider_uid"},
	})
	if err != nil {
		return false, fmt.Errorf("failed to link auth provider: %w", err)
	}
	return inserted, nil
}

// GetAuthProvider looks up a link by provider and provider-side identifier.
func (r *Repository) GetAuthProvider(ctx context.Context, provider, providerUID string) (*model.AuthProvider, error) {
	query := `
		SELECT id, user_id, provider, provider_uid, access_token, refresh_token, expires_at, created_at, updated_at
		FROM auth_providers
		WHERE provider = ? AND provider_uid = ?
	`

	var p model.AuthProvider
	var access, refresh sql.NullString
	var expires sql.NullTime
	err := r.queryRow(ctx, query, provider, providerUID).Scan(
		&p.ID,
		&p.UserID,
		&p.Provider,
		&p.ProviderUID,
		&access,
		&refresh,
		&expires,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProviderNotFound
		}
		return nil, fmt.Errorf("failed to get auth provider: %w", database.Classify("get auth provider", err))
	}

	if access.Valid {
		p.AccessToken = &access.String
	}
	if refresh.Valid {
		p.RefreshToken = &refresh.String
	}
	if expires.Valid {
		t := expires.Time.UTC()
		p.ExpiresAt = &t
	}
	return &p, nil
}
