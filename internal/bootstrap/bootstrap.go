// Package bootstrap brings an empty accounts database to a usable state: it
// creates the baseline schema and seeds the administrator account, all in a
// single transaction, and is safe to run any number of times.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/weavefeed/accounts/internal/auth"
	"github.com/weavefeed/accounts/internal/config"
	"github.com/weavefeed/accounts/internal/database"
	"github.com/weavefeed/accounts/internal/metrics"
	"github.com/weavefeed/accounts/internal/model"
	"github.com/weavefeed/accounts/internal/repository"
	"github.com/weavefeed/accounts/internal/schema"
)

// ErrInvalidSeed is returned when the administrator seed is incomplete.
var ErrInvalidSeed = errors.New("invalid admin seed")

// AdminSeed is the administrator account created on first bootstrap.
type AdminSeed struct {
	Username    string
	Email       string
	Password    string
	DisplayName string
}

// SeedFromConfig builds the seed from the admin section of the configuration.
func SeedFromConfig(cfg config.AdminConfig) AdminSeed {
	return AdminSeed{
		Username:    cfg.Username,
		Email:       cfg.Email,
		Password:    cfg.Password,
		DisplayName: cfg.DisplayName,
	}
}

func (s AdminSeed) validate() error {
	var missing []string
	if strings.TrimSpace(s.Username) == "" {
		missing = append(missing, "username")
	}
	if strings.TrimSpace(s.Email) == "" {
		missing = append(missing, "email")
	}
	if s.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidSeed, strings.Join(missing, ", "))
	}
	if len(s.Username) > model.MaxUsernameLength {
		return fmt.Errorf("%w: username longer than %d", ErrInvalidSeed, model.MaxUsernameLength)
	}
	if len(s.Email) > model.MaxEmailLength {
		return fmt.Errorf("%w: email longer than %d", ErrInvalidSeed, model.MaxEmailLength)
	}
	if len(s.displayName()) > model.MaxDisplayNameLength {
		return fmt.Errorf("%w: display name longer than %d", ErrInvalidSeed, model.MaxDisplayNameLength)
	}
	return nil
}

func (s AdminSeed) displayName() string {
	if s.DisplayName == "" {
		return "Administrator"
	}
	return s.DisplayName
}

// Result describes one bootstrap run.
type Result struct {
	RunID          ulid.ULID     `json:"run_id"`
	UserID         uuid.UUID     `json:"user_id"`
	UserCreated    bool          `json:"user_created"`
	ProfileCreated bool          `json:"profile_created"`
	Duration       time.Duration `json:"duration"`
}

// Bootstrapper creates the baseline schema and the administrator account.
type Bootstrapper struct {
	db      *sql.DB
	dialect database.Dialect
	seed    AdminSeed
	hasher  auth.Hasher
	logger  *slog.Logger
	metrics metrics.Recorder
	now     func() time.Time
}

// Option customises a Bootstrapper.
type Option func(*Bootstrapper)

// WithHasher replaces the default Argon2id hasher.
func WithHasher(h auth.Hasher) Option {
	return func(b *Bootstrapper) { b.hasher = h }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(b *Bootstrapper) { b.now = now }
}

// New creates a Bootstrapper for db.
func New(db *sql.DB, dialect database.Dialect, seed AdminSeed, logger *slog.Logger, recorder metrics.Recorder, opts ...Option) *Bootstrapper {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bootstrapper{
		db:      db,
		dialect: dialect,
		seed:    seed,
		hasher:  auth.DefaultHasher(),
		logger:  logger,
		metrics: recorder,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Bootstrap applies the baseline schema and seeds the administrator.
//
// Everything happens in one transaction: either the schema, the admin user
// and its profile all exist afterwards, or nothing was changed. An admin that
// already exists is left untouched. Unreachable databases yield a
// *database.ConnectivityError and unexpected integrity violations, such as the
// admin email belonging to another user, a *database.ConstraintError.
func (b *Bootstrapper) Bootstrap(ctx context.Context) (*Result, error) {
	start := b.now()
	result := &Result{RunID: ulid.Make()}
	logger := b.logger.With(slog.String("run_id", result.RunID.String()))

	if err := b.seed.validate(); err != nil {
		return nil, err
	}
	if b.seed.Password == config.DefaultAdminPassword {
		logger.Warn("admin account uses the default password; change it after first login",
			slog.String("username", b.seed.Username),
		)
	}

	if err := b.db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("bootstrap failed: %w", database.ClassifyConnect("ping", err))
	}

	// Hash before BEGIN.
	hash, err := b.hasher.Hash(b.seed.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash admin password: %w", err)
	}

	now := start.UTC()
	repo := repository.New(b.db, b.dialect)

	err = database.WithTx(ctx, b.db, func(tx *sql.Tx) error {
		if stmt, args := b.dialect.LockStatement(); stmt != "" {
			if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
				return fmt.Errorf("failed to take bootstrap lock: %w", database.Classify("bootstrap lock", err))
			}
		}

		if err := schema.Apply(ctx, tx, b.dialect); err != nil {
			return err
		}

		txRepo := repo.Bind(tx)

		admin := model.NewUser(b.seed.Username, b.seed.Email, now)
		admin.IsVerified = true
		admin.IsActive = true
		admin.SetPasswordHash(hash)

		created, err := txRepo.InsertUserIfAbsent(ctx, admin)
		if err != nil {
			return err
		}
		result.UserCreated = created
		result.UserID = admin.ID

		if !created {
			id, err := txRepo.GetUserIDByUsername(ctx, b.seed.Username)
			if err != nil {
				return fmt.Errorf("failed to resolve existing admin: %w", err)
			}
			result.UserID = id
		}

		profile := model.NewProfile(result.UserID, b.seed.displayName(), now)
		result.ProfileCreated, err = txRepo.InsertProfileIfAbsent(ctx, profile)
		return err
	})
	if err != nil {
		logger.Error("bootstrap failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("bootstrap failed: %w", err)
	}

	result.Duration = b.now().Sub(start)
	b.metrics.ObserveBootstrapDuration(result.Duration)

	if result.UserCreated {
		b.metrics.IncAdminSeeded()
		logger.Info("admin account created",
			slog.String("username", b.seed.Username),
			slog.String("user_id", result.UserID.String()),
		)
	} else {
		b.metrics.IncAdminSeedSkipped()
		logger.Info("admin account already present, leaving it unchanged",
			slog.String("username", b.seed.Username),
			slog.String("user_id", result.UserID.String()),
		)
	}
	if result.ProfileCreated {
		logger.Info("admin profile created", slog.String("user_id", result.UserID.String()))
	}

	logger.Info("bootstrap complete", slog.Duration("duration", result.Duration))
	return result, nil
}
