// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/weavefeed/accounts/internal/auth"
	"github.com/weavefeed/accounts/internal/cache"
	"github.com/weavefeed/accounts/internal/database"
	"github.com/weavefeed/accounts/internal/health"
	"github.com/weavefeed/accounts/internal/metrics"
	"github.com/weavefeed/accounts/internal/model"
	"github.com/weavefeed/accounts/internal/repository"
)

// Username validation regex: letters, digits, underscore, dot and hyphen.
var usernameRegex = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// Throttle limits login attempts per identifier.
type Throttle interface {
	Allow(ctx context.Context, identifier string) (*cache.RateLimitResult, error)
	Reset(ctx context.Context, identifier string) error
}

// AccountService handles account business logic.
type AccountService struct {
	repo     *repository.Repository
	hasher   auth.Hasher
	throttle Throttle
	state    *health.State
	metrics  metrics.Recorder
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time
}

// NewAccountService creates a new AccountService. A nil throttle disables
// login throttling and a nil state skips health tracking.
func NewAccountService(repo *repository.Repository, hasher auth.Hasher, throttle Throttle, state *health.State, recorder metrics.Recorder, logger *slog.Logger) *AccountService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if hasher == nil {
		hasher = auth.DefaultHasher()
	}
	if throttle == nil {
		throttle = cache.NewLoginThrottle(nil, 0, 0)
	}
	if logger == nil {
		logger = slog.Default()
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernameRegex.MatchString(fl.Field().String())
	})

	return &AccountService{
		repo:     repo,
		hasher:   hasher,
		throttle: throttle,
		state:    state,
		metrics:  recorder,
		logger:   logger,
		validate: v,
		now:      time.Now,
	}
}

// SignupRequest defines input for creating an account.
type SignupRequest struct {
	Username    string `validate:"required,min=3,max=32,username"`
	Email       string `validate:"required,max=255,email"`
	Password    string `validate:"required,min=8,max=128"`
	DisplayName string `validate:"omitempty,max=64"`
}

// Signup creates an active, unverified user and its profile.
func (s *AccountService) Signup(ctx context.Context, req SignupRequest) (*model.Account, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	req.DisplayName = strings.TrimSpace(req.DisplayName)

	if err := s.validateRequest(req); err != nil {
		s.metrics.IncSignup("invalid")
		return nil, err
	}

	usernameTaken, emailTaken, err := s.repo.UsernameOrEmailTaken(ctx, req.Username, req.Email)
	if err != nil {
		s.observe(err)
		s.metrics.IncSignup("error")
		return nil, err
	}
	switch {
	case usernameTaken:
		s.metrics.IncSignup("conflict")
		return nil, ErrUsernameExists
	case emailTaken:
		s.metrics.IncSignup("conflict")
		return nil, ErrEmailExists
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		s.metrics.IncSignup("error")
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	user := model.NewUser(req.Username, req.Email, now)
	user.SetPasswordHash(hash)

	displayName := req.DisplayName
	if displayName == "" {
		displayName = req.Username
	}
	profile := model.NewProfile(user.ID, displayName, now)

	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		if err := tx.CreateUser(ctx, user); err != nil {
			return err
		}
		_, err := tx.InsertProfileIfAbsent(ctx, profile)
		return err
	})
	if err != nil {
		// Lost a race with a concurrent signup.
		switch {
		case errors.Is(err, repository.ErrUsernameExists):
			s.metrics.IncSignup("conflict")
			return nil, ErrUsernameExists
		case errors.Is(err, repository.ErrEmailExists):
			s.metrics.IncSignup("conflict")
			return nil, ErrEmailExists
		}
		s.observe(err)
		s.metrics.IncSignup("error")
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	s.observe(nil)

	s.metrics.IncSignup("success")
	s.logger.Info("account created",
		slog.String("user_id", user.ID.String()),
		slog.String("username", user.Username),
	)

	return &model.Account{User: user, Profile: profile}, nil
}

// Login authenticates identifier, a username or email, with password.
func (s *AccountService) Login(ctx context.Context, identifier, password string) (*model.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		s.metrics.IncLogin("failed")
		return nil, ErrInvalidCredentials
	}

	limit, err := s.throttle.Allow(ctx, identifier)
	if err == nil && !limit.Allowed {
		s.metrics.IncLogin("throttled")
		s.logger.Warn("login throttled", slog.Duration("retry_after", limit.RetryAfter))
		return nil, &ThrottledError{RetryAfter: limit.RetryAfter}
	}

	user, err := s.repo.GetUserByLogin(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.metrics.IncLogin("failed")
			return nil, ErrInvalidCredentials
		}
		s.observe(err)
		s.metrics.IncLogin("error")
		return nil, err
	}
	s.observe(nil)

	if !user.IsActive {
		s.metrics.IncLogin("disabled")
		return nil, ErrAccountDisabled
	}
	if !user.HasPassword() {
		s.metrics.IncLogin("failed")
		return nil, ErrInvalidCredentials
	}

	ok, err := s.hasher.Verify(password, *user.PasswordHash)
	if err != nil {
		s.logger.Warn("stored password hash is unreadable",
			slog.String("user_id", user.ID.String()),
			slog.String("error", err.Error()),
		)
	}
	if err != nil || !ok {
		s.metrics.IncLogin("failed")
		return nil, ErrInvalidCredentials
	}

	if err := s.throttle.Reset(ctx, identifier); err != nil {
		s.logger.Warn("failed to reset login throttle", slog.String("error", err.Error()))
	}

	now := s.now().UTC()
	if s.hasher.NeedsRehash(*user.PasswordHash) {
		s.rehash(ctx, user, password, now)
	}

	if err := s.repo.TouchLastLogin(ctx, user.ID, now); err != nil {
		s.observe(err)
		s.metrics.IncLogin("error")
		return nil, fmt.Errorf("failed to record login: %w", err)
	}
	user.LastLogin = &now
	user.UpdatedAt = now

	s.metrics.IncLogin("success")
	s.logger.Info("login succeeded", slog.String("user_id", user.ID.String()))

	return user, nil
}

// rehash upgrades a legacy or weak hash after a successful login. Failures
// are logged; the login itself still succeeds.
func (s *AccountService) rehash(ctx context.Context, user *model.User, password string, now time.Time) {
	hash, err := s.hasher.Hash(password)
	if err == nil {
		err = s.repo.UpdatePasswordHash(ctx, user.ID, hash, now)
	}
	if err != nil {
		s.logger.Warn("failed to upgrade password hash",
			slog.String("user_id", user.ID.String()),
			slog.String("error", err.Error()),
		)
		return
	}
	user.SetPasswordHash(hash)
	s.logger.Info("password hash upgraded", slog.String("user_id", user.ID.String()))
}

// ProviderLink defines input for linking an external identity.
type ProviderLink struct {
	Provider     string `validate:"required,oneof=google apple"`
	ProviderUID  string `validate:"required,max=255"`
	AccessToken  *string
	RefreshToken *string
	ExpiresAt    *time.Time
}

// LinkProvider attaches an external identity to userID. An identity can be
// linked to only one user.
func (s *AccountService) LinkProvider(ctx context.Context, userID uuid.UUID, link ProviderLink) (*model.AuthProvider, error) {
	link.Provider = strings.ToLower(strings.TrimSpace(link.Provider))
	if err := s.validate.Struct(link); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) == 1 && verrs[0].Field() == "Provider" && verrs[0].Tag() == "oneof" {
			return nil, ErrUnknownProvider
		}
		return nil, toValidationError(err)
	}

	if _, err := s.repo.GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrAccountNotFound
		}
		s.observe(err)
		return nil, err
	}

	now := s.now().UTC()
	ap := &model.AuthProvider{
		ID:           uuid.New(),
		UserID:       userID,
		Provider:     link.Provider,
		ProviderUID:  link.ProviderUID,
		AccessToken:  link.AccessToken,
		RefreshToken: link.RefreshToken,
		ExpiresAt:    link.ExpiresAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	inserted, err := s.repo.InsertAuthProviderIfAbsent(ctx, ap)
	if err != nil {
		s.observe(err)
		return nil, err
	}
	if !inserted {
		return nil, ErrProviderLinked
	}

	s.logger.Info("auth provider linked",
		slog.String("user_id", userID.String()),
		slog.String("provider", ap.Provider),
	)
	return ap, nil
}

// GetAccount returns the user with username and its profile.
func (s *AccountService) GetAccount(ctx context.Context, username string) (*model.Account, error) {
	user, err := s.repo.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrAccountNotFound
		}
		s.observe(err)
		return nil, err
	}

	profile, err := s.repo.GetProfileByUserID(ctx, user.ID)
	if err != nil && !errors.Is(err, repository.ErrProfileNotFound) {
		s.observe(err)
		return nil, err
	}
	s.observe(nil)

	return &model.Account{User: user, Profile: profile}, nil
}

func (s *AccountService) validateRequest(req any) error {
	if err := s.validate.Struct(req); err != nil {
		return toValidationError(err)
	}
	return nil
}

func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[strings.ToLower(fe.Field())] = fe.Tag()
	}
	return &ValidationError{Fields: fields}
}

// observe records database reachability on the health state.
func (s *AccountService) observe(err error) {
	if s.state == nil {
		return
	}
	switch {
	case err == nil:
		s.state.MarkHealthy(health.ComponentDatabase)
	case database.IsConnectivity(err):
		s.state.Set(health.ComponentDatabase, health.LevelFullyDegraded, err.Error())
	}
}
