package users

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	minPasswordLength = 6
	resetTokenTTL     = time.Hour
)

// User-facing failures; the messages are shown verbatim by clients.
var (
	ErrEmailAlreadyRegistered = errors.New("This email is already registered")
	ErrWeakPassword           = errors.New("Password should be at least 6 characters")
	ErrInvalidEmail           = errors.New("Invalid email address")
	ErrInvalidCredentials     = errors.New("Invalid email or password. Please try again.")
	ErrInvalidResetToken      = errors.New("Password reset link is invalid or has expired")
	ErrAccountNotFound        = errors.New("users: account not found")
)

var errMissingDatabase = errors.New("users: database connection required")

// ServiceConfig describes the dependencies required for account management.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	HashCost   int
	Logger     *zap.Logger
	NewTokenID func() string
}

// Service manages email/password accounts and their profiles.
type Service struct {
	db         *gorm.DB
	now        func() time.Time
	hashCost   int
	logger     *zap.Logger
	validate   *validator.Validate
	newTokenID func() string
}

// NewService constructs the account service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	hashCost := cfg.HashCost
	if hashCost == 0 {
		hashCost = bcrypt.DefaultCost
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	newTokenID := cfg.NewTokenID
	if newTokenID == nil {
		newTokenID = func() string { return uuid.NewString() }
	}
	return &Service{
		db:         cfg.Database,
		now:        clock,
		hashCost:   hashCost,
		logger:     logger,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		newTokenID: newTokenID,
	}, nil
}

// SignUpRequest carries the fields needed to open an account.
type SignUpRequest struct {
	Email       string
	Password    string
	DisplayName string
}

// SignUp creates an account and returns its session.
func (s *Service) SignUp(ctx context.Context, request SignUpRequest) (Session, error) {
	email := normalizeEmail(request.Email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return Session{}, ErrInvalidEmail
	}
	if len(request.Password) < minPasswordLength {
		return Session{}, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(request.Password), s.hashCost)
	if err != nil {
		return Session{}, fmt.Errorf("users: hash password: %w", err)
	}
	userID, err := uuid.NewV7()
	if err != nil {
		return Session{}, fmt.Errorf("users: generate id: %w", err)
	}

	account := Account{
		UserID:       userID.String(),
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  normalize(request.DisplayName),
		LastLoginAt:  s.now().UTC(),
	}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&account)
	if result.Error != nil {
		s.logger.Error("account insert failed", zap.String("email", email), zap.Error(result.Error))
		return Session{}, result.Error
	}
	if result.RowsAffected == 0 {
		return Session{}, ErrEmailAlreadyRegistered
	}
	return account.Session(), nil
}

// Login verifies the credentials and returns the matching session.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	normalized := normalizeEmail(email)
	if err := s.validate.Var(normalized, "required,email"); err != nil {
		return Session{}, ErrInvalidEmail
	}
	account, err := s.findByEmail(ctx, normalized)
	if errors.Is(err, ErrAccountNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}
	_ = s.db.WithContext(ctx).Model(&Account{}).
		Where("user_id = ?", account.UserID).
		Update("last_login_at", s.now().UTC()).
		Error
	return account.Session(), nil
}

// Profile returns the stored session view of the account.
func (s *Service) Profile(ctx context.Context, userID string) (Session, error) {
	var account Account
	err := s.db.WithContext(ctx).Where("user_id = ?", normalize(userID)).Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Session{}, ErrAccountNotFound
	}
	if err != nil {
		return Session{}, err
	}
	return account.Session(), nil
}

// ProfileUpdate lists the editable profile fields; nil leaves a field unchanged.
type ProfileUpdate struct {
	DisplayName *string
	PhotoURL    *string
}

// UpdateProfile applies the update and returns the refreshed session.
func (s *Service) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (Session, error) {
	updates := map[string]interface{}{}
	if update.DisplayName != nil {
		updates["user_display_name"] = normalize(*update.DisplayName)
	}
	if update.PhotoURL != nil {
		photoURL := normalize(*update.PhotoURL)
		if photoURL != "" {
			if err := s.validate.Var(photoURL, "url"); err != nil {
				return Session{}, fmt.Errorf("users: invalid photo url: %w", err)
			}
		}
		updates["user_photo_url"] = photoURL
	}
	if len(updates) > 0 {
		result := s.db.WithContext(ctx).Model(&Account{}).Where("user_id = ?", normalize(userID)).Updates(updates)
		if result.Error != nil {
			return Session{}, result.Error
		}
		if result.RowsAffected == 0 {
			return Session{}, ErrAccountNotFound
		}
	}
	return s.Profile(ctx, userID)
}

// RequestPasswordReset issues a one-time reset token for the account.
// Unknown emails yield an empty token and no error so callers cannot probe for accounts.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	normalized := normalizeEmail(email)
	if err := s.validate.Var(normalized, "required,email"); err != nil {
		return "", ErrInvalidEmail
	}
	account, err := s.findByEmail(ctx, normalized)
	if errors.Is(err, ErrAccountNotFound) {
		s.logger.Info("password reset requested for unknown email")
		return "", nil
	}
	if err != nil {
		return "", err
	}
	token := s.newTokenID()
	expiresAt := s.now().UTC().Add(resetTokenTTL).Unix()
	if err := s.db.WithContext(ctx).Model(&Account{}).
		Where("user_id = ?", account.UserID).
		Updates(map[string]interface{}{
			"reset_token_hash":   hashToken(token),
			"reset_expires_at_s": expiresAt,
		}).Error; err != nil {
		return "", err
	}
	return token, nil
}

// ResetPassword consumes a reset token and replaces the password.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if normalize(token) == "" {
		return ErrInvalidResetToken
	}
	if len(newPassword) < minPasswordLength {
		return ErrWeakPassword
	}
	var account Account
	err := s.db.WithContext(ctx).Where("reset_token_hash = ?", hashToken(normalize(token))).Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrInvalidResetToken
	}
	if err != nil {
		return err
	}
	if account.ResetExpiresSeconds < s.now().UTC().Unix() {
		return ErrInvalidResetToken
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.hashCost)
	if err != nil {
		return fmt.Errorf("users: hash password: %w", err)
	}
	return s.db.WithContext(ctx).Model(&Account{}).
		Where("user_id = ?", account.UserID).
		Updates(map[string]interface{}{
			"password_hash":      string(hash),
			"reset_token_hash":   "",
			"reset_expires_at_s": 0,
		}).Error
}

func (s *Service) findByEmail(ctx context.Context, email string) (Account, error) {
	var account Account
	err := s.db.WithContext(ctx).Where("user_email = ?", email).Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Account{}, ErrAccountNotFound
	}
	return account, err
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
