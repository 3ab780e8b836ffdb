package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/promodoro/backend/internal/apperrors"
	"github.com/promodoro/backend/internal/auth"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	messageInvalidUsername = "Invalid username."
	messageInvalidPassword = "Invalid password."
)

var (
	errMissingDatabase    = errors.New("users: database connection required")
	errMissingTokenIssuer = errors.New("users: token issuer required")
	errUnknownUser        = errors.New("users: session user not found")
	errStaleClaims        = errors.New("users: session claims no longer match the account")
	errRoleNotAccepted    = errors.New("users: role not accepted")
	errRevokedSession     = errors.New("users: session revoked")
)

const (
	opServiceNew = "users.service.new"
	opRegister   = "users.register"
	opLogin      = "users.login"
	opLogout     = "users.logout"
	opAuthorize  = "users.authorize"
)

func newServiceError(operation, reason string, cause error) error {
	return apperrors.Internal(fmt.Sprintf("%s.%s", operation, reason), cause)
}

// TokenIssuer signs session tokens for authenticated users.
type TokenIssuer interface {
	IssueSessionToken(ctx context.Context, identity auth.SessionIdentity) (auth.IssuedToken, error)
}

// ServiceConfig describes the dependencies required for account management.
type ServiceConfig struct {
	Database   *gorm.DB
	Tokens     TokenIssuer
	IDProvider IDProvider
	Clock      func() time.Time
	Logger     *zap.Logger
	HashCost   int
}

// Service manages accounts and the sessions issued to them.
type Service struct {
	db         *gorm.DB
	tokens     TokenIssuer
	idProvider IDProvider
	now        func() time.Time
	logger     *zap.Logger
	hashCost   int
}

// Session is an authenticated account together with its freshly issued token.
type Session struct {
	User  User
	Token auth.IssuedToken
}

// NewService constructs the account service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.Tokens == nil {
		return nil, newServiceError(opServiceNew, "missing_token_issuer", errMissingTokenIssuer)
	}
	idProvider := cfg.IDProvider
	if idProvider == nil {
		idProvider = NewUUIDProvider()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	hashCost := cfg.HashCost
	if hashCost == 0 {
		hashCost = bcrypt.DefaultCost
	}
	return &Service{
		db:         cfg.Database,
		tokens:     cfg.Tokens,
		idProvider: idProvider,
		now:        clock,
		logger:     logger,
		hashCost:   hashCost,
	}, nil
}

// Register creates an account and signs it in. The first account ever
// registered becomes the super admin.
func (s *Service) Register(ctx context.Context, input RegisterInput) (Session, error) {
	input.Username = normalize(input.Username)
	if err := validate.Struct(input); err != nil {
		return Session{}, apperrors.FromValidation(opRegister+".invalid_request", err, describeRegisterError)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.hashCost)
	if err != nil {
		s.logError(opRegister, "hash_failed", err)
		return Session{}, newServiceError(opRegister, "hash_failed", err)
	}
	userID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opRegister, "id_generation_failed", err)
		return Session{}, newServiceError(opRegister, "id_generation_failed", err)
	}

	var session Session
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var taken int64
		if err := tx.Model(&User{}).Where("username = ?", input.Username).Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return apperrors.FieldInvalid(opRegister+".username_taken", "username",
				fmt.Sprintf("Username %s is already taken.", input.Username))
		}

		var existing int64
		if err := tx.Model(&User{}).Count(&existing).Error; err != nil {
			return err
		}
		role := RoleGeneral
		if existing == 0 {
			role = RoleSuperAdmin
		}

		now := s.now().UTC()
		user := User{
			ID:           userID,
			Username:     input.Username,
			Role:         role,
			PasswordHash: string(hash),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}

		issued, err := s.openSession(ctx, tx, user)
		if err != nil {
			return err
		}
		session = Session{User: user, Token: issued}
		return nil
	})
	if err != nil {
		return Session{}, s.classify(opRegister, err)
	}

	s.logger.Info("user registered", zap.String("user_id", session.User.ID), zap.String("role", string(session.User.Role)))
	return session, nil
}

// Login verifies credentials and issues a new session.
func (s *Service) Login(ctx context.Context, input LoginInput) (Session, error) {
	input.Username = normalize(input.Username)
	if err := validate.Struct(input); err != nil {
		return Session{}, apperrors.FromValidation(opLogin+".invalid_request", err, describeLoginError)
	}

	var session Session
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user User
		err := tx.Where("username = ?", input.Username).Take(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.FieldInvalid(opLogin+".unknown_username", "username", messageInvalidUsername)
		}
		if err != nil {
			return err
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
			return apperrors.FieldInvalid(opLogin+".password_mismatch", "password", messageInvalidPassword)
		}

		issued, err := s.openSession(ctx, tx, user)
		if err != nil {
			return err
		}
		session = Session{User: user, Token: issued}
		return nil
	})
	if err != nil {
		return Session{}, s.classify(opLogin, err)
	}
	return session, nil
}

// Logout revokes the session identified by claims. Revoking an unknown session is not an error.
func (s *Service) Logout(ctx context.Context, claims auth.SessionClaims) error {
	if claims.ID == "" {
		return nil
	}
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND token_id = ?", claims.UserID, claims.ID).
		Delete(&Device{}).Error; err != nil {
		s.logError(opLogout, "delete_failed", err, zap.String("user_id", claims.UserID))
		return newServiceError(opLogout, "delete_failed", err)
	}
	return nil
}

// Authorize checks that claims still describe a live session for an existing
// account. When roles are given, the account's role must be one of them.
// Shadow admin tokens are not tied to a device row.
func (s *Service) Authorize(ctx context.Context, claims auth.SessionClaims, roles ...Role) (User, error) {
	db := s.db.WithContext(ctx)

	var user User
	err := db.Where("id = ?", claims.UserID).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, apperrors.Unauthorized(opAuthorize+".unknown_user", errUnknownUser)
	}
	if err != nil {
		s.logError(opAuthorize, "user_select_failed", err, zap.String("user_id", claims.UserID))
		return User{}, newServiceError(opAuthorize, "user_select_failed", err)
	}
	if user.Username != claims.Username || string(user.Role) != claims.Role {
		return User{}, apperrors.Unauthorized(opAuthorize+".stale_claims", errStaleClaims)
	}
	if len(roles) > 0 && !containsRole(roles, user.Role) {
		return User{}, apperrors.Unauthorized(opAuthorize+".role_not_accepted", errRoleNotAccepted)
	}
	if claims.IsShadowAdmin {
		return user, nil
	}

	var devices int64
	if err := db.Model(&Device{}).
		Where("user_id = ? AND token_id = ?", user.ID, claims.ID).
		Count(&devices).Error; err != nil {
		s.logError(opAuthorize, "device_select_failed", err, zap.String("user_id", user.ID))
		return User{}, newServiceError(opAuthorize, "device_select_failed", err)
	}
	if devices == 0 {
		return User{}, apperrors.Unauthorized(opAuthorize+".revoked_session", errRevokedSession)
	}
	return user, nil
}

func (s *Service) openSession(ctx context.Context, tx *gorm.DB, user User) (auth.IssuedToken, error) {
	tokenID, err := s.idProvider.NewID()
	if err != nil {
		return auth.IssuedToken{}, err
	}
	issued, err := s.tokens.IssueSessionToken(ctx, auth.SessionIdentity{
		UserID:   user.ID,
		Username: user.Username,
		Role:     string(user.Role),
		TokenID:  tokenID,
	})
	if err != nil {
		return auth.IssuedToken{}, err
	}
	if err := tx.Create(&Device{UserID: user.ID, TokenID: tokenID, CreatedAt: s.now().UTC()}).Error; err != nil {
		return auth.IssuedToken{}, err
	}
	return issued, nil
}

func (s *Service) classify(operation string, err error) error {
	if _, ok := apperrors.As(err); ok {
		return err
	}
	s.logError(operation, "store_failed", err)
	return newServiceError(operation, "store_failed", err)
}

func containsRole(roles []Role, role Role) bool {
	for _, accepted := range roles {
		if accepted == role {
			return true
		}
	}
	return false
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("users service error", attrs...)
}
