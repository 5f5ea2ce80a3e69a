package user

import (
	"context"
	defError "errors"
	"fmt"
	"strings"
	"time"

	"scout-portal/internal/domain"
	"scout-portal/internal/errors"
	"scout-portal/redis"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Service defines the interface for user business logic
type Service interface {
	Register(ctx context.Context, user *domain.User) error
	CreateAccount(ctx context.Context, user *domain.User) error
	Login(ctx context.Context, email, password string) (*domain.User, error)
	GetUserByID(ctx context.Context, id uint64) (*domain.User, error)
	DeactivateUser(ctx context.Context, id uint64) error
	IncreaseTokenVersion(ctx context.Context, id uint64) error
}

type DefaultService struct {
	repository UserRepository
	cache      *redis.Cache
}

func NewService(repository UserRepository, cache *redis.Cache) Service {
	return &DefaultService{repository: repository, cache: cache}
}

func userVersionKey(id uint64) string {
	return fmt.Sprintf("user:%d:version", id)
}

// Register signs up a guardian. Reviewer accounts are only created by
// operators through CreateAccount.
func (s *DefaultService) Register(ctx context.Context, user *domain.User) error {
	user.Role = domain.RoleGuardian
	return s.CreateAccount(ctx, user)
}

func (s *DefaultService) CreateAccount(ctx context.Context, user *domain.User) error {
	if !user.Role.Valid() {
		return errors.UnprocessableEntity("Unknown role", nil)
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))

	_, err := s.repository.FindByEmail(ctx, user.Email)
	if err != nil && !defError.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if err == nil {
		return errors.UnprocessableEntity("User already registered", nil)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return errors.UnprocessableEntity("Password can't be used", err)
	}
	user.PasswordHash = string(hashedPassword)
	user.Password = ""
	user.IsActive = true

	if err := s.repository.Create(ctx, user); err != nil {
		if defError.Is(err, gorm.ErrDuplicatedKey) {
			return errors.UnprocessableEntity("User already registered", err)
		}
		return err
	}

	log.Info().Uint64("user_id", user.ID).Str("role", string(user.Role)).Msg("account created")
	return nil
}

func (s *DefaultService) Login(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.repository.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, errors.Unauthorized("Wrong email or password", err)
	}

	if !user.IsActive {
		return nil, errors.Unauthorized("User is not active", nil)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, errors.Unauthorized("Wrong email or password", err)
	}

	return user, nil
}

// GetUserByID is called on every authenticated request, so results are
// cached until the user's token version changes.
func (s *DefaultService) GetUserByID(ctx context.Context, id uint64) (*domain.User, error) {
	v := s.cache.GetVersion(ctx, userVersionKey(id))
	cacheKey := fmt.Sprintf("user:%d:v:%d", id, v)

	var cached domain.User
	if found, _ := s.cache.Get(ctx, cacheKey, &cached); found {
		return &cached, nil
	}

	user, err := s.repository.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, cacheKey, user, 10*time.Minute)
	return user, nil
}

func (s *DefaultService) DeactivateUser(ctx context.Context, id uint64) error {
	if err := s.repository.Deactivate(ctx, id); err != nil {
		return err
	}
	s.cache.IncrementVersion(ctx, userVersionKey(id))
	return nil
}

func (s *DefaultService) IncreaseTokenVersion(ctx context.Context, id uint64) error {
	if err := s.repository.IncrementTokenVersion(ctx, id); err != nil {
		return err
	}
	s.cache.IncrementVersion(ctx, userVersionKey(id))
	return nil
}
