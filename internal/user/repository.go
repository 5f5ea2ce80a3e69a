package user

import (
	"context"

	"scout-portal/internal/domain"

	"gorm.io/gorm"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id uint64) (*domain.User, error)
	Deactivate(ctx context.Context, id uint64) error
	IncrementTokenVersion(ctx context.Context, id uint64) error
}

type UserRepositoryImpl struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) UserRepository {
	return &UserRepositoryImpl{db: db}
}

func (r *UserRepositoryImpl) Create(ctx context.Context, user *domain.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *UserRepositoryImpl) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepositoryImpl) FindByID(ctx context.Context, id uint64) (*domain.User, error) {
	var user domain.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepositoryImpl) Deactivate(ctx context.Context, id uint64) error {
	return r.update(ctx, id, map[string]interface{}{
		"is_active":     false,
		"token_version": gorm.Expr("token_version + 1"),
	})
}

// IncrementTokenVersion invalidates every token issued so far.
func (r *UserRepositoryImpl) IncrementTokenVersion(ctx context.Context, id uint64) error {
	return r.update(ctx, id, map[string]interface{}{
		"token_version": gorm.Expr("token_version + 1"),
	})
}

func (r *UserRepositoryImpl) update(ctx context.Context, id uint64, columns map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Updates(columns)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
