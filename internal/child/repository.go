package child

import (
	"context"
	"errors"

	"scout-portal/internal/domain"

	"gorm.io/gorm"
)

var ErrAlreadyLinked = errors.New("guardian already linked to child")

type ChildRepository interface {
	Create(ctx context.Context, child *domain.Child) error
	FindByID(ctx context.Context, id uint64) (*domain.Child, error)
	List(ctx context.Context, page, pageSize int) ([]domain.Child, ChildrenMeta, error)
	ListByGuardian(ctx context.Context, guardianID uint64, page, pageSize int) ([]domain.Child, ChildrenMeta, error)
	IsGuardian(ctx context.Context, childID, guardianID uint64) (bool, error)
	LinkGuardian(ctx context.Context, link *domain.Guardianship) error
}

type ChildRepositoryImpl struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) ChildRepository {
	return &ChildRepositoryImpl{db: db}
}

type ChildrenMeta struct {
	Total       int64 `json:"total"`
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	TotalPage   int   `json:"total_page"`
}

func newMeta(total int64, page, pageSize int) ChildrenMeta {
	return ChildrenMeta{
		Total:       total,
		CurrentPage: page,
		PerPage:     pageSize,
		TotalPage:   int((total + int64(pageSize) - 1) / int64(pageSize)),
	}
}

func (r *ChildRepositoryImpl) Create(ctx context.Context, child *domain.Child) error {
	return r.db.WithContext(ctx).Create(child).Error
}

func (r *ChildRepositoryImpl) FindByID(ctx context.Context, id uint64) (*domain.Child, error) {
	var child domain.Child
	if err := r.db.WithContext(ctx).First(&child, id).Error; err != nil {
		return nil, err
	}
	return &child, nil
}

func (r *ChildRepositoryImpl) List(ctx context.Context, page, pageSize int) ([]domain.Child, ChildrenMeta, error) {
	var children []domain.Child
	var total int64

	if err := r.db.WithContext(ctx).Model(&domain.Child{}).Count(&total).Error; err != nil {
		return nil, ChildrenMeta{}, err
	}

	err := r.db.WithContext(ctx).
		Order("last_name ASC, first_name ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&children).Error

	return children, newMeta(total, page, pageSize), err
}

func (r *ChildRepositoryImpl) ListByGuardian(ctx context.Context, guardianID uint64, page, pageSize int) ([]domain.Child, ChildrenMeta, error) {
	var children []domain.Child
	var total int64

	linked := r.db.Model(&domain.Guardianship{}).Select("child_id").Where("guardian_id = ?", guardianID)

	if err := r.db.WithContext(ctx).Model(&domain.Child{}).
		Where("id IN (?)", linked).
		Count(&total).Error; err != nil {
		return nil, ChildrenMeta{}, err
	}

	err := r.db.WithContext(ctx).
		Where("id IN (?)", linked).
		Order("last_name ASC, first_name ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&children).Error

	return children, newMeta(total, page, pageSize), err
}

func (r *ChildRepositoryImpl) IsGuardian(ctx context.Context, childID, guardianID uint64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Guardianship{}).
		Where("child_id = ? AND guardian_id = ?", childID, guardianID).
		Count(&count).Error
	return count > 0, err
}

func (r *ChildRepositoryImpl) LinkGuardian(ctx context.Context, link *domain.Guardianship) error {
	err := r.db.WithContext(ctx).Create(link).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrAlreadyLinked
	}
	return err
}
