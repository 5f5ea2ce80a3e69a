package unlock

import (
	"context"
	"errors"

	"scout-portal/internal/domain"

	"gorm.io/gorm"
)

var (
	// ErrPendingExists is returned when the one-pending-per-document index
	// rejects an insert.
	ErrPendingExists = errors.New("a pending unlock request already exists")
	// ErrAlreadyResolved is returned when a resolve lost the race against
	// another reviewer.
	ErrAlreadyResolved = errors.New("unlock request already resolved")
)

type UnlockRepository interface {
	Create(ctx context.Context, req *domain.UnlockRequest) error
	FindByID(ctx context.Context, id uint64) (*domain.UnlockRequest, error)
	FindPending(ctx context.Context, childID uint64, docType domain.DocumentType) (*domain.UnlockRequest, error)
	LatestApproved(ctx context.Context, childID uint64, docType domain.DocumentType) (*domain.UnlockRequest, error)
	Resolve(ctx context.Context, req *domain.UnlockRequest) error
	ListByState(ctx context.Context, state domain.UnlockState, page, pageSize int) ([]domain.UnlockRequest, RequestsMeta, error)
	ListByChild(ctx context.Context, childID uint64) ([]domain.UnlockRequest, error)
}

type UnlockRepositoryImpl struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) UnlockRepository {
	return &UnlockRepositoryImpl{db: db}
}

type RequestsMeta struct {
	Total       int64 `json:"total"`
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	TotalPage   int   `json:"total_page"`
}

func (r *UnlockRepositoryImpl) Create(ctx context.Context, req *domain.UnlockRequest) error {
	err := r.db.WithContext(ctx).Create(req).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrPendingExists
	}
	return err
}

func (r *UnlockRepositoryImpl) FindByID(ctx context.Context, id uint64) (*domain.UnlockRequest, error) {
	var req domain.UnlockRequest
	if err := r.db.WithContext(ctx).First(&req, id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

// FindPending returns nil, nil when nothing is pending.
func (r *UnlockRepositoryImpl) FindPending(ctx context.Context, childID uint64, docType domain.DocumentType) (*domain.UnlockRequest, error) {
	return r.first(ctx, childID, docType, domain.UnlockPending)
}

// LatestApproved returns nil, nil when no request was ever approved.
func (r *UnlockRepositoryImpl) LatestApproved(ctx context.Context, childID uint64, docType domain.DocumentType) (*domain.UnlockRequest, error) {
	return r.first(ctx, childID, docType, domain.UnlockApproved)
}

func (r *UnlockRepositoryImpl) first(ctx context.Context, childID uint64, docType domain.DocumentType, state domain.UnlockState) (*domain.UnlockRequest, error) {
	var req domain.UnlockRequest
	err := r.db.WithContext(ctx).
		Where("child_id = ? AND doc_type = ? AND state = ?", childID, docType, state).
		Order("requested_at DESC").
		First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// Resolve writes the outcome only while the request is still pending.
func (r *UnlockRepositoryImpl) Resolve(ctx context.Context, req *domain.UnlockRequest) error {
	res := r.db.WithContext(ctx).
		Model(&domain.UnlockRequest{}).
		Where("id = ? AND state = ?", req.ID, domain.UnlockPending).
		Updates(map[string]interface{}{
			"state":       req.State,
			"reviewer_id": req.ReviewerID,
			"response":    req.Response,
			"resolved_at": req.ResolvedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyResolved
	}
	return nil
}

func (r *UnlockRepositoryImpl) ListByState(ctx context.Context, state domain.UnlockState, page, pageSize int) ([]domain.UnlockRequest, RequestsMeta, error) {
	var requests []domain.UnlockRequest
	var totalRecords int64

	if err := r.db.WithContext(ctx).Model(&domain.UnlockRequest{}).
		Where("state = ?", state).
		Count(&totalRecords).Error; err != nil {
		return nil, RequestsMeta{}, err
	}

	offset := (page - 1) * pageSize
	err := r.db.WithContext(ctx).
		Where("state = ?", state).
		Order("requested_at ASC").
		Offset(offset).
		Limit(pageSize).
		Find(&requests).Error

	totalPages := int((totalRecords + int64(pageSize) - 1) / int64(pageSize))

	return requests, RequestsMeta{
		Total:       totalRecords,
		PerPage:     pageSize,
		TotalPage:   totalPages,
		CurrentPage: page,
	}, err
}

func (r *UnlockRepositoryImpl) ListByChild(ctx context.Context, childID uint64) ([]domain.UnlockRequest, error) {
	var requests []domain.UnlockRequest
	err := r.db.WithContext(ctx).
		Where("child_id = ?", childID).
		Order("requested_at DESC").
		Find(&requests).Error
	return requests, err
}
