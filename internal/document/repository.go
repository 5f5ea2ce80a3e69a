package document

import (
	"context"
	"errors"
	"time"

	"scout-portal/internal/domain"

	"gorm.io/gorm"
)

// ErrStaleSlot is returned when a conditional slot write matched no row:
// somebody else changed the slot since it was read.
var ErrStaleSlot = errors.New("document slot changed concurrently")

type DocumentRepository interface {
	FindSlot(ctx context.Context, childID uint64, docType domain.DocumentType) (*domain.DocumentSlot, error)
	FindSlotByID(ctx context.Context, id uint64) (*domain.DocumentSlot, error)
	ListSlotsByChild(ctx context.Context, childID uint64) ([]domain.DocumentSlot, error)
	ListByState(ctx context.Context, state domain.ApprovalState, page, pageSize int) ([]domain.DocumentSlot, DocumentsMeta, error)
	SaveUpload(ctx context.Context, slot *domain.DocumentSlot, expectedVersion uint64, revision *domain.DocumentRevision) error
	SaveReview(ctx context.Context, slot *domain.DocumentSlot, decision domain.ReviewDecision) error
	ListRevisions(ctx context.Context, slotID uint64) ([]domain.DocumentRevision, error)
}

type DocumentRepositoryImpl struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) DocumentRepository {
	return &DocumentRepositoryImpl{db: db}
}

type DocumentsMeta struct {
	Total       int64 `json:"total"`
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	TotalPage   int   `json:"total_page"`
}

func (r *DocumentRepositoryImpl) FindSlot(ctx context.Context, childID uint64, docType domain.DocumentType) (*domain.DocumentSlot, error) {
	var slot domain.DocumentSlot
	err := r.db.WithContext(ctx).
		Where("child_id = ? AND doc_type = ?", childID, docType).
		First(&slot).Error
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

func (r *DocumentRepositoryImpl) FindSlotByID(ctx context.Context, id uint64) (*domain.DocumentSlot, error) {
	var slot domain.DocumentSlot
	if err := r.db.WithContext(ctx).First(&slot, id).Error; err != nil {
		return nil, err
	}
	return &slot, nil
}

func (r *DocumentRepositoryImpl) ListSlotsByChild(ctx context.Context, childID uint64) ([]domain.DocumentSlot, error) {
	var slots []domain.DocumentSlot
	err := r.db.WithContext(ctx).
		Where("child_id = ?", childID).
		Order("doc_type ASC").
		Find(&slots).Error
	return slots, err
}

func (r *DocumentRepositoryImpl) ListByState(ctx context.Context, state domain.ApprovalState, page, pageSize int) ([]domain.DocumentSlot, DocumentsMeta, error) {
	var slots []domain.DocumentSlot
	var totalRecords int64

	// Count total records
	if err := r.db.WithContext(ctx).Model(&domain.DocumentSlot{}).
		Where("state = ?", state).
		Count(&totalRecords).Error; err != nil {
		return nil, DocumentsMeta{}, err
	}

	offset := (page - 1) * pageSize
	err := r.db.WithContext(ctx).
		Where("state = ?", state).
		Order("last_modified_at ASC").
		Offset(offset).
		Limit(pageSize).
		Find(&slots).Error

	totalPages := int((totalRecords + int64(pageSize) - 1) / int64(pageSize))

	return slots, DocumentsMeta{
		Total:       totalRecords,
		PerPage:     pageSize,
		TotalPage:   totalPages,
		CurrentPage: page,
	}, err
}

func slotColumns(slot *domain.DocumentSlot) map[string]interface{} {
	return map[string]interface{}{
		"version":           slot.Version,
		"state":             slot.State,
		"file_id":           slot.FileID,
		"file_url":          slot.FileURL,
		"previous_file_id":  slot.PreviousFileID,
		"previous_file_url": slot.PreviousFileURL,
		"rejected_file_id":  slot.RejectedFileID,
		"uploaded_by":       slot.UploadedBy,
		"last_modified_at":  slot.LastModifiedAt,
		"reviewer_id":       slot.ReviewerID,
		"reviewed_at":       slot.ReviewedAt,
		"rejection_reason":  slot.RejectionReason,
		"updated_at":        slot.UpdatedAt,
	}
}

// SaveUpload persists an accepted upload and its revision row in one
// transaction. A new slot is inserted; an existing one is only updated if
// it still carries expectedVersion.
func (r *DocumentRepositoryImpl) SaveUpload(ctx context.Context, slot *domain.DocumentSlot, expectedVersion uint64, revision *domain.DocumentRevision) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		slot.UpdatedAt = now

		if slot.ID == 0 {
			slot.CreatedAt = now
			if err := tx.Create(slot).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return ErrStaleSlot
				}
				return err
			}
		} else {
			res := tx.Model(&domain.DocumentSlot{}).
				Where("id = ? AND version = ?", slot.ID, expectedVersion).
				Updates(slotColumns(slot))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrStaleSlot
			}
		}

		revision.SlotID = slot.ID
		return tx.Create(revision).Error
	})
}

// SaveReview stores a review decision. The write only lands while the slot
// is still pending review at the version that was read.
func (r *DocumentRepositoryImpl) SaveReview(ctx context.Context, slot *domain.DocumentSlot, decision domain.ReviewDecision) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		slot.UpdatedAt = time.Now().UTC()

		res := tx.Model(&domain.DocumentSlot{}).
			Where("id = ? AND version = ? AND state = ?", slot.ID, slot.Version, domain.StatePendingReview).
			Updates(slotColumns(slot))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStaleSlot
		}

		outcome := domain.StateApproved
		if decision == domain.DecisionReject {
			outcome = domain.StateRejected
		}
		return tx.Model(&domain.DocumentRevision{}).
			Where("slot_id = ? AND version = ?", slot.ID, slot.Version).
			Updates(map[string]interface{}{
				"outcome":     outcome,
				"reviewer_id": slot.ReviewerID,
				"reviewed_at": slot.ReviewedAt,
				"note":        slot.RejectionReason,
			}).Error
	})
}

func (r *DocumentRepositoryImpl) ListRevisions(ctx context.Context, slotID uint64) ([]domain.DocumentRevision, error) {
	var revisions []domain.DocumentRevision
	err := r.db.WithContext(ctx).
		Where("slot_id = ?", slotID).
		Order("version DESC").
		Find(&revisions).Error
	return revisions, err
}
