package domain

import "time"

type UnlockState string

const (
	UnlockPending  UnlockState = "pending"
	UnlockApproved UnlockState = "approved"
	UnlockRejected UnlockState = "rejected"
)

// UnlockRequest is a guardian's ask to lift the re-submission window of a
// document early. Once resolved it is never changed again.
//
// The partial unique index keeps at most one pending request per
// (child, document type).
type UnlockRequest struct {
	ID          uint64       `json:"id"`
	ChildID     uint64       `gorm:"not null;index;uniqueIndex:idx_unlock_one_pending,where:state = 'pending'" json:"child_id"`
	DocType     DocumentType `gorm:"type:varchar(50);not null;uniqueIndex:idx_unlock_one_pending,where:state = 'pending'" json:"doc_type"`
	GuardianID  uint64       `gorm:"not null;index" json:"guardian_id"`
	Reason      *string      `json:"reason,omitempty"`
	State       UnlockState  `gorm:"type:varchar(20);not null;default:pending;index" json:"state"`
	ReviewerID  *uint64      `json:"reviewer_id,omitempty"`
	Response    *string      `json:"response,omitempty"`
	RequestedAt time.Time    `gorm:"not null" json:"requested_at"`
	ResolvedAt  *time.Time   `json:"resolved_at,omitempty"`
}

func (r *UnlockRequest) IsPending() bool {
	return r.State == UnlockPending
}
