package domain

import (
	"slices"
	"time"
)

type DocumentType string

const (
	DocDNI                   DocumentType = "dni"
	DocHealthCard            DocumentType = "health_card"
	DocMedicalForm           DocumentType = "medical_form"
	DocImageAuthorization    DocumentType = "image_authorization"
	DocParentalAuthorization DocumentType = "parental_authorization"
)

// DocumentTypes is the catalog of documents every child must hand in.
var DocumentTypes = []DocumentType{
	DocDNI,
	DocHealthCard,
	DocMedicalForm,
	DocImageAuthorization,
	DocParentalAuthorization,
}

func (t DocumentType) Valid() bool {
	return slices.Contains(DocumentTypes, t)
}

type ApprovalState string

const (
	StateMissing       ApprovalState = "missing"
	StatePendingReview ApprovalState = "pending_review"
	StateApproved      ApprovalState = "approved"
	StateRejected      ApprovalState = "rejected"
)

type ReviewDecision string

const (
	DecisionApprove ReviewDecision = "approve"
	DecisionReject  ReviewDecision = "reject"
)

// FileRef points at a file held by the external storage service.
type FileRef struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// DocumentSlot is the single submission record for a (child, document type)
// pair. Version only ever grows; the row is never deleted.
type DocumentSlot struct {
	ID              uint64        `json:"id"`
	ChildID         uint64        `gorm:"not null;uniqueIndex:idx_slot_child_type" json:"child_id"`
	DocType         DocumentType  `gorm:"type:varchar(50);not null;uniqueIndex:idx_slot_child_type" json:"doc_type"`
	Version         uint64        `gorm:"not null;default:0" json:"version"`
	State           ApprovalState `gorm:"type:varchar(20);not null;default:missing;index" json:"state"`
	FileID          string        `json:"file_id,omitempty"`
	FileURL         string        `json:"file_url,omitempty"`
	PreviousFileID  *string       `json:"previous_file_id,omitempty"`
	PreviousFileURL *string       `json:"previous_file_url,omitempty"`
	RejectedFileID  *string       `json:"rejected_file_id,omitempty"`
	UploadedBy      *uint64       `json:"uploaded_by,omitempty"`
	LastModifiedAt  *time.Time    `json:"last_modified_at,omitempty"`
	ReviewerID      *uint64       `json:"reviewer_id,omitempty"`
	ReviewedAt      *time.Time    `json:"reviewed_at,omitempty"`
	RejectionReason *string       `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// MissingSlot returns the implicit slot of a pair that has never been
// uploaded to.
func MissingSlot(childID uint64, docType DocumentType) *DocumentSlot {
	return &DocumentSlot{
		ChildID: childID,
		DocType: docType,
		State:   StateMissing,
	}
}

func (s *DocumentSlot) IsMissing() bool {
	return s == nil || s.State == StateMissing || s.LastModifiedAt == nil
}

func (s *DocumentSlot) File() *FileRef {
	if s.FileID == "" {
		return nil
	}
	return &FileRef{ID: s.FileID, URL: s.FileURL}
}

func (s *DocumentSlot) PreviousFile() *FileRef {
	if s.PreviousFileID == nil {
		return nil
	}
	ref := &FileRef{ID: *s.PreviousFileID}
	if s.PreviousFileURL != nil {
		ref.URL = *s.PreviousFileURL
	}
	return ref
}

// DocumentRevision is the append-only audit trail of accepted uploads.
type DocumentRevision struct {
	ID         uint64        `json:"id"`
	SlotID     uint64        `gorm:"not null;uniqueIndex:idx_revision_slot_version" json:"slot_id"`
	Version    uint64        `gorm:"not null;uniqueIndex:idx_revision_slot_version" json:"version"`
	FileID     string        `gorm:"not null" json:"file_id"`
	FileURL    string        `json:"file_url"`
	UploadedBy uint64        `gorm:"not null" json:"uploaded_by"`
	UploadedAt time.Time     `gorm:"not null" json:"uploaded_at"`
	Outcome    ApprovalState `gorm:"type:varchar(20);not null" json:"outcome"`
	ReviewerID *uint64       `json:"reviewer_id,omitempty"`
	ReviewedAt *time.Time    `json:"reviewed_at,omitempty"`
	Note       *string       `json:"note,omitempty"`
}
