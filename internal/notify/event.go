package notify

import (
	"fmt"
	"time"

	"scout-portal/internal/domain"
)

type EventType string

const (
	EventDocumentSubmitted EventType = "document.submitted"
	EventDocumentApproved  EventType = "document.approved"
	EventDocumentRejected  EventType = "document.rejected"
	EventUnlockRequested   EventType = "unlock.requested"
	EventUnlockApproved    EventType = "unlock.approved"
	EventUnlockRejected    EventType = "unlock.rejected"
)

// Event describes a state transition the other party should hear about.
type Event struct {
	Type       EventType           `json:"type"`
	ChildID    uint64              `json:"child_id"`
	DocType    domain.DocumentType `json:"doc_type"`
	SlotID     uint64              `json:"slot_id,omitempty"`
	RequestID  uint64              `json:"request_id,omitempty"`
	Version    uint64              `json:"version,omitempty"`
	ActorID    uint64              `json:"actor_id"`
	Note       string              `json:"note,omitempty"`
	OccurredAt time.Time           `json:"occurred_at"`
}

func (e Event) Title() string {
	switch e.Type {
	case EventDocumentSubmitted:
		return "New document to review"
	case EventDocumentApproved:
		return "Document approved"
	case EventDocumentRejected:
		return "Document rejected"
	case EventUnlockRequested:
		return "Unlock requested"
	case EventUnlockApproved:
		return "Unlock approved"
	case EventUnlockRejected:
		return "Unlock rejected"
	}
	return string(e.Type)
}

func (e Event) Message() string {
	msg := fmt.Sprintf("%s for child %d", e.DocType, e.ChildID)
	if e.Version > 0 {
		msg += fmt.Sprintf(" (version %d)", e.Version)
	}
	if e.Note != "" {
		msg += ": " + e.Note
	}
	return msg
}
