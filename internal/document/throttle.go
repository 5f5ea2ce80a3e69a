package document

import (
	"time"

	"scout-portal/internal/domain"
)

const DefaultResubmitWindow = 24 * time.Hour

// Guard rate-limits how often a guardian may replace a document. It is a
// pure function of the slot, the latest approved unlock and the clock.
type Guard struct {
	Window time.Duration
}

func NewGuard(window time.Duration) Guard {
	if window <= 0 {
		window = DefaultResubmitWindow
	}
	return Guard{Window: window}
}

type Decision struct {
	Allowed    bool          `json:"allowed"`
	RetryAfter time.Duration `json:"-"`
	// Unlocked is set when only an approved unlock request let the upload
	// through.
	Unlocked bool `json:"unlocked"`
}

// CanUpload reports whether slot may receive a new file at now. A slot
// that was never uploaded to is always open. Inside the window the only
// way through is an approved unlock request filed after the last upload.
func (g Guard) CanUpload(slot *domain.DocumentSlot, unlock *domain.UnlockRequest, now time.Time) Decision {
	if slot.IsMissing() {
		return Decision{Allowed: true}
	}

	last := *slot.LastModifiedAt
	elapsed := now.Sub(last)
	if elapsed >= g.Window {
		return Decision{Allowed: true}
	}

	if unlocks(slot, unlock) {
		return Decision{Allowed: true, Unlocked: true}
	}

	retry := g.Window - elapsed
	if retry > g.Window {
		// last upload is in the future (clock skew), never ask for more
		// than a full window
		retry = g.Window
	}
	if retry < 0 {
		retry = 0
	}
	return Decision{Allowed: false, RetryAfter: retry}
}

func unlocks(slot *domain.DocumentSlot, unlock *domain.UnlockRequest) bool {
	if unlock == nil || unlock.State != domain.UnlockApproved {
		return false
	}
	if unlock.ChildID != slot.ChildID || unlock.DocType != slot.DocType {
		return false
	}
	return unlock.RequestedAt.After(*slot.LastModifiedAt)
}
