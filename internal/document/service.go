package document

import (
	"context"
	defError "errors"
	"fmt"
	"io"
	"time"

	"scout-portal/internal/domain"
	"scout-portal/internal/errors"
	"scout-portal/internal/metrics"
	"scout-portal/internal/notify"
	"scout-portal/internal/storage"
	"scout-portal/redis"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type Service interface {
	GetSlot(ctx context.Context, actor domain.Actor, childID uint64, docType domain.DocumentType) (*domain.DocumentSlot, error)
	ListChildSlots(ctx context.Context, actor domain.Actor, childID uint64) ([]domain.DocumentSlot, error)
	CheckUpload(ctx context.Context, actor domain.Actor, childID uint64, docType domain.DocumentType) (*UploadStatus, error)
	RecordUpload(ctx context.Context, input UploadInput) (*domain.DocumentSlot, error)
	Review(ctx context.Context, input ReviewInput) (*domain.DocumentSlot, error)
	ListPendingReview(ctx context.Context, page, pageSize int) (*PaginatedSlots, error)
	ListRevisions(ctx context.Context, actor domain.Actor, slotID uint64) ([]domain.DocumentRevision, error)
	CurrentFile(ctx context.Context, actor domain.Actor, slotID uint64) (*domain.FileRef, error)
}

// ChildAccess answers whether an actor may see a child's documents.
type ChildAccess interface {
	EnsureAccess(ctx context.Context, actor domain.Actor, childID uint64) error
}

// UnlockLookup finds the most recent approved unlock request for a
// (child, document type), or nil when there is none.
type UnlockLookup interface {
	LatestApproved(ctx context.Context, childID uint64, docType domain.DocumentType) (*domain.UnlockRequest, error)
}

type Option func(*DefaultService)

// WithClock replaces time.Now, used by tests to move through the window.
func WithClock(now func() time.Time) Option {
	return func(s *DefaultService) { s.now = now }
}

type DefaultService struct {
	repository DocumentRepository
	children   ChildAccess
	unlocks    UnlockLookup
	files      storage.FileStore
	cache      *redis.Cache
	events     notify.Publisher
	guard      Guard
	now        func() time.Time
}

func NewService(
	repository DocumentRepository,
	children ChildAccess,
	unlocks UnlockLookup,
	files storage.FileStore,
	cache *redis.Cache,
	events notify.Publisher,
	window time.Duration,
	opts ...Option,
) Service {
	s := &DefaultService{
		repository: repository,
		children:   children,
		unlocks:    unlocks,
		files:      files,
		cache:      cache,
		events:     events,
		guard:      NewGuard(window),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func versionKey(childID uint64) string {
	return fmt.Sprintf("child:%d:docs:version", childID)
}

// invalidate makes the next overview read for the child miss the cache.
func (s *DefaultService) invalidate(ctx context.Context, childID uint64) {
	s.cache.IncrementVersion(ctx, versionKey(childID))
}

func validDocType(docType domain.DocumentType) error {
	if !docType.Valid() {
		return errors.NotFound("Unknown document type", nil)
	}
	return nil
}

// loadSlot returns the stored slot or the implicit missing one.
func (s *DefaultService) loadSlot(ctx context.Context, childID uint64, docType domain.DocumentType) (*domain.DocumentSlot, error) {
	slot, err := s.repository.FindSlot(ctx, childID, docType)
	if defError.Is(err, gorm.ErrRecordNotFound) {
		return domain.MissingSlot(childID, docType), nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading slot: %w", err)
	}
	return slot, nil
}

func (s *DefaultService) GetSlot(ctx context.Context, actor domain.Actor, childID uint64, docType domain.DocumentType) (*domain.DocumentSlot, error) {
	if err := validDocType(docType); err != nil {
		return nil, err
	}
	if err := s.children.EnsureAccess(ctx, actor, childID); err != nil {
		return nil, err
	}
	return s.loadSlot(ctx, childID, docType)
}

// ListChildSlots returns one slot per catalog document type, synthesizing
// missing ones.
func (s *DefaultService) ListChildSlots(ctx context.Context, actor domain.Actor, childID uint64) ([]domain.DocumentSlot, error) {
	if err := s.children.EnsureAccess(ctx, actor, childID); err != nil {
		return nil, err
	}

	v := s.cache.GetVersion(ctx, versionKey(childID))
	cacheKey := fmt.Sprintf("docs:c:%d:v:%d", childID, v)

	var result []domain.DocumentSlot
	if found, _ := s.cache.Get(ctx, cacheKey, &result); found {
		return result, nil
	}

	stored, err := s.repository.ListSlotsByChild(ctx, childID)
	if err != nil {
		return nil, err
	}
	byType := make(map[domain.DocumentType]domain.DocumentSlot, len(stored))
	for _, slot := range stored {
		byType[slot.DocType] = slot
	}

	result = make([]domain.DocumentSlot, 0, len(domain.DocumentTypes))
	for _, docType := range domain.DocumentTypes {
		if slot, ok := byType[docType]; ok {
			result = append(result, slot)
			continue
		}
		result = append(result, *domain.MissingSlot(childID, docType))
	}

	go s.cache.Set(context.Background(), cacheKey, result, time.Hour)

	return result, nil
}

type UploadStatus struct {
	State             domain.ApprovalState `json:"state"`
	Version           uint64               `json:"version"`
	Allowed           bool                 `json:"allowed"`
	Unlocked          bool                 `json:"unlocked"`
	RetryAfterSeconds int64                `json:"retry_after_seconds,omitempty"`
	RetryAt           *time.Time           `json:"retry_at,omitempty"`
}

// evaluate runs the throttle guard against the current slot.
func (s *DefaultService) evaluate(ctx context.Context, slot *domain.DocumentSlot, now time.Time) (Decision, error) {
	var unlock *domain.UnlockRequest
	if !slot.IsMissing() {
		var err error
		unlock, err = s.unlocks.LatestApproved(ctx, slot.ChildID, slot.DocType)
		if err != nil {
			return Decision{}, fmt.Errorf("loading unlock requests: %w", err)
		}
	}
	return s.guard.CanUpload(slot, unlock, now), nil
}

func (s *DefaultService) CheckUpload(ctx context.Context, actor domain.Actor, childID uint64, docType domain.DocumentType) (*UploadStatus, error) {
	slot, err := s.GetSlot(ctx, actor, childID, docType)
	if err != nil {
		return nil, err
	}

	now := s.now()
	decision, err := s.evaluate(ctx, slot, now)
	if err != nil {
		return nil, err
	}

	status := &UploadStatus{
		State:    slot.State,
		Version:  slot.Version,
		Allowed:  decision.Allowed,
		Unlocked: decision.Unlocked,
	}
	if !decision.Allowed {
		retryAt := now.Add(decision.RetryAfter)
		status.RetryAt = &retryAt
		status.RetryAfterSeconds = errors.RetryAfterSeconds(decision.RetryAfter)
	}
	return status, nil
}

type UploadInput struct {
	ChildID     uint64
	DocType     domain.DocumentType
	Actor       domain.Actor
	ContentType string
	Extension   string
	Body        io.Reader
	// ExpectedVersion, when set, must match the slot version read by the
	// client.
	ExpectedVersion *uint64
}

// RecordUpload accepts a new file for a slot. All policy checks run
// before anything is stored.
func (s *DefaultService) RecordUpload(ctx context.Context, input UploadInput) (*domain.DocumentSlot, error) {
	slot, err := s.GetSlot(ctx, input.Actor, input.ChildID, input.DocType)
	if err != nil {
		return nil, err
	}

	if input.ExpectedVersion != nil && *input.ExpectedVersion != slot.Version {
		return nil, errors.VersionConflict(*input.ExpectedVersion, slot.Version)
	}

	now := s.now()
	decision, err := s.evaluate(ctx, slot, now)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		metrics.ThrottledUploads.WithLabelValues(string(input.DocType)).Inc()
		return nil, errors.Throttled(decision.RetryAfter)
	}

	ref, err := s.files.Put(ctx, storage.Object{
		Name:        storage.ObjectName(input.ChildID, input.DocType, input.Extension),
		ContentType: input.ContentType,
		Body:        input.Body,
	})
	if err != nil {
		return nil, errors.Upstream("Could not store the file", err)
	}

	readVersion := slot.Version
	applyUpload(slot, ref, input.Actor.ID, now)

	revision := &domain.DocumentRevision{
		Version:    slot.Version,
		FileID:     ref.ID,
		FileURL:    ref.URL,
		UploadedBy: input.Actor.ID,
		UploadedAt: now,
		Outcome:    domain.StatePendingReview,
	}

	if err := s.repository.SaveUpload(ctx, slot, readVersion, revision); err != nil {
		s.discardFile(ref)
		if defError.Is(err, ErrStaleSlot) {
			return nil, s.conflict(ctx, input.ChildID, input.DocType, readVersion)
		}
		return nil, fmt.Errorf("saving upload: %w", err)
	}

	s.invalidate(ctx, slot.ChildID)
	metrics.DocumentUploads.WithLabelValues(string(slot.DocType)).Inc()
	log.Info().
		Uint64("slot_id", slot.ID).
		Uint64("child_id", slot.ChildID).
		Str("doc_type", string(slot.DocType)).
		Uint64("version", slot.Version).
		Bool("unlocked", decision.Unlocked).
		Msg("document uploaded")

	s.events.Publish(notify.Event{
		Type:       notify.EventDocumentSubmitted,
		ChildID:    slot.ChildID,
		DocType:    slot.DocType,
		SlotID:     slot.ID,
		Version:    slot.Version,
		ActorID:    input.Actor.ID,
		OccurredAt: now,
	})

	return slot, nil
}

// applyUpload moves a slot to pending review with the new file. An approved
// file is kept as the rollback target until the new one is decided.
func applyUpload(slot *domain.DocumentSlot, ref domain.FileRef, guardianID uint64, now time.Time) {
	if slot.State == domain.StateApproved && slot.FileID != "" {
		prevID, prevURL := slot.FileID, slot.FileURL
		slot.PreviousFileID = &prevID
		slot.PreviousFileURL = &prevURL
	}
	slot.FileID = ref.ID
	slot.FileURL = ref.URL
	slot.Version++
	slot.State = domain.StatePendingReview
	slot.LastModifiedAt = &now
	slot.UploadedBy = &guardianID
	slot.ReviewerID = nil
	slot.ReviewedAt = nil
	slot.RejectionReason = nil
	slot.RejectedFileID = nil
}

type ReviewInput struct {
	SlotID          uint64
	Actor           domain.Actor
	Decision        domain.ReviewDecision
	Reason          string
	ExpectedVersion *uint64
}

func (s *DefaultService) Review(ctx context.Context, input ReviewInput) (*domain.DocumentSlot, error) {
	if !input.Actor.Role.CanReview() {
		return nil, errors.Forbidden("Only scouters can review documents", nil)
	}
	switch input.Decision {
	case domain.DecisionApprove:
	case domain.DecisionReject:
		if input.Reason == "" {
			return nil, errors.UnprocessableEntity("A reason is required to reject a document", nil)
		}
	default:
		return nil, errors.UnprocessableEntity("Unknown review decision", nil)
	}

	slot, err := s.repository.FindSlotByID(ctx, input.SlotID)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("Document not found", err)
		}
		return nil, err
	}

	if input.ExpectedVersion != nil && *input.ExpectedVersion != slot.Version {
		return nil, errors.VersionConflict(*input.ExpectedVersion, slot.Version)
	}
	if slot.State != domain.StatePendingReview {
		return nil, errors.InvalidState(fmt.Sprintf("Document is %s, only documents pending review can be reviewed", slot.State))
	}

	now := s.now()
	rolledBack := applyReview(slot, input.Actor.ID, input.Decision, input.Reason, now)

	if err := s.repository.SaveReview(ctx, slot, input.Decision); err != nil {
		if defError.Is(err, ErrStaleSlot) {
			return nil, errors.InvalidState("Document was reviewed or replaced meanwhile")
		}
		return nil, fmt.Errorf("saving review: %w", err)
	}

	s.invalidate(ctx, slot.ChildID)
	metrics.DocumentReviews.WithLabelValues(string(input.Decision), fmt.Sprint(rolledBack)).Inc()
	log.Info().
		Uint64("slot_id", slot.ID).
		Str("decision", string(input.Decision)).
		Bool("rollback", rolledBack).
		Uint64("reviewer_id", input.Actor.ID).
		Msg("document reviewed")

	event := notify.Event{
		Type:       notify.EventDocumentApproved,
		ChildID:    slot.ChildID,
		DocType:    slot.DocType,
		SlotID:     slot.ID,
		Version:    slot.Version,
		ActorID:    input.Actor.ID,
		OccurredAt: now,
	}
	if input.Decision == domain.DecisionReject {
		event.Type = notify.EventDocumentRejected
		event.Note = input.Reason
	}
	s.events.Publish(event)

	return slot, nil
}

// applyReview records the decision on the slot. Rejecting a replacement of
// an approved file rolls the slot back to that file; the rejected one is
// kept only for audit. It reports whether a rollback happened.
func applyReview(slot *domain.DocumentSlot, reviewerID uint64, decision domain.ReviewDecision, reason string, now time.Time) bool {
	slot.ReviewerID = &reviewerID
	slot.ReviewedAt = &now

	if decision == domain.DecisionApprove {
		slot.State = domain.StateApproved
		slot.PreviousFileID = nil
		slot.PreviousFileURL = nil
		slot.RejectionReason = nil
		slot.RejectedFileID = nil
		return false
	}

	slot.RejectionReason = &reason
	prev := slot.PreviousFile()
	if prev == nil {
		slot.State = domain.StateRejected
		return false
	}

	rejected := slot.FileID
	slot.RejectedFileID = &rejected
	slot.FileID = prev.ID
	slot.FileURL = prev.URL
	slot.PreviousFileID = nil
	slot.PreviousFileURL = nil
	slot.State = domain.StateApproved
	return true
}

type PaginatedSlots struct {
	Data []domain.DocumentSlot `json:"data"`
	Meta DocumentsMeta         `json:"meta"`
}

func (s *DefaultService) ListPendingReview(ctx context.Context, page, pageSize int) (*PaginatedSlots, error) {
	slots, meta, err := s.repository.ListByState(ctx, domain.StatePendingReview, page, pageSize)
	if err != nil {
		return nil, err
	}
	if slots == nil {
		slots = []domain.DocumentSlot{}
	}
	return &PaginatedSlots{Data: slots, Meta: meta}, nil
}

// slotForActor loads a slot by id and checks the actor may see its child.
func (s *DefaultService) slotForActor(ctx context.Context, actor domain.Actor, slotID uint64) (*domain.DocumentSlot, error) {
	slot, err := s.repository.FindSlotByID(ctx, slotID)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("Document not found", err)
		}
		return nil, err
	}
	if err := s.children.EnsureAccess(ctx, actor, slot.ChildID); err != nil {
		return nil, err
	}
	return slot, nil
}

func (s *DefaultService) ListRevisions(ctx context.Context, actor domain.Actor, slotID uint64) ([]domain.DocumentRevision, error) {
	if _, err := s.slotForActor(ctx, actor, slotID); err != nil {
		return nil, err
	}
	return s.repository.ListRevisions(ctx, slotID)
}

func (s *DefaultService) CurrentFile(ctx context.Context, actor domain.Actor, slotID uint64) (*domain.FileRef, error) {
	slot, err := s.slotForActor(ctx, actor, slotID)
	if err != nil {
		return nil, err
	}
	ref := slot.File()
	if ref == nil {
		return nil, errors.NotFound("No file uploaded yet", nil)
	}
	return ref, nil
}

// conflict re-reads the slot so the error reports the version that won.
func (s *DefaultService) conflict(ctx context.Context, childID uint64, docType domain.DocumentType, readVersion uint64) error {
	current, err := s.loadSlot(ctx, childID, docType)
	if err != nil {
		return errors.VersionConflict(readVersion, readVersion)
	}
	return errors.VersionConflict(readVersion, current.Version)
}

// discardFile removes a stored file whose upload could not be recorded.
func (s *DefaultService) discardFile(ref domain.FileRef) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.files.Delete(ctx, ref.ID); err != nil {
			log.Warn().Err(err).Str("file_id", ref.ID).Msg("failed to discard orphaned file")
		}
	}()
}
