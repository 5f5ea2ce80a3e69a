package unlock

import (
	"context"
	defError "errors"
	"fmt"
	"time"

	"scout-portal/internal/domain"
	"scout-portal/internal/errors"
	"scout-portal/internal/metrics"
	"scout-portal/internal/notify"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type Service interface {
	FileRequest(ctx context.Context, actor domain.Actor, childID uint64, docType domain.DocumentType, reason string) (*domain.UnlockRequest, error)
	Resolve(ctx context.Context, input ResolveInput) (*domain.UnlockRequest, error)
	ListByState(ctx context.Context, state domain.UnlockState, page, pageSize int) (*PaginatedRequests, error)
	ListForChild(ctx context.Context, actor domain.Actor, childID uint64) ([]domain.UnlockRequest, error)
	LatestApproved(ctx context.Context, childID uint64, docType domain.DocumentType) (*domain.UnlockRequest, error)
}

type ChildAccess interface {
	EnsureAccess(ctx context.Context, actor domain.Actor, childID uint64) error
}

type Option func(*DefaultService)

func WithClock(now func() time.Time) Option {
	return func(s *DefaultService) { s.now = now }
}

type DefaultService struct {
	repository UnlockRepository
	children   ChildAccess
	events     notify.Publisher
	now        func() time.Time
}

func NewService(repository UnlockRepository, children ChildAccess, events notify.Publisher, opts ...Option) Service {
	s := &DefaultService{
		repository: repository,
		children:   children,
		events:     events,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FileRequest asks a reviewer to lift the re-submission window early. It
// does not check that a block is currently active.
func (s *DefaultService) FileRequest(ctx context.Context, actor domain.Actor, childID uint64, docType domain.DocumentType, reason string) (*domain.UnlockRequest, error) {
	if !docType.Valid() {
		return nil, errors.NotFound("Unknown document type", nil)
	}
	if actor.Role != domain.RoleGuardian {
		return nil, errors.Forbidden("Only guardians can request an unlock", nil)
	}
	if err := s.children.EnsureAccess(ctx, actor, childID); err != nil {
		return nil, err
	}

	pending, err := s.repository.FindPending(ctx, childID, docType)
	if err != nil {
		return nil, fmt.Errorf("checking pending unlock requests: %w", err)
	}
	if pending != nil {
		return nil, errors.DuplicateRequest("An unlock request for this document is already waiting for a reviewer")
	}

	req := &domain.UnlockRequest{
		ChildID:     childID,
		DocType:     docType,
		GuardianID:  actor.ID,
		State:       domain.UnlockPending,
		RequestedAt: s.now(),
	}
	if reason != "" {
		req.Reason = &reason
	}

	if err := s.repository.Create(ctx, req); err != nil {
		if defError.Is(err, ErrPendingExists) {
			return nil, errors.DuplicateRequest("An unlock request for this document is already waiting for a reviewer")
		}
		return nil, fmt.Errorf("creating unlock request: %w", err)
	}

	metrics.UnlockRequests.WithLabelValues("filed").Inc()
	log.Info().
		Uint64("request_id", req.ID).
		Uint64("child_id", childID).
		Str("doc_type", string(docType)).
		Uint64("guardian_id", actor.ID).
		Msg("unlock requested")

	s.events.Publish(notify.Event{
		Type:       notify.EventUnlockRequested,
		ChildID:    childID,
		DocType:    docType,
		RequestID:  req.ID,
		ActorID:    actor.ID,
		Note:       reason,
		OccurredAt: req.RequestedAt,
	})

	return req, nil
}

type ResolveInput struct {
	RequestID uint64
	Actor     domain.Actor
	Decision  domain.ReviewDecision
	Response  string
}

func (s *DefaultService) Resolve(ctx context.Context, input ResolveInput) (*domain.UnlockRequest, error) {
	if !input.Actor.Role.CanReview() {
		return nil, errors.Forbidden("Only scouters can resolve unlock requests", nil)
	}

	var state domain.UnlockState
	switch input.Decision {
	case domain.DecisionApprove:
		state = domain.UnlockApproved
	case domain.DecisionReject:
		state = domain.UnlockRejected
	default:
		return nil, errors.UnprocessableEntity("Unknown decision", nil)
	}

	req, err := s.repository.FindByID(ctx, input.RequestID)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("Unlock request not found", err)
		}
		return nil, err
	}
	if !req.IsPending() {
		return nil, errors.InvalidState(fmt.Sprintf("Unlock request was already %s", req.State))
	}

	now := s.now()
	reviewerID := input.Actor.ID
	req.State = state
	req.ReviewerID = &reviewerID
	req.ResolvedAt = &now
	if input.Response != "" {
		response := input.Response
		req.Response = &response
	}

	if err := s.repository.Resolve(ctx, req); err != nil {
		if defError.Is(err, ErrAlreadyResolved) {
			return nil, errors.InvalidState("Unlock request was resolved meanwhile")
		}
		return nil, fmt.Errorf("resolving unlock request: %w", err)
	}

	metrics.UnlockRequests.WithLabelValues(string(state)).Inc()
	log.Info().
		Uint64("request_id", req.ID).
		Str("state", string(state)).
		Uint64("reviewer_id", reviewerID).
		Msg("unlock request resolved")

	event := notify.Event{
		Type:       notify.EventUnlockApproved,
		ChildID:    req.ChildID,
		DocType:    req.DocType,
		RequestID:  req.ID,
		ActorID:    reviewerID,
		Note:       input.Response,
		OccurredAt: now,
	}
	if state == domain.UnlockRejected {
		event.Type = notify.EventUnlockRejected
	}
	s.events.Publish(event)

	return req, nil
}

type PaginatedRequests struct {
	Data []domain.UnlockRequest `json:"data"`
	Meta RequestsMeta           `json:"meta"`
}

func (s *DefaultService) ListByState(ctx context.Context, state domain.UnlockState, page, pageSize int) (*PaginatedRequests, error) {
	requests, meta, err := s.repository.ListByState(ctx, state, page, pageSize)
	if err != nil {
		return nil, err
	}
	if requests == nil {
		requests = []domain.UnlockRequest{}
	}
	return &PaginatedRequests{Data: requests, Meta: meta}, nil
}

func (s *DefaultService) ListForChild(ctx context.Context, actor domain.Actor, childID uint64) ([]domain.UnlockRequest, error) {
	if err := s.children.EnsureAccess(ctx, actor, childID); err != nil {
		return nil, err
	}
	requests, err := s.repository.ListByChild(ctx, childID)
	if err != nil {
		return nil, err
	}
	if requests == nil {
		requests = []domain.UnlockRequest{}
	}
	return requests, nil
}

// LatestApproved is consulted by the throttle guard.
func (s *DefaultService) LatestApproved(ctx context.Context, childID uint64, docType domain.DocumentType) (*domain.UnlockRequest, error) {
	return s.repository.LatestApproved(ctx, childID, docType)
}
