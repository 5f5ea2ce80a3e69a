package child

import (
	"context"
	defError "errors"
	"fmt"

	"scout-portal/internal/domain"
	"scout-portal/internal/errors"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type Service interface {
	Create(ctx context.Context, actor domain.Actor, child *domain.Child) error
	Get(ctx context.Context, actor domain.Actor, id uint64) (*domain.Child, error)
	List(ctx context.Context, actor domain.Actor, page, pageSize int) (*PaginatedChildren, error)
	LinkGuardian(ctx context.Context, actor domain.Actor, childID, guardianID uint64, relation string) (*domain.Guardianship, error)
	EnsureAccess(ctx context.Context, actor domain.Actor, childID uint64) error
}

// UserLookup resolves the account being linked as a guardian.
type UserLookup interface {
	GetUserByID(ctx context.Context, id uint64) (*domain.User, error)
}

type DefaultService struct {
	repository ChildRepository
	users      UserLookup
}

func NewService(repository ChildRepository, users UserLookup) Service {
	return &DefaultService{repository: repository, users: users}
}

func (s *DefaultService) Create(ctx context.Context, actor domain.Actor, child *domain.Child) error {
	if !actor.Role.CanReview() {
		return errors.Forbidden("Only scouters can register children", nil)
	}
	if err := s.repository.Create(ctx, child); err != nil {
		return fmt.Errorf("creating child: %w", err)
	}
	log.Info().Uint64("child_id", child.ID).Uint64("actor_id", actor.ID).Msg("child registered")
	return nil
}

func (s *DefaultService) Get(ctx context.Context, actor domain.Actor, id uint64) (*domain.Child, error) {
	if err := s.EnsureAccess(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.repository.FindByID(ctx, id)
}

type PaginatedChildren struct {
	Data []domain.Child `json:"data"`
	Meta ChildrenMeta   `json:"meta"`
}

// List returns every child to reviewers and only linked children to
// guardians.
func (s *DefaultService) List(ctx context.Context, actor domain.Actor, page, pageSize int) (*PaginatedChildren, error) {
	var (
		children []domain.Child
		meta     ChildrenMeta
		err      error
	)
	if actor.Role.CanReview() {
		children, meta, err = s.repository.List(ctx, page, pageSize)
	} else {
		children, meta, err = s.repository.ListByGuardian(ctx, actor.ID, page, pageSize)
	}
	if err != nil {
		return nil, err
	}
	if children == nil {
		children = []domain.Child{}
	}
	return &PaginatedChildren{Data: children, Meta: meta}, nil
}

func (s *DefaultService) LinkGuardian(ctx context.Context, actor domain.Actor, childID, guardianID uint64, relation string) (*domain.Guardianship, error) {
	if !actor.Role.CanReview() {
		return nil, errors.Forbidden("Only scouters can link guardians", nil)
	}
	if _, err := s.findChild(ctx, childID); err != nil {
		return nil, err
	}

	guardian, err := s.users.GetUserByID(ctx, guardianID)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.UnprocessableEntity("Guardian account not found", err)
		}
		return nil, err
	}
	if guardian.Role != domain.RoleGuardian {
		return nil, errors.UnprocessableEntity("Account is not a guardian", nil)
	}

	link := &domain.Guardianship{
		ChildID:    childID,
		GuardianID: guardianID,
		Relation:   relation,
	}
	if err := s.repository.LinkGuardian(ctx, link); err != nil {
		if defError.Is(err, ErrAlreadyLinked) {
			return nil, errors.Conflict("Guardian is already linked to this child", err)
		}
		return nil, fmt.Errorf("linking guardian: %w", err)
	}

	log.Info().Uint64("child_id", childID).Uint64("guardian_id", guardianID).Msg("guardian linked")
	return link, nil
}

// EnsureAccess reports NotFound for unknown children and Forbidden for
// guardians not linked to the child. Reviewers see every child.
func (s *DefaultService) EnsureAccess(ctx context.Context, actor domain.Actor, childID uint64) error {
	if _, err := s.findChild(ctx, childID); err != nil {
		return err
	}
	if actor.Role.CanReview() {
		return nil
	}

	linked, err := s.repository.IsGuardian(ctx, childID, actor.ID)
	if err != nil {
		return err
	}
	if !linked {
		return errors.Forbidden("You are not a guardian of this child", nil)
	}
	return nil
}

func (s *DefaultService) findChild(ctx context.Context, childID uint64) (*domain.Child, error) {
	child, err := s.repository.FindByID(ctx, childID)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("Child not found", err)
		}
		return nil, err
	}
	return child, nil
}
