package unlock

import (
	"context"
	"sync"
	"testing"
	"time"

	"scout-portal/internal/domain"
	"scout-portal/internal/errors"
	"scout-portal/internal/notify"
	"scout-portal/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAccess struct {
	err error
}

func (s stubAccess) EnsureAccess(context.Context, domain.Actor, uint64) error { return s.err }

type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recordingPublisher) Publish(e notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingPublisher) Types() []notify.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]notify.EventType, 0, len(r.events))
	for _, e := range r.events {
		types = append(types, e.Type)
	}
	return types
}

var (
	guardian = domain.Actor{ID: 1, Role: domain.RoleGuardian}
	scouter  = domain.Actor{ID: 9, Role: domain.RoleScouter}
	t0       = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
)

func newTestService(t *testing.T) (Service, *recordingPublisher) {
	t.Helper()
	events := &recordingPublisher{}
	svc := NewService(
		NewRepository(testutil.NewDB(t)),
		stubAccess{},
		events,
		WithClock(func() time.Time { return t0 }),
	)
	return svc, events
}

func TestFileRequest_CreatesPending(t *testing.T) {
	svc, events := newTestService(t)

	req, err := svc.FileRequest(context.Background(), guardian, 4, domain.DocDNI, "typo in DNI")
	require.NoError(t, err)

	assert.NotZero(t, req.ID)
	assert.Equal(t, domain.UnlockPending, req.State)
	assert.Equal(t, t0, req.RequestedAt)
	require.NotNil(t, req.Reason)
	assert.Equal(t, "typo in DNI", *req.Reason)
	assert.Equal(t, []notify.EventType{notify.EventUnlockRequested}, events.Types())
}

func TestFileRequest_DuplicatePending(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.FileRequest(ctx, guardian, 4, domain.DocDNI, "")
	require.NoError(t, err)

	_, err = svc.FileRequest(ctx, guardian, 4, domain.DocDNI, "again")
	assert.True(t, errors.IsDuplicateRequest(err))

	// another document of the same child is independent
	_, err = svc.FileRequest(ctx, guardian, 4, domain.DocHealthCard, "")
	assert.NoError(t, err)
}

func TestFileRequest_AfterResolutionAllowsNewOne(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.FileRequest(ctx, guardian, 4, domain.DocDNI, "")
	require.NoError(t, err)
	_, err = svc.Resolve(ctx, ResolveInput{RequestID: first.ID, Actor: scouter, Decision: domain.DecisionReject})
	require.NoError(t, err)

	second, err := svc.FileRequest(ctx, guardian, 4, domain.DocDNI, "please")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestFileRequest_Rules(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.FileRequest(ctx, scouter, 4, domain.DocDNI, "")
	assert.Equal(t, 403, err.(*errors.APIError).Status)

	_, err = svc.FileRequest(ctx, guardian, 4, domain.DocumentType("passport"), "")
	assert.Equal(t, 404, err.(*errors.APIError).Status)

	denied := NewService(NewRepository(testutil.NewDB(t)), stubAccess{err: errors.Forbidden("not your child", nil)}, notify.Discard{})
	_, err = denied.FileRequest(ctx, guardian, 4, domain.DocDNI, "")
	assert.Equal(t, 403, err.(*errors.APIError).Status)
}

func TestResolve_Approve(t *testing.T) {
	svc, events := newTestService(t)
	ctx := context.Background()

	req, err := svc.FileRequest(ctx, guardian, 4, domain.DocDNI, "")
	require.NoError(t, err)

	resolved, err := svc.Resolve(ctx, ResolveInput{
		RequestID: req.ID,
		Actor:     scouter,
		Decision:  domain.DecisionApprove,
		Response:  "ok, go ahead",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.UnlockApproved, resolved.State)
	require.NotNil(t, resolved.ReviewerID)
	assert.Equal(t, scouter.ID, *resolved.ReviewerID)
	require.NotNil(t, resolved.ResolvedAt)
	require.NotNil(t, resolved.Response)
	assert.Equal(t, "ok, go ahead", *resolved.Response)

	latest, err := svc.LatestApproved(ctx, 4, domain.DocDNI)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, req.ID, latest.ID)

	assert.Equal(t, []notify.EventType{notify.EventUnlockRequested, notify.EventUnlockApproved}, events.Types())
}

func TestResolve_AlreadyResolved(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	req, err := svc.FileRequest(ctx, guardian, 4, domain.DocDNI, "")
	require.NoError(t, err)
	_, err = svc.Resolve(ctx, ResolveInput{RequestID: req.ID, Actor: scouter, Decision: domain.DecisionReject})
	require.NoError(t, err)

	_, err = svc.Resolve(ctx, ResolveInput{RequestID: req.ID, Actor: scouter, Decision: domain.DecisionApprove})
	assert.True(t, errors.IsInvalidState(err))

	latest, err := svc.LatestApproved(ctx, 4, domain.DocDNI)
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestResolve_Rules(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Resolve(ctx, ResolveInput{RequestID: 1, Actor: guardian, Decision: domain.DecisionApprove})
	assert.Equal(t, 403, err.(*errors.APIError).Status)

	_, err = svc.Resolve(ctx, ResolveInput{RequestID: 999, Actor: scouter, Decision: domain.DecisionApprove})
	assert.Equal(t, 404, err.(*errors.APIError).Status)
}

func TestListByState(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, docType := range []domain.DocumentType{domain.DocDNI, domain.DocHealthCard, domain.DocMedicalForm} {
		_, err := svc.FileRequest(ctx, guardian, 4, docType, "")
		require.NoError(t, err)
	}

	result, err := svc.ListByState(ctx, domain.UnlockPending, 1, 2)
	require.NoError(t, err)
	assert.Len(t, result.Data, 2)
	assert.Equal(t, int64(3), result.Meta.Total)
	assert.Equal(t, 2, result.Meta.TotalPage)

	approved, err := svc.ListByState(ctx, domain.UnlockApproved, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, approved.Data)

	history, err := svc.ListForChild(ctx, guardian, 4)
	require.NoError(t, err)
	assert.Len(t, history, 3)
}
