package unlock

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"scout-portal/internal/domain"
	"scout-portal/internal/errors"
	"scout-portal/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) FileRequest(ctx context.Context, actor domain.Actor, childID uint64, docType domain.DocumentType, reason string) (*domain.UnlockRequest, error) {
	args := m.Called(ctx, actor, childID, docType, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UnlockRequest), args.Error(1)
}

func (m *MockService) Resolve(ctx context.Context, input ResolveInput) (*domain.UnlockRequest, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UnlockRequest), args.Error(1)
}

func (m *MockService) ListByState(ctx context.Context, state domain.UnlockState, page, pageSize int) (*PaginatedRequests, error) {
	args := m.Called(ctx, state, page, pageSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*PaginatedRequests), args.Error(1)
}

func (m *MockService) ListForChild(ctx context.Context, actor domain.Actor, childID uint64) ([]domain.UnlockRequest, error) {
	args := m.Called(ctx, actor, childID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.UnlockRequest), args.Error(1)
}

func (m *MockService) LatestApproved(ctx context.Context, childID uint64, docType domain.DocumentType) (*domain.UnlockRequest, error) {
	args := m.Called(ctx, childID, docType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UnlockRequest), args.Error(1)
}

func setupRouter(as domain.Actor) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.ErrorHandler())
	router.Use(func(c *gin.Context) {
		middleware.SetActor(c, as)
		c.Next()
	})
	return router
}

func TestFile_Success(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)
	router := setupRouter(guardian)
	router.POST("/children/:id/documents/:type/unlock-requests", handler.File)

	created := &domain.UnlockRequest{ID: 7, ChildID: 4, DocType: domain.DocDNI, State: domain.UnlockPending}
	mockService.On("FileRequest", mock.Anything, guardian, uint64(4), domain.DocDNI, "typo in DNI").Return(created, nil)

	body, _ := json.Marshal(FileRequestBody{Reason: "typo in DNI"})
	req := httptest.NewRequest("POST", "/children/4/documents/dni/unlock-requests", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	mockService.AssertExpectations(t)
}

func TestFile_WithoutBody(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)
	router := setupRouter(guardian)
	router.POST("/children/:id/documents/:type/unlock-requests", handler.File)

	created := &domain.UnlockRequest{ID: 7, State: domain.UnlockPending}
	mockService.On("FileRequest", mock.Anything, guardian, uint64(4), domain.DocDNI, "").Return(created, nil)

	req := httptest.NewRequest("POST", "/children/4/documents/dni/unlock-requests", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestFile_ChunkedBodyKeepsReason(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)
	router := setupRouter(guardian)
	router.POST("/children/:id/documents/:type/unlock-requests", handler.File)

	created := &domain.UnlockRequest{ID: 7, State: domain.UnlockPending}
	mockService.On("FileRequest", mock.Anything, guardian, uint64(4), domain.DocDNI, "typo in DNI").Return(created, nil)

	body, _ := json.Marshal(FileRequestBody{Reason: "typo in DNI"})
	req := httptest.NewRequest("POST", "/children/4/documents/dni/unlock-requests", io.MultiReader(bytes.NewReader(body)))
	req.ContentLength = -1
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	mockService.AssertExpectations(t)
}

func TestFile_MalformedBody(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)
	router := setupRouter(guardian)
	router.POST("/children/:id/documents/:type/unlock-requests", handler.File)

	req := httptest.NewRequest("POST", "/children/4/documents/dni/unlock-requests", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.NotEqual(t, http.StatusCreated, w.Code)
	mockService.AssertNotCalled(t, "FileRequest", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestFile_Duplicate(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)
	router := setupRouter(guardian)
	router.POST("/children/:id/documents/:type/unlock-requests", handler.File)

	mockService.On("FileRequest", mock.Anything, guardian, uint64(4), domain.DocDNI, "").
		Return(nil, errors.DuplicateRequest("already pending"))

	req := httptest.NewRequest("POST", "/children/4/documents/dni/unlock-requests", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.Equal(t, errors.CodeDuplicateRequest, response["code"])
}

func TestResolve_InvalidDecision(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)
	router := setupRouter(scouter)
	router.POST("/unlock-requests/:id/resolve", handler.Resolve)

	body, _ := json.Marshal(map[string]string{"decision": "maybe"})
	req := httptest.NewRequest("POST", "/unlock-requests/7/resolve", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	mockService.AssertNotCalled(t, "Resolve")
}

func TestResolve_Success(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)
	router := setupRouter(scouter)
	router.POST("/unlock-requests/:id/resolve", handler.Resolve)

	resolved := &domain.UnlockRequest{ID: 7, State: domain.UnlockApproved}
	mockService.On("Resolve", mock.Anything, ResolveInput{
		RequestID: 7,
		Actor:     scouter,
		Decision:  domain.DecisionApprove,
	}).Return(resolved, nil)

	body, _ := json.Marshal(ResolveRequest{Decision: domain.DecisionApprove})
	req := httptest.NewRequest("POST", "/unlock-requests/7/resolve", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockService.AssertExpectations(t)
}

func TestList_DefaultsToPending(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)
	router := setupRouter(scouter)
	router.GET("/unlock-requests", handler.List)

	result := &PaginatedRequests{Data: []domain.UnlockRequest{}, Meta: RequestsMeta{CurrentPage: 1, PerPage: 10}}
	mockService.On("ListByState", mock.Anything, domain.UnlockPending, 1, 10).Return(result, nil)

	req := httptest.NewRequest("GET", "/unlock-requests", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockService.AssertExpectations(t)

	req = httptest.NewRequest("GET", "/unlock-requests?state=bogus", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
