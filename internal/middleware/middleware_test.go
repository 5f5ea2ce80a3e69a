package middleware

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"scout-portal/internal/auth"
	"scout-portal/internal/domain"
	"scout-portal/internal/errors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type MockUserProvider struct {
	mock.Mock
}

func (m *MockUserProvider) GetUserByID(ctx context.Context, id uint64) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func setupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(ErrorHandler())
	return router
}

func TestErrorHandler_Throttled(t *testing.T) {
	router := setupRouter()
	router.GET("/x", func(c *gin.Context) {
		c.Error(errors.Throttled(90 * time.Second))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/x", nil))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "90", w.Header().Get("Retry-After"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "throttled", body["code"])
	assert.Equal(t, float64(90), body["retry_after_seconds"])
}

func TestErrorHandler_RawErrors(t *testing.T) {
	router := setupRouter()
	router.GET("/missing", func(c *gin.Context) {
		c.Error(gorm.ErrRecordNotFound)
	})
	router.GET("/boom", func(c *gin.Context) {
		c.Error(stdErrors.New("db down"))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "db down")
}

func TestRequireRole(t *testing.T) {
	router := setupRouter()
	withActor := func(actor domain.Actor) gin.HandlerFunc {
		return func(c *gin.Context) { SetActor(c, actor); c.Next() }
	}
	ok := func(c *gin.Context) { c.Status(http.StatusNoContent) }

	router.GET("/guardian", withActor(domain.Actor{ID: 1, Role: domain.RoleGuardian}), RequireRole(domain.RoleScouter, domain.RoleAdmin), ok)
	router.GET("/scouter", withActor(domain.Actor{ID: 2, Role: domain.RoleScouter}), RequireRole(domain.RoleScouter, domain.RoleAdmin), ok)
	router.GET("/anon", RequireRole(domain.RoleScouter), ok)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/guardian", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/scouter", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/anon", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleWare(t *testing.T) {
	auth.Configure("middleware-test", time.Minute, time.Hour)
	users := new(MockUserProvider)
	users.On("GetUserByID", mock.Anything, uint64(5)).Return(&domain.User{ID: 5, Role: domain.RoleGuardian, TokenVersion: 1, IsActive: true}, nil)

	m := &Auth{UserService: users}
	router := setupRouter()
	router.GET("/me", m.AuthMiddleWare(), func(c *gin.Context) {
		actor, _ := ActorFrom(c)
		c.JSON(http.StatusOK, gin.H{"id": actor.ID, "role": actor.Role})
	})

	t.Run("MissingHeader", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/me", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("ValidToken", func(t *testing.T) {
		token, err := auth.GenerateAccessToken(5, domain.RoleGuardian, 1)
		require.NoError(t, err)

		req := httptest.NewRequest("GET", "/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"id":5,"role":"guardian"}`, w.Body.String())
	})

	t.Run("StaleTokenVersion", func(t *testing.T) {
		token, err := auth.GenerateAccessToken(5, domain.RoleGuardian, 0)
		require.NoError(t, err)

		req := httptest.NewRequest("GET", "/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("RefreshTokenRejected", func(t *testing.T) {
		token, err := auth.GenerateRefreshToken(5, domain.RoleGuardian, 1)
		require.NoError(t, err)

		req := httptest.NewRequest("GET", "/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
