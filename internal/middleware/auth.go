package middleware

import (
	"context"
	"slices"
	"strings"

	"scout-portal/internal/auth"
	"scout-portal/internal/domain"
	"scout-portal/internal/errors"

	"github.com/gin-gonic/gin"
)

const (
	ctxUserID   = "user_id"
	ctxUserRole = "user_role"
	ctxToken    = "jwt_token"
)

type UserProvider interface {
	GetUserByID(ctx context.Context, id uint64) (*domain.User, error)
}

type Auth struct {
	UserService UserProvider
}

func (m *Auth) AuthMiddleWare() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		authHeader := ctx.GetHeader("Authorization")
		if authHeader == "" {
			ctx.Error(errors.Unauthorized("Authorization is not found!", nil))
			ctx.Abort()
			return
		}
		token := strings.TrimPrefix(authHeader, "Bearer ")

		parsedToken, err := auth.VerifyJWT(token)
		if err != nil {
			ctx.Error(errors.Unauthorized("Invalid token!", err))
			ctx.Abort()
			return
		}

		data, err := auth.GetDataFromToken(parsedToken)
		if err != nil || !data.IsAccess() {
			ctx.Error(errors.Unauthorized("Invalid token!", err))
			ctx.Abort()
			return
		}

		user, err := m.UserService.GetUserByID(ctx.Request.Context(), data.UserID)
		if err != nil {
			ctx.Error(errors.Unauthorized("Invalid User ID!", err))
			ctx.Abort()
			return
		}

		// Check token version
		if user.TokenVersion != data.TokenVersion || !user.IsActive {
			ctx.Error(errors.Unauthorized("Invalid token version!", nil))
			ctx.Abort()
			return
		}

		// role comes from the database so demotions apply immediately
		ctx.Set(ctxUserID, user.ID)
		ctx.Set(ctxUserRole, user.Role)
		ctx.Set(ctxToken, token)
		ctx.Next()
	}
}

// RequireRole lets the request through only for the listed roles.
func RequireRole(roles ...domain.Role) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		actor, ok := ActorFrom(ctx)
		if !ok {
			ctx.Error(errors.Unauthorized("Authorization is not found!", nil))
			ctx.Abort()
			return
		}
		if !slices.Contains(roles, actor.Role) {
			ctx.Error(errors.Forbidden("You're not allowed to do this", nil))
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

// ActorFrom returns the identity the auth middleware verified.
func ActorFrom(ctx *gin.Context) (domain.Actor, bool) {
	id, ok := ctx.Get(ctxUserID)
	if !ok {
		return domain.Actor{}, false
	}
	userID, ok := id.(uint64)
	if !ok {
		return domain.Actor{}, false
	}
	role, _ := ctx.Get(ctxUserRole)
	r, _ := role.(domain.Role)
	return domain.Actor{ID: userID, Role: r}, true
}

// SetActor is used by tests and internal routes to inject an identity.
func SetActor(ctx *gin.Context, actor domain.Actor) {
	ctx.Set(ctxUserID, actor.ID)
	ctx.Set(ctxUserRole, actor.Role)
}
