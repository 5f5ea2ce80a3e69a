package middleware

import (
	"errors"
	"strconv"

	apiError "scout-portal/internal/errors"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next() // Execute the handler first

		// detect any errors
		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		var apiErr *apiError.APIError
		switch {
		case errors.As(err, &apiErr):
		case errors.Is(err, gorm.ErrRecordNotFound):
			apiErr = apiError.NotFound("Resource not found", err)
		default:
			// If it's a raw error we didn't wrap, treat as Internal
			apiErr = apiError.Internal(err)
		}

		if apiErr.Status >= 500 {
			log.Error().Err(apiErr.Internal).Str("path", c.FullPath()).Msg(apiErr.Message)
		} else {
			log.Info().Err(apiErr.Internal).Str("code", apiErr.Code).Str("path", c.FullPath()).Msg(apiErr.Message)
		}

		if apiErr.RetryAfter > 0 {
			seconds := apiError.RetryAfterSeconds(apiErr.RetryAfter)
			apiErr.Seconds = seconds
			c.Header("Retry-After", strconv.FormatInt(seconds, 10))
		}

		c.AbortWithStatusJSON(apiErr.Status, apiErr)
	}
}
