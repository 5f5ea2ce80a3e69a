package unlock

import (
	stderrors "errors"
	"io"
	"net/http"

	"scout-portal/internal/domain"
	"scout-portal/internal/errors"
	"scout-portal/internal/middleware"
	"scout-portal/internal/utils"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

type FileRequestBody struct {
	Reason string `json:"reason" binding:"max=500"`
}

func (h *Handler) File(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.Error(errors.Unauthorized("Not authenticated", nil))
		return
	}
	childID, err := utils.ParseIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}
	docType := domain.DocumentType(c.Param("type"))

	var body FileRequestBody
	// the body is optional
	if err := c.ShouldBindJSON(&body); err != nil && !stderrors.Is(err, io.EOF) {
		c.Error(errors.NewValidationError(err))
		return
	}

	req, err := h.service.FileRequest(c.Request.Context(), actor, childID, docType, body.Reason)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, req)
}

type ResolveRequest struct {
	Decision domain.ReviewDecision `json:"decision" binding:"required,oneof=approve reject"`
	Response string                `json:"response" binding:"max=500"`
}

func (h *Handler) Resolve(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.Error(errors.Unauthorized("Not authenticated", nil))
		return
	}
	requestID, err := utils.ParseIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	var body ResolveRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	req, err := h.service.Resolve(c.Request.Context(), ResolveInput{
		RequestID: requestID,
		Actor:     actor,
		Decision:  body.Decision,
		Response:  body.Response,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, req)
}

func (h *Handler) List(c *gin.Context) {
	state := domain.UnlockState(c.DefaultQuery("state", string(domain.UnlockPending)))
	switch state {
	case domain.UnlockPending, domain.UnlockApproved, domain.UnlockRejected:
	default:
		c.Error(errors.UnprocessableEntity("state must be pending, approved or rejected", nil))
		return
	}

	page, pageSize := utils.GetPaginationParams(c)
	result, err := h.service.ListByState(c.Request.Context(), state, page, pageSize)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) ListForChild(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.Error(errors.Unauthorized("Not authenticated", nil))
		return
	}
	childID, err := utils.ParseIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	requests, err := h.service.ListForChild(c.Request.Context(), actor, childID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": requests})
}
