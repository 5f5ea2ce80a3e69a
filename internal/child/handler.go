package child

import (
	"net/http"
	"time"

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

type CreateChildRequest struct {
	FirstName string `json:"first_name" binding:"required,min=1,max=100"`
	LastName  string `json:"last_name" binding:"required,min=1,max=100"`
	BirthDate string `json:"birth_date" binding:"omitempty,datetime=2006-01-02"`
	Section   string `json:"section" binding:"max=50"`
}

func (h *Handler) Create(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.Error(errors.Unauthorized("Not authenticated", nil))
		return
	}

	var req CreateChildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	child := &domain.Child{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Section:   req.Section,
	}
	if req.BirthDate != "" {
		// already validated by the binding
		birth, _ := time.Parse(time.DateOnly, req.BirthDate)
		child.BirthDate = &birth
	}

	if err := h.service.Create(c.Request.Context(), actor, child); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, child)
}

func (h *Handler) List(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.Error(errors.Unauthorized("Not authenticated", nil))
		return
	}

	page, pageSize := utils.GetPaginationParams(c)
	result, err := h.service.List(c.Request.Context(), actor, page, pageSize)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) Show(c *gin.Context) {
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

	child, err := h.service.Get(c.Request.Context(), actor, childID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, child)
}

type LinkGuardianRequest struct {
	GuardianID uint64 `json:"guardian_id" binding:"required"`
	Relation   string `json:"relation" binding:"max=30"`
}

func (h *Handler) LinkGuardian(c *gin.Context) {
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

	var req LinkGuardianRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	link, err := h.service.LinkGuardian(c.Request.Context(), actor, childID, req.GuardianID, req.Relation)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, link)
}
