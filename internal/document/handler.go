package document

import (
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"scout-portal/internal/domain"
	"scout-portal/internal/errors"
	"scout-portal/internal/middleware"
	"scout-portal/internal/utils"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
)

// allowedMIME lists the file kinds accepted for any document.
var allowedMIME = []string{"application/pdf", "image/jpeg", "image/png"}

type Handler struct {
	service  Service
	maxBytes int64
}

func NewHandler(service Service, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 << 20
	}
	return &Handler{service: service, maxBytes: maxUploadBytes}
}

func actor(c *gin.Context) (domain.Actor, bool) {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		c.Error(errors.Unauthorized("Not authenticated", nil))
	}
	return a, ok
}

// childAndType reads the :id and :type path parameters.
func childAndType(c *gin.Context) (uint64, domain.DocumentType, error) {
	childID, err := utils.ParseIDParam(c, "id")
	if err != nil {
		return 0, "", err
	}
	docType := domain.DocumentType(c.Param("type"))
	if !docType.Valid() {
		return 0, "", errors.NotFound("Unknown document type", nil)
	}
	return childID, docType, nil
}

func (h *Handler) ListChildDocuments(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	childID, err := utils.ParseIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	slots, err := h.service.ListChildSlots(c.Request.Context(), a, childID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": slots})
}

func (h *Handler) ShowDocument(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	childID, docType, err := childAndType(c)
	if err != nil {
		c.Error(err)
		return
	}

	slot, err := h.service.GetSlot(c.Request.Context(), a, childID, docType)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, slot)
}

func (h *Handler) ShowUploadStatus(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	childID, docType, err := childAndType(c)
	if err != nil {
		c.Error(err)
		return
	}

	status, err := h.service.CheckUpload(c.Request.Context(), a, childID, docType)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, status)
}

func parseExpectedVersion(raw string) (*uint64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, errors.UnprocessableEntity("expected_version must be a non-negative integer", err)
	}
	return &v, nil
}

func (h *Handler) fileTooLarge(err error) *errors.APIError {
	return errors.New(http.StatusRequestEntityTooLarge, "file_too_large",
		fmt.Sprintf("File exceeds the %d byte upload limit", h.maxBytes), err)
}

// Upload takes a multipart form with a "file" part and an optional
// "expected_version" field.
func (h *Handler) Upload(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	childID, docType, err := childAndType(c)
	if err != nil {
		c.Error(err)
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+(1<<20))

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			c.Error(h.fileTooLarge(err))
			return
		}
		c.Error(errors.UnprocessableEntity("A file is required", err))
		return
	}
	if header.Size > h.maxBytes {
		c.Error(h.fileTooLarge(nil))
		return
	}

	expected, err := parseExpectedVersion(c.PostForm("expected_version"))
	if err != nil {
		c.Error(err)
		return
	}

	file, err := header.Open()
	if err != nil {
		c.Error(errors.BadRequest("Can't read uploaded file", err))
		return
	}
	defer file.Close()

	mtype, err := mimetype.DetectReader(file)
	if err != nil {
		c.Error(errors.BadRequest("Can't read uploaded file", err))
		return
	}
	if !mimetype.EqualsAny(mtype.String(), allowedMIME...) {
		c.Error(errors.New(http.StatusUnsupportedMediaType, "unsupported_file",
			"Only PDF, JPEG and PNG files are accepted", nil))
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		c.Error(errors.Internal(err))
		return
	}

	slot, err := h.service.RecordUpload(c.Request.Context(), UploadInput{
		ChildID:         childID,
		DocType:         docType,
		Actor:           a,
		ContentType:     mtype.String(),
		Extension:       mtype.Extension(),
		Body:            file,
		ExpectedVersion: expected,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, slot)
}

type ReviewRequest struct {
	Decision        domain.ReviewDecision `json:"decision" binding:"required,oneof=approve reject"`
	Reason          string                `json:"reason" binding:"required_if=Decision reject,max=500"`
	ExpectedVersion *uint64               `json:"expected_version"`
}

func (h *Handler) Review(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	slotID, err := utils.ParseIDParam(c, "slotId")
	if err != nil {
		c.Error(err)
		return
	}

	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	slot, err := h.service.Review(c.Request.Context(), ReviewInput{
		SlotID:          slotID,
		Actor:           a,
		Decision:        req.Decision,
		Reason:          req.Reason,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, slot)
}

func (h *Handler) ListPending(c *gin.Context) {
	page, pageSize := utils.GetPaginationParams(c)
	result, err := h.service.ListPendingReview(c.Request.Context(), page, pageSize)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) ListRevisions(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	slotID, err := utils.ParseIDParam(c, "slotId")
	if err != nil {
		c.Error(err)
		return
	}

	revisions, err := h.service.ListRevisions(c.Request.Context(), a, slotID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": revisions})
}

// ShowFile redirects to the storage service's view of the current file.
func (h *Handler) ShowFile(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	slotID, err := utils.ParseIDParam(c, "slotId")
	if err != nil {
		c.Error(err)
		return
	}

	ref, err := h.service.CurrentFile(c.Request.Context(), a, slotID)
	if err != nil {
		c.Error(err)
		return
	}
	if ref.URL == "" {
		c.JSON(http.StatusOK, ref)
		return
	}

	c.Redirect(http.StatusFound, ref.URL)
}
