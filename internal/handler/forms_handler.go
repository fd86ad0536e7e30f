package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/player-forms-api/internal/dto"
	"github.com/noah-isme/player-forms-api/internal/service"
	appErrors "github.com/noah-isme/player-forms-api/pkg/errors"
	"github.com/noah-isme/player-forms-api/pkg/response"
)

type formsService interface {
	CreateJob(ctx context.Context, upload service.GenerationUpload) (*dto.GenerateJobResponse, error)
	GetStatus(ctx context.Context, id string) (*dto.JobStatusResponse, error)
	ResolveDownload(ctx context.Context, token string) (*service.ArchiveDownload, error)
}

// FormsHandler exposes the form generation endpoints.
type FormsHandler struct {
	service formsService
}

// NewFormsHandler constructs the handler.
func NewFormsHandler(service formsService) *FormsHandler {
	return &FormsHandler{service: service}
}

// Generate godoc
// @Summary Generate PDF forms from an uploaded workbook
// @Tags Forms
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Roster workbook (.xlsx)"
// @Success 202 {object} response.Envelope
// @Router /forms/generate [post]
func (h *FormsHandler) Generate(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "generation service not configured"))
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
		return
	}
	defer src.Close() //nolint:errcheck

	upload := service.GenerationUpload{
		Filename: fileHeader.Filename,
		Size:     fileHeader.Size,
		MimeType: fileHeader.Header.Get("Content-Type"),
		Content:  src,
	}
	job, err := h.service.CreateJob(c.Request.Context(), upload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, job)
}

// Status godoc
// @Summary Poll generation job progress
// @Tags Forms
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /forms/jobs/{id} [get]
func (h *FormsHandler) Status(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "generation service not configured"))
		return
	}
	status, err := h.service.GetStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status)
}

// Download godoc
// @Summary Download the generated archive via signed token
// @Tags Forms
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} binary
// @Router /forms/download/{token} [get]
func (h *FormsHandler) Download(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "generation service not configured"))
		return
	}
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	result, err := h.service.ResolveDownload(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close() //nolint:errcheck
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", result.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, result.SizeBytes, "application/zip", result.File, nil)
}
