package ticket

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"

	app "ticketd/internal/application/ticket"
	"ticketd/internal/application/ticket/dto"
	domain "ticketd/internal/domain/ticket"
	"ticketd/internal/shared/errors"
	"ticketd/internal/shared/logger"
	"ticketd/internal/shared/utils"
)

// TicketService is the slice of the application service the handler needs.
type TicketService interface {
	CreateTicket(ctx context.Context, cmd app.CreateTicketCommand) (*dto.TicketDTO, error)
	GetTicketByID(ctx context.Context, id uint, includeAttachments bool) (*dto.TicketDTO, error)
	GetTickets(ctx context.Context, includeAttachments bool) ([]dto.TicketDTO, error)
	UpdateTicket(ctx context.Context, id uint, cmd app.UpdateTicketCommand) (*dto.TicketDTO, error)
	DeleteTicket(ctx context.Context, id uint) (*dto.TicketDTO, error)
	UpdateTicketStatus(ctx context.Context, id uint, status string) (*dto.TicketDTO, error)
	DownloadTicketAttachment(ctx context.Context, attachmentID uint) (*dto.AttachmentDTO, []byte, error)
	RemoveTicketAttachment(ctx context.Context, attachmentID uint) error
	CountTickets(ctx context.Context) (int64, error)
	CountTicketsMatching(ctx context.Context, q app.FilterQuery) (int64, error)
	FindTicketsMatching(ctx context.Context, q app.FilterQuery, includeAttachments bool) ([]dto.TicketDTO, error)
	FindTicketsByDateRange(ctx context.Context, start, end time.Time) ([]dto.TicketDTO, error)
	Ready() bool
	Healthy(ctx context.Context) bool
}

type TicketHandler struct {
	service   TicketService
	sanitizer *bluemonday.Policy
	logger    logger.Interface
}

func NewTicketHandler(service TicketService) *TicketHandler {
	return &TicketHandler{
		service:   service,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.NewLoggerWithSlog(logger.WithComponent("ticket_handler")),
	}
}

// CreateTicket handles POST /tickets
func (h *TicketHandler) CreateTicket(c *gin.Context) {
	var req CreateTicketRequest
	if err := bindRequest(c, &req); err != nil {
		h.logger.Warnw("invalid request body for create ticket", "error", err)
		utils.ErrorResponseWithError(c, errors.NewValidationError(err.Error()))
		return
	}

	payloads, err := h.readAttachments(c)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	cmd := app.CreateTicketCommand{
		Title:       req.Title,
		Description: h.sanitizer.Sanitize(req.Description),
		Assignee:    req.Assignee,
		Status:      req.Status,
		Priority:    req.Priority,
		Attachments: payloads,
	}

	result, err := h.service.CreateTicket(c.Request.Context(), cmd)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.CreatedResponse(c, result, "Ticket created successfully")
}

// GetTicket handles GET /tickets/:id
func (h *TicketHandler) GetTicket(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	result, err := h.service.GetTicketByID(c.Request.Context(), id, includeAttachments(c))
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", result)
}

// ListTickets handles GET /tickets. Filter query parameters switch to the
// predicate-based listing.
func (h *TicketHandler) ListTickets(c *gin.Context) {
	q := app.FilterQuery{
		Status:   c.Query("status"),
		Priority: c.Query("priority"),
		Assignee: c.Query("assignee"),
	}

	var (
		result []dto.TicketDTO
		err    error
	)
	if q.Status != "" || q.Priority != "" || q.Assignee != "" {
		result, err = h.service.FindTicketsMatching(c.Request.Context(), q, includeAttachments(c))
	} else {
		result, err = h.service.GetTickets(c.Request.Context(), includeAttachments(c))
	}
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", result)
}

// UpdateTicket handles PUT /tickets/:id
func (h *TicketHandler) UpdateTicket(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	var req UpdateTicketRequest
	if err := bindRequest(c, &req); err != nil {
		h.logger.Warnw("invalid request body for update ticket", "error", err)
		utils.ErrorResponseWithError(c, errors.NewValidationError(err.Error()))
		return
	}

	payloads, err := h.readAttachments(c)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	cmd := app.UpdateTicketCommand{
		Title:       req.Title,
		Description: req.Description,
		Assignee:    req.Assignee,
		Status:      req.Status,
		Priority:    req.Priority,
		Attachments: payloads,
	}
	if cmd.Description != "" {
		cmd.Description = h.sanitizer.Sanitize(cmd.Description)
	}

	result, err := h.service.UpdateTicket(c.Request.Context(), id, cmd)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Ticket updated successfully", result)
}

// UpdateTicketStatus handles PATCH /tickets/:id/status
func (h *TicketHandler) UpdateTicketStatus(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponseWithError(c, errors.NewValidationError(err.Error()))
		return
	}

	result, err := h.service.UpdateTicketStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Ticket status updated", result)
}

// DeleteTicket handles DELETE /tickets/:id
func (h *TicketHandler) DeleteTicket(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	result, err := h.service.DeleteTicket(c.Request.Context(), id)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Ticket deleted successfully", result)
}

// GetAttachment handles GET /tickets/:id/attachments/:attachmentId, serving
// the stored bytes as a download.
func (h *TicketHandler) GetAttachment(c *gin.Context) {
	attachmentID, err := parseID(c, "attachmentId")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	att, data, err := h.service.DownloadTicketAttachment(c.Request.Context(), attachmentID)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	contentType := att.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", att.Name))
	c.Data(http.StatusOK, contentType, data)
}

// DeleteAttachment handles DELETE /tickets/:id/attachments/:attachmentId
func (h *TicketHandler) DeleteAttachment(c *gin.Context) {
	attachmentID, err := parseID(c, "attachmentId")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	if err := h.service.RemoveTicketAttachment(c.Request.Context(), attachmentID); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Attachment removed", nil)
}

// CountTickets handles GET /tickets/count. Counts are always computed live.
func (h *TicketHandler) CountTickets(c *gin.Context) {
	q := app.FilterQuery{
		Status:   c.Query("status"),
		Priority: c.Query("priority"),
		Assignee: c.Query("assignee"),
	}

	var (
		count int64
		err   error
	)
	if q.Status != "" || q.Priority != "" || q.Assignee != "" {
		count, err = h.service.CountTicketsMatching(c.Request.Context(), q)
	} else {
		count, err = h.service.CountTickets(c.Request.Context())
	}
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", gin.H{"count": count})
}

// TicketsByDateRange handles GET /tickets/range?start=&end= with RFC 3339
// timestamps.
func (h *TicketHandler) TicketsByDateRange(c *gin.Context) {
	start, err := time.Parse(time.RFC3339, c.Query("start"))
	if err != nil {
		utils.ErrorResponseWithError(c, errors.NewValidationError("invalid start timestamp"))
		return
	}
	end, err := time.Parse(time.RFC3339, c.Query("end"))
	if err != nil {
		utils.ErrorResponseWithError(c, errors.NewValidationError("invalid end timestamp"))
		return
	}

	result, err := h.service.FindTicketsByDateRange(c.Request.Context(), start, end)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", result)
}

// Health handles GET /healthz: 503 while the startup gate is closed.
func (h *TicketHandler) Health(c *gin.Context) {
	if !h.service.Ready() {
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "starting up")
		return
	}
	if !h.service.Healthy(c.Request.Context()) {
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "ok", nil)
}

// readAttachments collects multipart attachment files, if any.
func (h *TicketHandler) readAttachments(c *gin.Context) ([]domain.AttachmentPayload, error) {
	if !strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		return nil, nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return nil, errors.NewValidationError("invalid multipart form", err.Error())
	}

	var payloads []domain.AttachmentPayload
	for _, fh := range form.File["attachments"] {
		file, err := fh.Open()
		if err != nil {
			return nil, errors.NewValidationError("failed to open attachment", err.Error())
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			return nil, errors.NewValidationError("failed to read attachment", err.Error())
		}
		payloads = append(payloads, domain.AttachmentPayload{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}

	return payloads, nil
}

func bindRequest(c *gin.Context, req any) error {
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		return c.ShouldBind(req)
	}
	return c.ShouldBindJSON(req)
}

func includeAttachments(c *gin.Context) bool {
	return c.DefaultQuery("include_attachments", "true") != "false"
}

func parseID(c *gin.Context, param string) (uint, error) {
	raw := c.Param(param)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, errors.NewValidationError("invalid id", raw)
	}
	return uint(id), nil
}
