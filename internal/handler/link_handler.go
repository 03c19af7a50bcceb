package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/SergeiKhy/linkbox/internal/models"
	"github.com/SergeiKhy/linkbox/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type LinkHandler struct {
	service service.LinkService
	logger  *zap.Logger
}

func NewLinkHandler(service service.LinkService, logger *zap.Logger) *LinkHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LinkHandler{
		service: service,
		logger:  logger,
	}
}

type CreateLinkRequest struct {
	OriginalURL string `json:"originalUrl" binding:"required,min=1,max=2048"`
	ShortCode   string `json:"shortCode" binding:"required,min=3,max=64"`
}

type ShortCodeParams struct {
	ShortCode string `uri:"shortCode" binding:"required,min=1,max=255"`
}

type LinkResponse struct {
	Link *models.Link `json:"link"`
}

type LinksResponse struct {
	Links []models.Link `json:"links"`
}

type AccessCountResponse struct {
	AccessCount int64 `json:"accessCount"`
}

type ExportResponse struct {
	URL string `json:"url"`
}

type ExportsResponse struct {
	Exports []models.Export `json:"exports"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// CreateLink godoc
// @Summary Create a short link
// @Description Register a short code for an original URL
// @Tags links
// @Accept json
// @Produce json
// @Param request body CreateLinkRequest true "Link creation request"
// @Success 201 {object} LinkResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /links [post]
func (h *LinkHandler) CreateLink(c *gin.Context) {
	var req CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: bindingMessage(err),
		})
		return
	}

	link, err := h.service.CreateLink(c.Request.Context(), &models.CreateLinkInput{
		OriginalURL: req.OriginalURL,
		ShortCode:   req.ShortCode,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidURL):
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_url",
				Message: "Invalid original URL",
			})
		case errors.Is(err, service.ErrInvalidCode):
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_code",
				Message: "Short code must be 3-64 characters: letters, digits or hyphens",
			})
		case errors.Is(err, service.ErrLinkExists):
			c.JSON(http.StatusConflict, ErrorResponse{
				Error:   "conflict",
				Message: "Short code already exists",
			})
		default:
			h.internalError(c, "Failed to create link", err)
		}
		return
	}

	c.JSON(http.StatusCreated, LinkResponse{Link: link})
}

// ListLinks godoc
// @Summary List links
// @Description List all links, most recent first
// @Tags links
// @Produce json
// @Success 200 {object} LinksResponse
// @Failure 500 {object} ErrorResponse
// @Router /links [get]
func (h *LinkHandler) ListLinks(c *gin.Context) {
	links, err := h.service.ListLinks(c.Request.Context())
	if err != nil {
		h.internalError(c, "Failed to list links", err)
		return
	}

	c.JSON(http.StatusOK, LinksResponse{Links: links})
}

// ResolveLink godoc
// @Summary Resolve a short link
// @Description Look up a link by short code and increment its access counter
// @Tags links
// @Produce json
// @Param shortCode path string true "Short code"
// @Success 200 {object} LinkResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /links/{shortCode} [get]
func (h *LinkHandler) ResolveLink(c *gin.Context) {
	code, ok := h.bindShortCode(c)
	if !ok {
		return
	}

	link, err := h.service.ResolveLink(c.Request.Context(), code)
	if err != nil {
		h.notFoundOrInternal(c, code, "Failed to resolve link", err)
		return
	}

	c.JSON(http.StatusOK, LinkResponse{Link: link})
}

// IncrementAccess godoc
// @Summary Increment access counter
// @Description Atomically increment the access counter of a link
// @Tags links
// @Produce json
// @Param shortCode path string true "Short code"
// @Success 200 {object} AccessCountResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /links/{shortCode}/access [patch]
func (h *LinkHandler) IncrementAccess(c *gin.Context) {
	code, ok := h.bindShortCode(c)
	if !ok {
		return
	}

	count, err := h.service.IncrementAccess(c.Request.Context(), code)
	if err != nil {
		h.notFoundOrInternal(c, code, "Failed to increment access count", err)
		return
	}

	c.JSON(http.StatusOK, AccessCountResponse{AccessCount: count})
}

// DeleteLink godoc
// @Summary Delete a short link
// @Description Delete a link by short code
// @Tags links
// @Produce json
// @Param shortCode path string true "Short code"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /links/{shortCode} [delete]
func (h *LinkHandler) DeleteLink(c *gin.Context) {
	code, ok := h.bindShortCode(c)
	if !ok {
		return
	}

	if err := h.service.DeleteLink(c.Request.Context(), code); err != nil {
		h.notFoundOrInternal(c, code, "Failed to delete link", err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ExportLinks godoc
// @Summary Export links as CSV
// @Description Build a CSV of all links, upload it to object storage and return its URL
// @Tags links
// @Produce json
// @Success 200 {object} ExportResponse
// @Failure 500 {object} ErrorResponse
// @Router /links/export [get]
func (h *LinkHandler) ExportLinks(c *gin.Context) {
	export, err := h.service.Export(c.Request.Context(), originHint(c))
	if err != nil {
		if errors.Is(err, service.ErrExportFailed) {
			h.logger.Error("Export upload failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "export_failed",
				Message: "Failed to export links",
			})
			return
		}
		h.internalError(c, "Failed to export links", err)
		return
	}

	c.JSON(http.StatusOK, ExportResponse{URL: export.URL})
}

// RecentExports godoc
// @Summary Recent exports
// @Description List the most recent successful CSV exports
// @Tags exports
// @Produce json
// @Param limit query int false "Maximum number of exports" default(50)
// @Success 200 {object} ExportsResponse
// @Failure 500 {object} ErrorResponse
// @Router /exports [get]
func (h *LinkHandler) RecentExports(c *gin.Context) {
	limit := 0
	if l := c.Query("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_request",
				Message: "limit must be a positive integer",
			})
			return
		}
		limit = n
	}

	exports, err := h.service.RecentExports(c.Request.Context(), limit)
	if err != nil {
		h.internalError(c, "Failed to list exports", err)
		return
	}

	c.JSON(http.StatusOK, ExportsResponse{Exports: exports})
}

// bindShortCode проверяет параметр пути до обращения к сервису
func (h *LinkHandler) bindShortCode(c *gin.Context) (string, bool) {
	var params ShortCodeParams
	if err := c.ShouldBindUri(&params); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: bindingMessage(err),
		})
		return "", false
	}
	return params.ShortCode, true
}

func (h *LinkHandler) notFoundOrInternal(c *gin.Context, code, msg string, err error) {
	if errors.Is(err, service.ErrLinkNotFound) {
		h.logger.Debug("Link not found", zap.String("short_code", code))
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Link not found",
		})
		return
	}
	h.internalError(c, msg, err)
}

// internalError логирует причину и отдаёт клиенту только краткое сообщение
func (h *LinkHandler) internalError(c *gin.Context, msg string, err error) {
	h.logger.Error(msg, zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: msg,
	})
}

// originHint источник для short_url: Origin, затем Referer
func originHint(c *gin.Context) string {
	if origin := c.GetHeader("Origin"); origin != "" {
		return origin
	}
	return c.Request.Referer()
}
