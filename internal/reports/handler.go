package reports

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"mercado/internal/logger"
	"mercado/pkg/errors"
)

type BaseHandler struct {
	Logger logger.Logger
}

func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	status := errors.ToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.Logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)
	} else {
		h.Logger.WarnwCtx(c.Request.Context(), "Request rejected", "error", err, "path", c.Request.URL.Path)
	}
	c.JSON(status, errors.ToErrorResponse(err))
}

type Submitter interface {
	Submit(ctx context.Context, s Submission) (Accepted, error)
}

// SubmissionHandler serves the consumer-facing report endpoint.
type SubmissionHandler struct {
	BaseHandler
	producer Submitter
}

func NewSubmissionHandler(producer Submitter, log logger.Logger) *SubmissionHandler {
	return &SubmissionHandler{BaseHandler: BaseHandler{Logger: log}, producer: producer}
}

func (h *SubmissionHandler) RegisterRoutes(router gin.IRouter) {
	router.POST("/api/reportar", h.Submit)
}

type SubmitResponse struct {
	Mensaje string `json:"mensaje"`
}

// Submit godoc
// @Summary      Report a price inconsistency
// @Description  Validates the report and enqueues it for asynchronous persistence
// @Tags         reportes
// @Accept       json
// @Produce      json
// @Param        reporte  body      Submission  true  "Report data"
// @Success      202      {object}  SubmitResponse
// @Failure      400      {object}  errors.ErrorResponse
// @Failure      500      {object}  errors.ErrorResponse
// @Router       /reportar [post]
func (h *SubmissionHandler) Submit(c *gin.Context) {
	var req Submission
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleError(c, errors.ErrValidation.WithCause(err))
		return
	}

	if _, err := h.producer.Submit(c.Request.Context(), req); err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, SubmitResponse{Mensaje: "Reporte recibido. Será procesado de forma asíncrona."})
}

// RegulatorHandler serves the regulator's review endpoints.
type RegulatorHandler struct {
	BaseHandler
	service *Service
}

func NewRegulatorHandler(service *Service, log logger.Logger) *RegulatorHandler {
	return &RegulatorHandler{BaseHandler: BaseHandler{Logger: log}, service: service}
}

func (h *RegulatorHandler) RegisterRoutes(router gin.IRouter) {
	group := router.Group("/api/inconsistencias")
	{
		group.GET("", h.List)
		group.GET("/:id", h.Get)
		group.PUT("/:id/estado", h.UpdateStatus)
	}
}

type ListResponse struct {
	TotalReportes int      `json:"total_reportes"`
	Reportes      []Report `json:"reportes"`
}

type GetResponse struct {
	Reporte Report `json:"reporte"`
}

type UpdateStatusRequest struct {
	NuevoEstado string `json:"nuevo_estado"`
}

type UpdateStatusResponse struct {
	Mensaje     string `json:"mensaje"`
	ReporteID   string `json:"reporte_id"`
	NuevoEstado Status `json:"nuevo_estado"`
}

// List godoc
// @Summary      List inconsistency reports
// @Description  Ordered by estado alphabetically (EN_REVISION, PENDIENTE, RESUELTO), newest first within each state
// @Tags         inconsistencias
// @Produce      json
// @Success      200  {object}  ListResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /inconsistencias [get]
func (h *RegulatorHandler) List(c *gin.Context) {
	reports, err := h.service.List(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, ListResponse{TotalReportes: len(reports), Reportes: reports})
}

// Get godoc
// @Summary      Get an inconsistency report
// @Tags         inconsistencias
// @Produce      json
// @Param        id   path      string  true  "Report ID"
// @Success      200  {object}  GetResponse
// @Failure      404  {object}  errors.ErrorResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /inconsistencias/{id} [get]
func (h *RegulatorHandler) Get(c *gin.Context) {
	report, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, GetResponse{Reporte: report})
}

// UpdateStatus godoc
// @Summary      Change the review state of a report
// @Tags         inconsistencias
// @Accept       json
// @Produce      json
// @Param        id       path      string               true  "Report ID"
// @Param        estado   body      UpdateStatusRequest  true  "PENDIENTE, EN_REVISION or RESUELTO"
// @Success      200      {object}  UpdateStatusResponse
// @Failure      400      {object}  errors.ErrorResponse
// @Failure      404      {object}  errors.ErrorResponse
// @Failure      500      {object}  errors.ErrorResponse
// @Router       /inconsistencias/{id}/estado [put]
func (h *RegulatorHandler) UpdateStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleError(c, ErrInvalidStatus.WithCause(err))
		return
	}

	id := c.Param("id")
	report, err := h.service.UpdateStatus(c.Request.Context(), id, req.NuevoEstado)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, UpdateStatusResponse{
		Mensaje:     fmt.Sprintf("Estado actualizado a %s.", report.Estado),
		ReporteID:   id,
		NuevoEstado: report.Estado,
	})
}
