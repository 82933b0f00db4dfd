package notification

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"mercado/internal/logger"
	"mercado/pkg/errors"
)

type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

type Handler struct {
	notifier Notifier
	logger   logger.Logger
}

func NewHandler(notifier Notifier, log logger.Logger) *Handler {
	return &Handler{notifier: notifier, logger: log}
}

type AcceptedResponse struct {
	Mensaje string `json:"mensaje"`
}

func (h *Handler) RegisterRoutes(router gin.IRouter) {
	api := router.Group("/api")
	{
		api.POST("/notificaciones", h.NotifyOffer)
		api.POST("/reportes", h.NotifyReport)
	}
}

func (h *Handler) handleError(c *gin.Context, err error) {
	h.logger.WarnwCtx(c.Request.Context(), "Notification rejected", "error", err, "path", c.Request.URL.Path)
	c.JSON(errors.ToHTTPStatus(err), errors.ToErrorResponse(err))
}

// NotifyOffer godoc
// @Summary      Broadcast an offer
// @Description  Fans an offer out to every connected client
// @Tags         notificaciones
// @Accept       json
// @Produce      json
// @Param        oferta  body      object  true  "Offer with supermercado, producto and precio"
// @Success      202     {object}  AcceptedResponse
// @Failure      400     {object}  errors.ErrorResponse
// @Failure      503     {object}  errors.ErrorResponse
// @Router       /notificaciones [post]
func (h *Handler) NotifyOffer(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.handleError(c, errors.ErrValidation.WithCause(err))
		return
	}

	ev, err := NewOfferEvent(body)
	if err != nil {
		h.handleError(c, err)
		return
	}

	if err := h.notifier.Notify(c.Request.Context(), ev); err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, AcceptedResponse{Mensaje: "Notificación procesada y enviada a través de WSS."})
}

// NotifyReport godoc
// @Summary      Broadcast a new report
// @Description  Announces a newly persisted inconsistency report to connected clients
// @Tags         notificaciones
// @Accept       json
// @Produce      json
// @Param        reporte  body      ReportSignal  true  "Report id and product"
// @Success      202      {object}  AcceptedResponse
// @Failure      400      {object}  errors.ErrorResponse
// @Failure      503      {object}  errors.ErrorResponse
// @Router       /reportes [post]
func (h *Handler) NotifyReport(c *gin.Context) {
	var signal ReportSignal
	if err := c.ShouldBindJSON(&signal); err != nil {
		h.handleError(c, errors.ErrValidation.WithCause(err))
		return
	}

	if err := h.notifier.Notify(c.Request.Context(), NewReportEvent(signal)); err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, AcceptedResponse{Mensaje: "Notificación de reporte enviada."})
}
