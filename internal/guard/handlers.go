package guard

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "github.com/openidx/hijackguard/internal/common/errors"
)

// Handler exposes the guard service over HTTP
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a Handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger.With(zap.String("handler", "guard")),
	}
}

// RegisterRoutes mounts the guard API under /api/v1
func (h *Handler) RegisterRoutes(router gin.IRouter) {
	v1 := router.Group("/api/v1")
	{
		v1.POST("/login", h.handleLogin)
		v1.POST("/federated/update", h.handleFederatedUpdate)
		v1.GET("/model", h.handleGetModel)
	}
}

func (h *Handler) handleLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Debug("Rejected login body", zap.Error(err))
		apperrors.HandleError(c, apperrors.BadRequest("Invalid request body").WithDetails(err.Error()))
		return
	}

	if req.Browser == "" {
		req.Browser = BrowserFromUserAgent(c.GetHeader("User-Agent"))
	}
	c.Set("user_id", req.UserID)

	resp, err := h.service.EvaluateLogin(c.Request.Context(), req)
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) handleFederatedUpdate(c *gin.Context) {
	var req FederatedUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Debug("Rejected federated update body", zap.Error(err))
		apperrors.HandleError(c, apperrors.BadRequest("Invalid request body").WithDetails(err.Error()))
		return
	}
	c.Set("user_id", req.UserID)

	ack, err := h.service.SubmitFederatedUpdate(c.Request.Context(), req)
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, ack)
}

func (h *Handler) handleGetModel(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.ModelSnapshot(c.Request.Context()))
}
