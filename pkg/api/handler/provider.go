package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gm-agent-org/gm-settings/pkg/api/dto"
	"github.com/gm-agent-org/gm-settings/pkg/provider"
)

// ProviderHandler drives the local model provider integration.
type ProviderHandler struct {
	ctrl *provider.Controller
}

func NewProviderHandler(ctrl *provider.Controller) *ProviderHandler {
	return &ProviderHandler{ctrl: ctrl}
}

// Get godoc
// @Summary      Get provider state
// @Tags         provider
// @Produce      json
// @Success      200 {object} provider.Snapshot
// @Router       /api/v1/provider [get]
func (h *ProviderHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, h.ctrl.Snapshot())
}

// SetEnabled godoc
// @Summary      Enable or disable the integration
// @Description  Enabling starts model discovery in the background
// @Tags         provider
// @Accept       json
// @Produce      json
// @Param        request body dto.EnabledRequest true "Enabled flag"
// @Success      200 {object} provider.Snapshot
// @Failure      500 {object} dto.ErrorResponse
// @Router       /api/v1/provider/enabled [put]
func (h *ProviderHandler) SetEnabled(c *gin.Context) {
	var req dto.EnabledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}
	if err := h.ctrl.SetEnabled(c.Request.Context(), *req.Enabled); err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.ctrl.Snapshot())
}

// SetURL godoc
// @Summary      Change the provider base URL
// @Tags         provider
// @Accept       json
// @Produce      json
// @Param        request body dto.ProviderURLRequest true "Base URL"
// @Success      200 {object} provider.Snapshot
// @Failure      400 {object} dto.ErrorResponse
// @Router       /api/v1/provider/url [put]
func (h *ProviderHandler) SetURL(c *gin.Context) {
	var req dto.ProviderURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}
	if err := h.ctrl.ChangeBaseURL(c.Request.Context(), req.URL); err != nil {
		c.JSON(statusFor(err), dto.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.ctrl.Snapshot())
}

// SelectModel godoc
// @Summary      Select a model
// @Tags         provider
// @Accept       json
// @Produce      json
// @Param        request body dto.ProviderModelRequest true "Model name"
// @Success      200 {object} provider.Snapshot
// @Failure      400 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse
// @Router       /api/v1/provider/model [put]
func (h *ProviderHandler) SelectModel(c *gin.Context) {
	var req dto.ProviderModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}
	if err := h.ctrl.SelectModel(c.Request.Context(), req.Model); err != nil {
		c.JSON(statusFor(err), dto.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.ctrl.Snapshot())
}

// Test godoc
// @Summary      Probe the provider
// @Tags         provider
// @Produce      json
// @Success      200 {object} dto.ConnectionResponse
// @Router       /api/v1/provider/test [post]
func (h *ProviderHandler) Test(c *gin.Context) {
	c.JSON(http.StatusOK, dto.ConnectionResponse{Connected: h.ctrl.TestConnection(c.Request.Context())})
}

// Refresh godoc
// @Summary      Discover models now
// @Tags         provider
// @Produce      json
// @Success      200 {object} dto.ModelsResponse
// @Failure      409 {object} dto.ErrorResponse
// @Failure      502 {object} dto.ErrorResponse
// @Router       /api/v1/provider/refresh [post]
func (h *ProviderHandler) Refresh(c *gin.Context) {
	models, err := h.ctrl.DiscoverModels(c.Request.Context())
	if err != nil {
		c.JSON(statusFor(err), dto.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.ModelsResponse{Models: models})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, provider.ErrInvalidURL), errors.Is(err, provider.ErrEmptyModel):
		return http.StatusBadRequest
	case errors.Is(err, provider.ErrDisabled), errors.Is(err, provider.ErrStaleResult):
		return http.StatusConflict
	case errors.Is(err, provider.ErrPersistFailed):
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}
