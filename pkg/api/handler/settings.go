package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gm-agent-org/gm-settings/pkg/api/dto"
	"github.com/gm-agent-org/gm-settings/pkg/settings"
)

// SettingsHandler exposes the working settings document.
type SettingsHandler struct {
	agg *settings.Aggregator
}

func NewSettingsHandler(agg *settings.Aggregator) *SettingsHandler {
	return &SettingsHandler{agg: agg}
}

// Get godoc
// @Summary      Get the working settings
// @Tags         settings
// @Produce      json
// @Success      200 {object} settings.View
// @Router       /api/v1/settings [get]
func (h *SettingsHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, h.agg.Snapshot())
}

// Patch godoc
// @Summary      Update scalar settings fields
// @Description  Body maps field names to values; null clears optional fields
// @Tags         settings
// @Accept       json
// @Produce      json
// @Success      200 {object} settings.View
// @Failure      400 {object} dto.ErrorResponse
// @Router       /api/v1/settings [patch]
func (h *SettingsHandler) Patch(c *gin.Context) {
	var fields map[string]any
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}

	if err := h.agg.UpdateMany(fields); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.agg.Snapshot())
}

// Diff godoc
// @Summary      Preview what a save would write
// @Tags         settings
// @Produce      json
// @Success      200 {object} dto.DiffResponse
// @Router       /api/v1/settings/diff [get]
func (h *SettingsHandler) Diff(c *gin.Context) {
	diff, err := h.agg.Diff()
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.DiffResponse{Changed: diff != "", Diff: diff})
}

// Save godoc
// @Summary      Save settings and commit deferred changes
// @Tags         settings
// @Produce      json
// @Success      200 {object} dto.SaveResponse
// @Success      207 {object} dto.SaveResponse
// @Failure      500 {object} dto.ErrorResponse
// @Router       /api/v1/settings/save [post]
func (h *SettingsHandler) Save(c *gin.Context) {
	result, err := h.agg.Save(c.Request.Context())
	resp := dto.SaveResponse{
		Persisted: result.Persisted,
		Committed: result.Committed,
		Failed:    result.Failed,
	}
	switch {
	case err == nil:
		c.JSON(http.StatusOK, resp)
	case errors.Is(err, settings.ErrDeferredCommitFailed):
		resp.Error = err.Error()
		c.JSON(http.StatusMultiStatus, resp)
	default:
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
	}
}

// Reload godoc
// @Summary      Discard edits and reload from disk
// @Tags         settings
// @Produce      json
// @Success      200 {object} settings.View
// @Router       /api/v1/settings/reload [post]
func (h *SettingsHandler) Reload(c *gin.Context) {
	// A degraded load is reported through the view and the notification queue.
	_ = h.agg.Load(c.Request.Context())
	c.JSON(http.StatusOK, h.agg.Snapshot())
}

// bindOptionalJSON binds the request body into obj. An absent body leaves
// obj at its zero value.
func bindOptionalJSON(c *gin.Context, obj any) error {
	if c.Request.Body == nil || c.Request.Body == http.NoBody {
		return nil
	}
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (h *SettingsHandler) ruleList(c *gin.Context) *settings.RuleList {
	switch c.Param("list") {
	case "allow":
		return h.agg.Allow()
	case "deny":
		return h.agg.Deny()
	}
	c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "unknown permission list"})
	return nil
}

// AddRule godoc
// @Summary      Add a permission rule
// @Tags         permissions
// @Accept       json
// @Produce      json
// @Param        list path string true "allow or deny"
// @Param        request body dto.RuleRequest false "Initial value"
// @Success      201 {object} dto.IDResponse
// @Router       /api/v1/permissions/{list} [post]
func (h *SettingsHandler) AddRule(c *gin.Context) {
	list := h.ruleList(c)
	if list == nil {
		return
	}
	var req dto.RuleRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}
	id := list.Add()
	if req.Value != "" {
		list.Update(id, req.Value)
	}
	c.JSON(http.StatusCreated, dto.IDResponse{ID: id})
}

// UpdateRule godoc
// @Summary      Update a permission rule
// @Tags         permissions
// @Accept       json
// @Produce      json
// @Param        list path string true "allow or deny"
// @Param        id path string true "Rule ID"
// @Param        request body dto.RuleRequest true "New value"
// @Success      200 {object} dto.IDResponse
// @Failure      404 {object} dto.ErrorResponse
// @Router       /api/v1/permissions/{list}/{id} [put]
func (h *SettingsHandler) UpdateRule(c *gin.Context) {
	list := h.ruleList(c)
	if list == nil {
		return
	}
	var req dto.RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}
	id := c.Param("id")
	if !list.Update(id, req.Value) {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "rule not found"})
		return
	}
	c.JSON(http.StatusOK, dto.IDResponse{ID: id})
}

// RemoveRule godoc
// @Summary      Remove a permission rule
// @Tags         permissions
// @Produce      json
// @Param        list path string true "allow or deny"
// @Param        id path string true "Rule ID"
// @Success      200 {object} dto.DeleteResponse
// @Failure      404 {object} dto.ErrorResponse
// @Router       /api/v1/permissions/{list}/{id} [delete]
func (h *SettingsHandler) RemoveRule(c *gin.Context) {
	list := h.ruleList(c)
	if list == nil {
		return
	}
	if !list.Remove(c.Param("id")) {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "rule not found"})
		return
	}
	c.JSON(http.StatusOK, dto.DeleteResponse{Deleted: true})
}

// AddEnv godoc
// @Summary      Add an environment variable
// @Tags         env
// @Accept       json
// @Produce      json
// @Param        request body dto.EnvRequest false "Initial key and value"
// @Success      201 {object} dto.IDResponse
// @Router       /api/v1/env [post]
func (h *SettingsHandler) AddEnv(c *gin.Context) {
	var req dto.EnvRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}
	env := h.agg.Env()
	id := env.Add()
	if req.Key != "" || req.Value != "" {
		env.Update(id, req.Key, req.Value)
	}
	c.JSON(http.StatusCreated, dto.IDResponse{ID: id})
}

// UpdateEnv godoc
// @Summary      Update an environment variable
// @Tags         env
// @Accept       json
// @Produce      json
// @Param        id path string true "Variable ID"
// @Param        request body dto.EnvRequest true "New key and value"
// @Success      200 {object} dto.IDResponse
// @Failure      404 {object} dto.ErrorResponse
// @Router       /api/v1/env/{id} [put]
func (h *SettingsHandler) UpdateEnv(c *gin.Context) {
	var req dto.EnvRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}
	id := c.Param("id")
	if !h.agg.Env().Update(id, req.Key, req.Value) {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "variable not found"})
		return
	}
	c.JSON(http.StatusOK, dto.IDResponse{ID: id})
}

// RemoveEnv godoc
// @Summary      Remove an environment variable
// @Tags         env
// @Produce      json
// @Param        id path string true "Variable ID"
// @Success      200 {object} dto.DeleteResponse
// @Failure      404 {object} dto.ErrorResponse
// @Router       /api/v1/env/{id} [delete]
func (h *SettingsHandler) RemoveEnv(c *gin.Context) {
	if !h.agg.Env().Remove(c.Param("id")) {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "variable not found"})
		return
	}
	c.JSON(http.StatusOK, dto.DeleteResponse{Deleted: true})
}

// StageDeferred godoc
// @Summary      Stage a value on a deferred sub-module
// @Description  The value is committed by the next save
// @Tags         deferred
// @Accept       json
// @Produce      json
// @Param        module path string true "binaryPath, userHooks or proxySettings"
// @Param        request body dto.DeferredRequest true "Value"
// @Success      200 {object} settings.View
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Router       /api/v1/deferred/{module} [put]
func (h *SettingsHandler) StageDeferred(c *gin.Context) {
	var req dto.DeferredRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}
	if err := h.agg.StageDeferred(c.Param("module"), req.Value); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, settings.ErrUnknownModule) {
			status = http.StatusNotFound
		}
		c.JSON(status, dto.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.agg.Snapshot())
}

// SetStartupIntro godoc
// @Summary      Toggle the startup intro
// @Tags         preferences
// @Accept       json
// @Produce      json
// @Param        request body dto.EnabledRequest true "Enabled flag"
// @Success      200 {object} settings.View
// @Failure      500 {object} dto.ErrorResponse
// @Router       /api/v1/preferences/startup-intro [put]
func (h *SettingsHandler) SetStartupIntro(c *gin.Context) {
	var req dto.EnabledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}
	if err := h.agg.SetStartupIntro(c.Request.Context(), *req.Enabled); err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.agg.Snapshot())
}
