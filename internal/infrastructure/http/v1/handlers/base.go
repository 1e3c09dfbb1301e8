// Package handlers provides HTTP request handlers.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"pharmadesk/internal/core/apperror"
	appctx "pharmadesk/internal/core/context"
	"pharmadesk/internal/core/id"
	"pharmadesk/internal/infrastructure/http/v1/middleware"
)

const contentTypeJSON = "application/json; charset=utf-8"

// BaseHandler provides common handler utilities.
type BaseHandler struct{}

// NewBaseHandler creates a new base handler.
func NewBaseHandler() *BaseHandler {
	return &BaseHandler{}
}

// BindJSON binds and validates JSON request body.
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid request body").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// BindQuery binds and validates query parameters.
func (h *BaseHandler) BindQuery(c *gin.Context, obj any) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid query parameters").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// Error registers err on the gin context and aborts the request.
// middleware.ErrorHandler renders the response.
func (h *BaseHandler) Error(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// ParseID parses the path parameter name as an id.
func (h *BaseHandler) ParseID(c *gin.Context, name string) (id.ID, bool) {
	v, err := id.Parse(c.Param(name))
	if err != nil {
		h.Error(c, apperror.NewInvalidInput(name, "invalid id format"))
		return id.Nil(), false
	}
	return v, true
}

// ParseIntQuery parses integer query parameter with default value.
func (h *BaseHandler) ParseIntQuery(c *gin.Context, key string, defaultVal int) int {
	parsed, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return defaultVal
	}
	return parsed
}

// PharmacyID returns the pharmacy of the authenticated user.
func (h *BaseHandler) PharmacyID(c *gin.Context) string {
	return appctx.GetPharmacyID(c.Request.Context())
}

// UserID returns the authenticated user.
func (h *BaseHandler) UserID(c *gin.Context) string {
	return appctx.GetUserID(c.Request.Context())
}

// OK sends 200 response with data.
func (h *BaseHandler) OK(c *gin.Context, data any) {
	h.respond(c, http.StatusOK, data)
}

// Created sends 201 response with data.
func (h *BaseHandler) Created(c *gin.Context, data any) {
	h.respond(c, http.StatusCreated, data)
}

// respond writes body and stores it for idempotent replay, so a replayed request
// receives exactly the same bytes.
func (h *BaseHandler) respond(c *gin.Context, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		h.Error(c, apperror.NewInternal(err))
		return
	}
	middleware.CompleteIdempotency(c, status, contentTypeJSON, body)
	c.Data(status, contentTypeJSON, body)
}
