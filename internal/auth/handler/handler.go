package handler

import (
	"errors"
	"net/http"

	"crescoflow/internal/auth/service"
	"crescoflow/internal/auth/transport"
	"crescoflow/platform/httpkit"
	"crescoflow/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/login", h.Login)
}

func (h *Handler) Login(c *gin.Context) {
	var req transport.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.Describe(err))
		return
	}

	tok, err := h.svc.Login(req.Email, req.Password)
	switch {
	case errors.Is(err, service.ErrLoginDisabled):
		httpkit.Error(c, http.StatusServiceUnavailable, err.Error(), nil)
		return
	case err != nil:
		httpkit.Error(c, http.StatusUnauthorized, err.Error(), nil)
		return
	}
	httpkit.OK(c, transport.AuthResponse{AccessToken: tok.Value, ExpiresAt: tok.ExpiresAt})
}

// GetMe returns the operator behind the request token.
func (h *Handler) GetMe(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}
	httpkit.OK(c, transport.OperatorResponse{ID: id.OperatorID().String(), Email: id.Email()})
}
