// handlers_auth.go - Account handlers proxied to the parking backend
package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/macapark/dashboard/internal/dashboard"
	"github.com/macapark/dashboard/internal/models"
	"github.com/macapark/dashboard/internal/restclient"
)

// AuthHandlerImpl implements the AuthHandler interface
type AuthHandlerImpl struct {
	backend Backend
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(backend Backend) AuthHandler {
	return &AuthHandlerImpl{backend: backend}
}

func (h *AuthHandlerImpl) rest() (*restclient.Client, error) {
	rest := h.backend.REST()
	if rest == nil {
		return nil, NewServiceUnavailableError(dashboard.ErrMsgNotConfigured)
	}
	return rest, nil
}

// HandleLogin exchanges credentials for a token
func (h *AuthHandlerImpl) HandleLogin(c echo.Context) error {
	var req models.LoginRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" {
		return NewValidationError("email", nil)
	}
	if req.Password == "" {
		return NewValidationError("password", nil)
	}

	rest, err := h.rest()
	if err != nil {
		return err
	}
	resp, err := rest.Login(c.Request().Context(), req)
	if err != nil {
		return upstreamError("login failed", err)
	}
	return c.JSON(http.StatusOK, resp)
}

// HandleRegister creates an account
func (h *AuthHandlerImpl) HandleRegister(c echo.Context) error {
	var req models.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	switch {
	case req.Name == "":
		return NewValidationError("name", nil)
	case req.Email == "":
		return NewValidationError("email", nil)
	case req.Password == "":
		return NewValidationError("password", nil)
	}

	rest, err := h.rest()
	if err != nil {
		return err
	}
	resp, err := rest.Register(c.Request().Context(), req)
	if err != nil {
		return upstreamError("registration failed", err)
	}
	return c.JSON(http.StatusCreated, resp)
}

// HandleMe returns the account behind the bearer token
func (h *AuthHandlerImpl) HandleMe(c echo.Context) error {
	token, ok := bearerToken(c)
	if !ok {
		return NewUnauthorizedError("missing bearer token")
	}
	rest, err := h.rest()
	if err != nil {
		return err
	}
	resp, err := rest.Me(c.Request().Context(), token)
	if err != nil {
		return upstreamError("failed to load account", err)
	}
	return c.JSON(http.StatusOK, resp)
}
