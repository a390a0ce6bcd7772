package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"diaspora-api/internal/domain"
	"diaspora-api/internal/service"
)

// UserHandler mantiene dependencias para endpoints de usuarios.
type UserHandler struct {
	logger   *zap.Logger
	userServ *service.UserService
}

// NewUserHandler crea una instancia de UserHandler con dependencias necesarias.
func NewUserHandler(logger *zap.Logger, userServ *service.UserService) *UserHandler {
	return &UserHandler{
		logger:   logger,
		userServ: userServ,
	}
}

// Signup maneja POST /api/v1/public/signup.
func (h *UserHandler) Signup(c *gin.Context) {
	var req struct {
		Name      string `json:"name"`
		Email     string `json:"email" binding:"required,email"`
		Phone     string `json:"phone"`
		Password  string `json:"password" binding:"required"`
		Password2 string `json:"password2"`
		UserType  string `json:"user_type"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		// Con el JSON ya decodificado, la discrepancia de contraseñas se reporta antes que la validacion.
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) || req.Password == req.Password2 {
			h.invalidRequest(c, "invalid signup request", err)
			return
		}
	}

	user, err := h.userServ.Signup(c.Request.Context(), service.SignupInput{
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Password:  req.Password,
		Password2: req.Password2,
		UserType:  req.UserType,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPasswordMismatch):
			sendResponse(c, http.StatusBadRequest, "Passwords does not match", nil,
				gin.H{"password": "password does not match"})
		case errors.Is(err, service.ErrEmailTaken):
			sendResponse(c, http.StatusBadRequest, "email has been taken", nil,
				gin.H{"email": "email has been taken"})
		case errors.Is(err, service.ErrInvalidEmail):
			sendResponse(c, http.StatusBadRequest, "invalid email", nil,
				gin.H{"email": "invalid email"})
		case errors.Is(err, service.ErrRateLimited):
			sendResponse(c, http.StatusTooManyRequests, "too many requests", nil,
				gin.H{"email": "too many verification emails, try again later"})
		default:
			_ = c.Error(err)
		}
		return
	}

	sendResponse(c, http.StatusOK, "success", user, nil)
}

// Login maneja POST /api/v1/public/login.
func (h *UserHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.invalidRequest(c, "invalid login request", err)
		return
	}

	user, token, err := h.userServ.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			// Distinto de credenciales invalidas: revela si el email existe.
			sendResponse(c, http.StatusNotFound, "User does not exist", nil,
				gin.H{"error": "User does not exist"})
		case errors.Is(err, service.ErrInvalidCredentials):
			sendResponse(c, http.StatusBadRequest, "invalid email or password", nil,
				gin.H{"error": "invalid email or password"})
		default:
			_ = c.Error(err)
		}
		return
	}

	sendResponseWithToken(c, user, token)
}

// ListUsers maneja POST /api/v1/users. Un cuerpo vacio lista todos los usuarios.
func (h *UserHandler) ListUsers(c *gin.Context) {
	var filter domain.UserFilter
	if err := c.ShouldBindJSON(&filter); err != nil && !errors.Is(err, io.EOF) {
		h.invalidRequest(c, "invalid list users request", err)
		return
	}

	users, err := h.userServ.List(c.Request.Context(), filter)
	if err != nil {
		_ = c.Error(err)
		return
	}
	sendResponse(c, http.StatusOK, "success", users, nil)
}

func (h *UserHandler) invalidRequest(c *gin.Context, logMsg string, err error) {
	h.logger.Warn(logMsg, zap.Error(err))
	sendResponse(c, http.StatusBadRequest, "invalid request", nil, gin.H{"error": "invalid request"})
}
