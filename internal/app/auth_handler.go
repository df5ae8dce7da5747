package app

import (
	"errors"
	"net/http"
	"strings"

	"koboland/internal/service"
	"koboland/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

var (
	errAuthHeaderMissing = errors.New("authorization header required")
	errAuthHeaderFormat  = errors.New("invalid authorization header format")
)

type AuthHandler struct {
	authService service.AuthService
	jwtSecret   string
}

func NewAuthHandler(authService service.AuthService, jwtSecret string) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		jwtSecret:   jwtSecret,
	}
}

// Register handles user registration
// POST /api/v1/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, registerValidationMessage(err))
		return
	}

	resp, err := h.authService.Register(req)
	if err != nil {
		util.ErrorResponse(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	util.SuccessResponse(c, http.StatusCreated, "Account created successfully", resp)
}

// Login handles user login
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}

	resp, err := h.authService.Login(req)
	if err != nil {
		util.Unauthorized(c, err.Error())
		return
	}

	util.SuccessResponse(c, http.StatusOK, "Login successful", resp)
}

// GetMe handles getting current user info
// GET /api/v1/auth/me
func (h *AuthHandler) GetMe(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		util.Unauthorized(c, "User not authenticated")
		return
	}

	user, err := h.authService.GetMe(userID.(string))
	if err != nil {
		util.NotFound(c, "User not found")
		return
	}

	util.SuccessResponse(c, http.StatusOK, "User retrieved successfully", gin.H{"user": user})
}

// AuthMiddleware validates the JWT and re-checks the account. A ban must
// take effect immediately, not when the token expires.
func (h *AuthHandler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := h.claimsFromRequest(c)
		if err != nil {
			util.Unauthorized(c, err.Error())
			c.Abort()
			return
		}

		user, err := h.authService.GetMe(claims.UserID)
		if err != nil {
			util.Unauthorized(c, "User not found")
			c.Abort()
			return
		}
		if user.IsBanned {
			util.ErrorResponse(c, http.StatusForbidden, "account is banned", nil)
			c.Abort()
			return
		}

		c.Set("userID", claims.UserID)
		c.Set("username", claims.Username)
		c.Next()
	}
}

// OptionalAuthMiddleware sets the viewer identity when a valid token is
// present but lets anonymous requests through. Banned accounts read as
// anonymous.
func (h *AuthHandler) OptionalAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, err := h.claimsFromRequest(c); err == nil {
			if user, err := h.authService.GetMe(claims.UserID); err == nil && !user.IsBanned {
				c.Set("userID", claims.UserID)
				c.Set("username", claims.Username)
			}
		}
		c.Next()
	}
}

// registerValidationMessage turns binding errors into user-friendly messages
func registerValidationMessage(err error) string {
	var validationErr validator.ValidationErrors
	if !errors.As(err, &validationErr) {
		return err.Error()
	}

	for _, fieldErr := range validationErr {
		switch fieldErr.Field() {
		case "Username":
			switch fieldErr.Tag() {
			case "min", "max":
				return "Username must be between 3 and 32 characters"
			case "alphanum":
				return "Username may only contain letters and digits"
			}
			return "Username is required"
		case "Email":
			return "A valid email address is required"
		case "Password":
			switch fieldErr.Tag() {
			case "min":
				return "Password must be at least 8 characters"
			case "max":
				return "Password must be at most 128 characters"
			}
			return "Password is required"
		}
	}
	return err.Error()
}

func (h *AuthHandler) claimsFromRequest(c *gin.Context) (*util.Claims, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return nil, errAuthHeaderMissing
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, errAuthHeaderFormat
	}

	return util.ValidateToken(parts[1], h.jwtSecret)
}
