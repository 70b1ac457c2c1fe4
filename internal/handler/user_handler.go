package handler

import (
	"net/http"

	"study-with-speech/internal/middleware"
	"study-with-speech/internal/service"
	"study-with-speech/pkg/log"

	"github.com/gin-gonic/gin"
)

// UserHandler 负责处理注册、登录以及用户资料相关的 API 请求。
type UserHandler struct {
	userService service.UserService
}

// NewUserHandler 创建一个新的 UserHandler 实例。
func NewUserHandler(userService service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// RegisterRequest 定义了用户注册 API 的请求体结构。
type RegisterRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name" binding:"required"`
}

// Register 处理用户注册请求。
func (h *UserHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Register: Invalid request payload, error: %v", err)
		badRequest(c, "email, password and name are required")
		return
	}

	user, err := h.userService.Register(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		writeError(c, "Register", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":    user.ID,
		"email": user.Email,
		"name":  user.Name,
	})
}

// LoginRequest 定义了用户登录 API 的请求体结构。
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 处理用户登录请求。
func (h *UserHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Login: Invalid request payload, error: %v", err)
		badRequest(c, "email and password are required")
		return
	}

	accessToken, refreshToken, user, err := h.userService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, "Login", err)
		return
	}

	log.Infow("User logged in", "userId", user.ID)
	c.JSON(http.StatusOK, gin.H{
		"token":        accessToken,
		"refreshToken": refreshToken,
		"user":         user,
	})
}

// LogoutRequest 是可选的登出请求体。
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Logout 使当前 access token 失效；请求体带 refreshToken 时一并吊销。
func (h *UserHandler) Logout(c *gin.Context) {
	var req LogoutRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}
	tokenString := c.GetString(middleware.ContextTokenKey)
	if err := h.userService.Logout(c.Request.Context(), tokenString, req.RefreshToken); err != nil {
		writeError(c, "Logout", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Me 返回当前登录用户。
func (h *UserHandler) Me(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, user)
}

// List 返回所有用户（不含密码哈希）。
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.userService.ListUsers(c.Request.Context())
	if err != nil {
		writeError(c, "ListUsers", err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// ProfileImageRequest 定义了更新头像的请求体。
type ProfileImageRequest struct {
	ProfileImage string `json:"profileImage"`
}

// UpdateProfileImage 更新当前用户的头像。
func (h *UserHandler) UpdateProfileImage(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	var req ProfileImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "profileImage is required")
		return
	}

	stored, err := h.userService.UpdateProfileImage(c.Request.Context(), user.ID, req.ProfileImage)
	if err != nil {
		writeError(c, "UpdateProfileImage", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profileImage": stored})
}
