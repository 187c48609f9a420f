// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"insurapolis-go/internal/model"
	"insurapolis-go/internal/service"
	"insurapolis-go/pkg/log"
)

// UserHandler 负责处理所有与用户相关的 API 请求。
type UserHandler struct {
	userService service.UserService
}

// NewUserHandler 创建一个新的 UserHandler 实例。
func NewUserHandler(userService service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// RegisterRequest 定义了用户注册 API 的请求体结构。
type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Firstname string `json:"firstname" binding:"required"`
	Surname   string `json:"surname" binding:"required"`
	Password  string `json:"password" binding:"required,min=8"`
}

// Register 处理用户注册请求。
func (h *UserHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Register: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "无效的请求负载：邮箱、姓名和密码不能为空",
		})
		return
	}

	user, err := h.userService.Register(req.Email, req.Firstname, req.Surname, req.Password)
	if err != nil {
		log.Warnf("Register: User registration failed for '%s', error: %v", req.Email, err)
		c.JSON(http.StatusConflict, gin.H{
			"code":    http.StatusConflict,
			"message": "注册失败：邮箱可能已被使用",
		})
		return
	}

	log.Infof("User '%s' registered successfully", user.Email)
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "User registered successfully",
	})
}

// LoginRequest 定义了用户登录 API 的请求体结构。
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login 处理用户登录请求。
func (h *UserHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Login: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "无效的请求负载：邮箱和密码不能为空",
		})
		return
	}

	accessToken, refreshToken, err := h.userService.Login(req.Email, req.Password)
	if err != nil {
		log.Warnf("Login: User authentication failed for '%s', error: %v", req.Email, err)
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":    http.StatusUnauthorized,
			"message": "无效的凭证",
		})
		return
	}

	log.Infof("User '%s' logged in successfully", req.Email)
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Login successful",
		"data": gin.H{
			"token":        accessToken,
			"refreshToken": refreshToken,
		},
	})
}

// GetProfile 获取当前登录用户的个人信息。
// 用户信息已经由 AuthMiddleware 注入到上下文中。
func (h *UserHandler) GetProfile(c *gin.Context) {
	user, exists := c.Get("user")
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取用户信息"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": user, "message": "success"})
}

// Logout 处理用户登出逻辑，把当前令牌加入黑名单。
func (h *UserHandler) Logout(c *gin.Context) {
	authHeader := c.GetHeader("Authorization")
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")

	if err := h.userService.Logout(c.Request.Context(), tokenString); err != nil {
		log.Error("Logout: Failed to logout", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "登出失败",
		})
		return
	}

	user := c.MustGet("user").(*model.User)
	log.Infof("User '%s' logged out successfully", user.Email)
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "登出成功",
	})
}

// GetTotalTokens 返回当前用户全部对话消耗的 token 总数。
func (h *UserHandler) GetTotalTokens(c *gin.Context) {
	user := c.MustGet("user").(*model.User)

	tokens, err := h.userService.GetTotalTokens(user.ID)
	if err != nil {
		log.Error("GetTotalTokens: Failed to aggregate tokens", err)
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tokens":  tokens,
		"user_id": user.ID,
	})
}
