// Package middleware 提供了处理 HTTP 请求的中间件。
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"insurapolis-go/internal/service"
	"insurapolis-go/pkg/token"
)

// AuthMiddleware 创建一个 Gin 中间件，用于 JWT 认证。
// 它从请求头中提取 token，验证签名与黑名单，并把完整的 User 对象存入 Gin 的上下文。
func AuthMiddleware(jwtManager *token.JWTManager, userService service.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "请求未包含授权头"})
			return
		}

		const bearerPrefix = "Bearer "
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "无效的授权头格式"})
			return
		}
		tokenString := strings.TrimPrefix(authHeader, bearerPrefix)

		claims, err := jwtManager.VerifyToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "无效或已过期的 token"})
			return
		}

		// 已登出的令牌在有效期内同样拒绝
		if userService.IsTokenRevoked(c.Request.Context(), tokenString) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token 已被吊销"})
			return
		}

		// 用 claims 中的用户 ID 加载完整用户信息；用户可能已不存在
		user, err := userService.GetProfile(claims.UserID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "用户不存在"})
			return
		}

		// 将完整的 User 对象存储在 context 中，供后续处理函数使用
		c.Set("user", user)
		c.Set("claims", claims)

		c.Next()
	}
}
