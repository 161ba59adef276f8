package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/mine-game/internal/utils"
)

// AdminAuth 管理端JWT认证中间件
type AdminAuth struct {
	jwtManager *utils.JWTManager
}

// NewAdminAuth 创建管理端认证中间件
func NewAdminAuth(jwtManager *utils.JWTManager) *AdminAuth {
	return &AdminAuth{
		jwtManager: jwtManager,
	}
}

// RequireAdmin 管理端接口必须携带有效令牌
func (m *AdminAuth) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := m.extractToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    "NO_TOKEN",
				"message": "缺少认证令牌",
			})
			c.Abort()
			return
		}

		claims, err := m.jwtManager.ValidateToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    "INVALID_TOKEN",
				"message": "无效的令牌",
				"details": err.Error(),
			})
			c.Abort()
			return
		}

		c.Set("role", claims.Role)
		c.Set("token", token)

		c.Next()
	}
}

// extractToken 从请求中提取令牌
func (m *AdminAuth) extractToken(c *gin.Context) string {
	// 1. Authorization Header (Bearer Token)
	bearerToken := c.GetHeader("Authorization")
	if bearerToken != "" {
		parts := strings.Split(bearerToken, " ")
		if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
			return parts[1]
		}
	}

	// 2. Cookie
	if token, err := c.Cookie("admin_token"); err == nil && token != "" {
		return token
	}

	return ""
}

// IsAdmin 检查当前请求是否已通过管理端认证
func IsAdmin(c *gin.Context) bool {
	role, exists := c.Get("role")
	if !exists {
		return false
	}
	r, ok := role.(string)
	return ok && r == "admin"
}
