package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"property-pass/internal/core/auth"
	"property-pass/internal/domain"
	resp "property-pass/internal/transport/http/response"
)

const keyActor = "actor"

// RequireActor 解析 Bearer token 后总是回库取最新用户行再构造操作者，
// 审批/停用立即生效，不等 token 过期。requireRole 非空时额外卡角色
func RequireActor(j *auth.JWTer, users domain.UserRepository, requireRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ah := c.GetHeader("Authorization")
		if !strings.HasPrefix(ah, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusOK, resp.Error(resp.CodeUnauthorized, "missing token"))
			return
		}
		claims, err := j.Parse(strings.TrimPrefix(ah, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusOK, resp.Error(resp.CodeUnauthorized, "invalid token"))
			return
		}
		u, err := users.FindByID(c.Request.Context(), claims.UID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusOK, resp.Error(resp.CodeServerError, "load user failed"))
			return
		}
		if u == nil {
			c.AbortWithStatusJSON(http.StatusOK, resp.Error(resp.CodeUnauthorized, "invalid token"))
			return
		}
		if !u.IsActive {
			c.AbortWithStatusJSON(http.StatusOK, resp.Error(resp.CodeForbidden, "account is deactivated"))
			return
		}
		if requireRole != "" && u.Role != requireRole {
			c.AbortWithStatusJSON(http.StatusOK, resp.Error(resp.CodeForbidden, "forbidden"))
			return
		}
		c.Set(keyActor, domain.Actor{
			UserID:     u.ID,
			Email:      u.Email,
			Role:       u.Role,
			IsApproved: u.IsApproved,
			IsActive:   u.IsActive,
		})
		c.Next()
	}
}

// ActorFrom 未经过 RequireActor 的分组返回匿名操作者
func ActorFrom(c *gin.Context) domain.Actor {
	if v, ok := c.Get(keyActor); ok {
		if a, ok := v.(domain.Actor); ok {
			return a
		}
	}
	return domain.Anonymous()
}
