package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"property-pass/internal/core/auth"
	"property-pass/internal/core/server"
	"property-pass/internal/domain"
	mdw "property-pass/internal/transport/http/middleware"
)

// NewAdminEngine 管理端：ginzap + cors 打底，整个 /admin/v1 要求 admin 角色。
// 服务层的权限守卫仍然逐操作生效，这里只是外圈粗筛
func NewAdminEngine(l *zap.Logger, jwter *auth.JWTer, users domain.UserRepository) *gin.Engine {
	r := server.NewRouter(l)

	r.Use(
		mdw.RequestID(),
		mdw.MaxBodyBytes(16<<20),
		mdw.Metrics(),
	)

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": 1}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	admin := r.Group("/admin/v1")
	admin.Use(mdw.RequireActor(jwter, users, domain.RoleAdmin))

	MountAllAdmin(admin)

	return r
}
