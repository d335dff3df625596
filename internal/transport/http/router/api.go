package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"property-pass/internal/core/auth"
	"property-pass/internal/domain"
	mdw "property-pass/internal/transport/http/middleware"
)

// NewAPIEngine 用户端：注册/登录公开，其余需登录（操作级权限在服务层）
func NewAPIEngine(l *zap.Logger, jwter *auth.JWTer, users domain.UserRepository) *gin.Engine {
	r := gin.New()

	r.Use(
		mdw.RequestID(),
		mdw.RateLimit(200, 400),
		mdw.ConcurrencyLimit(300),
		mdw.MaxBodyBytes(16<<20),
		mdw.Timeout(10*time.Second),
		mdw.SimpleRecovery(),
		mdw.Metrics(),
		mdw.AccessLog(l),
	)

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": 1}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	public := api.Group("")
	authed := api.Group("")
	authed.Use(mdw.RequireActor(jwter, users, ""))

	MountAllAPI(public, authed)

	return r
}
