package audit

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"property-pass/internal/domain"
	"property-pass/internal/service"
	httpez "property-pass/internal/transport/http/ez"
	mdw "property-pass/internal/transport/http/middleware"
)

// Module 审计日志查询，只有管理端
type Module struct {
	audit *service.AuditService
}

func NewModule(a *service.AuditService) *Module { return &Module{audit: a} }

type listQ struct {
	Action       string `form:"action"`
	ResourceType string `form:"resourceType"`
	ResourceID   string `form:"resourceId"`
	ActorID      string `form:"actorId"`
	Limit        int    `form:"limit,default=100"`
}

func (m *Module) MountAdmin(admin *gin.RouterGroup) {
	ez := httpez.New(admin)

	httpez.RegisterAction[listQ, []domain.AuditLog](ez, httpez.Action[listQ, []domain.AuditLog]{
		Method: http.MethodGet,
		Path:   "/audit",
		Binder: httpez.BindQuery,
		Handler: func(c *gin.Context, in *listQ) ([]domain.AuditLog, error) {
			return m.audit.List(c.Request.Context(), mdw.ActorFrom(c), domain.AuditFilter{
				Action:       in.Action,
				ResourceType: in.ResourceType,
				ResourceID:   in.ResourceID,
				ActorID:      in.ActorID,
				Limit:        in.Limit,
			})
		},
	})

	httpez.RegisterAction[statsQ, *domain.AuditStats](ez, httpez.Action[statsQ, *domain.AuditStats]{
		Method: http.MethodGet,
		Path:   "/audit/stats",
		Binder: httpez.BindQuery,
		Handler: func(c *gin.Context, in *statsQ) (*domain.AuditStats, error) {
			f, err := in.toFilter()
			if err != nil {
				return nil, domain.Validation("dates must be YYYY-MM-DD")
			}
			return m.audit.Stats(c.Request.Context(), mdw.ActorFrom(c), f)
		},
	})
}

type statsQ struct {
	From string `form:"from"` // "2006-01-02"
	To   string `form:"to"`
}

// toFilter to 为含当日的闭界，换算成次日零点的开界
func (q *statsQ) toFilter() (domain.AuditStatsFilter, error) {
	var f domain.AuditStatsFilter
	if q.From != "" {
		t, err := time.Parse("2006-01-02", q.From)
		if err != nil {
			return f, err
		}
		f.From = t
	}
	if q.To != "" {
		t, err := time.Parse("2006-01-02", q.To)
		if err != nil {
			return f, err
		}
		f.To = t.AddDate(0, 0, 1)
	}
	return f, nil
}
