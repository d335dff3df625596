package assets

import (
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"property-pass/internal/domain"
	"property-pass/internal/service"
	"property-pass/internal/storage"
	httpez "property-pass/internal/transport/http/ez"
	mdw "property-pass/internal/transport/http/middleware"
	resp "property-pass/internal/transport/http/response"
)

// Module 资产登记 + 保管流转的 HTTP 面，设备/家具各挂一份。
// BindCreate/BindUpdate 由具体资产包提供（类目字段不同）
type Module[T domain.Asset] struct {
	Path string // 路由前缀："equipment" / "furniture"
	Svc  *service.AssetService[T]

	BindCreate func(c *gin.Context) (T, error)
	BindUpdate func(c *gin.Context) (map[string]any, error)
	Catalog    func() gin.H
}

type assignIn struct {
	UserID            string `json:"userId"            binding:"required"`
	AssignmentType    string `json:"assignmentType"    binding:"required"`
	AssignedDate      string `json:"assignedDate"      binding:"required"` // "2006-01-02"
	PARNumber         string `json:"parNumber"         binding:"omitempty,max=100"`
	PreviousRecipient string `json:"previousRecipient" binding:"omitempty,max=255"`
}

func (m *Module[T]) MountAPI(public, authed *gin.RouterGroup) {
	ez := httpez.New(authed)

	// 自助查询：我名下的资产
	httpez.RegisterAction[struct{}, []T](ez, httpez.Action[struct{}, []T]{
		Method: http.MethodGet,
		Path:   "/my-" + m.Path,
		Binder: httpez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) ([]T, error) {
			actor := mdw.ActorFrom(c)
			return m.Svc.ListByCustodian(c.Request.Context(), actor, actor.UserID)
		},
	})

	// 保管人下载自己资产的 PAR 扫描件
	authed.GET("/my-"+m.Path+"/:id/par", m.serveDocument)
}

func (m *Module[T]) MountAdmin(admin *gin.RouterGroup) {
	ez := httpez.New(admin)
	base := "/" + m.Path

	admin.POST(base, func(c *gin.Context) {
		a, err := m.BindCreate(c)
		if err != nil {
			c.JSON(http.StatusOK, resp.Error(resp.CodeBadRequest, err.Error()))
			return
		}
		out, err := m.Svc.Create(c.Request.Context(), mdw.ActorFrom(c), a)
		if err != nil {
			c.JSON(http.StatusOK, resp.Error(httpez.CodeOf(err), err.Error()))
			return
		}
		c.JSON(http.StatusOK, resp.OK(out))
	})

	httpez.RegisterAction[struct{}, []T](ez, httpez.Action[struct{}, []T]{
		Method: http.MethodGet,
		Path:   base,
		Binder: httpez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) ([]T, error) {
			return m.Svc.ListAll(c.Request.Context(), mdw.ActorFrom(c))
		},
	})

	httpez.RegisterAction[struct{}, []T](ez, httpez.Action[struct{}, []T]{
		Method: http.MethodGet,
		Path:   base + "/available",
		Binder: httpez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) ([]T, error) {
			return m.Svc.ListAvailable(c.Request.Context(), mdw.ActorFrom(c))
		},
	})

	httpez.RegisterAction[struct{}, *service.Stats](ez, httpez.Action[struct{}, *service.Stats]{
		Method: http.MethodGet,
		Path:   base + "/stats",
		Binder: httpez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (*service.Stats, error) {
			return m.Svc.Stats(c.Request.Context(), mdw.ActorFrom(c))
		},
	})

	httpez.RegisterAction[struct{}, gin.H](ez, httpez.Action[struct{}, gin.H]{
		Method: http.MethodGet,
		Path:   base + "/catalogs",
		Binder: httpez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (gin.H, error) {
			return m.Catalog(), nil
		},
	})

	httpez.RegisterAction[struct{}, T](ez, httpez.Action[struct{}, T]{
		Method: http.MethodGet,
		Path:   base + "/:id",
		Binder: httpez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (T, error) {
			return m.Svc.Get(c.Request.Context(), mdw.ActorFrom(c), c.Param("id"))
		},
	})

	admin.PUT(base+"/:id", func(c *gin.Context) {
		fields, err := m.BindUpdate(c)
		if err != nil {
			c.JSON(http.StatusOK, resp.Error(resp.CodeBadRequest, err.Error()))
			return
		}
		out, err := m.Svc.Update(c.Request.Context(), mdw.ActorFrom(c), c.Param("id"), fields)
		if err != nil {
			c.JSON(http.StatusOK, resp.Error(httpez.CodeOf(err), err.Error()))
			return
		}
		c.JSON(http.StatusOK, resp.OK(out))
	})

	httpez.RegisterAction[struct{}, gin.H](ez, httpez.Action[struct{}, gin.H]{
		Method: http.MethodDelete,
		Path:   base + "/:id",
		Binder: httpez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (gin.H, error) {
			id := c.Param("id")
			if err := m.Svc.Delete(c.Request.Context(), mdw.ActorFrom(c), id); err != nil {
				return nil, err
			}
			return gin.H{"id": id}, nil
		},
	})

	httpez.RegisterAction[assignIn, T](ez, httpez.Action[assignIn, T]{
		Method: http.MethodPost,
		Path:   base + "/:id/assign",
		Binder: httpez.BindJSON,
		Handler: func(c *gin.Context, in *assignIn) (T, error) {
			var zero T
			date, err := parseDate(in.AssignedDate)
			if err != nil {
				return zero, domain.Validation("assignedDate must be YYYY-MM-DD")
			}
			return m.Svc.Assign(c.Request.Context(), mdw.ActorFrom(c), c.Param("id"), service.AssignInput{
				CustodianID:       in.UserID,
				AssignmentType:    in.AssignmentType,
				AssignedDate:      date,
				PARNumber:         in.PARNumber,
				PreviousRecipient: in.PreviousRecipient,
			})
		},
	})

	httpez.RegisterAction[struct{}, T](ez, httpez.Action[struct{}, T]{
		Method: http.MethodPost,
		Path:   base + "/:id/unassign",
		Binder: httpez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (T, error) {
			return m.Svc.Unassign(c.Request.Context(), mdw.ActorFrom(c), c.Param("id"))
		},
	})

	httpez.POSTFILE(ez, base+"/:id/par", "file", func(c *gin.Context, fh *multipart.FileHeader) (any, error) {
		if fh.Size > int64(storage.MaxDocumentSize) {
			return nil, domain.Validation("document exceeds the 10MB limit")
		}
		f, err := fh.Open()
		if err != nil {
			return nil, domain.Validation("cannot read uploaded file")
		}
		defer f.Close()
		return m.Svc.AttachDocument(c.Request.Context(), mdw.ActorFrom(c), c.Param("id"), fh.Filename, f)
	})

	admin.GET(base+"/:id/par", m.serveDocument)
}

// serveDocument 流式下发 PDF，不走 JSON 信封
func (m *Module[T]) serveDocument(c *gin.Context) {
	doc, err := m.Svc.FetchDocument(c.Request.Context(), mdw.ActorFrom(c), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusOK, resp.Error(httpez.CodeOf(err), err.Error()))
		return
	}
	defer doc.Close()
	headers := map[string]string{
		"Content-Disposition": `attachment; filename="` + sanitizeName(doc.Name) + `"`,
	}
	c.DataFromReader(http.StatusOK, doc.Size, "application/pdf", doc, headers)
}

func sanitizeName(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '"' || r == '\n' || r == '\r' {
			return '_'
		}
		return r
	}, s)
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
