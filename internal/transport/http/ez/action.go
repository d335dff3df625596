package ez

import (
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"property-pass/internal/domain"
	resp "property-pass/internal/transport/http/response"
)

type EZ struct{ g *gin.RouterGroup }

func New(g *gin.RouterGroup) EZ { return EZ{g: g} }

// 绑定方式
type Binder string

const (
	BindJSON  Binder = "json"  // 从 JSON 绑定
	BindQuery Binder = "query" // 从 URL ?a=b 绑定
	BindNone  Binder = "none"  // 不绑定，自己从 c.Param / c.PostForm 取
)

// 动作定义：I 入参，O 出参
type Action[I any, O any] struct {
	Method  string // "GET" | "POST" | "PUT" | "DELETE"
	Path    string // 例："/auth/login"、"/equipment/:id/assign"
	Binder  Binder
	Handler func(c *gin.Context, in *I) (O, error)
}

// RegisterAction 统一出入口：绑定入参、调服务、按业务错误种类映射错误码。
// 响应一律 HTTP 200，业务码放信封里
func RegisterAction[I any, O any](e EZ, a Action[I, O]) {
	h := func(c *gin.Context) {
		var in I
		var bindErr error
		switch a.Binder {
		case BindJSON:
			bindErr = c.ShouldBindJSON(&in)
		case BindQuery:
			bindErr = c.ShouldBindQuery(&in)
		default: // BindNone: 不绑定
		}
		if bindErr != nil {
			c.JSON(http.StatusOK, resp.Error(resp.CodeBadRequest, bindErr.Error()))
			return
		}

		out, err := a.Handler(c, &in)
		if err != nil {
			c.JSON(http.StatusOK, resp.Error(CodeOf(err), err.Error()))
			return
		}
		c.JSON(http.StatusOK, resp.OK(out))
	}

	switch strings.ToUpper(a.Method) {
	case http.MethodGet:
		e.g.GET(a.Path, h)
	case http.MethodPut:
		e.g.PUT(a.Path, h)
	case http.MethodDelete:
		e.g.DELETE(a.Path, h)
	default: // 默认 POST
		e.g.POST(a.Path, h)
	}
}

// POSTFILE 处理 multipart/form-data 单文件上传
func POSTFILE(e EZ, path, fieldName string, h func(c *gin.Context, fh *multipart.FileHeader) (any, error)) {
	e.g.POST(path, func(c *gin.Context) {
		fh, err := c.FormFile(fieldName)
		if err != nil {
			c.JSON(http.StatusOK, resp.Error(resp.CodeBadRequest, "missing file field: "+fieldName))
			return
		}
		data, err := h(c, fh)
		if err != nil {
			c.JSON(http.StatusOK, resp.Error(CodeOf(err), err.Error()))
			return
		}
		c.JSON(http.StatusOK, resp.OK(data))
	})
}

// CodeOf 业务错误种类 → 信封错误码
func CodeOf(err error) int {
	switch domain.KindOf(err) {
	case domain.KindValidation:
		return resp.CodeBadRequest
	case domain.KindUnauthorized:
		return resp.CodeUnauthorized
	case domain.KindForbidden:
		return resp.CodeForbidden
	case domain.KindNotFound:
		return resp.CodeNotFound
	case domain.KindConflict:
		return resp.CodeConflict
	default:
		return resp.CodeServerError
	}
}
