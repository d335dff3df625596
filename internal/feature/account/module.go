package account

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"property-pass/internal/core/auth"
	"property-pass/internal/domain"
	"property-pass/internal/service"
	httpez "property-pass/internal/transport/http/ez"
	mdw "property-pass/internal/transport/http/middleware"
)

// Module 身份台账的 HTTP 面：注册/登录/审批
type Module struct {
	users *service.UserService
	jwter *auth.JWTer
}

func NewModule(users *service.UserService, jwter *auth.JWTer) *Module {
	return &Module{users: users, jwter: jwter}
}

// Priority 账号模块先挂，资产模块默认 100
func (m *Module) Priority() int { return 10 }

type registerIn struct {
	Surname    string `json:"surname"    binding:"required,max=100"`
	FirstName  string `json:"firstName"  binding:"required,max=100"`
	MiddleName string `json:"middleName" binding:"omitempty,max=100"`

	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`

	Position     string `json:"position"     binding:"required,max=191"`
	SalaryGrade  string `json:"salaryGrade"  binding:"required"`
	StartingDate string `json:"startingDate" binding:"required"` // "2006-01-02"
	JobCategory  string `json:"jobCategory"  binding:"required"`
	AssignedUnit string `json:"assignedUnit" binding:"required"`
}

type registerAdminIn struct {
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	AdminKey string `json:"adminKey" binding:"required"`
}

type loginIn struct {
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type loginOut struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

func (m *Module) MountAPI(public, authed *gin.RouterGroup) {
	ezPublic := httpez.New(public)

	httpez.RegisterAction[registerIn, *domain.User](ezPublic, httpez.Action[registerIn, *domain.User]{
		Method: http.MethodPost,
		Path:   "/auth/register",
		Binder: httpez.BindJSON,
		Handler: func(c *gin.Context, in *registerIn) (*domain.User, error) {
			start, err := parseDate(in.StartingDate)
			if err != nil {
				return nil, domain.Validation("startingDate must be YYYY-MM-DD")
			}
			return m.users.Register(c.Request.Context(), service.RegisterInput{
				Surname:      in.Surname,
				FirstName:    in.FirstName,
				MiddleName:   in.MiddleName,
				Email:        in.Email,
				Password:     in.Password,
				Position:     in.Position,
				SalaryGrade:  in.SalaryGrade,
				StartingDate: start,
				JobCategory:  in.JobCategory,
				AssignedUnit: in.AssignedUnit,
			})
		},
	})

	httpez.RegisterAction[registerAdminIn, *domain.User](ezPublic, httpez.Action[registerAdminIn, *domain.User]{
		Method: http.MethodPost,
		Path:   "/auth/register-admin",
		Binder: httpez.BindJSON,
		Handler: func(c *gin.Context, in *registerAdminIn) (*domain.User, error) {
			return m.users.RegisterAdmin(c.Request.Context(), in.Email, in.Password, in.AdminKey)
		},
	})

	httpez.RegisterAction[loginIn, loginOut](ezPublic, httpez.Action[loginIn, loginOut]{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Binder: httpez.BindJSON,
		Handler: func(c *gin.Context, in *loginIn) (loginOut, error) {
			u, err := m.users.Login(c.Request.Context(), in.Email, in.Password)
			if err != nil {
				return loginOut{}, err
			}
			tok, err := m.jwter.Issue(u.ID, u.Role)
			if err != nil || tok == "" {
				return loginOut{}, domain.Wrap("issue token failed", err)
			}
			return loginOut{Token: tok, User: u}, nil
		},
	})

	// 注册表单的下拉选项
	httpez.RegisterAction[struct{}, gin.H](ezPublic, httpez.Action[struct{}, gin.H]{
		Method: http.MethodGet,
		Path:   "/catalogs/registration",
		Binder: httpez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (gin.H, error) {
			return gin.H{
				"jobCategories": domain.JobCategories,
				"assignedUnits": domain.AssignedUnits,
				"salaryGrades":  domain.SalaryGrades(),
			}, nil
		},
	})

	ezAuth := httpez.New(authed)

	httpez.RegisterAction[struct{}, *domain.User](ezAuth, httpez.Action[struct{}, *domain.User]{
		Method: http.MethodGet,
		Path:   "/me",
		Binder: httpez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.User, error) {
			actor := mdw.ActorFrom(c)
			return m.users.Get(c.Request.Context(), actor.UserID)
		},
	})
}

func (m *Module) MountAdmin(admin *gin.RouterGroup) {
	ez := httpez.New(admin)

	httpez.RegisterAction[struct{}, []domain.User](ez, httpez.Action[struct{}, []domain.User]{
		Method: http.MethodGet,
		Path:   "/users",
		Binder: httpez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) ([]domain.User, error) {
			return m.users.ListAll(c.Request.Context(), mdw.ActorFrom(c))
		},
	})

	httpez.RegisterAction[struct{}, []domain.User](ez, httpez.Action[struct{}, []domain.User]{
		Method: http.MethodGet,
		Path:   "/users/pending",
		Binder: httpez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) ([]domain.User, error) {
			return m.users.ListPending(c.Request.Context(), mdw.ActorFrom(c))
		},
	})

	httpez.RegisterAction[struct{}, *domain.User](ez, httpez.Action[struct{}, *domain.User]{
		Method: http.MethodPost,
		Path:   "/users/:id/approve",
		Binder: httpez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.User, error) {
			return m.users.Approve(c.Request.Context(), mdw.ActorFrom(c), c.Param("id"))
		},
	})

	httpez.RegisterAction[struct{}, gin.H](ez, httpez.Action[struct{}, gin.H]{
		Method: http.MethodPost,
		Path:   "/users/:id/reject",
		Binder: httpez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (gin.H, error) {
			id := c.Param("id")
			if err := m.users.Reject(c.Request.Context(), mdw.ActorFrom(c), id); err != nil {
				return nil, err
			}
			return gin.H{"id": id}, nil
		},
	})

	httpez.RegisterAction[struct{}, *domain.User](ez, httpez.Action[struct{}, *domain.User]{
		Method: http.MethodPost,
		Path:   "/users/:id/deactivate",
		Binder: httpez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.User, error) {
			return m.users.Deactivate(c.Request.Context(), mdw.ActorFrom(c), c.Param("id"))
		},
	})
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
