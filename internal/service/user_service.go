package service

import (
	"context"
	"strings"
	"time"

	"property-pass/internal/domain"
	"property-pass/pkg/utils"
)

// UserService 身份台账：注册/审批生命周期的唯一入口
type UserService struct {
	users    domain.UserRepository
	audit    *AuditService
	adminKey string
}

func NewUserService(users domain.UserRepository, audit *AuditService, adminKey string) *UserService {
	return &UserService{users: users, audit: audit, adminKey: adminKey}
}

type RegisterInput struct {
	Surname    string
	FirstName  string
	MiddleName string

	Email    string
	Password string

	Position     string
	SalaryGrade  string
	StartingDate time.Time
	JobCategory  string
	AssignedUnit string
}

func (in *RegisterInput) validate() error {
	switch {
	case strings.TrimSpace(in.Surname) == "" || strings.TrimSpace(in.FirstName) == "":
		return domain.Validation("surname and first name are required")
	case strings.TrimSpace(in.Email) == "" || !strings.Contains(in.Email, "@"):
		return domain.Validation("a valid email is required")
	case len(in.Password) < 8:
		return domain.Validation("password must be at least 8 characters")
	case !domain.ValidSalaryGrade(in.SalaryGrade):
		return domain.Validation("invalid salary grade, must be SG 1 to SG 30")
	case !domain.ValidJobCategory(in.JobCategory):
		return domain.Validation("invalid job category")
	case !domain.ValidAssignedUnit(in.AssignedUnit):
		return domain.Validation("invalid assigned unit")
	}
	return nil
}

// Register 自助注册：落地即 pending，等待管理员审批
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	if err := domain.Authorize(domain.Anonymous(), domain.OpRegister); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if existing, err := s.users.FindByEmail(ctx, email); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, domain.Validation("email already registered")
	}

	u := &domain.User{
		ID:           utils.NewID(),
		Surname:      strings.TrimSpace(in.Surname),
		FirstName:    strings.TrimSpace(in.FirstName),
		MiddleName:   strings.TrimSpace(in.MiddleName),
		Email:        email,
		PasswordHash: utils.HashPassword(in.Password),
		Position:     strings.TrimSpace(in.Position),
		SalaryGrade:  in.SalaryGrade,
		StartingDate: in.StartingDate,
		JobCategory:  in.JobCategory,
		AssignedUnit: in.AssignedUnit,
		Role:         domain.RoleUser,
		IsApproved:   false,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		// 并发兜底：同邮箱同时注册时唯一索引会挡下后来者
		if isDupKey(err) {
			return nil, domain.Validation("email already registered")
		}
		return nil, err
	}
	return u, nil
}

// RegisterAdmin 管理员注册走共享密钥，创建即已批准
func (s *UserService) RegisterAdmin(ctx context.Context, email, password, adminKey string) (*domain.User, error) {
	if err := domain.Authorize(domain.Anonymous(), domain.OpRegisterAdmin); err != nil {
		return nil, err
	}
	if s.adminKey == "" || adminKey != s.adminKey {
		return nil, domain.Unauthorized("invalid admin key")
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, domain.Validation("a valid email is required")
	}
	if len(password) < 8 {
		return nil, domain.Validation("password must be at least 8 characters")
	}
	if existing, err := s.users.FindByEmail(ctx, email); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, domain.Validation("email already registered")
	}

	u := &domain.User{
		ID:           utils.NewID(),
		Surname:      "Admin",
		FirstName:    "System",
		Email:        email,
		PasswordHash: utils.HashPassword(password),
		Position:     "System Administrator",
		SalaryGrade:  "SG 30",
		StartingDate: time.Now().UTC(),
		JobCategory:  domain.JobCategoryRegular,
		AssignedUnit: "Office of the Exec. Director",
		Role:         domain.RoleAdmin,
		IsApproved:   true,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if isDupKey(err) {
			return nil, domain.Validation("email already registered")
		}
		return nil, err
	}
	return u, nil
}

// Login 凭证校验由外部认证协作方的口径执行：停用与待审批账号拒绝放行。
// 统一口径回避邮箱枚举
func (s *UserService) Login(ctx context.Context, email, password string) (*domain.User, error) {
	if err := domain.Authorize(domain.Anonymous(), domain.OpLogin); err != nil {
		return nil, err
	}
	u, err := s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	if u == nil || !utils.CheckPassword(password, u.PasswordHash) {
		return nil, domain.Unauthorized("invalid email or password")
	}
	if !u.IsActive {
		return nil, domain.Forbidden("account is inactive, contact an administrator")
	}
	if !u.IsAdminRole() && !u.IsApproved {
		return nil, domain.Forbidden("account is pending admin approval")
	}
	return u, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, domain.NotFound("user not found")
	}
	return u, nil
}

// Approve pending → approved；审批后即可持有资产保管
func (s *UserService) Approve(ctx context.Context, actor domain.Actor, id string) (*domain.User, error) {
	if err := domain.Authorize(actor, domain.OpApproveUser); err != nil {
		return nil, err
	}
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.IsApproved {
		return nil, domain.Conflict("user is already approved")
	}
	u.IsApproved = true
	u.IsActive = true
	if err := s.users.Save(ctx, u); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actor, AuditEntry{
		Action: domain.AuditApprove, ResourceType: domain.ResourceUser,
		ResourceID: u.ID, ResourceName: u.FullName(),
		NewValues: map[string]any{"isApproved": true, "isActive": true},
	})
	return u, nil
}

// Reject 仅对 pending 账号有效；硬删除，不可逆
func (s *UserService) Reject(ctx context.Context, actor domain.Actor, id string) error {
	if err := domain.Authorize(actor, domain.OpRejectUser); err != nil {
		return err
	}
	u, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if u.IsApproved {
		return domain.Conflict("cannot reject an approved user")
	}
	if err := s.users.Delete(ctx, u.ID); err != nil {
		return err
	}
	s.audit.Record(ctx, actor, AuditEntry{
		Action: domain.AuditReject, ResourceType: domain.ResourceUser,
		ResourceID: u.ID, ResourceName: u.FullName(),
		OldValues: map[string]any{"email": u.Email, "isApproved": false},
	})
	return nil
}

// Deactivate 终态：系统不提供重新启用路径
func (s *UserService) Deactivate(ctx context.Context, actor domain.Actor, id string) (*domain.User, error) {
	if err := domain.Authorize(actor, domain.OpDeactivateUser); err != nil {
		return nil, err
	}
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.IsAdminRole() {
		return nil, domain.Conflict("cannot deactivate an admin account")
	}
	if !u.IsActive {
		return nil, domain.Conflict("user is not active")
	}
	u.IsActive = false
	if err := s.users.Save(ctx, u); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actor, AuditEntry{
		Action: domain.AuditDeactivate, ResourceType: domain.ResourceUser,
		ResourceID: u.ID, ResourceName: u.FullName(),
		OldValues: map[string]any{"isActive": true},
		NewValues: map[string]any{"isActive": false},
	})
	return u, nil
}

func (s *UserService) ListPending(ctx context.Context, actor domain.Actor) ([]domain.User, error) {
	if err := domain.Authorize(actor, domain.OpListPendingUsers); err != nil {
		return nil, err
	}
	return s.users.ListPending(ctx)
}

func (s *UserService) ListAll(ctx context.Context, actor domain.Actor) ([]domain.User, error) {
	if err := domain.Authorize(actor, domain.OpListUsers); err != nil {
		return nil, err
	}
	return s.users.ListAll(ctx)
}

// isDupKey 不依赖 gorm.ErrDuplicatedKey，避免驱动差异
func isDupKey(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "unique violation") ||
		strings.Contains(msg, "unique failed")
}
