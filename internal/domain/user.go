package domain

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

const (
	JobCategoryJobOrder = "Job Order"
	JobCategoryRegular  = "Regular Employee"
)

var JobCategories = []string{JobCategoryJobOrder, JobCategoryRegular}

var AssignedUnits = []string{
	"CCRD", "CCTSIRMD", "ISSU", "Office of the Exec. Director",
}

// SalaryGrades SG 1 ~ SG 30
func SalaryGrades() []string {
	out := make([]string, 0, 30)
	for i := 1; i <= 30; i++ {
		out = append(out, fmt.Sprintf("SG %d", i))
	}
	return out
}

func ValidSalaryGrade(s string) bool  { return slices.Contains(SalaryGrades(), s) }
func ValidJobCategory(s string) bool  { return slices.Contains(JobCategories, s) }
func ValidAssignedUnit(s string) bool { return slices.Contains(AssignedUnits, s) }

type User struct {
	ID         string `gorm:"primaryKey;size:36" json:"id"`
	Surname    string `gorm:"size:100;not null" json:"surname"`
	FirstName  string `gorm:"size:100;not null" json:"firstName"`
	MiddleName string `gorm:"size:100" json:"middleName,omitempty"`

	Email        string `gorm:"uniqueIndex;size:191;not null" json:"email"`
	PasswordHash string `gorm:"size:100;not null" json:"-"`

	Position     string    `gorm:"size:200" json:"position"`
	SalaryGrade  string    `gorm:"size:8" json:"salaryGrade"`
	StartingDate time.Time `json:"startingDate"`
	JobCategory  string    `gorm:"size:32" json:"jobCategory"`
	AssignedUnit string    `gorm:"size:64" json:"assignedUnit"`

	Role       string `gorm:"size:16;not null;default:user" json:"role"` // "user"/"admin"
	IsApproved bool   `gorm:"not null;default:false" json:"isApproved"`
	IsActive   bool   `gorm:"not null;default:true" json:"isActive"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (User) TableName() string { return "users" }

// FullName 分配时落盘的展示名快照取自这里
func (u *User) FullName() string {
	parts := []string{u.FirstName, u.MiddleName, u.Surname}
	out := make([]string, 0, 3)
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, " ")
}

// CanHoldCustody 保管资格：已批准且在职
func (u *User) CanHoldCustody() bool { return u.IsApproved && u.IsActive }

func (u *User) Pending() bool     { return !u.IsApproved }
func (u *User) IsAdminRole() bool { return u.Role == RoleAdmin }

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	ListPending(ctx context.Context) ([]User, error)
	ListAll(ctx context.Context) ([]User, error)
	Save(ctx context.Context, u *User) error
	Delete(ctx context.Context, id string) error
}
