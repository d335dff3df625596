package service_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"property-pass/internal/domain"
	"property-pass/internal/feature/equipment"
	"property-pass/internal/feature/furniture"
	"property-pass/internal/repo"
	"property-pass/internal/service"
	"property-pass/internal/storage"
)

const testAdminKey = "test-admin-key"

// 单连接避免 :memory: 多连接各见各表
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&domain.User{},
		&domain.Equipment{},
		&domain.Furniture{},
		&domain.AuditLog{},
	))
	return db
}

type fixture struct {
	db    *gorm.DB
	users *service.UserService
	audit *service.AuditService
	equip *service.AssetService[*domain.Equipment]
	furn  *service.AssetService[*domain.Furniture]
	docs  storage.DocumentStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	auditRepo := repo.NewAuditRepo(db)
	auditSvc := service.NewAuditService(auditRepo, zap.NewNop())
	userRepo := repo.NewUserRepo(db)
	userSvc := service.NewUserService(userRepo, auditSvc, testAdminKey)
	docs := storage.NewFSStore(t.TempDir())

	equipRepo := repo.NewAssetRepo(db, func() *domain.Equipment { return &domain.Equipment{} })
	equipSvc := service.NewAssetService(domain.AssetEquipment, equipRepo, userRepo, docs, auditSvc, nil, equipment.Validate)

	furnRepo := repo.NewAssetRepo(db, func() *domain.Furniture { return &domain.Furniture{} })
	furnSvc := service.NewAssetService(domain.AssetFurniture, furnRepo, userRepo, docs, auditSvc, nil, furniture.Validate)

	return &fixture{db: db, users: userSvc, audit: auditSvc, equip: equipSvc, furn: furnSvc, docs: docs}
}

func actorFor(u *domain.User) domain.Actor {
	return domain.Actor{
		UserID:     u.ID,
		Email:      u.Email,
		Role:       u.Role,
		IsApproved: u.IsApproved,
		IsActive:   u.IsActive,
	}
}

func (f *fixture) registerUser(t *testing.T, email string) *domain.User {
	t.Helper()
	u, err := f.users.Register(context.Background(), service.RegisterInput{
		Surname:      "Cruz",
		FirstName:    "Ana",
		Email:        email,
		Password:     "correct-horse",
		Position:     "Clerk II",
		SalaryGrade:  "SG 6",
		JobCategory:  domain.JobCategoryRegular,
		AssignedUnit: "CCRD",
	})
	require.NoError(t, err)
	return u
}

func (f *fixture) mustAdmin(t *testing.T) (*domain.User, domain.Actor) {
	t.Helper()
	u, err := f.users.RegisterAdmin(context.Background(), "admin@agency.test", "super-secret-pw", testAdminKey)
	require.NoError(t, err)
	return u, actorFor(u)
}

func (f *fixture) approvedUser(t *testing.T, email string) (*domain.User, domain.Actor) {
	t.Helper()
	u := f.registerUser(t, email)
	_, admin := f.mustAdminFor(t, "approver-"+uuid.NewString()[:8])
	approved, err := f.users.Approve(context.Background(), admin, u.ID)
	require.NoError(t, err)
	return approved, actorFor(approved)
}

// mustAdminFor 允许一个用例里要多个 admin（邮箱唯一）
func (f *fixture) mustAdminFor(t *testing.T, email string) (*domain.User, domain.Actor) {
	t.Helper()
	u, err := f.users.RegisterAdmin(context.Background(), email+"@agency.test", "super-secret-pw", testAdminKey)
	require.NoError(t, err)
	return u, actorFor(u)
}

func (f *fixture) newEquipment(pn string) *domain.Equipment {
	e := &domain.Equipment{
		EquipmentType: "Laptop",
		Brand:         "Dell",
		Model:         "Latitude 5440",
	}
	e.PropertyNumber = pn
	return e
}

func (f *fixture) newFurniture(pn string) *domain.Furniture {
	fu := &domain.Furniture{
		FurnitureType: "Office Desk",
		Description:   "Executive desk",
	}
	fu.PropertyNumber = pn
	return fu
}
