package repo_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"property-pass/internal/domain"
	"property-pass/internal/repo"
)

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
	require.NoError(t, db.AutoMigrate(&domain.Equipment{}))
	return db
}

func newEquipRepo(t *testing.T) *repo.AssetRepo[*domain.Equipment] {
	t.Helper()
	return repo.NewAssetRepo(newTestDB(t), func() *domain.Equipment { return &domain.Equipment{} })
}

func seedEquipment(t *testing.T, r *repo.AssetRepo[*domain.Equipment], pn string) *domain.Equipment {
	t.Helper()
	e := &domain.Equipment{EquipmentType: "Laptop", Brand: "Dell", Model: "Latitude 5440"}
	e.ID = uuid.NewString()
	e.PropertyNumber = pn
	e.Status = domain.StatusAvailable
	e.Condition = domain.DefaultCondition
	require.NoError(t, r.Create(context.Background(), e))
	return e
}

func claim(t *testing.T, r *repo.AssetRepo[*domain.Equipment], id string) {
	t.Helper()
	now := time.Now()
	claimed, err := r.ClaimCustody(context.Background(), id, map[string]any{
		"status":              domain.StatusAssigned,
		"assigned_to_user_id": uuid.NewString(),
		"assigned_to_name":    "Ana Cruz",
		"assigned_date":       now,
		"assignment_type":     domain.AssignmentPAR,
		"par_number":          "PAR-2025-777",
	})
	require.NoError(t, err)
	require.True(t, claimed)
}

// 状态列的条件写锚定读到的状态：校验与写入之间资产被分配时，
// 写入必须落空，保管记录不能被状态改写覆盖
func TestUpdatesGuardedAnchorsStatus(t *testing.T) {
	r := newEquipRepo(t)
	ctx := context.Background()
	e := seedEquipment(t, r, "PN-3001")

	// 窗口内资产被并发分配
	claim(t, r, e.ID)

	applied, err := r.UpdatesGuarded(ctx, e.ID, domain.StatusAvailable, map[string]any{
		"status": domain.StatusUnderRepair,
	})
	require.NoError(t, err)
	assert.False(t, applied)

	got, found, err := r.FindByID(ctx, e.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, domain.StatusAssigned, got.Status)
	assert.True(t, got.Base().Held())
	assert.True(t, got.Base().Consistent())
}

func TestUpdatesGuardedAppliesWhenStatusUnchanged(t *testing.T) {
	r := newEquipRepo(t)
	ctx := context.Background()
	e := seedEquipment(t, r, "PN-3002")

	applied, err := r.UpdatesGuarded(ctx, e.ID, domain.StatusAvailable, map[string]any{
		"status": domain.StatusUnderRepair,
	})
	require.NoError(t, err)
	assert.True(t, applied)

	got, _, err := r.FindByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUnderRepair, got.Status)
	assert.True(t, got.Base().Consistent())
}

// 删除同样锚定读到的状态：刚被分配的资产不能被旧校验结果删掉
func TestDeleteAnchorsStatus(t *testing.T) {
	r := newEquipRepo(t)
	ctx := context.Background()
	e := seedEquipment(t, r, "PN-3003")

	claim(t, r, e.ID)

	deleted, err := r.Delete(ctx, e.ID, domain.StatusAvailable)
	require.NoError(t, err)
	assert.False(t, deleted)

	_, found, err := r.FindByID(ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, found, "assigned asset must survive a stale delete")

	// 解除分配后按当前状态删除成功
	got, _, err := r.FindByID(ctx, e.ID)
	require.NoError(t, err)
	released, err := r.ReleaseCustody(ctx, e.ID, got.AssignedToUserID, map[string]any{
		"status":              domain.StatusAvailable,
		"assigned_to_user_id": "",
		"assigned_to_name":    "",
		"assigned_date":       nil,
		"assignment_type":     "",
		"par_number":          "",
	})
	require.NoError(t, err)
	require.True(t, released)

	deleted, err = r.Delete(ctx, e.ID, domain.StatusAvailable)
	require.NoError(t, err)
	assert.True(t, deleted)
}
