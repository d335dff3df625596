package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"property-pass/internal/domain"
)

// AssetRepo 设备与家具共用的泛型仓储；T 为 *domain.Equipment / *domain.Furniture
type AssetRepo[T domain.Asset] struct {
	db    *gorm.DB
	newFn func() T
}

func NewAssetRepo[T domain.Asset](db *gorm.DB, newFn func() T) *AssetRepo[T] {
	return &AssetRepo[T]{db: db, newFn: newFn}
}

func (r *AssetRepo[T]) Create(ctx context.Context, a T) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *AssetRepo[T]) FindByID(ctx context.Context, id string) (T, bool, error) {
	a := r.newFn()
	err := r.db.WithContext(ctx).First(a, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		var zero T
		return zero, false, nil
	}
	if err != nil {
		var zero T
		return zero, false, err
	}
	return a, true, nil
}

func (r *AssetRepo[T]) FindByPropertyNumber(ctx context.Context, pn string) (T, bool, error) {
	a := r.newFn()
	err := r.db.WithContext(ctx).First(a, "property_number = ?", pn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		var zero T
		return zero, false, nil
	}
	if err != nil {
		var zero T
		return zero, false, err
	}
	return a, true, nil
}

func (r *AssetRepo[T]) ListAll(ctx context.Context) ([]T, error) {
	var items []T
	err := r.db.WithContext(ctx).Model(r.newFn()).Order("created_at asc").Find(&items).Error
	return items, err
}

func (r *AssetRepo[T]) ListByStatus(ctx context.Context, status string) ([]T, error) {
	var items []T
	err := r.db.WithContext(ctx).Model(r.newFn()).
		Where("status = ?", status).
		Order("created_at asc").
		Find(&items).Error
	return items, err
}

func (r *AssetRepo[T]) ListByCustodian(ctx context.Context, userID string) ([]T, error) {
	var items []T
	err := r.db.WithContext(ctx).Model(r.newFn()).
		Where("assigned_to_user_id = ?", userID).
		Order("created_at asc").
		Find(&items).Error
	return items, err
}

// Updates 登记处的字段级合并；列白名单由 service 把关。
// 涉及 status 的合并不走这里，见 UpdatesGuarded
func (r *AssetRepo[T]) Updates(ctx context.Context, id string, fields map[string]any) error {
	return r.db.WithContext(ctx).Model(r.newFn()).
		Where("id = ?", id).
		Updates(fields).Error
}

// UpdatesGuarded 状态迁移的 check-and-set：锚定校验时读到的状态，
// 命中 0 行说明状态已被并发改写（如窗口内刚被分配），调用方回报冲突
func (r *AssetRepo[T]) UpdatesGuarded(ctx context.Context, id, expectStatus string, fields map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).Model(r.newFn()).
		Where("id = ? AND status = ?", id, expectStatus).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Delete 同样锚定校验时读到的状态；资产在窗口内被分配时删除落空
func (r *AssetRepo[T]) Delete(ctx context.Context, id, expectStatus string) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ? AND status = ?", id, expectStatus).Delete(r.newFn())
	return res.RowsAffected > 0, res.Error
}

// ClaimCustody 分配的 check-and-set：仅当资产仍为 Available 时整体写入保管记录。
// 并发竞争同一资产时恰有一个请求的 RowsAffected 为 1，落败方回报冲突。
func (r *AssetRepo[T]) ClaimCustody(ctx context.Context, id string, fields map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).Model(r.newFn()).
		Where("id = ? AND status = ?", id, domain.StatusAvailable).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ReleaseCustody 解除分配的条件写：额外锚定当前保管人，保证
// previous_recipient 快照与被清除的保管记录出自同一行版本
func (r *AssetRepo[T]) ReleaseCustody(ctx context.Context, id, holderID string, fields map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).Model(r.newFn()).
		Where("id = ? AND status = ? AND assigned_to_user_id = ?", id, domain.StatusAssigned, holderID).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// SetDocumentRef 文档引用单列更新；blob 写入完成后才调用，不占行锁等 IO
func (r *AssetRepo[T]) SetDocumentRef(ctx context.Context, id, ref string) (bool, error) {
	res := r.db.WithContext(ctx).Model(r.newFn()).
		Where("id = ?", id).
		Update("par_document_ref", ref)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// CountByStatus 统计看板用
func (r *AssetRepo[T]) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type row struct {
		Status string
		N      int64
	}
	var rows []row
	err := r.db.WithContext(ctx).Model(r.newFn()).
		Select("status, count(*) as n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, rw := range rows {
		out[rw.Status] = rw.N
	}
	return out, nil
}
