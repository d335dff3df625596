package repo

import (
	"context"

	"gorm.io/gorm"

	"property-pass/internal/domain"
)

type AuditRepo struct{ db *gorm.DB }

func NewAuditRepo(db *gorm.DB) *AuditRepo { return &AuditRepo{db: db} }

func (r *AuditRepo) Create(ctx context.Context, e *domain.AuditLog) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *AuditRepo) List(ctx context.Context, f domain.AuditFilter) ([]domain.AuditLog, error) {
	q := r.db.WithContext(ctx).Model(&domain.AuditLog{})
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	if f.ResourceType != "" {
		q = q.Where("resource_type = ?", f.ResourceType)
	}
	if f.ResourceID != "" {
		q = q.Where("resource_id = ?", f.ResourceID)
	}
	if f.ActorID != "" {
		q = q.Where("actor_id = ?", f.ActorID)
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var logs []domain.AuditLog
	err := q.Order("created_at desc").Limit(limit).Find(&logs).Error
	return logs, err
}

// Stats 时间窗内的分组计数；ByActor 以操作者邮箱为键
func (r *AuditRepo) Stats(ctx context.Context, f domain.AuditStatsFilter) (*domain.AuditStats, error) {
	windowed := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&domain.AuditLog{})
		if !f.From.IsZero() {
			q = q.Where("created_at >= ?", f.From)
		}
		if !f.To.IsZero() {
			q = q.Where("created_at < ?", f.To)
		}
		return q
	}
	stats := &domain.AuditStats{}
	if err := windowed().Count(&stats.Total).Error; err != nil {
		return nil, err
	}
	var err error
	if stats.ByAction, err = groupCount(windowed(), "action"); err != nil {
		return nil, err
	}
	if stats.ByResource, err = groupCount(windowed(), "resource_type"); err != nil {
		return nil, err
	}
	if stats.ByActor, err = groupCount(windowed(), "actor_email"); err != nil {
		return nil, err
	}
	return stats, nil
}

func groupCount(q *gorm.DB, col string) (map[string]int64, error) {
	type row struct {
		K string
		N int64
	}
	var rows []row
	if err := q.Select(col + " as k, count(*) as n").Group(col).Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, rw := range rows {
		out[rw.K] = rw.N
	}
	return out, nil
}
