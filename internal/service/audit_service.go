package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"property-pass/internal/domain"
	"property-pass/pkg/utils"
)

// AuditService 变更留痕。写入 best-effort：审计失败只记日志，
// 绝不让已提交的业务变更跟着失败
type AuditService struct {
	repo domain.AuditRepository
	log  *zap.Logger
}

func NewAuditService(repo domain.AuditRepository, log *zap.Logger) *AuditService {
	return &AuditService{repo: repo, log: log}
}

type AuditEntry struct {
	Action       string
	ResourceType string
	ResourceID   string
	ResourceName string
	OldValues    any
	NewValues    any
	Notes        string
}

func (s *AuditService) Record(ctx context.Context, actor domain.Actor, e AuditEntry) {
	if s == nil || s.repo == nil {
		return
	}
	row := &domain.AuditLog{
		ID:           utils.NewID(),
		ActorID:      actor.UserID,
		ActorEmail:   actor.Email,
		ActorRole:    actor.Role,
		Action:       e.Action,
		ResourceType: e.ResourceType,
		ResourceID:   e.ResourceID,
		ResourceName: e.ResourceName,
		OldValues:    marshalValues(e.OldValues),
		NewValues:    marshalValues(e.NewValues),
		Notes:        e.Notes,
	}
	if err := s.repo.Create(ctx, row); err != nil {
		s.log.Warn("audit write failed",
			zap.String("action", e.Action),
			zap.String("resource", e.ResourceType+"/"+e.ResourceID),
			zap.Error(err),
		)
	}
}

func (s *AuditService) List(ctx context.Context, actor domain.Actor, f domain.AuditFilter) ([]domain.AuditLog, error) {
	if err := domain.Authorize(actor, domain.OpViewAudit); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, f)
}

func (s *AuditService) Stats(ctx context.Context, actor domain.Actor, f domain.AuditStatsFilter) (*domain.AuditStats, error) {
	if err := domain.Authorize(actor, domain.OpViewAudit); err != nil {
		return nil, err
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return nil, domain.Validation("invalid date range")
	}
	return s.repo.Stats(ctx, f)
}

func marshalValues(v any) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
