package domain

import (
	"context"
	"time"
)

// 审计动作
const (
	AuditCreate     = "CREATE"
	AuditUpdate     = "UPDATE"
	AuditDelete     = "DELETE"
	AuditAssign     = "ASSIGN"
	AuditUnassign   = "UNASSIGN"
	AuditApprove    = "APPROVE"
	AuditReject     = "REJECT"
	AuditDeactivate = "DEACTIVATE"
	AuditAttachDoc  = "ATTACH_DOC"
)

// 审计资源类型
const (
	ResourceEquipment = "EQUIPMENT"
	ResourceFurniture = "FURNITURE"
	ResourceUser      = "USER"
)

func ResourceTypeFor(k AssetKind) string {
	if k == AssetFurniture {
		return ResourceFurniture
	}
	return ResourceEquipment
}

// AuditLog 变更留痕；Old/NewValues 为 JSON 文本快照
type AuditLog struct {
	ID string `gorm:"primaryKey;size:36" json:"id"`

	ActorID    string `gorm:"size:36;index" json:"actorId"`
	ActorEmail string `gorm:"size:191" json:"actorEmail"`
	ActorRole  string `gorm:"size:16" json:"actorRole"`

	Action       string `gorm:"size:16;index" json:"action"`
	ResourceType string `gorm:"size:16;index:idx_audit_resource" json:"resourceType"`
	ResourceID   string `gorm:"size:36;index:idx_audit_resource" json:"resourceId"`
	ResourceName string `gorm:"size:255" json:"resourceName,omitempty"`

	OldValues string `gorm:"type:text" json:"oldValues,omitempty"`
	NewValues string `gorm:"type:text" json:"newValues,omitempty"`
	Notes     string `gorm:"size:500" json:"notes,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
}

func (AuditLog) TableName() string { return "audit_logs" }

type AuditFilter struct {
	Action       string
	ResourceType string
	ResourceID   string
	ActorID      string
	Limit        int
}

// AuditStatsFilter 时间窗为左闭右开 [From, To)；零值表示不设界
type AuditStatsFilter struct {
	From time.Time
	To   time.Time
}

// AuditStats 审计看板：时间窗内按动作/资源类型/操作者的计数分布
type AuditStats struct {
	Total      int64            `json:"total"`
	ByAction   map[string]int64 `json:"byAction"`
	ByResource map[string]int64 `json:"byResource"`
	ByActor    map[string]int64 `json:"byActor"`
}

type AuditRepository interface {
	Create(ctx context.Context, e *AuditLog) error
	List(ctx context.Context, f AuditFilter) ([]AuditLog, error)
	Stats(ctx context.Context, f AuditStatsFilter) (*AuditStats, error)
}
