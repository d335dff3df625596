package service

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"time"

	"property-pass/internal/core/cache"
	"property-pass/internal/domain"
	"property-pass/internal/repo"
	"property-pass/internal/storage"
	"property-pass/pkg/utils"
)

// custodyColumns 保管状态只有 Assign/Unassign 一个入口，
// 登记处的字段合并一律拒绝这些列
var custodyColumns = map[string]struct{}{
	"assigned_to_user_id": {},
	"assigned_to_name":    {},
	"assigned_date":       {},
	"assignment_type":     {},
	"par_number":          {},
	"previous_recipient":  {},
	"par_document_ref":    {},
	"status":              {}, // status 单独走规则，见 Update
}

// AssetService 资产登记处 + 保管流转引擎，对设备/家具泛型复用
type AssetService[T domain.Asset] struct {
	kind   domain.AssetKind
	assets *repo.AssetRepo[T]
	users  domain.UserRepository
	docs   storage.DocumentStore
	audit  *AuditService
	cache  *cache.Cache

	// validateNew 按资产类别校验类目字段（设备型号/家具描述等）
	validateNew func(T) error
}

func NewAssetService[T domain.Asset](
	kind domain.AssetKind,
	assets *repo.AssetRepo[T],
	users domain.UserRepository,
	docs storage.DocumentStore,
	audit *AuditService,
	cch *cache.Cache,
	validateNew func(T) error,
) *AssetService[T] {
	return &AssetService[T]{
		kind: kind, assets: assets, users: users,
		docs: docs, audit: audit, cache: cch,
		validateNew: validateNew,
	}
}

// Create 新资产落地即 Available；保管字段不接受预填
func (s *AssetService[T]) Create(ctx context.Context, actor domain.Actor, a T) (T, error) {
	var zero T
	if err := domain.Authorize(actor, domain.OpCreateAsset); err != nil {
		return zero, err
	}
	base := a.Base()
	if strings.TrimSpace(base.PropertyNumber) == "" {
		return zero, domain.Validation("property number is required")
	}
	if base.Held() || base.Status == domain.StatusAssigned {
		return zero, domain.Validation("assets are created unassigned")
	}
	if base.Condition == "" {
		base.Condition = domain.DefaultCondition
	}
	if base.Status == "" {
		base.Status = domain.StatusAvailable
	}
	if !domain.ValidCondition(base.Condition) {
		return zero, domain.Validation("invalid condition")
	}
	if !domain.ValidStatus(base.Status) {
		return zero, domain.Validation("invalid status")
	}
	if s.validateNew != nil {
		if err := s.validateNew(a); err != nil {
			return zero, err
		}
	}
	if _, found, err := s.assets.FindByPropertyNumber(ctx, base.PropertyNumber); err != nil {
		return zero, err
	} else if found {
		return zero, domain.Validation("property number already exists")
	}

	if base.ID == "" {
		base.ID = utils.NewID()
	}
	base.CreatedBy = actor.Email
	if err := s.assets.Create(ctx, a); err != nil {
		if isDupKey(err) {
			return zero, domain.Validation("property number already exists")
		}
		return zero, err
	}
	s.audit.Record(ctx, actor, AuditEntry{
		Action: domain.AuditCreate, ResourceType: domain.ResourceTypeFor(s.kind),
		ResourceID: base.ID, ResourceName: a.DisplayName(),
		NewValues: map[string]any{"propertyNumber": base.PropertyNumber, "status": base.Status},
	})
	s.invalidateStats(ctx)
	return a, nil
}

func (s *AssetService[T]) Get(ctx context.Context, actor domain.Actor, id string) (T, error) {
	var zero T
	if err := domain.Authorize(actor, domain.OpGetAsset); err != nil {
		return zero, err
	}
	return s.load(ctx, id)
}

func (s *AssetService[T]) ListAll(ctx context.Context, actor domain.Actor) ([]T, error) {
	if err := domain.Authorize(actor, domain.OpListAssets); err != nil {
		return nil, err
	}
	return s.assets.ListAll(ctx)
}

func (s *AssetService[T]) ListAvailable(ctx context.Context, actor domain.Actor) ([]T, error) {
	if err := domain.Authorize(actor, domain.OpListAvailable); err != nil {
		return nil, err
	}
	return s.assets.ListByStatus(ctx, domain.StatusAvailable)
}

// ListByCustodian 普通用户只能看自己的
func (s *AssetService[T]) ListByCustodian(ctx context.Context, actor domain.Actor, userID string) ([]T, error) {
	if err := domain.Authorize(actor, domain.OpListMyAssets); err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && userID != actor.UserID {
		return nil, domain.Forbidden("cannot list another user's assets")
	}
	return s.assets.ListByCustodian(ctx, userID)
}

// Update 字段级合并。保管列一律拒绝；status 不接受 Assigned，
// 且已分配资产必须先解除分配才能改状态（含 Under Repair / Disposed）
func (s *AssetService[T]) Update(ctx context.Context, actor domain.Actor, id string, fields map[string]any) (T, error) {
	var zero T
	if err := domain.Authorize(actor, domain.OpUpdateAsset); err != nil {
		return zero, err
	}
	a, err := s.load(ctx, id)
	if err != nil {
		return zero, err
	}
	if len(fields) == 0 {
		return zero, domain.Validation("no fields to update")
	}
	base := a.Base()

	if st, ok := fields["status"]; ok {
		next, _ := st.(string)
		if next == domain.StatusAssigned {
			return zero, domain.Validation("status Assigned can only be set through assignment")
		}
		if !domain.ValidStatus(next) {
			return zero, domain.Validation("invalid status")
		}
		if base.Status == domain.StatusAssigned && next != base.Status {
			return zero, domain.Conflict("asset is assigned, unassign before changing status")
		}
	}
	for col := range fields {
		if col == "status" {
			continue
		}
		if _, forbidden := custodyColumns[col]; forbidden {
			return zero, domain.Validation("custody fields can only change through assignment")
		}
	}
	if c, ok := fields["condition"]; ok {
		if cond, _ := c.(string); !domain.ValidCondition(cond) {
			return zero, domain.Validation("invalid condition")
		}
	}
	if pn, ok := fields["property_number"]; ok {
		next, _ := pn.(string)
		if strings.TrimSpace(next) == "" {
			return zero, domain.Validation("property number is required")
		}
		if next != base.PropertyNumber {
			if other, found, err := s.assets.FindByPropertyNumber(ctx, next); err != nil {
				return zero, err
			} else if found && other.Base().ID != id {
				return zero, domain.Validation("property number already exists")
			}
		}
	}

	oldValues := map[string]any{"status": base.Status, "condition": base.Condition, "propertyNumber": base.PropertyNumber}
	if _, ok := fields["status"]; ok {
		// 状态迁移条件写：锚定校验时读到的状态，窗口内被分配则落空
		applied, err := s.assets.UpdatesGuarded(ctx, id, base.Status, fields)
		if err != nil {
			if isDupKey(err) {
				return zero, domain.Validation("property number already exists")
			}
			return zero, err
		}
		if !applied {
			return zero, domain.Conflict("asset status changed concurrently, retry")
		}
	} else if err := s.assets.Updates(ctx, id, fields); err != nil {
		if isDupKey(err) {
			return zero, domain.Validation("property number already exists")
		}
		return zero, err
	}
	updated, err := s.load(ctx, id)
	if err != nil {
		return zero, err
	}
	s.audit.Record(ctx, actor, AuditEntry{
		Action: domain.AuditUpdate, ResourceType: domain.ResourceTypeFor(s.kind),
		ResourceID: id, ResourceName: updated.DisplayName(),
		OldValues: oldValues, NewValues: fields,
	})
	if _, ok := fields["status"]; ok {
		s.invalidateStats(ctx)
	}
	return updated, nil
}

// Delete 已分配资产拒绝删除（先解除分配）；PAR 文档随资产一并清理
func (s *AssetService[T]) Delete(ctx context.Context, actor domain.Actor, id string) error {
	if err := domain.Authorize(actor, domain.OpDeleteAsset); err != nil {
		return err
	}
	a, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	base := a.Base()
	if base.Status == domain.StatusAssigned {
		return domain.Conflict("cannot delete an assigned asset, unassign first")
	}
	deleted, err := s.assets.Delete(ctx, id, base.Status)
	if err != nil {
		return err
	}
	if !deleted {
		if _, found, err := s.assets.FindByID(ctx, id); err != nil {
			return err
		} else if !found {
			return domain.NotFound("asset not found")
		}
		return domain.Conflict("asset status changed concurrently, retry")
	}
	if base.PARDocumentRef != "" {
		_ = s.docs.Remove(ctx, base.PARDocumentRef)
	}
	s.audit.Record(ctx, actor, AuditEntry{
		Action: domain.AuditDelete, ResourceType: domain.ResourceTypeFor(s.kind),
		ResourceID: id, ResourceName: a.DisplayName(),
		OldValues: map[string]any{"propertyNumber": base.PropertyNumber, "status": base.Status},
	})
	s.invalidateStats(ctx)
	return nil
}

type AssignInput struct {
	CustodianID       string
	AssignmentType    string
	AssignedDate      time.Time
	PARNumber         string
	PreviousRecipient string
}

// Assign 保管流转唯一入口。前置条件按序校验，先错先报；
// 写入走 ClaimCustody 的条件更新，并发下恰有一个成功
func (s *AssetService[T]) Assign(ctx context.Context, actor domain.Actor, id string, in AssignInput) (T, error) {
	var zero T
	if err := domain.Authorize(actor, domain.OpAssignAsset); err != nil {
		return zero, err
	}
	a, err := s.load(ctx, id)
	if err != nil {
		return zero, err
	}
	base := a.Base()
	switch base.Status {
	case domain.StatusDisposed:
		return zero, domain.Conflict("asset is disposed")
	case domain.StatusAssigned:
		return zero, domain.Conflict("asset is already assigned, unassign first")
	case domain.StatusAvailable:
	default:
		return zero, domain.Conflict("asset is not available")
	}

	custodian, err := s.users.FindByID(ctx, in.CustodianID)
	if err != nil {
		return zero, err
	}
	if custodian == nil || !custodian.CanHoldCustody() {
		return zero, domain.Validation("ineligible custodian")
	}
	if !domain.ValidAssignmentType(in.AssignmentType) {
		return zero, domain.Validation("assignment type must be PAR or Job Order")
	}
	parNumber := strings.TrimSpace(in.PARNumber)
	if in.AssignmentType == domain.AssignmentPAR && parNumber == "" {
		return zero, domain.Validation("PAR number required")
	}
	if in.AssignmentType == domain.AssignmentJobOrder {
		// Job Order 不留 PAR 编号，防御性归一而非报错
		parNumber = ""
	}
	if in.AssignedDate.IsZero() {
		return zero, domain.Validation("assigned date is required")
	}

	// 展示名取分配当时的快照，后续改名不回溯历史记录
	fields := map[string]any{
		"status":              domain.StatusAssigned,
		"assigned_to_user_id": custodian.ID,
		"assigned_to_name":    custodian.FullName(),
		"assigned_date":       in.AssignedDate,
		"assignment_type":     in.AssignmentType,
		"par_number":          parNumber,
	}
	// previousRecipient 记录上一任实际持有人（自由文本）；留空则保留现有痕迹
	if prev := strings.TrimSpace(in.PreviousRecipient); prev != "" {
		fields["previous_recipient"] = prev
	}

	claimed, err := s.assets.ClaimCustody(ctx, id, fields)
	if err != nil {
		return zero, err
	}
	if !claimed {
		return zero, domain.Conflict("asset is already assigned, unassign first")
	}
	updated, err := s.load(ctx, id)
	if err != nil {
		return zero, err
	}
	s.audit.Record(ctx, actor, AuditEntry{
		Action: domain.AuditAssign, ResourceType: domain.ResourceTypeFor(s.kind),
		ResourceID: id, ResourceName: updated.DisplayName(),
		OldValues: map[string]any{"status": domain.StatusAvailable},
		NewValues: map[string]any{"status": domain.StatusAssigned, "assignedTo": custodian.FullName(), "assignmentType": in.AssignmentType},
	})
	s.invalidateStats(ctx)
	return updated, nil
}

// Unassign 解除分配：清空保管记录，留下单槽 previous_recipient 痕迹。
// PAR 文档引用刻意保留，便于事后稽核或重新挂接
func (s *AssetService[T]) Unassign(ctx context.Context, actor domain.Actor, id string) (T, error) {
	var zero T
	if err := domain.Authorize(actor, domain.OpUnassignAsset); err != nil {
		return zero, err
	}
	a, err := s.load(ctx, id)
	if err != nil {
		return zero, err
	}
	base := a.Base()
	if base.Status != domain.StatusAssigned {
		return zero, domain.Conflict("asset is not assigned")
	}
	outgoing := base.AssignedToName

	fields := map[string]any{
		"status":              domain.StatusAvailable,
		"assigned_to_user_id": "",
		"assigned_to_name":    "",
		"assigned_date":       nil,
		"assignment_type":     "",
		"par_number":          "",
		"previous_recipient":  outgoing,
	}
	released, err := s.assets.ReleaseCustody(ctx, id, base.AssignedToUserID, fields)
	if err != nil {
		return zero, err
	}
	if !released {
		return zero, domain.Conflict("asset custody changed concurrently, retry")
	}
	updated, err := s.load(ctx, id)
	if err != nil {
		return zero, err
	}
	s.audit.Record(ctx, actor, AuditEntry{
		Action: domain.AuditUnassign, ResourceType: domain.ResourceTypeFor(s.kind),
		ResourceID: id, ResourceName: updated.DisplayName(),
		OldValues: map[string]any{"status": domain.StatusAssigned, "assignedTo": outgoing},
		NewValues: map[string]any{"status": domain.StatusAvailable},
	})
	s.invalidateStats(ctx)
	return updated, nil
}

// AttachDocument 任意状态均可挂接 PAR 文档；先写 blob 再落引用，
// blob IO 不持有资产行的任何锁
func (s *AssetService[T]) AttachDocument(ctx context.Context, actor domain.Actor, id, filename string, r io.Reader) (T, error) {
	var zero T
	if err := domain.Authorize(actor, domain.OpAttachDocument); err != nil {
		return zero, err
	}
	a, err := s.load(ctx, id)
	if err != nil {
		return zero, err
	}
	if strings.ToLower(filepath.Ext(filename)) != ".pdf" {
		return zero, domain.Validation("only PDF documents are accepted")
	}
	base := a.Base()
	ref, err := s.docs.Save(ctx, string(s.kind), base.PropertyNumber+".pdf", r)
	if errors.Is(err, storage.ErrTooLarge) {
		return zero, domain.Validation("document exceeds the 10MB limit")
	}
	if err != nil {
		return zero, err
	}
	ok, err := s.assets.SetDocumentRef(ctx, id, ref)
	if err != nil {
		return zero, err
	}
	if !ok {
		// 资产在上传期间被删除，回收 blob
		_ = s.docs.Remove(ctx, ref)
		return zero, domain.NotFound("asset not found")
	}
	if old := base.PARDocumentRef; old != "" && old != ref {
		// 旧引用已被覆盖，回收旧 blob（best-effort）
		_ = s.docs.Remove(ctx, old)
	}
	updated, err := s.load(ctx, id)
	if err != nil {
		return zero, err
	}
	s.audit.Record(ctx, actor, AuditEntry{
		Action: domain.AuditAttachDoc, ResourceType: domain.ResourceTypeFor(s.kind),
		ResourceID: id, ResourceName: updated.DisplayName(),
		NewValues: map[string]any{"parDocumentRef": ref},
	})
	return updated, nil
}

// FetchDocument 管理员或当前保管人可取
func (s *AssetService[T]) FetchDocument(ctx context.Context, actor domain.Actor, id string) (*storage.Document, error) {
	if err := domain.Authorize(actor, domain.OpFetchDocument); err != nil {
		return nil, err
	}
	a, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	base := a.Base()
	if !actor.IsAdmin() && base.AssignedToUserID != actor.UserID {
		return nil, domain.Forbidden("no access to this PAR document")
	}
	if base.PARDocumentRef == "" {
		return nil, domain.NotFound("no PAR document on file")
	}
	doc, err := s.docs.Open(ctx, base.PARDocumentRef)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, domain.NotFound("PAR document not found")
	}
	return doc, err
}

type Stats struct {
	Total       int64 `json:"total"`
	Available   int64 `json:"available"`
	Assigned    int64 `json:"assigned"`
	UnderRepair int64 `json:"underRepair"`
	Disposed    int64 `json:"disposed"`
}

// Stats 看板计数，配 redis 时走 30s 缓存（singleflight 合并回源）
func (s *AssetService[T]) Stats(ctx context.Context, actor domain.Actor) (*Stats, error) {
	if err := domain.Authorize(actor, domain.OpViewStats); err != nil {
		return nil, err
	}
	if s.cache == nil {
		return s.loadStats(ctx)
	}
	return cache.GetOrLoadJSON[Stats](s.cache, ctx, s.statsKey(), 30*time.Second, s.loadStats)
}

func (s *AssetService[T]) loadStats(ctx context.Context) (*Stats, error) {
	counts, err := s.assets.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	out := &Stats{
		Available:   counts[domain.StatusAvailable],
		Assigned:    counts[domain.StatusAssigned],
		UnderRepair: counts[domain.StatusUnderRepair],
		Disposed:    counts[domain.StatusDisposed],
	}
	for _, n := range counts {
		out.Total += n
	}
	return out, nil
}

func (s *AssetService[T]) Kind() domain.AssetKind { return s.kind }

func (s *AssetService[T]) statsKey() string { return "pass:stats:" + string(s.kind) }

func (s *AssetService[T]) invalidateStats(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, s.statsKey())
	}
}

func (s *AssetService[T]) load(ctx context.Context, id string) (T, error) {
	a, found, err := s.assets.FindByID(ctx, id)
	if err != nil {
		var zero T
		return zero, err
	}
	if !found {
		var zero T
		return zero, domain.NotFound("asset not found")
	}
	return a, nil
}
