package domain

import (
	"slices"
	"strings"
	"time"
)

type AssetKind string

const (
	AssetEquipment AssetKind = "equipment"
	AssetFurniture AssetKind = "furniture"
)

// 资产状态机：Available ⇄ Assigned；Under Repair / Disposed 为管理态
const (
	StatusAvailable   = "Available"
	StatusAssigned    = "Assigned"
	StatusUnderRepair = "Under Repair"
	StatusDisposed    = "Disposed"
)

const (
	AssignmentPAR      = "PAR"
	AssignmentJobOrder = "Job Order"
)

const DefaultCondition = "New"

var (
	Statuses        = []string{StatusAvailable, StatusAssigned, StatusUnderRepair, StatusDisposed}
	Conditions      = []string{"New", "Good", "Fair", "For Repair", "For Disposal"}
	AssignmentTypes = []string{AssignmentPAR, AssignmentJobOrder}

	EquipmentTypes = []string{
		"Desktop Computer", "Laptop", "Monitor", "Keyboard", "Mouse",
		"Printer", "Scanner", "UPS", "External Hard Drive", "Network Device",
		"Projector", "Webcam", "Headset", "Other",
	}
	FurnitureTypes = []string{
		"Office Chair", "Executive Chair", "Office Desk", "Conference Table",
		"Filing Cabinet", "Bookshelf", "Storage Cabinet", "Drawer",
		"Workstation", "Partition", "Other",
	}
)

func ValidStatus(s string) bool         { return slices.Contains(Statuses, s) }
func ValidCondition(s string) bool      { return slices.Contains(Conditions, s) }
func ValidAssignmentType(s string) bool { return slices.Contains(AssignmentTypes, s) }
func ValidEquipmentType(s string) bool  { return slices.Contains(EquipmentTypes, s) }
func ValidFurnitureType(s string) bool  { return slices.Contains(FurnitureTypes, s) }

// PropertyTag 财产编号（同类资产内唯一）与可选的登记编码
type PropertyTag struct {
	PropertyNumber string `gorm:"uniqueIndex;size:100;not null" json:"propertyNumber"`
	GSDCode        string `gorm:"size:100" json:"gsdCode,omitempty"`
	ItemNumber     string `gorm:"size:100" json:"itemNumber,omitempty"`
}

// CustodyRecord 内嵌保管记录：没有独立生命周期，随资产行一起读写。
// PreviousRecipient 是单槽审计痕迹（自由文本，不是外键）；
// PARDocumentRef 在解除分配后保留，仅随资产删除一并清理。
type CustodyRecord struct {
	AssignedToUserID  string     `gorm:"size:36;index" json:"assignedToUserId,omitempty"`
	AssignedToName    string     `gorm:"size:255" json:"assignedToName,omitempty"`
	AssignedDate      *time.Time `json:"assignedDate,omitempty"`
	AssignmentType    string     `gorm:"size:16" json:"assignmentType,omitempty"` // "PAR"/"Job Order"
	PARNumber         string     `gorm:"size:100" json:"parNumber,omitempty"`
	PreviousRecipient string     `gorm:"size:255" json:"previousRecipient,omitempty"`
	PARDocumentRef    string     `gorm:"size:255" json:"parDocumentRef,omitempty"`
}

func (c *CustodyRecord) Held() bool { return c.AssignedToUserID != "" }

// AssetBase 设备/家具共用的基础字段
type AssetBase struct {
	ID          string `gorm:"primaryKey;size:36" json:"id"`
	PropertyTag `gorm:"embedded"`

	AcquisitionDate *time.Time `json:"acquisitionDate,omitempty"`
	AcquisitionCost *float64   `json:"acquisitionCost,omitempty"`

	Condition string `gorm:"size:32;not null;default:New" json:"condition"`
	Status    string `gorm:"size:32;not null;default:Available;index" json:"status"`
	Remarks   string `gorm:"size:500" json:"remarks,omitempty"`

	CustodyRecord `gorm:"embedded"`

	CreatedBy string    `gorm:"size:191" json:"createdBy"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// Consistent 核心不变式：status = Assigned ⇔ 有保管人；PAR ⇒ 有 PAR 编号；Job Order ⇒ 无
func (b *AssetBase) Consistent() bool {
	if (b.Status == StatusAssigned) != b.Held() {
		return false
	}
	if b.AssignmentType == AssignmentPAR && b.Held() && strings.TrimSpace(b.PARNumber) == "" {
		return false
	}
	if b.AssignmentType == AssignmentJobOrder && b.PARNumber != "" {
		return false
	}
	return true
}

// Asset 资产抽象：Registry 与 Custody Engine 对两类资产一视同仁
type Asset interface {
	Base() *AssetBase
	Kind() AssetKind
	DisplayName() string
}

type Equipment struct {
	AssetBase `gorm:"embedded"`

	EquipmentType  string `gorm:"size:64;not null" json:"equipmentType"`
	Brand          string `gorm:"size:100;not null" json:"brand"`
	Model          string `gorm:"size:100;not null" json:"model"`
	SerialNumber   string `gorm:"size:100" json:"serialNumber,omitempty"`
	Specifications string `gorm:"size:500" json:"specifications,omitempty"`
}

func (Equipment) TableName() string         { return "equipment" }
func (e *Equipment) Base() *AssetBase       { return &e.AssetBase }
func (e *Equipment) Kind() AssetKind        { return AssetEquipment }
func (e *Equipment) DisplayName() string {
	return strings.TrimSpace(e.Brand+" "+e.Model) + " (" + e.PropertyNumber + ")"
}

type Furniture struct {
	AssetBase `gorm:"embedded"`

	FurnitureType string `gorm:"size:64;not null" json:"furnitureType"`
	Description   string `gorm:"size:500;not null" json:"description"`
	Brand         string `gorm:"size:100" json:"brand,omitempty"`
	Material      string `gorm:"size:100" json:"material,omitempty"`
	Color         string `gorm:"size:64" json:"color,omitempty"`
	Dimensions    string `gorm:"size:100" json:"dimensions,omitempty"`
	Location      string `gorm:"size:191" json:"location,omitempty"`
}

func (Furniture) TableName() string         { return "furniture" }
func (f *Furniture) Base() *AssetBase       { return &f.AssetBase }
func (f *Furniture) Kind() AssetKind        { return AssetFurniture }
func (f *Furniture) DisplayName() string {
	return f.Description + " (" + f.PropertyNumber + ")"
}
