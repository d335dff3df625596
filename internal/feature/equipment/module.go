package equipment

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"property-pass/internal/domain"
	"property-pass/internal/feature/assets"
	"property-pass/internal/service"
)

func NewModule(svc *service.AssetService[*domain.Equipment]) *assets.Module[*domain.Equipment] {
	return &assets.Module[*domain.Equipment]{
		Path:       "equipment",
		Svc:        svc,
		BindCreate: bindCreate,
		BindUpdate: bindUpdate,
		Catalog: func() gin.H {
			return gin.H{
				"equipmentTypes":  domain.EquipmentTypes,
				"conditions":      domain.Conditions,
				"statuses":        domain.Statuses,
				"assignmentTypes": domain.AssignmentTypes,
			}
		},
	}
}

// Validate 类目字段校验，挂进服务层的 validateNew 钩子
func Validate(e *domain.Equipment) error {
	switch {
	case !domain.ValidEquipmentType(e.EquipmentType):
		return domain.Validation("invalid equipment type")
	case strings.TrimSpace(e.Brand) == "":
		return domain.Validation("brand is required")
	case strings.TrimSpace(e.Model) == "":
		return domain.Validation("model is required")
	}
	return nil
}

type createIn struct {
	PropertyNumber string `json:"propertyNumber" binding:"required,max=100"`
	GSDCode        string `json:"gsdCode"        binding:"omitempty,max=100"`
	ItemNumber     string `json:"itemNumber"     binding:"omitempty,max=100"`

	EquipmentType  string `json:"equipmentType"  binding:"required"`
	Brand          string `json:"brand"          binding:"required,max=100"`
	Model          string `json:"model"          binding:"required,max=100"`
	SerialNumber   string `json:"serialNumber"   binding:"omitempty,max=100"`
	Specifications string `json:"specifications" binding:"omitempty,max=500"`

	AcquisitionDate string   `json:"acquisitionDate" binding:"omitempty"` // "2006-01-02"
	AcquisitionCost *float64 `json:"acquisitionCost" binding:"omitempty,gte=0"`
	Condition       string   `json:"condition"       binding:"omitempty"`
	Status          string   `json:"status"          binding:"omitempty"`
	Remarks         string   `json:"remarks"         binding:"omitempty,max=500"`
}

func bindCreate(c *gin.Context) (*domain.Equipment, error) {
	var in createIn
	if err := c.ShouldBindJSON(&in); err != nil {
		return nil, err
	}
	e := &domain.Equipment{
		EquipmentType:  in.EquipmentType,
		Brand:          in.Brand,
		Model:          in.Model,
		SerialNumber:   in.SerialNumber,
		Specifications: in.Specifications,
	}
	e.PropertyNumber = in.PropertyNumber
	e.GSDCode = in.GSDCode
	e.ItemNumber = in.ItemNumber
	e.AcquisitionCost = in.AcquisitionCost
	e.Condition = in.Condition
	e.Status = in.Status
	e.Remarks = in.Remarks
	if in.AcquisitionDate != "" {
		d, err := time.Parse("2006-01-02", in.AcquisitionDate)
		if err != nil {
			return nil, domain.Validation("acquisitionDate must be YYYY-MM-DD")
		}
		e.AcquisitionDate = &d
	}
	return e, nil
}

type updateIn struct {
	PropertyNumber *string `json:"propertyNumber" binding:"omitempty,max=100"`
	GSDCode        *string `json:"gsdCode"        binding:"omitempty,max=100"`
	ItemNumber     *string `json:"itemNumber"     binding:"omitempty,max=100"`

	EquipmentType  *string `json:"equipmentType"`
	Brand          *string `json:"brand"          binding:"omitempty,max=100"`
	Model          *string `json:"model"          binding:"omitempty,max=100"`
	SerialNumber   *string `json:"serialNumber"   binding:"omitempty,max=100"`
	Specifications *string `json:"specifications" binding:"omitempty,max=500"`

	AcquisitionDate *string  `json:"acquisitionDate"`
	AcquisitionCost *float64 `json:"acquisitionCost" binding:"omitempty,gte=0"`
	Condition       *string  `json:"condition"`
	Status          *string  `json:"status"`
	Remarks         *string  `json:"remarks" binding:"omitempty,max=500"`
}

// bindUpdate 只收显式出现的字段，列名由这里白名单化
func bindUpdate(c *gin.Context) (map[string]any, error) {
	var in updateIn
	if err := c.ShouldBindJSON(&in); err != nil {
		return nil, err
	}
	fields := map[string]any{}
	put := func(col string, v *string) {
		if v != nil {
			fields[col] = *v
		}
	}
	put("property_number", in.PropertyNumber)
	put("gsd_code", in.GSDCode)
	put("item_number", in.ItemNumber)
	put("equipment_type", in.EquipmentType)
	put("brand", in.Brand)
	put("model", in.Model)
	put("serial_number", in.SerialNumber)
	put("specifications", in.Specifications)
	put("condition", in.Condition)
	put("status", in.Status)
	put("remarks", in.Remarks)
	if in.AcquisitionCost != nil {
		fields["acquisition_cost"] = *in.AcquisitionCost
	}
	if in.AcquisitionDate != nil {
		d, err := time.Parse("2006-01-02", *in.AcquisitionDate)
		if err != nil {
			return nil, domain.Validation("acquisitionDate must be YYYY-MM-DD")
		}
		fields["acquisition_date"] = d
	}
	if et, ok := fields["equipment_type"]; ok {
		if s, _ := et.(string); !domain.ValidEquipmentType(s) {
			return nil, domain.Validation("invalid equipment type")
		}
	}
	return fields, nil
}
