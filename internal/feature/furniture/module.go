package furniture

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"property-pass/internal/domain"
	"property-pass/internal/feature/assets"
	"property-pass/internal/service"
)

func NewModule(svc *service.AssetService[*domain.Furniture]) *assets.Module[*domain.Furniture] {
	return &assets.Module[*domain.Furniture]{
		Path:       "furniture",
		Svc:        svc,
		BindCreate: bindCreate,
		BindUpdate: bindUpdate,
		Catalog: func() gin.H {
			return gin.H{
				"furnitureTypes":  domain.FurnitureTypes,
				"conditions":      domain.Conditions,
				"statuses":        domain.Statuses,
				"assignmentTypes": domain.AssignmentTypes,
			}
		},
	}
}

func Validate(f *domain.Furniture) error {
	switch {
	case !domain.ValidFurnitureType(f.FurnitureType):
		return domain.Validation("invalid furniture type")
	case strings.TrimSpace(f.Description) == "":
		return domain.Validation("description is required")
	}
	return nil
}

type createIn struct {
	PropertyNumber string `json:"propertyNumber" binding:"required,max=100"`
	GSDCode        string `json:"gsdCode"        binding:"omitempty,max=100"`
	ItemNumber     string `json:"itemNumber"     binding:"omitempty,max=100"`

	FurnitureType string `json:"furnitureType" binding:"required"`
	Description   string `json:"description"   binding:"required,max=500"`
	Brand         string `json:"brand"         binding:"omitempty,max=100"`
	Material      string `json:"material"      binding:"omitempty,max=100"`
	Color         string `json:"color"         binding:"omitempty,max=64"`
	Dimensions    string `json:"dimensions"    binding:"omitempty,max=100"`
	Location      string `json:"location"      binding:"omitempty,max=191"`

	AcquisitionDate string   `json:"acquisitionDate" binding:"omitempty"` // "2006-01-02"
	AcquisitionCost *float64 `json:"acquisitionCost" binding:"omitempty,gte=0"`
	Condition       string   `json:"condition"       binding:"omitempty"`
	Status          string   `json:"status"          binding:"omitempty"`
	Remarks         string   `json:"remarks"         binding:"omitempty,max=500"`
}

func bindCreate(c *gin.Context) (*domain.Furniture, error) {
	var in createIn
	if err := c.ShouldBindJSON(&in); err != nil {
		return nil, err
	}
	f := &domain.Furniture{
		FurnitureType: in.FurnitureType,
		Description:   in.Description,
		Brand:         in.Brand,
		Material:      in.Material,
		Color:         in.Color,
		Dimensions:    in.Dimensions,
		Location:      in.Location,
	}
	f.PropertyNumber = in.PropertyNumber
	f.GSDCode = in.GSDCode
	f.ItemNumber = in.ItemNumber
	f.AcquisitionCost = in.AcquisitionCost
	f.Condition = in.Condition
	f.Status = in.Status
	f.Remarks = in.Remarks
	if in.AcquisitionDate != "" {
		d, err := time.Parse("2006-01-02", in.AcquisitionDate)
		if err != nil {
			return nil, domain.Validation("acquisitionDate must be YYYY-MM-DD")
		}
		f.AcquisitionDate = &d
	}
	return f, nil
}

type updateIn struct {
	PropertyNumber *string `json:"propertyNumber" binding:"omitempty,max=100"`
	GSDCode        *string `json:"gsdCode"        binding:"omitempty,max=100"`
	ItemNumber     *string `json:"itemNumber"     binding:"omitempty,max=100"`

	FurnitureType *string `json:"furnitureType"`
	Description   *string `json:"description" binding:"omitempty,max=500"`
	Brand         *string `json:"brand"       binding:"omitempty,max=100"`
	Material      *string `json:"material"    binding:"omitempty,max=100"`
	Color         *string `json:"color"       binding:"omitempty,max=64"`
	Dimensions    *string `json:"dimensions"  binding:"omitempty,max=100"`
	Location      *string `json:"location"    binding:"omitempty,max=191"`

	AcquisitionDate *string  `json:"acquisitionDate"`
	AcquisitionCost *float64 `json:"acquisitionCost" binding:"omitempty,gte=0"`
	Condition       *string  `json:"condition"`
	Status          *string  `json:"status"`
	Remarks         *string  `json:"remarks" binding:"omitempty,max=500"`
}

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
	put("furniture_type", in.FurnitureType)
	put("description", in.Description)
	put("brand", in.Brand)
	put("material", in.Material)
	put("color", in.Color)
	put("dimensions", in.Dimensions)
	put("location", in.Location)
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
	if ft, ok := fields["furniture_type"]; ok {
		if s, _ := ft.(string); !domain.ValidFurnitureType(s) {
			return nil, domain.Validation("invalid furniture type")
		}
	}
	return fields, nil
}
