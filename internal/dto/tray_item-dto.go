// Файл: internal/dto/tray_item-dto.go

package dto

import (
	"github.com/aarondl/null/v8"
)

type SerialNumberDTO struct {
	Serial   string `json:"serial" validate:"required"`
	Garantie bool   `json:"garantie"`
}

type BrandSerialGroupDTO struct {
	Brand   string            `json:"brand"`
	Serials []SerialNumberDTO `json:"serials" validate:"dive"`
	Qty     int               `json:"qty" validate:"min=0"`
}

// CreateTrayItemDTO - "Adaugă Serviciu/Piesă" или инструмент без услуги (item_type пустой).
// Цена и название берутся из каталога, если не переданы.
type CreateTrayItemDTO struct {
	ItemType     string                `json:"item_type" validate:"item_kind"`
	Qty          int                   `json:"qty" validate:"required,min=1"`
	Price        *float64              `json:"price" validate:"omitempty,min=0"`
	DiscountPct  float64               `json:"discount_pct" validate:"min=0,max=100"`
	Urgent       *bool                 `json:"urgent"`
	InstrumentID *uint64               `json:"instrument_id"`
	ServiceID    *uint64               `json:"service_id"`
	PartID       *uint64               `json:"part_id"`
	NameSnapshot string                `json:"name_snapshot"`
	Brand        string                `json:"brand"`
	SerialNumber string                `json:"serial_number"`
	Garantie     bool                  `json:"garantie"`
	BrandGroups  []BrandSerialGroupDTO `json:"brand_groups" validate:"dive"`
	Notes        string                `json:"notes"`
}

// UpdateTrayItemDTO - частичное обновление позиции.
type UpdateTrayItemDTO struct {
	Qty          null.Int               `json:"qty" validate:"omitempty,min=1"`
	Price        null.Float64           `json:"price" validate:"omitempty,min=0"`
	DiscountPct  null.Float64           `json:"discount_pct" validate:"omitempty,min=0,max=100"`
	Urgent       null.Bool              `json:"urgent"`
	TechnicianID null.Uint64            `json:"technician_id"`
	Brand        null.String            `json:"brand"`
	SerialNumber null.String            `json:"serial_number"`
	Garantie     null.Bool              `json:"garantie"`
	BrandGroups  *[]BrandSerialGroupDTO `json:"brand_groups" validate:"omitempty,dive"`
	Notes        null.String            `json:"notes"`
}

type TrayItemDTO struct {
	ID           uint64                `json:"id"`
	TrayID       uint64                `json:"tray_id"`
	ItemType     *string               `json:"item_type"`
	Qty          int                   `json:"qty"`
	Price        float64               `json:"price"`
	DiscountPct  float64               `json:"discount_pct"`
	Urgent       bool                  `json:"urgent"`
	InstrumentID *uint64               `json:"instrument_id"`
	ServiceID    *uint64               `json:"service_id"`
	PartID       *uint64               `json:"part_id"`
	TechnicianID *uint64               `json:"technician_id"`
	NameSnapshot string                `json:"name_snapshot"`
	Brand        string                `json:"brand"`
	SerialNumber string                `json:"serial_number"`
	Garantie     bool                  `json:"garantie"`
	BrandGroups  []BrandSerialGroupDTO `json:"brand_groups"`
	DepartmentID *uint64               `json:"department_id"`
	PipelineID   *uint64               `json:"pipeline_id"`
	StageID      *uint64               `json:"stage_id"`
	Total        float64               `json:"total"`
}

type ItemRowDTO struct {
	Key         string                `json:"key"`
	ItemIDs     []uint64              `json:"item_ids"`
	Name        string                `json:"name"`
	ItemType    *string               `json:"item_type"`
	Qty         int                   `json:"qty"`
	BrandGroups []BrandSerialGroupDTO `json:"brand_groups"`
}

type InstrumentGroupDTO struct {
	InstrumentID   uint64   `json:"instrument_id"`
	InstrumentName string   `json:"instrument_name"`
	FirstItemID    uint64   `json:"first_item_id"`
	ItemIDs        []uint64 `json:"item_ids"`
}

type TotalsDTO struct {
	Subtotal             float64 `json:"subtotal"`
	TotalDiscount        float64 `json:"total_discount"`
	UrgentAmount         float64 `json:"urgent_amount"`
	SubscriptionDiscount float64 `json:"subscription_discount"`
	Total                float64 `json:"total"`
}
