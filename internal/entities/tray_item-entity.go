package entities

import (
	"time"

	"repair-crm/pkg/types"
)

// ItemKind заменяет nullable item_type. В БД инструмент хранится как NULL.
type ItemKind string

const (
	ItemKindInstrument ItemKind = "instrument"
	ItemKindService    ItemKind = "service"
	ItemKindPart       ItemKind = "part"
)

// Billable - в суммах участвуют только услуги и запчасти.
func (k ItemKind) Billable() bool {
	return k == ItemKindService || k == ItemKindPart
}

// ParseItemKind принимает значение колонки item_type или из JSON.
func ParseItemKind(raw *string) ItemKind {
	if raw == nil {
		return ItemKindInstrument
	}
	switch ItemKind(*raw) {
	case ItemKindService:
		return ItemKindService
	case ItemKindPart:
		return ItemKindPart
	}
	return ItemKindInstrument
}

// Column - значение для колонки item_type.
func (k ItemKind) Column() *string {
	if !k.Billable() {
		return nil
	}
	s := string(k)
	return &s
}

type SerialNumber struct {
	Serial   string `json:"serial"`
	Garantie bool   `json:"garantie"`
}

// BrandSerialGroup - серийные единицы одного бренда в позиции (учёт гарантии в ремонтах).
type BrandSerialGroup struct {
	Brand   string         `json:"brand"`
	Serials []SerialNumber `json:"serials"`
	Qty     int            `json:"qty"`
}

type TrayItem struct {
	ID           uint64   `json:"id" db:"id"`
	TrayID       uint64   `json:"tray_id" db:"tray_id"`
	Kind         ItemKind `json:"item_type" db:"item_type"`
	Qty          int      `json:"qty" db:"qty"`
	Price        float64  `json:"price" db:"price"`
	DiscountPct  float64  `json:"discount_pct" db:"discount_pct"`
	Urgent       bool     `json:"urgent" db:"urgent"`
	InstrumentID *uint64  `json:"instrument_id" db:"instrument_id"`
	ServiceID    *uint64  `json:"service_id" db:"service_id"`
	PartID       *uint64  `json:"part_id" db:"part_id"`
	TechnicianID *uint64  `json:"technician_id" db:"technician_id"`
	NameSnapshot string   `json:"name_snapshot" db:"name_snapshot"`

	// Плоские поля для конвейеров без учёта серийников.
	Brand        string `json:"brand" db:"brand"`
	SerialNumber string `json:"serial_number" db:"serial_number"`
	Garantie     bool   `json:"garantie" db:"garantie"`

	BrandGroups []BrandSerialGroup `json:"brand_groups" db:"brand_groups"`
	Notes       string             `json:"notes,omitempty" db:"notes"`

	DepartmentID *uint64 `json:"department_id" db:"department_id"`
	PipelineID   *uint64 `json:"pipeline_id" db:"pipeline_id"`
	StageID      *uint64 `json:"stage_id" db:"stage_id"`

	types.BaseEntity
}

// InDepartment - позиция уже размещена в конвейере отдела.
func (i *TrayItem) InDepartment() bool {
	return i.PipelineID != nil
}

func (i *TrayItem) Touched() time.Time {
	if i.UpdatedAt == nil {
		return time.Time{}
	}
	return *i.UpdatedAt
}
