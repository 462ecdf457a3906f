// Файл: internal/dto/tray-dto.go

package dto

import (
	"time"

	"github.com/aarondl/null/v8"
)

// CreateTrayDTO используется для создания нового лотка (tăviță).
type CreateTrayDTO struct {
	Number int    `json:"number" validate:"required,min=1"`
	Size   string `json:"size" validate:"required,tray_size"`
}

// UpdateTrayDTO - частичное обновление. Флаги блокировки меняются только через ToggleLockDTO.
type UpdateTrayDTO struct {
	Number null.Int    `json:"number" validate:"omitempty,min=1"`
	Size   null.String `json:"size" validate:"omitempty,tray_size"`
	IsCash null.Bool   `json:"is_cash"`
	IsCard null.Bool   `json:"is_card"`
}

type ToggleLockDTO struct {
	Flag  string `json:"flag" validate:"required,lock_flag"`
	Value bool   `json:"value"`
}

type TrayResponseDTO struct {
	ID            uint64     `json:"id"`
	ServiceFileID uint64     `json:"service_file_id"`
	Number        int        `json:"number"`
	Size          string     `json:"size"`
	OfficeDirect  bool       `json:"office_direct"`
	CurierTrimis  bool       `json:"curier_trimis"`
	IsCash        bool       `json:"is_cash"`
	IsCard        bool       `json:"is_card"`
	Locked        bool       `json:"locked"`
	DispatchedAt  *time.Time `json:"dispatched_at,omitempty"`
	CreatedAt     string     `json:"created_at,omitempty"`
	UpdatedAt     string     `json:"updated_at,omitempty"`
}

// TrayDetailsDTO - лоток со строками, группами по инструментам и итогами.
type TrayDetailsDTO struct {
	Tray             TrayResponseDTO      `json:"tray"`
	Items            []TrayItemDTO        `json:"items"`
	Rows             []ItemRowDTO         `json:"rows"`
	InstrumentGroups []InstrumentGroupDTO `json:"instruments_grouped"`
	Totals           TotalsDTO            `json:"totals"`
	ShippingWeight   float64              `json:"shipping_weight"`
}
