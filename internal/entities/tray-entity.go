package entities

import (
	"time"

	"repair-crm/pkg/types"
)

// Tray - tăviță (оферта): контейнер позиций внутри fișă, единица отправки в отделы.
type Tray struct {
	ID            uint64     `json:"id" db:"id"`
	ServiceFileID uint64     `json:"service_file_id" db:"service_file_id"`
	Number        int        `json:"number" db:"number"`
	Size          string     `json:"size" db:"size"`
	OfficeDirect  bool       `json:"office_direct" db:"office_direct"`
	CurierTrimis  bool       `json:"curier_trimis" db:"curier_trimis"`
	IsCash        bool       `json:"is_cash" db:"is_cash"`
	IsCard        bool       `json:"is_card" db:"is_card"`
	DispatchedAt  *time.Time `json:"dispatched_at,omitempty" db:"dispatched_at"`

	types.BaseEntity
}

// Locked - любой флаг доставки блокирует лоток.
func (t *Tray) Locked() bool {
	return t.OfficeDirect || t.CurierTrimis
}

func (t *Tray) Dispatched() bool {
	return t.DispatchedAt != nil
}
