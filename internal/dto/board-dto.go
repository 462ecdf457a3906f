// Файл: internal/dto/board-dto.go

package dto

import (
	"time"

	"repair-crm/internal/entities"
)

const (
	BoardEventItemChanged = "item.changed"
	BoardEventItemDeleted = "item.deleted"
	BoardEventTrayChanged = "tray.changed"
	BoardEventTrayDeleted = "tray.deleted"
)

// BoardEventDTO - входящее изменение из realtime-канала.
type BoardEventDTO struct {
	Type string             `json:"type" validate:"required,oneof=item.changed item.deleted tray.changed tray.deleted"`
	ID   uint64             `json:"id"`
	At   time.Time          `json:"at"`
	Item *entities.TrayItem `json:"item,omitempty"`
	Tray *entities.Tray     `json:"tray,omitempty"`
}

type BoardEventsDTO struct {
	Events []BoardEventDTO `json:"events" validate:"required,dive"`
}

type BoardSnapshotDTO struct {
	ServiceFileID uint64           `json:"service_file_id"`
	Version       uint64           `json:"version"`
	Trays         []TrayDetailsDTO `json:"trays"`
	Totals        TotalsDTO        `json:"totals"`
}

type CatalogDTO struct {
	Instruments        []entities.Instrument         `json:"instruments"`
	Services           []entities.Service            `json:"services"`
	Parts              []entities.Part               `json:"parts"`
	Departments        []entities.Department         `json:"departments"`
	Pipelines          []entities.Pipeline           `json:"pipelines"`
	InstrumentSettings []entities.InstrumentSettings `json:"instrument_settings"`
}
