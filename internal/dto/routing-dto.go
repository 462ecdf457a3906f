// Файл: internal/dto/routing-dto.go

package dto

// MoveGroupDTO - перенос группы инструмента в существующий или новый лоток той же fișă.
type MoveGroupDTO struct {
	SourceTrayID uint64         `json:"source_tray_id" validate:"required"`
	InstrumentID uint64         `json:"instrument_id"`
	TargetTrayID *uint64        `json:"target_tray_id"`
	NewTray      *CreateTrayDTO `json:"new_tray" validate:"omitempty"`
}

type MoveResultDTO struct {
	TxID         string          `json:"tx_id"`
	SourceTrayID uint64          `json:"source_tray_id"`
	TargetTray   TrayResponseDTO `json:"target_tray"`
	MovedItemIDs []uint64        `json:"moved_item_ids"`
}

type PlacementDTO struct {
	TrayID       uint64   `json:"tray_id"`
	InstrumentID uint64   `json:"instrument_id"`
	DepartmentID *uint64  `json:"department_id,omitempty"`
	PipelineID   uint64   `json:"pipeline_id"`
	StageID      uint64   `json:"stage_id"`
	StageName    string   `json:"stage_name"`
	ItemIDs      []uint64 `json:"item_ids"`
}

type DispatchResultDTO struct {
	TxID            string         `json:"tx_id"`
	ServiceFileID   uint64         `json:"service_file_id"`
	DispatchedTrays []uint64       `json:"dispatched_trays"`
	Placements      []PlacementDTO `json:"placements"`
}

// StageTransitionDTO - группа инструмента в лотке, над которой работает техник.
type StageTransitionDTO struct {
	TrayID       uint64 `json:"tray_id" validate:"required"`
	InstrumentID uint64 `json:"instrument_id" validate:"required"`
}

type StageTransitionResultDTO struct {
	TxID      string   `json:"tx_id"`
	StageID   uint64   `json:"stage_id"`
	StageName string   `json:"stage_name"`
	ItemIDs   []uint64 `json:"item_ids"`
}
