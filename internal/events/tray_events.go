package events

import (
	"time"

	"repair-crm/internal/entities"
)

const (
	TrayChangedName     = "tray.changed"
	TrayDeletedName     = "tray.deleted"
	ItemChangedName     = "item.changed"
	ItemDeletedName     = "item.deleted"
	ItemsMovedName      = "routing.items_moved"
	TrayDispatchedName  = "routing.dispatched"
	StageChangedName    = "routing.stage_changed"
	OperationFailedName = "operation.failed"
)

// TrayChangedEvent - лоток создан или изменён (в том числе флаги блокировки).
type TrayChangedEvent struct {
	Tray   entities.Tray
	Action string
}

func (e TrayChangedEvent) Name() string { return TrayChangedName }

type TrayDeletedEvent struct {
	TrayID        uint64
	ServiceFileID uint64
	At            time.Time
}

func (e TrayDeletedEvent) Name() string { return TrayDeletedName }

type ItemChangedEvent struct {
	Item          entities.TrayItem
	ServiceFileID uint64
	Action        string
}

func (e ItemChangedEvent) Name() string { return ItemChangedName }

type ItemDeletedEvent struct {
	ItemID        uint64
	TrayID        uint64
	ServiceFileID uint64
	At            time.Time
}

func (e ItemDeletedEvent) Name() string { return ItemDeletedName }

// ItemsMovedEvent - группа инструмента перенесена в другой лоток.
type ItemsMovedEvent struct {
	TxID          string
	ServiceFileID uint64
	SourceTrayID  uint64
	TargetTrayID  uint64
	InstrumentID  uint64
	ItemIDs       []uint64
}

func (e ItemsMovedEvent) Name() string { return ItemsMovedName }

type TrayDispatchedEvent struct {
	TxID          string
	ServiceFileID uint64
	TrayIDs       []uint64
	ItemCount     int
}

func (e TrayDispatchedEvent) Name() string { return TrayDispatchedName }

type StageChangedEvent struct {
	TxID          string
	ServiceFileID uint64
	TrayID        uint64
	InstrumentID  uint64
	StageName     string
	ItemIDs       []uint64
	TechnicianID  *uint64
}

func (e StageChangedEvent) Name() string { return StageChangedName }

// OperationFailedEvent - отказ операции для уведомлений (тосты, лог).
type OperationFailedEvent struct {
	Operation string
	Kind      string
	Code      string
	Message   string
	Context   map[string]interface{}
}

func (e OperationFailedEvent) Name() string { return OperationFailedName }
