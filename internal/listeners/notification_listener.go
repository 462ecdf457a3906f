package listeners

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"repair-crm/internal/events"
	"repair-crm/pkg/eventbus"
)

// NotificationListener пишет в лог все результаты операций движка:
// успехи на уровне Info, отказы - Warn.
type NotificationListener struct {
	logger *zap.Logger
}

func NewNotificationListener(logger *zap.Logger) *NotificationListener {
	return &NotificationListener{logger: logger}
}

func (l *NotificationListener) Register(bus *eventbus.Bus) {
	for _, name := range []string{
		events.TrayChangedName,
		events.TrayDeletedName,
		events.ItemChangedName,
		events.ItemDeletedName,
		events.ItemsMovedName,
		events.TrayDispatchedName,
		events.StageChangedName,
		events.OperationFailedName,
	} {
		bus.Subscribe(name, l.handle)
	}
	l.logger.Info("NotificationListener подписан на события движка")
}

func (l *NotificationListener) handle(ctx context.Context, event eventbus.Event) error {
	switch e := event.(type) {
	case events.TrayChangedEvent:
		l.logger.Info("Лоток изменён",
			zap.String("action", e.Action),
			zap.Uint64("tray_id", e.Tray.ID),
			zap.Uint64("service_file_id", e.Tray.ServiceFileID),
			zap.Bool("locked", e.Tray.Locked()),
		)
	case events.TrayDeletedEvent:
		l.logger.Info("Лоток удалён", zap.Uint64("tray_id", e.TrayID), zap.Uint64("service_file_id", e.ServiceFileID))
	case events.ItemChangedEvent:
		l.logger.Info("Позиция изменена",
			zap.String("action", e.Action),
			zap.Uint64("item_id", e.Item.ID),
			zap.Uint64("tray_id", e.Item.TrayID),
		)
	case events.ItemDeletedEvent:
		l.logger.Info("Позиция удалена", zap.Uint64("item_id", e.ItemID), zap.Uint64("tray_id", e.TrayID))
	case events.ItemsMovedEvent:
		l.logger.Info(fmt.Sprintf("Перенесено позиций: %d", len(e.ItemIDs)),
			zap.String("tx_id", e.TxID),
			zap.Uint64("source_tray_id", e.SourceTrayID),
			zap.Uint64("target_tray_id", e.TargetTrayID),
			zap.Uint64("instrument_id", e.InstrumentID),
		)
	case events.TrayDispatchedEvent:
		l.logger.Info(fmt.Sprintf("Отправлено в отделы лотков: %d", len(e.TrayIDs)),
			zap.String("tx_id", e.TxID),
			zap.Uint64("service_file_id", e.ServiceFileID),
			zap.Int("items", e.ItemCount),
		)
	case events.StageChangedEvent:
		l.logger.Info("Этап изменён",
			zap.String("tx_id", e.TxID),
			zap.Uint64("tray_id", e.TrayID),
			zap.String("stage", e.StageName),
			zap.Uint64s("items", e.ItemIDs),
		)
	case events.OperationFailedEvent:
		l.logger.Warn("Операция не выполнена",
			zap.String("operation", e.Operation),
			zap.String("kind", e.Kind),
			zap.String("code", e.Code),
			zap.String("message", e.Message),
			zap.Any("context", e.Context),
		)
	default:
		return fmt.Errorf("неожиданный тип события %T", event)
	}
	return nil
}
