package listeners

import (
	"context"

	"go.uber.org/zap"

	"repair-crm/internal/dto"
	"repair-crm/internal/events"
	"repair-crm/internal/services"
	"repair-crm/pkg/eventbus"
)

// BoardListener держит доски лотков в актуальном состоянии.
// Одиночные изменения применяются к доске, пакетные операции сбрасывают её.
type BoardListener struct {
	board  services.TrayBoardServiceInterface
	logger *zap.Logger
}

func NewBoardListener(board services.TrayBoardServiceInterface, logger *zap.Logger) *BoardListener {
	return &BoardListener{board: board, logger: logger}
}

func (l *BoardListener) Register(bus *eventbus.Bus) {
	bus.Subscribe(events.TrayChangedName, l.handle)
	bus.Subscribe(events.TrayDeletedName, l.handle)
	bus.Subscribe(events.ItemChangedName, l.handle)
	bus.Subscribe(events.ItemDeletedName, l.handle)
	bus.Subscribe(events.ItemsMovedName, l.handle)
	bus.Subscribe(events.TrayDispatchedName, l.handle)
	bus.Subscribe(events.StageChangedName, l.handle)
}

func (l *BoardListener) handle(ctx context.Context, event eventbus.Event) error {
	switch e := event.(type) {
	case events.TrayChangedEvent:
		tray := e.Tray
		l.board.Observe(tray.ServiceFileID, dto.BoardEventDTO{Type: dto.BoardEventTrayChanged, ID: tray.ID, Tray: &tray})
	case events.TrayDeletedEvent:
		l.board.Observe(e.ServiceFileID, dto.BoardEventDTO{Type: dto.BoardEventTrayDeleted, ID: e.TrayID, At: e.At})
	case events.ItemChangedEvent:
		item := e.Item
		l.board.Observe(e.ServiceFileID, dto.BoardEventDTO{Type: dto.BoardEventItemChanged, ID: item.ID, Item: &item})
	case events.ItemDeletedEvent:
		l.board.Observe(e.ServiceFileID, dto.BoardEventDTO{Type: dto.BoardEventItemDeleted, ID: e.ItemID, At: e.At})
	case events.ItemsMovedEvent:
		l.board.Invalidate(e.ServiceFileID)
	case events.TrayDispatchedEvent:
		l.board.Invalidate(e.ServiceFileID)
	case events.StageChangedEvent:
		l.board.Invalidate(e.ServiceFileID)
	default:
		l.logger.Debug("BoardListener: событие пропущено", zap.String("event", event.Name()))
	}
	return nil
}
