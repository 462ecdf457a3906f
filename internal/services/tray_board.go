package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"repair-crm/internal/dto"
	"repair-crm/internal/entities"
	"repair-crm/internal/repositories"
	apperrors "repair-crm/pkg/errors"
)

type TrayBoardServiceInterface interface {
	Snapshot(ctx context.Context, serviceFileID uint64) (*dto.BoardSnapshotDTO, error)
	Apply(ctx context.Context, serviceFileID uint64, changes []dto.BoardEventDTO) (*dto.BoardSnapshotDTO, error)
	Observe(serviceFileID uint64, change dto.BoardEventDTO)
	Invalidate(serviceFileID uint64)
}

// TrayBoard - состояние лотков одной fișă, собранное из событий изменений.
// Событие применяется, только если оно не старше того, что уже известно по этому id.
type TrayBoard struct {
	mu sync.Mutex

	serviceFileID uint64
	subscription  entities.SubscriptionType
	version       uint64

	trays        map[uint64]entities.Tray
	items        map[uint64]entities.TrayItem
	trayTouched  map[uint64]time.Time
	itemTouched  map[uint64]time.Time
	deletedTrays map[uint64]bool
	deletedItems map[uint64]bool
}

func NewTrayBoard(serviceFileID uint64, subscription entities.SubscriptionType, trays []entities.Tray, items []entities.TrayItem) *TrayBoard {
	b := &TrayBoard{
		serviceFileID: serviceFileID,
		subscription:  subscription,
		trays:         make(map[uint64]entities.Tray, len(trays)),
		items:         make(map[uint64]entities.TrayItem, len(items)),
		trayTouched:   make(map[uint64]time.Time, len(trays)),
		itemTouched:   make(map[uint64]time.Time, len(items)),
		deletedTrays:  make(map[uint64]bool),
		deletedItems:  make(map[uint64]bool),
	}
	for _, tray := range trays {
		b.trays[tray.ID] = tray
		b.trayTouched[tray.ID] = touchedAt(tray.UpdatedAt)
	}
	for _, item := range items {
		b.items[item.ID] = item
		b.itemTouched[item.ID] = item.Touched()
	}
	return b
}

func touchedAt(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

// eventTime - момент изменения: явный At события или updated_at записи.
func eventTime(change dto.BoardEventDTO) time.Time {
	if !change.At.IsZero() {
		return change.At
	}
	if change.Item != nil {
		return change.Item.Touched()
	}
	if change.Tray != nil {
		return touchedAt(change.Tray.UpdatedAt)
	}
	return time.Time{}
}

// Apply применяет событие. Возвращает false, если событие устарело или повторяет известное.
func (b *TrayBoard) Apply(change dto.BoardEventDTO) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	at := eventTime(change)
	switch change.Type {
	case dto.BoardEventItemChanged:
		if change.Item == nil {
			return false, apperrors.NewValidationError(apperrors.CodeInvalidItem, "Событие item.changed без позиции")
		}
		id := change.Item.ID
		if last, ok := b.itemTouched[id]; ok && last.After(at) {
			return false, nil
		}
		if b.deletedItems[id] && !at.After(b.itemTouched[id]) {
			return false, nil
		}
		b.items[id] = *change.Item
		b.itemTouched[id] = at
		delete(b.deletedItems, id)

	case dto.BoardEventItemDeleted:
		id := change.ID
		if last, ok := b.itemTouched[id]; ok && last.After(at) {
			return false, nil
		}
		if b.deletedItems[id] {
			return false, nil
		}
		delete(b.items, id)
		b.itemTouched[id] = at
		b.deletedItems[id] = true

	case dto.BoardEventTrayChanged:
		if change.Tray == nil {
			return false, apperrors.NewValidationError(apperrors.CodeInvalidItem, "Событие tray.changed без лотка")
		}
		if change.Tray.ServiceFileID != b.serviceFileID {
			return false, nil
		}
		id := change.Tray.ID
		if last, ok := b.trayTouched[id]; ok && last.After(at) {
			return false, nil
		}
		if b.deletedTrays[id] && !at.After(b.trayTouched[id]) {
			return false, nil
		}
		b.trays[id] = *change.Tray
		b.trayTouched[id] = at
		delete(b.deletedTrays, id)

	case dto.BoardEventTrayDeleted:
		id := change.ID
		if last, ok := b.trayTouched[id]; ok && last.After(at) {
			return false, nil
		}
		if b.deletedTrays[id] {
			return false, nil
		}
		delete(b.trays, id)
		b.trayTouched[id] = at
		b.deletedTrays[id] = true

	default:
		return false, apperrors.NewValidationError(apperrors.CodeInvalidItem,
			fmt.Sprintf("Неизвестный тип события: %q", change.Type))
	}

	b.version++
	return true, nil
}

// Snapshot - неизменяемая копия состояния: лотки по номеру, позиции по id.
func (b *TrayBoard) Snapshot(catalog *Catalog, rules PricingRules) dto.BoardSnapshotDTO {
	b.mu.Lock()
	trays := make([]entities.Tray, 0, len(b.trays))
	for _, tray := range b.trays {
		trays = append(trays, tray)
	}
	byTray := make(map[uint64][]entities.TrayItem, len(trays))
	for _, item := range b.items {
		if _, ok := b.trays[item.TrayID]; ok {
			byTray[item.TrayID] = append(byTray[item.TrayID], item)
		}
	}
	version := b.version
	b.mu.Unlock()

	sort.Slice(trays, func(i, j int) bool {
		if trays[i].Number != trays[j].Number {
			return trays[i].Number < trays[j].Number
		}
		return trays[i].ID < trays[j].ID
	})

	snapshot := dto.BoardSnapshotDTO{
		ServiceFileID: b.serviceFileID,
		Version:       version,
		Trays:         make([]dto.TrayDetailsDTO, 0, len(trays)),
	}
	var all Totals
	for _, tray := range trays {
		items := byTray[tray.ID]
		sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
		snapshot.Trays = append(snapshot.Trays, buildTrayDetails(tray, items, b.subscription, catalog, rules))
		all = all.Add(ComputeTotals(items, b.subscription, rules))
	}
	snapshot.Totals = toTotalsDTO(all)
	return snapshot
}

// -----------------------------------------------------------
// РЕЕСТР ДОСОК
// -----------------------------------------------------------

type TrayBoardService struct {
	trayRepo        repositories.TrayRepositoryInterface
	itemRepo        repositories.TrayItemRepositoryInterface
	serviceFileRepo repositories.ServiceFileRepositoryInterface
	catalog         CatalogServiceInterface
	rules           PricingRules
	logger          *zap.Logger

	mu     sync.Mutex
	boards map[uint64]*TrayBoard
}

func NewTrayBoardService(
	trayRepo repositories.TrayRepositoryInterface,
	itemRepo repositories.TrayItemRepositoryInterface,
	serviceFileRepo repositories.ServiceFileRepositoryInterface,
	catalog CatalogServiceInterface,
	rules PricingRules,
	logger *zap.Logger,
) TrayBoardServiceInterface {
	return &TrayBoardService{
		trayRepo:        trayRepo,
		itemRepo:        withLegacyNotes(itemRepo),
		serviceFileRepo: serviceFileRepo,
		catalog:         catalog,
		rules:           rules,
		logger:          logger,
		boards:          make(map[uint64]*TrayBoard),
	}
}

// board загружает доску из БД при первом обращении.
func (s *TrayBoardService) board(ctx context.Context, serviceFileID uint64) (*TrayBoard, error) {
	s.mu.Lock()
	board, ok := s.boards[serviceFileID]
	s.mu.Unlock()
	if ok {
		return board, nil
	}

	serviceFile, err := s.serviceFileRepo.FindServiceFile(ctx, serviceFileID)
	if err != nil {
		return nil, storageError(err, "Не удалось загрузить fișă")
	}
	trays, err := s.trayRepo.ListByServiceFile(ctx, nil, serviceFileID)
	if err != nil {
		return nil, storageError(err, "Не удалось загрузить лотки")
	}
	items, err := s.itemRepo.ListByTrays(ctx, nil, trayIDs(trays))
	if err != nil {
		return nil, storageError(err, "Не удалось загрузить позиции")
	}
	loaded := NewTrayBoard(serviceFileID, serviceFile.SubscriptionType, trays, items)

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.boards[serviceFileID]; ok {
		return existing, nil
	}
	s.boards[serviceFileID] = loaded
	return loaded, nil
}

func (s *TrayBoardService) Snapshot(ctx context.Context, serviceFileID uint64) (*dto.BoardSnapshotDTO, error) {
	board, err := s.board(ctx, serviceFileID)
	if err != nil {
		return nil, err
	}
	catalog, err := s.catalog.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	snapshot := board.Snapshot(catalog, s.rules)
	return &snapshot, nil
}

func (s *TrayBoardService) Apply(ctx context.Context, serviceFileID uint64, changes []dto.BoardEventDTO) (*dto.BoardSnapshotDTO, error) {
	board, err := s.board(ctx, serviceFileID)
	if err != nil {
		return nil, err
	}
	applied := 0
	for _, change := range changes {
		ok, err := board.Apply(change)
		if err != nil {
			return nil, err
		}
		if ok {
			applied++
		}
	}
	s.logger.Debug("События доски применены",
		zap.Uint64("service_file_id", serviceFileID),
		zap.Int("received", len(changes)),
		zap.Int("applied", applied),
	)
	return s.Snapshot(ctx, serviceFileID)
}

// Observe применяет событие шины к уже загруженной доске. Незагруженная доска
// прочитает актуальное состояние из БД при первом запросе.
func (s *TrayBoardService) Observe(serviceFileID uint64, change dto.BoardEventDTO) {
	s.mu.Lock()
	board, ok := s.boards[serviceFileID]
	s.mu.Unlock()
	if !ok {
		return
	}
	if _, err := board.Apply(change); err != nil {
		s.logger.Warn("Событие доски отклонено", zap.Uint64("service_file_id", serviceFileID), zap.Error(err))
	}
}

// Invalidate сбрасывает доску: после пакетных операций её проще перечитать из БД.
func (s *TrayBoardService) Invalidate(serviceFileID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.boards, serviceFileID)
}
