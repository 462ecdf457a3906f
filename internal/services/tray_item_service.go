package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"repair-crm/internal/dto"
	"repair-crm/internal/entities"
	"repair-crm/internal/events"
	"repair-crm/internal/repositories"
	apperrors "repair-crm/pkg/errors"
)

type TrayItemServiceInterface interface {
	AddItem(ctx context.Context, trayID uint64, payload dto.CreateTrayItemDTO) (*dto.TrayItemDTO, error)
	UpdateItem(ctx context.Context, itemID uint64, payload dto.UpdateTrayItemDTO) (*dto.TrayItemDTO, error)
	DeleteItem(ctx context.Context, itemID uint64) error
	ListItems(ctx context.Context, trayID uint64) ([]dto.TrayItemDTO, error)
}

type TrayItemService struct {
	txManager       repositories.TxManagerInterface
	trayRepo        repositories.TrayRepositoryInterface
	itemRepo        repositories.TrayItemRepositoryInterface
	serviceFileRepo repositories.ServiceFileRepositoryInterface
	catalog         CatalogServiceInterface
	bus             Publisher
	rules           PricingRules
	logger          *zap.Logger
}

func NewTrayItemService(
	txManager repositories.TxManagerInterface,
	trayRepo repositories.TrayRepositoryInterface,
	itemRepo repositories.TrayItemRepositoryInterface,
	serviceFileRepo repositories.ServiceFileRepositoryInterface,
	catalog CatalogServiceInterface,
	bus Publisher,
	rules PricingRules,
	logger *zap.Logger,
) TrayItemServiceInterface {
	return &TrayItemService{
		txManager:       txManager,
		trayRepo:        trayRepo,
		itemRepo:        withLegacyNotes(itemRepo),
		serviceFileRepo: serviceFileRepo,
		catalog:         catalog,
		bus:             publisherOrNop(bus),
		rules:           rules,
		logger:          logger,
	}
}

func validateAmounts(qty int, price float64, discountPct float64) error {
	if qty < 1 {
		return apperrors.NewValidationError(apperrors.CodeInvalidQty, "Количество должно быть не меньше 1")
	}
	if discountPct < 0 || discountPct > 100 {
		return apperrors.NewValidationError(apperrors.CodeInvalidDiscount, "Скидка должна быть в диапазоне 0-100%")
	}
	if price < 0 {
		return apperrors.NewValidationError(apperrors.CodeInvalidPrice, "Цена не может быть отрицательной")
	}
	return nil
}

// buildItem проверяет ссылки позиции на каталог и достраивает снимок названия и цены.
func buildItem(trayID uint64, payload dto.CreateTrayItemDTO, catalog *Catalog) (entities.TrayItem, error) {
	var kind entities.ItemKind
	if payload.ItemType != "" {
		kind = entities.ParseItemKind(&payload.ItemType)
	} else {
		kind = entities.ItemKindInstrument
	}

	item := entities.TrayItem{
		TrayID:       trayID,
		Kind:         kind,
		Qty:          payload.Qty,
		DiscountPct:  payload.DiscountPct,
		InstrumentID: payload.InstrumentID,
		ServiceID:    payload.ServiceID,
		PartID:       payload.PartID,
		NameSnapshot: strings.TrimSpace(payload.NameSnapshot),
		Brand:        payload.Brand,
		SerialNumber: payload.SerialNumber,
		Garantie:     payload.Garantie,
		BrandGroups:  fromBrandGroupDTOs(payload.BrandGroups),
		Notes:        payload.Notes,
	}
	if payload.Price != nil {
		item.Price = *payload.Price
	}

	switch kind {
	case entities.ItemKindService:
		if item.ServiceID == nil {
			return item, apperrors.NewValidationError(apperrors.CodeInvalidItem, "Для услуги нужен service_id")
		}
		service, ok := catalog.Services[*item.ServiceID]
		if !ok {
			return item, apperrors.NewResolutionError(apperrors.CodeCatalogMissing,
				fmt.Sprintf("Услуга %d не найдена в каталоге", *item.ServiceID))
		}
		if item.NameSnapshot == "" {
			item.NameSnapshot = service.Name
		}
		if payload.Price == nil {
			item.Price = service.Price
		}
		if item.InstrumentID == nil && service.InstrumentID != nil {
			id := *service.InstrumentID
			item.InstrumentID = &id
		}
		item.PartID = nil
	case entities.ItemKindPart:
		if item.PartID == nil {
			return item, apperrors.NewValidationError(apperrors.CodeInvalidItem, "Для запчасти нужен part_id")
		}
		if item.InstrumentID == nil {
			return item, apperrors.NewValidationError(apperrors.CodeMissingInstrument, "Запчасть должна относиться к инструменту")
		}
		part, ok := catalog.Parts[*item.PartID]
		if !ok {
			return item, apperrors.NewResolutionError(apperrors.CodeCatalogMissing,
				fmt.Sprintf("Запчасть %d не найдена в каталоге", *item.PartID))
		}
		if item.NameSnapshot == "" {
			item.NameSnapshot = part.Name
		}
		if payload.Price == nil {
			item.Price = part.Price
		}
		item.ServiceID = nil
	default:
		if item.InstrumentID == nil {
			return item, apperrors.NewValidationError(apperrors.CodeMissingInstrument, "Для инструмента нужен instrument_id")
		}
		item.ServiceID = nil
		item.PartID = nil
		item.Price = 0
		item.DiscountPct = 0
	}

	if item.InstrumentID != nil {
		instrument, ok := catalog.Instruments[*item.InstrumentID]
		if !ok {
			return item, apperrors.NewResolutionError(apperrors.CodeInstrumentMissing,
				fmt.Sprintf("Инструмент %d не найден в каталоге", *item.InstrumentID))
		}
		if kind == entities.ItemKindInstrument && item.NameSnapshot == "" {
			item.NameSnapshot = instrument.Name
		}
	}

	settings := settingsFor(item, catalog)
	if payload.Urgent != nil {
		item.Urgent = *payload.Urgent
	} else {
		item.Urgent = settings.DefaultUrgent
	}

	consumeLegacyNotes(&item)
	normalizeSerials(&item, settings)
	return item, validateAmounts(item.Qty, item.Price, item.DiscountPct)
}

func settingsFor(item entities.TrayItem, catalog *Catalog) entities.InstrumentSettings {
	if item.InstrumentID == nil || catalog == nil {
		return entities.InstrumentSettings{}
	}
	return catalog.Settings[*item.InstrumentID]
}

// normalizeSerials: инструменты с учётом серийников хранят группы брендов,
// остальные - плоские поля brand / serial_number / garantie.
func normalizeSerials(item *entities.TrayItem, settings entities.InstrumentSettings) {
	if settings.TracksSerials {
		if len(item.BrandGroups) == 0 && (item.Brand != "" || item.SerialNumber != "") {
			group := entities.BrandSerialGroup{Brand: item.Brand, Qty: item.Qty}
			if item.SerialNumber != "" {
				group.Serials = []entities.SerialNumber{{Serial: item.SerialNumber, Garantie: item.Garantie}}
			}
			item.BrandGroups = []entities.BrandSerialGroup{group}
		}
		item.Brand, item.SerialNumber, item.Garantie = "", "", false
		return
	}

	if len(item.BrandGroups) > 0 {
		first := item.BrandGroups[0]
		if item.Brand == "" {
			item.Brand = first.Brand
		}
		if item.SerialNumber == "" && len(first.Serials) > 0 {
			item.SerialNumber = first.Serials[0].Serial
			item.Garantie = first.Serials[0].Garantie
		}
	}
	item.BrandGroups = nil
}

// lockedTray загружает лоток позиции в транзакции и проверяет блокировку.
func (s *TrayItemService) lockedTray(ctx context.Context, tx pgx.Tx, trayID uint64) (*entities.Tray, error) {
	tray, err := s.trayRepo.FindTray(ctx, tx, trayID)
	if err != nil {
		return nil, err
	}
	if err := ensureEditable(ctx, tray); err != nil {
		return nil, err
	}
	return tray, nil
}

func (s *TrayItemService) subscriptionOf(ctx context.Context, serviceFileID uint64) entities.SubscriptionType {
	serviceFile, err := s.serviceFileRepo.FindServiceFile(ctx, serviceFileID)
	if err != nil {
		s.logger.Warn("Не удалось получить абонемент fișă", zap.Uint64("service_file_id", serviceFileID), zap.Error(err))
		return entities.SubscriptionNone
	}
	return serviceFile.SubscriptionType
}

func (s *TrayItemService) AddItem(ctx context.Context, trayID uint64, payload dto.CreateTrayItemDTO) (*dto.TrayItemDTO, error) {
	if err := validateAmounts(payload.Qty, 0, payload.DiscountPct); err != nil {
		return nil, err
	}
	if payload.Price != nil && *payload.Price < 0 {
		return nil, apperrors.NewValidationError(apperrors.CodeInvalidPrice, "Цена не может быть отрицательной")
	}

	catalog, err := s.catalog.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	item, err := buildItem(trayID, payload, catalog)
	if err != nil {
		return nil, err
	}

	var (
		created *entities.TrayItem
		tray    *entities.Tray
	)
	err = s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		tray, err = s.lockedTray(ctx, tx, trayID)
		if err != nil {
			return err
		}
		created, err = s.itemRepo.CreateItem(ctx, tx, item)
		return err
	})
	if err != nil {
		err = storageError(err, "Не удалось добавить позицию")
		reportFailure(ctx, s.bus, s.logger, "item.add", err, map[string]interface{}{"tray_id": trayID})
		return nil, err
	}

	s.logger.Info("Позиция добавлена", zap.Uint64("item_id", created.ID), zap.Uint64("tray_id", trayID))
	s.bus.Publish(ctx, events.ItemChangedEvent{Item: *created, ServiceFileID: tray.ServiceFileID, Action: "created"})
	res := toItemDTO(*created, s.subscriptionOf(ctx, tray.ServiceFileID), s.rules)
	return &res, nil
}

func (s *TrayItemService) UpdateItem(ctx context.Context, itemID uint64, payload dto.UpdateTrayItemDTO) (*dto.TrayItemDTO, error) {
	if payload.Qty.Valid && payload.Qty.Int < 1 {
		return nil, apperrors.NewValidationError(apperrors.CodeInvalidQty, "Количество должно быть не меньше 1")
	}
	if payload.DiscountPct.Valid && (payload.DiscountPct.Float64 < 0 || payload.DiscountPct.Float64 > 100) {
		return nil, apperrors.NewValidationError(apperrors.CodeInvalidDiscount, "Скидка должна быть в диапазоне 0-100%")
	}
	if payload.Price.Valid && payload.Price.Float64 < 0 {
		return nil, apperrors.NewValidationError(apperrors.CodeInvalidPrice, "Цена не может быть отрицательной")
	}

	catalog, err := s.catalog.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	var (
		updated *entities.TrayItem
		tray    *entities.Tray
	)
	err = s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		item, err := s.itemRepo.FindItem(ctx, tx, itemID)
		if err != nil {
			return err
		}
		tray, err = s.lockedTray(ctx, tx, item.TrayID)
		if err != nil {
			return err
		}

		if payload.Notes.Valid {
			item.Notes = payload.Notes.String
		}
		consumeLegacyNotes(item)

		if payload.Qty.Valid {
			item.Qty = payload.Qty.Int
		}
		if payload.Price.Valid && item.Kind.Billable() {
			item.Price = payload.Price.Float64
		}
		if payload.DiscountPct.Valid && item.Kind.Billable() {
			item.DiscountPct = payload.DiscountPct.Float64
		}
		if payload.Urgent.Valid {
			item.Urgent = payload.Urgent.Bool
		}
		if payload.TechnicianID.Valid {
			technicianID := payload.TechnicianID.Uint64
			item.TechnicianID = &technicianID
		}
		if payload.Brand.Valid {
			item.Brand = payload.Brand.String
		}
		if payload.SerialNumber.Valid {
			item.SerialNumber = payload.SerialNumber.String
		}
		if payload.Garantie.Valid {
			item.Garantie = payload.Garantie.Bool
		}
		if payload.BrandGroups != nil {
			item.BrandGroups = fromBrandGroupDTOs(*payload.BrandGroups)
		}

		normalizeSerials(item, settingsFor(*item, catalog))
		if err := validateAmounts(item.Qty, item.Price, item.DiscountPct); err != nil {
			return err
		}

		updated, err = s.itemRepo.UpdateItem(ctx, tx, *item)
		return err
	})
	if err != nil {
		err = storageError(err, "Не удалось изменить позицию")
		reportFailure(ctx, s.bus, s.logger, "item.update", err, map[string]interface{}{"item_id": itemID})
		return nil, err
	}

	s.bus.Publish(ctx, events.ItemChangedEvent{Item: *updated, ServiceFileID: tray.ServiceFileID, Action: "updated"})
	res := toItemDTO(*updated, s.subscriptionOf(ctx, tray.ServiceFileID), s.rules)
	return &res, nil
}

func (s *TrayItemService) DeleteItem(ctx context.Context, itemID uint64) error {
	var (
		item *entities.TrayItem
		tray *entities.Tray
	)
	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) (err error) {
		item, err = s.itemRepo.FindItem(ctx, tx, itemID)
		if err != nil {
			return err
		}
		tray, err = s.lockedTray(ctx, tx, item.TrayID)
		if err != nil {
			return err
		}
		return s.itemRepo.DeleteItem(ctx, tx, itemID)
	})
	if err != nil {
		err = storageError(err, "Не удалось удалить позицию")
		reportFailure(ctx, s.bus, s.logger, "item.delete", err, map[string]interface{}{"item_id": itemID})
		return err
	}

	s.logger.Info("Позиция удалена", zap.Uint64("item_id", itemID), zap.Uint64("tray_id", item.TrayID))
	s.bus.Publish(ctx, events.ItemDeletedEvent{
		ItemID:        itemID,
		TrayID:        item.TrayID,
		ServiceFileID: tray.ServiceFileID,
		At:            time.Now(),
	})
	return nil
}

func (s *TrayItemService) ListItems(ctx context.Context, trayID uint64) ([]dto.TrayItemDTO, error) {
	tray, err := s.trayRepo.FindTray(ctx, nil, trayID)
	if err != nil {
		return nil, storageError(err, "Не удалось загрузить лоток")
	}
	items, err := s.itemRepo.ListItems(ctx, nil, trayID)
	if err != nil {
		return nil, storageError(err, "Не удалось загрузить позиции")
	}

	subscription := s.subscriptionOf(ctx, tray.ServiceFileID)
	res := make([]dto.TrayItemDTO, 0, len(items))
	for _, item := range items {
		res = append(res, toItemDTO(item, subscription, s.rules))
	}
	return res, nil
}
