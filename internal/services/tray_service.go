package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"repair-crm/internal/dto"
	"repair-crm/internal/entities"
	"repair-crm/internal/events"
	"repair-crm/internal/repositories"
	"repair-crm/pkg/constants"
	apperrors "repair-crm/pkg/errors"
	"repair-crm/pkg/utils"
)

type TrayServiceInterface interface {
	CreateTray(ctx context.Context, serviceFileID uint64, payload dto.CreateTrayDTO) (*dto.TrayResponseDTO, error)
	EditTray(ctx context.Context, trayID uint64, payload dto.UpdateTrayDTO) (*dto.TrayResponseDTO, error)
	DeleteTray(ctx context.Context, trayID uint64) error
	ToggleLock(ctx context.Context, trayID uint64, payload dto.ToggleLockDTO) (*dto.TrayResponseDTO, error)
	GetTray(ctx context.Context, trayID uint64) (*dto.TrayDetailsDTO, error)
	ListTrays(ctx context.Context, serviceFileID uint64) ([]dto.TrayDetailsDTO, error)
}

type TrayService struct {
	txManager       repositories.TxManagerInterface
	trayRepo        repositories.TrayRepositoryInterface
	itemRepo        repositories.TrayItemRepositoryInterface
	serviceFileRepo repositories.ServiceFileRepositoryInterface
	catalog         CatalogServiceInterface
	bus             Publisher
	rules           PricingRules
	logger          *zap.Logger
}

func NewTrayService(
	txManager repositories.TxManagerInterface,
	trayRepo repositories.TrayRepositoryInterface,
	itemRepo repositories.TrayItemRepositoryInterface,
	serviceFileRepo repositories.ServiceFileRepositoryInterface,
	catalog CatalogServiceInterface,
	bus Publisher,
	rules PricingRules,
	logger *zap.Logger,
) TrayServiceInterface {
	return &TrayService{
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

// ApplyLockToggle меняет флаг доставки. Включение одного флага снимает другой
// в той же записи, поэтому оба флага одновременно не бывают true.
func ApplyLockToggle(tray *entities.Tray, flag string, value bool) error {
	switch flag {
	case constants.LockOfficeDirect:
		tray.OfficeDirect = value
		if value {
			tray.CurierTrimis = false
		}
	case constants.LockCurierTrimis:
		tray.CurierTrimis = value
		if value {
			tray.OfficeDirect = false
		}
	default:
		return apperrors.NewValidationError(apperrors.CodeInvalidFlag,
			fmt.Sprintf("Неизвестный флаг доставки: %q", flag))
	}
	return nil
}

func (s *TrayService) CreateTray(ctx context.Context, serviceFileID uint64, payload dto.CreateTrayDTO) (*dto.TrayResponseDTO, error) {
	if !constants.IsTraySize(payload.Size) {
		return nil, apperrors.NewValidationError(apperrors.CodeInvalidItem, fmt.Sprintf("Недопустимый размер лотка: %q", payload.Size))
	}
	if _, err := s.serviceFileRepo.FindServiceFile(ctx, serviceFileID); err != nil {
		return nil, storageError(err, "Не удалось найти fișă")
	}

	var created *entities.Tray
	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		tray, err := createTrayInTx(ctx, tx, s.trayRepo, serviceFileID, payload)
		if err != nil {
			return err
		}
		created = tray
		return nil
	})
	if err != nil {
		err = storageError(err, "Не удалось создать лоток")
		reportFailure(ctx, s.bus, s.logger, "tray.create", err, map[string]interface{}{"service_file_id": serviceFileID})
		return nil, err
	}

	s.logger.Info("Лоток создан", zap.Uint64("tray_id", created.ID), zap.Uint64("service_file_id", serviceFileID))
	s.bus.Publish(ctx, events.TrayChangedEvent{Tray: *created, Action: "created"})
	res := toTrayDTO(*created)
	return &res, nil
}

// createTrayInTx - общая часть для создания лотка и переноса группы в новый лоток.
func createTrayInTx(ctx context.Context, tx pgx.Tx, trayRepo repositories.TrayRepositoryInterface, serviceFileID uint64, payload dto.CreateTrayDTO) (*entities.Tray, error) {
	taken, err := trayRepo.ExistsNumber(ctx, tx, serviceFileID, payload.Number, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apperrors.NewPolicyViolation(apperrors.CodeTrayNumberTaken,
			fmt.Sprintf("Лоток №%d уже есть в этой fișă", payload.Number))
	}

	tray, err := trayRepo.CreateTray(ctx, tx, entities.Tray{
		ServiceFileID: serviceFileID,
		Number:        payload.Number,
		Size:          payload.Size,
	})
	if errors.Is(err, apperrors.ErrConflict) {
		return nil, apperrors.NewPolicyViolation(apperrors.CodeTrayNumberTaken,
			fmt.Sprintf("Лоток №%d уже есть в этой fișă", payload.Number))
	}
	return tray, err
}

func (s *TrayService) EditTray(ctx context.Context, trayID uint64, payload dto.UpdateTrayDTO) (*dto.TrayResponseDTO, error) {
	var updated *entities.Tray
	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		tray, err := s.trayRepo.FindTray(ctx, tx, trayID)
		if err != nil {
			return err
		}
		if err := ensureEditable(ctx, tray); err != nil {
			return err
		}

		if payload.Number.Valid && payload.Number.Int != tray.Number {
			taken, err := s.trayRepo.ExistsNumber(ctx, tx, tray.ServiceFileID, payload.Number.Int, tray.ID)
			if err != nil {
				return err
			}
			if taken {
				return apperrors.NewPolicyViolation(apperrors.CodeTrayNumberTaken,
					fmt.Sprintf("Лоток №%d уже есть в этой fișă", payload.Number.Int))
			}
			tray.Number = payload.Number.Int
		}
		if payload.Size.Valid {
			if !constants.IsTraySize(payload.Size.String) {
				return apperrors.NewValidationError(apperrors.CodeInvalidItem,
					fmt.Sprintf("Недопустимый размер лотка: %q", payload.Size.String))
			}
			tray.Size = payload.Size.String
		}
		if payload.IsCash.Valid {
			tray.IsCash = payload.IsCash.Bool
		}
		if payload.IsCard.Valid {
			tray.IsCard = payload.IsCard.Bool
		}

		updated, err = s.trayRepo.UpdateTray(ctx, tx, *tray)
		if errors.Is(err, apperrors.ErrConflict) {
			return apperrors.NewPolicyViolation(apperrors.CodeTrayNumberTaken, "Номер лотка уже занят")
		}
		return err
	})
	if err != nil {
		err = storageError(err, "Не удалось изменить лоток")
		reportFailure(ctx, s.bus, s.logger, "tray.edit", err, map[string]interface{}{"tray_id": trayID})
		return nil, err
	}

	s.bus.Publish(ctx, events.TrayChangedEvent{Tray: *updated, Action: "updated"})
	res := toTrayDTO(*updated)
	return &res, nil
}

// DeleteTray удаляет только пустой лоток: позиции сначала переносят или удаляют.
func (s *TrayService) DeleteTray(ctx context.Context, trayID uint64) error {
	var deleted *entities.Tray
	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		tray, err := s.trayRepo.FindTray(ctx, tx, trayID)
		if err != nil {
			return err
		}
		if err := ensureEditable(ctx, tray); err != nil {
			return err
		}
		count, err := s.itemRepo.CountItems(ctx, tx, trayID)
		if err != nil {
			return err
		}
		if count > 0 {
			return apperrors.NewPolicyViolation(apperrors.CodeTrayNotEmpty,
				fmt.Sprintf("В лотке №%d ещё %d позиций: перенесите или удалите их", tray.Number, count))
		}
		deleted = tray
		return s.trayRepo.DeleteTray(ctx, tx, trayID)
	})
	if err != nil {
		err = storageError(err, "Не удалось удалить лоток")
		reportFailure(ctx, s.bus, s.logger, "tray.delete", err, map[string]interface{}{"tray_id": trayID})
		return err
	}

	s.logger.Info("Лоток удалён", zap.Uint64("tray_id", trayID))
	s.bus.Publish(ctx, events.TrayDeletedEvent{TrayID: trayID, ServiceFileID: deleted.ServiceFileID, At: time.Now()})
	return nil
}

func (s *TrayService) ToggleLock(ctx context.Context, trayID uint64, payload dto.ToggleLockDTO) (*dto.TrayResponseDTO, error) {
	var updated *entities.Tray
	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		tray, err := s.trayRepo.FindTray(ctx, tx, trayID)
		if err != nil {
			return err
		}
		// отправленный лоток разблокирует только приёмка или отдел
		if tray.Dispatched() && !payload.Value && !utils.GetViewFromCtx(ctx).BypassesTrayLock() {
			return apperrors.NewPolicyViolation(apperrors.CodeAlreadyDispatched,
				fmt.Sprintf("Лоток №%d уже отправлен в отделы", tray.Number))
		}
		if err := ApplyLockToggle(tray, payload.Flag, payload.Value); err != nil {
			return err
		}
		updated, err = s.trayRepo.UpdateTray(ctx, tx, *tray)
		return err
	})
	if err != nil {
		err = storageError(err, "Не удалось изменить флаг доставки")
		reportFailure(ctx, s.bus, s.logger, "tray.toggle_lock", err, map[string]interface{}{"tray_id": trayID, "flag": payload.Flag})
		return nil, err
	}

	s.logger.Info("Флаг доставки изменён",
		zap.Uint64("tray_id", trayID),
		zap.String("flag", payload.Flag),
		zap.Bool("value", payload.Value),
	)
	s.bus.Publish(ctx, events.TrayChangedEvent{Tray: *updated, Action: "lock"})
	res := toTrayDTO(*updated)
	return &res, nil
}

func (s *TrayService) GetTray(ctx context.Context, trayID uint64) (*dto.TrayDetailsDTO, error) {
	tray, err := s.trayRepo.FindTray(ctx, nil, trayID)
	if err != nil {
		return nil, storageError(err, "Не удалось загрузить лоток")
	}
	serviceFile, err := s.serviceFileRepo.FindServiceFile(ctx, tray.ServiceFileID)
	if err != nil {
		return nil, storageError(err, "Не удалось загрузить fișă")
	}
	items, err := s.itemRepo.ListItems(ctx, nil, trayID)
	if err != nil {
		return nil, storageError(err, "Не удалось загрузить позиции")
	}
	catalog, err := s.catalog.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	details := buildTrayDetails(*tray, items, serviceFile.SubscriptionType, catalog, s.rules)
	return &details, nil
}

func (s *TrayService) ListTrays(ctx context.Context, serviceFileID uint64) ([]dto.TrayDetailsDTO, error) {
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
	catalog, err := s.catalog.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	byTray := itemsByTray(items)
	res := make([]dto.TrayDetailsDTO, 0, len(trays))
	for _, tray := range trays {
		res = append(res, buildTrayDetails(tray, byTray[tray.ID], serviceFile.SubscriptionType, catalog, s.rules))
	}
	return res, nil
}

func trayIDs(trays []entities.Tray) []uint64 {
	ids := make([]uint64, 0, len(trays))
	for _, t := range trays {
		ids = append(ids, t.ID)
	}
	return ids
}

func itemsByTray(items []entities.TrayItem) map[uint64][]entities.TrayItem {
	out := make(map[uint64][]entities.TrayItem)
	for _, item := range items {
		out[item.TrayID] = append(out[item.TrayID], item)
	}
	return out
}
