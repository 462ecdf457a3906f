package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
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

type RoutingServiceInterface interface {
	MoveInstrumentGroup(ctx context.Context, payload dto.MoveGroupDTO) (*dto.MoveResultDTO, error)
	DispatchToDepartments(ctx context.Context, serviceFileID uint64) (*dto.DispatchResultDTO, error)
	MarkInLucru(ctx context.Context, payload dto.StageTransitionDTO) (*dto.StageTransitionResultDTO, error)
	MarkFinalizare(ctx context.Context, payload dto.StageTransitionDTO) (*dto.StageTransitionResultDTO, error)
	MarkAsteptPiese(ctx context.Context, payload dto.StageTransitionDTO) (*dto.StageTransitionResultDTO, error)
	MarkInAsteptare(ctx context.Context, payload dto.StageTransitionDTO) (*dto.StageTransitionResultDTO, error)
}

type RoutingService struct {
	txManager repositories.TxManagerInterface
	trayRepo  repositories.TrayRepositoryInterface
	itemRepo  repositories.TrayItemRepositoryInterface
	stageRepo repositories.StageRepositoryInterface
	catalog   CatalogServiceInterface
	bus       Publisher
	gate      constants.DispatchGate
	logger    *zap.Logger
}

func NewRoutingService(
	txManager repositories.TxManagerInterface,
	trayRepo repositories.TrayRepositoryInterface,
	itemRepo repositories.TrayItemRepositoryInterface,
	stageRepo repositories.StageRepositoryInterface,
	catalog CatalogServiceInterface,
	bus Publisher,
	gate constants.DispatchGate,
	logger *zap.Logger,
) RoutingServiceInterface {
	if gate == "" {
		gate = constants.DefaultDispatchGate
	}
	return &RoutingService{
		txManager: txManager,
		trayRepo:  trayRepo,
		itemRepo:  withLegacyNotes(itemRepo),
		stageRepo: stageRepo,
		catalog:   catalog,
		bus:       publisherOrNop(bus),
		gate:      gate,
		logger:    logger,
	}
}

// collectGroup - все позиции лотка, относящиеся к инструменту, в порядке списка.
func collectGroup(items []entities.TrayItem, instrumentID uint64, catalog ServiceCatalog) []entities.TrayItem {
	group := make([]entities.TrayItem, 0)
	for _, item := range items {
		if id, ok := ResolveInstrumentID(item, catalog); ok && id == instrumentID {
			group = append(group, item)
		}
	}
	return group
}

func itemIDs(items []entities.TrayItem) []uint64 {
	ids := make([]uint64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return ids
}

// -----------------------------------------------------------
// MOVE
// -----------------------------------------------------------

func (s *RoutingService) validateMove(payload dto.MoveGroupDTO) error {
	if payload.InstrumentID == 0 {
		return apperrors.NewValidationError(apperrors.CodeMissingInstrument, "Не указан инструмент для переноса")
	}
	hasTarget := payload.TargetTrayID != nil && *payload.TargetTrayID != 0
	hasNew := payload.NewTray != nil
	if hasTarget == hasNew {
		return apperrors.NewValidationError(apperrors.CodeMissingTarget, "Укажите либо существующий лоток, либо новый")
	}
	if hasTarget && *payload.TargetTrayID == payload.SourceTrayID {
		return apperrors.NewValidationError(apperrors.CodeSameTray, "Лоток назначения совпадает с исходным")
	}
	if hasNew {
		if payload.NewTray.Number < 1 {
			return apperrors.NewValidationError(apperrors.CodeInvalidItem, "Номер нового лотка должен быть не меньше 1")
		}
		if !constants.IsTraySize(payload.NewTray.Size) {
			return apperrors.NewValidationError(apperrors.CodeInvalidItem,
				fmt.Sprintf("Недопустимый размер лотка: %q", payload.NewTray.Size))
		}
	}
	return nil
}

// MoveInstrumentGroup переносит все позиции инструмента из лотка в другой лоток той же fișă.
// Создание нового лотка и перенос выполняются в одной транзакции.
func (s *RoutingService) MoveInstrumentGroup(ctx context.Context, payload dto.MoveGroupDTO) (*dto.MoveResultDTO, error) {
	fields := map[string]interface{}{"source_tray_id": payload.SourceTrayID, "instrument_id": payload.InstrumentID}
	res, err := s.moveInstrumentGroup(ctx, payload)
	if err != nil {
		reportFailure(ctx, s.bus, s.logger, "routing.move", err, fields)
		return nil, err
	}
	return res, nil
}

func (s *RoutingService) moveInstrumentGroup(ctx context.Context, payload dto.MoveGroupDTO) (*dto.MoveResultDTO, error) {
	if err := s.validateMove(payload); err != nil {
		return nil, err
	}

	source, err := s.trayRepo.FindTray(ctx, nil, payload.SourceTrayID)
	if err != nil {
		return nil, storageError(err, "Не удалось загрузить исходный лоток")
	}
	if err := ensureEditable(ctx, source); err != nil {
		return nil, err
	}

	var target *entities.Tray
	if payload.NewTray == nil {
		target, err = s.trayRepo.FindTray(ctx, nil, *payload.TargetTrayID)
		if err != nil {
			return nil, storageError(err, "Не удалось загрузить лоток назначения")
		}
		if target.ServiceFileID != source.ServiceFileID {
			return nil, apperrors.NewValidationError(apperrors.CodeForeignTray, "Лоток назначения принадлежит другой fișă")
		}
		if err := ensureEditable(ctx, target); err != nil {
			return nil, err
		}
	}

	catalog, err := s.catalog.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	items, err := s.itemRepo.ListItems(ctx, nil, source.ID)
	if err != nil {
		return nil, storageError(err, "Не удалось загрузить позиции лотка")
	}
	group := collectGroup(items, payload.InstrumentID, catalog)
	if len(group) == 0 {
		return nil, apperrors.NewResolutionError(apperrors.CodeEmptyGroup,
			fmt.Sprintf("В лотке №%d нет позиций инструмента %d", source.Number, payload.InstrumentID))
	}
	ids := itemIDs(group)

	// до начала записи операцию ещё можно отменить
	if err := ctx.Err(); err != nil {
		return nil, storageError(err, "Перенос группы отменён")
	}

	err = s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		if target == nil {
			created, err := createTrayInTx(ctx, tx, s.trayRepo, source.ServiceFileID, *payload.NewTray)
			if err != nil {
				return err
			}
			target = created
		}
		return s.itemRepo.BatchReassignItems(ctx, tx, ids, source.ID, repositories.ReassignTarget{TrayID: &target.ID})
	})
	if err != nil {
		return nil, storageError(err, "Не удалось перенести группу инструмента")
	}

	txID := uuid.NewString()
	s.logger.Info("Группа инструмента перенесена",
		zap.String("tx_id", txID),
		zap.Uint64("source_tray_id", source.ID),
		zap.Uint64("target_tray_id", target.ID),
		zap.Uint64("instrument_id", payload.InstrumentID),
		zap.Int("items", len(ids)),
	)
	s.bus.Publish(ctx, events.ItemsMovedEvent{
		TxID:          txID,
		ServiceFileID: source.ServiceFileID,
		SourceTrayID:  source.ID,
		TargetTrayID:  target.ID,
		InstrumentID:  payload.InstrumentID,
		ItemIDs:       ids,
	})

	return &dto.MoveResultDTO{
		TxID:         txID,
		SourceTrayID: source.ID,
		TargetTray:   toTrayDTO(*target),
		MovedItemIDs: ids,
	}, nil
}

// -----------------------------------------------------------
// DISPATCH
// -----------------------------------------------------------

type placement struct {
	trayID       uint64
	instrumentID uint64
	departmentID *uint64
	pipeline     entities.Pipeline
	stage        entities.Stage
	itemIDs      []uint64
}

func (s *RoutingService) DispatchToDepartments(ctx context.Context, serviceFileID uint64) (*dto.DispatchResultDTO, error) {
	res, err := s.dispatch(ctx, serviceFileID)
	if err != nil {
		reportFailure(ctx, s.bus, s.logger, "routing.dispatch", err, map[string]interface{}{"service_file_id": serviceFileID})
		return nil, err
	}
	return res, nil
}

func (s *RoutingService) dispatch(ctx context.Context, serviceFileID uint64) (*dto.DispatchResultDTO, error) {
	trays, err := s.trayRepo.ListByServiceFile(ctx, nil, serviceFileID)
	if err != nil {
		return nil, storageError(err, "Не удалось загрузить лотки")
	}
	items, err := s.itemRepo.ListByTrays(ctx, nil, trayIDs(trays))
	if err != nil {
		return nil, storageError(err, "Не удалось загрузить позиции")
	}
	byTray := itemsByTray(items)

	eligible := make([]entities.Tray, 0, len(trays))
	for _, tray := range trays {
		if s.gate.Allows(tray.OfficeDirect, tray.CurierTrimis) && len(byTray[tray.ID]) > 0 {
			eligible = append(eligible, tray)
		}
	}
	if len(eligible) == 0 {
		return nil, apperrors.NewPolicyViolation(apperrors.CodeNoDeliveryFlag,
			"Нет лотков с позициями и отметкой Office direct или Curier trimis")
	}

	inDepartments, err := s.itemRepo.CountInDepartments(ctx, nil, serviceFileID)
	if err != nil {
		return nil, storageError(err, "Не удалось проверить отправку")
	}
	if inDepartments > 0 {
		return nil, apperrors.NewPolicyViolation(apperrors.CodeAlreadyDispatched, "Fișă уже отправлена в отделы")
	}

	catalog, err := s.catalog.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	placements, err := s.resolvePlacements(ctx, eligible, byTray, catalog)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, storageError(err, "Отправка в отделы отменена")
	}

	dispatchedIDs := trayIDs(eligible)
	err = s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		for _, p := range placements {
			pipelineID, stageID := p.pipeline.ID, p.stage.ID
			target := repositories.ReassignTarget{
				DepartmentID: p.departmentID,
				PipelineID:   &pipelineID,
				StageID:      &stageID,
			}
			if err := s.itemRepo.BatchReassignItems(ctx, tx, p.itemIDs, p.trayID, target); err != nil {
				return err
			}
		}
		return s.trayRepo.MarkDispatched(ctx, tx, dispatchedIDs, time.Now())
	})
	if err != nil {
		return nil, storageError(err, "Не удалось отправить лотки в отделы")
	}

	txID := uuid.NewString()
	res := &dto.DispatchResultDTO{
		TxID:            txID,
		ServiceFileID:   serviceFileID,
		DispatchedTrays: dispatchedIDs,
		Placements:      make([]dto.PlacementDTO, 0, len(placements)),
	}
	itemCount := 0
	for _, p := range placements {
		itemCount += len(p.itemIDs)
		res.Placements = append(res.Placements, dto.PlacementDTO{
			TrayID:       p.trayID,
			InstrumentID: p.instrumentID,
			DepartmentID: p.departmentID,
			PipelineID:   p.pipeline.ID,
			StageID:      p.stage.ID,
			StageName:    p.stage.Name,
			ItemIDs:      p.itemIDs,
		})
	}

	s.logger.Info("Лотки отправлены в отделы",
		zap.String("tx_id", txID),
		zap.Uint64("service_file_id", serviceFileID),
		zap.Uint64s("trays", dispatchedIDs),
		zap.Int("items", itemCount),
	)
	s.bus.Publish(ctx, events.TrayDispatchedEvent{
		TxID:          txID,
		ServiceFileID: serviceFileID,
		TrayIDs:       dispatchedIDs,
		ItemCount:     itemCount,
	})
	return res, nil
}

// resolvePlacements определяет конвейер и начальный этап для каждой группы
// до начала записи: любая неразрешённая группа отменяет отправку целиком.
func (s *RoutingService) resolvePlacements(ctx context.Context, trays []entities.Tray, byTray map[uint64][]entities.TrayItem, catalog *Catalog) ([]placement, error) {
	stages := make(map[uint64]entities.Stage)
	placements := make([]placement, 0)

	for _, tray := range trays {
		groups, err := GroupByInstrumentStrict(byTray[tray.ID], catalog.Instruments, catalog)
		if err != nil {
			return nil, err
		}
		for _, group := range groups {
			pipeline, err := catalog.PipelineFor(group.Instrument.ID)
			if err != nil {
				return nil, err
			}
			stage, ok := stages[pipeline.ID]
			if !ok {
				found, err := s.stageRepo.DefaultStage(ctx, nil, pipeline.ID)
				if errors.Is(err, apperrors.ErrNotFound) {
					return nil, apperrors.NewResolutionError(apperrors.CodeStageMissing,
						fmt.Sprintf("У конвейера «%s» нет этапов", pipeline.Name))
				}
				if err != nil {
					return nil, storageError(err, "Не удалось загрузить этап конвейера")
				}
				stage = *found
				stages[pipeline.ID] = stage
			}
			placements = append(placements, placement{
				trayID:       tray.ID,
				instrumentID: group.Instrument.ID,
				departmentID: catalog.DepartmentFor(group.Instrument.ID, pipeline.ID),
				pipeline:     pipeline,
				stage:        stage,
				itemIDs:      group.ItemIDs(),
			})
		}
	}
	return placements, nil
}

// -----------------------------------------------------------
// STAGE TRANSITIONS
// -----------------------------------------------------------

func (s *RoutingService) MarkInLucru(ctx context.Context, payload dto.StageTransitionDTO) (*dto.StageTransitionResultDTO, error) {
	technicianID, err := utils.GetUserIDFromCtx(ctx)
	if err != nil {
		return nil, apperrors.NewValidationError(apperrors.CodeInvalidItem, "Не указан техник (X-User-ID)")
	}
	return s.transition(ctx, payload, constants.StageInLucru, &technicianID, nil)
}

func (s *RoutingService) MarkFinalizare(ctx context.Context, payload dto.StageTransitionDTO) (*dto.StageTransitionResultDTO, error) {
	return s.transition(ctx, payload, constants.StageFinalizata, nil, nil)
}

func (s *RoutingService) MarkAsteptPiese(ctx context.Context, payload dto.StageTransitionDTO) (*dto.StageTransitionResultDTO, error) {
	return s.transition(ctx, payload, constants.StageAsteptPiese, nil, constants.SupportsAsteptPiese)
}

func (s *RoutingService) MarkInAsteptare(ctx context.Context, payload dto.StageTransitionDTO) (*dto.StageTransitionResultDTO, error) {
	return s.transition(ctx, payload, constants.StageInAsteptare, nil, constants.SupportsInAsteptare)
}

func (s *RoutingService) transition(
	ctx context.Context,
	payload dto.StageTransitionDTO,
	stageName string,
	technicianID *uint64,
	supports func(kind string) bool,
) (*dto.StageTransitionResultDTO, error) {
	fields := map[string]interface{}{"tray_id": payload.TrayID, "instrument_id": payload.InstrumentID, "stage": stageName}
	res, err := s.applyTransition(ctx, payload, stageName, technicianID, supports)
	if err != nil {
		reportFailure(ctx, s.bus, s.logger, "routing.stage", err, fields)
		return nil, err
	}
	return res, nil
}

func (s *RoutingService) applyTransition(
	ctx context.Context,
	payload dto.StageTransitionDTO,
	stageName string,
	technicianID *uint64,
	supports func(kind string) bool,
) (*dto.StageTransitionResultDTO, error) {
	if payload.InstrumentID == 0 {
		return nil, apperrors.NewValidationError(apperrors.CodeMissingInstrument, "Не указан инструмент")
	}
	tray, err := s.trayRepo.FindTray(ctx, nil, payload.TrayID)
	if err != nil {
		return nil, storageError(err, "Не удалось загрузить лоток")
	}
	catalog, err := s.catalog.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	items, err := s.itemRepo.ListItems(ctx, nil, tray.ID)
	if err != nil {
		return nil, storageError(err, "Не удалось загрузить позиции лотка")
	}

	group := collectGroup(items, payload.InstrumentID, catalog)
	if len(group) == 0 {
		return nil, apperrors.NewResolutionError(apperrors.CodeEmptyGroup,
			fmt.Sprintf("В лотке №%d нет позиций инструмента %d", tray.Number, payload.InstrumentID))
	}
	pipelineID := group[0].PipelineID
	for _, item := range group {
		if !item.InDepartment() {
			return nil, apperrors.NewPolicyViolation(apperrors.CodeNotDispatched,
				fmt.Sprintf("Позиции лотка №%d ещё не отправлены в отдел", tray.Number))
		}
	}

	pipeline, ok := catalog.Pipelines[*pipelineID]
	if !ok {
		return nil, apperrors.NewResolutionError(apperrors.CodePipelineMissing,
			fmt.Sprintf("Конвейер %d не найден в каталоге", *pipelineID))
	}
	if supports != nil && !supports(pipeline.Kind) {
		return nil, apperrors.NewPolicyViolation(apperrors.CodeWrongPipelineKind,
			fmt.Sprintf("Этап «%s» недоступен для конвейера «%s»", stageName, pipeline.Name))
	}

	stage, err := s.stageRepo.FindStage(ctx, nil, pipeline.ID, stageName)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.NewResolutionError(apperrors.CodeStageMissing,
			fmt.Sprintf("В конвейере «%s» нет этапа «%s»", pipeline.Name, stageName))
	}
	if err != nil {
		return nil, storageError(err, "Не удалось загрузить этап")
	}

	ids := itemIDs(group)
	err = s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		stageID := stage.ID
		return s.itemRepo.BatchReassignItems(ctx, tx, ids, tray.ID, repositories.ReassignTarget{
			StageID:      &stageID,
			TechnicianID: technicianID,
		})
	})
	if err != nil {
		return nil, storageError(err, "Не удалось сменить этап")
	}

	txID := uuid.NewString()
	s.logger.Info("Этап группы изменён",
		zap.String("tx_id", txID),
		zap.Uint64("tray_id", tray.ID),
		zap.Uint64("instrument_id", payload.InstrumentID),
		zap.String("stage", stage.Name),
	)
	s.bus.Publish(ctx, events.StageChangedEvent{
		TxID:          txID,
		ServiceFileID: tray.ServiceFileID,
		TrayID:        tray.ID,
		InstrumentID:  payload.InstrumentID,
		StageName:     stage.Name,
		ItemIDs:       ids,
		TechnicianID:  technicianID,
	})

	return &dto.StageTransitionResultDTO{
		TxID:      txID,
		StageID:   stage.ID,
		StageName: stage.Name,
		ItemIDs:   ids,
	}, nil
}
