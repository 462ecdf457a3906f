package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"repair-crm/internal/dto"
	"repair-crm/internal/entities"
	"repair-crm/internal/events"
	"repair-crm/internal/repositories"
	"repair-crm/pkg/eventbus"
	apperrors "repair-crm/pkg/errors"
	"repair-crm/pkg/utils"
)

// Publisher - то, что сервисам нужно от шины событий.
type Publisher interface {
	Publish(ctx context.Context, event eventbus.Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, eventbus.Event) {}

func publisherOrNop(p Publisher) Publisher {
	if p == nil {
		return nopPublisher{}
	}
	return p
}

// storageError переводит ошибки репозиториев в классы ошибок движка.
func storageError(err error, message string) error {
	if err == nil {
		return nil
	}
	var engineErr *apperrors.EngineError
	if errors.As(err, &engineErr) {
		return err
	}
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewPersistenceError(apperrors.CodeOperationCanceled, message+": операция прервана", err)
	case errors.Is(err, repositories.ErrStaleItems):
		return apperrors.NewPersistenceError(apperrors.CodeBatchWriteFailed, message+": данные изменились, повторите операцию", err)
	}
	return apperrors.NewPersistenceError(apperrors.CodeStorageUnavailable, message, err)
}

// reportFailure сообщает об отказе операции слушателям уведомлений.
func reportFailure(ctx context.Context, bus Publisher, logger *zap.Logger, operation string, err error, fields map[string]interface{}) {
	kind, _ := apperrors.KindOf(err)
	if kind == apperrors.KindPersistence {
		logger.Error("Операция не выполнена", zap.String("operation", operation), zap.Error(err), zap.Any("context", fields))
	} else {
		logger.Warn("Операция отклонена", zap.String("operation", operation), zap.Error(err), zap.Any("context", fields))
	}
	bus.Publish(ctx, events.OperationFailedEvent{
		Operation: operation,
		Kind:      string(kind),
		Code:      apperrors.CodeOf(err),
		Message:   err.Error(),
		Context:   fields,
	})
}

// ensureEditable - заблокированный лоток правят только приёмка и отделы.
func ensureEditable(ctx context.Context, tray *entities.Tray) error {
	if tray.Locked() && !utils.GetViewFromCtx(ctx).BypassesTrayLock() {
		return apperrors.NewPolicyViolation(apperrors.CodeTrayLocked,
			fmt.Sprintf("Лоток №%d заблокирован для изменений", tray.Number))
	}
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func toTrayDTO(t entities.Tray) dto.TrayResponseDTO {
	return dto.TrayResponseDTO{
		ID:            t.ID,
		ServiceFileID: t.ServiceFileID,
		Number:        t.Number,
		Size:          t.Size,
		OfficeDirect:  t.OfficeDirect,
		CurierTrimis:  t.CurierTrimis,
		IsCash:        t.IsCash,
		IsCard:        t.IsCard,
		Locked:        t.Locked(),
		DispatchedAt:  t.DispatchedAt,
		CreatedAt:     formatTime(t.CreatedAt),
		UpdatedAt:     formatTime(t.UpdatedAt),
	}
}

func toBrandGroupDTOs(groups []entities.BrandSerialGroup) []dto.BrandSerialGroupDTO {
	out := make([]dto.BrandSerialGroupDTO, 0, len(groups))
	for _, g := range groups {
		serials := make([]dto.SerialNumberDTO, 0, len(g.Serials))
		for _, s := range g.Serials {
			serials = append(serials, dto.SerialNumberDTO{Serial: s.Serial, Garantie: s.Garantie})
		}
		out = append(out, dto.BrandSerialGroupDTO{Brand: g.Brand, Serials: serials, Qty: g.Qty})
	}
	return out
}

func fromBrandGroupDTOs(groups []dto.BrandSerialGroupDTO) []entities.BrandSerialGroup {
	out := make([]entities.BrandSerialGroup, 0, len(groups))
	for _, g := range groups {
		serials := make([]entities.SerialNumber, 0, len(g.Serials))
		for _, s := range g.Serials {
			serials = append(serials, entities.SerialNumber{Serial: s.Serial, Garantie: s.Garantie})
		}
		out = append(out, entities.BrandSerialGroup{Brand: g.Brand, Serials: serials, Qty: g.Qty})
	}
	return out
}

func toItemDTO(item entities.TrayItem, subscription entities.SubscriptionType, rules PricingRules) dto.TrayItemDTO {
	return dto.TrayItemDTO{
		ID:           item.ID,
		TrayID:       item.TrayID,
		ItemType:     item.Kind.Column(),
		Qty:          item.Qty,
		Price:        item.Price,
		DiscountPct:  item.DiscountPct,
		Urgent:       item.Urgent,
		InstrumentID: item.InstrumentID,
		ServiceID:    item.ServiceID,
		PartID:       item.PartID,
		TechnicianID: item.TechnicianID,
		NameSnapshot: item.NameSnapshot,
		Brand:        item.Brand,
		SerialNumber: item.SerialNumber,
		Garantie:     item.Garantie,
		BrandGroups:  toBrandGroupDTOs(item.BrandGroups),
		DepartmentID: item.DepartmentID,
		PipelineID:   item.PipelineID,
		StageID:      item.StageID,
		Total:        utils.RoundMoney(ItemTotal(item, subscription, rules)),
	}
}

func toTotalsDTO(t Totals) dto.TotalsDTO {
	return dto.TotalsDTO{
		Subtotal:             utils.RoundMoney(t.Subtotal),
		TotalDiscount:        utils.RoundMoney(t.TotalDiscount),
		UrgentAmount:         utils.RoundMoney(t.UrgentAmount),
		SubscriptionDiscount: utils.RoundMoney(t.SubscriptionDiscount),
		Total:                utils.RoundMoney(t.Total),
	}
}

// buildTrayDetails собирает представление лотка: строки, группы по инструментам и итоги.
func buildTrayDetails(tray entities.Tray, items []entities.TrayItem, subscription entities.SubscriptionType, catalog *Catalog, rules PricingRules) dto.TrayDetailsDTO {
	details := dto.TrayDetailsDTO{
		Tray:             toTrayDTO(tray),
		Items:            make([]dto.TrayItemDTO, 0, len(items)),
		Rows:             make([]dto.ItemRowDTO, 0),
		InstrumentGroups: make([]dto.InstrumentGroupDTO, 0),
		Totals:           toTotalsDTO(ComputeTotals(items, subscription, rules)),
	}
	for _, item := range items {
		details.Items = append(details.Items, toItemDTO(item, subscription, rules))
	}
	for _, row := range GroupRows(items) {
		details.Rows = append(details.Rows, dto.ItemRowDTO{
			Key:         row.Key,
			ItemIDs:     row.ItemIDs,
			Name:        row.Item.NameSnapshot,
			ItemType:    row.Item.Kind.Column(),
			Qty:         row.Qty,
			BrandGroups: toBrandGroupDTOs(row.BrandGroups),
		})
	}

	var instruments map[uint64]entities.Instrument
	var serviceCatalog ServiceCatalog
	if catalog != nil {
		instruments = catalog.Instruments
		serviceCatalog = catalog
	}
	for _, group := range GroupByInstrument(items, instruments, serviceCatalog) {
		details.InstrumentGroups = append(details.InstrumentGroups, dto.InstrumentGroupDTO{
			InstrumentID:   group.Instrument.ID,
			InstrumentName: group.Instrument.Name,
			FirstItemID:    group.Items[0].ID,
			ItemIDs:        group.ItemIDs(),
		})
	}
	details.ShippingWeight = ShippingWeight(items, instruments, serviceCatalog)
	return details
}
