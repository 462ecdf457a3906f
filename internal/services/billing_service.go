package services

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"repair-crm/internal/dto"
	"repair-crm/internal/entities"
	"repair-crm/internal/repositories"
	"repair-crm/pkg/utils"
)

type BillingServiceInterface interface {
	ServiceFileBilling(ctx context.Context, serviceFileID uint64) (*dto.BillingSheetDTO, error)
	LeadBilling(ctx context.Context, leadID uint64) (*dto.LeadBillingDTO, error)
}

type BillingService struct {
	trayRepo        repositories.TrayRepositoryInterface
	itemRepo        repositories.TrayItemRepositoryInterface
	serviceFileRepo repositories.ServiceFileRepositoryInterface
	catalog         CatalogServiceInterface
	rules           PricingRules
	logger          *zap.Logger
}

func NewBillingService(
	trayRepo repositories.TrayRepositoryInterface,
	itemRepo repositories.TrayItemRepositoryInterface,
	serviceFileRepo repositories.ServiceFileRepositoryInterface,
	catalog CatalogServiceInterface,
	rules PricingRules,
	logger *zap.Logger,
) BillingServiceInterface {
	return &BillingService{
		trayRepo:        trayRepo,
		itemRepo:        withLegacyNotes(itemRepo),
		serviceFileRepo: serviceFileRepo,
		catalog:         catalog,
		rules:           rules,
		logger:          logger,
	}
}

// ServiceFileBilling пересчитывает итоги по текущему состоянию позиций при каждом вызове.
func (s *BillingService) ServiceFileBilling(ctx context.Context, serviceFileID uint64) (*dto.BillingSheetDTO, error) {
	serviceFile, err := s.serviceFileRepo.FindServiceFile(ctx, serviceFileID)
	if err != nil {
		return nil, storageError(err, "Не удалось загрузить fișă")
	}
	catalog, err := s.catalog.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return s.sheet(ctx, *serviceFile, catalog)
}

func (s *BillingService) sheet(ctx context.Context, serviceFile entities.ServiceFile, catalog *Catalog) (*dto.BillingSheetDTO, error) {
	trays, err := s.trayRepo.ListByServiceFile(ctx, nil, serviceFile.ID)
	if err != nil {
		return nil, storageError(err, "Не удалось загрузить лотки")
	}
	items, err := s.itemRepo.ListByTrays(ctx, nil, trayIDs(trays))
	if err != nil {
		return nil, storageError(err, "Не удалось загрузить позиции")
	}
	byTray := itemsByTray(items)

	sheet := &dto.BillingSheetDTO{
		ServiceFileID:    serviceFile.ID,
		LeadID:           serviceFile.LeadID,
		SubscriptionType: string(serviceFile.SubscriptionType),
		Trays:            make([]dto.TrayBillingDTO, 0, len(trays)),
	}

	var all Totals
	for _, tray := range trays {
		trayItems := byTray[tray.ID]
		totals := ComputeTotals(trayItems, serviceFile.SubscriptionType, s.rules)
		all = all.Add(totals)
		// вес считается внутри лотка, fișă суммирует лотки
		sheet.ShippingWeight += ShippingWeight(trayItems, catalog.Instruments, catalog)

		billable := 0
		for _, item := range trayItems {
			if item.Kind.Billable() {
				billable++
			}
		}
		sheet.Trays = append(sheet.Trays, dto.TrayBillingDTO{
			TrayID:       tray.ID,
			Number:       tray.Number,
			Size:         tray.Size,
			Subtotal:     utils.RoundMoney(totals.Subtotal),
			Discount:     utils.RoundMoney(totals.TotalDiscount),
			Urgent:       utils.RoundMoney(totals.UrgentAmount),
			Subscription: utils.RoundMoney(totals.SubscriptionDiscount),
			Total:        utils.RoundMoney(totals.Total),
			IsCash:       tray.IsCash,
			IsCard:       tray.IsCard,
			ItemCount:    billable,
		})
	}

	sheet.Totals = toTotalsDTO(all)
	sheet.AllSheetsTotal = sheet.Totals.Total
	return sheet, nil
}

// LeadBilling собирает счета всех fișă лида. Fișă считаются параллельно, порядок сохраняется.
func (s *BillingService) LeadBilling(ctx context.Context, leadID uint64) (*dto.LeadBillingDTO, error) {
	files, err := s.serviceFileRepo.ListByLead(ctx, leadID)
	if err != nil {
		return nil, storageError(err, "Не удалось загрузить fișă лида")
	}
	catalog, err := s.catalog.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	sheets := make([]dto.BillingSheetDTO, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			sheet, err := s.sheet(gctx, file, catalog)
			if err != nil {
				return err
			}
			sheets[i] = *sheet
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Error("Не удалось собрать счёт лида", zap.Uint64("lead_id", leadID), zap.Error(err))
		return nil, err
	}

	var total float64
	for _, sheet := range sheets {
		total += sheet.AllSheetsTotal
	}
	return &dto.LeadBillingDTO{
		LeadID:       leadID,
		ServiceFiles: sheets,
		LeadTotal:    utils.RoundMoney(total),
	}, nil
}
