package controllers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"repair-crm/internal/dto"
	"repair-crm/internal/services"
	"repair-crm/pkg/utils"
)

var billingHeaders = []interface{}{
	"Лоток", "Размер", "Сумма", "Скидка", "Срочность", "Абонемент", "Итого", "Наличные", "Карта", "Позиций",
}

type BillingController struct {
	billingService services.BillingServiceInterface
	logger         *zap.Logger
}

func NewBillingController(billingService services.BillingServiceInterface, logger *zap.Logger) *BillingController {
	return &BillingController{billingService: billingService, logger: logger}
}

func (c *BillingController) ServiceFileBilling(ctx echo.Context) error {
	serviceFileID, err := utils.ParseIDParam(ctx, "id")
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	res, err := c.billingService.ServiceFileBilling(ctx.Request().Context(), serviceFileID)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	if ctx.QueryParam("format") == "xlsx" {
		return c.respondWithXLSX(ctx, res)
	}
	return utils.SuccessResponse(ctx, res, "Счёт fișă успешно сформирован", http.StatusOK)
}

func (c *BillingController) LeadBilling(ctx echo.Context) error {
	leadID, err := utils.ParseIDParam(ctx, "id")
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	res, err := c.billingService.LeadBilling(ctx.Request().Context(), leadID)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Счёт лида успешно сформирован", http.StatusOK)
}

func billingRow(tray dto.TrayBillingDTO) []interface{} {
	return []interface{}{
		tray.Number, tray.Size, tray.Subtotal, tray.Discount, tray.Urgent,
		tray.Subscription, tray.Total, tray.IsCash, tray.IsCard, tray.ItemCount,
	}
}

func (c *BillingController) respondWithXLSX(ctx echo.Context, sheetData *dto.BillingSheetDTO) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Счёт"
	f.SetSheetName("Sheet1", sheet)
	f.SetSheetRow(sheet, "A1", &billingHeaders)
	style, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	f.SetCellStyle(sheet, "A1", "J1", style)

	for i, tray := range sheetData.Trays {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := billingRow(tray)
		f.SetSheetRow(sheet, cell, &row)
	}

	totalRow := len(sheetData.Trays) + 3
	totalCell, _ := excelize.CoordinatesToCellName(1, totalRow)
	summary := []interface{}{
		"Всего", "", sheetData.Totals.Subtotal, sheetData.Totals.TotalDiscount, sheetData.Totals.UrgentAmount,
		sheetData.Totals.SubscriptionDiscount, sheetData.AllSheetsTotal,
	}
	f.SetSheetRow(sheet, totalCell, &summary)
	f.SetColWidth(sheet, "A", "J", 14)

	fileName := fmt.Sprintf("fisa_%d_%s.xlsx", sheetData.ServiceFileID, time.Now().Format("2006-01-02"))
	ctx.Response().Header().Set(echo.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	ctx.Response().Header().Set("Content-Disposition", "attachment; filename="+fileName)
	ctx.Response().WriteHeader(http.StatusOK)
	return f.Write(ctx.Response().Writer)
}
