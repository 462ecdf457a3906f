package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"repair-crm/internal/dto"
	"repair-crm/internal/services"
	apperrors "repair-crm/pkg/errors"
	"repair-crm/pkg/utils"
)

type TrayController struct {
	trayService services.TrayServiceInterface
	logger      *zap.Logger
}

func NewTrayController(trayService services.TrayServiceInterface, logger *zap.Logger) *TrayController {
	return &TrayController{trayService: trayService, logger: logger}
}

func badBody(err error) error {
	return apperrors.NewHttpError(http.StatusBadRequest, "Неверные данные в теле запроса", err, nil)
}

func (c *TrayController) CreateTray(ctx echo.Context) error {
	serviceFileID, err := utils.ParseIDParam(ctx, "id")
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	var payload dto.CreateTrayDTO
	if err := ctx.Bind(&payload); err != nil {
		c.logger.Warn("Ошибка привязки данных для создания лотка", zap.Error(err))
		return utils.ErrorResponse(ctx, badBody(err), c.logger)
	}
	if err := ctx.Validate(&payload); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	res, err := c.trayService.CreateTray(ctx.Request().Context(), serviceFileID, payload)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Лоток успешно создан", http.StatusCreated)
}

func (c *TrayController) ListTrays(ctx echo.Context) error {
	serviceFileID, err := utils.ParseIDParam(ctx, "id")
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	res, err := c.trayService.ListTrays(ctx.Request().Context(), serviceFileID)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Список лотков успешно получен", http.StatusOK)
}

func (c *TrayController) GetTray(ctx echo.Context) error {
	id, err := utils.ParseIDParam(ctx, "id")
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	res, err := c.trayService.GetTray(ctx.Request().Context(), id)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Лоток успешно найден", http.StatusOK)
}

func (c *TrayController) EditTray(ctx echo.Context) error {
	id, err := utils.ParseIDParam(ctx, "id")
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	var payload dto.UpdateTrayDTO
	if err := ctx.Bind(&payload); err != nil {
		return utils.ErrorResponse(ctx, badBody(err), c.logger)
	}
	if err := ctx.Validate(&payload); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	res, err := c.trayService.EditTray(ctx.Request().Context(), id, payload)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Лоток успешно обновлён", http.StatusOK)
}

func (c *TrayController) DeleteTray(ctx echo.Context) error {
	id, err := utils.ParseIDParam(ctx, "id")
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	if err := c.trayService.DeleteTray(ctx.Request().Context(), id); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, nil, "Лоток успешно удалён", http.StatusOK)
}

func (c *TrayController) ToggleLock(ctx echo.Context) error {
	id, err := utils.ParseIDParam(ctx, "id")
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	var payload dto.ToggleLockDTO
	if err := ctx.Bind(&payload); err != nil {
		return utils.ErrorResponse(ctx, badBody(err), c.logger)
	}
	if err := ctx.Validate(&payload); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	res, err := c.trayService.ToggleLock(ctx.Request().Context(), id, payload)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Флаг доставки изменён", http.StatusOK)
}
