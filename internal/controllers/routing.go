package controllers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"repair-crm/internal/dto"
	"repair-crm/internal/services"
	apperrors "repair-crm/pkg/errors"
	"repair-crm/pkg/utils"
)

type RoutingController struct {
	routingService services.RoutingServiceInterface
	logger         *zap.Logger
}

func NewRoutingController(routingService services.RoutingServiceInterface, logger *zap.Logger) *RoutingController {
	return &RoutingController{routingService: routingService, logger: logger}
}

func (c *RoutingController) MoveInstrumentGroup(ctx echo.Context) error {
	var payload dto.MoveGroupDTO
	if err := ctx.Bind(&payload); err != nil {
		return utils.ErrorResponse(ctx, badBody(err), c.logger)
	}
	if err := ctx.Validate(&payload); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	res, err := c.routingService.MoveInstrumentGroup(ctx.Request().Context(), payload)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Инструмент успешно перенесён", http.StatusOK)
}

func (c *RoutingController) DispatchToDepartments(ctx echo.Context) error {
	serviceFileID, err := utils.ParseIDParam(ctx, "id")
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	res, err := c.routingService.DispatchToDepartments(ctx.Request().Context(), serviceFileID)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Лотки отправлены в отделы", http.StatusOK)
}

type stageAction func(ctx context.Context, payload dto.StageTransitionDTO) (*dto.StageTransitionResultDTO, error)

// ChangeStage - возврат из отдела: in-lucru, finalizare, astept-piese, in-asteptare.
func (c *RoutingController) ChangeStage(ctx echo.Context) error {
	actions := map[string]stageAction{
		"in-lucru":     c.routingService.MarkInLucru,
		"finalizare":   c.routingService.MarkFinalizare,
		"astept-piese": c.routingService.MarkAsteptPiese,
		"in-asteptare": c.routingService.MarkInAsteptare,
	}
	action, ok := actions[ctx.Param("action")]
	if !ok {
		return utils.ErrorResponse(ctx,
			apperrors.NewHttpError(http.StatusNotFound, "Неизвестное действие с этапом", nil, map[string]interface{}{"action": ctx.Param("action")}),
			c.logger,
		)
	}

	var payload dto.StageTransitionDTO
	if err := ctx.Bind(&payload); err != nil {
		return utils.ErrorResponse(ctx, badBody(err), c.logger)
	}
	if err := ctx.Validate(&payload); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	res, err := action(ctx.Request().Context(), payload)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Этап успешно изменён", http.StatusOK)
}
