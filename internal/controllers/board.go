package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"repair-crm/internal/dto"
	"repair-crm/internal/services"
	"repair-crm/pkg/utils"
)

type BoardController struct {
	boardService services.TrayBoardServiceInterface
	logger       *zap.Logger
}

func NewBoardController(boardService services.TrayBoardServiceInterface, logger *zap.Logger) *BoardController {
	return &BoardController{boardService: boardService, logger: logger}
}

func (c *BoardController) Snapshot(ctx echo.Context) error {
	serviceFileID, err := utils.ParseIDParam(ctx, "id")
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	res, err := c.boardService.Snapshot(ctx.Request().Context(), serviceFileID)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Состояние лотков получено", http.StatusOK)
}

func (c *BoardController) ApplyEvents(ctx echo.Context) error {
	serviceFileID, err := utils.ParseIDParam(ctx, "id")
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	var payload dto.BoardEventsDTO
	if err := ctx.Bind(&payload); err != nil {
		return utils.ErrorResponse(ctx, badBody(err), c.logger)
	}
	if err := ctx.Validate(&payload); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	res, err := c.boardService.Apply(ctx.Request().Context(), serviceFileID, payload.Events)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "События применены", http.StatusOK)
}
