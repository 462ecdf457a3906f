package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"repair-crm/internal/services"
	"repair-crm/pkg/utils"
)

type CatalogController struct {
	catalogService services.CatalogServiceInterface
	logger         *zap.Logger
}

func NewCatalogController(catalogService services.CatalogServiceInterface, logger *zap.Logger) *CatalogController {
	return &CatalogController{catalogService: catalogService, logger: logger}
}

func (c *CatalogController) GetCatalog(ctx echo.Context) error {
	catalog, err := c.catalogService.Snapshot(ctx.Request().Context())
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, catalog.DTO(), "Справочники успешно получены", http.StatusOK)
}

func (c *CatalogController) Refresh(ctx echo.Context) error {
	if err := c.catalogService.Refresh(ctx.Request().Context()); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, nil, "Кеш справочников сброшен", http.StatusOK)
}
