package routes

import (
	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"repair-crm/internal/controllers"
	"repair-crm/internal/listeners"
	"repair-crm/internal/repositories"
	"repair-crm/internal/services"
	"repair-crm/pkg/config"
	"repair-crm/pkg/eventbus"
	"repair-crm/pkg/middleware"
)

type Dependencies struct {
	DB     *pgxpool.Pool
	Redis  *redis.Client
	Bus    *eventbus.Bus
	Config *config.Config
	Logger *zap.Logger
}

func InitRouter(e *echo.Echo, deps Dependencies) {
	logger := deps.Logger
	logger.Info("InitRouter: Начало создания маршрутов")

	// --- 0. ОБЩИЕ КОМПОНЕНТЫ ---
	actorMW := middleware.NewActorMiddleware(logger)
	api := e.Group("/api", actorMW.Handle)
	txManager := repositories.NewTxManager(deps.DB)
	rules := services.PricingRulesFromConfig(deps.Config.Pricing)

	// --- 1. РЕПОЗИТОРИИ ---
	trayRepo := repositories.NewTrayRepository(deps.DB, logger)
	itemRepo := repositories.NewTrayItemRepository(deps.DB, logger)
	serviceFileRepo := repositories.NewServiceFileRepository(deps.DB)
	catalogRepo := repositories.NewCatalogRepository(deps.DB)
	stageRepo := repositories.NewStageRepository(deps.DB)
	cacheRepo := repositories.NewRedisCacheRepository(deps.Redis)

	// --- 2. СЕРВИСЫ ---
	catalogService := services.NewCatalogService(catalogRepo, cacheRepo, deps.Config.Catalog.CacheTTL, logger)
	trayService := services.NewTrayService(txManager, trayRepo, itemRepo, serviceFileRepo, catalogService, deps.Bus, rules, logger)
	itemService := services.NewTrayItemService(txManager, trayRepo, itemRepo, serviceFileRepo, catalogService, deps.Bus, rules, logger)
	routingService := services.NewRoutingService(txManager, trayRepo, itemRepo, stageRepo, catalogService, deps.Bus, deps.Config.Routing.DispatchGate, logger)
	billingService := services.NewBillingService(trayRepo, itemRepo, serviceFileRepo, catalogService, rules, logger)
	boardService := services.NewTrayBoardService(trayRepo, itemRepo, serviceFileRepo, catalogService, rules, logger)

	// --- 3. СЛУШАТЕЛИ ---
	listeners.NewNotificationListener(logger).Register(deps.Bus)
	listeners.NewBoardListener(boardService, logger).Register(deps.Bus)

	// --- 4. РОУТЕРЫ ---
	runTrayRouter(api, controllers.NewTrayController(trayService, logger))
	runTrayItemRouter(api, controllers.NewTrayItemController(itemService, logger))
	runRoutingRouter(api, controllers.NewRoutingController(routingService, logger))
	runBillingRouter(api, controllers.NewBillingController(billingService, logger))
	runCatalogRouter(api, controllers.NewCatalogController(catalogService, logger))
	runBoardRouter(api, controllers.NewBoardController(boardService, logger))

	logger.Info("INIT_ROUTER: Создание маршрутов завершено")
}
