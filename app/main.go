// Файл: main.go

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"repair-crm/internal/routes"
	"repair-crm/pkg/config"
	"repair-crm/pkg/database/postgresql"
	apperrors "repair-crm/pkg/errors"
	"repair-crm/pkg/eventbus"
	applogger "repair-crm/pkg/logger"
	appmw "repair-crm/pkg/middleware"
	"repair-crm/pkg/utils"
	"repair-crm/pkg/validation"
)

func main() {
	// 1. Конфиг и логгер
	cfg := config.New()
	logger := applogger.NewLogger(cfg.Log.Level)
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Неверная конфигурация", zap.Error(err))
	}
	logger.Info("Ставки расчёта",
		zap.Float64("urgent_rate", cfg.Pricing.UrgentRate),
		zap.Float64("service_subscription_rate", cfg.Pricing.ServiceSubscriptionRate),
		zap.Float64("part_subscription_rate", cfg.Pricing.PartSubscriptionRate),
		zap.String("dispatch_gate", string(cfg.Routing.DispatchGate)),
	)
	if cfg.Pricing.UrgentRate != 0.30 {
		logger.Warn("URGENT_RATE отличается от значения по умолчанию 0.30", zap.Float64("urgent_rate", cfg.Pricing.UrgentRate))
	}

	// 2. Echo и middleware
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		DisableStackAll: true,
		StackSize:       1 << 10,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			logger.Error("!!! ОБНАРУЖЕНА ПАНИКА (PANIC) !!!",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Error(err),
				zap.String("stack", string(stack)),
			)
			if !c.Response().Committed {
				httpErr := apperrors.NewHttpError(http.StatusInternalServerError, "Внутренняя ошибка сервера", err, nil)
				utils.ErrorResponse(c, httpErr, logger)
			}
			return err
		},
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  cfg.Server.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, appmw.HeaderUserID, appmw.HeaderViewContext},
		ExposeHeaders: []string{"Content-Disposition", appmw.HeaderRequestID},
	}))
	e.Use(appmw.InjectLogger(logger))
	e.Use(appmw.RequestLogger(logger))
	e.Validator = validation.New()

	// 3. Базы данных
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	dbConn, err := postgresql.ConnectDB(ctx, cfg.Postgres.DSN, logger)
	if err != nil {
		cancel()
		logger.Fatal("Не удалось подключиться к PostgreSQL", zap.Error(err))
	}
	defer dbConn.Close()

	if cfg.Postgres.RunMigrations {
		if err := postgresql.Migrate(ctx, dbConn, logger); err != nil {
			cancel()
			logger.Fatal("Ошибка применения миграций", zap.Error(err))
		}
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	// Без Redis справочники читаются из БД, поэтому только предупреждение.
	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		logger.Warn("Redis недоступен, кеш справочников отключён до восстановления", zap.Error(err), zap.String("address", cfg.Redis.Address))
	}
	cancel()

	// 4. Шина событий и роуты
	bus := eventbus.New(logger)
	routes.InitRouter(e, routes.Dependencies{
		DB:     dbConn,
		Redis:  redisClient,
		Bus:    bus,
		Config: cfg,
		Logger: logger,
	})

	// 5. Запуск сервера
	go func() {
		logger.Info("🚀 Сервер запущен", zap.String("port", cfg.Server.Port))
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Ошибка запуска сервера", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Ошибка остановки сервера", zap.Error(err))
	}
	bus.Wait()
	logger.Info("Сервер остановлен")
}
