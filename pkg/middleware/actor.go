package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"repair-crm/pkg/constants"
	"repair-crm/pkg/contextkeys"
	apperrors "repair-crm/pkg/errors"
	"repair-crm/pkg/utils"
)

const (
	HeaderUserID      = "X-User-ID"
	HeaderViewContext = "X-View-Context"
	HeaderRequestID   = "X-Request-ID"
)

// ActorMiddleware переносит данные, которые проставил шлюз (пользователь, экран),
// в контекст запроса. Аутентификация выполняется выше по цепочке.
type ActorMiddleware struct {
	logger *zap.Logger
}

func NewActorMiddleware(logger *zap.Logger) *ActorMiddleware {
	return &ActorMiddleware{logger: logger}
}

func (m *ActorMiddleware) Handle(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		if raw := strings.TrimSpace(c.Request().Header.Get(HeaderUserID)); raw != "" {
			userID, err := strconv.ParseUint(raw, 10, 64)
			if err != nil || userID == 0 {
				m.logger.Warn("ActorMiddleware: неверный X-User-ID", zap.String("value", raw))
				return utils.ErrorResponse(c, apperrors.NewHttpError(http.StatusBadRequest, "Неверный заголовок X-User-ID", apperrors.ErrInvalidUserID, nil), m.logger)
			}
			ctx = context.WithValue(ctx, contextkeys.UserIDKey, userID)
		}

		view := constants.ViewContext(strings.ToLower(strings.TrimSpace(c.Request().Header.Get(HeaderViewContext))))
		if view == "" {
			view = constants.ViewQuote
		}
		ctx = context.WithValue(ctx, contextkeys.ViewContextKey, view)

		requestID := c.Request().Header.Get(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx = context.WithValue(ctx, contextkeys.RequestIDKey, requestID)
		c.Response().Header().Set(HeaderRequestID, requestID)

		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}
