package utils

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	apperrors "repair-crm/pkg/errors"
)

type HTTPResponse struct {
	Status  bool        `json:"status"`
	Body    interface{} `json:"body,omitempty"`
	Message string      `json:"message"`
	Code    string      `json:"code,omitempty"`
}

func SuccessResponse(ctx echo.Context, body interface{}, message string, code int) error {
	return ctx.JSON(code, &HTTPResponse{Status: true, Body: body, Message: message})
}

// HTTPStatusForKind - соответствие класса ошибки движка HTTP-коду.
func HTTPStatusForKind(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindValidation:
		return http.StatusBadRequest
	case apperrors.KindResolution:
		return http.StatusUnprocessableEntity
	case apperrors.KindPolicy:
		return http.StatusConflict
	case apperrors.KindPersistence:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func ErrorResponse(c echo.Context, err error, logger *zap.Logger) error {
	var engineErr *apperrors.EngineError
	if errors.As(err, &engineErr) {
		status := HTTPStatusForKind(engineErr.Kind)
		if engineErr.Kind == apperrors.KindPersistence {
			logger.Error("Ошибка хранилища",
				zap.String("code", engineErr.Code),
				zap.String("message", engineErr.Message),
				zap.Error(engineErr.Err),
			)
		}
		return c.JSON(status, &HTTPResponse{Status: false, Message: engineErr.Message, Code: engineErr.Code})
	}

	var httpErr *apperrors.HttpError
	if errors.As(err, &httpErr) {
		if httpErr.Err != nil {
			logger.Error("HTTP Error",
				zap.Int("code", httpErr.Code),
				zap.String("message", httpErr.Message),
				zap.Error(httpErr.Err),
				zap.Any("context", httpErr.Context),
			)
		}
		return c.JSON(httpErr.Code, &HTTPResponse{Status: false, Message: httpErr.Message, Body: httpErr.Details})
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var msgs []string
		for _, e := range validationErrors {
			msgs = append(msgs, fmt.Sprintf("Поле '%s' не прошло проверку '%s'", e.Field(), e.Tag()))
		}
		return c.JSON(http.StatusBadRequest, &HTTPResponse{Status: false, Message: "Ошибка валидации: " + strings.Join(msgs, "; ")})
	}

	if errors.Is(err, apperrors.ErrNotFound) {
		return c.JSON(http.StatusNotFound, &HTTPResponse{Status: false, Message: "Запись не найдена"})
	}
	if errors.Is(err, apperrors.ErrBadRequest) {
		return c.JSON(http.StatusBadRequest, &HTTPResponse{Status: false, Message: err.Error()})
	}

	logger.Error("Unexpected Error", zap.Error(err))
	return c.JSON(http.StatusInternalServerError, &HTTPResponse{Status: false, Message: "Внутренняя ошибка сервера"})
}

// ParseIDParam читает положительный числовой id из параметра маршрута.
func ParseIDParam(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperrors.NewHttpError(http.StatusBadRequest, "Неверный ID в URL", err, map[string]interface{}{"param": name})
	}
	return id, nil
}

// RoundMoney округляет сумму до копеек для вывода.
func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}
