// pkg/utils/ctxutils.go

package utils

import (
	"context"

	"repair-crm/pkg/constants"
	"repair-crm/pkg/contextkeys"
	apperrors "repair-crm/pkg/errors"
)

func GetUserIDFromCtx(ctx context.Context) (uint64, error) {
	userID, ok := ctx.Value(contextkeys.UserIDKey).(uint64)
	if !ok || userID == 0 {
		return 0, apperrors.ErrUserIDNotFoundInContext
	}
	return userID, nil
}

// GetViewFromCtx возвращает экран запроса; без заголовка это обычный экран оферты.
func GetViewFromCtx(ctx context.Context) constants.ViewContext {
	view, ok := ctx.Value(contextkeys.ViewContextKey).(constants.ViewContext)
	if !ok || view == "" {
		return constants.ViewQuote
	}
	return view
}

func WithView(ctx context.Context, view constants.ViewContext) context.Context {
	return context.WithValue(ctx, contextkeys.ViewContextKey, view)
}

func WithUserID(ctx context.Context, userID uint64) context.Context {
	return context.WithValue(ctx, contextkeys.UserIDKey, userID)
}

func GetRequestIDFromCtx(ctx context.Context) string {
	requestID, _ := ctx.Value(contextkeys.RequestIDKey).(string)
	return requestID
}
