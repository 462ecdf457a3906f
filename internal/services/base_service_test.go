package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"repair-crm/internal/repositories"
	apperrors "repair-crm/pkg/errors"
)

func TestStorageError(t *testing.T) {
	assert.NoError(t, storageError(nil, "Не удалось"))

	err := storageError(fmt.Errorf("query: %w", context.DeadlineExceeded), "Не удалось загрузить лоток")
	requireCode(t, err, apperrors.KindPersistence, apperrors.CodeOperationCanceled)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	err = storageError(context.Canceled, "Не удалось загрузить лоток")
	requireCode(t, err, apperrors.KindPersistence, apperrors.CodeOperationCanceled)

	assert.ErrorIs(t, storageError(apperrors.ErrNotFound, "Не удалось"), apperrors.ErrNotFound)
	requireCode(t, storageError(repositories.ErrStaleItems, "Не удалось"), apperrors.KindPersistence, apperrors.CodeBatchWriteFailed)
	requireCode(t, storageError(errors.New("conn refused"), "Не удалось"), apperrors.KindPersistence, apperrors.CodeStorageUnavailable)

	policy := apperrors.NewPolicyViolation(apperrors.CodeTrayLocked, "Лоток заблокирован")
	assert.Same(t, policy, storageError(policy, "Не удалось"))
}
