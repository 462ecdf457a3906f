package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"repair-crm/internal/dto"
	"repair-crm/internal/entities"
	"repair-crm/internal/repositories"
	"repair-crm/pkg/constants"
	apperrors "repair-crm/pkg/errors"
)

type MockCache struct {
	mock.Mock
}

func (m *MockCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return m.Called(ctx, key, value, expiration).Error(0)
}

func (m *MockCache) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockCache) Del(ctx context.Context, keys ...string) error {
	return m.Called(ctx, keys).Error(0)
}

// stubCatalogRepo отдаёт справочники из testCatalogDTO.
type stubCatalogRepo struct {
	data dto.CatalogDTO
	err  error
}

func (r stubCatalogRepo) ListInstruments(context.Context) ([]entities.Instrument, error) {
	return r.data.Instruments, r.err
}

func (r stubCatalogRepo) ListServices(context.Context) ([]entities.Service, error) {
	return r.data.Services, r.err
}

func (r stubCatalogRepo) ListParts(context.Context) ([]entities.Part, error) {
	return r.data.Parts, r.err
}

func (r stubCatalogRepo) ListDepartments(context.Context) ([]entities.Department, error) {
	return r.data.Departments, r.err
}

func (r stubCatalogRepo) ListPipelines(context.Context) ([]entities.Pipeline, error) {
	return r.data.Pipelines, r.err
}

var _ repositories.CatalogRepositoryInterface = stubCatalogRepo{}

func TestNewCatalog_ResolvesSettings(t *testing.T) {
	catalog := testCatalog(t)

	clipper := catalog.Settings[instrumentClipper]
	assert.True(t, clipper.TracksSerials)
	assert.Equal(t, constants.PipelineKindRepairs, clipper.PipelineKind)

	scissors := catalog.Settings[instrumentScissors]
	assert.False(t, scissors.TracksSerials)
	assert.True(t, scissors.DefaultUrgent)
	assert.Equal(t, constants.PipelineKindSalon, scissors.PipelineKind)

	assert.Equal(t, pipelineSalon, catalog.Settings[instrumentPliers].PipelineID)
	assert.Zero(t, catalog.Settings[instrumentOrphan].PipelineID)
	assert.Len(t, catalog.DTO().InstrumentSettings, 5)
}

func TestNewCatalog_UnknownPipelineKind(t *testing.T) {
	data := testCatalogDTO()
	data.Pipelines = append(data.Pipelines, entities.Pipeline{ID: 9, Name: "Spalatorie", Kind: "laundry"})

	_, err := NewCatalog(data)
	assert.Error(t, err)
}

func TestCatalog_PipelineAndDepartmentFor(t *testing.T) {
	catalog := testCatalog(t)

	pipeline, err := catalog.PipelineFor(instrumentPliers)
	require.NoError(t, err)
	assert.Equal(t, pipelineSalon, pipeline.ID)
	assert.Equal(t, uint64(2), *catalog.DepartmentFor(instrumentPliers, pipeline.ID))

	_, err = catalog.PipelineFor(instrumentOrphan)
	requireCode(t, err, apperrors.KindResolution, apperrors.CodePipelineMissing)
	_, err = catalog.PipelineFor(999)
	requireCode(t, err, apperrors.KindResolution, apperrors.CodeInstrumentMissing)

	assert.Nil(t, catalog.DepartmentFor(instrumentOrphan, 77))
}

func TestCatalogService_CacheHit(t *testing.T) {
	payload, err := json.Marshal(testCatalogDTO())
	require.NoError(t, err)

	cache := new(MockCache)
	cache.On("Get", mock.Anything, constants.CacheKeyCatalog).Return(string(payload), nil)
	svc := NewCatalogService(stubCatalogRepo{err: errors.New("БД не должна читаться")}, cache, time.Minute, zap.NewNop())

	catalog, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, catalog.Instruments, 5)
	cache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCatalogService_CacheMissLoadsAndStores(t *testing.T) {
	cache := new(MockCache)
	cache.On("Get", mock.Anything, constants.CacheKeyCatalog).Return("", repositories.ErrCacheMiss)
	cache.On("Set", mock.Anything, constants.CacheKeyCatalog, mock.Anything, 5*time.Minute).Return(nil)
	svc := NewCatalogService(stubCatalogRepo{data: testCatalogDTO()}, cache, 5*time.Minute, zap.NewNop())

	catalog, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, catalog.Services, 5)
	cache.AssertExpectations(t)
}

func TestCatalogService_BrokenCacheFallsBackToDB(t *testing.T) {
	cache := new(MockCache)
	cache.On("Get", mock.Anything, constants.CacheKeyCatalog).Return("", errors.New("dial tcp: connection refused"))
	cache.On("Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("dial tcp: connection refused"))
	svc := NewCatalogService(stubCatalogRepo{data: testCatalogDTO()}, cache, time.Minute, zap.NewNop())

	catalog, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, catalog.Pipelines, 3)
}

func TestCatalogService_Errors(t *testing.T) {
	svc := NewCatalogService(stubCatalogRepo{err: errors.New("timeout")}, nil, time.Minute, zap.NewNop())
	_, err := svc.Snapshot(context.Background())
	requireCode(t, err, apperrors.KindPersistence, apperrors.CodeStorageUnavailable)

	data := testCatalogDTO()
	data.Pipelines[0].Kind = "laundry"
	svc = NewCatalogService(stubCatalogRepo{data: data}, nil, time.Minute, zap.NewNop())
	_, err = svc.Snapshot(context.Background())
	requireCode(t, err, apperrors.KindResolution, apperrors.CodeCatalogMissing)
}

func TestCatalogService_Refresh(t *testing.T) {
	cache := new(MockCache)
	cache.On("Del", mock.Anything, []string{constants.CacheKeyCatalog}).Return(nil).Once()
	cache.On("Del", mock.Anything, []string{constants.CacheKeyCatalog}).Return(errors.New("READONLY"))
	svc := NewCatalogService(stubCatalogRepo{}, cache, time.Minute, zap.NewNop())

	require.NoError(t, svc.Refresh(context.Background()))
	err := svc.Refresh(context.Background())
	requireCode(t, err, apperrors.KindPersistence, apperrors.CodeStorageUnavailable)
}
