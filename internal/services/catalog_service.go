package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"repair-crm/internal/dto"
	"repair-crm/internal/repositories"
	"repair-crm/pkg/constants"
	apperrors "repair-crm/pkg/errors"
)

type CatalogServiceInterface interface {
	Snapshot(ctx context.Context) (*Catalog, error)
	Refresh(ctx context.Context) error
}

type CatalogService struct {
	repo   repositories.CatalogRepositoryInterface
	cache  repositories.CacheRepositoryInterface
	ttl    time.Duration
	logger *zap.Logger
}

func NewCatalogService(
	repo repositories.CatalogRepositoryInterface,
	cache repositories.CacheRepositoryInterface,
	ttl time.Duration,
	logger *zap.Logger,
) CatalogServiceInterface {
	return &CatalogService{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

// Snapshot берёт справочники из Redis, при промахе читает БД параллельно и кладёт в кеш.
// Недоступный кеш не ломает операцию.
func (s *CatalogService) Snapshot(ctx context.Context) (*Catalog, error) {
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, constants.CacheKeyCatalog)
		switch {
		case err == nil:
			var data dto.CatalogDTO
			if jsonErr := json.Unmarshal([]byte(raw), &data); jsonErr == nil {
				if catalog, buildErr := NewCatalog(data); buildErr == nil {
					return catalog, nil
				}
			}
			s.logger.Warn("Кеш каталога повреждён, читаем из БД")
		case !errors.Is(err, repositories.ErrCacheMiss):
			s.logger.Warn("Кеш каталога недоступен", zap.Error(err))
		}
	}

	data, err := s.load(ctx)
	if err != nil {
		return nil, apperrors.NewPersistenceError(apperrors.CodeStorageUnavailable, "Не удалось загрузить справочники", err)
	}

	catalog, err := NewCatalog(data)
	if err != nil {
		return nil, apperrors.NewResolutionError(apperrors.CodeCatalogMissing, err.Error())
	}

	if s.cache != nil {
		if payload, err := json.Marshal(catalog.DTO()); err == nil {
			if err := s.cache.Set(ctx, constants.CacheKeyCatalog, payload, s.ttl); err != nil {
				s.logger.Warn("Не удалось сохранить каталог в кеш", zap.Error(err))
			}
		}
	}
	return catalog, nil
}

func (s *CatalogService) load(ctx context.Context) (dto.CatalogDTO, error) {
	var data dto.CatalogDTO
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		data.Instruments, err = s.repo.ListInstruments(gctx)
		return err
	})
	g.Go(func() (err error) {
		data.Services, err = s.repo.ListServices(gctx)
		return err
	})
	g.Go(func() (err error) {
		data.Parts, err = s.repo.ListParts(gctx)
		return err
	})
	g.Go(func() (err error) {
		data.Departments, err = s.repo.ListDepartments(gctx)
		return err
	})
	g.Go(func() (err error) {
		data.Pipelines, err = s.repo.ListPipelines(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return dto.CatalogDTO{}, err
	}
	return data, nil
}

func (s *CatalogService) Refresh(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Del(ctx, constants.CacheKeyCatalog); err != nil {
		return apperrors.NewPersistenceError(apperrors.CodeStorageUnavailable, "Не удалось сбросить кеш каталога", err)
	}
	s.logger.Info("Кеш каталога сброшен")
	return nil
}
