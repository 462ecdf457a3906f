package repositories

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"repair-crm/internal/entities"
	apperrors "repair-crm/pkg/errors"
)

// CatalogRepositoryInterface - справочники только для чтения.
type CatalogRepositoryInterface interface {
	ListInstruments(ctx context.Context) ([]entities.Instrument, error)
	ListServices(ctx context.Context) ([]entities.Service, error)
	ListParts(ctx context.Context) ([]entities.Part, error)
	ListDepartments(ctx context.Context) ([]entities.Department, error)
	ListPipelines(ctx context.Context) ([]entities.Pipeline, error)
}

// StageRepositoryInterface - поиск этапа по имени внутри конвейера.
type StageRepositoryInterface interface {
	FindStage(ctx context.Context, tx pgx.Tx, pipelineID uint64, name string) (*entities.Stage, error)
	DefaultStage(ctx context.Context, tx pgx.Tx, pipelineID uint64) (*entities.Stage, error)
}

type CatalogRepository struct {
	storage *pgxpool.Pool
}

func NewCatalogRepository(storage *pgxpool.Pool) CatalogRepositoryInterface {
	return &CatalogRepository{storage: storage}
}

func (r *CatalogRepository) ListInstruments(ctx context.Context) ([]entities.Instrument, error) {
	query, args, err := psql.Select("id", "name", "department_id", "weight", "pipeline", "tracks_serials", "default_urgent").
		From("instruments").OrderBy("id").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("instruments: %w", err)
	}
	defer rows.Close()

	list := make([]entities.Instrument, 0)
	for rows.Next() {
		var i entities.Instrument
		if err := rows.Scan(&i.ID, &i.Name, &i.DepartmentID, &i.Weight, &i.Pipeline, &i.TracksSerials, &i.DefaultUrgent); err != nil {
			return nil, err
		}
		list = append(list, i)
	}
	return list, rows.Err()
}

func (r *CatalogRepository) ListServices(ctx context.Context) ([]entities.Service, error) {
	rows, err := r.storage.Query(ctx, "SELECT id, name, price, instrument_id FROM services ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("services: %w", err)
	}
	defer rows.Close()

	list := make([]entities.Service, 0)
	for rows.Next() {
		var s entities.Service
		if err := rows.Scan(&s.ID, &s.Name, &s.Price, &s.InstrumentID); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

func (r *CatalogRepository) ListParts(ctx context.Context) ([]entities.Part, error) {
	rows, err := r.storage.Query(ctx, "SELECT id, name, price FROM parts ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("parts: %w", err)
	}
	defer rows.Close()

	list := make([]entities.Part, 0)
	for rows.Next() {
		var p entities.Part
		if err := rows.Scan(&p.ID, &p.Name, &p.Price); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

func (r *CatalogRepository) ListDepartments(ctx context.Context) ([]entities.Department, error) {
	rows, err := r.storage.Query(ctx, "SELECT id, name, pipeline_id FROM departments ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("departments: %w", err)
	}
	defer rows.Close()

	list := make([]entities.Department, 0)
	for rows.Next() {
		var d entities.Department
		if err := rows.Scan(&d.ID, &d.Name, &d.PipelineID); err != nil {
			return nil, err
		}
		list = append(list, d)
	}
	return list, rows.Err()
}

// ListPipelines возвращает конвейеры вместе с этапами, отсортированными по позиции.
func (r *CatalogRepository) ListPipelines(ctx context.Context) ([]entities.Pipeline, error) {
	query := `
		SELECT p.id, p.name, p.kind, s.id, s.name, s.position
		FROM pipelines p
		LEFT JOIN stages s ON s.pipeline_id = p.id
		ORDER BY p.id, s.position, s.id`
	rows, err := r.storage.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("pipelines: %w", err)
	}
	defer rows.Close()

	list := make([]entities.Pipeline, 0)
	index := make(map[uint64]int)
	for rows.Next() {
		var p entities.Pipeline
		var stageID *uint64
		var stageName *string
		var stagePosition *int
		if err := rows.Scan(&p.ID, &p.Name, &p.Kind, &stageID, &stageName, &stagePosition); err != nil {
			return nil, err
		}
		i, ok := index[p.ID]
		if !ok {
			i = len(list)
			index[p.ID] = i
			p.Stages = []entities.Stage{}
			list = append(list, p)
		}
		if stageID != nil {
			list[i].Stages = append(list[i].Stages, entities.Stage{
				ID: *stageID, PipelineID: p.ID, Name: *stageName, Position: *stagePosition,
			})
		}
	}
	return list, rows.Err()
}

type StageRepository struct {
	storage *pgxpool.Pool
}

func NewStageRepository(storage *pgxpool.Pool) StageRepositoryInterface {
	return &StageRepository{storage: storage}
}

func scanStage(row pgx.Row) (*entities.Stage, error) {
	var s entities.Stage
	err := row.Scan(&s.ID, &s.PipelineID, &s.Name, &s.Position)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка сканирования stage: %w", err)
	}
	return &s, nil
}

func (r *StageRepository) FindStage(ctx context.Context, tx pgx.Tx, pipelineID uint64, name string) (*entities.Stage, error) {
	query, args, err := psql.Select("id", "pipeline_id", "name", "position").
		From("stages").
		Where(sq.Eq{"pipeline_id": pipelineID}).
		Where("UPPER(name) = UPPER(?)", name).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, err
	}
	return scanStage(pick(r.storage, tx).QueryRow(ctx, query, args...))
}

// DefaultStage - начальный этап конвейера (минимальная позиция).
func (r *StageRepository) DefaultStage(ctx context.Context, tx pgx.Tx, pipelineID uint64) (*entities.Stage, error) {
	query, args, err := psql.Select("id", "pipeline_id", "name", "position").
		From("stages").
		Where(sq.Eq{"pipeline_id": pipelineID}).
		OrderBy("position", "id").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, err
	}
	return scanStage(pick(r.storage, tx).QueryRow(ctx, query, args...))
}
