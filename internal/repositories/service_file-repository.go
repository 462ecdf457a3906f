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

var serviceFileColumns = []string{
	"id", "lead_id", "number", "stage", "details", "subscription_type", "created_at", "updated_at",
}

// ServiceFileRepositoryInterface - только чтение: fișă создаёт и удаляет внешний CRM.
type ServiceFileRepositoryInterface interface {
	FindServiceFile(ctx context.Context, id uint64) (*entities.ServiceFile, error)
	ListByLead(ctx context.Context, leadID uint64) ([]entities.ServiceFile, error)
}

type ServiceFileRepository struct {
	storage *pgxpool.Pool
}

func NewServiceFileRepository(storage *pgxpool.Pool) ServiceFileRepositoryInterface {
	return &ServiceFileRepository{storage: storage}
}

func scanServiceFile(row pgx.Row) (*entities.ServiceFile, error) {
	var sf entities.ServiceFile
	var subscription string
	err := row.Scan(&sf.ID, &sf.LeadID, &sf.Number, &sf.Stage, &sf.Details, &subscription, &sf.CreatedAt, &sf.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка сканирования service_file: %w", err)
	}
	sf.SubscriptionType = entities.SubscriptionType(subscription)
	return &sf, nil
}

func (r *ServiceFileRepository) FindServiceFile(ctx context.Context, id uint64) (*entities.ServiceFile, error) {
	query, args, err := psql.Select(serviceFileColumns...).From("service_files").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	return scanServiceFile(r.storage.QueryRow(ctx, query, args...))
}

func (r *ServiceFileRepository) ListByLead(ctx context.Context, leadID uint64) ([]entities.ServiceFile, error) {
	query, args, err := psql.Select(serviceFileColumns...).
		From("service_files").
		Where(sq.Eq{"lead_id": leadID}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	files := make([]entities.ServiceFile, 0)
	for rows.Next() {
		sf, err := scanServiceFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, *sf)
	}
	return files, rows.Err()
}
