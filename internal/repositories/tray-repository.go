package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"repair-crm/internal/entities"
	apperrors "repair-crm/pkg/errors"
)

const trayTable = "trays"

var trayColumns = []string{
	"t.id", "t.service_file_id", "t.number", "t.size", "t.office_direct", "t.curier_trimis",
	"t.is_cash", "t.is_card", "t.dispatched_at", "t.created_at", "t.updated_at",
}

type TrayRepositoryInterface interface {
	FindTray(ctx context.Context, tx pgx.Tx, id uint64) (*entities.Tray, error)
	ListByServiceFile(ctx context.Context, tx pgx.Tx, serviceFileID uint64) ([]entities.Tray, error)
	CreateTray(ctx context.Context, tx pgx.Tx, tray entities.Tray) (*entities.Tray, error)
	UpdateTray(ctx context.Context, tx pgx.Tx, tray entities.Tray) (*entities.Tray, error)
	DeleteTray(ctx context.Context, tx pgx.Tx, id uint64) error
	ExistsNumber(ctx context.Context, tx pgx.Tx, serviceFileID uint64, number int, excludeID uint64) (bool, error)
	MarkDispatched(ctx context.Context, tx pgx.Tx, trayIDs []uint64, at time.Time) error
}

type TrayRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewTrayRepository(storage *pgxpool.Pool, logger *zap.Logger) TrayRepositoryInterface {
	return &TrayRepository{storage: storage, logger: logger}
}

func scanTray(row pgx.Row) (*entities.Tray, error) {
	var t entities.Tray
	err := row.Scan(
		&t.ID, &t.ServiceFileID, &t.Number, &t.Size, &t.OfficeDirect, &t.CurierTrimis,
		&t.IsCash, &t.IsCard, &t.DispatchedAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка сканирования tray: %w", err)
	}
	return &t, nil
}

func (r *TrayRepository) FindTray(ctx context.Context, tx pgx.Tx, id uint64) (*entities.Tray, error) {
	query, args, err := psql.Select(trayColumns...).From(trayTable + " t").Where(sq.Eq{"t.id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	return scanTray(pick(r.storage, tx).QueryRow(ctx, query, args...))
}

func (r *TrayRepository) ListByServiceFile(ctx context.Context, tx pgx.Tx, serviceFileID uint64) ([]entities.Tray, error) {
	query, args, err := psql.Select(trayColumns...).
		From(trayTable + " t").
		Where(sq.Eq{"t.service_file_id": serviceFileID}).
		OrderBy("t.number", "t.id").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := pick(r.storage, tx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	trays := make([]entities.Tray, 0)
	for rows.Next() {
		tray, err := scanTray(rows)
		if err != nil {
			return nil, err
		}
		trays = append(trays, *tray)
	}
	return trays, rows.Err()
}

func (r *TrayRepository) CreateTray(ctx context.Context, tx pgx.Tx, tray entities.Tray) (*entities.Tray, error) {
	query, args, err := psql.Insert(trayTable).
		Columns("service_file_id", "number", "size", "office_direct", "curier_trimis", "is_cash", "is_card").
		Values(tray.ServiceFileID, tray.Number, tray.Size, tray.OfficeDirect, tray.CurierTrimis, tray.IsCash, tray.IsCard).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return nil, err
	}

	var id uint64
	if err := pick(r.storage, tx).QueryRow(ctx, query, args...).Scan(&id); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, apperrors.ErrConflict
		}
		return nil, fmt.Errorf("не удалось создать лоток: %w", err)
	}
	return r.FindTray(ctx, tx, id)
}

// UpdateTray пишет все изменяемые поля разом: флаги блокировки меняются
// одним UPDATE, так что взаимоисключение не нарушается даже кратковременно.
func (r *TrayRepository) UpdateTray(ctx context.Context, tx pgx.Tx, tray entities.Tray) (*entities.Tray, error) {
	query, args, err := psql.Update(trayTable).
		SetMap(map[string]interface{}{
			"number":        tray.Number,
			"size":          tray.Size,
			"office_direct": tray.OfficeDirect,
			"curier_trimis": tray.CurierTrimis,
			"is_cash":       tray.IsCash,
			"is_card":       tray.IsCard,
			"updated_at":    sq.Expr("NOW()"),
		}).
		Where(sq.Eq{"id": tray.ID}).
		ToSql()
	if err != nil {
		return nil, err
	}

	tag, err := pick(r.storage, tx).Exec(ctx, query, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, apperrors.ErrConflict
		}
		return nil, fmt.Errorf("не удалось обновить лоток %d: %w", tray.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, apperrors.ErrNotFound
	}
	return r.FindTray(ctx, tx, tray.ID)
}

func (r *TrayRepository) DeleteTray(ctx context.Context, tx pgx.Tx, id uint64) error {
	tag, err := pick(r.storage, tx).Exec(ctx, "DELETE FROM trays WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("не удалось удалить лоток %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *TrayRepository) ExistsNumber(ctx context.Context, tx pgx.Tx, serviceFileID uint64, number int, excludeID uint64) (bool, error) {
	query := "SELECT EXISTS(SELECT 1 FROM trays WHERE service_file_id = $1 AND number = $2 AND id <> $3)"
	var exists bool
	err := pick(r.storage, tx).QueryRow(ctx, query, serviceFileID, number, excludeID).Scan(&exists)
	return exists, err
}

func (r *TrayRepository) MarkDispatched(ctx context.Context, tx pgx.Tx, trayIDs []uint64, at time.Time) error {
	if len(trayIDs) == 0 {
		return nil
	}
	query, args, err := psql.Update(trayTable).
		Set("dispatched_at", at).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": trayIDs}).
		ToSql()
	if err != nil {
		return err
	}

	tag, err := pick(r.storage, tx).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("не удалось отметить отправку лотков: %w", err)
	}
	if int(tag.RowsAffected()) != len(trayIDs) {
		return ErrStaleItems
	}
	return nil
}
