package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"repair-crm/internal/entities"
	apperrors "repair-crm/pkg/errors"
)

const trayItemTable = "tray_items"

var trayItemColumns = []string{
	"ti.id", "ti.tray_id", "ti.item_type", "ti.qty", "ti.price", "ti.discount_pct", "ti.urgent",
	"ti.instrument_id", "ti.service_id", "ti.part_id", "ti.technician_id", "ti.name_snapshot",
	"ti.brand", "ti.serial_number", "ti.garantie", "ti.brand_groups", "ti.notes",
	"ti.department_id", "ti.pipeline_id", "ti.stage_id", "ti.created_at", "ti.updated_at",
}

// ErrStaleItems - пакетное перемещение затронуло не все позиции: кто-то успел их изменить.
var ErrStaleItems = errors.New("позиции изменились до перемещения")

// ReassignTarget - куда переносятся позиции. Пустые поля не меняются.
type ReassignTarget struct {
	TrayID       *uint64
	DepartmentID *uint64
	PipelineID   *uint64
	StageID      *uint64
	TechnicianID *uint64
}

type TrayItemRepositoryInterface interface {
	FindItem(ctx context.Context, tx pgx.Tx, id uint64) (*entities.TrayItem, error)
	ListItems(ctx context.Context, tx pgx.Tx, trayID uint64) ([]entities.TrayItem, error)
	ListByTrays(ctx context.Context, tx pgx.Tx, trayIDs []uint64) ([]entities.TrayItem, error)
	CreateItem(ctx context.Context, tx pgx.Tx, item entities.TrayItem) (*entities.TrayItem, error)
	UpdateItem(ctx context.Context, tx pgx.Tx, item entities.TrayItem) (*entities.TrayItem, error)
	DeleteItem(ctx context.Context, tx pgx.Tx, id uint64) error
	CountItems(ctx context.Context, tx pgx.Tx, trayID uint64) (int, error)
	CountInDepartments(ctx context.Context, tx pgx.Tx, serviceFileID uint64) (int, error)
	BatchReassignItems(ctx context.Context, tx pgx.Tx, itemIDs []uint64, sourceTrayID uint64, target ReassignTarget) error
}

type TrayItemRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewTrayItemRepository(storage *pgxpool.Pool, logger *zap.Logger) TrayItemRepositoryInterface {
	return &TrayItemRepository{storage: storage, logger: logger}
}

// -----------------------------------------------------------
// SCAN
// -----------------------------------------------------------

func scanTrayItem(row pgx.Row) (*entities.TrayItem, error) {
	var item entities.TrayItem
	var itemType *string
	var brandGroups []byte

	err := row.Scan(
		&item.ID, &item.TrayID, &itemType, &item.Qty, &item.Price, &item.DiscountPct, &item.Urgent,
		&item.InstrumentID, &item.ServiceID, &item.PartID, &item.TechnicianID, &item.NameSnapshot,
		&item.Brand, &item.SerialNumber, &item.Garantie, &brandGroups, &item.Notes,
		&item.DepartmentID, &item.PipelineID, &item.StageID, &item.CreatedAt, &item.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка сканирования tray_item: %w", err)
	}

	item.Kind = entities.ParseItemKind(itemType)
	if len(brandGroups) > 0 {
		if err := json.Unmarshal(brandGroups, &item.BrandGroups); err != nil {
			return nil, fmt.Errorf("brand_groups позиции %d: %w", item.ID, err)
		}
	}
	return &item, nil
}

func (r *TrayItemRepository) list(ctx context.Context, q Querier, where sq.Sqlizer) ([]entities.TrayItem, error) {
	query, args, err := psql.Select(trayItemColumns...).
		From(trayItemTable + " ti").
		Where(where).
		OrderBy("ti.tray_id", "ti.id").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]entities.TrayItem, 0)
	for rows.Next() {
		item, err := scanTrayItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (r *TrayItemRepository) FindItem(ctx context.Context, tx pgx.Tx, id uint64) (*entities.TrayItem, error) {
	query, args, err := psql.Select(trayItemColumns...).From(trayItemTable + " ti").Where(sq.Eq{"ti.id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	return scanTrayItem(pick(r.storage, tx).QueryRow(ctx, query, args...))
}

func (r *TrayItemRepository) ListItems(ctx context.Context, tx pgx.Tx, trayID uint64) ([]entities.TrayItem, error) {
	return r.list(ctx, pick(r.storage, tx), sq.Eq{"ti.tray_id": trayID})
}

func (r *TrayItemRepository) ListByTrays(ctx context.Context, tx pgx.Tx, trayIDs []uint64) ([]entities.TrayItem, error) {
	if len(trayIDs) == 0 {
		return []entities.TrayItem{}, nil
	}
	return r.list(ctx, pick(r.storage, tx), sq.Eq{"ti.tray_id": trayIDs})
}

// -----------------------------------------------------------
// CRUD
// -----------------------------------------------------------

func (r *TrayItemRepository) CreateItem(ctx context.Context, tx pgx.Tx, item entities.TrayItem) (*entities.TrayItem, error) {
	brandGroups, err := marshalBrandGroups(item.BrandGroups)
	if err != nil {
		return nil, err
	}

	query, args, err := psql.Insert(trayItemTable).
		Columns(
			"tray_id", "item_type", "qty", "price", "discount_pct", "urgent",
			"instrument_id", "service_id", "part_id", "technician_id", "name_snapshot",
			"brand", "serial_number", "garantie", "brand_groups", "notes",
		).
		Values(
			item.TrayID, item.Kind.Column(), item.Qty, item.Price, item.DiscountPct, item.Urgent,
			item.InstrumentID, item.ServiceID, item.PartID, item.TechnicianID, item.NameSnapshot,
			item.Brand, item.SerialNumber, item.Garantie, brandGroups, item.Notes,
		).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return nil, err
	}

	var id uint64
	if err := pick(r.storage, tx).QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return nil, fmt.Errorf("не удалось создать позицию: %w", err)
	}
	return r.FindItem(ctx, tx, id)
}

func (r *TrayItemRepository) UpdateItem(ctx context.Context, tx pgx.Tx, item entities.TrayItem) (*entities.TrayItem, error) {
	brandGroups, err := marshalBrandGroups(item.BrandGroups)
	if err != nil {
		return nil, err
	}

	query, args, err := psql.Update(trayItemTable).
		SetMap(map[string]interface{}{
			"qty":           item.Qty,
			"price":         item.Price,
			"discount_pct":  item.DiscountPct,
			"urgent":        item.Urgent,
			"technician_id": item.TechnicianID,
			"name_snapshot": item.NameSnapshot,
			"brand":         item.Brand,
			"serial_number": item.SerialNumber,
			"garantie":      item.Garantie,
			"brand_groups":  brandGroups,
			"notes":         item.Notes,
			"updated_at":    sq.Expr("NOW()"),
		}).
		Where(sq.Eq{"id": item.ID}).
		ToSql()
	if err != nil {
		return nil, err
	}

	tag, err := pick(r.storage, tx).Exec(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("не удалось обновить позицию %d: %w", item.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, apperrors.ErrNotFound
	}
	return r.FindItem(ctx, tx, item.ID)
}

func (r *TrayItemRepository) DeleteItem(ctx context.Context, tx pgx.Tx, id uint64) error {
	tag, err := pick(r.storage, tx).Exec(ctx, "DELETE FROM tray_items WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("не удалось удалить позицию %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *TrayItemRepository) CountItems(ctx context.Context, tx pgx.Tx, trayID uint64) (int, error) {
	var count int
	err := pick(r.storage, tx).QueryRow(ctx, "SELECT COUNT(*) FROM tray_items WHERE tray_id = $1", trayID).Scan(&count)
	return count, err
}

// CountInDepartments - сколько позиций fișă уже лежат в конвейерах отделов.
func (r *TrayItemRepository) CountInDepartments(ctx context.Context, tx pgx.Tx, serviceFileID uint64) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM tray_items ti
		JOIN trays t ON t.id = ti.tray_id
		WHERE t.service_file_id = $1 AND ti.pipeline_id IS NOT NULL`
	var count int
	err := pick(r.storage, tx).QueryRow(ctx, query, serviceFileID).Scan(&count)
	return count, err
}

// BatchReassignItems переносит позиции одним запросом. Условие tray_id = source
// повторно проверяет предпосылку: если затронуты не все позиции, возвращается ErrStaleItems,
// а вызывающая транзакция откатывается.
func (r *TrayItemRepository) BatchReassignItems(ctx context.Context, tx pgx.Tx, itemIDs []uint64, sourceTrayID uint64, target ReassignTarget) error {
	if len(itemIDs) == 0 {
		return nil
	}

	set := map[string]interface{}{"updated_at": sq.Expr("NOW()")}
	if target.TrayID != nil {
		set["tray_id"] = *target.TrayID
	}
	if target.DepartmentID != nil {
		set["department_id"] = *target.DepartmentID
	}
	if target.PipelineID != nil {
		set["pipeline_id"] = *target.PipelineID
	}
	if target.StageID != nil {
		set["stage_id"] = *target.StageID
	}
	if target.TechnicianID != nil {
		set["technician_id"] = *target.TechnicianID
	}

	query, args, err := psql.Update(trayItemTable).
		SetMap(set).
		Where(sq.Eq{"id": itemIDs, "tray_id": sourceTrayID}).
		ToSql()
	if err != nil {
		return err
	}

	tag, err := pick(r.storage, tx).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("пакетное перемещение позиций: %w", err)
	}
	if int(tag.RowsAffected()) != len(itemIDs) {
		r.logger.Warn("Пакетное перемещение затронуло не все позиции",
			zap.Int64("affected", tag.RowsAffected()),
			zap.Int("expected", len(itemIDs)),
			zap.Uint64("source_tray_id", sourceTrayID),
		)
		return ErrStaleItems
	}
	return nil
}

func marshalBrandGroups(groups []entities.BrandSerialGroup) ([]byte, error) {
	if groups == nil {
		groups = []entities.BrandSerialGroup{}
	}
	data, err := json.Marshal(groups)
	if err != nil {
		return nil, fmt.Errorf("brand_groups: %w", err)
	}
	return data, nil
}
