package services

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/jackc/pgx/v5"

	"repair-crm/internal/entities"
	"repair-crm/internal/repositories"
)

// ServiceFileDetails - текст fișă и данные оплаты. Старые записи хранят их
// JSON-ом в поле details, новые - простым текстом.
type ServiceFileDetails struct {
	Text    string                 `json:"text"`
	Payment map[string]interface{} `json:"payment,omitempty"`
}

func ParseServiceFileDetails(raw string) ServiceFileDetails {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") {
		var parsed ServiceFileDetails
		if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil {
			return parsed
		}
	}
	return ServiceFileDetails{Text: raw}
}

// LegacyItemNotes - поля позиции, которые старый клиент писал в notes.
type LegacyItemNotes struct {
	DiscountPct  *float64                    `json:"discount_pct"`
	Urgent       *bool                       `json:"urgent"`
	Brand        string                      `json:"brand"`
	SerialNumber string                      `json:"serial_number"`
	Garantie     *bool                       `json:"garantie"`
	BrandGroups  []entities.BrandSerialGroup `json:"brandGroups"`
}

// ParseLegacyItemNotes читает JSON из notes. Не-JSON заметки - обычный текст, ok=false.
func ParseLegacyItemNotes(notes string) (LegacyItemNotes, bool) {
	trimmed := strings.TrimSpace(notes)
	if !strings.HasPrefix(trimmed, "{") {
		return LegacyItemNotes{}, false
	}
	var parsed LegacyItemNotes
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return LegacyItemNotes{}, false
	}
	if parsed.DiscountPct != nil {
		clamped := ClampDiscount(*parsed.DiscountPct)
		parsed.DiscountPct = &clamped
	}
	return parsed, true
}

// applyLegacyNotes заполняет только пустые типизированные поля.
func applyLegacyNotes(item *entities.TrayItem) {
	legacy, ok := ParseLegacyItemNotes(item.Notes)
	if !ok {
		return
	}
	if item.DiscountPct == 0 && legacy.DiscountPct != nil {
		item.DiscountPct = *legacy.DiscountPct
	}
	if !item.Urgent && legacy.Urgent != nil {
		item.Urgent = *legacy.Urgent
	}
	if item.Brand == "" {
		item.Brand = legacy.Brand
	}
	if item.SerialNumber == "" {
		item.SerialNumber = legacy.SerialNumber
	}
	if !item.Garantie && legacy.Garantie != nil {
		item.Garantie = *legacy.Garantie
	}
	if len(item.BrandGroups) == 0 && len(legacy.BrandGroups) > 0 {
		item.BrandGroups = legacy.BrandGroups
	}
}

var legacyNoteKeys = []string{"discount_pct", "urgent", "brand", "serial_number", "garantie", "brandGroups"}

// stripLegacyNotes убирает из notes ключи, перенесённые в колонки позиции.
// Прочие ключи остаются, пустой объект превращается в пустую строку.
func stripLegacyNotes(notes string) string {
	if _, ok := ParseLegacyItemNotes(notes); !ok {
		return notes
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(notes)), &fields); err != nil {
		return notes
	}
	for _, key := range legacyNoteKeys {
		delete(fields, key)
	}
	if len(fields) == 0 {
		return ""
	}
	rest, err := json.Marshal(fields)
	if err != nil {
		return notes
	}
	return string(rest)
}

// consumeLegacyNotes переносит данные из notes в колонки перед записью.
// После этого явные нулевые значения колонок уже не перекрываются заметками.
func consumeLegacyNotes(item *entities.TrayItem) {
	applyLegacyNotes(item)
	item.Notes = stripLegacyNotes(item.Notes)
}

// legacyItemRepository отдаёт позиции с уже разобранными старыми notes,
// чтобы все чтения видели одни и те же значения.
type legacyItemRepository struct {
	repositories.TrayItemRepositoryInterface
}

func withLegacyNotes(repo repositories.TrayItemRepositoryInterface) repositories.TrayItemRepositoryInterface {
	if repo == nil {
		return nil
	}
	if _, ok := repo.(legacyItemRepository); ok {
		return repo
	}
	return legacyItemRepository{TrayItemRepositoryInterface: repo}
}

func (r legacyItemRepository) FindItem(ctx context.Context, tx pgx.Tx, id uint64) (*entities.TrayItem, error) {
	item, err := r.TrayItemRepositoryInterface.FindItem(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	applyLegacyNotes(item)
	return item, nil
}

func (r legacyItemRepository) ListItems(ctx context.Context, tx pgx.Tx, trayID uint64) ([]entities.TrayItem, error) {
	items, err := r.TrayItemRepositoryInterface.ListItems(ctx, tx, trayID)
	if err != nil {
		return nil, err
	}
	for i := range items {
		applyLegacyNotes(&items[i])
	}
	return items, nil
}

func (r legacyItemRepository) ListByTrays(ctx context.Context, tx pgx.Tx, trayIDs []uint64) ([]entities.TrayItem, error) {
	items, err := r.TrayItemRepositoryInterface.ListByTrays(ctx, tx, trayIDs)
	if err != nil {
		return nil, err
	}
	for i := range items {
		applyLegacyNotes(&items[i])
	}
	return items, nil
}

func (r legacyItemRepository) CreateItem(ctx context.Context, tx pgx.Tx, item entities.TrayItem) (*entities.TrayItem, error) {
	created, err := r.TrayItemRepositoryInterface.CreateItem(ctx, tx, item)
	if err != nil {
		return nil, err
	}
	applyLegacyNotes(created)
	return created, nil
}

func (r legacyItemRepository) UpdateItem(ctx context.Context, tx pgx.Tx, item entities.TrayItem) (*entities.TrayItem, error) {
	updated, err := r.TrayItemRepositoryInterface.UpdateItem(ctx, tx, item)
	if err != nil {
		return nil, err
	}
	applyLegacyNotes(updated)
	return updated, nil
}
