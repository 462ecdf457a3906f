package services

import (
	"fmt"

	"repair-crm/internal/entities"
	apperrors "repair-crm/pkg/errors"
)

// ServiceCatalog - минимум каталога, нужный группировке.
type ServiceCatalog interface {
	ServiceInstrument(serviceID uint64) (uint64, bool)
}

// ItemRow - строка отображения: одна или несколько слитых позиций.
type ItemRow struct {
	Key         string                      `json:"key"`
	ItemIDs     []uint64                    `json:"item_ids"`
	Item        entities.TrayItem           `json:"item"`
	Qty         int                         `json:"qty"`
	BrandGroups []entities.BrandSerialGroup `json:"brand_groups"`
}

type InstrumentGroup struct {
	Instrument entities.Instrument `json:"instrument"`
	Items      []entities.TrayItem `json:"items"`
}

func (g InstrumentGroup) ItemIDs() []uint64 {
	ids := make([]uint64, 0, len(g.Items))
	for _, item := range g.Items {
		ids = append(ids, item.ID)
	}
	return ids
}

func rowKey(item entities.TrayItem) string {
	if item.Kind == entities.ItemKindService && item.ServiceID != nil {
		return fmt.Sprintf("service:%d:%s", *item.ServiceID, item.NameSnapshot)
	}
	return fmt.Sprintf("item:%d", item.ID)
}

// mergeBrandGroups сливает группы по бренду, серийники дописываются по порядку без дедупликации.
func mergeBrandGroups(dst []entities.BrandSerialGroup, src []entities.BrandSerialGroup) []entities.BrandSerialGroup {
	for _, group := range src {
		merged := false
		for i := range dst {
			if dst[i].Brand == group.Brand {
				dst[i].Serials = append(dst[i].Serials, group.Serials...)
				dst[i].Qty += group.Qty
				merged = true
				break
			}
		}
		if !merged {
			dst = append(dst, entities.BrandSerialGroup{
				Brand:   group.Brand,
				Serials: append([]entities.SerialNumber(nil), group.Serials...),
				Qty:     group.Qty,
			})
		}
	}
	return dst
}

// GroupRows сливает услуги с одинаковыми (service_id, name_snapshot). Остальные позиции -
// по одной строке. Порядок строк - порядок первого появления.
func GroupRows(items []entities.TrayItem) []ItemRow {
	rows := make([]ItemRow, 0, len(items))
	index := make(map[string]int, len(items))

	for _, item := range items {
		key := rowKey(item)
		if i, ok := index[key]; ok {
			rows[i].ItemIDs = append(rows[i].ItemIDs, item.ID)
			rows[i].Qty += item.Qty
			rows[i].BrandGroups = mergeBrandGroups(rows[i].BrandGroups, item.BrandGroups)
			continue
		}
		index[key] = len(rows)
		rows = append(rows, ItemRow{
			Key:         key,
			ItemIDs:     []uint64{item.ID},
			Item:        item,
			Qty:         item.Qty,
			BrandGroups: mergeBrandGroups(nil, item.BrandGroups),
		})
	}
	return rows
}

// RowsAsItems превращает строки обратно в позиции (представитель строки с суммарным qty).
func RowsAsItems(rows []ItemRow) []entities.TrayItem {
	items := make([]entities.TrayItem, 0, len(rows))
	for _, row := range rows {
		item := row.Item
		item.Qty = row.Qty
		item.BrandGroups = row.BrandGroups
		items = append(items, item)
	}
	return items
}

func ResolveInstrumentID(item entities.TrayItem, catalog ServiceCatalog) (uint64, bool) {
	if item.InstrumentID != nil {
		return *item.InstrumentID, true
	}
	if item.Kind == entities.ItemKindService && item.ServiceID != nil && catalog != nil {
		return catalog.ServiceInstrument(*item.ServiceID)
	}
	return 0, false
}

// GroupByInstrument - группы в порядке первой позиции инструмента. Позиции без инструмента
// в группы не попадают.
func GroupByInstrument(items []entities.TrayItem, instruments map[uint64]entities.Instrument, catalog ServiceCatalog) []InstrumentGroup {
	groups, _ := groupByInstrument(items, instruments, catalog, false)
	return groups
}

// GroupByInstrumentStrict - как GroupByInstrument, но платная позиция без инструмента - ошибка.
func GroupByInstrumentStrict(items []entities.TrayItem, instruments map[uint64]entities.Instrument, catalog ServiceCatalog) ([]InstrumentGroup, error) {
	return groupByInstrument(items, instruments, catalog, true)
}

func groupByInstrument(items []entities.TrayItem, instruments map[uint64]entities.Instrument, catalog ServiceCatalog, strict bool) ([]InstrumentGroup, error) {
	var groups []InstrumentGroup
	index := make(map[uint64]int)

	for _, item := range items {
		instrumentID, ok := ResolveInstrumentID(item, catalog)
		if ok {
			if _, known := instruments[instrumentID]; !known && instruments != nil {
				ok = false
			}
		}
		if !ok {
			if strict && item.Kind.Billable() {
				return nil, apperrors.NewResolutionError(apperrors.CodeInstrumentMissing,
					fmt.Sprintf("Не удалось определить инструмент позиции %d", item.ID))
			}
			continue
		}

		if i, exists := index[instrumentID]; exists {
			groups[i].Items = append(groups[i].Items, item)
			continue
		}
		index[instrumentID] = len(groups)
		instrument, found := instruments[instrumentID]
		if !found {
			instrument = entities.Instrument{ID: instrumentID}
		}
		groups = append(groups, InstrumentGroup{Instrument: instrument, Items: []entities.TrayItem{item}})
	}
	return groups, nil
}

// FirstItemOf - самая ранняя позиция инструмента; её предлагают для перемещения.
func FirstItemOf(items []entities.TrayItem, instrumentID uint64, catalog ServiceCatalog) (entities.TrayItem, bool) {
	for _, item := range items {
		if id, ok := ResolveInstrumentID(item, catalog); ok && id == instrumentID {
			return item, true
		}
	}
	return entities.TrayItem{}, false
}

// ShippingWeight: по каждому инструменту max(qty) * вес, затем сумма.
func ShippingWeight(items []entities.TrayItem, instruments map[uint64]entities.Instrument, catalog ServiceCatalog) float64 {
	var weight float64
	for _, group := range GroupByInstrument(items, instruments, catalog) {
		maxQty := 0
		for _, item := range group.Items {
			if item.Qty > maxQty {
				maxQty = item.Qty
			}
		}
		weight += float64(maxQty) * group.Instrument.Weight
	}
	return weight
}
