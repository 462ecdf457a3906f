package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repair-crm/internal/entities"
	apperrors "repair-crm/pkg/errors"
)

type mapServiceCatalog map[uint64]uint64

func (m mapServiceCatalog) ServiceInstrument(serviceID uint64) (uint64, bool) {
	id, ok := m[serviceID]
	return id, ok
}

func ptr(v uint64) *uint64 { return &v }

func namedService(id, serviceID uint64, name string, qty int, groups ...entities.BrandSerialGroup) entities.TrayItem {
	return entities.TrayItem{ID: id, Kind: entities.ItemKindService, ServiceID: ptr(serviceID), NameSnapshot: name, Qty: qty, Price: 10, BrandGroups: groups}
}

func TestGroupRows_MergesSameServiceAndName(t *testing.T) {
	rows := GroupRows([]entities.TrayItem{
		namedService(1, 5, "Ascutire", 1),
		namedService(2, 5, "Ascutire", 2),
	})

	require.Len(t, rows, 1)
	assert.Equal(t, 3, rows[0].Qty)
	assert.Equal(t, []uint64{1, 2}, rows[0].ItemIDs)
}

func TestGroupRows_DifferentSnapshotsStaySeparate(t *testing.T) {
	rows := GroupRows([]entities.TrayItem{
		namedService(1, 5, "Ascutire", 1),
		namedService(2, 5, "Ascutire foarfeca", 1),
		partItem(3, 1, 10, 0, false),
		partItem(4, 1, 10, 0, false),
	})

	assert.Len(t, rows, 4)
}

func TestGroupRows_MergesBrandSerialsInOrder(t *testing.T) {
	first := namedService(1, 5, "Ascutire", 1, entities.BrandSerialGroup{Brand: "Jaguar", Qty: 1, Serials: []entities.SerialNumber{{Serial: "A1"}}})
	second := namedService(2, 5, "Ascutire", 2,
		entities.BrandSerialGroup{Brand: "Jaguar", Qty: 1, Serials: []entities.SerialNumber{{Serial: "A1", Garantie: true}}},
		entities.BrandSerialGroup{Brand: "Kasho", Qty: 1, Serials: []entities.SerialNumber{{Serial: "K9"}}},
	)

	rows := GroupRows([]entities.TrayItem{first, second})

	require.Len(t, rows, 1)
	require.Len(t, rows[0].BrandGroups, 2)
	assert.Equal(t, "Jaguar", rows[0].BrandGroups[0].Brand)
	assert.Equal(t, []entities.SerialNumber{{Serial: "A1"}, {Serial: "A1", Garantie: true}}, rows[0].BrandGroups[0].Serials)
	assert.Equal(t, 2, rows[0].BrandGroups[0].Qty)
	assert.Equal(t, "Kasho", rows[0].BrandGroups[1].Brand)
	// исходные позиции не должны меняться
	assert.Len(t, first.BrandGroups[0].Serials, 1)
}

func TestGroupRows_Idempotent(t *testing.T) {
	items := []entities.TrayItem{
		namedService(1, 5, "Ascutire", 1, entities.BrandSerialGroup{Brand: "Jaguar", Qty: 1, Serials: []entities.SerialNumber{{Serial: "A1"}}}),
		partItem(2, 1, 10, 0, false),
		namedService(3, 5, "Ascutire", 2, entities.BrandSerialGroup{Brand: "Jaguar", Qty: 1, Serials: []entities.SerialNumber{{Serial: "B2"}}}),
	}

	once := GroupRows(items)
	twice := GroupRows(RowsAsItems(once))

	require.Len(t, twice, len(once))
	for i := range once {
		assert.Equal(t, once[i].Key, twice[i].Key)
		assert.Equal(t, once[i].Qty, twice[i].Qty)
		assert.Equal(t, once[i].BrandGroups, twice[i].BrandGroups)
	}
}

func TestResolveInstrumentID(t *testing.T) {
	catalog := mapServiceCatalog{5: 70}

	id, ok := ResolveInstrumentID(entities.TrayItem{InstrumentID: ptr(9), Kind: entities.ItemKindService, ServiceID: ptr(5)}, catalog)
	assert.True(t, ok)
	assert.Equal(t, uint64(9), id)

	id, ok = ResolveInstrumentID(namedService(1, 5, "x", 1), catalog)
	assert.True(t, ok)
	assert.Equal(t, uint64(70), id)

	_, ok = ResolveInstrumentID(partItem(2, 1, 1, 0, false), catalog)
	assert.False(t, ok)
}

func TestGroupByInstrument_OrdersByFirstItemAndSkipsUnresolved(t *testing.T) {
	instruments := map[uint64]entities.Instrument{
		70: {ID: 70, Name: "Foarfeca", Weight: 0.2},
		80: {ID: 80, Name: "Cutit", Weight: 0.5},
	}
	catalog := mapServiceCatalog{5: 70}
	items := []entities.TrayItem{
		{ID: 1, Kind: entities.ItemKindInstrument, InstrumentID: ptr(80), Qty: 1},
		namedService(2, 5, "Ascutire", 2),
		partItem(3, 1, 10, 0, false),
		{ID: 4, Kind: entities.ItemKindPart, InstrumentID: ptr(80), Qty: 3},
	}

	groups := GroupByInstrument(items, instruments, catalog)

	require.Len(t, groups, 2)
	assert.Equal(t, uint64(80), groups[0].Instrument.ID)
	assert.Equal(t, []uint64{1, 4}, groups[0].ItemIDs())
	assert.Equal(t, uint64(70), groups[1].Instrument.ID)

	first, ok := FirstItemOf(items, 80, catalog)
	require.True(t, ok)
	assert.Equal(t, uint64(1), first.ID)

	_, ok = FirstItemOf(items, 99, catalog)
	assert.False(t, ok)

	// 80: max(1,3)*0.5 ; 70: 2*0.2
	assert.InDelta(t, 1.5+0.4, ShippingWeight(items, instruments, catalog), 1e-9)
}

func TestGroupByInstrumentStrict_FailsOnUnresolvedBillable(t *testing.T) {
	items := []entities.TrayItem{partItem(3, 1, 10, 0, false)}

	_, err := GroupByInstrumentStrict(items, map[uint64]entities.Instrument{}, mapServiceCatalog{})

	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindResolution))
}
