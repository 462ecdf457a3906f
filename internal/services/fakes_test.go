package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"repair-crm/internal/dto"
	"repair-crm/internal/entities"
	"repair-crm/internal/repositories"
	"repair-crm/pkg/eventbus"
	apperrors "repair-crm/pkg/errors"
)

// fakeDB - хранилище в памяти для всех репозиториев движка.
type fakeDB struct {
	mu sync.Mutex

	serviceFiles map[uint64]entities.ServiceFile
	trays        map[uint64]entities.Tray
	items        map[uint64]entities.TrayItem
	stages       map[uint64][]entities.Stage

	nextID uint64
	clock  time.Time

	batchCalls  int
	failBatchAt int
	failBatch   error
	failMark    error
}

type fakeSnapshot struct {
	trays  map[uint64]entities.Tray
	items  map[uint64]entities.TrayItem
	nextID uint64
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		serviceFiles: make(map[uint64]entities.ServiceFile),
		trays:        make(map[uint64]entities.Tray),
		items:        make(map[uint64]entities.TrayItem),
		stages:       make(map[uint64][]entities.Stage),
		nextID:       1000,
		clock:        time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (db *fakeDB) tick() *time.Time {
	db.clock = db.clock.Add(time.Second)
	t := db.clock
	return &t
}

func (db *fakeDB) snapshot() fakeSnapshot {
	db.mu.Lock()
	defer db.mu.Unlock()
	s := fakeSnapshot{
		trays:  make(map[uint64]entities.Tray, len(db.trays)),
		items:  make(map[uint64]entities.TrayItem, len(db.items)),
		nextID: db.nextID,
	}
	for id, t := range db.trays {
		s.trays[id] = t
	}
	for id, i := range db.items {
		s.items[id] = i
	}
	return s
}

func (db *fakeDB) restore(s fakeSnapshot) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.trays = s.trays
	db.items = s.items
	db.nextID = s.nextID
}

// --- заполнение ---

func (db *fakeDB) addServiceFile(id, leadID uint64, subscription entities.SubscriptionType) {
	db.serviceFiles[id] = entities.ServiceFile{ID: id, LeadID: leadID, Number: fmt.Sprintf("F-%03d", id), SubscriptionType: subscription}
}

func (db *fakeDB) addTray(serviceFileID uint64, number int) entities.Tray {
	db.nextID++
	tray := entities.Tray{ID: db.nextID, ServiceFileID: serviceFileID, Number: number, Size: "M"}
	tray.UpdatedAt = db.tick()
	db.trays[tray.ID] = tray
	return tray
}

func (db *fakeDB) addItem(item entities.TrayItem) entities.TrayItem {
	db.nextID++
	item.ID = db.nextID
	item.UpdatedAt = db.tick()
	db.items[item.ID] = item
	return item
}

func (db *fakeDB) setFlags(trayID uint64, officeDirect, curierTrimis bool) {
	tray := db.trays[trayID]
	tray.OfficeDirect, tray.CurierTrimis = officeDirect, curierTrimis
	db.trays[trayID] = tray
}

func (db *fakeDB) itemsOf(trayID uint64) []entities.TrayItem {
	items, _ := db.ListItems(context.Background(), nil, trayID)
	return items
}

// --- TrayRepositoryInterface ---

func (db *fakeDB) FindTray(_ context.Context, _ pgx.Tx, id uint64) (*entities.Tray, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	tray, ok := db.trays[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &tray, nil
}

func (db *fakeDB) ListByServiceFile(_ context.Context, _ pgx.Tx, serviceFileID uint64) ([]entities.Tray, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	list := make([]entities.Tray, 0)
	for _, tray := range db.trays {
		if tray.ServiceFileID == serviceFileID {
			list = append(list, tray)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Number != list[j].Number {
			return list[i].Number < list[j].Number
		}
		return list[i].ID < list[j].ID
	})
	return list, nil
}

func (db *fakeDB) CreateTray(_ context.Context, _ pgx.Tx, tray entities.Tray) (*entities.Tray, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, existing := range db.trays {
		if existing.ServiceFileID == tray.ServiceFileID && existing.Number == tray.Number {
			return nil, apperrors.ErrConflict
		}
	}
	db.nextID++
	tray.ID = db.nextID
	tray.CreatedAt = db.tick()
	tray.UpdatedAt = tray.CreatedAt
	db.trays[tray.ID] = tray
	return &tray, nil
}

func (db *fakeDB) UpdateTray(_ context.Context, _ pgx.Tx, tray entities.Tray) (*entities.Tray, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.trays[tray.ID]; !ok {
		return nil, apperrors.ErrNotFound
	}
	tray.UpdatedAt = db.tick()
	db.trays[tray.ID] = tray
	return &tray, nil
}

func (db *fakeDB) DeleteTray(_ context.Context, _ pgx.Tx, id uint64) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.trays[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(db.trays, id)
	return nil
}

func (db *fakeDB) ExistsNumber(_ context.Context, _ pgx.Tx, serviceFileID uint64, number int, excludeID uint64) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, tray := range db.trays {
		if tray.ServiceFileID == serviceFileID && tray.Number == number && tray.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (db *fakeDB) MarkDispatched(_ context.Context, _ pgx.Tx, trayIDs []uint64, at time.Time) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.failMark != nil {
		return db.failMark
	}
	for _, id := range trayIDs {
		tray := db.trays[id]
		dispatchedAt := at
		tray.DispatchedAt = &dispatchedAt
		tray.UpdatedAt = db.tick()
		db.trays[id] = tray
	}
	return nil
}

// --- TrayItemRepositoryInterface ---

func (db *fakeDB) FindItem(_ context.Context, _ pgx.Tx, id uint64) (*entities.TrayItem, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	item, ok := db.items[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &item, nil
}

func (db *fakeDB) ListItems(ctx context.Context, tx pgx.Tx, trayID uint64) ([]entities.TrayItem, error) {
	return db.ListByTrays(ctx, tx, []uint64{trayID})
}

func (db *fakeDB) ListByTrays(_ context.Context, _ pgx.Tx, trayIDs []uint64) ([]entities.TrayItem, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	wanted := make(map[uint64]bool, len(trayIDs))
	for _, id := range trayIDs {
		wanted[id] = true
	}
	list := make([]entities.TrayItem, 0)
	for _, item := range db.items {
		if wanted[item.TrayID] {
			list = append(list, item)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].TrayID != list[j].TrayID {
			return list[i].TrayID < list[j].TrayID
		}
		return list[i].ID < list[j].ID
	})
	return list, nil
}

func (db *fakeDB) CreateItem(_ context.Context, _ pgx.Tx, item entities.TrayItem) (*entities.TrayItem, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.nextID++
	item.ID = db.nextID
	item.CreatedAt = db.tick()
	item.UpdatedAt = item.CreatedAt
	db.items[item.ID] = item
	return &item, nil
}

func (db *fakeDB) UpdateItem(_ context.Context, _ pgx.Tx, item entities.TrayItem) (*entities.TrayItem, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.items[item.ID]; !ok {
		return nil, apperrors.ErrNotFound
	}
	item.UpdatedAt = db.tick()
	db.items[item.ID] = item
	return &item, nil
}

func (db *fakeDB) DeleteItem(_ context.Context, _ pgx.Tx, id uint64) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.items[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(db.items, id)
	return nil
}

func (db *fakeDB) CountItems(_ context.Context, _ pgx.Tx, trayID uint64) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	count := 0
	for _, item := range db.items {
		if item.TrayID == trayID {
			count++
		}
	}
	return count, nil
}

func (db *fakeDB) CountInDepartments(_ context.Context, _ pgx.Tx, serviceFileID uint64) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	count := 0
	for _, item := range db.items {
		if db.trays[item.TrayID].ServiceFileID == serviceFileID && item.InDepartment() {
			count++
		}
	}
	return count, nil
}

// BatchReassignItems повторяет условие WHERE id IN (...) AND tray_id = source.
// failBatchAt > 0 роняет указанный по счёту вызов после частичной записи.
func (db *fakeDB) BatchReassignItems(_ context.Context, _ pgx.Tx, itemIDs []uint64, sourceTrayID uint64, target repositories.ReassignTarget) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if len(itemIDs) == 0 {
		return nil
	}
	db.batchCalls++

	affected := 0
	for _, id := range itemIDs {
		item, ok := db.items[id]
		if !ok || item.TrayID != sourceTrayID {
			continue
		}
		if target.TrayID != nil {
			item.TrayID = *target.TrayID
		}
		if target.DepartmentID != nil {
			item.DepartmentID = ptr(*target.DepartmentID)
		}
		if target.PipelineID != nil {
			item.PipelineID = ptr(*target.PipelineID)
		}
		if target.StageID != nil {
			item.StageID = ptr(*target.StageID)
		}
		if target.TechnicianID != nil {
			item.TechnicianID = ptr(*target.TechnicianID)
		}
		item.UpdatedAt = db.tick()
		db.items[id] = item
		affected++
	}

	if db.failBatchAt > 0 && db.batchCalls == db.failBatchAt {
		return db.failBatch
	}
	if affected != len(itemIDs) {
		return repositories.ErrStaleItems
	}
	return nil
}

// --- ServiceFileRepositoryInterface ---

func (db *fakeDB) FindServiceFile(_ context.Context, id uint64) (*entities.ServiceFile, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	sf, ok := db.serviceFiles[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &sf, nil
}

func (db *fakeDB) ListByLead(_ context.Context, leadID uint64) ([]entities.ServiceFile, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	list := make([]entities.ServiceFile, 0)
	for _, sf := range db.serviceFiles {
		if sf.LeadID == leadID {
			list = append(list, sf)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

// --- StageRepositoryInterface ---

func (db *fakeDB) FindStage(_ context.Context, _ pgx.Tx, pipelineID uint64, name string) (*entities.Stage, error) {
	for _, stage := range db.stages[pipelineID] {
		if stage.Name == name {
			found := stage
			return &found, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (db *fakeDB) DefaultStage(_ context.Context, _ pgx.Tx, pipelineID uint64) (*entities.Stage, error) {
	stages := db.stages[pipelineID]
	if len(stages) == 0 {
		return nil, apperrors.ErrNotFound
	}
	first := stages[0]
	for _, stage := range stages[1:] {
		if stage.Position < first.Position {
			first = stage
		}
	}
	return &first, nil
}

// fakeTxManager откатывает изменения fakeDB, если fn вернула ошибку.
type fakeTxManager struct {
	db    *fakeDB
	calls int
}

func (m *fakeTxManager) RunInTransaction(_ context.Context, fn func(tx pgx.Tx) error) error {
	m.calls++
	snap := m.db.snapshot()
	if err := fn(nil); err != nil {
		m.db.restore(snap)
		return err
	}
	return nil
}

type staticCatalog struct {
	catalog *Catalog
	err     error
}

func (c staticCatalog) Snapshot(context.Context) (*Catalog, error) { return c.catalog, c.err }
func (c staticCatalog) Refresh(context.Context) error              { return nil }

type recordingBus struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (b *recordingBus) Publish(_ context.Context, event eventbus.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *recordingBus) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.events))
	for _, e := range b.events {
		names = append(names, e.Name())
	}
	return names
}

func (b *recordingBus) last() eventbus.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.events) == 0 {
		return nil
	}
	return b.events[len(b.events)-1]
}

// --- каталог ---

const (
	pipelineRepairs = uint64(1)
	pipelineSalon   = uint64(2)
	pipelineHoreca  = uint64(3)

	instrumentScissors = uint64(1) // салон, срочно по умолчанию
	instrumentClipper  = uint64(2) // ремонты, серийники
	instrumentPliers   = uint64(3) // тег конвейера без отдела
	instrumentOrphan   = uint64(4) // ни отдела, ни тега
	instrumentOven     = uint64(5) // horeca без этапов

	serviceSharpening = uint64(100)
	serviceMotor      = uint64(101)
	serviceCleaning   = uint64(102)
	serviceNoTool     = uint64(103)
	serviceOven       = uint64(104)

	partBlade = uint64(300)
)

func testCatalogDTO() dto.CatalogDTO {
	salonTag := "Saloane"
	return dto.CatalogDTO{
		Pipelines: []entities.Pipeline{
			{ID: pipelineRepairs, Name: "Reparatii", Kind: "repairs"},
			{ID: pipelineSalon, Name: "Saloane", Kind: "Salon"},
			{ID: pipelineHoreca, Name: "Horeca", Kind: "horeca"},
		},
		Departments: []entities.Department{
			{ID: 1, Name: "Reparatii", PipelineID: ptr(pipelineRepairs)},
			{ID: 2, Name: "Saloane", PipelineID: ptr(pipelineSalon)},
			{ID: 3, Name: "Horeca", PipelineID: ptr(pipelineHoreca)},
		},
		Instruments: []entities.Instrument{
			{ID: instrumentScissors, Name: "Foarfeca", DepartmentID: ptr(2), Weight: 0.5, DefaultUrgent: true},
			{ID: instrumentClipper, Name: "Masina de tuns", DepartmentID: ptr(1), Weight: 1.2},
			{ID: instrumentPliers, Name: "Cleste", Pipeline: &salonTag, Weight: 0.3},
			{ID: instrumentOrphan, Name: "Necunoscut"},
			{ID: instrumentOven, Name: "Cuptor", DepartmentID: ptr(3), Weight: 20},
		},
		Services: []entities.Service{
			{ID: serviceSharpening, Name: "Ascutire", Price: 50, InstrumentID: ptr(instrumentScissors)},
			{ID: serviceMotor, Name: "Reparatie motor", Price: 200, InstrumentID: ptr(instrumentClipper)},
			{ID: serviceCleaning, Name: "Curatare", Price: 30, InstrumentID: ptr(instrumentPliers)},
			{ID: serviceNoTool, Name: "Diagnostic", Price: 10},
			{ID: serviceOven, Name: "Revizie cuptor", Price: 500, InstrumentID: ptr(instrumentOven)},
		},
		Parts: []entities.Part{
			{ID: partBlade, Name: "Lama", Price: 40},
		},
	}
}

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	catalog, err := NewCatalog(testCatalogDTO())
	require.NoError(t, err)
	return catalog
}

func seedStages(db *fakeDB) {
	db.stages[pipelineRepairs] = []entities.Stage{
		{ID: 11, PipelineID: pipelineRepairs, Name: "IN LUCRU", Position: 2},
		{ID: 10, PipelineID: pipelineRepairs, Name: "NOUA", Position: 1},
		{ID: 12, PipelineID: pipelineRepairs, Name: "FINALIZATA", Position: 3},
		{ID: 13, PipelineID: pipelineRepairs, Name: "ASTEPT PIESE", Position: 4},
	}
	db.stages[pipelineSalon] = []entities.Stage{
		{ID: 20, PipelineID: pipelineSalon, Name: "NOUA", Position: 1},
		{ID: 21, PipelineID: pipelineSalon, Name: "IN LUCRU", Position: 2},
		{ID: 22, PipelineID: pipelineSalon, Name: "FINALIZATA", Position: 3},
		{ID: 23, PipelineID: pipelineSalon, Name: "IN ASTEPTARE", Position: 4},
	}
}

// --- окружение ---

type testEnv struct {
	db      *fakeDB
	tx      *fakeTxManager
	bus     *recordingBus
	catalog *Catalog
	rules   PricingRules

	trays   TrayServiceInterface
	items   TrayItemServiceInterface
	routing RoutingServiceInterface
	billing BillingServiceInterface
	board   TrayBoardServiceInterface
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newFakeDB()
	seedStages(db)
	db.addServiceFile(1, 7, entities.SubscriptionNone)
	db.addServiceFile(2, 7, entities.SubscriptionBoth)

	env := &testEnv{
		db:      db,
		tx:      &fakeTxManager{db: db},
		bus:     &recordingBus{},
		catalog: testCatalog(t),
		rules:   DefaultPricingRules(),
	}
	catalog := staticCatalog{catalog: env.catalog}
	logger := zap.NewNop()

	env.trays = NewTrayService(env.tx, db, db, db, catalog, env.bus, env.rules, logger)
	env.items = NewTrayItemService(env.tx, db, db, db, catalog, env.bus, env.rules, logger)
	env.routing = NewRoutingService(env.tx, db, db, db, catalog, env.bus, "", logger)
	env.billing = NewBillingService(db, db, db, catalog, env.rules, logger)
	env.board = NewTrayBoardService(db, db, db, catalog, env.rules, logger)
	return env
}

func service(trayID, serviceID uint64, qty int, price float64) entities.TrayItem {
	return entities.TrayItem{TrayID: trayID, Kind: entities.ItemKindService, ServiceID: ptr(serviceID), Qty: qty, Price: price}
}

func part(trayID, partID, instrumentID uint64, qty int, price float64) entities.TrayItem {
	return entities.TrayItem{TrayID: trayID, Kind: entities.ItemKindPart, PartID: ptr(partID), InstrumentID: ptr(instrumentID), Qty: qty, Price: price}
}

func requireCode(t *testing.T, err error, kind apperrors.Kind, code string) {
	t.Helper()
	require.Error(t, err)
	var engineErr *apperrors.EngineError
	require.True(t, errors.As(err, &engineErr), "ожидалась ошибка движка, получено: %v", err)
	require.Equal(t, kind, engineErr.Kind)
	require.Equal(t, code, engineErr.Code)
}

func placeholder(trayID, instrumentID uint64) entities.TrayItem {
	return entities.TrayItem{TrayID: trayID, Kind: entities.ItemKindInstrument, InstrumentID: ptr(instrumentID), Qty: 1}
}
