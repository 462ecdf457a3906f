package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBillingService_ServiceFileBilling(t *testing.T) {
	env := newTestEnv(t)
	first := env.db.addTray(2, 1)
	second := env.db.addTray(2, 2)

	urgent := service(first.ID, serviceMotor, 1, 100)
	urgent.Urgent = true
	env.db.addItem(urgent)
	env.db.addItem(part(first.ID, partBlade, instrumentClipper, 1, 100))
	discounted := service(second.ID, serviceSharpening, 2, 50)
	discounted.DiscountPct = 10
	env.db.addItem(discounted)
	env.db.addItem(placeholder(second.ID, instrumentScissors))

	sheet, err := env.billing.ServiceFileBilling(context.Background(), 2)
	require.NoError(t, err)

	require.Len(t, sheet.Trays, 2)
	assert.Equal(t, "both", sheet.SubscriptionType)
	assert.Equal(t, uint64(7), sheet.LeadID)

	// услуга: 100 + 30 срочность - 10% от 130; запчасть: 100 - 5%
	assert.InDelta(t, 117+95, sheet.Trays[0].Total, 1e-9)
	assert.Equal(t, 2, sheet.Trays[0].ItemCount)
	// 100 - 10 = 90, затем абонемент 9
	assert.InDelta(t, 81, sheet.Trays[1].Total, 1e-9)
	assert.Equal(t, 1, sheet.Trays[1].ItemCount)

	assert.InDelta(t, 293, sheet.AllSheetsTotal, 1e-9)
	assert.InDelta(t, sheet.Trays[0].Total+sheet.Trays[1].Total, sheet.Totals.Total, 1e-9)
	assert.InDelta(t, 13+5+9, sheet.Totals.SubscriptionDiscount, 1e-9)
	// машинка 1.2 + ножницы max(2, 1) * 0.5
	assert.InDelta(t, 2.2, sheet.ShippingWeight, 1e-9)
}

func TestBillingService_LeadBilling(t *testing.T) {
	env := newTestEnv(t)
	env.db.addItem(service(env.db.addTray(1, 1).ID, serviceMotor, 1, 200))
	env.db.addItem(service(env.db.addTray(2, 1).ID, serviceMotor, 1, 200))

	res, err := env.billing.LeadBilling(context.Background(), 7)
	require.NoError(t, err)

	require.Len(t, res.ServiceFiles, 2)
	assert.Equal(t, uint64(1), res.ServiceFiles[0].ServiceFileID)
	assert.InDelta(t, 200, res.ServiceFiles[0].AllSheetsTotal, 1e-9)
	assert.InDelta(t, 180, res.ServiceFiles[1].AllSheetsTotal, 1e-9)
	assert.InDelta(t, 380, res.LeadTotal, 1e-9)
}

func TestBillingService_UnknownLeadIsEmpty(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.billing.LeadBilling(context.Background(), 404)
	require.NoError(t, err)
	assert.Empty(t, res.ServiceFiles)
	assert.Zero(t, res.LeadTotal)
}

func TestBillingService_LegacyNotesMatchTrayDetails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tray := env.db.addTray(1, 1)
	legacy := service(tray.ID, serviceMotor, 2, 100)
	legacy.Notes = `{"discount_pct": 10}`
	env.db.addItem(legacy)

	sheet, err := env.billing.ServiceFileBilling(ctx, 1)
	require.NoError(t, err)
	require.Len(t, sheet.Trays, 1)
	assert.InDelta(t, 180, sheet.Trays[0].Total, 1e-9)

	details, err := env.trays.GetTray(ctx, tray.ID)
	require.NoError(t, err)
	assert.InDelta(t, sheet.Trays[0].Total, details.Totals.Total, 1e-9)
	require.Len(t, details.Items, 1)
	assert.InDelta(t, 10, details.Items[0].DiscountPct, 1e-9)

	list, err := env.items.ListItems(ctx, tray.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.InDelta(t, 180, list[0].Total, 1e-9)
}

func TestBillingService_ShippingWeightPerTray(t *testing.T) {
	env := newTestEnv(t)
	env.db.addItem(service(env.db.addTray(1, 1).ID, serviceMotor, 1, 200))
	env.db.addItem(service(env.db.addTray(1, 2).ID, serviceMotor, 1, 200))

	sheet, err := env.billing.ServiceFileBilling(context.Background(), 1)
	require.NoError(t, err)

	// одна машинка в каждом лотке: 1.2 + 1.2
	assert.InDelta(t, 2.4, sheet.ShippingWeight, 1e-9)
}
