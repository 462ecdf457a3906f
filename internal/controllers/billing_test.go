package controllers

import (
	"context"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"repair-crm/internal/dto"
	apperrors "repair-crm/pkg/errors"
)

type stubBillingService struct {
	sheet *dto.BillingSheetDTO
	err   error
}

func (s stubBillingService) ServiceFileBilling(context.Context, uint64) (*dto.BillingSheetDTO, error) {
	return s.sheet, s.err
}

func (s stubBillingService) LeadBilling(_ context.Context, leadID uint64) (*dto.LeadBillingDTO, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &dto.LeadBillingDTO{LeadID: leadID, ServiceFiles: []dto.BillingSheetDTO{*s.sheet}, LeadTotal: s.sheet.AllSheetsTotal}, nil
}

func billingFixture() *dto.BillingSheetDTO {
	return &dto.BillingSheetDTO{
		ServiceFileID:    2,
		LeadID:           7,
		SubscriptionType: "both",
		Trays: []dto.TrayBillingDTO{
			{TrayID: 1, Number: 1, Size: "M", Subtotal: 300, Total: 212, ItemCount: 2},
			{TrayID: 2, Number: 2, Size: "S", Subtotal: 100, Total: 81, ItemCount: 1},
		},
		AllSheetsTotal: 293,
		Totals:         dto.TotalsDTO{Subtotal: 400, Total: 293},
	}
}

func newBillingEcho(svc stubBillingService) *echo.Echo {
	e := echo.New()
	ctrl := NewBillingController(svc, zap.NewNop())
	e.GET("/billing/service-files/:id", ctrl.ServiceFileBilling)
	e.GET("/billing/leads/:id", ctrl.LeadBilling)
	return e
}

func TestBillingController_JSON(t *testing.T) {
	e := newBillingEcho(stubBillingService{sheet: billingFixture()})

	rec, resp := doJSON(e, http.MethodGet, "/billing/service-files/2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 293, resp.Body.(map[string]interface{})["all_sheets_total"])

	rec, resp = doJSON(e, http.MethodGet, "/billing/leads/7", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 7, resp.Body.(map[string]interface{})["lead_id"])
}

func TestBillingController_XLSX(t *testing.T) {
	e := newBillingEcho(stubBillingService{sheet: billingFixture()})

	rec, _ := doJSON(e, http.MethodGet, "/billing/service-files/2?format=xlsx", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "fisa_2_")

	f, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Счёт")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 3)
	assert.Equal(t, "Лоток", rows[0][0])
	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, "212", rows[1][6])

	var total []string
	for _, row := range rows {
		if len(row) > 0 && row[0] == "Всего" {
			total = row
		}
	}
	require.Len(t, total, 7)
	assert.Equal(t, "293", total[6])
}

func TestBillingController_NotFound(t *testing.T) {
	e := newBillingEcho(stubBillingService{err: apperrors.ErrNotFound})

	rec, resp := doJSON(e, http.MethodGet, "/billing/service-files/404", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, resp.Status)
}
