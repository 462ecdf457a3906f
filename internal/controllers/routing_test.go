package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"repair-crm/internal/dto"
	"repair-crm/pkg/constants"
	apperrors "repair-crm/pkg/errors"
	"repair-crm/pkg/middleware"
	"repair-crm/pkg/utils"
	"repair-crm/pkg/validation"
)

type MockRoutingService struct {
	mock.Mock
}

func (m *MockRoutingService) MoveInstrumentGroup(ctx context.Context, payload dto.MoveGroupDTO) (*dto.MoveResultDTO, error) {
	args := m.Called(ctx, payload)
	res, _ := args.Get(0).(*dto.MoveResultDTO)
	return res, args.Error(1)
}

func (m *MockRoutingService) DispatchToDepartments(ctx context.Context, serviceFileID uint64) (*dto.DispatchResultDTO, error) {
	args := m.Called(ctx, serviceFileID)
	res, _ := args.Get(0).(*dto.DispatchResultDTO)
	return res, args.Error(1)
}

func (m *MockRoutingService) stage(ctx context.Context, name string, payload dto.StageTransitionDTO) (*dto.StageTransitionResultDTO, error) {
	args := m.Called(ctx, name, payload)
	res, _ := args.Get(0).(*dto.StageTransitionResultDTO)
	return res, args.Error(1)
}

func (m *MockRoutingService) MarkInLucru(ctx context.Context, payload dto.StageTransitionDTO) (*dto.StageTransitionResultDTO, error) {
	return m.stage(ctx, constants.StageInLucru, payload)
}

func (m *MockRoutingService) MarkFinalizare(ctx context.Context, payload dto.StageTransitionDTO) (*dto.StageTransitionResultDTO, error) {
	return m.stage(ctx, constants.StageFinalizata, payload)
}

func (m *MockRoutingService) MarkAsteptPiese(ctx context.Context, payload dto.StageTransitionDTO) (*dto.StageTransitionResultDTO, error) {
	return m.stage(ctx, constants.StageAsteptPiese, payload)
}

func (m *MockRoutingService) MarkInAsteptare(ctx context.Context, payload dto.StageTransitionDTO) (*dto.StageTransitionResultDTO, error) {
	return m.stage(ctx, constants.StageInAsteptare, payload)
}

func newRoutingEcho(svc *MockRoutingService) *echo.Echo {
	e := echo.New()
	e.Validator = validation.New()
	api := e.Group("/api", middleware.NewActorMiddleware(zap.NewNop()).Handle)

	ctrl := NewRoutingController(svc, zap.NewNop())
	api.POST("/routing/move", ctrl.MoveInstrumentGroup)
	api.POST("/service-files/:id/dispatch", ctrl.DispatchToDepartments)
	api.POST("/routing/stage/:action", ctrl.ChangeStage)
	return e
}

func doJSON(e *echo.Echo, method, target, body string, headers map[string]string) (*httptest.ResponseRecorder, utils.HTTPResponse) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var resp utils.HTTPResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	return rec, resp
}

func TestRoutingController_MoveInstrumentGroup(t *testing.T) {
	svc := new(MockRoutingService)
	target := uint64(8)
	payload := dto.MoveGroupDTO{SourceTrayID: 3, InstrumentID: 1, TargetTrayID: &target}
	svc.On("MoveInstrumentGroup", mock.Anything, payload).
		Return(&dto.MoveResultDTO{TxID: "tx-1", SourceTrayID: 3, MovedItemIDs: []uint64{10, 11}}, nil).Once()

	rec, resp := doJSON(newRoutingEcho(svc), http.MethodPost, "/api/routing/move",
		`{"source_tray_id": 3, "instrument_id": 1, "target_tray_id": 8}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Status)
	assert.Equal(t, "tx-1", resp.Body.(map[string]interface{})["tx_id"])
	svc.AssertExpectations(t)
}

func TestRoutingController_MoveRejectsBadBody(t *testing.T) {
	svc := new(MockRoutingService)
	e := newRoutingEcho(svc)

	rec, resp := doJSON(e, http.MethodPost, "/api/routing/move", `{"instrument_id": 1}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, resp.Status)

	rec, _ = doJSON(e, http.MethodPost, "/api/routing/move", `{"source_tray_id": "три"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	svc.AssertNotCalled(t, "MoveInstrumentGroup", mock.Anything, mock.Anything)
}

func TestRoutingController_EngineErrorsMapToStatus(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"политика", apperrors.NewPolicyViolation(apperrors.CodeTrayLocked, "Лоток заблокирован"), http.StatusConflict, apperrors.CodeTrayLocked},
		{"валидация", apperrors.NewValidationError(apperrors.CodeSameTray, "Лоток совпадает"), http.StatusBadRequest, apperrors.CodeSameTray},
		{"разрешение", apperrors.NewResolutionError(apperrors.CodePipelineMissing, "Нет конвейера"), http.StatusUnprocessableEntity, apperrors.CodePipelineMissing},
		{"хранилище", apperrors.NewPersistenceError(apperrors.CodeBatchWriteFailed, "Сбой записи", context.DeadlineExceeded), http.StatusServiceUnavailable, apperrors.CodeBatchWriteFailed},
		{"отмена", apperrors.NewPersistenceError(apperrors.CodeOperationCanceled, "Операция прервана", context.Canceled), http.StatusServiceUnavailable, apperrors.CodeOperationCanceled},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := new(MockRoutingService)
			svc.On("DispatchToDepartments", mock.Anything, uint64(5)).Return(nil, tc.err)

			rec, resp := doJSON(newRoutingEcho(svc), http.MethodPost, "/api/service-files/5/dispatch", "", nil)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.code, resp.Code)
		})
	}
}

func TestRoutingController_DispatchBadID(t *testing.T) {
	svc := new(MockRoutingService)
	rec, _ := doJSON(newRoutingEcho(svc), http.MethodPost, "/api/service-files/0/dispatch", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "DispatchToDepartments", mock.Anything, mock.Anything)
}

func TestRoutingController_ChangeStage(t *testing.T) {
	svc := new(MockRoutingService)
	payload := dto.StageTransitionDTO{TrayID: 4, InstrumentID: 2}
	departmentView := mock.MatchedBy(func(ctx context.Context) bool {
		userID, err := utils.GetUserIDFromCtx(ctx)
		return err == nil && userID == 12 && utils.GetViewFromCtx(ctx) == constants.ViewDepartment
	})
	svc.On("stage", departmentView, constants.StageInLucru, payload).
		Return(&dto.StageTransitionResultDTO{StageName: constants.StageInLucru, ItemIDs: []uint64{1}}, nil).Once()
	svc.On("stage", mock.Anything, constants.StageAsteptPiese, payload).
		Return(nil, apperrors.NewResolutionError(apperrors.CodeStageMissing, "Этап не найден")).Once()
	e := newRoutingEcho(svc)

	rec, resp := doJSON(e, http.MethodPost, "/api/routing/stage/in-lucru", `{"tray_id": 4, "instrument_id": 2}`,
		map[string]string{middleware.HeaderUserID: "12", middleware.HeaderViewContext: "Department"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, constants.StageInLucru, resp.Body.(map[string]interface{})["stage_name"])

	rec, resp = doJSON(e, http.MethodPost, "/api/routing/stage/astept-piese", `{"tray_id": 4, "instrument_id": 2}`, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, apperrors.CodeStageMissing, resp.Code)

	rec, _ = doJSON(e, http.MethodPost, "/api/routing/stage/arhivare", `{"tray_id": 4, "instrument_id": 2}`, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	svc.AssertExpectations(t)
}
