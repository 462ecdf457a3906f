package errors

import (
	"errors"
	"fmt"
)

var (
	// Контекст
	ErrUserIDNotFoundInContext = fmt.Errorf("UserID не найден в контексте запроса")
	ErrInvalidUserID           = fmt.Errorf("недопустимый UserID")

	// Общие
	ErrNotFound       = fmt.Errorf("запись не найдена")
	ErrBadRequest     = fmt.Errorf("неверный запрос")
	ErrConflict       = fmt.Errorf("конфликт данных")
	ErrInternalServer = fmt.Errorf("внутренняя ошибка сервера")
)

// Kind - класс ошибки движка. По нему транспорт выбирает HTTP-код.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindResolution  Kind = "resolution"
	KindPersistence Kind = "persistence"
	KindPolicy      Kind = "policy"
)

// Коды причин, которые видит клиент.
const (
	CodeInvalidQty         = "INVALID_QTY"
	CodeInvalidDiscount    = "INVALID_DISCOUNT"
	CodeInvalidPrice       = "INVALID_PRICE"
	CodeMissingTarget      = "MISSING_TARGET"
	CodeMissingInstrument  = "MISSING_INSTRUMENT"
	CodeSameTray           = "SAME_TRAY"
	CodeForeignTray        = "FOREIGN_TRAY"
	CodeInvalidFlag        = "INVALID_LOCK_FLAG"
	CodeInvalidItem        = "INVALID_ITEM"
	CodeInstrumentMissing  = "INSTRUMENT_UNRESOLVED"
	CodePipelineMissing    = "PIPELINE_UNRESOLVED"
	CodeStageMissing       = "STAGE_UNRESOLVED"
	CodeEmptyGroup         = "EMPTY_GROUP"
	CodeCatalogMissing     = "CATALOG_ENTRY_MISSING"
	CodeTrayLocked         = "TRAY_LOCKED"
	CodeTrayNotEmpty       = "TRAY_NOT_EMPTY"
	CodeTrayNumberTaken    = "TRAY_NUMBER_TAKEN"
	CodeNoDeliveryFlag     = "NO_DELIVERY_FLAG"
	CodeAlreadyDispatched  = "ALREADY_DISPATCHED"
	CodeNotDispatched      = "NOT_DISPATCHED"
	CodeWrongPipelineKind  = "WRONG_PIPELINE_KIND"
	CodeBatchWriteFailed   = "BATCH_WRITE_FAILED"
	CodeStorageUnavailable = "STORAGE_UNAVAILABLE"
	CodeOperationCanceled  = "OPERATION_CANCELED"
)

// EngineError - ошибка операции движка с классом и кодом причины.
type EngineError struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *EngineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s [%s]: %s: %v", e.Kind, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Kind, e.Code, e.Message)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

func NewValidationError(code, message string) error {
	return &EngineError{Kind: KindValidation, Code: code, Message: message}
}

func NewResolutionError(code, message string) error {
	return &EngineError{Kind: KindResolution, Code: code, Message: message}
}

func NewPolicyViolation(code, message string) error {
	return &EngineError{Kind: KindPolicy, Code: code, Message: message}
}

// NewPersistenceError оборачивает ошибку хранилища. Ошибки движка пробрасываются как есть,
// чтобы откат транзакции не "перекрашивал" причину.
func NewPersistenceError(code, message string, err error) error {
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return err
	}
	return &EngineError{Kind: KindPersistence, Code: code, Message: message, Err: err}
}

// KindOf возвращает класс ошибки движка, если он есть.
func KindOf(err error) (Kind, bool) {
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return engineErr.Kind, true
	}
	return "", false
}

func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

func CodeOf(err error) string {
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return engineErr.Code
	}
	return ""
}

// HttpError - ошибка транспортного уровня (неверный id в URL, битое тело запроса).
type HttpError struct {
	Code    int
	Message string
	Err     error
	Context map[string]interface{}
	Details interface{}
}

func (e *HttpError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *HttpError) Unwrap() error {
	return e.Err
}

func NewHttpError(code int, message string, err error, ctx map[string]interface{}) *HttpError {
	return &HttpError{Code: code, Message: message, Err: err, Context: ctx}
}
