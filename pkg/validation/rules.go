package validation

import (
	"github.com/go-playground/validator/v10"

	"repair-crm/pkg/constants"
)

// registerRules регистрирует теги, которые мы используем в struct tags
func registerRules(v *validator.Validate) error {
	if err := v.RegisterValidation("tray_size", isTraySize); err != nil {
		return err
	}
	if err := v.RegisterValidation("subscription_type", isSubscriptionType); err != nil {
		return err
	}
	if err := v.RegisterValidation("lock_flag", isLockFlag); err != nil {
		return err
	}
	if err := v.RegisterValidation("item_kind", isItemKind); err != nil {
		return err
	}
	return nil
}

func isTraySize(fl validator.FieldLevel) bool {
	return constants.IsTraySize(fl.Field().String())
}

func isSubscriptionType(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "", "services", "parts", "both":
		return true
	}
	return false
}

func isLockFlag(fl validator.FieldLevel) bool {
	flag := fl.Field().String()
	return flag == constants.LockOfficeDirect || flag == constants.LockCurierTrimis
}

// Пустая строка - позиция-инструмент без услуги.
func isItemKind(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "", "instrument", "service", "part":
		return true
	}
	return false
}
