// Файл: internal/dto/billing-dto.go

package dto

type TrayBillingDTO struct {
	TrayID       uint64  `json:"tray_id"`
	Number       int     `json:"number"`
	Size         string  `json:"size"`
	Subtotal     float64 `json:"subtotal"`
	Discount     float64 `json:"discount"`
	Urgent       float64 `json:"urgent"`
	Subscription float64 `json:"subscription"`
	Total        float64 `json:"total"`
	IsCash       bool    `json:"is_cash"`
	IsCard       bool    `json:"is_card"`
	ItemCount    int     `json:"item_count"`
}

// BillingSheetDTO - данные для модуля счёта/печати по одной fișă.
type BillingSheetDTO struct {
	ServiceFileID    uint64           `json:"service_file_id"`
	LeadID           uint64           `json:"lead_id"`
	SubscriptionType string           `json:"subscription_type"`
	Trays            []TrayBillingDTO `json:"trays"`
	AllSheetsTotal   float64          `json:"all_sheets_total"`
	Totals           TotalsDTO        `json:"totals"`
	ShippingWeight   float64          `json:"shipping_weight"`
}

type LeadBillingDTO struct {
	LeadID       uint64            `json:"lead_id"`
	ServiceFiles []BillingSheetDTO `json:"service_files"`
	LeadTotal    float64           `json:"lead_total"`
}
