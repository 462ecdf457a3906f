package entities

import "repair-crm/pkg/types"

// SubscriptionType - абонемент клиента, дающий отдельную скидку на услуги и/или запчасти.
type SubscriptionType string

const (
	SubscriptionNone     SubscriptionType = ""
	SubscriptionServices SubscriptionType = "services"
	SubscriptionParts    SubscriptionType = "parts"
	SubscriptionBoth     SubscriptionType = "both"
)

func (s SubscriptionType) CoversServices() bool {
	return s == SubscriptionServices || s == SubscriptionBoth
}

func (s SubscriptionType) CoversParts() bool {
	return s == SubscriptionParts || s == SubscriptionBoth
}

// ServiceFile - fișă: одна заявка клиента, владеющая одним или несколькими лотками.
type ServiceFile struct {
	ID               uint64           `json:"id" db:"id"`
	LeadID           uint64           `json:"lead_id" db:"lead_id"`
	Number           string           `json:"number" db:"number"`
	Stage            string           `json:"stage" db:"stage"`
	Details          string           `json:"details" db:"details"`
	SubscriptionType SubscriptionType `json:"subscription_type" db:"subscription_type"`

	types.BaseEntity
}
