package services

import (
	"repair-crm/internal/entities"
	"repair-crm/pkg/config"
)

// PricingRules - ставки надбавок и скидок. Все доли, не проценты.
type PricingRules struct {
	UrgentRate              float64
	ServiceSubscriptionRate float64
	PartSubscriptionRate    float64
}

func DefaultPricingRules() PricingRules {
	return PricingRules{UrgentRate: 0.30, ServiceSubscriptionRate: 0.10, PartSubscriptionRate: 0.05}
}

func PricingRulesFromConfig(cfg config.PricingConfig) PricingRules {
	return PricingRules{
		UrgentRate:              cfg.UrgentRate,
		ServiceSubscriptionRate: cfg.ServiceSubscriptionRate,
		PartSubscriptionRate:    cfg.PartSubscriptionRate,
	}
}

// LineAmounts - расчёт одной позиции до абонементной скидки.
type LineAmounts struct {
	Base          float64 `json:"base"`
	Discount      float64 `json:"discount"`
	AfterDiscount float64 `json:"after_discount"`
	Urgent        float64 `json:"urgent"`
}

type Totals struct {
	Subtotal             float64 `json:"subtotal"`
	TotalDiscount        float64 `json:"total_discount"`
	UrgentAmount         float64 `json:"urgent_amount"`
	SubscriptionDiscount float64 `json:"subscription_discount"`
	Total                float64 `json:"total"`
}

func (t Totals) Add(other Totals) Totals {
	return Totals{
		Subtotal:             t.Subtotal + other.Subtotal,
		TotalDiscount:        t.TotalDiscount + other.TotalDiscount,
		UrgentAmount:         t.UrgentAmount + other.UrgentAmount,
		SubscriptionDiscount: t.SubscriptionDiscount + other.SubscriptionDiscount,
		Total:                t.Total + other.Total,
	}
}

func ClampDiscount(pct float64) float64 {
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// ComputeLine считает позицию. Срочность начисляется на сумму после скидки.
func ComputeLine(item entities.TrayItem, rules PricingRules) LineAmounts {
	base := float64(item.Qty) * item.Price
	discount := base * ClampDiscount(item.DiscountPct) / 100
	afterDiscount := base - discount

	var urgent float64
	if item.Urgent {
		urgent = afterDiscount * rules.UrgentRate
	}

	return LineAmounts{Base: base, Discount: discount, AfterDiscount: afterDiscount, Urgent: urgent}
}

// subscriptionDiscount: услуги получают скидку с учётом срочности, запчасти - без неё.
func subscriptionDiscount(item entities.TrayItem, line LineAmounts, subscription entities.SubscriptionType, rules PricingRules) float64 {
	switch item.Kind {
	case entities.ItemKindService:
		if subscription.CoversServices() {
			return (line.AfterDiscount + line.Urgent) * rules.ServiceSubscriptionRate
		}
	case entities.ItemKindPart:
		if subscription.CoversParts() {
			return line.AfterDiscount * rules.PartSubscriptionRate
		}
	}
	return 0
}

// ComputeTotals агрегирует видимые позиции. Инструменты-заглушки в суммы не входят,
// отрицательный итог не исправляется.
func ComputeTotals(items []entities.TrayItem, subscription entities.SubscriptionType, rules PricingRules) Totals {
	var totals Totals
	for _, item := range items {
		if !item.Kind.Billable() {
			continue
		}
		line := ComputeLine(item, rules)
		totals.Subtotal += line.Base
		totals.TotalDiscount += line.Discount
		totals.UrgentAmount += line.Urgent
	}

	for _, item := range items {
		if !item.Kind.Billable() {
			continue
		}
		totals.SubscriptionDiscount += subscriptionDiscount(item, ComputeLine(item, rules), subscription, rules)
	}

	totals.Total = totals.Subtotal - totals.TotalDiscount + totals.UrgentAmount - totals.SubscriptionDiscount
	return totals
}

// ItemTotal - итог одной позиции по той же формуле.
func ItemTotal(item entities.TrayItem, subscription entities.SubscriptionType, rules PricingRules) float64 {
	return ComputeTotals([]entities.TrayItem{item}, subscription, rules).Total
}
