package model

import "time"

// EntitlementSource names the subscription source that granted (or did not
// grant) Pro.
type EntitlementSource string

const (
	SourceRevenueCat EntitlementSource = "revenuecat"
	SourceClerk      EntitlementSource = "clerk"
	SourceNone       EntitlementSource = "none"
)

// Entitlement is the per-request entitlement decision. It is never persisted.
type Entitlement struct {
	IsPro           bool              `json:"isPro"`
	Source          EntitlementSource `json:"source"`
	ExpiresAt       *time.Time        `json:"expiresAt"`
	Platform        *Platform         `json:"platform"`
	WillRenew       bool              `json:"willRenew"`
	IsInTrialPeriod bool              `json:"isInTrialPeriod"`
}

// NoEntitlement is the free-tier decision.
func NoEntitlement() Entitlement {
	return Entitlement{IsPro: false, Source: SourceNone}
}
