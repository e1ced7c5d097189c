package dto

import "chatpro/internal/model"

// SubscriptionCheckoutRequest selects the web billing plan to purchase.
type SubscriptionCheckoutRequest struct {
	Plan string `json:"plan" validate:"required,oneof=monthly annual"`
}

// URLResponse carries a hosted Stripe page URL.
type URLResponse struct {
	URL string `json:"url"`
}

// MobileCustomerInfo is the subset of the mobile SDK's customer info sent on manual sync.
type MobileCustomerInfo struct {
	OriginalAppUserID   string   `json:"originalAppUserId" validate:"required"`
	ActiveSubscriptions []string `json:"activeSubscriptions"`
	Entitlements        []string `json:"entitlements"`
}

// MobileSyncRequest is sent by the mobile client after a purchase or restore.
type MobileSyncRequest struct {
	IsPro        *bool              `json:"isPro" validate:"required"`
	CustomerInfo MobileCustomerInfo `json:"customerInfo"`
}

// MobileSyncResponse echoes the snapshot that was stored.
type MobileSyncResponse struct {
	Synced       bool                 `json:"synced"`
	Subscription model.MobileSnapshot `json:"subscription"`
}
