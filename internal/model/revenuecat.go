package model

// RevenueCatEventType is the closed set of mobile purchase webhook event types.
type RevenueCatEventType string

const (
	EventInitialPurchase      RevenueCatEventType = "INITIAL_PURCHASE"
	EventRenewal              RevenueCatEventType = "RENEWAL"
	EventCancellation         RevenueCatEventType = "CANCELLATION"
	EventUncancellation       RevenueCatEventType = "UNCANCELLATION"
	EventNonRenewingPurchase  RevenueCatEventType = "NON_RENEWING_PURCHASE"
	EventExpiration           RevenueCatEventType = "EXPIRATION"
	EventBillingIssue         RevenueCatEventType = "BILLING_ISSUE"
	EventProductChange        RevenueCatEventType = "PRODUCT_CHANGE"
	EventTransfer             RevenueCatEventType = "TRANSFER"
	EventSubscriberAlias      RevenueCatEventType = "SUBSCRIBER_ALIAS"
	EventSubscriptionPaused   RevenueCatEventType = "SUBSCRIPTION_PAUSED"
	EventSubscriptionExtended RevenueCatEventType = "SUBSCRIPTION_EXTENDED"
)

// RevenueCatEventTypes lists every accepted event type.
var RevenueCatEventTypes = []RevenueCatEventType{
	EventInitialPurchase,
	EventRenewal,
	EventCancellation,
	EventUncancellation,
	EventNonRenewingPurchase,
	EventExpiration,
	EventBillingIssue,
	EventProductChange,
	EventTransfer,
	EventSubscriberAlias,
	EventSubscriptionPaused,
	EventSubscriptionExtended,
}

// Valid reports whether t belongs to the accepted enumeration.
func (t RevenueCatEventType) Valid() bool {
	for _, known := range RevenueCatEventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// GrantsAccess reports whether the event type can leave the user with an active subscription.
func (t RevenueCatEventType) GrantsAccess() bool {
	switch t {
	case EventInitialPurchase, EventRenewal, EventUncancellation,
		EventNonRenewingPurchase, EventProductChange, EventSubscriptionExtended:
		return true
	}
	return false
}

// RevenueCatEvent is the "event" object of a mobile purchase webhook body.
type RevenueCatEvent struct {
	Type           RevenueCatEventType `json:"type"`
	ID             string              `json:"id,omitempty"`
	AppUserID      string              `json:"app_user_id"`
	ProductID      string              `json:"product_id"`
	ExpirationAtMs *int64              `json:"expiration_at_ms"`
	EntitlementIDs []string            `json:"entitlement_ids"`
	PeriodType     string              `json:"period_type"`
	Store          string              `json:"store"`
}

// EntitlementChanged is published after a webhook changes a user's subscription state.
type EntitlementChanged struct {
	UserID     string `json:"user_id"`
	Provider   string `json:"provider"`
	EventType  string `json:"event_type"`
	IsPro      bool   `json:"is_pro"`
	Status     string `json:"status,omitempty"`
	OccurredAt int64  `json:"occurred_at"`
}
