package model

import "time"

// PlanType is the plan stored on a web billing subscription record.
type PlanType string

const (
	PlanFree PlanType = "free"
	PlanPro  PlanType = "pro"
)

// Web billing statuses this service acts on. Any other provider status is
// stored verbatim.
const (
	BillingStatusActive   = "active"
	BillingStatusCanceled = "canceled"
)

// SubscriptionRecord mirrors the user_subscriptions row written by the
// Stripe webhook.
type SubscriptionRecord struct {
	UserID               string     `db:"user_id" json:"user_id"`
	Plan                 PlanType   `db:"plan" json:"plan"`
	Status               string     `db:"status" json:"status"`
	CurrentPeriodStart   *time.Time `db:"current_period_start" json:"current_period_start,omitempty"`
	CurrentPeriodEnd     *time.Time `db:"current_period_end" json:"current_period_end,omitempty"`
	StripeCustomerID     *string    `db:"stripe_customer_id" json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID *string    `db:"stripe_subscription_id" json:"stripe_subscription_id,omitempty"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updated_at"`
}

// EffectivePlan is the plan used for entitlement decisions. A record that is
// not active is always free, whatever plan string it still carries.
func (s *SubscriptionRecord) EffectivePlan() PlanType {
	if s == nil || s.Status != BillingStatusActive {
		return PlanFree
	}
	if s.Plan == PlanPro {
		return PlanPro
	}
	return PlanFree
}

// SubscriptionUpsert carries the fields written on customer.subscription.created/updated.
type SubscriptionUpsert struct {
	UserID               string
	Plan                 PlanType
	Status               string
	CurrentPeriodStart   *time.Time
	CurrentPeriodEnd     *time.Time
	StripeCustomerID     string
	StripeSubscriptionID string
}
