package model

import "time"

// Platform identifies the store a mobile subscription was purchased through.
type Platform string

const (
	PlatformAppStore    Platform = "app_store"
	PlatformPlayStore   Platform = "play_store"
	PlatformStripe      Platform = "stripe"
	PlatformPromotional Platform = "promotional"
	PlatformWeb         Platform = "web"
)

// SnapshotStatus is the normalized status of a mobile subscription.
type SnapshotStatus string

const (
	SnapshotActive       SnapshotStatus = "active"
	SnapshotExpired      SnapshotStatus = "expired"
	SnapshotCancelled    SnapshotStatus = "cancelled"
	SnapshotBillingIssue SnapshotStatus = "billing_issue"
)

// MobileSnapshot is the latest-wins subscription state stored in the user's
// identity metadata. Nil pointers encode null.
type MobileSnapshot struct {
	IsPro           bool            `json:"isPro"`
	Platform        *Platform       `json:"platform"`
	ExpiresAt       *time.Time      `json:"expiresAt"`
	ProductID       string          `json:"productId,omitempty"`
	Status          *SnapshotStatus `json:"status"`
	WillRenew       bool            `json:"willRenew"`
	IsInTrialPeriod bool            `json:"isInTrialPeriod"`
	LastUpdated     time.Time       `json:"lastUpdated"`
}

// IsEntitling reports whether the snapshot currently grants Pro.
func (s *MobileSnapshot) IsEntitling(now time.Time) bool {
	if s == nil || !s.IsPro {
		return false
	}
	if s.Status == nil || *s.Status != SnapshotActive {
		return false
	}
	return s.ExpiresAt == nil || s.ExpiresAt.After(now)
}
