package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMobileSnapshot_IsEntitling(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	active := SnapshotActive
	cancelled := SnapshotCancelled
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	tests := []struct {
		name string
		snap *MobileSnapshot
		want bool
	}{
		{"nil snapshot", nil, false},
		{"not pro", &MobileSnapshot{IsPro: false, Status: &active}, false},
		{"null status", &MobileSnapshot{IsPro: true}, false},
		{"cancelled", &MobileSnapshot{IsPro: true, Status: &cancelled, ExpiresAt: &future}, false},
		{"active no expiry", &MobileSnapshot{IsPro: true, Status: &active}, true},
		{"active future expiry", &MobileSnapshot{IsPro: true, Status: &active, ExpiresAt: &future}, true},
		{"active past expiry", &MobileSnapshot{IsPro: true, Status: &active, ExpiresAt: &past}, false},
		{"expiry equal to now", &MobileSnapshot{IsPro: true, Status: &active, ExpiresAt: &now}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.snap.IsEntitling(now))
		})
	}
}

func TestSubscriptionRecord_EffectivePlan(t *testing.T) {
	tests := []struct {
		name string
		rec  *SubscriptionRecord
		want PlanType
	}{
		{"nil", nil, PlanFree},
		{"active pro", &SubscriptionRecord{Plan: PlanPro, Status: "active"}, PlanPro},
		{"canceled pro", &SubscriptionRecord{Plan: PlanPro, Status: "canceled"}, PlanFree},
		{"past due pro", &SubscriptionRecord{Plan: PlanPro, Status: "past_due"}, PlanFree},
		{"active free", &SubscriptionRecord{Plan: PlanFree, Status: "active"}, PlanFree},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rec.EffectivePlan())
		})
	}
}

func TestResourceClass_Buckets(t *testing.T) {
	at := time.Date(2025, 3, 10, 14, 37, 12, 0, time.UTC)

	assert.Equal(t, "2025-03-10T14", ResourceMessage.BucketKey(at))
	assert.Equal(t, time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC), ResourceMessage.BucketStart(at))
	assert.Equal(t, time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC), ResourceMessage.BucketEnd(at))
	assert.Equal(t, time.Hour, ResourceMessage.Window())

	for _, r := range []ResourceClass{ResourceImage, ResourceDeepResearch} {
		assert.Equal(t, "2025-03-10", r.BucketKey(at))
		assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), r.BucketStart(at))
		assert.Equal(t, time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC), r.BucketEnd(at))
		assert.Equal(t, 24*time.Hour, r.Window())
	}

	boundary := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)
	assert.NotEqual(t, ResourceMessage.BucketKey(boundary.Add(-time.Nanosecond)), ResourceMessage.BucketKey(boundary))
}

func TestResourceClass_BucketsFollowLocation(t *testing.T) {
	zone := time.FixedZone("UTC+5:30", 5*3600+1800)
	at := time.Date(2025, 3, 10, 0, 20, 0, 0, zone)

	assert.Equal(t, "2025-03-10T00", ResourceMessage.BucketKey(at))
	assert.Equal(t, "2025-03-10", ResourceImage.BucketKey(at))
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, zone), ResourceImage.BucketStart(at))
	assert.Equal(t, time.Date(2025, 3, 11, 0, 0, 0, 0, zone), ResourceImage.BucketEnd(at))
	assert.Equal(t, "2025-03-09", ResourceImage.BucketKey(at.UTC()))
}

func TestResourceClass_Valid(t *testing.T) {
	for _, r := range ResourceClasses {
		assert.True(t, r.Valid())
	}
	assert.False(t, ResourceClass("video").Valid())
	assert.False(t, ResourceClass("").Valid())
}

func TestRevenueCatEventType(t *testing.T) {
	assert.Len(t, RevenueCatEventTypes, 12)
	assert.True(t, EventRenewal.Valid())
	assert.False(t, RevenueCatEventType("TEST").Valid())
	assert.True(t, EventProductChange.GrantsAccess())
	assert.False(t, EventExpiration.GrantsAccess())
	assert.False(t, EventCancellation.GrantsAccess())
}
