package model

import "time"

// ResourceClass is a metered free-tier resource.
type ResourceClass string

const (
	ResourceMessage      ResourceClass = "message"
	ResourceImage        ResourceClass = "image"
	ResourceDeepResearch ResourceClass = "deep_research"
)

// ResourceClasses lists every metered resource in display order.
var ResourceClasses = []ResourceClass{ResourceMessage, ResourceImage, ResourceDeepResearch}

// Valid reports whether r is a known resource class.
func (r ResourceClass) Valid() bool {
	switch r {
	case ResourceMessage, ResourceImage, ResourceDeepResearch:
		return true
	}
	return false
}

// Window returns the bucket length for the resource: an hour for messages,
// a day for everything else.
func (r ResourceClass) Window() time.Duration {
	if r == ResourceMessage {
		return time.Hour
	}
	return 24 * time.Hour
}

// BucketStart truncates t to the start of its calendar hour or day in t's
// location.
func (r ResourceClass) BucketStart(t time.Time) time.Time {
	if r == ResourceMessage {
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// BucketKey is the counter key component for the bucket containing t.
func (r ResourceClass) BucketKey(t time.Time) string {
	if r == ResourceMessage {
		return t.Format("2006-01-02T15")
	}
	return t.Format("2006-01-02")
}

// BucketEnd is the instant the bucket containing t resets.
func (r ResourceClass) BucketEnd(t time.Time) time.Time {
	start := r.BucketStart(t)
	if r == ResourceMessage {
		return start.Add(time.Hour)
	}
	return start.AddDate(0, 0, 1)
}

// UsageDecision is the result of a gate check.
type UsageDecision struct {
	Resource  ResourceClass `json:"resource"`
	Allowed   bool          `json:"allowed"`
	Unlimited bool          `json:"unlimited"`
	Count     int64         `json:"count"`
	Limit     int64         `json:"limit"`
	Remaining int64         `json:"remaining"`
	ResetsAt  *time.Time    `json:"resetsAt,omitempty"`
	// FailedOpen is set when the counter store was unavailable and the
	// request was allowed without metering.
	FailedOpen bool `json:"-"`
}

// UsageInfo is the read-only view of one resource for the settings page.
type UsageInfo struct {
	Resource  ResourceClass `json:"resource"`
	Count     int64         `json:"count"`
	Limit     int64         `json:"limit"`
	Unlimited bool          `json:"unlimited"`
	ResetsAt  time.Time     `json:"resetsAt"`
}

// UsageSummary is the settings-page view of a user's current quota.
type UsageSummary struct {
	IsPro  bool              `json:"isPro"`
	Source EntitlementSource `json:"source"`
	Usage  []UsageInfo       `json:"usage"`
}
