package model

// MobileSyncInput is the client-reported purchase state used by the manual sync path.
type MobileSyncInput struct {
	IsPro               bool
	OriginalAppUserID   string
	ActiveSubscriptions []string
	Entitlements        []string
}
