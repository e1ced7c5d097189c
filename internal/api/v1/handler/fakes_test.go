package handler

import (
	"context"
	"net/http"
	"time"

	"chatpro/internal/model"
	"chatpro/internal/service"
)

type fakeRevenueCat struct {
	result    *service.RevenueCatResult
	err       error
	signature string
	snap      *model.MobileSnapshot
	syncErr   error
	syncIn    model.MobileSyncInput
	caller    string
}

func (f *fakeRevenueCat) HandleWebhook(_ context.Context, _ []byte, signature string) (*service.RevenueCatResult, error) {
	f.signature = signature
	return f.result, f.err
}

func (f *fakeRevenueCat) SyncFromClient(_ context.Context, callerID string, in model.MobileSyncInput) (*model.MobileSnapshot, error) {
	f.caller, f.syncIn = callerID, in
	return f.snap, f.syncErr
}

type fakeStripe struct {
	eventType string
	err       error
	calls     int
}

func (f *fakeStripe) HandleWebhook(context.Context, []byte, string) (string, error) {
	f.calls++
	return f.eventType, f.err
}

type fakeBilling struct {
	url  string
	err  error
	plan string
}

func (f *fakeBilling) CreateCheckoutSession(_ context.Context, _ string, plan string) (string, error) {
	f.plan = plan
	return f.url, f.err
}

func (f *fakeBilling) CreatePortalSession(context.Context, string) (string, error) {
	return f.url, f.err
}

type fakeEntitlements struct {
	ent model.Entitlement
}

func (f *fakeEntitlements) Resolve(context.Context, string) model.Entitlement { return f.ent }

type fakeUsage struct {
	decision model.UsageDecision
	summary  *model.UsageSummary
	err      error
	resource model.ResourceClass
}

func (f *fakeUsage) CheckAndConsume(_ context.Context, _ string, resource model.ResourceClass) (model.UsageDecision, error) {
	f.resource = resource
	d := f.decision
	d.Resource = resource
	return d, f.err
}

func (f *fakeUsage) Summary(context.Context, string) (*model.UsageSummary, error) {
	return f.summary, f.err
}

func (f *fakeUsage) Prune(context.Context, time.Time) (int64, error) { return 0, nil }

func passThrough(next http.Handler) http.Handler { return next }
