package service

import (
	"context"
	"sync"
	"time"

	"chatpro/internal/model"
)

type fakeOracle struct {
	mu       sync.Mutex
	snaps    map[string]*model.MobileSnapshot
	plans    map[string]bool
	snapErr  error
	planErr  error
	putErr   error
	puts     int
	planHits int
}

func newFakeOracle() *fakeOracle {
	return &fakeOracle{snaps: map[string]*model.MobileSnapshot{}, plans: map[string]bool{}}
}

func (f *fakeOracle) GetMobileSnapshot(_ context.Context, userID string) (*model.MobileSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snapErr != nil {
		return nil, f.snapErr
	}
	return f.snaps[userID], nil
}

func (f *fakeOracle) PutMobileSnapshot(_ context.Context, userID string, snap model.MobileSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	f.puts++
	f.snaps[userID] = &snap
	return nil
}

func (f *fakeOracle) HasPlan(_ context.Context, userID, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.planHits++
	if f.planErr != nil {
		return false, f.planErr
	}
	return f.plans[userID], nil
}

type counterKey struct {
	userID   string
	resource model.ResourceClass
	bucket   string
}

type fakeUsageRepo struct {
	mu       sync.Mutex
	counts   map[counterKey]int64
	starts   map[counterKey]time.Time
	err      error
	calls    int
	pruneArg time.Time
}

func newFakeUsageRepo() *fakeUsageRepo {
	return &fakeUsageRepo{counts: map[counterKey]int64{}, starts: map[counterKey]time.Time{}}
}

func (f *fakeUsageRepo) Increment(_ context.Context, userID string, resource model.ResourceClass, bucket string, bucketStart time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	k := counterKey{userID, resource, bucket}
	f.counts[k]++
	f.starts[k] = bucketStart
	return f.counts[k], nil
}

func (f *fakeUsageRepo) GetCount(_ context.Context, userID string, resource model.ResourceClass, bucket string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	return f.counts[counterKey{userID, resource, bucket}], nil
}

func (f *fakeUsageRepo) PruneBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pruneArg = cutoff
	var n int64
	for k, start := range f.starts {
		if start.Before(cutoff) {
			delete(f.counts, k)
			delete(f.starts, k)
			n++
		}
	}
	return n, nil
}

type fakeSubRepo struct {
	mu      sync.Mutex
	records map[string]*model.SubscriptionRecord
	err     error
}

func newFakeSubRepo() *fakeSubRepo {
	return &fakeSubRepo{records: map[string]*model.SubscriptionRecord{}}
}

func (f *fakeSubRepo) GetSubscription(_ context.Context, userID string) (*model.SubscriptionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.records[userID], nil
}

func (f *fakeSubRepo) UpsertStripeSubscription(_ context.Context, in model.SubscriptionUpsert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	rec := f.records[in.UserID]
	if rec == nil {
		rec = &model.SubscriptionRecord{UserID: in.UserID, CreatedAt: time.Now()}
		f.records[in.UserID] = rec
	}
	rec.Plan = in.Plan
	rec.Status = in.Status
	rec.CurrentPeriodStart = in.CurrentPeriodStart
	rec.CurrentPeriodEnd = in.CurrentPeriodEnd
	if in.StripeCustomerID != "" {
		id := in.StripeCustomerID
		rec.StripeCustomerID = &id
	}
	if in.StripeSubscriptionID != "" {
		id := in.StripeSubscriptionID
		rec.StripeSubscriptionID = &id
	}
	rec.UpdatedAt = time.Now()
	return nil
}

func (f *fakeSubRepo) CancelByStripeSubscriptionID(_ context.Context, subID string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", false, f.err
	}
	for _, rec := range f.records {
		if rec.StripeSubscriptionID != nil && *rec.StripeSubscriptionID == subID {
			rec.Status = model.BillingStatusCanceled
			rec.Plan = model.PlanFree
			return rec.UserID, true, nil
		}
	}
	return "", false, nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]*model.User{}}
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[id], nil
}

func (f *fakeUserRepo) GetUserByStripeCustomerID(_ context.Context, customerID string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.StripeCustomerID != nil && *u.StripeCustomerID == customerID {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeUserRepo) SetStripeCustomerIDIfUnset(_ context.Context, userID, customerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.users[userID]
	if u == nil {
		u = &model.User{UserID: userID}
		f.users[userID] = u
	}
	if u.StripeCustomerID == nil || *u.StripeCustomerID == "" {
		u.StripeCustomerID = &customerID
	}
	return nil
}

func (f *fakeUserRepo) UpdateStripeCustomerID(_ context.Context, userID, customerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.users[userID]
	if u == nil {
		u = &model.User{UserID: userID}
		f.users[userID] = u
	}
	u.StripeCustomerID = &customerID
	return nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []model.EntitlementChanged
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, ev model.EntitlementChanged) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return n.err
}

type recordingArchive struct {
	mu       sync.Mutex
	payloads map[string][][]byte
	err      error
}

func (a *recordingArchive) Store(_ context.Context, provider string, payload []byte) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return "", a.err
	}
	if a.payloads == nil {
		a.payloads = map[string][][]byte{}
	}
	a.payloads[provider] = append(a.payloads[provider], payload)
	return provider + "/key", nil
}
