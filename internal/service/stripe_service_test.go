package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"chatpro/internal/config"
	"chatpro/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripewebhook "github.com/stripe/stripe-go/v82/webhook"
)

const stripeSecret = "whsec_test_123"

type stripeFixture struct {
	svc      *StripeService
	subs     *fakeSubRepo
	users    *fakeUserRepo
	notifier *recordingNotifier
}

func newStripeFixture(t *testing.T) *stripeFixture {
	t.Helper()
	cfg := &config.Config{StripeWebhookSecret: stripeSecret, StripePriceProMonthly: "price_m", StripePriceProAnnual: "price_a"}
	subs := newFakeSubRepo()
	users := newFakeUserRepo()
	notifier := &recordingNotifier{}
	svc := NewStripeService(cfg, users, NewSubscriptionService(subs, zerolog.Nop()), &recordingArchive{}, notifier, zerolog.Nop())
	return &stripeFixture{svc: svc, subs: subs, users: users, notifier: notifier}
}

func signStripe(payload string) (string, []byte) {
	signed := stripewebhook.GenerateTestSignedPayload(&stripewebhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    stripeSecret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	return signed.Header, signed.Payload
}

func subscriptionEvent(eventType, subID, customer, status, metadata string) string {
	return fmt.Sprintf(`{"id":"evt_1","object":"event","type":%q,"data":{"object":{"id":%q,"object":"subscription","customer":%q,"status":%q,"metadata":%s,"items":{"object":"list","data":[{"id":"si_1","object":"subscription_item","current_period_start":1741564800,"current_period_end":1744243200}]}}}}`,
		eventType, subID, customer, status, metadata)
}

func TestStripeHandleWebhook_SubscriptionUpsert(t *testing.T) {
	f := newStripeFixture(t)
	header, payload := signStripe(subscriptionEvent("customer.subscription.created", "sub_1", "cus_1", "active", `{"user_id":"user_1"}`))

	et, err := f.svc.HandleWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	assert.Equal(t, "customer.subscription.created", et)

	rec := f.subs.records["user_1"]
	require.NotNil(t, rec)
	assert.Equal(t, model.PlanPro, rec.Plan)
	assert.Equal(t, "active", rec.Status)
	assert.Equal(t, model.PlanPro, rec.EffectivePlan())
	require.NotNil(t, rec.CurrentPeriodStart)
	assert.Equal(t, time.Unix(1741564800, 0).UTC(), *rec.CurrentPeriodStart)
	assert.Equal(t, time.Unix(1744243200, 0).UTC(), *rec.CurrentPeriodEnd)
	require.NotNil(t, f.users.users["user_1"])
	assert.Equal(t, "cus_1", *f.users.users["user_1"].StripeCustomerID)
	require.Len(t, f.notifier.events, 1)
	assert.True(t, f.notifier.events[0].IsPro)
}

func TestStripeHandleWebhook_StatusStoredVerbatim(t *testing.T) {
	f := newStripeFixture(t)
	header, payload := signStripe(subscriptionEvent("customer.subscription.updated", "sub_1", "cus_1", "past_due", `{"user_id":"user_1"}`))

	_, err := f.svc.HandleWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	rec := f.subs.records["user_1"]
	assert.Equal(t, "past_due", rec.Status)
	assert.Equal(t, model.PlanPro, rec.Plan)
	assert.Equal(t, model.PlanFree, rec.EffectivePlan())
}

func TestStripeHandleWebhook_CustomerFallback(t *testing.T) {
	f := newStripeFixture(t)
	cus := "cus_known"
	f.users.users["user_9"] = &model.User{UserID: "user_9", StripeCustomerID: &cus}

	header, payload := signStripe(subscriptionEvent("customer.subscription.updated", "sub_9", "cus_known", "active", `{}`))
	_, err := f.svc.HandleWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	assert.NotNil(t, f.subs.records["user_9"])

	header, payload = signStripe(subscriptionEvent("customer.subscription.updated", "sub_x", "cus_unknown", "active", `{}`))
	_, err = f.svc.HandleWebhook(context.Background(), payload, header)
	assert.ErrorIs(t, err, ErrUnresolvedUser)
	assert.True(t, IsClientError(err))
}

func TestStripeHandleWebhook_Deleted(t *testing.T) {
	f := newStripeFixture(t)
	header, payload := signStripe(subscriptionEvent("customer.subscription.created", "sub_1", "cus_1", "active", `{"user_id":"user_1"}`))
	_, err := f.svc.HandleWebhook(context.Background(), payload, header)
	require.NoError(t, err)

	header, payload = signStripe(subscriptionEvent("customer.subscription.deleted", "sub_1", "cus_1", "canceled", `{"user_id":"user_1"}`))
	_, err = f.svc.HandleWebhook(context.Background(), payload, header)
	require.NoError(t, err)

	rec := f.subs.records["user_1"]
	assert.Equal(t, model.BillingStatusCanceled, rec.Status)
	assert.Equal(t, model.PlanFree, rec.Plan)
	assert.Equal(t, model.PlanFree, rec.EffectivePlan())
}

func TestStripeHandleWebhook_DeletedWithoutMetadataNotifiesOwner(t *testing.T) {
	f := newStripeFixture(t)
	header, payload := signStripe(subscriptionEvent("customer.subscription.created", "sub_1", "cus_1", "active", `{"user_id":"user_1"}`))
	_, err := f.svc.HandleWebhook(context.Background(), payload, header)
	require.NoError(t, err)

	header, payload = signStripe(subscriptionEvent("customer.subscription.deleted", "sub_1", "cus_1", "canceled", `{}`))
	_, err = f.svc.HandleWebhook(context.Background(), payload, header)
	require.NoError(t, err)

	assert.Equal(t, model.BillingStatusCanceled, f.subs.records["user_1"].Status)
	require.Len(t, f.notifier.events, 2)
	last := f.notifier.events[1]
	assert.Equal(t, "user_1", last.UserID)
	assert.Equal(t, "customer.subscription.deleted", last.EventType)
	assert.Equal(t, model.BillingStatusCanceled, last.Status)
	assert.False(t, last.IsPro)
}

func TestStripeHandleWebhook_DeletedWithoutRecordIsNoop(t *testing.T) {
	f := newStripeFixture(t)
	header, payload := signStripe(subscriptionEvent("customer.subscription.deleted", "sub_missing", "cus_1", "canceled", `{}`))

	_, err := f.svc.HandleWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	assert.Empty(t, f.subs.records)
	assert.Empty(t, f.notifier.events)
}

func TestStripeHandleWebhook_IgnoresOtherTypes(t *testing.T) {
	f := newStripeFixture(t)
	header, payload := signStripe(`{"id":"evt_2","object":"event","type":"invoice.paid","data":{"object":{"id":"in_1","object":"invoice"}}}`)

	et, err := f.svc.HandleWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	assert.Equal(t, "invoice.paid", et)
	assert.Empty(t, f.subs.records)
}

func TestStripeHandleWebhook_BadSignature(t *testing.T) {
	f := newStripeFixture(t)
	_, payload := signStripe(subscriptionEvent("customer.subscription.created", "sub_1", "cus_1", "active", `{"user_id":"user_1"}`))

	_, err := f.svc.HandleWebhook(context.Background(), payload, "t=1,v1=deadbeef")
	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.Empty(t, f.subs.records)
}

func TestStripeHandleWebhook_StoreFailure(t *testing.T) {
	f := newStripeFixture(t)
	f.subs.err = errors.New("db down")
	header, payload := signStripe(subscriptionEvent("customer.subscription.updated", "sub_1", "cus_1", "active", `{"user_id":"user_1"}`))

	_, err := f.svc.HandleWebhook(context.Background(), payload, header)
	require.Error(t, err)
	assert.False(t, IsClientError(err))
}

func TestStripePriceForPlan(t *testing.T) {
	f := newStripeFixture(t)
	p, err := f.svc.priceForPlan("monthly")
	require.NoError(t, err)
	assert.Equal(t, "price_m", p)
	p, err = f.svc.priceForPlan("annual")
	require.NoError(t, err)
	assert.Equal(t, "price_a", p)
	_, err = f.svc.priceForPlan("lifetime")
	assert.ErrorIs(t, err, ErrInvalidPlan)
}
