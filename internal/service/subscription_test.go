package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vjpiles/backend/internal/contextkeys"
	"github.com/vjpiles/backend/internal/domain"
	"go.uber.org/zap/zaptest"
)

func newTestSubscriptionService(t *testing.T, h *flowHarness) *SubscriptionService {
	t.Helper()
	svc := NewSubscriptionService(h.flow, h.store, NewAuthService("secret"), time.Minute, zaptest.NewLogger(t))
	svc.now = func() time.Time { return testNow }
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
	})
	return svc
}

func authed(identity domain.Identity) context.Context {
	return contextkeys.WithIdentity(context.Background(), &identity)
}

func waitTerminal(t *testing.T, svc *SubscriptionService, userID string) domain.FlowProgress {
	t.Helper()
	ch, stop, err := svc.WatchCheckout(userID)
	require.NoError(t, err)
	defer stop()

	var last domain.FlowProgress
	timeout := time.After(5 * time.Second)
	for {
		select {
		case p, ok := <-ch:
			if !ok {
				require.True(t, last.Terminal, "stream closed before the terminal snapshot")
				return last
			}
			last = p
		case <-timeout:
			t.Fatal("checkout did not finish")
		}
	}
}

// neverTimer never fires, so a flow waits until its context ends.
type neverTimer struct{}

func (neverTimer) Start(time.Duration) {}
func (neverTimer) Stop() {}
func (neverTimer) C() <-chan time.Time { return nil }

func waitForever() backoff.Timer { return neverTimer{} }

func validCheckout() *domain.CheckoutRequest {
	return &domain.CheckoutRequest{Plan: "1week", Phone: "0771234567", Provider: "mtn"}
}

func TestSubscriptionService_CheckoutSucceeds(t *testing.T) {
	h := newFlowHarness(t, 30, false, newScriptedGateway(pending(), succeeded("TX-1")))
	svc := newTestSubscriptionService(t, h)

	resp, err := svc.StartCheckout(authed(viewer), validCheckout())
	require.NoError(t, err)
	assert.NotEmpty(t, resp.FlowID)
	assert.Equal(t, resp.FlowID, resp.Status.FlowID)

	final := waitTerminal(t, svc, viewer.UserID)
	assert.Equal(t, domain.StageSucceeded, final.Stage)
	assert.Equal(t, "Payment successful! Subscribed to 1 Week", final.Message)
	assert.Equal(t, resp.FlowID, final.FlowID)
	assert.Empty(t, final.ErrorKind)

	status, err := svc.CurrentSubscription(context.Background(), viewer.UserID)
	require.NoError(t, err)
	assert.Equal(t, "active", status.Status)
	assert.True(t, status.IsActive)
	assert.Equal(t, "1 Week", status.PlanName)
	assert.Equal(t, "7d 0h", status.Remaining)

	access, err := svc.HasAccess(context.Background(), &viewer)
	require.NoError(t, err)
	assert.True(t, access.Allowed)

	snap, err := svc.CheckoutStatus(viewer.UserID)
	require.NoError(t, err)
	assert.True(t, snap.Terminal)
}

func TestSubscriptionService_CheckoutDeclined(t *testing.T) {
	h := newFlowHarness(t, 30, false, newScriptedGateway(declined("Transaction declined by subscriber")))
	svc := newTestSubscriptionService(t, h)

	_, err := svc.StartCheckout(authed(viewer), validCheckout())
	require.NoError(t, err)

	final := waitTerminal(t, svc, viewer.UserID)
	assert.Equal(t, domain.StageFailed, final.Stage)
	assert.Equal(t, domain.KindPaymentFailed, final.ErrorKind)
	assert.Equal(t, "Transaction declined by subscriber", final.Message)

	access, err := svc.HasAccess(context.Background(), &viewer)
	require.NoError(t, err)
	assert.False(t, access.Allowed)
}

func TestSubscriptionService_RejectsConcurrentCheckout(t *testing.T) {
	h := newFlowHarness(t, 30, false, newScriptedGateway(pending()))
	h.flow.newTimer = waitForever
	svc := newTestSubscriptionService(t, h)

	_, err := svc.StartCheckout(authed(viewer), validCheckout())
	require.NoError(t, err)

	_, err = svc.StartCheckout(authed(viewer), validCheckout())
	require.Error(t, err)
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusConflict, appErr.Code)

	other := domain.Identity{UserID: "user-2", Email: "other@example.com"}
	_, err = svc.StartCheckout(authed(other), validCheckout())
	require.NoError(t, err, "other users are not blocked")

	require.NoError(t, svc.CancelCheckout(viewer.UserID))
	final := waitTerminal(t, svc, viewer.UserID)
	assert.Equal(t, domain.StageFailed, final.Stage)
	assert.Equal(t, domain.KindCancelled, final.ErrorKind)
	assert.Empty(t, h.store.subs)

	_, err = svc.StartCheckout(authed(viewer), validCheckout())
	assert.NoError(t, err, "a finished checkout does not block a new one")
}

func TestSubscriptionService_StartCheckoutValidation(t *testing.T) {
	tests := []struct {
		name string
		req  *domain.CheckoutRequest
	}{
		{"unknown plan", &domain.CheckoutRequest{Plan: "1year", Phone: "0771234567", Provider: "mtn"}},
		{"missing phone", &domain.CheckoutRequest{Plan: "1day", Provider: "mtn"}},
		{"unknown provider", &domain.CheckoutRequest{Plan: "1day", Phone: "0771234567", Provider: "visa"}},
		{"invalid phone", &domain.CheckoutRequest{Plan: "1day", Phone: "12345", Provider: "airtel"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newFlowHarness(t, 30, false, newScriptedGateway(succeeded("TX")))
			svc := newTestSubscriptionService(t, h)

			_, err := svc.StartCheckout(authed(viewer), tt.req)
			require.Error(t, err)
			appErr, ok := domain.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, http.StatusUnprocessableEntity, appErr.Code)
			assert.Empty(t, h.gateway.deposits)

			_, err = svc.CheckoutStatus(viewer.UserID)
			assert.Error(t, err, "no flow is registered")
		})
	}
}

func TestSubscriptionService_StartCheckoutRequiresIdentity(t *testing.T) {
	h := newFlowHarness(t, 30, false, newScriptedGateway(succeeded("TX")))
	svc := newTestSubscriptionService(t, h)

	_, err := svc.StartCheckout(context.Background(), validCheckout())
	require.Error(t, err)
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, appErr.Code)
	assert.Empty(t, h.gateway.deposits)
}

func TestSubscriptionService_CancelWithoutCheckout(t *testing.T) {
	h := newFlowHarness(t, 30, false, newScriptedGateway())
	svc := newTestSubscriptionService(t, h)

	assert.Error(t, svc.CancelCheckout(viewer.UserID))
	_, _, err := svc.WatchCheckout(viewer.UserID)
	assert.Error(t, err)
}

func TestSubscriptionService_HasAccess(t *testing.T) {
	h := newFlowHarness(t, 30, false, newScriptedGateway())
	svc := newTestSubscriptionService(t, h)
	ctx := context.Background()

	expired := &domain.Subscription{PlanID: "1day", Active: true, StartDate: testNow.AddDate(0, 0, -2), EndDate: testNow.AddDate(0, 0, -1)}
	require.NoError(t, h.store.SaveSubscription(ctx, "expired-user", expired))

	admin := domain.Identity{UserID: "admin-1", Role: "admin"}
	got, err := svc.HasAccess(ctx, &admin)
	require.NoError(t, err)
	assert.True(t, got.Allowed)

	got, err = svc.HasAccess(ctx, &domain.Identity{UserID: "expired-user"})
	require.NoError(t, err)
	assert.False(t, got.Allowed)
	assert.Equal(t, "subscription expired", got.Reason)

	got, err = svc.HasAccess(ctx, &domain.Identity{UserID: "new-user"})
	require.NoError(t, err)
	assert.False(t, got.Allowed)
	assert.Equal(t, "no subscription", got.Reason)
}

func TestSubscriptionService_ListSubscriptions(t *testing.T) {
	h := newFlowHarness(t, 30, false, newScriptedGateway())
	svc := newTestSubscriptionService(t, h)
	ctx := context.Background()

	require.NoError(t, h.store.SaveSubscription(ctx, "a", &domain.Subscription{
		PlanID: "3days", Active: true, StartDate: testNow, EndDate: testNow.Add(5 * time.Hour),
	}))

	list, err := svc.ListSubscriptions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "a", list[0].UserID)
	assert.Equal(t, "3 Days", list[0].PlanName)
	assert.Equal(t, "5h 0m", list[0].Remaining)
}

func TestSubscriptionService_ShutdownCancelsRunningCheckouts(t *testing.T) {
	h := newFlowHarness(t, 30, false, newScriptedGateway(pending()))
	h.flow.newTimer = waitForever
	svc := newTestSubscriptionService(t, h)

	_, err := svc.StartCheckout(authed(viewer), validCheckout())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, svc.Shutdown(ctx))

	snap, err := svc.CheckoutStatus(viewer.UserID)
	require.NoError(t, err)
	assert.True(t, snap.Terminal)
	assert.Equal(t, domain.KindCancelled, snap.ErrorKind)
}
