package domain

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemainingTime(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		end  time.Time
		want string
	}{
		{"past", now.Add(-time.Minute), "Expired"},
		{"exactly now", now, "Expired"},
		{"days and hours", now.Add(3*24*time.Hour + 4*time.Hour + 30*time.Minute), "3d 4h"},
		{"hours and minutes", now.Add(5*time.Hour + 12*time.Minute), "5h 12m"},
		{"minutes", now.Add(7*time.Minute + 59*time.Second), "7m"},
		{"under a minute", now.Add(30 * time.Second), "0m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RemainingTime(tt.end, now))
		})
	}
}

func TestSubscription_IsActiveAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sub := &Subscription{Active: true, EndDate: now.Add(time.Hour)}

	assert.True(t, sub.IsActiveAt(now))
	assert.False(t, sub.IsActiveAt(now.Add(time.Hour)))

	sub.Active = false
	assert.False(t, sub.IsActiveAt(now))

	var missing *Subscription
	assert.False(t, missing.IsActiveAt(now))
}

func TestNewSubscriptionStatus(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	none := NewSubscriptionStatus("u", nil, now)
	assert.Equal(t, "none", none.Status)
	assert.False(t, none.IsActive)

	active := NewSubscriptionStatus("u", &Subscription{PlanID: "3days", Active: true, EndDate: now.Add(26 * time.Hour)}, now)
	assert.Equal(t, "active", active.Status)
	assert.True(t, active.IsActive)
	assert.Equal(t, "3 Days", active.PlanName)
	assert.Equal(t, "1d 2h", active.Remaining)

	expired := NewSubscriptionStatus("u", &Subscription{PlanID: "legacy", Active: true, EndDate: now.Add(-time.Hour)}, now)
	assert.Equal(t, "expired", expired.Status)
	assert.Equal(t, "legacy", expired.PlanName)
	assert.Equal(t, "Expired", expired.Remaining)
}

func TestPlans(t *testing.T) {
	plans := AvailablePlans()
	require.Len(t, plans, 5)

	seen := make(map[string]bool)
	for _, p := range plans {
		assert.False(t, seen[p.ID], "duplicate plan %s", p.ID)
		seen[p.ID] = true
		assert.Positive(t, p.Price)
		assert.Positive(t, p.Days)
	}

	p, ok := FindPlan("1month")
	require.True(t, ok)
	assert.Equal(t, int64(15000), p.Price)
	assert.Equal(t, 30, p.Days)

	_, ok = FindPlan("lifetime")
	assert.False(t, ok)
}

func TestPaymentOutcome_Err(t *testing.T) {
	assert.NoError(t, PaymentOutcome{State: StateSucceeded}.Err())
	assert.True(t, IsPaymentError(PaymentOutcome{State: StateFailed, Reason: "declined"}.Err(), KindPaymentFailed))
	assert.True(t, IsPaymentError(PaymentOutcome{State: StateTimedOut, Attempts: 30}.Err(), KindTimedOut))
	assert.Contains(t, PaymentOutcome{State: StateTimedOut, Attempts: 30}.Err().Error(), "30 attempts")
}

func TestAsAppError(t *testing.T) {
	appErr, ok := AsAppError(ErrConflict("busy"))
	require.True(t, ok)
	assert.Equal(t, http.StatusConflict, appErr.Code)

	cause := errors.New("socket closed")
	appErr, ok = AsAppError(NewInitiationError("payment request failed", cause))
	require.True(t, ok)
	assert.Equal(t, http.StatusBadGateway, appErr.Code)
	assert.Equal(t, "payment request failed", appErr.Message)
	assert.ErrorIs(t, appErr, cause)

	_, ok = AsAppError(errors.New("plain"))
	assert.False(t, ok)
}

func TestIdentity(t *testing.T) {
	assert.Equal(t, "Unknown", (&Identity{UserID: "u"}).DisplayLabel())
	assert.Equal(t, "a@example.com", (&Identity{Email: "a@example.com"}).DisplayLabel())
	assert.True(t, (&Identity{Role: "admin"}).IsAdmin())
	assert.False(t, (&Identity{Role: "user"}).IsAdmin())
}
