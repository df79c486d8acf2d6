package domain

import (
	"fmt"
	"time"
)

// TransactionTypeSubscription tags audit entries written for subscription purchases.
const TransactionTypeSubscription = "subscription"

// Subscription is the record stored under subscriptions/{userId}.
// A renewal replaces the whole record.
type Subscription struct {
	PlanID                string    `json:"planId"`
	PlanName              string    `json:"planName"`
	Amount                int64     `json:"amount"`
	PhoneNumber           string    `json:"phoneNumber"`
	PaymentProvider       string    `json:"paymentProvider"`
	PaymentReference      string    `json:"paymentReference"`
	InternalReference     string    `json:"internalReference"`
	CustomerReference     string    `json:"customerReference"`
	ProviderTransactionID string    `json:"providerTransactionId"`
	StartDate             time.Time `json:"startDate"`
	EndDate               time.Time `json:"endDate"`
	Active                bool      `json:"active"`
	CreatedAt             time.Time `json:"createdAt"`
}

// IsActiveAt reports whether the subscription grants access at t.
// Expiry is never written back; it is derived from EndDate on read.
func (s *Subscription) IsActiveAt(t time.Time) bool {
	return s != nil && s.Active && s.EndDate.After(t)
}

// Transaction is an audit entry stored under walletTransactions/{timestamp}.
type Transaction struct {
	Type                  string    `json:"type"`
	UserID                string    `json:"userId"`
	UserName              string    `json:"userName"`
	Amount                int64     `json:"amount"`
	PlanName              string    `json:"planName"`
	PaymentReference      string    `json:"paymentReference"`
	InternalReference     string    `json:"internalReference"`
	ProviderTransactionID string    `json:"providerTransactionId"`
	Timestamp             time.Time `json:"timestamp"`
}

// UserSubscription pairs a stored subscription with its owner.
type UserSubscription struct {
	UserID       string        `json:"userId"`
	Subscription *Subscription `json:"subscription"`
}

// SubscriptionStatus is the API view of a user's subscription.
type SubscriptionStatus struct {
	UserID       string        `json:"userId,omitempty"`
	Status       string        `json:"status"` // none, active, expired
	IsActive     bool          `json:"isActive"`
	PlanName     string        `json:"planName,omitempty"`
	Remaining    string        `json:"remaining,omitempty"`
	Subscription *Subscription `json:"subscription,omitempty"`
}

// NewSubscriptionStatus derives the status view of sub at now.
func NewSubscriptionStatus(userID string, sub *Subscription, now time.Time) *SubscriptionStatus {
	if sub == nil {
		return &SubscriptionStatus{UserID: userID, Status: "none"}
	}
	status := "expired"
	if sub.IsActiveAt(now) {
		status = "active"
	}
	return &SubscriptionStatus{
		UserID:       userID,
		Status:       status,
		IsActive:     status == "active",
		PlanName:     PlanName(sub.PlanID),
		Remaining:    RemainingTime(sub.EndDate, now),
		Subscription: sub,
	}
}

// RemainingTime renders the time left until end as "3d 4h", "5h 12m", "7m" or "Expired".
func RemainingTime(end, now time.Time) string {
	diff := end.Sub(now)
	if diff <= 0 {
		return "Expired"
	}

	days := int(diff / (24 * time.Hour))
	hours := int((diff % (24 * time.Hour)) / time.Hour)
	minutes := int((diff % time.Hour) / time.Minute)

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}

// CheckoutRequest is the validated input for starting a payment.
type CheckoutRequest struct {
	Plan     string `json:"plan" validate:"required,oneof=1day 3days 1week 2weeks 1month"`
	Phone    string `json:"phone" validate:"required,max=20"`
	Provider string `json:"provider" validate:"required,oneof=mtn airtel"`
}

// CheckoutResponse acknowledges a payment flow started in the background.
type CheckoutResponse struct {
	FlowID string        `json:"flowId"`
	Status *FlowProgress `json:"status"`
}

// AccessResponse answers whether the caller may stream content.
type AccessResponse struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}
