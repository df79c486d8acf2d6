package domain

import "time"

// PaymentRequest is one deposit attempt. It lives only as long as the flow.
type PaymentRequest struct {
	MSISDN      string
	Amount      int64
	Description string
}

// PaymentReference identifies an initiated deposit at the gateway.
type PaymentReference struct {
	InternalReference string // used to poll status
	CustomerReference string // shown to the user and kept for audit
}

// PaymentState is the state of the status polling loop.
type PaymentState string

const (
	StatePolling   PaymentState = "polling"
	StateSucceeded PaymentState = "succeeded"
	StateFailed    PaymentState = "failed"
	StateTimedOut  PaymentState = "timed_out"
)

// Terminal reports whether the state ends the polling loop.
func (s PaymentState) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateTimedOut
}

// PaymentOutcome is the terminal result of polling.
type PaymentOutcome struct {
	State             PaymentState
	TransactionID     string
	CustomerReference string
	Reason            string
	Attempts          int
}

// Err converts a non-successful outcome into its PaymentError.
func (o PaymentOutcome) Err() error {
	switch o.State {
	case StateSucceeded:
		return nil
	case StateFailed:
		return NewPaymentFailedError(o.Reason)
	default:
		return NewTimedOutError(o.Attempts)
	}
}

// Identity is the authenticated caller.
type Identity struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// DisplayLabel is the label written to audit entries.
func (i *Identity) DisplayLabel() string {
	if i.Email != "" {
		return i.Email
	}
	return "Unknown"
}

// IsAdmin reports whether the identity carries the admin role.
func (i *Identity) IsAdmin() bool {
	return i.Role == "admin"
}

// FlowStage names the step a checkout is at.
type FlowStage string

const (
	StageValidating  FlowStage = "validating"
	StageInitiating  FlowStage = "initiating"
	StageAwaitingPIN FlowStage = "awaiting_pin"
	StagePolling     FlowStage = "polling"
	StageSucceeded   FlowStage = "succeeded"
	StageFailed      FlowStage = "failed"
)

// FlowProgress is the single status line shown to the user.
type FlowProgress struct {
	FlowID      string    `json:"flowId"`
	Stage       FlowStage `json:"stage"`
	Message     string    `json:"message"`
	Attempt     int       `json:"attempt,omitempty"`
	MaxAttempts int       `json:"maxAttempts,omitempty"`
	ErrorKind   ErrorKind `json:"errorKind,omitempty"`
	Terminal    bool      `json:"terminal"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
