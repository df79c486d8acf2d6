package payment

import "context"

// Gateway is a mobile-money deposit API.
type Gateway interface {
	// Deposit asks the subscriber's phone for a PIN-confirmed payment.
	Deposit(ctx context.Context, req DepositRequest) (*DepositResponse, error)
	// RequestStatus reports the state of a deposit by its internal reference.
	RequestStatus(ctx context.Context, internalReference string) (*StatusResponse, error)
}

// TransactionStatus constants
const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// CompletionPhrase must appear in the status message of a completed deposit.
const CompletionPhrase = "completed successfully"

// DepositRequest is the body of POST /api/deposit.
type DepositRequest struct {
	MSISDN      string `json:"msisdn"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
}

// DepositResponse is returned by POST /api/deposit.
type DepositResponse struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message,omitempty"`
	Error     string          `json:"error,omitempty"`
	Reference string          `json:"reference,omitempty"`
	Relworx   *DepositDetails `json:"relworx,omitempty"`
}

// DepositDetails is the provider section of a deposit response.
type DepositDetails struct {
	InternalReference string `json:"internal_reference"`
}

// StatusResponse is returned by GET /api/request-status.
type StatusResponse struct {
	Success bool           `json:"success"`
	Relworx *StatusDetails `json:"relworx,omitempty"`
}

// StatusDetails is the provider section of a status response.
type StatusDetails struct {
	Status                string `json:"status"`
	RequestStatus         string `json:"request_status,omitempty"`
	Message               string `json:"message,omitempty"`
	CustomerReference     string `json:"customer_reference,omitempty"`
	ProviderTransactionID string `json:"provider_transaction_id,omitempty"`
}

// Details returns the provider section, never nil.
func (r *StatusResponse) Details() StatusDetails {
	if r == nil || r.Relworx == nil {
		return StatusDetails{}
	}
	return *r.Relworx
}
