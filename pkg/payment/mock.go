package payment

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MockGateway is an in-process gateway for local development.
// Deposits confirm after a fixed number of status checks; numbers
// ending in "0000" are declined.
type MockGateway struct {
	pendingPolls int

	mu       sync.Mutex
	deposits map[string]*mockDeposit
}

type mockDeposit struct {
	msisdn    string
	reference string
	polls     int
}

func NewMockGateway(pendingPolls int) *MockGateway {
	return &MockGateway{
		pendingPolls: pendingPolls,
		deposits:     make(map[string]*mockDeposit),
	}
}

func (g *MockGateway) Deposit(ctx context.Context, req DepositRequest) (*DepositResponse, error) {
	if req.Amount <= 0 {
		return &DepositResponse{Success: false, Message: "amount must be positive"}, nil
	}

	internal := uuid.New().String()
	reference := "VJ-" + strings.ToUpper(uuid.New().String()[:8])

	g.mu.Lock()
	g.deposits[internal] = &mockDeposit{msisdn: req.MSISDN, reference: reference}
	g.mu.Unlock()

	return &DepositResponse{
		Success:   true,
		Reference: reference,
		Relworx:   &DepositDetails{InternalReference: internal},
	}, nil
}

func (g *MockGateway) RequestStatus(ctx context.Context, internalReference string) (*StatusResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	d, ok := g.deposits[internalReference]
	if !ok {
		return &StatusResponse{
			Success: false,
			Relworx: &StatusDetails{Status: StatusFailed, Message: "unknown internal reference"},
		}, nil
	}

	d.polls++
	if d.polls <= g.pendingPolls {
		return &StatusResponse{Success: true, Relworx: &StatusDetails{Status: StatusPending, Message: "Request is pending"}}, nil
	}

	if strings.HasSuffix(d.msisdn, "0000") {
		return &StatusResponse{
			Success: false,
			Relworx: &StatusDetails{Status: StatusFailed, RequestStatus: StatusFailed, Message: "insufficient funds"},
		}, nil
	}

	return &StatusResponse{
		Success: true,
		Relworx: &StatusDetails{
			Status:                StatusSuccess,
			RequestStatus:         StatusSuccess,
			Message:               "Transaction " + CompletionPhrase,
			CustomerReference:     d.reference,
			ProviderTransactionID: "MOCK-" + strings.ToUpper(internalReference[:8]),
		},
	}, nil
}
