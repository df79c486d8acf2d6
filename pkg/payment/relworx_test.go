package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *RelworxClient {
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewRelworxClient(srv.URL+"/", 2*time.Second)
	require.NoError(t, err)
	return c
}

func TestRelworxClient_Deposit(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/deposit", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body DepositRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, DepositRequest{MSISDN: "+256771234567", Amount: 5000, Description: "1 Week Subscription"}, body)

		w.Write([]byte(`{"success":true,"reference":"C1","relworx":{"internal_reference":"I1","status":"accepted"}}`))
	})

	resp, err := c.Deposit(context.Background(), DepositRequest{MSISDN: "+256771234567", Amount: 5000, Description: "1 Week Subscription"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "C1", resp.Reference)
	require.NotNil(t, resp.Relworx)
	assert.Equal(t, "I1", resp.Relworx.InternalReference)
}

func TestRelworxClient_Deposit_RejectedWithJSONBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"success":false,"message":"Invalid msisdn"}`))
	})

	resp, err := c.Deposit(context.Background(), DepositRequest{MSISDN: "+256771234567", Amount: 5000})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "Invalid msisdn", resp.Message)
}

func TestRelworxClient_Deposit_UndecodableErrorStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	})

	_, err := c.Deposit(context.Background(), DepositRequest{MSISDN: "+256771234567", Amount: 5000})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestRelworxClient_RequestStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/request-status", r.URL.Path)
		assert.Equal(t, "I1&x", r.URL.Query().Get("internal_reference"))

		w.Write([]byte(`{"success":true,"relworx":{"status":"success","message":"Transaction completed successfully","customer_reference":"C1","provider_transaction_id":"T1"}}`))
	})

	resp, err := c.RequestStatus(context.Background(), "I1&x")
	require.NoError(t, err)
	d := resp.Details()
	assert.True(t, resp.Success)
	assert.Equal(t, StatusSuccess, d.Status)
	assert.Equal(t, "C1", d.CustomerReference)
	assert.Equal(t, "T1", d.ProviderTransactionID)
}

func TestRelworxClient_RequestStatus_MalformedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>oops</html>`))
	})

	_, err := c.RequestStatus(context.Background(), "I1")
	assert.Error(t, err)
}

func TestNewRelworxClient_InvalidURL(t *testing.T) {
	_, err := NewRelworxClient("not a url", time.Second)
	assert.Error(t, err)
}

func TestStatusResponse_DetailsNil(t *testing.T) {
	var resp *StatusResponse
	assert.Equal(t, StatusDetails{}, resp.Details())
	assert.Equal(t, StatusDetails{}, (&StatusResponse{Success: true}).Details())
}

func TestMockGateway_ConfirmsAfterPendingPolls(t *testing.T) {
	g := NewMockGateway(2)
	ctx := context.Background()

	dep, err := g.Deposit(ctx, DepositRequest{MSISDN: "+256771234567", Amount: 5000})
	require.NoError(t, err)
	require.True(t, dep.Success)
	ref := dep.Relworx.InternalReference

	for i := 0; i < 2; i++ {
		st, err := g.RequestStatus(ctx, ref)
		require.NoError(t, err)
		assert.Equal(t, StatusPending, st.Details().Status)
	}

	st, err := g.RequestStatus(ctx, ref)
	require.NoError(t, err)
	assert.True(t, st.Success)
	assert.Equal(t, StatusSuccess, st.Details().Status)
	assert.Contains(t, st.Details().Message, CompletionPhrase)
	assert.Equal(t, dep.Reference, st.Details().CustomerReference)
}

func TestMockGateway_DeclinesTestNumbers(t *testing.T) {
	g := NewMockGateway(0)
	ctx := context.Background()

	dep, err := g.Deposit(ctx, DepositRequest{MSISDN: "+256770000000", Amount: 5000})
	require.NoError(t, err)

	st, err := g.RequestStatus(ctx, dep.Relworx.InternalReference)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, st.Details().Status)
	assert.Equal(t, "insufficient funds", st.Details().Message)
}
