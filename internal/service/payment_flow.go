package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/vjpiles/backend/internal/domain"
	"github.com/vjpiles/backend/internal/metrics"
	"github.com/vjpiles/backend/pkg/payment"
	"go.uber.org/zap"
)

// SubscriptionStore is the key-value store holding subscriptions and the
// wallet audit log.
type SubscriptionStore interface {
	SaveSubscription(ctx context.Context, userID string, sub *domain.Subscription) error
	AppendTransaction(ctx context.Context, key string, tx *domain.Transaction) error
	FindSubscription(ctx context.Context, userID string) (*domain.Subscription, error)
	ListSubscriptions(ctx context.Context) ([]domain.UserSubscription, error)
}

// ProgressFunc receives every status change of a running flow.
type ProgressFunc func(domain.FlowProgress)

// PaymentFlowConfig holds the tunables of a PaymentFlow.
type PaymentFlowConfig struct {
	PollInterval time.Duration
	MaxAttempts  int
	// CountTransientErrors makes failed status checks use up attempts.
	// When false a flaky network can only be stopped by the context.
	CountTransientErrors bool
	MerchantLabel        string
	Phone                *payment.PhoneNormalizer
}

// PaymentFlow drives one mobile-money deposit from request to persisted
// subscription. It holds no per-flow state and may be shared.
type PaymentFlow struct {
	cfg     PaymentFlowConfig
	gateway payment.Gateway
	store   SubscriptionStore
	log     *zap.Logger

	now      func() time.Time
	newTimer func() backoff.Timer // waits between status checks; nil means a real timer
}

// NewPaymentFlow creates a PaymentFlow.
func NewPaymentFlow(cfg PaymentFlowConfig, gateway payment.Gateway, store SubscriptionStore, log *zap.Logger) (*PaymentFlow, error) {
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive")
	}
	if cfg.MaxAttempts <= 0 {
		return nil, fmt.Errorf("max attempts must be positive")
	}
	if cfg.Phone == nil {
		return nil, fmt.Errorf("phone normalizer is required")
	}
	return &PaymentFlow{
		cfg:      cfg,
		gateway:  gateway,
		store:    store,
		log:      log,
		now:      time.Now,
		newTimer: func() backoff.Timer { return nil },
	}, nil
}

// FlowInput is what the caller supplies to Run.
type FlowInput struct {
	FlowID   string
	PlanID   string
	Phone    string
	Provider string
	Identity domain.Identity
}

// FlowResult is the outcome of Run. Outcome is set once polling has ended,
// even when a later stage fails.
type FlowResult struct {
	Plan         domain.Plan
	Request      domain.PaymentRequest
	Reference    *domain.PaymentReference
	Outcome      *domain.PaymentOutcome
	Subscription *domain.Subscription
}

// PrepareRequest validates the plan and provider and normalizes the phone
// number. Nothing is sent when it fails.
func (f *PaymentFlow) PrepareRequest(planID, rawPhone, provider string) (domain.Plan, domain.PaymentRequest, error) {
	plan, ok := domain.FindPlan(planID)
	if !ok {
		return domain.Plan{}, domain.PaymentRequest{}, domain.NewValidationError("invalid plan selected", nil)
	}

	switch provider {
	case "mtn", "airtel":
	default:
		return domain.Plan{}, domain.PaymentRequest{}, domain.NewValidationError("invalid payment provider", nil)
	}

	msisdn, err := f.NormalizePhoneNumber(rawPhone)
	if err != nil {
		return domain.Plan{}, domain.PaymentRequest{}, err
	}

	return plan, domain.PaymentRequest{
		MSISDN:      msisdn,
		Amount:      plan.Price,
		Description: fmt.Sprintf("%s %s Subscription", f.cfg.MerchantLabel, plan.Name),
	}, nil
}

// NormalizePhoneNumber returns raw in international format.
func (f *PaymentFlow) NormalizePhoneNumber(raw string) (string, error) {
	msisdn, err := f.cfg.Phone.Normalize(raw)
	if err != nil {
		return "", domain.NewValidationError("invalid phone number", err)
	}
	return msisdn, nil
}

// Initiate submits the deposit exactly once.
func (f *PaymentFlow) Initiate(ctx context.Context, req domain.PaymentRequest) (*domain.PaymentReference, error) {
	resp, err := f.gateway.Deposit(ctx, payment.DepositRequest{
		MSISDN:      req.MSISDN,
		Amount:      req.Amount,
		Description: req.Description,
	})
	if err != nil {
		return nil, domain.NewInitiationError("payment request failed", err)
	}

	if !resp.Success {
		msg := resp.Message
		if msg == "" {
			msg = resp.Error
		}
		if msg == "" {
			msg = "Payment request failed"
		}
		return nil, domain.NewInitiationError(msg, nil)
	}

	ref := &domain.PaymentReference{CustomerReference: resp.Reference}
	if resp.Relworx != nil {
		ref.InternalReference = resp.Relworx.InternalReference
	}
	if ref.InternalReference == "" || ref.CustomerReference == "" {
		return nil, domain.NewInitiationError("incomplete response", nil)
	}
	return ref, nil
}

// errStillPending tells the retry loop to wait and check again.
var errStillPending = errors.New("payment still pending")

// PollUntilResolved checks the deposit status until it succeeds, fails or
// runs out of attempts. Checks are strictly sequential with a constant
// interval between them. The only error returned is cancellation; an
// expired context deadline counts as a timeout.
func (f *PaymentFlow) PollUntilResolved(ctx context.Context, internalReference string, report ProgressFunc) (domain.PaymentOutcome, error) {
	if report == nil {
		report = func(domain.FlowProgress) {}
	}

	var (
		attempts int
		outcome  domain.PaymentOutcome
	)
	timedOut := func() error {
		outcome = domain.PaymentOutcome{State: domain.StateTimedOut, Attempts: attempts}
		return nil
	}

	check := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}

		report(domain.FlowProgress{
			Stage:       domain.StagePolling,
			Message:     fmt.Sprintf("Confirming payment... (%d/%d)", attempts+1, f.cfg.MaxAttempts),
			Attempt:     attempts + 1,
			MaxAttempts: f.cfg.MaxAttempts,
		})

		resp, err := f.gateway.RequestStatus(ctx, internalReference)
		if ctxErr := ctx.Err(); ctxErr != nil {
			// The in-flight answer is discarded.
			return backoff.Permanent(ctxErr)
		}
		if err != nil {
			pollErr := domain.NewTransientPollError(err)
			metrics.PaymentPollTicks.WithLabelValues("error").Inc()
			f.log.Warn("payment status check failed",
				zap.String("internal_reference", internalReference),
				zap.Int("attempt", attempts+1),
				zap.Error(pollErr),
			)
			report(domain.FlowProgress{
				Stage:       domain.StagePolling,
				Message:     "Could not reach the payment provider, retrying...",
				Attempt:     attempts + 1,
				MaxAttempts: f.cfg.MaxAttempts,
				ErrorKind:   pollErr.Kind,
			})
			if f.cfg.CountTransientErrors {
				attempts++
				if attempts >= f.cfg.MaxAttempts {
					return timedOut()
				}
			}
			return pollErr
		}
		attempts++

		outcome = classifyStatus(resp)
		metrics.PaymentPollTicks.WithLabelValues(string(outcome.State)).Inc()
		if outcome.State.Terminal() {
			outcome.Attempts = attempts
			return nil
		}
		if attempts >= f.cfg.MaxAttempts {
			return timedOut()
		}
		return errStillPending
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(f.cfg.PollInterval), ctx)
	if err := backoff.RetryNotifyWithTimer(check, b, nil, f.newTimer()); err != nil {
		return f.stopped(ctx, attempts)
	}
	return outcome, nil
}

func (f *PaymentFlow) stopped(ctx context.Context, attempts int) (domain.PaymentOutcome, error) {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.PaymentOutcome{State: domain.StateTimedOut, Attempts: attempts}, nil
	}
	return domain.PaymentOutcome{}, domain.NewCancelledError(ctx.Err())
}

// classifyStatus maps one status response to a state. Success needs the
// overall flag, the nested status and the completion phrase to agree.
func classifyStatus(resp *payment.StatusResponse) domain.PaymentOutcome {
	d := resp.Details()

	if resp.Success && d.Status == payment.StatusSuccess && strings.Contains(d.Message, payment.CompletionPhrase) {
		return domain.PaymentOutcome{
			State:             domain.StateSucceeded,
			TransactionID:     d.ProviderTransactionID,
			CustomerReference: d.CustomerReference,
		}
	}

	if d.RequestStatus == payment.StatusFailed || d.Status == payment.StatusFailed {
		reason := d.Message
		if reason == "" {
			reason = "Payment failed"
		}
		return domain.PaymentOutcome{State: domain.StateFailed, Reason: reason}
	}

	return domain.PaymentOutcome{State: domain.StatePolling}
}

// PersistSubscription writes the subscription record and the audit entry.
// The writes are independent: a failure of one does not undo the other,
// and the returned record reflects what was attempted.
func (f *PaymentFlow) PersistSubscription(
	ctx context.Context,
	outcome domain.PaymentOutcome,
	plan domain.Plan,
	req domain.PaymentRequest,
	ref domain.PaymentReference,
	identity domain.Identity,
	provider string,
) (*domain.Subscription, error) {
	if outcome.State != domain.StateSucceeded {
		return nil, fmt.Errorf("cannot persist subscription for outcome %q", outcome.State)
	}

	start := f.now().UTC()
	customerRef := outcome.CustomerReference
	if customerRef == "" {
		customerRef = ref.CustomerReference
	}

	sub := &domain.Subscription{
		PlanID:                plan.ID,
		PlanName:              plan.Name,
		Amount:                plan.Price,
		PhoneNumber:           req.MSISDN,
		PaymentProvider:       provider,
		PaymentReference:      ref.CustomerReference,
		InternalReference:     ref.InternalReference,
		CustomerReference:     customerRef,
		ProviderTransactionID: outcome.TransactionID,
		StartDate:             start,
		EndDate:               start.AddDate(0, 0, plan.Days),
		Active:                true,
		CreatedAt:             start,
	}

	tx := &domain.Transaction{
		Type:                  domain.TransactionTypeSubscription,
		UserID:                identity.UserID,
		UserName:              identity.DisplayLabel(),
		Amount:                plan.Price,
		PlanName:              plan.Name,
		PaymentReference:      ref.CustomerReference,
		InternalReference:     ref.InternalReference,
		ProviderTransactionID: outcome.TransactionID,
		Timestamp:             start,
	}

	var errs []error
	if err := f.store.SaveSubscription(ctx, identity.UserID, sub); err != nil {
		metrics.StoreWriteFailures.WithLabelValues("subscription").Inc()
		errs = append(errs, err)
	}
	if err := f.store.AppendTransaction(ctx, strconv.FormatInt(start.UnixMilli(), 10), tx); err != nil {
		metrics.StoreWriteFailures.WithLabelValues("transaction").Inc()
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return sub, domain.NewStorageError(
			"payment received but the subscription could not be saved, contact support with reference "+ref.CustomerReference,
			errors.Join(errs...),
		)
	}
	return sub, nil
}

// Run executes validate → initiate → poll → persist, reporting progress
// through report. A non-nil result is returned whenever the flow got past
// validation; result.Outcome stays Succeeded even if persisting fails.
func (f *PaymentFlow) Run(ctx context.Context, in FlowInput, report ProgressFunc) (*FlowResult, error) {
	if report == nil {
		report = func(domain.FlowProgress) {}
	}
	log := f.log.With(zap.String("flow_id", in.FlowID), zap.String("user_id", in.Identity.UserID))

	plan, req, err := f.PrepareRequest(in.PlanID, in.Phone, in.Provider)
	if err != nil {
		return nil, err
	}
	result := &FlowResult{Plan: plan, Request: req}

	report(domain.FlowProgress{Stage: domain.StageInitiating, Message: "Initiating payment..."})
	ref, err := f.Initiate(ctx, req)
	if err != nil {
		log.Warn("payment initiation failed", zap.Error(err))
		return result, err
	}
	result.Reference = ref
	log.Info("payment initiated",
		zap.String("plan_id", plan.ID),
		zap.String("internal_reference", ref.InternalReference),
		zap.String("customer_reference", ref.CustomerReference),
	)

	report(domain.FlowProgress{Stage: domain.StageAwaitingPIN, Message: "Check your phone and enter PIN..."})
	outcome, err := f.PollUntilResolved(ctx, ref.InternalReference, report)
	if err != nil {
		log.Info("payment flow cancelled", zap.Error(err))
		return result, err
	}
	result.Outcome = &outcome
	if outcome.State != domain.StateSucceeded {
		log.Info("payment not confirmed",
			zap.String("state", string(outcome.State)),
			zap.String("reason", outcome.Reason),
			zap.Int("attempts", outcome.Attempts),
		)
		return result, outcome.Err()
	}

	// Cancellation after a confirmed payment must not drop the record.
	sub, err := f.PersistSubscription(context.WithoutCancel(ctx), outcome, plan, req, *ref, in.Identity, in.Provider)
	result.Subscription = sub
	if err != nil {
		log.Error("payment confirmed but not persisted",
			zap.String("customer_reference", ref.CustomerReference),
			zap.String("provider_transaction_id", outcome.TransactionID),
			zap.Error(err),
		)
		return result, err
	}

	log.Info("subscription activated",
		zap.String("plan_id", plan.ID),
		zap.Time("end_date", sub.EndDate),
	)
	return result, nil
}
