package service

import (
	"context"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/vjpiles/backend/internal/domain"
	"github.com/vjpiles/backend/internal/metrics"
	"go.uber.org/zap"
)

// IdentityProvider resolves the authenticated caller of a request.
type IdentityProvider interface {
	CurrentIdentity(ctx context.Context) (*domain.Identity, error)
}

// SubscriptionService runs checkouts in the background and answers
// subscription queries. A user has at most one checkout running.
type SubscriptionService struct {
	flow        *PaymentFlow
	store       SubscriptionStore
	identity    IdentityProvider
	validate    *validator.Validate
	log         *zap.Logger
	flowTimeout time.Duration
	now         func() time.Time

	mu        sync.Mutex
	checkouts map[string]*checkout // by user ID
	wg        sync.WaitGroup
}

// NewSubscriptionService creates a new SubscriptionService.
func NewSubscriptionService(
	flow *PaymentFlow,
	store SubscriptionStore,
	identity IdentityProvider,
	flowTimeout time.Duration,
	log *zap.Logger,
) *SubscriptionService {
	return &SubscriptionService{
		flow:        flow,
		store:       store,
		identity:    identity,
		validate:    validator.New(),
		log:         log,
		flowTimeout: flowTimeout,
		now:         time.Now,
		checkouts:   make(map[string]*checkout),
	}
}

// checkout is the live state of one background payment flow.
type checkout struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	progress domain.FlowProgress
	watchers map[chan domain.FlowProgress]struct{}
}

func (c *checkout) snapshot() domain.FlowProgress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progress
}

func (c *checkout) finished() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// publish records p as the latest state and hands it to every watcher.
// Watchers only ever hold the newest snapshot.
func (c *checkout) publish(p domain.FlowProgress) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.progress = p
	for ch := range c.watchers {
		select {
		case ch <- p:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- p
		}
		if p.Terminal {
			close(ch)
			delete(c.watchers, ch)
		}
	}
}

// StartCheckout validates the request and starts the payment flow in the
// background. It returns as soon as the flow is running.
func (s *SubscriptionService) StartCheckout(ctx context.Context, req *domain.CheckoutRequest) (*domain.CheckoutResponse, error) {
	identity, err := s.identity.CurrentIdentity(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrValidation(formatValidationErrors(err))
	}
	if _, _, err := s.flow.PrepareRequest(req.Plan, req.Phone, req.Provider); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if existing, ok := s.checkouts[identity.UserID]; ok && !existing.finished() {
		s.mu.Unlock()
		return nil, domain.ErrConflict("a payment is already in progress")
	}

	flowCtx, cancel := context.WithTimeout(context.Background(), s.flowTimeout)
	c := &checkout{
		id:       uuid.New().String(),
		cancel:   cancel,
		done:     make(chan struct{}),
		watchers: make(map[chan domain.FlowProgress]struct{}),
	}
	c.progress = domain.FlowProgress{
		FlowID:    c.id,
		Stage:     domain.StageValidating,
		Message:   "Starting payment...",
		UpdatedAt: s.now(),
	}
	s.checkouts[identity.UserID] = c
	s.wg.Add(1)
	s.mu.Unlock()

	in := FlowInput{
		FlowID:   c.id,
		PlanID:   req.Plan,
		Phone:    req.Phone,
		Provider: req.Provider,
		Identity: *identity,
	}
	go s.runCheckout(flowCtx, c, in)

	status := c.snapshot()
	return &domain.CheckoutResponse{FlowID: c.id, Status: &status}, nil
}

func (s *SubscriptionService) runCheckout(ctx context.Context, c *checkout, in FlowInput) {
	defer s.wg.Done()
	defer close(c.done)
	defer c.cancel()

	metrics.PaymentFlowsStarted.Inc()
	metrics.PaymentFlowsActive.Inc()
	defer metrics.PaymentFlowsActive.Dec()
	start := time.Now()

	res, err := s.flow.Run(ctx, in, func(p domain.FlowProgress) {
		p.FlowID = c.id
		p.UpdatedAt = s.now()
		c.publish(p)
	})

	final := domain.FlowProgress{
		FlowID:    c.id,
		Terminal:  true,
		UpdatedAt: s.now(),
	}
	outcome := "succeeded"
	switch {
	case err == nil:
		final.Stage = domain.StageSucceeded
		final.Message = "Payment successful! Subscribed to " + res.Plan.Name
	case domain.IsPaymentError(err, domain.KindStorage):
		outcome = "storage_error"
		final.Stage = domain.StageSucceeded
		final.ErrorKind = domain.KindStorage
		final.Message = userMessage(err)
	default:
		kind, _ := domain.PaymentErrorKind(err)
		outcome = string(kind)
		final.Stage = domain.StageFailed
		final.ErrorKind = kind
		final.Message = userMessage(err)
	}
	c.publish(final)

	metrics.PaymentFlowsFinished.WithLabelValues(outcome).Inc()
	metrics.PaymentFlowDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}

func userMessage(err error) string {
	if appErr, ok := domain.AsAppError(err); ok {
		return appErr.Message
	}
	return "Payment failed"
}

// CheckoutStatus returns the latest progress of the user's current or last
// checkout.
func (s *SubscriptionService) CheckoutStatus(userID string) (*domain.FlowProgress, error) {
	c := s.lookup(userID)
	if c == nil {
		return nil, domain.ErrNotFound("no payment in progress")
	}
	p := c.snapshot()
	return &p, nil
}

// WatchCheckout streams progress of the user's checkout, starting with the
// current snapshot. The channel is closed after the terminal snapshot or
// when stop is called.
func (s *SubscriptionService) WatchCheckout(userID string) (<-chan domain.FlowProgress, func(), error) {
	c := s.lookup(userID)
	if c == nil {
		return nil, nil, domain.ErrNotFound("no payment in progress")
	}

	ch := make(chan domain.FlowProgress, 1)
	c.mu.Lock()
	ch <- c.progress
	if c.progress.Terminal {
		close(ch)
		c.mu.Unlock()
		return ch, func() {}, nil
	}
	c.watchers[ch] = struct{}{}
	c.mu.Unlock()

	stop := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.watchers[ch]; ok {
			delete(c.watchers, ch)
			close(ch)
		}
	}
	return ch, stop, nil
}

// CancelCheckout stops the user's running checkout. A payment the user has
// already approved on their phone is not reversed.
func (s *SubscriptionService) CancelCheckout(userID string) error {
	c := s.lookup(userID)
	if c == nil || c.finished() {
		return domain.ErrNotFound("no payment in progress")
	}
	c.cancel()
	s.log.Info("checkout cancelled", zap.String("flow_id", c.id), zap.String("user_id", userID))
	return nil
}

func (s *SubscriptionService) lookup(userID string) *checkout {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkouts[userID]
}

// CurrentSubscription returns the user's subscription status.
func (s *SubscriptionService) CurrentSubscription(ctx context.Context, userID string) (*domain.SubscriptionStatus, error) {
	sub, err := s.store.FindSubscription(ctx, userID)
	if err != nil {
		return nil, domain.ErrInternal("failed to load subscription", err)
	}
	return domain.NewSubscriptionStatus(userID, sub, s.now()), nil
}

// HasAccess reports whether identity may stream content.
func (s *SubscriptionService) HasAccess(ctx context.Context, identity *domain.Identity) (*domain.AccessResponse, error) {
	if identity.IsAdmin() {
		return &domain.AccessResponse{Allowed: true, Reason: "admin"}, nil
	}

	status, err := s.CurrentSubscription(ctx, identity.UserID)
	if err != nil {
		return nil, err
	}
	switch status.Status {
	case "active":
		return &domain.AccessResponse{Allowed: true, Reason: "active subscription"}, nil
	case "expired":
		return &domain.AccessResponse{Allowed: false, Reason: "subscription expired"}, nil
	default:
		return &domain.AccessResponse{Allowed: false, Reason: "no subscription"}, nil
	}
}

// ListSubscriptions returns every user's subscription status (admin only).
func (s *SubscriptionService) ListSubscriptions(ctx context.Context) ([]*domain.SubscriptionStatus, error) {
	subs, err := s.store.ListSubscriptions(ctx)
	if err != nil {
		return nil, domain.ErrInternal("failed to list subscriptions", err)
	}

	now := s.now()
	out := make([]*domain.SubscriptionStatus, len(subs))
	for i, us := range subs {
		out[i] = domain.NewSubscriptionStatus(us.UserID, us.Subscription, now)
	}
	return out, nil
}

// Shutdown cancels running checkouts and waits for them to finish or for
// ctx to expire.
func (s *SubscriptionService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for _, c := range s.checkouts {
		c.cancel()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func formatValidationErrors(err error) string {
	return err.Error()
}
