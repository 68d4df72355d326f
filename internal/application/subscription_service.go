package application

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/example/pilltime/internal/persistence"
	"github.com/example/pilltime/internal/push"
)

// PushBroadcaster captures the delivery operations the service needs.
type PushBroadcaster interface {
	Enabled() bool
	PublicKey() string
	SendToAll(ctx context.Context, payload push.Payload) (push.Result, error)
}

// SubscriptionInput carries the fields of a browser push subscription.
type SubscriptionInput struct {
	Endpoint  string
	P256dh    string
	Auth      string
	UserAgent *string
}

// SubscriptionService manages push subscription registration and the test
// broadcast.
type SubscriptionService struct {
	subs   persistence.SubscriptionRepository
	sender PushBroadcaster
	now    func() time.Time
	logger *slog.Logger
}

// NewSubscriptionService constructs a subscription service with the provided dependencies.
func NewSubscriptionService(subs persistence.SubscriptionRepository, sender PushBroadcaster, now func() time.Time, logger *slog.Logger) *SubscriptionService {
	if now == nil {
		now = time.Now
	}
	return &SubscriptionService{
		subs:   subs,
		sender: sender,
		now:    now,
		logger: defaultLogger(logger),
	}
}

func (s *SubscriptionService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "SubscriptionService", operation, attrs...)
}

// VAPIDPublicKey returns the key clients subscribe with, or
// ErrPushNotConfigured when delivery credentials are absent.
func (s *SubscriptionService) VAPIDPublicKey() (string, error) {
	if s.sender == nil || !s.sender.Enabled() {
		return "", ErrPushNotConfigured
	}
	return s.sender.PublicKey(), nil
}

// Subscribe registers or refreshes a push subscription.
func (s *SubscriptionService) Subscribe(ctx context.Context, input SubscriptionInput) error {
	logger := s.loggerWith(ctx, "Subscribe")

	vErr := &ValidationError{}
	if strings.TrimSpace(input.Endpoint) == "" {
		vErr.add("endpoint", "endpoint is required")
	}
	if strings.TrimSpace(input.P256dh) == "" || strings.TrimSpace(input.Auth) == "" {
		vErr.add("keys", "p256dh and auth keys are required")
	}
	if vErr.HasErrors() {
		return vErr
	}

	sub := persistence.PushSubscription{
		Endpoint:  input.Endpoint,
		P256dh:    input.P256dh,
		Auth:      input.Auth,
		UserAgent: normalizeOptionalString(input.UserAgent),
		CreatedAt: s.now(),
	}
	if err := s.subs.UpsertSubscription(ctx, sub); err != nil {
		logger.ErrorContext(ctx, "failed to save subscription", "error", err)
		return err
	}

	logger.InfoContext(ctx, "subscription saved")
	return nil
}

// Unsubscribe removes the subscription for an endpoint. Unknown endpoints
// are ignored.
func (s *SubscriptionService) Unsubscribe(ctx context.Context, endpoint string) error {
	logger := s.loggerWith(ctx, "Unsubscribe")

	if strings.TrimSpace(endpoint) == "" {
		vErr := &ValidationError{}
		vErr.add("endpoint", "endpoint is required")
		return vErr
	}

	if err := s.subs.DeleteSubscription(ctx, endpoint); err != nil {
		logger.ErrorContext(ctx, "failed to remove subscription", "error", err)
		return err
	}

	logger.InfoContext(ctx, "subscription removed")
	return nil
}

// SendTest broadcasts a test notification to every subscriber.
func (s *SubscriptionService) SendTest(ctx context.Context) (push.Result, error) {
	logger := s.loggerWith(ctx, "SendTest")

	if s.sender == nil || !s.sender.Enabled() {
		return push.Result{}, ErrPushNotConfigured
	}

	subs, err := s.subs.ListSubscriptions(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "failed to list subscriptions", "error", err)
		return push.Result{}, err
	}
	if len(subs) == 0 {
		return push.Result{}, ErrNoSubscribers
	}

	result, err := s.sender.SendToAll(ctx, push.NewTestNotification(s.now()))
	if err != nil {
		logger.ErrorContext(ctx, "test broadcast failed", "error", err)
		return push.Result{}, err
	}

	logger.InfoContext(ctx, "test notifications sent", "sent", result.Sent, "failed", result.Failed)
	return result, nil
}
