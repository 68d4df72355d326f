package push

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/example/pilltime/internal/persistence"
)

// Outcome classifies the result of one delivery attempt.
type Outcome int

const (
	// OutcomeDelivered indicates the push service accepted the message.
	OutcomeDelivered Outcome = iota
	// OutcomeTransientFailure indicates a retryable failure. No retry happens
	// within the same dispatch pass.
	OutcomeTransientFailure
	// OutcomePermanentFailure indicates the endpoint is gone and the
	// subscription has been forgotten.
	OutcomePermanentFailure
)

// String returns a stable label for logging.
func (o Outcome) String() string {
	switch o {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeTransientFailure:
		return "transient_failure"
	case OutcomePermanentFailure:
		return "permanent_failure"
	}
	return "unknown"
}

// Result aggregates per-subscriber outcomes of one broadcast.
type Result struct {
	Sent   int
	Failed int
}

// VAPIDConfig holds the signing material for Web Push delivery.
type VAPIDConfig struct {
	Subject    string
	PublicKey  string
	PrivateKey string
}

// Configured reports whether both VAPID keys are present.
func (c VAPIDConfig) Configured() bool {
	return strings.TrimSpace(c.PublicKey) != "" && strings.TrimSpace(c.PrivateKey) != ""
}

// transport performs one raw delivery attempt and reports the upstream
// HTTP status. Split out so tests can substitute the network call.
type transport interface {
	Send(ctx context.Context, sub persistence.PushSubscription, body []byte) (int, error)
}

type webpushTransport struct {
	config VAPIDConfig
}

func (t *webpushTransport) Send(ctx context.Context, sub persistence.PushSubscription, body []byte) (int, error) {
	resp, err := webpush.SendNotificationWithContext(ctx, body, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}, &webpush.Options{
		Subscriber:      t.config.Subject,
		VAPIDPublicKey:  t.config.PublicKey,
		VAPIDPrivateKey: t.config.PrivateKey,
		TTL:             60,
	})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

// Sender delivers notification payloads to registered subscribers.
type Sender struct {
	subs      persistence.SubscriptionRepository
	transport transport
	config    VAPIDConfig
	timeout   time.Duration
	logger    *slog.Logger

	disabledOnce sync.Once
}

// NewSender constructs a Sender. When the VAPID configuration is incomplete
// the sender runs in disabled mode: every broadcast is a logged no-op.
func NewSender(subs persistence.SubscriptionRepository, config VAPIDConfig, timeout time.Duration, logger *slog.Logger) *Sender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{
		subs:      subs,
		transport: &webpushTransport{config: config},
		config:    config,
		timeout:   timeout,
		logger:    logger.With("service", "PushSender"),
	}
}

// Enabled reports whether delivery credentials are configured.
func (s *Sender) Enabled() bool {
	return s.config.Configured()
}

// PublicKey returns the VAPID public key clients subscribe with.
func (s *Sender) PublicKey() string {
	return s.config.PublicKey
}

// Send performs one delivery attempt for a single subscriber. A permanent
// failure deletes the subscription record before returning.
func (s *Sender) Send(ctx context.Context, sub persistence.PushSubscription, payload Payload) Outcome {
	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to encode payload", "error", err)
		return OutcomeTransientFailure
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	status, err := s.transport.Send(sendCtx, sub, body)
	if err != nil {
		s.logger.WarnContext(ctx, "push delivery failed", "endpoint", truncateEndpoint(sub.Endpoint), "error", err)
		return OutcomeTransientFailure
	}

	switch {
	case status == http.StatusNotFound || status == http.StatusGone:
		s.logger.InfoContext(ctx, "removing stale subscription", "endpoint", truncateEndpoint(sub.Endpoint), "status", status)
		if err := s.subs.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			s.logger.ErrorContext(ctx, "failed to remove stale subscription", "endpoint", truncateEndpoint(sub.Endpoint), "error", err)
		}
		return OutcomePermanentFailure
	case status >= 200 && status < 300:
		return OutcomeDelivered
	default:
		s.logger.WarnContext(ctx, "push delivery rejected", "endpoint", truncateEndpoint(sub.Endpoint), "status", status)
		return OutcomeTransientFailure
	}
}

// SendToAll broadcasts one payload to every registered subscriber. Subscribers
// are processed sequentially and one failure never aborts the rest. The error
// return is non-nil only when the subscriber list itself cannot be read.
func (s *Sender) SendToAll(ctx context.Context, payload Payload) (Result, error) {
	if !s.Enabled() {
		s.disabledOnce.Do(func() {
			s.logger.WarnContext(ctx, "push notifications disabled: VAPID keys not configured")
		})
		return Result{}, nil
	}

	subs, err := s.subs.ListSubscriptions(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return Result{}, nil
	}

	var result Result
	for _, sub := range subs {
		switch s.Send(ctx, sub, payload) {
		case OutcomeDelivered:
			result.Sent++
		default:
			result.Failed++
		}
	}

	s.logger.InfoContext(ctx, "broadcast finished", "sent", result.Sent, "failed", result.Failed)
	return result, nil
}

func truncateEndpoint(endpoint string) string {
	if len(endpoint) > 50 {
		return endpoint[:50] + "..."
	}
	return endpoint
}
