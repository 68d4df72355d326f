package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/pilltime/internal/persistence"
)

// SubscriptionRepository implements persistence.SubscriptionRepository using SQLite.
type SubscriptionRepository struct {
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewSubscriptionRepository creates a new SQLite push subscription repository.
func NewSubscriptionRepository(pool *ConnectionPool) *SubscriptionRepository {
	return &SubscriptionRepository{
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// UpsertSubscription inserts or replaces the subscription for an endpoint.
// Re-subscribing from the same browser rotates the keys in place.
func (r *SubscriptionRepository) UpsertSubscription(ctx context.Context, sub persistence.PushSubscription) error {
	if sub.Endpoint == "" || sub.P256dh == "" || sub.Auth == "" {
		return persistence.ErrConstraintViolation
	}

	_, err := r.helper.Exec(ctx, `
		INSERT INTO push_subscriptions (endpoint, p256dh, auth, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(endpoint) DO UPDATE SET p256dh = excluded.p256dh,
			auth = excluded.auth, user_agent = excluded.user_agent
	`,
		sub.Endpoint,
		sub.P256dh,
		sub.Auth,
		nullString(sub.UserAgent),
		sub.CreatedAt.UTC().Format(time.RFC3339),
	)
	return r.mapper.MapError(err)
}

// DeleteSubscription removes the subscription for an endpoint. Deleting an
// endpoint that is already gone is a no-op, so concurrent permanent-failure
// cleanup passes cannot conflict.
func (r *SubscriptionRepository) DeleteSubscription(ctx context.Context, endpoint string) error {
	if endpoint == "" {
		return nil
	}
	_, err := r.helper.Exec(ctx, `DELETE FROM push_subscriptions WHERE endpoint = ?`, endpoint)
	return r.mapper.MapError(err)
}

// ListSubscriptions returns all subscriptions ordered by creation time.
func (r *SubscriptionRepository) ListSubscriptions(ctx context.Context) ([]persistence.PushSubscription, error) {
	rows, err := r.helper.Query(ctx, `
		SELECT endpoint, p256dh, auth, user_agent, created_at
		FROM push_subscriptions
		ORDER BY created_at ASC, endpoint ASC
	`)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var subs []persistence.PushSubscription
	for rows.Next() {
		var sub persistence.PushSubscription
		var userAgent sql.NullString
		var createdAt string

		if err := rows.Scan(&sub.Endpoint, &sub.P256dh, &sub.Auth, &userAgent, &createdAt); err != nil {
			return nil, r.mapper.MapError(err)
		}
		if userAgent.Valid {
			sub.UserAgent = &userAgent.String
		}
		if sub.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return subs, nil
}

// DeleteSubscriptionsOlderThan removes subscriptions created before the cutoff.
func (r *SubscriptionRepository) DeleteSubscriptionsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.helper.Exec(ctx,
		`DELETE FROM push_subscriptions WHERE created_at < ?`,
		cutoff.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, r.mapper.MapError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected, nil
}
