package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/vjpiles/backend/internal/domain"
)

// DB is the part of *pgxpool.Pool the repository needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// SubscriptionRepository stores subscriptions and audit entries in PostgreSQL.
type SubscriptionRepository struct {
	db DB
}

func NewSubscriptionRepository(db DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

const subscriptionColumns = `user_id, plan_id, plan_name, amount, phone_number, payment_provider,
	payment_reference, internal_reference, customer_reference, provider_transaction_id,
	start_date, end_date, active, created_at`

// SaveSubscription replaces the user's subscription record.
func (r *SubscriptionRepository) SaveSubscription(ctx context.Context, userID string, sub *domain.Subscription) error {
	query := `
		INSERT INTO subscriptions (` + subscriptionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (user_id) DO UPDATE SET
			plan_id = EXCLUDED.plan_id,
			plan_name = EXCLUDED.plan_name,
			amount = EXCLUDED.amount,
			phone_number = EXCLUDED.phone_number,
			payment_provider = EXCLUDED.payment_provider,
			payment_reference = EXCLUDED.payment_reference,
			internal_reference = EXCLUDED.internal_reference,
			customer_reference = EXCLUDED.customer_reference,
			provider_transaction_id = EXCLUDED.provider_transaction_id,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			active = EXCLUDED.active,
			created_at = EXCLUDED.created_at
	`
	_, err := r.db.Exec(ctx, query,
		userID, sub.PlanID, sub.PlanName, sub.Amount, sub.PhoneNumber, sub.PaymentProvider,
		sub.PaymentReference, sub.InternalReference, sub.CustomerReference, sub.ProviderTransactionID,
		sub.StartDate, sub.EndDate, sub.Active, sub.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save subscription: %w", err)
	}
	return nil
}

// AppendTransaction writes an audit entry under key. An existing entry with
// the same key is overwritten.
func (r *SubscriptionRepository) AppendTransaction(ctx context.Context, key string, tx *domain.Transaction) error {
	query := `
		INSERT INTO wallet_transactions (key, type, user_id, user_name, amount, plan_name,
			payment_reference, internal_reference, provider_transaction_id, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (key) DO UPDATE SET
			type = EXCLUDED.type,
			user_id = EXCLUDED.user_id,
			user_name = EXCLUDED.user_name,
			amount = EXCLUDED.amount,
			plan_name = EXCLUDED.plan_name,
			payment_reference = EXCLUDED.payment_reference,
			internal_reference = EXCLUDED.internal_reference,
			provider_transaction_id = EXCLUDED.provider_transaction_id,
			timestamp = EXCLUDED.timestamp
	`
	_, err := r.db.Exec(ctx, query,
		key, tx.Type, tx.UserID, tx.UserName, tx.Amount, tx.PlanName,
		tx.PaymentReference, tx.InternalReference, tx.ProviderTransactionID, tx.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

// FindSubscription returns the user's subscription, or nil if there is none.
func (r *SubscriptionRepository) FindSubscription(ctx context.Context, userID string) (*domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id = $1`
	us, err := scanUserSubscription(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find subscription: %w", err)
	}
	return us.Subscription, nil
}

// ListSubscriptions returns every stored subscription, newest start first.
func (r *SubscriptionRepository) ListSubscriptions(ctx context.Context) ([]domain.UserSubscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions ORDER BY start_date DESC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []domain.UserSubscription
	for rows.Next() {
		us, err := scanUserSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, us)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return subs, nil
}

// Ping checks the database connection.
func (r *SubscriptionRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func scanUserSubscription(row pgx.Row) (domain.UserSubscription, error) {
	var (
		userID string
		sub    domain.Subscription
	)
	err := row.Scan(
		&userID, &sub.PlanID, &sub.PlanName, &sub.Amount, &sub.PhoneNumber, &sub.PaymentProvider,
		&sub.PaymentReference, &sub.InternalReference, &sub.CustomerReference, &sub.ProviderTransactionID,
		&sub.StartDate, &sub.EndDate, &sub.Active, &sub.CreatedAt,
	)
	if err != nil {
		return domain.UserSubscription{}, err
	}
	return domain.UserSubscription{UserID: userID, Subscription: &sub}, nil
}
