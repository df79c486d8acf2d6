// Command substats prints the stored subscriptions of the configured backend.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"
	"github.com/vjpiles/backend/internal/config"
	"github.com/vjpiles/backend/internal/domain"
	"github.com/vjpiles/backend/internal/logger"
	"github.com/vjpiles/backend/internal/repository"
	"go.uber.org/zap"
)

func main() {
	activeOnly := pflag.Bool("active", false, "only list subscriptions that currently grant access")
	pflag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLog, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer func() { _ = zapLog.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := run(ctx, cfg, zapLog, os.Stdout, *activeOnly); err != nil {
		zapLog.Fatal("substats failed", zap.String("backend", cfg.StoreBackend), zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger, out io.Writer, activeOnly bool) error {
	store, closeStore, err := repository.Open(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closeStore()

	subs, err := store.ListSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("list subscriptions: %w", err)
	}
	log.Debug("subscriptions loaded", zap.Int("count", len(subs)))

	printSubscriptions(out, subs, time.Now(), activeOnly)
	return nil
}

func printSubscriptions(out io.Writer, subs []domain.UserSubscription, now time.Time, activeOnly bool) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "USER\tPLAN\tSTATUS\tREMAINING\tREFERENCE")

	var active int
	for _, us := range subs {
		status := domain.NewSubscriptionStatus(us.UserID, us.Subscription, now)
		if status.IsActive {
			active++
		} else if activeOnly {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			status.UserID, status.PlanName, status.Status, status.Remaining, us.Subscription.PaymentReference)
	}
	tw.Flush()

	fmt.Fprintf(out, "\n%d subscriptions, %d active\n", len(subs), active)
}
