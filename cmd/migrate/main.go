package main

import (
	"flag"
	"os"

	"go.uber.org/zap"

	"github.com/paysvc/backend/internal/domain/payin"
	"github.com/paysvc/backend/internal/domain/payout"
	"github.com/paysvc/backend/internal/infrastructure/config"
	"github.com/paysvc/backend/internal/infrastructure/logger"
	"github.com/paysvc/backend/internal/infrastructure/persistence"
)

func main() {
	var logLevel string
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	log, err := logger.New(&config.LogConfig{
		Level:  logLevel,
		Format: "console",
		Output: "stdout",
	})
	if err != nil {
		os.Exit(1)
	}
	defer func() {
		_ = log.Sync()
	}()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	db, err := persistence.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		_ = db.Close()
	}()

	log.Info("Running schema migration",
		zap.String("database", cfg.Database.DBName),
		zap.String("host", cfg.Database.Host))

	err = db.DB.AutoMigrate(
		// payout
		&payout.Transfer{},
		&payout.StripeTransfer{},
		&payout.ManagedAccountTransfer{},
		&payout.PaymentAccount{},
		&payout.StripeManagedAccount{},
		&payout.Transaction{},
		// payin
		&payin.CartPayment{},
		&payin.PaymentIntent{},
		&payin.PgpPaymentIntent{},
		&payin.PaymentIntentAdjustmentHistory{},
		&payin.Refund{},
		&payin.PgpRefund{},
	)
	if err != nil {
		log.Fatal("Migration failed", zap.Error(err))
	}

	log.Info("Migration complete")
}
