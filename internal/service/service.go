package service

import (
	"context"

	"github.com/attendfi/attendfi-api/internal/models"
	"github.com/attendfi/attendfi-api/internal/repository"
)

// settlementRunner executes a settlement operation as one atomic transaction.
type settlementRunner interface {
	Run(ctx context.Context, fn func(tx repository.SettlementTx) error) error
}

// notificationEmitter publishes state-change notifications. Emission is
// fire-and-forget; settlement outcomes never depend on it.
type notificationEmitter interface {
	Emit(n models.Notification)
}

// nopEmitter is used when no notifier is wired, mostly in tests.
type nopEmitter struct{}

func (nopEmitter) Emit(models.Notification) {}
