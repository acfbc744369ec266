// Package main provides the Nexflow background worker: child-card automations,
// commission calculation and the overdue activity sweep.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/albertobarcelos/nexflow/pkg/eventbus"
	"github.com/albertobarcelos/nexflow/pkg/events"
	"github.com/albertobarcelos/nexflow/pkg/otelhelper"
	"github.com/albertobarcelos/nexflow/pkg/persistence"
	"github.com/albertobarcelos/nexflow/pkg/services"
)

type Worker struct {
	id            string
	persistence   persistence.Persistence
	eventBus      eventbus.EventBus
	sweepSchedule string
	logger        *slog.Logger

	automations *services.Automation
	commission  *services.Commission
	activities  *services.Activity
	tracer      trace.Tracer
}

func NewWorker(
	id string,
	p persistence.Persistence,
	eventBus eventbus.EventBus,
	sweepSchedule string,
	logger *slog.Logger,
) *Worker {
	cards := services.NewCard(p, eventBus, logger)

	return &Worker{
		id:            id,
		persistence:   p,
		eventBus:      eventBus,
		sweepSchedule: sweepSchedule,
		logger:        logger,
		automations:   services.NewAutomation(p, cards, logger),
		commission:    services.NewCommission(p, eventBus, logger),
		activities:    services.NewActivity(p, logger),
	}
}

// Start wires the event subscriptions and the sweep cron, then blocks until
// the context is canceled or a termination signal arrives.
func (w *Worker) Start(ctx context.Context) error {
	tracer, err := otelhelper.NewTracer(ctx, "nexflow-worker")
	if err != nil {
		return fmt.Errorf("failed to initialize tracer: %w", err)
	}

	w.tracer = tracer

	if err := w.eventBus.Handle(events.CardMovedEvent, w.handleCardMoved); err != nil {
		return err
	}

	if err := w.eventBus.Handle(events.PaymentConfirmedEvent, w.handlePaymentConfirmed); err != nil {
		return err
	}

	if err := w.eventBus.Subscribe(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to events: %w", err)
	}

	scheduler := cron.New()

	_, err = scheduler.AddFunc(w.sweepSchedule, func() {
		w.sweepOverdueActivities(ctx)
	})
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", w.sweepSchedule, err)
	}

	scheduler.Start()
	defer scheduler.Stop()

	w.logger.InfoContext(ctx, "Worker started",
		"sweep_schedule", w.sweepSchedule)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-ctx.Done():
	case sig := <-sigChan:
		w.logger.InfoContext(ctx, "Received signal, shutting down", "signal", sig.String())
	}

	return nil
}

func (w *Worker) handleCardMoved(ctx context.Context, event any) error {
	moved, ok := event.(*events.CardMoved)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}

	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "worker.card_moved",
		attribute.String(otelhelper.TenantIDKey, moved.TenantID),
		attribute.String(otelhelper.CardIDKey, moved.CardID),
		attribute.String(otelhelper.StepIDKey, moved.ToStepID),
	)
	defer span.End()

	// Automation failures never propagate: the move already committed and a
	// Nack would replay it.
	w.automations.OnCardMoved(ctx, moved.TenantID, moved.CardID, moved.ToStepID)

	return nil
}

func (w *Worker) handlePaymentConfirmed(ctx context.Context, event any) error {
	confirmed, ok := event.(*events.PaymentConfirmed)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}

	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "worker.payment_confirmed",
		attribute.String(otelhelper.TenantIDKey, confirmed.TenantID),
		attribute.String(otelhelper.PaymentIDKey, confirmed.PaymentID),
		attribute.String(otelhelper.CardIDKey, confirmed.CardID),
	)
	defer span.End()

	result, err := w.commission.Calculate(ctx, confirmed.TenantID, confirmed.PaymentID, confirmed.CardID)
	if err != nil {
		otelhelper.SetError(span, err,
			attribute.String(otelhelper.PaymentIDKey, confirmed.PaymentID))

		return err
	}

	if result.Skipped != "" {
		w.logger.InfoContext(ctx, "Commission calculation skipped",
			"payment_id", confirmed.PaymentID, "reason", result.Skipped)

		return nil
	}

	w.logger.InfoContext(ctx, "Commission calculated",
		"calculation_id", result.Calculation.ID,
		"total_amount", result.Calculation.TotalAmount)

	return nil
}

func (w *Worker) sweepOverdueActivities(ctx context.Context) {
	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "worker.activity_sweep")
	defer span.End()

	swept, err := w.activities.SweepOverdue(ctx, time.Now().UTC())
	if err != nil {
		otelhelper.SetError(span, err)
		w.logger.ErrorContext(ctx, "Activity sweep failed", "error", err)

		return
	}

	if swept > 0 {
		w.logger.InfoContext(ctx, "Marked overdue activities", "count", swept)
	}
}
