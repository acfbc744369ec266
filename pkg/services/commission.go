package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/albertobarcelos/nexflow/pkg/eventbus"
	"github.com/albertobarcelos/nexflow/pkg/events"
	"github.com/albertobarcelos/nexflow/pkg/models"
	"github.com/albertobarcelos/nexflow/pkg/persistence"
)

var (
	// ErrPaymentNotFound is returned when a payment is not found.
	ErrPaymentNotFound = persistence.ErrPaymentNotFound
	// ErrTeamNotFound is returned when a team is not found.
	ErrTeamNotFound = persistence.ErrTeamNotFound
)

// CommissionResult is the outcome of one calculation run. Skipped carries the
// benign-skip reason when the preconditions were not met.
type CommissionResult struct {
	Skipped      string                           `json:"skipped,omitempty"`
	Calculation  *models.CommissionCalculation    `json:"calculation,omitempty"`
	Distribution []*models.CommissionDistribution `json:"distribution,omitempty"`
}

// Commission computes and persists team commission for confirmed payments on
// completed cards.
type Commission struct {
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
}

// NewCommission creates a new commission service.
func NewCommission(p persistence.Persistence, publisher eventbus.EventPublisher, logger *slog.Logger) *Commission {
	return &Commission{
		persistence: p,
		publisher:   publisher,
		logger:      logger,
	}
}

// ConfirmPayment marks a payment confirmed and publishes the event the worker
// reacts to.
func (s *Commission) ConfirmPayment(ctx context.Context, tenantID, paymentID string) (*models.Payment, error) {
	payment, err := s.persistence.Commissions().GetPayment(ctx, tenantID, paymentID)
	if err != nil {
		return nil, err
	}

	if payment == nil {
		return nil, ErrPaymentNotFound
	}

	now := time.Now().UTC()
	payment.Status = models.PaymentStatusConfirmed
	payment.ConfirmedAt = &now

	err = s.persistence.Commissions().SavePayment(ctx, payment)
	if err != nil {
		return nil, fmt.Errorf("failed to confirm payment: %w", err)
	}

	if s.publisher != nil {
		event := events.PaymentConfirmed{
			BaseEvent: events.BaseEvent{
				ID:        uuid.New().String(),
				Type:      events.PaymentConfirmedEvent,
				Timestamp: now,
				TenantID:  tenantID,
			},
			PaymentID: payment.ID,
			CardID:    payment.CardID,
			Amount:    payment.Amount,
		}

		if err := s.publisher.Publish(ctx, payment.ID, event); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish payment confirmation",
				"payment_id", payment.ID, "error", err)
		}
	}

	return payment, nil
}

// Calculate runs the commission algorithm for a payment/card pair:
//
//  1. The payment must be confirmed, the card completed, and the card's
//     current step a finisher. Anything else is a benign skip, not an error.
//  2. The card must carry an assigned team.
//  3. For every line item the team's rule is resolved (item-specific beats
//     code fallback); items with no rule are skipped and logged.
//  4. The summed team amount is distributed across team members by each
//     member's currently effective compensation level. Members without an
//     active level are skipped and logged.
//
// Re-invocation for an already calculated payment inserts a second
// calculation; idempotency is the caller's concern.
func (s *Commission) Calculate(ctx context.Context, tenantID, paymentID, cardID string) (*CommissionResult, error) {
	payment, err := s.persistence.Commissions().GetPayment(ctx, tenantID, paymentID)
	if err != nil {
		return nil, err
	}

	if payment == nil {
		return nil, ErrPaymentNotFound
	}

	card, err := s.persistence.Cards().GetByID(ctx, tenantID, cardID)
	if err != nil {
		return nil, err
	}

	if card == nil {
		return nil, ErrCardNotFound
	}

	if skip := s.precondition(ctx, tenantID, payment, card); skip != "" {
		s.logger.InfoContext(ctx, "commission calculation skipped",
			"payment_id", paymentID, "card_id", cardID, "reason", skip)

		return &CommissionResult{Skipped: skip}, nil
	}

	if card.AssignedTeamID == nil {
		return nil, ErrNoTeamAssigned
	}

	teamID := *card.AssignedTeamID

	teamAmount, err := s.teamAmount(ctx, tenantID, teamID, payment, card)
	if err != nil {
		return nil, err
	}

	if teamAmount == 0 {
		s.logger.InfoContext(ctx, "commission calculation skipped",
			"payment_id", paymentID, "card_id", cardID, "reason", "no matching commission rule")

		return &CommissionResult{Skipped: "no matching commission rule"}, nil
	}

	calculation, distributions, err := s.distribute(ctx, tenantID, teamID, payment, card, teamAmount)
	if err != nil {
		return nil, err
	}

	err = s.persistence.Commissions().SaveCalculation(ctx, calculation, distributions)
	if err != nil {
		return nil, fmt.Errorf("failed to save calculation: %w", err)
	}

	if s.publisher != nil {
		event := events.CommissionCalculated{
			BaseEvent: events.BaseEvent{
				ID:        uuid.New().String(),
				Type:      events.CommissionCalculatedEvent,
				Timestamp: calculation.CreatedAt,
				TenantID:  tenantID,
			},
			CalculationID: calculation.ID,
			PaymentID:     payment.ID,
			CardID:        card.ID,
			TeamID:        teamID,
			TotalAmount:   calculation.TotalAmount,
		}

		if err := s.publisher.Publish(ctx, calculation.ID, event); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish commission calculation",
				"calculation_id", calculation.ID, "error", err)
		}
	}

	return &CommissionResult{Calculation: calculation, Distribution: distributions}, nil
}

func (s *Commission) precondition(ctx context.Context, tenantID string, payment *models.Payment, card *models.Card) string {
	if payment.Status != models.PaymentStatusConfirmed {
		return "payment is not confirmed"
	}

	if card.Status != models.CardStatusCompleted {
		return "card is not completed"
	}

	step, err := s.persistence.Steps().GetByID(ctx, tenantID, card.StepID)
	if err != nil || step == nil {
		return "card step not found"
	}

	if !step.IsFinisher() {
		return "card step is not a finisher"
	}

	return ""
}

func (s *Commission) teamAmount(ctx context.Context, tenantID, teamID string, payment *models.Payment, card *models.Card) (float64, error) {
	items, err := s.persistence.Commissions().ListCardItems(ctx, tenantID, card.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to list card items: %w", err)
	}

	var total float64

	for _, item := range items {
		rule, err := s.persistence.Commissions().FindRule(ctx, tenantID, teamID, item.ItemID, item.Code)
		if err != nil {
			return 0, fmt.Errorf("failed to resolve commission rule: %w", err)
		}

		if rule == nil {
			s.logger.InfoContext(ctx, "no commission rule for item",
				"card_id", card.ID, "item_id", item.ItemID, "code", item.Code)

			continue
		}

		total += rule.TeamAmount(payment.Amount)
	}

	return total, nil
}

func (s *Commission) distribute(ctx context.Context, tenantID, teamID string, payment *models.Payment, card *models.Card, teamAmount float64) (*models.CommissionCalculation, []*models.CommissionDistribution, error) {
	members, err := s.persistence.Commissions().ListTeamMembers(ctx, tenantID, teamID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list team members: %w", err)
	}

	calculation := &models.CommissionCalculation{
		ID:          uuid.New().String(),
		TenantID:    tenantID,
		PaymentID:   payment.ID,
		CardID:      card.ID,
		TeamID:      teamID,
		TotalAmount: teamAmount,
		CreatedAt:   time.Now().UTC(),
	}

	distributions := make([]*models.CommissionDistribution, 0, len(members))

	var totalPercentage float64

	for _, userID := range members {
		level, err := s.persistence.Commissions().ActiveLevel(ctx, tenantID, userID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to resolve compensation level: %w", err)
		}

		if level == nil {
			s.logger.InfoContext(ctx, "team member has no active compensation level",
				"team_id", teamID, "user_id", userID)

			continue
		}

		totalPercentage += level.CommissionPercentage

		distributions = append(distributions, &models.CommissionDistribution{
			ID:            uuid.New().String(),
			CalculationID: calculation.ID,
			UserID:        userID,
			Percentage:    level.CommissionPercentage,
			Amount:        teamAmount * level.CommissionPercentage / 100,
		})
	}

	calculation.TotalDistributedPercentage = totalPercentage

	// Overage is a known soft invariant: logged, persisted anyway.
	if totalPercentage > 100 {
		s.logger.WarnContext(ctx, "distributed percentages exceed 100",
			"team_id", teamID, "total_percentage", totalPercentage)
	}

	return calculation, distributions, nil
}
