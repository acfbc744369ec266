package models

import "time"

// Team is a tenant-scoped group of users eligible for commission.
type Team struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id" validate:"required"`
	Name     string `json:"name"      validate:"required"`
}

// CompensationLevel is one entry of a member's compensation history. The level
// with a nil EffectiveTo is the currently effective one.
type CompensationLevel struct {
	ID                   string     `json:"id"`
	TenantID             string     `json:"tenant_id" validate:"required"`
	UserID               string     `json:"user_id"   validate:"required"`
	Name                 string     `json:"name,omitempty"`
	CommissionPercentage float64    `json:"commission_percentage" validate:"min=0"`
	EffectiveFrom        time.Time  `json:"effective_from"`
	EffectiveTo          *time.Time `json:"effective_to,omitempty"`
}

// Active reports whether this level is the currently effective one.
func (l *CompensationLevel) Active() bool {
	return l.EffectiveTo == nil
}

// PaymentStatus is the settlement state of a payment.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusConfirmed PaymentStatus = "confirmed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// Payment is a settlement linked to a card.
type Payment struct {
	ID          string        `json:"id"`
	TenantID    string        `json:"tenant_id" validate:"required"`
	CardID      string        `json:"card_id"   validate:"required"`
	Amount      float64       `json:"amount"    validate:"min=0"`
	Status      PaymentStatus `json:"status"`
	ConfirmedAt *time.Time    `json:"confirmed_at,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// CardItem is one sold line item carried by a card.
type CardItem struct {
	ID       string  `json:"id"`
	TenantID string  `json:"tenant_id" validate:"required"`
	CardID   string  `json:"card_id"   validate:"required"`
	ItemID   string  `json:"item_id"   validate:"required"`
	Code     string  `json:"code,omitempty"`
	Amount   float64 `json:"amount"`
}

// CommissionRule defines how a team is compensated for an item. A rule bound
// to a specific ItemID beats a code-level fallback rule. Exactly one of
// Percentage or FixedAmount is set.
type CommissionRule struct {
	ID          string   `json:"id"`
	TenantID    string   `json:"tenant_id" validate:"required"`
	TeamID      string   `json:"team_id"   validate:"required"`
	ItemID      *string  `json:"item_id,omitempty"`
	Code        *string  `json:"code,omitempty"`
	Percentage  *float64 `json:"percentage,omitempty"   validate:"omitempty,min=0,max=100"`
	FixedAmount *float64 `json:"fixed_amount,omitempty" validate:"omitempty,min=0"`
}

// TeamAmount computes the team-level commission for a payment amount.
func (r *CommissionRule) TeamAmount(paymentAmount float64) float64 {
	if r.Percentage != nil {
		return paymentAmount * *r.Percentage / 100
	}

	if r.FixedAmount != nil {
		return *r.FixedAmount
	}

	return 0
}

// CommissionCalculation is the persisted team-level result of one
// payment/card commission run.
type CommissionCalculation struct {
	ID                         string    `json:"id"`
	TenantID                   string    `json:"tenant_id"`
	PaymentID                  string    `json:"payment_id"`
	CardID                     string    `json:"card_id"`
	TeamID                     string    `json:"team_id"`
	TotalAmount                float64   `json:"total_amount"`
	TotalDistributedPercentage float64   `json:"total_distributed_percentage"`
	CreatedAt                  time.Time `json:"created_at"`
}

// CommissionDistribution is one member's share of a calculation.
type CommissionDistribution struct {
	ID            string  `json:"id"`
	CalculationID string  `json:"calculation_id"`
	UserID        string  `json:"user_id"`
	Percentage    float64 `json:"percentage"`
	Amount        float64 `json:"amount"`
}
