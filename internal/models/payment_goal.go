package models

import "time"

// GoalStatus is the lifecycle state of a payment goal
type GoalStatus string

const (
	GoalStatusOngoing   GoalStatus = "ongoing"
	GoalStatusOverdue   GoalStatus = "overdue"
	GoalStatusCompleted GoalStatus = "completed"
)

// MaxProgressPercent is the largest value the progress_percent column holds.
const MaxProgressPercent = 99999.99

// PaymentGoal is a savings target funded through allocations.
// Amount and ProgressPercent change only through the fund allocator.
type PaymentGoal struct {
	Base
	Code            string     `gorm:"not null;uniqueIndex" json:"code"`
	Name            string     `gorm:"not null" json:"name"`
	Description     string     `json:"description"`
	TargetAmount    int64      `gorm:"type:bigint;not null" json:"target_amount"`
	Amount          int64      `gorm:"type:bigint;not null;default:0" json:"amount"`
	ProgressPercent float64    `gorm:"type:numeric(7,2);not null;default:0" json:"progress_percent"`
	Status          GoalStatus `gorm:"not null;default:'ongoing'" json:"status"`
	TargetDate      *time.Time `json:"target_date,omitempty"`
}

// Remaining returns how much is still needed to reach the target, never negative.
func (g *PaymentGoal) Remaining() int64 {
	if g.Amount >= g.TargetAmount {
		return 0
	}
	return g.TargetAmount - g.Amount
}
