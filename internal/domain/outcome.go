package domain

import (
	"github.com/shopspring/decimal"
)

// YearSnapshot is the year-end record produced by one simulated year.
type YearSnapshot struct {
	Year         int                        `json:"year"`
	Age          int                        `json:"age"`
	Balances     map[string]decimal.Decimal `json:"balances,omitempty"`
	NetWorth     decimal.Decimal            `json:"net_worth"`
	Target       decimal.Decimal            `json:"target"`
	Withdrawn    decimal.Decimal            `json:"withdrawn"`
	TaxesPaid    decimal.Decimal            `json:"taxes_paid"`
	Shortfall    decimal.Decimal            `json:"shortfall"`
	Inflation    decimal.Decimal            `json:"inflation"`
	IncomeUsed   decimal.Decimal            `json:"income_used"`
	DebtPayments decimal.Decimal            `json:"debt_payments"`
}

// TrialOutcome is the immutable result of one full simulated lifetime.
type TrialOutcome struct {
	TrialIndex    int             `json:"trial_index"`
	Success       bool            `json:"success"`
	FinalNetWorth decimal.Decimal `json:"final_net_worth"`
	DepletionYear int             `json:"depletion_year"` // -1 when the horizon completed
	TotalTaxes    decimal.Decimal `json:"total_taxes"`
	MaxDrawdown   decimal.Decimal `json:"max_drawdown"`
	Years         []YearSnapshot  `json:"years,omitempty"`
}

// SimulationResult aggregates all trial outcomes. It is built once by the
// engine and read-only afterward.
type SimulationResult struct {
	RunID        string          `json:"run_id"`
	NumTrials    int             `json:"num_trials"`
	Discarded    int             `json:"discarded_trials"`
	HorizonYears int             `json:"horizon_years"`
	Seed         int64           `json:"seed"`
	SuccessRate  decimal.Decimal `json:"success_rate"`

	MeanFinalNetWorth   decimal.Decimal `json:"mean_final_net_worth"`
	MedianFinalNetWorth decimal.Decimal `json:"median_final_net_worth"`

	// Percentiles of final net worth, keyed by percentile integer,
	// computed with the nearest-rank definition.
	Percentiles map[int]decimal.Decimal `json:"percentiles"`

	VaRConfidence  decimal.Decimal `json:"var_confidence"`
	ValueAtRisk    decimal.Decimal `json:"value_at_risk"`
	ConditionalVaR decimal.Decimal `json:"conditional_var"`

	SharpeRatio  decimal.Decimal `json:"sharpe_ratio"`
	SortinoRatio decimal.Decimal `json:"sortino_ratio"`

	// Max-drawdown distribution across trials.
	MeanMaxDrawdown     decimal.Decimal         `json:"mean_max_drawdown"`
	DrawdownPercentiles map[int]decimal.Decimal `json:"drawdown_percentiles"`

	// Per-trial trajectories, populated only when explicitly requested.
	Trajectories [][]YearSnapshot `json:"trajectories,omitempty"`
}
