package domain

import (
	"github.com/shopspring/decimal"
)

// AccountType identifies one of the closed set of account variants.
type AccountType string

const (
	AccountCash          AccountType = "cash"
	AccountTaxable       AccountType = "taxable"
	AccountTaxDeferred   AccountType = "tax_deferred"
	AccountTaxFree       AccountType = "tax_free"
	AccountIlliquid      AccountType = "illiquid"
	AccountIncomeStream  AccountType = "income_stream"
	AccountOneTimeInflow AccountType = "one_time_inflow"
	AccountLiability     AccountType = "liability"
)

// DefaultPenaltyFreeAge is the age at which early-withdrawal penalties stop
// applying (the 59-and-a-half rule, evaluated on integer ages).
const DefaultPenaltyFreeAge = 60

// DefaultRMDStartAge is the age at which required minimum distributions begin.
const DefaultRMDStartAge = 72

// GrowthResult reports what a single year of growth did to an account.
type GrowthResult struct {
	Growth  decimal.Decimal // total balance change from returns and dividends
	TaxOwed decimal.Decimal // taxes due immediately (e.g. dividend income)
}

// WithdrawalResult reports the outcome of a withdrawal request. A request
// exceeding the available balance is partially filled and the unmet portion
// is surfaced as Shortfall; balances never go negative.
type WithdrawalResult struct {
	Withdrawn decimal.Decimal
	Tax       decimal.Decimal
	Penalty   decimal.Decimal
	Shortfall decimal.Decimal
}

// Account is the shared capability set of every variant. The variant set is
// fixed and enumerable; policy code dispatches on Type() where a variant
// needs special treatment (RMDs, conversion gates, scheduled inflows).
type Account interface {
	Name() string
	Type() AccountType

	// Balance is the current withdrawable balance. Income streams and
	// pending one-time inflows report zero.
	Balance() decimal.Decimal

	// ReturnClass names the return distribution this account draws from.
	// Empty means the account grows deterministically.
	ReturnClass() string

	// Grow applies one year of returns. classReturn is the sampled nominal
	// return for the account's return class (ignored by deterministic
	// accounts).
	Grow(classReturn decimal.Decimal) GrowthResult

	// Withdraw removes up to amount from the account, applying the
	// variant's tax and penalty rules for the given age and simulation
	// year.
	Withdraw(amount decimal.Decimal, age, year int) WithdrawalResult

	// Deposit adds funds to the account.
	Deposit(amount decimal.Decimal)

	// Liquid reports whether the account can satisfy withdrawal demand in
	// the given simulation year.
	Liquid(year int) bool

	// Clone returns an independent deep copy for use by a single trial.
	Clone() Account
}

// partialFill caps a withdrawal request at the available balance and returns
// the amount actually taken and the unmet remainder.
func partialFill(requested, balance decimal.Decimal) (taken, shortfall decimal.Decimal) {
	if requested.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, decimal.Zero
	}
	if requested.GreaterThan(balance) {
		return balance, requested.Sub(balance)
	}
	return requested, decimal.Zero
}
