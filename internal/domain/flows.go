package domain

import (
	"github.com/shopspring/decimal"
)

// IncomeStreamAccount models Social Security, a pension or an annuity: a
// scheduled, COLA-adjusted annual inflow with no withdrawable balance of its
// own. Its payments offset the year's spending target before any account is
// drawn on.
type IncomeStreamAccount struct {
	AccountName   string
	AnnualAmount  decimal.Decimal
	StartYear     int
	DurationYears int
	COLARate      decimal.Decimal
	TaxRate       decimal.Decimal
}

// NewIncomeStreamAccount creates an income stream starting at startYear
// (years from simulation start) and lasting durationYears.
func NewIncomeStreamAccount(name string, annualAmount decimal.Decimal, startYear, durationYears int, colaRate, taxRate decimal.Decimal) *IncomeStreamAccount {
	return &IncomeStreamAccount{
		AccountName:   name,
		AnnualAmount:  annualAmount,
		StartYear:     startYear,
		DurationYears: durationYears,
		COLARate:      colaRate,
		TaxRate:       taxRate,
	}
}

func (a *IncomeStreamAccount) Name() string             { return a.AccountName }
func (a *IncomeStreamAccount) Type() AccountType        { return AccountIncomeStream }
func (a *IncomeStreamAccount) Balance() decimal.Decimal { return decimal.Zero }
func (a *IncomeStreamAccount) ReturnClass() string      { return "" }
func (a *IncomeStreamAccount) Liquid(year int) bool     { return false }

// Active reports whether the stream pays out in the given year. A duration
// of zero means the stream pays for life.
func (a *IncomeStreamAccount) Active(year int) bool {
	if year < a.StartYear {
		return false
	}
	return a.DurationYears <= 0 || year < a.StartYear+a.DurationYears
}

// Payment returns the COLA-adjusted gross payment, the after-tax amount and
// the tax withheld for the given year. All zero outside the active window.
func (a *IncomeStreamAccount) Payment(year int) (gross, afterTax, tax decimal.Decimal) {
	if !a.Active(year) {
		return decimal.Zero, decimal.Zero, decimal.Zero
	}
	factor := one.Add(a.COLARate).Pow(decimal.NewFromInt(int64(year - a.StartYear)))
	gross = a.AnnualAmount.Mul(factor)
	tax = gross.Mul(a.TaxRate)
	return gross, gross.Sub(tax), tax
}

func (a *IncomeStreamAccount) Grow(classReturn decimal.Decimal) GrowthResult {
	return GrowthResult{}
}

// Withdraw always reports the full request as shortfall; income streams are
// funded through Payment, not drawn on.
func (a *IncomeStreamAccount) Withdraw(amount decimal.Decimal, age, year int) WithdrawalResult {
	return WithdrawalResult{Shortfall: amount}
}

func (a *IncomeStreamAccount) Deposit(amount decimal.Decimal) {}

func (a *IncomeStreamAccount) Clone() Account {
	clone := *a
	return &clone
}

// OneTimeInflowAccount models an expected inheritance: a latent value that
// compounds stochastically until its scheduled year, then is deposited into
// a designated target account. Step-up basis applies, so the deposit itself
// is untaxed. The account reports zero balance throughout.
type OneTimeInflowAccount struct {
	AccountName   string
	LatentValue   decimal.Decimal
	Class         string
	ScheduledYear int
	TargetAccount string
	Received      bool
}

// NewOneTimeInflowAccount creates an inflow of expectedAmount landing in the
// named target account at scheduledYear.
func NewOneTimeInflowAccount(name, class string, expectedAmount decimal.Decimal, scheduledYear int, targetAccount string) *OneTimeInflowAccount {
	return &OneTimeInflowAccount{
		AccountName:   name,
		LatentValue:   expectedAmount,
		Class:         class,
		ScheduledYear: scheduledYear,
		TargetAccount: targetAccount,
	}
}

func (a *OneTimeInflowAccount) Name() string             { return a.AccountName }
func (a *OneTimeInflowAccount) Type() AccountType        { return AccountOneTimeInflow }
func (a *OneTimeInflowAccount) Balance() decimal.Decimal { return decimal.Zero }
func (a *OneTimeInflowAccount) ReturnClass() string      { return a.Class }
func (a *OneTimeInflowAccount) Liquid(year int) bool     { return false }

func (a *OneTimeInflowAccount) Grow(classReturn decimal.Decimal) GrowthResult {
	if a.Received {
		return GrowthResult{}
	}
	growth := a.LatentValue.Mul(classReturn)
	a.LatentValue = a.LatentValue.Add(growth)
	if a.LatentValue.IsNegative() {
		a.LatentValue = decimal.Zero
	}
	return GrowthResult{}
}

// ReceiveIfDue returns the accumulated lump sum once the scheduled year
// arrives. Subsequent calls return zero.
func (a *OneTimeInflowAccount) ReceiveIfDue(year int) (decimal.Decimal, bool) {
	if a.Received || year < a.ScheduledYear {
		return decimal.Zero, false
	}
	a.Received = true
	amount := a.LatentValue
	a.LatentValue = decimal.Zero
	return amount, true
}

func (a *OneTimeInflowAccount) Withdraw(amount decimal.Decimal, age, year int) WithdrawalResult {
	return WithdrawalResult{Shortfall: amount}
}

func (a *OneTimeInflowAccount) Deposit(amount decimal.Decimal) {}

func (a *OneTimeInflowAccount) Clone() Account {
	clone := *a
	return &clone
}

// LiabilityAccount is an amortizing fixed-rate mortgage. Its balance is
// negative (or zero once paid off) and its scheduled annual payment must be
// sourced from the portfolio each year until payoff.
type LiabilityAccount struct {
	AccountName    string
	CurrentBalance decimal.Decimal // negative while outstanding
	InterestRate   decimal.Decimal
	AnnualPayment  decimal.Decimal
	PaidOff        bool
}

// NewLiabilityAccount creates a mortgage with the standard amortization
// payment over remainingYears. A positive principal is stored negated.
func NewLiabilityAccount(name string, principal, interestRate decimal.Decimal, remainingYears int) *LiabilityAccount {
	if principal.IsNegative() {
		principal = principal.Neg()
	}
	a := &LiabilityAccount{
		AccountName:    name,
		CurrentBalance: principal.Neg(),
		InterestRate:   interestRate,
	}
	a.AnnualPayment = amortizedAnnualPayment(principal, interestRate, remainingYears)
	a.PaidOff = !principal.IsPositive()
	return a
}

// amortizedAnnualPayment is twelve times the standard monthly amortization
// payment P*r*(1+r)^n / ((1+r)^n - 1) with a monthly rate.
func amortizedAnnualPayment(principal, annualRate decimal.Decimal, years int) decimal.Decimal {
	if years <= 0 || !principal.IsPositive() {
		return decimal.Zero
	}
	twelve := decimal.NewFromInt(12)
	months := decimal.NewFromInt(int64(years * 12))
	monthlyRate := annualRate.Div(twelve)
	if monthlyRate.IsZero() {
		return principal.Div(decimal.NewFromInt(int64(years)))
	}
	compound := one.Add(monthlyRate).Pow(months)
	monthly := principal.Mul(monthlyRate).Mul(compound).Div(compound.Sub(one))
	return monthly.Mul(twelve)
}

func (a *LiabilityAccount) Name() string             { return a.AccountName }
func (a *LiabilityAccount) Type() AccountType        { return AccountLiability }
func (a *LiabilityAccount) Balance() decimal.Decimal { return a.CurrentBalance }
func (a *LiabilityAccount) ReturnClass() string      { return "" }
func (a *LiabilityAccount) Liquid(year int) bool     { return false }

func (a *LiabilityAccount) Grow(classReturn decimal.Decimal) GrowthResult {
	return GrowthResult{}
}

func (a *LiabilityAccount) Withdraw(amount decimal.Decimal, age, year int) WithdrawalResult {
	return WithdrawalResult{Shortfall: amount}
}

// Deposit applies an extra principal payment.
func (a *LiabilityAccount) Deposit(amount decimal.Decimal) {
	if a.PaidOff {
		return
	}
	a.CurrentBalance = a.CurrentBalance.Add(amount)
	if !a.CurrentBalance.IsNegative() {
		a.CurrentBalance = decimal.Zero
		a.PaidOff = true
	}
}

// PaymentDue returns the cash the portfolio must supply this year: the
// scheduled payment, or the exact payoff when the remaining balance plus
// interest falls below it. It does not mutate the balance; the caller sources
// the cash and settles through ApplyPayment with whatever was raised.
func (a *LiabilityAccount) PaymentDue() decimal.Decimal {
	if a.PaidOff {
		return decimal.Zero
	}
	principal := a.CurrentBalance.Neg()
	payoff := principal.Add(principal.Mul(a.InterestRate))
	if payoff.LessThanOrEqual(a.AnnualPayment) {
		return payoff
	}
	return a.AnnualPayment
}

// ApplyPayment advances one amortization year with the cash actually raised.
// Interest accrues first; only the remainder reduces principal, so an
// underfunded payment can leave the balance larger than before.
func (a *LiabilityAccount) ApplyPayment(amount decimal.Decimal) {
	if a.PaidOff {
		return
	}
	if amount.IsNegative() {
		amount = decimal.Zero
	}

	principal := a.CurrentBalance.Neg()
	interest := principal.Mul(a.InterestRate)
	payoff := principal.Add(interest)

	if amount.GreaterThanOrEqual(payoff) {
		a.CurrentBalance = decimal.Zero
		a.PaidOff = true
		return
	}

	a.CurrentBalance = a.CurrentBalance.Add(amount.Sub(interest))
	if !a.CurrentBalance.IsNegative() {
		a.CurrentBalance = decimal.Zero
		a.PaidOff = true
	}
}

func (a *LiabilityAccount) Clone() Account {
	clone := *a
	return &clone
}
