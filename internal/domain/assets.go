package domain

import (
	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// CashAccount is a savings-style account with a deterministic return and no
// tax on withdrawal.
type CashAccount struct {
	AccountName    string
	CurrentBalance decimal.Decimal
	AnnualReturn   decimal.Decimal
}

// NewCashAccount creates a cash account with a fixed annual return.
func NewCashAccount(name string, balance, annualReturn decimal.Decimal) *CashAccount {
	return &CashAccount{AccountName: name, CurrentBalance: balance, AnnualReturn: annualReturn}
}

func (a *CashAccount) Name() string             { return a.AccountName }
func (a *CashAccount) Type() AccountType        { return AccountCash }
func (a *CashAccount) Balance() decimal.Decimal { return a.CurrentBalance }
func (a *CashAccount) ReturnClass() string      { return "" }
func (a *CashAccount) Liquid(year int) bool     { return true }

func (a *CashAccount) Grow(classReturn decimal.Decimal) GrowthResult {
	interest := a.CurrentBalance.Mul(a.AnnualReturn)
	a.CurrentBalance = a.CurrentBalance.Add(interest)
	return GrowthResult{Growth: interest}
}

func (a *CashAccount) Withdraw(amount decimal.Decimal, age, year int) WithdrawalResult {
	taken, shortfall := partialFill(amount, a.CurrentBalance)
	a.CurrentBalance = a.CurrentBalance.Sub(taken)
	return WithdrawalResult{Withdrawn: taken, Shortfall: shortfall}
}

func (a *CashAccount) Deposit(amount decimal.Decimal) {
	a.CurrentBalance = a.CurrentBalance.Add(amount)
}

func (a *CashAccount) Clone() Account {
	clone := *a
	return &clone
}

// TaxableAccount is a brokerage account split between a stochastic stock
// sleeve and a deterministic cash sleeve. Withdrawals realize capital gains
// proportional to the tracked basis ratio; dividends are taxed annually and
// reinvested.
type TaxableAccount struct {
	AccountName     string
	CurrentBalance  decimal.Decimal
	CostBasis       decimal.Decimal
	Class           string
	StockAllocation decimal.Decimal
	CashReturn      decimal.Decimal
	DividendYield   decimal.Decimal
	CapitalGainsTax decimal.Decimal
}

// NewTaxableAccount creates a taxable brokerage account. The initial balance
// becomes the starting cost basis.
func NewTaxableAccount(name, class string, balance, stockAllocation, cashReturn, dividendYield, capitalGainsTax decimal.Decimal) *TaxableAccount {
	return &TaxableAccount{
		AccountName:     name,
		CurrentBalance:  balance,
		CostBasis:       balance,
		Class:           class,
		StockAllocation: stockAllocation,
		CashReturn:      cashReturn,
		DividendYield:   dividendYield,
		CapitalGainsTax: capitalGainsTax,
	}
}

func (a *TaxableAccount) Name() string             { return a.AccountName }
func (a *TaxableAccount) Type() AccountType        { return AccountTaxable }
func (a *TaxableAccount) Balance() decimal.Decimal { return a.CurrentBalance }
func (a *TaxableAccount) ReturnClass() string      { return a.Class }
func (a *TaxableAccount) Liquid(year int) bool     { return true }

func (a *TaxableAccount) Grow(classReturn decimal.Decimal) GrowthResult {
	stockValue := a.CurrentBalance.Mul(a.StockAllocation)
	cashValue := a.CurrentBalance.Sub(stockValue)

	growth := stockValue.Mul(classReturn).Add(cashValue.Mul(a.CashReturn))
	dividends := stockValue.Mul(a.DividendYield)
	dividendTax := dividends.Mul(a.CapitalGainsTax)

	// Dividends are reinvested; reinvested dividends raise the basis.
	a.CurrentBalance = a.CurrentBalance.Add(growth).Add(dividends)
	a.CostBasis = a.CostBasis.Add(dividends)

	return GrowthResult{Growth: growth.Add(dividends), TaxOwed: dividendTax}
}

func (a *TaxableAccount) Withdraw(amount decimal.Decimal, age, year int) WithdrawalResult {
	balanceBefore := a.CurrentBalance
	taken, shortfall := partialFill(amount, a.CurrentBalance)
	a.CurrentBalance = a.CurrentBalance.Sub(taken)

	var tax decimal.Decimal
	if balanceBefore.IsPositive() && a.CostBasis.IsPositive() {
		gainRatio := balanceBefore.Sub(a.CostBasis).Div(balanceBefore)
		if gainRatio.IsNegative() {
			gainRatio = decimal.Zero
		}
		tax = taken.Mul(gainRatio).Mul(a.CapitalGainsTax)
	}

	// Reduce basis in proportion to the withdrawal.
	if balanceBefore.IsPositive() {
		reduction := one.Sub(taken.Div(balanceBefore))
		a.CostBasis = a.CostBasis.Mul(reduction)
	}
	if a.CurrentBalance.LessThanOrEqual(decimal.Zero) {
		a.CostBasis = decimal.Zero
	}

	return WithdrawalResult{Withdrawn: taken, Tax: tax, Shortfall: shortfall}
}

func (a *TaxableAccount) Deposit(amount decimal.Decimal) {
	a.CurrentBalance = a.CurrentBalance.Add(amount)
	a.CostBasis = a.CostBasis.Add(amount)
}

func (a *TaxableAccount) Clone() Account {
	clone := *a
	return &clone
}

// TaxDeferredAccount is a traditional IRA-style account. Withdrawals are
// taxed as ordinary income, with an early-withdrawal penalty below the
// penalty-free age and forced minimum distributions from the RMD start age.
type TaxDeferredAccount struct {
	AccountName     string
	CurrentBalance  decimal.Decimal
	Class           string
	StockAllocation decimal.Decimal
	CashReturn      decimal.Decimal
	OrdinaryTaxRate decimal.Decimal
	PenaltyRate     decimal.Decimal
	PenaltyFreeAge  int
	RMDStartAge     int
}

// NewTaxDeferredAccount creates a tax-deferred account with the default
// penalty-free and RMD start ages.
func NewTaxDeferredAccount(name, class string, balance, stockAllocation, cashReturn, ordinaryTaxRate, penaltyRate decimal.Decimal) *TaxDeferredAccount {
	return &TaxDeferredAccount{
		AccountName:     name,
		CurrentBalance:  balance,
		Class:           class,
		StockAllocation: stockAllocation,
		CashReturn:      cashReturn,
		OrdinaryTaxRate: ordinaryTaxRate,
		PenaltyRate:     penaltyRate,
		PenaltyFreeAge:  DefaultPenaltyFreeAge,
		RMDStartAge:     DefaultRMDStartAge,
	}
}

func (a *TaxDeferredAccount) Name() string             { return a.AccountName }
func (a *TaxDeferredAccount) Type() AccountType        { return AccountTaxDeferred }
func (a *TaxDeferredAccount) Balance() decimal.Decimal { return a.CurrentBalance }
func (a *TaxDeferredAccount) ReturnClass() string      { return a.Class }
func (a *TaxDeferredAccount) Liquid(year int) bool     { return true }

func (a *TaxDeferredAccount) Grow(classReturn decimal.Decimal) GrowthResult {
	stockValue := a.CurrentBalance.Mul(a.StockAllocation)
	cashValue := a.CurrentBalance.Sub(stockValue)

	growth := stockValue.Mul(classReturn).Add(cashValue.Mul(a.CashReturn))
	a.CurrentBalance = a.CurrentBalance.Add(growth)
	return GrowthResult{Growth: growth}
}

func (a *TaxDeferredAccount) Withdraw(amount decimal.Decimal, age, year int) WithdrawalResult {
	taken, shortfall := partialFill(amount, a.CurrentBalance)
	a.CurrentBalance = a.CurrentBalance.Sub(taken)

	tax := taken.Mul(a.OrdinaryTaxRate)
	var penalty decimal.Decimal
	if age < a.PenaltyFreeAge {
		penalty = taken.Mul(a.PenaltyRate)
	}

	return WithdrawalResult{Withdrawn: taken, Tax: tax, Penalty: penalty, Shortfall: shortfall}
}

func (a *TaxDeferredAccount) Deposit(amount decimal.Decimal) {
	a.CurrentBalance = a.CurrentBalance.Add(amount)
}

// RequiredMinimum returns the forced distribution for the given age, zero
// below the RMD start age.
func (a *TaxDeferredAccount) RequiredMinimum(age int) decimal.Decimal {
	if age < a.RMDStartAge || !a.CurrentBalance.IsPositive() {
		return decimal.Zero
	}
	return a.CurrentBalance.Div(UniformLifetimeDivisor(age))
}

func (a *TaxDeferredAccount) Clone() Account {
	clone := *a
	return &clone
}

// TaxFreeAccount is a Roth-style account. Withdrawals are untaxed;
// contributions (basis) come out first and only the earnings portion is
// penalized before the penalty-free age.
type TaxFreeAccount struct {
	AccountName       string
	CurrentBalance    decimal.Decimal
	ContributionBasis decimal.Decimal
	Class             string
	StockAllocation   decimal.Decimal
	CashReturn        decimal.Decimal
	PenaltyRate       decimal.Decimal
	PenaltyFreeAge    int
}

// NewTaxFreeAccount creates a Roth-style account. The initial balance is
// treated entirely as contribution basis.
func NewTaxFreeAccount(name, class string, balance, stockAllocation, cashReturn, penaltyRate decimal.Decimal) *TaxFreeAccount {
	return &TaxFreeAccount{
		AccountName:       name,
		CurrentBalance:    balance,
		ContributionBasis: balance,
		Class:             class,
		StockAllocation:   stockAllocation,
		CashReturn:        cashReturn,
		PenaltyRate:       penaltyRate,
		PenaltyFreeAge:    DefaultPenaltyFreeAge,
	}
}

func (a *TaxFreeAccount) Name() string             { return a.AccountName }
func (a *TaxFreeAccount) Type() AccountType        { return AccountTaxFree }
func (a *TaxFreeAccount) Balance() decimal.Decimal { return a.CurrentBalance }
func (a *TaxFreeAccount) ReturnClass() string      { return a.Class }
func (a *TaxFreeAccount) Liquid(year int) bool     { return true }

func (a *TaxFreeAccount) Grow(classReturn decimal.Decimal) GrowthResult {
	stockValue := a.CurrentBalance.Mul(a.StockAllocation)
	cashValue := a.CurrentBalance.Sub(stockValue)

	growth := stockValue.Mul(classReturn).Add(cashValue.Mul(a.CashReturn))
	a.CurrentBalance = a.CurrentBalance.Add(growth)
	return GrowthResult{Growth: growth}
}

func (a *TaxFreeAccount) Withdraw(amount decimal.Decimal, age, year int) WithdrawalResult {
	taken, shortfall := partialFill(amount, a.CurrentBalance)
	a.CurrentBalance = a.CurrentBalance.Sub(taken)

	// Basis comes out first; only earnings beyond basis are penalized.
	basisDrawn := decimal.Min(taken, a.ContributionBasis)
	a.ContributionBasis = a.ContributionBasis.Sub(basisDrawn)
	earnings := taken.Sub(basisDrawn)

	var penalty decimal.Decimal
	if age < a.PenaltyFreeAge && earnings.IsPositive() {
		penalty = earnings.Mul(a.PenaltyRate)
	}

	return WithdrawalResult{Withdrawn: taken, Penalty: penalty, Shortfall: shortfall}
}

func (a *TaxFreeAccount) Deposit(amount decimal.Decimal) {
	a.CurrentBalance = a.CurrentBalance.Add(amount)
	a.ContributionBasis = a.ContributionBasis.Add(amount)
}

func (a *TaxFreeAccount) Clone() Account {
	clone := *a
	return &clone
}

// IlliquidAccount holds private stock, RSUs or similar positions that cannot
// satisfy withdrawal demand before a configured conversion year. The
// position keeps growing while locked; after conversion it behaves like a
// taxable position with its original value as basis.
type IlliquidAccount struct {
	AccountName     string
	CurrentBalance  decimal.Decimal
	OriginalBalance decimal.Decimal
	Class           string
	ConversionYear  int
	CapitalGainsTax decimal.Decimal
}

// NewIlliquidAccount creates an illiquid position that unlocks at the given
// simulation year.
func NewIlliquidAccount(name, class string, balance decimal.Decimal, conversionYear int, capitalGainsTax decimal.Decimal) *IlliquidAccount {
	return &IlliquidAccount{
		AccountName:     name,
		CurrentBalance:  balance,
		OriginalBalance: balance,
		Class:           class,
		ConversionYear:  conversionYear,
		CapitalGainsTax: capitalGainsTax,
	}
}

func (a *IlliquidAccount) Name() string             { return a.AccountName }
func (a *IlliquidAccount) Type() AccountType        { return AccountIlliquid }
func (a *IlliquidAccount) Balance() decimal.Decimal { return a.CurrentBalance }
func (a *IlliquidAccount) ReturnClass() string      { return a.Class }

// Liquid reports whether the position has passed its conversion year.
func (a *IlliquidAccount) Liquid(year int) bool { return year >= a.ConversionYear }

func (a *IlliquidAccount) Grow(classReturn decimal.Decimal) GrowthResult {
	growth := a.CurrentBalance.Mul(classReturn)
	a.CurrentBalance = a.CurrentBalance.Add(growth)
	if a.CurrentBalance.IsNegative() {
		a.CurrentBalance = decimal.Zero
	}
	return GrowthResult{Growth: growth}
}

func (a *IlliquidAccount) Withdraw(amount decimal.Decimal, age, year int) WithdrawalResult {
	// Before conversion the position behaves as if its balance were zero
	// for spending purposes: nothing withdrawn, the full request is
	// shortfall, yet the balance keeps compounding.
	if !a.Liquid(year) {
		return WithdrawalResult{Shortfall: amount}
	}

	balanceBefore := a.CurrentBalance
	taken, shortfall := partialFill(amount, a.CurrentBalance)
	a.CurrentBalance = a.CurrentBalance.Sub(taken)

	var tax decimal.Decimal
	if balanceBefore.GreaterThan(a.OriginalBalance) && balanceBefore.IsPositive() {
		gainRatio := balanceBefore.Sub(a.OriginalBalance).Div(balanceBefore)
		tax = taken.Mul(gainRatio).Mul(a.CapitalGainsTax)
	}

	return WithdrawalResult{Withdrawn: taken, Tax: tax, Shortfall: shortfall}
}

func (a *IlliquidAccount) Deposit(amount decimal.Decimal) {
	a.CurrentBalance = a.CurrentBalance.Add(amount)
	a.OriginalBalance = a.OriginalBalance.Add(amount)
}

func (a *IlliquidAccount) Clone() Account {
	clone := *a
	return &clone
}
