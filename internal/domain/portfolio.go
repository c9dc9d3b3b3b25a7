package domain

import (
	"github.com/shopspring/decimal"
)

// InflationAssumptions parameterizes the mean-reverting inflation process
// shared by every account within a trial-year.
type InflationAssumptions struct {
	Mean           decimal.Decimal
	StdDev         decimal.Decimal
	ReversionSpeed decimal.Decimal
}

// Portfolio is the ordered collection of accounts owned by exactly one trial
// at a time, plus the global assumptions the simulation needs. Account order
// matters only for deterministic iteration in the withdrawal policies.
type Portfolio struct {
	Accounts   []Account
	CurrentAge int
	Inflation  InflationAssumptions
}

// Clone returns an independent deep copy for use by a single trial.
func (p *Portfolio) Clone() *Portfolio {
	accounts := make([]Account, len(p.Accounts))
	for i, a := range p.Accounts {
		accounts[i] = a.Clone()
	}
	return &Portfolio{
		Accounts:   accounts,
		CurrentAge: p.CurrentAge,
		Inflation:  p.Inflation,
	}
}

// Account returns the account with the given name, or nil.
func (p *Portfolio) Account(name string) Account {
	for _, a := range p.Accounts {
		if a.Name() == name {
			return a
		}
	}
	return nil
}

// AccountsOfType returns all accounts of the given type in portfolio order.
func (p *Portfolio) AccountsOfType(t AccountType) []Account {
	var out []Account
	for _, a := range p.Accounts {
		if a.Type() == t {
			out = append(out, a)
		}
	}
	return out
}

// TotalAssets sums every asset balance, including illiquid positions.
func (p *Portfolio) TotalAssets() decimal.Decimal {
	total := decimal.Zero
	for _, a := range p.Accounts {
		if a.Type() == AccountLiability {
			continue
		}
		total = total.Add(a.Balance())
	}
	return total
}

// LiquidAssets sums the balances available to satisfy spending in the given
// year; illiquid positions before their conversion year are excluded.
func (p *Portfolio) LiquidAssets(year int) decimal.Decimal {
	total := decimal.Zero
	for _, a := range p.Accounts {
		if a.Type() == AccountLiability || !a.Liquid(year) {
			continue
		}
		total = total.Add(a.Balance())
	}
	return total
}

// TotalLiabilities returns outstanding debt as a positive amount.
func (p *Portfolio) TotalLiabilities() decimal.Decimal {
	total := decimal.Zero
	for _, a := range p.Accounts {
		if a.Type() == AccountLiability {
			total = total.Add(a.Balance().Neg())
		}
	}
	return total
}

// NetWorth is total assets less total liabilities.
func (p *Portfolio) NetWorth() decimal.Decimal {
	return p.TotalAssets().Sub(p.TotalLiabilities())
}

// DepositTarget returns the account that receives surplus cash: the first
// cash account, else the first taxable account, else nil.
func (p *Portfolio) DepositTarget() Account {
	if cash := p.AccountsOfType(AccountCash); len(cash) > 0 {
		return cash[0]
	}
	if taxable := p.AccountsOfType(AccountTaxable); len(taxable) > 0 {
		return taxable[0]
	}
	return nil
}
