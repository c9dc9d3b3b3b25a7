package simulation

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/wealthsim/retirement-simulator/internal/domain"
)

// Allocation records how a year's withdrawal demand was sourced.
type Allocation struct {
	Withdrawals map[string]decimal.Decimal // by account name; only nonzero entries
	Taxes       decimal.Decimal
	Penalties   decimal.Decimal
	Shortfall   decimal.Decimal
}

// WithdrawalPolicy decides how a year's residual spending need is drawn from
// the portfolio's accounts. Implementations mutate account balances through
// Account.Withdraw and must be deterministic for identical account states.
type WithdrawalPolicy interface {
	Name() string
	Allocate(target decimal.Decimal, p *domain.Portfolio, age, year int) Allocation
}

// DefaultDrainOrder is the priority used by OrderedPolicy when none is
// configured: cheapest-to-touch money first, tax-free money last.
var DefaultDrainOrder = []domain.AccountType{
	domain.AccountCash,
	domain.AccountTaxable,
	domain.AccountIlliquid,
	domain.AccountTaxDeferred,
	domain.AccountTaxFree,
}

func newAllocation() Allocation {
	return Allocation{
		Withdrawals: make(map[string]decimal.Decimal),
		Taxes:       decimal.Zero,
		Penalties:   decimal.Zero,
		Shortfall:   decimal.Zero,
	}
}

// drawFrom withdraws up to remaining from one account and folds the result
// into the allocation, returning the still-unmet remainder.
func (al *Allocation) drawFrom(acct domain.Account, remaining decimal.Decimal, age, year int) decimal.Decimal {
	res := acct.Withdraw(remaining, age, year)
	if res.Withdrawn.IsPositive() {
		al.Withdrawals[acct.Name()] = al.Withdrawals[acct.Name()].Add(res.Withdrawn)
	}
	al.Taxes = al.Taxes.Add(res.Tax)
	al.Penalties = al.Penalties.Add(res.Penalty)
	return remaining.Sub(res.Withdrawn)
}

// OrderedPolicy drains accounts in a fixed type-priority order, within a type
// in portfolio order, until the target is met or everything liquid is empty.
type OrderedPolicy struct {
	Order []domain.AccountType
}

func NewOrderedPolicy() *OrderedPolicy {
	return &OrderedPolicy{Order: DefaultDrainOrder}
}

func (op *OrderedPolicy) Name() string { return "ordered" }

func (op *OrderedPolicy) Allocate(target decimal.Decimal, p *domain.Portfolio, age, year int) Allocation {
	alloc := newAllocation()
	remaining := target
	for _, t := range op.Order {
		if !remaining.IsPositive() {
			break
		}
		for _, acct := range p.AccountsOfType(t) {
			if !remaining.IsPositive() {
				break
			}
			if !acct.Liquid(year) || !acct.Balance().IsPositive() {
				continue
			}
			remaining = alloc.drawFrom(acct, remaining, age, year)
		}
	}
	if remaining.IsPositive() {
		alloc.Shortfall = remaining
	}
	return alloc
}

// TaxEfficientPolicy drains cash first, then repeatedly picks the liquid
// account with the lowest marginal tax cost per dollar withdrawn, breaking
// ties by account name so the allocation is deterministic.
type TaxEfficientPolicy struct{}

func NewTaxEfficientPolicy() *TaxEfficientPolicy { return &TaxEfficientPolicy{} }

func (tp *TaxEfficientPolicy) Name() string { return "tax_efficient" }

func (tp *TaxEfficientPolicy) Allocate(target decimal.Decimal, p *domain.Portfolio, age, year int) Allocation {
	alloc := newAllocation()
	remaining := target

	for _, acct := range p.AccountsOfType(domain.AccountCash) {
		if !remaining.IsPositive() {
			break
		}
		if acct.Balance().IsPositive() {
			remaining = alloc.drawFrom(acct, remaining, age, year)
		}
	}

	for remaining.IsPositive() {
		best := tp.cheapestAccount(p, age, year)
		if best == nil {
			break
		}
		remaining = alloc.drawFrom(best, remaining, age, year)
	}

	if remaining.IsPositive() {
		alloc.Shortfall = remaining
	}
	return alloc
}

func (tp *TaxEfficientPolicy) cheapestAccount(p *domain.Portfolio, age, year int) domain.Account {
	type candidate struct {
		acct domain.Account
		cost decimal.Decimal
	}
	var candidates []candidate
	for _, acct := range p.Accounts {
		if acct.Type() == domain.AccountCash || !acct.Liquid(year) || !acct.Balance().IsPositive() {
			continue
		}
		candidates = append(candidates, candidate{acct: acct, cost: marginalTaxCost(acct, age)})
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].cost.Equal(candidates[j].cost) {
			return candidates[i].cost.LessThan(candidates[j].cost)
		}
		return candidates[i].acct.Name() < candidates[j].acct.Name()
	})
	return candidates[0].acct
}

// marginalTaxCost estimates the tax plus penalty paid on the next dollar
// withdrawn from an account. The variant set is closed, so the switch is
// exhaustive for every spendable type.
func marginalTaxCost(acct domain.Account, age int) decimal.Decimal {
	switch a := acct.(type) {
	case *domain.TaxableAccount:
		return gainRatio(a.CurrentBalance, a.CostBasis).Mul(a.CapitalGainsTax)
	case *domain.IlliquidAccount:
		return gainRatio(a.CurrentBalance, a.OriginalBalance).Mul(a.CapitalGainsTax)
	case *domain.TaxDeferredAccount:
		cost := a.OrdinaryTaxRate
		if age < a.PenaltyFreeAge {
			cost = cost.Add(a.PenaltyRate)
		}
		return cost
	case *domain.TaxFreeAccount:
		// Contributions come out free; only once basis is exhausted do
		// early earnings withdrawals attract the penalty.
		if a.ContributionBasis.IsPositive() || age >= a.PenaltyFreeAge {
			return decimal.Zero
		}
		return a.PenaltyRate
	default:
		return decimal.Zero
	}
}

func gainRatio(balance, basis decimal.Decimal) decimal.Decimal {
	if !balance.IsPositive() {
		return decimal.Zero
	}
	ratio := balance.Sub(basis).Div(balance)
	if ratio.IsNegative() {
		return decimal.Zero
	}
	return ratio
}

// ProportionalPolicy splits the target across all liquid accounts weighted by
// balance, then redistributes any capped account's unmet share among the
// remaining accounts. The loop is bounded: each pass either fills the target
// exactly or empties at least one account.
type ProportionalPolicy struct{}

func NewProportionalPolicy() *ProportionalPolicy { return &ProportionalPolicy{} }

func (pp *ProportionalPolicy) Name() string { return "proportional" }

func (pp *ProportionalPolicy) Allocate(target decimal.Decimal, p *domain.Portfolio, age, year int) Allocation {
	alloc := newAllocation()
	remaining := target

	for remaining.IsPositive() {
		var candidates []domain.Account
		total := decimal.Zero
		for _, acct := range p.Accounts {
			if acct.Liquid(year) && acct.Balance().IsPositive() {
				candidates = append(candidates, acct)
				total = total.Add(acct.Balance())
			}
		}
		if len(candidates) == 0 || !total.IsPositive() {
			break
		}

		// The last share absorbs division rounding so the requests sum
		// to exactly the remaining need.
		requested := decimal.Zero
		before := remaining
		for i, acct := range candidates {
			var share decimal.Decimal
			if i == len(candidates)-1 {
				share = before.Sub(requested)
			} else {
				share = before.Mul(acct.Balance()).Div(total)
			}
			requested = requested.Add(share)
			if share.IsPositive() {
				unmet := alloc.drawFrom(acct, share, age, year)
				remaining = remaining.Sub(share.Sub(unmet))
			}
		}

		if remaining.Equal(before) {
			break
		}
	}

	if remaining.IsPositive() {
		alloc.Shortfall = remaining
	}
	return alloc
}
