package simulation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wealthsim/retirement-simulator/internal/domain"
)

func d(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func spendingPortfolio() *domain.Portfolio {
	return &domain.Portfolio{
		CurrentAge: 65,
		Accounts: []domain.Account{
			domain.NewCashAccount("checking", d(10000), d(0.03)),
			domain.NewTaxableAccount("brokerage", "stocks", d(50000), d(1), decimal.Zero, decimal.Zero, d(0.15)),
			domain.NewTaxDeferredAccount("ira", "stocks", d(80000), d(1), decimal.Zero, d(0.22), d(0.10)),
			domain.NewTaxFreeAccount("roth", "stocks", d(30000), d(1), decimal.Zero, d(0.10)),
		},
	}
}

func TestOrderedPolicyDrainsInPriorityOrder(t *testing.T) {
	p := spendingPortfolio()
	policy := NewOrderedPolicy()

	// 10k cash + 50k taxable + first 5k of the IRA.
	alloc := policy.Allocate(d(65000), p, 65, 1)

	assert.True(t, alloc.Withdrawals["checking"].Equal(d(10000)))
	assert.True(t, alloc.Withdrawals["brokerage"].Equal(d(50000)))
	assert.True(t, alloc.Withdrawals["ira"].Equal(d(5000)))
	_, touchedRoth := alloc.Withdrawals["roth"]
	assert.False(t, touchedRoth, "tax-free money is drawn last")
	assert.True(t, alloc.Shortfall.IsZero())
}

func TestOrderedPolicyReportsShortfall(t *testing.T) {
	p := spendingPortfolio()
	policy := NewOrderedPolicy()

	alloc := policy.Allocate(d(200000), p, 65, 1)

	total := decimal.Zero
	for _, amount := range alloc.Withdrawals {
		total = total.Add(amount)
	}
	assert.True(t, total.Equal(d(170000)), "everything liquid is drained")
	assert.True(t, alloc.Shortfall.Equal(d(30000)))
	// Withdrawn plus shortfall must reconstruct the target exactly.
	assert.True(t, total.Add(alloc.Shortfall).Equal(d(200000)))
}

func TestOrderedPolicySkipsLockedIlliquid(t *testing.T) {
	p := &domain.Portfolio{
		CurrentAge: 65,
		Accounts: []domain.Account{
			domain.NewIlliquidAccount("private", "private", d(150000), 4, d(0.15)),
			domain.NewTaxFreeAccount("roth", "stocks", d(30000), d(1), decimal.Zero, d(0.10)),
		},
	}
	policy := NewOrderedPolicy()

	alloc := policy.Allocate(d(20000), p, 65, 1)
	_, touched := alloc.Withdrawals["private"]
	assert.False(t, touched, "locked positions cannot satisfy demand")
	assert.True(t, alloc.Withdrawals["roth"].Equal(d(20000)))

	// After conversion the position participates in its normal slot.
	alloc = policy.Allocate(d(20000), p, 65, 4)
	assert.True(t, alloc.Withdrawals["private"].Equal(d(20000)))
}

func TestTaxEfficientPolicyPrefersCheaperMoney(t *testing.T) {
	// The brokerage has zero unrealized gain (cost 0 per dollar); the IRA
	// costs 22 cents per dollar. After cash, the brokerage must go first.
	p := spendingPortfolio()
	policy := NewTaxEfficientPolicy()

	alloc := policy.Allocate(d(30000), p, 65, 1)
	assert.True(t, alloc.Withdrawals["checking"].Equal(d(10000)), "cash always leads")
	assert.True(t, alloc.Withdrawals["brokerage"].Equal(d(20000)))
	_, touchedIRA := alloc.Withdrawals["ira"]
	assert.False(t, touchedIRA)
}

func TestTaxEfficientPolicyPrefersRothOverTaxedIRA(t *testing.T) {
	p := &domain.Portfolio{
		CurrentAge: 70,
		Accounts: []domain.Account{
			domain.NewTaxDeferredAccount("ira", "stocks", d(80000), d(1), decimal.Zero, d(0.22), d(0.10)),
			domain.NewTaxFreeAccount("roth", "stocks", d(30000), d(1), decimal.Zero, d(0.10)),
		},
	}
	policy := NewTaxEfficientPolicy()

	alloc := policy.Allocate(d(10000), p, 70, 1)
	assert.True(t, alloc.Withdrawals["roth"].Equal(d(10000)), "free money beats 22%% ordinary income")
	assert.True(t, alloc.Taxes.IsZero())
}

func TestTaxEfficientPolicyTieBreaksByName(t *testing.T) {
	p := &domain.Portfolio{
		CurrentAge: 70,
		Accounts: []domain.Account{
			domain.NewTaxDeferredAccount("zeta", "stocks", d(50000), d(1), decimal.Zero, d(0.22), d(0.10)),
			domain.NewTaxDeferredAccount("alpha", "stocks", d(50000), d(1), decimal.Zero, d(0.22), d(0.10)),
		},
	}
	policy := NewTaxEfficientPolicy()

	alloc := policy.Allocate(d(10000), p, 70, 1)
	assert.True(t, alloc.Withdrawals["alpha"].Equal(d(10000)), "identical cost resolves alphabetically")
	_, touched := alloc.Withdrawals["zeta"]
	assert.False(t, touched)
}

func TestProportionalPolicyWeightsByBalance(t *testing.T) {
	p := &domain.Portfolio{
		CurrentAge: 65,
		Accounts: []domain.Account{
			domain.NewCashAccount("a", d(75000), decimal.Zero),
			domain.NewCashAccount("b", d(25000), decimal.Zero),
		},
	}
	policy := NewProportionalPolicy()

	alloc := policy.Allocate(d(10000), p, 65, 1)
	assert.True(t, alloc.Withdrawals["a"].Equal(d(7500)), "a = %s", alloc.Withdrawals["a"])
	assert.True(t, alloc.Withdrawals["b"].Equal(d(2500)), "b = %s", alloc.Withdrawals["b"])
	assert.True(t, alloc.Shortfall.IsZero())
}

func TestProportionalPolicyDrainsEverythingWhenTargetExceedsAssets(t *testing.T) {
	p := &domain.Portfolio{
		CurrentAge: 65,
		Accounts: []domain.Account{
			domain.NewCashAccount("a", d(1000), decimal.Zero),
			domain.NewCashAccount("b", d(9000), decimal.Zero),
		},
	}
	policy := NewProportionalPolicy()

	alloc := policy.Allocate(d(50000), p, 65, 1)
	require.True(t, alloc.Withdrawals["a"].Equal(d(1000)))
	require.True(t, alloc.Withdrawals["b"].Equal(d(9000)))
	assert.True(t, alloc.Shortfall.Equal(d(40000)), "shortfall = %s", alloc.Shortfall)

	for _, acct := range p.Accounts {
		assert.False(t, acct.Balance().IsNegative())
	}
}

func TestPoliciesAreDeterministic(t *testing.T) {
	for _, policy := range []WithdrawalPolicy{NewOrderedPolicy(), NewTaxEfficientPolicy(), NewProportionalPolicy()} {
		first := policy.Allocate(d(30000), spendingPortfolio(), 65, 1)
		second := policy.Allocate(d(30000), spendingPortfolio(), 65, 1)
		assert.Equal(t, first, second, "policy %s must be deterministic", policy.Name())
	}
}
