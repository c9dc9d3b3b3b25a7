package simulation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wealthsim/retirement-simulator/internal/domain"
)

func TestTrialCashOnlyClosedForm(t *testing.T) {
	// $100k at a deterministic 3% with a $3k withdrawal: the withdrawal
	// exactly equals each year's interest, so the balance never moves.
	p := &domain.Portfolio{
		CurrentAge: 65,
		Accounts:   []domain.Account{domain.NewCashAccount("checking", d(100000), d(0.03))},
	}
	runner := &TrialRunner{
		Template:         p,
		Policy:           NewOrderedPolicy(),
		Generator:        &FixedReturnGenerator{Returns: map[string]decimal.Decimal{}, Inflation: decimal.Zero},
		HorizonYears:     10,
		AnnualWithdrawal: d(3000),
		KeepYears:        true,
	}

	outcome, err := runner.Run(0)
	require.NoError(t, err)

	assert.True(t, outcome.Success)
	assert.Equal(t, -1, outcome.DepletionYear)
	assert.True(t, outcome.FinalNetWorth.Equal(d(100000)), "final = %s", outcome.FinalNetWorth)

	require.Len(t, outcome.Years, 10)
	for _, year := range outcome.Years {
		assert.True(t, year.Shortfall.IsZero())
		assert.True(t, year.Withdrawn.Equal(d(3000)))
	}
}

func TestTrialClosedFormWithDecliningBalance(t *testing.T) {
	// Withdraw more than the interest: B(t) = B(t-1)*1.03 - 5000.
	p := &domain.Portfolio{
		CurrentAge: 65,
		Accounts:   []domain.Account{domain.NewCashAccount("checking", d(100000), d(0.03))},
	}
	runner := &TrialRunner{
		Template:         p,
		Policy:           NewOrderedPolicy(),
		Generator:        &FixedReturnGenerator{Returns: map[string]decimal.Decimal{}, Inflation: decimal.Zero},
		HorizonYears:     5,
		AnnualWithdrawal: d(5000),
	}

	outcome, err := runner.Run(0)
	require.NoError(t, err)

	expected := d(100000)
	for i := 0; i < 5; i++ {
		expected = expected.Mul(d(1.03)).Sub(d(5000))
	}
	assert.True(t, outcome.Success)
	assert.True(t, outcome.FinalNetWorth.Equal(expected), "final = %s want %s", outcome.FinalNetWorth, expected)
}

func TestTrialTerminalDepletion(t *testing.T) {
	// $10k can fund two $4k years and part of a third; the trial must stop
	// the first year demand goes unmet with nothing liquid left.
	p := &domain.Portfolio{
		CurrentAge: 65,
		Accounts:   []domain.Account{domain.NewCashAccount("checking", d(10000), decimal.Zero)},
	}
	runner := &TrialRunner{
		Template:         p,
		Policy:           NewOrderedPolicy(),
		Generator:        &FixedReturnGenerator{Returns: map[string]decimal.Decimal{}, Inflation: decimal.Zero},
		HorizonYears:     30,
		AnnualWithdrawal: d(4000),
		KeepYears:        true,
	}

	outcome, err := runner.Run(0)
	require.NoError(t, err)

	assert.False(t, outcome.Success)
	assert.Equal(t, 3, outcome.DepletionYear)
	assert.Len(t, outcome.Years, 3, "remaining years are not simulated")

	third := outcome.Years[2]
	assert.True(t, third.Withdrawn.Equal(d(2000)))
	assert.True(t, third.Shortfall.Equal(d(2000)))
}

func TestTrialZeroFinalBalanceIsSuccessWithoutShortfall(t *testing.T) {
	// $9k funds exactly three $3k years: the balance hits zero in the
	// terminal year with no shortfall, which still counts as success.
	p := &domain.Portfolio{
		CurrentAge: 65,
		Accounts:   []domain.Account{domain.NewCashAccount("checking", d(9000), decimal.Zero)},
	}
	runner := &TrialRunner{
		Template:         p,
		Policy:           NewOrderedPolicy(),
		Generator:        &FixedReturnGenerator{Returns: map[string]decimal.Decimal{}, Inflation: decimal.Zero},
		HorizonYears:     3,
		AnnualWithdrawal: d(3000),
	}

	outcome, err := runner.Run(0)
	require.NoError(t, err)

	assert.True(t, outcome.Success)
	assert.True(t, outcome.FinalNetWorth.IsZero())
	assert.Equal(t, -1, outcome.DepletionYear)
}

func TestTrialInflationCompoundsSpendingTarget(t *testing.T) {
	p := &domain.Portfolio{
		CurrentAge: 65,
		Accounts:   []domain.Account{domain.NewCashAccount("checking", d(1000000), decimal.Zero)},
	}
	runner := &TrialRunner{
		Template:         p,
		Policy:           NewOrderedPolicy(),
		Generator:        &FixedReturnGenerator{Returns: map[string]decimal.Decimal{}, Inflation: d(0.10)},
		HorizonYears:     3,
		AnnualWithdrawal: d(10000),
		KeepYears:        true,
	}

	outcome, err := runner.Run(0)
	require.NoError(t, err)
	require.Len(t, outcome.Years, 3)

	assert.True(t, outcome.Years[0].Target.Equal(d(10000)), "first year uses the base target")
	assert.True(t, outcome.Years[1].Target.Equal(d(11000)))
	assert.True(t, outcome.Years[2].Target.Equal(d(12100)))
}

func TestTrialTemplateIsNeverMutated(t *testing.T) {
	p := &domain.Portfolio{
		CurrentAge: 65,
		Accounts:   []domain.Account{domain.NewCashAccount("checking", d(100000), decimal.Zero)},
	}
	runner := &TrialRunner{
		Template:         p,
		Policy:           NewOrderedPolicy(),
		Generator:        &FixedReturnGenerator{Returns: map[string]decimal.Decimal{}, Inflation: decimal.Zero},
		HorizonYears:     5,
		AnnualWithdrawal: d(10000),
	}

	_, err := runner.Run(0)
	require.NoError(t, err)
	assert.True(t, p.Account("checking").Balance().Equal(d(100000)), "trials must run on a deep copy")
}

func TestTrialMaxDrawdownTracksPeakToTrough(t *testing.T) {
	p := &domain.Portfolio{
		CurrentAge: 65,
		Accounts:   []domain.Account{domain.NewCashAccount("checking", d(100000), decimal.Zero)},
	}
	runner := &TrialRunner{
		Template:         p,
		Policy:           NewOrderedPolicy(),
		Generator:        &FixedReturnGenerator{Returns: map[string]decimal.Decimal{}, Inflation: decimal.Zero},
		HorizonYears:     4,
		AnnualWithdrawal: d(10000),
	}

	outcome, err := runner.Run(0)
	require.NoError(t, err)

	// Peak was the starting 100k; after four 10k withdrawals the trough is 60k.
	assert.True(t, outcome.MaxDrawdown.Equal(d(0.4)), "drawdown = %s", outcome.MaxDrawdown)
}
