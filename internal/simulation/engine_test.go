package simulation

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wealthsim/retirement-simulator/internal/domain"
)

// referencePortfolio is the cash/taxable/IRA mix used by the regression
// scenarios: $70k cash at 3%, $288k taxable and $200k traditional IRA, both
// on a 10% mean / 16% volatility return class.
func referencePortfolio() *domain.Portfolio {
	return &domain.Portfolio{
		CurrentAge: 65,
		Accounts: []domain.Account{
			domain.NewCashAccount("checking", d(70000), d(0.03)),
			domain.NewTaxableAccount("brokerage", "stocks", d(288000), d(1), decimal.Zero, decimal.Zero, d(0.15)),
			domain.NewTaxDeferredAccount("traditional_ira", "stocks", d(200000), d(1), decimal.Zero, d(0.22), d(0.10)),
		},
	}
}

func referenceEngine(t *testing.T, withdrawal decimal.Decimal, trials, workers int) *MonteCarloEngine {
	t.Helper()
	gen, err := NewNormalReturnGenerator(
		map[string]ClassDistribution{"stocks": {Mean: d(0.10), StdDev: d(0.16)}},
		nil,
		domain.InflationAssumptions{Mean: d(0.025), StdDev: d(0.01), ReversionSpeed: d(0.3)},
		1,
	)
	require.NoError(t, err)

	engine, err := NewMonteCarloEngine(EngineConfig{
		Portfolio:        referencePortfolio(),
		Policy:           NewOrderedPolicy(),
		Generator:        gen,
		NumTrials:        trials,
		HorizonYears:     30,
		Seed:             1,
		Workers:          workers,
		AnnualWithdrawal: withdrawal,
	})
	require.NoError(t, err)
	return engine
}

// assertResultsEqual compares every statistic except the RunID, which is a
// fresh identifier per run.
func assertResultsEqual(t *testing.T, a, b *domain.SimulationResult) {
	t.Helper()
	assert.True(t, a.SuccessRate.Equal(b.SuccessRate), "success rate %s vs %s", a.SuccessRate, b.SuccessRate)
	assert.True(t, a.MeanFinalNetWorth.Equal(b.MeanFinalNetWorth))
	assert.True(t, a.MedianFinalNetWorth.Equal(b.MedianFinalNetWorth))
	assert.True(t, a.ValueAtRisk.Equal(b.ValueAtRisk))
	assert.True(t, a.ConditionalVaR.Equal(b.ConditionalVaR))
	assert.True(t, a.SharpeRatio.Equal(b.SharpeRatio))
	assert.True(t, a.SortinoRatio.Equal(b.SortinoRatio))
	assert.True(t, a.MeanMaxDrawdown.Equal(b.MeanMaxDrawdown))
	for p, v := range a.Percentiles {
		assert.True(t, v.Equal(b.Percentiles[p]), "P%d: %s vs %s", p, v, b.Percentiles[p])
	}
	for p, v := range a.DrawdownPercentiles {
		assert.True(t, v.Equal(b.DrawdownPercentiles[p]))
	}
	assert.Equal(t, a.Discarded, b.Discarded)
}

func TestEngineDeterministicAcrossRuns(t *testing.T) {
	first, err := referenceEngine(t, d(80000), 200, 4).Run(context.Background())
	require.NoError(t, err)
	second, err := referenceEngine(t, d(80000), 200, 4).Run(context.Background())
	require.NoError(t, err)

	assertResultsEqual(t, first, second)
}

func TestEngineSequentialMatchesParallel(t *testing.T) {
	sequential, err := referenceEngine(t, d(80000), 200, 1).Run(context.Background())
	require.NoError(t, err)
	parallel, err := referenceEngine(t, d(80000), 200, 8).Run(context.Background())
	require.NoError(t, err)

	assertResultsEqual(t, sequential, parallel)
}

func TestEngineSuccessRateMonotoneInWithdrawal(t *testing.T) {
	modest, err := referenceEngine(t, d(40000), 500, 4).Run(context.Background())
	require.NoError(t, err)
	heavy, err := referenceEngine(t, d(80000), 500, 4).Run(context.Background())
	require.NoError(t, err)

	assert.True(t, modest.SuccessRate.GreaterThanOrEqual(heavy.SuccessRate),
		"drawing $40k must not succeed less often than $80k: %s vs %s", modest.SuccessRate, heavy.SuccessRate)
}

// referenceSuccessRate is the recorded success rate for the scenario below:
// $80k/yr from the $558k reference portfolio over 30 years, 1000 trials,
// seed 1. A ~14% initial withdrawal rate does not survive three decades
// outside of vanishing luck, so the recorded rate is zero.
var referenceSuccessRate = decimal.Zero

func TestEngineReferenceScenarioStaysInBand(t *testing.T) {
	result, err := referenceEngine(t, d(80000), 1000, 4).Run(context.Background())
	require.NoError(t, err)

	diff := result.SuccessRate.Sub(referenceSuccessRate).Abs()
	assert.True(t, diff.LessThanOrEqual(d(0.02)),
		"success rate %s drifted more than 2%% from the recorded %s", result.SuccessRate, referenceSuccessRate)
	assert.Equal(t, 1000, result.NumTrials)
	assert.Equal(t, 0, result.Discarded)
}

func TestEngineRejectsMissingReturnClass(t *testing.T) {
	gen := &FixedReturnGenerator{Returns: map[string]decimal.Decimal{"bonds": d(0.04)}}
	_, err := NewMonteCarloEngine(EngineConfig{
		Portfolio:        referencePortfolio(), // uses class "stocks"
		Policy:           NewOrderedPolicy(),
		Generator:        gen,
		NumTrials:        10,
		HorizonYears:     10,
		AnnualWithdrawal: d(1000),
	})

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Constraint, "stocks")
}

func TestEngineValidatesRunParameters(t *testing.T) {
	gen := &FixedReturnGenerator{Returns: map[string]decimal.Decimal{"stocks": d(0.04)}}
	base := EngineConfig{
		Portfolio:        referencePortfolio(),
		Policy:           NewOrderedPolicy(),
		Generator:        gen,
		NumTrials:        10,
		HorizonYears:     10,
		AnnualWithdrawal: d(1000),
	}

	bad := base
	bad.NumTrials = 0
	_, err := NewMonteCarloEngine(bad)
	assert.Error(t, err)

	bad = base
	bad.HorizonYears = 101
	_, err = NewMonteCarloEngine(bad)
	assert.Error(t, err)

	bad = base
	bad.AnnualWithdrawal = d(-1)
	_, err = NewMonteCarloEngine(bad)
	assert.Error(t, err)

	bad = base
	bad.VaRConfidence = d(1.5)
	_, err = NewMonteCarloEngine(bad)
	assert.Error(t, err)
}

func TestEngineRejectsSurplusWithNoDepositTarget(t *testing.T) {
	// An income stream with neither a cash nor a taxable account leaves
	// surplus income nowhere to land.
	p := &domain.Portfolio{
		CurrentAge: 65,
		Accounts: []domain.Account{
			domain.NewTaxFreeAccount("roth", "stocks", d(100000), d(1), decimal.Zero, d(0.10)),
			domain.NewIncomeStreamAccount("pension", d(30000), 1, 0, decimal.Zero, decimal.Zero),
		},
	}
	_, err := NewMonteCarloEngine(EngineConfig{
		Portfolio:        p,
		Policy:           NewOrderedPolicy(),
		Generator:        &FixedReturnGenerator{Returns: map[string]decimal.Decimal{"stocks": d(0.05)}},
		NumTrials:        10,
		HorizonYears:     10,
		AnnualWithdrawal: d(1000),
	})

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "portfolio.accounts", cfgErr.Field)
}

// panickingGenerator blows up inside selected trials to exercise isolation.
type panickingGenerator struct {
	inner      ReturnGenerator
	panicTrial int
}

func (g *panickingGenerator) HasClass(class string) bool { return g.inner.HasClass(class) }

func (g *panickingGenerator) Trial(trialIndex int) TrialReturns {
	if trialIndex == g.panicTrial {
		return panickingReturns{}
	}
	return g.inner.Trial(trialIndex)
}

type panickingReturns struct{}

func (panickingReturns) Next() YearDraw { panic("corrupted trial state") }

func TestEngineIsolatesFailingTrials(t *testing.T) {
	gen := &panickingGenerator{
		inner:      &FixedReturnGenerator{Returns: map[string]decimal.Decimal{"stocks": d(0.05)}, Inflation: decimal.Zero},
		panicTrial: 3,
	}
	engine, err := NewMonteCarloEngine(EngineConfig{
		Portfolio:        referencePortfolio(),
		Policy:           NewOrderedPolicy(),
		Generator:        gen,
		NumTrials:        10,
		HorizonYears:     5,
		AnnualWithdrawal: d(10000),
	})
	require.NoError(t, err)

	result, err := engine.Run(context.Background())
	require.NoError(t, err, "one bad trial must not abort the batch")

	assert.Equal(t, 10, result.NumTrials)
	assert.Equal(t, 1, result.Discarded)
	assert.True(t, result.SuccessRate.Equal(decimal.NewFromInt(1)), "the nine healthy trials all succeed")
}

func TestEngineCancellationDiscardsEverything(t *testing.T) {
	engine := referenceEngine(t, d(80000), 5000, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := engine.Run(ctx)
	assert.Error(t, err)
	assert.Nil(t, result, "a cancelled run yields no partial result")
}

func TestEngineSuppliesTrajectoriesOnlyOnRequest(t *testing.T) {
	engine := referenceEngine(t, d(40000), 20, 2)
	result, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Nil(t, result.Trajectories)

	gen, err := NewNormalReturnGenerator(
		map[string]ClassDistribution{"stocks": {Mean: d(0.10), StdDev: d(0.16)}},
		nil,
		domain.InflationAssumptions{Mean: d(0.025), StdDev: d(0.01), ReversionSpeed: d(0.3)},
		1,
	)
	require.NoError(t, err)
	withTrajectories, err := NewMonteCarloEngine(EngineConfig{
		Portfolio:           referencePortfolio(),
		Policy:              NewOrderedPolicy(),
		Generator:           gen,
		NumTrials:           20,
		HorizonYears:        30,
		Seed:                1,
		AnnualWithdrawal:    d(40000),
		IncludeTrajectories: true,
	})
	require.NoError(t, err)

	result, err = withTrajectories.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Trajectories, 20)
	assert.NotEmpty(t, result.Trajectories[0])
}
