package simulation

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/wealthsim/retirement-simulator/internal/domain"
)

// reportedPercentiles is the fixed percentile table produced for both the
// final-net-worth and max-drawdown distributions.
var reportedPercentiles = []int{10, 25, 50, 75, 90}

type aggregateParams struct {
	InitialNetWorth decimal.Decimal
	HorizonYears    int
	VaRConfidence   decimal.Decimal
	RiskFreeRate    decimal.Decimal
	Trajectories    bool
}

// aggregateOutcomes reduces trial outcomes into a SimulationResult. Every
// statistic is computed from sorted copies or index-independent sums, so the
// result is identical whether trials completed in order or not.
func aggregateOutcomes(outcomes []*domain.TrialOutcome, params aggregateParams) *domain.SimulationResult {
	var valid []*domain.TrialOutcome
	discarded := 0
	for _, o := range outcomes {
		if o == nil {
			discarded++
			continue
		}
		valid = append(valid, o)
	}

	result := &domain.SimulationResult{
		Discarded:           discarded,
		SuccessRate:         decimal.Zero,
		MeanFinalNetWorth:   decimal.Zero,
		MedianFinalNetWorth: decimal.Zero,
		Percentiles:         make(map[int]decimal.Decimal),
		VaRConfidence:       params.VaRConfidence,
		ValueAtRisk:         decimal.Zero,
		ConditionalVaR:      decimal.Zero,
		SharpeRatio:         decimal.Zero,
		SortinoRatio:        decimal.Zero,
		MeanMaxDrawdown:     decimal.Zero,
		DrawdownPercentiles: make(map[int]decimal.Decimal),
	}
	if len(valid) == 0 {
		return result
	}

	n := len(valid)
	successes := 0
	finals := make([]decimal.Decimal, 0, n)
	drawdowns := make([]decimal.Decimal, 0, n)
	for _, o := range valid {
		if o.Success {
			successes++
		}
		finals = append(finals, o.FinalNetWorth)
		drawdowns = append(drawdowns, o.MaxDrawdown)
	}
	sortDecimals(finals)
	sortDecimals(drawdowns)

	result.SuccessRate = decimal.NewFromInt(int64(successes)).Div(decimal.NewFromInt(int64(n)))
	result.MeanFinalNetWorth = meanDecimal(finals)
	result.MedianFinalNetWorth = nearestRank(finals, 50)
	for _, p := range reportedPercentiles {
		result.Percentiles[p] = nearestRank(finals, p)
	}

	// VaR at confidence c is the loss, relative to initial net worth, at
	// the (1-c) percentile of final outcomes. CVaR averages the tail at or
	// below that percentile.
	tailPct := one.Sub(params.VaRConfidence).Mul(decimal.NewFromInt(100))
	tailIdx := nearestRankIndex(n, tailPct)
	varOutcome := finals[tailIdx]
	result.ValueAtRisk = params.InitialNetWorth.Sub(varOutcome)
	result.ConditionalVaR = params.InitialNetWorth.Sub(meanDecimal(finals[:tailIdx+1]))

	result.SharpeRatio, result.SortinoRatio = riskAdjustedRatios(valid, params)

	result.MeanMaxDrawdown = meanDecimal(drawdowns)
	for _, p := range reportedPercentiles {
		result.DrawdownPercentiles[p] = nearestRank(drawdowns, p)
	}

	if params.Trajectories {
		result.Trajectories = make([][]domain.YearSnapshot, 0, n)
		for _, o := range valid {
			result.Trajectories = append(result.Trajectories, o.Years)
		}
	}

	return result
}

// riskAdjustedRatios computes Sharpe and Sortino on the distribution of
// per-trial annualized returns. A depleted trial contributes a -100% return.
// Ratio arithmetic runs in float64; the inputs are statistical, not money.
func riskAdjustedRatios(valid []*domain.TrialOutcome, params aggregateParams) (sharpe, sortino decimal.Decimal) {
	initial, _ := params.InitialNetWorth.Float64()
	riskFree, _ := params.RiskFreeRate.Float64()
	if initial <= 0 || params.HorizonYears < 1 {
		return decimal.Zero, decimal.Zero
	}

	returns := make([]float64, 0, len(valid))
	for _, o := range valid {
		final, _ := o.FinalNetWorth.Float64()
		if final <= 0 {
			returns = append(returns, -1.0)
			continue
		}
		r := math.Pow(final/initial, 1.0/float64(params.HorizonYears)) - 1.0
		returns = append(returns, r)
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var variance, downside float64
	for _, r := range returns {
		d := r - mean
		variance += d * d
		if below := r - riskFree; below < 0 {
			downside += below * below
		}
	}
	stdDev := math.Sqrt(variance / float64(len(returns)))
	downsideDev := math.Sqrt(downside / float64(len(returns)))

	excess := mean - riskFree
	if stdDev > 0 {
		sharpe = decimal.NewFromFloat(excess / stdDev)
	}
	if downsideDev > 0 {
		sortino = decimal.NewFromFloat(excess / downsideDev)
	}
	return sharpe, sortino
}

func sortDecimals(values []decimal.Decimal) {
	sort.Slice(values, func(i, j int) bool { return values[i].LessThan(values[j]) })
}

func meanDecimal(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(v)
	}
	return sum.Div(decimal.NewFromInt(int64(len(values))))
}

// nearestRank returns the p-th percentile of sorted values using the
// nearest-rank definition: the value at ceil(p/100 * n), 1-indexed.
func nearestRank(sorted []decimal.Decimal, p int) decimal.Decimal {
	if len(sorted) == 0 {
		return decimal.Zero
	}
	return sorted[nearestRankIndex(len(sorted), decimal.NewFromInt(int64(p)))]
}

func nearestRankIndex(n int, percentile decimal.Decimal) int {
	rank := percentile.Mul(decimal.NewFromInt(int64(n))).Div(decimal.NewFromInt(100)).Ceil().IntPart()
	if rank < 1 {
		rank = 1
	}
	if rank > int64(n) {
		rank = int64(n)
	}
	return int(rank) - 1
}
