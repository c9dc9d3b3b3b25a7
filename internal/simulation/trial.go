package simulation

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/wealthsim/retirement-simulator/internal/domain"
)

// TrialRunner executes one full multi-year trial against a deep copy of the
// portfolio template. Runners are immutable and safe to share across trials.
type TrialRunner struct {
	Template         *domain.Portfolio
	Policy           WithdrawalPolicy
	Generator        ReturnGenerator
	HorizonYears     int
	AnnualWithdrawal decimal.Decimal
	KeepYears        bool
	Logger           Logger
}

// Run simulates trialIndex's lifetime. The trial ends early on terminal
// depletion: liquid net worth exhausted while the year's spending demand
// went unmet. Completing the horizon is a success regardless of the final
// balance, as long as the terminal year itself had no shortfall.
func (tr *TrialRunner) Run(trialIndex int) (domain.TrialOutcome, error) {
	p := tr.Template.Clone()
	draws := tr.Generator.Trial(trialIndex)
	logger := tr.Logger
	if logger == nil {
		logger = NopLogger{}
	}
	stepper := NewYearStepper(p, tr.Policy, logger)

	outcome := domain.TrialOutcome{
		TrialIndex:    trialIndex,
		DepletionYear: -1,
		TotalTaxes:    decimal.Zero,
		MaxDrawdown:   decimal.Zero,
	}

	target := tr.AnnualWithdrawal
	peak := p.NetWorth()

	for year := 1; year <= tr.HorizonYears; year++ {
		age := p.CurrentAge + year - 1
		draw := draws.Next()

		snapshot, err := stepper.RunYear(year, age, target, draw)
		if err != nil {
			return domain.TrialOutcome{}, err
		}
		outcome.TotalTaxes = outcome.TotalTaxes.Add(snapshot.TaxesPaid)

		// Extreme compounding can push a decimal past float range;
		// treat any non-finite net worth as depletion for this trial.
		netWorth := snapshot.NetWorth
		if f, _ := netWorth.Float64(); math.IsInf(f, 0) || math.IsNaN(f) {
			logger.Warnf("trial %d year %d: non-finite net worth, clamping to zero", trialIndex, year)
			netWorth = decimal.Zero
			snapshot.NetWorth = netWorth
			outcome.Success = false
			outcome.DepletionYear = year
			if tr.KeepYears {
				outcome.Years = append(outcome.Years, snapshot)
			}
			outcome.FinalNetWorth = decimal.Zero
			return outcome, nil
		}

		if netWorth.GreaterThan(peak) {
			peak = netWorth
		}
		if peak.IsPositive() {
			drawdown := peak.Sub(netWorth).Div(peak)
			if drawdown.GreaterThan(outcome.MaxDrawdown) {
				outcome.MaxDrawdown = drawdown
			}
		}

		if tr.KeepYears {
			outcome.Years = append(outcome.Years, snapshot)
		}

		liquid := p.LiquidAssets(year)
		if !liquid.IsPositive() && snapshot.Shortfall.IsPositive() {
			outcome.Success = false
			outcome.DepletionYear = year
			outcome.FinalNetWorth = p.NetWorth()
			return outcome, nil
		}

		// Next year's spending keeps pace with this year's inflation.
		target = target.Mul(decimal.NewFromInt(1).Add(draw.Inflation))
	}

	outcome.Success = true
	outcome.FinalNetWorth = p.NetWorth()
	return outcome, nil
}
