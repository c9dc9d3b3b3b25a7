package simulation

import (
	"context"
	"fmt"
	"runtime"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/wealthsim/retirement-simulator/internal/domain"
)

// EngineConfig holds everything a run needs. The portfolio arrives already
// validated by the input layer; the engine re-checks only the invariants it
// directly depends on and fails fast with a ConfigurationError.
type EngineConfig struct {
	Portfolio        *domain.Portfolio
	Policy           WithdrawalPolicy
	Generator        ReturnGenerator
	NumTrials        int
	HorizonYears     int
	Seed             int64
	Workers          int // 0 means GOMAXPROCS
	AnnualWithdrawal decimal.Decimal
	VaRConfidence    decimal.Decimal // 0 means 0.95
	RiskFreeRate     decimal.Decimal

	// IncludeTrajectories keeps every trial's per-year snapshots in the
	// result. Large; off by default to bound memory.
	IncludeTrajectories bool

	Logger Logger
}

// MonteCarloEngine runs independent trials concurrently and reduces their
// outcomes into one SimulationResult.
type MonteCarloEngine struct {
	cfg    EngineConfig
	logger Logger
}

// NewMonteCarloEngine validates the configuration and builds an engine.
func NewMonteCarloEngine(cfg EngineConfig) (*MonteCarloEngine, error) {
	if cfg.Portfolio == nil || len(cfg.Portfolio.Accounts) == 0 {
		return nil, configErrorf("portfolio", "must contain at least one account")
	}
	if cfg.Policy == nil {
		return nil, configErrorf("policy", "a withdrawal policy is required")
	}
	if cfg.Generator == nil {
		return nil, configErrorf("returns", "a return generator is required")
	}
	if cfg.NumTrials < 1 {
		return nil, configErrorf("num_trials", "must be >= 1, got %d", cfg.NumTrials)
	}
	if cfg.HorizonYears < 1 || cfg.HorizonYears > 100 {
		return nil, configErrorf("horizon_years", "must be in [1, 100], got %d", cfg.HorizonYears)
	}
	if cfg.AnnualWithdrawal.IsNegative() {
		return nil, configErrorf("annual_withdrawal", "must be >= 0, got %s", cfg.AnnualWithdrawal)
	}
	if cfg.VaRConfidence.IsZero() {
		cfg.VaRConfidence = decimal.NewFromFloat(0.95)
	}
	if cfg.VaRConfidence.LessThanOrEqual(decimal.Zero) || cfg.VaRConfidence.GreaterThanOrEqual(one) {
		return nil, configErrorf("var_confidence", "must be in (0, 1), got %s", cfg.VaRConfidence)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}

	// Every stochastic account must have a configured distribution.
	// Catching this here keeps it a setup failure, never a per-draw one.
	for _, acct := range cfg.Portfolio.Accounts {
		class := acct.ReturnClass()
		if class == "" {
			continue
		}
		if !cfg.Generator.HasClass(class) {
			return nil, configErrorf("accounts."+acct.Name()+".class", "no return distribution configured for class %q", class)
		}
	}

	// Income streams, scheduled inflows, and forced distributions all
	// produce cash beyond the year's spending need; that surplus must have
	// an account to land in or it would vanish mid-trial.
	producesSurplus := false
	for _, acct := range cfg.Portfolio.Accounts {
		switch acct.Type() {
		case domain.AccountIncomeStream, domain.AccountOneTimeInflow, domain.AccountTaxDeferred:
			producesSurplus = true
		}
	}
	if producesSurplus && cfg.Portfolio.DepositTarget() == nil {
		return nil, configErrorf("portfolio.accounts", "income streams, inflows, and tax-deferred accounts require a cash or taxable account to receive surplus cash")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = NopLogger{}
	}
	return &MonteCarloEngine{cfg: cfg, logger: logger}, nil
}

// Run executes all trials and aggregates them. Cancelling the context
// discards every partial outcome; a cancelled run yields no result.
// A panic inside one trial discards only that trial; the discarded count is
// reported in the result so consumers can judge validity.
func (e *MonteCarloEngine) Run(ctx context.Context) (*domain.SimulationResult, error) {
	cfg := e.cfg
	runner := &TrialRunner{
		Template:         cfg.Portfolio,
		Policy:           cfg.Policy,
		Generator:        cfg.Generator,
		HorizonYears:     cfg.HorizonYears,
		AnnualWithdrawal: cfg.AnnualWithdrawal,
		KeepYears:        cfg.IncludeTrajectories,
		Logger:           e.logger,
	}

	e.logger.Infof("running %d trials over %d years (%d workers, seed %d)",
		cfg.NumTrials, cfg.HorizonYears, cfg.Workers, cfg.Seed)

	// Outcomes land in a trial-indexed slice, so completion order cannot
	// influence aggregation. A nil slot is a discarded trial.
	outcomes := make([]*domain.TrialOutcome, cfg.NumTrials)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i := 0; i < cfg.NumTrials; i++ {
		i := i
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			outcome, err := e.runTrialSafe(runner, i)
			if err != nil {
				e.logger.Errorf("trial %d discarded: %v", i, err)
				return nil
			}
			outcomes[i] = outcome
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := e.aggregate(outcomes)
	e.logger.Infof("run %s complete: success rate %s, %d discarded",
		result.RunID, result.SuccessRate, result.Discarded)
	return result, nil
}

// runTrialSafe isolates a panicking trial so one bad trial cannot abort the
// batch.
func (e *MonteCarloEngine) runTrialSafe(runner *TrialRunner, trialIndex int) (outcome *domain.TrialOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome = nil
			err = fmt.Errorf("trial %d panicked: %v", trialIndex, r)
		}
	}()
	o, runErr := runner.Run(trialIndex)
	if runErr != nil {
		return nil, runErr
	}
	return &o, nil
}

func (e *MonteCarloEngine) aggregate(outcomes []*domain.TrialOutcome) *domain.SimulationResult {
	cfg := e.cfg
	result := aggregateOutcomes(outcomes, aggregateParams{
		InitialNetWorth: cfg.Portfolio.NetWorth(),
		HorizonYears:    cfg.HorizonYears,
		VaRConfidence:   cfg.VaRConfidence,
		RiskFreeRate:    cfg.RiskFreeRate,
		Trajectories:    cfg.IncludeTrajectories,
	})
	result.RunID = uuid.NewString()
	result.NumTrials = cfg.NumTrials
	result.HorizonYears = cfg.HorizonYears
	result.Seed = cfg.Seed
	return result
}
