package config

import (
	"fmt"
	"os"
	"sort"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/wealthsim/retirement-simulator/internal/domain"
	"github.com/wealthsim/retirement-simulator/internal/simulation"
)

// Input is the top-level YAML schema consumed by the CLI.
type Input struct {
	Simulation    SimulationConfig       `yaml:"simulation"`
	Policy        PolicyConfig           `yaml:"policy"`
	Portfolio     PortfolioConfig        `yaml:"portfolio"`
	ReturnClasses map[string]ClassConfig `yaml:"return_classes"`
	Correlations  *CorrelationConfig     `yaml:"correlations,omitempty"`
}

// SimulationConfig holds run-level parameters.
type SimulationConfig struct {
	NumTrials           int             `yaml:"num_trials"`
	HorizonYears        int             `yaml:"horizon_years"`
	Seed                int64           `yaml:"seed"`
	Workers             int             `yaml:"workers,omitempty"`
	AnnualWithdrawal    decimal.Decimal `yaml:"annual_withdrawal"`
	VaRConfidence       decimal.Decimal `yaml:"var_confidence,omitempty"`
	RiskFreeRate        decimal.Decimal `yaml:"risk_free_rate,omitempty"`
	IncludeTrajectories bool            `yaml:"include_trajectories,omitempty"`
}

// PolicyConfig selects the withdrawal policy.
type PolicyConfig struct {
	Type string `yaml:"type"` // ordered, tax_efficient, proportional
}

// PortfolioConfig describes the starting portfolio.
type PortfolioConfig struct {
	CurrentAge int             `yaml:"current_age"`
	Inflation  InflationConfig `yaml:"inflation"`
	Accounts   []AccountConfig `yaml:"accounts"`
}

// InflationConfig parameterizes the mean-reverting inflation process.
type InflationConfig struct {
	Mean           decimal.Decimal `yaml:"mean"`
	StdDev         decimal.Decimal `yaml:"std_dev"`
	ReversionSpeed decimal.Decimal `yaml:"reversion_speed"`
}

// ClassConfig is one account class's annual return distribution.
type ClassConfig struct {
	Mean   decimal.Decimal `yaml:"mean"`
	StdDev decimal.Decimal `yaml:"std_dev"`
}

// CorrelationConfig pairs a class list with its correlation matrix. The
// matrix rows follow the order of Classes; it is re-indexed internally.
type CorrelationConfig struct {
	Classes []string    `yaml:"classes"`
	Matrix  [][]float64 `yaml:"matrix"`
}

// AccountConfig is one account entry. Which fields apply depends on Type;
// validation rejects entries missing a required field for their type.
type AccountConfig struct {
	Name    string          `yaml:"name"`
	Type    string          `yaml:"type"`
	Balance decimal.Decimal `yaml:"balance,omitempty"`
	Class   string          `yaml:"class,omitempty"`

	// cash
	AnnualReturn decimal.Decimal `yaml:"annual_return,omitempty"`

	// taxable / tax_deferred / tax_free
	StockAllocation decimal.Decimal `yaml:"stock_allocation,omitempty"`
	CashReturn      decimal.Decimal `yaml:"cash_return,omitempty"`
	DividendYield   decimal.Decimal `yaml:"dividend_yield,omitempty"`
	CapitalGainsTax decimal.Decimal `yaml:"capital_gains_tax,omitempty"`
	OrdinaryTaxRate decimal.Decimal `yaml:"ordinary_tax_rate,omitempty"`
	PenaltyRate     decimal.Decimal `yaml:"penalty_rate,omitempty"`

	// illiquid
	ConversionYear int `yaml:"conversion_year,omitempty"`

	// income_stream
	AnnualAmount  decimal.Decimal `yaml:"annual_amount,omitempty"`
	StartYear     int             `yaml:"start_year,omitempty"`
	DurationYears int             `yaml:"duration_years,omitempty"`
	COLARate      decimal.Decimal `yaml:"cola_rate,omitempty"`
	TaxRate       decimal.Decimal `yaml:"tax_rate,omitempty"`

	// one_time_inflow
	ScheduledYear int    `yaml:"scheduled_year,omitempty"`
	TargetAccount string `yaml:"target_account,omitempty"`

	// liability
	InterestRate   decimal.Decimal `yaml:"interest_rate,omitempty"`
	RemainingYears int             `yaml:"remaining_years,omitempty"`
}

// InputParser handles parsing of input configuration files.
type InputParser struct{}

// NewInputParser creates a new input parser.
func NewInputParser() *InputParser {
	return &InputParser{}
}

// LoadFromFile loads and validates configuration from a YAML file.
func (ip *InputParser) LoadFromFile(filename string) (*Input, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filename, err)
	}

	var input Input
	if err := yaml.Unmarshal(data, &input); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := ip.Validate(&input); err != nil {
		return nil, err
	}
	return &input, nil
}

var one = decimal.NewFromInt(1)

func inRange01(v decimal.Decimal) bool {
	return !v.IsNegative() && v.LessThanOrEqual(one)
}

// Validate checks everything the simulation core depends on, field by field,
// so a bad input fails before any trial runs.
func (ip *InputParser) Validate(input *Input) error {
	sim := &input.Simulation
	if sim.NumTrials < 1 {
		return fail("simulation.num_trials", "must be >= 1, got %d", sim.NumTrials)
	}
	if sim.HorizonYears < 1 || sim.HorizonYears > 100 {
		return fail("simulation.horizon_years", "must be in [1, 100], got %d", sim.HorizonYears)
	}
	if sim.AnnualWithdrawal.IsNegative() {
		return fail("simulation.annual_withdrawal", "must be >= 0, got %s", sim.AnnualWithdrawal)
	}

	switch input.Policy.Type {
	case "ordered", "tax_efficient", "proportional":
	default:
		return fail("policy.type", "must be one of ordered, tax_efficient, proportional; got %q", input.Policy.Type)
	}

	p := &input.Portfolio
	if p.CurrentAge < 18 || p.CurrentAge > 120 {
		return fail("portfolio.current_age", "must be in [18, 120], got %d", p.CurrentAge)
	}
	if len(p.Accounts) == 0 {
		return fail("portfolio.accounts", "at least one account is required")
	}

	if len(input.ReturnClasses) == 0 {
		return fail("return_classes", "at least one return class is required")
	}
	for name, class := range input.ReturnClasses {
		if class.StdDev.IsNegative() {
			return fail("return_classes."+name+".std_dev", "must be >= 0, got %s", class.StdDev)
		}
	}

	if corr := input.Correlations; corr != nil {
		if len(corr.Classes) != len(input.ReturnClasses) {
			return fail("correlations.classes", "must list all %d return classes, got %d", len(input.ReturnClasses), len(corr.Classes))
		}
		for _, name := range corr.Classes {
			if _, ok := input.ReturnClasses[name]; !ok {
				return fail("correlations.classes", "unknown return class %q", name)
			}
		}
		if len(corr.Matrix) != len(corr.Classes) {
			return fail("correlations.matrix", "must have %d rows, got %d", len(corr.Classes), len(corr.Matrix))
		}
		for i, row := range corr.Matrix {
			if len(row) != len(corr.Classes) {
				return fail("correlations.matrix", "row %d must have %d columns, got %d", i, len(corr.Classes), len(row))
			}
		}
	}

	names := make(map[string]bool, len(p.Accounts))
	for i := range p.Accounts {
		acct := &p.Accounts[i]
		field := fmt.Sprintf("portfolio.accounts[%d]", i)
		if acct.Name == "" {
			return fail(field+".name", "must not be empty")
		}
		if names[acct.Name] {
			return fail(field+".name", "duplicate account name %q", acct.Name)
		}
		names[acct.Name] = true
		if err := ip.validateAccount(field, acct, input); err != nil {
			return err
		}
	}

	// Inflow targets must name an existing account.
	for i := range p.Accounts {
		acct := &p.Accounts[i]
		if acct.Type == "one_time_inflow" && acct.TargetAccount != "" && !names[acct.TargetAccount] {
			return fail(fmt.Sprintf("portfolio.accounts[%d].target_account", i), "unknown account %q", acct.TargetAccount)
		}
	}

	return nil
}

func (ip *InputParser) validateAccount(field string, acct *AccountConfig, input *Input) error {
	nonNegativeBalance := func() error {
		if acct.Balance.IsNegative() {
			return fail(field+".balance", "must be >= 0, got %s", acct.Balance)
		}
		return nil
	}
	stochastic := func() error {
		if acct.Class == "" {
			return fail(field+".class", "account type %q requires a return class", acct.Type)
		}
		if _, ok := input.ReturnClasses[acct.Class]; !ok {
			return fail(field+".class", "no return distribution configured for class %q", acct.Class)
		}
		return nil
	}

	switch acct.Type {
	case "cash":
		return nonNegativeBalance()
	case "taxable":
		if err := nonNegativeBalance(); err != nil {
			return err
		}
		if err := stochastic(); err != nil {
			return err
		}
		if !inRange01(acct.StockAllocation) {
			return fail(field+".stock_allocation", "must be in [0, 1], got %s", acct.StockAllocation)
		}
		if !inRange01(acct.CapitalGainsTax) {
			return fail(field+".capital_gains_tax", "must be in [0, 1], got %s", acct.CapitalGainsTax)
		}
	case "tax_deferred":
		if err := nonNegativeBalance(); err != nil {
			return err
		}
		if err := stochastic(); err != nil {
			return err
		}
		if !inRange01(acct.StockAllocation) {
			return fail(field+".stock_allocation", "must be in [0, 1], got %s", acct.StockAllocation)
		}
		if !inRange01(acct.OrdinaryTaxRate) {
			return fail(field+".ordinary_tax_rate", "must be in [0, 1], got %s", acct.OrdinaryTaxRate)
		}
	case "tax_free":
		if err := nonNegativeBalance(); err != nil {
			return err
		}
		if err := stochastic(); err != nil {
			return err
		}
		if !inRange01(acct.StockAllocation) {
			return fail(field+".stock_allocation", "must be in [0, 1], got %s", acct.StockAllocation)
		}
	case "illiquid":
		if err := nonNegativeBalance(); err != nil {
			return err
		}
		if err := stochastic(); err != nil {
			return err
		}
		if acct.ConversionYear < 1 {
			return fail(field+".conversion_year", "must be >= 1, got %d", acct.ConversionYear)
		}
	case "income_stream":
		if acct.AnnualAmount.IsNegative() {
			return fail(field+".annual_amount", "must be >= 0, got %s", acct.AnnualAmount)
		}
		if acct.StartYear < 1 {
			return fail(field+".start_year", "must be >= 1, got %d", acct.StartYear)
		}
		if !inRange01(acct.TaxRate) {
			return fail(field+".tax_rate", "must be in [0, 1], got %s", acct.TaxRate)
		}
	case "one_time_inflow":
		if err := nonNegativeBalance(); err != nil {
			return err
		}
		if err := stochastic(); err != nil {
			return err
		}
		if acct.ScheduledYear < 1 {
			return fail(field+".scheduled_year", "must be >= 1, got %d", acct.ScheduledYear)
		}
	case "liability":
		if !acct.Balance.IsPositive() {
			return fail(field+".balance", "liability principal must be > 0, got %s", acct.Balance)
		}
		if acct.InterestRate.IsNegative() {
			return fail(field+".interest_rate", "must be >= 0, got %s", acct.InterestRate)
		}
		if acct.RemainingYears < 1 {
			return fail(field+".remaining_years", "must be >= 1, got %d", acct.RemainingYears)
		}
	default:
		return fail(field+".type", "unknown account type %q", acct.Type)
	}
	return nil
}

func fail(field, format string, args ...any) error {
	return &simulation.ConfigurationError{Field: field, Constraint: fmt.Sprintf(format, args...)}
}

// BuildPortfolio converts the validated input into the domain portfolio.
func (input *Input) BuildPortfolio() *domain.Portfolio {
	p := &domain.Portfolio{
		CurrentAge: input.Portfolio.CurrentAge,
		Inflation: domain.InflationAssumptions{
			Mean:           input.Portfolio.Inflation.Mean,
			StdDev:         input.Portfolio.Inflation.StdDev,
			ReversionSpeed: input.Portfolio.Inflation.ReversionSpeed,
		},
	}
	for _, ac := range input.Portfolio.Accounts {
		p.Accounts = append(p.Accounts, ac.build())
	}
	return p
}

func (ac AccountConfig) build() domain.Account {
	switch ac.Type {
	case "cash":
		return domain.NewCashAccount(ac.Name, ac.Balance, ac.AnnualReturn)
	case "taxable":
		return domain.NewTaxableAccount(ac.Name, ac.Class, ac.Balance, ac.StockAllocation, ac.CashReturn, ac.DividendYield, ac.CapitalGainsTax)
	case "tax_deferred":
		return domain.NewTaxDeferredAccount(ac.Name, ac.Class, ac.Balance, ac.StockAllocation, ac.CashReturn, ac.OrdinaryTaxRate, ac.PenaltyRate)
	case "tax_free":
		return domain.NewTaxFreeAccount(ac.Name, ac.Class, ac.Balance, ac.StockAllocation, ac.CashReturn, ac.PenaltyRate)
	case "illiquid":
		return domain.NewIlliquidAccount(ac.Name, ac.Class, ac.Balance, ac.ConversionYear, ac.CapitalGainsTax)
	case "income_stream":
		return domain.NewIncomeStreamAccount(ac.Name, ac.AnnualAmount, ac.StartYear, ac.DurationYears, ac.COLARate, ac.TaxRate)
	case "one_time_inflow":
		return domain.NewOneTimeInflowAccount(ac.Name, ac.Class, ac.Balance, ac.ScheduledYear, ac.TargetAccount)
	case "liability":
		return domain.NewLiabilityAccount(ac.Name, ac.Balance, ac.InterestRate, ac.RemainingYears)
	default:
		// Validate rejects unknown types before build is reachable.
		panic(fmt.Sprintf("unknown account type %q", ac.Type))
	}
}

// BuildGenerator constructs the return generator, re-indexing any correlation
// matrix from the configured class order to sorted-name order.
func (input *Input) BuildGenerator() (simulation.ReturnGenerator, error) {
	classes := make(map[string]simulation.ClassDistribution, len(input.ReturnClasses))
	for name, c := range input.ReturnClasses {
		classes[name] = simulation.ClassDistribution{Mean: c.Mean, StdDev: c.StdDev}
	}

	var matrix [][]float64
	if corr := input.Correlations; corr != nil {
		sorted := append([]string(nil), corr.Classes...)
		sort.Strings(sorted)

		index := make(map[string]int, len(corr.Classes))
		for i, name := range corr.Classes {
			index[name] = i
		}
		n := len(sorted)
		matrix = make([][]float64, n)
		for i, ri := range sorted {
			matrix[i] = make([]float64, n)
			for j, rj := range sorted {
				matrix[i][j] = corr.Matrix[index[ri]][index[rj]]
			}
		}
	}

	inflation := domain.InflationAssumptions{
		Mean:           input.Portfolio.Inflation.Mean,
		StdDev:         input.Portfolio.Inflation.StdDev,
		ReversionSpeed: input.Portfolio.Inflation.ReversionSpeed,
	}
	return simulation.NewNormalReturnGenerator(classes, matrix, inflation, input.Simulation.Seed)
}

// BuildPolicy constructs the configured withdrawal policy.
func (input *Input) BuildPolicy() simulation.WithdrawalPolicy {
	switch input.Policy.Type {
	case "tax_efficient":
		return simulation.NewTaxEfficientPolicy()
	case "proportional":
		return simulation.NewProportionalPolicy()
	default:
		return simulation.NewOrderedPolicy()
	}
}

// BuildEngine wires the full engine from the validated input.
func (input *Input) BuildEngine(logger simulation.Logger) (*simulation.MonteCarloEngine, error) {
	generator, err := input.BuildGenerator()
	if err != nil {
		return nil, err
	}
	sim := input.Simulation
	return simulation.NewMonteCarloEngine(simulation.EngineConfig{
		Portfolio:           input.BuildPortfolio(),
		Policy:              input.BuildPolicy(),
		Generator:           generator,
		NumTrials:           sim.NumTrials,
		HorizonYears:        sim.HorizonYears,
		Seed:                sim.Seed,
		Workers:             sim.Workers,
		AnnualWithdrawal:    sim.AnnualWithdrawal,
		VaRConfidence:       sim.VaRConfidence,
		RiskFreeRate:        sim.RiskFreeRate,
		IncludeTrajectories: sim.IncludeTrajectories,
		Logger:              logger,
	})
}
