package simulation

import (
	"github.com/shopspring/decimal"

	"github.com/wealthsim/retirement-simulator/internal/domain"
)

// StepState tracks the year state machine. Each phase method moves the
// stepper exactly one state forward; calling a phase out of order is a bug
// in the caller and is rejected.
type StepState int

const (
	StateStart StepState = iota
	StateGrown
	StateFunded
	StateWithdrawn
	StateSettled
)

var one = decimal.NewFromInt(1)

// YearStepper advances a portfolio through one simulated year:
// grow -> fund (inflows and income streams) -> withdraw -> settle.
type YearStepper struct {
	portfolio *domain.Portfolio
	policy    WithdrawalPolicy
	logger    Logger

	state StepState

	// working values for the year in flight
	year, age  int
	draw       YearDraw
	target     decimal.Decimal // full inflation-adjusted spending target
	residual   decimal.Decimal // unmet portion after income and RMDs
	incomeUsed decimal.Decimal
	withdrawn  decimal.Decimal
	taxes      decimal.Decimal
	shortfall  decimal.Decimal
	debtPaid   decimal.Decimal
}

func NewYearStepper(p *domain.Portfolio, policy WithdrawalPolicy, logger Logger) *YearStepper {
	if logger == nil {
		logger = NopLogger{}
	}
	return &YearStepper{portfolio: p, policy: policy, logger: logger}
}

// RunYear drives the full state machine for one year and returns the
// year-end snapshot.
func (ys *YearStepper) RunYear(year, age int, target decimal.Decimal, draw YearDraw) (domain.YearSnapshot, error) {
	if err := ys.begin(year, age, target, draw); err != nil {
		return domain.YearSnapshot{}, err
	}
	if err := ys.grow(); err != nil {
		return domain.YearSnapshot{}, err
	}
	if err := ys.fund(); err != nil {
		return domain.YearSnapshot{}, err
	}
	if err := ys.withdraw(); err != nil {
		return domain.YearSnapshot{}, err
	}
	return ys.settle()
}

func (ys *YearStepper) begin(year, age int, target decimal.Decimal, draw YearDraw) error {
	if ys.state != StateStart && ys.state != StateSettled {
		return configErrorf("stepper", "year started in state %d", ys.state)
	}
	ys.state = StateStart
	ys.year = year
	ys.age = age
	ys.draw = draw
	ys.target = target
	ys.residual = target
	ys.incomeUsed = decimal.Zero
	ys.withdrawn = decimal.Zero
	ys.taxes = decimal.Zero
	ys.shortfall = decimal.Zero
	ys.debtPaid = decimal.Zero
	return nil
}

// grow applies this year's sampled return to every account. Accounts with no
// return class (cash, income streams, liabilities) grow deterministically
// and receive a zero draw.
func (ys *YearStepper) grow() error {
	if ys.state != StateStart {
		return configErrorf("stepper", "grow called in state %d", ys.state)
	}
	for _, acct := range ys.portfolio.Accounts {
		classReturn := decimal.Zero
		if class := acct.ReturnClass(); class != "" {
			classReturn = ys.draw.Returns[class]
		}
		res := acct.Grow(classReturn)
		ys.taxes = ys.taxes.Add(res.TaxOwed)
	}
	ys.state = StateGrown
	return nil
}

// fund applies one-time inflows due this year and income-stream payments.
// After-tax income offsets the spending target before any account is drawn;
// income beyond the target is banked in the deposit target.
func (ys *YearStepper) fund() error {
	if ys.state != StateGrown {
		return configErrorf("stepper", "fund called in state %d", ys.state)
	}
	p := ys.portfolio

	for _, acct := range p.AccountsOfType(domain.AccountOneTimeInflow) {
		inflow := acct.(*domain.OneTimeInflowAccount)
		amount, due := inflow.ReceiveIfDue(ys.year)
		if !due {
			continue
		}
		target := p.Account(inflow.TargetAccount)
		if target == nil {
			target = p.DepositTarget()
		}
		if target != nil {
			target.Deposit(amount)
			ys.logger.Debugf("year %d: inflow %s deposited %s into %s", ys.year, inflow.Name(), amount, target.Name())
		} else {
			ys.logger.Warnf("year %d: inflow %s of %s dropped, no deposit target", ys.year, inflow.Name(), amount)
		}
	}

	for _, acct := range p.AccountsOfType(domain.AccountIncomeStream) {
		stream := acct.(*domain.IncomeStreamAccount)
		if !stream.Active(ys.year) {
			continue
		}
		_, afterTax, tax := stream.Payment(ys.year)
		ys.taxes = ys.taxes.Add(tax)

		applied := decimal.Min(afterTax, ys.residual)
		ys.incomeUsed = ys.incomeUsed.Add(applied)
		ys.residual = ys.residual.Sub(applied)

		if excess := afterTax.Sub(applied); excess.IsPositive() {
			if target := p.DepositTarget(); target != nil {
				target.Deposit(excess)
			} else {
				ys.logger.Warnf("year %d: %s of surplus income dropped, no deposit target", ys.year, excess)
			}
		}
	}

	ys.state = StateFunded
	return nil
}

// withdraw forces required minimum distributions, then sources the residual
// spending need through the policy. RMD cash beyond the spending need is
// reinvested into the first taxable account net of tax.
func (ys *YearStepper) withdraw() error {
	if ys.state != StateFunded {
		return configErrorf("stepper", "withdraw called in state %d", ys.state)
	}
	p := ys.portfolio

	for _, acct := range p.AccountsOfType(domain.AccountTaxDeferred) {
		deferred := acct.(*domain.TaxDeferredAccount)
		rmd := deferred.RequiredMinimum(ys.age)
		if !rmd.IsPositive() {
			continue
		}
		res := deferred.Withdraw(rmd, ys.age, ys.year)
		ys.taxes = ys.taxes.Add(res.Tax).Add(res.Penalty)

		toward := decimal.Min(res.Withdrawn, ys.residual)
		ys.withdrawn = ys.withdrawn.Add(toward)
		ys.residual = ys.residual.Sub(toward)

		if excess := res.Withdrawn.Sub(toward); excess.IsPositive() {
			net := excess.Mul(one.Sub(deferred.OrdinaryTaxRate))
			if target := firstTaxable(p); target != nil {
				target.Deposit(net)
			} else {
				ys.logger.Warnf("year %d: %s of excess distribution dropped, no deposit target", ys.year, net)
			}
		}
	}

	alloc := ys.policy.Allocate(ys.residual, p, ys.age, ys.year)
	for _, amount := range alloc.Withdrawals {
		ys.withdrawn = ys.withdrawn.Add(amount)
	}
	ys.taxes = ys.taxes.Add(alloc.Taxes).Add(alloc.Penalties)
	ys.shortfall = alloc.Shortfall
	ys.residual = alloc.Shortfall

	ys.state = StateWithdrawn
	return nil
}

// settle pays liabilities, sourcing the cash through the policy, and records
// the year-end snapshot.
func (ys *YearStepper) settle() (domain.YearSnapshot, error) {
	if ys.state != StateWithdrawn {
		return domain.YearSnapshot{}, configErrorf("stepper", "settle called in state %d", ys.state)
	}
	p := ys.portfolio

	for _, acct := range p.AccountsOfType(domain.AccountLiability) {
		liability := acct.(*domain.LiabilityAccount)
		due := liability.PaymentDue()
		if !due.IsPositive() {
			continue
		}
		// Source the cash first; only what was actually raised amortizes
		// the liability.
		alloc := ys.policy.Allocate(due, p, ys.age, ys.year)
		funded := due.Sub(alloc.Shortfall)
		liability.ApplyPayment(funded)
		if alloc.Shortfall.IsPositive() {
			ys.logger.Warnf("year %d: %s payment underfunded by %s", ys.year, liability.Name(), alloc.Shortfall)
		}
		ys.debtPaid = ys.debtPaid.Add(funded)
		ys.taxes = ys.taxes.Add(alloc.Taxes).Add(alloc.Penalties)
	}

	balances := make(map[string]decimal.Decimal, len(p.Accounts))
	for _, acct := range p.Accounts {
		balances[acct.Name()] = acct.Balance()
	}

	snapshot := domain.YearSnapshot{
		Year:         ys.year,
		Age:          ys.age,
		Balances:     balances,
		NetWorth:     p.NetWorth(),
		Target:       ys.target,
		Withdrawn:    ys.withdrawn,
		TaxesPaid:    ys.taxes,
		Shortfall:    ys.shortfall,
		Inflation:    ys.draw.Inflation,
		IncomeUsed:   ys.incomeUsed,
		DebtPayments: ys.debtPaid,
	}
	ys.state = StateSettled
	return snapshot, nil
}

func firstTaxable(p *domain.Portfolio) domain.Account {
	if accounts := p.AccountsOfType(domain.AccountTaxable); len(accounts) > 0 {
		return accounts[0]
	}
	return p.DepositTarget()
}
