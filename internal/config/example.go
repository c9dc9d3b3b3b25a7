package config

import "github.com/shopspring/decimal"

// CreateExampleInput returns a ready-to-run configuration demonstrating all
// account types. The `example` CLI command serializes it for users to adapt.
func CreateExampleInput() *Input {
	return &Input{
		Simulation: SimulationConfig{
			NumTrials:        1000,
			HorizonYears:     30,
			Seed:             1,
			AnnualWithdrawal: decimal.NewFromInt(80000),
			VaRConfidence:    decimal.NewFromFloat(0.95),
			RiskFreeRate:     decimal.NewFromFloat(0.02),
		},
		Policy: PolicyConfig{Type: "ordered"},
		Portfolio: PortfolioConfig{
			CurrentAge: 65,
			Inflation: InflationConfig{
				Mean:           decimal.NewFromFloat(0.025),
				StdDev:         decimal.NewFromFloat(0.012),
				ReversionSpeed: decimal.NewFromFloat(0.3),
			},
			Accounts: []AccountConfig{
				{
					Name:         "checking",
					Type:         "cash",
					Balance:      decimal.NewFromInt(70000),
					AnnualReturn: decimal.NewFromFloat(0.03),
				},
				{
					Name:            "brokerage",
					Type:            "taxable",
					Balance:         decimal.NewFromInt(288000),
					Class:           "stocks",
					StockAllocation: decimal.NewFromFloat(0.8),
					CashReturn:      decimal.NewFromFloat(0.03),
					DividendYield:   decimal.NewFromFloat(0.02),
					CapitalGainsTax: decimal.NewFromFloat(0.15),
				},
				{
					Name:            "traditional_ira",
					Type:            "tax_deferred",
					Balance:         decimal.NewFromInt(200000),
					Class:           "stocks",
					StockAllocation: decimal.NewFromFloat(0.9),
					CashReturn:      decimal.NewFromFloat(0.03),
					OrdinaryTaxRate: decimal.NewFromFloat(0.22),
					PenaltyRate:     decimal.NewFromFloat(0.10),
				},
				{
					Name:            "roth_ira",
					Type:            "tax_free",
					Balance:         decimal.NewFromInt(100000),
					Class:           "stocks",
					StockAllocation: decimal.NewFromFloat(0.9),
					CashReturn:      decimal.NewFromFloat(0.03),
					PenaltyRate:     decimal.NewFromFloat(0.10),
				},
				{
					Name:            "private_equity",
					Type:            "illiquid",
					Balance:         decimal.NewFromInt(150000),
					Class:           "private",
					ConversionYear:  5,
					CapitalGainsTax: decimal.NewFromFloat(0.15),
				},
				{
					Name:          "social_security",
					Type:          "income_stream",
					AnnualAmount:  decimal.NewFromInt(30000),
					StartYear:     3,
					DurationYears: 0, // lifetime
					COLARate:      decimal.NewFromFloat(0.02),
					TaxRate:       decimal.NewFromFloat(0.10),
				},
				{
					Name:          "inheritance",
					Type:          "one_time_inflow",
					Balance:       decimal.NewFromInt(120000),
					Class:         "stocks",
					ScheduledYear: 10,
					TargetAccount: "brokerage",
				},
				{
					Name:           "mortgage",
					Type:           "liability",
					Balance:        decimal.NewFromInt(180000),
					InterestRate:   decimal.NewFromFloat(0.04),
					RemainingYears: 15,
				},
			},
		},
		ReturnClasses: map[string]ClassConfig{
			"stocks":  {Mean: decimal.NewFromFloat(0.10), StdDev: decimal.NewFromFloat(0.16)},
			"bonds":   {Mean: decimal.NewFromFloat(0.04), StdDev: decimal.NewFromFloat(0.05)},
			"private": {Mean: decimal.NewFromFloat(0.12), StdDev: decimal.NewFromFloat(0.25)},
		},
		Correlations: &CorrelationConfig{
			Classes: []string{"stocks", "bonds", "private"},
			Matrix: [][]float64{
				{1.0, 0.1, 0.7},
				{0.1, 1.0, 0.05},
				{0.7, 0.05, 1.0},
			},
		},
	}
}
