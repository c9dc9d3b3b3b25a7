package output

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/wealthsim/retirement-simulator/internal/domain"
)

// ConsoleFormatter renders a concise human-readable summary.
type ConsoleFormatter struct{}

func (c ConsoleFormatter) Name() string { return "console" }

func (c ConsoleFormatter) Format(result *domain.SimulationResult) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "PORTFOLIO SIMULATION SUMMARY")
	fmt.Fprintln(&buf, "================================")
	fmt.Fprintf(&buf, "Run:            %s\n", result.RunID)
	fmt.Fprintf(&buf, "Trials:         %d (seed %d, %d years)\n", result.NumTrials, result.Seed, result.HorizonYears)
	if result.Discarded > 0 {
		fmt.Fprintf(&buf, "Discarded:      %d trials failed and were excluded\n", result.Discarded)
	}
	fmt.Fprintf(&buf, "Success Rate:   %s\n", FormatPercentage(result.SuccessRate))
	fmt.Fprintln(&buf)

	fmt.Fprintf(&buf, "Final Net Worth: mean=%s median=%s\n",
		FormatCurrency(result.MeanFinalNetWorth), FormatCurrency(result.MedianFinalNetWorth))
	for _, p := range sortedKeys(result.Percentiles) {
		fmt.Fprintf(&buf, "  P%-2d %s\n", p, FormatCurrency(result.Percentiles[p]))
	}
	fmt.Fprintln(&buf)

	fmt.Fprintf(&buf, "VaR(%s):  %s\n", FormatPercentage(result.VaRConfidence), FormatCurrency(result.ValueAtRisk))
	fmt.Fprintf(&buf, "CVaR(%s): %s\n", FormatPercentage(result.VaRConfidence), FormatCurrency(result.ConditionalVaR))
	fmt.Fprintf(&buf, "Sharpe:  %s  Sortino: %s\n", FormatRatio(result.SharpeRatio), FormatRatio(result.SortinoRatio))
	fmt.Fprintf(&buf, "Max Drawdown: mean=%s", FormatPercentage(result.MeanMaxDrawdown))
	if median, ok := result.DrawdownPercentiles[50]; ok {
		fmt.Fprintf(&buf, " median=%s", FormatPercentage(median))
	}
	fmt.Fprintln(&buf)
	return buf.Bytes(), nil
}

func sortedKeys(m map[int]decimal.Decimal) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
