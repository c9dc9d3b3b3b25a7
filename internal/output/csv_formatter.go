package output

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/wealthsim/retirement-simulator/internal/domain"
)

// CSVFormatter emits one metric per row for spreadsheet import.
type CSVFormatter struct{}

func (c CSVFormatter) Name() string { return "csv" }

func (c CSVFormatter) Format(result *domain.SimulationResult) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	rows := [][]string{
		{"metric", "value"},
		{"run_id", result.RunID},
		{"num_trials", strconv.Itoa(result.NumTrials)},
		{"discarded_trials", strconv.Itoa(result.Discarded)},
		{"horizon_years", strconv.Itoa(result.HorizonYears)},
		{"seed", strconv.FormatInt(result.Seed, 10)},
		{"success_rate", result.SuccessRate.String()},
		{"mean_final_net_worth", result.MeanFinalNetWorth.String()},
		{"median_final_net_worth", result.MedianFinalNetWorth.String()},
		{"value_at_risk", result.ValueAtRisk.String()},
		{"conditional_var", result.ConditionalVaR.String()},
		{"sharpe_ratio", result.SharpeRatio.String()},
		{"sortino_ratio", result.SortinoRatio.String()},
		{"mean_max_drawdown", result.MeanMaxDrawdown.String()},
	}
	for _, p := range sortedKeys(result.Percentiles) {
		rows = append(rows, []string{fmt.Sprintf("final_net_worth_p%d", p), result.Percentiles[p].String()})
	}
	for _, p := range sortedKeys(result.DrawdownPercentiles) {
		rows = append(rows, []string{fmt.Sprintf("max_drawdown_p%d", p), result.DrawdownPercentiles[p].String()})
	}

	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
