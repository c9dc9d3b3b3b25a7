package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/wealthsim/retirement-simulator/internal/config"
	"github.com/wealthsim/retirement-simulator/internal/output"
	"github.com/wealthsim/retirement-simulator/internal/simulation"
)

var (
	configFile string
	formatName string
	outputFile string
	verbose    bool
	trials     int
	seed       int64
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "simulator",
		Short: "Monte Carlo retirement portfolio simulator",
		Long: "Projects whether a multi-account retirement portfolio survives a fixed\n" +
			"withdrawal schedule under uncertain market returns, inflation, and taxes.",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation from a YAML configuration file",
		RunE:  runSimulation,
	}
	runCmd.Flags().StringVarP(&configFile, "config", "c", "", "path to configuration file (required)")
	runCmd.Flags().StringVarP(&formatName, "format", "f", "console", "output format: console, json, csv")
	runCmd.Flags().StringVarP(&outputFile, "output", "o", "", "write the report to a timestamped file with this extension instead of stdout")
	runCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	runCmd.Flags().IntVar(&trials, "trials", 0, "override the configured trial count")
	runCmd.Flags().Int64Var(&seed, "seed", 0, "override the configured random seed")
	_ = runCmd.MarkFlagRequired("config")

	exampleCmd := &cobra.Command{
		Use:   "example",
		Short: "Print an example configuration file",
		RunE:  printExample,
	}

	rootCmd.AddCommand(runCmd, exampleCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() (simulation.Logger, func(), error) {
	var zl *zap.Logger
	var err error
	if verbose {
		zl, err = zap.NewDevelopment()
	} else {
		zl, err = zap.NewProduction()
	}
	if err != nil {
		return nil, nil, err
	}
	sugar := zl.Sugar()
	return sugar, func() { _ = zl.Sync() }, nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	logger, flush, err := newLogger()
	if err != nil {
		return err
	}
	defer flush()

	parser := config.NewInputParser()
	input, err := parser.LoadFromFile(configFile)
	if err != nil {
		return err
	}
	if trials > 0 {
		input.Simulation.NumTrials = trials
	}
	if cmd.Flags().Changed("seed") {
		input.Simulation.Seed = seed
	}

	engine, err := input.BuildEngine(logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := engine.Run(ctx)
	if err != nil {
		return err
	}

	formatter := output.GetFormatterByName(formatName)
	if formatter == nil {
		return fmt.Errorf("unknown format %q (available: %v)", formatName, output.AvailableFormatterNames())
	}

	if outputFile != "" {
		name, err := output.WriteFormatted(formatter, result, outputFile)
		if err != nil {
			return err
		}
		logger.Infof("report written to %s", name)
		return nil
	}

	data, err := formatter.Format(result)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func printExample(cmd *cobra.Command, args []string) error {
	data, err := yaml.Marshal(config.CreateExampleInput())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
