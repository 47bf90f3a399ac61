package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"fx-advisor/internal/config"
	"fx-advisor/internal/domain"

	"github.com/spf13/cobra"
)

func newRootCmd(cfg *config.Config, factory serviceFactory) *cobra.Command {
	var base, target string
	var asJSON bool

	root := &cobra.Command{
		Use:           "fxctl",
		Short:         "Forecast and backtest currency conversion decisions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&base, "base", cfg.FXBase, "currency converted from")
	root.PersistentFlags().StringVar(&target, "target", cfg.FXTarget, "currency converted into")
	root.PersistentFlags().BoolVar(&asJSON, "json", false, "print raw JSON")

	decision := &cobra.Command{
		Use:   "decision",
		Short: "Run the live forecast and print the recommendation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, closeFn, err := factory(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			a, err := svc.advice.Analyze(cmd.Context(), base, target)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), a)
			}
			printAnalysis(cmd.OutOrStdout(), a)
			return nil
		},
	}

	var days, interval int
	var verbose bool
	backtest := &cobra.Command{
		Use:   "backtest",
		Short: "Replay the ensemble over recent history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, closeFn, err := factory(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			report, err := svc.advice.Backtest(cmd.Context(), base, target, days, interval)
			if err != nil {
				return err
			}
			return printReport(cmd.OutOrStdout(), report, verbose, asJSON)
		},
	}
	backtest.Flags().IntVar(&days, "days", cfg.FXBacktestDays, "days of history to replay")
	backtest.Flags().IntVar(&interval, "interval", cfg.FXBacktestInterval, "days between evaluation points")
	backtest.Flags().BoolVarP(&verbose, "verbose", "v", false, "print every record")

	var evalDays int
	var evalVerbose bool
	eval := &cobra.Command{
		Use:   "eval",
		Short: "Score logged live predictions against realized rates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, closeFn, err := factory(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			if svc.evaluation == nil {
				return errNoPredictionLog
			}
			report, err := svc.evaluation.Evaluate(cmd.Context(), evalDays)
			if err != nil {
				return err
			}
			return printReport(cmd.OutOrStdout(), report, evalVerbose, asJSON)
		},
	}
	eval.Flags().IntVar(&evalDays, "days", 0, "only predictions made in the last N days (0 = all)")
	eval.Flags().BoolVarP(&evalVerbose, "verbose", "v", false, "print every record")

	root.AddCommand(decision, backtest, eval)
	return root
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printAnalysis(w io.Writer, a *domain.Analysis) {
	fmt.Fprintf(w, "%s -> %s  current %.6f  expected(%dd) %.6f\n", a.Base, a.Target, a.CurrentRate, a.HorizonDays, a.ExpectedRate)
	fmt.Fprintf(w, "P(up)        %.1f%%\n", a.Result.ProbabilityUp*100)
	fmt.Fprintf(w, "decision     %s\n", a.Result.Decision)
	fmt.Fprintf(w, "risk         %s (%.1f%% within ±2%%)\n", a.Result.RiskLabel, a.Result.RiskBandConfidence*100)
	fmt.Fprintf(w, "confidence   %.2f\n", a.Result.ConfidenceScore)
	fmt.Fprintf(w, "%s %s today = %s %s, expected %s (%s)\n",
		a.Scenario.Amount, a.Base, a.Scenario.ValueToday, a.Target, a.Scenario.ValueExpected, a.Scenario.Difference)
}

func printReport(w io.Writer, report *domain.BacktestReport, verbose, asJSON bool) error {
	if asJSON {
		if !verbose {
			return writeJSON(w, report.Metrics)
		}
		return writeJSON(w, report)
	}

	m := report.Metrics
	fmt.Fprintf(w, "accuracy %.2f%% (%d/%d)\n", m.RollingAccuracy*100, m.Correct, m.Total)
	fmt.Fprintf(w, "avg confidence correct %.4f  wrong %.4f\n", m.AvgConfidenceWhenCorrect, m.AvgConfidenceWhenWrong)
	if !verbose || len(report.Records) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tPREDICTED\tACTUAL\tCALL\tMOVE\tOK\tCONF")
	for _, r := range report.Records {
		fmt.Fprintf(tw, "%s\t%.6f\t%.6f\t%s\t%s\t%t\t%.2f\n",
			r.PredictionDate.Format(domain.DateLayout), r.PredictedRate, r.ActualRate,
			r.PredictedDirection, r.ActualDirection, r.WasCorrect, r.Confidence)
	}
	return tw.Flush()
}
