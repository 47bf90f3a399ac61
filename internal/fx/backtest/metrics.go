package backtest

import (
	"math"

	"fx-advisor/internal/domain"

	"gonum.org/v1/gonum/stat"
)

// CalcMetrics aggregates records from scratch. Ratios are rounded to four
// decimals and every field is zero for an empty input.
func CalcMetrics(records []domain.BacktestRecord) domain.AccuracyMetrics {
	if len(records) == 0 {
		return domain.AccuracyMetrics{}
	}
	var correctConfs, wrongConfs []float64
	for _, r := range records {
		if r.WasCorrect {
			correctConfs = append(correctConfs, r.Confidence)
		} else {
			wrongConfs = append(wrongConfs, r.Confidence)
		}
	}
	return domain.AccuracyMetrics{
		RollingAccuracy:          round4(float64(len(correctConfs)) / float64(len(records))),
		AvgConfidenceWhenCorrect: meanOrZero(correctConfs),
		AvgConfidenceWhenWrong:   meanOrZero(wrongConfs),
		Total:                    len(records),
		Correct:                  len(correctConfs),
	}
}

func meanOrZero(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return round4(stat.Mean(values, nil))
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
