package ta

import (
	"math"

	"fx-advisor/internal/domain"

	"gonum.org/v1/gonum/stat"
)

// MeanStd returns the mean and population standard deviation of values.
func MeanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	return stat.PopMeanStdDev(values, nil)
}

// MovingAverage returns the arithmetic mean of every contiguous window,
// n-window+1 values in total.
func MovingAverage(values []float64, window int) ([]float64, error) {
	if window <= 0 {
		return nil, &domain.InvalidInputError{Field: "window", Reason: "must be positive"}
	}
	if len(values) < window {
		return nil, &domain.InsufficientDataError{Need: window, Have: len(values)}
	}
	out := make([]float64, 0, len(values)-window+1)
	for i := 0; i+window <= len(values); i++ {
		out = append(out, stat.Mean(values[i:i+window], nil))
	}
	return out, nil
}

// LogReturns returns ln(v[i]/v[i-1]) for i in 1..n-1.
func LogReturns(values []float64) ([]float64, error) {
	if len(values) < 2 {
		return nil, &domain.InsufficientDataError{Need: 2, Have: len(values)}
	}
	out := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i] <= 0 || values[i-1] <= 0 {
			return nil, &domain.InvalidInputError{Field: "rate", Reason: "log returns require positive rates"}
		}
		out = append(out, math.Log(values[i]/values[i-1]))
	}
	return out, nil
}

func RSISeries(closes []float64, period int) []float64 {
	if period <= 0 || len(closes) <= period {
		return nil
	}
	series := make([]float64, len(closes))
	for i := range series {
		series[i] = math.NaN()
	}

	var gainSum float64
	var lossSum float64
	for i := 1; i <= period; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gainSum += delta
		} else {
			lossSum -= delta
		}
	}
	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)
	series[period] = rsiFromAvg(avgGain, avgLoss)

	for i := period + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		gain := math.Max(delta, 0)
		loss := math.Max(-delta, 0)
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		series[i] = rsiFromAvg(avgGain, avgLoss)
	}
	return series
}

// RSI returns the latest Wilder RSI. When fewer than period+1 closes are
// available the period shrinks to len(closes)-1.
func RSI(closes []float64, period int) (float64, error) {
	if len(closes) < 2 {
		return 0, &domain.InsufficientDataError{Need: 2, Have: len(closes)}
	}
	if period <= 0 {
		return 0, &domain.InvalidInputError{Field: "period", Reason: "must be positive"}
	}
	if period > len(closes)-1 {
		period = len(closes) - 1
	}
	series := RSISeries(closes, period)
	return series[len(series)-1], nil
}

func rsiFromAvg(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

func BollingerSeries(values []float64, period int, stdDevs float64) ([]float64, []float64, []float64) {
	if len(values) == 0 {
		return nil, nil, nil
	}
	middle := make([]float64, len(values))
	upper := make([]float64, len(values))
	lower := make([]float64, len(values))
	for i := range values {
		middle[i] = math.NaN()
		upper[i] = math.NaN()
		lower[i] = math.NaN()
	}
	if period <= 0 {
		return middle, upper, lower
	}
	for i := period - 1; i < len(values); i++ {
		window := values[i-period+1 : i+1]
		mean, std := MeanStd(window)
		middle[i] = mean
		upper[i] = mean + stdDevs*std
		lower[i] = mean - stdDevs*std
	}
	return middle, upper, lower
}

// BollingerPosition places current inside the band of the trailing period
// values: 0 at the lower band, 1 at the upper band, clamped outside it.
// A zero-width band yields 0.5.
func BollingerPosition(current float64, values []float64, period int, stdDevs float64) (float64, error) {
	if len(values) == 0 {
		return 0, &domain.InsufficientDataError{Need: 1, Have: 0}
	}
	if period <= 0 || period > len(values) {
		period = len(values)
	}
	_, upper, lower := BollingerSeries(values[len(values)-period:], period, stdDevs)
	u := upper[period-1]
	l := lower[period-1]
	if u == l {
		return 0.5, nil
	}
	return Clamp((current-l)/(u-l), 0, 1), nil
}

func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
