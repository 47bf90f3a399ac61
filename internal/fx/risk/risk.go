package risk

import (
	"math"

	"fx-advisor/internal/domain"
	"fx-advisor/internal/ta"
)

const (
	lowerBand = 0.98
	upperBand = 1.02

	highVolatilityBelow     = 0.5
	moderateVolatilityBelow = 0.75

	// ConvictionWeight and VolatilityPenalty are fixed scoring parameters;
	// changing them changes every persisted confidence value.
	ConvictionWeight  = 0.4
	VolatilityPenalty = 0.1

	MinConfidence = 0.1
	MaxConfidence = 1.0
)

// BandConfidence is the fraction of simulated rates inside current ± 2%.
func BandConfidence(forecast domain.ForecastDistribution, current float64) float64 {
	if len(forecast) == 0 {
		return 0
	}
	lower := current * lowerBand
	upper := current * upperBand
	within := 0
	for _, v := range forecast {
		if v >= lower && v <= upper {
			within++
		}
	}
	return float64(within) / float64(len(forecast))
}

func Label(bandConfidence float64) domain.RiskLabel {
	switch {
	case bandConfidence < highVolatilityBelow:
		return domain.RiskHighVolatility
	case bandConfidence < moderateVolatilityBelow:
		return domain.RiskModerateVolatility
	default:
		return domain.RiskLowVolatility
	}
}

// ConfidenceScore rewards directional conviction and penalizes volatility,
// clamped to [0.1, 1.0] and rounded to two decimals.
func ConfidenceScore(probabilityUp, volatility float64) float64 {
	strength := math.Abs(probabilityUp-0.5) * 2
	score := 0.5 + strength*ConvictionWeight - volatility*VolatilityPenalty
	return math.Round(ta.Clamp(score, MinConfidence, MaxConfidence)*100) / 100
}
