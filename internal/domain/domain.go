package domain

import "time"

// Decision is the live recommendation derived from the probability of a rate increase.
type Decision string

const (
	DecisionWait    Decision = "wait"
	DecisionSendNow Decision = "send_now"
	DecisionNeutral Decision = "neutral"
)

// RiskLabel buckets how tightly simulated rates cluster around the current rate.
type RiskLabel string

const (
	RiskHighVolatility     RiskLabel = "high_volatility"
	RiskModerateVolatility RiskLabel = "moderate_volatility"
	RiskLowVolatility      RiskLabel = "low_volatility"
)

type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// DirectionOf reports up only when next is strictly greater than prev.
func DirectionOf(prev, next float64) Direction {
	if next > prev {
		return DirectionUp
	}
	return DirectionDown
}

// FeatureSet is the snapshot of technical indicators as of the last observation of a series.
type FeatureSet struct {
	MA7               float64 `json:"ma_7"`
	MA30              float64 `json:"ma_30"`
	Momentum          float64 `json:"momentum"`
	Slope             float64 `json:"slope"`
	Volatility        float64 `json:"volatility"`
	RSI               float64 `json:"rsi"`
	BollingerPosition float64 `json:"bollinger_position"`
	Drift             float64 `json:"drift"`
}

// ForecastDistribution holds simulated terminal rates, one per path.
type ForecastDistribution []float64

type DecisionResult struct {
	ProbabilityUp      float64   `json:"probability_up"`
	Decision           Decision  `json:"decision"`
	RiskBandConfidence float64   `json:"risk_band_confidence"`
	RiskLabel          RiskLabel `json:"risk_label"`
	ConfidenceScore    float64   `json:"confidence_score"`
}

// Scenario compares converting an amount today against the expected rate at the horizon.
type Scenario struct {
	Amount        string `json:"amount"`
	ValueToday    string `json:"value_today"`
	ValueExpected string `json:"value_expected"`
	Difference    string `json:"difference"`
}

// Analysis is the full output of one live pipeline run.
type Analysis struct {
	Base         string         `json:"base"`
	Target       string         `json:"target"`
	CurrentRate  float64        `json:"current_rate"`
	Features     FeatureSet     `json:"features"`
	ExpectedRate float64        `json:"expected_rate"`
	HorizonDays  int            `json:"horizon_days"`
	Observations int            `json:"observations"`
	Result       DecisionResult `json:"result"`
	Scenario     Scenario       `json:"scenario"`
	GeneratedAt  time.Time      `json:"generated_at"`
}

type BacktestRecord struct {
	PredictionDate     time.Time `json:"prediction_date"`
	PredictedRate      float64   `json:"predicted_rate"`
	ActualRate         float64   `json:"actual_rate"`
	PredictedDirection Direction `json:"predicted_direction"`
	ActualDirection    Direction `json:"actual_direction"`
	WasCorrect         bool      `json:"was_correct"`
	Confidence         float64   `json:"confidence"`
}

type AccuracyMetrics struct {
	RollingAccuracy          float64 `json:"rolling_accuracy"`
	AvgConfidenceWhenCorrect float64 `json:"avg_confidence_when_correct"`
	AvgConfidenceWhenWrong   float64 `json:"avg_confidence_when_wrong"`
	Total                    int     `json:"total"`
	Correct                  int     `json:"correct"`
}

type BacktestReport struct {
	Records []BacktestRecord `json:"records"`
	Metrics AccuracyMetrics  `json:"metrics"`
}

// Prediction is one logged live analysis awaiting (or holding) its realized outcome.
type Prediction struct {
	ID                 int64
	Base               string
	Target             string
	PredictedAt        time.Time
	TargetDate         time.Time
	PredictedRate      float64
	ProbabilityUp      float64
	PredictedDirection Direction
	Decision           Decision
	Confidence         float64
	ResolvedAt         *time.Time
	ActualRate         *float64
	WasCorrect         *bool
}
