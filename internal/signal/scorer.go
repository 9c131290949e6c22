// Package signal combines indicator classifications into a single
// trading decision per symbol with confidence and price targets.
package signal

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quantvn/signals/internal/indicators"
	"github.com/quantvn/signals/models"
)

// scoringOrder fixes the iteration order over indicator results so two
// runs on the same input produce identical reasoning lists.
var scoringOrder = []string{"rsi", "macd", "bollinger", "moving_averages", "volume"}

// defaultWeight applies to any indicator missing from the weight table.
const defaultWeight = 0.1

// volatilityPeriod is the trailing window for the return stddev used
// to size targets and stops.
const volatilityPeriod = 20

// DefaultWeights returns the indicator weight table. Weights need not
// sum to 1; the scorer normalizes by the weights actually applied.
func DefaultWeights() map[string]float64 {
	return map[string]float64{
		"rsi":             0.25,
		"macd":            0.30,
		"bollinger":       0.20,
		"moving_averages": 0.15,
		"volume":          0.10,
	}
}

// Series is the per-symbol input snapshot for one evaluation.
type Series struct {
	Prices     []float64
	Volumes    []float64
	Support    []float64
	Resistance []float64
}

// Scorer turns a price/volume series into a TradingSignal. Stateless
// per call; safe for concurrent use across symbols.
type Scorer struct {
	engine  *indicators.Engine
	weights map[string]float64
	logger  zerolog.Logger
	now     func() time.Time
}

// NewScorer creates a scorer over the given engine. A nil weights map
// selects the default table.
func NewScorer(engine *indicators.Engine, weights map[string]float64) *Scorer {
	if weights == nil {
		weights = DefaultWeights()
	}
	return &Scorer{
		engine:  engine,
		weights: weights,
		logger:  log.With().Str("component", "scorer").Logger(),
		now:     time.Now,
	}
}

// Generate produces the trading signal for one symbol. It never fails:
// a series shorter than two points yields a zero-confidence HOLD with
// an explicit reason.
func (s *Scorer) Generate(symbol string, series Series) models.TradingSignal {
	if len(series.Prices) < 2 {
		return s.insufficientData(symbol, series.Prices)
	}

	price := series.Prices[len(series.Prices)-1]
	results := s.engine.CalculateAll(series.Prices, series.Volumes)

	var totalScore, totalWeight float64
	var reasoning []string

	for _, name := range indicatorOrder(results) {
		result := results[name]
		weight, ok := s.weights[name]
		if !ok {
			weight = defaultWeight
		}
		score := float64(result.Signal.Score())

		totalScore += score * weight
		totalWeight += weight

		if result.Signal != models.Neutral {
			glyph := "🔴"
			if score > 0 {
				glyph = "🟢"
			}
			reasoning = append(reasoning, fmt.Sprintf("%s %s: %s", glyph, result.Name, result.Description))
		}
	}

	finalScore := 0.0
	if totalWeight > 0 {
		finalScore = totalScore / totalWeight
	}

	signalType, confidence := scoreToSignal(finalScore)
	volatility := calculateVolatility(series.Prices)
	target, stop := calculateLevels(price, signalType, volatility, series.Support, series.Resistance)

	risk := math.Abs(price - stop)
	reward := math.Abs(target - price)
	riskReward := 0.0
	if risk > 0 {
		riskReward = reward / risk
	}

	s.logger.Debug().
		Str("symbol", symbol).
		Str("signal", string(signalType)).
		Float64("score", finalScore).
		Float64("confidence", confidence).
		Msg("signal generated")

	return models.TradingSignal{
		Symbol:      symbol,
		Type:        signalType,
		Confidence:  confidence,
		Price:       price,
		Target:      target,
		StopLoss:    stop,
		RiskReward:  riskReward,
		Indicators:  results,
		Reasoning:   reasoning,
		GeneratedAt: s.now(),
	}
}

// BatchGenerate scores every symbol and ranks the output: active
// signals first, by confidence descending, HOLD entries last.
func (s *Scorer) BatchGenerate(data map[string]Series) []models.TradingSignal {
	symbols := make([]string, 0, len(data))
	for symbol := range data {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	out := make([]models.TradingSignal, 0, len(symbols))
	for _, symbol := range symbols {
		out = append(out, s.Generate(symbol, data[symbol]))
	}

	sort.SliceStable(out, func(i, j int) bool {
		holdI := out[i].Type == models.SignalHold
		holdJ := out[j].Type == models.SignalHold
		if holdI != holdJ {
			return !holdI
		}
		return out[i].Confidence > out[j].Confidence
	})
	return out
}

// TopSignals returns the best n non-HOLD signals, optionally filtered
// by signal type.
func (s *Scorer) TopSignals(data map[string]Series, n int, types ...models.SignalType) []models.TradingSignal {
	all := s.BatchGenerate(data)

	var active []models.TradingSignal
	for _, sig := range all {
		if sig.Type == models.SignalHold {
			continue
		}
		if len(types) > 0 && !containsType(types, sig.Type) {
			continue
		}
		active = append(active, sig)
	}

	if len(active) > n {
		active = active[:n]
	}
	return active
}

func (s *Scorer) insufficientData(symbol string, prices []float64) models.TradingSignal {
	price := 0.0
	if len(prices) > 0 {
		price = prices[len(prices)-1]
	}
	return models.TradingSignal{
		Symbol:      symbol,
		Type:        models.SignalHold,
		Confidence:  0,
		Price:       price,
		Target:      price,
		StopLoss:    price * 0.95,
		RiskReward:  0,
		Indicators:  map[string]models.IndicatorResult{},
		Reasoning:   []string{"Insufficient data for analysis"},
		GeneratedAt: s.now(),
	}
}

// indicatorOrder returns the canonical names first, then any extra
// indicator keys sorted alphabetically.
func indicatorOrder(results map[string]models.IndicatorResult) []string {
	order := make([]string, 0, len(results))
	seen := make(map[string]bool, len(results))
	for _, name := range scoringOrder {
		if _, ok := results[name]; ok {
			order = append(order, name)
			seen[name] = true
		}
	}
	var extra []string
	for name := range results {
		if !seen[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(order, extra...)
}

func scoreToSignal(score float64) (models.SignalType, float64) {
	switch {
	case score >= 1.5:
		return models.SignalStrongBuy, math.Min(0.95, 0.7+score*0.1)
	case score >= 0.5:
		return models.SignalBuy, math.Min(0.85, 0.5+score*0.15)
	case score <= -1.5:
		return models.SignalStrongSell, math.Min(0.95, 0.7+math.Abs(score)*0.1)
	case score <= -0.5:
		return models.SignalSell, math.Min(0.85, 0.5+math.Abs(score)*0.15)
	default:
		return models.SignalHold, 0.5
	}
}

// calculateVolatility is the stddev of 1-bar returns over the trailing
// window, in percent. Short series default to 2%.
func calculateVolatility(prices []float64) float64 {
	if len(prices) < volatilityPeriod {
		return 2.0
	}

	window := prices[len(prices)-volatilityPeriod:]
	returns := make([]float64, 0, len(window)-1)
	for i := 1; i < len(window); i++ {
		if window[i-1] != 0 {
			returns = append(returns, (window[i]-window[i-1])/window[i-1])
		}
	}
	if len(returns) == 0 {
		return 2.0
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))

	return math.Sqrt(variance) * 100
}

// calculateLevels derives the target and stop from volatility, then
// lets supplied support/resistance levels override the defaults: the
// nearest qualifying level becomes the target, the nearest opposing
// level with a 1% buffer becomes the stop.
func calculateLevels(price float64, signalType models.SignalType, volatility float64, support, resistance []float64) (float64, float64) {
	targetPct := math.Max(3.0, volatility*2)
	stopPct := math.Max(2.0, volatility*1.5)

	switch {
	case signalType.IsBuy():
		target := price * (1 + targetPct/100)
		stop := price * (1 - stopPct/100)

		if next, ok := lowestAbove(resistance, price); ok {
			target = next
		}
		if nearest, ok := highestBelow(support, price); ok {
			stop = nearest * 0.99
		}
		return target, stop

	case signalType.IsSell():
		target := price * (1 - targetPct/100)
		stop := price * (1 + stopPct/100)

		if next, ok := highestBelow(support, price); ok {
			target = next
		}
		if nearest, ok := lowestAbove(resistance, price); ok {
			stop = nearest * 1.01
		}
		return target, stop

	default: // HOLD
		return price, price * 0.95
	}
}

func lowestAbove(levels []float64, price float64) (float64, bool) {
	best, found := 0.0, false
	for _, l := range levels {
		if l > price && (!found || l < best) {
			best, found = l, true
		}
	}
	return best, found
}

func highestBelow(levels []float64, price float64) (float64, bool) {
	best, found := 0.0, false
	for _, l := range levels {
		if l < price && (!found || l > best) {
			best, found = l, true
		}
	}
	return best, found
}

func containsType(types []models.SignalType, t models.SignalType) bool {
	for _, x := range types {
		if x == t {
			return true
		}
	}
	return false
}
