// Package indicators computes per-indicator directional classifications
// from a price/volume series. Every function degrades to a documented
// neutral default when the series is too short; none of them return
// errors.
package indicators

import (
	"fmt"
	"math"

	"github.com/quantvn/signals/models"
)

// Config holds the indicator periods. Zero values are replaced by the
// standard defaults in New.
type Config struct {
	RSIPeriod        int
	MACDFastPeriod   int
	MACDSlowPeriod   int
	MACDSignalPeriod int
	BBPeriod         int
	BBStdDev         float64
	SMAShortPeriod   int
	SMALongPeriod    int
	VolumePeriod     int
}

// DefaultConfig returns the standard periods: RSI 14, MACD 12/26/9,
// Bollinger 20/2, SMA 20/50, volume 20.
func DefaultConfig() Config {
	return Config{
		RSIPeriod:        14,
		MACDFastPeriod:   12,
		MACDSlowPeriod:   26,
		MACDSignalPeriod: 9,
		BBPeriod:         20,
		BBStdDev:         2.0,
		SMAShortPeriod:   20,
		SMALongPeriod:    50,
		VolumePeriod:     20,
	}
}

// Engine is a stateless set of indicator calculations over immutable
// input snapshots. Safe for concurrent use.
type Engine struct {
	cfg Config
}

// New creates an engine, filling unset periods with defaults.
func New(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.RSIPeriod <= 0 {
		cfg.RSIPeriod = def.RSIPeriod
	}
	if cfg.MACDFastPeriod <= 0 {
		cfg.MACDFastPeriod = def.MACDFastPeriod
	}
	if cfg.MACDSlowPeriod <= 0 {
		cfg.MACDSlowPeriod = def.MACDSlowPeriod
	}
	if cfg.MACDSignalPeriod <= 0 {
		cfg.MACDSignalPeriod = def.MACDSignalPeriod
	}
	if cfg.BBPeriod <= 0 {
		cfg.BBPeriod = def.BBPeriod
	}
	if cfg.BBStdDev <= 0 {
		cfg.BBStdDev = def.BBStdDev
	}
	if cfg.SMAShortPeriod <= 0 {
		cfg.SMAShortPeriod = def.SMAShortPeriod
	}
	if cfg.SMALongPeriod <= 0 {
		cfg.SMALongPeriod = def.SMALongPeriod
	}
	if cfg.VolumePeriod <= 0 {
		cfg.VolumePeriod = def.VolumePeriod
	}
	return &Engine{cfg: cfg}
}

// RSI calculates the Relative Strength Index over the configured
// period. Gains and losses are averaged over the trailing window.
// Fewer than period+1 samples returns the neutral (50, NEUTRAL).
func (e *Engine) RSI(prices []float64) (float64, models.SignalStrength) {
	period := e.cfg.RSIPeriod
	if len(prices) < period+1 {
		return 50.0, models.Neutral
	}

	var gains, losses float64
	for i := len(prices) - period; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	rsi := 100.0
	if avgLoss != 0 {
		rs := avgGain / avgLoss
		rsi = 100.0 - (100.0 / (1.0 + rs))
	}

	var signal models.SignalStrength
	switch {
	case rsi <= 20:
		signal = models.StrongBuy
	case rsi <= 30:
		signal = models.Buy
	case rsi >= 80:
		signal = models.StrongSell
	case rsi >= 70:
		signal = models.Sell
	default:
		signal = models.Neutral
	}

	return rsi, signal
}

// MACDResult holds the MACD line, signal line and histogram for the
// most recent sample.
type MACDResult struct {
	MACD      float64 `json:"macd"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// MACD calculates MACD over the full series. The signal line is the
// EMA of the MACD line series, not of a scalar. A histogram sign flip
// against the previous sample is a crossover; a histogram growing in
// its own direction keeps the trend signal. Fewer than slow+signal
// samples returns zeros and NEUTRAL.
func (e *Engine) MACD(prices []float64) (MACDResult, models.SignalStrength) {
	if len(prices) < e.cfg.MACDSlowPeriod+e.cfg.MACDSignalPeriod {
		return MACDResult{}, models.Neutral
	}

	fast := emaSeries(prices, e.cfg.MACDFastPeriod)
	slow := emaSeries(prices, e.cfg.MACDSlowPeriod)

	macdLine := make([]float64, len(prices))
	for i := range prices {
		macdLine[i] = fast[i] - slow[i]
	}
	signalLine := emaSeries(macdLine, e.cfg.MACDSignalPeriod)

	n := len(prices) - 1
	hist := macdLine[n] - signalLine[n]
	prevHist := macdLine[n-1] - signalLine[n-1]

	var signal models.SignalStrength
	switch {
	case hist > 0 && prevHist <= 0:
		signal = models.Buy // bullish crossover
	case hist < 0 && prevHist >= 0:
		signal = models.Sell // bearish crossover
	case hist > 0 && hist > prevHist:
		signal = models.Buy
	case hist < 0 && hist < prevHist:
		signal = models.Sell
	default:
		signal = models.Neutral
	}

	return MACDResult{
		MACD:      macdLine[n],
		Signal:    signalLine[n],
		Histogram: hist,
	}, signal
}

// emaSeries calculates a full-history EMA seeded from the first sample.
// This is deliberately not the SMA-seeded variant; the whole system is
// calibrated against this recurrence.
func emaSeries(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	alpha := 2.0 / float64(period+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// EMA returns the latest value of the full-history EMA recurrence.
func EMA(prices []float64, period int) float64 {
	if len(prices) == 0 {
		return 0
	}
	s := emaSeries(prices, period)
	return s[len(s)-1]
}

// Bands holds Bollinger Band levels plus the price position within the
// bands, clamped to [0,1].
type Bands struct {
	Upper    float64 `json:"upper"`
	Middle   float64 `json:"middle"`
	Lower    float64 `json:"lower"`
	Width    float64 `json:"width"`
	Position float64 `json:"position"`
}

// Bollinger calculates Bollinger Bands over the trailing window. When
// the bands collapse (upper == lower) the position is defined as 0.5.
func (e *Engine) Bollinger(prices []float64) (Bands, models.SignalStrength) {
	period := e.cfg.BBPeriod
	if len(prices) < period {
		return Bands{Position: 0.5}, models.Neutral
	}

	window := prices[len(prices)-period:]
	var sum float64
	for _, p := range window {
		sum += p
	}
	middle := sum / float64(period)

	var variance float64
	for _, p := range window {
		variance += (p - middle) * (p - middle)
	}
	std := math.Sqrt(variance / float64(period))

	upper := middle + e.cfg.BBStdDev*std
	lower := middle - e.cfg.BBStdDev*std

	width := 0.0
	if middle != 0 {
		width = (upper - lower) / middle * 100
	}

	price := prices[len(prices)-1]
	position := 0.5
	if upper != lower {
		position = (price - lower) / (upper - lower)
	}
	position = math.Max(0, math.Min(1, position))

	var signal models.SignalStrength
	switch {
	case position <= 0.1:
		signal = models.StrongBuy
	case position <= 0.2:
		signal = models.Buy
	case position >= 0.9:
		signal = models.StrongSell
	case position >= 0.8:
		signal = models.Sell
	default:
		signal = models.Neutral
	}

	return Bands{
		Upper:    upper,
		Middle:   middle,
		Lower:    lower,
		Width:    width,
		Position: position,
	}, signal
}

// SMA calculates a simple moving average over the trailing period,
// falling back to the mean of the whole series when it is shorter.
func SMA(prices []float64, period int) float64 {
	if len(prices) == 0 {
		return 0
	}
	if len(prices) < period {
		period = len(prices)
	}
	var sum float64
	for _, p := range prices[len(prices)-period:] {
		sum += p
	}
	return sum / float64(period)
}

// MovingAverages classifies the price against the short and long SMAs:
// price above both in order is bullish, below both in order is bearish.
func (e *Engine) MovingAverages(prices []float64) (float64, float64, models.SignalStrength) {
	if len(prices) == 0 {
		return 0, 0, models.Neutral
	}

	smaShort := SMA(prices, e.cfg.SMAShortPeriod)
	smaLong := SMA(prices, e.cfg.SMALongPeriod)
	price := prices[len(prices)-1]

	signal := models.Neutral
	if price > smaShort && smaShort > smaLong {
		signal = models.Buy
	} else if price < smaShort && smaShort < smaLong {
		signal = models.Sell
	}

	return smaShort, smaLong, signal
}

// VolumeStats holds the volume ratio against the trailing average and
// the 1-bar price change in percent.
type VolumeStats struct {
	AvgVolume     float64 `json:"avg_volume"`
	CurrentVolume float64 `json:"current_volume"`
	Ratio         float64 `json:"volume_ratio"`
	PriceChange   float64 `json:"price_change"`
}

// VolumeAnalysis correlates a volume spike with the latest price move.
// Only a ratio above 1.5 produces a directional signal.
func (e *Engine) VolumeAnalysis(volumes, prices []float64) (VolumeStats, models.SignalStrength) {
	period := e.cfg.VolumePeriod
	if len(volumes) < period || len(prices) < 2 {
		return VolumeStats{}, models.Neutral
	}

	var sum float64
	for _, v := range volumes[len(volumes)-period:] {
		sum += v
	}
	avg := sum / float64(period)
	current := volumes[len(volumes)-1]

	ratio := 1.0
	if avg > 0 {
		ratio = current / avg
	}

	priceChange := 0.0
	if prices[len(prices)-2] != 0 {
		priceChange = (prices[len(prices)-1] - prices[len(prices)-2]) / prices[len(prices)-2] * 100
	}

	signal := models.Neutral
	if ratio > 1.5 {
		switch {
		case priceChange > 1:
			signal = models.StrongBuy
		case priceChange > 0:
			signal = models.Buy
		case priceChange < -1:
			signal = models.StrongSell
		case priceChange < 0:
			signal = models.Sell
		}
	}

	return VolumeStats{
		AvgVolume:     avg,
		CurrentVolume: current,
		Ratio:         ratio,
		PriceChange:   priceChange,
	}, signal
}

// CalculateAll runs every indicator and returns the results keyed by
// the scorer's canonical names. The volume indicator is included only
// when a volume series is supplied.
func (e *Engine) CalculateAll(prices, volumes []float64) map[string]models.IndicatorResult {
	results := make(map[string]models.IndicatorResult)

	rsiValue, rsiSignal := e.RSI(prices)
	results["rsi"] = models.IndicatorResult{
		Name:        fmt.Sprintf("RSI (%d)", e.cfg.RSIPeriod),
		Value:       rsiValue,
		Signal:      rsiSignal,
		Description: fmt.Sprintf("RSI at %.1f: %s", rsiValue, rsiZone(rsiValue)),
	}

	macdValues, macdSignal := e.MACD(prices)
	results["macd"] = models.IndicatorResult{
		Name:        fmt.Sprintf("MACD (%d,%d,%d)", e.cfg.MACDFastPeriod, e.cfg.MACDSlowPeriod, e.cfg.MACDSignalPeriod),
		Value:       macdValues.Histogram,
		Signal:      macdSignal,
		Description: fmt.Sprintf("MACD histogram: %.4f", macdValues.Histogram),
	}

	bands, bbSignal := e.Bollinger(prices)
	results["bollinger"] = models.IndicatorResult{
		Name:        fmt.Sprintf("Bollinger Bands (%d,%g)", e.cfg.BBPeriod, e.cfg.BBStdDev),
		Value:       bands.Position,
		Signal:      bbSignal,
		Description: fmt.Sprintf("Price at %.0f%% of bands", bands.Position*100),
	}

	smaShort, smaLong, maSignal := e.MovingAverages(prices)
	price := 0.0
	if len(prices) > 0 {
		price = prices[len(prices)-1]
	}
	results["moving_averages"] = models.IndicatorResult{
		Name:        fmt.Sprintf("MA Cross (%d/%d)", e.cfg.SMAShortPeriod, e.cfg.SMALongPeriod),
		Value:       price,
		Signal:      maSignal,
		Description: fmt.Sprintf("Price: %.2f, SMA%d: %.2f, SMA%d: %.2f", price, e.cfg.SMAShortPeriod, smaShort, e.cfg.SMALongPeriod, smaLong),
	}

	if len(volumes) > 0 {
		stats, volSignal := e.VolumeAnalysis(volumes, prices)
		results["volume"] = models.IndicatorResult{
			Name:        "Volume Analysis",
			Value:       stats.Ratio,
			Signal:      volSignal,
			Description: fmt.Sprintf("Volume %.1fx average", stats.Ratio),
		}
	}

	return results
}

func rsiZone(rsi float64) string {
	switch {
	case rsi < 30:
		return "Oversold"
	case rsi > 70:
		return "Overbought"
	default:
		return "Neutral"
	}
}
