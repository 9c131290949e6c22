package patterns

import (
	"math"
	"sort"

	"github.com/quantvn/signals/models"
)

// maxLevels caps the returned support/resistance lists to the
// strongest few.
const maxLevels = 3

// levelTolerance clusters swing points within 0.2% of price into one
// horizontal level.
const levelTolerance = 0.002

// SupportResistance clusters swing highs and lows into horizontal
// levels and splits them around the current price. A level touched
// more often ranks stronger; supports are ordered nearest-below-first,
// resistances nearest-above-first. Fewer than 20 candles yields no
// levels.
func SupportResistance(candles []models.Candle) (support, resistance []float64) {
	if len(candles) < 20 {
		return nil, nil
	}

	lows := make([]float64, len(candles))
	highs := make([]float64, len(candles))
	for i, c := range candles {
		lows[i] = c.Low
		highs[i] = c.High
	}

	currentPrice := candles[len(candles)-1].Close
	step := currentPrice * levelTolerance
	if step <= 0 {
		return nil, nil
	}

	touches := make(map[float64]int)
	for _, i := range localExtrema(lows, -1) {
		level := math.Round(lows[i]/step) * step
		touches[level]++
	}
	for _, i := range localExtrema(highs, 1) {
		level := math.Round(highs[i]/step) * step
		touches[level]++
	}

	// Recent closes revisiting a level confirm it.
	start := len(candles) - 10
	if start < 0 {
		start = 0
	}
	for _, c := range candles[start:] {
		for level := range touches {
			if math.Abs(c.Close-level) < step*2 {
				touches[level]++
			}
		}
	}

	type priceLevel struct {
		price   float64
		touches int
	}
	levels := make([]priceLevel, 0, len(touches))
	for price, n := range touches {
		levels = append(levels, priceLevel{price: price, touches: n})
	}
	sort.Slice(levels, func(i, j int) bool {
		if levels[i].touches != levels[j].touches {
			return levels[i].touches > levels[j].touches
		}
		return levels[i].price < levels[j].price
	})

	for _, level := range levels {
		switch {
		case level.price < currentPrice:
			support = append(support, level.price)
		case level.price > currentPrice:
			resistance = append(resistance, level.price)
		}
	}

	sort.Sort(sort.Reverse(sort.Float64Slice(support)))
	sort.Float64s(resistance)

	if len(support) > maxLevels {
		support = support[:maxLevels]
	}
	if len(resistance) > maxLevels {
		resistance = resistance[:maxLevels]
	}
	return support, resistance
}
