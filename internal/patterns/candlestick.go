// Package patterns scans a trailing OHLC window for candlestick and
// chart formations. Detection is pure rule evaluation with fixed
// thresholds; overlapping pattern kinds are all reported and the
// result list is ordered by confidence, descending.
package patterns

import (
	"fmt"
	"math"
	"sort"

	"github.com/quantvn/signals/models"
)

// Detect runs candlestick and chart pattern detection over the series
// and returns the matches ranked by confidence.
func Detect(candles []models.Candle) []models.PatternMatch {
	matches := DetectCandlesticks(candles)
	matches = append(matches, DetectChart(candles)...)

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Confidence > matches[j].Confidence
	})
	return matches
}

// DetectCandlesticks evaluates the single- and multi-candle formations
// over the last three bars.
func DetectCandlesticks(candles []models.Candle) []models.PatternMatch {
	var matches []models.PatternMatch
	if len(candles) < 3 {
		return matches
	}

	c1 := candles[len(candles)-3]
	c2 := candles[len(candles)-2]
	c3 := candles[len(candles)-1]

	body := math.Abs(c3.Close - c3.Open)
	lowerShadow := math.Min(c3.Open, c3.Close) - c3.Low
	upperShadow := c3.High - math.Max(c3.Open, c3.Close)

	if body > 0 && lowerShadow >= body*2 && upperShadow <= body*0.5 {
		matches = append(matches, models.PatternMatch{
			Type:        models.PatternHammer,
			Confidence:  0.7,
			Bullish:     true,
			Description: "Hammer: bullish reversal, strong buying into the close",
		})
	}

	if body > 0 && upperShadow >= body*2 && lowerShadow <= body*0.5 {
		matches = append(matches, models.PatternMatch{
			Type:        models.PatternShootingStar,
			Confidence:  0.7,
			Bullish:     false,
			Description: "Shooting star: bearish reversal, strong selling into the close",
		})
	}

	// Engulfing: current body fully contains and opposes the previous.
	if c2.Close < c2.Open && c3.Close > c3.Open && c3.Open < c2.Close && c3.Close > c2.Open {
		matches = append(matches, models.PatternMatch{
			Type:        models.PatternBullishEngulfing,
			Confidence:  0.75,
			Bullish:     true,
			Description: "Bullish engulfing: green body swallows the prior red body",
		})
	}

	if c2.Close > c2.Open && c3.Close < c3.Open && c3.Open > c2.Close && c3.Close < c2.Open {
		matches = append(matches, models.PatternMatch{
			Type:        models.PatternBearishEngulfing,
			Confidence:  0.75,
			Bullish:     false,
			Description: "Bearish engulfing: red body swallows the prior green body",
		})
	}

	// Star patterns: small middle body, third candle crossing the
	// midpoint of the first body.
	middleBody := math.Abs(c2.Close - c2.Open)
	middleRange := c2.High - c2.Low
	firstMid := (c1.Open + c1.Close) / 2

	if c1.Close < c1.Open && middleBody < middleRange*0.3 && c3.Close > c3.Open && c3.Close > firstMid {
		matches = append(matches, models.PatternMatch{
			Type:        models.PatternMorningStar,
			Confidence:  0.8,
			Bullish:     true,
			Description: "Morning star: three-candle bullish reversal",
		})
	}

	if c1.Close > c1.Open && middleBody < middleRange*0.3 && c3.Close < c3.Open && c3.Close < firstMid {
		matches = append(matches, models.PatternMatch{
			Type:        models.PatternEveningStar,
			Confidence:  0.8,
			Bullish:     false,
			Description: "Evening star: three-candle bearish reversal",
		})
	}

	return matches
}

// DetectChart evaluates the larger chart formations. The scan needs at
// least 20 samples; the double top/bottom rules need 30.
func DetectChart(candles []models.Candle) []models.PatternMatch {
	var matches []models.PatternMatch
	if len(candles) < 20 {
		return matches
	}

	if m, ok := detectDoubleBottom(candles); ok {
		matches = append(matches, m)
	}
	if m, ok := detectDoubleTop(candles); ok {
		matches = append(matches, m)
	}
	return matches
}

// localExtrema returns the indices of values that are strictly beyond
// both neighbors on each side. cmp decides the direction: -1 for
// minima, +1 for maxima.
func localExtrema(values []float64, cmp int) []int {
	var idx []int
	for i := 2; i < len(values)-2; i++ {
		v := values[i]
		if cmp < 0 {
			if v < values[i-1] && v < values[i-2] && v < values[i+1] && v < values[i+2] {
				idx = append(idx, i)
			}
		} else {
			if v > values[i-1] && v > values[i-2] && v > values[i+1] && v > values[i+2] {
				idx = append(idx, i)
			}
		}
	}
	return idx
}

func detectDoubleBottom(candles []models.Candle) (models.PatternMatch, bool) {
	if len(candles) < 30 {
		return models.PatternMatch{}, false
	}

	window := candles[len(candles)-30:]
	lows := make([]float64, len(window))
	closes := make([]float64, len(window))
	for i, c := range window {
		lows[i] = c.Low
		closes[i] = c.Close
	}

	troughs := localExtrema(lows, -1)
	if len(troughs) < 2 {
		return models.PatternMatch{}, false
	}

	first := troughs[len(troughs)-2]
	second := troughs[len(troughs)-1]
	low1, low2 := lows[first], lows[second]

	if math.Abs(low1-low2)/low1 >= 0.03 {
		return models.PatternMatch{}, false
	}

	// Neckline is the highest close between the two troughs.
	neckline := closes[first]
	for _, c := range closes[first:second] {
		if c > neckline {
			neckline = c
		}
	}

	current := closes[len(closes)-1]
	if current <= neckline {
		return models.PatternMatch{}, false
	}

	target := neckline + (neckline - low2)
	return models.PatternMatch{
		Type:        models.PatternDoubleBottom,
		Confidence:  0.7,
		Bullish:     true,
		Description: fmt.Sprintf("Double bottom at %.2f, neckline %.2f broken", low2, neckline),
		Target:      target,
		StopLoss:    low2 * 0.98,
	}, true
}

func detectDoubleTop(candles []models.Candle) (models.PatternMatch, bool) {
	if len(candles) < 30 {
		return models.PatternMatch{}, false
	}

	window := candles[len(candles)-30:]
	highs := make([]float64, len(window))
	closes := make([]float64, len(window))
	for i, c := range window {
		highs[i] = c.High
		closes[i] = c.Close
	}

	peaks := localExtrema(highs, 1)
	if len(peaks) < 2 {
		return models.PatternMatch{}, false
	}

	first := peaks[len(peaks)-2]
	second := peaks[len(peaks)-1]
	high1, high2 := highs[first], highs[second]

	if math.Abs(high1-high2)/high1 >= 0.03 {
		return models.PatternMatch{}, false
	}

	// Neckline is the lowest close between the two peaks.
	neckline := closes[first]
	for _, c := range closes[first:second] {
		if c < neckline {
			neckline = c
		}
	}

	current := closes[len(closes)-1]
	if current >= neckline {
		return models.PatternMatch{}, false
	}

	target := neckline - (high2 - neckline)
	return models.PatternMatch{
		Type:        models.PatternDoubleTop,
		Confidence:  0.7,
		Bullish:     false,
		Description: fmt.Sprintf("Double top at %.2f, neckline %.2f broken", high2, neckline),
		Target:      target,
		StopLoss:    high2 * 1.02,
	}, true
}
