package models

import (
	"time"
)

// Candle represents a single OHLCV bar.
type Candle struct {
	Datetime string  `json:"datetime,omitempty"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   float64 `json:"volume,omitempty"`
}

// Closes extracts the close series from a candle slice.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Volumes extracts the volume series from a candle slice.
func Volumes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Volume
	}
	return out
}

// SignalStrength is the five-level classification emitted by a single
// indicator. The numeric projection via Score is what the scorer uses;
// never rely on declaration order.
type SignalStrength int

const (
	StrongSell SignalStrength = iota
	Sell
	Neutral
	Buy
	StrongBuy
)

// Score maps a strength to its scoring value in [-2, 2].
func (s SignalStrength) Score() int {
	switch s {
	case StrongBuy:
		return 2
	case Buy:
		return 1
	case Sell:
		return -1
	case StrongSell:
		return -2
	default:
		return 0
	}
}

func (s SignalStrength) String() string {
	switch s {
	case StrongBuy:
		return "STRONG_BUY"
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	case StrongSell:
		return "STRONG_SELL"
	default:
		return "NEUTRAL"
	}
}

// IndicatorResult is the output of one indicator for one evaluation.
type IndicatorResult struct {
	Name        string         `json:"name"`
	Value       float64        `json:"value"`
	Signal      SignalStrength `json:"signal"`
	Description string         `json:"description"`
}

// SignalType is the final trading decision for a symbol.
type SignalType string

const (
	SignalStrongBuy  SignalType = "STRONG_BUY"
	SignalBuy        SignalType = "BUY"
	SignalHold       SignalType = "HOLD"
	SignalSell       SignalType = "SELL"
	SignalStrongSell SignalType = "STRONG_SELL"
)

// IsStrong reports whether the signal is one of the STRONG_* variants.
func (t SignalType) IsStrong() bool {
	return t == SignalStrongBuy || t == SignalStrongSell
}

// IsBuy reports whether the signal is on the buy side.
func (t SignalType) IsBuy() bool {
	return t == SignalStrongBuy || t == SignalBuy
}

// IsSell reports whether the signal is on the sell side.
func (t SignalType) IsSell() bool {
	return t == SignalStrongSell || t == SignalSell
}

// TradingSignal is the scorer's decision for one symbol in one
// evaluation cycle. It is constructed once and never mutated.
type TradingSignal struct {
	Symbol      string                     `json:"symbol"`
	Type        SignalType                 `json:"signal"`
	Confidence  float64                    `json:"confidence"`
	Price       float64                    `json:"price"`
	Target      float64                    `json:"target"`
	StopLoss    float64                    `json:"stop_loss"`
	RiskReward  float64                    `json:"risk_reward"`
	Indicators  map[string]IndicatorResult `json:"indicators"`
	Reasoning   []string                   `json:"reasoning"`
	GeneratedAt time.Time                  `json:"generated_at"`
}

// PatternType identifies a candlestick or chart pattern.
type PatternType string

const (
	PatternHammer           PatternType = "hammer"
	PatternShootingStar     PatternType = "shooting_star"
	PatternBullishEngulfing PatternType = "bullish_engulfing"
	PatternBearishEngulfing PatternType = "bearish_engulfing"
	PatternMorningStar      PatternType = "morning_star"
	PatternEveningStar      PatternType = "evening_star"
	PatternDoubleBottom     PatternType = "double_bottom"
	PatternDoubleTop        PatternType = "double_top"
)

// PatternMatch is one detected pattern. Target and StopLoss are zero
// for candlestick patterns, which imply no price objective.
type PatternMatch struct {
	Type        PatternType `json:"pattern"`
	Confidence  float64     `json:"confidence"`
	Bullish     bool        `json:"bullish"`
	Description string      `json:"description"`
	Target      float64     `json:"target,omitempty"`
	StopLoss    float64     `json:"stop_loss,omitempty"`
}
