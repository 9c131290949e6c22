// Package alerts routes qualifying trading signals to notification
// channels. The dispatcher owns the only mutable state in the system:
// the per-symbol cooldown map and the bounded alert history.
package alerts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/quantvn/signals/models"
)

// Message is the structured payload handed to channel adapters. Text
// carries the preformatted body for text channels; Data carries the
// raw fields for structured channels.
type Message struct {
	Kind      models.AlertKind       `json:"type"`
	Symbol    string                 `json:"symbol"`
	Text      string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Sender delivers a message on one channel. The `to` argument is the
// recipient's contact identity on that channel; adapters that
// broadcast (websocket) ignore it. Implementations must respect the
// context deadline.
type Sender interface {
	Send(ctx context.Context, to string, msg Message) error
}

func signalEmoji(t models.SignalType) (string, string) {
	switch t {
	case models.SignalStrongBuy:
		return "🟢🟢", "STRONG BUY"
	case models.SignalBuy:
		return "🟢", "BUY"
	case models.SignalStrongSell:
		return "🔴🔴", "STRONG SELL"
	case models.SignalSell:
		return "🔴", "SELL"
	default:
		return "🟡", "HOLD"
	}
}

func formatSignalText(sig models.TradingSignal) string {
	emoji, action := signalEmoji(sig.Type)

	targetPct := 0.0
	stopPct := 0.0
	if sig.Price != 0 {
		targetPct = (sig.Target/sig.Price - 1) * 100
		stopPct = (sig.StopLoss/sig.Price - 1) * 100
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s — %s\n", emoji, sig.Symbol, action)
	fmt.Fprintf(&b, "Price: %.2f\n", sig.Price)
	fmt.Fprintf(&b, "Target: %.2f (%+.1f%%)\n", sig.Target, targetPct)
	fmt.Fprintf(&b, "Stop: %.2f (%+.1f%%)\n", sig.StopLoss, stopPct)
	fmt.Fprintf(&b, "Confidence: %.0f%%", sig.Confidence*100)

	if len(sig.Reasoning) > 0 {
		b.WriteString("\n")
		for i, reason := range sig.Reasoning {
			if i >= 3 {
				break
			}
			fmt.Fprintf(&b, "\n• %s", reason)
		}
	}
	return b.String()
}

func signalMessage(sig models.TradingSignal, now time.Time) Message {
	return Message{
		Kind:   models.AlertSignal,
		Symbol: sig.Symbol,
		Text:   formatSignalText(sig),
		Data: map[string]interface{}{
			"signal":      string(sig.Type),
			"price":       sig.Price,
			"target":      sig.Target,
			"stop_loss":   sig.StopLoss,
			"confidence":  sig.Confidence,
			"risk_reward": sig.RiskReward,
			"reasoning":   sig.Reasoning,
		},
		Timestamp: now,
	}
}

func priceMessage(symbol string, current, target float64, direction string, now time.Time) Message {
	verb := "rose above"
	if direction == "below" {
		verb = "fell below"
	}
	return Message{
		Kind:   models.AlertPrice,
		Symbol: symbol,
		Text:   fmt.Sprintf("💰 %s %s %.2f (now %.2f)", symbol, verb, target, current),
		Data: map[string]interface{}{
			"current_price": current,
			"target_price":  target,
			"direction":     direction,
		},
		Timestamp: now,
	}
}

func volumeMessage(symbol string, current, avg, ratio float64, now time.Time) Message {
	return Message{
		Kind:   models.AlertVolume,
		Symbol: symbol,
		Text:   fmt.Sprintf("📊 %s volume spike: %.1fx average (%.0f vs %.0f)", symbol, ratio, current, avg),
		Data: map[string]interface{}{
			"current_volume": current,
			"avg_volume":     avg,
			"ratio":          ratio,
		},
		Timestamp: now,
	}
}

// Overview summarizes one evaluation cycle across the universe.
type Overview struct {
	BuyCount  int
	SellCount int
	HoldCount int
	Sentiment string
	TopBuys   []models.TradingSignal
	TopSells  []models.TradingSignal
}

func overviewMessage(ov Overview, now time.Time) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "📈 Market overview — %s\n", ov.Sentiment)
	fmt.Fprintf(&b, "Buy: %d | Sell: %d | Hold: %d", ov.BuyCount, ov.SellCount, ov.HoldCount)
	for _, sig := range ov.TopBuys {
		fmt.Fprintf(&b, "\n🟢 %s (%.0f%%)", sig.Symbol, sig.Confidence*100)
	}
	for _, sig := range ov.TopSells {
		fmt.Fprintf(&b, "\n🔴 %s (%.0f%%)", sig.Symbol, sig.Confidence*100)
	}
	return Message{
		Kind:   models.AlertOverview,
		Symbol: "MARKET",
		Text:   b.String(),
		Data: map[string]interface{}{
			"buy_count":  ov.BuyCount,
			"sell_count": ov.SellCount,
			"hold_count": ov.HoldCount,
			"sentiment":  ov.Sentiment,
		},
		Timestamp: now,
	}
}
