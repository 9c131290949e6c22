// Command analyzer prints a one-shot analysis for a single symbol:
// indicator breakdown, detected patterns, and the final trading signal.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quantvn/signals/internal/config"
	"github.com/quantvn/signals/internal/indicators"
	"github.com/quantvn/signals/internal/marketdata"
	"github.com/quantvn/signals/internal/patterns"
	scoring "github.com/quantvn/signals/internal/signal"
	"github.com/quantvn/signals/models"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	setupLogging(cfg.LogLevel)

	symbol := cfg.Symbols[0]
	if len(os.Args) > 1 {
		symbol = os.Args[1]
	}

	client := marketdata.NewClient(marketdata.ClientConfig{
		APIKey:     cfg.TwelveAPIKey,
		Interval:   cfg.Interval,
		OutputSize: cfg.CandleCount,
		Timeout:    cfg.RequestTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer cancel()

	candles, err := client.Candles(ctx, symbol)
	if err != nil {
		log.Fatal().Err(err).Str("symbol", symbol).Msg("Failed to fetch candles")
	}

	engine := indicators.New(indicators.Config{
		RSIPeriod:        cfg.RSIPeriod,
		MACDFastPeriod:   cfg.MACDFastPeriod,
		MACDSlowPeriod:   cfg.MACDSlowPeriod,
		MACDSignalPeriod: cfg.MACDSignalPeriod,
		BBPeriod:         cfg.BBPeriod,
		BBStdDev:         cfg.BBStdDev,
		SMAShortPeriod:   cfg.SMAShortPeriod,
		SMALongPeriod:    cfg.SMALongPeriod,
		VolumePeriod:     cfg.VolumePeriod,
	})
	scorer := scoring.NewScorer(engine, cfg.Weights())

	support, resistance := patterns.SupportResistance(candles)
	sig := scorer.Generate(symbol, scoring.Series{
		Prices:     models.Closes(candles),
		Volumes:    models.Volumes(candles),
		Support:    support,
		Resistance: resistance,
	})
	matches := patterns.Detect(candles)

	printAnalysis(symbol, candles, sig, matches, support, resistance)
}

func printAnalysis(symbol string, candles []models.Candle, sig models.TradingSignal, matches []models.PatternMatch, support, resistance []float64) {
	latest := candles[len(candles)-1]

	fmt.Printf("\n===== %s ANALYSIS =====\n", symbol)
	fmt.Printf("Current Price: %.2f (O: %.2f, H: %.2f, L: %.2f)\n",
		latest.Close, latest.Open, latest.High, latest.Low)
	fmt.Printf("Bars: %d\n", len(candles))

	if len(support) > 0 {
		fmt.Printf("Support: %v\n", support)
	}
	if len(resistance) > 0 {
		fmt.Printf("Resistance: %v\n", resistance)
	}

	fmt.Println("\nIndicators:")
	for _, key := range []string{"rsi", "macd", "bollinger", "moving_averages", "volume"} {
		result, ok := sig.Indicators[key]
		if !ok {
			continue
		}
		fmt.Printf("- %s: %s (%s)\n", result.Name, result.Signal, result.Description)
	}

	if len(matches) > 0 {
		fmt.Println("\nPatterns:")
		for _, match := range matches {
			direction := "bearish"
			if match.Bullish {
				direction = "bullish"
			}
			fmt.Printf("- %s (%s, conf %.0f%%): %s\n",
				match.Type, direction, match.Confidence*100, match.Description)
			if match.Target > 0 {
				fmt.Printf("  Target: %.2f, Stop: %.2f\n", match.Target, match.StopLoss)
			}
		}
	}

	fmt.Println("\n===== SIGNAL =====")
	fmt.Printf("Signal: %s | Confidence: %.0f%%\n", sig.Type, sig.Confidence*100)
	fmt.Printf("Price: %.2f | Target: %.2f | Stop: %.2f | R/R: %.2f\n",
		sig.Price, sig.Target, sig.StopLoss, sig.RiskReward)

	if len(sig.Reasoning) > 0 {
		fmt.Println("\nReasoning:")
		for _, reason := range sig.Reasoning {
			fmt.Printf("- %s\n", reason)
		}
	}
	fmt.Println()
}

func setupLogging(logLevel string) {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log.Logger = log.Output(output)

	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.WarnLevel
	}
	log.Logger = log.Logger.Level(level)
}
