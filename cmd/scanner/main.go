package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quantvn/signals/internal/alerts"
	"github.com/quantvn/signals/internal/config"
	"github.com/quantvn/signals/internal/database"
	"github.com/quantvn/signals/internal/indicators"
	"github.com/quantvn/signals/internal/marketdata"
	"github.com/quantvn/signals/internal/metrics"
	"github.com/quantvn/signals/internal/patterns"
	scoring "github.com/quantvn/signals/internal/signal"
	"github.com/quantvn/signals/models"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandling(cancel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	setupLogging(cfg.LogLevel)
	log.Info().Strs("symbols", cfg.Symbols).Dur("interval", cfg.ScanInterval).Msg("Starting signal scanner")

	m := metrics.New()
	hub := alerts.NewHub(m)

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

	dispatcher := alerts.New(alerts.Config{
		SignalConfidenceMin:  cfg.SignalConfidenceMin,
		VolumeSpikeRatio:     cfg.VolumeSpikeRatio,
		StrongSignalCooldown: cfg.StrongSignalCooldown,
		HistoryCapacity:      cfg.HistoryCapacity,
	}, buildSenders(cfg, hub), m)

	source := marketdata.NewClient(marketdata.ClientConfig{
		APIKey:     cfg.TwelveAPIKey,
		Interval:   cfg.Interval,
		OutputSize: cfg.CandleCount,
		Timeout:    cfg.RequestTimeout,
	})

	recipients := loadRecipients(cfg)

	scanner := &Scanner{
		cfg:        cfg,
		source:     source,
		scorer:     scorer,
		dispatcher: dispatcher,
		metrics:    m,
		recipients: recipients,
		logger:     log.With().Str("component", "scanner").Logger(),
	}

	server := startHTTPServer(cfg.ListenAddr, hub, dispatcher, m)

	scanner.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP server shutdown")
	}
	log.Info().Msg("Scanner stopped")
}

// Scanner drives the periodic evaluation loop over the symbol universe.
type Scanner struct {
	cfg        *config.Config
	source     marketdata.Source
	scorer     *scoring.Scorer
	dispatcher *alerts.Dispatcher
	metrics    *metrics.Metrics
	recipients []models.AlertRecipient
	logger     zerolog.Logger
}

// Run executes scan cycles until the context is cancelled. The first
// cycle starts immediately.
func (s *Scanner) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.ScanInterval)
	defer ticker.Stop()

	s.scanCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scanCycle(ctx)
		}
	}
}

// scanCycle evaluates every symbol concurrently, then sends the cycle
// overview. A failing symbol is logged and skipped; it never aborts
// the cycle.
func (s *Scanner) scanCycle(ctx context.Context) {
	start := time.Now()

	var wg sync.WaitGroup
	var mu sync.Mutex
	signals := make([]models.TradingSignal, 0, len(s.cfg.Symbols))

	for _, symbol := range s.cfg.Symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			sig, ok := s.evaluateSymbol(ctx, symbol)
			if !ok {
				return
			}
			mu.Lock()
			signals = append(signals, sig)
			mu.Unlock()
		}(symbol)
	}
	wg.Wait()

	s.sendOverview(ctx, signals)

	elapsed := time.Since(start)
	s.metrics.ScanDuration.Observe(elapsed.Seconds())
	s.logger.Info().Int("symbols", len(signals)).Dur("elapsed", elapsed).Msg("scan cycle complete")
}

// evaluateSymbol fetches the series, scores it, runs pattern
// detection, and dispatches whatever alerts the gates let through.
func (s *Scanner) evaluateSymbol(ctx context.Context, symbol string) (models.TradingSignal, bool) {
	candles, err := s.source.Candles(ctx, symbol)
	if err != nil {
		s.logger.Warn().Err(err).Str("symbol", symbol).Msg("fetch failed")
		return models.TradingSignal{}, false
	}
	s.metrics.SymbolsScanned.Inc()

	support, resistance := patterns.SupportResistance(candles)
	sig := s.scorer.Generate(symbol, scoring.Series{
		Prices:     models.Closes(candles),
		Volumes:    models.Volumes(candles),
		Support:    support,
		Resistance: resistance,
	})
	s.metrics.SignalsTotal.WithLabelValues(string(sig.Type)).Inc()

	for _, match := range patterns.Detect(candles) {
		s.metrics.PatternsTotal.WithLabelValues(string(match.Type)).Inc()
		s.logger.Debug().
			Str("symbol", symbol).
			Str("pattern", string(match.Type)).
			Float64("confidence", match.Confidence).
			Msg("pattern detected")
	}

	if err := s.dispatcher.BroadcastSignal(ctx, sig); err != nil {
		s.logger.Warn().Err(err).Str("symbol", symbol).Msg("ws broadcast failed")
	}

	if sig.Type != models.SignalHold && len(s.recipients) > 0 {
		res := s.dispatcher.SendSignalAlerts(ctx, s.recipients, sig)
		if !res.Sent {
			s.logger.Debug().Str("symbol", symbol).Str("reason", res.Reason).Msg("signal alert gated")
		}
	}

	if vol, ok := sig.Indicators["volume"]; ok && vol.Value >= s.cfg.VolumeSpikeRatio {
		volumes := models.Volumes(candles)
		current := volumes[len(volumes)-1]
		avg := current / vol.Value
		for _, rec := range s.recipients {
			s.dispatcher.SendVolumeAlert(ctx, rec, symbol, current, avg, vol.Value)
		}
	}

	return sig, true
}

// sendOverview summarizes the cycle and mails it out.
func (s *Scanner) sendOverview(ctx context.Context, signals []models.TradingSignal) {
	if len(signals) == 0 || len(s.recipients) == 0 {
		return
	}

	ov := alerts.Overview{}
	for _, sig := range signals {
		switch {
		case sig.Type.IsBuy():
			ov.BuyCount++
			if sig.Type == models.SignalStrongBuy && len(ov.TopBuys) < 3 {
				ov.TopBuys = append(ov.TopBuys, sig)
			}
		case sig.Type.IsSell():
			ov.SellCount++
			if sig.Type == models.SignalStrongSell && len(ov.TopSells) < 3 {
				ov.TopSells = append(ov.TopSells, sig)
			}
		default:
			ov.HoldCount++
		}
	}

	switch {
	case ov.BuyCount > ov.SellCount*2:
		ov.Sentiment = "Bullish"
	case ov.SellCount > ov.BuyCount*2:
		ov.Sentiment = "Bearish"
	default:
		ov.Sentiment = "Mixed"
	}

	for _, rec := range s.recipients {
		s.dispatcher.SendMarketOverview(ctx, rec, ov)
	}
}

// buildSenders wires a channel adapter for each configured credential.
// The websocket hub is always available.
func buildSenders(cfg *config.Config, hub *alerts.Hub) map[models.AlertChannel]alerts.Sender {
	senders := map[models.AlertChannel]alerts.Sender{
		models.ChannelWebsocket: hub,
	}

	if cfg.TelegramBotToken != "" {
		tg, err := alerts.NewTelegramSender(cfg.TelegramBotToken)
		if err != nil {
			log.Warn().Err(err).Msg("telegram channel disabled")
		} else {
			senders[models.ChannelTelegram] = tg
		}
	}

	if cfg.SendGridAPIKey != "" {
		senders[models.ChannelEmail] = alerts.NewEmailSender(cfg.SendGridAPIKey, cfg.EmailFrom, cfg.EmailFromName)
	}

	return senders
}

// loadRecipients reads the recipient list from PostgreSQL when a DB is
// configured. Without one the scanner still serves the websocket feed.
func loadRecipients(cfg *config.Config) []models.AlertRecipient {
	if cfg.DBHost == "" {
		log.Info().Msg("no database configured, websocket feed only")
		return nil
	}

	db, err := database.New(database.ConnectionParams{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		DBName:   cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	})
	if err != nil {
		log.Warn().Err(err).Msg("database unavailable, websocket feed only")
		return nil
	}

	recipients, err := db.GetRecipients()
	if err != nil {
		log.Warn().Err(err).Msg("loading recipients failed")
		return nil
	}
	log.Info().Int("count", len(recipients)).Msg("alert recipients loaded")
	return recipients
}

func startHTTPServer(addr string, hub *alerts.Hub, dispatcher *alerts.Dispatcher, m *metrics.Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/stats", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"alerts":    dispatcher.GetStats(),
			"websocket": hub.GetStats(),
		})
	})

	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()
	return server
}

// setupSignalHandling configures signal handling for graceful shutdown
func setupSignalHandling(cancel context.CancelFunc) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		log.Info().Msg("Shutdown signal received, exiting...")
		cancel()
	}()
}

// setupLogging configures the logger
func setupLogging(logLevel string) {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log.Logger = log.Output(output)

	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log.Logger = log.Logger.Level(level)
}
