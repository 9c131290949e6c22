package alerts

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quantvn/signals/internal/metrics"
	"github.com/quantvn/signals/models"
)

// Config holds the dispatcher gates and limits.
type Config struct {
	SignalConfidenceMin  float64
	VolumeSpikeRatio     float64
	StrongSignalCooldown time.Duration
	HistoryCapacity      int
	SendTimeout          time.Duration
}

// DefaultConfig returns the standard gates: 0.7 confidence floor, 2.0
// volume ratio, 15 minute STRONG_* cooldown, 100-entry history, 10
// second per-channel send deadline.
func DefaultConfig() Config {
	return Config{
		SignalConfidenceMin:  0.7,
		VolumeSpikeRatio:     2.0,
		StrongSignalCooldown: 15 * time.Minute,
		HistoryCapacity:      100,
		SendTimeout:          10 * time.Second,
	}
}

// fanoutOrder fixes channel expansion order so results and history are
// deterministic.
var fanoutOrder = []models.AlertChannel{
	models.ChannelTelegram,
	models.ChannelEmail,
	models.ChannelWebsocket,
}

// Dispatcher applies gating and fans qualifying alerts out to channel
// adapters. The cooldown map and history are guarded by a single
// mutex; channel sends run outside the lock and in parallel, one
// failure never blocking or cancelling a sibling.
type Dispatcher struct {
	cfg     Config
	senders map[models.AlertChannel]Sender
	metrics *metrics.Metrics
	logger  zerolog.Logger

	mu        sync.Mutex
	lastAlert map[string]time.Time
	history   []models.AlertRecord

	now func() time.Time
}

// New creates a dispatcher over the given channel adapters. Metrics
// may be nil.
func New(cfg Config, senders map[models.AlertChannel]Sender, m *metrics.Metrics) *Dispatcher {
	def := DefaultConfig()
	if cfg.SignalConfidenceMin <= 0 {
		cfg.SignalConfidenceMin = def.SignalConfidenceMin
	}
	if cfg.VolumeSpikeRatio <= 0 {
		cfg.VolumeSpikeRatio = def.VolumeSpikeRatio
	}
	if cfg.StrongSignalCooldown <= 0 {
		cfg.StrongSignalCooldown = def.StrongSignalCooldown
	}
	if cfg.HistoryCapacity <= 0 {
		cfg.HistoryCapacity = def.HistoryCapacity
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = def.SendTimeout
	}
	return &Dispatcher{
		cfg:       cfg,
		senders:   senders,
		metrics:   m,
		logger:    log.With().Str("component", "dispatcher").Logger(),
		lastAlert: make(map[string]time.Time),
		now:       time.Now,
	}
}

// SendSignalAlert delivers a trading signal to the recipient's
// channels. Gates, in order: confidence floor, then the per-symbol
// cooldown for STRONG_* signals. A gate rejection is a normal outcome
// reported with its reason; no channel is touched.
func (d *Dispatcher) SendSignalAlert(ctx context.Context, rec models.AlertRecipient, sig models.TradingSignal) models.DispatchResult {
	if sig.Confidence < d.cfg.SignalConfidenceMin {
		d.dropped("confidence_below_threshold")
		return models.DispatchResult{Sent: false, Reason: "confidence below threshold"}
	}

	if sig.Type.IsStrong() {
		d.mu.Lock()
		last, seen := d.lastAlert[sig.Symbol]
		now := d.now()
		if seen && now.Sub(last) < d.cfg.StrongSignalCooldown {
			d.mu.Unlock()
			d.dropped("cooldown_active")
			return models.DispatchResult{Sent: false, Reason: "cooldown active"}
		}
		// Stamp inside the same critical section so overlapping
		// evaluations cannot both pass the gate.
		d.lastAlert[sig.Symbol] = now
		d.mu.Unlock()
	}

	msg := signalMessage(sig, d.now())
	results := d.fanout(ctx, rec, msg, fanoutOrder)
	d.record(models.AlertSignal, sig.Symbol, results)

	return models.DispatchResult{Sent: true, Channels: results}
}

// SendSignalAlerts delivers one signal to many recipients. The gates
// run once, so a strong signal reaching several recipients burns a
// single cooldown stamp instead of locking out everyone after the
// first.
func (d *Dispatcher) SendSignalAlerts(ctx context.Context, recs []models.AlertRecipient, sig models.TradingSignal) models.DispatchResult {
	if sig.Confidence < d.cfg.SignalConfidenceMin {
		d.dropped("confidence_below_threshold")
		return models.DispatchResult{Sent: false, Reason: "confidence below threshold"}
	}

	if sig.Type.IsStrong() {
		d.mu.Lock()
		last, seen := d.lastAlert[sig.Symbol]
		now := d.now()
		if seen && now.Sub(last) < d.cfg.StrongSignalCooldown {
			d.mu.Unlock()
			d.dropped("cooldown_active")
			return models.DispatchResult{Sent: false, Reason: "cooldown active"}
		}
		d.lastAlert[sig.Symbol] = now
		d.mu.Unlock()
	}

	msg := signalMessage(sig, d.now())
	combined := make(map[models.AlertChannel]models.ChannelResult)
	for _, rec := range recs {
		for ch, res := range d.fanout(ctx, rec, msg, fanoutOrder) {
			if prev, ok := combined[ch]; !ok || prev.Delivered {
				combined[ch] = res
			}
		}
	}
	d.record(models.AlertSignal, sig.Symbol, combined)

	return models.DispatchResult{Sent: true, Channels: combined}
}

// SendPriceAlert delivers a price-target notification. Price alerts
// are deliberately ungated and go to the text and push channels only.
func (d *Dispatcher) SendPriceAlert(ctx context.Context, rec models.AlertRecipient, symbol string, current, target float64, direction string) models.DispatchResult {
	msg := priceMessage(symbol, current, target, direction, d.now())
	results := d.fanout(ctx, rec, msg, []models.AlertChannel{models.ChannelTelegram, models.ChannelWebsocket})
	d.record(models.AlertPrice, symbol, results)
	return models.DispatchResult{Sent: true, Channels: results}
}

// SendVolumeAlert delivers a volume-spike notification. Its gate is
// the spike ratio threshold, a distinct policy from the signal
// confidence gate.
func (d *Dispatcher) SendVolumeAlert(ctx context.Context, rec models.AlertRecipient, symbol string, current, avg, ratio float64) models.DispatchResult {
	if ratio < d.cfg.VolumeSpikeRatio {
		d.dropped("below_volume_threshold")
		return models.DispatchResult{Sent: false, Reason: "below volume threshold"}
	}

	msg := volumeMessage(symbol, current, avg, ratio, d.now())
	results := d.fanout(ctx, rec, msg, []models.AlertChannel{models.ChannelTelegram, models.ChannelWebsocket})
	d.record(models.AlertVolume, symbol, results)
	return models.DispatchResult{Sent: true, Channels: results}
}

// SendMarketOverview delivers a cycle summary over the text channels.
func (d *Dispatcher) SendMarketOverview(ctx context.Context, rec models.AlertRecipient, ov Overview) models.DispatchResult {
	msg := overviewMessage(ov, d.now())
	results := d.fanout(ctx, rec, msg, []models.AlertChannel{models.ChannelTelegram, models.ChannelEmail})
	d.record(models.AlertOverview, msg.Symbol, results)
	return models.DispatchResult{Sent: true, Channels: results}
}

// BroadcastSignal pushes a signal to every websocket subscriber
// without recipient gating. Used by the scanner for live feeds.
func (d *Dispatcher) BroadcastSignal(ctx context.Context, sig models.TradingSignal) error {
	ws, ok := d.senders[models.ChannelWebsocket]
	if !ok {
		return nil
	}
	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	defer cancel()
	return ws.Send(sendCtx, "", signalMessage(sig, d.now()))
}

// History returns a copy of the bounded alert history, oldest first.
func (d *Dispatcher) History() []models.AlertRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]models.AlertRecord, len(d.history))
	copy(out, d.history)
	return out
}

// Stats summarizes dispatcher activity.
type Stats struct {
	TotalAlerts int                      `json:"total_alerts"`
	ByKind      map[models.AlertKind]int `json:"by_kind"`
}

// GetStats returns history-derived statistics.
func (d *Dispatcher) GetStats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	stats := Stats{
		TotalAlerts: len(d.history),
		ByKind:      make(map[models.AlertKind]int),
	}
	for _, rec := range d.history {
		stats.ByKind[rec.Kind]++
	}
	return stats
}

// fanout expands the recipient's channel set (ALL becomes every
// concrete channel, duplicates collapse) intersected with the allowed
// set, then delivers on each channel in parallel. Each send gets its
// own deadline; a failed or hung channel only affects its own entry in
// the result map.
func (d *Dispatcher) fanout(ctx context.Context, rec models.AlertRecipient, msg Message, allowed []models.AlertChannel) map[models.AlertChannel]models.ChannelResult {
	wanted := expandChannels(rec.Channels)

	results := make(map[models.AlertChannel]models.ChannelResult)
	var resMu sync.Mutex
	var wg sync.WaitGroup

	for _, channel := range allowed {
		if !wanted[channel] {
			continue
		}
		sender, ok := d.senders[channel]
		if !ok {
			continue
		}
		to, ok := contactFor(rec, channel)
		if !ok {
			continue
		}

		wg.Add(1)
		go func(channel models.AlertChannel, sender Sender, to string) {
			defer wg.Done()

			sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
			defer cancel()

			result := models.ChannelResult{Delivered: true}
			if err := sender.Send(sendCtx, to, msg); err != nil {
				result = models.ChannelResult{Delivered: false, Error: err.Error()}
				d.logger.Warn().Err(err).Str("channel", string(channel)).Str("symbol", msg.Symbol).Msg("channel delivery failed")
			} else if d.metrics != nil {
				d.metrics.AlertsSent.WithLabelValues(string(channel)).Inc()
			}

			resMu.Lock()
			results[channel] = result
			resMu.Unlock()
		}(channel, sender, to)
	}

	wg.Wait()
	return results
}

// expandChannels resolves ALL and collapses duplicates, so a recipient
// configured with both ALL and an explicit channel still gets exactly
// one delivery per channel.
func expandChannels(channels []models.AlertChannel) map[models.AlertChannel]bool {
	wanted := make(map[models.AlertChannel]bool, len(channels))
	for _, ch := range channels {
		if ch == models.ChannelAll {
			for _, concrete := range fanoutOrder {
				wanted[concrete] = true
			}
			continue
		}
		wanted[ch] = true
	}
	return wanted
}

// contactFor resolves the recipient's identity on a channel. Channels
// without a configured contact are skipped, not failed.
func contactFor(rec models.AlertRecipient, channel models.AlertChannel) (string, bool) {
	switch channel {
	case models.ChannelTelegram:
		return rec.TelegramChatID, rec.TelegramChatID != ""
	case models.ChannelEmail:
		return rec.Email, rec.Email != ""
	case models.ChannelWebsocket:
		return "", true // broadcast, no identity
	default:
		return "", false
	}
}

func (d *Dispatcher) record(kind models.AlertKind, symbol string, results map[models.AlertChannel]models.ChannelResult) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.history = append(d.history, models.AlertRecord{
		Kind:      kind,
		Symbol:    symbol,
		Results:   results,
		Timestamp: d.now(),
	})
	if len(d.history) > d.cfg.HistoryCapacity {
		d.history = d.history[len(d.history)-d.cfg.HistoryCapacity:]
	}
}

func (d *Dispatcher) dropped(reason string) {
	if d.metrics != nil {
		d.metrics.AlertsDropped.WithLabelValues(reason).Inc()
	}
}
