package signal

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/quantvn/signals/internal/indicators"
	"github.com/quantvn/signals/models"
)

func newTestScorer() *Scorer {
	s := NewScorer(indicators.New(indicators.DefaultConfig()), nil)
	s.now = func() time.Time {
		return time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	}
	return s
}

func TestGenerateInsufficientData(t *testing.T) {
	scorer := newTestScorer()

	tests := []struct {
		name      string
		prices    []float64
		wantPrice float64
	}{
		{"empty series", nil, 0},
		{"single price", []float64{120}, 120},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := scorer.Generate("VNM", Series{Prices: tt.prices})
			if sig.Type != models.SignalHold {
				t.Errorf("Generate() type = %v, want HOLD", sig.Type)
			}
			if sig.Confidence != 0 {
				t.Errorf("Generate() confidence = %v, want 0", sig.Confidence)
			}
			if sig.Price != tt.wantPrice {
				t.Errorf("Generate() price = %v, want %v", sig.Price, tt.wantPrice)
			}
			if sig.Target != sig.Price {
				t.Errorf("Generate() target = %v, want price %v", sig.Target, sig.Price)
			}
			if len(sig.Reasoning) != 1 || sig.Reasoning[0] != "Insufficient data for analysis" {
				t.Errorf("Generate() reasoning = %v", sig.Reasoning)
			}
		})
	}
}

func TestGenerateShortSeriesIsNeutralHold(t *testing.T) {
	scorer := newTestScorer()
	prices := []float64{100, 102, 101, 105, 107, 106, 110, 112, 111, 115}

	sig := scorer.Generate("FPT", Series{Prices: prices})
	// Ten points are below every indicator period, so all
	// classifications default to neutral.
	if sig.Type != models.SignalHold {
		t.Errorf("Generate() type = %v, want HOLD", sig.Type)
	}
	if sig.Confidence != 0.5 {
		t.Errorf("Generate() confidence = %v, want 0.5", sig.Confidence)
	}
	if len(sig.Reasoning) != 0 {
		t.Errorf("Generate() reasoning = %v, want empty for all-neutral", sig.Reasoning)
	}
	if sig.Price != 115 {
		t.Errorf("Generate() price = %v, want 115", sig.Price)
	}
}

func TestGenerateIdempotent(t *testing.T) {
	scorer := newTestScorer()
	prices := make([]float64, 60)
	volumes := make([]float64, 60)
	for i := range prices {
		prices[i] = 100 + float64(i%7) - float64(i%3)
		volumes[i] = 1000 + float64(i%5)*100
	}
	series := Series{Prices: prices, Volumes: volumes, Support: []float64{95}, Resistance: []float64{110}}

	first := scorer.Generate("HPG", series)
	second := scorer.Generate("HPG", series)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Generate() not deterministic:\n%+v\n%+v", first, second)
	}
}

func TestGenerateLevelInvariants(t *testing.T) {
	scorer := newTestScorer()

	seriesSet := map[string]Series{
		"uptrend": {Prices: ramp(60, 100, 1)},
		"downtrend": {
			Prices: ramp(60, 200, -1),
		},
		"choppy": {
			Prices: func() []float64 {
				p := make([]float64, 60)
				for i := range p {
					p[i] = 100 + float64(i%9) - float64(i%4)
				}
				return p
			}(),
		},
	}

	for name, series := range seriesSet {
		t.Run(name, func(t *testing.T) {
			sig := scorer.Generate("TCB", series)

			if sig.Confidence < 0 || sig.Confidence > 1 {
				t.Errorf("confidence = %v, want [0,1]", sig.Confidence)
			}

			switch {
			case sig.Type.IsBuy():
				if !(sig.Target > sig.Price && sig.StopLoss < sig.Price) {
					t.Errorf("buy levels inverted: price=%v target=%v stop=%v", sig.Price, sig.Target, sig.StopLoss)
				}
			case sig.Type.IsSell():
				if !(sig.Target < sig.Price && sig.StopLoss > sig.Price) {
					t.Errorf("sell levels inverted: price=%v target=%v stop=%v", sig.Price, sig.Target, sig.StopLoss)
				}
			default:
				if sig.Target != sig.Price {
					t.Errorf("hold target = %v, want price %v", sig.Target, sig.Price)
				}
			}
		})
	}
}

func TestScoreToSignal(t *testing.T) {
	tests := []struct {
		score          float64
		wantType       models.SignalType
		wantConfidence float64
	}{
		{2.0, models.SignalStrongBuy, 0.9},
		{1.5, models.SignalStrongBuy, 0.85},
		{1.0, models.SignalBuy, 0.65},
		{0.5, models.SignalBuy, 0.575},
		{0.0, models.SignalHold, 0.5},
		{-0.4, models.SignalHold, 0.5},
		{-0.5, models.SignalSell, 0.575},
		{-1.0, models.SignalSell, 0.65},
		{-1.5, models.SignalStrongSell, 0.85},
		{-2.0, models.SignalStrongSell, 0.9},
	}

	for _, tt := range tests {
		gotType, gotConfidence := scoreToSignal(tt.score)
		if gotType != tt.wantType {
			t.Errorf("scoreToSignal(%v) type = %v, want %v", tt.score, gotType, tt.wantType)
		}
		if math.Abs(gotConfidence-tt.wantConfidence) > 1e-9 {
			t.Errorf("scoreToSignal(%v) confidence = %v, want %v", tt.score, gotConfidence, tt.wantConfidence)
		}
	}
}

func TestCalculateVolatility(t *testing.T) {
	if got := calculateVolatility([]float64{100, 101, 102}); got != 2.0 {
		t.Errorf("calculateVolatility(short) = %v, want default 2.0", got)
	}

	flat := make([]float64, 25)
	for i := range flat {
		flat[i] = 100
	}
	if got := calculateVolatility(flat); got != 0 {
		t.Errorf("calculateVolatility(flat) = %v, want 0", got)
	}
}

func TestCalculateLevels(t *testing.T) {
	t.Run("buy without levels uses volatility percentages", func(t *testing.T) {
		target, stop := calculateLevels(100, models.SignalBuy, 2.0, nil, nil)
		if math.Abs(target-104) > 1e-9 {
			t.Errorf("target = %v, want 104", target)
		}
		if math.Abs(stop-97) > 1e-9 {
			t.Errorf("stop = %v, want 97", stop)
		}
	})

	t.Run("buy snaps to nearest resistance and support", func(t *testing.T) {
		target, stop := calculateLevels(100, models.SignalBuy, 2.0, []float64{90, 98}, []float64{110, 103})
		if target != 103 {
			t.Errorf("target = %v, want nearest resistance 103", target)
		}
		if math.Abs(stop-98*0.99) > 1e-9 {
			t.Errorf("stop = %v, want support 98 with 1%% buffer", stop)
		}
	})

	t.Run("sell mirrors the overrides", func(t *testing.T) {
		target, stop := calculateLevels(100, models.SignalSell, 2.0, []float64{90, 97}, []float64{102, 110})
		if target != 97 {
			t.Errorf("target = %v, want nearest support 97", target)
		}
		if math.Abs(stop-102*1.01) > 1e-9 {
			t.Errorf("stop = %v, want resistance 102 with 1%% buffer", stop)
		}
	})

	t.Run("low volatility floors the percentages", func(t *testing.T) {
		target, stop := calculateLevels(100, models.SignalBuy, 0.1, nil, nil)
		if math.Abs(target-103) > 1e-9 {
			t.Errorf("target = %v, want 3%% floor", target)
		}
		if math.Abs(stop-98) > 1e-9 {
			t.Errorf("stop = %v, want 2%% floor", stop)
		}
	})
}

func TestBatchGenerate(t *testing.T) {
	scorer := newTestScorer()
	data := map[string]Series{
		"AAA": {Prices: []float64{100}},
		"BBB": {Prices: ramp(60, 100, 1)},
		"CCC": {Prices: []float64{50}},
	}

	out := scorer.BatchGenerate(data)
	if len(out) != 3 {
		t.Fatalf("BatchGenerate() returned %d signals, want 3", len(out))
	}

	// HOLD entries sink to the back.
	sawNonHold := false
	for i := len(out) - 1; i >= 0; i-- {
		if out[i].Type != models.SignalHold {
			sawNonHold = true
		} else if sawNonHold {
			t.Errorf("BatchGenerate() HOLD at %d before non-HOLD entries", i)
		}
	}

	again := scorer.BatchGenerate(data)
	if !reflect.DeepEqual(out, again) {
		t.Error("BatchGenerate() ordering not deterministic")
	}
}

func TestTopSignalsExcludesHold(t *testing.T) {
	scorer := newTestScorer()
	data := map[string]Series{
		"AAA": {Prices: []float64{100}},
		"BBB": {Prices: []float64{50}},
	}

	if got := scorer.TopSignals(data, 5); len(got) != 0 {
		t.Errorf("TopSignals() = %v, want none for all-HOLD input", got)
	}
}

func ramp(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}
