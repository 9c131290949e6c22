package indicators

import (
	"math"
	"testing"

	"github.com/quantvn/signals/models"
)

func TestRSI(t *testing.T) {
	engine := New(DefaultConfig())

	tests := []struct {
		name       string
		prices     []float64
		wantValue  float64
		wantSignal models.SignalStrength
	}{
		{
			name:       "insufficient data returns neutral default",
			prices:     []float64{100, 101, 102},
			wantValue:  50.0,
			wantSignal: models.Neutral,
		},
		{
			name:       "monotonic rise saturates at 100",
			prices:     generateSeries(30, func(i int) float64 { return 100 + float64(i) }),
			wantValue:  100.0,
			wantSignal: models.StrongSell,
		},
		{
			name:       "monotonic fall saturates at 0",
			prices:     generateSeries(30, func(i int) float64 { return 200 - float64(i) }),
			wantValue:  0.0,
			wantSignal: models.StrongBuy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, sig := engine.RSI(tt.prices)
			if math.Abs(value-tt.wantValue) > 1e-9 {
				t.Errorf("RSI() value = %v, want %v", value, tt.wantValue)
			}
			if sig != tt.wantSignal {
				t.Errorf("RSI() signal = %v, want %v", sig, tt.wantSignal)
			}
		})
	}
}

func TestRSIRange(t *testing.T) {
	engine := New(DefaultConfig())
	prices := generateSeries(40, func(i int) float64 {
		return 100 + float64(i%5) - float64(i%3)
	})

	value, _ := engine.RSI(prices)
	if value < 0 || value > 100 {
		t.Errorf("RSI() = %v, want value in [0,100]", value)
	}
}

func TestMACD(t *testing.T) {
	engine := New(DefaultConfig())

	t.Run("insufficient data returns zeros and neutral", func(t *testing.T) {
		prices := generateSeries(30, func(i int) float64 { return 100 + float64(i) })
		result, sig := engine.MACD(prices)
		if result.MACD != 0 || result.Signal != 0 || result.Histogram != 0 {
			t.Errorf("MACD() = %+v, want zeros", result)
		}
		if sig != models.Neutral {
			t.Errorf("MACD() signal = %v, want Neutral", sig)
		}
	})

	t.Run("uptrend keeps the histogram positive", func(t *testing.T) {
		prices := generateSeries(60, func(i int) float64 { return 100 + float64(i)*0.5 })
		result, sig := engine.MACD(prices)
		if result.Histogram <= 0 {
			t.Errorf("MACD() histogram = %v, want positive", result.Histogram)
		}
		if sig == models.Sell || sig == models.StrongSell {
			t.Errorf("MACD() signal = %v, want not sell-side in an uptrend", sig)
		}
	})

	t.Run("downtrend keeps the histogram negative", func(t *testing.T) {
		prices := generateSeries(60, func(i int) float64 { return 200 - float64(i)*0.5 })
		result, sig := engine.MACD(prices)
		if result.Histogram >= 0 {
			t.Errorf("MACD() histogram = %v, want negative", result.Histogram)
		}
		if sig == models.Buy || sig == models.StrongBuy {
			t.Errorf("MACD() signal = %v, want not buy-side in a downtrend", sig)
		}
	})
}

func TestBollinger(t *testing.T) {
	engine := New(DefaultConfig())

	t.Run("insufficient data defaults position to 0.5", func(t *testing.T) {
		bands, sig := engine.Bollinger([]float64{100, 101, 102})
		if bands.Position != 0.5 {
			t.Errorf("Bollinger() position = %v, want 0.5", bands.Position)
		}
		if sig != models.Neutral {
			t.Errorf("Bollinger() signal = %v, want Neutral", sig)
		}
	})

	t.Run("flat series collapses bands to position 0.5", func(t *testing.T) {
		prices := generateSeries(25, func(int) float64 { return 100 })
		bands, sig := engine.Bollinger(prices)
		if bands.Position != 0.5 {
			t.Errorf("Bollinger() position = %v, want 0.5", bands.Position)
		}
		if sig != models.Neutral {
			t.Errorf("Bollinger() signal = %v, want Neutral", sig)
		}
	})

	t.Run("position stays clamped to [0,1]", func(t *testing.T) {
		// Close the series with a jump far outside the bands.
		prices := generateSeries(25, func(i int) float64 {
			if i == 24 {
				return 500
			}
			return 100 + float64(i%3)
		})
		bands, _ := engine.Bollinger(prices)
		if bands.Position < 0 || bands.Position > 1 {
			t.Errorf("Bollinger() position = %v, want clamped to [0,1]", bands.Position)
		}
		if bands.Position != 1 {
			t.Errorf("Bollinger() position = %v, want 1 after upside breakout", bands.Position)
		}
	})

	t.Run("band order is lower < middle < upper", func(t *testing.T) {
		prices := generateSeries(25, func(i int) float64 { return 100 + float64(i%7) })
		bands, _ := engine.Bollinger(prices)
		if !(bands.Lower < bands.Middle && bands.Middle < bands.Upper) {
			t.Errorf("Bollinger() bands out of order: %+v", bands)
		}
	})
}

func TestSMA(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
		period int
		want   float64
	}{
		{"empty series", nil, 20, 0},
		{"shorter than period falls back to full mean", []float64{100, 110, 120}, 20, 110},
		{"trailing window", []float64{1, 2, 3, 4, 5, 6}, 3, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SMA(tt.prices, tt.period)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("SMA() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEMA(t *testing.T) {
	if got := EMA(nil, 10); got != 0 {
		t.Errorf("EMA(nil) = %v, want 0", got)
	}
	if got := EMA([]float64{42}, 10); got != 42 {
		t.Errorf("EMA(single) = %v, want 42", got)
	}
}

func TestMovingAverages(t *testing.T) {
	engine := New(DefaultConfig())

	tests := []struct {
		name       string
		prices     []float64
		wantSignal models.SignalStrength
	}{
		{
			name:       "uptrend orders price above both averages",
			prices:     generateSeries(60, func(i int) float64 { return 100 + float64(i) }),
			wantSignal: models.Buy,
		},
		{
			name:       "downtrend orders price below both averages",
			prices:     generateSeries(60, func(i int) float64 { return 200 - float64(i) }),
			wantSignal: models.Sell,
		},
		{
			name:       "flat series stays neutral",
			prices:     generateSeries(60, func(int) float64 { return 100 }),
			wantSignal: models.Neutral,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, sig := engine.MovingAverages(tt.prices)
			if sig != tt.wantSignal {
				t.Errorf("MovingAverages() signal = %v, want %v", sig, tt.wantSignal)
			}
		})
	}
}

func TestVolumeAnalysis(t *testing.T) {
	engine := New(DefaultConfig())
	flatVolumes := func(spike float64) []float64 {
		return generateSeries(25, func(i int) float64 {
			if i == 24 {
				return spike
			}
			return 1000
		})
	}

	tests := []struct {
		name       string
		volumes    []float64
		prices     []float64
		wantSignal models.SignalStrength
	}{
		{
			name:       "insufficient volume history",
			volumes:    []float64{1000, 2000},
			prices:     []float64{100, 101},
			wantSignal: models.Neutral,
		},
		{
			name:       "spike with strong price rise",
			volumes:    flatVolumes(3000),
			prices:     []float64{100, 102},
			wantSignal: models.StrongBuy,
		},
		{
			name:       "spike with mild price rise",
			volumes:    flatVolumes(3000),
			prices:     []float64{100, 100.5},
			wantSignal: models.Buy,
		},
		{
			name:       "spike with strong price drop",
			volumes:    flatVolumes(3000),
			prices:     []float64{100, 98},
			wantSignal: models.StrongSell,
		},
		{
			name:       "spike with mild price drop",
			volumes:    flatVolumes(3000),
			prices:     []float64{100, 99.5},
			wantSignal: models.Sell,
		},
		{
			name:       "no spike stays neutral regardless of price",
			volumes:    flatVolumes(1100),
			prices:     []float64{100, 105},
			wantSignal: models.Neutral,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, sig := engine.VolumeAnalysis(tt.volumes, tt.prices)
			if sig != tt.wantSignal {
				t.Errorf("VolumeAnalysis() signal = %v, want %v", sig, tt.wantSignal)
			}
		})
	}
}

func TestVolumeAnalysisRatio(t *testing.T) {
	engine := New(DefaultConfig())
	volumes := generateSeries(25, func(i int) float64 {
		if i == 24 {
			return 2500
		}
		return 1000
	})

	stats, _ := engine.VolumeAnalysis(volumes, []float64{100, 101})
	wantAvg := (19*1000.0 + 2500) / 20 // the spike sits inside its own window
	if math.Abs(stats.AvgVolume-wantAvg) > 1e-9 {
		t.Errorf("VolumeAnalysis() avg = %v, want %v", stats.AvgVolume, wantAvg)
	}
	if math.Abs(stats.Ratio-2500/wantAvg) > 1e-9 {
		t.Errorf("VolumeAnalysis() ratio = %v, want %v", stats.Ratio, 2500/wantAvg)
	}
	if stats.CurrentVolume != 2500 {
		t.Errorf("VolumeAnalysis() current = %v, want 2500", stats.CurrentVolume)
	}
}

func TestCalculateAll(t *testing.T) {
	engine := New(DefaultConfig())
	prices := generateSeries(60, func(i int) float64 { return 100 + float64(i%5) })
	volumes := generateSeries(60, func(int) float64 { return 1000 })

	t.Run("with volumes includes all five indicators", func(t *testing.T) {
		results := engine.CalculateAll(prices, volumes)
		for _, key := range []string{"rsi", "macd", "bollinger", "moving_averages", "volume"} {
			if _, ok := results[key]; !ok {
				t.Errorf("CalculateAll() missing %q", key)
			}
		}
		if len(results) != 5 {
			t.Errorf("CalculateAll() returned %d results, want 5", len(results))
		}
	})

	t.Run("without volumes omits the volume indicator", func(t *testing.T) {
		results := engine.CalculateAll(prices, nil)
		if _, ok := results["volume"]; ok {
			t.Error("CalculateAll() included volume without a volume series")
		}
		if len(results) != 4 {
			t.Errorf("CalculateAll() returned %d results, want 4", len(results))
		}
	})
}

func TestNewFillsDefaults(t *testing.T) {
	engine := New(Config{RSIPeriod: 7})
	if engine.cfg.RSIPeriod != 7 {
		t.Errorf("New() RSIPeriod = %d, want 7", engine.cfg.RSIPeriod)
	}
	if engine.cfg.MACDSlowPeriod != 26 {
		t.Errorf("New() MACDSlowPeriod = %d, want default 26", engine.cfg.MACDSlowPeriod)
	}
	if engine.cfg.BBStdDev != 2.0 {
		t.Errorf("New() BBStdDev = %v, want default 2.0", engine.cfg.BBStdDev)
	}
}

func generateSeries(n int, generator func(int) float64) []float64 {
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = generator(i)
	}
	return out
}
